package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingWorker struct {
	mu    sync.Mutex
	runs  []WorkData
	panic bool
}

func (w *countingWorker) Run(_ context.Context, data WorkData) Result {
	if w.panic {
		panic("boom")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.runs = append(w.runs, data)
	return ResultSuccess
}

func (w *countingWorker) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.runs)
}

func TestEnqueueReplacesPendingJob(t *testing.T) {
	timers := &manualTimers{}
	worker := &countingWorker{}
	queue := NewDelayedQueue(worker, testLogger(), WithTimerFunc(timers.start))
	defer queue.Close()

	replaced, err := queue.Enqueue("job", time.Minute, WorkData{"task_id": "1"})
	require.NoError(t, err)
	require.False(t, replaced)

	replaced, err = queue.Enqueue("job", 2*time.Minute, WorkData{"task_id": "1"})
	require.NoError(t, err)
	require.True(t, replaced)

	require.Equal(t, 1, queue.Len())
	require.Len(t, timers.active(), 1)
	require.Equal(t, 2*time.Minute, timers.active()[0].delay)

	timers.fireAll()
	require.Equal(t, 1, worker.count())
	require.Equal(t, 0, queue.Len())
}

func TestCancelIsIdempotent(t *testing.T) {
	timers := &manualTimers{}
	queue := NewDelayedQueue(&countingWorker{}, testLogger(), WithTimerFunc(timers.start))
	defer queue.Close()

	_, err := queue.Enqueue("job", time.Minute, nil)
	require.NoError(t, err)

	require.True(t, queue.Cancel("job"))
	require.False(t, queue.Cancel("job"))
	require.Empty(t, timers.active())
	_, ok := queue.Pending("job")
	require.False(t, ok)
}

func TestSupersededTimerDoesNotRun(t *testing.T) {
	timers := &manualTimers{}
	worker := &countingWorker{}
	queue := NewDelayedQueue(worker, testLogger(), WithTimerFunc(timers.start))
	defer queue.Close()

	_, err := queue.Enqueue("job", time.Minute, nil)
	require.NoError(t, err)
	stale := timers.active()[0]

	_, err = queue.Enqueue("job", time.Hour, nil)
	require.NoError(t, err)

	// a timer that already fired before being stopped must not run the new job
	stale.fn()
	require.Equal(t, 0, worker.count())
	require.Equal(t, 1, queue.Len())
}

func TestWorkerPanicIsContained(t *testing.T) {
	timers := &manualTimers{}
	queue := NewDelayedQueue(&countingWorker{panic: true}, testLogger(), WithTimerFunc(timers.start))
	defer queue.Close()

	_, err := queue.Enqueue("job", time.Second, nil)
	require.NoError(t, err)

	require.NotPanics(t, timers.fireAll)
	require.Equal(t, 0, queue.Len())
}

func TestSnapshotOrderedByDueTime(t *testing.T) {
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	timers := &manualTimers{}
	queue := NewDelayedQueue(&countingWorker{}, testLogger(),
		WithTimerFunc(timers.start),
		WithQueueClock(func() time.Time { return now }),
	)
	defer queue.Close()

	_, _ = queue.Enqueue("late", time.Hour, WorkData{"task_id": "2"})
	_, _ = queue.Enqueue("early", time.Minute, WorkData{"task_id": "1"})

	jobs := queue.Snapshot()
	require.Len(t, jobs, 2)
	require.Equal(t, "early", jobs[0].Key)
	require.Equal(t, now.Add(time.Minute), jobs[0].DueAt)
	require.Equal(t, "2", jobs[1].Data["task_id"])
}

func TestEnqueueAfterCloseFails(t *testing.T) {
	queue := NewDelayedQueue(&countingWorker{}, testLogger())
	queue.Close()

	_, err := queue.Enqueue("job", time.Minute, nil)
	require.ErrorIs(t, err, ErrQueueClosed)
}

func TestRealTimerRunsWorker(t *testing.T) {
	worker := &countingWorker{}
	queue := NewDelayedQueue(worker, testLogger())
	defer queue.Close()

	_, err := queue.Enqueue("job", 10*time.Millisecond, WorkData{"task_id": "9"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return worker.count() == 1 }, time.Second, 5*time.Millisecond)
}
