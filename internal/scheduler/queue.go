package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/taskminder-go-api/internal/observability"
)

// ErrQueueClosed is returned when enqueueing after Close.
var ErrQueueClosed = errors.New("job queue closed")

// WorkData is the payload handed to a worker when its job fires.
type WorkData map[string]string

// Result is the outcome reported by a worker. Neither outcome is retried.
type Result int

// Worker outcomes.
const (
	ResultSuccess Result = iota
	ResultFailure
)

func (r Result) String() string {
	if r == ResultSuccess {
		return "success"
	}
	return "failure"
}

// Worker executes a fired job.
type Worker interface {
	Run(ctx context.Context, data WorkData) Result
}

// Stopper is the handle of a started timer.
type Stopper interface {
	Stop() bool
}

// TimerFunc starts a timer calling f once after d.
type TimerFunc func(d time.Duration, f func()) Stopper

func realTimer(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}

// JobInfo describes a pending job.
type JobInfo struct {
	Key   string            `json:"key"`
	DueAt time.Time         `json:"due_at"`
	Data  map[string]string `json:"data"`
}

type job struct {
	key   string
	data  WorkData
	dueAt time.Time
	timer Stopper
}

// DelayedQueue keeps at most one pending job per key. Enqueue always cancels the
// job already held under the key before inserting the new one. Jobs live in
// memory only and are lost when the process exits.
type DelayedQueue struct {
	mu     sync.Mutex
	jobs   map[string]*job
	worker Worker
	logger zerolog.Logger
	timer  TimerFunc
	now    func() time.Time
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

// QueueOption customises a DelayedQueue.
type QueueOption func(*DelayedQueue)

// WithTimerFunc replaces the timer implementation.
func WithTimerFunc(fn TimerFunc) QueueOption {
	return func(q *DelayedQueue) {
		if fn != nil {
			q.timer = fn
		}
	}
}

// WithQueueClock replaces the clock used to compute due times.
func WithQueueClock(now func() time.Time) QueueOption {
	return func(q *DelayedQueue) {
		if now != nil {
			q.now = now
		}
	}
}

// NewDelayedQueue constructs a queue that hands fired jobs to worker.
func NewDelayedQueue(worker Worker, logger zerolog.Logger, opts ...QueueOption) *DelayedQueue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &DelayedQueue{
		jobs:   make(map[string]*job),
		worker: worker,
		logger: logger.With().Str("component", "delayed_queue").Logger(),
		timer:  realTimer,
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue schedules data to run after delay under key, replacing any pending job
// with the same key. It reports whether a job was replaced.
func (q *DelayedQueue) Enqueue(key string, delay time.Duration, data WorkData) (bool, error) {
	if key == "" {
		return false, fmt.Errorf("job key must not be empty")
	}
	if delay < 0 {
		delay = 0
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false, ErrQueueClosed
	}

	replaced := q.removeLocked(key)

	j := &job{key: key, data: cloneData(data), dueAt: q.now().Add(delay)}
	j.timer = q.timer(delay, func() { q.fire(j) })
	q.jobs[key] = j

	if replaced {
		observability.NotificationJobs().WithLabelValues("replaced").Inc()
	}
	observability.NotificationJobs().WithLabelValues("scheduled").Inc()
	observability.NotificationJobsPending().Set(float64(len(q.jobs)))

	return replaced, nil
}

// Cancel drops the pending job under key. It reports whether one existed.
func (q *DelayedQueue) Cancel(key string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	removed := q.removeLocked(key)
	if removed {
		observability.NotificationJobs().WithLabelValues("cancelled").Inc()
		observability.NotificationJobsPending().Set(float64(len(q.jobs)))
	}
	return removed
}

// Pending returns the due time of the job under key.
func (q *DelayedQueue) Pending(key string) (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	j, ok := q.jobs[key]
	if !ok {
		return time.Time{}, false
	}
	return j.dueAt, true
}

// Len returns the number of pending jobs.
func (q *DelayedQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Snapshot lists pending jobs ordered by due time.
func (q *DelayedQueue) Snapshot() []JobInfo {
	q.mu.Lock()
	infos := make([]JobInfo, 0, len(q.jobs))
	for _, j := range q.jobs {
		infos = append(infos, JobInfo{Key: j.key, DueAt: j.dueAt, Data: cloneData(j.data)})
	}
	q.mu.Unlock()

	sort.Slice(infos, func(i, k int) bool {
		if infos[i].DueAt.Equal(infos[k].DueAt) {
			return infos[i].Key < infos[k].Key
		}
		return infos[i].DueAt.Before(infos[k].DueAt)
	})
	return infos
}

// Close stops every pending timer and waits for running jobs to finish.
func (q *DelayedQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	for key, j := range q.jobs {
		j.timer.Stop()
		delete(q.jobs, key)
	}
	observability.NotificationJobsPending().Set(0)
	q.mu.Unlock()

	q.wg.Wait()
	q.cancel()
}

func (q *DelayedQueue) removeLocked(key string) bool {
	existing, ok := q.jobs[key]
	if !ok {
		return false
	}
	existing.timer.Stop()
	delete(q.jobs, key)
	return true
}

func (q *DelayedQueue) fire(j *job) {
	q.mu.Lock()
	current, ok := q.jobs[j.key]
	if !ok || current != j {
		// superseded or cancelled after the timer had already fired
		q.mu.Unlock()
		return
	}
	delete(q.jobs, j.key)
	observability.NotificationJobsPending().Set(float64(len(q.jobs)))
	q.wg.Add(1)
	q.mu.Unlock()

	defer q.wg.Done()

	result := q.run(j)
	q.logger.Info().
		Str("job_key", j.key).
		Str("result", result.String()).
		Msg("notification job finished")
}

func (q *DelayedQueue) run(j *job) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error().Interface("panic", r).Str("job_key", j.key).Msg("notification job panicked")
			result = ResultFailure
		}
	}()

	if q.worker == nil {
		return ResultFailure
	}
	return q.worker.Run(q.ctx, cloneData(j.data))
}

func cloneData(data WorkData) WorkData {
	if data == nil {
		return WorkData{}
	}
	out := make(WorkData, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
