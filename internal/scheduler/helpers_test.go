package scheduler

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/taskminder-go-api/internal/dto"
	"github.com/noah-isme/taskminder-go-api/internal/models"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

type fakeTimer struct {
	delay   time.Duration
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	wasActive := !t.stopped
	t.stopped = true
	return wasActive
}

// manualTimers records timers and fires them on demand.
type manualTimers struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (m *manualTimers) start(d time.Duration, f func()) Stopper {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &fakeTimer{delay: d, fn: f}
	m.timers = append(m.timers, t)
	return t
}

func (m *manualTimers) active() []*fakeTimer {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*fakeTimer
	for _, t := range m.timers {
		if !t.stopped {
			out = append(out, t)
		}
	}
	return out
}

func (m *manualTimers) fireAll() {
	for _, t := range m.active() {
		t.stopped = true
		t.fn()
	}
}

type memoryTaskStore struct {
	mu      sync.Mutex
	tasks   map[uint]models.Task
	findErr error
	markErr error
}

func newMemoryTaskStore(tasks ...models.Task) *memoryTaskStore {
	store := &memoryTaskStore{tasks: make(map[uint]models.Task)}
	for _, task := range tasks {
		store.tasks[task.ID] = task
	}
	return store
}

func (s *memoryTaskStore) FindByID(_ context.Context, id uint) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	task, ok := s.tasks[id]
	if !ok {
		return nil, nil
	}
	return &task, nil
}

func (s *memoryTaskStore) UpdateNotificationTime(_ context.Context, id uint, minutes int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil
	}
	task.NotifyBeforeMinutes = minutes
	s.tasks[id] = task
	return nil
}

func (s *memoryTaskStore) ListActiveWithDeadline(_ context.Context) ([]models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Task
	for _, task := range s.tasks {
		if task.Deadline != nil && !task.IsCompleted {
			out = append(out, task)
		}
	}
	sort.Slice(out, func(i, j int) bool { return *out[i].Deadline < *out[j].Deadline })
	return out, nil
}

func (s *memoryTaskStore) MarkNotificationSent(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markErr != nil {
		return s.markErr
	}
	task, ok := s.tasks[id]
	if ok && task.Deadline != nil {
		task.NotificationSent = true
		s.tasks[id] = task
	}
	return nil
}

func (s *memoryTaskStore) put(task models.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = task
}

func (s *memoryTaskStore) get(id uint) models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks[id]
}

type recordingNotifier struct {
	mu        sync.Mutex
	published []dto.NotificationPublishRequest
	err       error
	panicMsg  string
}

func (n *recordingNotifier) Publish(_ context.Context, req dto.NotificationPublishRequest) (dto.NotificationResponse, error) {
	if n.panicMsg != "" {
		panic(n.panicMsg)
	}
	if n.err != nil {
		return dto.NotificationResponse{}, n.err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.published = append(n.published, req)
	return dto.NotificationResponse{ID: uint(len(n.published)), ChannelID: req.ChannelID, Title: req.Title, Body: req.Body}, nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.published)
}

type staticSettings struct {
	settings dto.AppSettings
}

func (s staticSettings) Snapshot(context.Context) dto.AppSettings {
	return s.settings
}

var errStoreDown = errors.New("store down")

func deadlineAt(t time.Time) *int64 {
	ms := t.UnixMilli()
	return &ms
}
