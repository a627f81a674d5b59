package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/taskminder-go-api/internal/models"
	"github.com/noah-isme/taskminder-go-api/internal/observability"
)

const (
	notificationKeyPrefix = "deadline_notification_"

	// WorkKeyTaskID is the payload key carrying the task identifier.
	WorkKeyTaskID = "task_id"
)

// NotificationKey is the unique job key of a task's deadline notification.
func NotificationKey(taskID uint) string {
	return notificationKeyPrefix + strconv.FormatUint(uint64(taskID), 10)
}

// TaskStore is the slice of the task repository the scheduler needs.
type TaskStore interface {
	FindByID(ctx context.Context, id uint) (*models.Task, error)
	UpdateNotificationTime(ctx context.Context, id uint, minutes int) error
	ListActiveWithDeadline(ctx context.Context) ([]models.Task, error)
}

// JobQueue stores delayed jobs keyed by name with replace semantics.
type JobQueue interface {
	Enqueue(key string, delay time.Duration, data WorkData) (bool, error)
	Cancel(key string) bool
}

// Scheduler decides whether and when a task's deadline notification fires. It
// keeps no state of its own: everything is derived from the task record and
// the queue.
type Scheduler struct {
	tasks  TaskStore
	queue  JobQueue
	logger zerolog.Logger
	now    func() time.Time
	tracer trace.Tracer
}

// Option customises a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the scheduler clock.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// NewScheduler constructs a scheduler over the task store and job queue.
func NewScheduler(tasks TaskStore, queue JobQueue, logger zerolog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		tasks:  tasks,
		queue:  queue,
		logger: logger.With().Str("component", "notification_scheduler").Logger(),
		now:    time.Now,
		tracer: otel.Tracer("github.com/noah-isme/taskminder-go-api/internal/scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScheduleNotification enqueues the task's notification job when the task is
// active, has a deadline and a positive lead time, has not been notified and
// its fire time is still ahead. It reports whether a job was enqueued.
func (s *Scheduler) ScheduleNotification(ctx context.Context, task models.Task) (bool, error) {
	_, span := s.tracer.Start(ctx, "notifications.schedule", trace.WithAttributes(
		attribute.Int64("task.id", int64(task.ID)),
	))
	defer span.End()

	// A lead time below one minute fires at or after the deadline, where the
	// worker always suppresses delivery.
	if task.IsCompleted || task.Deadline == nil || task.NotificationSent || task.NotifyBeforeMinutes < 1 {
		observability.NotificationJobs().WithLabelValues("skipped").Inc()
		return false, nil
	}

	fireTime, _ := task.FireTime()
	now := s.now()
	if !fireTime.After(now) {
		observability.NotificationJobs().WithLabelValues("skipped").Inc()
		s.logger.Debug().Uint("task_id", task.ID).Time("fire_time", fireTime).Msg("lead time window already elapsed")
		return false, nil
	}

	delay := fireTime.Sub(now)
	data := WorkData{WorkKeyTaskID: strconv.FormatUint(uint64(task.ID), 10)}
	replaced, err := s.queue.Enqueue(NotificationKey(task.ID), delay, data)
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("enqueue notification for task %d: %w", task.ID, err)
	}

	s.logger.Info().
		Uint("task_id", task.ID).
		Dur("delay", delay).
		Bool("replaced", replaced).
		Msg("deadline notification scheduled")

	return true, nil
}

// CancelNotification drops any pending job for the task. Idempotent.
func (s *Scheduler) CancelNotification(_ context.Context, taskID uint) {
	if s.queue.Cancel(NotificationKey(taskID)) {
		s.logger.Info().Uint("task_id", taskID).Msg("deadline notification cancelled")
	}
}

// UpdateNotificationTime persists a new lead time, cancels the pending job and
// schedules again from the reloaded task. The notification_sent flag is left
// untouched, so a task that was already notified stays silent.
func (s *Scheduler) UpdateNotificationTime(ctx context.Context, taskID uint, minutes int) error {
	if err := s.tasks.UpdateNotificationTime(ctx, taskID, minutes); err != nil {
		return fmt.Errorf("update notification time: %w", err)
	}

	s.CancelNotification(ctx, taskID)

	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return fmt.Errorf("reload task %d: %w", taskID, err)
	}
	if task == nil {
		return nil
	}

	_, err = s.ScheduleNotification(ctx, *task)
	return err
}

// ScheduleAllPendingNotifications re-derives every pending job from persisted
// task state. Safe to run repeatedly: each task's job is replaced by an
// equivalent one. It returns the number of jobs enqueued.
func (s *Scheduler) ScheduleAllPendingNotifications(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "notifications.schedule_all")
	defer span.End()

	tasks, err := s.tasks.ListActiveWithDeadline(ctx)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("list active tasks: %w", err)
	}

	scheduled := 0
	for _, task := range tasks {
		if task.NotificationSent || task.Deadline == nil {
			continue
		}
		ok, err := s.ScheduleNotification(ctx, task)
		if err != nil {
			return scheduled, err
		}
		if ok {
			scheduled++
		}
	}

	span.SetAttributes(attribute.Int("notifications.scheduled", scheduled))
	s.logger.Info().Int("candidates", len(tasks)).Int("scheduled", scheduled).Msg("pending notifications re-armed")

	return scheduled, nil
}
