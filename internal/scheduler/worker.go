package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/taskminder-go-api/internal/dto"
	"github.com/noah-isme/taskminder-go-api/internal/models"
	"github.com/noah-isme/taskminder-go-api/internal/observability"
)

// DeadlineChannelID identifies the notification channel used for deadline reminders.
const DeadlineChannelID = "deadline_notifications"

const deliveredKeyPrefix = "deadline_notification:delivered:"

var errMissingTaskID = errors.New("work data has no valid task id")

// DeliveryStore is the slice of the task repository the worker needs.
type DeliveryStore interface {
	FindByID(ctx context.Context, id uint) (*models.Task, error)
	MarkNotificationSent(ctx context.Context, id uint) error
}

// Notifier displays a notification to the user.
type Notifier interface {
	Publish(ctx context.Context, req dto.NotificationPublishRequest) (dto.NotificationResponse, error)
}

// SettingsReader provides the current preference snapshot.
type SettingsReader interface {
	Snapshot(ctx context.Context) dto.AppSettings
}

// DeliveryWorker runs when a deadline job fires. It re-validates the task
// against persisted state before anything is shown.
type DeliveryWorker struct {
	tasks    DeliveryStore
	notifier Notifier
	settings SettingsReader
	guard    *redis.Client
	guardTTL time.Duration
	nodeID   string
	logger   zerolog.Logger
	now      func() time.Time
}

// WorkerOption customises a DeliveryWorker.
type WorkerOption func(*DeliveryWorker)

// WithDeliveryGuard enables the cross-node delivery guard backed by Redis.
func WithDeliveryGuard(client *redis.Client, ttl time.Duration, nodeID string) WorkerOption {
	return func(w *DeliveryWorker) {
		w.guard = client
		if ttl > 0 {
			w.guardTTL = ttl
		}
		if nodeID != "" {
			w.nodeID = nodeID
		}
	}
}

// WithWorkerClock replaces the worker clock.
func WithWorkerClock(now func() time.Time) WorkerOption {
	return func(w *DeliveryWorker) {
		if now != nil {
			w.now = now
		}
	}
}

// NewDeliveryWorker constructs the worker run by the delayed queue.
func NewDeliveryWorker(tasks DeliveryStore, notifier Notifier, settings SettingsReader, logger zerolog.Logger, opts ...WorkerOption) *DeliveryWorker {
	w := &DeliveryWorker{
		tasks:    tasks,
		notifier: notifier,
		settings: settings,
		guardTTL: 24 * time.Hour,
		nodeID:   "local",
		logger:   logger.With().Str("component", "delivery_worker").Logger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run executes one delivery attempt. Failures are final.
func (w *DeliveryWorker) Run(ctx context.Context, data WorkData) Result {
	outcome, err := w.deliver(ctx, data)
	observability.NotificationWorkerRuns().WithLabelValues(outcome).Inc()
	if err != nil {
		w.logger.Error().Err(err).Str(WorkKeyTaskID, data[WorkKeyTaskID]).Msg("deadline notification failed")
		return ResultFailure
	}
	return ResultSuccess
}

func (w *DeliveryWorker) deliver(ctx context.Context, data WorkData) (string, error) {
	taskID, err := parseTaskID(data)
	if err != nil {
		return "failed", err
	}

	task, err := w.tasks.FindByID(ctx, taskID)
	if err != nil {
		return "failed", fmt.Errorf("load task %d: %w", taskID, err)
	}
	if task == nil {
		w.logger.Debug().Uint("task_id", taskID).Msg("task no longer exists")
		return "missing", nil
	}

	now := w.now()
	deadline, ok := task.DeadlineTime()
	if task.IsCompleted || task.NotificationSent || !ok || !deadline.After(now) {
		w.logger.Debug().
			Uint("task_id", taskID).
			Bool("completed", task.IsCompleted).
			Bool("sent", task.NotificationSent).
			Msg("deadline notification suppressed")
		return "suppressed", nil
	}

	claimed, err := w.claim(ctx, taskID, deadline)
	if err != nil {
		return "failed", err
	}
	if !claimed {
		w.logger.Info().Uint("task_id", taskID).Msg("deadline notification delivered by another node")
		return "suppressed", nil
	}

	if err := w.publish(ctx, *task, deadline, now); err != nil {
		w.release(ctx, taskID, deadline)
		return "failed", err
	}

	if err := w.tasks.MarkNotificationSent(ctx, taskID); err != nil {
		return "failed", fmt.Errorf("mark task %d notified: %w", taskID, err)
	}

	w.logger.Info().Uint("task_id", taskID).Msg("deadline notification delivered")
	return "delivered", nil
}

func (w *DeliveryWorker) publish(ctx context.Context, task models.Task, deadline, now time.Time) error {
	settings := w.settings.Snapshot(ctx)
	reminder := ComposeReminder(task.Title, RemainingMinutes(deadline, now))

	sound := settings.NotificationSound
	vibration := settings.NotificationVibration
	silent := settings.InQuietHours(now) || (!sound && !vibration)

	_, err := w.notifier.Publish(ctx, dto.NotificationPublishRequest{
		ChannelID: DeadlineChannelID,
		TaskID:    task.ID,
		TeacherID: task.TeacherID,
		Title:     reminder.Title,
		Body:      reminder.Body,
		Silent:    silent,
		Sound:     &sound,
		Vibration: &vibration,
		Metadata: map[string]interface{}{
			"minutes_remaining": reminder.Minutes,
			"band":              string(reminder.Band),
			"deadline":          deadline.UnixMilli(),
		},
	})
	if err != nil {
		return fmt.Errorf("publish notification for task %d: %w", task.ID, err)
	}
	return nil
}

// claim takes the cross-node guard for this task and deadline. Moving the
// deadline yields a fresh key, so a rescheduled reminder is not mistaken for a
// duplicate.
func (w *DeliveryWorker) claim(ctx context.Context, taskID uint, deadline time.Time) (bool, error) {
	if w.guard == nil {
		return true, nil
	}
	ok, err := w.guard.SetNX(ctx, deliveredKey(taskID, deadline), w.nodeID, w.guardTTL).Result()
	if err != nil {
		w.logger.Warn().Err(err).Uint("task_id", taskID).Msg("delivery guard unavailable, delivering locally")
		return true, nil
	}
	return ok, nil
}

func (w *DeliveryWorker) release(ctx context.Context, taskID uint, deadline time.Time) {
	if w.guard == nil {
		return
	}
	if err := w.guard.Del(ctx, deliveredKey(taskID, deadline)).Err(); err != nil {
		w.logger.Warn().Err(err).Uint("task_id", taskID).Msg("failed to release delivery guard")
	}
}

func deliveredKey(taskID uint, deadline time.Time) string {
	return deliveredKeyPrefix + strconv.FormatUint(uint64(taskID), 10) + ":" + strconv.FormatInt(deadline.UnixMilli(), 10)
}

func parseTaskID(data WorkData) (uint, error) {
	raw, ok := data[WorkKeyTaskID]
	if !ok || raw == "" {
		return 0, errMissingTaskID
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, errMissingTaskID
	}
	return uint(id), nil
}
