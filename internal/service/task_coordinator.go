package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/taskminder-go-api/internal/dto"
	"github.com/noah-isme/taskminder-go-api/internal/models"
)

// NotificationScheduler manages deadline notification jobs.
type NotificationScheduler interface {
	ScheduleNotification(ctx context.Context, task models.Task) (bool, error)
	CancelNotification(ctx context.Context, taskID uint)
	UpdateNotificationTime(ctx context.Context, taskID uint, minutes int) error
}

// TaskCoordinator pairs task and teacher mutations with the notification
// scheduling they imply.
type TaskCoordinator struct {
	tasks     TaskService
	teachers  TeacherService
	scheduler NotificationScheduler
	settings  SettingsReader
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewTaskCoordinator constructs the coordinator.
func NewTaskCoordinator(tasks TaskService, teachers TeacherService, scheduler NotificationScheduler, settings SettingsReader, validate *validator.Validate, logger zerolog.Logger) *TaskCoordinator {
	return &TaskCoordinator{
		tasks:     tasks,
		teachers:  teachers,
		scheduler: scheduler,
		settings:  settings,
		validator: validate,
		logger:    logger.With().Str("component", "task_coordinator").Logger(),
	}
}

// CreateTask inserts the task and schedules its reminder. Without an explicit
// lead time the notification_time preference applies.
func (c *TaskCoordinator) CreateTask(ctx context.Context, req dto.TaskCreateRequest) (models.Task, error) {
	if err := c.validator.Struct(req); err != nil {
		return models.Task{}, err
	}

	lead := req.NotifyBeforeMinutes
	if lead == nil {
		fallback := c.settings.Snapshot(ctx).NotificationTime
		lead = &fallback
	}

	id, err := c.tasks.AddTask(ctx, req.Title, req.Description, req.Deadline, req.TeacherID, lead)
	if err != nil {
		return models.Task{}, err
	}

	task, err := c.tasks.GetTask(ctx, id)
	if err != nil {
		return models.Task{}, err
	}

	c.schedule(ctx, *task)
	return *task, nil
}

// UpdateTask replaces the editable fields, clearing the sent flag when the
// deadline moves, then reschedules.
func (c *TaskCoordinator) UpdateTask(ctx context.Context, id uint, req dto.TaskUpdateRequest) (models.Task, error) {
	if err := c.validator.Struct(req); err != nil {
		return models.Task{}, err
	}

	task, err := c.tasks.GetTask(ctx, id)
	if err != nil {
		return models.Task{}, err
	}

	original := *task
	c.scheduler.CancelNotification(ctx, id)

	if !sameDeadline(task.Deadline, req.Deadline) {
		task.NotificationSent = false
	}
	task.Title = req.Title
	task.Description = req.Description
	task.Deadline = req.Deadline
	if req.NotifyBeforeMinutes != nil {
		task.NotifyBeforeMinutes = *req.NotifyBeforeMinutes
	}
	if req.UseCustomNotificationTime != nil {
		task.UseCustomNotificationTime = *req.UseCustomNotificationTime
	}

	if err := c.tasks.UpdateTask(ctx, task); err != nil {
		c.schedule(ctx, original)
		return models.Task{}, err
	}

	c.schedule(ctx, *task)
	return *task, nil
}

// SetCompletion toggles completion. Completing cancels the reminder, reopening
// schedules it again from the stored record.
func (c *TaskCoordinator) SetCompletion(ctx context.Context, id uint, completed bool) (models.Task, error) {
	task, err := c.tasks.UpdateTaskCompletion(ctx, id, completed)
	if err != nil {
		return models.Task{}, err
	}

	if completed {
		c.scheduler.CancelNotification(ctx, id)
		return *task, nil
	}

	reloaded, err := c.tasks.GetTask(ctx, id)
	if err != nil {
		return models.Task{}, err
	}
	c.schedule(ctx, *reloaded)
	return *reloaded, nil
}

// DeleteTask cancels the reminder before removing the task. Missing tasks
// report false.
func (c *TaskCoordinator) DeleteTask(ctx context.Context, id uint) (bool, error) {
	c.scheduler.CancelNotification(ctx, id)
	return c.tasks.DeleteTask(ctx, id)
}

// UpdateNotificationTime changes the lead time and reschedules.
func (c *TaskCoordinator) UpdateNotificationTime(ctx context.Context, id uint, minutes int) (models.Task, error) {
	if _, err := c.tasks.GetTask(ctx, id); err != nil {
		return models.Task{}, err
	}
	if err := c.scheduler.UpdateNotificationTime(ctx, id, minutes); err != nil {
		return models.Task{}, err
	}
	task, err := c.tasks.GetTask(ctx, id)
	if err != nil {
		return models.Task{}, err
	}
	return *task, nil
}

// DeleteTeacher cancels the reminders of every owned task, then deletes the
// teacher and its tasks.
func (c *TaskCoordinator) DeleteTeacher(ctx context.Context, id uint) (bool, error) {
	tasks, err := c.tasks.ListForTeacher(ctx, id)
	if err != nil {
		return false, err
	}
	for _, task := range tasks {
		c.scheduler.CancelNotification(ctx, task.ID)
	}
	return c.teachers.DeleteTeacher(ctx, id)
}

func (c *TaskCoordinator) schedule(ctx context.Context, task models.Task) {
	if _, err := c.scheduler.ScheduleNotification(ctx, task); err != nil {
		c.logger.Warn().Err(err).Uint("task_id", task.ID).Msg("failed to schedule deadline notification")
	}
}

func sameDeadline(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
