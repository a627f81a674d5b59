package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/taskminder-go-api/internal/models"
	"github.com/noah-isme/taskminder-go-api/internal/repository"
)

var (
	// ErrTaskNotFound indicates the task does not exist.
	ErrTaskNotFound = errors.New("task not found")
	// ErrInvalidTask indicates the task payload is unusable after sanitization.
	ErrInvalidTask = errors.New("task title is required")
)

// TaskService wraps task persistence with defaulting and sanitizing. It never
// touches notification jobs; callers own scheduling.
type TaskService interface {
	AddTask(ctx context.Context, title, description string, deadline *int64, teacherID uint, notifyBeforeMinutes *int) (uint, error)
	UpdateTask(ctx context.Context, task *models.Task) error
	UpdateTaskCompletion(ctx context.Context, id uint, completed bool) (*models.Task, error)
	DeleteTask(ctx context.Context, id uint) (bool, error)
	GetTask(ctx context.Context, id uint) (*models.Task, error)
	ListForTeacher(ctx context.Context, teacherID uint) ([]models.Task, error)
	WatchForTeacher(ctx context.Context, teacherID uint) (<-chan []models.Task, error)
	CountUncompleted(ctx context.Context, teacherID uint) (int64, error)
	WatchUncompletedCount(ctx context.Context, teacherID uint) (<-chan int64, error)
	MarkNotificationSent(ctx context.Context, id uint) error
}

type taskService struct {
	tasks     repository.TaskRepository
	teachers  repository.TeacherRepository
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewTaskService constructs the task service.
func NewTaskService(tasks repository.TaskRepository, teachers repository.TeacherRepository, logger zerolog.Logger) TaskService {
	return &taskService{
		tasks:     tasks,
		teachers:  teachers,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "task_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/taskminder-go-api/internal/service/task"),
	}
}

func (s *taskService) AddTask(ctx context.Context, title, description string, deadline *int64, teacherID uint, notifyBeforeMinutes *int) (uint, error) {
	ctx, span := s.tracer.Start(ctx, "tasks.add", trace.WithAttributes(
		attribute.Int64("teacher.id", int64(teacherID)),
	))
	defer span.End()

	teacher, err := s.teachers.FindByID(ctx, teacherID)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	if teacher == nil {
		return 0, ErrTeacherNotFound
	}

	lead := models.DefaultNotifyBeforeMinutes
	if notifyBeforeMinutes != nil {
		lead = *notifyBeforeMinutes
	}

	task := models.Task{
		TeacherID:           teacherID,
		Title:               s.clean(title),
		Description:         s.clean(description),
		Deadline:            deadline,
		NotifyBeforeMinutes: lead,
	}
	if task.Title == "" {
		return 0, ErrInvalidTask
	}

	if err := s.tasks.Create(ctx, &task); err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("insert task: %w", err)
	}

	s.logger.Debug().Uint("task_id", task.ID).Uint("teacher_id", teacherID).Msg("task added")
	return task.ID, nil
}

func (s *taskService) UpdateTask(ctx context.Context, task *models.Task) error {
	if task == nil {
		return ErrTaskNotFound
	}
	task.Title = s.clean(task.Title)
	task.Description = s.clean(task.Description)
	if task.Title == "" {
		return ErrInvalidTask
	}
	if task.Deadline == nil {
		task.NotificationSent = false
	}
	return s.tasks.Update(ctx, task)
}

// UpdateTaskCompletion is a plain read-modify-write; concurrent writers race and
// the last one wins.
func (s *taskService) UpdateTaskCompletion(ctx context.Context, id uint, completed bool) (*models.Task, error) {
	task, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}

	task.IsCompleted = completed
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *taskService) DeleteTask(ctx context.Context, id uint) (bool, error) {
	task, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		return false, err
	}
	if task == nil {
		return false, nil
	}
	if err := s.tasks.Delete(ctx, task); err != nil {
		return false, err
	}
	return true, nil
}

func (s *taskService) GetTask(ctx context.Context, id uint) (*models.Task, error) {
	task, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}
	return task, nil
}

func (s *taskService) ListForTeacher(ctx context.Context, teacherID uint) ([]models.Task, error) {
	return s.tasks.ListForTeacher(ctx, teacherID)
}

func (s *taskService) WatchForTeacher(ctx context.Context, teacherID uint) (<-chan []models.Task, error) {
	return s.tasks.WatchForTeacher(ctx, teacherID)
}

func (s *taskService) CountUncompleted(ctx context.Context, teacherID uint) (int64, error) {
	return s.tasks.CountUncompleted(ctx, teacherID)
}

func (s *taskService) WatchUncompletedCount(ctx context.Context, teacherID uint) (<-chan int64, error) {
	return s.tasks.WatchUncompletedCount(ctx, teacherID)
}

func (s *taskService) MarkNotificationSent(ctx context.Context, id uint) error {
	return s.tasks.MarkNotificationSent(ctx, id)
}

func (s *taskService) clean(value string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(value))
}
