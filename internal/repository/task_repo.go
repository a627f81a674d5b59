package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/noah-isme/taskminder-go-api/internal/models"
)

const taskListOrder = "deadline IS NULL, deadline ASC, created_at DESC"

// TaskRepository handles persistence for task entities.
type TaskRepository interface {
	WatchForTeacher(ctx context.Context, teacherID uint) (<-chan []models.Task, error)
	ListForTeacher(ctx context.Context, teacherID uint) ([]models.Task, error)
	FindByID(ctx context.Context, id uint) (*models.Task, error)
	Create(ctx context.Context, task *models.Task) error
	Update(ctx context.Context, task *models.Task) error
	Delete(ctx context.Context, task *models.Task) error
	CountUncompleted(ctx context.Context, teacherID uint) (int64, error)
	WatchUncompletedCount(ctx context.Context, teacherID uint) (<-chan int64, error)
	ListPendingNotifications(ctx context.Context) ([]models.Task, error)
	MarkNotificationSent(ctx context.Context, id uint) error
	UpdateNotificationTime(ctx context.Context, id uint, minutes int) error
	ListActiveWithDeadline(ctx context.Context) ([]models.Task, error)
}

type taskRepository struct {
	db   *gorm.DB
	feed *ChangeFeed
}

// NewTaskRepository constructs a repository backed by GORM. The feed must be
// attached to db for watches to observe writes.
func NewTaskRepository(db *gorm.DB, feed *ChangeFeed) TaskRepository {
	return &taskRepository{db: db, feed: feed}
}

func (r *taskRepository) WatchForTeacher(ctx context.Context, teacherID uint) (<-chan []models.Task, error) {
	return watch(ctx, r.feed, models.Task{}.TableName(), func(ctx context.Context) ([]models.Task, error) {
		return r.ListForTeacher(ctx, teacherID)
	})
}

func (r *taskRepository) ListForTeacher(ctx context.Context, teacherID uint) ([]models.Task, error) {
	var tasks []models.Task
	if err := r.db.WithContext(ctx).
		Where("teacher_id = ?", teacherID).
		Order(taskListOrder).
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *taskRepository) FindByID(ctx context.Context, id uint) (*models.Task, error) {
	var task models.Task
	if err := r.db.WithContext(ctx).First(&task, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &task, nil
}

func (r *taskRepository) Create(ctx context.Context, task *models.Task) error {
	return r.db.WithContext(ctx).Omit("Teacher").Create(task).Error
}

func (r *taskRepository) Update(ctx context.Context, task *models.Task) error {
	return r.db.WithContext(ctx).Omit("Teacher").Save(task).Error
}

func (r *taskRepository) Delete(ctx context.Context, task *models.Task) error {
	return r.db.WithContext(ctx).Delete(&models.Task{}, task.ID).Error
}

func (r *taskRepository) CountUncompleted(ctx context.Context, teacherID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Task{}).
		Where("teacher_id = ? AND is_completed = ?", teacherID, false).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *taskRepository) WatchUncompletedCount(ctx context.Context, teacherID uint) (<-chan int64, error) {
	return watch(ctx, r.feed, models.Task{}.TableName(), func(ctx context.Context) (int64, error) {
		return r.CountUncompleted(ctx, teacherID)
	})
}

func (r *taskRepository) ListPendingNotifications(ctx context.Context) ([]models.Task, error) {
	var tasks []models.Task
	if err := r.db.WithContext(ctx).
		Where("deadline IS NOT NULL AND is_completed = ? AND notification_sent = ?", false, false).
		Order("deadline ASC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *taskRepository) MarkNotificationSent(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Model(&models.Task{}).
		Where("id = ? AND deadline IS NOT NULL", id).
		Update("notification_sent", true).Error
}

func (r *taskRepository) UpdateNotificationTime(ctx context.Context, id uint, minutes int) error {
	return r.db.WithContext(ctx).
		Model(&models.Task{}).
		Where("id = ?", id).
		Update("notify_before_minutes", minutes).Error
}

func (r *taskRepository) ListActiveWithDeadline(ctx context.Context) ([]models.Task, error) {
	var tasks []models.Task
	if err := r.db.WithContext(ctx).
		Where("deadline IS NOT NULL AND is_completed = ?", false).
		Order("deadline ASC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}
