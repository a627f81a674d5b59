package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/noah-isme/taskminder-go-api/internal/models"
)

// TeacherSort selects the ordering of teacher listings.
type TeacherSort int

// Supported teacher orderings, matching the teachers_sort_type preference.
const (
	TeacherSortByName TeacherSort = iota
	TeacherSortNewestFirst
	TeacherSortOldestFirst
)

func (s TeacherSort) orderClause() string {
	switch s {
	case TeacherSortNewestFirst:
		return "created_at DESC, id DESC"
	case TeacherSortOldestFirst:
		return "created_at ASC, id ASC"
	default:
		return "LOWER(name) ASC, id ASC"
	}
}

// TeacherRepository handles persistence for teacher entities.
type TeacherRepository interface {
	Create(ctx context.Context, teacher *models.Teacher) error
	Update(ctx context.Context, teacher *models.Teacher) error
	Delete(ctx context.Context, teacher *models.Teacher) error
	FindByID(ctx context.Context, id uint) (*models.Teacher, error)
	List(ctx context.Context, sort TeacherSort) ([]models.Teacher, error)
	Watch(ctx context.Context, sort TeacherSort) (<-chan []models.Teacher, error)
	ToggleDisplayOrder(ctx context.Context, id uint) error
}

type teacherRepository struct {
	db   *gorm.DB
	feed *ChangeFeed
}

// NewTeacherRepository constructs a repository backed by GORM.
func NewTeacherRepository(db *gorm.DB, feed *ChangeFeed) TeacherRepository {
	return &teacherRepository{db: db, feed: feed}
}

func (r *teacherRepository) Create(ctx context.Context, teacher *models.Teacher) error {
	return r.db.WithContext(ctx).Create(teacher).Error
}

func (r *teacherRepository) Update(ctx context.Context, teacher *models.Teacher) error {
	return r.db.WithContext(ctx).Save(teacher).Error
}

func (r *teacherRepository) Delete(ctx context.Context, teacher *models.Teacher) error {
	return r.db.WithContext(ctx).Delete(&models.Teacher{}, teacher.ID).Error
}

func (r *teacherRepository) FindByID(ctx context.Context, id uint) (*models.Teacher, error) {
	var teacher models.Teacher
	if err := r.db.WithContext(ctx).First(&teacher, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &teacher, nil
}

func (r *teacherRepository) List(ctx context.Context, sort TeacherSort) ([]models.Teacher, error) {
	var teachers []models.Teacher
	if err := r.db.WithContext(ctx).Order(sort.orderClause()).Find(&teachers).Error; err != nil {
		return nil, err
	}
	return teachers, nil
}

func (r *teacherRepository) Watch(ctx context.Context, sort TeacherSort) (<-chan []models.Teacher, error) {
	return watch(ctx, r.feed, models.Teacher{}.TableName(), func(ctx context.Context) ([]models.Teacher, error) {
		return r.List(ctx, sort)
	})
}

func (r *teacherRepository) ToggleDisplayOrder(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Model(&models.Teacher{}).
		Where("id = ?", id).
		Update("display_name_first", gorm.Expr("NOT display_name_first")).Error
}
