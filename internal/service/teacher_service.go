package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/taskminder-go-api/internal/dto"
	"github.com/noah-isme/taskminder-go-api/internal/models"
	"github.com/noah-isme/taskminder-go-api/internal/repository"
)

var (
	// ErrTeacherNotFound indicates the teacher does not exist.
	ErrTeacherNotFound = errors.New("teacher not found")
	// ErrInvalidTeacher indicates the teacher name is empty after sanitization.
	ErrInvalidTeacher = errors.New("teacher name is required")
)

// SettingsReader provides the current preference snapshot.
type SettingsReader interface {
	Snapshot(ctx context.Context) dto.AppSettings
}

// TeacherService exposes teacher operations.
type TeacherService interface {
	AddTeacher(ctx context.Context, req dto.TeacherRequest) (models.Teacher, error)
	UpdateTeacher(ctx context.Context, id uint, req dto.TeacherRequest) (models.Teacher, error)
	ToggleDisplayOrder(ctx context.Context, id uint) (models.Teacher, error)
	DeleteTeacher(ctx context.Context, id uint) (bool, error)
	GetTeacher(ctx context.Context, id uint) (models.Teacher, error)
	ListTeachers(ctx context.Context) ([]models.Teacher, error)
	WatchTeachers(ctx context.Context) (<-chan []models.Teacher, error)
}

type teacherService struct {
	repo      repository.TeacherRepository
	settings  SettingsReader
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewTeacherService constructs the teacher service.
func NewTeacherService(repo repository.TeacherRepository, settings SettingsReader, validate *validator.Validate, logger zerolog.Logger) TeacherService {
	return &teacherService{
		repo:      repo,
		settings:  settings,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "teacher_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/taskminder-go-api/internal/service/teacher"),
	}
}

func (s *teacherService) AddTeacher(ctx context.Context, req dto.TeacherRequest) (models.Teacher, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.Teacher{}, err
	}

	ctx, span := s.tracer.Start(ctx, "teachers.add")
	defer span.End()

	displayNameFirst := s.settings.Snapshot(ctx).DefaultShowNameFirst
	if req.DisplayNameFirst != nil {
		displayNameFirst = *req.DisplayNameFirst
	}

	teacher := models.Teacher{
		Name:             s.clean(req.Name),
		Subject:          s.clean(req.Subject),
		DisplayNameFirst: displayNameFirst,
	}
	if teacher.Name == "" {
		return models.Teacher{}, ErrInvalidTeacher
	}

	if err := s.repo.Create(ctx, &teacher); err != nil {
		span.RecordError(err)
		return models.Teacher{}, err
	}
	span.SetAttributes(attribute.Int64("teacher.id", int64(teacher.ID)))
	return teacher, nil
}

func (s *teacherService) UpdateTeacher(ctx context.Context, id uint, req dto.TeacherRequest) (models.Teacher, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.Teacher{}, err
	}

	teacher, err := s.GetTeacher(ctx, id)
	if err != nil {
		return models.Teacher{}, err
	}

	teacher.Name = s.clean(req.Name)
	teacher.Subject = s.clean(req.Subject)
	if req.DisplayNameFirst != nil {
		teacher.DisplayNameFirst = *req.DisplayNameFirst
	}
	if teacher.Name == "" {
		return models.Teacher{}, ErrInvalidTeacher
	}

	if err := s.repo.Update(ctx, &teacher); err != nil {
		return models.Teacher{}, err
	}
	return teacher, nil
}

func (s *teacherService) ToggleDisplayOrder(ctx context.Context, id uint) (models.Teacher, error) {
	if _, err := s.GetTeacher(ctx, id); err != nil {
		return models.Teacher{}, err
	}
	if err := s.repo.ToggleDisplayOrder(ctx, id); err != nil {
		return models.Teacher{}, err
	}
	return s.GetTeacher(ctx, id)
}

// DeleteTeacher removes the teacher; owned tasks go with it through the
// foreign key cascade.
func (s *teacherService) DeleteTeacher(ctx context.Context, id uint) (bool, error) {
	teacher, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return false, err
	}
	if teacher == nil {
		return false, nil
	}
	if err := s.repo.Delete(ctx, teacher); err != nil {
		return false, err
	}
	s.logger.Info().Uint("teacher_id", id).Msg("teacher deleted")
	return true, nil
}

func (s *teacherService) GetTeacher(ctx context.Context, id uint) (models.Teacher, error) {
	teacher, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return models.Teacher{}, err
	}
	if teacher == nil {
		return models.Teacher{}, ErrTeacherNotFound
	}
	return *teacher, nil
}

func (s *teacherService) ListTeachers(ctx context.Context) ([]models.Teacher, error) {
	return s.repo.List(ctx, s.sortOrder(ctx))
}

func (s *teacherService) WatchTeachers(ctx context.Context) (<-chan []models.Teacher, error) {
	return s.repo.Watch(ctx, s.sortOrder(ctx))
}

func (s *teacherService) sortOrder(ctx context.Context) repository.TeacherSort {
	switch s.settings.Snapshot(ctx).TeachersSortType {
	case 1:
		return repository.TeacherSortNewestFirst
	case 2:
		return repository.TeacherSortOldestFirst
	default:
		return repository.TeacherSortByName
	}
}

func (s *teacherService) clean(value string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(value))
}
