package service

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/taskminder-go-api/internal/database"
	"github.com/noah-isme/taskminder-go-api/internal/dto"
	"github.com/noah-isme/taskminder-go-api/internal/models"
	"github.com/noah-isme/taskminder-go-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

type serviceFixture struct {
	db            *gorm.DB
	feed          *repository.ChangeFeed
	tasks         repository.TaskRepository
	teachers      repository.TeacherRepository
	preferences   repository.PreferenceRepository
	notifications repository.NotificationRepository
	validate      *validator.Validate
}

func setupServiceFixture(t *testing.T) serviceFixture {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.ConnectSQLite("file:svc_" + name + "?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Teacher{}, &models.Task{}, &models.Notification{}, &models.Preference{}))

	feed := repository.NewChangeFeed()
	feed.Cascade(models.Teacher{}.TableName(), models.Task{}.TableName())
	require.NoError(t, feed.Attach(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return serviceFixture{
		db:            db,
		feed:          feed,
		tasks:         repository.NewTaskRepository(db, feed),
		teachers:      repository.NewTeacherRepository(db, feed),
		preferences:   repository.NewPreferenceRepository(db, feed),
		notifications: repository.NewNotificationRepository(db),
		validate:      validator.New(),
	}
}

func (f serviceFixture) teacher(t *testing.T, name string) models.Teacher {
	t.Helper()
	teacher := models.Teacher{Name: name}
	require.NoError(t, f.teachers.Create(context.Background(), &teacher))
	return teacher
}

type fixedSettings struct {
	settings dto.AppSettings
}

func (s fixedSettings) Snapshot(context.Context) dto.AppSettings {
	return s.settings
}

func defaultSettings() fixedSettings {
	return fixedSettings{settings: dto.DefaultAppSettings()}
}

type schedulerCall struct {
	op      string
	taskID  uint
	minutes int
}

// recordingScheduler records calls and answers like the real scheduler for
// tasks with a future fire time.
type recordingScheduler struct {
	mu      sync.Mutex
	calls   []schedulerCall
	pending map[uint]bool
	tasks   repository.TaskRepository
}

func newRecordingScheduler(tasks repository.TaskRepository) *recordingScheduler {
	return &recordingScheduler{pending: make(map[uint]bool), tasks: tasks}
}

func (s *recordingScheduler) ScheduleNotification(_ context.Context, task models.Task) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, schedulerCall{op: "schedule", taskID: task.ID})
	fire, ok := task.FireTime()
	if task.IsCompleted || task.NotificationSent || !ok || !fire.After(time.Now()) {
		return false, nil
	}
	s.pending[task.ID] = true
	return true, nil
}

func (s *recordingScheduler) CancelNotification(_ context.Context, taskID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, schedulerCall{op: "cancel", taskID: taskID})
	delete(s.pending, taskID)
}

func (s *recordingScheduler) UpdateNotificationTime(ctx context.Context, taskID uint, minutes int) error {
	s.mu.Lock()
	s.calls = append(s.calls, schedulerCall{op: "update_time", taskID: taskID, minutes: minutes})
	s.mu.Unlock()
	return s.tasks.UpdateNotificationTime(ctx, taskID, minutes)
}

func (s *recordingScheduler) isPending(taskID uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending[taskID]
}

func (s *recordingScheduler) ops() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.calls))
	for _, call := range s.calls {
		out = append(out, call.op)
	}
	return out
}

func deadlineFromNow(d time.Duration) *int64 {
	ms := time.Now().Add(d).UnixMilli()
	return &ms
}

func intPtr(v int) *int {
	return &v
}

func boolPtr(v bool) *bool {
	return &v
}
