package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/taskminder-go-api/internal/config"
	"github.com/noah-isme/taskminder-go-api/internal/database"
	"github.com/noah-isme/taskminder-go-api/internal/dto"
	"github.com/noah-isme/taskminder-go-api/internal/handler"
	"github.com/noah-isme/taskminder-go-api/internal/middleware"
	"github.com/noah-isme/taskminder-go-api/internal/models"
	"github.com/noah-isme/taskminder-go-api/internal/repository"
	"github.com/noah-isme/taskminder-go-api/internal/scheduler"
	"github.com/noah-isme/taskminder-go-api/internal/service"
	"github.com/noah-isme/taskminder-go-api/internal/utils"
)

type parkedTimer struct{}

func (parkedTimer) Stop() bool { return true }

// parked timers never fire, so enqueued jobs stay visible to the test.
func parked(time.Duration, func()) scheduler.Stopper { return parkedTimer{} }

type recordingRearm struct {
	mu       sync.Mutex
	triggers []string
}

func (r *recordingRearm) RunAsync(trigger string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.triggers = append(r.triggers, trigger)
}

func (r *recordingRearm) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.triggers...)
}

type failingPinger struct{}

func (failingPinger) PingContext(context.Context) error { return errors.New("connection refused") }

type apiFixture struct {
	app           *fiber.App
	queue         *scheduler.DelayedQueue
	teachers      service.TeacherService
	tasks         service.TaskService
	coordinator   *service.TaskCoordinator
	settings      service.SettingsService
	notifications service.NotificationService
	rearm         *recordingRearm
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	logger := zerolog.Nop()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.ConnectSQLite("file:api_" + name + "?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Teacher{}, &models.Task{}, &models.Notification{}, &models.Preference{}))

	feed := repository.NewChangeFeed()
	feed.Cascade(models.Teacher{}.TableName(), models.Task{}.TableName())
	require.NoError(t, feed.Attach(db))

	validate := validator.New()
	taskRepo := repository.NewTaskRepository(db, feed)
	teacherRepo := repository.NewTeacherRepository(db, feed)

	settings, err := service.NewSettingsService(repository.NewPreferenceRepository(db, feed), logger)
	require.NoError(t, err)

	notifications := service.NewNotificationService(repository.NewNotificationRepository(db), settings, nil, "", nil, validate, logger)
	require.NoError(t, notifications.RegisterChannel(service.DeadlineChannel()))

	tasks := service.NewTaskService(taskRepo, teacherRepo, logger)
	teachers := service.NewTeacherService(teacherRepo, settings, validate, logger)

	worker := scheduler.NewDeliveryWorker(taskRepo, notifications, settings, logger)
	queue := scheduler.NewDelayedQueue(worker, logger, scheduler.WithTimerFunc(parked))
	coordinator := service.NewTaskCoordinator(tasks, teachers, scheduler.NewScheduler(taskRepo, queue, logger), settings, validate, logger)
	rearm := &recordingRearm{}

	sqlDB, err := db.DB()
	require.NoError(t, err)

	app := fiber.New()
	app.Use(middleware.CorrelationID())

	api := app.Group("/api/v1")
	api.Get("/health", handler.HealthCheck(config.Config{AppName: "taskminder-test", AppEnv: "test"}, sqlDB, queue))
	handler.NewTeacherHandler(teachers, tasks, coordinator, settings, logger).Register(api.Group("/teachers"))
	handler.NewTaskHandler(coordinator, tasks, validate, logger).Register(api.Group("/tasks"))
	handler.NewSettingsHandler(settings, logger).Register(api.Group("/settings"))
	notificationHandler := handler.NewNotificationHandler(notifications, logger, 30*time.Second)
	notificationGroup := api.Group("/notifications")
	notificationGroup.Post("/test", notificationHandler.SendTest)
	notificationHandler.Register(notificationGroup)
	handler.NewSystemHandler(rearm, queue, logger).Register(api.Group("/system"))

	t.Cleanup(func() {
		queue.Close()
		_ = sqlDB.Close()
	})

	return &apiFixture{
		app:           app,
		queue:         queue,
		teachers:      teachers,
		tasks:         tasks,
		coordinator:   coordinator,
		settings:      settings,
		notifications: notifications,
		rearm:         rearm,
	}
}

func (f *apiFixture) teacher(t *testing.T, name string) models.Teacher {
	t.Helper()
	teacher, err := f.teachers.AddTeacher(context.Background(), dto.TeacherRequest{Name: name})
	require.NoError(t, err)
	return teacher
}

func (f *apiFixture) task(t *testing.T, teacherID uint, title string, deadline *int64, lead int) models.Task {
	t.Helper()
	task, err := f.coordinator.CreateTask(context.Background(), dto.TaskCreateRequest{
		TeacherID:           teacherID,
		Title:               title,
		Deadline:            deadline,
		NotifyBeforeMinutes: &lead,
	})
	require.NoError(t, err)
	return task
}

func (f *apiFixture) pending(taskID uint) bool {
	_, ok := f.queue.Pending(scheduler.NotificationKey(taskID))
	return ok
}

type envelope[T any] struct {
	Success bool               `json:"success"`
	Message string             `json:"message"`
	Data    T                  `json:"data"`
	Errors  []utils.FieldError `json:"errors"`
}

func call[T any](t *testing.T, app *fiber.App, method, target string, body interface{}) (int, envelope[T]) {
	t.Helper()

	var reader io.Reader
	switch v := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(v)
	default:
		payload, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, target, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out envelope[T]
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func deadlineIn(d time.Duration) *int64 {
	ms := time.Now().Add(d).UnixMilli()
	return &ms
}

func startFiberServer(t *testing.T, app *fiber.App) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		if err := app.Listener(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Logf("fiber listener stopped: %v", err)
		}
		close(done)
	}()

	t.Cleanup(func() {
		_ = app.ShutdownWithTimeout(time.Second)
		_ = listener.Close()
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	})

	return listener.Addr().String()
}
