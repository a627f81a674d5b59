package handler_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/taskminder-go-api/internal/config"
	"github.com/noah-isme/taskminder-go-api/internal/handler"
	"github.com/noah-isme/taskminder-go-api/internal/scheduler"
)

func TestSystemHandlerBootCompletedTriggersRearm(t *testing.T) {
	f := newAPIFixture(t)

	status, body := call[any](t, f.app, http.MethodPost, "/api/v1/system/boot-completed", nil)
	require.Equal(t, http.StatusAccepted, status)
	require.True(t, body.Success)
	require.Equal(t, []string{scheduler.TriggerBoot}, f.rearm.seen())
}

func TestSystemHandlerListsJobs(t *testing.T) {
	f := newAPIFixture(t)
	teacher := f.teacher(t, "Ms. Rahma")
	late := f.task(t, teacher.ID, "Late", deadlineIn(5*time.Hour), 60)
	early := f.task(t, teacher.ID, "Early", deadlineIn(2*time.Hour), 60)

	type jobsPayload struct {
		Count int                 `json:"count"`
		Jobs  []scheduler.JobInfo `json:"jobs"`
	}
	status, body := call[jobsPayload](t, f.app, http.MethodGet, "/api/v1/system/jobs", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 2, body.Data.Count)
	require.Equal(t, scheduler.NotificationKey(early.ID), body.Data.Jobs[0].Key)
	require.Equal(t, scheduler.NotificationKey(late.ID), body.Data.Jobs[1].Key)
}

func TestHealthCheck(t *testing.T) {
	f := newAPIFixture(t)
	teacher := f.teacher(t, "Ms. Rahma")
	f.task(t, teacher.ID, "Essay", deadlineIn(2*time.Hour), 60)

	status, body := call[handler.HealthResponse](t, f.app, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ok", body.Data.Status)
	require.Equal(t, "up", body.Data.Database)
	require.Equal(t, 1, body.Data.PendingJobs)
	require.Equal(t, "taskminder-test", body.Data.Service)
}

func TestHealthCheckDegraded(t *testing.T) {
	app := fiber.New()
	app.Get("/health", handler.HealthCheck(config.Config{AppName: "taskminder-test"}, failingPinger{}, nil))

	status, body := call[handler.HealthResponse](t, app, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusServiceUnavailable, status)
	require.False(t, body.Success)
	require.Equal(t, "down", body.Data.Database)
}
