package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/taskminder-go-api/internal/observability"
)

func TestObservabilityCountsRouteTemplates(t *testing.T) {
	app := fiber.New()
	app.Use(Observability(zerolog.Nop()))
	app.Get("/api/v1/tasks/:id", func(c *fiber.Ctx) error {
		if c.Params("id") == "0" {
			return fiber.ErrBadRequest
		}
		return c.SendStatus(fiber.StatusOK)
	})

	requests := observability.APIRequests()
	errorsTotal := observability.APIErrors()
	okBefore := testutil.ToFloat64(requests.WithLabelValues(http.MethodGet, "/api/v1/tasks/:id", "200"))
	badBefore := testutil.ToFloat64(errorsTotal.WithLabelValues(http.MethodGet, "/api/v1/tasks/:id", "400"))

	for _, target := range []string{"/api/v1/tasks/1", "/api/v1/tasks/2", "/api/v1/tasks/0"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil))
		require.NoError(t, err)
		_ = resp.Body.Close()
	}

	require.Equal(t, okBefore+2, testutil.ToFloat64(requests.WithLabelValues(http.MethodGet, "/api/v1/tasks/:id", "200")))
	require.Equal(t, badBefore+1, testutil.ToFloat64(errorsTotal.WithLabelValues(http.MethodGet, "/api/v1/tasks/:id", "400")))
}

func TestObservabilityIgnoresNonAPIPaths(t *testing.T) {
	app := fiber.New()
	app.Use(Observability(zerolog.Nop()))
	app.Get("/metrics", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	before := testutil.ToFloat64(observability.APIRequests().WithLabelValues(http.MethodGet, "/metrics", "200"))
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	_ = resp.Body.Close()

	require.Equal(t, before, testutil.ToFloat64(observability.APIRequests().WithLabelValues(http.MethodGet, "/metrics", "200")))
}

func TestIsStreamingRoute(t *testing.T) {
	require.True(t, isStreamingRoute("/api/v1/notifications/stream"))
	require.True(t, isStreamingRoute("/api/v1/teachers/:id/tasks/ws"))
	require.False(t, isStreamingRoute("/api/v1/tasks/:id"))
}
