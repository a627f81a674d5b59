package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/taskminder-go-api/internal/scheduler"
	"github.com/noah-isme/taskminder-go-api/internal/utils"
)

// RearmTrigger starts a background re-arm of pending notifications.
type RearmTrigger interface {
	RunAsync(trigger string)
}

// JobLister lists pending notification jobs.
type JobLister interface {
	Snapshot() []scheduler.JobInfo
}

// SystemHandler exposes lifecycle hooks and scheduler introspection.
type SystemHandler struct {
	rearm  RearmTrigger
	jobs   JobLister
	logger zerolog.Logger
}

// NewSystemHandler constructs a system handler.
func NewSystemHandler(rearm RearmTrigger, jobs JobLister, logger zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		rearm:  rearm,
		jobs:   jobs,
		logger: logger.With().Str("component", "system_handler").Logger(),
	}
}

// Register binds system routes.
func (h *SystemHandler) Register(router fiber.Router) {
	router.Post("/boot-completed", h.bootCompleted)
	router.Get("/jobs", h.listJobs)
}

func (h *SystemHandler) bootCompleted(c *fiber.Ctx) error {
	h.rearm.RunAsync(scheduler.TriggerBoot)
	requestLogger(h.logger, c).Info().Msg("boot completed signal received")
	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "notification re-arm started", nil)
}

func (h *SystemHandler) listJobs(c *fiber.Ctx) error {
	jobs := h.jobs.Snapshot()
	return utils.SendSuccess(c, "pending notification jobs", fiber.Map{"count": len(jobs), "jobs": jobs})
}
