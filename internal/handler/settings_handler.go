package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/taskminder-go-api/internal/service"
	"github.com/noah-isme/taskminder-go-api/internal/utils"
)

// SettingsHandler exposes the preference snapshot.
type SettingsHandler struct {
	service service.SettingsService
	logger  zerolog.Logger
}

// NewSettingsHandler constructs a settings handler.
func NewSettingsHandler(service service.SettingsService, logger zerolog.Logger) *SettingsHandler {
	return &SettingsHandler{
		service: service,
		logger:  logger.With().Str("component", "settings_handler").Logger(),
	}
}

// Register binds settings routes.
func (h *SettingsHandler) Register(router fiber.Router) {
	router.Get("/", h.get)
	router.Patch("/", h.patch)
	router.Delete("/", h.reset)
}

func (h *SettingsHandler) get(c *fiber.Ctx) error {
	return utils.SendSuccess(c, "settings", h.service.Snapshot(requestContext(c)))
}

func (h *SettingsHandler) patch(c *fiber.Ctx) error {
	body := c.Body()
	if len(body) == 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "settings patch required")
	}

	settings, err := h.service.Apply(requestContext(c), body)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "settings updated", settings)
}

func (h *SettingsHandler) reset(c *fiber.Ctx) error {
	settings, err := h.service.Reset(requestContext(c))
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "settings reset", settings)
}
