package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/taskminder-go-api/internal/dto"
	"github.com/noah-isme/taskminder-go-api/internal/service"
	"github.com/noah-isme/taskminder-go-api/internal/utils"
)

// TaskHandler exposes task endpoints. Every mutation goes through the
// coordinator so notification jobs follow the stored state.
type TaskHandler struct {
	coordinator *service.TaskCoordinator
	tasks       service.TaskService
	validator   *validator.Validate
	logger      zerolog.Logger
}

// NewTaskHandler constructs a task handler.
func NewTaskHandler(coordinator *service.TaskCoordinator, tasks service.TaskService, validate *validator.Validate, logger zerolog.Logger) *TaskHandler {
	return &TaskHandler{
		coordinator: coordinator,
		tasks:       tasks,
		validator:   validate,
		logger:      logger.With().Str("component", "task_handler").Logger(),
	}
}

// Register binds task routes.
func (h *TaskHandler) Register(router fiber.Router) {
	router.Post("/", h.create)
	router.Get("/:id", h.get)
	router.Put("/:id", h.update)
	router.Delete("/:id", h.delete)
	router.Patch("/:id/completion", h.completion)
	router.Patch("/:id/notification-time", h.notificationTime)
}

func (h *TaskHandler) create(c *fiber.Ctx) error {
	var req dto.TaskCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	task, err := h.coordinator.CreateTask(requestContext(c), req)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "task created", dto.NewTaskResponse(task))
}

func (h *TaskHandler) get(c *fiber.Ctx) error {
	id, ok := parseID(c.Params("id"))
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid task id")
	}

	task, err := h.tasks.GetTask(requestContext(c), id)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "task", dto.NewTaskResponse(*task))
}

func (h *TaskHandler) update(c *fiber.Ctx) error {
	id, ok := parseID(c.Params("id"))
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid task id")
	}

	var req dto.TaskUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	task, err := h.coordinator.UpdateTask(requestContext(c), id, req)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "task updated", dto.NewTaskResponse(task))
}

func (h *TaskHandler) delete(c *fiber.Ctx) error {
	id, ok := parseID(c.Params("id"))
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid task id")
	}

	deleted, err := h.coordinator.DeleteTask(requestContext(c), id)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	if !deleted {
		return utils.SendError(c, fiber.StatusNotFound, service.ErrTaskNotFound.Error())
	}
	return utils.SendSuccess(c, "task deleted", nil)
}

func (h *TaskHandler) completion(c *fiber.Ctx) error {
	id, ok := parseID(c.Params("id"))
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid task id")
	}

	var req dto.TaskCompletionRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validator.Struct(req); err != nil {
		return utils.SendValidationError(c, err)
	}

	task, err := h.coordinator.SetCompletion(requestContext(c), id, *req.IsCompleted)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "task completion updated", dto.NewTaskResponse(task))
}

func (h *TaskHandler) notificationTime(c *fiber.Ctx) error {
	id, ok := parseID(c.Params("id"))
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid task id")
	}

	var req dto.NotificationTimeRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validator.Struct(req); err != nil {
		return utils.SendValidationError(c, err)
	}

	task, err := h.coordinator.UpdateNotificationTime(requestContext(c), id, *req.Minutes)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "notification time updated", dto.NewTaskResponse(task))
}
