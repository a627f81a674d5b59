package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/taskminder-go-api/internal/dto"
	"github.com/noah-isme/taskminder-go-api/internal/models"
	"github.com/noah-isme/taskminder-go-api/internal/service"
	"github.com/noah-isme/taskminder-go-api/internal/utils"
)

// TeacherHandler exposes teacher endpoints and the per-teacher task stream.
type TeacherHandler struct {
	teachers    service.TeacherService
	tasks       service.TaskService
	coordinator *service.TaskCoordinator
	settings    service.SettingsReader
	logger      zerolog.Logger
}

// NewTeacherHandler constructs a teacher handler.
func NewTeacherHandler(teachers service.TeacherService, tasks service.TaskService, coordinator *service.TaskCoordinator, settings service.SettingsReader, logger zerolog.Logger) *TeacherHandler {
	return &TeacherHandler{
		teachers:    teachers,
		tasks:       tasks,
		coordinator: coordinator,
		settings:    settings,
		logger:      logger.With().Str("component", "teacher_handler").Logger(),
	}
}

// Register binds teacher routes.
func (h *TeacherHandler) Register(router fiber.Router) {
	router.Get("/", h.list)
	router.Post("/", h.create)
	router.Get("/:id", h.get)
	router.Put("/:id", h.update)
	router.Delete("/:id", h.delete)
	router.Post("/:id/swap-display", h.swapDisplay)
	router.Get("/:id/tasks", h.tasksForTeacher)
	router.Get("/:id/tasks/count", h.uncompletedCount)
	router.Get("/:id/tasks/ws", h.upgrade, websocket.New(h.streamTasks))
}

func (h *TeacherHandler) list(c *fiber.Ctx) error {
	teachers, err := h.teachers.ListTeachers(requestContext(c))
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "teachers", dto.NewTeacherResponseSlice(teachers))
}

func (h *TeacherHandler) create(c *fiber.Ctx) error {
	var req dto.TeacherRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	teacher, err := h.teachers.AddTeacher(requestContext(c), req)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "teacher created", dto.NewTeacherResponse(teacher))
}

func (h *TeacherHandler) get(c *fiber.Ctx) error {
	id, ok := parseID(c.Params("id"))
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid teacher id")
	}

	teacher, err := h.teachers.GetTeacher(requestContext(c), id)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "teacher", dto.NewTeacherResponse(teacher))
}

func (h *TeacherHandler) update(c *fiber.Ctx) error {
	id, ok := parseID(c.Params("id"))
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid teacher id")
	}

	var req dto.TeacherRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	teacher, err := h.teachers.UpdateTeacher(requestContext(c), id, req)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "teacher updated", dto.NewTeacherResponse(teacher))
}

func (h *TeacherHandler) delete(c *fiber.Ctx) error {
	id, ok := parseID(c.Params("id"))
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid teacher id")
	}

	deleted, err := h.coordinator.DeleteTeacher(requestContext(c), id)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	if !deleted {
		return utils.SendError(c, fiber.StatusNotFound, service.ErrTeacherNotFound.Error())
	}
	return utils.SendSuccess(c, "teacher deleted", nil)
}

func (h *TeacherHandler) swapDisplay(c *fiber.Ctx) error {
	id, ok := parseID(c.Params("id"))
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid teacher id")
	}

	teacher, err := h.teachers.ToggleDisplayOrder(requestContext(c), id)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "teacher display order swapped", dto.NewTeacherResponse(teacher))
}

func (h *TeacherHandler) tasksForTeacher(c *fiber.Ctx) error {
	id, ok := parseID(c.Params("id"))
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid teacher id")
	}

	ctx := requestContext(c)
	if _, err := h.teachers.GetTeacher(ctx, id); err != nil {
		return sendServiceError(c, h.logger, err)
	}

	tasks, err := h.tasks.ListForTeacher(ctx, id)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "tasks", dto.NewTaskResponseSlice(tasks))
}

func (h *TeacherHandler) uncompletedCount(c *fiber.Ctx) error {
	id, ok := parseID(c.Params("id"))
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid teacher id")
	}

	count, err := h.tasks.CountUncompleted(requestContext(c), id)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "uncompleted tasks", fiber.Map{"teacher_id": id, "uncompleted_count": count})
}

func (h *TeacherHandler) upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	c.Locals("request_ctx", requestContext(c))
	return c.Next()
}

// streamTasks pushes the teacher's task list whenever it changes, plus the
// uncompleted count on every change and on a polling interval.
func (h *TeacherHandler) streamTasks(conn *websocket.Conn) {
	defer func() { _ = conn.Close() }()

	teacherID, ok := parseID(conn.Params("id"))
	if !ok {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseUnsupportedData, "invalid teacher id"))
		return
	}

	base, _ := conn.Locals("request_ctx").(context.Context)
	if base == nil {
		base = context.Background()
	}
	ctx, cancel := context.WithCancel(base)
	defer cancel()

	tasks, err := h.tasks.WatchForTeacher(ctx, teacherID)
	if err != nil {
		h.logger.Error().Err(err).Uint("teacher_id", teacherID).Msg("failed to watch tasks")
		return
	}
	counts, err := h.tasks.WatchUncompletedCount(ctx, teacherID)
	if err != nil {
		h.logger.Error().Err(err).Uint("teacher_id", teacherID).Msg("failed to watch task count")
		return
	}

	// the reader only exists to notice the client going away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.settings.Snapshot(ctx).RefreshInterval())
	defer ticker.Stop()

	h.logger.Info().Uint("teacher_id", teacherID).Msg("task stream connected")
	defer h.logger.Info().Uint("teacher_id", teacherID).Msg("task stream disconnected")

	for {
		var event dto.TaskListEvent
		select {
		case <-ctx.Done():
			return
		case list, ok := <-tasks:
			if !ok {
				return
			}
			event = taskListEvent(teacherID, list)
		case count, ok := <-counts:
			if !ok {
				return
			}
			event = dto.TaskListEvent{Type: "count", TeacherID: teacherID, UncompletedCount: count}
		case <-ticker.C:
			count, err := h.tasks.CountUncompleted(ctx, teacherID)
			if err != nil {
				h.logger.Warn().Err(err).Uint("teacher_id", teacherID).Msg("failed to poll task count")
				continue
			}
			event = dto.TaskListEvent{Type: "count", TeacherID: teacherID, UncompletedCount: count}
		}

		if err := conn.WriteJSON(event); err != nil {
			h.logger.Debug().Err(err).Msg("task stream write failed")
			return
		}
	}
}

func taskListEvent(teacherID uint, tasks []models.Task) dto.TaskListEvent {
	var count int64
	for _, task := range tasks {
		if !task.IsCompleted {
			count++
		}
	}
	return dto.TaskListEvent{
		Type:             "tasks",
		TeacherID:        teacherID,
		Tasks:            dto.NewTaskResponseSlice(tasks),
		UncompletedCount: count,
	}
}
