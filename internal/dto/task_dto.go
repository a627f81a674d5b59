package dto

import "github.com/noah-isme/taskminder-go-api/internal/models"

// TaskCreateRequest is the payload for adding a task.
type TaskCreateRequest struct {
	TeacherID           uint   `json:"teacher_id" validate:"required"`
	Title               string `json:"title" validate:"required,min=1,max=255"`
	Description         string `json:"description" validate:"max=4000"`
	Deadline            *int64 `json:"deadline" validate:"omitempty,gt=0"`
	NotifyBeforeMinutes *int   `json:"notify_before_minutes" validate:"omitempty,min=1,max=43200"`
}

// TaskUpdateRequest replaces the editable fields of a task.
type TaskUpdateRequest struct {
	Title                     string `json:"title" validate:"required,min=1,max=255"`
	Description               string `json:"description" validate:"max=4000"`
	Deadline                  *int64 `json:"deadline" validate:"omitempty,gt=0"`
	NotifyBeforeMinutes       *int   `json:"notify_before_minutes" validate:"omitempty,min=1,max=43200"`
	UseCustomNotificationTime *bool  `json:"use_custom_notification_time"`
}

// TaskCompletionRequest toggles task completion.
type TaskCompletionRequest struct {
	IsCompleted *bool `json:"is_completed" validate:"required"`
}

// NotificationTimeRequest updates the lead time of a task.
type NotificationTimeRequest struct {
	Minutes *int `json:"minutes" validate:"required,min=1,max=43200"`
}

// TaskResponse represents a task returned to clients.
type TaskResponse struct {
	ID                        uint   `json:"id"`
	TeacherID                 uint   `json:"teacher_id"`
	Title                     string `json:"title"`
	Description               string `json:"description"`
	Deadline                  *int64 `json:"deadline"`
	IsCompleted               bool   `json:"is_completed"`
	CreatedAt                 int64  `json:"created_at"`
	NotifyBeforeMinutes       int    `json:"notify_before_minutes"`
	UseCustomNotificationTime bool   `json:"use_custom_notification_time"`
	NotificationSent          bool   `json:"notification_sent"`
}

// NewTaskResponse converts a task model to DTO.
func NewTaskResponse(task models.Task) TaskResponse {
	return TaskResponse{
		ID:                        task.ID,
		TeacherID:                 task.TeacherID,
		Title:                     task.Title,
		Description:               task.Description,
		Deadline:                  task.Deadline,
		IsCompleted:               task.IsCompleted,
		CreatedAt:                 task.CreatedAt,
		NotifyBeforeMinutes:       task.NotifyBeforeMinutes,
		UseCustomNotificationTime: task.UseCustomNotificationTime,
		NotificationSent:          task.NotificationSent,
	}
}

// NewTaskResponseSlice converts a slice of models into DTOs.
func NewTaskResponseSlice(tasks []models.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, NewTaskResponse(task))
	}
	return out
}

// TaskListEvent is pushed over the task-list websocket.
type TaskListEvent struct {
	Type             string         `json:"type"`
	TeacherID        uint           `json:"teacher_id"`
	Tasks            []TaskResponse `json:"tasks,omitempty"`
	UncompletedCount int64          `json:"uncompleted_count"`
}
