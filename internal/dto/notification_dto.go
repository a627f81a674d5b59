package dto

import (
	"time"

	"github.com/noah-isme/taskminder-go-api/internal/models"
)

// NotificationPublishRequest describes a notification to display on a channel.
type NotificationPublishRequest struct {
	ChannelID string                 `json:"channel_id" validate:"required,max=64"`
	TaskID    uint                   `json:"task_id"`
	TeacherID uint                   `json:"teacher_id"`
	Title     string                 `json:"title" validate:"required,min=1,max=255"`
	Body      string                 `json:"body" validate:"required,min=1,max=2000"`
	Silent    bool                   `json:"silent"`
	Sound     *bool                  `json:"sound,omitempty"`
	Vibration *bool                  `json:"vibration,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NotificationResponse represents notification data returned to clients.
type NotificationResponse struct {
	ID        uint                   `json:"id"`
	TaskID    uint                   `json:"task_id,omitempty"`
	TeacherID uint                   `json:"teacher_id,omitempty"`
	ChannelID string                 `json:"channel_id"`
	Title     string                 `json:"title"`
	Body      string                 `json:"body"`
	Silent    bool                   `json:"silent"`
	Sound     bool                   `json:"sound"`
	Vibration bool                   `json:"vibration"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Read      bool                   `json:"read"`
	CreatedAt time.Time              `json:"created_at"`
}

// NewNotificationResponse converts a notification model to DTO.
func NewNotificationResponse(model models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        model.ID,
		TaskID:    model.TaskID,
		TeacherID: model.TeacherID,
		ChannelID: model.ChannelID,
		Title:     model.Title,
		Body:      model.Body,
		Silent:    model.Silent,
		Sound:     model.Sound,
		Vibration: model.Vibration,
		Metadata:  map[string]interface{}(model.Metadata),
		Read:      model.Read,
		CreatedAt: model.CreatedAt,
	}
}

// NewNotificationResponseSlice converts a slice of models into DTOs.
func NewNotificationResponseSlice(items []models.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewNotificationResponse(item))
	}
	return out
}

// TestNotificationResponse reports the outcome of a diagnostic notification.
type TestNotificationResponse struct {
	Delivered    bool                  `json:"delivered"`
	Notification *NotificationResponse `json:"notification,omitempty"`
	Error        string                `json:"error,omitempty"`
}
