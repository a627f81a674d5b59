package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification is a user-visible notification produced on a registered channel.
// TaskID is zero for diagnostic notifications.
type Notification struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	TaskID    uint              `gorm:"index" json:"task_id"`
	TeacherID uint              `gorm:"index" json:"teacher_id"`
	ChannelID string            `gorm:"size:64;not null" json:"channel_id"`
	Title     string            `gorm:"size:255" json:"title"`
	Body      string            `gorm:"type:text" json:"body"`
	Silent    bool              `gorm:"not null;default:false" json:"silent"`
	Sound     bool              `gorm:"not null;default:false" json:"sound"`
	Vibration bool              `gorm:"not null;default:false" json:"vibration"`
	Metadata  datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	Read      bool              `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}
