package models

import "time"

// DefaultNotifyBeforeMinutes is the lead time applied when none is supplied.
const DefaultNotifyBeforeMinutes = 60

// Task is an assignment attached to a teacher. Deadline and CreatedAt are epoch
// milliseconds; a nil Deadline means the task has no deadline.
type Task struct {
	ID                        uint     `gorm:"primaryKey" json:"id"`
	TeacherID                 uint     `gorm:"not null;index" json:"teacher_id"`
	Title                     string   `gorm:"size:255;not null" json:"title"`
	Description               string   `gorm:"type:text;not null;default:''" json:"description"`
	Deadline                  *int64   `gorm:"index" json:"deadline"`
	IsCompleted               bool     `gorm:"not null;default:false" json:"is_completed"`
	CreatedAt                 int64    `gorm:"not null;autoCreateTime:milli" json:"created_at"`
	NotifyBeforeMinutes       int      `gorm:"not null" json:"notify_before_minutes"`
	UseCustomNotificationTime bool     `gorm:"not null;default:false" json:"use_custom_notification_time"`
	NotificationSent          bool     `gorm:"not null;default:false" json:"notification_sent"`
	Teacher                   *Teacher `gorm:"foreignKey:TeacherID;references:ID;constraint:OnDelete:CASCADE,OnUpdate:CASCADE" json:"-"`
}

// TableName pins the table name used by the change feed.
func (Task) TableName() string {
	return "tasks"
}

// HasDeadline reports whether the task carries a deadline.
func (t Task) HasDeadline() bool {
	return t.Deadline != nil
}

// DeadlineTime converts the stored deadline to a time value.
func (t Task) DeadlineTime() (time.Time, bool) {
	if t.Deadline == nil {
		return time.Time{}, false
	}
	return time.UnixMilli(*t.Deadline), true
}

// FireTime is the deadline minus the lead time, or false when there is no deadline.
func (t Task) FireTime() (time.Time, bool) {
	deadline, ok := t.DeadlineTime()
	if !ok {
		return time.Time{}, false
	}
	return deadline.Add(-time.Duration(t.NotifyBeforeMinutes) * time.Minute), true
}

// Millis converts a time value into the epoch milliseconds stored on records.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}
