package models

// Teacher owns a list of tasks. Deleting a teacher removes its tasks through the
// cascading foreign key declared on Task.
type Teacher struct {
	ID               uint   `gorm:"primaryKey" json:"id"`
	Name             string `gorm:"size:255;not null" json:"name"`
	Subject          string `gorm:"size:255;not null;default:''" json:"subject"`
	DisplayNameFirst bool   `gorm:"not null;default:false" json:"display_name_first"`
	CreatedAt        int64  `gorm:"not null;autoCreateTime:milli" json:"created_at"`
}

// TableName pins the table name used by the change feed.
func (Teacher) TableName() string {
	return "teachers"
}
