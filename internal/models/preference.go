package models

import "time"

// Preference namespaces.
const (
	PreferenceNamespaceTheme    = "theme"
	PreferenceNamespaceSettings = "settings"
)

// Preference is one durable key-value entry of the settings store.
type Preference struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Namespace string    `gorm:"size:32;not null;uniqueIndex:idx_preference_key" json:"namespace"`
	Key       string    `gorm:"size:64;not null;uniqueIndex:idx_preference_key" json:"key"`
	Value     string    `gorm:"size:255;not null" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
