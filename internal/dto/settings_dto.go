package dto

import "time"

// AppSettings is the full preference snapshot with defaults applied.
type AppSettings struct {
	ColorScheme           int     `json:"color_scheme"`
	AnimationIntensity    float64 `json:"animation_intensity"`
	TextSize              int     `json:"text_size"`
	DateFormat            int     `json:"date_format"`
	TeachersSortType      int     `json:"teachers_sort_type"`
	DefaultShowNameFirst  bool    `json:"default_show_name_first"`
	NotificationTime      int     `json:"notification_time"`
	NotificationSound     bool    `json:"notification_sound"`
	NotificationVibration bool    `json:"notification_vibration"`
	DoNotDisturbEnabled   bool    `json:"do_not_disturb_enabled"`
	DoNotDisturbStart     int     `json:"do_not_disturb_start"`
	DoNotDisturbEnd       int     `json:"do_not_disturb_end"`
	UpdateInterval        int     `json:"update_interval"`
	SimplifiedMode        bool    `json:"simplified_mode"`
	IsDarkTheme           bool    `json:"is_dark_theme"`
}

// DefaultAppSettings returns the values used for absent preference keys.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		ColorScheme:           0,
		AnimationIntensity:    1.0,
		TextSize:              1,
		DateFormat:            0,
		TeachersSortType:      0,
		DefaultShowNameFirst:  true,
		NotificationTime:      60,
		NotificationSound:     true,
		NotificationVibration: true,
		DoNotDisturbEnabled:   false,
		DoNotDisturbStart:     22,
		DoNotDisturbEnd:       7,
		UpdateInterval:        2000,
		SimplifiedMode:        false,
		IsDarkTheme:           false,
	}
}

// InQuietHours reports whether t falls inside the do-not-disturb window. The
// window is [start, end) in local hours and may wrap past midnight. Equal start
// and end hours mean the whole day.
func (s AppSettings) InQuietHours(t time.Time) bool {
	if !s.DoNotDisturbEnabled {
		return false
	}
	hour := t.Hour()
	start, end := s.DoNotDisturbStart, s.DoNotDisturbEnd
	switch {
	case start == end:
		return true
	case start < end:
		return hour >= start && hour < end
	default:
		return hour >= start || hour < end
	}
}

// RefreshInterval converts update_interval to a duration, never below 250ms.
func (s AppSettings) RefreshInterval() time.Duration {
	interval := time.Duration(s.UpdateInterval) * time.Millisecond
	if interval < 250*time.Millisecond {
		return 250 * time.Millisecond
	}
	return interval
}
