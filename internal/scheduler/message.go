package scheduler

import (
	"fmt"
	"time"
)

// Band names the phrasing used for a reminder, chosen by minutes remaining.
type Band string

// Reminder bands. Each threshold is inclusive.
const (
	BandWithinHour       Band = "within_hour"
	BandWithinThreeHours Band = "within_three_hours"
	BandWithinDay        Band = "within_day"
	BandWithinTwoDays    Band = "within_two_days"
	BandLater            Band = "later"
)

const (
	minutesPerHour = 60
	minutesPerDay  = 24 * minutesPerHour
)

// BandFor selects the phrasing band for the remaining minutes.
func BandFor(minutes int) Band {
	switch {
	case minutes <= minutesPerHour:
		return BandWithinHour
	case minutes <= 3*minutesPerHour:
		return BandWithinThreeHours
	case minutes <= minutesPerDay:
		return BandWithinDay
	case minutes <= 2*minutesPerDay:
		return BandWithinTwoDays
	default:
		return BandLater
	}
}

// RemainingMinutes rounds the time left until deadline to the nearest minute,
// never below one.
func RemainingMinutes(deadline, now time.Time) int {
	minutes := int(deadline.Sub(now).Round(time.Minute) / time.Minute)
	if minutes < 1 {
		return 1
	}
	return minutes
}

// Reminder is the rendered content of a deadline notification.
type Reminder struct {
	Title   string
	Body    string
	Band    Band
	Minutes int
}

// ComposeReminder renders the reminder for a task titled title with minutes left.
func ComposeReminder(title string, minutes int) Reminder {
	band := BandFor(minutes)
	return Reminder{
		Title:   "Reminder: " + title,
		Body:    reminderBody(band, minutes),
		Band:    band,
		Minutes: minutes,
	}
}

func reminderBody(band Band, minutes int) string {
	switch band {
	case BandWithinHour:
		return fmt.Sprintf("Hurry up! Only %s left until the deadline.", plural(minutes, "minute"))
	case BandWithinThreeHours:
		hours, rest := minutes/minutesPerHour, minutes%minutesPerHour
		if rest == 0 {
			return fmt.Sprintf("Only %s left until the deadline.", plural(hours, "hour"))
		}
		return fmt.Sprintf("Only %s and %s left until the deadline.", plural(hours, "hour"), plural(rest, "minute"))
	case BandWithinDay:
		return fmt.Sprintf("The deadline is in %s. Plan your time.", plural(minutes/minutesPerHour, "hour"))
	case BandWithinTwoDays:
		return fmt.Sprintf("Due tomorrow: %s left.", plural(minutes/minutesPerHour, "hour"))
	default:
		return fmt.Sprintf("The deadline is in %s.", plural(minutes/minutesPerDay, "day"))
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
