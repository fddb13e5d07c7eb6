package calendar

import (
	"fmt"
	"time"
)

// Labels are English and independent of the host locale.

// HourLabel formats an hour of day on a 12-hour clock: 0 -> "12 AM", 13 -> "1 PM".
func HourLabel(hour int) string {
	switch {
	case hour == 0:
		return "12 AM"
	case hour == 12:
		return "12 PM"
	case hour < 12:
		return fmt.Sprintf("%d AM", hour)
	default:
		return fmt.Sprintf("%d PM", hour-12)
	}
}

// DayLabel: "Thursday, February 5, 2026".
func DayLabel(key string) (string, error) {
	return formatKey(key, "Monday, January 2, 2006")
}

// MonthLabel: "February 2026".
func MonthLabel(key string) (string, error) {
	return formatKey(key, "January 2006")
}

// DayNumberLabel: "5".
func DayNumberLabel(key string) (string, error) {
	return formatKey(key, "2")
}

// WeekdayShortLabel: "Thu".
func WeekdayShortLabel(key string) (string, error) {
	return formatKey(key, "Mon")
}

// WeekLabel renders an inclusive range, collapsing shared month/year:
// "Feb 2 - 8, 2026", "Jan 26 - Feb 1, 2026", "Dec 29, 2025 - Jan 4, 2026".
func WeekLabel(startKey, endKey string) (string, error) {
	start, err := ParseDateKey(startKey)
	if err != nil {
		return "", err
	}
	end, err := ParseDateKey(endKey)
	if err != nil {
		return "", err
	}
	if start.Year() == end.Year() {
		if start.Month() == end.Month() {
			return fmt.Sprintf("%s %d - %d, %d", start.Format("Jan"), start.Day(), end.Day(), end.Year()), nil
		}
		return fmt.Sprintf("%s - %s, %d", start.Format("Jan 2"), end.Format("Jan 2"), end.Year()), nil
	}
	return fmt.Sprintf("%s - %s", start.Format("Jan 2, 2006"), end.Format("Jan 2, 2006")), nil
}

// WeekdayLabels returns short weekday names, Monday first.
func WeekdayLabels() []string {
	// 2021-01-04 is a Monday.
	base := time.Date(2021, time.January, 4, 0, 0, 0, 0, time.UTC)
	out := make([]string, DaysPerWeek)
	for i := range out {
		out[i] = base.AddDate(0, 0, i).Format("Mon")
	}
	return out
}

func formatKey(key, layout string) (string, error) {
	t, err := ParseDateKey(key)
	if err != nil {
		return "", err
	}
	return t.Format(layout), nil
}
