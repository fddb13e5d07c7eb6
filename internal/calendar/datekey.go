package calendar

import (
	"errors"
	"regexp"
	"time"

	"agendaengine/internal/domain"
)

const (
	// DateKeyLayout is the time layout of a date-key (YYYY-MM-DD).
	DateKeyLayout = "2006-01-02"

	// DaysPerWeek and MonthGridSize are fixed view contract constants.
	DaysPerWeek   = 7
	MonthGridSize = 42

	// DefaultEventDurationMinutes is used when a timed item has no usable duration.
	DefaultEventDurationMinutes = 30

	MinutesPerDay = 24 * 60
)

var reDateKey = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Range is an inclusive pair of date-keys.
type Range struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// ParseDateKey returns UTC midnight of key.
func ParseDateKey(key string) (time.Time, error) {
	if !reDateKey.MatchString(key) {
		return time.Time{}, domain.Invalid("dateKey", key, errors.New("expected YYYY-MM-DD"))
	}
	t, err := time.Parse(DateKeyLayout, key)
	if err != nil {
		return time.Time{}, domain.Invalid("dateKey", key, err)
	}
	return t, nil
}

// ValidateDateKey is ParseDateKey without the result.
func ValidateDateKey(key string) error {
	_, err := ParseDateKey(key)
	return err
}

// FormatDateKey formats the UTC calendar day of t.
func FormatDateKey(t time.Time) string {
	return t.UTC().Format(DateKeyLayout)
}

// StartOfDayUTC is 00:00:00.000Z of key, the instant used as an agenda's storage date.
func StartOfDayUTC(key string) (time.Time, error) {
	return ParseDateKey(key)
}

// EndOfDayUTC is 23:59:59.999Z of key.
func EndOfDayUTC(key string) (time.Time, error) {
	t, err := ParseDateKey(key)
	if err != nil {
		return time.Time{}, err
	}
	return t.AddDate(0, 0, 1).Add(-time.Millisecond), nil
}

func AddDays(key string, n int) (string, error) {
	t, err := ParseDateKey(key)
	if err != nil {
		return "", err
	}
	return FormatDateKey(t.AddDate(0, 0, n)), nil
}

// AddMonths moves key by n calendar months, clamping the day to the
// last valid day of the target month (2026-01-31 +1 -> 2026-02-28).
func AddMonths(key string, n int) (string, error) {
	t, err := ParseDateKey(key)
	if err != nil {
		return "", err
	}
	total := int(t.Month()) - 1 + n
	year := t.Year() + floorDiv(total, 12)
	month := time.Month(total - floorDiv(total, 12)*12 + 1)
	day := min(t.Day(), daysIn(year, month))
	return FormatDateKey(time.Date(year, month, day, 0, 0, 0, 0, time.UTC)), nil
}

// WeekdayIndex returns Mon=0 .. Sun=6.
func WeekdayIndex(key string) (int, error) {
	t, err := ParseDateKey(key)
	if err != nil {
		return 0, err
	}
	return weekdayIndex(t), nil
}

// WeekRange returns the Monday-start week containing key.
func WeekRange(key string) (Range, error) {
	t, err := ParseDateKey(key)
	if err != nil {
		return Range{}, err
	}
	start := t.AddDate(0, 0, -weekdayIndex(t))
	return Range{
		Start: FormatDateKey(start),
		End:   FormatDateKey(start.AddDate(0, 0, DaysPerWeek-1)),
	}, nil
}

// WeekDays lists the 7 keys of the week containing key, Monday first.
func WeekDays(key string) ([]string, error) {
	r, err := WeekRange(key)
	if err != nil {
		return nil, err
	}
	start, _ := ParseDateKey(r.Start)
	return consecutive(start, DaysPerWeek), nil
}

func MonthRange(key string) (Range, error) {
	t, err := ParseDateKey(key)
	if err != nil {
		return Range{}, err
	}
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(t.Year(), t.Month(), daysIn(t.Year(), t.Month()), 0, 0, 0, 0, time.UTC)
	return Range{Start: FormatDateKey(first), End: FormatDateKey(last)}, nil
}

// MonthGridDays returns the fixed 6-row grid for key's month: 42 keys
// starting on the Monday on or before the 1st.
func MonthGridDays(key string) ([]string, error) {
	t, err := ParseDateKey(key)
	if err != nil {
		return nil, err
	}
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	start := first.AddDate(0, 0, -weekdayIndex(first))
	return consecutive(start, MonthGridSize), nil
}

// SameMonth compares the YYYY-MM prefix of two valid keys.
func SameMonth(a, b string) bool {
	return len(a) >= 7 && len(b) >= 7 && a[:7] == b[:7]
}

func consecutive(start time.Time, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = FormatDateKey(start.AddDate(0, 0, i))
	}
	return out
}

func weekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
