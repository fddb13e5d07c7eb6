package calendar

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"agendaengine/internal/domain"
)

var reClock = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)

// Zone binds date-key arithmetic to an IANA time zone.
//
// Offsets come from the Go tz database, so local midnight and wall-clock
// times stay correct across DST transitions.
type Zone struct {
	name string
	loc  *time.Location
}

// LoadZone resolves an IANA zone name. Empty, "Local" and unknown names fail
// with a ConfigurationError; there is no fallback to the host zone.
func LoadZone(name string) (Zone, error) {
	n := strings.TrimSpace(name)
	if n == "" {
		return Zone{}, &domain.ConfigurationError{Key: "timezone", Value: name, Err: errors.New("time zone required")}
	}
	if strings.EqualFold(n, "local") {
		return Zone{}, &domain.ConfigurationError{Key: "timezone", Value: name, Err: errors.New("host time zone is not allowed")}
	}
	loc, err := time.LoadLocation(n)
	if err != nil {
		return Zone{}, &domain.ConfigurationError{Key: "timezone", Value: name, Err: err}
	}
	return Zone{name: n, loc: loc}, nil
}

// UTC is the zone used when callers explicitly ask for UTC.
func UTC() Zone { return Zone{name: "UTC", loc: time.UTC} }

func (z Zone) Name() string { return z.name }

func (z Zone) IsZero() bool { return z.loc == nil }

func (z Zone) Location() *time.Location {
	if z.loc == nil {
		return time.UTC
	}
	return z.loc
}

// StartOfDay is the instant at which key's midnight occurs in the zone.
func (z Zone) StartOfDay(key string) (time.Time, error) {
	t, err := ParseDateKey(key)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, z.Location()), nil
}

// EndOfDay is the next local midnight minus one millisecond.
func (z Zone) EndOfDay(key string) (time.Time, error) {
	t, err := ParseDateKey(key)
	if err != nil {
		return time.Time{}, err
	}
	next := time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, z.Location())
	return next.Add(-time.Millisecond), nil
}

// Today returns the date-key of now as observed in the zone.
func (z Zone) Today(now time.Time) string {
	return now.In(z.Location()).Format(DateKeyLayout)
}

// DateKey returns the local calendar day of t.
func (z Zone) DateKey(t time.Time) string {
	return t.In(z.Location()).Format(DateKeyLayout)
}

// TimeParts returns the local hour and minute of t.
func (z Zone) TimeParts(t time.Time) (hour, minute int) {
	lt := t.In(z.Location())
	return lt.Hour(), lt.Minute()
}

// MinuteOfDay returns hour*60+minute of t in the zone.
func (z Zone) MinuteOfDay(t time.Time) int {
	h, m := z.TimeParts(t)
	return h*60 + m
}

// TimeOn returns the wall-clock instant "HH:MM" on key in the zone.
func (z Zone) TimeOn(key, clock string) (time.Time, error) {
	t, err := ParseDateKey(key)
	if err != nil {
		return time.Time{}, err
	}
	h, m, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), h, m, 0, 0, z.Location()), nil
}

// ParseClock parses an "H:MM" or "HH:MM" wall-clock time.
func ParseClock(clock string) (hour, minute int, err error) {
	s := strings.TrimSpace(clock)
	m := reClock.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, domain.Invalid("time", clock, errors.New("expected HH:MM"))
	}
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	if hour > 23 || minute > 59 {
		return 0, 0, domain.Invalid("time", clock, fmt.Errorf("out of range"))
	}
	return hour, minute, nil
}
