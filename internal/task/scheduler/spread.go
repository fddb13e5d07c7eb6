package scheduler

import (
	"math/rand/v2"
	"time"

	"github.com/robfig/cron/v3"
)

const maxStartupSpread = 30 * time.Second

// spreadSchedule delays the first run of an interval schedule by a random
// amount so jobs registered together do not fire together.
type spreadSchedule struct {
	base  cron.Schedule
	first time.Time
}

func (s *spreadSchedule) Next(t time.Time) time.Time {
	if t.Before(s.first) {
		return s.first
	}
	return s.base.Next(t)
}

func withStartupSpread(every time.Duration, now time.Time) cron.Schedule {
	spread := min(every, maxStartupSpread)
	if spread <= 0 {
		return cron.Every(every)
	}
	return &spreadSchedule{base: cron.Every(every), first: now.Add(every + rand.N(spread))}
}
