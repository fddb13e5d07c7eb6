// Package routine turns recurring routines into concrete agenda items and
// alarm plans for a day.
package routine

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"agendaengine/internal/calendar"
	"agendaengine/internal/domain"
)

const (
	WakeTaskName  = "Wake up time"
	SleepTaskName = "Sleep time"
)

// BuildTasks generates the tasks of r:
//   - STEP splits the numeric target into SeparateInto segments, the first
//     remainder segments carrying one extra step;
//   - SLEEP splits "HH:MM-HH:MM" into a wake task and a sleep task;
//   - anything else yields one task mirroring the routine.
func BuildTasks(r domain.Routine) ([]domain.RoutineTaskInput, error) {
	switch r.Type {
	case domain.RoutineStep:
		return stepTasks(r)
	case domain.RoutineSleep:
		return sleepTasks(r)
	default:
		return []domain.RoutineTaskInput{{RoutineID: r.ID, Name: r.Name, Target: r.Target}}, nil
	}
}

func stepTasks(r domain.Routine) ([]domain.RoutineTaskInput, error) {
	total, err := strconv.Atoi(strings.TrimSpace(r.Target))
	if err != nil || total <= 0 {
		return nil, domain.Invalid("target", r.Target, errors.New("step target must be a positive whole number"))
	}
	parts := max(1, r.SeparateInto)
	base, remainder := total/parts, total%parts

	out := make([]domain.RoutineTaskInput, parts)
	for i := range out {
		chunk := base
		if i < remainder {
			chunk++
		}
		out[i] = domain.RoutineTaskInput{
			RoutineID: r.ID,
			Name:      fmt.Sprintf("Steps segment %d", i+1),
			Target:    strconv.Itoa(chunk),
		}
	}
	return out, nil
}

func sleepTasks(r domain.Routine) ([]domain.RoutineTaskInput, error) {
	wake, sleep, ok := strings.Cut(r.Target, "-")
	wake, sleep = strings.TrimSpace(wake), strings.TrimSpace(sleep)
	if !ok || wake == "" || sleep == "" || strings.Contains(sleep, "-") {
		return nil, domain.Invalid("target", r.Target, errors.New("sleep target must be in HH:MM-HH:MM format"))
	}
	for _, clock := range []string{wake, sleep} {
		if _, _, err := calendar.ParseClock(clock); err != nil {
			return nil, domain.Invalid("target", r.Target, err)
		}
	}
	return []domain.RoutineTaskInput{
		{RoutineID: r.ID, Name: WakeTaskName, Target: wake},
		{RoutineID: r.ID, Name: SleepTaskName, Target: sleep},
	}, nil
}
