package routine

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"agendaengine/internal/calendar"
	"agendaengine/internal/domain"
	logx "agendaengine/pkg/logx"
)

// StepCooldown is the minimum age of the latest open STEP plan before a
// new one may be created.
const StepCooldown = 30 * time.Minute

type AlarmStore interface {
	ActiveRoutines(ctx context.Context) ([]domain.Routine, error)
	TaskLogs(ctx context.Context, taskIDs []string, from, to time.Time) ([]domain.RoutineTaskLog, error)
	FindAlarmPlan(ctx context.Context, f domain.AlarmPlanFilter) (domain.AlarmPlan, bool, error)
	CreateAlarmPlan(ctx context.Context, in domain.AlarmPlanInput) (domain.AlarmPlan, error)
}

// AlarmPlanner derives alarm targets from SLEEP and STEP routines and keeps
// at most one fresh plan per routine task.
type AlarmPlanner struct {
	store AlarmStore
	zone  calendar.Zone
	log   logx.Logger
}

func NewAlarmPlanner(store AlarmStore, zone calendar.Zone, log logx.Logger) *AlarmPlanner {
	if zone.IsZero() {
		zone = calendar.UTC()
	}
	return &AlarmPlanner{store: store, zone: zone, log: log.OrNop().Component("routine.alarm")}
}

type planDay struct {
	key   string
	start time.Time
	end   time.Time
	now   time.Time
}

// PlanForActiveRoutines returns the plans it created.
func (p *AlarmPlanner) PlanForActiveRoutines(ctx context.Context, now time.Time) ([]domain.AlarmPlan, error) {
	key := p.zone.Today(now)
	start, err := p.zone.StartOfDay(key)
	if err != nil {
		return nil, err
	}
	end, err := p.zone.EndOfDay(key)
	if err != nil {
		return nil, err
	}
	day := planDay{key: key, start: start, end: end, now: now}

	routines, err := p.store.ActiveRoutines(ctx)
	if err != nil {
		return nil, fmt.Errorf("active routines: %w", err)
	}

	created := []domain.AlarmPlan{}
	for _, r := range routines {
		var plans []domain.AlarmPlan
		switch r.Type {
		case domain.RoutineSleep:
			plans, err = p.planSleep(ctx, day, r)
		case domain.RoutineStep:
			plans, err = p.planStep(ctx, day, r)
		default:
			continue
		}
		if err != nil {
			return created, err
		}
		created = append(created, plans...)
	}
	if len(created) > 0 {
		p.log.Info("alarm plans created", logx.String("date", key), logx.Int("count", len(created)))
	}
	return created, nil
}

// SleepAlarmType classifies a SLEEP routine task by name.
func SleepAlarmType(taskName string) domain.AlarmType {
	if strings.Contains(strings.ToLower(taskName), "sleep") {
		return domain.AlarmSleep
	}
	return domain.AlarmWake
}

func (p *AlarmPlanner) planSleep(ctx context.Context, day planDay, r domain.Routine) ([]domain.AlarmPlan, error) {
	var out []domain.AlarmPlan
	for _, task := range r.Tasks {
		target, err := p.zone.TimeOn(day.key, task.Target)
		if err != nil {
			p.log.Warn("skipping sleep task with bad target", logx.String("task", task.ID), logx.String("target", task.Target))
			continue
		}
		typ := SleepAlarmType(task.Name)
		_, exists, err := p.store.FindAlarmPlan(ctx, domain.AlarmPlanFilter{
			RoutineTaskID: task.ID,
			Types:         []domain.AlarmType{typ},
			TargetFrom:    day.start,
			TargetTo:      day.end,
		})
		if err != nil {
			return out, fmt.Errorf("find %s plan for %s: %w", typ, task.ID, err)
		}
		if exists {
			continue
		}
		plan, err := p.store.CreateAlarmPlan(ctx, domain.AlarmPlanInput{
			RoutineTaskID:         task.ID,
			Type:                  typ,
			TargetAt:              target,
			Status:                domain.AlarmPending,
			RepeatIntervalMinutes: r.RepeatIntervalMinutes,
			Metadata:              domain.AlarmMetadata{RoutineID: r.ID, RoutineType: r.Type},
		})
		if err != nil {
			return out, fmt.Errorf("create %s plan for %s: %w", typ, task.ID, err)
		}
		out = append(out, plan)
	}
	return out, nil
}

// parseAmount reads a numeric target or log value. Blank counts as zero.
func parseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// StepProgress is the pace check of a STEP routine at a moment of the day.
type StepProgress struct {
	Total    float64
	Expected int
	Actual   float64
}

// Behind reports whether logged progress trails the expected pace.
func (s StepProgress) Behind() bool { return s.Actual < float64(s.Expected) }

func (p *AlarmPlanner) stepProgress(ctx context.Context, day planDay, r domain.Routine) (StepProgress, bool, error) {
	var total float64
	ids := make([]string, 0, len(r.Tasks))
	for _, t := range r.Tasks {
		v, ok := parseAmount(t.Target)
		if !ok {
			return StepProgress{}, false, nil
		}
		total += v
		ids = append(ids, t.ID)
	}
	if total <= 0 {
		return StepProgress{}, false, nil
	}

	elapsed := max(0, day.now.Sub(day.start).Minutes())
	expected := int(math.Floor(total * elapsed / calendar.MinutesPerDay))

	logs, err := p.store.TaskLogs(ctx, ids, day.start, day.now)
	if err != nil {
		return StepProgress{}, false, fmt.Errorf("task logs for routine %s: %w", r.ID, err)
	}
	var actual float64
	for _, l := range logs {
		if v, ok := parseAmount(l.Value); ok {
			actual += v
		}
	}
	return StepProgress{Total: total, Expected: expected, Actual: actual}, true, nil
}

// planStep creates at most one STEP plan for r. An open plan younger than
// StepCooldown suppresses planning, and so does progress above the actual
// recorded on that plan; the two checks are independent. Progress is
// compared floored, the same way it is recorded.
func (p *AlarmPlanner) planStep(ctx context.Context, day planDay, r domain.Routine) ([]domain.AlarmPlan, error) {
	if len(r.Tasks) == 0 {
		return nil, nil
	}
	prog, ok, err := p.stepProgress(ctx, day, r)
	if err != nil || !ok {
		return nil, err
	}
	if !prog.Behind() {
		return nil, nil
	}
	actual := int(math.Floor(prog.Actual))

	first := r.Tasks[0]
	latest, found, err := p.store.FindAlarmPlan(ctx, domain.AlarmPlanFilter{
		RoutineTaskID: first.ID,
		Types:         []domain.AlarmType{domain.AlarmStep},
		Statuses:      []domain.AlarmStatus{domain.AlarmPending, domain.AlarmActive},
	})
	if err != nil {
		return nil, fmt.Errorf("find step plan for %s: %w", first.ID, err)
	}
	if found {
		if day.now.Sub(latest.CreatedAt) < StepCooldown {
			return nil, nil
		}
		last := 0
		if latest.Metadata.Actual != nil {
			last = *latest.Metadata.Actual
		}
		if actual > last {
			return nil, nil
		}
	}

	plan, err := p.store.CreateAlarmPlan(ctx, domain.AlarmPlanInput{
		RoutineTaskID:         first.ID,
		Type:                  domain.AlarmStep,
		TargetAt:              day.now,
		Status:                domain.AlarmPending,
		RepeatIntervalMinutes: r.RepeatIntervalMinutes,
		Metadata: domain.AlarmMetadata{
			RoutineID: r.ID,
			Expected:  domain.IntPtr(prog.Expected),
			Actual:    &actual,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create step plan for %s: %w", first.ID, err)
	}
	p.log.Debug("step plan created",
		logx.String("routine", r.ID),
		logx.Int("expected", prog.Expected),
		logx.Int("actual", actual),
	)
	return []domain.AlarmPlan{plan}, nil
}
