package routine

import (
	"context"
	"fmt"
	"time"

	"agendaengine/internal/calendar"
	"agendaengine/internal/domain"
	logx "agendaengine/pkg/logx"
)

// Step tasks are spread over this local wall-clock window.
const (
	StepWindowStart = "08:00"
	StepWindowEnd   = "20:00"
)

// AgendaStore is what the agenda planner reads and writes.
type AgendaStore interface {
	CreateAgenda(ctx context.Context, date time.Time) (domain.Agenda, error)
	ListItemsByAgenda(ctx context.Context, agendaID string) ([]domain.AgendaItem, error)
	CreateItem(ctx context.Context, agendaID string, in domain.ItemInput) (domain.AgendaItem, error)
	ActiveRoutines(ctx context.Context) ([]domain.Routine, error)
}

type PlanResult struct {
	AgendaID string              `json:"agendaId"`
	DateKey  string              `json:"dateKey"`
	Created  []domain.AgendaItem `json:"created"`
	Skipped  int                 `json:"skipped"`
}

// AgendaPlanner makes sure every task of every active routine has an item
// on a day's agenda without double-booking a time slot.
type AgendaPlanner struct {
	store AgendaStore
	zone  calendar.Zone
	log   logx.Logger
}

func NewAgendaPlanner(store AgendaStore, zone calendar.Zone, log logx.Logger) *AgendaPlanner {
	if zone.IsZero() {
		zone = calendar.UTC()
	}
	return &AgendaPlanner{store: store, zone: zone, log: log.OrNop().Component("routine.agenda")}
}

// occupancy is the per-run list of taken intervals.
type occupancy []domain.TimeBlock

func (o occupancy) free(t time.Time) bool {
	for _, b := range o {
		if b.Contains(t) {
			return false
		}
	}
	return true
}

// PlanForDate plans the calendar day containing day in the planner's zone.
// Tasks that already have an item on that agenda are skipped, never moved.
// The first storage error aborts the run.
func (p *AgendaPlanner) PlanForDate(ctx context.Context, day time.Time) (PlanResult, error) {
	key := p.zone.DateKey(day)
	date, err := calendar.StartOfDayUTC(key)
	if err != nil {
		return PlanResult{}, err
	}
	agenda, err := p.store.CreateAgenda(ctx, date)
	if err != nil {
		return PlanResult{}, fmt.Errorf("ensure agenda %s: %w", key, err)
	}
	res := PlanResult{AgendaID: agenda.ID, DateKey: key, Created: []domain.AgendaItem{}}

	routines, err := p.store.ActiveRoutines(ctx)
	if err != nil {
		return res, fmt.Errorf("active routines: %w", err)
	}
	if len(routines) == 0 {
		p.log.Debug("no active routines", logx.String("date", key))
		return res, nil
	}

	existing, err := p.store.ListItemsByAgenda(ctx, agenda.ID)
	if err != nil {
		return res, fmt.Errorf("list items %s: %w", key, err)
	}
	var blocks occupancy
	planned := make(map[string]struct{}, len(existing))
	for _, it := range existing {
		if it.StartAt != nil {
			end := *it.StartAt
			if it.Duration != nil {
				end = end.Add(time.Duration(*it.Duration) * time.Minute)
			}
			blocks = append(blocks, domain.TimeBlock{Start: *it.StartAt, End: end})
		}
		if it.RoutineTaskID != "" {
			planned[it.RoutineTaskID] = struct{}{}
		}
	}

	for _, r := range routines {
		if len(r.Tasks) == 0 {
			continue
		}
		for i, task := range r.Tasks {
			if _, ok := planned[task.ID]; ok {
				res.Skipped++
				continue
			}
			var startAt *time.Time
			if t, ok := p.candidate(key, r, i, task); ok && blocks.free(t) {
				startAt = &t
				blocks = append(blocks, domain.TimeBlock{Start: t, End: t})
			}
			it, err := p.store.CreateItem(ctx, agenda.ID, domain.ItemInput{
				RoutineTaskID: task.ID,
				StartAt:       startAt,
			})
			if err != nil {
				return res, fmt.Errorf("create item for routine task %s: %w", task.ID, err)
			}
			planned[task.ID] = struct{}{}
			res.Created = append(res.Created, it)
		}
	}

	p.log.Info("agenda planned",
		logx.String("date", key),
		logx.Int("created", len(res.Created)),
		logx.Int("skipped", res.Skipped),
	)
	return res, nil
}

// candidate returns the preferred start of the index-th task of r. ok is
// false when the task has no preferred time.
func (p *AgendaPlanner) candidate(key string, r domain.Routine, index int, task domain.RoutineTask) (time.Time, bool) {
	switch r.Type {
	case domain.RoutineSleep:
		t, err := p.zone.TimeOn(key, task.Target)
		if err != nil {
			p.log.Warn("sleep task has no usable time", logx.String("task", task.ID), logx.String("target", task.Target))
			return time.Time{}, false
		}
		return t, true
	case domain.RoutineStep:
		start, err := p.zone.TimeOn(key, StepWindowStart)
		if err != nil {
			return time.Time{}, false
		}
		end, err := p.zone.TimeOn(key, StepWindowEnd)
		if err != nil {
			return time.Time{}, false
		}
		interval := end.Sub(start) / time.Duration(len(r.Tasks))
		return start.Add(interval * time.Duration(index)), true
	default:
		return time.Time{}, false
	}
}
