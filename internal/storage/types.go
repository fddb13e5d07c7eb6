package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"agendaengine/internal/domain"
)

var ErrClosed = errors.New("storage closed")

// Config configures storage.
//
// Driver values:
//   - "memory" (or empty): nothing survives a restart
//   - "file": JSON snapshot + audit jsonl next to Path
//   - "sqlite": SQLite database file at Path
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// AgendaStore covers per-day agendas.
type AgendaStore interface {
	AgendaByDate(ctx context.Context, date time.Time) (domain.Agenda, bool, error)
	CreateAgenda(ctx context.Context, date time.Time) (domain.Agenda, error)
	// AgendasInRange returns agendas with Date in [start, end], ordered by
	// date, each carrying its enriched items.
	AgendasInRange(ctx context.Context, start, end time.Time) ([]domain.AgendaWithItems, error)
}

// ItemStore covers agenda items and their audit logs. Items returned by
// reads are enriched with their task / routine task references.
type ItemStore interface {
	GetItem(ctx context.Context, id string) (domain.AgendaItem, error)
	ListItemsByAgenda(ctx context.Context, agendaID string) ([]domain.AgendaItem, error)
	CreateItem(ctx context.Context, agendaID string, in domain.ItemInput) (domain.AgendaItem, error)
	UpdateItem(ctx context.Context, id string, patch domain.ItemPatch) (domain.AgendaItem, error)
	// ListExpirable returns PENDING items that have both StartAt and Duration.
	ListExpirable(ctx context.Context) ([]domain.AgendaItem, error)

	AppendItemLog(ctx context.Context, log domain.AgendaItemLog) (domain.AgendaItemLog, error)
	ListItemLogs(ctx context.Context, itemID string) ([]domain.AgendaItemLog, error)
}

// TaskStore is the thin slice of board tasks the agenda references.
type TaskStore interface {
	CreateTask(ctx context.Context, title string) (domain.TaskRef, error)
}

// RoutineStore covers routines, their generated tasks and progress logs.
type RoutineStore interface {
	CreateRoutine(ctx context.Context, in domain.RoutineInput) (domain.Routine, error)
	UpdateRoutine(ctx context.Context, id string, patch domain.RoutinePatch) (domain.Routine, error)
	GetRoutine(ctx context.Context, id string) (domain.Routine, error)
	ListRoutines(ctx context.Context) ([]domain.Routine, error)
	ActiveRoutines(ctx context.Context) ([]domain.Routine, error)

	CreateRoutineTasks(ctx context.Context, in []domain.RoutineTaskInput) ([]domain.RoutineTask, error)
	// DeleteRoutineTasks removes every task of routineID and returns their ids.
	DeleteRoutineTasks(ctx context.Context, routineID string) ([]string, error)

	CreateTaskLog(ctx context.Context, routineTaskID, value string) (domain.RoutineTaskLog, error)
	// TaskLogs returns logs of the given tasks created in [from, to].
	TaskLogs(ctx context.Context, taskIDs []string, from, to time.Time) ([]domain.RoutineTaskLog, error)
}

// AlarmStore covers alarm plans.
type AlarmStore interface {
	CreateAlarmPlan(ctx context.Context, in domain.AlarmPlanInput) (domain.AlarmPlan, error)
	// FindAlarmPlan returns the most recently created plan matching f.
	FindAlarmPlan(ctx context.Context, f domain.AlarmPlanFilter) (domain.AlarmPlan, bool, error)
	// ListAlarmPlans returns matching plans ordered by TargetAt.
	ListAlarmPlans(ctx context.Context, f domain.AlarmPlanFilter) ([]domain.AlarmPlan, error)
	UpdateAlarmStatus(ctx context.Context, id string, status domain.AlarmStatus) (domain.AlarmPlan, error)
}

// Store is the full persistence API.
type Store interface {
	AgendaStore
	ItemStore
	TaskStore
	RoutineStore
	AlarmStore
	Close() error
}

type options struct {
	now   func() time.Time
	newID func() string
}

// Option customizes a store.
type Option func(*options)

// WithClock sets the clock used for CreatedAt/UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithIDs sets the id generator (uuid.NewString by default).
func WithIDs(newID func() string) Option {
	return func(o *options) {
		if newID != nil {
			o.newID = newID
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now, newID: uuid.NewString}
	for _, fn := range opts {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

func validateItemInput(in domain.ItemInput) error {
	if in.TaskID != "" && in.RoutineTaskID != "" {
		return domain.Invalid("routineTaskId", in.RoutineTaskID, errors.New("taskId and routineTaskId are mutually exclusive"))
	}
	if in.Duration != nil && *in.Duration < 0 {
		return domain.Invalid("duration", "", errors.New("must not be negative"))
	}
	return nil
}
