package storage

import (
	"context"
	"time"

	"agendaengine/internal/domain"
	"agendaengine/internal/eventbus"
	logx "agendaengine/pkg/logx"
)

// WithEvents wraps s so every successful write publishes an
// "<entity>.<change>" event on bus. Reads pass through untouched.
func WithEvents(s Store, bus eventbus.Bus, log logx.Logger) Store {
	if bus == nil {
		return s
	}
	return &eventStore{Store: s, bus: bus, log: log.OrNop().Component("storage.events")}
}

type eventStore struct {
	Store
	bus eventbus.Bus
	log logx.Logger
}

func (s *eventStore) emit(entity string, change eventbus.Change, id string, data any) {
	ev := eventbus.EntityEvent{Entity: entity, Change: change, ID: id, Data: data}
	s.bus.Publish(eventbus.Event{Type: ev.Type(), Time: time.Now(), Data: ev})
	s.log.Trace("entity event", logx.String("type", ev.Type()), logx.String("id", id))
}

func (s *eventStore) CreateAgenda(ctx context.Context, date time.Time) (domain.Agenda, error) {
	before, existed, err := s.Store.AgendaByDate(ctx, date)
	if err != nil {
		return domain.Agenda{}, err
	}
	if existed {
		return before, nil
	}
	a, err := s.Store.CreateAgenda(ctx, date)
	if err != nil {
		return a, err
	}
	s.emit(eventbus.EntityAgenda, eventbus.Added, a.ID, a)
	return a, nil
}

func (s *eventStore) CreateItem(ctx context.Context, agendaID string, in domain.ItemInput) (domain.AgendaItem, error) {
	it, err := s.Store.CreateItem(ctx, agendaID, in)
	if err != nil {
		return it, err
	}
	s.emit(eventbus.EntityAgendaItem, eventbus.Added, it.ID, it)
	return it, nil
}

func (s *eventStore) UpdateItem(ctx context.Context, id string, p domain.ItemPatch) (domain.AgendaItem, error) {
	it, err := s.Store.UpdateItem(ctx, id, p)
	if err != nil {
		return it, err
	}
	s.emit(eventbus.EntityAgendaItem, eventbus.Modified, it.ID, it)
	return it, nil
}

func (s *eventStore) AppendItemLog(ctx context.Context, l domain.AgendaItemLog) (domain.AgendaItemLog, error) {
	out, err := s.Store.AppendItemLog(ctx, l)
	if err != nil {
		return out, err
	}
	s.emit(eventbus.EntityAgendaItemLog, eventbus.Added, out.ID, out)
	return out, nil
}

func (s *eventStore) CreateRoutine(ctx context.Context, in domain.RoutineInput) (domain.Routine, error) {
	r, err := s.Store.CreateRoutine(ctx, in)
	if err != nil {
		return r, err
	}
	s.emit(eventbus.EntityRoutine, eventbus.Added, r.ID, r)
	return r, nil
}

func (s *eventStore) UpdateRoutine(ctx context.Context, id string, p domain.RoutinePatch) (domain.Routine, error) {
	r, err := s.Store.UpdateRoutine(ctx, id, p)
	if err != nil {
		return r, err
	}
	s.emit(eventbus.EntityRoutine, eventbus.Modified, r.ID, r)
	return r, nil
}

func (s *eventStore) CreateRoutineTasks(ctx context.Context, in []domain.RoutineTaskInput) ([]domain.RoutineTask, error) {
	tasks, err := s.Store.CreateRoutineTasks(ctx, in)
	if err != nil {
		return tasks, err
	}
	for _, t := range tasks {
		s.emit(eventbus.EntityRoutineTask, eventbus.Added, t.ID, t)
	}
	return tasks, nil
}

func (s *eventStore) DeleteRoutineTasks(ctx context.Context, routineID string) ([]string, error) {
	ids, err := s.Store.DeleteRoutineTasks(ctx, routineID)
	if err != nil {
		return ids, err
	}
	for _, id := range ids {
		s.emit(eventbus.EntityRoutineTask, eventbus.Deleted, id, nil)
	}
	return ids, nil
}

func (s *eventStore) CreateTaskLog(ctx context.Context, routineTaskID, value string) (domain.RoutineTaskLog, error) {
	l, err := s.Store.CreateTaskLog(ctx, routineTaskID, value)
	if err != nil {
		return l, err
	}
	s.emit(eventbus.EntityRoutineTaskLog, eventbus.Added, l.ID, l)
	return l, nil
}

func (s *eventStore) CreateAlarmPlan(ctx context.Context, in domain.AlarmPlanInput) (domain.AlarmPlan, error) {
	p, err := s.Store.CreateAlarmPlan(ctx, in)
	if err != nil {
		return p, err
	}
	s.emit(eventbus.EntityAlarmPlan, eventbus.Added, p.ID, p)
	return p, nil
}

func (s *eventStore) UpdateAlarmStatus(ctx context.Context, id string, status domain.AlarmStatus) (domain.AlarmPlan, error) {
	p, err := s.Store.UpdateAlarmStatus(ctx, id, status)
	if err != nil {
		return p, err
	}
	s.emit(eventbus.EntityAlarmPlan, eventbus.Modified, p.ID, p)
	return p, nil
}
