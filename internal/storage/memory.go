package storage

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"agendaengine/internal/domain"
)

// state is everything the memory store holds. It doubles as the file
// driver's snapshot format.
type state struct {
	Agendas      map[string]domain.Agenda      `json:"agendas"`
	Items        map[string]domain.AgendaItem  `json:"items"`
	ItemSeq      map[string]int64              `json:"itemSeq"`
	ItemLogs     []domain.AgendaItemLog        `json:"itemLogs"`
	Tasks        map[string]domain.TaskRef     `json:"tasks"`
	Routines     map[string]domain.Routine     `json:"routines"`
	RoutineTasks map[string]domain.RoutineTask `json:"routineTasks"`
	TaskLogs     []domain.RoutineTaskLog       `json:"taskLogs"`
	Alarms       map[string]domain.AlarmPlan   `json:"alarms"`
	Seq          int64                         `json:"seq"`
}

func newState() *state {
	return &state{
		Agendas:      map[string]domain.Agenda{},
		Items:        map[string]domain.AgendaItem{},
		ItemSeq:      map[string]int64{},
		Tasks:        map[string]domain.TaskRef{},
		Routines:     map[string]domain.Routine{},
		RoutineTasks: map[string]domain.RoutineTask{},
		Alarms:       map[string]domain.AlarmPlan{},
	}
}

// fill replaces nil maps after decoding an older or partial snapshot.
func (s *state) fill() {
	if s.Agendas == nil {
		s.Agendas = map[string]domain.Agenda{}
	}
	if s.Items == nil {
		s.Items = map[string]domain.AgendaItem{}
	}
	if s.ItemSeq == nil {
		s.ItemSeq = map[string]int64{}
	}
	if s.Tasks == nil {
		s.Tasks = map[string]domain.TaskRef{}
	}
	if s.Routines == nil {
		s.Routines = map[string]domain.Routine{}
	}
	if s.RoutineTasks == nil {
		s.RoutineTasks = map[string]domain.RoutineTask{}
	}
	if s.Alarms == nil {
		s.Alarms = map[string]domain.AlarmPlan{}
	}
}

// clone copies the containers of s. Values are replaced on update, never
// mutated in place, so sharing them with the copy is safe.
func (s *state) clone() *state {
	return &state{
		Agendas:      maps.Clone(s.Agendas),
		Items:        maps.Clone(s.Items),
		ItemSeq:      maps.Clone(s.ItemSeq),
		ItemLogs:     slices.Clone(s.ItemLogs),
		Tasks:        maps.Clone(s.Tasks),
		Routines:     maps.Clone(s.Routines),
		RoutineTasks: maps.Clone(s.RoutineTasks),
		TaskLogs:     slices.Clone(s.TaskLogs),
		Alarms:       maps.Clone(s.Alarms),
		Seq:          s.Seq,
	}
}

// memStore is the in-process Store. commit, when set, runs under the lock
// after every successful mutation (the file driver persists there).
type memStore struct {
	opts options

	mu     sync.RWMutex
	st     *state
	closed bool
	commit func(st *state, logs []domain.AgendaItemLog) error
}

// NewMemory returns an empty in-memory store.
func NewMemory(opts ...Option) Store {
	return newMemStore(newState(), opts...)
}

func newMemStore(st *state, opts ...Option) *memStore {
	st.fill()
	return &memStore{opts: buildOptions(opts), st: st}
}

func (m *memStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *memStore) now() time.Time { return m.opts.now() }

// mutate runs fn under the write lock against a copy of the state. The copy
// replaces the live state only after commit succeeds.
func (m *memStore) mutate(fn func(st *state) ([]domain.AgendaItemLog, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	next := m.st.clone()
	logs, err := fn(next)
	if err != nil {
		return err
	}
	if m.commit != nil {
		if err := m.commit(next, logs); err != nil {
			return err
		}
	}
	m.st = next
	return nil
}

func (m *memStore) read(fn func(st *state) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return fn(m.st)
}

// ---- agendas ----

func (m *memStore) AgendaByDate(_ context.Context, date time.Time) (a domain.Agenda, ok bool, err error) {
	err = m.read(func(st *state) error {
		a, ok = findAgenda(st, date)
		return nil
	})
	return a, ok, err
}

func findAgenda(st *state, date time.Time) (domain.Agenda, bool) {
	for _, a := range st.Agendas {
		if a.Date.Equal(date) {
			return a, true
		}
	}
	return domain.Agenda{}, false
}

// CreateAgenda returns the existing agenda when one already has this date.
func (m *memStore) CreateAgenda(_ context.Context, date time.Time) (domain.Agenda, error) {
	var out domain.Agenda
	err := m.mutate(func(st *state) ([]domain.AgendaItemLog, error) {
		date = date.UTC()
		if a, ok := findAgenda(st, date); ok {
			out = a
			return nil, nil
		}
		now := m.now()
		out = domain.Agenda{ID: m.opts.newID(), Date: date, CreatedAt: now, UpdatedAt: now}
		st.Agendas[out.ID] = out
		return nil, nil
	})
	return out, err
}

func (m *memStore) AgendasInRange(_ context.Context, start, end time.Time) ([]domain.AgendaWithItems, error) {
	var out []domain.AgendaWithItems
	err := m.read(func(st *state) error {
		for _, a := range st.Agendas {
			if a.Date.Before(start) || a.Date.After(end) {
				continue
			}
			out = append(out, domain.AgendaWithItems{Agenda: a, Items: itemsOf(st, a.ID)})
		}
		return nil
	})
	slices.SortFunc(out, func(a, b domain.AgendaWithItems) int { return a.Date.Compare(b.Date) })
	return out, err
}

// ---- items ----

func itemsOf(st *state, agendaID string) []domain.AgendaItem {
	out := []domain.AgendaItem{}
	for _, it := range st.Items {
		if it.AgendaID == agendaID {
			out = append(out, enrich(st, cloneItem(it)))
		}
	}
	slices.SortFunc(out, func(a, b domain.AgendaItem) int {
		return cmp.Or(
			cmp.Compare(a.Position, b.Position),
			a.CreatedAt.Compare(b.CreatedAt),
			cmp.Compare(st.ItemSeq[a.ID], st.ItemSeq[b.ID]),
		)
	})
	return out
}

func enrich(st *state, it domain.AgendaItem) domain.AgendaItem {
	if it.TaskID != "" {
		if t, ok := st.Tasks[it.TaskID]; ok {
			it.Task = &t
		}
	}
	if it.RoutineTaskID != "" {
		if rt, ok := st.RoutineTasks[it.RoutineTaskID]; ok {
			ref := domain.RoutineTaskRef{ID: rt.ID, Name: rt.Name, Target: rt.Target, RoutineID: rt.RoutineID}
			if r, ok := st.Routines[rt.RoutineID]; ok {
				ref.RoutineName = r.Name
				ref.RoutineType = r.Type
			}
			it.RoutineTask = &ref
		}
	}
	return it
}

func cloneItem(it domain.AgendaItem) domain.AgendaItem {
	if it.StartAt != nil {
		it.StartAt = domain.TimePtr(*it.StartAt)
	}
	if it.Duration != nil {
		it.Duration = domain.IntPtr(*it.Duration)
	}
	it.Task = nil
	it.RoutineTask = nil
	return it
}

func (m *memStore) GetItem(_ context.Context, id string) (domain.AgendaItem, error) {
	var out domain.AgendaItem
	err := m.read(func(st *state) error {
		it, ok := st.Items[id]
		if !ok {
			return domain.NotFound("agenda item", id)
		}
		out = enrich(st, cloneItem(it))
		return nil
	})
	return out, err
}

func (m *memStore) ListItemsByAgenda(_ context.Context, agendaID string) ([]domain.AgendaItem, error) {
	var out []domain.AgendaItem
	err := m.read(func(st *state) error {
		out = itemsOf(st, agendaID)
		return nil
	})
	return out, err
}

func (m *memStore) CreateItem(_ context.Context, agendaID string, in domain.ItemInput) (domain.AgendaItem, error) {
	if err := validateItemInput(in); err != nil {
		return domain.AgendaItem{}, err
	}
	var out domain.AgendaItem
	err := m.mutate(func(st *state) ([]domain.AgendaItemLog, error) {
		if _, ok := st.Agendas[agendaID]; !ok {
			return nil, domain.NotFound("agenda", agendaID)
		}
		now := m.now()
		it := domain.AgendaItem{
			ID:             m.opts.newID(),
			AgendaID:       agendaID,
			TaskID:         in.TaskID,
			RoutineTaskID:  in.RoutineTaskID,
			Type:           cmp.Or(in.Type, domain.ItemRegular),
			Status:         cmp.Or(in.Status, domain.ItemPending),
			StartAt:        in.StartAt,
			Duration:       in.Duration,
			Position:       in.Position,
			Notes:          in.Notes,
			NotificationID: in.NotificationID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		it = cloneItem(it)
		st.Seq++
		st.Items[it.ID] = it
		st.ItemSeq[it.ID] = st.Seq
		out = enrich(st, cloneItem(it))
		return nil, nil
	})
	return out, err
}

func (m *memStore) UpdateItem(_ context.Context, id string, p domain.ItemPatch) (domain.AgendaItem, error) {
	var out domain.AgendaItem
	err := m.mutate(func(st *state) ([]domain.AgendaItemLog, error) {
		it, ok := st.Items[id]
		if !ok {
			return nil, domain.NotFound("agenda item", id)
		}
		if p.AgendaID != nil {
			if _, ok := st.Agendas[*p.AgendaID]; !ok {
				return nil, domain.NotFound("agenda", *p.AgendaID)
			}
		}
		it = applyItemPatch(cloneItem(it), p)
		it.UpdatedAt = m.now()
		st.Items[id] = it
		out = enrich(st, cloneItem(it))
		return nil, nil
	})
	return out, err
}

func applyItemPatch(it domain.AgendaItem, p domain.ItemPatch) domain.AgendaItem {
	if p.AgendaID != nil {
		it.AgendaID = *p.AgendaID
	}
	if p.Status != nil {
		it.Status = *p.Status
	}
	switch {
	case p.ClearStartAt:
		it.StartAt = nil
	case p.StartAt != nil:
		it.StartAt = domain.TimePtr(*p.StartAt)
	}
	switch {
	case p.ClearDuration:
		it.Duration = nil
	case p.Duration != nil:
		it.Duration = domain.IntPtr(*p.Duration)
	}
	if p.Position != nil {
		it.Position = *p.Position
	}
	if p.Notes != nil {
		it.Notes = *p.Notes
	}
	return it
}

func (m *memStore) ListExpirable(_ context.Context) ([]domain.AgendaItem, error) {
	var out []domain.AgendaItem
	err := m.read(func(st *state) error {
		for _, it := range st.Items {
			if it.Status == domain.ItemPending && it.StartAt != nil && it.Duration != nil {
				out = append(out, enrich(st, cloneItem(it)))
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b domain.AgendaItem) int { return a.StartAt.Compare(*b.StartAt) })
	return out, err
}

func (m *memStore) AppendItemLog(_ context.Context, l domain.AgendaItemLog) (domain.AgendaItemLog, error) {
	err := m.mutate(func(st *state) ([]domain.AgendaItemLog, error) {
		if _, ok := st.Items[l.AgendaItemID]; !ok {
			return nil, domain.NotFound("agenda item", l.AgendaItemID)
		}
		if l.ID == "" {
			l.ID = m.opts.newID()
		}
		if l.CreatedAt.IsZero() {
			l.CreatedAt = m.now()
		}
		st.ItemLogs = append(st.ItemLogs, l)
		return []domain.AgendaItemLog{l}, nil
	})
	return l, err
}

func (m *memStore) ListItemLogs(_ context.Context, itemID string) ([]domain.AgendaItemLog, error) {
	var out []domain.AgendaItemLog
	err := m.read(func(st *state) error {
		for _, l := range st.ItemLogs {
			if l.AgendaItemID == itemID {
				out = append(out, l)
			}
		}
		return nil
	})
	return out, err
}

// ---- tasks ----

func (m *memStore) CreateTask(_ context.Context, title string) (domain.TaskRef, error) {
	var out domain.TaskRef
	err := m.mutate(func(st *state) ([]domain.AgendaItemLog, error) {
		out = domain.TaskRef{ID: m.opts.newID(), Title: title}
		st.Tasks[out.ID] = out
		return nil, nil
	})
	return out, err
}

// ---- routines ----

func (m *memStore) CreateRoutine(_ context.Context, in domain.RoutineInput) (domain.Routine, error) {
	var out domain.Routine
	err := m.mutate(func(st *state) ([]domain.AgendaItemLog, error) {
		now := m.now()
		out = domain.Routine{
			ID:                    m.opts.newID(),
			Name:                  in.Name,
			Type:                  in.Type,
			Target:                in.Target,
			SeparateInto:          max(1, in.SeparateInto),
			RepeatIntervalMinutes: clonePtr(in.RepeatIntervalMinutes),
			Status:                cmp.Or(in.Status, domain.RoutineActive),
			CreatedAt:             now,
			UpdatedAt:             now,
		}
		st.Routines[out.ID] = out
		out = withTasks(st, out)
		return nil, nil
	})
	return out, err
}

func (m *memStore) UpdateRoutine(_ context.Context, id string, p domain.RoutinePatch) (domain.Routine, error) {
	var out domain.Routine
	err := m.mutate(func(st *state) ([]domain.AgendaItemLog, error) {
		r, ok := st.Routines[id]
		if !ok {
			return nil, domain.NotFound("routine", id)
		}
		r = applyRoutinePatch(r, p)
		r.UpdatedAt = m.now()
		st.Routines[id] = r
		out = withTasks(st, r)
		return nil, nil
	})
	return out, err
}

func applyRoutinePatch(r domain.Routine, p domain.RoutinePatch) domain.Routine {
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Type != nil {
		r.Type = *p.Type
	}
	if p.Target != nil {
		r.Target = *p.Target
	}
	if p.SeparateInto != nil {
		r.SeparateInto = *p.SeparateInto
	}
	if p.RepeatIntervalMinutes != nil {
		r.RepeatIntervalMinutes = clonePtr(p.RepeatIntervalMinutes)
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	return r
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func withTasks(st *state, r domain.Routine) domain.Routine {
	r.RepeatIntervalMinutes = clonePtr(r.RepeatIntervalMinutes)
	r.Tasks = []domain.RoutineTask{}
	for _, t := range st.RoutineTasks {
		if t.RoutineID == r.ID {
			r.Tasks = append(r.Tasks, t)
		}
	}
	slices.SortFunc(r.Tasks, func(a, b domain.RoutineTask) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(st.ItemSeq[a.ID], st.ItemSeq[b.ID]))
	})
	return r
}

func (m *memStore) GetRoutine(_ context.Context, id string) (domain.Routine, error) {
	var out domain.Routine
	err := m.read(func(st *state) error {
		r, ok := st.Routines[id]
		if !ok {
			return domain.NotFound("routine", id)
		}
		out = withTasks(st, r)
		return nil
	})
	return out, err
}

func (m *memStore) ListRoutines(context.Context) ([]domain.Routine, error) {
	return m.routines(func(domain.Routine) bool { return true })
}

func (m *memStore) ActiveRoutines(context.Context) ([]domain.Routine, error) {
	return m.routines(func(r domain.Routine) bool { return r.Status == domain.RoutineActive })
}

func (m *memStore) routines(keep func(domain.Routine) bool) ([]domain.Routine, error) {
	var out []domain.Routine
	err := m.read(func(st *state) error {
		for _, r := range st.Routines {
			if keep(r) {
				out = append(out, withTasks(st, r))
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b domain.Routine) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return out, err
}

func (m *memStore) CreateRoutineTasks(_ context.Context, in []domain.RoutineTaskInput) ([]domain.RoutineTask, error) {
	out := make([]domain.RoutineTask, 0, len(in))
	err := m.mutate(func(st *state) ([]domain.AgendaItemLog, error) {
		for _, t := range in {
			if _, ok := st.Routines[t.RoutineID]; !ok {
				return nil, domain.NotFound("routine", t.RoutineID)
			}
		}
		now := m.now()
		for _, t := range in {
			rt := domain.RoutineTask{ID: m.opts.newID(), RoutineID: t.RoutineID, Name: t.Name, Target: t.Target, CreatedAt: now}
			st.Seq++
			st.RoutineTasks[rt.ID] = rt
			// Task order shares the item sequence so creation order survives equal clocks.
			st.ItemSeq[rt.ID] = st.Seq
			out = append(out, rt)
		}
		return nil, nil
	})
	return out, err
}

func (m *memStore) DeleteRoutineTasks(_ context.Context, routineID string) ([]string, error) {
	var ids []string
	err := m.mutate(func(st *state) ([]domain.AgendaItemLog, error) {
		for id, t := range st.RoutineTasks {
			if t.RoutineID == routineID {
				ids = append(ids, id)
			}
		}
		for _, id := range ids {
			delete(st.RoutineTasks, id)
			delete(st.ItemSeq, id)
		}
		return nil, nil
	})
	slices.Sort(ids)
	return ids, err
}

func (m *memStore) CreateTaskLog(_ context.Context, routineTaskID, value string) (domain.RoutineTaskLog, error) {
	var out domain.RoutineTaskLog
	err := m.mutate(func(st *state) ([]domain.AgendaItemLog, error) {
		if _, ok := st.RoutineTasks[routineTaskID]; !ok {
			return nil, domain.NotFound("routine task", routineTaskID)
		}
		out = domain.RoutineTaskLog{ID: m.opts.newID(), RoutineTaskID: routineTaskID, Value: value, CreatedAt: m.now()}
		st.TaskLogs = append(st.TaskLogs, out)
		return nil, nil
	})
	return out, err
}

func (m *memStore) TaskLogs(_ context.Context, taskIDs []string, from, to time.Time) ([]domain.RoutineTaskLog, error) {
	var out []domain.RoutineTaskLog
	err := m.read(func(st *state) error {
		for _, l := range st.TaskLogs {
			if !slices.Contains(taskIDs, l.RoutineTaskID) {
				continue
			}
			if l.CreatedAt.Before(from) || l.CreatedAt.After(to) {
				continue
			}
			out = append(out, l)
		}
		return nil
	})
	return out, err
}

// ---- alarm plans ----

func (m *memStore) CreateAlarmPlan(_ context.Context, in domain.AlarmPlanInput) (domain.AlarmPlan, error) {
	var out domain.AlarmPlan
	err := m.mutate(func(st *state) ([]domain.AgendaItemLog, error) {
		now := m.now()
		out = domain.AlarmPlan{
			ID:                    m.opts.newID(),
			RoutineTaskID:         in.RoutineTaskID,
			Type:                  in.Type,
			TargetAt:              in.TargetAt,
			Status:                cmp.Or(in.Status, domain.AlarmPending),
			RepeatIntervalMinutes: clonePtr(in.RepeatIntervalMinutes),
			Metadata:              cloneMetadata(in.Metadata),
			CreatedAt:             now,
			UpdatedAt:             now,
		}
		st.Seq++
		st.ItemSeq[out.ID] = st.Seq
		st.Alarms[out.ID] = out
		return nil, nil
	})
	return out, err
}

func cloneMetadata(md domain.AlarmMetadata) domain.AlarmMetadata {
	md.Expected = clonePtr(md.Expected)
	md.Actual = clonePtr(md.Actual)
	return md
}

func (m *memStore) matchingPlans(st *state, f domain.AlarmPlanFilter) []domain.AlarmPlan {
	var out []domain.AlarmPlan
	for _, p := range st.Alarms {
		if f.Match(p) {
			p.RepeatIntervalMinutes = clonePtr(p.RepeatIntervalMinutes)
			p.Metadata = cloneMetadata(p.Metadata)
			out = append(out, p)
		}
	}
	return out
}

func (m *memStore) FindAlarmPlan(_ context.Context, f domain.AlarmPlanFilter) (domain.AlarmPlan, bool, error) {
	var (
		out domain.AlarmPlan
		ok  bool
	)
	err := m.read(func(st *state) error {
		plans := m.matchingPlans(st, f)
		if len(plans) == 0 {
			return nil
		}
		out = slices.MaxFunc(plans, func(a, b domain.AlarmPlan) int {
			return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(st.ItemSeq[a.ID], st.ItemSeq[b.ID]))
		})
		ok = true
		return nil
	})
	return out, ok, err
}

func (m *memStore) ListAlarmPlans(_ context.Context, f domain.AlarmPlanFilter) ([]domain.AlarmPlan, error) {
	var out []domain.AlarmPlan
	err := m.read(func(st *state) error {
		out = m.matchingPlans(st, f)
		slices.SortFunc(out, func(a, b domain.AlarmPlan) int {
			return cmp.Or(a.TargetAt.Compare(b.TargetAt), cmp.Compare(st.ItemSeq[a.ID], st.ItemSeq[b.ID]))
		})
		return nil
	})
	return out, err
}

func (m *memStore) UpdateAlarmStatus(_ context.Context, id string, status domain.AlarmStatus) (domain.AlarmPlan, error) {
	var out domain.AlarmPlan
	err := m.mutate(func(st *state) ([]domain.AgendaItemLog, error) {
		p, ok := st.Alarms[id]
		if !ok {
			return nil, domain.NotFound("alarm plan", id)
		}
		p.Status = status
		p.UpdatedAt = m.now()
		st.Alarms[id] = p
		out = p
		out.Metadata = cloneMetadata(p.Metadata)
		return nil, nil
	})
	return out, err
}
