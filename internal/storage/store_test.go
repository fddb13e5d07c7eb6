package storage

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agendaengine/internal/domain"
	"agendaengine/internal/eventbus"
	logx "agendaengine/pkg/logx"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

// Now advances by one second on every call so CreatedAt orders are stable.
func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newClock() *stepClock {
	return &stepClock{now: time.Date(2026, 2, 5, 6, 0, 0, 0, time.UTC)}
}

func drivers(t *testing.T) map[string]func(t *testing.T) Store {
	t.Helper()
	open := func(driver string) func(t *testing.T) Store {
		return func(t *testing.T) Store {
			t.Helper()
			cfg := Config{Driver: driver}
			switch driver {
			case "file":
				cfg.Path = filepath.Join(t.TempDir(), "agenda.json")
			case "sqlite":
				cfg.Path = filepath.Join(t.TempDir(), "agenda.db")
			}
			s, err := Open(cfg, logx.Nop(), WithClock(newClock().Now))
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		}
	}
	return map[string]func(t *testing.T) Store{
		"memory": open("memory"),
		"file":   open("file"),
		"sqlite": open("sqlite"),
	}
}

var day = time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC)

func TestStore_AgendaLifecycle(t *testing.T) {
	t.Parallel()

	for name, open := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			s := open(t)

			_, ok, err := s.AgendaByDate(ctx, day)
			require.NoError(t, err)
			assert.False(t, ok)

			a, err := s.CreateAgenda(ctx, day)
			require.NoError(t, err)
			again, err := s.CreateAgenda(ctx, day)
			require.NoError(t, err)
			assert.Equal(t, a.ID, again.ID, "one agenda per date")

			got, ok, err := s.AgendaByDate(ctx, day)
			require.NoError(t, err)
			require.True(t, ok)
			assert.True(t, got.Date.Equal(day))

			_, err = s.CreateAgenda(ctx, day.AddDate(0, 0, 2))
			require.NoError(t, err)
			_, err = s.CreateAgenda(ctx, day.AddDate(0, 0, 10))
			require.NoError(t, err)

			in, err := s.AgendasInRange(ctx, day, day.AddDate(0, 0, 6))
			require.NoError(t, err)
			require.Len(t, in, 2)
			assert.True(t, in[0].Date.Equal(day))
			assert.True(t, in[1].Date.Equal(day.AddDate(0, 0, 2)))
		})
	}
}

func TestStore_ItemsAreOrderedAndEnriched(t *testing.T) {
	t.Parallel()

	for name, open := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			s := open(t)

			a, err := s.CreateAgenda(ctx, day)
			require.NoError(t, err)
			task, err := s.CreateTask(ctx, "Write report")
			require.NoError(t, err)
			r, err := s.CreateRoutine(ctx, domain.RoutineInput{Name: "Walk", Type: domain.RoutineStep, Target: "9000", SeparateInto: 2})
			require.NoError(t, err)
			assert.Equal(t, domain.RoutineActive, r.Status)
			rts, err := s.CreateRoutineTasks(ctx, []domain.RoutineTaskInput{{RoutineID: r.ID, Name: "Walk 1", Target: "4500"}})
			require.NoError(t, err)

			start := day.Add(9 * time.Hour)
			second, err := s.CreateItem(ctx, a.ID, domain.ItemInput{TaskID: task.ID, Position: 1, StartAt: &start, Duration: domain.IntPtr(30)})
			require.NoError(t, err)
			first, err := s.CreateItem(ctx, a.ID, domain.ItemInput{RoutineTaskID: rts[0].ID})
			require.NoError(t, err)
			assert.Equal(t, domain.ItemRegular, first.Type)
			assert.Equal(t, domain.ItemPending, first.Status)
			assert.Nil(t, first.StartAt)

			items, err := s.ListItemsByAgenda(ctx, a.ID)
			require.NoError(t, err)
			require.Len(t, items, 2)
			assert.Equal(t, first.ID, items[0].ID)
			assert.Equal(t, second.ID, items[1].ID)

			require.NotNil(t, items[0].RoutineTask)
			assert.Equal(t, "Walk", items[0].RoutineTask.RoutineName)
			assert.Equal(t, domain.RoutineStep, items[0].RoutineType())
			require.NotNil(t, items[1].Task)
			assert.Equal(t, "Write report", items[1].Task.Title)
			require.NotNil(t, items[1].StartAt)
			assert.True(t, items[1].StartAt.Equal(start))

			_, err = s.CreateItem(ctx, a.ID, domain.ItemInput{TaskID: task.ID, RoutineTaskID: rts[0].ID})
			assert.ErrorIs(t, err, domain.ErrValidation)
			_, err = s.CreateItem(ctx, "missing", domain.ItemInput{})
			assert.ErrorIs(t, err, domain.ErrNotFound)
		})
	}
}

func TestStore_UpdateItemAndLogs(t *testing.T) {
	t.Parallel()

	for name, open := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			s := open(t)

			a, err := s.CreateAgenda(ctx, day)
			require.NoError(t, err)
			start := day.Add(10 * time.Hour)
			it, err := s.CreateItem(ctx, a.ID, domain.ItemInput{StartAt: &start, Duration: domain.IntPtr(45)})
			require.NoError(t, err)

			exp, err := s.ListExpirable(ctx)
			require.NoError(t, err)
			require.Len(t, exp, 1)

			done := domain.ItemCompleted
			upd, err := s.UpdateItem(ctx, it.ID, domain.ItemPatch{Status: &done, ClearStartAt: true})
			require.NoError(t, err)
			assert.Equal(t, domain.ItemCompleted, upd.Status)
			assert.Nil(t, upd.StartAt)
			require.NotNil(t, upd.Duration)
			assert.Equal(t, 45, *upd.Duration)

			exp, err = s.ListExpirable(ctx)
			require.NoError(t, err)
			assert.Empty(t, exp)

			_, err = s.AppendItemLog(ctx, domain.AgendaItemLog{
				AgendaItemID: it.ID,
				Type:         domain.LogCompleted,
				NewValue:     map[string]any{"status": "COMPLETED"},
			})
			require.NoError(t, err)
			logs, err := s.ListItemLogs(ctx, it.ID)
			require.NoError(t, err)
			require.Len(t, logs, 1)
			assert.Equal(t, domain.LogCompleted, logs[0].Type)
			assert.Equal(t, "COMPLETED", logs[0].NewValue["status"])

			_, err = s.UpdateItem(ctx, "missing", domain.ItemPatch{})
			assert.ErrorIs(t, err, domain.ErrNotFound)
		})
	}
}

func TestStore_RoutinesAndTaskLogs(t *testing.T) {
	t.Parallel()

	for name, open := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			s := open(t)

			r, err := s.CreateRoutine(ctx, domain.RoutineInput{Name: "Sleep", Type: domain.RoutineSleep, Target: "22:00-06:00"})
			require.NoError(t, err)
			assert.Equal(t, 1, r.SeparateInto)

			tasks, err := s.CreateRoutineTasks(ctx, []domain.RoutineTaskInput{
				{RoutineID: r.ID, Name: "Wake up", Target: "06:00"},
				{RoutineID: r.ID, Name: "Sleep", Target: "22:00"},
			})
			require.NoError(t, err)
			require.Len(t, tasks, 2)

			got, err := s.GetRoutine(ctx, r.ID)
			require.NoError(t, err)
			require.Len(t, got.Tasks, 2)
			assert.Equal(t, "Wake up", got.Tasks[0].Name)

			paused := domain.RoutinePaused
			_, err = s.UpdateRoutine(ctx, r.ID, domain.RoutinePatch{Status: &paused})
			require.NoError(t, err)
			active, err := s.ActiveRoutines(ctx)
			require.NoError(t, err)
			assert.Empty(t, active)
			all, err := s.ListRoutines(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 1)

			l, err := s.CreateTaskLog(ctx, tasks[0].ID, "1")
			require.NoError(t, err)
			logs, err := s.TaskLogs(ctx, []string{tasks[0].ID, tasks[1].ID}, l.CreatedAt.Add(-time.Minute), l.CreatedAt)
			require.NoError(t, err)
			assert.Len(t, logs, 1)
			logs, err = s.TaskLogs(ctx, []string{tasks[0].ID}, l.CreatedAt.Add(time.Second), l.CreatedAt.Add(time.Hour))
			require.NoError(t, err)
			assert.Empty(t, logs)

			ids, err := s.DeleteRoutineTasks(ctx, r.ID)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{tasks[0].ID, tasks[1].ID}, ids)
			got, err = s.GetRoutine(ctx, r.ID)
			require.NoError(t, err)
			assert.Empty(t, got.Tasks)

			_, err = s.CreateTaskLog(ctx, "missing", "1")
			assert.ErrorIs(t, err, domain.ErrNotFound)
		})
	}
}

func TestStore_AlarmPlans(t *testing.T) {
	t.Parallel()

	for name, open := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			s := open(t)

			target := day.Add(22 * time.Hour)
			first, err := s.CreateAlarmPlan(ctx, domain.AlarmPlanInput{
				RoutineTaskID: "rt-1",
				Type:          domain.AlarmStep,
				TargetAt:      target,
				Metadata:      domain.AlarmMetadata{RoutineID: "r-1", Expected: domain.IntPtr(10), Actual: domain.IntPtr(4)},
			})
			require.NoError(t, err)
			assert.Equal(t, domain.AlarmPending, first.Status)
			second, err := s.CreateAlarmPlan(ctx, domain.AlarmPlanInput{RoutineTaskID: "rt-1", Type: domain.AlarmStep, TargetAt: target.Add(-time.Hour)})
			require.NoError(t, err)

			latest, ok, err := s.FindAlarmPlan(ctx, domain.AlarmPlanFilter{RoutineTaskID: "rt-1", Types: []domain.AlarmType{domain.AlarmStep}})
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, second.ID, latest.ID, "newest created wins")

			list, err := s.ListAlarmPlans(ctx, domain.AlarmPlanFilter{RoutineTaskID: "rt-1"})
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, second.ID, list[0].ID, "ordered by target")
			require.NotNil(t, list[1].Metadata.Actual)
			assert.Equal(t, 4, *list[1].Metadata.Actual)

			done, err := s.UpdateAlarmStatus(ctx, first.ID, domain.AlarmDone)
			require.NoError(t, err)
			assert.Equal(t, domain.AlarmDone, done.Status)

			_, ok, err = s.FindAlarmPlan(ctx, domain.AlarmPlanFilter{
				Statuses:   []domain.AlarmStatus{domain.AlarmPending},
				TargetFrom: target.Add(-30 * time.Minute),
				TargetTo:   target.Add(time.Hour),
			})
			require.NoError(t, err)
			assert.False(t, ok)

			_, err = s.UpdateAlarmStatus(ctx, "missing", domain.AlarmDone)
			assert.ErrorIs(t, err, domain.ErrNotFound)
		})
	}
}

func TestFileStore_ReopenKeepsState(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "agenda.json")

	s, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	require.NoError(t, err)
	a, err := s.CreateAgenda(ctx, day)
	require.NoError(t, err)
	it, err := s.CreateItem(ctx, a.ID, domain.ItemInput{Notes: "keep me"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(Config{Driver: "file", Path: path}, logx.Nop())
	require.NoError(t, err)
	defer s.Close()
	got, err := s.GetItem(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, "keep me", got.Notes)
}

func TestFileStore_FailedSnapshotRejectsChange(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "agenda.json")

	s, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	require.NoError(t, err)
	defer s.Close()
	a, err := s.CreateAgenda(ctx, day)
	require.NoError(t, err)

	// A directory where the temp snapshot goes makes the next write fail.
	blocker := filepath.Join(filepath.Dir(path), "agenda.snapshot.json.tmp")
	require.NoError(t, os.Mkdir(blocker, 0o755))

	_, err = s.CreateItem(ctx, a.ID, domain.ItemInput{Notes: "lost"})
	require.Error(t, err)
	_, err = s.CreateAgenda(ctx, day.AddDate(0, 0, 1))
	require.Error(t, err)

	items, err := s.ListItemsByAgenda(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, items)
	_, ok, err := s.AgendaByDate(ctx, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, os.Remove(blocker))
	_, err = s.CreateItem(ctx, a.ID, domain.ItemInput{Notes: "kept"})
	require.NoError(t, err)
	items, err = s.ListItemsByAgenda(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "kept", items[0].Notes)
}

func TestMemoryStore_ClosedRejectsCalls(t *testing.T) {
	t.Parallel()
	s := NewMemory()
	require.NoError(t, s.Close())
	_, err := s.CreateAgenda(context.Background(), day)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestOpen_UnknownDriver(t *testing.T) {
	t.Parallel()
	_, err := Open(Config{Driver: "postgres"}, logx.Nop())
	require.Error(t, err)
	assert.Equal(t, "memory", NormalizeDriver(" MEM "))
	assert.Equal(t, "sqlite", NormalizeDriver("sqlite3"))
}

func TestWithEvents_PublishesWrites(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	bus := eventbus.New()
	ch, unsub, err := bus.SubscribeMatch("agenda*.added", 16)
	require.NoError(t, err)
	defer unsub()

	s := WithEvents(NewMemory(), bus, logx.Nop())
	a, err := s.CreateAgenda(ctx, day)
	require.NoError(t, err)
	_, err = s.CreateAgenda(ctx, day)
	require.NoError(t, err)
	it, err := s.CreateItem(ctx, a.ID, domain.ItemInput{})
	require.NoError(t, err)

	var types []string
	for len(ch) > 0 {
		ev := <-ch
		types = append(types, ev.Type)
		if ev.Type == "agenda-item.added" {
			assert.Equal(t, it.ID, ev.Data.(eventbus.EntityEvent).ID)
		}
	}
	assert.Equal(t, []string{"agenda.added", "agenda-item.added"}, types)
}
