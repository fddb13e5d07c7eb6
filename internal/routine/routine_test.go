package routine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"agendaengine/internal/calendar"
	"agendaengine/internal/domain"
	"agendaengine/internal/storage"
	logx "agendaengine/pkg/logx"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *testClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
	return c.t
}

type env struct {
	clock *testClock
	zone  calendar.Zone
	store storage.Store
}

func newEnv(t *testing.T, tz string, now time.Time) *env {
	t.Helper()
	z, err := calendar.LoadZone(tz)
	require.NoError(t, err)
	c := &testClock{t: now}
	st := storage.NewMemory(storage.WithClock(c.Now))
	t.Cleanup(func() { _ = st.Close() })
	return &env{clock: c, zone: z, store: st}
}

func (e *env) agendaPlanner() *AgendaPlanner {
	return NewAgendaPlanner(e.store, e.zone, logx.Nop())
}

func (e *env) alarmPlanner() *AlarmPlanner {
	return NewAlarmPlanner(e.store, e.zone, logx.Nop())
}

// routine stores r and the tasks BuildTasks derives from it. The clock
// ticks first so routines keep their creation order.
func (e *env) routine(t *testing.T, in domain.RoutineInput) domain.Routine {
	t.Helper()
	ctx := context.Background()
	e.clock.Advance(time.Second)
	r, err := e.store.CreateRoutine(ctx, in)
	require.NoError(t, err)
	tasks, err := BuildTasks(r)
	require.NoError(t, err)
	_, err = e.store.CreateRoutineTasks(ctx, tasks)
	require.NoError(t, err)
	r, err = e.store.GetRoutine(ctx, r.ID)
	require.NoError(t, err)
	return r
}

func (e *env) local(t *testing.T, key, clock string) time.Time {
	t.Helper()
	v, err := e.zone.TimeOn(key, clock)
	require.NoError(t, err)
	return v
}

func itemsByTask(items []domain.AgendaItem) map[string]domain.AgendaItem {
	out := make(map[string]domain.AgendaItem, len(items))
	for _, it := range items {
		out[it.RoutineTaskID] = it
	}
	return out
}
