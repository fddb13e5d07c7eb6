package routine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agendaengine/internal/domain"
	logx "agendaengine/pkg/logx"
)

var (
	feb5    = time.Date(2026, 2, 5, 3, 0, 0, 0, time.UTC)
	feb5Day = time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC)
)

func TestPlanForDate_NoActiveRoutinesStillCreatesAgenda(t *testing.T) {
	t.Parallel()
	e := newEnv(t, "UTC", feb5)
	ctx := context.Background()

	res, err := e.agendaPlanner().PlanForDate(ctx, feb5)
	require.NoError(t, err)
	assert.NotEmpty(t, res.AgendaID)
	assert.Equal(t, "2026-02-05", res.DateKey)
	assert.Empty(t, res.Created)

	_, ok, err := e.store.AgendaByDate(ctx, feb5Day)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPlanForDate_IsIdempotent(t *testing.T) {
	t.Parallel()
	e := newEnv(t, "UTC", feb5)
	ctx := context.Background()
	e.routine(t, domain.RoutineInput{Name: "Walk", Type: domain.RoutineStep, Target: "8000", SeparateInto: 4})
	e.routine(t, domain.RoutineInput{Name: "Sleep", Type: domain.RoutineSleep, Target: "06:00-22:00"})
	e.routine(t, domain.RoutineInput{Name: "Read", Type: domain.RoutineOther, Target: "20"})

	p := e.agendaPlanner()
	first, err := p.PlanForDate(ctx, feb5)
	require.NoError(t, err)
	assert.Len(t, first.Created, 7)
	assert.Zero(t, first.Skipped)

	second, err := p.PlanForDate(ctx, feb5)
	require.NoError(t, err)
	assert.Equal(t, first.AgendaID, second.AgendaID)
	assert.Empty(t, second.Created)
	assert.Equal(t, 7, second.Skipped)

	items, err := e.store.ListItemsByAgenda(ctx, first.AgendaID)
	require.NoError(t, err)
	assert.Len(t, items, 7)
}

func TestPlanForDate_SpreadsStepsOverWindow(t *testing.T) {
	t.Parallel()
	e := newEnv(t, "Asia/Jakarta", feb5)
	r := e.routine(t, domain.RoutineInput{Name: "Walk", Type: domain.RoutineStep, Target: "8000", SeparateInto: 4})

	res, err := e.agendaPlanner().PlanForDate(context.Background(), feb5)
	require.NoError(t, err)
	got := itemsByTask(res.Created)

	for i, clock := range []string{"08:00", "11:00", "14:00", "17:00"} {
		it := got[r.Tasks[i].ID]
		require.NotNil(t, it.StartAt, clock)
		assert.True(t, it.StartAt.Equal(e.local(t, "2026-02-05", clock)), "task %d at %s, got %s", i, clock, it.StartAt)
		assert.Nil(t, it.Duration)
		assert.Zero(t, it.Position)
	}
}

func TestPlanForDate_ConflictsFallBackToUntimed(t *testing.T) {
	t.Parallel()
	e := newEnv(t, "UTC", feb5)
	ctx := context.Background()

	p := e.agendaPlanner()
	res, err := p.PlanForDate(ctx, feb5)
	require.NoError(t, err)
	// Busy 21:30-22:30; the end bound is inclusive.
	busy := e.local(t, "2026-02-05", "21:30")
	_, err = e.store.CreateItem(ctx, res.AgendaID, domain.ItemInput{StartAt: &busy, Duration: domain.IntPtr(60)})
	require.NoError(t, err)

	sleep := e.routine(t, domain.RoutineInput{Name: "Sleep", Type: domain.RoutineSleep, Target: "06:00-22:30"})
	// Same wake time as the first routine: the zero-length block of the
	// earlier placement makes it collide.
	nap := e.routine(t, domain.RoutineInput{Name: "Nap", Type: domain.RoutineSleep, Target: "06:00-23:00"})
	other := e.routine(t, domain.RoutineInput{Name: "Read", Type: domain.RoutineOther, Target: "20"})

	res, err = p.PlanForDate(ctx, feb5)
	require.NoError(t, err)
	got := itemsByTask(res.Created)
	require.Len(t, got, 5)

	wake := got[sleep.Tasks[0].ID]
	require.NotNil(t, wake.StartAt)
	assert.True(t, wake.StartAt.Equal(e.local(t, "2026-02-05", "06:00")))
	assert.Nil(t, got[sleep.Tasks[1].ID].StartAt, "22:30 touches the busy block")
	assert.Nil(t, got[nap.Tasks[0].ID].StartAt, "06:00 already taken in this run")
	napSleep := got[nap.Tasks[1].ID]
	require.NotNil(t, napSleep.StartAt)
	assert.True(t, napSleep.StartAt.Equal(e.local(t, "2026-02-05", "23:00")))
	assert.Nil(t, got[other.Tasks[0].ID].StartAt)
}

func TestPlanForDate_SkipsPausedAndUsesZoneDay(t *testing.T) {
	t.Parallel()
	// 20:00Z on Feb 5 is already Feb 6 in Jakarta.
	now := time.Date(2026, 2, 5, 20, 0, 0, 0, time.UTC)
	e := newEnv(t, "Asia/Jakarta", now)
	ctx := context.Background()
	e.routine(t, domain.RoutineInput{Name: "Read", Type: domain.RoutineOther, Target: "20", Status: domain.RoutinePaused})
	e.routine(t, domain.RoutineInput{Name: "Walk", Type: domain.RoutineStep, Target: "100"})

	res, err := e.agendaPlanner().PlanForDate(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, "2026-02-06", res.DateKey)
	require.Len(t, res.Created, 1)
	assert.True(t, res.Created[0].StartAt.Equal(e.local(t, "2026-02-06", "08:00")))
}

type failingItems struct {
	AgendaStore
	calls int
}

func (f *failingItems) CreateItem(context.Context, string, domain.ItemInput) (domain.AgendaItem, error) {
	f.calls++
	return domain.AgendaItem{}, errors.New("disk full")
}

func TestPlanForDate_FailsFast(t *testing.T) {
	t.Parallel()
	e := newEnv(t, "UTC", feb5)
	e.routine(t, domain.RoutineInput{Name: "Walk", Type: domain.RoutineStep, Target: "100", SeparateInto: 3})

	store := &failingItems{AgendaStore: e.store}
	_, err := NewAgendaPlanner(store, e.zone, logx.Nop()).PlanForDate(context.Background(), feb5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 1, store.calls)
}
