package agendaview

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agendaengine/internal/domain"
	"agendaengine/internal/storage"
)

var fixedNow = time.Date(2026, 2, 5, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store storage.Store
	svc   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := storage.NewMemory()
	t.Cleanup(func() { _ = st.Close() })
	return &fixture{store: st, svc: New(st, WithClock(func() time.Time { return fixedNow }))}
}

func (f *fixture) agenda(t *testing.T, key string) domain.Agenda {
	t.Helper()
	d, err := time.Parse(time.DateOnly, key)
	require.NoError(t, err)
	a, err := f.store.CreateAgenda(context.Background(), d)
	require.NoError(t, err)
	return a
}

func (f *fixture) task(t *testing.T, agendaID, title string, in domain.ItemInput) domain.AgendaItem {
	t.Helper()
	ctx := context.Background()
	task, err := f.store.CreateTask(ctx, title)
	require.NoError(t, err)
	in.TaskID = task.ID
	it, err := f.store.CreateItem(ctx, agendaID, in)
	require.NoError(t, err)
	return it
}

func (f *fixture) routineItems(t *testing.T, agendaID string, typ domain.RoutineType, names []string, starts []*time.Time) []domain.AgendaItem {
	t.Helper()
	ctx := context.Background()
	r, err := f.store.CreateRoutine(ctx, domain.RoutineInput{Name: string(typ), Type: typ, Target: "1"})
	require.NoError(t, err)
	in := make([]domain.RoutineTaskInput, len(names))
	for i, n := range names {
		in[i] = domain.RoutineTaskInput{RoutineID: r.ID, Name: n, Target: "1"}
	}
	tasks, err := f.store.CreateRoutineTasks(ctx, in)
	require.NoError(t, err)
	out := make([]domain.AgendaItem, len(tasks))
	for i, rt := range tasks {
		out[i], err = f.store.CreateItem(ctx, agendaID, domain.ItemInput{RoutineTaskID: rt.ID, StartAt: starts[i], Position: i})
		require.NoError(t, err)
	}
	return out
}

func at(key string, h, m int) *time.Time {
	d, _ := time.Parse(time.DateOnly, key)
	t := d.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
	return &t
}

func ids(items []domain.AgendaItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

type failingReader struct{ calls int }

func (r *failingReader) AgendasInRange(context.Context, time.Time, time.Time) ([]domain.AgendaWithItems, error) {
	r.calls++
	return nil, errors.New("boom")
}

func TestViews_RejectBadInputBeforeReading(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		anchor string
		tz     string
		want   error
	}{
		{name: "unknown zone", anchor: "2026-02-05", tz: "Mars/Olympus", want: domain.ErrConfiguration},
		{name: "empty zone", anchor: "2026-02-05", tz: "", want: domain.ErrConfiguration},
		{name: "bad key", anchor: "2026-2-5", tz: "UTC", want: domain.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := &failingReader{}
			svc := New(r)
			ctx := context.Background()

			_, err := svc.Day(ctx, tt.anchor, tt.tz)
			assert.ErrorIs(t, err, tt.want)
			_, err = svc.Week(ctx, tt.anchor, tt.tz)
			assert.ErrorIs(t, err, tt.want)
			_, err = svc.Month(ctx, tt.anchor, tt.tz)
			assert.ErrorIs(t, err, tt.want)
			assert.Zero(t, r.calls)
		})
	}
}

func TestViews_PropagateStorageErrors(t *testing.T) {
	t.Parallel()
	_, err := New(&failingReader{}).Day(context.Background(), "2026-02-05", "UTC")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestDay_EmptyAgenda(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	v, err := f.svc.Day(context.Background(), "2026-02-05", "UTC")
	require.NoError(t, err)
	assert.Equal(t, ModeDay, v.Mode)
	assert.True(t, v.IsEmpty)
	assert.True(t, v.IsToday)
	assert.Len(t, v.Hours, 24)
	assert.Equal(t, "12 AM", v.Hours[0].Label)
	assert.Nil(t, v.WakeUpHour)
	assert.Equal(t, Navigation{
		AnchorDate:         "2026-02-05",
		PreviousAnchorDate: "2026-02-04",
		NextAnchorDate:     "2026-02-06",
		TodayAnchorDate:    "2026-02-05",
	}, v.Navigation)
}

func TestDay_BucketsAndOrdersItems(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	a := f.agenda(t, "2026-02-05")

	plain := f.task(t, a.ID, "plain", domain.ItemInput{StartAt: at("2026-02-05", 9, 0), Duration: domain.IntPtr(30)})
	meeting := f.task(t, a.ID, "meeting", domain.ItemInput{Type: domain.ItemMeeting, StartAt: at("2026-02-05", 9, 0)})
	early := f.task(t, a.ID, "early", domain.ItemInput{StartAt: at("2026-02-05", 7, 45)})
	allDay := f.task(t, a.ID, "all day", domain.ItemInput{})
	gone := f.task(t, a.ID, "gone", domain.ItemInput{Status: domain.ItemUnfinished, StartAt: at("2026-02-05", 9, 0)})
	other := f.routineItems(t, a.ID, domain.RoutineOther, []string{"Read"}, []*time.Time{nil})

	v, err := f.svc.Day(context.Background(), "2026-02-05", "UTC")
	require.NoError(t, err)

	assert.Equal(t, []string{meeting.ID, plain.ID}, ids(v.Hours[9].Items), "meeting sorts before plain task in the same minute")
	assert.Equal(t, []string{early.ID}, ids(v.Hours[7].Items))
	assert.ElementsMatch(t, []string{allDay.ID, other[0].ID}, ids(v.AllDayItems))
	assert.Equal(t, []string{gone.ID}, ids(v.UnfinishedItems))
	assert.False(t, v.IsEmpty)
}

func TestDay_HoursFollowZone(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	a := f.agenda(t, "2026-02-05")
	// 02:00Z is 09:00 in Jakarta (UTC+7).
	it := f.task(t, a.ID, "standup", domain.ItemInput{StartAt: at("2026-02-05", 2, 0)})

	v, err := f.svc.Day(context.Background(), "2026-02-05", "Asia/Jakarta")
	require.NoError(t, err)
	assert.Equal(t, "Asia/Jakarta", v.Timezone)
	assert.Equal(t, []string{it.ID}, ids(v.Hours[9].Items))
	assert.Empty(t, v.Hours[2].Items)
}

func TestDay_SpecialItems(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	a := f.agenda(t, "2026-02-05")

	sleep := f.routineItems(t, a.ID, domain.RoutineSleep,
		[]string{"Wake up time", "Sleep time"},
		[]*time.Time{at("2026-02-05", 6, 0), at("2026-02-05", 22, 0)})
	steps := f.routineItems(t, a.ID, domain.RoutineStep,
		[]string{"Steps segment 1", "Steps segment 2"},
		[]*time.Time{at("2026-02-05", 8, 0), at("2026-02-05", 14, 0)})

	v, err := f.svc.Day(context.Background(), "2026-02-05", "UTC")
	require.NoError(t, err)

	require.NotNil(t, v.SpecialItems.Sleep)
	require.NotNil(t, v.SpecialItems.Wakeup)
	require.NotNil(t, v.SpecialItems.Step)
	assert.Equal(t, sleep[0].ID, v.SpecialItems.Sleep.ID)
	assert.Equal(t, sleep[1].ID, v.SpecialItems.Wakeup.ID)
	assert.Equal(t, steps[0].ID, v.SpecialItems.Step.ID)
	require.NotNil(t, v.SleepHour)
	require.NotNil(t, v.WakeUpHour)
	assert.Equal(t, 6, *v.SleepHour)
	assert.Equal(t, 22, *v.WakeUpHour)

	for _, slot := range v.Hours {
		assert.Empty(t, slot.Items, "sleep and step items are not scheduled rows")
	}
	assert.False(t, v.IsEmpty)
}

func TestWeek_LayoutAndNavigation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	a := f.agenda(t, "2026-02-05")
	b := f.agenda(t, "2026-02-08")
	outside := f.agenda(t, "2026-02-09")

	first := f.task(t, a.ID, "A", domain.ItemInput{StartAt: at("2026-02-05", 9, 0), Duration: domain.IntPtr(60)})
	second := f.task(t, a.ID, "B", domain.ItemInput{StartAt: at("2026-02-05", 9, 30), Duration: domain.IntPtr(60)})
	third := f.task(t, a.ID, "C", domain.ItemInput{StartAt: at("2026-02-05", 10, 30)})
	unf := f.task(t, a.ID, "late", domain.ItemInput{Status: domain.ItemUnfinished})
	sunday := f.task(t, b.ID, "sunday", domain.ItemInput{})
	f.task(t, outside.ID, "next week", domain.ItemInput{})

	v, err := f.svc.Week(context.Background(), "2026-02-05", "UTC")
	require.NoError(t, err)

	assert.Equal(t, "2026-02-02", v.RangeStart)
	assert.Equal(t, "2026-02-08", v.RangeEnd)
	assert.Equal(t, Navigation{
		AnchorDate:         "2026-02-02",
		PreviousAnchorDate: "2026-01-26",
		NextAnchorDate:     "2026-02-09",
		TodayAnchorDate:    "2026-02-05",
	}, v.Navigation)
	require.Len(t, v.Days, 7)
	assert.Len(t, v.Hours, 24)
	assert.Equal(t, "Mon", v.Days[0].ShortLabel)

	thu := v.Days[3]
	assert.Equal(t, "2026-02-05", thu.DateKey)
	assert.True(t, thu.IsToday)
	require.Len(t, thu.TimedItems, 3)
	got := map[string]TimedItem{}
	for _, p := range thu.TimedItems {
		got[p.Item.ID] = p
	}
	assert.Equal(t, 2, got[first.ID].OverlapCount)
	assert.Equal(t, 2, got[second.ID].OverlapCount)
	assert.NotEqual(t, got[first.ID].OverlapIndex, got[second.ID].OverlapIndex)
	assert.Equal(t, 1, got[third.ID].OverlapCount)
	assert.Equal(t, 30, got[third.ID].DurationMinutes, "missing duration defaults")

	assert.Equal(t, []string{sunday.ID}, ids(v.Days[6].AllDayItems))
	assert.Equal(t, []string{unf.ID}, ids(v.UnfinishedItems))
	for _, d := range v.Days {
		assert.NotNil(t, d.TimedItems)
		assert.NotNil(t, d.AllDayItems)
	}
}

func TestMonth_GridOverflowAndOrder(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	a := f.agenda(t, "2026-02-05")
	prev := f.agenda(t, "2026-01-27")

	late := f.task(t, a.ID, "late", domain.ItemInput{StartAt: at("2026-02-05", 15, 0)})
	milestone := f.task(t, a.ID, "ms", domain.ItemInput{Type: domain.ItemMilestone, StartAt: at("2026-02-05", 9, 0)})
	plain := f.task(t, a.ID, "plain", domain.ItemInput{StartAt: at("2026-02-05", 9, 0)})
	untimed := f.task(t, a.ID, "untimed", domain.ItemInput{})
	spill := f.task(t, prev.ID, "spill", domain.ItemInput{})

	v, err := f.svc.Month(context.Background(), "2026-02-17", "UTC")
	require.NoError(t, err)

	assert.Equal(t, "2026-02-01", v.MonthStart)
	assert.Equal(t, "2026-02-28", v.MonthEnd)
	assert.Equal(t, "2026-02-01", v.Navigation.AnchorDate)
	assert.Equal(t, "2026-01-01", v.Navigation.PreviousAnchorDate)
	assert.Equal(t, "2026-03-01", v.Navigation.NextAnchorDate)
	assert.Equal(t, []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}, v.WeekdayLabels)
	require.Len(t, v.Days, 42)
	assert.Equal(t, "2026-01-26", v.Days[0].DateKey)
	assert.False(t, v.Days[0].IsCurrentMonth)

	var feb5, jan27 MonthDay
	for _, d := range v.Days {
		switch d.DateKey {
		case "2026-02-05":
			feb5 = d
		case "2026-01-27":
			jan27 = d
		}
	}
	assert.True(t, feb5.IsCurrentMonth)
	assert.True(t, feb5.IsToday)
	assert.Equal(t, []string{untimed.ID, milestone.ID, plain.ID}, ids(feb5.Items))
	assert.Equal(t, 1, feb5.OverflowCount)
	assert.NotContains(t, ids(feb5.Items), late.ID)
	assert.Equal(t, []string{spill.ID}, ids(jan27.Items))
	assert.Empty(t, v.UnfinishedItems)
}

func TestMonth_ClampsNavigation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	v, err := f.svc.Month(context.Background(), "2026-03-31", "America/New_York")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01", v.Navigation.AnchorDate)
	assert.Equal(t, "2026-02-01", v.Navigation.PreviousAnchorDate)
	assert.Equal(t, "2026-04-01", v.Navigation.NextAnchorDate)
	assert.Equal(t, "March 2026", v.Label)
}
