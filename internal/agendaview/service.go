// Package agendaview assembles day, week and month calendar views from
// stored agenda items for an anchor date-key and an IANA time zone.
package agendaview

import (
	"context"
	"fmt"
	"time"

	"agendaengine/internal/calendar"
	"agendaengine/internal/domain"
	logx "agendaengine/pkg/logx"
)

// Reader is the read side the views need. Each agenda carries its enriched
// items; storage.Store satisfies it.
type Reader interface {
	AgendasInRange(ctx context.Context, start, end time.Time) ([]domain.AgendaWithItems, error)
}

type Service struct {
	store Reader
	now   func() time.Time
	log   logx.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(log logx.Logger) Option {
	return func(s *Service) { s.log = log }
}

func New(store Reader, opts ...Option) *Service {
	s := &Service{store: store, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.OrNop().Component("agendaview")
	return s
}

// prepare validates the zone and anchor before anything touches storage.
func prepare(tz, anchor string) (calendar.Zone, error) {
	z, err := calendar.LoadZone(tz)
	if err != nil {
		return calendar.Zone{}, err
	}
	if err := calendar.ValidateDateKey(anchor); err != nil {
		return calendar.Zone{}, err
	}
	return z, nil
}

// itemsByDate runs one range query over [first, last] and groups the items
// by agenda date-key.
func (s *Service) itemsByDate(ctx context.Context, first, last string) (map[string][]domain.AgendaItem, error) {
	start, err := calendar.StartOfDayUTC(first)
	if err != nil {
		return nil, err
	}
	end, err := calendar.EndOfDayUTC(last)
	if err != nil {
		return nil, err
	}
	agendas, err := s.store.AgendasInRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("load agendas %s..%s: %w", first, last, err)
	}
	out := make(map[string][]domain.AgendaItem, len(agendas))
	for _, a := range agendas {
		key := calendar.FormatDateKey(a.Date)
		out[key] = append(out[key], a.Items...)
	}
	return out, nil
}

func (s *Service) Day(ctx context.Context, anchor, tz string) (DayView, error) {
	z, err := prepare(tz, anchor)
	if err != nil {
		return DayView{}, err
	}
	today := z.Today(s.now())
	byDate, err := s.itemsByDate(ctx, anchor, anchor)
	if err != nil {
		return DayView{}, err
	}
	items := byDate[anchor]

	c := classify(items)
	allDay, timed := splitTimed(c.scheduled())

	var special SpecialItems
	if len(c.sleepItems) > 0 {
		special.Sleep = &c.sleepItems[0]
	}
	if len(c.sleepItems) > 1 {
		special.Wakeup = &c.sleepItems[1]
	}
	if len(c.steps) > 0 {
		special.Step = &c.steps[0]
	}

	label, err := calendar.DayLabel(anchor)
	if err != nil {
		return DayView{}, err
	}
	prev, _ := calendar.AddDays(anchor, -1)
	next, _ := calendar.AddDays(anchor, 1)
	unf := unfinished(items)

	v := DayView{
		Mode:       ModeDay,
		Timezone:   z.Name(),
		AnchorDate: anchor,
		Label:      label,
		DateKey:    anchor,
		IsToday:    anchor == today,
		WakeUpHour: localHour(z, special.Wakeup),
		SleepHour:  localHour(z, special.Sleep),
		Navigation: Navigation{
			AnchorDate:         anchor,
			PreviousAnchorDate: prev,
			NextAnchorDate:     next,
			TodayAnchorDate:    today,
		},
		Hours:           hourSlots(z, timed),
		AllDayItems:     allDay,
		SpecialItems:    special,
		UnfinishedItems: unf,
	}
	v.IsEmpty = len(c.tasks) == 0 && len(c.routines) == 0 && len(c.steps) == 0 &&
		special.Wakeup == nil && special.Sleep == nil && len(unf) == 0

	s.log.Debug("day view", logx.String("date", anchor), logx.String("tz", z.Name()), logx.Int("items", len(items)))
	return v, nil
}

func localHour(z calendar.Zone, it *domain.AgendaItem) *int {
	if it == nil || it.StartAt == nil {
		return nil
	}
	h, _ := z.TimeParts(*it.StartAt)
	return &h
}

func (s *Service) Week(ctx context.Context, anchor, tz string) (WeekView, error) {
	z, err := prepare(tz, anchor)
	if err != nil {
		return WeekView{}, err
	}
	today := z.Today(s.now())
	rng, err := calendar.WeekRange(anchor)
	if err != nil {
		return WeekView{}, err
	}
	keys, err := calendar.WeekDays(anchor)
	if err != nil {
		return WeekView{}, err
	}
	byDate, err := s.itemsByDate(ctx, rng.Start, rng.End)
	if err != nil {
		return WeekView{}, err
	}

	days := make([]WeekDay, 0, len(keys))
	for _, key := range keys {
		allDay, timed := splitTimed(classify(byDate[key]).scheduled())
		label, _ := calendar.DayNumberLabel(key)
		short, _ := calendar.WeekdayShortLabel(key)
		days = append(days, WeekDay{
			DateKey:     key,
			Label:       label,
			ShortLabel:  short,
			IsToday:     key == today,
			AllDayItems: allDay,
			TimedItems:  timedLayout(z, timed),
		})
	}

	label, err := calendar.WeekLabel(rng.Start, rng.End)
	if err != nil {
		return WeekView{}, err
	}
	prev, _ := calendar.AddDays(rng.Start, -calendar.DaysPerWeek)
	next, _ := calendar.AddDays(rng.Start, calendar.DaysPerWeek)

	s.log.Debug("week view", logx.String("start", rng.Start), logx.String("tz", z.Name()))
	return WeekView{
		Mode:       ModeWeek,
		Timezone:   z.Name(),
		AnchorDate: anchor,
		Label:      label,
		RangeStart: rng.Start,
		RangeEnd:   rng.End,
		Navigation: Navigation{
			AnchorDate:         rng.Start,
			PreviousAnchorDate: prev,
			NextAnchorDate:     next,
			TodayAnchorDate:    today,
		},
		Hours:           hours(),
		Days:            days,
		UnfinishedItems: unfinished(byDate[anchor]),
	}, nil
}

func (s *Service) Month(ctx context.Context, anchor, tz string) (MonthView, error) {
	z, err := prepare(tz, anchor)
	if err != nil {
		return MonthView{}, err
	}
	today := z.Today(s.now())
	month, err := calendar.MonthRange(anchor)
	if err != nil {
		return MonthView{}, err
	}
	grid, err := calendar.MonthGridDays(anchor)
	if err != nil {
		return MonthView{}, err
	}
	byDate, err := s.itemsByDate(ctx, grid[0], grid[len(grid)-1])
	if err != nil {
		return MonthView{}, err
	}

	days := make([]MonthDay, 0, len(grid))
	for _, key := range grid {
		sorted := monthOrder(z, classify(byDate[key]).scheduled())
		visible := sorted[:min(len(sorted), MaxMonthItems)]
		label, _ := calendar.DayNumberLabel(key)
		days = append(days, MonthDay{
			DateKey:        key,
			Label:          label,
			IsToday:        key == today,
			IsCurrentMonth: calendar.SameMonth(key, month.Start),
			Items:          visible,
			OverflowCount:  len(sorted) - len(visible),
		})
	}

	label, err := calendar.MonthLabel(month.Start)
	if err != nil {
		return MonthView{}, err
	}
	prev, _ := calendar.AddMonths(month.Start, -1)
	next, _ := calendar.AddMonths(month.Start, 1)

	s.log.Debug("month view", logx.String("month", month.Start), logx.String("tz", z.Name()))
	return MonthView{
		Mode:       ModeMonth,
		Timezone:   z.Name(),
		AnchorDate: anchor,
		Label:      label,
		MonthStart: month.Start,
		MonthEnd:   month.End,
		Navigation: Navigation{
			AnchorDate:         month.Start,
			PreviousAnchorDate: prev,
			NextAnchorDate:     next,
			TodayAnchorDate:    today,
		},
		WeekdayLabels:   calendar.WeekdayLabels(),
		Days:            days,
		UnfinishedItems: unfinished(byDate[anchor]),
	}, nil
}
