package agendaview

import (
	"cmp"
	"slices"

	"agendaengine/internal/calendar"
	"agendaengine/internal/domain"
	"agendaengine/internal/layout"
)

type classified struct {
	tasks      []domain.AgendaItem
	routines   []domain.AgendaItem
	steps      []domain.AgendaItem
	sleepItems []domain.AgendaItem
}

func classify(items []domain.AgendaItem) classified {
	var c classified
	for _, it := range items {
		if it.RoutineTask == nil {
			if it.Task != nil {
				c.tasks = append(c.tasks, it)
			}
			continue
		}
		switch it.RoutineType() {
		case domain.RoutineSleep:
			c.sleepItems = append(c.sleepItems, it)
		case domain.RoutineStep:
			c.steps = append(c.steps, it)
		default:
			c.routines = append(c.routines, it)
		}
	}
	slices.SortStableFunc(c.sleepItems, func(a, b domain.AgendaItem) int { return cmp.Compare(a.Position, b.Position) })
	return c
}

// scheduled returns tasks then routines, minus UNFINISHED items.
func (c classified) scheduled() []domain.AgendaItem {
	out := make([]domain.AgendaItem, 0, len(c.tasks)+len(c.routines))
	for _, group := range [][]domain.AgendaItem{c.tasks, c.routines} {
		for _, it := range group {
			if it.Status != domain.ItemUnfinished {
				out = append(out, it)
			}
		}
	}
	return out
}

func splitTimed(items []domain.AgendaItem) (allDay, timed []domain.AgendaItem) {
	allDay = []domain.AgendaItem{}
	for _, it := range items {
		if it.StartAt == nil {
			allDay = append(allDay, it)
		} else {
			timed = append(timed, it)
		}
	}
	return allDay, timed
}

func unfinished(items []domain.AgendaItem) []domain.AgendaItem {
	out := []domain.AgendaItem{}
	for _, it := range items {
		if it.Status == domain.ItemUnfinished {
			out = append(out, it)
		}
	}
	return out
}

// priority orders items that start in the same minute.
func priority(it domain.AgendaItem) int {
	switch {
	case it.Type == domain.ItemMeeting:
		return 1
	case it.Type == domain.ItemMilestone:
		return 2
	case it.TaskID != "":
		return 3
	case it.RoutineTaskID != "":
		return 4
	}
	return 5
}

func startMinute(z calendar.Zone, it domain.AgendaItem) int {
	if it.StartAt == nil {
		return 0
	}
	return z.MinuteOfDay(*it.StartAt)
}

func durationMinutes(it domain.AgendaItem) int {
	if it.Duration != nil && *it.Duration > 0 {
		return *it.Duration
	}
	return calendar.DefaultEventDurationMinutes
}

func byStartThenPriority(z calendar.Zone) func(a, b domain.AgendaItem) int {
	return func(a, b domain.AgendaItem) int {
		return cmp.Or(
			cmp.Compare(startMinute(z, a), startMinute(z, b)),
			cmp.Compare(priority(a), priority(b)),
		)
	}
}

func hours() []Hour {
	out := make([]Hour, 24)
	for h := range out {
		out[h] = Hour{Hour: h, Label: calendar.HourLabel(h)}
	}
	return out
}

func hourSlots(z calendar.Zone, timed []domain.AgendaItem) []HourSlot {
	sorted := slices.Clone(timed)
	slices.SortStableFunc(sorted, byStartThenPriority(z))

	slots := make([]HourSlot, 24)
	for i, h := range hours() {
		slots[i] = HourSlot{Hour: h, Items: []domain.AgendaItem{}}
	}
	for _, it := range sorted {
		h, _ := z.TimeParts(*it.StartAt)
		slots[h].Items = append(slots[h].Items, it)
	}
	return slots
}

func timedLayout(z calendar.Zone, timed []domain.AgendaItem) []TimedItem {
	entries := make([]layout.Entry[domain.AgendaItem], 0, len(timed))
	for _, it := range timed {
		entries = append(entries, layout.Entry[domain.AgendaItem]{
			Item:            it,
			StartMinute:     startMinute(z, it),
			DurationMinutes: durationMinutes(it),
		})
	}
	out := layout.Assign(entries)
	if out == nil {
		out = []TimedItem{}
	}
	return out
}

// monthOrder puts untimed items first, then orders by start and priority.
func monthOrder(z calendar.Zone, items []domain.AgendaItem) []domain.AgendaItem {
	sorted := slices.Clone(items)
	byStart := byStartThenPriority(z)
	slices.SortStableFunc(sorted, func(a, b domain.AgendaItem) int {
		at, bt := a.StartAt != nil, b.StartAt != nil
		if at != bt {
			if at {
				return 1
			}
			return -1
		}
		return byStart(a, b)
	})
	return sorted
}
