package domain

import (
	"slices"
	"time"
)

// ItemInput is the data needed to create an agenda item.
type ItemInput struct {
	TaskID         string
	RoutineTaskID  string
	Type           ItemType
	Status         ItemStatus
	StartAt        *time.Time
	Duration       *int
	Position       int
	Notes          string
	NotificationID string
}

// ItemPatch updates only the non-nil fields.
// ClearStartAt/ClearDuration explicitly null the corresponding column.
type ItemPatch struct {
	AgendaID      *string
	Status        *ItemStatus
	StartAt       *time.Time
	ClearStartAt  bool
	Duration      *int
	ClearDuration bool
	Position      *int
	Notes         *string
}

type RoutineInput struct {
	Name                  string
	Type                  RoutineType
	Target                string
	SeparateInto          int
	RepeatIntervalMinutes *int
	Status                RoutineStatus
}

type RoutinePatch struct {
	Name                  *string
	Type                  *RoutineType
	Target                *string
	SeparateInto          *int
	RepeatIntervalMinutes *int
	Status                *RoutineStatus
}

type RoutineTaskInput struct {
	RoutineID string
	Name      string
	Target    string
}

type AlarmPlanInput struct {
	RoutineTaskID         string
	Type                  AlarmType
	TargetAt              time.Time
	Status                AlarmStatus
	RepeatIntervalMinutes *int
	Metadata              AlarmMetadata
}

// AlarmPlanFilter selects plans; zero-valued fields are ignored.
// TargetFrom/TargetTo bound TargetAt inclusively.
type AlarmPlanFilter struct {
	RoutineTaskID string
	Types         []AlarmType
	Statuses      []AlarmStatus
	TargetFrom    time.Time
	TargetTo      time.Time
}

// Match reports whether p satisfies the filter.
func (f AlarmPlanFilter) Match(p AlarmPlan) bool {
	if f.RoutineTaskID != "" && p.RoutineTaskID != f.RoutineTaskID {
		return false
	}
	if len(f.Types) > 0 && !slices.Contains(f.Types, p.Type) {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, p.Status) {
		return false
	}
	if !f.TargetFrom.IsZero() && p.TargetAt.Before(f.TargetFrom) {
		return false
	}
	if !f.TargetTo.IsZero() && p.TargetAt.After(f.TargetTo) {
		return false
	}
	return true
}
