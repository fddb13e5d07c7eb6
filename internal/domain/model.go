package domain

import "time"

type ItemStatus string

const (
	ItemPending    ItemStatus = "PENDING"
	ItemCompleted  ItemStatus = "COMPLETED"
	ItemUnfinished ItemStatus = "UNFINISHED"
)

type ItemType string

const (
	ItemRegular   ItemType = "REGULAR"
	ItemMeeting   ItemType = "MEETING"
	ItemMilestone ItemType = "MILESTONE"
)

type ItemLogType string

const (
	LogCreated          ItemLogType = "CREATED"
	LogCompleted        ItemLogType = "COMPLETED"
	LogRescheduled      ItemLogType = "RESCHEDULED"
	LogMarkedUnfinished ItemLogType = "MARKED_UNFINISHED"
)

type RoutineType string

const (
	RoutineSleep RoutineType = "SLEEP"
	RoutineStep  RoutineType = "STEP"
	RoutineOther RoutineType = "OTHER"
)

type RoutineStatus string

const (
	RoutineActive RoutineStatus = "ACTIVE"
	RoutinePaused RoutineStatus = "PAUSED"
)

type AlarmType string

const (
	AlarmSleep AlarmType = "SLEEP"
	AlarmWake  AlarmType = "WAKE"
	AlarmStep  AlarmType = "STEP"
)

type AlarmStatus string

const (
	AlarmPending   AlarmStatus = "PENDING"
	AlarmActive    AlarmStatus = "ACTIVE"
	AlarmDone      AlarmStatus = "DONE"
	AlarmCancelled AlarmStatus = "CANCELLED"
)

// Agenda is the per-day container. Date is UTC midnight of the day's key.
type Agenda struct {
	ID        string    `json:"id"`
	Date      time.Time `json:"date"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AgendaWithItems is an agenda plus its (enriched) items.
type AgendaWithItems struct {
	Agenda
	Items []AgendaItem `json:"items"`
}

// AgendaItem is a scheduled unit. An item without StartAt is all-day.
type AgendaItem struct {
	ID             string     `json:"id"`
	AgendaID       string     `json:"agendaId"`
	TaskID         string     `json:"taskId,omitempty"`
	RoutineTaskID  string     `json:"routineTaskId,omitempty"`
	Type           ItemType   `json:"type"`
	Status         ItemStatus `json:"status"`
	StartAt        *time.Time `json:"startAt"`
	Duration       *int       `json:"duration"`
	Position       int        `json:"position"`
	Notes          string     `json:"notes,omitempty"`
	NotificationID string     `json:"notificationId,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`

	// Read-side enrichment; never persisted from these fields.
	Task        *TaskRef        `json:"task,omitempty"`
	RoutineTask *RoutineTaskRef `json:"routineTask,omitempty"`
}

// End returns StartAt+Duration. ok is false unless both are set.
func (it AgendaItem) End() (time.Time, bool) {
	if it.StartAt == nil || it.Duration == nil {
		return time.Time{}, false
	}
	return it.StartAt.Add(time.Duration(*it.Duration) * time.Minute), true
}

// RoutineType returns the owning routine's type, or "" for non-routine items.
func (it AgendaItem) RoutineType() RoutineType {
	if it.RoutineTask == nil {
		return ""
	}
	return it.RoutineTask.RoutineType
}

// TaskRef is the slice of a board task the agenda needs to render.
type TaskRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type RoutineTaskRef struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Target      string      `json:"target"`
	RoutineID   string      `json:"routineId"`
	RoutineName string      `json:"routineName"`
	RoutineType RoutineType `json:"routineType"`
}

type AgendaItemLog struct {
	ID            string         `json:"id"`
	AgendaItemID  string         `json:"agendaItemId"`
	Type          ItemLogType    `json:"type"`
	PreviousValue map[string]any `json:"previousValue,omitempty"`
	NewValue      map[string]any `json:"newValue,omitempty"`
	Notes         string         `json:"notes,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
}

type Routine struct {
	ID                    string        `json:"id"`
	Name                  string        `json:"name"`
	Type                  RoutineType   `json:"type"`
	Target                string        `json:"target"`
	SeparateInto          int           `json:"separateInto"`
	RepeatIntervalMinutes *int          `json:"repeatIntervalMinutes"`
	Status                RoutineStatus `json:"status"`
	CreatedAt             time.Time     `json:"createdAt"`
	UpdatedAt             time.Time     `json:"updatedAt"`

	Tasks []RoutineTask `json:"tasks,omitempty"`
}

type RoutineTask struct {
	ID        string    `json:"id"`
	RoutineID string    `json:"routineId"`
	Name      string    `json:"name"`
	Target    string    `json:"target"`
	CreatedAt time.Time `json:"createdAt"`
}

type RoutineTaskLog struct {
	ID            string    `json:"id"`
	RoutineTaskID string    `json:"routineTaskId"`
	Value         string    `json:"value"`
	CreatedAt     time.Time `json:"createdAt"`
}

type AlarmPlan struct {
	ID                    string        `json:"id"`
	RoutineTaskID         string        `json:"routineTaskId"`
	Type                  AlarmType     `json:"type"`
	TargetAt              time.Time     `json:"targetAt"`
	Status                AlarmStatus   `json:"status"`
	RepeatIntervalMinutes *int          `json:"repeatIntervalMinutes"`
	Metadata              AlarmMetadata `json:"metadata"`
	CreatedAt             time.Time     `json:"createdAt"`
	UpdatedAt             time.Time     `json:"updatedAt"`
}

// AlarmMetadata is the structured payload persisted with a plan.
// Expected/Actual are only set on STEP plans.
type AlarmMetadata struct {
	RoutineID   string      `json:"routineId,omitempty"`
	RoutineType RoutineType `json:"routineType,omitempty"`
	Expected    *int        `json:"expected,omitempty"`
	Actual      *int        `json:"actual,omitempty"`
}

// TimeBlock is an occupied [Start, End] interval used for conflict checks.
type TimeBlock struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the block, bounds included.
func (b TimeBlock) Contains(t time.Time) bool {
	return !t.Before(b.Start) && !t.After(b.End)
}

func IntPtr(v int) *int { return &v }

func TimePtr(t time.Time) *time.Time { return &t }
