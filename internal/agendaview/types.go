package agendaview

import (
	"agendaengine/internal/domain"
	"agendaengine/internal/layout"
)

type Mode string

const (
	ModeDay   Mode = "day"
	ModeWeek  Mode = "week"
	ModeMonth Mode = "month"
)

// MaxMonthItems is how many items a month cell shows before overflowing.
const MaxMonthItems = 3

type Navigation struct {
	AnchorDate         string `json:"anchorDate"`
	PreviousAnchorDate string `json:"previousAnchorDate"`
	NextAnchorDate     string `json:"nextAnchorDate"`
	TodayAnchorDate    string `json:"todayAnchorDate"`
}

type Hour struct {
	Hour  int    `json:"hour"`
	Label string `json:"label"`
}

type HourSlot struct {
	Hour
	Items []domain.AgendaItem `json:"items"`
}

type SpecialItems struct {
	Wakeup *domain.AgendaItem `json:"wakeup"`
	Sleep  *domain.AgendaItem `json:"sleep"`
	Step   *domain.AgendaItem `json:"step"`
}

type DayView struct {
	Mode            Mode                `json:"mode"`
	Timezone        string              `json:"timezone"`
	AnchorDate      string              `json:"anchorDate"`
	Label           string              `json:"label"`
	DateKey         string              `json:"dateKey"`
	IsToday         bool                `json:"isToday"`
	WakeUpHour      *int                `json:"wakeUpHour"`
	SleepHour       *int                `json:"sleepHour"`
	Navigation      Navigation          `json:"navigation"`
	Hours           []HourSlot          `json:"hours"`
	AllDayItems     []domain.AgendaItem `json:"allDayItems"`
	SpecialItems    SpecialItems        `json:"specialItems"`
	UnfinishedItems []domain.AgendaItem `json:"unfinishedItems"`
	IsEmpty         bool                `json:"isEmpty"`
}

// TimedItem is a week-view item with its overlap column.
type TimedItem = layout.Placement[domain.AgendaItem]

type WeekDay struct {
	DateKey     string              `json:"dateKey"`
	Label       string              `json:"label"`
	ShortLabel  string              `json:"shortLabel"`
	IsToday     bool                `json:"isToday"`
	AllDayItems []domain.AgendaItem `json:"allDayItems"`
	TimedItems  []TimedItem         `json:"timedItems"`
}

type WeekView struct {
	Mode            Mode                `json:"mode"`
	Timezone        string              `json:"timezone"`
	AnchorDate      string              `json:"anchorDate"`
	Label           string              `json:"label"`
	RangeStart      string              `json:"rangeStart"`
	RangeEnd        string              `json:"rangeEnd"`
	Navigation      Navigation          `json:"navigation"`
	Hours           []Hour              `json:"hours"`
	Days            []WeekDay           `json:"days"`
	UnfinishedItems []domain.AgendaItem `json:"unfinishedItems"`
}

type MonthDay struct {
	DateKey        string              `json:"dateKey"`
	Label          string              `json:"label"`
	IsToday        bool                `json:"isToday"`
	IsCurrentMonth bool                `json:"isCurrentMonth"`
	Items          []domain.AgendaItem `json:"items"`
	OverflowCount  int                 `json:"overflowCount"`
}

type MonthView struct {
	Mode            Mode                `json:"mode"`
	Timezone        string              `json:"timezone"`
	AnchorDate      string              `json:"anchorDate"`
	Label           string              `json:"label"`
	MonthStart      string              `json:"monthStart"`
	MonthEnd        string              `json:"monthEnd"`
	Navigation      Navigation          `json:"navigation"`
	WeekdayLabels   []string            `json:"weekdayLabels"`
	Days            []MonthDay          `json:"days"`
	UnfinishedItems []domain.AgendaItem `json:"unfinishedItems"`
}
