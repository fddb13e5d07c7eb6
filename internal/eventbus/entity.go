package eventbus

import "strings"

// Entity names used in change event types.
const (
	EntityAgenda         = "agenda"
	EntityAgendaItem     = "agenda-item"
	EntityAgendaItemLog  = "agenda-item-log"
	EntityRoutine        = "routine"
	EntityRoutineTask    = "routine-task"
	EntityRoutineTaskLog = "routine-task-log"
	EntityAlarmPlan      = "alarm-plan"
)

type Change string

const (
	Added    Change = "added"
	Modified Change = "modified"
	Deleted  Change = "deleted"
)

// EntityEvent is the Data payload of "<entity>.<change>" events.
type EntityEvent struct {
	Entity string `json:"entity"`
	Change Change `json:"change"`
	ID     string `json:"id"`
	Data   any    `json:"data,omitempty"`
}

// Type returns the bus event type, e.g. "agenda-item.added".
func (e EntityEvent) Type() string {
	return e.Entity + "." + string(e.Change)
}

// SplitType is the inverse of EntityEvent.Type.
func SplitType(typ string) (entity string, change Change, ok bool) {
	i := strings.LastIndexByte(typ, '.')
	if i <= 0 || i == len(typ)-1 {
		return "", "", false
	}
	return typ[:i], Change(typ[i+1:]), true
}
