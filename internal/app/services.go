package app

import (
	"time"

	"agendaengine/internal/agendaitem"
	"agendaengine/internal/agendaview"
	"agendaengine/internal/calendar"
	"agendaengine/internal/expiry"
	"agendaengine/internal/routine"
	"agendaengine/internal/storage"
	logx "agendaengine/pkg/logx"
)

// Services is the set of domain services bound to one calendar zone.
type Services struct {
	Zone          calendar.Zone
	Views         *agendaview.Service
	Items         *agendaitem.Service
	Routines      *routine.Service
	AgendaPlanner *routine.AgendaPlanner
	AlarmPlanner  *routine.AlarmPlanner
	Expiry        *expiry.Transitioner
}

func newServices(store storage.Store, zone calendar.Zone, now func() time.Time, log logx.Logger) *Services {
	planner := routine.NewAgendaPlanner(store, zone, log)
	return &Services{
		Zone:          zone,
		Views:         agendaview.New(store, agendaview.WithClock(now), agendaview.WithLogger(log)),
		Items:         agendaitem.NewService(store, now, log),
		Routines:      routine.NewService(store, planner, now, log),
		AgendaPlanner: planner,
		AlarmPlanner:  routine.NewAlarmPlanner(store, zone, log),
		Expiry:        expiry.New(store, now, log),
	}
}
