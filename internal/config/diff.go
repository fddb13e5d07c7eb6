package config

import (
	"reflect"

	logx "agendaengine/pkg/logx"
)

// Change lists what differs between two configs.
type Change struct {
	// Sections that changed, e.g. "logging", "jobs".
	Sections []string
	// RestartRequired is set when a section that is only read at startup
	// changed (storage, task_engine).
	RestartRequired bool
	// Fields are safe attrs for a log line.
	Fields []logx.Field
}

func (c Change) Empty() bool { return len(c.Sections) == 0 }

// Summarize compares oldCfg and newCfg section by section.
func Summarize(oldCfg, newCfg *Config) Change {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var ch Change
	mark := func(section string, differ bool, restart bool, fields ...logx.Field) {
		if !differ {
			return
		}
		ch.Sections = append(ch.Sections, section)
		ch.Fields = append(ch.Fields, fields...)
		if restart {
			ch.RestartRequired = true
		}
	}

	mark("logging", oldCfg.Logging != newCfg.Logging, false,
		logx.String("logging.level", newCfg.Logging.Level),
		logx.Bool("logging.file", newCfg.Logging.File.Enabled),
		logx.Bool("logging.alerts", newCfg.Logging.Alerts.Enabled),
	)
	mark("calendar", oldCfg.Calendar != newCfg.Calendar, false,
		logx.String("calendar.timezone", newCfg.Calendar.Timezone),
	)
	mark("storage", oldCfg.Storage != newCfg.Storage, true,
		logx.String("storage.driver", newCfg.Storage.Driver),
	)
	mark("scheduler", oldCfg.Scheduler != newCfg.Scheduler, false,
		logx.Bool("scheduler.enabled", newCfg.Scheduler.Enabled),
		logx.String("scheduler.timezone", newCfg.SchedulerTimezone()),
	)
	mark("task_engine", oldCfg.TaskEngine != newCfg.TaskEngine, true,
		logx.Int("task_engine.workers", newCfg.TaskEngine.Workers),
	)
	mark("jobs", !reflect.DeepEqual(oldCfg.Jobs, newCfg.Jobs), false,
		logx.String("jobs.expiry", newCfg.Jobs.Expiry.Schedule),
		logx.String("jobs.agenda_planner", newCfg.Jobs.AgendaPlanner.Schedule),
		logx.String("jobs.alarm_planner", newCfg.Jobs.AlarmPlanner.Schedule),
	)
	return ch
}
