package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/hay-kot/criterio"

	"agendaengine/internal/calendar"
	"agendaengine/internal/domain"
	"agendaengine/internal/storage"
	"agendaengine/internal/task/scheduler"
	logx "agendaengine/pkg/logx"
)

// Validate collects every field problem into a ConfigurationError wrapping
// criterio.FieldErrors.
func (c *Config) Validate() error {
	var errs criterio.FieldErrorsBuilder
	add := func(field string, err error) {
		if err != nil {
			errs = errs.Append(field, err)
		}
	}

	add("logging.level", checkLevel(c.Logging.Level))
	if c.Logging.Alerts.Enabled {
		add("logging.alerts.min_level", checkLevel(c.Logging.Alerts.MinLevel))
	}
	if c.Logging.File.Enabled && c.Logging.File.Path == "" {
		add("logging.file.path", errors.New("required when file logging is enabled"))
	}

	add("calendar.timezone", checkZone(c.Calendar.Timezone))
	if c.Scheduler.Timezone != "" {
		add("scheduler.timezone", checkZone(c.Scheduler.Timezone))
	}

	driver := storage.NormalizeDriver(c.Storage.Driver)
	switch {
	case !slices.Contains(storage.Drivers, driver):
		add("storage.driver", fmt.Errorf("unknown driver %q (want one of %v)", c.Storage.Driver, storage.Drivers))
	case driver != "memory" && c.Storage.Path == "":
		add("storage.path", fmt.Errorf("required for driver %s", driver))
	}
	_, err := ParseDuration(c.Storage.BusyTimeout)
	add("storage.busy_timeout", err)

	_, err = ParseDuration(c.TaskEngine.DefaultTimeout)
	add("task_engine.default_timeout", err)
	if c.TaskEngine.Workers < 0 {
		add("task_engine.workers", errors.New("must be >= 0"))
	}
	if c.TaskEngine.QueueSize < 0 {
		add("task_engine.queue_size", errors.New("must be >= 0"))
	}

	for name, j := range map[string]JobConfig{
		"jobs.expiry":         c.Jobs.Expiry,
		"jobs.agenda_planner": c.Jobs.AgendaPlanner,
		"jobs.alarm_planner":  c.Jobs.AlarmPlanner,
	} {
		add(name+".schedule", scheduler.Validate(j.Schedule))
		_, err := ParseDuration(j.Timeout)
		add(name+".timeout", err)
	}

	if err := errs.ToError(); err != nil {
		return &domain.ConfigurationError{Key: "config", Err: err}
	}
	return nil
}

func checkLevel(level string) error {
	if level == "" || logx.ValidLevel(level) {
		return nil
	}
	return fmt.Errorf("unknown level %q", level)
}

func checkZone(name string) error {
	_, err := calendar.LoadZone(name)
	return err
}
