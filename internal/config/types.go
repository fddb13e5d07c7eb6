package config

// Config is the agendad configuration file. Durations are Go duration
// strings ("5s", "1m"); schedules are cron specs or intervals.
type Config struct {
	Logging    LoggingConfig    `json:"logging"`
	Calendar   CalendarConfig   `json:"calendar"`
	Storage    StorageConfig    `json:"storage"`
	Scheduler  SchedulerConfig  `json:"scheduler"`
	TaskEngine TaskEngineConfig `json:"task_engine"`
	Jobs       JobsConfig       `json:"jobs"`
}

type LoggingConfig struct {
	Level   string        `json:"level"`
	Console bool          `json:"console"`
	File    LoggingFile   `json:"file"`
	Alerts  LoggingAlerts `json:"alerts"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingAlerts forwards log lines at or above MinLevel as log.alert events.
type LoggingAlerts struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// CalendarConfig sets the zone used to cut days for planning and views.
type CalendarConfig struct {
	Timezone string `json:"timezone"`
}

// StorageConfig selects the persistence driver. Changes need a restart.
//
//	storage: { driver: sqlite, path: ~/.agendad/agenda.db }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// SchedulerConfig controls triggering. An empty Timezone falls back to
// calendar.timezone.
type SchedulerConfig struct {
	Enabled  bool   `json:"enabled"`
	Timezone string `json:"timezone,omitempty"`
}

type TaskEngineConfig struct {
	Workers        int    `json:"workers,omitempty"`
	QueueSize      int    `json:"queue_size,omitempty"`
	DefaultTimeout string `json:"default_timeout,omitempty"`
	RetryMax       int    `json:"retry_max,omitempty"`
	HistorySize    int    `json:"history_size,omitempty"`
}

type JobsConfig struct {
	Expiry        JobConfig `json:"expiry"`
	AgendaPlanner JobConfig `json:"agenda_planner"`
	AlarmPlanner  JobConfig `json:"alarm_planner"`
}

// JobConfig is one periodic job. A nil Enabled means enabled.
type JobConfig struct {
	Enabled  *bool  `json:"enabled,omitempty"`
	Schedule string `json:"schedule,omitempty"`
	Timeout  string `json:"timeout,omitempty"`
}

func (j JobConfig) IsEnabled() bool { return j.Enabled == nil || *j.Enabled }

const (
	DefaultExpirySchedule        = "*/5 * * * *"
	DefaultAgendaPlannerSchedule = "0 5 0 * * *"
	DefaultAlarmPlannerSchedule  = "@every 10m"
)

// Default is the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{
		Logging:   LoggingConfig{Level: "info", Console: true},
		Calendar:  CalendarConfig{Timezone: "UTC"},
		Storage:   StorageConfig{Driver: "memory"},
		Scheduler: SchedulerConfig{Enabled: true},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills blank fields in place.
func (c *Config) ApplyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Calendar.Timezone == "" {
		c.Calendar.Timezone = "UTC"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	for _, j := range []struct {
		job *JobConfig
		def string
	}{
		{&c.Jobs.Expiry, DefaultExpirySchedule},
		{&c.Jobs.AgendaPlanner, DefaultAgendaPlannerSchedule},
		{&c.Jobs.AlarmPlanner, DefaultAlarmPlannerSchedule},
	} {
		if j.job.Schedule == "" {
			j.job.Schedule = j.def
		}
	}
}

// SchedulerTimezone is scheduler.timezone, else calendar.timezone.
func (c *Config) SchedulerTimezone() string {
	if c.Scheduler.Timezone != "" {
		return c.Scheduler.Timezone
	}
	return c.Calendar.Timezone
}
