package app

import (
	"fmt"
	"io"

	"agendaengine/internal/config"
	"agendaengine/internal/storage"
	"agendaengine/internal/task/engine"
	"agendaengine/internal/task/scheduler"
	logx "agendaengine/pkg/logx"
)

func mapLogConfig(cfg *config.Config, out io.Writer) logx.Config {
	return logx.Config{
		Level:      cfg.Logging.Level,
		Console:    cfg.Logging.Console,
		ConsoleOut: out,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Alerts: logx.AlertConfig{
			Enabled:    cfg.Logging.Alerts.Enabled,
			MinLevel:   cfg.Logging.Alerts.MinLevel,
			RatePerSec: cfg.Logging.Alerts.RatePerSec,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	busy, err := config.ParseDuration(cfg.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, fmt.Errorf("storage.busy_timeout: %w", err)
	}
	return storage.Config{
		Driver:      storage.NormalizeDriver(cfg.Storage.Driver),
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, nil
}

func mapTaskEngineConfig(cfg *config.Config) (engine.Config, error) {
	te := cfg.TaskEngine
	timeout, err := config.ParseDuration(te.DefaultTimeout)
	if err != nil {
		return engine.Config{}, fmt.Errorf("task_engine.default_timeout: %w", err)
	}
	return engine.Config{
		Workers:        te.Workers,
		QueueSize:      te.QueueSize,
		DefaultTimeout: timeout,
		HistorySize:    te.HistorySize,
		RetryMax:       te.RetryMax,
	}, nil
}

func mapSchedulerConfig(cfg *config.Config) scheduler.Config {
	return scheduler.Config{
		Enabled:  cfg.Scheduler.Enabled,
		Timezone: cfg.SchedulerTimezone(),
	}
}
