package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agendaengine/internal/config"
	"agendaengine/internal/domain"
	"agendaengine/internal/storage"
	"agendaengine/internal/task/engine"
	logx "agendaengine/pkg/logx"
)

const (
	JobExpiry        = "expiry"
	JobAgendaPlanner = "agenda-planner"
	JobAlarmPlanner  = "alarm-planner"

	busyRetryDelay = 500 * time.Millisecond
)

type jobDef struct {
	name string
	cfg  config.JobConfig
	run  func(ctx context.Context) error
}

func (a *App) jobs(cfg *config.Config) []jobDef {
	return []jobDef{
		{name: JobExpiry, cfg: cfg.Jobs.Expiry, run: a.runExpiry},
		{name: JobAgendaPlanner, cfg: cfg.Jobs.AgendaPlanner, run: a.runAgendaPlanner},
		{name: JobAlarmPlanner, cfg: cfg.Jobs.AlarmPlanner, run: a.runAlarmPlanner},
	}
}

// registerJobs makes the scheduler match cfg.Jobs: enabled jobs are
// (re)registered with their schedule, disabled ones removed.
func (a *App) registerJobs(cfg *config.Config) error {
	var errs []error
	for _, j := range a.jobs(cfg) {
		if !j.cfg.IsEnabled() {
			if a.sched.Remove(j.name) {
				a.log.Info("job disabled", logx.String("job", j.name))
			}
			continue
		}
		timeout, err := config.ParseDuration(j.cfg.Timeout)
		if err != nil {
			errs = append(errs, fmt.Errorf("jobs.%s.timeout: %w", j.name, err))
			continue
		}
		run := j.run
		if err := a.sched.AddSchedule(j.name, j.cfg.Schedule, timeout, func(ctx context.Context) error {
			return jobError(run(ctx))
		}); err != nil {
			errs = append(errs, fmt.Errorf("jobs.%s.schedule: %w", j.name, err))
		}
	}
	return errors.Join(errs...)
}

// RunJob runs a registered job in the engine right away.
func (a *App) RunJob(name string) error {
	return a.sched.RunNow(name)
}

func (a *App) runExpiry(ctx context.Context) error {
	_, err := a.Services().Expiry.Execute(ctx)
	return err
}

func (a *App) runAgendaPlanner(ctx context.Context) error {
	res, err := a.Services().AgendaPlanner.PlanForDate(ctx, a.now())
	if err != nil {
		return err
	}
	a.log.Debug("agenda planned", logx.String("date", res.DateKey), logx.Int("created", len(res.Created)), logx.Int("skipped", res.Skipped))
	return nil
}

func (a *App) runAlarmPlanner(ctx context.Context) error {
	plans, err := a.Services().AlarmPlanner.PlanForActiveRoutines(ctx, a.now())
	if err != nil {
		return err
	}
	a.log.Debug("alarms planned", logx.Int("created", len(plans)))
	return nil
}

// jobError tells the engine which failures are worth retrying.
func jobError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrConfiguration),
		errors.Is(err, domain.ErrNotFound):
		return engine.NoRetry(err)
	case storage.IsBusy(err):
		return engine.RetryAfter(err, busyRetryDelay)
	}
	return err
}
