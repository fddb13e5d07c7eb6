package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"agendaengine/internal/calendar"
	"agendaengine/internal/config"
	"agendaengine/internal/eventbus"
	"agendaengine/internal/runtime/supervisor"
	"agendaengine/internal/storage"
	"agendaengine/internal/task/engine"
	"agendaengine/internal/task/scheduler"
	logx "agendaengine/pkg/logx"
)

// EventLogAlert carries a logx.Alert.
const EventLogAlert = "log.alert"

type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor
	now  func() time.Time

	logOut io.Writer

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	engine *engine.Service
	sched  *scheduler.Service

	mu   sync.RWMutex
	svcs *Services
}

type Option func(*options)

type options struct {
	now    func() time.Time
	store  storage.Store
	logOut io.Writer
}

// WithClock replaces time.Now for every domain service.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithStore skips storage.Open and uses s instead.
func WithStore(s storage.Store) Option {
	return func(o *options) { o.store = s }
}

// WithLogOutput sends console log lines to w instead of stdout.
func WithLogOutput(w io.Writer) Option {
	return func(o *options) { o.logOut = w }
}

// New loads the config at cfgPath (empty means defaults) and wires every
// component. Nothing runs until Start.
func New(cfgPath string, opts ...Option) (*App, error) {
	o := options{now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}

	cfgm, err := config.NewManager(cfgPath, logx.NewConsole("info"))
	if err != nil {
		return nil, err
	}
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	bus := eventbus.New()
	logSvc, log := logx.New(mapLogConfig(cfg, o.logOut), logx.AlertFunc(func(_ context.Context, a logx.Alert) error {
		bus.Publish(eventbus.Event{Type: EventLogAlert, Time: time.Now(), Data: a})
		return nil
	}))
	cfgm.SetLogger(log)

	zone, err := calendar.LoadZone(cfg.Calendar.Timezone)
	if err != nil {
		logSvc.Close()
		return nil, err
	}

	store := o.store
	if store == nil {
		sc, err := mapStorageConfig(cfg)
		if err != nil {
			logSvc.Close()
			return nil, err
		}
		store, err = storage.Open(sc, log, storage.WithClock(o.now))
		if err != nil {
			logSvc.Close()
			return nil, err
		}
		log.Info("storage opened", logx.String("driver", sc.Driver))
	}
	store = storage.WithEvents(store, bus, log)

	engCfg, err := mapTaskEngineConfig(cfg)
	if err != nil {
		_ = store.Close()
		logSvc.Close()
		return nil, err
	}
	eng := engine.New(engCfg, log, bus)
	sched := scheduler.New(mapSchedulerConfig(cfg), eng, log)

	a := &App{
		cfgm:   cfgm,
		now:    o.now,
		logOut: o.logOut,
		log:    log.Component("app"),
		logs:   logSvc,
		bus:    bus,
		store:  store,
		engine: eng,
		sched:  sched,
		svcs:   newServices(store, zone, o.now, log),
	}
	if err := a.registerJobs(cfg); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

// Services returns the domain services for the current calendar zone.
func (a *App) Services() *Services {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.svcs
}

func (a *App) Bus() eventbus.Bus { return a.bus }

func (a *App) Store() storage.Store { return a.store }

// Now is the app clock.
func (a *App) Now() time.Time { return a.now() }

func (a *App) Config() *config.Config { return a.cfgm.Get() }

func (a *App) Logger() logx.Logger { return a.log }

func (a *App) Engine() *engine.Service { return a.engine }

func (a *App) Scheduler() *scheduler.Service { return a.sched }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start runs the engine, the scheduler, the config watcher and the event
// log loop under one supervisor.
func (a *App) Start(ctx context.Context) error {
	if a.sup != nil {
		return errors.New("app already started")
	}
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	a.engine.Start(a.sup.Context())
	a.sched.Start(a.sup.Context())

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go("eventbus.log", func(c context.Context) error {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return nil
			case e, ok := <-events:
				if !ok {
					return nil
				}
				// Keep this debug-level; planners emit an event per created row.
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return nil
			case next, ok := <-sub:
				if !ok {
					return nil
				}
				// Coalesce bursts.
			drain:
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							next = newer
						}
					default:
						break drain
					}
				}
				a.applyConfig(c, last, next)
				last = next
			}
		}
	})

	a.sup.GoRestart("config.watch", a.cfgm.Watch,
		supervisor.WithRestartBackoff(500*time.Millisecond, 10*time.Second))

	a.log.Info("app started",
		logx.String("timezone", a.Services().Zone.Name()),
		logx.Bool("scheduler", a.sched.Enabled()))
	return nil
}

// applyConfig applies the live-reloadable sections of next.
func (a *App) applyConfig(ctx context.Context, prev, next *config.Config) {
	ch := config.Summarize(prev, next)
	if ch.Empty() {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(ch.Sections, ","))}, ch.Fields...)
	if ch.RestartRequired {
		a.log.Warn("config change needs a restart to take full effect", fields...)
	}

	a.logs.Apply(mapLogConfig(next, a.logOut))

	if prev.Calendar.Timezone != next.Calendar.Timezone {
		zone, err := calendar.LoadZone(next.Calendar.Timezone)
		if err != nil {
			a.log.Warn("invalid calendar timezone; keeping previous", logx.Err(err))
		} else {
			a.mu.Lock()
			a.svcs = newServices(a.store, zone, a.now, a.log)
			a.mu.Unlock()
		}
	}

	wasEnabled := a.sched.Enabled()
	a.sched.Apply(mapSchedulerConfig(next))
	switch {
	case wasEnabled && !next.Scheduler.Enabled:
		a.log.Info("scheduler disabled via config")
		stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		a.sched.Stop(stopCtx)
		cancel()
	case !wasEnabled && next.Scheduler.Enabled:
		a.log.Info("scheduler enabled via config")
		a.sched.Start(ctx)
	}

	if err := a.registerJobs(next); err != nil {
		a.log.Warn("job schedules not fully applied", logx.Err(err))
	}
	a.log.Info("config reloaded", fields...)
}

// Run starts the app and blocks until ctx ends or a component fails, then
// stops it.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		_ = a.Close()
		return err
	}
	reason := StopSignal
	select {
	case <-ctx.Done():
	case <-a.Done():
		if a.Err() != nil {
			reason = StopFatalError
		}
	}
	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Stop(stopCtx, reason); err != nil {
		return err
	}
	return a.Err()
}

// Stop shuts components down in dependency order. Each step is bounded so
// one component can't stall the whole stop.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return a.Close()
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sup.Cancel()

	step := func(name string, limit time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, limit)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name), logx.Err(stepCtx.Err()), logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("taskengine", 3*time.Second, a.engine.Stop)
	step("supervisor", 2*time.Second, a.sup.Wait)

	a.log.Info("stopped")
	return a.Close()
}

// Close releases storage and log sinks. One-shot CLI commands call it
// without ever starting the app.
func (a *App) Close() error {
	var err error
	if a.store != nil {
		err = a.store.Close()
		a.store = nil
	}
	if a.logs != nil {
		_ = a.logs.Close()
		a.logs = nil
	}
	return err
}
