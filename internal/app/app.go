// Package app assembles the daemon: config, logging, the timing wheel,
// run history, and the optional Redis-backed timers.
package app

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"wheeld/internal/config"
	"wheeld/internal/eventbus"
	"wheeld/internal/expire"
	"wheeld/internal/history"
	"wheeld/internal/runtime/supervisor"
	"wheeld/internal/storage"
	"wheeld/internal/wheel"
	"wheeld/internal/zset"
	logx "wheeld/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	timer *wheel.Timer
	rec   *history.Recorder

	rdb    *redis.Client
	expire *expire.Timer
	zset   *zset.Timer
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logs, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	wheelOpts, err := mapWheelOptions(cfg)
	if err != nil {
		return nil, err
	}
	wheelOpts = append(wheelOpts,
		wheel.WithLogger(log.With(logx.String("comp", "wheel"))),
		wheel.WithBus(bus),
	)
	timer := wheel.New(wheelOpts...)

	var rec *history.Recorder
	if hc, enabled := mapHistoryConfig(cfg); enabled {
		rec = history.New(hc, log.With(logx.String("comp", "history")), bus, store)
	}

	a := &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logs,
		bus:     bus,
		store:   store,
		timer:   timer,
		rec:     rec,
	}

	if cfg.Redis != nil {
		a.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	if ec, enabled, err := mapExpireConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		a.expire = expire.New(ec, a.rdb, timer,
			log.With(logx.String("comp", "expire")), bus)
	}
	if zc, enabled, err := mapZsetConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		a.zset = zset.New(zc, a.rdb, timer,
			log.With(logx.String("comp", "zset")), bus)
	}

	return a, nil
}

// Timer exposes the core wheel for embedding callers.
func (a *App) Timer() *wheel.Timer { return a.timer }

// Expire returns the key-expiry timer, nil when not configured.
func (a *App) Expire() *expire.Timer { return a.expire }

// Zset returns the sorted-set timer, nil when not configured.
func (a *App) Zset() *zset.Timer { return a.zset }

// Done is closed when the supervisor context ends (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log),
		supervisor.WithCancelOnError(true),
	)

	if err := a.timer.Start(); err != nil {
		return err
	}

	if a.rec != nil {
		a.sup.Go("history.recorder", a.rec.Run)
	}
	if a.expire != nil {
		a.expire.Supervise(a.sup)
	}
	if a.zset != nil {
		if err := a.zset.Start(a.sup.Context()); err != nil {
			return err
		}
	}

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.sup.Go("config.watch", a.cfgm.Watch)

	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return nil
			case newCfg, ok := <-sub:
				if !ok {
					return nil
				}
				a.applyReload(newCfg)
			}
		}
	})

	// Debug trace of bus traffic. Events also feed the recorder.
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
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	a.log.Info("wheeld started")
	return nil
}

// applyReload applies what can change live (logging) and warns about
// what cannot (wheel geometry, storage, redis).
func (a *App) applyReload(cfg *config.Config) {
	if cfg == nil {
		return
	}
	if err := validateConfig(cfg); err != nil {
		a.log.Warn("invalid config reload; keeping previous", logx.Err(err))
		return
	}

	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	a.log.Info("config reloaded", logx.String("level", cfg.Logging.Level))
	a.log.Debug("wheel, storage and redis settings apply on restart only")
}

// Stop drains every timer and shuts the supervised loops down. Tasks
// that never ran are recorded as drained when history is enabled.
func (a *App) Stop(ctx context.Context) error {
	if a.zset != nil {
		if jobs := a.zset.Stop(); len(jobs) > 0 {
			a.log.Info("zset timer drained", logx.Int("jobs", len(jobs)))
		}
	}
	if a.expire != nil {
		if jobs := a.expire.Stop(); len(jobs) > 0 {
			a.log.Info("expire timer drained", logx.Int("jobs", len(jobs)))
		}
	}

	drained := a.timer.Stop()
	if a.rec != nil && len(drained) > 0 {
		a.rec.RecordDrained(ctx, drained)
	}

	var err error
	if a.sup != nil {
		stopCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = a.sup.Stop(stopCtx)
		cancel()
	}

	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	a.log.Info("wheeld stopped", logx.Int("drained", len(drained)))
	_ = a.logs.Close()
	return err
}
