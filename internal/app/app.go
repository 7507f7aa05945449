// Package app wires the bot together: config, logging, transport,
// registry, storage, scheduler, dispatcher, and the health endpoint.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"remindbot/internal/config"
	"remindbot/internal/observability/health"
	"remindbot/internal/reminder"
	"remindbot/internal/runtime/supervisor"
	"remindbot/internal/services/dispatch"
	"remindbot/internal/services/scheduler"
	"remindbot/internal/storage"
	"remindbot/internal/transport"
	"remindbot/internal/transport/telegram"
	logx "remindbot/pkg/logx"
)

const (
	defaultPollTimeout   = 10 * time.Second
	defaultHandleTimeout = 30 * time.Second
	updateQueueSize      = 128
	persistDebounce      = time.Second
	stopStepTimeout      = 10 * time.Second
)

type App struct {
	cfgm *config.Manager
	logs *logx.Service
	log  logx.Logger

	gw     *telegram.Gateway
	reg    *reminder.Registry
	store  storage.Store
	sched  *scheduler.Service
	disp   *dispatch.Service
	health *health.Service

	sup     *supervisor.Supervisor
	updates chan transport.Update
}

func New(configPath string) (*App, error) {
	cfgm := config.NewManager(configPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logs, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	pollTimeout, err := config.DurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, defaultPollTimeout)
	if err != nil {
		return nil, err
	}
	gw, err := telegram.New(telegram.Config{
		Token:          cfg.Telegram.Token,
		PollTimeout:    pollTimeout,
		SendRatePerSec: cfg.Telegram.SendRatePerSec,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, fmt.Errorf("telegram gateway: %w", err)
	}

	reg := reminder.NewRegistry()

	var store storage.Store
	if cfg.Storage != nil {
		busy, err := config.ParseDuration("storage.busy_timeout", cfg.Storage.BusyTimeout)
		if err != nil {
			return nil, err
		}
		store, err = storage.Open(storage.Config{
			Driver:      cfg.Storage.Driver,
			Path:        cfg.Storage.Path,
			BusyTimeout: busy,
		}, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
	}

	sendTimeout, err := config.ParseDuration("scheduler.send_timeout", cfg.Scheduler.SendTimeout)
	if err != nil {
		return nil, err
	}
	sched, err := scheduler.New(scheduler.Config{
		Enabled:     cfg.Scheduler.Enabled,
		Timezone:    cfg.Scheduler.Timezone,
		SendTimeout: sendTimeout,
	}, gw, reg, log.With(logx.String("comp", "scheduler")))
	if err != nil {
		return nil, err
	}

	disp := dispatch.New(dispatch.Config{
		HandleTimeout: defaultHandleTimeout,
	}, gw, reg, sched, log.With(logx.String("comp", "dispatch")))

	return &App{
		cfgm:   cfgm,
		logs:   logs,
		log:    log.With(logx.String("comp", "app")),
		gw:     gw,
		reg:    reg,
		store:  store,
		sched:  sched,
		disp:   disp,
		health: health.New(log.With(logx.String("comp", "health"))),
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	a.cfgm.SetValidator(validateConfig)

	if a.store != nil {
		snap, err := a.store.Load(ctx)
		if err != nil {
			return fmt.Errorf("restore snapshot: %w", err)
		}
		a.reg.Restore(snap)
		a.log.Info("snapshot restored", logx.Int("chats", len(snap)))
	}

	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log))
	a.updates = make(chan transport.Update, updateQueueSize)

	if err := a.gw.Start(a.sup.Context(), a.updates); err != nil {
		return fmt.Errorf("start telegram gateway: %w", err)
	}
	if err := a.sched.Start(ctx); err != nil {
		return err
	}

	cfg := a.cfgm.Get()
	a.health.Apply(ctx, healthConfig(cfg))

	a.sup.Go("dispatch", func(ctx context.Context) error {
		return a.disp.Run(ctx, a.updates)
	})
	a.sup.Go0("health.keepalive", a.health.KeepAlive)
	if a.store != nil {
		a.sup.Go0("persist", a.persistLoop)
	}
	a.sup.GoRestart("config.watch", a.cfgm.Watch)
	a.sup.Go0("config.reload", a.reloadLoop)

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Warn("sd_notify failed", logx.Err(err))
	} else if sent {
		a.log.Debug("sd_notify ready sent")
	}

	a.log.Info("bot started")
	return nil
}

func (a *App) Stop(ctx context.Context) {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	step := func(name string, fn func(ctx context.Context) error) {
		sctx, cancel := context.WithTimeout(ctx, stopStepTimeout)
		defer cancel()
		if err := fn(sctx); err != nil {
			a.log.Warn("shutdown step failed", logx.String("step", name), logx.Err(err))
		}
	}

	step("scheduler", a.sched.Stop)
	step("telegram", a.gw.Stop)
	if a.sup != nil {
		step("supervisor", a.sup.Stop)
	}
	step("health", func(ctx context.Context) error {
		a.health.Stop(ctx)
		return nil
	})

	if a.store != nil {
		step("snapshot", func(ctx context.Context) error {
			return a.store.Save(ctx, a.reg.Export())
		})
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close failed", logx.Err(err))
		}
	}

	a.log.Info("bot stopped")
	_ = a.logs.Close()
}

// persistLoop writes the snapshot shortly after any registry mutation.
// The debounce coalesces bursts (a /start right after a /time, a whole
// scheduler pass) into one write.
func (a *App) persistLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.reg.Changed():
		}

		timer := time.NewTimer(persistDebounce)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := a.store.Save(sctx, a.reg.Export()); err != nil {
			a.log.Warn("snapshot save failed", logx.Err(err))
		}
		cancel()
	}
}

// reloadLoop applies hot-reloadable config changes. Telegram token and
// storage driver changes require a restart and are only logged.
func (a *App) reloadLoop(ctx context.Context) {
	ch := a.cfgm.Subscribe(4)
	defer a.cfgm.Unsubscribe(ch)

	prev := a.cfgm.Get()
	for {
		var cfg *config.Config
		select {
		case <-ctx.Done():
			return
		case cfg = <-ch:
		}
		if cfg == nil {
			continue
		}

		a.logs.Apply(logx.Config{
			Level:   cfg.Logging.Level,
			Console: cfg.Logging.Console,
			File: logx.FileConfig{
				Enabled: cfg.Logging.File.Enabled,
				Path:    cfg.Logging.File.Path,
			},
		})

		a.health.Apply(ctx, healthConfig(cfg))

		sendTimeout, err := config.ParseDuration("scheduler.send_timeout", cfg.Scheduler.SendTimeout)
		if err == nil {
			err = a.sched.Apply(ctx, scheduler.Config{
				Enabled:     cfg.Scheduler.Enabled,
				Timezone:    cfg.Scheduler.Timezone,
				SendTimeout: sendTimeout,
			})
		}
		if err != nil {
			a.log.Warn("scheduler reload failed", logx.Err(err))
		}

		if prev != nil && cfg.Telegram.Token != prev.Telegram.Token {
			a.log.Warn("telegram token changed in config; restart required to take effect")
		}
		if prev != nil && storageDriver(cfg) != storageDriver(prev) {
			a.log.Warn("storage driver changed in config; restart required to take effect")
		}
		prev = cfg

		a.log.Info("config reloaded")
	}
}

func storageDriver(cfg *config.Config) string {
	if cfg.Storage == nil {
		return ""
	}
	return cfg.Storage.Driver
}

func healthConfig(cfg *config.Config) health.Config {
	interval, err := config.ParseDuration("health.keepalive_interval", cfg.Health.KeepaliveInterval)
	if err != nil {
		interval = 0
	}
	return health.Config{
		Enabled:           cfg.Health.Enabled,
		Addr:              cfg.Health.Addr,
		KeepaliveURL:      cfg.Health.KeepaliveURL,
		KeepaliveInterval: interval,
	}
}

// validateConfig rejects configs that would break a running bot if
// committed by the hot-reload watcher.
func validateConfig(_ context.Context, cfg *config.Config) error {
	if cfg.Telegram.Token == "" {
		return errors.New("telegram.token is required")
	}
	if cfg.Telegram.SendRatePerSec < 0 {
		return errors.New("telegram.send_rate_per_sec must be >= 0")
	}
	if _, err := config.ParseDuration("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
		return err
	}
	if _, err := config.ParseDuration("scheduler.send_timeout", cfg.Scheduler.SendTimeout); err != nil {
		return err
	}
	if _, err := config.ParseDuration("health.keepalive_interval", cfg.Health.KeepaliveInterval); err != nil {
		return err
	}
	if tz := cfg.Scheduler.Timezone; tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("scheduler.timezone %q: %w", tz, err)
		}
	}
	if cfg.Storage != nil {
		if _, err := config.ParseDuration("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
			return err
		}
	}
	return nil
}
