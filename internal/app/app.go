// Package app wires configuration, logging, storage, transport and the
// bot's services together and owns their lifecycle.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/momaliii/kamal-bot-old/internal/broadcast"
	"github.com/momaliii/kamal-bot-old/internal/config"
	"github.com/momaliii/kamal-bot-old/internal/ledger"
	"github.com/momaliii/kamal-bot-old/internal/report"
	"github.com/momaliii/kamal-bot-old/internal/router"
	"github.com/momaliii/kamal-bot-old/internal/runtime/supervisor"
	"github.com/momaliii/kamal-bot-old/internal/summary"
	kit "github.com/momaliii/kamal-bot-old/internal/transport"
	telegram "github.com/momaliii/kamal-bot-old/internal/transport/telegram"
	logx "github.com/momaliii/kamal-bot-old/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service

	store   *ledger.Store
	adapter kit.Adapter
	bcast   *broadcast.Service
	summ    *summary.Service
	routes  *router.Router

	updates chan kit.Update
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, logSvc.Logger().With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	storeCfg, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := ledger.Open(storeCfg, logSvc.Logger().With(logx.String("comp", "ledger")))
	if err != nil {
		return nil, err
	}

	bcastCfg, err := mapBroadcastConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	bcast := broadcast.New(bcastCfg, adapter, logSvc.Logger().With(logx.String("comp", "broadcast")))

	summCfg, err := mapSummaryConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	summ := summary.New(summCfg, store, adapter, logSvc.Logger().With(logx.String("comp", "summary")))

	routes := router.New(router.Config{
		AdminUserIDs: cfg.Telegram.AdminUserIDs,
	}, adapter, store, bcast, report.NewChartRenderer(),
		logSvc.Logger().With(logx.String("comp", "router")))

	return &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		store:   store,
		adapter: adapter,
		bcast:   bcast,
		summ:    summ,
		routes:  routes,
		updates: make(chan kit.Update, 256),
	}, nil
}

// Done is closed when the app context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log),
		supervisor.WithCancelOnError(true))

	a.cfgm.SetLogger(a.logs.Logger().With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, err := config.ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
			return err
		}
		if _, err := mapStorageConfig(cfg); err != nil {
			return err
		}
		if _, err := mapBroadcastConfig(cfg); err != nil {
			return err
		}
		if _, err := mapSummaryConfig(cfg); err != nil {
			return err
		}
		return nil
	})

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	a.bcast.Start(a.sup.Context())
	if a.summ.Enabled() {
		if err := a.summ.Start(a.sup.Context()); err != nil {
			return err
		}
	}

	a.sup.Go("router.dispatch", func(c context.Context) error {
		return a.routes.DispatchLoop(c, a.updates)
	})
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	// Config hot-reload fan-out.
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case cfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(c, cfg)
			}
		}
	})

	a.log.Info("app started")
	return nil
}

// applyConfig applies the hot-reloadable sections. Storage path changes
// require a restart; the validator already rejected malformed values.
func (a *App) applyConfig(ctx context.Context, cfg *config.Config) {
	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})

	a.routes.SetAdmins(cfg.Telegram.AdminUserIDs)

	if bc, err := mapBroadcastConfig(cfg); err == nil {
		a.bcast.Apply(bc)
	}

	sc, err := mapSummaryConfig(cfg)
	if err != nil {
		return
	}
	wasEnabled := a.summ.Enabled()
	if err := a.summ.Apply(sc); err != nil {
		a.log.Warn("invalid summary config; keeping previous", logx.Err(err))
		return
	}
	switch {
	case wasEnabled && !sc.Enabled:
		a.log.Info("summary disabled via config")
		stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		a.summ.Stop(stopCtx)
		cancel()
	case !wasEnabled && sc.Enabled:
		a.log.Info("summary enabled via config")
		if err := a.summ.Start(ctx); err != nil {
			a.log.Warn("summary start failed", logx.Err(err))
		}
	}
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")

	// Cancel the run context first so background loops unwind immediately.
	a.sup.Cancel()

	// Bounded per-component steps so one component can't stall the stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			if dl, ok := ctx.Deadline(); ok {
				if rem := time.Until(dl); rem > 0 && rem < max {
					max = rem
				}
			}
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}
		start := time.Now()
		if err := fn(stepCtx); err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	}

	step("summary", 2*time.Second, func(c context.Context) error { a.summ.Stop(c); return nil })
	step("broadcast", 2*time.Second, func(c context.Context) error { a.bcast.Stop(c); return nil })
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("storage", 1*time.Second, func(c context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

func mapStorageConfig(cfg *config.Config) (ledger.Config, error) {
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return ledger.Config{}, err
	}
	path := cfg.Storage.Path
	if path == "" {
		path = "./transactions.db"
	}
	return ledger.Config{Path: path, BusyTimeout: busy}, nil
}

func mapBroadcastConfig(cfg *config.Config) (broadcast.Config, error) {
	delay, err := config.ParseDurationField("broadcast.min_send_delay", cfg.Broadcast.MinSendDelay)
	if err != nil {
		return broadcast.Config{}, err
	}
	if cfg.Broadcast.Workers < 0 {
		return broadcast.Config{}, fmt.Errorf("broadcast.workers must be >= 0")
	}
	if cfg.Broadcast.MaxMsgLen < 0 {
		return broadcast.Config{}, fmt.Errorf("broadcast.max_msg_len must be >= 0")
	}
	return broadcast.Config{
		Workers:      cfg.Broadcast.Workers,
		QueueSize:    cfg.Broadcast.QueueSize,
		MinSendDelay: delay,
		MaxMsgLen:    cfg.Broadcast.MaxMsgLen,
	}, nil
}

func mapSummaryConfig(cfg *config.Config) (summary.Config, error) {
	bc, err := mapBroadcastConfig(cfg)
	if err != nil {
		return summary.Config{}, err
	}
	return summary.Config{
		Enabled:      cfg.Summary.Enabled,
		Schedule:     cfg.Summary.Schedule,
		MinSendDelay: bc.MinSendDelay,
	}, nil
}
