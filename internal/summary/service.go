// Package summary sends each registered user a scheduled report of
// their running total.
package summary

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	kit "github.com/momaliii/kamal-bot-old/internal/transport"
	logx "github.com/momaliii/kamal-bot-old/pkg/logx"
)

// DefaultSchedule runs the report every morning at 09:00.
const DefaultSchedule = "0 9 * * *"

type Config struct {
	Enabled      bool
	Schedule     string        // cron spec, five fields
	MinSendDelay time.Duration // same outbound rate discipline as broadcasts
}

// Ledger is the slice of the store the summary job needs.
type Ledger interface {
	Recipients(ctx context.Context) ([]int64, error)
	Total(ctx context.Context, chatID int64) (decimal.Decimal, error)
}

type Service struct {
	mu sync.Mutex

	cfg     Config
	store   Ledger
	adapter kit.Adapter
	log     logx.Logger

	cron    *cron.Cron
	entry   cron.EntryID
	runCtx  context.Context
	cancel  context.CancelFunc
	limiter *rate.Limiter
}

func New(cfg Config, store Ledger, adapter kit.Adapter, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	cfg = withDefaults(cfg)
	return &Service{
		cfg:     cfg,
		store:   store,
		adapter: adapter,
		log:     log,
		limiter: rate.NewLimiter(rate.Every(cfg.MinSendDelay), 1),
	}
}

func withDefaults(cfg Config) Config {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.MinSendDelay <= 0 {
		cfg.MinSendDelay = 50 * time.Millisecond
	}
	return cfg
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.runCtx, s.cancel = runCtx, cancel

	c := cron.New()
	// Capture the run context here; the closure fires on the cron
	// goroutine and must not read s.runCtx, which Stop rewrites.
	id, err := c.AddFunc(s.cfg.Schedule, func() { s.run(runCtx) })
	if err != nil {
		s.cancel()
		s.runCtx, s.cancel = nil, nil
		return fmt.Errorf("summary: bad schedule %q: %w", s.cfg.Schedule, err)
	}
	s.cron = c
	s.entry = id
	c.Start()
	s.log.Info("service started", logx.String("schedule", s.cfg.Schedule))
	return nil
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.cron
	cancel := s.cancel
	s.cron = nil
	s.runCtx, s.cancel = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c == nil {
		return
	}
	done := c.Stop().Done()
	select {
	case <-done:
		s.log.Info("service stopped")
	case <-ctx.Done():
	}
}

// Apply updates the schedule and delay; a changed schedule re-registers
// the cron entry in place.
func (s *Service) Apply(cfg Config) error {
	cfg = withDefaults(cfg)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.limiter = rate.NewLimiter(rate.Every(cfg.MinSendDelay), 1)
	scheduleChanged := cfg.Schedule != s.cfg.Schedule
	s.cfg = cfg

	if s.cron == nil || !scheduleChanged {
		return nil
	}
	runCtx := s.runCtx
	id, err := s.cron.AddFunc(cfg.Schedule, func() { s.run(runCtx) })
	if err != nil {
		return fmt.Errorf("summary: bad schedule %q: %w", cfg.Schedule, err)
	}
	s.cron.Remove(s.entry)
	s.entry = id
	s.log.Info("schedule updated", logx.String("schedule", cfg.Schedule))
	return nil
}

func (s *Service) run(ctx context.Context) {
	if ctx == nil || ctx.Err() != nil {
		return
	}
	start := time.Now()

	targets, err := s.store.Recipients(ctx)
	if err != nil {
		s.log.Error("recipient snapshot failed", logx.Err(err))
		return
	}

	s.mu.Lock()
	lim := s.limiter
	s.mu.Unlock()

	sent, failed := 0, 0
	for _, chatID := range targets {
		if ctx.Err() != nil {
			return
		}
		total, err := s.store.Total(ctx, chatID)
		if err != nil {
			failed++
			s.log.Warn("summary total failed", logx.Int64("chat_id", chatID), logx.Err(err))
			continue
		}
		if err := lim.Wait(ctx); err != nil {
			return
		}
		if _, err := s.adapter.SendText(ctx, kit.ChatTarget{ChatID: chatID}, Message(total), nil); err != nil {
			failed++
			s.log.Warn("summary send failed", logx.Int64("chat_id", chatID), logx.Err(err))
			continue
		}
		sent++
	}

	s.log.Info("daily summary finished",
		logx.Int("sent", sent),
		logx.Int("failed", failed),
		logx.Duration("dur", time.Since(start)))
}

// Message renders one user's daily report line.
func Message(total decimal.Decimal) string {
	return fmt.Sprintf("Daily report\nTotal: %s", total.String())
}
