package broadcast

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/time/rate"

	kit "github.com/momaliii/kamal-bot-old/internal/transport"
	logx "github.com/momaliii/kamal-bot-old/pkg/logx"
)

// ErrBusy is returned by Enqueue when the job queue is full.
var ErrBusy = errors.New("broadcast: queue full")

const defaultMinSendDelay = 50 * time.Millisecond

func New(cfg Config, adapter kit.Adapter, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	cfg = withDefaults(cfg)
	return &Service{
		cfg:     cfg,
		adapter: adapter,
		log:     log,
		limiter: newLimiter(cfg.MinSendDelay),
		queue:   make(chan job, cfg.QueueSize),
	}
}

func withDefaults(cfg Config) Config {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.MinSendDelay <= 0 {
		cfg.MinSendDelay = defaultMinSendDelay
	}
	if cfg.MaxMsgLen <= 0 {
		cfg.MaxMsgLen = DefaultMaxMsgLen
	}
	return cfg
}

// newLimiter enforces the minimum inter-send gap. Burst stays at 1 so the
// gap holds across the whole run even with several workers; a per-worker
// delay would overshoot the global rate under concurrency.
func newLimiter(minDelay time.Duration) *rate.Limiter {
	return rate.NewLimiter(rate.Every(minDelay), 1)
}

// Apply updates the runtime-tunable settings (delay, chunk ceiling).
// Worker count and queue size take effect on the next Start.
func (s *Service) Apply(cfg Config) {
	cfg = withDefaults(cfg)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.MinSendDelay = cfg.MinSendDelay
	s.cfg.MaxMsgLen = cfg.MaxMsgLen
	s.limiter = newLimiter(cfg.MinSendDelay)
}

// Enqueue registers a broadcast job. The job's aggregate report is sent
// to reply when the run completes.
func (s *Service) Enqueue(text string, targets []int64, reply kit.ChatTarget) (string, error) {
	id := fmt.Sprintf("bc:%d", time.Now().UnixNano())
	j := job{id: id, text: text, targets: append([]int64(nil), targets...), reply: reply}
	select {
	case s.queue <- j:
		s.log.Debug("broadcast job enqueued",
			logx.String("job", id),
			logx.Int("targets", len(targets)),
			logx.Int("queue_len", len(s.queue)),
			logx.Int("queue_cap", cap(s.queue)))
		return id, nil
	default:
		s.log.Warn("broadcast queue full; dropping job", logx.String("job", id))
		return "", ErrBusy
	}
}

func (s *Service) Start(ctx context.Context) {
	// If a Stop() is in progress, wait for it to finish first (prevents
	// double worker pools).
	for {
		s.mu.Lock()
		if s.stopCh == nil {
			break
		}
		done := s.stopDone
		if done == nil {
			// already running
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
	}
	defer s.mu.Unlock()

	s.stopCh = make(chan struct{})
	s.runCtx, s.runCancel = context.WithCancel(ctx)

	workers := s.cfg.Workers
	queue := s.queue
	stopCh := s.stopCh
	runCtx := s.runCtx

	s.workerWG.Add(workers)
	for i := 0; i < workers; i++ {
		idx := i
		go func() {
			defer s.workerWG.Done()
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("panic in broadcast worker",
						logx.Int("worker", idx),
						logx.Any("panic", r),
						logx.String("stack", string(debug.Stack())))
				}
			}()
			s.worker(runCtx, stopCh, queue)
		}()
	}

	s.log.Info("service started",
		logx.Int("workers", workers),
		logx.Duration("min_send_delay", s.cfg.MinSendDelay))
}

func (s *Service) Stop(ctx context.Context) {
	start := time.Now()
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return
	}
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	}

	done := make(chan struct{})
	s.stopDone = done
	stopCh := s.stopCh
	cancel := s.runCancel
	s.runCancel = nil
	s.mu.Unlock()

	close(stopCh)
	if cancel != nil {
		cancel()
	}

	go func() {
		s.workerWG.Wait()
		s.mu.Lock()
		s.stopCh = nil
		s.runCtx = nil
		s.stopDone = nil
		s.mu.Unlock()
		close(done)
		s.log.Info("service stopped", logx.Duration("took", time.Since(start)))
	}()

	select {
	case <-done:
	case <-ctx.Done():
		// stop continues in background
	}
}
