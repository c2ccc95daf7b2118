// Package router maps inbound chat updates onto ledger and broadcaster
// operations and renders the results back to the transport.
package router

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momaliii/kamal-bot-old/internal/broadcast"
	"github.com/momaliii/kamal-bot-old/internal/ledger"
	"github.com/momaliii/kamal-bot-old/internal/report"
	kit "github.com/momaliii/kamal-bot-old/internal/transport"
	logx "github.com/momaliii/kamal-bot-old/pkg/logx"
)

type Config struct {
	AdminUserIDs   []int64
	HandlerTimeout time.Duration
}

type Request struct {
	Msg     kit.Message
	Chat    kit.ChatTarget
	Command string
	Args    string
	ReqID   string
	Logger  logx.Logger
}

type Router struct {
	adapter  kit.Adapter
	store    *ledger.Store
	bcast    *broadcast.Service
	renderer report.Renderer
	log      logx.Logger

	mu      sync.RWMutex
	admins  []int64
	timeout time.Duration

	jobs   chan func()
	ridSeq uint64
}

func New(cfg Config, adapter kit.Adapter, store *ledger.Store, bcast *broadcast.Service, renderer report.Renderer, log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	timeout := cfg.HandlerTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Router{
		adapter:  adapter,
		store:    store,
		bcast:    bcast,
		renderer: renderer,
		log:      log,
		admins:   append([]int64(nil), cfg.AdminUserIDs...),
		timeout:  timeout,
		jobs:     make(chan func(), 256),
	}
}

// SetAdmins updates the admin allowlist. Safe during config hot-reload.
func (r *Router) SetAdmins(ids []int64) {
	cp := append([]int64(nil), ids...)
	r.mu.Lock()
	r.admins = cp
	r.mu.Unlock()
}

func (r *Router) isAdmin(id int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.admins {
		if a == id {
			return true
		}
	}
	return false
}

// DispatchLoop consumes updates until ctx is done. Handlers run on a
// bounded worker pool so one slow handler cannot stall the inbound
// loop; long-running broadcasts additionally run on their own service
// worker, keeping the bot responsive for the whole run.
func (r *Router) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	workers := runtime.NumCPU()
	if workers < 2 {
		workers = 2
	}
	r.log.Info("dispatcher started", logx.Int("workers", workers), logx.Int("job_queue_cap", cap(r.jobs)))

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-r.jobs:
					if !ok {
						return
					}
					job()
				}
			}
		}()
	}
	defer func() {
		wg.Wait()
		r.log.Info("dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			r.route(ctx, up)
		}
	}
}

func (r *Router) route(ctx context.Context, up kit.Update) {
	if up.Message == nil {
		return
	}
	msg := *up.Message
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	cmd, args, isCmd := parseCommand(text)

	var (
		name   string
		handle HandlerFunc
	)
	if !isCmd {
		name = "amount"
		handle = r.handleAmount
	} else {
		name = cmd.String()
		switch cmd {
		case cmdStart, cmdHelp:
			handle = r.handleHelp
		case cmdBroadcast:
			handle = r.handleBroadcast
		case cmdExport:
			handle = r.handleExport
		case cmdGraph:
			handle = r.handleGraph
		case cmdReset:
			handle = r.handleReset
		case cmdUnknown:
			_, _ = r.adapter.SendText(ctx, kit.ChatTarget{ChatID: msg.ChatID}, "Unknown command. Try /helpme.", nil)
			return
		}
	}

	rid := r.newReqID()
	req := &Request{
		Msg:     msg,
		Chat:    kit.ChatTarget{ChatID: msg.ChatID},
		Command: name,
		Args:    args,
		ReqID:   rid,
		Logger: r.log.With(
			logx.String("rid", rid),
			logx.Int64("chat_id", msg.ChatID),
			logx.Int64("from_id", msg.FromID),
			logx.String("cmd", name),
		),
	}

	final := Chain(
		handle,
		MWPanicRecover(r.log),
		MWRequestLog(r.log),
		MWTimeout(r.timeout),
	)

	select {
	case r.jobs <- func() { _ = final(ctx, req) }:
	default:
		_, _ = r.adapter.SendText(ctx, req.Chat, "busy, try again", nil)
	}
}

func (r *Router) newReqID() string {
	n := atomic.AddUint64(&r.ridSeq, 1)
	return base36(time.Now().UnixNano()) + "-" + base36(int64(n))
}

func base36(v int64) string {
	const chars = "0123456789abcdefghijklmnopqrstuvwxyz"
	if v < 0 {
		v = -v
	}
	if v == 0 {
		return "0"
	}
	var out [16]byte
	i := len(out)
	for v > 0 {
		i--
		out[i] = chars[v%36]
		v /= 36
	}
	return string(out[i:])
}
