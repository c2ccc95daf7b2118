package broadcast

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	kit "github.com/momaliii/kamal-bot-old/internal/transport"
	logx "github.com/momaliii/kamal-bot-old/pkg/logx"
)

type Config struct {
	Workers      int
	QueueSize    int
	MinSendDelay time.Duration // minimum gap between consecutive sends, across the whole run
	MaxMsgLen    int           // transport chunk ceiling, in runes
}

// Failure records one chunk that could not be delivered.
type Failure struct {
	ChatID int64
	Chunk  int
	Err    error
}

// Report aggregates one broadcast run. A recipient counts as delivered
// only when every chunk reached it; an interrupted run never claims
// success for recipients it did not finish.
type Report struct {
	Recipients int
	Chunks     int
	Delivered  int
	Failed     int
	Failures   []Failure
}

type job struct {
	id      string
	text    string
	targets []int64
	reply   kit.ChatTarget // where the aggregate summary goes
}

type Service struct {
	mu sync.Mutex

	cfg     Config
	adapter kit.Adapter
	log     logx.Logger

	limiter *rate.Limiter
	queue   chan job

	stopCh chan struct{}
	// stopDone is non-nil while a Stop() is in progress; closed when the
	// workers have fully exited.
	stopDone  chan struct{}
	runCtx    context.Context
	runCancel context.CancelFunc
	workerWG  sync.WaitGroup
}
