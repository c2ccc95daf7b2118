package telegram

import (
	"context"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	kit "github.com/momaliii/kamal-bot-old/internal/transport"
	logx "github.com/momaliii/kamal-bot-old/pkg/logx"
)

// idlePoller produces no updates and returns when asked to stop.
type idlePoller struct{}

func (idlePoller) Poll(b *tele.Bot, dest chan tele.Update, stop chan struct{}) { <-stop }

func newOfflineAdapter(t *testing.T) *Adapter {
	t.Helper()
	b, err := tele.NewBot(tele.Settings{Token: "test-token", Offline: true, Poller: idlePoller{}})
	if err != nil {
		t.Fatalf("NewBot: %v", err)
	}
	return &Adapter{cfg: Config{Token: "test-token"}, log: logx.Nop(), bot: b}
}

func TestStopOnlyStopsBotOnce(t *testing.T) {
	t.Parallel()
	a := newOfflineAdapter(t)
	out := make(chan kit.Update, 1)
	if err := a.Start(context.Background(), out); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := a.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	// The bot's stop handshake blocks forever when repeated; the guarded
	// path must return no matter how often it runs.
	done := make(chan struct{})
	go func() {
		a.stopBot()
		a.stopBot()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("repeated transport stop blocked")
	}

	if err := a.Stop(context.Background()); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestStopWithoutStart(t *testing.T) {
	t.Parallel()
	a := newOfflineAdapter(t)
	if err := a.Stop(context.Background()); err != nil {
		t.Fatalf("Stop without Start: %v", err)
	}
}

func TestNewRequiresToken(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{}, logx.Nop()); err == nil {
		t.Fatal("New accepted an empty token")
	}
}
