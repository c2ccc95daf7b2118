package broadcast

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	kit "github.com/momaliii/kamal-bot-old/internal/transport"
	logx "github.com/momaliii/kamal-bot-old/pkg/logx"
)

type sentMsg struct {
	chatID int64
	text   string
	at     time.Time
}

// fakeAdapter records every send and can be told to fail for specific chats.
type fakeAdapter struct {
	mu      sync.Mutex
	sent    []sentMsg
	failFor map[int64]error
}

func (f *fakeAdapter) Start(ctx context.Context, out chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(ctx context.Context) error                         { return nil }

func (f *fakeAdapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failFor[to.ChatID]; ok {
		return kit.MessageRef{}, err
	}
	f.sent = append(f.sent, sentMsg{chatID: to.ChatID, text: text, at: time.Now()})
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.sent)}, nil
}

func (f *fakeAdapter) SendDocument(ctx context.Context, to kit.ChatTarget, r io.Reader, filename string) error {
	return nil
}

func (f *fakeAdapter) SendPhoto(ctx context.Context, to kit.ChatTarget, r io.Reader) error {
	return nil
}

func (f *fakeAdapter) messages() []sentMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentMsg, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeAdapter) forChat(chatID int64) []string {
	var out []string
	for _, m := range f.messages() {
		if m.chatID == chatID {
			out = append(out, m.text)
		}
	}
	return out
}

func TestRunPerRecipientIsolation(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{failFor: map[int64]error{2: errors.New("blocked by user")}}
	svc := New(Config{MinSendDelay: time.Millisecond}, ad, logx.Nop())

	rep := svc.Run(context.Background(), "hello", []int64{1, 2, 3})

	if rep.Recipients != 3 || rep.Delivered != 2 || rep.Failed != 1 {
		t.Fatalf("report = %+v, want 2 delivered / 1 failed of 3", rep)
	}
	if len(rep.Failures) != 1 || rep.Failures[0].ChatID != 2 {
		t.Fatalf("failures = %+v, want single failure for chat 2", rep.Failures)
	}
	for _, id := range []int64{1, 3} {
		if got := ad.forChat(id); len(got) != 1 || got[0] != "hello" {
			t.Fatalf("chat %d received %v", id, got)
		}
	}
}

func TestRunChunkOrderPerRecipient(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	svc := New(Config{MinSendDelay: time.Millisecond, MaxMsgLen: 10}, ad, logx.Nop())

	msg := strings.Repeat("a", 10) + strings.Repeat("b", 10) + strings.Repeat("c", 5)
	rep := svc.Run(context.Background(), msg, []int64{7, 8, 9})

	if rep.Chunks != 3 {
		t.Fatalf("chunks = %d, want 3", rep.Chunks)
	}
	if rep.Delivered != 3 || rep.Failed != 0 {
		t.Fatalf("report = %+v, want 3 delivered", rep)
	}
	for _, id := range []int64{7, 8, 9} {
		got := ad.forChat(id)
		if len(got) != 3 {
			t.Fatalf("chat %d received %d messages, want 3", id, len(got))
		}
		if strings.Join(got, "") != msg {
			t.Fatalf("chat %d chunks out of order or corrupted: %v", id, got)
		}
	}
}

func TestRunRespectsMinSendDelay(t *testing.T) {
	t.Parallel()
	const delay = 20 * time.Millisecond
	ad := &fakeAdapter{}
	svc := New(Config{MinSendDelay: delay, MaxMsgLen: 10}, ad, logx.Nop())

	msg := strings.Repeat("x", 25) // 3 chunks
	rep := svc.Run(context.Background(), msg, []int64{1, 2})

	if rep.Delivered != 2 {
		t.Fatalf("report = %+v, want 2 delivered", rep)
	}
	msgs := ad.messages()
	if len(msgs) != 6 {
		t.Fatalf("sends = %d, want 6", len(msgs))
	}
	elapsed := msgs[len(msgs)-1].at.Sub(msgs[0].at)
	if min := time.Duration(len(msgs)-1) * delay; elapsed < min-5*time.Millisecond {
		t.Fatalf("6 sends took %v, want at least %v", elapsed, min)
	}
}

func TestRunNormalizesBeforeChunking(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	svc := New(Config{MinSendDelay: time.Millisecond}, ad, logx.Nop())

	svc.Run(context.Background(), `line one\nline two`, []int64{1})

	got := ad.forChat(1)
	if len(got) != 1 || got[0] != "line one\nline two" {
		t.Fatalf("chat 1 received %v", got)
	}
}

func TestEnqueueBusyWhenQueueFull(t *testing.T) {
	t.Parallel()
	svc := New(Config{QueueSize: 1, MinSendDelay: time.Millisecond}, &fakeAdapter{}, logx.Nop())

	if _, err := svc.Enqueue("first", []int64{1}, kit.ChatTarget{}); err != nil {
		t.Fatalf("first Enqueue: %v", err)
	}
	if _, err := svc.Enqueue("second", []int64{1}, kit.ChatTarget{}); !errors.Is(err, ErrBusy) {
		t.Fatalf("second Enqueue err = %v, want ErrBusy", err)
	}
}

func TestStartRunsJobAndRepliesSummary(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{failFor: map[int64]error{5: errors.New("blocked")}}
	svc := New(Config{MinSendDelay: time.Millisecond}, ad, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop(context.Background())

	const admin = int64(100)
	if _, err := svc.Enqueue("announcement", []int64{4, 5}, kit.ChatTarget{ChatID: admin}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if got := ad.forChat(admin); len(got) == 1 {
			want := "Broadcast finished: delivered to 1/2 users, 1 failed."
			if got[0] != want {
				t.Fatalf("summary = %q, want %q", got[0], want)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("no summary reply after %v; sends: %v", 2*time.Second, ad.messages())
		}
		time.Sleep(5 * time.Millisecond)
	}

	if got := ad.forChat(4); len(got) != 1 || got[0] != "announcement" {
		t.Fatalf("chat 4 received %v", got)
	}
}

func TestRunInterruptedNeverClaimsSuccess(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	svc := New(Config{MinSendDelay: time.Millisecond}, ad, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep := svc.Run(ctx, "hello", []int64{1, 2, 3})

	if rep.Delivered != 0 || rep.Failed != 0 {
		t.Fatalf("report = %+v, want no delivery claims after cancel", rep)
	}
}

func TestSummaryFormat(t *testing.T) {
	t.Parallel()
	if got := Summary(Report{Recipients: 3, Delivered: 3}); got != "Broadcast finished: delivered to 3/3 users." {
		t.Fatalf("Summary = %q", got)
	}
	if got := Summary(Report{Recipients: 3, Delivered: 1, Failed: 2}); got != "Broadcast finished: delivered to 1/3 users, 2 failed." {
		t.Fatalf("Summary = %q", got)
	}
}
