package broadcast

import (
	"context"
	"fmt"
	"time"

	kit "github.com/momaliii/kamal-bot-old/internal/transport"
	logx "github.com/momaliii/kamal-bot-old/pkg/logx"
)

func (s *Service) worker(ctx context.Context, stopCh <-chan struct{}, queue <-chan job) {
	for {
		// fast-exit so stop wins over queued work
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case j := <-queue:
			s.execJob(ctx, j)
		}
	}
}

func (s *Service) execJob(ctx context.Context, j job) {
	start := time.Now()
	s.log.Info("broadcast job started", logx.String("job", j.id), logx.Int("targets", len(j.targets)))

	rep := s.Run(ctx, j.text, j.targets)

	fields := []logx.Field{
		logx.String("job", j.id),
		logx.Int("recipients", rep.Recipients),
		logx.Int("delivered", rep.Delivered),
		logx.Int("failed", rep.Failed),
		logx.Duration("dur", time.Since(start)),
	}
	if rep.Failed > 0 {
		s.log.Warn("broadcast job finished with failures", fields...)
	} else {
		s.log.Info("broadcast job finished", fields...)
	}

	if j.reply.ChatID != 0 {
		if _, err := s.adapter.SendText(ctx, j.reply, Summary(rep), nil); err != nil {
			s.log.Warn("broadcast summary reply failed", logx.String("job", j.id), logx.Err(err))
		}
	}
}

// Run performs one broadcast invocation synchronously: normalize, chunk,
// then deliver chunk by chunk to each recipient in snapshot order. A
// failed chunk is recorded and skipped, never retried in-process, and
// never aborts delivery to the remaining recipients.
func (s *Service) Run(ctx context.Context, text string, targets []int64) Report {
	s.mu.Lock()
	lim := s.limiter
	maxLen := s.cfg.MaxMsgLen
	adapter := s.adapter
	s.mu.Unlock()

	chunks := Chunks(Normalize(text), maxLen)
	rep := Report{Recipients: len(targets), Chunks: len(chunks)}
	opt := &kit.SendOptions{ParseMode: kit.ParseModeMarkdown}

	for _, chatID := range targets {
		if ctx.Err() != nil {
			// Interrupted: recipients not reached are neither delivered
			// nor failed; the report stands as-is.
			return rep
		}
		failed := false
		for i, chunk := range chunks {
			if err := lim.Wait(ctx); err != nil {
				return rep
			}
			if _, err := adapter.SendText(ctx, kit.ChatTarget{ChatID: chatID}, chunk, opt); err != nil {
				failed = true
				if len(rep.Failures) < 200 {
					rep.Failures = append(rep.Failures, Failure{ChatID: chatID, Chunk: i, Err: err})
				}
				s.log.Warn("broadcast send failed",
					logx.Int64("chat_id", chatID),
					logx.Int("chunk", i),
					logx.Err(err))
			}
		}
		if failed {
			rep.Failed++
		} else {
			rep.Delivered++
		}
	}
	return rep
}

// Summary renders the aggregate report for the admin reply.
func Summary(rep Report) string {
	if rep.Failed == 0 {
		return fmt.Sprintf("Broadcast finished: delivered to %d/%d users.", rep.Delivered, rep.Recipients)
	}
	return fmt.Sprintf("Broadcast finished: delivered to %d/%d users, %d failed.",
		rep.Delivered, rep.Recipients, rep.Failed)
}
