package router

import (
	"bytes"
	"context"
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"

	"github.com/momaliii/kamal-bot-old/internal/report"
	logx "github.com/momaliii/kamal-bot-old/pkg/logx"
)

var amountRe = regexp.MustCompile(`^[+-]?\d+(\.\d+)?$`)

const (
	replyInvalidAmount  = "Please send a valid number starting with + or -."
	replyEmptyBroadcast = "Please provide a message to broadcast."
	replyNoData         = "No transactions found."
	replyReset          = "All your transactions have been reset."
	replyUnauthorized   = "unauthorized"
	replyStorageFailed  = "Something went wrong. Please try again."
)

// handleAmount processes plain text: register the sender, then record
// the amount when it parses. Storage failures are reported to the user
// and propagated; a reply claiming success is only sent after commit.
func (r *Router) handleAmount(ctx context.Context, req *Request) error {
	if err := r.store.RegisterUser(ctx, req.Chat.ChatID); err != nil {
		r.replyError(ctx, req)
		return err
	}

	text := req.Msg.Text
	if !amountRe.MatchString(text) {
		_, err := r.adapter.SendText(ctx, req.Chat, replyInvalidAmount, nil)
		return err
	}
	amount, err := decimal.NewFromString(text)
	if err != nil {
		_, err := r.adapter.SendText(ctx, req.Chat, replyInvalidAmount, nil)
		return err
	}

	if _, err := r.store.RecordTransaction(ctx, req.Chat.ChatID, amount, ""); err != nil {
		r.replyError(ctx, req)
		return err
	}
	total, err := r.store.Total(ctx, req.Chat.ChatID)
	if err != nil {
		r.replyError(ctx, req)
		return err
	}

	reply := fmt.Sprintf("Amount added: %s\nTotal: %s", amount.String(), total.String())
	_, err = r.adapter.SendText(ctx, req.Chat, reply, nil)
	return err
}

func (r *Router) handleBroadcast(ctx context.Context, req *Request) error {
	if !r.isAdmin(req.Msg.FromID) {
		_, err := r.adapter.SendText(ctx, req.Chat, replyUnauthorized, nil)
		return err
	}
	if req.Args == "" {
		_, err := r.adapter.SendText(ctx, req.Chat, replyEmptyBroadcast, nil)
		return err
	}

	// Snapshot taken here, once per invocation; later registrations are
	// not part of this run.
	targets, err := r.store.Recipients(ctx)
	if err != nil {
		r.replyError(ctx, req)
		return err
	}

	id, err := r.bcast.Enqueue(req.Args, targets, req.Chat)
	if err != nil {
		_, sendErr := r.adapter.SendText(ctx, req.Chat, "busy, try again", nil)
		if sendErr != nil {
			return sendErr
		}
		return err
	}
	req.Logger.Info("broadcast queued", logx.String("job", id), logx.Int("targets", len(targets)))
	_, err = r.adapter.SendText(ctx, req.Chat, "Broadcast queued.", nil)
	return err
}

func (r *Router) handleExport(ctx context.Context, req *Request) error {
	txs, err := r.store.Transactions(ctx, req.Chat.ChatID)
	if err != nil {
		r.replyError(ctx, req)
		return err
	}
	if len(txs) == 0 {
		_, err := r.adapter.SendText(ctx, req.Chat, replyNoData, nil)
		return err
	}
	doc, err := report.CSV(txs)
	if err != nil {
		r.replyError(ctx, req)
		return err
	}
	return r.adapter.SendDocument(ctx, req.Chat, bytes.NewReader(doc), report.CSVFilename(req.Chat.ChatID))
}

func (r *Router) handleGraph(ctx context.Context, req *Request) error {
	points, err := r.store.DailyTotals(ctx, req.Chat.ChatID)
	if err != nil {
		r.replyError(ctx, req)
		return err
	}
	if len(points) == 0 {
		_, err := r.adapter.SendText(ctx, req.Chat, replyNoData, nil)
		return err
	}
	png, err := r.renderer.Render(points)
	if err != nil {
		r.replyError(ctx, req)
		return err
	}
	return r.adapter.SendPhoto(ctx, req.Chat, bytes.NewReader(png))
}

func (r *Router) handleReset(ctx context.Context, req *Request) error {
	removed, err := r.store.Reset(ctx, req.Chat.ChatID)
	if err != nil {
		r.replyError(ctx, req)
		return err
	}
	if removed == 0 {
		_, err := r.adapter.SendText(ctx, req.Chat, replyNoData, nil)
		return err
	}
	_, err = r.adapter.SendText(ctx, req.Chat, replyReset, nil)
	return err
}

func (r *Router) handleHelp(ctx context.Context, req *Request) error {
	_, err := r.adapter.SendText(ctx, req.Chat, helpText, nil)
	return err
}

func (r *Router) replyError(ctx context.Context, req *Request) {
	if _, err := r.adapter.SendText(ctx, req.Chat, replyStorageFailed, nil); err != nil {
		req.Logger.Warn("error reply failed", logx.Err(err))
	}
}
