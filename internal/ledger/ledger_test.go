package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	logx "github.com/momaliii/kamal-bot-old/pkg/logx"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(Config{Path: filepath.Join(t.TempDir(), "ledger.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("decimal %q: %v", s, err)
	}
	return d
}

func TestRegisterUserIdempotent(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := st.RegisterUser(ctx, 42); err != nil {
			t.Fatalf("RegisterUser #%d: %v", i, err)
		}
	}
	got, err := st.Recipients(ctx)
	if err != nil {
		t.Fatalf("Recipients: %v", err)
	}
	if len(got) != 1 || got[0] != 42 {
		t.Fatalf("recipients = %v, want [42]", got)
	}
}

func TestRecordAndExactTotal(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()

	if err := st.RegisterUser(ctx, 1); err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	first, err := st.RecordTransaction(ctx, 1, dec(t, "12.50"), "")
	if err != nil {
		t.Fatalf("RecordTransaction: %v", err)
	}
	if first.ID == 0 {
		t.Fatalf("transaction id not assigned: %+v", first)
	}
	if first.Category != DefaultCategory {
		t.Fatalf("category = %q, want %q", first.Category, DefaultCategory)
	}
	if first.Date != time.Now().Format("2006-01-02") {
		t.Fatalf("date = %q, want today", first.Date)
	}
	if _, err := st.RecordTransaction(ctx, 1, dec(t, "-3"), ""); err != nil {
		t.Fatalf("RecordTransaction: %v", err)
	}

	total, err := st.Total(ctx, 1)
	if err != nil {
		t.Fatalf("Total: %v", err)
	}
	if total.String() != "9.5" {
		t.Fatalf("total = %s, want 9.5", total)
	}
}

func TestRecordTransactionWithoutPriorRegistration(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()

	if _, err := st.RecordTransaction(ctx, 77, dec(t, "1.5"), ""); err != nil {
		t.Fatalf("RecordTransaction for unregistered chat: %v", err)
	}

	rec, err := st.Recipients(ctx)
	if err != nil {
		t.Fatalf("Recipients: %v", err)
	}
	if len(rec) != 1 || rec[0] != 77 {
		t.Fatalf("recipients = %v, want the recording chat registered", rec)
	}
	total, err := st.Total(ctx, 77)
	if err != nil {
		t.Fatalf("Total: %v", err)
	}
	if total.String() != "1.5" {
		t.Fatalf("total = %s, want 1.5", total)
	}
}

func TestTotalZeroWithoutTransactions(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)

	total, err := st.Total(context.Background(), 999)
	if err != nil {
		t.Fatalf("Total: %v", err)
	}
	if !total.IsZero() {
		t.Fatalf("total = %s, want 0", total)
	}
}

func TestTransactionsInsertionOrder(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()

	amounts := []string{"5", "-2.25", "100.10"}
	for _, a := range amounts {
		if _, err := st.RecordTransaction(ctx, 7, dec(t, a), "food"); err != nil {
			t.Fatalf("RecordTransaction %s: %v", a, err)
		}
	}

	txs, err := st.Transactions(ctx, 7)
	if err != nil {
		t.Fatalf("Transactions: %v", err)
	}
	if len(txs) != len(amounts) {
		t.Fatalf("len = %d, want %d", len(txs), len(amounts))
	}
	for i, tx := range txs {
		if !tx.Amount.Equal(dec(t, amounts[i])) {
			t.Fatalf("tx[%d].Amount = %s, want %s", i, tx.Amount, amounts[i])
		}
		if tx.Category != "food" {
			t.Fatalf("tx[%d].Category = %q", i, tx.Category)
		}
		if i > 0 && txs[i].ID <= txs[i-1].ID {
			t.Fatalf("ids not ascending: %d then %d", txs[i-1].ID, txs[i].ID)
		}
	}
}

func TestDailyTotalsGroupByDate(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()

	if _, err := st.RecordTransaction(ctx, 3, dec(t, "1.10"), ""); err != nil {
		t.Fatalf("RecordTransaction: %v", err)
	}
	if _, err := st.RecordTransaction(ctx, 3, dec(t, "2.15"), ""); err != nil {
		t.Fatalf("RecordTransaction: %v", err)
	}

	totals, err := st.DailyTotals(ctx, 3)
	if err != nil {
		t.Fatalf("DailyTotals: %v", err)
	}
	if len(totals) != 1 {
		t.Fatalf("len = %d, want 1 bucket for same-day rows", len(totals))
	}
	if totals[0].Total.String() != "3.25" {
		t.Fatalf("total = %s, want 3.25", totals[0].Total)
	}
}

func TestResetIsolatedPerUser(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()

	for _, chatID := range []int64{1, 2} {
		if err := st.RegisterUser(ctx, chatID); err != nil {
			t.Fatalf("RegisterUser %d: %v", chatID, err)
		}
		if _, err := st.RecordTransaction(ctx, chatID, dec(t, "10"), ""); err != nil {
			t.Fatalf("RecordTransaction %d: %v", chatID, err)
		}
	}

	removed, err := st.Reset(ctx, 1)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}

	if total, _ := st.Total(ctx, 1); !total.IsZero() {
		t.Fatalf("user 1 total = %s after reset", total)
	}
	if total, _ := st.Total(ctx, 2); total.String() != "10" {
		t.Fatalf("user 2 total = %s, want 10", total)
	}

	// Reset removes history, not registration.
	rec, err := st.Recipients(ctx)
	if err != nil {
		t.Fatalf("Recipients: %v", err)
	}
	if len(rec) != 2 {
		t.Fatalf("recipients = %v, want both users retained", rec)
	}

	removed, err = st.Reset(ctx, 1)
	if err != nil {
		t.Fatalf("second Reset: %v", err)
	}
	if removed != 0 {
		t.Fatalf("second reset removed = %d, want 0", removed)
	}
}
