package report

import (
	"bytes"
	"encoding/csv"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/momaliii/kamal-bot-old/internal/ledger"
)

func TestCSV(t *testing.T) {
	t.Parallel()
	txs := []ledger.Transaction{
		{ID: 1, Amount: decimal.RequireFromString("12.50"), Date: "2026-09-01", Category: "general", ChatID: 42},
		{ID: 2, Amount: decimal.RequireFromString("-3"), Date: "2026-09-01", Category: "food", ChatID: 42},
	}

	out, err := CSV(txs)
	if err != nil {
		t.Fatalf("CSV: %v", err)
	}

	rows, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	want := [][]string{
		{"ID", "Amount", "Date", "Category", "Chat ID"},
		{"1", "12.5", "2026-09-01", "general", "42"},
		{"2", "-3", "2026-09-01", "food", "42"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("rows = %v, want %v", rows, want)
	}
}

func TestCSVEmptyHistory(t *testing.T) {
	t.Parallel()
	out, err := CSV(nil)
	if err != nil {
		t.Fatalf("CSV: %v", err)
	}
	if got := string(out); got != "ID,Amount,Date,Category,Chat ID\n" {
		t.Fatalf("output = %q, want header only", got)
	}
}

func TestCSVFilename(t *testing.T) {
	t.Parallel()
	if got := CSVFilename(1234); got != "transactions_1234.csv" {
		t.Fatalf("CSVFilename = %q", got)
	}
}
