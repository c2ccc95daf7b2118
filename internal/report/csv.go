// Package report renders a user's ledger history for delivery: CSV
// documents and time-series chart images. The chart dependency stays
// behind the Renderer interface so the ledger/broadcast path never
// needs it.
package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/momaliii/kamal-bot-old/internal/ledger"
)

// CSV renders transactions (already in insertion order) as a CSV
// document in memory.
func CSV(txs []ledger.Transaction) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"ID", "Amount", "Date", "Category", "Chat ID"}); err != nil {
		return nil, fmt.Errorf("report: csv header: %w", err)
	}
	for _, t := range txs {
		rec := []string{
			strconv.FormatInt(t.ID, 10),
			t.Amount.String(),
			t.Date,
			t.Category,
			strconv.FormatInt(t.ChatID, 10),
		}
		if err := w.Write(rec); err != nil {
			return nil, fmt.Errorf("report: csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("report: csv: %w", err)
	}
	return buf.Bytes(), nil
}

// CSVFilename names a user's export document.
func CSVFilename(chatID int64) string {
	return fmt.Sprintf("transactions_%d.csv", chatID)
}
