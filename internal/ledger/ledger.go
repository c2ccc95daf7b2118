package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCategory labels transactions recorded without an explicit category.
const DefaultCategory = "general"

const dateLayout = "2006-01-02"

type Transaction struct {
	ID       int64
	Amount   decimal.Decimal
	Date     string
	Category string
	ChatID   int64
}

// DailyTotal is the sum of a user's amounts for one calendar date.
type DailyTotal struct {
	Date  string
	Total decimal.Decimal
}

// RegisterUser inserts the user if absent. Re-registering is a no-op.
func (s *Store) RegisterUser(ctx context.Context, chatID int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO users(chat_id) VALUES(?)`, chatID); err != nil {
			return fmt.Errorf("ledger: register user %d: %w", chatID, err)
		}
		return nil
	})
}

// RecordTransaction appends one transaction stamped with the current date
// and returns it with its store-assigned id. An empty category defaults
// to DefaultCategory. The user row is ensured in the same transaction,
// so recording never requires a prior RegisterUser.
func (s *Store) RecordTransaction(ctx context.Context, chatID int64, amount decimal.Decimal, category string) (Transaction, error) {
	if category == "" {
		category = DefaultCategory
	}
	t := Transaction{
		Amount:   amount,
		Date:     time.Now().Format(dateLayout),
		Category: category,
		ChatID:   chatID,
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO users(chat_id) VALUES(?)`, chatID); err != nil {
			return fmt.Errorf("ledger: record transaction: %w", err)
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO transactions(amount, date, category, chat_id) VALUES(?,?,?,?)`,
			amount.String(), t.Date, t.Category, chatID)
		if err != nil {
			return fmt.Errorf("ledger: record transaction: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("ledger: record transaction: %w", err)
		}
		t.ID = id
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	return t, nil
}

// Total returns the exact sum of the user's amounts, zero when the user
// has no transactions. The total is always derived, never stored.
func (s *Store) Total(ctx context.Context, chatID int64) (decimal.Decimal, error) {
	total := decimal.Zero
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT amount FROM transactions WHERE chat_id = ?`, chatID)
		if err != nil {
			return fmt.Errorf("ledger: total: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var raw string
			if err := rows.Scan(&raw); err != nil {
				return fmt.Errorf("ledger: total: %w", err)
			}
			amt, err := decimal.NewFromString(raw)
			if err != nil {
				return fmt.Errorf("ledger: total: bad amount %q: %w", raw, err)
			}
			total = total.Add(amt)
		}
		return rows.Err()
	})
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

// Transactions returns all of the user's transactions in insertion order.
func (s *Store) Transactions(ctx context.Context, chatID int64) ([]Transaction, error) {
	var out []Transaction
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT id, amount, date, category, chat_id
			 FROM transactions WHERE chat_id = ? ORDER BY id`, chatID)
		if err != nil {
			return fmt.Errorf("ledger: transactions: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var (
				t   Transaction
				raw string
			)
			if err := rows.Scan(&t.ID, &raw, &t.Date, &t.Category, &t.ChatID); err != nil {
				return fmt.Errorf("ledger: transactions: %w", err)
			}
			amt, err := decimal.NewFromString(raw)
			if err != nil {
				return fmt.Errorf("ledger: transactions: bad amount %q: %w", raw, err)
			}
			t.Amount = amt
			out = append(out, t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DailyTotals returns per-date sums in date order, for charting.
func (s *Store) DailyTotals(ctx context.Context, chatID int64) ([]DailyTotal, error) {
	var out []DailyTotal
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT date, amount FROM transactions WHERE chat_id = ? ORDER BY date, id`, chatID)
		if err != nil {
			return fmt.Errorf("ledger: daily totals: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var (
				date string
				raw  string
			)
			if err := rows.Scan(&date, &raw); err != nil {
				return fmt.Errorf("ledger: daily totals: %w", err)
			}
			amt, err := decimal.NewFromString(raw)
			if err != nil {
				return fmt.Errorf("ledger: daily totals: bad amount %q: %w", raw, err)
			}
			if n := len(out); n > 0 && out[n-1].Date == date {
				out[n-1].Total = out[n-1].Total.Add(amt)
			} else {
				out = append(out, DailyTotal{Date: date, Total: amt})
			}
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Reset deletes all of the user's transactions and reports how many rows
// were removed. The user row itself is retained.
func (s *Store) Reset(ctx context.Context, chatID int64) (int64, error) {
	var removed int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM transactions WHERE chat_id = ?`, chatID)
		if err != nil {
			return fmt.Errorf("ledger: reset user %d: %w", chatID, err)
		}
		removed, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("ledger: reset user %d: %w", chatID, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// Recipients returns the ordered snapshot of all registered chat ids.
// Each broadcast takes exactly one snapshot; users registering afterwards
// are not included in that run.
func (s *Store) Recipients(ctx context.Context) ([]int64, error) {
	var out []int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT chat_id FROM users ORDER BY chat_id`)
		if err != nil {
			return fmt.Errorf("ledger: recipients: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return fmt.Errorf("ledger: recipients: %w", err)
			}
			out = append(out, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
