// Package ledger persists users and their transactions in SQLite.
//
// Every operation runs inside one scoped database transaction with
// commit-or-rollback guaranteed on every exit path. Failures always
// propagate to the caller; a user is never told a write succeeded
// before it was committed.
//
// Amounts are decimal values stored as canonical strings and summed in
// application code, so totals are exact with no float rounding.
package ledger
