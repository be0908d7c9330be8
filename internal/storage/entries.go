package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"ledger/internal/core"
)

const entryColumns = `id, date, type, category, amount_cents, note, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(s rowScanner) (core.CashEntry, error) {
	var (
		e     core.CashEntry
		typ   string
		cents int64
		note  sql.NullString
	)
	if err := s.Scan(&e.ID, &e.Date, &typ, &e.Category, &cents, &note, timestamp{&e.CreatedAt}); err != nil {
		return core.CashEntry{}, err
	}
	e.Type = core.EntryType(typ)
	e.Amount = core.Money{Cents: cents}
	e.Note = stringPtr(note)
	return e, nil
}

// CreateEntry inserts a cash entry and returns it with id and created_at set.
func (r *Repository) CreateEntry(ctx context.Context, accountID int64, e core.CashEntry) (core.CashEntry, error) {
	row := r.db.QueryRowContext(ctx, r.q(`
		INSERT INTO entries (account_id, date, type, category, amount_cents, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING `+entryColumns),
		accountID, e.Date, string(e.Type), strings.TrimSpace(e.Category), e.Amount.Cents, nullString(e.Note), r.now(),
	)
	created, err := scanEntry(row)
	if err != nil {
		return core.CashEntry{}, fmt.Errorf("create entry: %w", err)
	}

	slog.InfoContext(ctx, "Entry saved",
		"account_id", accountID,
		"entry_id", created.ID,
		"type", string(created.Type),
		"amount_cents", created.Amount.Cents)

	return created, nil
}

func (r *Repository) GetEntry(ctx context.Context, accountID, id int64) (core.CashEntry, error) {
	row := r.db.QueryRowContext(ctx, r.q(`
		SELECT `+entryColumns+` FROM entries WHERE id = ? AND account_id = ?`), id, accountID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.CashEntry{}, core.ErrNotFound
	}
	if err != nil {
		return core.CashEntry{}, fmt.Errorf("get entry %d: %w", id, err)
	}
	return e, nil
}

// UpdateEntry replaces every mutable field of an entry.
func (r *Repository) UpdateEntry(ctx context.Context, accountID int64, e core.CashEntry) (core.CashEntry, error) {
	row := r.db.QueryRowContext(ctx, r.q(`
		UPDATE entries
		SET date = ?, type = ?, category = ?, amount_cents = ?, note = ?
		WHERE id = ? AND account_id = ?
		RETURNING `+entryColumns),
		e.Date, string(e.Type), strings.TrimSpace(e.Category), e.Amount.Cents, nullString(e.Note), e.ID, accountID,
	)
	updated, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.CashEntry{}, core.ErrNotFound
	}
	if err != nil {
		return core.CashEntry{}, fmt.Errorf("update entry %d: %w", e.ID, err)
	}
	return updated, nil
}

func (r *Repository) DeleteEntry(ctx context.Context, accountID, id int64) error {
	res, err := r.db.ExecContext(ctx, r.q(`DELETE FROM entries WHERE id = ? AND account_id = ?`), id, accountID)
	if err != nil {
		return fmt.Errorf("delete entry %d: %w", id, err)
	}
	if err := rowsAffected(res, core.ErrNotFound); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Entry deleted", "account_id", accountID, "entry_id", id)
	return nil
}

// ListEntriesByDate returns one day's entries in insertion order.
func (r *Repository) ListEntriesByDate(ctx context.Context, accountID int64, date core.Date) ([]core.CashEntry, error) {
	return r.listEntries(ctx, r.q(`
		SELECT `+entryColumns+` FROM entries
		WHERE account_id = ? AND date = ?
		ORDER BY id`), accountID, date)
}

// ListEntriesInRange returns entries with from <= date <= to, oldest first.
func (r *Repository) ListEntriesInRange(ctx context.Context, accountID int64, from, to core.Date) ([]core.CashEntry, error) {
	return r.listEntries(ctx, r.q(`
		SELECT `+entryColumns+` FROM entries
		WHERE account_id = ? AND date >= ? AND date <= ?
		ORDER BY date, id`), accountID, from, to)
}

func (r *Repository) listEntries(ctx context.Context, query string, args ...any) ([]core.CashEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	entries := make([]core.CashEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// CategoryTotals sums income and expense per category over an inclusive range.
// Categories without entries in the range are not returned.
func (r *Repository) CategoryTotals(ctx context.Context, accountID int64, from, to core.Date) ([]core.CategoryTotals, error) {
	rows, err := r.db.QueryContext(ctx, r.q(`
		SELECT category,
		       CAST(COALESCE(SUM(CASE WHEN type = 'income' THEN amount_cents ELSE 0 END), 0) AS BIGINT),
		       CAST(COALESCE(SUM(CASE WHEN type = 'expense' THEN amount_cents ELSE 0 END), 0) AS BIGINT)
		FROM entries
		WHERE account_id = ? AND date >= ? AND date <= ?
		GROUP BY category
		ORDER BY category`), accountID, from, to)
	if err != nil {
		return nil, fmt.Errorf("category totals: %w", err)
	}
	defer rows.Close()

	totals := make([]core.CategoryTotals, 0)
	for rows.Next() {
		var (
			ct              core.CategoryTotals
			income, expense int64
		)
		if err := rows.Scan(&ct.Category, &income, &expense); err != nil {
			return nil, fmt.Errorf("scan category totals: %w", err)
		}
		ct.IncomeTotal = core.Money{Cents: income}
		ct.ExpenseTotal = core.Money{Cents: expense}
		totals = append(totals, ct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category totals: %w", err)
	}
	return totals, nil
}
