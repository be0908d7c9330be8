package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/sheets"
)

// RecordSource loads the records referenced by ledger events.
// *storage.Repository implements it.
type RecordSource interface {
	GetEntry(ctx context.Context, accountID, id int64) (core.CashEntry, error)
	GetInstallment(ctx context.Context, accountID, id int64) (core.LoanGivenPayment, error)
	GetPaydown(ctx context.Context, accountID, id int64) (core.LoanToPayPayment, error)
}

// Consumer is the event stream the worker drains. *amqp.Client implements it.
type Consumer interface {
	ConsumeEvents(ctx context.Context, handler func(context.Context, *amqp.LedgerEvent) error) error
	Reconnect(ctx context.Context) error
}

// JournalWorker mirrors committed ledger changes into a journal.
type JournalWorker struct {
	source  RecordSource
	journal sheets.JournalWriter
}

func NewJournalWorker(source RecordSource, journal sheets.JournalWriter) *JournalWorker {
	return &JournalWorker{source: source, journal: journal}
}

// HandleEvent appends one journal row for ev. Records deleted since the
// event was published are skipped; a returned error requeues the event.
func (w *JournalWorker) HandleEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	row, ok, err := w.rowFor(ctx, ev)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	row.RecordedAt = ev.Timestamp

	ref, err := w.journal.AppendJournal(ctx, row)
	if err != nil {
		return fmt.Errorf("append journal row: %w", err)
	}

	slog.InfoContext(ctx, "Journal row appended",
		"type", string(ev.Type),
		"id", ev.ID,
		"account_id", ev.AccountID,
		"ref", ref)
	return nil
}

func (w *JournalWorker) rowFor(ctx context.Context, ev *amqp.LedgerEvent) (core.JournalRow, bool, error) {
	var (
		row core.JournalRow
		err error
	)
	switch ev.Type {
	case amqp.EntryCreated, amqp.EntryUpdated:
		var e core.CashEntry
		if e, err = w.source.GetEntry(ctx, ev.AccountID, ev.ID); err == nil {
			action := "created"
			if ev.Type == amqp.EntryUpdated {
				action = "updated"
			}
			row = core.JournalRowForEntry(ev.AccountID, action, e)
		}
	case amqp.EntryDeleted:
		if ev.Snapshot == nil {
			slog.WarnContext(ctx, "Delete event without snapshot, skipping", "id", ev.ID)
			return row, false, nil
		}
		row = core.JournalRowForEntry(ev.AccountID, "deleted", *ev.Snapshot)
	case amqp.InstallmentRecorded:
		var p core.LoanGivenPayment
		if p, err = w.source.GetInstallment(ctx, ev.AccountID, ev.ID); err == nil {
			row = core.JournalRowForInstallment(ev.AccountID, p)
		}
	case amqp.PaydownRecorded:
		var p core.LoanToPayPayment
		if p, err = w.source.GetPaydown(ctx, ev.AccountID, ev.ID); err == nil {
			row = core.JournalRowForPaydown(ev.AccountID, p)
		}
	default:
		slog.WarnContext(ctx, "Unknown ledger event type, dropping", "type", string(ev.Type), "id", ev.ID)
		return row, false, nil
	}

	if errors.Is(err, core.ErrNotFound) {
		slog.WarnContext(ctx, "Record no longer exists, skipping", "type", string(ev.Type), "id", ev.ID)
		return row, false, nil
	}
	if err != nil {
		return row, false, fmt.Errorf("load %s %d: %w", ev.Type, ev.ID, err)
	}
	return row, true, nil
}

// Run consumes events until ctx is cancelled, reconnecting when the
// broker connection drops.
func (w *JournalWorker) Run(ctx context.Context, consumer Consumer) error {
	for {
		err := consumer.ConsumeEvents(ctx, w.HandleEvent)
		if ctx.Err() != nil {
			return nil
		}
		slog.WarnContext(ctx, "Event consumption stopped, reconnecting", "error", err)
		if err := consumer.Reconnect(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reconnect: %w", err)
		}
	}
}
