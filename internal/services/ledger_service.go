package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"ledger/internal/amqp"
	"ledger/internal/cache"
	"ledger/internal/core"
)

// Store is the persistence the ledger service needs. *storage.Repository
// implements it.
type Store interface {
	CreateEntry(ctx context.Context, accountID int64, e core.CashEntry) (core.CashEntry, error)
	GetEntry(ctx context.Context, accountID, id int64) (core.CashEntry, error)
	UpdateEntry(ctx context.Context, accountID int64, e core.CashEntry) (core.CashEntry, error)
	DeleteEntry(ctx context.Context, accountID, id int64) error
	ListEntriesByDate(ctx context.Context, accountID int64, date core.Date) ([]core.CashEntry, error)
	ListEntriesInRange(ctx context.Context, accountID int64, from, to core.Date) ([]core.CashEntry, error)
	CategoryTotals(ctx context.Context, accountID int64, from, to core.Date) ([]core.CategoryTotals, error)

	CreateLoanGiven(ctx context.Context, accountID int64, l core.LoanGiven) (core.LoanGiven, error)
	GetLoanGiven(ctx context.Context, accountID, id int64) (core.LoanGivenBalance, error)
	UpdateLoanGiven(ctx context.Context, accountID int64, l core.LoanGiven) (core.LoanGiven, error)
	ListLoansGiven(ctx context.Context, accountID int64) ([]core.LoanGivenBalance, error)
	UpsertInstallment(ctx context.Context, accountID int64, p core.LoanGivenPayment) (core.LoanGivenPayment, error)
	ListInstallments(ctx context.Context, accountID, loanID int64) ([]core.LoanGivenPayment, error)

	CreateLoanToPay(ctx context.Context, accountID int64, l core.LoanToPay) (core.LoanToPay, error)
	GetLoanToPay(ctx context.Context, accountID, id int64) (core.LoanToPay, error)
	ListLoansToPay(ctx context.Context, accountID int64) ([]core.LoanToPay, error)
	RecordPaydown(ctx context.Context, accountID int64, p core.LoanToPayPayment) (core.LoanToPayPayment, error)
	ListPaydowns(ctx context.Context, accountID, loanID int64) ([]core.LoanToPayPayment, error)

	Ping(ctx context.Context) error
	Close() error
}

// Publisher sends ledger events. *amqp.Client implements it.
type Publisher interface {
	PublishEvent(ctx context.Context, ev *amqp.LedgerEvent) error
}

// LedgerServiceConfig tunes the summary cache and the calendar used for
// default dates.
type LedgerServiceConfig struct {
	SummaryCacheSize int
	SummaryCacheTTL  time.Duration
	Location         *time.Location
}

func DefaultLedgerServiceConfig() LedgerServiceConfig {
	return LedgerServiceConfig{
		SummaryCacheSize: 256,
		SummaryCacheTTL:  5 * time.Minute,
		Location:         time.Local,
	}
}

// LedgerService applies validation and defaults, writes through the store,
// caches summaries and publishes best-effort change events.
type LedgerService struct {
	store     Store
	publisher Publisher
	summaries cache.Cache[core.Summary]
	flight    singleflight.Group

	// genMu orders cache fills against invalidation. A fill computed under
	// an older generation is dropped.
	genMu sync.Mutex
	gens  map[int64]uint64

	loc       *time.Location
	today     func() core.Date
}

// NewLedgerService wires a service. publisher may be nil.
func NewLedgerService(store Store, publisher Publisher, cfg LedgerServiceConfig) *LedgerService {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	s := &LedgerService{
		store:     store,
		publisher: publisher,
		summaries: cache.NewLRUCache[core.Summary](cfg.SummaryCacheSize, cfg.SummaryCacheTTL),
		gens:      make(map[int64]uint64),
		loc:       cfg.Location,
	}
	s.today = func() core.Date { return core.Today(s.loc) }
	return s
}

// SummaryCache exposes the cache so callers can register it for cleanup.
func (s *LedgerService) SummaryCache() cache.Cleaner {
	if c, ok := s.summaries.(cache.Cleaner); ok {
		return c
	}
	return nil
}

// Today is the current date in the configured timezone.
func (s *LedgerService) Today() core.Date {
	return s.today()
}

// --- cash entries ---

func (s *LedgerService) CreateEntry(ctx context.Context, accountID int64, e core.CashEntry) (core.CashEntry, error) {
	if err := e.Validate(); err != nil {
		return core.CashEntry{}, err
	}
	created, err := s.store.CreateEntry(ctx, accountID, e)
	if err != nil {
		return core.CashEntry{}, fmt.Errorf("save entry: %w", err)
	}
	s.invalidateSummaries(ctx, accountID)
	s.publish(ctx, amqp.NewLedgerEvent(amqp.EntryCreated, accountID, created.ID))
	return created, nil
}

func (s *LedgerService) GetEntry(ctx context.Context, accountID, id int64) (core.CashEntry, error) {
	return s.store.GetEntry(ctx, accountID, id)
}

func (s *LedgerService) UpdateEntry(ctx context.Context, accountID int64, e core.CashEntry) (core.CashEntry, error) {
	if err := e.Validate(); err != nil {
		return core.CashEntry{}, err
	}
	updated, err := s.store.UpdateEntry(ctx, accountID, e)
	if err != nil {
		return core.CashEntry{}, fmt.Errorf("update entry: %w", err)
	}
	s.invalidateSummaries(ctx, accountID)
	s.publish(ctx, amqp.NewLedgerEvent(amqp.EntryUpdated, accountID, updated.ID))
	return updated, nil
}

// DeleteEntry removes an entry. The published event carries the deleted
// row since consumers can no longer load it.
func (s *LedgerService) DeleteEntry(ctx context.Context, accountID, id int64) error {
	snapshot, err := s.store.GetEntry(ctx, accountID, id)
	if err != nil {
		return fmt.Errorf("load entry: %w", err)
	}
	if err := s.store.DeleteEntry(ctx, accountID, id); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	s.invalidateSummaries(ctx, accountID)

	ev := amqp.NewLedgerEvent(amqp.EntryDeleted, accountID, id)
	ev.Snapshot = &snapshot
	s.publish(ctx, ev)
	return nil
}

func (s *LedgerService) ListEntriesByDate(ctx context.Context, accountID int64, date core.Date) ([]core.CashEntry, error) {
	return s.store.ListEntriesByDate(ctx, accountID, date)
}

func (s *LedgerService) ListEntriesInRange(ctx context.Context, accountID int64, from, to core.Date) ([]core.CashEntry, error) {
	if err := core.ValidateRange(from, to); err != nil {
		return nil, err
	}
	return s.store.ListEntriesInRange(ctx, accountID, from, to)
}

// --- summary ---

func summaryKey(accountID int64, from, to core.Date) string {
	return summaryPrefix(accountID) + from.String() + "|" + to.String()
}

func summaryPrefix(accountID int64) string {
	return strconv.FormatInt(accountID, 10) + "|"
}

// Summary returns income, expense and net totals for [from, to] with the
// per-category breakdown. Concurrent identical requests share one query.
func (s *LedgerService) Summary(ctx context.Context, accountID int64, from, to core.Date) (core.Summary, error) {
	if err := core.ValidateRange(from, to); err != nil {
		return core.Summary{}, err
	}

	key := summaryKey(accountID, from, to)
	if cached, ok := s.summaries.Get(key); ok {
		return cached, nil
	}

	// Callers arriving after a write never join a query started before it.
	gen := s.generation(accountID)
	flightKey := key + "#" + strconv.FormatUint(gen, 10)

	v, err, shared := s.flight.Do(flightKey, func() (any, error) {
		rows, err := s.store.CategoryTotals(ctx, accountID, from, to)
		if err != nil {
			return nil, fmt.Errorf("category totals: %w", err)
		}
		summary := core.NewSummary(from, to, rows)
		if !s.cacheSummary(accountID, gen, key, summary) {
			slog.DebugContext(ctx, "Summary not cached, entries changed during query", "account_id", accountID)
		}
		return summary, nil
	})
	if err != nil {
		return core.Summary{}, err
	}
	if shared {
		slog.DebugContext(ctx, "Summary query shared", "account_id", accountID, "from", from.String(), "to", to.String())
	}
	return v.(core.Summary), nil
}

func (s *LedgerService) generation(accountID int64) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.gens[accountID]
}

// cacheSummary stores summary only if no entry write for the account has
// been acknowledged since gen was read.
func (s *LedgerService) cacheSummary(accountID int64, gen uint64, key string, summary core.Summary) bool {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if s.gens[accountID] != gen {
		return false
	}
	s.summaries.Set(key, summary)
	return true
}

func (s *LedgerService) invalidateSummaries(ctx context.Context, accountID int64) {
	s.genMu.Lock()
	s.gens[accountID]++
	n := s.summaries.DeletePrefix(summaryPrefix(accountID))
	s.genMu.Unlock()
	if n > 0 {
		slog.DebugContext(ctx, "Summary cache invalidated", "account_id", accountID, "count", n)
	}
}

// --- loans given ---

func (s *LedgerService) applyLoanGivenDefaults(l *core.LoanGiven) {
	if l.ReminderDate.IsEmpty() && !l.DueDate.IsEmpty() {
		l.ReminderDate = core.DefaultReminderDate(l.DueDate)
	}
	if l.Status == "" {
		l.Status = core.StatusPending
	}
}

func (s *LedgerService) CreateLoanGiven(ctx context.Context, accountID int64, l core.LoanGiven) (core.LoanGiven, error) {
	s.applyLoanGivenDefaults(&l)
	if err := l.Validate(); err != nil {
		return core.LoanGiven{}, err
	}
	created, err := s.store.CreateLoanGiven(ctx, accountID, l)
	if err != nil {
		return core.LoanGiven{}, fmt.Errorf("save loan given: %w", err)
	}
	return created, nil
}

func (s *LedgerService) UpdateLoanGiven(ctx context.Context, accountID int64, l core.LoanGiven) (core.LoanGiven, error) {
	s.applyLoanGivenDefaults(&l)
	if err := l.Validate(); err != nil {
		return core.LoanGiven{}, err
	}
	updated, err := s.store.UpdateLoanGiven(ctx, accountID, l)
	if err != nil {
		return core.LoanGiven{}, fmt.Errorf("update loan given: %w", err)
	}
	return updated, nil
}

func (s *LedgerService) GetLoanGiven(ctx context.Context, accountID, id int64) (core.LoanGivenBalance, error) {
	return s.store.GetLoanGiven(ctx, accountID, id)
}

func (s *LedgerService) ListLoansGiven(ctx context.Context, accountID int64) ([]core.LoanGivenBalance, error) {
	return s.store.ListLoansGiven(ctx, accountID)
}

// RecordInstallment upserts the payment for p.PaymentMonth. Posting the same
// month again replaces the earlier amount, date and notes.
func (s *LedgerService) RecordInstallment(ctx context.Context, accountID int64, p core.LoanGivenPayment) (core.LoanGivenPayment, error) {
	if p.PaymentDate.IsEmpty() {
		p.PaymentDate = s.today()
	}
	if err := p.Validate(); err != nil {
		return core.LoanGivenPayment{}, err
	}
	month, _ := core.ParseMonth(p.PaymentMonth.String())
	p.PaymentMonth = month

	saved, err := s.store.UpsertInstallment(ctx, accountID, p)
	if err != nil {
		return core.LoanGivenPayment{}, fmt.Errorf("record installment: %w", err)
	}

	ev := amqp.NewLedgerEvent(amqp.InstallmentRecorded, accountID, saved.ID)
	ev.LoanID = saved.LoanID
	s.publish(ctx, ev)
	return saved, nil
}

func (s *LedgerService) ListInstallments(ctx context.Context, accountID, loanID int64) ([]core.LoanGivenPayment, error) {
	return s.store.ListInstallments(ctx, accountID, loanID)
}

// --- loans to pay ---

func (s *LedgerService) CreateLoanToPay(ctx context.Context, accountID int64, l core.LoanToPay) (core.LoanToPay, error) {
	l.CurrentPrincipal = l.OriginalPrincipal
	if l.Status == "" {
		l.Status = core.StatusActive
	}
	if err := l.Validate(); err != nil {
		return core.LoanToPay{}, err
	}
	created, err := s.store.CreateLoanToPay(ctx, accountID, l)
	if err != nil {
		return core.LoanToPay{}, fmt.Errorf("save loan to pay: %w", err)
	}
	return created, nil
}

func (s *LedgerService) GetLoanToPay(ctx context.Context, accountID, id int64) (core.LoanToPay, error) {
	return s.store.GetLoanToPay(ctx, accountID, id)
}

func (s *LedgerService) ListLoansToPay(ctx context.Context, accountID int64) ([]core.LoanToPay, error) {
	return s.store.ListLoansToPay(ctx, accountID)
}

// RecordPaydown reduces a loan's principal. It fails with
// core.ErrPaymentExceedsPrincipal, leaving the loan untouched, when the
// payment is larger than what is outstanding.
func (s *LedgerService) RecordPaydown(ctx context.Context, accountID int64, p core.LoanToPayPayment) (core.LoanToPayPayment, error) {
	if p.PrincipalPaid.IsNegative() {
		return core.LoanToPayPayment{}, core.Invalid("principal_paid", "principal_paid must not be negative")
	}
	if p.PaymentDate.IsEmpty() {
		p.PaymentDate = s.today()
	}

	saved, err := s.store.RecordPaydown(ctx, accountID, p)
	if err != nil {
		if errors.Is(err, core.ErrPaymentExceedsPrincipal) || errors.Is(err, core.ErrNotFound) {
			return core.LoanToPayPayment{}, err
		}
		return core.LoanToPayPayment{}, fmt.Errorf("record paydown: %w", err)
	}

	ev := amqp.NewLedgerEvent(amqp.PaydownRecorded, accountID, saved.ID)
	ev.LoanID = saved.LoanID
	s.publish(ctx, ev)
	return saved, nil
}

func (s *LedgerService) ListPaydowns(ctx context.Context, accountID, loanID int64) ([]core.LoanToPayPayment, error) {
	return s.store.ListPaydowns(ctx, accountID, loanID)
}

// --- lifecycle ---

func (s *LedgerService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *LedgerService) publish(ctx context.Context, ev *amqp.LedgerEvent) {
	if s.publisher == nil {
		return
	}
	// The write is already committed; a broker problem must not fail the request.
	if err := s.publisher.PublishEvent(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"type", string(ev.Type),
			"id", ev.ID,
			"account_id", ev.AccountID,
			"error", err)
	}
}

// Close closes the store and, when it supports closing, the publisher.
func (s *LedgerService) Close() error {
	var errs []error

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if closer, ok := s.publisher.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %w", errors.Join(errs...))
	}
	return nil
}
