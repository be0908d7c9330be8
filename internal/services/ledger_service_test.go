package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/storage"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.LedgerEvent
	err    error
}

func (p *recordingPublisher) PublishEvent(_ context.Context, ev *amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []amqp.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventType, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

// countingStore wraps a real store and counts summary queries.
type countingStore struct {
	Store
	mu     sync.Mutex
	totals int
}

func (c *countingStore) CategoryTotals(ctx context.Context, accountID int64, from, to core.Date) ([]core.CategoryTotals, error) {
	c.mu.Lock()
	c.totals++
	c.mu.Unlock()
	return c.Store.CategoryTotals(ctx, accountID, from, to)
}

// gatedStore holds the first CategoryTotals call after it has read the
// database until release is closed.
type gatedStore struct {
	Store
	armed   atomic.Bool
	read    chan struct{}
	release chan struct{}
}

func (g *gatedStore) CategoryTotals(ctx context.Context, accountID int64, from, to core.Date) ([]core.CategoryTotals, error) {
	rows, err := g.Store.CategoryTotals(ctx, accountID, from, to)
	if g.armed.CompareAndSwap(true, false) {
		close(g.read)
		<-g.release
	}
	return rows, err
}

func newTestService(t *testing.T, pub Publisher) (*LedgerService, *countingStore) {
	t.Helper()
	repo, err := storage.Open(context.Background(), storage.Options{
		Dialect:    storage.SQLite,
		SQLitePath: filepath.Join(t.TempDir(), "ledger.db"),
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	store := &countingStore{Store: repo}
	cfg := DefaultLedgerServiceConfig()
	cfg.Location = time.UTC
	svc := NewLedgerService(store, pub, cfg)
	t.Cleanup(func() { svc.Close() })
	return svc, store
}

func TestCreateEntryValidation(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	for _, cents := range []int64{0, -100} {
		_, err := svc.CreateEntry(ctx, 1, core.CashEntry{
			Date: core.NewDate(2024, 1, 1), Type: core.Expense, Category: "food", Amount: core.Money{Cents: cents},
		})
		if !core.IsValidation(err) {
			t.Fatalf("amount %d: expected validation error, got %v", cents, err)
		}
	}
}

func TestSummaryScenario(t *testing.T) {
	pub := &recordingPublisher{}
	svc, store := newTestService(t, pub)
	ctx := context.Background()

	seed := []core.CashEntry{
		{Date: core.NewDate(2024, 1, 10), Type: core.Expense, Category: "food", Amount: core.Money{Cents: 1250}},
		{Date: core.NewDate(2024, 1, 12), Type: core.Expense, Category: "food", Amount: core.Money{Cents: 750}},
		{Date: core.NewDate(2024, 1, 31), Type: core.Income, Category: "salary", Amount: core.Money{Cents: 100000}},
	}
	for _, e := range seed {
		if _, err := svc.CreateEntry(ctx, 1, e); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	from, to := core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 31)
	s, err := svc.Summary(ctx, 1, from, to)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if s.IncomeTotal.Cents != 100000 || s.ExpenseTotal.Cents != 2000 || s.Net.Cents != 98000 {
		t.Fatalf("unexpected summary: %+v", s)
	}

	// Second call is served from cache.
	if _, err := svc.Summary(ctx, 1, from, to); err != nil {
		t.Fatalf("summary: %v", err)
	}
	if store.totals != 1 {
		t.Fatalf("expected 1 query, got %d", store.totals)
	}

	// A write invalidates the cached summary.
	created, err := svc.CreateEntry(ctx, 1, core.CashEntry{
		Date: core.NewDate(2024, 1, 15), Type: core.Expense, Category: "rent", Amount: core.Money{Cents: 50000},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	s, err = svc.Summary(ctx, 1, from, to)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if s.ExpenseTotal.Cents != 52000 || store.totals != 2 {
		t.Fatalf("cache not invalidated: %+v (queries=%d)", s, store.totals)
	}

	if err := svc.DeleteEntry(ctx, 1, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	types := pub.types()
	if len(types) != 5 || types[4] != amqp.EntryDeleted {
		t.Fatalf("unexpected events: %v", types)
	}
	if pub.events[4].Snapshot == nil || pub.events[4].Snapshot.Category != "rent" {
		t.Fatalf("delete event should carry the snapshot: %+v", pub.events[4])
	}

	if _, err := svc.Summary(ctx, 1, to, from); !core.IsValidation(err) {
		t.Fatalf("reversed range should be rejected, got %v", err)
	}
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc, _ := newTestService(t, pub)

	_, err := svc.CreateEntry(context.Background(), 1, core.CashEntry{
		Date: core.NewDate(2024, 1, 1), Type: core.Income, Category: "gift", Amount: core.Money{Cents: 100},
	})
	if err != nil {
		t.Fatalf("write should succeed despite publish failure: %v", err)
	}
}

func TestLoanGivenDefaults(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	loan, err := svc.CreateLoanGiven(ctx, 1, core.LoanGiven{
		BorrowerName: "Ana", Amount: core.Money{Cents: 30000}, DueDate: core.NewDate(2024, 3, 5),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if loan.ReminderDate.String() != "2024-02-27" || loan.Status != core.StatusPending {
		t.Fatalf("defaults not applied: %+v", loan)
	}

	p, err := svc.RecordInstallment(ctx, 1, core.LoanGivenPayment{
		LoanID: loan.ID, PaymentMonth: "2024-01", AmountPaid: core.Money{Cents: 10000},
	})
	if err != nil {
		t.Fatalf("installment: %v", err)
	}
	if p.PaymentDate.String() != core.Today(time.UTC).String() {
		t.Fatalf("payment date should default to today, got %s", p.PaymentDate)
	}

	p, err = svc.RecordInstallment(ctx, 1, core.LoanGivenPayment{
		LoanID: loan.ID, PaymentMonth: "2024-01", AmountPaid: core.Money{Cents: 15000}, PaymentDate: core.NewDate(2024, 1, 20),
	})
	if err != nil {
		t.Fatalf("installment again: %v", err)
	}
	list, err := svc.ListInstallments(ctx, 1, loan.ID)
	if err != nil || len(list) != 1 || list[0].AmountPaid.Cents != 15000 {
		t.Fatalf("upsert should leave one row with latest amount: %v %+v", err, list)
	}

	if _, err := svc.RecordInstallment(ctx, 1, core.LoanGivenPayment{
		LoanID: 9999, PaymentMonth: "2024-01", AmountPaid: core.Money{Cents: 1},
	}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("missing loan should be not found, got %v", err)
	}
}

func TestPaydownScenario(t *testing.T) {
	pub := &recordingPublisher{}
	svc, _ := newTestService(t, pub)
	ctx := context.Background()

	loan, err := svc.CreateLoanToPay(ctx, 1, core.LoanToPay{
		LenderName: "Bank", OriginalPrincipal: core.Money{Cents: 100000}, InterestRate: core.MustRate("3.5"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if loan.Status != core.StatusActive || loan.CurrentPrincipal.Cents != 100000 {
		t.Fatalf("unexpected loan: %+v", loan)
	}

	if _, err := svc.RecordPaydown(ctx, 1, core.LoanToPayPayment{LoanID: loan.ID, PrincipalPaid: core.Money{Cents: 100000}}); err != nil {
		t.Fatalf("pay off: %v", err)
	}
	if _, err := svc.RecordPaydown(ctx, 1, core.LoanToPayPayment{LoanID: loan.ID, PrincipalPaid: core.Money{Cents: 100}}); !errors.Is(err, core.ErrPaymentExceedsPrincipal) {
		t.Fatalf("expected overpayment rejection, got %v", err)
	}

	got, err := svc.GetLoanToPay(ctx, 1, loan.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CurrentPrincipal.Cents != 0 || got.Status != core.StatusPaidOff {
		t.Fatalf("unexpected loan after payoff: %+v", got)
	}
	history, _ := svc.ListPaydowns(ctx, 1, loan.ID)
	if len(history) != 1 {
		t.Fatalf("rejected paydown must not be recorded: %+v", history)
	}
	if types := pub.types(); len(types) != 1 || types[0] != amqp.PaydownRecorded {
		t.Fatalf("unexpected events: %v", types)
	}

	if _, err := svc.CreateLoanToPay(ctx, 1, core.LoanToPay{
		LenderName: "Bank", OriginalPrincipal: core.Money{Cents: 100}, Status: core.StatusPaidOff,
	}); !core.IsValidation(err) {
		t.Fatalf("paid_off with principal should be rejected, got %v", err)
	}
}

func TestSummaryNotCachedAcrossConcurrentWrite(t *testing.T) {
	repo, err := storage.Open(context.Background(), storage.Options{
		Dialect:    storage.SQLite,
		SQLitePath: filepath.Join(t.TempDir(), "ledger.db"),
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	gate := &gatedStore{Store: repo, read: make(chan struct{}), release: make(chan struct{})}
	gate.armed.Store(true)
	svc := NewLedgerService(gate, nil, DefaultLedgerServiceConfig())
	t.Cleanup(func() { svc.Close() })

	ctx := context.Background()
	from, to := core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 31)

	type result struct {
		summary core.Summary
		err     error
	}
	inflight := make(chan result, 1)
	go func() {
		sum, err := svc.Summary(ctx, 1, from, to)
		inflight <- result{sum, err}
	}()
	<-gate.read

	if _, err := svc.CreateEntry(ctx, 1, core.CashEntry{
		Date: core.NewDate(2024, 1, 10), Type: core.Income, Category: "salary", Amount: core.Money{Cents: 20000},
	}); err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}

	// A request after the write must not join the older query.
	fresh, err := svc.Summary(ctx, 1, from, to)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if fresh.IncomeTotal.Cents != 20000 {
		t.Fatalf("summary after write: income = %d, want 20000", fresh.IncomeTotal.Cents)
	}

	close(gate.release)
	old := <-inflight
	if old.err != nil {
		t.Fatalf("in-flight Summary: %v", old.err)
	}
	if old.summary.IncomeTotal.Cents != 0 {
		t.Fatalf("in-flight summary read before the write: income = %d, want 0", old.summary.IncomeTotal.Cents)
	}

	got, err := svc.Summary(ctx, 1, from, to)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if got.IncomeTotal.Cents != 20000 {
		t.Fatalf("stale summary cached: income = %d, want 20000", got.IncomeTotal.Cents)
	}
}
