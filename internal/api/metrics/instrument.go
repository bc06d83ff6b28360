package metrics

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/lendbridge/loanbook/internal/core/domain"
	"github.com/lendbridge/loanbook/internal/core/ports"
)

// Store decorates a ports.RecordStore with call counters and latencies.
type Store struct {
	next ports.RecordStore
}

// InstrumentStore wraps next.
func InstrumentStore(next ports.RecordStore) *Store {
	return &Store{next: next}
}

func observe(op string, start time.Time, err error) {
	StoreCallDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	result := "ok"
	if err != nil {
		result = "error"
	}
	StoreCallsTotal.WithLabelValues(op, result).Inc()
}

func (s *Store) RecordCount(ctx context.Context) (int, error) {
	start := time.Now()
	n, err := s.next.RecordCount(ctx)
	observe("count", start, err)
	return n, err
}

func (s *Store) FetchRecord(ctx context.Context, index int) (domain.LoanRecord, error) {
	start := time.Now()
	rec, err := s.next.FetchRecord(ctx, index)
	observe("fetch", start, err)
	return rec, err
}

func (s *Store) SubmitNewLoan(ctx context.Context, loan domain.NewLoan, from domain.Address) (*domain.TransactionResult, error) {
	start := time.Now()
	res, err := s.next.SubmitNewLoan(ctx, loan, from)
	observe("create", start, err)
	return res, err
}

func (s *Store) SubmitIssueLoan(ctx context.Context, index int, from domain.Address) (*domain.TransactionResult, error) {
	start := time.Now()
	res, err := s.next.SubmitIssueLoan(ctx, index, from)
	observe("issue", start, err)
	return res, err
}

func (s *Store) OnAppend(ctx context.Context) (ports.AppendSubscription, error) {
	start := time.Now()
	sub, err := s.next.OnAppend(ctx)
	observe("subscribe", start, err)
	return sub, err
}

func (s *Store) Deployment(ctx context.Context) (*domain.Deployment, error) {
	return s.next.Deployment(ctx)
}

// Funds decorates a ports.Funds with call counters and latencies.
type Funds struct {
	next ports.Funds
}

// InstrumentFunds wraps next.
func InstrumentFunds(next ports.Funds) *Funds {
	return &Funds{next: next}
}

func (f *Funds) Balance(ctx context.Context, account domain.Address) (*big.Int, error) {
	start := time.Now()
	bal, err := f.next.Balance(ctx, account)
	observe("balance", start, err)
	return bal, err
}

func (f *Funds) SubmitTransfer(ctx context.Context, t domain.NewTransfer) (*domain.TransactionResult, error) {
	start := time.Now()
	res, err := f.next.SubmitTransfer(ctx, t)
	observe("send", start, err)
	return res, err
}

// Observer feeds refresh controller events into NotificationsTotal.
type Observer struct{}

func (Observer) NotificationReceived()  { NotificationsTotal.WithLabelValues("received").Inc() }
func (Observer) NotificationDuplicate() { NotificationsTotal.WithLabelValues("duplicate").Inc() }
func (Observer) RefreshCoalesced()      { NotificationsTotal.WithLabelValues("coalesced").Inc() }

// Renderer decorates a ports.Renderer with render pass outcomes.
type Renderer struct {
	next ports.Renderer
}

// InstrumentRenderer wraps next.
func InstrumentRenderer(next ports.Renderer) *Renderer {
	return &Renderer{next: next}
}

func (r *Renderer) ShowLoading()                       { r.next.ShowLoading() }
func (r *Renderer) HideLoading()                       { r.next.HideLoading() }
func (r *Renderer) ShowAccount(account domain.Address) { r.next.ShowAccount(account) }

func (r *Renderer) Render(rows []domain.DisplayRow) {
	RenderedRows.Set(float64(len(rows)))
	RenderPassesTotal.WithLabelValues("ok").Inc()
	r.next.Render(rows)
}

func (r *Renderer) ShowError(err error) {
	RenderPassesTotal.WithLabelValues(ErrorKind(err)).Inc()
	r.next.ShowError(err)
}

// ErrorKind maps an error to a low-cardinality label value.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrNoWallet):
		return "no_wallet"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, domain.ErrPartialFetch):
		return "partial_fetch"
	case errors.Is(err, domain.ErrTransaction):
		return "transaction"
	default:
		return "other"
	}
}
