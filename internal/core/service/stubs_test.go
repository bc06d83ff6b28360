package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lendbridge/loanbook/internal/core/domain"
	"github.com/lendbridge/loanbook/internal/core/ports"
)

const (
	alice = domain.Address("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	bob   = domain.Address("0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359")
	carol = domain.Address("0xdbf03b407c01e7cd3cbea99509d93f8dddc8c6fb")
)

// ---------------------------------------------------------------------------
// Wallet
// ---------------------------------------------------------------------------

type stubWallet struct {
	account domain.Address
	err     error
	calls   atomic.Int32
}

func (w *stubWallet) ActiveAccount(_ context.Context) (domain.Address, error) {
	w.calls.Add(1)
	return w.account, w.err
}

// ---------------------------------------------------------------------------
// Record store
// ---------------------------------------------------------------------------

type stubStore struct {
	mu         sync.Mutex
	records    []domain.LoanRecord
	countErr   error
	fetchErrs  map[int]error
	submitErr  error
	submitHook func()
	issueErr   error

	fetches   atomic.Int32
	fetchHook func(index int)

	feed      chan domain.Notification
	appendErr error
	closed    atomic.Int32
}

func newStubStore(records ...domain.LoanRecord) *stubStore {
	for i := range records {
		records[i].Index = i + 1
	}
	return &stubStore{
		records:   records,
		fetchErrs: make(map[int]error),
		feed:      make(chan domain.Notification),
	}
}

func loan(owner, counterparty domain.Address, amount int64) domain.LoanRecord {
	return domain.LoanRecord{
		Owner:        owner,
		Counterparty: counterparty,
		Amount:       big.NewInt(amount),
		Term:         12,
		InterestRate: 5,
	}
}

func (s *stubStore) RecordCount(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s.countErr != nil {
		return 0, s.countErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records), nil
}

func (s *stubStore) FetchRecord(_ context.Context, index int) (domain.LoanRecord, error) {
	s.fetches.Add(1)
	if s.fetchHook != nil {
		s.fetchHook(index)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fetchErrs[index]; err != nil {
		return domain.LoanRecord{}, err
	}
	if index < 1 || index > len(s.records) {
		return domain.LoanRecord{}, domain.ErrRecordNotFound
	}
	rec := s.records[index-1]
	rec.Amount = new(big.Int).Set(rec.Amount)
	return rec, nil
}

func (s *stubStore) SubmitNewLoan(_ context.Context, l domain.NewLoan, from domain.Address) (*domain.TransactionResult, error) {
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	if s.submitHook != nil {
		s.submitHook()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := l.Record(len(s.records) + 1)
	s.records = append(s.records, rec)
	return &domain.TransactionResult{TxHash: fmt.Sprintf("0x%02x", rec.Index), Index: rec.Index, From: from, SubmittedAt: time.Now()}, nil
}

func (s *stubStore) SubmitIssueLoan(_ context.Context, index int, from domain.Address) (*domain.TransactionResult, error) {
	if s.issueErr != nil {
		return nil, s.issueErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 1 || index > len(s.records) {
		return nil, domain.ErrRecordNotFound
	}
	rec := &s.records[index-1]
	if !rec.Owner.Equal(from) {
		return nil, domain.ErrNotLoanOwner
	}
	if rec.Issued {
		return nil, domain.ErrAlreadyIssued
	}
	rec.Issued = true
	return &domain.TransactionResult{TxHash: "0xissue", Index: index, From: from, SubmittedAt: time.Now()}, nil
}

func (s *stubStore) OnAppend(_ context.Context) (ports.AppendSubscription, error) {
	if s.appendErr != nil {
		return nil, s.appendErr
	}
	return &stubSubscription{store: s}, nil
}

func (s *stubStore) Deployment(_ context.Context) (*domain.Deployment, error) {
	return &domain.Deployment{Contract: "Lending", Address: carol, NetworkID: "5777"}, nil
}

type stubSubscription struct {
	store *stubStore
}

func (s *stubSubscription) Notifications() <-chan domain.Notification {
	return s.store.feed
}

func (s *stubSubscription) Close() error {
	s.store.closed.Add(1)
	return nil
}

// ---------------------------------------------------------------------------
// Funds
// ---------------------------------------------------------------------------

type stubFunds struct {
	mu       sync.Mutex
	balances map[domain.Address]*big.Int
}

func newStubFunds(initial map[domain.Address]int64) *stubFunds {
	f := &stubFunds{balances: make(map[domain.Address]*big.Int)}
	for a, v := range initial {
		f.balances[a.Lower()] = big.NewInt(v)
	}
	return f
}

func (f *stubFunds) balance(a domain.Address) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.balances[a.Lower()]; ok {
		return b.Int64()
	}
	return 0
}

func (f *stubFunds) Balance(_ context.Context, a domain.Address) (*big.Int, error) {
	return big.NewInt(f.balance(a)), nil
}

func (f *stubFunds) SubmitTransfer(_ context.Context, t domain.NewTransfer) (*domain.TransactionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	from, ok := f.balances[t.From.Lower()]
	if !ok || from.Cmp(t.Amount) < 0 {
		return nil, domain.ErrInsufficientFunds
	}
	from.Sub(from, t.Amount)
	to, ok := f.balances[t.To.Lower()]
	if !ok {
		to = new(big.Int)
		f.balances[t.To.Lower()] = to
	}
	to.Add(to, t.Amount)
	return &domain.TransactionResult{TxHash: "0xsend", From: t.From, SubmittedAt: time.Now()}, nil
}

// ---------------------------------------------------------------------------
// Unit converter: 1 display unit = 100 base units.
// ---------------------------------------------------------------------------

type stubConverter struct {
	failOn map[int64]error
}

func (c *stubConverter) ToDisplay(amount *big.Int) (string, error) {
	if err := c.failOn[amount.Int64()]; err != nil {
		return "", err
	}
	q, r := new(big.Int).QuoRem(amount, big.NewInt(100), new(big.Int))
	return fmt.Sprintf("%s.%02d", q, r.Int64()), nil
}

func (c *stubConverter) FromDisplay(amount string) (*big.Int, error) {
	r, ok := new(big.Rat).SetString(amount)
	if !ok {
		return nil, domain.ErrMalformedAmount
	}
	r.Mul(r, big.NewRat(100, 1))
	if !r.IsInt() {
		return nil, domain.ErrMalformedAmount
	}
	return new(big.Int).Set(r.Num()), nil
}

// ---------------------------------------------------------------------------
// Renderer
// ---------------------------------------------------------------------------

type recordingRenderer struct {
	mu       sync.Mutex
	loading  int
	hidden   int
	account  domain.Address
	rendered [][]domain.DisplayRow
	errs     []error
}

func (r *recordingRenderer) ShowLoading() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loading++
}

func (r *recordingRenderer) HideLoading() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hidden++
}

func (r *recordingRenderer) ShowAccount(a domain.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.account = a
}

func (r *recordingRenderer) Render(rows []domain.DisplayRow) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rendered = append(r.rendered, rows)
}

func (r *recordingRenderer) ShowError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recordingRenderer) renders() [][]domain.DisplayRow {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]domain.DisplayRow(nil), r.rendered...)
}

func (r *recordingRenderer) errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

// ---------------------------------------------------------------------------
// Notification dedup
// ---------------------------------------------------------------------------

type stubDedup struct {
	mu      sync.Mutex
	seen    map[string]bool
	markErr error
}

func newStubDedup() *stubDedup {
	return &stubDedup{seen: make(map[string]bool)}
}

func (d *stubDedup) MarkNew(_ context.Context, key string) (bool, error) {
	if d.markErr != nil {
		return false, d.markErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen[key] {
		return false, nil
	}
	d.seen[key] = true
	return true, nil
}

// ---------------------------------------------------------------------------
// Refresh observer
// ---------------------------------------------------------------------------

type countingObserver struct {
	received  atomic.Int32
	duplicate atomic.Int32
	coalesced atomic.Int32
}

func (o *countingObserver) NotificationReceived()  { o.received.Add(1) }
func (o *countingObserver) NotificationDuplicate() { o.duplicate.Add(1) }
func (o *countingObserver) RefreshCoalesced()      { o.coalesced.Add(1) }

// eventually polls cond until it holds or the deadline passes.
func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

var errBoom = errors.New("boom")
