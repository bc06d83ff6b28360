// Package memledger is an in-process loan ledger. It implements the record
// store port with the same semantics as a deployed contract and is used for
// development and tests.
package memledger

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lendbridge/loanbook/internal/core/domain"
	"github.com/lendbridge/loanbook/internal/core/ports"
)

// Options configures a Ledger.
type Options struct {
	Contract  string
	NetworkID string
	Endpoint  string
	// InitialBalance is credited to every account on first use.
	InitialBalance *big.Int
}

// Ledger is a loan contract held in memory. The zero deployment means the
// contract is not deployed and every read fails with ErrStoreUnavailable.
type Ledger struct {
	opts Options

	mu         sync.RWMutex
	deployment *domain.Deployment
	loans      []domain.LoanRecord
	balances   map[domain.Address]*big.Int
	nonce      uint64
	subs       map[string]*subscription
}

// New returns an undeployed ledger.
func New(opts Options) *Ledger {
	if opts.InitialBalance == nil {
		opts.InitialBalance = new(big.Int)
	}
	return &Ledger{
		opts:     opts,
		balances: make(map[domain.Address]*big.Int),
		subs:     make(map[string]*subscription),
	}
}

// Deploy binds the contract and returns its metadata. Deploying twice
// returns the existing deployment.
func (l *Ledger) Deploy() *domain.Deployment {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.deployment == nil {
		l.deployment = &domain.Deployment{
			Contract:   l.opts.Contract,
			Address:    contractAddress(l.opts.Contract),
			NetworkID:  l.opts.NetworkID,
			Endpoint:   l.opts.Endpoint,
			DeployedAt: time.Now().UTC(),
		}
	}
	d := *l.deployment
	return &d
}

// Balance returns the balance of account in base units. Balances do not
// depend on the contract being deployed.
func (l *Ledger) Balance(ctx context.Context, account domain.Address) (*big.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.balanceLocked(account)), nil
}

// SubmitTransfer moves value between two accounts.
func (l *Ledger) SubmitTransfer(ctx context.Context, t domain.NewTransfer) (*domain.TransactionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.moveLocked(t.From, t.To, t.Amount); err != nil {
		return nil, err
	}
	return l.receiptLocked("send", 0, t.From), nil
}

func (l *Ledger) RecordCount(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.deployment == nil {
		return 0, l.unavailable()
	}
	return len(l.loans), nil
}

func (l *Ledger) FetchRecord(ctx context.Context, index int) (domain.LoanRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.LoanRecord{}, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.deployment == nil {
		return domain.LoanRecord{}, l.unavailable()
	}
	if index < 1 || index > len(l.loans) {
		return domain.LoanRecord{}, fmt.Errorf("fetch #%d: %w", index, domain.ErrRecordNotFound)
	}
	rec := l.loans[index-1]
	rec.Amount = new(big.Int).Set(rec.Amount)
	return rec, nil
}

func (l *Ledger) SubmitNewLoan(ctx context.Context, loan domain.NewLoan, from domain.Address) (*domain.TransactionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := loan.Validate(); err != nil {
		return nil, err
	}
	if !loan.Owner.Equal(from) {
		return nil, domain.ErrNotLoanOwner
	}

	l.mu.Lock()
	if l.deployment == nil {
		l.mu.Unlock()
		return nil, l.unavailable()
	}
	rec := loan.Record(len(l.loans) + 1)
	rec.Owner = rec.Owner.Lower()
	rec.Counterparty = rec.Counterparty.Lower()
	l.loans = append(l.loans, rec)
	res := l.receiptLocked("addLoan", rec.Index, from)
	n := domain.Notification{
		Contract:  l.deployment.Contract,
		Index:     rec.Index,
		TxHash:    res.TxHash,
		EmittedAt: res.SubmittedAt,
	}
	subs := l.subscribersLocked()
	l.mu.Unlock()

	for _, s := range subs {
		s.push(n)
	}
	return res, nil
}

func (l *Ledger) SubmitIssueLoan(ctx context.Context, index int, from domain.Address) (*domain.TransactionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.deployment == nil {
		return nil, l.unavailable()
	}
	if index < 1 || index > len(l.loans) {
		return nil, domain.ErrRecordNotFound
	}

	rec := &l.loans[index-1]
	switch {
	case !rec.Owner.Equal(from):
		return nil, domain.ErrNotLoanOwner
	case rec.Issued:
		return nil, domain.ErrAlreadyIssued
	}

	if err := l.moveLocked(rec.Owner, rec.Counterparty, rec.Amount); err != nil {
		return nil, err
	}
	rec.Issued = true

	return l.receiptLocked("issueLoan", index, from), nil
}

func (l *Ledger) OnAppend(ctx context.Context) (ports.AppendSubscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.deployment == nil {
		return nil, l.unavailable()
	}

	s := newSubscription(l)
	l.subs[s.id] = s
	go s.loop()
	return s, nil
}

func (l *Ledger) Deployment(_ context.Context) (*domain.Deployment, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.deployment == nil {
		return nil, l.unavailable()
	}
	d := *l.deployment
	return &d, nil
}

func (l *Ledger) unavailable() error {
	return fmt.Errorf("%w: contract %s not deployed on network %s", domain.ErrStoreUnavailable, l.opts.Contract, l.opts.NetworkID)
}

func (l *Ledger) balanceLocked(account domain.Address) *big.Int {
	key := account.Lower()
	bal, ok := l.balances[key]
	if !ok {
		bal = new(big.Int).Set(l.opts.InitialBalance)
		l.balances[key] = bal
	}
	return bal
}

func (l *Ledger) moveLocked(from, to domain.Address, amount *big.Int) error {
	fromBal := l.balanceLocked(from)
	if fromBal.Cmp(amount) < 0 {
		return domain.ErrInsufficientFunds
	}
	fromBal.Sub(fromBal, amount)
	toBal := l.balanceLocked(to)
	toBal.Add(toBal, amount)
	return nil
}

func (l *Ledger) receiptLocked(method string, index int, from domain.Address) *domain.TransactionResult {
	l.nonce++
	return &domain.TransactionResult{
		TxHash:      domain.TxHash(method, strconv.Itoa(index), from.Lower().String(), strconv.FormatUint(l.nonce, 10)),
		Index:       index,
		From:        from,
		SubmittedAt: time.Now().UTC(),
	}
}

func (l *Ledger) subscribersLocked() []*subscription {
	out := make([]*subscription, 0, len(l.subs))
	for _, s := range l.subs {
		out = append(out, s)
	}
	return out
}

func (l *Ledger) removeSubscription(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.subs, id)
}

func contractAddress(contract string) domain.Address {
	return domain.ContractAddress(contract, uuid.NewString())
}
