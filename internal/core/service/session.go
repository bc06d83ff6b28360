package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lendbridge/loanbook/internal/core/domain"
	"github.com/lendbridge/loanbook/internal/core/ports"
)

// Session is the per-process context threaded through every use case: the
// bound store and funds ledger, the account resolver, the synchronizer and
// the renderer.
// Render passes are serialised; the last successfully rendered rows are kept
// so a failed pass never overwrites them.
type Session struct {
	store     ports.RecordStore
	funds     ports.Funds
	resolver  *AccountResolver
	sync      *Synchronizer
	converter ports.UnitConverter
	renderer  ports.Renderer
	log       zerolog.Logger

	passMu sync.Mutex

	rowsMu sync.RWMutex
	rows   []domain.DisplayRow
}

// NewSession wires a session. funds and renderer may be nil; without funds
// SendMoney and Balance report the store as unavailable.
func NewSession(
	store ports.RecordStore,
	funds ports.Funds,
	resolver *AccountResolver,
	synchronizer *Synchronizer,
	converter ports.UnitConverter,
	renderer ports.Renderer,
	log zerolog.Logger,
) *Session {
	if renderer == nil {
		renderer = nopRenderer{}
	}
	return &Session{
		store:     store,
		funds:     funds,
		resolver:  resolver,
		sync:      synchronizer,
		converter: converter,
		renderer:  renderer,
		log:       log,
	}
}

// Start subscribes ctrl to the store's append notifications, each of which
// triggers a render pass, and then performs the initial render. Subscribing
// first means a loan appended during the initial pass triggers a re-run. A
// failed initial pass is reported through the renderer and does not cancel
// the subscription.
func (s *Session) Start(ctx context.Context, ctrl *RefreshController) (*Subscription, error) {
	sub, err := ctrl.Subscribe(ctx, s.store, func(ctx context.Context) {
		if _, err := s.RenderPass(ctx); err != nil {
			s.log.Warn().Err(err).Msg("notification-triggered render failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}

	if _, err := s.RenderPass(ctx); err != nil {
		s.log.Warn().Err(err).Msg("initial render failed")
	}
	return sub, nil
}

// Account returns the checksummed active account.
func (s *Session) Account(ctx context.Context) (domain.Address, error) {
	account, err := s.resolver.Resolve(ctx)
	if err != nil {
		return "", err
	}
	return account.Checksum(), nil
}

// Contract returns the metadata of the bound contract.
func (s *Session) Contract(ctx context.Context) (*domain.Deployment, error) {
	return s.store.Deployment(ctx)
}

// Rows returns a copy of the last successfully rendered rows.
func (s *Session) Rows() []domain.DisplayRow {
	s.rowsMu.RLock()
	defer s.rowsMu.RUnlock()
	return slices.Clone(s.rows)
}

// RenderPass resolves the account, synchronizes and renders. Without a wallet
// an empty list is rendered; any other failure leaves the previous rows on
// screen and is reported through the renderer and the returned error.
func (s *Session) RenderPass(ctx context.Context) ([]domain.DisplayRow, error) {
	s.passMu.Lock()
	defer s.passMu.Unlock()

	s.renderer.ShowLoading()
	defer s.renderer.HideLoading()

	identity, err := s.resolver.Resolve(ctx)
	if err != nil {
		s.renderer.ShowAccount("")
		s.commit([]domain.DisplayRow{})
		s.renderer.ShowError(err)
		return nil, err
	}
	s.renderer.ShowAccount(identity.Checksum())

	rows, err := s.sync.Synchronize(ctx, s.store, identity)
	if err != nil {
		s.log.Warn().Err(err).Msg("synchronization failed, keeping last rendered rows")
		s.renderer.ShowError(err)
		return nil, err
	}

	s.commit(rows)
	return rows, nil
}

func (s *Session) commit(rows []domain.DisplayRow) {
	s.rowsMu.Lock()
	s.rows = rows
	s.rowsMu.Unlock()
	s.renderer.Render(slices.Clone(rows))
}

// CreateLoan submits a new loan owned by the active account and, once the
// transaction is accepted, runs one render pass.
func (s *Session) CreateLoan(ctx context.Context, in ports.CreateLoanInput) (*domain.TransactionResult, error) {
	identity, err := s.resolver.Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("create loan: %w", err)
	}

	amount, err := s.baseUnits(in.Amount)
	if err != nil {
		return nil, fmt.Errorf("create loan: %w: %w", domain.ErrInvalidLoan, err)
	}

	loan := domain.NewLoan{
		Owner:        identity,
		Counterparty: domain.Address(in.Counterparty),
		Amount:       amount,
		Term:         in.Term,
		InterestRate: in.InterestRate,
	}
	if err := loan.Validate(); err != nil {
		return nil, fmt.Errorf("create loan: %w", err)
	}

	res, err := s.store.SubmitNewLoan(ctx, loan, identity)
	if err != nil {
		txErr := asTransactionError("create", 0, err)
		s.renderer.ShowError(txErr)
		return nil, txErr
	}

	s.log.Info().
		Str("tx", res.TxHash).
		Int("index", res.Index).
		Str("counterparty", loan.Counterparty.String()).
		Msg("loan created")

	s.refreshAfterWrite(ctx)
	return res, nil
}

// IssueLoan issues the loan at index from the active account and, once the
// transaction is accepted, runs one render pass.
func (s *Session) IssueLoan(ctx context.Context, index int) (*domain.TransactionResult, error) {
	identity, err := s.resolver.Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("issue loan: %w", err)
	}
	if index < 1 {
		return nil, asTransactionError("issue", index, domain.ErrRecordNotFound)
	}

	res, err := s.store.SubmitIssueLoan(ctx, index, identity)
	if err != nil {
		txErr := asTransactionError("issue", index, err)
		s.renderer.ShowError(txErr)
		return nil, txErr
	}

	s.log.Info().Str("tx", res.TxHash).Int("index", index).Msg("loan issued")

	s.refreshAfterWrite(ctx)
	return res, nil
}

// SendMoney transfers value from the active account to another account.
// Loans are unaffected, so no render pass follows.
func (s *Session) SendMoney(ctx context.Context, in ports.SendMoneyInput) (*domain.TransactionResult, error) {
	identity, err := s.resolver.Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("send money: %w", err)
	}
	if s.funds == nil {
		return nil, fmt.Errorf("send money: %w: no funds ledger", domain.ErrStoreUnavailable)
	}

	amount, err := s.baseUnits(in.Amount)
	if err != nil {
		return nil, fmt.Errorf("send money: %w: %w", domain.ErrInvalidTransfer, err)
	}
	transfer := domain.NewTransfer{From: identity, To: domain.Address(in.To), Amount: amount}
	if err := transfer.Validate(); err != nil {
		return nil, fmt.Errorf("send money: %w", err)
	}

	res, err := s.funds.SubmitTransfer(ctx, transfer)
	if err != nil {
		return nil, asTransactionError("send", 0, err)
	}

	s.log.Info().
		Str("tx", res.TxHash).
		Str("to", transfer.To.String()).
		Str("amount", amount.String()).
		Msg("money sent")
	return res, nil
}

// Balance returns the active account's balance in display units. A value
// that cannot be converted is returned in base units.
func (s *Session) Balance(ctx context.Context) (domain.DisplayAmount, error) {
	identity, err := s.resolver.Resolve(ctx)
	if err != nil {
		return domain.DisplayAmount{}, err
	}
	if s.funds == nil {
		return domain.DisplayAmount{}, fmt.Errorf("balance: %w: no funds ledger", domain.ErrStoreUnavailable)
	}

	bal, err := s.funds.Balance(ctx, identity)
	if err != nil {
		return domain.DisplayAmount{}, fmt.Errorf("balance: %w", err)
	}
	if s.converter == nil {
		return domain.DisplayAmount{Value: bal.String(), Raw: true}, nil
	}
	v, err := s.converter.ToDisplay(bal)
	if err != nil {
		s.log.Warn().Err(err).Msg("balance conversion failed, showing base units")
		return domain.DisplayAmount{Value: bal.String(), Raw: true}, nil
	}
	return domain.DisplayAmount{Value: v}, nil
}

// refreshAfterWrite renders once after an accepted write. The write already
// succeeded, so the pass ignores cancellation of ctx and a failed pass is
// only logged (and shown by RenderPass).
func (s *Session) refreshAfterWrite(ctx context.Context) {
	if _, err := s.RenderPass(context.WithoutCancel(ctx)); err != nil {
		s.log.Warn().Err(err).Msg("render after write failed")
	}
}

func (s *Session) baseUnits(display string) (*big.Int, error) {
	if s.converter != nil {
		return s.converter.FromDisplay(display)
	}
	v, ok := new(big.Int).SetString(display, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrMalformedAmount, display)
	}
	return v, nil
}

func asTransactionError(op string, index int, err error) error {
	var txErr *domain.TransactionError
	if errors.As(err, &txErr) {
		return txErr
	}
	return &domain.TransactionError{Op: op, Index: index, Err: err}
}

type nopRenderer struct{}

func (nopRenderer) ShowLoading()               {}
func (nopRenderer) HideLoading()               {}
func (nopRenderer) ShowAccount(domain.Address) {}
func (nopRenderer) Render([]domain.DisplayRow) {}
func (nopRenderer) ShowError(error)            {}
