package ports

import (
	"context"

	"github.com/lendbridge/loanbook/internal/core/domain"
)

// CreateLoanInput is the DTO passed from the transport layer to the session.
// Amount is expressed in display units.
type CreateLoanInput struct {
	Counterparty string
	Amount       string
	Term         uint64
	InterestRate uint64
}

// SendMoneyInput is a plain transfer from the active account. Amount is
// expressed in display units.
type SendMoneyInput struct {
	To     string
	Amount string
}

// LoanSession defines the use cases exposed to UI collaborators.
type LoanSession interface {
	Account(ctx context.Context) (domain.Address, error)
	Contract(ctx context.Context) (*domain.Deployment, error)
	RenderPass(ctx context.Context) ([]domain.DisplayRow, error)
	CreateLoan(ctx context.Context, input CreateLoanInput) (*domain.TransactionResult, error)
	IssueLoan(ctx context.Context, index int) (*domain.TransactionResult, error)
	SendMoney(ctx context.Context, input SendMoneyInput) (*domain.TransactionResult, error)
	Balance(ctx context.Context) (domain.DisplayAmount, error)
}
