package ports

import (
	"context"
	"math/big"

	"github.com/lendbridge/loanbook/internal/core/domain"
)

// Funds holds native account balances and moves value between accounts.
type Funds interface {
	// Balance returns the balance of account in base units.
	Balance(ctx context.Context, account domain.Address) (*big.Int, error)
	// SubmitTransfer debits the sender and credits the receiver. It fails
	// with domain.ErrInsufficientFunds when the sender cannot cover it.
	SubmitTransfer(ctx context.Context, transfer domain.NewTransfer) (*domain.TransactionResult, error)
}
