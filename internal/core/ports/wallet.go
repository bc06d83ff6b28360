package ports

import (
	"context"

	"github.com/lendbridge/loanbook/internal/core/domain"
)

// Wallet exposes the active user account. An empty address with a nil error
// means no account is available.
type Wallet interface {
	ActiveAccount(ctx context.Context) (domain.Address, error)
}
