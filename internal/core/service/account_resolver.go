package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lendbridge/loanbook/internal/core/domain"
	"github.com/lendbridge/loanbook/internal/core/ports"
)

// AccountResolver reads the active account from the wallet. It never caches:
// callers re-resolve on every render pass so account switches are picked up.
type AccountResolver struct {
	wallet ports.Wallet
	log    zerolog.Logger
}

// NewAccountResolver returns a resolver backed by wallet.
func NewAccountResolver(wallet ports.Wallet, log zerolog.Logger) *AccountResolver {
	return &AccountResolver{wallet: wallet, log: log}
}

// Resolve returns the active account or an error matching domain.ErrNoWallet.
func (r *AccountResolver) Resolve(ctx context.Context) (domain.Address, error) {
	if r.wallet == nil {
		return "", domain.ErrNoWallet
	}

	account, err := r.wallet.ActiveAccount(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve account: %w: %w", domain.ErrNoWallet, err)
	}
	if account.IsZero() {
		return "", domain.ErrNoWallet
	}

	r.log.Debug().Str("account", account.String()).Msg("account resolved")
	return account, nil
}
