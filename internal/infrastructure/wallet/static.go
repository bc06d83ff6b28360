// Package wallet provides Wallet adapters.
package wallet

import (
	"context"
	"fmt"
	"sync"

	"github.com/lendbridge/loanbook/internal/core/domain"
)

// Static is a wallet whose active account is configured at startup and may be
// switched at runtime (the equivalent of a wallet extension changing account).
type Static struct {
	mu      sync.RWMutex
	account domain.Address
}

// NewStatic returns a wallet with the given account. An empty account yields
// a wallet that reports no account. Malformed addresses are rejected.
func NewStatic(account string) (*Static, error) {
	w := &Static{}
	if err := w.Switch(account); err != nil {
		return nil, err
	}
	return w, nil
}

// ActiveAccount returns the configured account, or "" when there is none.
func (w *Static) ActiveAccount(_ context.Context) (domain.Address, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.account, nil
}

// Switch changes the active account. An empty string clears it.
func (w *Static) Switch(account string) error {
	addr := domain.Address(account)
	if !addr.IsZero() && !addr.Valid() {
		return fmt.Errorf("wallet: %q is not a valid address", account)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if addr.IsZero() {
		w.account = ""
		return nil
	}
	w.account = addr.Checksum()
	return nil
}
