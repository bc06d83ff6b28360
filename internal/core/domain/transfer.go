package domain

import (
	"fmt"
	"math/big"
)

// NewTransfer is a plain value transfer between two accounts, outside any
// loan.
type NewTransfer struct {
	From   Address
	To     Address
	Amount *big.Int // base units
}

// Validate checks the transfer before it is submitted.
func (t NewTransfer) Validate() error {
	switch {
	case !t.From.Valid():
		return fmt.Errorf("%w: sender %q is not an address", ErrInvalidTransfer, t.From)
	case !t.To.Valid():
		return fmt.Errorf("%w: receiver %q is not an address", ErrInvalidTransfer, t.To)
	case t.From.Equal(t.To):
		return fmt.Errorf("%w: sender and receiver are the same account", ErrInvalidTransfer)
	case t.Amount == nil || t.Amount.Sign() <= 0:
		return fmt.Errorf("%w: amount must be positive", ErrInvalidTransfer)
	}
	return nil
}
