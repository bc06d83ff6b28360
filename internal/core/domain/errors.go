package domain

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	ErrNoWallet         = errors.New("no wallet account available")
	ErrStoreUnavailable = errors.New("record store unavailable")
	ErrPartialFetch     = errors.New("partial record fetch")
	ErrTransaction      = errors.New("transaction failed")

	ErrRecordNotFound    = errors.New("loan record not found")
	ErrAlreadyIssued     = errors.New("loan already issued")
	ErrNotLoanOwner      = errors.New("sender is not the loan owner")
	ErrMalformedAmount   = errors.New("malformed amount")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidLoan       = errors.New("invalid loan")
	ErrInvalidTransfer   = errors.New("invalid transfer")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrOperatorNotFound   = errors.New("operator not found")
	ErrOperatorExists     = errors.New("operator already exists")
)

// PartialFetchError reports the record indices whose fetch failed during a
// synchronization pass. It matches ErrPartialFetch.
type PartialFetchError struct {
	Count  int
	Failed map[int]error
}

func (e *PartialFetchError) Error() string {
	indices := e.FailedIndices()
	parts := make([]string, 0, len(indices))
	for _, idx := range indices {
		parts = append(parts, fmt.Sprintf("#%d: %v", idx, e.Failed[idx]))
	}
	return fmt.Sprintf("%s: %d of %d records failed (%s)",
		ErrPartialFetch, len(indices), e.Count, strings.Join(parts, "; "))
}

// FailedIndices returns the failed indices in ascending order.
func (e *PartialFetchError) FailedIndices() []int {
	out := make([]int, 0, len(e.Failed))
	for idx := range e.Failed {
		out = append(out, idx)
	}
	slices.Sort(out)
	return out
}

func (e *PartialFetchError) Is(target error) bool {
	return target == ErrPartialFetch
}

// TransactionError wraps a rejected or reverted write. It matches
// ErrTransaction and unwraps to the cause.
type TransactionError struct {
	Op    string
	Index int
	Err   error
}

func (e *TransactionError) Error() string {
	if e.Index > 0 {
		return fmt.Sprintf("%s %s loan #%d: %v", ErrTransaction, e.Op, e.Index, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", ErrTransaction, e.Op, e.Err)
}

func (e *TransactionError) Is(target error) bool {
	return target == ErrTransaction
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}
