package ports

import (
	"context"

	"github.com/lendbridge/loanbook/internal/core/domain"
)

// RecordStore is a handle to a deployed loan contract. Implementations return
// domain.ErrStoreUnavailable (wrapped) when the contract is not deployed on
// the bound network.
type RecordStore interface {
	// RecordCount returns the number of loans. Indices 1..count are valid.
	RecordCount(ctx context.Context) (int, error)
	// FetchRecord returns the loan at a 1-based index.
	FetchRecord(ctx context.Context, index int) (domain.LoanRecord, error)
	// SubmitNewLoan appends a loan sent from the given account.
	SubmitNewLoan(ctx context.Context, loan domain.NewLoan, from domain.Address) (*domain.TransactionResult, error)
	// SubmitIssueLoan flips the issued flag and transfers the amount from the
	// owner to the counterparty. Only the owner may issue.
	SubmitIssueLoan(ctx context.Context, index int, from domain.Address) (*domain.TransactionResult, error)
	// OnAppend subscribes to append notifications.
	OnAppend(ctx context.Context) (AppendSubscription, error)
	// Deployment returns the contract metadata the store is bound to.
	Deployment(ctx context.Context) (*domain.Deployment, error)
}

// AppendSubscription is a cancellable stream of append notifications. The
// channel is closed after Close or when the underlying feed ends.
type AppendSubscription interface {
	Notifications() <-chan domain.Notification
	Close() error
}

// NotificationDedup remembers notifications already acted upon.
type NotificationDedup interface {
	// MarkNew records key and reports whether it had not been recorded
	// before. Check and record happen in one step.
	MarkNew(ctx context.Context, key string) (bool, error)
}
