package domain

import (
	"fmt"
	"math"
	"math/big"
	"time"
)

// MaxLoanUnits bounds term and interest rate so they fit a signed 64-bit
// column in every store.
const MaxLoanUnits = math.MaxInt64

// LoanRecord is a loan as stored by the ledger contract. Index is 1-based and
// dense; records are append-only and only Issued may change (false to true).
type LoanRecord struct {
	Index        int
	Owner        Address
	Counterparty Address
	Amount       *big.Int // base units
	Term         uint64
	InterestRate uint64
	Issued       bool
}

// OwnedBy reports whether the record belongs to identity.
func (r LoanRecord) OwnedBy(identity Address) bool {
	return r.Owner.Equal(identity)
}

// DisplayAmount is an amount ready for the UI. Raw is set when the value could
// not be converted and is shown in base units.
type DisplayAmount struct {
	Value string `json:"value"`
	Raw   bool   `json:"raw,omitempty"`
}

// DisplayRow is the read-only projection of an owned LoanRecord. Rows are
// recomputed on every synchronization pass and never persisted.
type DisplayRow struct {
	Index        int           `json:"index"`
	Counterparty Address       `json:"counterparty"`
	Amount       DisplayAmount `json:"amount"`
	Term         uint64        `json:"term"`
	InterestRate uint64        `json:"interest_rate"`
	Issued       bool          `json:"issued"`
}

// NewLoan carries the fields of an addLoan transaction.
type NewLoan struct {
	Owner        Address
	Counterparty Address
	Amount       *big.Int
	Term         uint64
	InterestRate uint64
}

// Validate checks the loan before it is submitted to the store.
func (l NewLoan) Validate() error {
	switch {
	case !l.Owner.Valid():
		return fmt.Errorf("%w: owner %q is not an address", ErrInvalidLoan, l.Owner)
	case !l.Counterparty.Valid():
		return fmt.Errorf("%w: counterparty %q is not an address", ErrInvalidLoan, l.Counterparty)
	case l.Amount == nil || l.Amount.Sign() <= 0:
		return fmt.Errorf("%w: amount must be positive", ErrInvalidLoan)
	case l.Term == 0:
		return fmt.Errorf("%w: term must be positive", ErrInvalidLoan)
	case l.Term > MaxLoanUnits:
		return fmt.Errorf("%w: term exceeds %d", ErrInvalidLoan, uint64(MaxLoanUnits))
	case l.InterestRate > MaxLoanUnits:
		return fmt.Errorf("%w: interest rate exceeds %d", ErrInvalidLoan, uint64(MaxLoanUnits))
	}
	return nil
}

// Record materialises the loan at the given index.
func (l NewLoan) Record(index int) LoanRecord {
	return LoanRecord{
		Index:        index,
		Owner:        l.Owner,
		Counterparty: l.Counterparty,
		Amount:       new(big.Int).Set(l.Amount),
		Term:         l.Term,
		InterestRate: l.InterestRate,
	}
}

// TransactionResult is the receipt of an accepted write.
type TransactionResult struct {
	TxHash      string    `json:"tx_hash"`
	Index       int       `json:"index"`
	From        Address   `json:"from"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Deployment is the metadata of a contract bound to a network.
type Deployment struct {
	Contract   string    `json:"contract"`
	Address    Address   `json:"address"`
	NetworkID  string    `json:"network_id"`
	Endpoint   string    `json:"endpoint"`
	DeployedAt time.Time `json:"deployed_at"`
}
