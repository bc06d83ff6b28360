package handler

import (
	"github.com/lendbridge/loanbook/internal/api/view"
	"github.com/lendbridge/loanbook/internal/core/domain"
)

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

// --- Auth ---

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	Token    string           `json:"token,omitempty"`
	Operator *domain.Operator `json:"operator,omitempty"`
}

// --- Loans ---

// createLoanRequest carries an addLoan call. Amount is in display units
// (e.g. "1.5" ether).
type createLoanRequest struct {
	Counterparty string `json:"counterparty"  validate:"required,eth_addr"`
	Amount       string `json:"amount"        validate:"required,numeric"`
	Term         uint64 `json:"term"          validate:"required,gt=0,lte=9223372036854775807"`
	InterestRate uint64 `json:"interest_rate" validate:"lte=10000"`
}

type transactionLinks struct {
	Loans string `json:"loans"`
	Loan  string `json:"loan,omitempty"`
}

type transactionResponse struct {
	TxHash      string           `json:"tx_hash"`
	Index       int              `json:"index"`
	From        domain.Address   `json:"from"`
	SubmittedAt string           `json:"submitted_at"`
	Links       transactionLinks `json:"_links"`
}

// loansResponse is the live view as last rendered.
type loansResponse = view.Snapshot

type accountResponse struct {
	Account domain.Address        `json:"account"`
	Balance *domain.DisplayAmount `json:"balance,omitempty"`
}

// --- Transfers ---

// sendMoneyRequest carries a plain value transfer. Amount is in display units.
type sendMoneyRequest struct {
	To     string `json:"to"     validate:"required,eth_addr"`
	Amount string `json:"amount" validate:"required,numeric"`
}

type contractResponse struct {
	Contract   string         `json:"contract"`
	Address    domain.Address `json:"address"`
	NetworkID  string         `json:"network_id"`
	Endpoint   string         `json:"endpoint"`
	DeployedAt string         `json:"deployed_at"`
}
