package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/lendbridge/loanbook/internal/api/view"
	"github.com/lendbridge/loanbook/internal/core/domain"
	"github.com/lendbridge/loanbook/internal/core/ports"
)

// LoanView is the rendered state the loan endpoints read from.
type LoanView interface {
	Snapshot() view.Snapshot
	Subscribe() (<-chan view.Snapshot, func())
}

// LoanHandler handles HTTP requests for loan operations. Errors are returned
// to Echo's error handler, which maps domain errors to status codes.
type LoanHandler struct {
	session ports.LoanSession
	view    LoanView
}

func NewLoanHandler(session ports.LoanSession, v LoanView) *LoanHandler {
	return &LoanHandler{session: session, view: v}
}

// List handles GET /v1/loans.
//
// @Summary      Current loan table
// @Description  Returns the loans owned by the active account as last rendered, with the loading, account and error state.
// @Tags         loans
// @Produce      json
// @Success      200  {object}  loansResponse
// @Router       /v1/loans [get]
func (h *LoanHandler) List(c echo.Context) error {
	return c.JSON(http.StatusOK, h.view.Snapshot())
}

// Refresh handles POST /v1/loans/refresh.
//
// @Summary      Run a render pass
// @Tags         loans
// @Produce      json
// @Success      200  {object}  loansResponse
// @Failure      409  {object}  errorResponse  "no wallet account"
// @Failure      502  {object}  errorResponse  "some records could not be fetched"
// @Failure      503  {object}  errorResponse  "contract not deployed"
// @Router       /v1/loans/refresh [post]
func (h *LoanHandler) Refresh(c echo.Context) error {
	if _, err := h.session.RenderPass(c.Request().Context()); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.view.Snapshot())
}

// Create handles POST /v1/loans.
//
// @Summary      Create a loan
// @Description  Submits addLoan from the active account. The table is re-rendered once the transaction is accepted.
// @Tags         loans
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createLoanRequest  true  "Loan details"
// @Success      201   {object}  transactionResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /v1/loans [post]
func (h *LoanHandler) Create(c echo.Context) error {
	var req createLoanRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	res, err := h.session.CreateLoan(c.Request().Context(), ports.CreateLoanInput{
		Counterparty: req.Counterparty,
		Amount:       req.Amount,
		Term:         req.Term,
		InterestRate: req.InterestRate,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, toTransactionResponse(res))
}

// Issue handles POST /v1/loans/:index/issue.
//
// @Summary      Issue a loan
// @Description  Submits issueLoan from the active account, transferring the amount to the counterparty.
// @Tags         loans
// @Produce      json
// @Security     BearerAuth
// @Param        index  path      int  true  "1-based loan index"
// @Success      200    {object}  transactionResponse
// @Failure      400    {object}  errorResponse
// @Failure      401    {object}  errorResponse
// @Failure      403    {object}  errorResponse
// @Failure      404    {object}  errorResponse
// @Failure      422    {object}  errorResponse
// @Router       /v1/loans/{index}/issue [post]
func (h *LoanHandler) Issue(c echo.Context) error {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "index must be an integer")
	}

	res, err := h.session.IssueLoan(c.Request().Context(), index)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, toTransactionResponse(res))
}

// Account handles GET /v1/account.
//
// @Summary      Active account
// @Description  Returns the active account and, when the ledger can report it, its balance.
// @Tags         account
// @Produce      json
// @Success      200  {object}  accountResponse
// @Failure      409  {object}  errorResponse
// @Router       /v1/account [get]
func (h *LoanHandler) Account(c echo.Context) error {
	ctx := c.Request().Context()
	account, err := h.session.Account(ctx)
	if err != nil {
		return err
	}

	// The balance is omitted when the ledger cannot report it.
	resp := accountResponse{Account: account}
	if bal, err := h.session.Balance(ctx); err == nil {
		resp.Balance = &bal
	}
	return c.JSON(http.StatusOK, resp)
}

// SendMoney handles POST /v1/transfers.
//
// @Summary      Send money
// @Description  Transfers value from the active account to another account.
// @Tags         account
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      sendMoneyRequest  true  "Transfer details"
// @Success      201   {object}  transactionResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /v1/transfers [post]
func (h *LoanHandler) SendMoney(c echo.Context) error {
	var req sendMoneyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	res, err := h.session.SendMoney(c.Request().Context(), ports.SendMoneyInput{
		To:     req.To,
		Amount: req.Amount,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, toTransactionResponse(res))
}

// Contract handles GET /v1/contract.
//
// @Summary      Contract deployment
// @Tags         account
// @Produce      json
// @Success      200  {object}  contractResponse
// @Failure      503  {object}  errorResponse
// @Router       /v1/contract [get]
func (h *LoanHandler) Contract(c echo.Context) error {
	d, err := h.session.Contract(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, contractResponse{
		Contract:   d.Contract,
		Address:    d.Address.Checksum(),
		NetworkID:  d.NetworkID,
		Endpoint:   d.Endpoint,
		DeployedAt: d.DeployedAt.Format(time.RFC3339),
	})
}

func toTransactionResponse(res *domain.TransactionResult) transactionResponse {
	resp := transactionResponse{
		TxHash:      res.TxHash,
		Index:       res.Index,
		From:        res.From.Checksum(),
		SubmittedAt: res.SubmittedAt.Format(time.RFC3339),
		Links:       transactionLinks{Loans: "/v1/loans"},
	}
	if res.Index > 0 {
		resp.Links.Loan = "/v1/loans/" + strconv.Itoa(res.Index) + "/issue"
	}
	return resp
}
