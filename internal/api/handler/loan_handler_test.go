package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/lendbridge/loanbook/internal/api/view"
	"github.com/lendbridge/loanbook/internal/core/domain"
	"github.com/lendbridge/loanbook/internal/core/ports"
)

const (
	testAccount      = domain.Address("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	testCounterparty = "0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359"
)

// --- Stubs ---

type stubSession struct {
	accountFn  func(ctx context.Context) (domain.Address, error)
	contractFn func(ctx context.Context) (*domain.Deployment, error)
	renderFn   func(ctx context.Context) ([]domain.DisplayRow, error)
	createFn   func(ctx context.Context, in ports.CreateLoanInput) (*domain.TransactionResult, error)
	issueFn    func(ctx context.Context, index int) (*domain.TransactionResult, error)
	sendFn     func(ctx context.Context, in ports.SendMoneyInput) (*domain.TransactionResult, error)
	balanceFn  func(ctx context.Context) (domain.DisplayAmount, error)
}

func (s *stubSession) Account(ctx context.Context) (domain.Address, error) { return s.accountFn(ctx) }
func (s *stubSession) Contract(ctx context.Context) (*domain.Deployment, error) {
	return s.contractFn(ctx)
}
func (s *stubSession) RenderPass(ctx context.Context) ([]domain.DisplayRow, error) {
	return s.renderFn(ctx)
}
func (s *stubSession) CreateLoan(ctx context.Context, in ports.CreateLoanInput) (*domain.TransactionResult, error) {
	return s.createFn(ctx, in)
}
func (s *stubSession) IssueLoan(ctx context.Context, index int) (*domain.TransactionResult, error) {
	return s.issueFn(ctx, index)
}
func (s *stubSession) SendMoney(ctx context.Context, in ports.SendMoneyInput) (*domain.TransactionResult, error) {
	return s.sendFn(ctx, in)
}
func (s *stubSession) Balance(ctx context.Context) (domain.DisplayAmount, error) {
	if s.balanceFn == nil {
		return domain.DisplayAmount{}, domain.ErrStoreUnavailable
	}
	return s.balanceFn(ctx)
}

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

func httpCode(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected *echo.HTTPError, got %v", err)
	}
	return he.Code
}

// --- List / Refresh ---

func TestLoanHandler_List(t *testing.T) {
	e := newTestEcho()
	live := view.NewLive()
	live.ShowAccount(testAccount)
	live.Render([]domain.DisplayRow{{Index: 2, Counterparty: testCounterparty, Term: 12}})

	req := httptest.NewRequest(http.MethodGet, "/v1/loans", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := NewLoanHandler(&stubSession{}, live).List(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var snap view.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if snap.Account != testAccount || len(snap.Loans) != 1 || snap.Loans[0].Index != 2 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestLoanHandler_Refresh(t *testing.T) {
	e := newTestEcho()
	live := view.NewLive()
	calls := 0
	stub := &stubSession{
		renderFn: func(ctx context.Context) ([]domain.DisplayRow, error) {
			calls++
			rows := []domain.DisplayRow{{Index: 1}}
			live.Render(rows)
			return rows, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/loans/refresh", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := NewLoanHandler(stub, live).Refresh(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one render pass, got %d", calls)
	}
	if !strings.Contains(rec.Body.String(), `"index":1`) {
		t.Fatalf("expected rendered row in body: %s", rec.Body.String())
	}
}

func TestLoanHandler_Refresh_PropagatesError(t *testing.T) {
	e := newTestEcho()
	stub := &stubSession{
		renderFn: func(ctx context.Context) ([]domain.DisplayRow, error) {
			return nil, domain.ErrStoreUnavailable
		},
	}

	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/v1/loans/refresh", nil), httptest.NewRecorder())
	err := NewLoanHandler(stub, view.NewLive()).Refresh(c)
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

// --- Create ---

func TestLoanHandler_Create_Success(t *testing.T) {
	e := newTestEcho()
	submitted := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	stub := &stubSession{
		createFn: func(ctx context.Context, in ports.CreateLoanInput) (*domain.TransactionResult, error) {
			if in.Counterparty != testCounterparty || in.Amount != "1.5" || in.Term != 12 || in.InterestRate != 5 {
				t.Fatalf("unexpected input: %+v", in)
			}
			return &domain.TransactionResult{TxHash: "0xabc", Index: 3, From: testAccount, SubmittedAt: submitted}, nil
		},
	}

	body := `{"counterparty":"` + testCounterparty + `","amount":"1.5","term":12,"interest_rate":5}`
	c, rec := postJSON(e, "/v1/loans", body)

	if err := NewLoanHandler(stub, view.NewLive()).Create(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var resp transactionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.TxHash != "0xabc" || resp.Index != 3 || resp.From != testAccount {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Links.Loan != "/v1/loans/3/issue" {
		t.Fatalf("unexpected links: %+v", resp.Links)
	}
}

func TestLoanHandler_Create_Validation(t *testing.T) {
	cases := map[string]string{
		"bad address": `{"counterparty":"0x123","amount":"1","term":1}`,
		"no amount":   `{"counterparty":"` + testCounterparty + `","term":1}`,
		"text amount": `{"counterparty":"` + testCounterparty + `","amount":"lots","term":1}`,
		"zero term":   `{"counterparty":"` + testCounterparty + `","amount":"1","term":0}`,
		"huge term":   `{"counterparty":"` + testCounterparty + `","amount":"1","term":9223372036854775808}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			e := newTestEcho()
			stub := &stubSession{
				createFn: func(ctx context.Context, in ports.CreateLoanInput) (*domain.TransactionResult, error) {
					t.Fatalf("should not be called")
					return nil, nil
				},
			}

			c, _ := postJSON(e, "/v1/loans", body)
			err := NewLoanHandler(stub, view.NewLive()).Create(c)
			if code := httpCode(t, err); code != http.StatusUnprocessableEntity {
				t.Fatalf("expected 422, got %d", code)
			}
		})
	}
}

func TestLoanHandler_Create_InvalidPayload(t *testing.T) {
	e := newTestEcho()
	c, _ := postJSON(e, "/v1/loans", "{")

	err := NewLoanHandler(&stubSession{}, view.NewLive()).Create(c)
	if code := httpCode(t, err); code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
}

func TestLoanHandler_Create_TransactionError(t *testing.T) {
	e := newTestEcho()
	txErr := &domain.TransactionError{Op: "create", Err: errors.New("reverted")}
	stub := &stubSession{
		createFn: func(ctx context.Context, in ports.CreateLoanInput) (*domain.TransactionResult, error) {
			return nil, txErr
		},
	}

	c, _ := postJSON(e, "/v1/loans", `{"counterparty":"`+testCounterparty+`","amount":"2","term":3}`)
	err := NewLoanHandler(stub, view.NewLive()).Create(c)
	if !errors.Is(err, domain.ErrTransaction) {
		t.Fatalf("expected ErrTransaction, got %v", err)
	}
}

// --- Issue ---

func TestLoanHandler_Issue(t *testing.T) {
	e := newTestEcho()
	stub := &stubSession{
		issueFn: func(ctx context.Context, index int) (*domain.TransactionResult, error) {
			if index != 4 {
				t.Fatalf("unexpected index %d", index)
			}
			return &domain.TransactionResult{TxHash: "0xdef", Index: 4, From: testAccount}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/loans/4/issue", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("index")
	c.SetParamValues("4")

	if err := NewLoanHandler(stub, view.NewLive()).Issue(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "0xdef") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestLoanHandler_Issue_BadIndex(t *testing.T) {
	e := newTestEcho()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/v1/loans/x/issue", nil), httptest.NewRecorder())
	c.SetParamNames("index")
	c.SetParamValues("x")

	err := NewLoanHandler(&stubSession{}, view.NewLive()).Issue(c)
	if code := httpCode(t, err); code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
}

// --- Account / Contract ---

func TestLoanHandler_Account(t *testing.T) {
	e := newTestEcho()
	stub := &stubSession{
		accountFn: func(ctx context.Context) (domain.Address, error) { return testAccount, nil },
	}

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/account", nil), rec)

	if err := NewLoanHandler(stub, view.NewLive()).Account(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), string(testAccount)) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestLoanHandler_Account_WithBalance(t *testing.T) {
	e := newTestEcho()
	stub := &stubSession{
		accountFn: func(ctx context.Context) (domain.Address, error) { return testAccount, nil },
		balanceFn: func(ctx context.Context) (domain.DisplayAmount, error) {
			return domain.DisplayAmount{Value: "99.5"}, nil
		},
	}

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/account", nil), rec)
	if err := NewLoanHandler(stub, view.NewLive()).Account(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var resp accountResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Balance == nil || resp.Balance.Value != "99.5" {
		t.Fatalf("expected balance in response, got %s", rec.Body.String())
	}
}

func TestLoanHandler_Account_NoWallet(t *testing.T) {
	e := newTestEcho()
	stub := &stubSession{
		accountFn: func(ctx context.Context) (domain.Address, error) { return "", domain.ErrNoWallet },
	}

	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/account", nil), httptest.NewRecorder())
	if err := NewLoanHandler(stub, view.NewLive()).Account(c); !errors.Is(err, domain.ErrNoWallet) {
		t.Fatalf("expected ErrNoWallet, got %v", err)
	}
}

func TestLoanHandler_Contract(t *testing.T) {
	e := newTestEcho()
	stub := &stubSession{
		contractFn: func(ctx context.Context) (*domain.Deployment, error) {
			return &domain.Deployment{
				Contract:  "Lending",
				Address:   domain.Address(strings.ToLower(string(testAccount))),
				NetworkID: "5777",
				Endpoint:  "http://localhost:7545",
			}, nil
		},
	}

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/contract", nil), rec)

	if err := NewLoanHandler(stub, view.NewLive()).Contract(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var resp contractResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Contract != "Lending" || resp.Address != testAccount || resp.NetworkID != "5777" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

// --- Transfers ---

func TestLoanHandler_SendMoney(t *testing.T) {
	e := newTestEcho()
	var got ports.SendMoneyInput
	stub := &stubSession{
		sendFn: func(ctx context.Context, in ports.SendMoneyInput) (*domain.TransactionResult, error) {
			got = in
			return &domain.TransactionResult{TxHash: "0xsend", From: testAccount, SubmittedAt: time.Now()}, nil
		},
	}

	c, rec := postJSON(e, "/v1/transfers", `{"to":"`+string(testCounterparty)+`","amount":"0.25"}`)
	if err := NewLoanHandler(stub, view.NewLive()).SendMoney(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if got.To != string(testCounterparty) || got.Amount != "0.25" {
		t.Fatalf("unexpected input: %+v", got)
	}

	var resp transactionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.TxHash != "0xsend" || resp.Links.Loan != "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestLoanHandler_SendMoney_Validation(t *testing.T) {
	cases := map[string]string{
		"bad address": `{"to":"0x12","amount":"1"}`,
		"no amount":   `{"to":"` + string(testCounterparty) + `"}`,
		"text amount": `{"to":"` + string(testCounterparty) + `","amount":"all"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			e := newTestEcho()
			stub := &stubSession{
				sendFn: func(ctx context.Context, in ports.SendMoneyInput) (*domain.TransactionResult, error) {
					t.Fatalf("should not be called")
					return nil, nil
				},
			}

			c, _ := postJSON(e, "/v1/transfers", body)
			err := NewLoanHandler(stub, view.NewLive()).SendMoney(c)
			if code := httpCode(t, err); code != http.StatusUnprocessableEntity {
				t.Fatalf("expected 422, got %d", code)
			}
		})
	}
}

func TestLoanHandler_SendMoney_DomainErrorPassthrough(t *testing.T) {
	e := newTestEcho()
	stub := &stubSession{
		sendFn: func(ctx context.Context, in ports.SendMoneyInput) (*domain.TransactionResult, error) {
			return nil, &domain.TransactionError{Op: "send", Err: domain.ErrInsufficientFunds}
		},
	}

	c, _ := postJSON(e, "/v1/transfers", `{"to":"`+string(testCounterparty)+`","amount":"1"}`)
	err := NewLoanHandler(stub, view.NewLive()).SendMoney(c)
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds passthrough, got %v", err)
	}
}
