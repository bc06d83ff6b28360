package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/lendbridge/loanbook/internal/core/domain"
)

func TestHTTPErrorHandler_StatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		body string
	}{
		{"no wallet", fmt.Errorf("resolve account: %w", domain.ErrNoWallet), http.StatusConflict, "no wallet"},
		{"store unavailable", fmt.Errorf("%w: not deployed", domain.ErrStoreUnavailable), http.StatusServiceUnavailable, "not deployed"},
		{"partial fetch", &domain.PartialFetchError{Count: 2, Failed: map[int]error{1: errors.New("timeout")}}, http.StatusBadGateway, "1 of 2"},
		{"transaction", &domain.TransactionError{Op: "issue", Index: 2, Err: domain.ErrAlreadyIssued}, http.StatusUnprocessableEntity, "already issued"},
		{"transaction on missing record", &domain.TransactionError{Op: "issue", Index: 9, Err: domain.ErrRecordNotFound}, http.StatusNotFound, "not found"},
		{"invalid loan", fmt.Errorf("create loan: %w", domain.ErrInvalidLoan), http.StatusUnprocessableEntity, "invalid loan"},
		{"invalid transfer", fmt.Errorf("send money: %w", domain.ErrInvalidTransfer), http.StatusUnprocessableEntity, "invalid transfer"},
		{"echo error", echo.NewHTTPError(http.StatusForbidden, "forbidden"), http.StatusForbidden, "forbidden"},
		{"unexpected", errors.New("secret detail"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			NewHTTPErrorHandler(zerolog.Nop())(tc.err, c)

			if rec.Code != tc.code {
				t.Fatalf("expected %d, got %d", tc.code, rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tc.body) {
				t.Fatalf("expected body to contain %q, got %s", tc.body, rec.Body.String())
			}
		})
	}
}

func TestHTTPErrorHandler_DoesNotLeakUnexpected(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	NewHTTPErrorHandler(zerolog.Nop())(errors.New("mongo: password=hunter2"), c)

	if strings.Contains(rec.Body.String(), "hunter2") {
		t.Fatalf("internal error leaked: %s", rec.Body.String())
	}
}
