package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lendbridge/loanbook/internal/core/domain"
	"github.com/lendbridge/loanbook/pkg/logger"
)

const (
	cliAccount      = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	cliCounterparty = "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"
)

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("LEDGER_BACKEND", "memory")
	t.Setenv("LOG_LEVEL", "off")
	logger.Reset()
	t.Cleanup(logger.Reset)

	var out, errOut bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&errOut)
	RootCmd.SetArgs(args)
	err := RootCmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

// --- Table rendering ---

func TestLoanTable(t *testing.T) {
	out := loanTable([]domain.DisplayRow{
		{Index: 1, Counterparty: cliCounterparty, Amount: domain.DisplayAmount{Value: "1.5"}, Term: 12, InterestRate: 5},
		{Index: 3, Counterparty: cliCounterparty, Amount: domain.DisplayAmount{Value: "42", Raw: true}, Term: 6, Issued: true},
	}, "ETH")

	for _, want := range []string{"Counterparty", cliCounterparty, "1.5 ETH", "42 (base units)", "issued", "pending"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestTableRenderer(t *testing.T) {
	var out, errOut bytes.Buffer
	r := newTableRenderer(&out, &errOut, "ETH")

	r.ShowLoading()
	r.ShowAccount("")
	r.Render(nil)
	r.ShowError(errors.New("store unavailable"))
	r.HideLoading()

	if !strings.Contains(out.String(), "Your Account: (none") || !strings.Contains(out.String(), "No loans.") {
		t.Errorf("unexpected output: %q", out.String())
	}
	if !strings.Contains(errOut.String(), "Loading loans...") || !strings.Contains(errOut.String(), "store unavailable") {
		t.Errorf("unexpected error output: %q", errOut.String())
	}
}

// --- Commands ---

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")

	out, _, err := runCLI(t, "token", "--username", "ops", "--role", domain.RoleViewer, "--account", "")
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	claims := jwt.MapClaims{}
	if _, err := jwt.ParseWithClaims(strings.TrimSpace(out), claims, func(*jwt.Token) (interface{}, error) {
		return []byte("cli-secret"), nil
	}); err != nil {
		t.Fatalf("minted token does not verify: %v", err)
	}
	if claims["username"] != "ops" || claims["role"] != domain.RoleViewer {
		t.Fatalf("unexpected claims: %v", claims)
	}
}

func TestTokenCommand_RejectsUnknownRole(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")

	if _, _, err := runCLI(t, "token", "--role", "admin", "--account", ""); err == nil {
		t.Fatalf("expected an error for an unknown role")
	}
}

func TestLoansCommand_NoWallet(t *testing.T) {
	out, _, err := runCLI(t, "loans", "--account", "")
	if !errors.Is(err, domain.ErrNoWallet) {
		t.Fatalf("expected ErrNoWallet, got %v", err)
	}
	if !strings.Contains(out, "No loans.") {
		t.Fatalf("expected an empty table, got %q", out)
	}
}

func TestCreateCommand_RendersNewLoan(t *testing.T) {
	out, _, err := runCLI(t, "create",
		"--account", cliAccount,
		"--counterparty", cliCounterparty,
		"--amount", "1.5",
		"--term", "12",
		"--rate", "5",
	)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	for _, want := range []string{"Your Account: ", "1.5 ETH", "Loan #1 created", "Transaction: 0x"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestDeployCommand_RequiresMongo(t *testing.T) {
	if _, _, err := runCLI(t, "deploy", "--account", ""); err == nil {
		t.Fatalf("expected deploy to refuse the memory backend")
	}
}

func TestSendCommand(t *testing.T) {
	out, _, err := runCLI(t, "send",
		"--account", cliAccount,
		"--to", cliCounterparty,
		"--amount", "1.5",
	)
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	for _, want := range []string{"Sent 1.5 ETH from " + cliAccount + " to " + cliCounterparty, "Transaction: 0x", "Balance: 98.5 ETH"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSendCommand_InsufficientFunds(t *testing.T) {
	_, _, err := runCLI(t, "send",
		"--account", cliAccount,
		"--to", cliCounterparty,
		"--amount", "101",
	)
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestBalanceCommand(t *testing.T) {
	out, _, err := runCLI(t, "balance", "--account", cliAccount)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if strings.TrimSpace(out) != "100 ETH" {
		t.Fatalf("unexpected balance output %q", out)
	}
}
