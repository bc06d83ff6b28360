package cli

import (
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/lendbridge/loanbook/internal/core/domain"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	numericStyle = cellStyle.Align(lipgloss.Right)
	issuedStyle  = cellStyle.Foreground(lipgloss.Color("42"))
	pendingStyle = cellStyle.Foreground(lipgloss.Color("208"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	accountStyle = lipgloss.NewStyle().Bold(true)
)

// tableRenderer draws render passes as a terminal table. It implements
// ports.Renderer.
type tableRenderer struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
	unit   string
}

func newTableRenderer(out, errOut io.Writer, unit string) *tableRenderer {
	return &tableRenderer{out: out, errOut: errOut, unit: unit}
}

func (r *tableRenderer) ShowLoading() {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.errOut, "Loading loans...")
}

func (r *tableRenderer) HideLoading() {}

func (r *tableRenderer) ShowAccount(account domain.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if account.IsZero() {
		fmt.Fprintln(r.out, "Your Account: (none, connect a wallet)")
		return
	}
	fmt.Fprintln(r.out, "Your Account: "+accountStyle.Render(account.String()))
}

func (r *tableRenderer) Render(rows []domain.DisplayRow) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(rows) == 0 {
		fmt.Fprintln(r.out, "No loans.")
		return
	}
	fmt.Fprintln(r.out, loanTable(rows, r.unit))
}

func (r *tableRenderer) ShowError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.errOut, errorStyle.Render("error: "+err.Error()))
}

func formatAmount(a domain.DisplayAmount, unit string) string {
	if a.Raw {
		return a.Value + " (base units)"
	}
	return a.Value + " " + unit
}

func loanTable(rows []domain.DisplayRow, unit string) string {
	data := make([][]string, 0, len(rows))
	for _, row := range rows {
		amount := formatAmount(row.Amount, unit)
		status := "pending"
		if row.Issued {
			status = "issued"
		}
		data = append(data, []string{
			strconv.Itoa(row.Index),
			row.Counterparty.String(),
			amount,
			strconv.FormatUint(row.Term, 10),
			strconv.FormatUint(row.InterestRate, 10),
			status,
		})
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		Headers("#", "Counterparty", "Amount", "Term", "Rate", "Status").
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow || row < 0 || row >= len(data):
				return headerStyle
			case col == 5 && data[row][5] == "issued":
				return issuedStyle
			case col == 5:
				return pendingStyle
			case col == 0 || col == 3 || col == 4:
				return numericStyle
			default:
				return cellStyle
			}
		}).
		String()
}
