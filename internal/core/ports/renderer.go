package ports

import "github.com/lendbridge/loanbook/internal/core/domain"

// Renderer is the UI collaborator driven by a session's render passes.
// Implementations must be safe for use from multiple goroutines.
type Renderer interface {
	ShowLoading()
	HideLoading()
	ShowAccount(account domain.Address)
	Render(rows []domain.DisplayRow)
	ShowError(err error)
}
