// @title                       loanbook API
// @version                     1.0
// @description                 Loans owned by the active wallet account, kept in sync with the lending contract.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
// @description                 Type "Bearer" followed by a space and the JWT.
package main

import (
	"os"

	"github.com/lendbridge/loanbook/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
