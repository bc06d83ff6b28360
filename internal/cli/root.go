// Package cli is the loanbook command line: the API server plus one-shot
// commands that drive the same session from a terminal.
package cli

import (
	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "none"
)

var accountFlag string

// RootCmd represents the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:     "loanbook",
	Version: Version,
	Short:   "Track and manage the loans owned by a wallet account",
	Long: `loanbook keeps a view of the loans recorded by a lending contract,
filtered to the active wallet account, and refreshes it whenever a loan is
appended. Run "loanbook serve" for the HTTP API or use the one-shot commands.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	RootCmd.PersistentFlags().StringVar(&accountFlag, "account", "", "active wallet account (overrides WALLET_ACCOUNT)")
}
