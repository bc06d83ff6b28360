package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lendbridge/loanbook/internal/core/domain"
	"github.com/lendbridge/loanbook/internal/core/ports"
)

var (
	createInput ports.CreateLoanInput
	sendInput   ports.SendMoneyInput
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a loan owned by the active account",
	Example: `  loanbook create --account 0x5aAe... --counterparty 0xfB69... \
    --amount 1.5 --term 12 --rate 5`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		initLogger(cfg)

		renderer := newTableRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), unitLabel(cfg.Ledger.Decimals))
		a, err := buildApp(ctx, cfg, renderer)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		res, err := a.session.CreateLoan(ctx, createInput)
		if err != nil {
			return err
		}
		printReceipt(cmd.OutOrStdout(), "created", res)
		return nil
	},
}

var issueCmd = &cobra.Command{
	Use:   "issue <index>",
	Short: "Issue a loan, transferring its amount to the counterparty",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("index must be an integer: %w", err)
		}

		ctx := cmd.Context()
		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		initLogger(cfg)

		renderer := newTableRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), unitLabel(cfg.Ledger.Decimals))
		a, err := buildApp(ctx, cfg, renderer)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		res, err := a.session.IssueLoan(ctx, index)
		if err != nil {
			return err
		}
		printReceipt(cmd.OutOrStdout(), "issued", res)
		return nil
	},
}

var sendCmd = &cobra.Command{
	Use:     "send",
	Short:   "Send funds from the active account to another account",
	Example: `  loanbook send --account 0x5aAe... --to 0xfB69... --amount 0.25`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		initLogger(cfg)

		a, err := buildApp(ctx, cfg, nil)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		res, err := a.session.SendMoney(ctx, sendInput)
		if err != nil {
			return err
		}
		label := unitLabel(cfg.Ledger.Decimals)
		fmt.Fprintf(cmd.OutOrStdout(), "Sent %s %s from %s to %s\n",
			sendInput.Amount, label, res.From.Checksum(), domain.Address(sendInput.To).Checksum())
		fmt.Fprintf(cmd.OutOrStdout(), "Transaction: %s\n", res.TxHash)

		if bal, err := a.session.Balance(ctx); err == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Balance: %s\n", formatAmount(bal, label))
		}
		return nil
	},
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show the balance of the active account",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		initLogger(cfg)

		a, err := buildApp(ctx, cfg, nil)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		bal, err := a.session.Balance(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), formatAmount(bal, unitLabel(cfg.Ledger.Decimals)))
		return nil
	},
}

func printReceipt(w io.Writer, what string, res *domain.TransactionResult) {
	fmt.Fprintf(w, "Loan #%d %s by %s\n", res.Index, what, res.From.Checksum())
	fmt.Fprintf(w, "Transaction: %s\n", res.TxHash)
}

func init() {
	createCmd.Flags().StringVar(&createInput.Counterparty, "counterparty", "", "borrower address")
	createCmd.Flags().StringVar(&createInput.Amount, "amount", "", "amount in display units (e.g. 1.5)")
	createCmd.Flags().Uint64Var(&createInput.Term, "term", 0, "loan term")
	createCmd.Flags().Uint64Var(&createInput.InterestRate, "rate", 0, "interest rate")
	_ = createCmd.MarkFlagRequired("counterparty")
	_ = createCmd.MarkFlagRequired("amount")
	_ = createCmd.MarkFlagRequired("term")

	sendCmd.Flags().StringVar(&sendInput.To, "to", "", "receiver address")
	sendCmd.Flags().StringVar(&sendInput.Amount, "amount", "", "amount in display units (e.g. 0.25)")
	_ = sendCmd.MarkFlagRequired("to")
	_ = sendCmd.MarkFlagRequired("amount")

	RootCmd.AddCommand(createCmd, issueCmd, sendCmd, balanceCmd)
}
