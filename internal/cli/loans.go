package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var loansWatch bool

var loansCmd = &cobra.Command{
	Use:   "loans",
	Short: "Show the loans owned by the active account",
	Long: `Runs one synchronization pass and prints the loans owned by the active
account. With --watch the table is redrawn every time a loan is appended
until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

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

		if !loansWatch {
			_, err := a.session.RenderPass(ctx)
			return err
		}

		sub, err := a.session.Start(ctx, a.ctrl)
		if err != nil {
			return err
		}
		<-ctx.Done()
		sub.Unsubscribe()
		sub.Wait()
		return nil
	},
}

// unitLabel names the display unit for the configured decimals.
func unitLabel(decimals int) string {
	if decimals == 18 {
		return "ETH"
	}
	return "units"
}

func init() {
	loansCmd.Flags().BoolVarP(&loansWatch, "watch", "w", false, "keep running and redraw on every appended loan")
	RootCmd.AddCommand(loansCmd)
}
