package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/lendbridge/loanbook/internal/core/domain"
	"github.com/lendbridge/loanbook/internal/infrastructure/config"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Register the lending contract on the configured network",
	Long: `Records the contract deployment (address, network and endpoint) in the
mongo backend. Until a contract is deployed every read and write reports the
store as unavailable. The in-memory backend deploys on startup.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		initLogger(cfg)

		if cfg.Ledger.Backend != config.BackendMongo {
			return errors.New("deploy requires LEDGER_BACKEND=mongo")
		}

		a, err := buildApp(ctx, cfg, nil)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		d, err := a.loanStore.Deploy(ctx, domain.Deployment{
			Address:    domain.ContractAddress(cfg.Ledger.Contract, cfg.Ledger.NetworkID, uuid.NewString()),
			NetworkID:  cfg.Ledger.NetworkID,
			Endpoint:   cfg.Ledger.Endpoint,
			DeployedAt: time.Now().UTC(),
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s deployed at %s (network %s)\n", d.Contract, d.Address, d.NetworkID)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(deployCmd)
}
