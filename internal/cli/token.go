package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lendbridge/loanbook/internal/core/domain"
	"github.com/lendbridge/loanbook/internal/core/service"
)

var (
	tokenUsername string
	tokenRole     string
	tokenTTL      time.Duration

	operatorPassword string
	operatorRole     string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an API token signed with JWT_SECRET",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			return err
		}
		if cfg.JWTSecret == "" {
			return errors.New("JWT_SECRET is not set")
		}
		if !domain.ValidRole(tokenRole) {
			return fmt.Errorf("unknown role %q", tokenRole)
		}

		token, err := service.IssueToken(cfg.JWTSecret, tokenUsername, tokenRole, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

var operatorCmd = &cobra.Command{
	Use:   "operator",
	Short: "Manage API operators",
}

var operatorAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Register an API operator (mongo backend)",
	Args:  cobra.ExactArgs(1),
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

		op, err := a.auth.Register(ctx, args[0], operatorPassword, operatorRole)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "operator %s registered with role %s\n", op.Username, op.Role)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUsername, "username", "cli", "username claim")
	tokenCmd.Flags().StringVar(&tokenRole, "role", domain.RoleOperator, "role claim (operator or viewer)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")

	operatorAddCmd.Flags().StringVar(&operatorPassword, "password", "", "operator password")
	operatorAddCmd.Flags().StringVar(&operatorRole, "role", domain.RoleOperator, "role (operator or viewer)")
	_ = operatorAddCmd.MarkFlagRequired("password")
	operatorCmd.AddCommand(operatorAddCmd)

	RootCmd.AddCommand(tokenCmd, operatorCmd)
}
