package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/lendbridge/loanbook/internal/api"
	"github.com/lendbridge/loanbook/internal/api/view"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and keep the loan view in sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		log := initLogger(cfg)

		if cfg.JWTSecret == "" {
			if !cfg.Development() {
				return errors.New("JWT_SECRET is required outside development")
			}
			cfg.JWTSecret = uuid.NewString()
			log.Warn().Msg("JWT_SECRET not set, using a random secret for this process")
		}

		live := view.NewLive()
		a, err := buildApp(ctx, cfg, live)
		if err != nil {
			return err
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := a.Close(closeCtx); err != nil {
				log.Warn().Err(err).Msg("closing backends")
			}
		}()

		if err := a.seedOperator(ctx); err != nil {
			return err
		}

		sub, err := a.session.Start(ctx, a.ctrl)
		if err != nil {
			log.Warn().Err(err).Msg("live refresh disabled")
		}

		e := api.NewRouter(api.Deps{
			Session:   a.session,
			View:      live,
			Auth:      a.auth,
			JWTSecret: cfg.JWTSecret,
			Checkers:  a.checkers,
			Log:       log,
		})

		errCh := make(chan error, 1)
		go func() {
			log.Info().
				Str("port", cfg.Port).
				Str("backend", cfg.Ledger.Backend).
				Str("endpoint", cfg.Ledger.Endpoint).
				Msg("loanbook API listening")
			if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down")
		case err := <-errCh:
			if err != nil {
				return err
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if sub != nil {
			sub.Unsubscribe()
			sub.Wait()
		}
		return e.Shutdown(shutdownCtx)
	},
}

func init() {
	RootCmd.AddCommand(serveCmd)
}
