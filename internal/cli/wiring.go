package cli

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/rs/zerolog"

	"github.com/lendbridge/loanbook/internal/api/handler"
	"github.com/lendbridge/loanbook/internal/api/metrics"
	"github.com/lendbridge/loanbook/internal/core/domain"
	"github.com/lendbridge/loanbook/internal/core/ports"
	"github.com/lendbridge/loanbook/internal/core/service"
	"github.com/lendbridge/loanbook/internal/infrastructure/config"
	"github.com/lendbridge/loanbook/internal/infrastructure/db/memory"
	mongostore "github.com/lendbridge/loanbook/internal/infrastructure/db/mongo"
	redisstore "github.com/lendbridge/loanbook/internal/infrastructure/db/redis"
	"github.com/lendbridge/loanbook/internal/infrastructure/ledger/memledger"
	"github.com/lendbridge/loanbook/internal/infrastructure/units"
	"github.com/lendbridge/loanbook/internal/infrastructure/wallet"
	"github.com/lendbridge/loanbook/pkg/logger"
)

// devBalance is the starting balance of every account in development (100 ether).
var devBalance = new(big.Int).Mul(big.NewInt(100), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))

// app is the wired process: one store binding, one wallet and one session.
type app struct {
	cfg       *config.Config
	log       zerolog.Logger
	store     ports.RecordStore
	wallet    *wallet.Static
	converter *units.Converter
	session   *service.Session
	ctrl      *service.RefreshController
	auth      *service.AuthService
	checkers  []handler.HealthChecker

	// mongo backend only
	loanStore *mongostore.LoanStore

	closers []func(context.Context) error
}

func loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	if accountFlag != "" {
		cfg.Wallet.Account = accountFlag
	}
	return cfg, nil
}

func initLogger(cfg *config.Config) zerolog.Logger {
	return logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.Development(),
		Fields: map[string]string{
			"contract": cfg.Ledger.Contract,
			"network":  cfg.Ledger.NetworkID,
		},
	})
}

// buildApp wires the session for cfg. renderer may be nil.
func buildApp(ctx context.Context, cfg *config.Config, renderer ports.Renderer) (*app, error) {
	a := &app{cfg: cfg, log: logger.Get()}

	w, err := wallet.NewStatic(cfg.Wallet.Account)
	if err != nil {
		return nil, err
	}
	a.wallet = w

	conv, err := units.NewConverter(cfg.Ledger.Decimals)
	if err != nil {
		return nil, err
	}
	a.converter = conv

	var (
		store ports.RecordStore
		funds ports.Funds
		dedup ports.NotificationDedup
		repo  ports.OperatorRepository
	)

	switch cfg.Ledger.Backend {
	case config.BackendMongo:
		store, dedup, repo, err = a.connectMongo(ctx)
		if err != nil {
			_ = a.Close(ctx)
			return nil, err
		}
		funds = a.loanStore
	default:
		ledger := memledger.New(memledger.Options{
			Contract:       cfg.Ledger.Contract,
			NetworkID:      cfg.Ledger.NetworkID,
			Endpoint:       cfg.Ledger.Endpoint,
			InitialBalance: devBalance,
		})
		d := ledger.Deploy()
		a.log.Info().Str("address", d.Address.String()).Msg("in-memory contract deployed")
		store = ledger
		funds = ledger
		repo = memory.NewOperatorRepository()
	}

	a.store = metrics.InstrumentStore(store)
	a.checkers = append(a.checkers, deploymentChecker{store: store})

	if renderer != nil {
		renderer = metrics.InstrumentRenderer(renderer)
	}

	resolver := service.NewAccountResolver(a.wallet, logger.Component("account"))
	synchronizer := service.NewSynchronizer(conv, service.SyncOptions{
		Attempts:         cfg.Sync.Attempts,
		RetryDelay:       cfg.Sync.RetryDelay,
		FetchConcurrency: cfg.Sync.FetchConcurrency,
	}, logger.Component("sync"))

	a.session = service.NewSession(a.store, metrics.InstrumentFunds(funds), resolver, synchronizer, conv, renderer, logger.Component("session"))
	a.ctrl = service.NewRefreshController(dedup, metrics.Observer{}, logger.Component("refresh"))
	a.auth = service.NewAuthService(repo, cfg.JWTSecret, 0)

	return a, nil
}

func (a *app) connectMongo(ctx context.Context) (ports.RecordStore, ports.NotificationDedup, ports.OperatorRepository, error) {
	client, db, err := mongostore.Connect(ctx, mongostore.Config{URI: a.cfg.Mongo.URI, Database: a.cfg.Mongo.Database})
	if err != nil {
		return nil, nil, nil, err
	}
	a.closers = append(a.closers, client.Disconnect)
	a.checkers = append(a.checkers, mongostore.NewHealthChecker(db))

	rdb, err := redisstore.Connect(ctx, redisstore.Config{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	a.closers = append(a.closers, func(context.Context) error { return rdb.Close() })
	a.checkers = append(a.checkers, redisstore.NewHealthChecker(rdb))

	feed := redisstore.NewAppendFeed(rdb, a.cfg.Ledger.Contract, logger.Component("append-feed"))
	a.loanStore = mongostore.NewLoanStore(db, a.cfg.Ledger.Contract, feed, logger.Component("loan-store"))
	if a.cfg.Development() {
		a.loanStore.WithInitialBalance(devBalance)
	}
	if err := a.loanStore.EnsureIndexes(ctx); err != nil {
		return nil, nil, nil, err
	}

	repo := mongostore.NewOperatorRepository(db)
	if err := repo.EnsureIndexes(ctx); err != nil {
		return nil, nil, nil, err
	}

	return a.loanStore, redisstore.NewDedupChecker(rdb, a.cfg.Sync.DedupTTL), repo, nil
}

// seedOperator registers the configured operator unless it already exists.
func (a *app) seedOperator(ctx context.Context) error {
	op := a.cfg.Operator
	if op.Username == "" || op.Password == "" {
		return nil
	}
	_, err := a.auth.Register(ctx, op.Username, op.Password, domain.RoleOperator)
	if err != nil && !errors.Is(err, domain.ErrOperatorExists) {
		return fmt.Errorf("seed operator %q: %w", op.Username, err)
	}
	return nil
}

// Close releases backend connections in reverse order of acquisition.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// deploymentChecker reports the contract as ready once it is deployed.
type deploymentChecker struct {
	store ports.RecordStore
}

func (deploymentChecker) Name() string { return "ledger" }

func (c deploymentChecker) Ping(ctx context.Context) error {
	_, err := c.store.Deployment(ctx)
	return err
}
