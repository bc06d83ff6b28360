package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

const (
	BackendMemory = "memory"
	BackendMongo  = "mongo"
)

type Config struct {
	Port      string `env:"PORT,      default=8080"`
	Env       string `env:"ENV,       default=development"`
	JWTSecret string `env:"JWT_SECRET"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`

	Ledger   LedgerConfig
	Wallet   WalletConfig
	Operator OperatorConfig
	Sync     SyncConfig
	Mongo    MongoConfig
	Redis    RedisConfig
}

// LedgerConfig binds the process to one contract on one network.
type LedgerConfig struct {
	Backend   string `env:"LEDGER_BACKEND,    default=memory"`
	Contract  string `env:"LEDGER_CONTRACT,   default=Lending"`
	Endpoint  string `env:"LEDGER_ENDPOINT,   default=http://localhost:7545"`
	NetworkID string `env:"LEDGER_NETWORK_ID, default=5777"`
	Decimals  int    `env:"LEDGER_DECIMALS,   default=18"`
}

type WalletConfig struct {
	Account string `env:"WALLET_ACCOUNT"`
}

// OperatorConfig seeds an API operator at startup when both fields are set.
type OperatorConfig struct {
	Username string `env:"OPERATOR_USERNAME"`
	Password string `env:"OPERATOR_PASSWORD"`
}

type SyncConfig struct {
	Attempts         int           `env:"SYNC_ATTEMPTS,          default=2"`
	RetryDelay       time.Duration `env:"SYNC_RETRY_DELAY,       default=250ms"`
	FetchConcurrency int           `env:"SYNC_FETCH_CONCURRENCY, default=0"`
	DedupTTL         time.Duration `env:"NOTIFY_DEDUP_TTL,       default=1h"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=loanbook"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`
}

// Development reports whether the process runs in a development environment.
func (c *Config) Development() bool {
	return strings.EqualFold(c.Env, "development")
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("config: failed to load configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Ledger.Backend {
	case BackendMemory, BackendMongo:
	default:
		return fmt.Errorf("LEDGER_BACKEND must be %q or %q, got %q", BackendMemory, BackendMongo, c.Ledger.Backend)
	}
	if c.Ledger.Contract == "" {
		return fmt.Errorf("LEDGER_CONTRACT is required")
	}
	if c.Ledger.Decimals < 0 || c.Ledger.Decimals > 77 {
		return fmt.Errorf("LEDGER_DECIMALS must be within 0..77, got %d", c.Ledger.Decimals)
	}
	if c.Sync.FetchConcurrency < 0 {
		return fmt.Errorf("SYNC_FETCH_CONCURRENCY must not be negative")
	}
	return nil
}
