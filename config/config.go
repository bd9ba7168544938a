package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// Config is parsed once at process start, shared by both the API server
// and the spinner cell binaries. Each binary only reads the fields it
// needs.
type Config struct {
	Env  string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	Port string `env:"PORT" envDefault:"8080" validate:"required"`

	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`

	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info" validate:"required,oneof=debug info warn error"`

	// CellID identifies which scheduler cell this spinner owns; every
	// trigger is pinned to exactly one cell and only that cell's spinner
	// ever carries it in its active trigger map.
	CellID string `env:"CELL_ID" envDefault:"cell-1" validate:"required"`

	// SpinnerYieldMaxMS bounds how long the spinner sleeps between ticks
	// when nothing is imminently due (the tick floor).
	SpinnerYieldMaxMS int `env:"SPINNER_YIELD_MAX_MS" envDefault:"1000" validate:"min=10,max=60000"`

	// MaxTriggersPerTick bounds how many due triggers a single tick drains
	// from the active trigger map before yielding back to the sleep loop.
	MaxTriggersPerTick int `env:"MAX_TRIGGERS_PER_TICK" envDefault:"500" validate:"min=1,max=100000"`

	// DBFlushS is the interval between checkpoint flushes of the active
	// trigger map's dirty entries to the trigger store.
	DBFlushS int `env:"DB_FLUSH_S" envDefault:"5" validate:"min=1,max=300"`

	// DangerousFastForward, when true, makes Install start a recurring
	// trigger's cron iteration at its CreatedAt instead of now, so
	// occurrences missed since creation fire instead of being skipped. RunAt
	// timepoints in the past are skipped either way. Never set in production.
	DangerousFastForward bool `env:"DANGEROUS_FAST_FORWARD" envDefault:"false"`

	// RequestProcessingTimeoutS is loaded and validated, but neither binary
	// passes it to any component; a webhook attempt's deadline comes from
	// its action's TimeoutSeconds.
	RequestProcessingTimeoutS int `env:"REQUEST_PROCESSING_TIMEOUT_S" envDefault:"30" validate:"min=1,max=300"`

	// MaxInFlightDispatches bounds the dispatch manager's semaphore: the
	// number of runs this cell will attempt concurrently.
	MaxInFlightDispatches int64 `env:"MAX_IN_FLIGHT_DISPATCHES" envDefault:"256" validate:"min=1"`

	// JWTSigningKey signs the short-lived JWTs ExchangeAPIKey issues.
	JWTSigningKey string `env:"JWT_SIGNING_KEY,required" validate:"required,min=32"`

	// AllowNonRoutableWebhooks disables the destination routability check;
	// only ever set true in local/dev environments to hit localhost
	// fixtures.
	AllowNonRoutableWebhooks bool `env:"ALLOW_NON_ROUTABLE_WEBHOOKS" envDefault:"false"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SlogLevel converts the LOG_LEVEL string to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
