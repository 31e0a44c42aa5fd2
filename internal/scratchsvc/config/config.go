package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"

	"github.com/avvvet/scratch-services/internal/scratchsvc/game"
)

// Config is read from the environment after the .env file, if any, was loaded.
type Config struct {
	PostgresURL string `env:"POSTGRES_URL"`
	MongoURI    string `env:"MONGODB_URI"`
	NatsURL     string `env:"NATS_URL"`
	NatsToken   string `env:"NATS_TOKEN"`

	Port      string `env:"SCRATCH_SERVICE_PORT,default=8080"`
	RateLimit int    `env:"RATE_LIMIT,default=100"`
	JWTSecret string `env:"JWT_SECRET_KEY"`

	CardTTL           time.Duration `env:"CARD_TTL,default=720h"`
	ExhaustionPolicy  string        `env:"EXHAUSTION_POLICY,default=downgrade"`
	MaxFillerAttempts int           `env:"MAX_FILLER_ATTEMPTS,default=8"`

	CatalogFile    string        `env:"CATALOG_FILE,default=configs/catalog.yaml"`
	AuditRetention time.Duration `env:"AUDIT_RETENTION,default=2160h"`

	RobotCount      int     `env:"ROBOT_COUNT,default=5"`
	RobotRate       float64 `env:"ROBOT_RATE,default=1"`
	RobotCardType   int64   `env:"ROBOT_CARD_TYPE,default=1"`
	RobotUserIDBase int64   `env:"ROBOT_USER_ID_BASE,default=9000000001"`
	RobotTopUp      int64   `env:"ROBOT_TOP_UP,default=1000"`
}

// Load decodes the environment. Only structural problems are errors here; each
// command checks the fields it actually needs.
func Load() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return cfg, fmt.Errorf("decode env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if !c.Policy().Valid() {
		return fmt.Errorf("EXHAUSTION_POLICY must be %q or %q, got %q", game.PolicyDowngrade, game.PolicyRedraw, c.ExhaustionPolicy)
	}
	if c.CardTTL <= 0 {
		return fmt.Errorf("CARD_TTL must be positive, got %s", c.CardTTL)
	}
	if c.RateLimit <= 0 {
		return fmt.Errorf("RATE_LIMIT must be positive, got %d", c.RateLimit)
	}
	return nil
}

func (c Config) Policy() game.Policy {
	return game.Policy(c.ExhaustionPolicy)
}

// RequirePostgres fails when POSTGRES_URL is missing.
func (c Config) RequirePostgres() error {
	if c.PostgresURL == "" {
		return errors.New("POSTGRES_URL is not set")
	}
	return nil
}
