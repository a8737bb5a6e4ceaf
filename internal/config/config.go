// Package config loads service configuration from the environment (with an
// optional .env file) and the economy tables from YAML.
package config

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/R3E-Network/token_ledger/pkg/logger"
	"github.com/golang-jwt/jwt/v5"
	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Logging   LoggingConfig
	Ledger    LedgerConfig
	Redis     RedisConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Host            string        `env:"SERVER_HOST,default=0.0.0.0"`
	Port            int           `env:"SERVER_PORT,default=8080"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT,default=15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT,default=15s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT,default=20s"`
	AllowedOrigins  []string      `env:"SERVER_ALLOWED_ORIGINS"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig selects PostgreSQL when URL is set; otherwise the ledger
// runs on the in-memory store.
type DatabaseConfig struct {
	URL             string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DATABASE_MAX_OPEN_CONNS,default=10"`
	MaxIdleConns    int           `env:"DATABASE_MAX_IDLE_CONNS,default=5"`
	ConnMaxLifetime time.Duration `env:"DATABASE_CONN_MAX_LIFETIME,default=30m"`
	Migrate         bool          `env:"DATABASE_MIGRATE,default=true"`
}

type LoggingConfig struct {
	Level      string `env:"LOG_LEVEL,default=info"`
	Format     string `env:"LOG_FORMAT,default=json"`
	Output     string `env:"LOG_OUTPUT,default=stdout"`
	FilePrefix string `env:"LOG_FILE_PREFIX,default=ledger"`
}

// Logger converts the section into logger settings.
func (l LoggingConfig) Logger() logger.LoggingConfig {
	return logger.LoggingConfig{Level: l.Level, Format: l.Format, Output: l.Output, FilePrefix: l.FilePrefix}
}

type LedgerConfig struct {
	TokenName         string        `env:"LEDGER_TOKEN_NAME,default=MentalVerse Token"`
	TokenSymbol       string        `env:"LEDGER_TOKEN_SYMBOL,default=MVT"`
	Decimals          uint8         `env:"LEDGER_DECIMALS,default=8"`
	TransferFee       uint64        `env:"LEDGER_TRANSFER_FEE,default=10000"`
	MinBurnAmount     uint64        `env:"LEDGER_MIN_BURN_AMOUNT,default=0"`
	MaxMemoBytes      int           `env:"LEDGER_MAX_MEMO_BYTES,default=32"`
	Owner             string        `env:"LEDGER_OWNER,default=admin"`
	AuthorizedCallers []string      `env:"LEDGER_AUTHORIZED_CALLERS"`
	TxWindow          time.Duration `env:"LEDGER_TX_WINDOW,default=24h"`
	PermittedDrift    time.Duration `env:"LEDGER_PERMITTED_DRIFT,default=2m"`
	LogMaxEntries     int           `env:"LEDGER_LOG_MAX_ENTRIES,default=0"`
	PageSize          int           `env:"LEDGER_PAGE_SIZE,default=100"`
	MaxPageSize       int           `env:"LEDGER_MAX_PAGE_SIZE,default=1000"`
	RewardSchedule    string        `env:"LEDGER_REWARD_SCHEDULE,default=0 0 * * *"`
	RewardPageSize    int           `env:"LEDGER_REWARD_PAGE_SIZE,default=500"`
	EconomyFile       string        `env:"LEDGER_ECONOMY_FILE,default=config/economy.yaml"`
}

// RedisConfig enables the transaction stream when Addr is set.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,default=0"`
	Stream   string `env:"REDIS_STREAM,default=ledger:transactions"`
	MaxLen   int64  `env:"REDIS_STREAM_MAXLEN,default=100000"`
	Buffer   int    `env:"REDIS_STREAM_BUFFER,default=1024"`
}

type AuthConfig struct {
	// PublicKeyFile is a PEM encoded RSA key verifying service tokens.
	PublicKeyFile   string   `env:"AUTH_SERVICE_PUBLIC_KEY_FILE"`
	AllowedServices []string `env:"AUTH_ALLOWED_SERVICES"`
	DevMode         bool     `env:"AUTH_DEV_MODE,default=false"`
}

// PublicKey reads and parses PublicKeyFile. It returns nil when unset.
func (a AuthConfig) PublicKey() (*rsa.PublicKey, error) {
	if strings.TrimSpace(a.PublicKeyFile) == "" {
		return nil, nil
	}
	pem, err := os.ReadFile(a.PublicKeyFile)
	if err != nil {
		return nil, fmt.Errorf("read service public key: %w", err)
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(pem)
	if err != nil {
		return nil, fmt.Errorf("parse service public key: %w", err)
	}
	return key, nil
}

type RateLimitConfig struct {
	Enabled           bool    `env:"RATE_LIMIT_ENABLED,default=true"`
	RequestsPerSecond float64 `env:"RATE_LIMIT_RPS,default=50"`
	Burst             int     `env:"RATE_LIMIT_BURST,default=100"`
}

// Load reads .env when present and decodes the environment.
func Load() (*Config, error) {
	return LoadFromEnvFile(".env")
}

// LoadFromEnvFile loads variables from path (if it exists) without
// overriding the process environment, then decodes Config.
func LoadFromEnvFile(path string) (*Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid SERVER_PORT %d", c.Server.Port)
	}
	if strings.TrimSpace(c.Ledger.Owner) == "" {
		return fmt.Errorf("LEDGER_OWNER is required")
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be positive")
	}
	return nil
}
