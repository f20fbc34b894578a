package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	NATS        NATSConfig        `mapstructure:"nats"`
	JWT         JWTConfig         `mapstructure:"jwt"`
	AES         AESConfig         `mapstructure:"aes"`
	Log         LogConfig         `mapstructure:"log"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
	Webhook     WebhookConfig     `mapstructure:"webhook"`
	Ledger      LedgerConfig      `mapstructure:"ledger"`
	Reconcile   ReconcileConfig   `mapstructure:"reconcile"`
	Jobs        JobsConfig        `mapstructure:"jobs"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Providers   []ProviderConfig  `mapstructure:"providers"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	Stream        string        `mapstructure:"stream"`
	SubjectPrefix string        `mapstructure:"subject_prefix"`
	AckWait       time.Duration `mapstructure:"ack_wait"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type AESConfig struct {
	Key string `mapstructure:"key"` // 32-byte hex-encoded key for AES-256
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

type IdempotencyConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
	Env string        `mapstructure:"env"` // qualifies cache keys per deployment
}

type WebhookConfig struct {
	SignatureHeader string        `mapstructure:"signature_header"`
	Delay           time.Duration `mapstructure:"delay"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
	Timeout         time.Duration `mapstructure:"timeout"`
	Lease           time.Duration `mapstructure:"lease"`
}

type LedgerConfig struct {
	ReverseFee    bool   `mapstructure:"reverse_fee"`
	MinimumAmount string `mapstructure:"minimum_amount"`
	Currency      string `mapstructure:"currency"`
	CardProvider  string `mapstructure:"card_provider"`
}

type ReconcileConfig struct {
	BatchSize int           `mapstructure:"batch_size"`
	Interval  time.Duration `mapstructure:"interval"`
}

type JobsConfig struct {
	Driver string `mapstructure:"driver"` // nats, memory
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"` // postgres, memory
}

// ProviderConfig describes one payment provider gateway.
type ProviderConfig struct {
	Name      string        `mapstructure:"name"`
	Kind      string        `mapstructure:"kind"` // http, sandbox
	BaseURL   string        `mapstructure:"base_url"`
	SecretKey string        `mapstructure:"secret_key"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: FEE_.
// Nested keys use underscore: FEE_DATABASE_HOST, FEE_WEBHOOK_DELAY, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "fee_engine")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.stream", "FEE_JOBS")
	v.SetDefault("nats.subject_prefix", "fee.jobs")
	v.SetDefault("nats.ack_wait", "30s")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "fee-engine")
	v.SetDefault("aes.key", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("idempotency.ttl", "120s")
	v.SetDefault("idempotency.env", "development")
	v.SetDefault("webhook.signature_header", "X-Signature")
	v.SetDefault("webhook.delay", "5s")
	v.SetDefault("webhook.max_attempts", 5)
	v.SetDefault("webhook.timeout", "10s")
	v.SetDefault("webhook.lease", "30s")
	v.SetDefault("ledger.reverse_fee", true)
	v.SetDefault("ledger.minimum_amount", "500")
	v.SetDefault("ledger.currency", "NGN")
	v.SetDefault("ledger.card_provider", "sandbox")
	v.SetDefault("reconcile.batch_size", 100)
	v.SetDefault("reconcile.interval", "5m")
	v.SetDefault("jobs.driver", "nats")
	v.SetDefault("storage.driver", "postgres")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// FEE_DATABASE_HOST -> database.host
	v.SetEnvPrefix("FEE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Env vars alone are enough to run.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Validate rejects configurations the engine cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Idempotency.TTL <= 0 {
		errs = append(errs, errors.New("idempotency.ttl must be positive"))
	}
	if c.Webhook.MaxAttempts < 1 {
		errs = append(errs, errors.New("webhook.max_attempts must be at least 1"))
	}
	switch c.Jobs.Driver {
	case "nats", "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown jobs.driver %q", c.Jobs.Driver))
	}
	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}
	if len(c.Providers) == 0 {
		errs = append(errs, errors.New("at least one provider must be configured"))
	}
	seen := make(map[string]bool, len(c.Providers))
	for _, p := range c.Providers {
		if p.Name == "" {
			errs = append(errs, errors.New("provider name is required"))
			continue
		}
		if seen[p.Name] {
			errs = append(errs, fmt.Errorf("provider %q configured twice", p.Name))
		}
		seen[p.Name] = true
		if p.Kind == "http" && (p.SecretKey == "" || p.BaseURL == "") {
			errs = append(errs, fmt.Errorf("provider %q is missing credentials", p.Name))
		}
	}
	return errors.Join(errs...)
}
