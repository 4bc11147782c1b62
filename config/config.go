package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store and ledger drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
	DriverHTTP     = "http"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	JWT         JWTConfig         `mapstructure:"jwt"`
	Log         LogConfig         `mapstructure:"log"`
	Store       StoreConfig       `mapstructure:"store"`
	Ledger      LedgerConfig      `mapstructure:"ledger"`
	Currency    CurrencyConfig    `mapstructure:"currency"`
	Coordinator CoordinatorConfig `mapstructure:"coordinator"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
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
	// StatementTimeout is set on every session; it must stay below the credit lock TTL.
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// Timeout bounds dial, read and write; lock operations fail closed past it.
	Timeout time.Duration `mapstructure:"timeout"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // trace, debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// StoreConfig selects the relational store implementation.
type StoreConfig struct {
	Driver string `mapstructure:"driver"` // postgres, memory
}

// LedgerConfig configures the value-ledger gateway client.
type LedgerConfig struct {
	Driver       string        `mapstructure:"driver"` // http, memory
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	APISecret    string        `mapstructure:"api_secret"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RateLimitRPS float64       `mapstructure:"rate_limit_rps"`
	Burst        int           `mapstructure:"burst"`
	MaxRetries   uint64        `mapstructure:"max_retries"`
	Breaker      BreakerConfig `mapstructure:"breaker"`

	// OpeningBalance funds every account of the memory driver, in minor units.
	OpeningBalance int64 `mapstructure:"opening_balance"`
}

// BreakerConfig tunes the circuit breaker guarding ledger calls.
type BreakerConfig struct {
	MaxRequests         uint32        `mapstructure:"max_requests"`
	Interval            time.Duration `mapstructure:"interval"`
	Timeout             time.Duration `mapstructure:"timeout"`
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures"`
}

// CurrencyConfig is the settlement currency. Scale is the number of decimal
// places in the smallest unit.
type CurrencyConfig struct {
	Code  string `mapstructure:"code"`
	Scale int32  `mapstructure:"scale"`
}

type CoordinatorConfig struct {
	LockTTL        time.Duration `mapstructure:"lock_ttl"`
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: CLB_ (Credit Ledger Bridge).
// Nested keys use underscore: CLB_DATABASE_HOST, CLB_LEDGER_BASE_URL, etc.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("CLB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
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

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "credit_ledger")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.statement_timeout", "15s")
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.timeout", "2s")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "credit-ledger-bridge")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("store.driver", DriverPostgres)
	v.SetDefault("ledger.driver", DriverHTTP)
	v.SetDefault("ledger.base_url", "http://localhost:8545")
	v.SetDefault("ledger.api_key", "")
	v.SetDefault("ledger.api_secret", "")
	v.SetDefault("ledger.timeout", "30s")
	v.SetDefault("ledger.rate_limit_rps", 10)
	v.SetDefault("ledger.burst", 5)
	v.SetDefault("ledger.max_retries", 3)
	v.SetDefault("ledger.breaker.max_requests", 1)
	v.SetDefault("ledger.breaker.interval", "60s")
	v.SetDefault("ledger.breaker.timeout", "30s")
	v.SetDefault("ledger.breaker.consecutive_failures", 5)
	v.SetDefault("ledger.opening_balance", 0)
	v.SetDefault("currency.code", "USD")
	v.SetDefault("currency.scale", 2)
	v.SetDefault("coordinator.lock_ttl", "5m")
	v.SetDefault("coordinator.idempotency_ttl", "24h")
}

// Validate checks settings that have no safe default.
func (c *Config) Validate() error {
	var errs []error
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt.secret is required"))
	}
	switch c.Store.Driver {
	case DriverPostgres, DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not one of postgres, memory", c.Store.Driver))
	}
	switch c.Ledger.Driver {
	case DriverHTTP:
		if c.Ledger.BaseURL == "" {
			errs = append(errs, errors.New("ledger.base_url is required for the http driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("ledger.driver %q is not one of http, memory", c.Ledger.Driver))
	}
	if c.Currency.Scale < 0 || c.Currency.Scale > 18 {
		errs = append(errs, fmt.Errorf("currency.scale %d out of range 0..18", c.Currency.Scale))
	}
	if c.Coordinator.LockTTL <= c.Ledger.Timeout {
		errs = append(errs, errors.New("coordinator.lock_ttl must exceed ledger.timeout"))
	}
	// The lock is renewed every third of its TTL.
	if c.Redis.Enabled && c.Redis.Timeout >= c.Coordinator.LockTTL/3 {
		errs = append(errs, errors.New("redis.timeout must be below a third of coordinator.lock_ttl"))
	}
	if c.Store.Driver == DriverPostgres && c.Database.StatementTimeout >= c.Coordinator.LockTTL {
		errs = append(errs, errors.New("database.statement_timeout must be below coordinator.lock_ttl"))
	}
	return errors.Join(errs...)
}
