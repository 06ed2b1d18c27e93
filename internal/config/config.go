package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"

	SplitRandom = "random"
	SplitFixed  = "fixed"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Asaas    AsaasConfig    `yaml:"asaas"`
	Payees   string         `yaml:"payees_dir"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`

	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Reserve      string `yaml:"reserve"`
	Split        string `yaml:"split"`
	FixedAmount  string `yaml:"fixed_amount"`
	LogLevel     string `yaml:"log_level"`
}

type AsaasConfig struct {
	Env     string        `yaml:"env"`
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"-"`
	Timeout time.Duration `yaml:"timeout"`
}

type LedgerConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
	// Name keys the ledger in redis/postgres.
	Name string `yaml:"name"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
	UseGuard bool          `yaml:"use_guard"`
}

type PostgresConfig struct {
	URL string `yaml:"url"`
}

type KafkaConfig struct {
	Addr  string `yaml:"addr"`
	Topic string `yaml:"topic"`
}

func Default() Config {
	return Config{
		Asaas: AsaasConfig{
			Env:     "sandbox",
			Timeout: 30 * time.Second,
		},
		Payees: "./pix-keys",
		Ledger: LedgerConfig{
			Backend: BackendFile,
			Path:    "./paid.txt",
			Name:    "default",
		},
		Redis: RedisConfig{
			Addr:    "localhost:6379",
			LockTTL: time.Hour,
		},
		Kafka: KafkaConfig{
			Topic: "disbursement.events",
		},
		Reserve:     "0",
		Split:       SplitRandom,
		FixedAmount: "1.00",
		LogLevel:    "info",
	}
}

// Load layers defaults, the optional YAML file, the optional .env file and
// the process environment, in that order. The result is not validated:
// callers apply their own overrides first and then call Validate.
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Asaas.Env = env("ASAAS_ENV", c.Asaas.Env)
	c.Asaas.BaseURL = env("ASAAS_BASE_URL", c.Asaas.BaseURL)
	c.Asaas.Token = env("ASAAS_TOKEN", c.Asaas.Token)
	c.Payees = env("PAYEES_DIR", c.Payees)
	c.Ledger.Backend = env("LEDGER_BACKEND", c.Ledger.Backend)
	c.Ledger.Path = env("LEDGER_PATH", c.Ledger.Path)
	c.Ledger.Name = env("LEDGER_NAME", c.Ledger.Name)
	c.Redis.Addr = env("REDIS_ADDR", c.Redis.Addr)
	c.Postgres.URL = env("PG_URL", c.Postgres.URL)
	c.Kafka.Addr = env("KAFKA_ADDR", c.Kafka.Addr)
	c.Kafka.Topic = env("OUT_TOPIC", c.Kafka.Topic)
	c.OTLPEndpoint = env("OTLP_ENDPOINT", c.OTLPEndpoint)
	c.Reserve = env("RESERVE", c.Reserve)
	c.Split = env("SPLIT", c.Split)
	c.FixedAmount = env("FIXED_AMOUNT", c.FixedAmount)
	c.LogLevel = env("LOG_LEVEL", c.LogLevel)

	if v := os.Getenv("ASAAS_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: ASAAS_TIMEOUT: %v", ErrInvalid, err)
		}
		c.Asaas.Timeout = d
	}
	if v := os.Getenv("RUN_GUARD"); v != "" {
		c.Redis.UseGuard = v == "1" || v == "true"
	}
	return nil
}

func (c Config) Validate() error {
	switch c.Ledger.Backend {
	case BackendFile:
		if c.Ledger.Path == "" {
			return fmt.Errorf("%w: ledger path is required for the file backend", ErrInvalid)
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("%w: redis addr is required for the redis backend", ErrInvalid)
		}
	case BackendPostgres:
		if c.Postgres.URL == "" {
			return fmt.Errorf("%w: postgres url is required for the postgres backend", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown ledger backend %q", ErrInvalid, c.Ledger.Backend)
	}
	if c.Ledger.Backend != BackendFile && c.Ledger.Name == "" {
		return fmt.Errorf("%w: ledger name is required", ErrInvalid)
	}

	reserve, err := decimal.NewFromString(c.Reserve)
	if err != nil || reserve.IsNegative() {
		return fmt.Errorf("%w: reserve %q must be a non-negative amount", ErrInvalid, c.Reserve)
	}

	switch c.Split {
	case SplitRandom:
	case SplitFixed:
		amount, err := decimal.NewFromString(c.FixedAmount)
		if err != nil || !amount.IsPositive() {
			return fmt.Errorf("%w: fixed amount %q must be a positive amount", ErrInvalid, c.FixedAmount)
		}
	default:
		return fmt.Errorf("%w: unknown split policy %q", ErrInvalid, c.Split)
	}

	if c.Kafka.Addr != "" && c.Ledger.Backend != BackendPostgres {
		return fmt.Errorf("%w: kafka events need the postgres backend (outbox)", ErrInvalid)
	}
	return nil
}

func (c Config) ReserveAmount() decimal.Decimal {
	return decimal.RequireFromString(c.Reserve)
}

func (c Config) FixedSplitAmount() decimal.Decimal {
	return decimal.RequireFromString(c.FixedAmount)
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
