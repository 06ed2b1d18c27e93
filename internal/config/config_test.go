package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"ASAAS_ENV", "ASAAS_BASE_URL", "ASAAS_TOKEN", "ASAAS_TIMEOUT", "PAYEES_DIR",
		"LEDGER_BACKEND", "LEDGER_PATH", "LEDGER_NAME", "REDIS_ADDR", "PG_URL",
		"KAFKA_ADDR", "OUT_TOPIC", "OTLP_ENDPOINT", "RESERVE", "SPLIT",
		"FIXED_AMOUNT", "LOG_LEVEL", "RUN_GUARD",
	} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.True(t, cfg.ReserveAmount().IsZero())
}

func TestLoadLayersFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := writeTemp(t, "disburse.yaml", `
asaas:
  env: prod
  timeout: 5s
payees_dir: /data/pix-keys
ledger:
  backend: redis
  name: march-payroll
redis:
  addr: redis:6379
  use_guard: true
reserve: "25.50"
split: fixed
fixed_amount: "2.00"
`)
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("ASAAS_TOKEN", "secret")

	cfg, err := Load(path, "")
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Asaas.Env)
	assert.Equal(t, 5*time.Second, cfg.Asaas.Timeout)
	assert.Equal(t, "secret", cfg.Asaas.Token)
	assert.Equal(t, "/data/pix-keys", cfg.Payees)
	assert.Equal(t, BackendRedis, cfg.Ledger.Backend)
	assert.Equal(t, "march-payroll", cfg.Ledger.Name)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr)
	assert.True(t, cfg.Redis.UseGuard)
	assert.Equal(t, time.Hour, cfg.Redis.LockTTL)
	assert.Equal(t, "25.5", cfg.ReserveAmount().String())
	assert.Equal(t, "2", cfg.FixedSplitAmount().String())
}

func TestLoadDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	envFile := writeTemp(t, ".env", "ASAAS_TOKEN=from-dotenv\nPAYEES_DIR=/from/dotenv\n")
	t.Setenv("PAYEES_DIR", "/from/env")

	cfg, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Asaas.Token)
	assert.Equal(t, "/from/env", cfg.Payees)
}

func TestLoadMissingDotEnvIsIgnored(t *testing.T) {
	clearEnv(t)

	_, err := Load("", filepath.Join(t.TempDir(), ".env"))
	assert.NoError(t, err)
}

func TestLoadRejectsBadTimeout(t *testing.T) {
	clearEnv(t)
	t.Setenv("ASAAS_TIMEOUT", "soon")

	_, err := Load("", "")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoadLeavesValidationToCaller(t *testing.T) {
	clearEnv(t)
	t.Setenv("SPLIT", "even")
	t.Setenv("LEDGER_BACKEND", BackendPostgres)

	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.ErrorIs(t, cfg.Validate(), ErrInvalid)

	cfg.Split = SplitRandom
	cfg.Ledger.Backend = BackendFile
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "unknown backend", mutate: func(c *Config) { c.Ledger.Backend = "s3" }},
		{name: "empty ledger path", mutate: func(c *Config) { c.Ledger.Path = "" }},
		{name: "postgres without url", mutate: func(c *Config) { c.Ledger.Backend = BackendPostgres }},
		{name: "redis without name", mutate: func(c *Config) { c.Ledger.Backend = BackendRedis; c.Ledger.Name = "" }},
		{name: "negative reserve", mutate: func(c *Config) { c.Reserve = "-1" }},
		{name: "garbage reserve", mutate: func(c *Config) { c.Reserve = "ten" }},
		{name: "unknown split", mutate: func(c *Config) { c.Split = "even" }},
		{name: "zero fixed amount", mutate: func(c *Config) { c.Split = SplitFixed; c.FixedAmount = "0" }},
		{name: "kafka without postgres", mutate: func(c *Config) { c.Kafka.Addr = "localhost:9092" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}

	assert.NoError(t, Default().Validate())
}
