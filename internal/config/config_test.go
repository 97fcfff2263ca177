package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Postgres.Host)
	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "game-sessions", cfg.Kafka.SessionTopic)
	assert.Equal(t, "premium-status", cfg.Kafka.PremiumTopic)
	assert.Equal(t, int64(100), cfg.Progression.BaseXPPerLevel)
	assert.Equal(t, 5*time.Minute, cfg.Projector.Interval)
	assert.Equal(t, 100, cfg.Projector.TopN)
	assert.True(t, cfg.Projector.Enabled)
	assert.Equal(t, 2*time.Minute, cfg.Verifier.ScanTimeout)
	assert.Equal(t, 30*time.Minute, cfg.Verifier.StalenessThreshold)
	assert.Equal(t, int64(5), cfg.Verifier.StaleCriticalCount)
	assert.InDelta(t, 0.10, cfg.Verifier.CriticalPlayerFraction, 0.0001)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
}

func TestLoadAppliesDefaultsToPartialFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
postgres:
  host: db.internal
  user: ledger
  password: secret
  database: gamification
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	// Unset fields fall back to defaults.
	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "gamification-ledger", cfg.Kafka.GroupID)
}

func TestLoadExpandsEnvironmentVariables(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "hunter2")
	t.Setenv("TEST_ADMIN_TOKEN", "tok-123")

	path := writeConfig(t, `
server:
  admin_token: ${TEST_ADMIN_TOKEN}
postgres:
  password: ${TEST_DB_PASSWORD}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", cfg.Postgres.Password)
	assert.Equal(t, "tok-123", cfg.Server.AdminToken)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a mapping")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestConnectionString(t *testing.T) {
	pg := PostgresConfig{
		Host:     "db",
		Port:     5433,
		User:     "app",
		Password: "pw",
		Database: "ledger",
	}
	assert.Equal(t, "postgres://app:pw@db:5433/ledger?sslmode=disable", pg.ConnectionString())

	pg.SSLMode = "require"
	assert.Equal(t, "postgres://app:pw@db:5433/ledger?sslmode=require", pg.ConnectionString())
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}
