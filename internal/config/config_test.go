package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stridept/stridept-backend/internal/config"
)

const testConfigContent = `
[development]
host = "localhost"
port = 8080
log_level = "trace"
log_to_stdout = true
postgres_host = "localhost"
postgres_port = "5432"
postgres_db_name = "stridept"
redis_host = "localhost"
redis_port = "6379"
prometheus_metrics_host = "localhost"
prometheus_metrics_port = "2112"
login_rate_limit_allowed_per_min = 10

[production]
host = "0.0.0.0"
port = 9000
log_level = "debug"
sentry_enabled = true
postgres_host = "db.internal"
postgres_port = "5432"
postgres_db_name = "stridept"
redis_host = "redis.internal"
redis_port = "6379"
prometheus_metrics_host = "0.0.0.0"
prometheus_metrics_port = "2112"
login_rate_limit_allowed_per_min = 5
`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(testConfigContent), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeTestConfig(t)

	cfg, err := config.Load("development", path)
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "trace", cfg.LogLevel)
	assert.True(t, cfg.LogToStdout)
	assert.Equal(t, 10, cfg.LoginRateLimitAllowedPerMin)

	cfg, err = config.Load("prod", path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.True(t, cfg.SentryEnabled)
	assert.Equal(t, "db.internal", cfg.PostgresHost)
}

func TestLoad_UnknownEnv(t *testing.T) {
	path := writeTestConfig(t)

	_, err := config.Load("staging", path)
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load("development", "/nonexistent/config.toml")
	assert.Error(t, err)
}
