package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitlifehost4tvegesdgames/flux-keyauth/internal/config"
)

// pointConfigFileAt keeps tests from picking up a config.yaml in the
// working directory.
func pointConfigFileAt(t *testing.T, path string) {
	t.Helper()
	if path == "" {
		path = filepath.Join(t.TempDir(), "absent.yaml")
	}
	t.Setenv("FLUX_CONFIG_FILE", path)
}

func TestLoad_Defaults(t *testing.T) {
	pointConfigFileAt(t, "")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "flux.db", cfg.Storage.Path)
	assert.Equal(t, 4, cfg.Storage.PoolSize)
	assert.Equal(t, "admin", cfg.Admin.Username)
	assert.Equal(t, 12*time.Hour, cfg.Admin.SessionTTL)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, float64(50), cfg.RateLimit.RPS)
	assert.Equal(t, 25, cfg.RateLimit.Burst)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	pointConfigFileAt(t, "")
	t.Setenv("FLUX_SERVER_PORT", "8443")
	t.Setenv("FLUX_STORAGE_PATH", "/var/lib/flux/licenses.db")
	t.Setenv("FLUX_ADMIN_USERNAME", "operator")
	t.Setenv("FLUX_ADMIN_PASSWORD", "hunter2")
	t.Setenv("FLUX_LOGGING_LEVEL", "debug")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8443, cfg.Server.Port)
	assert.Equal(t, "/var/lib/flux/licenses.db", cfg.Storage.Path)
	assert.Equal(t, "operator", cfg.Admin.Username)
	assert.Equal(t, "hunter2", cfg.Admin.Password)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_IgnoresAmbientShellVariables(t *testing.T) {
	// envconfig falls back to a tag's bare alt name when the prefixed key
	// is unset. Storage.Path and Admin.Username must not carry alt tags,
	// or $PATH and $USER would silently replace the documented defaults.
	pointConfigFileAt(t, "")
	t.Setenv("PATH", "/usr/bin:/bin")
	t.Setenv("USER", "osuser")
	t.Setenv("USERNAME", "osuser")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "flux.db", cfg.Storage.Path)
	assert.Equal(t, "admin", cfg.Admin.Username)
}

func TestLoad_ConfigFileParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
storage:
  path: from-file.db
`), 0o644))
	pointConfigFileAt(t, path)

	cfg, err := config.Load()
	require.NoError(t, err)

	// Environment defaults still win over file values; the file only fills
	// fields the environment left empty.
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, "flux.db", cfg.Storage.Path)
}

func TestLoad_FileCanDisableRateLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rate_limit:
  enabled: false
`), 0o644))
	pointConfigFileAt(t, path)

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestLoad_EnvRateLimitBeatsFile(t *testing.T) {
	// An explicit environment setting wins even against an explicit file
	// value, for the boolean too.
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rate_limit:
  enabled: true
`), 0o644))
	pointConfigFileAt(t, path)
	t.Setenv("FLUX_RATE_LIMIT_ENABLED", "false")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestLoad_MalformedConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{{not yaml"), 0o644))
	pointConfigFileAt(t, path)

	_, err := config.Load()
	assert.Error(t, err)
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"port out of range", "FLUX_SERVER_PORT", "70000"},
		{"unknown log level", "FLUX_LOGGING_LEVEL", "verbose"},
		{"unknown log format", "FLUX_LOGGING_FORMAT", "xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pointConfigFileAt(t, "")
			t.Setenv(tt.key, tt.value)

			_, err := config.Load()
			assert.Error(t, err)
		})
	}
}
