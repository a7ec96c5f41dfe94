// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, defaults, and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: "127.0.0.1:9090"

store:
  backend: "sqlite"
  path: "./apps.db"
  write_timeout: "3s"

marker:
  path: "./marker.toml"

admin:
  password: "1111"

views:
  token_secret: "0123456789abcdef0123"
  idle_ttl: "10m"
  max_views: 32

clock:
  time_zone: "UTC"
  tick: "500ms"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.Server.HTTPAddr)
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, "./apps.db", cfg.Store.Path)
	assert.Equal(t, 3*time.Second, cfg.Store.WriteTimeout)
	assert.Equal(t, "./marker.toml", cfg.Marker.Path)
	assert.Equal(t, "1111", cfg.Admin.Password)
	assert.Equal(t, "0123456789abcdef0123", cfg.Views.TokenSecret)
	assert.Equal(t, 10*time.Minute, cfg.Views.IdleTTL)
	assert.Equal(t, 32, cfg.Views.MaxViews)
	assert.Equal(t, 500*time.Millisecond, cfg.Clock.Tick)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
store:
  path: "./apps.db"
marker:
  path: "./marker.toml"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultHTTPAddr, cfg.Server.HTTPAddr)
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, DefaultPollInterval, cfg.Store.PollInterval)
	assert.Equal(t, DefaultPassword, cfg.Admin.Password)
	assert.Equal(t, DefaultIdleTTL, cfg.Views.IdleTTL)
	assert.Equal(t, DefaultMaxViews, cfg.Views.MaxViews)
	assert.Len(t, cfg.Views.TokenSecret, 64, "secret is generated")
	assert.Equal(t, DefaultTimeZone, cfg.Clock.TimeZone)
	assert.Equal(t, DefaultTick, cfg.Clock.Tick)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)

	loc, err := cfg.Clock.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", loc.String())
}

func TestLoad_HashKeepsPasswordEmpty(t *testing.T) {
	path := writeConfig(t, `
store:
  backend: memory
marker:
  path: "./marker.toml"
admin:
  password_hash: "$2a$10$abcdefghijklmnopqrstuuM5e5qK3iS3dR3q2h7a1wq0cM8pW7a6e"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Admin.Password)
	assert.NotEmpty(t, cfg.Admin.PasswordHash)
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_APPLAND_DSN", "postgres://kids:secret@db/appland")
	t.Setenv("TEST_APPLAND_PASSWORD", "4321")

	path := writeConfig(t, `
store:
  backend: postgres
  dsn: "${TEST_APPLAND_DSN}"
  poll_interval: "2s"
marker:
  path: "./marker.toml"
admin:
  password: "${TEST_APPLAND_PASSWORD}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://kids:secret@db/appland", cfg.Store.DSN)
	assert.Equal(t, 2*time.Second, cfg.Store.PollInterval)
	assert.Equal(t, "4321", cfg.Admin.Password)
}

func TestLoad_UnsetEnvVarExpandsEmpty(t *testing.T) {
	path := writeConfig(t, `
store:
  backend: postgres
  dsn: "${TEST_APPLAND_DEFINITELY_UNSET}"
marker:
  path: "./marker.toml"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.dsn is required")
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "bad backend",
			content: "store:\n  backend: redis\nmarker:\n  path: m\n",
			wantErr: "store.backend",
		},
		{
			name:    "sqlite without path",
			content: "store:\n  backend: sqlite\nmarker:\n  path: m\n",
			wantErr: "store.path",
		},
		{
			name:    "missing marker path",
			content: "store:\n  backend: memory\n",
			wantErr: "marker.path",
		},
		{
			name:    "bad duration",
			content: "store:\n  backend: memory\nmarker:\n  path: m\nviews:\n  idle_ttl: soon\n",
			wantErr: "views.idle_ttl",
		},
		{
			name:    "short token secret",
			content: "store:\n  backend: memory\nmarker:\n  path: m\nviews:\n  token_secret: short\n",
			wantErr: "views.token_secret",
		},
		{
			name:    "unknown time zone",
			content: "store:\n  backend: memory\nmarker:\n  path: m\nclock:\n  time_zone: Mars/Olympus\n",
			wantErr: "clock.time_zone",
		},
		{
			name:    "bad log level",
			content: "store:\n  backend: memory\nmarker:\n  path: m\nlogging:\n  level: loud\n",
			wantErr: "logging.level",
		},
		{
			name:    "invalid yaml",
			content: "store: [",
			wantErr: "parsing config file",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.wantErr), "error %q should mention %q", err, tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Default(dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "appland.db"), cfg.Store.Path)
	assert.Equal(t, filepath.Join(dir, "marker.toml"), cfg.Marker.Path)
	assert.NoError(t, cfg.Validate())
}

func TestGenerateSecret_Unique(t *testing.T) {
	a, err := GenerateSecret()
	require.NoError(t, err)
	b, err := GenerateSecret()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
