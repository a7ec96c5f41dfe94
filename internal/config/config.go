// ABOUTME: Configuration loading and parsing for appland
// ABOUTME: Supports YAML files with environment variable expansion, defaults, and duration parsing

package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// Store backends
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Defaults applied to unset fields
const (
	DefaultHTTPAddr     = "0.0.0.0:8080"
	DefaultPassword     = "0807"
	DefaultTimeZone     = "Asia/Tokyo"
	DefaultPollInterval = 5 * time.Second
	DefaultIdleTTL      = 30 * time.Minute
	DefaultMaxViews     = 256
	DefaultTick         = time.Second
	DefaultWriteTimeout = 10 * time.Second

	minTokenSecretLen = 16
)

// Config represents the complete appland configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Store   StoreConfig   `yaml:"store"`
	Marker  MarkerConfig  `yaml:"marker"`
	Admin   AdminConfig   `yaml:"admin"`
	Views   ViewsConfig   `yaml:"views"`
	Clock   ClockConfig   `yaml:"clock"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds the HTTP listener configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// StoreConfig selects and configures the document store backend
type StoreConfig struct {
	Backend string `yaml:"backend"`
	// Path is the SQLite database file
	Path string `yaml:"path"`
	// DSN is the PostgreSQL connection string
	DSN string `yaml:"dsn"`

	PollInterval time.Duration `yaml:"-"`
	WriteTimeout time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	PollIntervalRaw string `yaml:"poll_interval"`
	WriteTimeoutRaw string `yaml:"write_timeout"`
}

// MarkerConfig holds the seeding marker location
type MarkerConfig struct {
	Path string `yaml:"path"`
}

// AdminConfig holds the admin password. PasswordHash, when set, is a
// bcrypt hash and takes precedence over Password.
type AdminConfig struct {
	Password     string `yaml:"password"`
	PasswordHash string `yaml:"password_hash"`
}

// ViewsConfig holds per-page session configuration
type ViewsConfig struct {
	// TokenSecret signs view tokens. Generated at startup when empty.
	TokenSecret string `yaml:"token_secret"`
	MaxViews    int    `yaml:"max_views"`

	IdleTTL    time.Duration `yaml:"-"`
	IdleTTLRaw string        `yaml:"idle_ttl"`
}

// ClockConfig holds the header clock configuration
type ClockConfig struct {
	TimeZone string `yaml:"time_zone"`

	Tick    time.Duration `yaml:"-"`
	TickRaw string        `yaml:"tick"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a configuration with every default applied, storing data
// under dataDir.
func Default(dataDir string) (*Config, error) {
	cfg := &Config{
		Store:  StoreConfig{Path: filepath.Join(dataDir, "appland.db")},
		Marker: MarkerConfig{Path: filepath.Join(dataDir, "marker.toml")},
	}
	if err := applyDefaults(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := applyDefaults(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills unset fields.
func applyDefaults(cfg *Config) error {
	if cfg.Server.HTTPAddr == "" {
		cfg.Server.HTTPAddr = DefaultHTTPAddr
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = BackendSQLite
	}
	if cfg.Store.PollInterval == 0 {
		cfg.Store.PollInterval = DefaultPollInterval
	}
	if cfg.Store.WriteTimeout == 0 {
		cfg.Store.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Admin.Password == "" && cfg.Admin.PasswordHash == "" {
		cfg.Admin.Password = DefaultPassword
	}
	if cfg.Views.IdleTTL == 0 {
		cfg.Views.IdleTTL = DefaultIdleTTL
	}
	if cfg.Views.MaxViews == 0 {
		cfg.Views.MaxViews = DefaultMaxViews
	}
	if cfg.Views.TokenSecret == "" {
		secret, err := GenerateSecret()
		if err != nil {
			return err
		}
		cfg.Views.TokenSecret = secret
	}
	if cfg.Clock.TimeZone == "" {
		cfg.Clock.TimeZone = DefaultTimeZone
	}
	if cfg.Clock.Tick == 0 {
		cfg.Clock.Tick = DefaultTick
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	return nil
}

// GenerateSecret returns 32 random bytes, hex encoded.
func GenerateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	switch c.Store.Backend {
	case BackendSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the sqlite backend")
		}
	case BackendPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the postgres backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("store.backend must be one of sqlite, postgres, memory (got %q)", c.Store.Backend)
	}
	if c.Store.PollInterval < 0 {
		return fmt.Errorf("store.poll_interval must not be negative")
	}
	if c.Store.WriteTimeout < 0 {
		return fmt.Errorf("store.write_timeout must not be negative")
	}

	if c.Marker.Path == "" {
		return fmt.Errorf("marker.path is required")
	}

	if len(c.Views.TokenSecret) < minTokenSecretLen {
		return fmt.Errorf("views.token_secret must be at least %d characters", minTokenSecretLen)
	}
	if c.Views.MaxViews < 0 {
		return fmt.Errorf("views.max_views must not be negative")
	}
	if c.Views.IdleTTL < 0 {
		return fmt.Errorf("views.idle_ttl must not be negative")
	}

	if _, err := c.Clock.Location(); err != nil {
		return fmt.Errorf("clock.time_zone: %w", err)
	}
	if c.Clock.Tick < 0 {
		return fmt.Errorf("clock.tick must not be negative")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error (got %q)", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json (got %q)", c.Logging.Format)
	}

	return nil
}

// Location loads the configured time zone.
func (c ClockConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.TimeZone)
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"store.poll_interval", cfg.Store.PollIntervalRaw, &cfg.Store.PollInterval},
		{"store.write_timeout", cfg.Store.WriteTimeoutRaw, &cfg.Store.WriteTimeout},
		{"views.idle_ttl", cfg.Views.IdleTTLRaw, &cfg.Views.IdleTTL},
		{"clock.tick", cfg.Clock.TickRaw, &cfg.Clock.Tick},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}
