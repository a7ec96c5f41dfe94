// ABOUTME: Entry point for the appland classroom launcher
// ABOUTME: Serves the dashboard and offers setup and maintenance commands

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"github.com/2389/appland/internal/config"
	"github.com/2389/appland/internal/dashboard"
	"github.com/2389/appland/internal/marker"
	"github.com/2389/appland/internal/server"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                             _                 _
  __ _ _ __  _ __           | | __ _ _ __   __| |
 / _' | '_ \| '_ \   _____  | |/ _' | '_ \ / _' |
| (_| | |_) | |_) | |_____| | | (_| | | | | (_| |
 \__,_| .__/| .__/          |_|\__,_|_| |_|\__,_|
      |_|   |_|
`

// getConfigPath returns the path to the config file.
// Priority: APPLAND_CONFIG env var > XDG_CONFIG_HOME/appland/config.yaml > ~/.config/appland/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("APPLAND_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "appland", "config.yaml")
}

// getDataPath returns the path to the appland data directory.
// Priority: XDG_DATA_HOME/appland > ~/.local/share/appland
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "appland")
}

// loadConfig loads the config file, or the defaults when none exists yet.
func loadConfig() (*config.Config, string, error) {
	configPath := getConfigPath()
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		cfg, err := config.Default(getDataPath())
		if err != nil {
			return nil, "", err
		}
		return cfg, "(defaults)", nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, "", fmt.Errorf("loading config: %w", err)
	}
	return cfg, configPath, nil
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: appland <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve          Start the dashboard server")
		fmt.Println("  init           Create a new config file interactively")
		fmt.Println("  apps           List the apps in the store")
		fmt.Println("  health         Check server health")
		fmt.Println("  reset-marker   Forget that the default apps were seeded")
		os.Exit(1)
	}

	// Values in a local .env satisfy ${VAR} references in the config
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit(bufio.NewReader(os.Stdin), os.Stdout)
	case "apps":
		err = runApps(ctx, os.Stdout)
	case "health":
		err = runHealth(ctx)
	case "reset-marker":
		err = runResetMarker()
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging, os.Stdout)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Store:     %s", cfg.Store.Backend)
	if cfg.Store.Backend == config.BackendSQLite {
		gray.Printf(" (%s)", cfg.Store.Path)
	}
	fmt.Println()
	green.Print("    ▶ ")
	fmt.Printf("Clock:     %s\n", cfg.Clock.TimeZone)
	if cfg.Admin.PasswordHash == "" && cfg.Admin.Password == config.DefaultPassword {
		yellow := color.New(color.FgYellow)
		yellow.Println("    ! admin password is the default")
	}
	fmt.Println()

	logger.Info("starting appland",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"backend", cfg.Store.Backend,
	)

	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return srv.Run(ctx)
}

// runApps prints the current app list from the configured store.
func runApps(ctx context.Context, out io.Writer) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := server.OpenStore(cfg.Store)
	if err != nil {
		return err
	}
	defer s.Close()

	subCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	sub, err := s.Subscribe(subCtx, dashboard.AppsQuery)
	if err != nil {
		return fmt.Errorf("subscribing to apps: %w", err)
	}
	defer sub.Cancel()

	select {
	case snap := <-sub.C():
		return printApps(out, dashboard.EntriesFromSnapshot(snap))
	case <-subCtx.Done():
		return fmt.Errorf("reading apps: %w", subCtx.Err())
	}
}

func printApps(out io.Writer, apps []dashboard.AppEntry) error {
	if len(apps) == 0 {
		_, err := fmt.Fprintln(out, "No apps.")
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tICON\tCOLOR\tURL\tCREATED")
	for _, app := range apps {
		created := "-"
		if !app.CreatedAt.IsZero() {
			created = app.CreatedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s %s\t%s\t%s\t%s\n",
			app.ID, app.Name, app.Glyph(), app.Icon, app.Color, app.URL, created)
	}
	return tw.Flush()
}

// healthURL returns the local health URL for a listen address.
func healthURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Sprintf("http://%s/health", addr)
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s/health", net.JoinHostPort(host, port))
}

func runHealth(ctx context.Context) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL(cfg.Server.HTTPAddr), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

// runResetMarker clears the seed marker so the next empty list is seeded again.
func runResetMarker() error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	m := marker.NewFileMarker(cfg.Marker.Path)
	if err := m.Clear(); err != nil {
		return fmt.Errorf("clearing marker: %w", err)
	}

	color.New(color.FgGreen).Printf("  ✓ Cleared seed marker: %s\n", cfg.Marker.Path)
	return nil
}

// runInit writes a config file from interactive answers.
func runInit(reader *bufio.Reader, out io.Writer) error {
	fmt.Fprintln(out, "appland configuration setup")
	fmt.Fprintln(out, "===========================")
	fmt.Fprintln(out)

	defaultDataPath := getDataPath()

	outputFile := prompt(reader, out, "Config file path", getConfigPath())

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, out, "File exists. Overwrite?", "no")
		if !isYes(overwrite) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	fmt.Fprintln(out, "\n--- Server Configuration ---")
	httpAddr := prompt(reader, out, "HTTP address", config.DefaultHTTPAddr)

	fmt.Fprintln(out, "\n--- Store Configuration ---")
	backend := prompt(reader, out, "Backend (sqlite/postgres/memory)", config.BackendSQLite)
	var dbPath, dsn string
	switch backend {
	case config.BackendSQLite:
		dbPath = prompt(reader, out, "SQLite database path", filepath.Join(defaultDataPath, "appland.db"))
	case config.BackendPostgres:
		dsn = prompt(reader, out, "PostgreSQL DSN", "${APPLAND_DSN}")
	case config.BackendMemory:
	default:
		return fmt.Errorf("unknown backend %q", backend)
	}
	markerPath := prompt(reader, out, "Seed marker path", filepath.Join(defaultDataPath, "marker.toml"))

	fmt.Fprintln(out, "\n--- Admin Configuration ---")
	password := prompt(reader, out, "Admin password", config.DefaultPassword)
	var passwordHash string
	if isYes(prompt(reader, out, "Store the password as a bcrypt hash?", "yes")) {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hashing password: %w", err)
		}
		passwordHash = string(hash)
	}

	fmt.Fprintln(out, "\n--- Clock Configuration ---")
	timeZone := prompt(reader, out, "Time zone", config.DefaultTimeZone)
	if _, err := time.LoadLocation(timeZone); err != nil {
		return fmt.Errorf("unknown time zone %q", timeZone)
	}

	fmt.Fprintln(out, "\n--- Logging Configuration ---")
	logLevel := prompt(reader, out, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, out, "Log format (text/json)", "text")

	secret, err := config.GenerateSecret()
	if err != nil {
		return err
	}

	var cfg strings.Builder
	cfg.WriteString("# appland configuration\n")
	cfg.WriteString("# Generated by appland init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: %q\n\n", httpAddr))

	cfg.WriteString("store:\n")
	cfg.WriteString(fmt.Sprintf("  backend: %q\n", backend))
	if dbPath != "" {
		cfg.WriteString(fmt.Sprintf("  path: %q\n", dbPath))
	}
	if dsn != "" {
		cfg.WriteString(fmt.Sprintf("  dsn: %q\n", dsn))
		cfg.WriteString("  poll_interval: \"5s\"\n")
	}
	cfg.WriteString("  write_timeout: \"10s\"\n\n")

	cfg.WriteString("marker:\n")
	cfg.WriteString(fmt.Sprintf("  path: %q\n\n", markerPath))

	cfg.WriteString("admin:\n")
	if passwordHash != "" {
		cfg.WriteString(fmt.Sprintf("  password_hash: %q\n\n", passwordHash))
	} else {
		cfg.WriteString(fmt.Sprintf("  password: %q\n\n", password))
	}

	cfg.WriteString("views:\n")
	cfg.WriteString(fmt.Sprintf("  token_secret: %q\n", secret))
	cfg.WriteString("  idle_ttl: \"30m\"\n")
	cfg.WriteString(fmt.Sprintf("  max_views: %d\n\n", config.DefaultMaxViews))

	cfg.WriteString("clock:\n")
	cfg.WriteString(fmt.Sprintf("  time_zone: %q\n", timeZone))
	cfg.WriteString("  tick: \"1s\"\n\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: %q\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: %q\n", logFormat))

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// The file holds the token secret
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
	}

	fmt.Fprintf(out, "\nConfig written to %s\n", outputFile)
	fmt.Fprintln(out, "\nTo start the server:")
	fmt.Fprintln(out, "  appland serve")

	return nil
}

func isYes(answer string) bool {
	answer = strings.ToLower(answer)
	return answer == "yes" || answer == "y"
}

func prompt(reader *bufio.Reader, out io.Writer, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "%s [%s]: ", question, defaultVal)
	} else {
		fmt.Fprintf(out, "%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		// On EOF or error, return default
		fmt.Fprintln(out)
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
