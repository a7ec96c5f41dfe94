// ABOUTME: Server orchestrator that wires the store, live sync, clock, and web UI
// ABOUTME: Owns the HTTP server and the background loops and their shutdown order

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/2389/appland/internal/config"
	"github.com/2389/appland/internal/dashboard"
	"github.com/2389/appland/internal/marker"
	"github.com/2389/appland/internal/store"
	"github.com/2389/appland/internal/webui"
)

// Server runs the dashboard.
type Server struct {
	config     *config.Config
	store      store.DocumentStore
	marker     marker.Marker
	writer     *dashboard.StoreWriter
	binding    *dashboard.Binding
	ticker     *dashboard.Ticker
	ui         *webui.UI
	httpServer *http.Server
	logger     *slog.Logger

	// stopLoops cancels the binding and clock loops
	stopLoops context.CancelFunc
	loopsDone chan struct{}
}

// OpenStore opens the document store selected by cfg.
func OpenStore(cfg config.StoreConfig) (store.DocumentStore, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		path := cfg.Path
		if envPath := os.Getenv("APPLAND_DB_PATH"); envPath != "" {
			path = envPath
		}
		s, err := store.NewSQLiteStore(path)
		if err != nil {
			return nil, fmt.Errorf("initializing store: %w", err)
		}
		return s, nil
	case config.BackendPostgres:
		s, err := store.NewPostgresStore(cfg.DSN, cfg.PollInterval)
		if err != nil {
			return nil, fmt.Errorf("initializing store: %w", err)
		}
		return s, nil
	case config.BackendMemory:
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// newGate builds the admin gate, preferring the bcrypt hash when configured.
func newGate(cfg config.AdminConfig) (*dashboard.Gate, error) {
	if cfg.PasswordHash != "" {
		gate, err := dashboard.NewHashedGate(cfg.PasswordHash)
		if err != nil {
			return nil, fmt.Errorf("admin.password_hash: %w", err)
		}
		return gate, nil
	}
	return dashboard.NewGate(cfg.Password), nil
}

// New creates a server with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s, err := OpenStore(cfg.Store)
	if err != nil {
		return nil, err
	}
	srv, err := NewWithStore(cfg, s, marker.NewFileMarker(cfg.Marker.Path), logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return srv, nil
}

// NewWithStore creates a server around an already opened store and marker.
// The server owns the store and closes it on shutdown.
func NewWithStore(cfg *config.Config, s store.DocumentStore, m marker.Marker, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	loc, err := cfg.Clock.Location()
	if err != nil {
		return nil, fmt.Errorf("loading time zone: %w", err)
	}

	gate, err := newGate(cfg.Admin)
	if err != nil {
		return nil, err
	}

	writer := dashboard.NewStoreWriter(s, cfg.Store.WriteTimeout, logger)
	binding := dashboard.NewBinding(s, m, writer, logger)
	ticker := dashboard.NewTicker(cfg.Clock.Tick, loc, logger)

	ui, err := webui.New(binding, ticker, gate, writer, webui.Config{
		TokenSecret: []byte(cfg.Views.TokenSecret),
		IdleTTL:     cfg.Views.IdleTTL,
		MaxViews:    cfg.Views.MaxViews,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating web UI: %w", err)
	}

	srv := &Server{
		config:  cfg,
		store:   s,
		marker:  m,
		writer:  writer,
		binding: binding,
		ticker:  ticker,
		ui:      ui,
		logger:  logger.With("component", "server"),
	}

	mux := http.NewServeMux()

	// Health endpoints
	mux.HandleFunc("GET /health", srv.handleHealth)
	mux.HandleFunc("GET /health/ready", srv.handleReady)

	ui.RegisterRoutes(mux)

	srv.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return srv, nil
}

// Handler returns the HTTP handler serving all routes.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// startLoops starts live sync and the clock. They run until stopLoops.
func (s *Server) startLoops() {
	ctx, cancel := context.WithCancel(context.Background())
	s.stopLoops = cancel
	s.loopsDone = make(chan struct{})

	// Store trouble never stops the server; the dashboard keeps its last list.
	bindingDone := make(chan struct{})
	go func() {
		defer close(bindingDone)
		if err := s.binding.Run(ctx); err != nil {
			s.logger.Error("live sync unavailable, serving without live updates", "error", err)
		}
	}()

	go func() {
		s.ticker.Run(ctx)
		<-bindingDone
		close(s.loopsDone)
	}()
}

// startHTTP serves HTTP on ln in a goroutine.
func (s *Server) startHTTP(ln net.Listener, errCh chan<- error) {
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()
}

// Run starts the server and blocks until ctx is cancelled or a component
// fails. Returns nil on graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	s.startLoops()
	s.startHTTP(ln, errCh)

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := s.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown runs Shutdown with a fresh timeout; the run context is
// already canceled.
func (s *Server) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops the loops, then HTTP, then waits for pending writes before
// closing the store. Stopping the loops first ends every open stream.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")

	if s.stopLoops != nil {
		s.stopLoops()
		select {
		case <-s.loopsDone:
		case <-ctx.Done():
		}
	}

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", s.httpServer.Shutdown(ctx))

	s.writer.Wait()
	s.ui.Close()
	errs = appendCloseError(errs, "store close", s.store.Close())

	return errors.Join(errs...)
}

// handleHealth returns 200 OK if the server is alive.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK once the app list has been loaded from the store.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.binding.Synced() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("app list not loaded"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d apps, %d views)", len(s.binding.Apps()), s.ui.Views())
}
