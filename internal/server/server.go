package server

import (
	"context"
	"fmt"
	"html"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jpalmerr/rankboard/internal/board"
	"github.com/jpalmerr/rankboard/internal/feed"
	"github.com/jpalmerr/rankboard/internal/format"
	"github.com/jpalmerr/rankboard/internal/metrics"
	"github.com/jpalmerr/rankboard/internal/rank"
	"github.com/jpalmerr/rankboard/internal/reconcile"
	"github.com/jpalmerr/rankboard/internal/store"
)

const (
	// sseWriteTimeout bounds a single SSE write. Must be <= the shutdown
	// timeout so slow clients cannot hold up shutdown.
	sseWriteTimeout = 5 * time.Second

	shutdownTimeout = 5 * time.Second

	// maxRequestBodySize caps snapshot and command bodies.
	maxRequestBodySize = 1 << 20

	defaultTitle = "Rankboard"

	// titlePlaceholder is the marker in HTML replaced with the title.
	titlePlaceholder = "{{.Title}}"
)

// Board is the subset of [board.Board] the server reads and writes.
type Board interface {
	Apply(ctx context.Context, batch []reconcile.Record) (board.Frame, error)
	Latest() board.Frame
	Current(key string) (rank.Result, error)
	Entities() []store.Entity
	Entity(name string) (store.Entity, bool)
	Subscribe() <-chan board.Frame
	Unsubscribe(ch <-chan board.Frame)
	Keys() []string
	RankingKey() string
}

// Config holds the optional parts of a [Server].
type Config struct {
	// Port is the TCP port to listen on.
	Port int

	// Assets holds assets/index.html. Nil disables the dashboard route.
	Assets fs.FS

	// Title replaces {{.Title}} in the dashboard. Defaults to "Rankboard".
	Title string

	// TopN is the default leaderboard length. Zero means every entity.
	TopN int

	// Format renders values for display. Defaults to [format.Magnitude].
	Format func(float64) string

	// Commander receives add, remove and set commands. Nil answers them
	// with 501 Not Implemented.
	Commander feed.Commander

	// Metrics is served on /metrics when set.
	Metrics *metrics.Metrics

	Logger *slog.Logger
}

// Server serves the dashboard, the JSON API and the live streams.
//
// Routes:
//   - GET /: embedded dashboard
//   - GET /api/leaderboard: ranking with display values
//   - GET /api/entities, GET /api/entities/{name}: entity series
//   - POST /api/snapshot: ingest a complete batch
//   - POST /api/entities, PUT|DELETE /api/entities/{name}: producer commands
//   - GET /api/sse: Server-Sent Events stream of frames
//   - GET /api/ws: WebSocket stream of leaderboards, accepting commands
//   - GET /metrics: Prometheus exposition
//
// The server shuts down gracefully when the context passed to Start is
// cancelled.
type Server struct {
	board      Board
	cfg        Config
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a [Server] over b. It is not listening until
// [Server.Start] is called.
func NewServer(b Board, cfg Config) *Server {
	if cfg.Format == nil {
		cfg.Format = format.Magnitude
	}
	if cfg.Title == "" {
		cfg.Title = defaultTitle
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		board:  b,
		cfg:    cfg,
		logger: logger,
	}
}

// Handler returns the router with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/leaderboard", s.handleLeaderboard)
	mux.HandleFunc("GET /api/entities", s.handleEntities)
	mux.HandleFunc("GET /api/entities/{name}", s.handleEntity)
	mux.HandleFunc("POST /api/entities", s.handleAddEntity)
	mux.HandleFunc("PUT /api/entities/{name}", s.handleSetEntity)
	mux.HandleFunc("DELETE /api/entities/{name}", s.handleRemoveEntity)
	mux.HandleFunc("POST /api/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /api/sse", s.handleSSE)
	mux.HandleFunc("GET /api/ws", s.handleWS)

	if s.cfg.Metrics != nil {
		mux.Handle("GET /metrics", s.cfg.Metrics.Handler())
	}
	if s.cfg.Assets != nil {
		mux.HandleFunc("GET /", s.handleDashboard)
	}

	return mux
}

// Start binds the port and serves in a background goroutine.
//
// Start returns once the listener is bound, or with an error if it cannot
// be. Cancelling ctx triggers a graceful shutdown with a 5-second timeout.
func (s *Server) Start(ctx context.Context) error {
	// listen first so a busy port is reported synchronously
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.cfg.Port, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// request contexts derive from ctx so streams end on shutdown
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	s.logger.Info("http server listening", "addr", ln.Addr().String())
	return nil
}

// handleDashboard serves the dashboard page with the title substituted.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	if s.cfg.Assets == nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	content, err := fs.ReadFile(s.cfg.Assets, "assets/index.html")
	if err != nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	// escape to prevent XSS through the configured title
	rendered := strings.ReplaceAll(string(content), titlePlaceholder, html.EscapeString(s.cfg.Title))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err = w.Write([]byte(rendered)); err != nil {
		s.logger.Error("failed to write dashboard response", "error", err)
	}
}
