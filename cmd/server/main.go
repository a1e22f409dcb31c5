// Notes API server: an in-memory notes CRUD service over JSON/HTTP, with an
// optional MCP endpoint exposing the same notes to agents.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kuitang/notes-api/internal/api"
	"github.com/kuitang/notes-api/internal/config"
	"github.com/kuitang/notes-api/internal/mcp"
	"github.com/kuitang/notes-api/internal/notes"
	"github.com/kuitang/notes-api/internal/obs"
	"github.com/kuitang/notes-api/internal/ratelimit"
)

const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 120 * time.Second
)

func main() {
	flags, err := config.ParseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	obs.Init(cfg.LogLevel)
	cfg.PrintStartupSummary()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		obs.Pkg("main").Error("server_failed", "error", err)
		os.Exit(1)
	}
}

// run listens on cfg.ListenAddr and serves until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config) error {
	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.ListenAddr, err)
	}

	handler, cleanup := buildHandler(cfg, notes.NewSeededStore())
	defer cleanup()

	return serve(ctx, ln, handler, cfg.ShutdownTimeout)
}

// buildHandler wires the API (and MCP, when enabled) onto one mux and wraps
// it in the middleware chain. cleanup stops background work such as the
// rate limiter's sweeper.
func buildHandler(cfg *config.Config, store *notes.Store) (http.Handler, func()) {
	notesSvc := notes.NewService(store)

	mux := http.NewServeMux()
	api.NewHandler(notesSvc).RegisterRoutes(mux)
	if cfg.MCPEnabled {
		mountMCPRoute(mux, "/mcp", mcp.NewServer(notesSvc, cfg.Debug))
	}

	var handler http.Handler = mux
	cleanup := func() {}
	if cfg.RateLimitEnabled {
		limiter := ratelimit.NewRateLimiter(cfg.RateLimitConfig)
		handler = ratelimit.RateLimitMiddleware(limiter, apiClientKey)(handler)
		cleanup = limiter.Stop
	}

	handler = api.CORSMiddleware(handler)
	handler = api.RecoverMiddleware(handler)
	handler = obs.AccessLogMiddleware("http", handler)
	handler = obs.RequestContextMiddleware(handler)
	return handler, cleanup
}

// mountMCPRoute registers every Streamable HTTP method on path so the MCP
// server, not the JSON 404 fallback, answers them.
func mountMCPRoute(mux *http.ServeMux, path string, handler http.Handler) {
	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions} {
		mux.Handle(method+" "+path, handler)
	}
}

// apiClientKey limits /api requests per client IP; everything else bypasses.
func apiClientKey(r *http.Request) string {
	if r.URL.Path != "/api" && !strings.HasPrefix(r.URL.Path, "/api/") {
		return ""
	}
	return ratelimit.ClientIP(r)
}

func serve(ctx context.Context, ln net.Listener, handler http.Handler, shutdownTimeout time.Duration) error {
	logger := obs.Pkg("main")
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server_listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("server_shutting_down", "timeout", shutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("server_stopped")
	return nil
}
