// Package config loads the notes server configuration from CLI flags and
// environment variables, validates it, and provides sensible defaults.
//
// CLI flags switch optional surfaces off (--no-ratelimit, --no-mcp) and
// override the listen address (--addr). Environment variables carry everything else.
package config

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kuitang/notes-api/internal/obs"
	"github.com/kuitang/notes-api/internal/ratelimit"
)

const (
	defaultHost            = "0.0.0.0"
	defaultPort            = "3000"
	defaultShutdownTimeout = 10 * time.Second
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	ListenAddr      string
	ShutdownTimeout time.Duration

	// Logging
	LogLevel slog.Level
	Debug    bool // Verbose MCP request/response logging (--debug or DEBUG)

	// Rate limiting
	RateLimitEnabled bool
	RateLimitConfig  ratelimit.Config

	// MCP endpoint
	MCPEnabled bool

	// problems found while parsing, reported by Validate
	parseErrors []string
}

// Flags holds the parsed command line.
type Flags struct {
	Addr        string
	NoRateLimit bool
	NoMCP       bool
	Debug       bool
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// ParseFlags parses the server flags from args (normally os.Args[1:]).
func ParseFlags(args []string) (Flags, error) {
	var f Flags
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.StringVar(&f.Addr, "addr", "", "Listen address (overrides LISTEN_ADDR and HOST/PORT)")
	fs.BoolVar(&f.NoRateLimit, "no-ratelimit", false, "Disable per-client rate limiting on /api")
	fs.BoolVar(&f.NoMCP, "no-mcp", false, "Do not mount the MCP endpoint at /mcp")
	fs.BoolVar(&f.Debug, "debug", false, "Debug logging, including MCP request and response bodies")
	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}
	if fs.NArg() > 0 {
		return Flags{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return f, nil
}

// LoadConfig loads configuration from environment variables and CLI flag values,
// then validates it.
func LoadConfig(flags Flags) (*Config, error) {
	cfg := &Config{}

	// Server settings: --addr > LISTEN_ADDR > HOST:PORT
	cfg.ListenAddr = net.JoinHostPort(getEnvOrDefault("HOST", defaultHost), getEnvOrDefault("PORT", defaultPort))
	if addr := getEnvOrDefault("LISTEN_ADDR", ""); addr != "" {
		cfg.ListenAddr = addr
	}
	if flags.Addr != "" {
		cfg.ListenAddr = flags.Addr
	}
	cfg.ShutdownTimeout = cfg.parseDuration("SHUTDOWN_TIMEOUT", defaultShutdownTimeout)

	// Logging
	cfg.Debug = flags.Debug || isTruthy(os.Getenv("DEBUG"))
	cfg.LogLevel = slog.LevelInfo
	if raw := getEnvOrDefault("LOG_LEVEL", ""); raw != "" {
		lvl, ok := obs.ParseLevel(raw)
		if !ok {
			cfg.parseErrors = append(cfg.parseErrors, fmt.Sprintf("LOG_LEVEL must be one of debug, info, warn, error (got %q)", raw))
		}
		cfg.LogLevel = lvl
	}
	if cfg.Debug {
		cfg.LogLevel = slog.LevelDebug
	}

	// Rate limiting
	defaults := ratelimit.DefaultConfig
	cfg.RateLimitEnabled = !flags.NoRateLimit
	cfg.RateLimitConfig = ratelimit.Config{
		RPS:             cfg.parseFloat64("RATE_LIMIT_RPS", defaults.RPS),
		Burst:           cfg.parseInt("RATE_LIMIT_BURST", defaults.Burst),
		CleanupInterval: cfg.parseDuration("RATE_LIMIT_CLEANUP_INTERVAL", defaults.CleanupInterval),
	}

	cfg.MCPEnabled = !flags.NoMCP

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	errs := append([]string(nil), c.parseErrors...)

	if _, port, err := net.SplitHostPort(c.ListenAddr); err != nil {
		errs = append(errs, fmt.Sprintf("listen address %q must be host:port", c.ListenAddr))
	} else if n, err := strconv.Atoi(port); err != nil || n < 0 || n > 65535 {
		errs = append(errs, fmt.Sprintf("listen port %q must be a number between 0 and 65535", port))
	}

	if c.ShutdownTimeout <= 0 {
		errs = append(errs, "SHUTDOWN_TIMEOUT must be positive")
	}

	if c.RateLimitEnabled {
		if c.RateLimitConfig.RPS <= 0 {
			errs = append(errs, "RATE_LIMIT_RPS must be positive (or use --no-ratelimit)")
		}
		if c.RateLimitConfig.Burst <= 0 {
			errs = append(errs, "RATE_LIMIT_BURST must be positive (or use --no-ratelimit)")
		}
		if c.RateLimitConfig.CleanupInterval <= 0 {
			errs = append(errs, "RATE_LIMIT_CLEANUP_INTERVAL must be positive")
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// PrintStartupSummary prints a human-readable summary of the configuration to stderr.
func (c *Config) PrintStartupSummary() {
	c.writeStartupSummary(os.Stderr)
}

func (c *Config) writeStartupSummary(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "notes-api server starting...")
	fmt.Fprintf(w, "  Listen:     %s\n", c.ListenAddr)
	fmt.Fprintf(w, "  Log level:  %s\n", strings.ToLower(c.LogLevel.String()))

	if c.RateLimitEnabled {
		fmt.Fprintf(w, "  Rate limit: %g req/s, burst %d per client\n", c.RateLimitConfig.RPS, c.RateLimitConfig.Burst)
	} else {
		fmt.Fprintln(w, "  Rate limit: disabled (--no-ratelimit)")
	}
	if c.MCPEnabled {
		fmt.Fprintln(w, "  MCP:        /mcp (Streamable HTTP)")
	} else {
		fmt.Fprintln(w, "  MCP:        disabled (--no-mcp)")
	}

	fmt.Fprintln(w, "  Endpoints:")
	for _, route := range []string{
		"GET    /api/health",
		"GET    /api/notes",
		"GET    /api/notes/{id}",
		"GET    /api/notes/{id}/html",
		"POST   /api/notes",
		"PUT    /api/notes/{id}",
		"DELETE /api/notes/{id}",
	} {
		fmt.Fprintf(w, "    %s\n", route)
	}
	fmt.Fprintln(w, "")
}

// Helper functions for parsing environment variables

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func isTruthy(v string) bool {
	switch strings.TrimSpace(strings.ToLower(v)) {
	case "1", "true", "yes", "on", "debug":
		return true
	default:
		return false
	}
}

func (c *Config) parseInt(key string, defaultValue int) int {
	value := getEnvOrDefault(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		c.parseErrors = append(c.parseErrors, fmt.Sprintf("%s must be an integer (got %q)", key, value))
		return defaultValue
	}
	return parsed
}

func (c *Config) parseFloat64(key string, defaultValue float64) float64 {
	value := getEnvOrDefault(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		c.parseErrors = append(c.parseErrors, fmt.Sprintf("%s must be a number (got %q)", key, value))
		return defaultValue
	}
	return parsed
}

func (c *Config) parseDuration(key string, defaultValue time.Duration) time.Duration {
	value := getEnvOrDefault(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		c.parseErrors = append(c.parseErrors, fmt.Sprintf("%s must be a duration like 10s or 5m (got %q)", key, value))
		return defaultValue
	}
	return parsed
}
