package config

import (
	"bytes"
	"errors"
	"flag"
	"log/slog"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/kuitang/notes-api/internal/ratelimit"
	"pgregory.net/rapid"
)

var configEnvKeys = []string{
	"HOST", "PORT", "LISTEN_ADDR", "LOG_LEVEL", "DEBUG",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "RATE_LIMIT_CLEANUP_INTERVAL", "SHUTDOWN_TIMEOUT",
}

// clearConfigEnv blanks every variable LoadConfig reads. Empty counts as unset.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvKeys {
		t.Setenv(key, "")
	}
}

func validTestConfig() Config {
	return Config{
		ListenAddr:       "127.0.0.1:3000",
		ShutdownTimeout:  5 * time.Second,
		LogLevel:         slog.LevelInfo,
		RateLimitEnabled: true,
		RateLimitConfig:  ratelimit.DefaultConfig,
		MCPEnabled:       true,
	}
}

func validationErrors(t *testing.T, err error) []string {
	t.Helper()
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected *ValidationError, got %T (%v)", err, err)
	}
	return vErr.Errors
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := LoadConfig(Flags{})
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.ListenAddr != "0.0.0.0:3000" {
		t.Fatalf("ListenAddr = %q, want 0.0.0.0:3000", cfg.ListenAddr)
	}
	if cfg.LogLevel != slog.LevelInfo || cfg.Debug {
		t.Fatalf("unexpected logging defaults: level=%v debug=%v", cfg.LogLevel, cfg.Debug)
	}
	if !cfg.RateLimitEnabled || cfg.RateLimitConfig != ratelimit.DefaultConfig {
		t.Fatalf("unexpected rate limit defaults: enabled=%v cfg=%+v", cfg.RateLimitEnabled, cfg.RateLimitConfig)
	}
	if !cfg.MCPEnabled {
		t.Fatal("MCP should be enabled by default")
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Fatalf("ShutdownTimeout = %v, want 10s", cfg.ShutdownTimeout)
	}
}

func TestLoadConfig_AddressPrecedence(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("PORT", "4000")

	cfg, err := LoadConfig(Flags{})
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:4000" {
		t.Fatalf("HOST/PORT: got %q", cfg.ListenAddr)
	}

	t.Setenv("LISTEN_ADDR", ":5000")
	cfg, err = LoadConfig(Flags{})
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.ListenAddr != ":5000" {
		t.Fatalf("LISTEN_ADDR should win over HOST/PORT: got %q", cfg.ListenAddr)
	}

	cfg, err = LoadConfig(Flags{Addr: "localhost:6000"})
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.ListenAddr != "localhost:6000" {
		t.Fatalf("--addr should win over LISTEN_ADDR: got %q", cfg.ListenAddr)
	}
}

func TestLoadConfig_FlagsAndDebug(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := LoadConfig(Flags{NoRateLimit: true, NoMCP: true})
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.RateLimitEnabled || cfg.MCPEnabled {
		t.Fatalf("flags not applied: %+v", cfg)
	}
	if cfg.LogLevel != slog.LevelWarn {
		t.Fatalf("LogLevel = %v, want warn", cfg.LogLevel)
	}

	t.Setenv("DEBUG", "yes")
	cfg, err = LoadConfig(Flags{})
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if !cfg.Debug || cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("DEBUG env should force debug level: debug=%v level=%v", cfg.Debug, cfg.LogLevel)
	}
}

func TestLoadConfig_BadValuesAggregated(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("LOG_LEVEL", "chatty")
	t.Setenv("RATE_LIMIT_RPS", "fast")
	t.Setenv("RATE_LIMIT_BURST", "-3")
	t.Setenv("SHUTDOWN_TIMEOUT", "soon")

	_, err := LoadConfig(Flags{})
	problems := validationErrors(t, err)
	joined := strings.Join(problems, "\n")
	for _, want := range []string{"LOG_LEVEL", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "SHUTDOWN_TIMEOUT"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected a problem mentioning %s, got:\n%s", want, joined)
		}
	}
}

func TestLoadConfig_RateLimitValuesIgnoredWhenDisabled(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("RATE_LIMIT_BURST", "0")

	if _, err := LoadConfig(Flags{NoRateLimit: true}); err != nil {
		t.Fatalf("burst should not be validated with --no-ratelimit: %v", err)
	}
	if _, err := LoadConfig(Flags{}); err == nil {
		t.Fatal("expected zero burst to fail validation")
	}
}

func TestValidate_MinimalConfigPasses(t *testing.T) {
	cfg := validTestConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func testValidate_RejectsBadPorts(t *rapid.T) {
	port := rapid.OneOf(
		rapid.Map(rapid.IntRange(65536, 1<<20), strconv.Itoa),
		rapid.StringMatching(`[a-z]{1,6}`),
	).Draw(t, "port")

	cfg := validTestConfig()
	cfg.ListenAddr = "127.0.0.1:" + port
	err := cfg.Validate()
	var vErr *ValidationError
	if !errors.As(err, &vErr) || len(vErr.Errors) != 1 {
		t.Fatalf("port %q: expected exactly one validation error, got %v", port, err)
	}
}

func TestValidate_RejectsBadPorts(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testValidate_RejectsBadPorts)
}

func FuzzValidate_RejectsBadPorts(f *testing.F) {
	f.Fuzz(rapid.MakeFuzz(testValidate_RejectsBadPorts))
}

func TestValidate_RejectsAddressWithoutPort(t *testing.T) {
	cfg := validTestConfig()
	cfg.ListenAddr = "localhost"
	if problems := validationErrors(t, cfg.Validate()); len(problems) != 1 {
		t.Fatalf("expected one problem, got %v", problems)
	}
}

func TestParseFlags(t *testing.T) {
	f, err := ParseFlags([]string{"--addr", ":9000", "--no-ratelimit", "--no-mcp", "--debug"})
	if err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	want := Flags{Addr: ":9000", NoRateLimit: true, NoMCP: true, Debug: true}
	if f != want {
		t.Fatalf("ParseFlags = %+v, want %+v", f, want)
	}

	if _, err := ParseFlags([]string{"extra"}); err == nil {
		t.Fatal("expected error for positional arguments")
	}
	if _, err := ParseFlags([]string{"-h"}); !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("expected flag.ErrHelp, got %v", err)
	}
}

func TestGetEnvOrDefault_TrimsWhitespace(t *testing.T) {
	t.Setenv("CFG_TEST_STR", "   value   ")
	if got := getEnvOrDefault("CFG_TEST_STR", "fallback"); got != "value" {
		t.Fatalf("getEnvOrDefault trim mismatch: got=%q want=%q", got, "value")
	}
	t.Setenv("CFG_TEST_STR", "   ")
	if got := getEnvOrDefault("CFG_TEST_STR", "fallback"); got != "fallback" {
		t.Fatalf("blank value should fall back: got=%q", got)
	}
}

func TestWriteStartupSummary(t *testing.T) {
	cfg := validTestConfig()
	cfg.MCPEnabled = false

	var buf bytes.Buffer
	cfg.writeStartupSummary(&buf)
	out := buf.String()
	for _, want := range []string{"127.0.0.1:3000", "disabled (--no-mcp)", "DELETE /api/notes/{id}", "burst 40"} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}
}
