// Package obs owns the process logger and the per-request correlation
// fields every log line of a request carries.
package obs

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// ServiceName tags every log line.
const ServiceName = "notes-api"

// logTimeLayout matches the millisecond UTC stamps notes carry.
const logTimeLayout = "2006-01-02T15:04:05.000Z"

// Correlation identifies the request a log line belongs to.
type Correlation struct {
	RequestID    string
	TraceID      string
	Traceparent  string
	Tracestate   string
	MCPSessionID string
}

func (c Correlation) attrs() []any {
	out := make([]any, 0, 10)
	for _, kv := range [...]struct{ key, val string }{
		{"request_id", c.RequestID},
		{"trace_id", c.TraceID},
		{"traceparent", c.Traceparent},
		{"tracestate", c.Tracestate},
		{"mcp_session_id", c.MCPSessionID},
	} {
		if kv.val != "" {
			out = append(out, kv.key, kv.val)
		}
	}
	return out
}

// merge overlays the non-empty fields of c onto base.
func (c Correlation) merge(base Correlation) Correlation {
	if c.RequestID != "" {
		base.RequestID = c.RequestID
	}
	if c.TraceID != "" {
		base.TraceID = c.TraceID
	}
	if c.Traceparent != "" {
		base.Traceparent = c.Traceparent
	}
	if c.Tracestate != "" {
		base.Tracestate = c.Tracestate
	}
	if c.MCPSessionID != "" {
		base.MCPSessionID = c.MCPSessionID
	}
	return base
}

type correlationKey struct{}

var (
	mu    sync.RWMutex
	root  *slog.Logger
	level = new(slog.LevelVar)
)

// Init installs the JSON logger on stderr as the slog default.
// Once installed, later calls only move the level.
func Init(lvl slog.Level) {
	level.Set(lvl)

	mu.Lock()
	defer mu.Unlock()
	if root == nil {
		install(os.Stderr)
	}
}

// SetOutputForTests points the logger at w with debug enabled and returns
// a func restoring the previous logger and level.
func SetOutputForTests(w io.Writer) func() {
	mu.Lock()
	prevRoot, prevLevel := root, level.Level()
	level.Set(slog.LevelDebug)
	install(w)
	mu.Unlock()

	return func() {
		mu.Lock()
		defer mu.Unlock()
		level.Set(prevLevel)
		if prevRoot == nil {
			install(os.Stderr)
			return
		}
		root = prevRoot
		slog.SetDefault(root)
	}
}

// install must be called with mu held.
func install(w io.Writer) {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: stampUTC,
	})
	root = slog.New(h).With("service", ServiceName)
	slog.SetDefault(root)
}

func stampUTC(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 || a.Key != slog.TimeKey {
		return a
	}
	if t, ok := a.Value.Any().(time.Time); ok {
		return slog.String(slog.TimeKey, t.UTC().Format(logTimeLayout))
	}
	return a
}

func base() *slog.Logger {
	mu.RLock()
	l := root
	mu.RUnlock()
	if l != nil {
		return l
	}
	Init(level.Level())
	mu.RLock()
	defer mu.RUnlock()
	return root
}

// ParseLevel maps debug|info|warn|error to a slog level. The empty string is info.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, true
	case "debug":
		return slog.LevelDebug, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

// Pkg returns a logger tagged with pkg, for code running outside a request.
func Pkg(pkg string) *slog.Logger {
	return base().With("pkg", pkg)
}

// From returns a logger carrying the correlation fields stored in ctx.
func From(ctx context.Context) *slog.Logger {
	attrs := CorrelationFromContext(ctx).attrs()
	if len(attrs) == 0 {
		return base()
	}
	return base().With(attrs...)
}

// WithCorrelation stores corr in ctx. Empty fields keep what ctx already had.
func WithCorrelation(ctx context.Context, corr Correlation) context.Context {
	return context.WithValue(ctx, correlationKey{}, corr.merge(CorrelationFromContext(ctx)))
}

// CorrelationFromContext returns the correlation fields stored in ctx, if any.
func CorrelationFromContext(ctx context.Context) Correlation {
	if ctx == nil {
		return Correlation{}
	}
	corr, _ := ctx.Value(correlationKey{}).(Correlation)
	return corr
}
