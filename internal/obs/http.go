package obs

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// maxRequestIDLen bounds caller-supplied X-Request-Id values.
const maxRequestIDLen = 128

// ResponseRecorder remembers the status and body size written through it.
type ResponseRecorder struct {
	http.ResponseWriter
	status  int
	written int64
	started bool
}

// NewResponseRecorder wraps w. Flush is forwarded when w supports it,
// which the MCP transport relies on.
func NewResponseRecorder(w http.ResponseWriter) *ResponseRecorder {
	return &ResponseRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (r *ResponseRecorder) WriteHeader(code int) {
	if r.started {
		return
	}
	r.status, r.started = code, true
	r.ResponseWriter.WriteHeader(code)
}

func (r *ResponseRecorder) Write(p []byte) (int, error) {
	r.started = true
	n, err := r.ResponseWriter.Write(p)
	r.written += int64(n)
	return n, err
}

func (r *ResponseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		r.started = true
		f.Flush()
	}
}

func (r *ResponseRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// StatusCode is the status sent, or 200 if nothing was sent yet.
func (r *ResponseRecorder) StatusCode() int { return r.status }

func (r *ResponseRecorder) RespBytes() int64 { return r.written }

// WroteHeader reports whether the response has started.
func (r *ResponseRecorder) WroteHeader() bool { return r.started }

// RequestContextMiddleware stores the request's correlation fields in its
// context and echoes the request id in X-Request-Id. The id comes from a
// well-formed X-Request-Id, then from the traceparent trace id, and is
// generated otherwise.
func RequestContextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceparent := strings.TrimSpace(r.Header.Get("traceparent"))
		traceID := traceIDFromTraceparent(traceparent)
		tracestate := ""
		if traceID == "" {
			traceparent = ""
		} else {
			tracestate = tracestateHeader(r.Header.Get("tracestate"))
		}

		requestID := strings.TrimSpace(r.Header.Get("X-Request-Id"))
		if !validRequestID(requestID) {
			requestID = traceID
		}
		if requestID == "" {
			requestID = "req-" + uuid.NewString()
		}
		w.Header().Set("X-Request-Id", requestID)

		ctx := WithCorrelation(r.Context(), Correlation{
			RequestID:    requestID,
			TraceID:      traceID,
			Traceparent:  traceparent,
			Tracestate:   tracestate,
			MCPSessionID: strings.TrimSpace(r.Header.Get("Mcp-Session-Id")),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AccessLogMiddleware logs one http_access event per request, at warn for
// 4xx and error for 5xx responses.
func AccessLogMiddleware(pkg string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := NewResponseRecorder(w)
		next.ServeHTTP(rec, r)

		attrs := []any{
			"pkg", pkg,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.StatusCode(),
			"dur_ms", float64(time.Since(start).Microseconds()) / 1000.0,
			"req_bytes", max(r.ContentLength, 0),
			"resp_bytes", rec.RespBytes(),
		}
		if r.URL.RawQuery != "" {
			attrs = append(attrs, "query", r.URL.RawQuery)
		}
		From(r.Context()).Log(r.Context(), accessLevel(rec.StatusCode()), "http_access", attrs...)
	})
}

func accessLevel(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	}
	return slog.LevelInfo
}

// maxTracestateLen is the W3C propagation limit for tracestate.
const maxTracestateLen = 512

// tracestateHeader returns v trimmed, or "" when it is over the limit.
func tracestateHeader(v string) string {
	v = strings.TrimSpace(v)
	if len(v) > maxTracestateLen || strings.ContainsAny(v, "\r\n") {
		return ""
	}
	return v
}

// validRequestID accepts short tokens of letters, digits and ._:- only, so
// a caller cannot inject arbitrary text into logs and response headers.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '.', c == '_', c == ':', c == '-':
		default:
			return false
		}
	}
	return true
}

// traceIDFromTraceparent returns the trace id of a W3C traceparent header
// (version-traceid-spanid-flags), or "" when the header is malformed or
// the trace id is all zeros.
func traceIDFromTraceparent(header string) string {
	fields := strings.Split(strings.TrimSpace(header), "-")
	if len(fields) != 4 {
		return ""
	}
	id := strings.ToLower(fields[1])
	if len(id) != 32 || strings.Trim(id, "0") == "" {
		return ""
	}
	if strings.IndexFunc(id, func(c rune) bool {
		return !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f')
	}) >= 0 {
		return ""
	}
	return id
}
