package mcp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"

	"github.com/kuitang/notes-api/internal/errs"
	"github.com/kuitang/notes-api/internal/logutil"
	"github.com/kuitang/notes-api/internal/notes"
	"github.com/kuitang/notes-api/internal/obs"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// ServerName and ServerVersion are reported in the MCP initialize result.
	ServerName    = "notes-api"
	ServerVersion = "1.0.0"

	maxMCPBodyBytes           = 1 << 20
	mcpDebugBodyLogLimitBytes = 8 * 1024
	jsonRPCInternalError      = -32603
)

// Server wraps the MCP server with notes handling
type Server struct {
	mcpServer   *mcp.Server
	handler     *Handler
	httpHandler http.Handler
	debug       bool
}

type mcpResponseLogger struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
	capture     bool
	body        []byte
	truncated   bool
}

func newMCPResponseLogger(w http.ResponseWriter, capture bool) *mcpResponseLogger {
	return &mcpResponseLogger{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
		capture:        capture,
	}
}

func (w *mcpResponseLogger) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.statusCode = code
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *mcpResponseLogger) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if w.capture {
		if remaining := mcpDebugBodyLogLimitBytes - len(w.body); remaining > 0 {
			if len(p) <= remaining {
				w.body = append(w.body, p...)
			} else {
				w.body = append(w.body, p[:remaining]...)
				w.truncated = true
			}
		} else {
			w.truncated = true
		}
	}
	return w.ResponseWriter.Write(p)
}

func (w *mcpResponseLogger) Flush() {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (w *mcpResponseLogger) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *mcpResponseLogger) loggedBody() string {
	if len(w.body) == 0 {
		return ""
	}
	text := logutil.FormatBodyForLog(w.Header().Get("Content-Type"), w.body, mcpDebugBodyLogLimitBytes)
	if w.truncated {
		return text + " [truncated]"
	}
	return text
}

// NewServer creates the MCP server exposing the note tools. With debugLogging set,
// request and response bodies are logged (redacted and truncated).
func NewServer(notesSvc *notes.Service, debugLogging bool) *Server {
	handler := NewHandler(notesSvc)

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)

	for _, tool := range ToolDefinitions() {
		toolCopy := tool
		mcp.AddTool(mcpServer, toolCopy, handler.createToolHandler(toolCopy.Name))
	}
	registerPrompts(mcpServer)

	// Stateless with JSON responses: every POST is self-contained, so the
	// initialize handshake and SSE streams are not needed.
	httpHandler := mcp.NewStreamableHTTPHandler(
		func(*http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			JSONResponse: true,
			Stateless:    true,
		},
	)

	return &Server{
		mcpServer:   mcpServer,
		handler:     handler,
		httpHandler: httpHandler,
		debug:       debugLogging,
	}
}

// ServeHTTP implements http.Handler for the Streamable HTTP transport.
// Only POST (client messages) and DELETE (session end) are served; GET would
// open a server-to-client SSE stream, which a stateless JSON server never uses.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := obs.From(r.Context())

	if r.Method != http.MethodPost && r.Method != http.MethodDelete {
		w.Header().Set("Allow", "POST, DELETE")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var reqBody []byte
	if r.Body != nil && r.Method == http.MethodPost {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMCPBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				logger.Warn("mcp_request_too_large", "limit_bytes", maxMCPBodyBytes)
				http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
				return
			}
			logger.Error("mcp_request_body_read_failed", "error", err)
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}
		reqBody = body
		r.Body = io.NopCloser(bytes.NewReader(reqBody))
	}

	if s.debug {
		logger.Debug("mcp_request",
			"method", r.Method,
			"headers", logutil.FormatHeadersForLog(r.Header),
			"body", logutil.FormatBodyForLog(r.Header.Get("Content-Type"), reqBody, mcpDebugBodyLogLimitBytes),
		)
	}

	respLogger := newMCPResponseLogger(w, s.debug)
	if !s.delegate(respLogger, r) {
		return
	}

	if !respLogger.wroteHeader {
		logger.Error("mcp_no_response", "method", r.Method)
		writeJSONRPCError(respLogger, "MCP handler returned without writing response")
		return
	}

	if s.debug {
		logger.Debug("mcp_response",
			"status", respLogger.statusCode,
			"content_type", respLogger.Header().Get("Content-Type"),
			"body", respLogger.loggedBody(),
		)
	}
	if respLogger.statusCode >= http.StatusBadRequest {
		logger.Warn("mcp_request_failed", "method", r.Method, "status", respLogger.statusCode)
	}
}

// delegate runs the SDK handler and reports whether it returned normally.
// A panic is logged and answered with a JSON-RPC internal error when possible.
func (s *Server) delegate(w *mcpResponseLogger, r *http.Request) (ok bool) {
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		if rec == http.ErrAbortHandler {
			panic(rec)
		}
		obs.From(r.Context()).Error("mcp_panic_recovered",
			"panic", fmt.Sprint(rec),
			"stack", string(debug.Stack()),
		)
		if !w.wroteHeader {
			writeJSONRPCError(w, errs.InternalMessage)
		}
		ok = false
	}()
	s.httpHandler.ServeHTTP(w, r)
	return true
}

type jsonRPCErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type jsonRPCErrorResponse struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      any              `json:"id"`
	Error   jsonRPCErrorBody `json:"error"`
}

func writeJSONRPCError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(jsonRPCErrorResponse{
		JSONRPC: "2.0",
		Error:   jsonRPCErrorBody{Code: jsonRPCInternalError, Message: message},
	})
}
