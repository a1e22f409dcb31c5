package mcp

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kuitang/notes-api/internal/notes"
	"github.com/kuitang/notes-api/internal/obs"
)

func postRPC(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	req.Header.Set("Accept", "application/json, text/event-stream")
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

func TestServeHTTP_RecoversPanicWith500(t *testing.T) {
	server := &Server{
		httpHandler: http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("simulated panic")
		}),
	}

	resp := postRPC(t, server, `{"jsonrpc":"2.0","method":"tools/list","id":1}`)

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d body=%q", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), "Internal server error") {
		t.Fatalf("expected internal error body, got %q", resp.Body.String())
	}
}

func TestServeHTTP_NoWriteFromDelegateReturns500(t *testing.T) {
	server := &Server{
		httpHandler: http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}),
	}

	resp := postRPC(t, server, `{"jsonrpc":"2.0","method":"tools/list","id":1}`)

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d body=%q", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), "MCP handler returned without writing response") {
		t.Fatalf("expected no-response fallback body, got %q", resp.Body.String())
	}
}

func TestServeHTTP_RequestBodyTooLargeReturns413(t *testing.T) {
	t.Parallel()
	server := &Server{
		httpHandler: http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			t.Error("delegate should not be called when request is oversized")
		}),
	}

	resp := postRPC(t, server, strings.Repeat("a", maxMCPBodyBytes+1))

	if resp.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 for oversized request, got %d body=%q", resp.Code, resp.Body.String())
	}
}

func TestServeHTTP_GETReturns405WithAllowHeader(t *testing.T) {
	t.Parallel()
	server := &Server{
		httpHandler: http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			t.Error("delegate should not be called for GET")
		}),
	}

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	resp := httptest.NewRecorder()
	server.ServeHTTP(resp, req)

	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d body=%q", resp.Code, resp.Body.String())
	}
	allow := resp.Header().Get("Allow")
	if !strings.Contains(allow, "POST") || !strings.Contains(allow, "DELETE") {
		t.Fatalf("unexpected Allow header: %q", allow)
	}
}

func TestServeHTTP_DebugLogsRedactedHeaders(t *testing.T) {
	var buf bytes.Buffer
	restore := obs.SetOutputForTests(&buf)
	defer restore()

	server := &Server{
		debug: true,
		httpHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{}}`))
		}),
	}

	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{"jsonrpc":"2.0","method":"ping","id":1}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer s3cr3t-token-value")
	resp := httptest.NewRecorder()
	server.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	logs := buf.String()
	if strings.Contains(logs, "s3cr3t-token-value") {
		t.Fatalf("authorization header leaked into logs: %s", logs)
	}
	for _, event := range []string{`"msg":"mcp_request"`, `"msg":"mcp_response"`} {
		if !strings.Contains(logs, event) {
			t.Fatalf("expected %s in logs: %s", event, logs)
		}
	}
}

func TestNewServer_ToolsCallOverHTTP(t *testing.T) {
	t.Parallel()
	server := NewServer(notes.NewService(notes.NewSeededStore()), false)

	resp := postRPC(t, server, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"note_view","arguments":{"id":2}}}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%q", resp.Code, resp.Body.String())
	}

	var rpc struct {
		Result struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
			IsError bool `json:"isError"`
		} `json:"result"`
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &rpc); err != nil {
		t.Fatalf("invalid JSON-RPC response: %v body=%q", err, resp.Body.String())
	}
	if len(rpc.Error) > 0 {
		t.Fatalf("unexpected JSON-RPC error: %s", rpc.Error)
	}
	if rpc.Result.IsError || len(rpc.Result.Content) == 0 {
		t.Fatalf("unexpected tool result: %+v", rpc.Result)
	}

	var note notes.Note
	if err := json.Unmarshal([]byte(rpc.Result.Content[0].Text), &note); err != nil {
		t.Fatalf("invalid note JSON: %v", err)
	}
	if note.ID != 2 || note.Title != "Вторая заметка" {
		t.Fatalf("unexpected note: %+v", note)
	}
}

func TestNewServer_ToolsList(t *testing.T) {
	t.Parallel()
	server := NewServer(notes.NewService(notes.NewStore()), false)

	resp := postRPC(t, server, `{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{}}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%q", resp.Code, resp.Body.String())
	}

	var rpc struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &rpc); err != nil {
		t.Fatalf("invalid JSON-RPC response: %v body=%q", err, resp.Body.String())
	}
	names := make(map[string]bool, len(rpc.Result.Tools))
	for _, tool := range rpc.Result.Tools {
		names[tool.Name] = true
	}
	for _, def := range ToolDefinitions() {
		if !names[def.Name] {
			t.Fatalf("tool %q missing from tools/list: %v", def.Name, names)
		}
	}
}

func TestNewServer_PromptsListAndGet(t *testing.T) {
	t.Parallel()
	server := NewServer(notes.NewService(notes.NewStore()), false)

	resp := postRPC(t, server, `{"jsonrpc":"2.0","id":1,"method":"prompts/list","params":{}}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("prompts/list: expected 200, got %d body=%q", resp.Code, resp.Body.String())
	}
	var list struct {
		Result struct {
			Prompts []struct {
				Name  string `json:"name"`
				Title string `json:"title"`
			} `json:"prompts"`
		} `json:"result"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &list); err != nil {
		t.Fatalf("invalid JSON-RPC response: %v body=%q", err, resp.Body.String())
	}
	if len(list.Result.Prompts) != 1 || list.Result.Prompts[0].Name != notesWorkflowPromptName {
		t.Fatalf("unexpected prompts: %+v", list.Result.Prompts)
	}

	resp = postRPC(t, server, `{"jsonrpc":"2.0","id":2,"method":"prompts/get","params":{"name":"notes_workflow"}}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("prompts/get: expected 200, got %d body=%q", resp.Code, resp.Body.String())
	}
	var got struct {
		Result struct {
			Messages []struct {
				Role    string `json:"role"`
				Content struct {
					Type string `json:"type"`
					Text string `json:"text"`
				} `json:"content"`
			} `json:"messages"`
		} `json:"result"`
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON-RPC response: %v body=%q", err, resp.Body.String())
	}
	if len(got.Error) > 0 || len(got.Result.Messages) != 1 {
		t.Fatalf("unexpected prompts/get result: %s", resp.Body.String())
	}
	msg := got.Result.Messages[0]
	if msg.Role != "user" || msg.Content.Type != "text" {
		t.Fatalf("unexpected prompt message: %+v", msg)
	}
	for _, tool := range ToolDefinitions() {
		if !strings.Contains(msg.Content.Text, tool.Name) {
			t.Fatalf("prompt text does not mention %s: %q", tool.Name, msg.Content.Text)
		}
	}

	resp = postRPC(t, server, `{"jsonrpc":"2.0","id":3,"method":"prompts/get","params":{"name":"no_such_prompt"}}`)
	var missing struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &missing); err != nil || len(missing.Error) == 0 {
		t.Fatalf("expected JSON-RPC error for unknown prompt, got %q", resp.Body.String())
	}
}
