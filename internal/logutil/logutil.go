// Package logutil formats request headers and bodies for debug logs without
// leaking credentials.
package logutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

const redacted = "[REDACTED]"

var sensitiveFragments = []string{"token", "secret", "password", "apikey", "cookie", "auth"}

// IsSensitiveLogField returns true when a key likely contains sensitive data.
func IsSensitiveLogField(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	normalized = strings.NewReplacer("-", "", "_", "").Replace(normalized)
	for _, frag := range sensitiveFragments {
		if strings.Contains(normalized, frag) {
			return true
		}
	}
	return false
}

// FormatHeadersForLog returns stable, redacted header text for logs.
func FormatHeadersForLog(headers http.Header) string {
	if len(headers) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		values := headers.Values(k)
		if IsSensitiveLogField(k) {
			values = []string{redacted}
		}
		parts = append(parts, fmt.Sprintf("%s=%q", strings.ToLower(k), strings.Join(values, ", ")))
	}
	return strings.Join(parts, "; ")
}

// FormatBodyForLog truncates a body to maxBytes and redacts sensitive JSON fields.
// Non-JSON bodies, and JSON that fails to parse after truncation, are logged as text.
func FormatBodyForLog(contentType string, body []byte, maxBytes int) string {
	if len(body) == 0 {
		return ""
	}
	truncated := false
	if maxBytes > 0 && len(body) > maxBytes {
		body = body[:maxBytes]
		truncated = true
	}
	text := redactJSON(contentType, body)
	if truncated {
		return text + " [truncated]"
	}
	return text
}

func redactJSON(contentType string, body []byte) string {
	if !strings.Contains(strings.ToLower(contentType), "json") {
		return string(body)
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return string(body)
	}

	var walk func(v any)
	walk = func(v any) {
		switch typed := v.(type) {
		case map[string]any:
			for k, child := range typed {
				if IsSensitiveLogField(k) {
					typed[k] = redacted
					continue
				}
				walk(child)
			}
		case []any:
			for _, child := range typed {
				walk(child)
			}
		}
	}
	walk(payload)

	safe, err := json.Marshal(payload)
	if err != nil {
		return string(body)
	}
	return string(safe)
}

// TruncateForLog returns a single-line truncated preview for unstructured values.
func TruncateForLog(value string, maxChars int) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	normalized := strings.ReplaceAll(trimmed, "\n", "\\n")
	if maxChars <= 0 || len(normalized) <= maxChars {
		return normalized
	}
	return normalized[:maxChars] + "... [truncated]"
}
