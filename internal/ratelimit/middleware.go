package ratelimit

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"

	"github.com/kuitang/notes-api/internal/errs"
	"github.com/kuitang/notes-api/internal/obs"
)

const msgTooManyRequests = "Too many requests"

// ClientIP keys requests by the host part of RemoteAddr.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimitMiddleware rejects requests whose client has run out of tokens.
//
// Requests whose key is empty bypass limiting. Rejected requests get 429 with
// the API error envelope, X-RateLimit-Remaining: 0 and a Retry-After header
// holding the whole seconds until the client's next token.
func RateLimitMiddleware(limiter *RateLimiter, keyFunc func(r *http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			d := limiter.Take(key)
			if !d.Allowed {
				retry := d.RetryAfterSeconds()
				obs.From(r.Context()).Warn("rate_limited", "client", key, "path", r.URL.Path, "retry_after_s", retry)
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(errs.HTTPStatus(errs.ResourceExhausted))
				json.NewEncoder(w).Encode(map[string]any{
					"success": false,
					"error":   msgTooManyRequests,
				})
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			next.ServeHTTP(w, r)
		})
	}
}
