// Package urlutil builds absolute URLs for resources as the client reached them.
package urlutil

import (
	"net/http"
	"strings"
)

// Origin returns scheme://host for r. The scheme honours the first
// X-Forwarded-Proto value when it is http or https. An empty string means
// the request carried no Host.
func Origin(r *http.Request) string {
	if r == nil {
		return ""
	}
	host := strings.TrimSpace(r.Host)
	if host == "" {
		return ""
	}
	return requestScheme(r) + "://" + host
}

// Absolute joins path onto the origin of r. Without a usable origin the
// rooted path is returned on its own, which is still a valid Location value.
func Absolute(r *http.Request, path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return Origin(r) + path
}

func requestScheme(r *http.Request) string {
	proto := strings.TrimSpace(r.Header.Get("X-Forwarded-Proto"))
	if comma := strings.Index(proto, ","); comma >= 0 {
		proto = strings.TrimSpace(proto[:comma])
	}
	switch strings.ToLower(proto) {
	case "http", "https":
		return strings.ToLower(proto)
	}

	if r.TLS != nil {
		return "https"
	}
	return "http"
}
