package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

// unknownClient buckets requests whose origin cannot be determined. They
// share one rate window rather than bypassing the limiter.
const unknownClient = "unknown"

// ClientKey derives the rate-limit identity for a request: the first
// X-Forwarded-For entry when present, else the connection's host address.
func ClientKey(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if trimmed := strings.TrimSpace(first); trimmed != "" {
			return trimmed
		}
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return unknownClient
}
