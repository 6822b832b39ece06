package ratelimit

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Middleware classifies each request into a category, resolves the client
// identity and consults the limiter. Denied requests get 429 with a
// Retry-After header and are never forwarded.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.enabled {
			next.ServeHTTP(w, r)
			return
		}

		category := Classify(r.URL.Path)
		client := ClientIP(r)

		ok, retryAfter := l.Allow(client, category)
		if !ok {
			seconds := int(retryAfter / time.Second)
			if retryAfter%time.Second > 0 {
				seconds++
			}
			// Denials are expected traffic shaping, already counted by
			// denialsTotal; keep them out of the normal log stream.
			l.log.WithFields(map[string]interface{}{
				"client":   client,
				"category": category,
				"path":     r.URL.Path,
			}).Debug("rate limit exceeded")

			w.Header().Set("Retry-After", strconv.Itoa(seconds))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error":       "too many requests",
				"retry_after": seconds,
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Classify maps a request path to a limiter category.
func Classify(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/auth"):
		return "auth"
	case strings.HasPrefix(path, "/api/tasks/download"):
		return "download"
	case strings.HasPrefix(path, "/api/upload"):
		return "upload"
	case strings.HasPrefix(path, "/api/"):
		return "api"
	default:
		return "default"
	}
}

// ClientIP resolves the caller identity, trusting proxy headers before
// falling back to the socket address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.SplitN(fwd, ",", 2)[0])
		if first != "" {
			return first
		}
	}
	if real := strings.TrimSpace(r.Header.Get("X-Real-IP")); real != "" {
		return real
	}
	if cf := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); cf != "" {
		return cf
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
