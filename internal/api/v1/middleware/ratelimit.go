package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/chatrelay/relay/internal/logger"
	"github.com/chatrelay/relay/internal/metrics"
	"github.com/chatrelay/relay/pkg/httpext"
	"github.com/chatrelay/relay/pkg/ratelimit"
	"github.com/rs/zerolog"
)

// RateLimit rejects clients that exceed the store's budget for route. A nil
// store disables limiting. Store failures let the request through.
func RateLimit(store ratelimit.Store, route string, collector *metrics.Collector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)

			allowed, err := store.Allow(r.Context(), route+":"+ip)
			if err != nil {
				zerolog.Ctx(r.Context()).Error().
					Err(err).
					Str("component", logger.MIDDLEWARE).
					Str("route", route).
					Msg("Rate limit store unavailable, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			if !allowed {
				zerolog.Ctx(r.Context()).Warn().
					Str("component", logger.MIDDLEWARE).
					Str("client_ip", ip).
					Str("route", route).
					Msg("Rate limit exceeded")
				collector.RecordRateLimited(route)
				httpext.JsonError(w, httpext.TypeRateLimited, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP uses the first X-Forwarded-For hop if behind a proxy, otherwise
// the remote address without its port.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
