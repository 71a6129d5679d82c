package middleware

import (
	"net/http"
	"time"

	"github.com/chatrelay/relay/internal/logger"
	"github.com/chatrelay/relay/internal/metrics"
	"github.com/rs/zerolog"
)

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written bool
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (rw *statusRecorder) WriteHeader(code int) {
	if !rw.written {
		rw.status = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := newStatusRecorder(w)

		next.ServeHTTP(rw, r)

		level := zerolog.InfoLevel
		switch {
		case rw.status >= 500:
			level = zerolog.ErrorLevel
		case rw.status >= 400:
			level = zerolog.WarnLevel
		}

		zerolog.Ctx(r.Context()).WithLevel(level).
			Str("component", logger.MIDDLEWARE).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rw.status).
			Dur("latency", time.Since(start)).
			Str("client_ip", clientIP(r)).
			Msg("Request completed")
	})
}

// Instrument records request count and latency for one provider route.
func Instrument(collector *metrics.Collector, provider string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if collector == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newStatusRecorder(w)

			next.ServeHTTP(rw, r)

			collector.RecordRequest(provider, rw.status, time.Since(start))
		})
	}
}
