package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/chatrelay/relay/internal/logger"
	"github.com/chatrelay/relay/pkg/httpext"
	"github.com/rs/zerolog"
)

func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}

				zerolog.Ctx(r.Context()).Error().
					Str("component", logger.MIDDLEWARE).
					Interface("panic", err).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Bytes("stack", debug.Stack()).
					Msg("Panic in handler")

				httpext.JsonError(w, httpext.TypeInternalError,
					"An internal error occurred. Please try again later.", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
