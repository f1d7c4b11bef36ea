package api

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

type middleware func(http.Handler) http.Handler

// chainMiddleware wraps h so that the first middleware is the outermost.
func chainMiddleware(h http.Handler, m ...middleware) http.Handler {
	for i := len(m) - 1; i >= 0; i-- {
		h = m[i](h)
	}
	return h
}

var (
	recoverHandler middleware = chimiddleware.Recoverer
	realIPHandler  middleware = chimiddleware.RealIP
	// contextLogger gives every request its own copy of the global logger.
	contextLogger middleware = func(next http.Handler) http.Handler {
		return hlog.NewHandler(log.Logger)(next)
	}
)

// loggerHandler writes one access line per request, unless skip says otherwise.
func loggerHandler(skip func(r *http.Request) bool) middleware {
	return hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		if skip != nil && skip(r) {
			return
		}
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Int("status", status).
			Int("bytes", size).
			Dur("duration", duration).
			Msg("request")
	})
}

const requestIDHeader = "X-Request-ID"

var requestIDHandler middleware = hlog.RequestIDHandler("request_id", requestIDHeader)

var corsHandler middleware = cors.New(cors.Options{
	AllowedOrigins: []string{"*"},
	AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
	AllowedHeaders: []string{"Authorization", "Content-Type", principalHeader, requestIDHeader},
	ExposedHeaders: []string{requestIDHeader},
}).Handler
