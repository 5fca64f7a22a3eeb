package auth

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

type middleware func(http.HandlerFunc) http.HandlerFunc

// chainMiddleware wraps h so the first middleware runs outermost.
func chainMiddleware(h http.HandlerFunc, mw ...middleware) http.HandlerFunc {
	chained := h
	for i := len(mw) - 1; i >= 0; i-- {
		chained = mw[i](chained)
	}
	return chained
}

func loggingMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("Callback request")
		next(w, r)
	}
}

func recoverMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().Interface("panic", rec).Msg("Callback handler panicked")
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		}()
		next(w, r)
	}
}

// noStoreMiddleware keeps the page carrying the authorization code out of caches and frames.
func noStoreMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "frame-ancestors 'none'")
		next(w, r)
	}
}
