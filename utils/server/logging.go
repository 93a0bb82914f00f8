package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/kris-hansen/personaflow/utils/config"
	"github.com/kris-hansen/personaflow/utils/metrics"
)

func logRequest(route string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		// Build auth info string, masking the token
		var authInfo string
		if auth := r.Header.Get("Authorization"); auth != "" {
			authInfo = maskToken(auth)
		}

		config.DebugLog("Request details:")
		config.DebugLog("- Remote Address: %s", r.RemoteAddr)
		config.DebugLog("- Content Length: %d", r.ContentLength)
		config.DebugLog("- Content Type: %s", r.Header.Get("Content-Type"))
		config.VerboseLog("Incoming request: %s %s", r.Method, r.URL.String())

		handler(wrapped, r)

		duration := time.Since(start)
		metrics.RequestCount.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.statusCode)).Inc()
		metrics.RequestDuration.WithLabelValues(r.Method, route).Observe(duration.Seconds())

		if wrapped.statusCode >= 400 {
			config.DebugLog("Error response: status=%d bytes=%d path=%s", wrapped.statusCode, wrapped.written, r.URL.Path)
		}

		log := config.Logger("http")
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("query", r.URL.RawQuery).
			Str("auth", authInfo).
			Int("status", wrapped.statusCode).
			Int64("bytes", wrapped.written).
			Dur("duration", duration).
			Msg("request")
	}
}
