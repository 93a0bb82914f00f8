package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/kris-hansen/personaflow/utils/config"
)

func checkAuth(serverConfig *config.ServerConfig, w http.ResponseWriter, r *http.Request) bool {
	if !serverConfig.Enabled {
		config.DebugLog("Auth check skipped: server auth is disabled")
		return true
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		config.VerboseLog("Missing Authorization header")
		writeError(w, http.StatusUnauthorized, "Authorization header required")
		return false
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		config.VerboseLog("Invalid authorization header format")
		config.DebugLog("Auth failed: malformed Authorization header: %s", maskToken(authHeader))
		writeError(w, http.StatusUnauthorized, "Invalid authorization header format")
		return false
	}

	if parts[1] != serverConfig.BearerToken {
		config.VerboseLog("Invalid bearer token")
		writeError(w, http.StatusUnauthorized, "Invalid bearer token")
		return false
	}

	config.DebugLog("Auth successful: valid bearer token")
	return true
}

// withCORS adds the configured CORS headers and answers preflight requests
func withCORS(cors config.CORS, next http.Handler) http.Handler {
	if !cors.Enabled {
		return next
	}
	origins := cors.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	methods := cors.AllowedMethods
	if len(methods) == 0 {
		methods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	}
	headers := cors.AllowedHeaders
	if len(headers) == 0 {
		headers = []string{"Authorization", "Content-Type"}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowed := ""
		for _, o := range origins {
			if o == "*" || o == origin {
				allowed = o
				break
			}
		}
		if allowed != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowed)
			w.Header().Set("Access-Control-Allow-Methods", strings.Join(methods, ", "))
			w.Header().Set("Access-Control-Allow-Headers", strings.Join(headers, ", "))
			if cors.MaxAge > 0 {
				w.Header().Set("Access-Control-Max-Age", strconv.Itoa(cors.MaxAge))
			}
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
