package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kris-hansen/personaflow/utils/config"
	"github.com/stretchr/testify/assert"
)

func TestCheckAuth(t *testing.T) {
	cfg := &config.ServerConfig{Enabled: true, BearerToken: "secret-token-1234"}

	tests := []struct {
		name   string
		header string
		want   bool
	}{
		{name: "missing header", header: "", want: false},
		{name: "wrong scheme", header: "Basic secret-token-1234", want: false},
		{name: "extra parts", header: "Bearer secret token", want: false},
		{name: "wrong token", header: "Bearer nope", want: false},
		{name: "valid token", header: "Bearer secret-token-1234", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/personas", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			assert.Equal(t, tt.want, checkAuth(cfg, w, r))
			if !tt.want {
				assert.Equal(t, http.StatusUnauthorized, w.Code)
				assert.Contains(t, w.Body.String(), `"success":false`)
			}
		})
	}
}

func TestCheckAuthDisabled(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/personas", nil)
	assert.True(t, checkAuth(&config.ServerConfig{}, httptest.NewRecorder(), r))
}

func TestWithCORS(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := withCORS(config.CORS{Enabled: true, AllowedOrigins: []string{"https://app.example"}, MaxAge: 600}, ok)

	t.Run("preflight", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodOptions, "/analysis/execute", nil)
		r.Header.Set("Origin", "https://app.example")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "600", w.Header().Get("Access-Control-Max-Age"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")
	})

	t.Run("foreign origin", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/personas", nil)
		r.Header.Set("Origin", "https://evil.example")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		assert.Equal(t, http.StatusTeapot, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("disabled", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodOptions, "/personas", nil)
		w := httptest.NewRecorder()
		withCORS(config.CORS{}, ok).ServeHTTP(w, r)
		assert.Equal(t, http.StatusTeapot, w.Code)
	})
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "****", maskToken("short"))
	assert.Equal(t, "abcd****wxyz", maskToken("abcdefghijklmnopqrstuvwxyz"))
}
