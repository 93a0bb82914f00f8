package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kris-hansen/personaflow/utils/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server represents the HTTP server
type Server struct {
	mux    *http.ServeMux
	config *config.ServerConfig
	deps   *Deps
}

// NewServer creates the HTTP API over deps
func NewServer(serverConfig *config.ServerConfig, deps *Deps) *Server {
	s := &Server{
		mux:    http.NewServeMux(),
		config: serverConfig,
		deps:   deps,
	}
	s.routes()
	return s
}

// Handler returns the root handler with CORS applied
func (s *Server) Handler() http.Handler {
	return withCORS(s.config.CORS, s.mux)
}

// handle registers h under pattern. route is the label used in logs and metrics.
func (s *Server) handle(pattern, route string, h http.HandlerFunc) {
	s.mux.HandleFunc(pattern, logRequest(route, func(w http.ResponseWriter, r *http.Request) {
		if !checkAuth(s.config, w, r) {
			return
		}
		h(w, r)
	}))
}

// routes sets up the server routes
func (s *Server) routes() {
	// unauthenticated
	s.mux.HandleFunc("GET /health", logRequest("/health", s.handleHealth))
	s.mux.Handle("GET /metrics", promhttp.Handler())

	s.handle("GET /{$}", "/", s.handleDashboard)

	s.handle("GET /personas", "/personas", s.handleListPersonas)
	s.handle("POST /personas", "/personas", s.handleCreatePersona)
	s.handle("GET /personas/{id}", "/personas/{id}", s.handleGetPersona)
	s.handle("DELETE /personas/{id}", "/personas/{id}", s.handleDeletePersona)

	s.handle("GET /pipelines", "/pipelines", s.handleListPipelines)
	s.handle("POST /pipelines", "/pipelines", s.handleCreatePipeline)
	s.handle("GET /pipelines/{id}", "/pipelines/{id}", s.handleGetPipeline)

	s.handle("POST /analysis/execute", "/analysis/execute", s.handleExecute)
	s.handle("GET /analysis/{id}", "/analysis/{id}", s.handleGetRun)
	s.handle("GET /analysis/user/{userId}", "/analysis/user/{userId}", s.handleUserRuns)

	s.handle("POST /chat/send", "/chat/send", s.handleChatSend)
	s.handle("GET /chat/{runId}/history", "/chat/{runId}/history", s.handleChatHistory)
	s.handle("DELETE /chat/{runId}/history", "/chat/{runId}/history", s.handleChatClear)
	s.handle("GET /chat/{runId}/summary", "/chat/{runId}/summary", s.handleChatSummary)
	s.handle("POST /chat/compare", "/chat/compare", s.handleChatCompare)

	s.handle("POST /documents/upload", "/documents/upload", s.handleUpload)
}

// Run builds every service, serves the API and shuts down on SIGINT or SIGTERM
func Run(envConfig *config.EnvConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverConfig := envConfig.GetServerConfig()
	if err := os.MkdirAll(serverConfig.DataDir, 0755); err != nil {
		return fmt.Errorf("error creating data directory: %v", err)
	}

	deps, err := OpenDeps(ctx, envConfig)
	if err != nil {
		return err
	}
	defer deps.Close()
	if deps.Sweeper != nil {
		deps.Sweeper.Start()
	}

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", serverConfig.Port),
		Handler:     NewServer(serverConfig, deps).Handler(),
		ReadTimeout: 30 * time.Second,
		// analyses run several model calls in one request
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	fmt.Printf("Starting server on port %d...\n", serverConfig.Port)
	fmt.Printf("Storage: %s\n", envConfig.Storage.Driver)
	if serverConfig.Enabled {
		fmt.Println("Authentication is enabled. Bearer token required.")
		fmt.Printf("Example usage: curl -H 'Authorization: Bearer %s' http://localhost:%d/personas\n",
			maskToken(serverConfig.BearerToken), serverConfig.Port)
	} else {
		fmt.Printf("Example usage: curl http://localhost:%d/personas\n", serverConfig.Port)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed to start: %v", err)
		}
		return nil
	case <-ctx.Done():
		fmt.Println("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
