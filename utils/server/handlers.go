package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/kris-hansen/personaflow/utils/config"
	"github.com/kris-hansen/personaflow/utils/domain"
	"github.com/kris-hansen/personaflow/utils/persona"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
		Services: map[string]string{
			"personas": "active",
			"executor": "active",
			"chat":     "active",
		},
	})
}

func (s *Server) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Personas.List(r.Context()))
}

func (s *Server) handleGetPersona(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Personas.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCreatePersona(w http.ResponseWriter, r *http.Request) {
	var req CreatePersonaRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	focus := req.Focus
	if len(focus) == 0 {
		focus = req.AnalysisFocus
	}

	p, err := s.deps.Personas.Create(r.Context(), persona.Spec{
		Name:        req.Name,
		Description: req.Description,
		Template:    req.PromptTemplate,
		FocusTags:   focus,
		CreatedBy:   req.CreatedBy,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Model:       req.Model,
		Independent: req.Independent,
		Strategy:    req.Strategy,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	config.VerboseLog("Created persona %s (%s)", p.ID, p.Name)
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleDeletePersona(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	deleted, err := s.deps.Personas.Delete(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "Persona not found or not deletable")
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: "Persona deleted successfully"})
}

func (s *Server) handleListPipelines(w http.ResponseWriter, r *http.Request) {
	pipelines, err := s.deps.Executor.ListPipelines(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pipelines)
}

func (s *Server) handleGetPipeline(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Executor.GetPipeline(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCreatePipeline(w http.ResponseWriter, r *http.Request) {
	var req CreatePipelineRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	p, err := s.deps.Executor.CreatePipeline(r.Context(), req.Name, req.Description, req.PersonaIDs, req.CreatedBy)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.deps.Store.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleUserRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.deps.Store.ListRunsForUser(r.Context(), r.PathValue("userId"))
	if err != nil {
		writeDomainError(w, fmt.Errorf("error listing runs: %w", err))
		return
	}
	if runs == nil {
		runs = []*domain.RunResult{}
	}
	writeJSON(w, http.StatusOK, runs)
}
