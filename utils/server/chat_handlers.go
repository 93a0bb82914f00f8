package server

import (
	"net/http"

	"github.com/kris-hansen/personaflow/utils/domain"
)

func (s *Server) handleChatSend(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	if req.AnalysisID == "" {
		writeError(w, http.StatusBadRequest, "analysis_id is required")
		return
	}
	turn, err := s.deps.Chat.Ask(r.Context(), req.AnalysisID, req.Message, req.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, turn)
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	turns, err := s.deps.Chat.History(r.Context(), r.PathValue("runId"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if turns == nil {
		turns = []*domain.Turn{}
	}
	writeJSON(w, http.StatusOK, turns)
}

func (s *Server) handleChatClear(w http.ResponseWriter, r *http.Request) {
	if _, err := s.deps.Chat.Clear(r.Context(), r.PathValue("runId")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: "Chat history cleared successfully"})
}

func (s *Server) handleChatSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.deps.Chat.Summarize(r.Context(), r.PathValue("runId"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleChatCompare(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	comparison, err := s.deps.Chat.Compare(r.Context(), req.AnalysisIDs)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comparison)
}
