package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kris-hansen/personaflow/utils/config"
	"github.com/kris-hansen/personaflow/utils/domain"
	"github.com/kris-hansen/personaflow/utils/processor"
)

// progressEvent is the JSON payload of an SSE progress event
type progressEvent struct {
	Type    string              `json:"type"`
	Message string              `json:"message,omitempty"`
	Step    *processor.StepInfo `json:"step,omitempty"`
	RunID   string              `json:"run_id,omitempty"`
	Error   string              `json:"error,omitempty"`
}

func newProgressEvent(u processor.ProgressUpdate) progressEvent {
	ev := progressEvent{
		Type:    u.Type.String(),
		Message: u.Message,
		Step:    u.Step,
		RunID:   u.RunID,
	}
	if u.Error != nil {
		ev.Error = u.Error.Error()
	}
	return ev
}

type runFunc func(ctx context.Context, opts ...processor.RunOption) (*domain.RunResult, error)

// document builds the executor input from the request text or URL
func (s *Server) document(ctx context.Context, req ExecuteRequest) (processor.Document, error) {
	doc := processor.Document{
		Name:      req.DocumentName,
		Content:   req.DocumentContent,
		Variables: req.Variables,
	}
	if doc.Name == "" {
		doc.Name = req.Filename
	}

	if req.DocumentURL != "" {
		page, err := s.deps.Scraper.Fetch(ctx, req.DocumentURL)
		if err != nil {
			return doc, err
		}
		doc.Content = page.Document()
		if doc.Name == "" {
			doc.Name = page.Name()
		}
	}
	if strings.TrimSpace(doc.Content) == "" {
		return doc, fmt.Errorf("%w: document_content or document_url is required", domain.ErrValidation)
	}
	if doc.Name == "" {
		doc.Name = "document"
	}
	return doc, nil
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	streaming := r.URL.Query().Get("streaming") == "true" || r.Header.Get("Accept") == "text/event-stream"

	var req ExecuteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	pipelineID := req.PipelineID
	if pipelineID == "" {
		pipelineID = req.WorkflowID
	}
	if pipelineID == "" && len(req.PersonaIDs) == 0 {
		writeError(w, http.StatusBadRequest, "pipeline_id or persona_ids is required")
		return
	}

	doc, err := s.document(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	run := func(ctx context.Context, opts ...processor.RunOption) (*domain.RunResult, error) {
		if pipelineID != "" {
			return s.deps.Executor.Execute(ctx, pipelineID, doc, req.UserID, opts...)
		}
		return s.deps.Executor.ExecuteSequence(ctx, req.PersonaIDs, doc, req.UserID, opts...)
	}

	config.VerboseLog("Executing %s on %s (streaming=%v)", pipelineID, doc.Name, streaming)
	if streaming {
		s.streamExecute(w, r, run)
		return
	}

	res, err := run(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// streamExecute runs the analysis while forwarding progress as SSE events.
// The stream ends with a result or an error event.
func (s *Server) streamExecute(w http.ResponseWriter, r *http.Request, run runFunc) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming is not supported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	sw := &sseWriter{w: w, f: flusher}

	ctx := r.Context()
	updates := make(chan processor.ProgressUpdate, 16)
	progress := processor.NewChannelProgressWriter(ctx, updates)

	type outcome struct {
		res *domain.RunResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := run(ctx, processor.WithProgress(progress))
		done <- outcome{res, err}
	}()

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			config.DebugLog("[SSE] Client disconnected")
			return
		case u := <-updates:
			sw.SendProgress(newProgressEvent(u))
		case <-heartbeat.C:
			sw.SendHeartbeat()
		case o := <-done:
			for drained := false; !drained; {
				select {
				case u := <-updates:
					sw.SendProgress(newProgressEvent(u))
				default:
					drained = true
				}
			}
			if o.err != nil {
				sw.SendError(o.err)
				return
			}
			sw.SendResult(o.res)
			return
		}
	}
}
