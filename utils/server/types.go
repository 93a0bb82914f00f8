package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/kris-hansen/personaflow/utils/config"
	"github.com/kris-hansen/personaflow/utils/domain"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// SuccessResponse represents a generic successful API response
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse represents a generic error API response
type ErrorResponse struct {
	Success bool   `json:"success"` // Should always be false
	Error   string `json:"error"`
}

// idList is a list of ids that also accepts a string holding a JSON array
type idList []string

func (l *idList) UnmarshalJSON(b []byte) error {
	var ids []string
	if err := json.Unmarshal(b, &ids); err == nil {
		*l = ids
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("expected a list of strings")
	}
	if strings.TrimSpace(s) == "" {
		*l = nil
		return nil
	}
	if err := json.Unmarshal([]byte(s), &ids); err != nil {
		return fmt.Errorf("expected a JSON array of strings")
	}
	*l = ids
	return nil
}

// CreatePersonaRequest is the body of POST /personas
type CreatePersonaRequest struct {
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	PromptTemplate string          `json:"prompt_template"`
	Focus          idList          `json:"focus"`
	AnalysisFocus  idList          `json:"analysis_focus"`
	CreatedBy      string          `json:"created_by"`
	Temperature    *float64        `json:"temperature"`
	MaxTokens      int             `json:"max_tokens"`
	Model          string          `json:"model"`
	Independent    bool            `json:"independent"`
	Strategy       domain.Strategy `json:"strategy"`
}

// CreatePipelineRequest is the body of POST /pipelines
type CreatePipelineRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	PersonaIDs  idList `json:"persona_ids"`
	CreatedBy   string `json:"created_by"`
}

// ExecuteRequest is the body of POST /analysis/execute. Either a pipeline id or
// an ad-hoc persona list is given, and either the document text or a URL.
type ExecuteRequest struct {
	PipelineID      string            `json:"pipeline_id"`
	WorkflowID      string            `json:"workflow_id"`
	PersonaIDs      idList            `json:"persona_ids"`
	DocumentContent string            `json:"document_content"`
	DocumentURL     string            `json:"document_url"`
	DocumentName    string            `json:"document_name"`
	Filename        string            `json:"filename"`
	UserID          string            `json:"user_id"`
	Variables       map[string]string `json:"variables"`
}

// ChatRequest is the body of POST /chat/send
type ChatRequest struct {
	AnalysisID string `json:"analysis_id"`
	Message    string `json:"message"`
	UserID     string `json:"user_id"`
}

// CompareRequest is the body of POST /chat/compare
type CompareRequest struct {
	AnalysisIDs idList `json:"analysis_ids"`
}

// UploadResponse is the extracted text of an uploaded document
type UploadResponse struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
	FileType string `json:"file_type"`
	Size     int    `json:"size"`
}

// responseWriter wraps http.ResponseWriter to capture the status code and implement http.Flusher
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	written     int64
	headersSent bool
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.headersSent {
		rw.statusCode = code
		rw.ResponseWriter.WriteHeader(code)
		rw.headersSent = true
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.headersSent {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// sseWriter formats executor progress as Server-Sent Events
type sseWriter struct {
	w http.ResponseWriter
	f http.Flusher
}

func (sw *sseWriter) send(event string, data interface{}) error {
	var payload string
	switch v := data.(type) {
	case string:
		payload = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			config.DebugLog("[SSE] Error marshaling %s data: %v", event, err)
			return err
		}
		payload = string(b)
	}
	if _, err := fmt.Fprintf(sw.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		config.DebugLog("[SSE] Error writing %s event: %v", event, err)
		return err
	}
	sw.f.Flush()
	return nil
}

func (sw *sseWriter) SendProgress(data interface{}) error {
	return sw.send("progress", data)
}

func (sw *sseWriter) SendResult(data interface{}) error {
	return sw.send("result", data)
}

func (sw *sseWriter) SendError(err error) error {
	return sw.send("error", ErrorResponse{Success: false, Error: err.Error()})
}

func (sw *sseWriter) SendHeartbeat() error {
	if _, err := fmt.Fprint(sw.w, ": heartbeat\n\n"); err != nil {
		return err
	}
	sw.f.Flush()
	return nil
}
