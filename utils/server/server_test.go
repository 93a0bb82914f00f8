package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/kris-hansen/personaflow/utils/chat"
	"github.com/kris-hansen/personaflow/utils/config"
	"github.com/kris-hansen/personaflow/utils/domain"
	"github.com/kris-hansen/personaflow/utils/models"
	"github.com/kris-hansen/personaflow/utils/persona"
	"github.com/kris-hansen/personaflow/utils/processor"
	"github.com/kris-hansen/personaflow/utils/scraper"
	"github.com/kris-hansen/personaflow/utils/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "test-token-abcdef"

type testServer struct {
	handler http.Handler
	deps    *Deps
	calls   *atomic.Int64
}

func newTestServer(t *testing.T, cfg *config.ServerConfig) *testServer {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemory()
	reg, err := persona.NewRegistry(ctx, st)
	require.NoError(t, err)

	calls := &atomic.Int64{}
	llm := models.CompleterFunc(func(ctx context.Context, req models.Request) (string, error) {
		calls.Add(1)
		return fmt.Sprintf("reply %d", calls.Load()), nil
	})
	exec := processor.NewExecutor(reg, st, llm, processor.Options{ParallelLimit: 2})

	deps := &Deps{
		Store:    st,
		Personas: reg,
		Executor: exec,
		Chat:     chat.NewService(st, exec, reg, llm, chat.Options{}),
		Scraper:  scraper.NewScraper(),
	}
	if cfg == nil {
		cfg = &config.ServerConfig{}
	}
	return &testServer{handler: NewServer(cfg, deps).Handler(), deps: deps, calls: calls}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (ts *testServer) execute(t *testing.T, body map[string]any) *domain.RunResult {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/analysis/execute", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decodeBody[*domain.RunResult](t, w)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, &config.ServerConfig{Enabled: true, BearerToken: testToken})

	w := ts.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	health := decodeBody[HealthResponse](t, w)
	assert.Equal(t, "healthy", health.Status)
	assert.NotEmpty(t, health.Timestamp)

	w = ts.do(t, http.MethodGet, "/personas", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/personas", nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPersonaLifecycle(t *testing.T) {
	ts := newTestServer(t, nil)

	builtins := decodeBody[[]*domain.Persona](t, ts.do(t, http.MethodGet, "/personas", nil))
	require.NotEmpty(t, builtins)

	w := ts.do(t, http.MethodPost, "/personas", map[string]any{
		"name":            "Tone Reviewer",
		"prompt_template": "Review the tone of {document_content}",
		"analysis_focus":  []string{"tone"},
		"temperature":     0.2,
		"created_by":      "u1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decodeBody[*domain.Persona](t, w)
	assert.True(t, created.Custom)
	assert.Equal(t, []string{"tone"}, created.FocusTags)
	assert.Equal(t, 0.2, created.Temperature)

	w = ts.do(t, http.MethodGet, "/personas/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Tone Reviewer", decodeBody[*domain.Persona](t, w).Name)

	all := decodeBody[[]*domain.Persona](t, ts.do(t, http.MethodGet, "/personas", nil))
	assert.Len(t, all, len(builtins)+1)

	w = ts.do(t, http.MethodDelete, "/personas/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeBody[SuccessResponse](t, w).Success)

	w = ts.do(t, http.MethodDelete, "/personas/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodDelete, "/personas/risk_assessment", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodGet, "/personas/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreatePersonaValidation(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name string
		body any
	}{
		{name: "malformed json", body: `{"name":`},
		{name: "missing name", body: map[string]any{"prompt_template": "x {document_content}"}},
		{name: "missing template", body: map[string]any{"name": "x"}},
		{name: "unbalanced template", body: map[string]any{"name": "x", "prompt_template": "{document_content"}},
		{name: "bad strategy", body: map[string]any{"name": "x", "prompt_template": "{document_content}", "strategy": "xml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, "/personas", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			resp := decodeBody[ErrorResponse](t, w)
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestPipelines(t *testing.T) {
	ts := newTestServer(t, nil)

	list := decodeBody[[]*domain.Pipeline](t, ts.do(t, http.MethodGet, "/pipelines", nil))
	require.GreaterOrEqual(t, len(list), 4)
	assert.Equal(t, "full_analysis", list[0].ID)

	// persona_ids may arrive as a JSON-encoded string
	w := ts.do(t, http.MethodPost, "/pipelines", map[string]any{
		"name":        "Mine",
		"persona_ids": `["risk_assessment","summary_only"]`,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decodeBody[*domain.Pipeline](t, w)
	assert.Equal(t, []string{"risk_assessment", "summary_only"}, created.PersonaIDs)

	w = ts.do(t, http.MethodGet, "/pipelines/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPost, "/pipelines", map[string]any{"name": "Empty", "persona_ids": []string{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/pipelines", `{"name":"Bad","persona_ids":42}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodGet, "/pipelines/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExecute(t *testing.T) {
	ts := newTestServer(t, nil)

	run := ts.execute(t, map[string]any{
		"workflow_id":      "quick_review",
		"document_content": "Water damage claim for $12,000.",
		"filename":         "claim.txt",
		"user_id":          "u1",
	})
	assert.Equal(t, "quick_review", run.PipelineID)
	assert.Equal(t, "claim.txt", run.DocumentName)
	assert.Len(t, run.Outputs, 3)
	assert.Equal(t, 3, run.Metadata.CompletedPersonas)
	assert.EqualValues(t, 3, ts.calls.Load())

	w := ts.do(t, http.MethodGet, "/analysis/"+run.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, run.ID, decodeBody[*domain.RunResult](t, w).ID)

	runs := decodeBody[[]*domain.RunResult](t, ts.do(t, http.MethodGet, "/analysis/user/u1", nil))
	assert.Len(t, runs, 1)

	w = ts.do(t, http.MethodGet, "/analysis/user/nobody", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	w = ts.do(t, http.MethodGet, "/analysis/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExecuteAdhocSequence(t *testing.T) {
	ts := newTestServer(t, nil)

	run := ts.execute(t, map[string]any{
		"persona_ids":      `["financial_analysis"]`,
		"document_content": "Invoice total $900.",
	})
	assert.Equal(t, processor.AdhocPipelineID, run.PipelineID)
	assert.Equal(t, "document", run.DocumentName)
	assert.Equal(t, []string{"financial_analysis"}, run.Metadata.ExecutionOrder)
}

func TestExecuteRejections(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name   string
		body   map[string]any
		status int
	}{
		{name: "no pipeline", body: map[string]any{"document_content": "x"}, status: http.StatusBadRequest},
		{name: "no document", body: map[string]any{"pipeline_id": "quick_review"}, status: http.StatusBadRequest},
		{name: "unknown pipeline", body: map[string]any{"pipeline_id": "nope", "document_content": "x"}, status: http.StatusNotFound},
		{name: "unknown persona", body: map[string]any{"persona_ids": []string{"ghost"}, "document_content": "x"}, status: http.StatusBadRequest},
		{name: "disallowed url", body: map[string]any{"pipeline_id": "quick_review", "document_url": "ftp://example.com/doc"}, status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, "/analysis/execute", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
	assert.Zero(t, ts.calls.Load())
}

func TestExecuteFromURL(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>Policy Terms</title></head><body><p>Coverage excludes floods.</p></body></html>`)
	}))
	defer site.Close()

	ts := newTestServer(t, nil)
	run := ts.execute(t, map[string]any{
		"persona_ids":  []string{"contract_review"},
		"document_url": site.URL + "/terms",
	})
	assert.Equal(t, "Policy Terms", run.DocumentName)
	assert.Len(t, run.Outputs, 1)
}

func TestExecuteStreaming(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodPost, "/analysis/execute?streaming=true", map[string]any{
		"pipeline_id":      "quick_review",
		"document_content": "Roof claim.",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	events := parseSSE(w.Body.String())
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	require.Equal(t, "result", last.event)

	var run domain.RunResult
	require.NoError(t, json.Unmarshal([]byte(last.data), &run))
	assert.Len(t, run.Outputs, 3)

	var types []string
	for _, ev := range events[:len(events)-1] {
		require.Equal(t, "progress", ev.event)
		var p progressEvent
		require.NoError(t, json.Unmarshal([]byte(ev.data), &p))
		types = append(types, p.Type)
	}
	assert.Contains(t, types, "step_done")
	assert.Equal(t, "complete", types[len(types)-1])
}

func TestExecuteStreamingError(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodPost, "/analysis/execute?streaming=true", map[string]any{
		"persona_ids":      []string{"ghost"},
		"document_content": "x",
	})
	events := parseSSE(w.Body.String())
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, "error", last.event)
	assert.Contains(t, last.data, "ghost")
}

type sseEvent struct {
	event string
	data  string
}

func parseSSE(body string) []sseEvent {
	var events []sseEvent
	for _, block := range strings.Split(body, "\n\n") {
		var ev sseEvent
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "event: "):
				ev.event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				ev.data = strings.TrimPrefix(line, "data: ")
			}
		}
		if ev.event != "" {
			events = append(events, ev)
		}
	}
	return events
}

func TestChatEndpoints(t *testing.T) {
	ts := newTestServer(t, nil)
	run := ts.execute(t, map[string]any{"pipeline_id": "quick_review", "document_content": "Claim."})

	w := ts.do(t, http.MethodPost, "/chat/send", map[string]any{
		"analysis_id": run.ID,
		"message":     "What is the main risk?",
		"user_id":     "u1",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	turn := decodeBody[*domain.Turn](t, w)
	assert.Equal(t, run.ID, turn.RunID)
	assert.NotEmpty(t, turn.AssistantResponse)

	history := decodeBody[[]*domain.Turn](t, ts.do(t, http.MethodGet, "/chat/"+run.ID+"/history", nil))
	require.Len(t, history, 1)
	assert.Equal(t, "What is the main risk?", history[0].UserMessage)

	w = ts.do(t, http.MethodDelete, "/chat/"+run.ID+"/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Chat history cleared successfully", decodeBody[SuccessResponse](t, w).Message)

	w = ts.do(t, http.MethodGet, "/chat/"+run.ID+"/history", nil)
	assert.JSONEq(t, "[]", w.Body.String())

	w = ts.do(t, http.MethodDelete, "/chat/missing/history", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodPost, "/chat/send", map[string]any{"analysis_id": run.ID, "message": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/chat/send", map[string]any{"analysis_id": "missing", "message": "hi"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChatSummaryAndCompare(t *testing.T) {
	ts := newTestServer(t, nil)
	first := ts.execute(t, map[string]any{"pipeline_id": "quick_review", "document_content": "Claim A."})
	second := ts.execute(t, map[string]any{"pipeline_id": "quick_review", "document_content": "Claim B."})

	// the stub completer never returns JSON, so both digests fall back
	w := ts.do(t, http.MethodGet, "/chat/"+first.ID+"/summary", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	summary := decodeBody[chat.SummaryResult](t, w)
	assert.True(t, summary.Fallback)
	assert.Equal(t, domain.FallbackSummary(), summary.Summary)

	w = ts.do(t, http.MethodPost, "/chat/compare", map[string]any{"analysis_ids": []string{first.ID, second.ID}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	comparison := decodeBody[chat.ComparisonResult](t, w)
	assert.Equal(t, []string{first.ID, second.ID}, comparison.RunIDs)

	before := ts.calls.Load()
	w = ts.do(t, http.MethodPost, "/chat/compare", map[string]any{"analysis_ids": []string{first.ID}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, before, ts.calls.Load())

	w = ts.do(t, http.MethodPost, "/chat/compare", map[string]any{"analysis_ids": []string{first.ID, "missing"}})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpload(t *testing.T) {
	ts := newTestServer(t, nil)

	upload := func(name string, content []byte) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		part, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/documents/upload", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		w := httptest.NewRecorder()
		ts.handler.ServeHTTP(w, req)
		return w
	}

	w := upload("../../notes.txt", []byte("Plain text claim notes."))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeBody[UploadResponse](t, w)
	assert.Equal(t, "notes.txt", resp.Filename)
	assert.Equal(t, "Plain text claim notes.", resp.Content)
	assert.Equal(t, len("Plain text claim notes."), resp.Size)

	w = upload("blob.bin", []byte{0xff, 0xfe, 0x00, 0x81})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/documents/upload", strings.NewReader("not multipart"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboard(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.execute(t, map[string]any{"pipeline_id": "quick_review", "document_content": "Claim.", "document_name": "claim-<b>.txt"})

	w := ts.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	body := w.Body.String()
	assert.Contains(t, body, "Quick Review")
	assert.Contains(t, body, "risk_assessment")
	assert.Contains(t, body, "claim-&lt;b&gt;.txt")
	assert.Contains(t, body, "3/3")
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, &config.ServerConfig{Enabled: true, BearerToken: testToken})
	ts.do(t, http.MethodGet, "/health", nil)

	w := ts.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "personaflow_http_requests_total")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrap: %w", domain.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("wrap: %w", domain.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", domain.ErrUpstream), http.StatusBadGateway},
		{domain.ErrMalformedUpstream, http.StatusBadGateway},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
