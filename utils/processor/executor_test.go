package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kris-hansen/personaflow/utils/domain"
	"github.com/kris-hansen/personaflow/utils/models"
	"github.com/kris-hansen/personaflow/utils/persona"
	"github.com/kris-hansen/personaflow/utils/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recorder is a Completer that remembers every request it receives
type recorder struct {
	mu       sync.Mutex
	requests []models.Request
	reply    func(ctx context.Context, req models.Request) (string, error)
}

func (r *recorder) Complete(ctx context.Context, req models.Request) (string, error) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.mu.Unlock()
	if r.reply == nil {
		return "ok", nil
	}
	return r.reply(ctx, req)
}

func (r *recorder) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

// promptFor returns the rendered prompt sent for the persona whose template starts with marker
func (r *recorder) promptFor(marker string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, req := range r.requests {
		if strings.HasPrefix(req.Prompt(), marker) {
			return req.Prompt()
		}
	}
	return ""
}

// echo replies with the first line of the prompt
func echo(_ context.Context, req models.Request) (string, error) {
	line, _, _ := strings.Cut(req.Prompt(), "\n")
	return "out:" + line, nil
}

type fixture struct {
	registry *persona.Registry
	store    *store.Memory
	llm      *recorder
	exec     *Executor
}

func newFixture(t *testing.T, limit int) *fixture {
	t.Helper()
	reg, err := persona.NewRegistry(context.Background(), nil)
	require.NoError(t, err)
	st := store.NewMemory()
	llm := &recorder{reply: echo}
	return &fixture{
		registry: reg,
		store:    st,
		llm:      llm,
		exec:     NewExecutor(reg, st, llm, Options{ParallelLimit: limit}),
	}
}

func (f *fixture) persona(t *testing.T, name, tpl string, independent bool) string {
	t.Helper()
	p, err := f.registry.Create(context.Background(), persona.Spec{
		Name:        name,
		Template:    tpl,
		Independent: independent,
	})
	require.NoError(t, err)
	return p.ID
}

func TestSequentialStepsSeePriorOutputs(t *testing.T) {
	f := newFixture(t, 4)
	a := f.persona(t, "Alpha", "A\n{input}\n{context}", false)
	b := f.persona(t, "Beta", "B\n{input}\n{context}", false)
	c := f.persona(t, "Gamma", "C\n{context}", false)

	res, err := f.exec.ExecuteSequence(context.Background(), []string{a, b, c}, Document{Name: "d.txt", Content: "DOC"}, "u1")
	require.NoError(t, err)

	assert.Equal(t, "A\nDOC\n", f.llm.promptFor("A"))
	assert.Equal(t, "B\nDOC\n\nAlpha Analysis:\nout:A\n", f.llm.promptFor("B"))
	assert.Equal(t, "C\n\nAlpha Analysis:\nout:A\n\nBeta Analysis:\nout:B\n", f.llm.promptFor("C"))

	assert.Equal(t, AdhocPipelineID, res.PipelineID)
	assert.Equal(t, []string{a, b, c}, res.Metadata.ExecutionOrder)
	assert.Equal(t, 3, res.Metadata.CompletedPersonas)
	assert.Equal(t, 3, res.Metadata.TotalPersonas)
	assert.Equal(t, 2, res.Outputs[b].Step)
	assert.Equal(t, domain.PhaseSequential, res.Outputs[b].Phase)
}

func TestIndependentPhaseRunsConcurrently(t *testing.T) {
	f := newFixture(t, 2)
	seq := f.persona(t, "Closer", "S\n{context}", false)
	i1 := f.persona(t, "First", "I1\n{input}|{context}", true)
	i2 := f.persona(t, "Second", "I2\n{input}|{context}", true)

	// both independent calls must be in flight at the same time
	var started sync.WaitGroup
	started.Add(2)
	barrier := make(chan struct{})
	go func() {
		started.Wait()
		close(barrier)
	}()
	f.llm.reply = func(ctx context.Context, req models.Request) (string, error) {
		if strings.HasPrefix(req.Prompt(), "I") {
			started.Done()
			select {
			case <-barrier:
			case <-time.After(5 * time.Second):
				return "", errors.New("independent steps did not overlap")
			}
		}
		return echo(ctx, req)
	}

	res, err := f.exec.ExecuteSequence(context.Background(), []string{seq, i1, i2}, Document{Content: "DOC"}, "")
	require.NoError(t, err)
	require.Empty(t, res.Metadata.Errors)

	assert.Equal(t, "I1\nDOC|", f.llm.promptFor("I1"))
	assert.Equal(t, "I2\nDOC|", f.llm.promptFor("I2"))
	assert.Equal(t, "S\n\nFirst Analysis:\nout:I1\n\nSecond Analysis:\nout:I2\n", f.llm.promptFor("S"))

	assert.Equal(t, []string{i1, i2, seq}, res.Metadata.ExecutionOrder)
	assert.Equal(t, domain.PhaseIndependent, res.Outputs[i1].Phase)
	assert.Equal(t, 3, res.Outputs[seq].Step)
}

func TestUnknownPersonaMakesNoCalls(t *testing.T) {
	f := newFixture(t, 4)
	_, err := f.exec.ExecuteSequence(context.Background(),
		[]string{"risk_assessment", "ghost", "phantom"}, Document{Content: "x"}, "")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrValidation))
	assert.Contains(t, err.Error(), "ghost")
	assert.Contains(t, err.Error(), "phantom")
	assert.Zero(t, f.llm.calls())

	runs, err := f.store.ListRuns(context.Background())
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestUnknownPlaceholderMakesNoCalls(t *testing.T) {
	f := newFixture(t, 4)
	id := f.persona(t, "Ticketed", "Review ticket {ticket}: {input}", false)

	_, err := f.exec.ExecuteSequence(context.Background(), []string{"risk_assessment", id}, Document{Content: "x"}, "")
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), id)
	assert.Zero(t, f.llm.calls())

	res, err := f.exec.ExecuteSequence(context.Background(), []string{id},
		Document{Content: "x", Variables: map[string]string{"ticket": "T-9"}}, "")
	require.NoError(t, err)
	assert.Equal(t, "out:Review ticket T-9: x", res.Outputs[id].Text)
}

func TestEmptySequenceRejected(t *testing.T) {
	f := newFixture(t, 4)
	_, err := f.exec.ExecuteSequence(context.Background(), nil, Document{}, "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestFailedStepIsRecordedAndSkippedInContext(t *testing.T) {
	f := newFixture(t, 4)
	a := f.persona(t, "Alpha", "A\n{input}", false)
	b := f.persona(t, "Beta", "B\n{context}", false)
	f.llm.reply = func(ctx context.Context, req models.Request) (string, error) {
		if strings.HasPrefix(req.Prompt(), "A") {
			return "", fmt.Errorf("%w: rate limited", domain.ErrUpstream)
		}
		return echo(ctx, req)
	}

	res, err := f.exec.ExecuteSequence(context.Background(), []string{a, b}, Document{Content: "x"}, "")
	require.NoError(t, err)

	assert.True(t, res.Outputs[a].Failed())
	assert.Contains(t, res.Outputs[a].Error, "rate limited")
	assert.Empty(t, res.Outputs[a].Text)
	require.Len(t, res.Metadata.Errors, 1)
	assert.True(t, strings.HasPrefix(res.Metadata.Errors[0], "Error in Alpha: "))

	assert.Equal(t, "B\n", f.llm.promptFor("B"))
	assert.Equal(t, 1, res.Metadata.CompletedPersonas)

	_, err = f.store.GetRun(context.Background(), res.ID)
	assert.NoError(t, err, "partial runs are persisted")
}

func TestCancelledRunIsNotPersisted(t *testing.T) {
	f := newFixture(t, 4)
	a := f.persona(t, "Alpha", "A\n{input}", false)
	b := f.persona(t, "Beta", "B\n{context}", false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.llm.reply = func(ctx context.Context, req models.Request) (string, error) {
		cancel()
		return "", ctx.Err()
	}

	_, err := f.exec.ExecuteSequence(ctx, []string{a, b}, Document{Content: "x"}, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, f.llm.calls())

	runs, err := f.store.ListRuns(context.Background())
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestStructuredStrategyDecodesJSON(t *testing.T) {
	f := newFixture(t, 4)
	f.llm.reply = func(context.Context, models.Request) (string, error) {
		return "```json\n{\"risk_level\": \"low\", \"clauses\": 3}\n```", nil
	}

	res, err := f.exec.ExecuteSequence(context.Background(), []string{"contract_review", "risk_assessment"},
		Document{Name: "msa.pdf", Content: "terms"}, "")
	require.NoError(t, err)

	contract := res.Outputs["contract_review"]
	require.NotNil(t, contract.Structured)
	assert.Equal(t, "low", contract.Structured["risk_level"])
	assert.Contains(t, contract.Text, "```json")
	assert.Nil(t, res.Outputs["risk_assessment"].Structured)
}

func TestStepRequestCarriesPersonaSettings(t *testing.T) {
	f := newFixture(t, 4)
	temp := 0.7
	p, err := f.registry.Create(context.Background(), persona.Spec{
		Name: "Tuned", Template: "{input}", Temperature: &temp, MaxTokens: 321, Model: "claude-3-5-haiku-latest",
	})
	require.NoError(t, err)

	_, err = f.exec.ExecuteSequence(context.Background(), []string{p.ID, "summary_only"}, Document{Content: "x"}, "")
	require.NoError(t, err)

	require.Equal(t, 2, f.llm.calls())
	first := f.llm.requests[0]
	assert.Equal(t, "claude-3-5-haiku-latest", first.Model)
	assert.Equal(t, 0.7, first.Temperature)
	assert.Equal(t, 321, first.MaxTokens)
	assert.Equal(t, stepSystemMessage, first.System())

	assert.Equal(t, "gpt-4o-mini", f.llm.requests[1].Model)
}

func TestEndToEndRiskThenSummary(t *testing.T) {
	f := newFixture(t, 4)
	f.llm.reply = func(_ context.Context, req models.Request) (string, error) {
		p := req.Prompt()
		if len(p) > 20 {
			p = p[:20]
		}
		return "ANALYSIS:" + p, nil
	}
	ctx := context.Background()

	p, err := f.exec.CreatePipeline(ctx, "Risk then summary", "", []string{"risk_assessment", "summary_only"}, "adjuster-7")
	require.NoError(t, err)

	res, err := f.exec.Execute(ctx, p.ID,
		Document{Name: "claim.txt", Content: "Claim amount: $15,000, rear-end collision"}, "adjuster-7")
	require.NoError(t, err)
	assert.Equal(t, p.ID, res.PipelineID)

	require.Len(t, res.Outputs, 2)
	riskOut := res.Outputs["risk_assessment"].Text
	assert.True(t, strings.HasPrefix(riskOut, "ANALYSIS:"))
	assert.True(t, strings.HasPrefix(res.Outputs["summary_only"].Text, "ANALYSIS:"))
	assert.Equal(t, []string{"risk_assessment", "summary_only"}, res.Metadata.ExecutionOrder)

	require.Equal(t, 2, f.llm.calls())
	summaryPrompt := f.llm.requests[1].Prompt()
	label := strings.Index(summaryPrompt, "Risk Assessment Specialist Analysis:")
	output := strings.LastIndex(summaryPrompt, riskOut)
	require.GreaterOrEqual(t, label, 0)
	require.GreaterOrEqual(t, output, 0)
	assert.Less(t, label, output, "prior output follows its label")
	assert.Empty(t, res.Metadata.Errors)

	stored, err := f.store.GetRun(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, "adjuster-7", stored.Metadata.UserID)
	assert.Equal(t, "claim.txt", stored.DocumentName)

	mine, err := f.store.ListRunsForUser(ctx, "adjuster-7")
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestChannelProgressWriter(t *testing.T) {
	ch := make(chan ProgressUpdate, 1)
	ctx, cancel := context.WithCancel(context.Background())
	w := NewChannelProgressWriter(ctx, ch)

	require.NoError(t, w.WriteProgress(ProgressUpdate{Type: ProgressStep, Message: "one"}))
	assert.Equal(t, "one", (<-ch).Message)

	require.NoError(t, w.WriteProgress(ProgressUpdate{Type: ProgressStep}))
	cancel()
	// The buffer is full and nobody reads, so the write gives up with ctx
	assert.ErrorIs(t, w.WriteProgress(ProgressUpdate{Type: ProgressStepDone}), context.Canceled)
}

func TestProgressUpdates(t *testing.T) {
	f := newFixture(t, 4)
	var mu sync.Mutex
	var types []ProgressType
	w := ProgressFunc(func(u ProgressUpdate) error {
		mu.Lock()
		defer mu.Unlock()
		types = append(types, u.Type)
		return nil
	})

	res, err := f.exec.Execute(context.Background(), "quick_review", Document{Content: "x"}, "", WithProgress(w))
	require.NoError(t, err)
	assert.Equal(t, "quick_review", res.PipelineID)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, types)
	assert.Equal(t, ProgressParallelStep, types[0], "claims_analysis is independent")
	assert.Equal(t, ProgressComplete, types[len(types)-1])
}
