package persona

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/kris-hansen/personaflow/utils/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memPersister struct {
	mu    sync.Mutex
	saved map[string]*domain.Persona
	fail  bool
}

func newMemPersister() *memPersister {
	return &memPersister{saved: make(map[string]*domain.Persona)}
}

func (m *memPersister) SavePersona(ctx context.Context, p *domain.Persona) error {
	if m.fail {
		return errors.New("disk full")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[p.ID] = p
	return nil
}

func (m *memPersister) DeletePersona(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.saved, id)
	return nil
}

func (m *memPersister) ListPersonas(ctx context.Context) ([]*domain.Persona, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Persona
	for _, p := range m.saved {
		out = append(out, p)
	}
	return out, nil
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry(context.Background(), nil)
	require.NoError(t, err)
	return r
}

func TestBuiltinsListedInOrder(t *testing.T) {
	r := newTestRegistry(t)
	list := r.List(context.Background())

	require.Len(t, list, len(Builtins()))
	assert.Equal(t, "risk_assessment", list[0].ID)
	assert.Equal(t, "Risk Assessment Specialist", list[0].Name)
	for _, p := range list {
		assert.False(t, p.Custom, p.ID)
		assert.NotEmpty(t, p.Strategy, p.ID)
		assert.NoError(t, Check(p.Template, nil), p.ID)
	}

	summary, err := r.Get(context.Background(), "summary_only")
	require.NoError(t, err)
	names, err := Placeholders(summary.Template)
	require.NoError(t, err)
	assert.Equal(t, []string{"context"}, names)
}

func TestDeleteBuiltinAlwaysFails(t *testing.T) {
	r := newTestRegistry(t)
	for _, p := range Builtins() {
		ok, err := r.Delete(context.Background(), p.ID)
		require.NoError(t, err)
		assert.False(t, ok, p.ID)
	}
	_, err := r.Get(context.Background(), "risk_assessment")
	assert.NoError(t, err)
}

func TestCreateAndDeleteCustomOnce(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	p, err := r.Create(ctx, Spec{
		Name:        "Fraud Investigator",
		Description: "Looks for fraud signals",
		Template:    "Context: {context}\nInput: {input}",
		FocusTags:   []string{"fraud"},
		CreatedBy:   "alice",
	})
	require.NoError(t, err)
	assert.True(t, p.Custom)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, domain.StrategyPrompt, p.Strategy)
	assert.InDelta(t, 0.1, p.Temperature, 0.0001)

	list := r.List(ctx)
	assert.Equal(t, p.ID, list[len(list)-1].ID)

	ok, err := r.Delete(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.Delete(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = r.Get(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateAssignsUniqueIDs(t *testing.T) {
	r := newTestRegistry(t)
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		p, err := r.Create(context.Background(), Spec{Name: "p", Template: "{input}"})
		require.NoError(t, err)
		assert.False(t, seen[p.ID])
		seen[p.ID] = true
	}
}

func TestCreateValidation(t *testing.T) {
	r := newTestRegistry(t)
	hot := 3.0
	tests := []struct {
		name string
		spec Spec
	}{
		{"missing name", Spec{Template: "{input}"}},
		{"missing template", Spec{Name: "x"}},
		{"unterminated placeholder", Spec{Name: "x", Template: "Input: {input"}},
		{"unknown strategy", Spec{Name: "x", Template: "{input}", Strategy: "agent"}},
		{"temperature out of range", Spec{Name: "x", Template: "{input}", Temperature: &hot}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Create(context.Background(), tt.spec)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestResolveReportsAllMissing(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Resolve(context.Background(), []string{"risk_assessment", "ghost", "phantom"})
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "ghost")
	assert.Contains(t, err.Error(), "phantom")

	got, err := r.Resolve(context.Background(), []string{"summary_only", "risk_assessment"})
	require.NoError(t, err)
	assert.Equal(t, "summary_only", got[0].ID)
}

func TestCustomPersonasArePersisted(t *testing.T) {
	ctx := context.Background()
	store := newMemPersister()

	r, err := NewRegistry(ctx, store)
	require.NoError(t, err)
	p, err := r.Create(ctx, Spec{Name: "Auditor", Template: "{input}"})
	require.NoError(t, err)

	restored, err := NewRegistry(ctx, store)
	require.NoError(t, err)
	got, err := restored.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Custom)

	ok, err := restored.Delete(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, store.saved)

	store.fail = true
	_, err = restored.Create(ctx, Spec{Name: "Auditor", Template: "{input}"})
	assert.Error(t, err)
}

func TestLoadFileOverridesBuiltins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "personas.yaml")
	content := `
personas:
  risk_assessment:
    name: Senior Risk Officer
    description: Tuned risk persona
    prompt_template: "Risk view of {input} given {context}"
    temperature: 0.2
  esg_review:
    name: ESG Reviewer
    description: Environmental and governance review
    prompt_template: "ESG review: {document_content}"
    independent: true
    strategy: structured
    focus: [environment, governance]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	r := newTestRegistry(t)
	r.AddBuiltins(loaded...)

	risk, err := r.Get(context.Background(), "risk_assessment")
	require.NoError(t, err)
	assert.Equal(t, "Senior Risk Officer", risk.Name)

	esg, err := r.Get(context.Background(), "esg_review")
	require.NoError(t, err)
	assert.True(t, esg.Independent)
	assert.Equal(t, domain.StrategyStructured, esg.Strategy)

	ok, err := r.Delete(context.Background(), "esg_review")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, r.List(context.Background()), len(Builtins())+1)
}

func TestParseTemperature(t *testing.T) {
	loaded, err := Parse([]byte(`
personas:
  strict:
    name: Strict
    prompt_template: "{input}"
    temperature: 0
  unset:
    name: Unset
    prompt_template: "{input}"
`))
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "strict", loaded[0].ID)
	assert.Zero(t, loaded[0].Temperature)
	assert.Equal(t, defaultTemperature, loaded[1].Temperature)

	r := newTestRegistry(t)
	r.AddBuiltins(loaded...)
	strict, err := r.Get(context.Background(), "strict")
	require.NoError(t, err)
	assert.Zero(t, strict.Temperature, "an explicit zero survives registration")

	_, err = Parse([]byte(`{"personas": {"x": {"name": "X", "prompt_template": "{input}", "temperature": 3}}}`))
	assert.ErrorContains(t, err, "temperature")
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	write("a.yaml", "personas:\n  alpha:\n    name: Alpha\n    prompt_template: \"{input}\"\n")
	write("b.json", `{"personas": {"beta": {"name": "Beta", "prompt_template": "{input}"}}}`)
	write("notes.txt", "ignored")

	loaded, err := Load(dir)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "alpha", loaded[0].ID)
	assert.Equal(t, "beta", loaded[1].ID)

	single, err := Load(filepath.Join(dir, "a.yaml"))
	require.NoError(t, err)
	assert.Len(t, single, 1)

	write("c.yml", "personas:\n  alpha:\n    name: Again\n    prompt_template: \"{input}\"\n")
	_, err = Load(dir)
	assert.ErrorContains(t, err, "alpha is defined in both a.yaml and c.yml")

	_, err = Load(t.TempDir())
	assert.ErrorContains(t, err, "no persona files")

	_, err = Load(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestParseRejectsBadEntries(t *testing.T) {
	_, err := Parse([]byte(`{"personas": {"x": {"name": "X"}}}`))
	assert.Error(t, err)

	_, err = Parse([]byte(`{"personas": {"x": {"name": "X", "prompt_template": "{input}", "strategy": "agent"}}}`))
	assert.Error(t, err)
}
