package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadEnvConfig(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)

	assert.Equal(t, DefaultModel, cfg.DefaultModel)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, DefaultStepTimeout, cfg.Pipeline.StepTimeout)
	assert.Equal(t, DefaultParallelLimit, cfg.Pipeline.ParallelLimit)
	assert.Equal(t, DefaultRetention, cfg.Retention.Schedule)
}

func TestLoadEnvConfigParsesSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	content := `
providers:
  openai:
    api_key: sk-test
    models:
      - name: gpt-4o
        type: external
default_model: gpt-4o
server:
  port: 9000
  enabled: true
  bearerToken: abc
storage:
  driver: bolt
  path: /tmp/runs.db
pipeline:
  step_timeout: 45s
  parallel_limit: 2
retention:
  enabled: true
  schedule: "@daily"
  max_age: 72h
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := LoadEnvConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.APIKey("openai"))
	assert.Equal(t, "gpt-4o", cfg.DefaultModel)
	assert.Equal(t, 9000, cfg.GetServerConfig().Port)
	assert.True(t, cfg.GetServerConfig().Enabled)
	assert.Equal(t, "bolt", cfg.Storage.Driver)
	assert.Equal(t, 45*time.Second, cfg.Pipeline.StepTimeout)
	assert.Equal(t, 2, cfg.Pipeline.ParallelLimit)
	assert.Equal(t, 72*time.Hour, cfg.Retention.MaxAge)
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roundtrip.env")

	cfg := NewEnvConfig()
	cfg.AddProvider("anthropic", Provider{APIKey: "key-1"})
	srv := cfg.GetServerConfig()
	srv.Port = 7001
	cfg.UpdateServerConfig(*srv)

	require.NoError(t, SaveEnvConfig(path, cfg))

	loaded, err := LoadEnvConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "key-1", loaded.APIKey("anthropic"))
	assert.Equal(t, 7001, loaded.GetServerConfig().Port)

	require.NoError(t, loaded.UpdateAPIKey("anthropic", "key-2"))
	assert.Equal(t, "key-2", loaded.APIKey("anthropic"))
	assert.Error(t, loaded.UpdateAPIKey("missing", "x"))

	assert.Empty(t, loaded.BaseURL("anthropic"))
	assert.Empty(t, loaded.BaseURL("missing"))
	loaded.AddProvider("ollama", Provider{BaseURL: "http://gpu-box:11434"})
	assert.Equal(t, "http://gpu-box:11434", loaded.BaseURL("ollama"))
}

func TestAPIKeyFallsBackToEnvironment(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "from-env")
	cfg := NewEnvConfig()
	assert.Equal(t, "from-env", cfg.APIKey("google"))
	assert.Empty(t, cfg.APIKey("ollama"))
}

func TestGetEnvPath(t *testing.T) {
	t.Setenv("PERSONAFLOW_ENV", "/etc/personaflow.env")
	assert.Equal(t, "/etc/personaflow.env", GetEnvPath())

	t.Setenv("PERSONAFLOW_ENV", "")
	assert.Equal(t, ".env", GetEnvPath())
}

func TestGenerateBearerToken(t *testing.T) {
	a, err := GenerateBearerToken()
	require.NoError(t, err)
	b, err := GenerateBearerToken()
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}

func TestVerboseLoggingGate(t *testing.T) {
	var buf bytes.Buffer
	SetLogOutput(&buf)
	defer SetLogOutput(os.Stderr)

	Verbose = false
	DebugLog("hidden %d", 1)
	assert.Empty(t, buf.String())

	Verbose = true
	defer func() { Verbose = false }()
	DebugLog("shown %d", 2)
	assert.Contains(t, buf.String(), "shown 2")
}
