package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Listen)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, "scripted", cfg.LLM.Provider)
	assert.Equal(t, "&", cfg.Mediation.NameSeparator)
	assert.Equal(t, "__shared__", cfg.Mediation.SharedAuthor)
	assert.Equal(t, "__start__", cfg.Mediation.StartSentinel)
	assert.Equal(t, "own", cfg.Mediation.OpenerRule)
	assert.Equal(t, DefaultSummaryMarkers, cfg.Mediation.SummaryMarkers)
	assert.Equal(t, 15*time.Second, cfg.Mediation.SweepInterval)
}

func TestParseFull(t *testing.T) {
	data := []byte(`
log:
  level: info
http:
  listen: ":9090"
  max_wait: 5s
storage:
  backend: badger
  path: /tmp/pairtalk
llm:
  provider: openai
  base_url: https://api.openai.com/v1
  token: sk-test
  model: gpt-4o-mini
  timeout: 10s
mediation:
  name_separator: "+"
  opener_rule: any
  summary_markers:
    - "to sum up"
`)

	cfg, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, ":9090", cfg.HTTP.Listen)
	assert.Equal(t, 5*time.Second, cfg.HTTP.MaxWait)
	assert.Equal(t, "/tmp/pairtalk", cfg.Storage.Path)
	assert.Equal(t, 10*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "+", cfg.Mediation.NameSeparator)
	assert.Equal(t, "any", cfg.Mediation.OpenerRule)
	assert.Equal(t, []string{"to sum up"}, cfg.Mediation.SummaryMarkers)
}

func TestParseTemperature(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	require.NoError(t, err)
	assert.Equal(t, DefaultTemperature, cfg.LLM.SamplingTemperature())

	cfg, err = Parse([]byte("llm:\n  temperature: 0\n"))
	require.NoError(t, err)
	require.NotNil(t, cfg.LLM.Temperature)
	assert.Zero(t, cfg.LLM.SamplingTemperature())

	_, err = Parse([]byte("llm:\n  temperature: 2.5\n"))
	assert.Error(t, err)

	assert.Equal(t, DefaultTemperature, LLM{}.SamplingTemperature())
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"openai without token", "llm:\n  provider: openai\n  base_url: http://x\n  model: m\n"},
		{"unknown backend", "storage:\n  backend: postgres\n"},
		{"unknown opener rule", "mediation:\n  opener_rule: maybe\n"},
		{"sentinel collision", "mediation:\n  shared_author: x\n  start_sentinel: x\n"},
		{"telegram without chat", "log:\n  telegram:\n    token: abc\n"},
		{"broken yaml", "http: ["},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestLoadFromEnvPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http:\n  listen: \":7000\"\n"), 0o600))
	t.Setenv(pathEnv, path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.HTTP.Listen)
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv(pathEnv, filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := Load()
	assert.Error(t, err)
}
