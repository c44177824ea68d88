package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsOnly(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoadMergesYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runcore.yaml")
	yaml := "llm:\n  provider: disabled\nretriever:\n  query_count: 16\nserver:\n  addr: \":9090\"\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "disabled", cfg.LLM.Provider)
	assert.Equal(t, 16, cfg.Retriever.QueryCount)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	// fields untouched by the file keep their built-in default
	assert.Equal(t, Defaults().Retriever.MinSources, cfg.Retriever.MinSources)
}

func TestLoadExpandsEnvVarsInYAML(t *testing.T) {
	t.Setenv("TEST_RUNCORE_MODEL", "claude-opus-4-1")
	dir := t.TempDir()
	path := filepath.Join(dir, "runcore.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  model: \"${TEST_RUNCORE_MODEL}\"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "claude-opus-4-1", cfg.LLM.Model)
}

func TestLoadEnvOverridesWinOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runcore.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  provider: hosted\n"), 0o644))

	t.Setenv("LLM_PROVIDER", "disabled")
	t.Setenv("RETRIEVER_RERANK_TOPK", "64")
	t.Setenv("EVIDENCE_MIN_SIMILARITY", "0.72")
	t.Setenv("WORKER_POLL_SECONDS", "5")
	t.Setenv("SERVER_ADDR", ":1234")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "disabled", cfg.LLM.Provider)
	assert.Equal(t, 64, cfg.Retriever.RerankTopK)
	assert.Equal(t, 0.72, cfg.Evidence.MinSimilarity)
	assert.Equal(t, 5*time.Second, cfg.Queue.PollInterval)
	assert.Equal(t, ":1234", cfg.Server.Addr)
}

func TestApplyEnvOverridesIgnoresUnparsableValues(t *testing.T) {
	cfg := Defaults()
	t.Setenv("RETRIEVER_RERANK_TOPK", "not-a-number")
	t.Setenv("EVIDENCE_MIN_SIMILARITY", "not-a-float")

	applyEnvOverrides(cfg)

	assert.Equal(t, Defaults().Retriever.RerankTopK, cfg.Retriever.RerankTopK)
	assert.Equal(t, Defaults().Evidence.MinSimilarity, cfg.Evidence.MinSimilarity)
}

func TestEnvIntAndEnvFloat(t *testing.T) {
	t.Run("envInt returns nil when unset", func(t *testing.T) {
		assert.Nil(t, envInt("TEST_RUNCORE_UNSET_INT"))
	})

	t.Run("envInt parses a set value", func(t *testing.T) {
		t.Setenv("TEST_RUNCORE_INT", "42")
		v := envInt("TEST_RUNCORE_INT")
		require.NotNil(t, v)
		assert.Equal(t, 42, *v)
	})

	t.Run("envFloat returns nil when unset", func(t *testing.T) {
		assert.Nil(t, envFloat("TEST_RUNCORE_UNSET_FLOAT"))
	})

	t.Run("envFloat parses a set value", func(t *testing.T) {
		t.Setenv("TEST_RUNCORE_FLOAT", "0.125")
		v := envFloat("TEST_RUNCORE_FLOAT")
		require.NotNil(t, v)
		assert.Equal(t, 0.125, *v)
	})
}
