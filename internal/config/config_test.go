package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 8480, cfg.Server.Port)
	assert.Equal(t, "chromem", cfg.Vector.Backend)
	assert.Equal(t, 512, cfg.Vector.Dimension)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, 10, cfg.Memory.TopK)
}

func TestLoadConfigFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recall.yaml")
	data := []byte(`
server:
  port: 9000
vector:
  backend: pgvector
  postgres_dsn: postgres://localhost/recall
llm:
  provider: openai
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "pgvector", cfg.Vector.Backend)
	assert.Equal(t, "postgres://localhost/recall", cfg.Vector.PostgresDSN)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	// Untouched values keep their defaults.
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recall.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0o644))

	t.Setenv("RECALL_PORT", "7000")
	t.Setenv("RECALL_LLM_PROVIDER", "openai")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "openai", cfg.LLM.Provider)
}

func TestLoadConfigBadFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/recall.yaml")
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o644))
	_, err = LoadConfig(path)
	require.Error(t, err)
}

func TestEnvParsingFallsBackOnGarbage(t *testing.T) {
	t.Setenv("RECALL_PORT", "not-a-number")
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 8480, cfg.Server.Port)
}
