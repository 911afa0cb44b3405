package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "vector_store_index", cfg.VectorStore.Path)
	assert.Equal(t, "models/embedding-001", cfg.EmbedLLM.Model)
	assert.Equal(t, "gemini-1.5-flash-latest", cfg.AnswerLLM.Model)
	assert.InDelta(t, 0.3, cfg.AnswerLLM.Temperature, 1e-9)
	assert.Equal(t, 1000, cfg.RAG.ChunkSize)
	assert.Equal(t, 100, cfg.RAG.ChunkOverlap)
	assert.Equal(t, 500, cfg.RAG.TranscriptChunkSize)
	assert.Equal(t, 15, cfg.Expansion.ShortQueryWordLimit)
	assert.Equal(t, "whisper-1", cfg.Transcription.Model)
	assert.Equal(t, "IntelliQuery Conversation", cfg.Report.Title)
}

func TestLoadConfig_ReadsYAMLAndBackfills(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  addr: ":9999"
rag:
  chunk_size: 256
embedding:
  provider: ollama
  model: nomic-embed-text
  base_url: http://localhost:11434
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, 256, cfg.RAG.ChunkSize)
	assert.Equal(t, "ollama", cfg.EmbedLLM.Provider)
	// untouched sections still get defaults
	assert.Equal(t, 5, cfg.RAG.TopK)
	assert.Equal(t, "command", cfg.Expansion.Model)
}

func TestLoadConfig_EnvOverridesKeys(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "g-key")
	t.Setenv("COHERE_API_KEY", "c-key")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "g-key", cfg.EmbedLLM.Key)
	assert.Equal(t, "g-key", cfg.AnswerLLM.Key)
	assert.Equal(t, "c-key", cfg.Expansion.Key)
}

func TestLoadConfig_EnvWinsOverConfiguredKey(t *testing.T) {
	t.Setenv("COHERE_API_KEY", "env-key")
	t.Setenv("DATABASE_DSN", "postgres://env-host/db")

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "expansion:\n  key: file-key\ndatabase:\n  dsn: postgres://file-host/db\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Expansion.Key)
	assert.Equal(t, "postgres://env-host/db", cfg.Database.DSN)
}

func TestLoadConfig_FileKeyKeptWithoutEnv(t *testing.T) {
	t.Setenv("COHERE_API_KEY", "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("expansion:\n  key: file-key\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "file-key", cfg.Expansion.Key)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o644))

	_, err := LoadConfig(path)
	require.Error(t, err)
}
