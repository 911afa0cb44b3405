package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intelliquery/internal/config"
	"intelliquery/internal/models"
)

type fakeEmbedder struct {
	err   error
	calls []string
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	f.calls = append(f.calls, text)
	return []float32{float32(len(text))}, f.err
}

func TestGenerateEmbeddings(t *testing.T) {
	embedder := &fakeEmbedder{}
	chunks := []models.Chunk{
		{Content: "first chunk", PageNumber: 1, ChunkID: 1},
		{Content: "second chunk", PageNumber: 2, ChunkID: 2},
	}

	got, err := GenerateEmbeddings(context.Background(), embedder, "report.pdf", chunks)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, []string{"first chunk", "second chunk"}, embedder.calls)
	assert.Equal(t, "first chunk", got[0].Content)
	assert.Equal(t, "report.pdf", got[0].SourceFilename)
	assert.Equal(t, 1, got[0].PageNumber)
	assert.Equal(t, 2, got[1].ChunkID)
	assert.Equal(t, []float32{11}, got[0].Embedding)
}

func TestGenerateEmbeddings_NoChunks(t *testing.T) {
	got, err := GenerateEmbeddings(context.Background(), &fakeEmbedder{}, "empty.txt", nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGenerateEmbeddings_EmbedderError(t *testing.T) {
	embedder := &fakeEmbedder{err: errors.New("quota exceeded")}
	_, err := GenerateEmbeddings(context.Background(), embedder, "report.pdf", []models.Chunk{{Content: "c"}})
	require.Error(t, err)
}

func TestNewEmbedder_UnknownProvider(t *testing.T) {
	_, err := NewEmbedder(context.Background(), &config.LLMConfig{Provider: "mystery"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown embedding provider")
}
