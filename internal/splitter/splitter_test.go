package splitter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intelliquery/internal/config"
)

func ragConfig() *config.RAGConfig {
	return &config.RAGConfig{
		ChunkSize:              1000,
		ChunkOverlap:           100,
		TranscriptChunkSize:    500,
		TranscriptChunkOverlap: 50,
	}
}

func TestSplitDocument_ShortTextSingleChunk(t *testing.T) {
	chunks, err := SplitDocument("just a short paragraph", ragConfig())
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].ChunkID)
}

func TestSplitDocument_LongTextManyChunks(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 100; i++ {
		b.WriteString("This paragraph talks about retrieval quality and chunk sizing.\n\n")
	}

	chunks, err := SplitDocument(b.String(), ragConfig())
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		assert.Equal(t, i+1, c.ChunkID)
		assert.NotEmpty(t, c.Content)
	}
}

func TestSplitTranscript_UsesSmallerChunks(t *testing.T) {
	transcript := strings.Repeat("So then we talked about the quarterly roadmap. ", 50)

	chunks, err := SplitTranscript(transcript, ragConfig())
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Content), 500+50)
	}
}

func TestSplitTranscript_Empty(t *testing.T) {
	chunks, err := SplitTranscript("", ragConfig())
	require.NoError(t, err)
	assert.Empty(t, chunks)
}
