package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intelliquery/internal/config"
	"intelliquery/internal/models"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(&config.VectorStoreConfig{
		Path:       t.TempDir() + "/index",
		Collection: "testcollection",
	})
	require.NoError(t, err)
	return m
}

// unit vectors so similarity ordering is deterministic
func testDocs() []models.ChunkEmbedding {
	return []models.ChunkEmbedding{
		{Content: "Revenue was 10M.", Embedding: []float32{1, 0, 0}, SourceFilename: "report.pdf", PageNumber: 1, ChunkID: 1},
		{Content: "Costs were 4M.", Embedding: []float32{0, 1, 0}, SourceFilename: "report.pdf", PageNumber: 1, ChunkID: 2},
		{Content: "Headcount grew.", Embedding: []float32{0, 0, 1}, SourceFilename: "report.pdf", PageNumber: 2, ChunkID: 3},
	}
}

func TestAddAndCount(t *testing.T) {
	m := newTestManager(t)
	assert.Zero(t, m.Count())

	require.NoError(t, m.Add(context.Background(), testDocs()))
	assert.Equal(t, 3, m.Count())

	require.NoError(t, m.Add(context.Background(), nil))
	assert.Equal(t, 3, m.Count())
}

func TestSearch(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Add(context.Background(), testDocs()))

	results, err := m.Search(context.Background(), []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Revenue was 10M.", results[0].Content)
	assert.Equal(t, "report.pdf", results[0].Metadata["source"])
}

func TestSearch_EmptyCollection(t *testing.T) {
	m := newTestManager(t)
	results, err := m.Search(context.Background(), []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_TopKClampedToCount(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Add(context.Background(), testDocs()))

	results, err := m.Search(context.Background(), []float32{0, 1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestSearch_MissingEmbedding(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Search(context.Background(), nil, 5)
	require.Error(t, err)
}

func TestConcurrentRebuildAndSearch(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	require.NoError(t, m.Add(ctx, testDocs()))

	errCh := make(chan error, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 25; i++ {
			if err := m.Reset(); err != nil {
				errCh <- err
				return
			}
			if err := m.Add(ctx, testDocs()); err != nil {
				errCh <- err
				return
			}
		}
	}()

	for i := 0; i < 200; i++ {
		if _, err := m.Search(ctx, []float32{1, 0, 0}, 2); err != nil {
			t.Fatal(err)
		}
		m.Count()
	}
	<-done

	select {
	case err := <-errCh:
		t.Fatal(err)
	default:
	}
}

func TestInMemorySnapshotRoundTrip(t *testing.T) {
	cfg := &config.VectorStoreConfig{
		Path:          t.TempDir() + "/index",
		Collection:    "testcollection",
		InMemory:      true,
		EncryptionKey: "0123456789abcdef0123456789abcdef",
	}

	m, err := NewManager(cfg)
	require.NoError(t, err)
	require.NoError(t, m.Add(context.Background(), testDocs()))

	// a fresh in-memory manager restores the snapshot written by Add
	restored, err := NewManager(cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, restored.Count())

	results, err := restored.Search(context.Background(), []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Revenue was 10M.", results[0].Content)
}

func TestReset_RemovesInMemorySnapshot(t *testing.T) {
	cfg := &config.VectorStoreConfig{
		Path:          t.TempDir() + "/index",
		Collection:    "testcollection",
		InMemory:      true,
		EncryptionKey: "0123456789abcdef0123456789abcdef",
	}

	m, err := NewManager(cfg)
	require.NoError(t, err)
	require.NoError(t, m.Add(context.Background(), testDocs()))
	require.NoError(t, m.Reset())

	restored, err := NewManager(cfg)
	require.NoError(t, err)
	assert.Zero(t, restored.Count())
}

func TestReset(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Add(context.Background(), testDocs()))
	require.Equal(t, 3, m.Count())

	require.NoError(t, m.Reset())
	assert.Zero(t, m.Count())

	// index is usable again after a reset
	require.NoError(t, m.Add(context.Background(), testDocs()[:1]))
	assert.Equal(t, 1, m.Count())
}
