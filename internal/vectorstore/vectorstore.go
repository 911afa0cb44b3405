package vectorstore

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"intelliquery/internal/config"
	"intelliquery/internal/models"
)

const compress = false

// Manager encapsulates the chromem-go index: one persistent collection of
// embedded chunks, rebuilt whenever a new document batch is ingested. An
// in-memory index with an encryption key is snapshotted to disk after every
// rebuild and restored on startup.
//
// The mutex guards db/collection replacement in Reset and Import against
// concurrent reads from the server's ask path.
type Manager struct {
	mu             sync.RWMutex
	db             *chromem.DB
	collection     *chromem.Collection
	dbPath         string
	collectionName string
	inMemory       bool
	encryptionKey  string
	exportPath     string
}

// NewManager opens (or creates) the vector index described by the config.
// In-memory indexes restore a previous encrypted snapshot when one exists.
func NewManager(cfg *config.VectorStoreConfig) (*Manager, error) {
	var db *chromem.DB
	var err error
	if cfg.InMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(cfg.Path, compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %v", err)
		}
	}

	m := &Manager{
		db:             db,
		dbPath:         cfg.Path,
		collectionName: cfg.Collection,
		inMemory:       cfg.InMemory,
		encryptionKey:  cfg.EncryptionKey,
		exportPath:     cfg.Path + "/" + cfg.Collection + ".chromem",
	}
	if m.snapshotEnabled() {
		if _, err := os.Stat(m.exportPath); err == nil {
			if err := m.db.ImportFromFile(m.exportPath, m.encryptionKey, m.collectionName); err != nil {
				return nil, fmt.Errorf("failed to import database: %v", err)
			}
			log.Info().Str("file", m.exportPath).Msg("Vector index restored from snapshot")
		}
	}
	if _, err := m.getOrCreateCollection(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) snapshotEnabled() bool {
	return m.inMemory && m.encryptionKey != ""
}

func (m *Manager) getOrCreateCollection() (*chromem.Collection, error) {
	c, err := m.db.GetOrCreateCollection(m.collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %v", err)
	}
	m.collection = c
	return c, nil
}

// Add stores pre-embedded chunks in the collection and refreshes the
// snapshot when one is kept.
func (m *Manager) Add(ctx context.Context, docs []models.ChunkEmbedding) error {
	if len(docs) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	chromemDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		chromemDocs[i] = chromem.Document{
			ID:        fmt.Sprintf("%s-%d-%d", doc.SourceFilename, doc.PageNumber, doc.ChunkID),
			Content:   doc.Content,
			Metadata:  metadata(doc),
			Embedding: doc.Embedding,
		}
	}
	if err := m.collection.AddDocuments(ctx, chromemDocs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %v", err)
	}
	if m.snapshotEnabled() {
		return m.export()
	}
	return nil
}

func metadata(doc models.ChunkEmbedding) map[string]string {
	return map[string]string{
		"source": doc.SourceFilename,
		"page":   fmt.Sprintf("%d", doc.PageNumber),
		"chunk":  fmt.Sprintf("%d", doc.ChunkID),
	}
}

// Search runs a similarity query against the collection. topK is clamped to
// the collection size; an empty collection yields no results.
func (m *Manager) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]chromem.Result, error) {
	if len(queryEmbedding) == 0 {
		return nil, fmt.Errorf("query embedding must be provided")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := m.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}
	results, err := m.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: queryEmbedding,
		NResults:       topK,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %v", err)
	}
	return results, nil
}

// Count reports how many chunks are indexed.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collection.Count()
}

// Reset drops the collection and its persisted files so a new document
// batch starts from an empty index.
func (m *Manager) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.db.DeleteCollection(m.collectionName); err != nil {
		return fmt.Errorf("failed to drop collection: %v", err)
	}
	if m.inMemory {
		if err := os.RemoveAll(m.exportPath); err != nil {
			return fmt.Errorf("failed to remove snapshot: %v", err)
		}
	} else {
		if err := os.RemoveAll(m.dbPath); err != nil {
			return fmt.Errorf("failed to remove index directory: %v", err)
		}
		db, err := chromem.NewPersistentDB(m.dbPath, compress)
		if err != nil {
			return fmt.Errorf("failed to recreate database: %v", err)
		}
		m.db = db
		log.Info().Str("path", m.dbPath).Msg("Old vector index deleted")
	}
	_, err := m.getOrCreateCollection()
	return err
}

// Export writes an encrypted snapshot of the collection. Only used for
// in-memory databases; persistent ones are already on disk.
func (m *Manager) Export() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.export()
}

// export requires m.mu to be held.
func (m *Manager) export() error {
	if m.encryptionKey == "" {
		return fmt.Errorf("encryption key is required")
	}
	if m.collection == nil {
		return fmt.Errorf("collection is required")
	}
	if err := os.MkdirAll(m.dbPath, 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %v", err)
	}
	log.Debug().Str("file", m.exportPath).Str("collection", m.collectionName).Msg("Exporting collection")
	if err := m.db.ExportToFile(m.exportPath, compress, m.encryptionKey, m.collectionName); err != nil {
		return fmt.Errorf("failed to export database: %v", err)
	}
	return nil
}

// Import restores a previously exported snapshot.
func (m *Manager) Import() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.db.ImportFromFile(m.exportPath, m.encryptionKey, m.collectionName); err != nil {
		return fmt.Errorf("failed to import database: %v", err)
	}
	_, err := m.getOrCreateCollection()
	return err
}
