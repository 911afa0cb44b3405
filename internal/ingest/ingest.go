package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"

	"intelliquery/internal/cache"
	"intelliquery/internal/config"
	"intelliquery/internal/db"
	"intelliquery/internal/embedding"
	"intelliquery/internal/media"
	"intelliquery/internal/models"
	"intelliquery/internal/parser"
	"intelliquery/internal/splitter"
)

// Indexer is the slice of the vector store ingestion needs.
type Indexer interface {
	Reset() error
	Add(ctx context.Context, docs []models.ChunkEmbedding) error
}

// Transcriber converts an audio file to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// ErrUnsupportedFormat marks uploads whose extension no pipeline handles.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Result summarizes one ingested upload.
type Result struct {
	Filename   string           `json:"filename"`
	MediaType  models.MediaType `json:"media_type"`
	ChunkCount int              `json:"chunk_count"`
}

// Ingestor routes uploads to the right extraction path and (re)builds the
// vector index from the resulting chunks. The index is rebuilt per batch,
// so a new document upload replaces the previous corpus; video transcripts
// are appended to the accumulated content before the rebuild.
type Ingestor struct {
	cfg         *config.Config
	store       Indexer
	embedder    embedding.QueryEmbedder
	transcriber Transcriber
	cache       *cache.Cache
	registry    *bun.DB

	mu      sync.Mutex
	content string
	image   *Image

	// extractAudio is swappable for tests.
	extractAudio func(videoPath string) (string, error)
}

// Image is the most recently uploaded image, remembered for direct
// multimodal question answering.
type Image struct {
	Filename string
	MimeType string
	Data     []byte
}

func NewIngestor(cfg *config.Config, store Indexer, embedder embedding.QueryEmbedder, transcriber Transcriber, c *cache.Cache, registry *bun.DB) *Ingestor {
	return &Ingestor{
		cfg:          cfg,
		store:        store,
		embedder:     embedder,
		transcriber:  transcriber,
		cache:        c,
		registry:     registry,
		extractAudio: media.ExtractAudio,
	}
}

// MediaTypeFor classifies a filename by extension.
func MediaTypeFor(filename string) (models.MediaType, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf", ".docx", ".pptx", ".xlsx", ".ods", ".txt", ".csv", ".md":
		return models.MediaDocument, nil
	case ".mp3", ".wav", ".m4a", ".flac":
		return models.MediaAudio, nil
	case ".mp4", ".avi", ".mov", ".mkv":
		return models.MediaVideo, nil
	case ".jpg", ".jpeg", ".png":
		return models.MediaImage, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

// Ingest processes one uploaded file by its media type.
func (i *Ingestor) Ingest(ctx context.Context, path string) (*Result, error) {
	mediaType, err := MediaTypeFor(path)
	if err != nil {
		return nil, err
	}

	switch mediaType {
	case models.MediaDocument:
		return i.ingestDocuments(ctx, []string{path})
	case models.MediaAudio:
		return i.ingestAudio(ctx, path)
	case models.MediaVideo:
		return i.ingestVideo(ctx, path)
	case models.MediaImage:
		return i.ingestImage(path)
	}
	return nil, fmt.Errorf("unsupported media type: %s", mediaType)
}

// IngestDocuments parses a batch of documents and rebuilds the index from
// their combined chunks.
func (i *Ingestor) IngestDocuments(ctx context.Context, paths []string) (*Result, error) {
	return i.ingestDocuments(ctx, paths)
}

func (i *Ingestor) ingestDocuments(ctx context.Context, paths []string) (*Result, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	var allChunks []models.ChunkEmbedding
	var combined strings.Builder
	for _, path := range paths {
		chunks, err := parser.ParseToMarkdown(path, i.cfg)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		cleaned := cleanChunks(chunks)
		embedded, err := embedding.GenerateEmbeddings(ctx, i.embedder, filepath.Base(path), cleaned)
		if err != nil {
			return nil, fmt.Errorf("embedding %s: %w", path, err)
		}
		allChunks = append(allChunks, embedded...)
		for _, c := range cleaned {
			combined.WriteString(c.Content)
			combined.WriteString("\n")
		}
	}

	if err := i.rebuild(ctx, allChunks); err != nil {
		return nil, err
	}
	i.content = combined.String()

	name := filepath.Base(paths[0])
	if len(paths) > 1 {
		name = fmt.Sprintf("%s (+%d more)", name, len(paths)-1)
	}
	i.register(ctx, name, models.MediaDocument, len(allChunks))

	return &Result{Filename: name, MediaType: models.MediaDocument, ChunkCount: len(allChunks)}, nil
}

func (i *Ingestor) ingestAudio(ctx context.Context, path string) (*Result, error) {
	transcription, err := i.transcriber.Transcribe(ctx, path)
	if err != nil {
		return nil, err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	// Transcripts get smaller chunks for better retrieval granularity.
	chunks, err := splitter.SplitTranscript(transcription, &i.cfg.RAG)
	if err != nil {
		return nil, err
	}
	embedded, err := i.embedChunks(ctx, filepath.Base(path), cleanChunks(chunks))
	if err != nil {
		return nil, err
	}
	if err := i.rebuild(ctx, embedded); err != nil {
		return nil, err
	}
	i.content = transcription

	i.register(ctx, filepath.Base(path), models.MediaAudio, len(embedded))
	return &Result{Filename: filepath.Base(path), MediaType: models.MediaAudio, ChunkCount: len(embedded)}, nil
}

func (i *Ingestor) ingestVideo(ctx context.Context, path string) (*Result, error) {
	audioPath, err := i.extractAudio(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.Remove(audioPath); err != nil {
			log.Warn().Err(err).Str("path", audioPath).Msg("Could not remove temporary audio file")
		}
	}()

	transcription, err := i.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		return nil, err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	// Video transcripts accumulate: the index is rebuilt from everything
	// seen so far plus the new transcription.
	i.content += transcription + "\n"
	chunks, err := splitter.SplitDocument(i.content, &i.cfg.RAG)
	if err != nil {
		return nil, err
	}
	embedded, err := i.embedChunks(ctx, filepath.Base(path), cleanChunks(chunks))
	if err != nil {
		return nil, err
	}
	if err := i.rebuild(ctx, embedded); err != nil {
		return nil, err
	}

	i.register(ctx, filepath.Base(path), models.MediaVideo, len(embedded))
	return &Result{Filename: filepath.Base(path), MediaType: models.MediaVideo, ChunkCount: len(embedded)}, nil
}

func (i *Ingestor) ingestImage(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	mime := "image/png"
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".jpg" || ext == ".jpeg" {
		mime = "image/jpeg"
	}

	i.mu.Lock()
	i.image = &Image{Filename: filepath.Base(path), MimeType: mime, Data: data}
	i.mu.Unlock()

	i.register(context.Background(), filepath.Base(path), models.MediaImage, 0)
	return &Result{Filename: filepath.Base(path), MediaType: models.MediaImage}, nil
}

// CurrentImage returns the most recently uploaded image, if any.
func (i *Ingestor) CurrentImage() *Image {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.image
}

func (i *Ingestor) embedChunks(ctx context.Context, filename string, chunks []models.Chunk) ([]models.ChunkEmbedding, error) {
	return embedding.GenerateEmbeddings(ctx, i.embedder, filename, chunks)
}

// rebuild clears the previous index, stores the new chunks, and drops
// cached answers that were grounded on the old corpus.
func (i *Ingestor) rebuild(ctx context.Context, docs []models.ChunkEmbedding) error {
	if err := i.store.Reset(); err != nil {
		return fmt.Errorf("resetting index: %w", err)
	}
	if err := i.store.Add(ctx, docs); err != nil {
		return fmt.Errorf("indexing chunks: %w", err)
	}
	i.cache.Flush(ctx)
	log.Info().Int("chunks", len(docs)).Msg("Vector index rebuilt")
	return nil
}

func (i *Ingestor) register(ctx context.Context, filename string, mediaType models.MediaType, chunkCount int) {
	if i.registry == nil {
		return
	}
	if err := db.StoreUpload(ctx, i.registry, filename, string(mediaType), chunkCount); err != nil {
		log.Warn().Err(err).Str("file", filename).Msg("Could not register upload")
	}
}

func cleanChunks(chunks []models.Chunk) []models.Chunk {
	var cleaned []models.Chunk
	for _, c := range chunks {
		c.Content = parser.CleanText(c.Content)
		if c.Content == "" {
			continue
		}
		cleaned = append(cleaned, c)
	}
	return cleaned
}
