package splitter

import (
	"intelliquery/internal/config"
	"intelliquery/internal/models"

	"github.com/tmc/langchaingo/textsplitter"
)

// transcriptSeparators keep speech-to-text output splittable at sentence-ish
// boundaries, since transcripts rarely contain paragraph breaks.
var transcriptSeparators = []string{"\n\n", "\n", ".", "!", "?", ",", " "}

// SplitDocument splits document text recursively at the configured
// chunk size and overlap.
func SplitDocument(text string, cfg *config.RAGConfig) ([]models.Chunk, error) {
	s := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(cfg.ChunkSize),
		textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
	)
	return split(s, text)
}

// SplitTranscript splits a transcription into smaller chunks for better
// retrieval granularity.
func SplitTranscript(text string, cfg *config.RAGConfig) ([]models.Chunk, error) {
	s := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(cfg.TranscriptChunkSize),
		textsplitter.WithChunkOverlap(cfg.TranscriptChunkOverlap),
		textsplitter.WithSeparators(transcriptSeparators),
	)
	return split(s, text)
}

func split(s textsplitter.RecursiveCharacter, text string) ([]models.Chunk, error) {
	parts, err := s.SplitText(text)
	if err != nil {
		return nil, err
	}
	var chunks []models.Chunk
	for i, part := range parts {
		if part == "" {
			continue
		}
		chunks = append(chunks, models.Chunk{
			Content:    part,
			PageNumber: 1,
			ChunkID:    i + 1,
		})
	}
	return chunks, nil
}
