package models

import "time"

// Chunk is a parsed piece of a document with its location metadata.
type Chunk struct {
	Content    string
	PageNumber int
	ChunkID    int
}

// ChunkEmbedding is a chunk together with its embedding vector.
type ChunkEmbedding struct {
	Content        string
	Embedding      []float32
	SourceFilename string
	PageNumber     int
	ChunkID        int
}

// PromptResponse is the outcome of a question: the generated answer plus
// the passages it was grounded on.
type PromptResponse struct {
	Query   string
	Source  string
	Content string
}

// Exchange is one question/answer turn of the conversation.
type Exchange struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// MediaType classifies an upload by how it is ingested.
type MediaType string

const (
	MediaDocument MediaType = "document"
	MediaAudio    MediaType = "audio"
	MediaVideo    MediaType = "video"
	MediaImage    MediaType = "image"
)
