package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"intelliquery/internal/cache"
	"intelliquery/internal/config"
	"intelliquery/internal/expand"
	"intelliquery/internal/llmservice"
	"intelliquery/internal/models"
	"intelliquery/internal/parser"
)

// Embedder is the slice of the langchaingo embedder the pipeline needs.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Searcher is the slice of the vector store the pipeline needs.
type Searcher interface {
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]chromem.Result, error)
}

// RAG answers questions by retrieving relevant passages and prompting the
// answer model with them.
type RAG struct {
	store    Searcher
	embedder Embedder
	expander *expand.Expander
	cache    *cache.Cache
	cfg      *config.Config

	// generate is swappable for tests.
	generate func(ctx context.Context, llmConfig *config.LLMConfig, prompt string) (string, error)
}

func NewRAG(store Searcher, embedder Embedder, expander *expand.Expander, c *cache.Cache, cfg *config.Config) *RAG {
	return &RAG{
		store:    store,
		embedder: embedder,
		expander: expander,
		cache:    c,
		cfg:      cfg,
		generate: llmservice.GeneratePrompt,
	}
}

// Query answers a question from the indexed documents. Short questions are
// expanded with related terms for retrieval only; the answer prompt always
// carries the original question.
func (r *RAG) Query(ctx context.Context, question string) (*models.PromptResponse, error) {
	if answer, ok := r.cache.GetAnswer(ctx, question); ok {
		return &models.PromptResponse{Query: question, Content: answer}, nil
	}

	retrievalQuery := r.retrievalQuery(ctx, question)

	queryEmbedding, err := r.embedder.EmbedQuery(ctx, retrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	results, err := r.store.Search(ctx, queryEmbedding, r.cfg.RAG.TopK)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}
	if len(results) == 0 {
		log.Warn().Str("query", question).Msg("No documents found")
		return &models.PromptResponse{
			Query:   question,
			Content: models.NoDocumentsMessage,
		}, nil
	}

	passages := latePassages(results, r.cfg.RAG.LateChunkSize, r.cfg.RAG.LateChunkOverlap)
	contextText := strings.Join(passages, "\n\n")

	prompt := fmt.Sprintf(models.AnswerPromptTemplate, contextText, question)
	answer, err := r.generate(ctx, &r.cfg.AnswerLLM, prompt)
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	r.cache.SetAnswer(ctx, question, answer)

	return &models.PromptResponse{
		Query:   question,
		Source:  contextText,
		Content: answer,
	}, nil
}

// retrievalQuery widens short questions with related terms, consulting the
// cache first. Expansion never fails the question.
func (r *RAG) retrievalQuery(ctx context.Context, question string) string {
	if !r.expander.ShouldExpand(question) {
		return question
	}
	terms, ok := r.cache.GetExpansion(ctx, question)
	if !ok {
		terms = r.expander.RelatedTerms(ctx, question)
		if terms != "" {
			r.cache.SetExpansion(ctx, question, terms)
		}
	}
	if terms == "" {
		return question
	}
	return question + " " + terms
}

// latePassages re-chunks retrieved passages so long stored chunks keep
// their structure inside the prompt.
func latePassages(results []chromem.Result, size, overlap int) []string {
	var passages []string
	for _, res := range results {
		text := parser.CleanText(res.Content)
		passages = append(passages, lateChunk(text, size, overlap)...)
	}
	return passages
}

func lateChunk(text string, size, overlap int) []string {
	if size <= 0 || text == "" {
		if text == "" {
			return nil
		}
		return []string{text}
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	var chunks []string
	for start := 0; start < len(text); start += size - overlap {
		end := min(start+size, len(text))
		chunks = append(chunks, text[start:end])
		if end == len(text) {
			break
		}
	}
	return chunks
}
