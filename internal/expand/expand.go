package expand

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/cohere"

	"intelliquery/internal/config"
	"intelliquery/internal/models"
)

// Expander widens short queries with related search terms so retrieval has
// more to match on. Failures never block a question: the caller gets the
// bare query back.
type Expander struct {
	llm llms.Model
	cfg *config.ExpansionConfig
}

// NewExpander builds a Cohere-backed expander. Returns nil (expansion
// disabled) when the config disables it or no key is present.
func NewExpander(cfg *config.ExpansionConfig) (*Expander, error) {
	if !cfg.Enabled || cfg.Key == "" {
		return nil, nil
	}
	llm, err := cohere.New(
		cohere.WithToken(cfg.Key),
		cohere.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("initializing cohere: %w", err)
	}
	return &Expander{llm: llm, cfg: cfg}, nil
}

// NewExpanderWithModel wires an arbitrary model, for tests.
func NewExpanderWithModel(llm llms.Model, cfg *config.ExpansionConfig) *Expander {
	return &Expander{llm: llm, cfg: cfg}
}

// ShouldExpand reports whether a question is short enough to benefit from
// related-terms expansion.
func (e *Expander) ShouldExpand(question string) bool {
	if e == nil {
		return false
	}
	limit := e.cfg.ShortQueryWordLimit
	if limit == 0 {
		limit = models.ShortQueryWordLimit
	}
	return len(strings.Fields(question)) < limit
}

// RelatedTerms asks the model for comma-separated related search terms.
// On error it returns an empty string so retrieval proceeds unexpanded.
func (e *Expander) RelatedTerms(ctx context.Context, query string) string {
	if e == nil {
		return ""
	}
	prompt := fmt.Sprintf(models.ExpansionPromptTemplate, query)
	raw, err := llms.GenerateFromSinglePrompt(ctx, e.llm, prompt, llms.WithMaxTokens(e.cfg.MaxTokens))
	if err != nil {
		log.Error().Err(err).Msg("Fetching related terms")
		return ""
	}

	var terms []string
	for _, term := range strings.Split(raw, ",") {
		if t := strings.TrimSpace(term); t != "" {
			terms = append(terms, t)
		}
	}
	related := strings.Join(terms, ", ")

	log.Debug().Str("query", query).Str("related_terms", related).Msg("Expanded query")
	return related
}

// RetrievalQuery returns the query to embed for retrieval: the question
// plus related terms when the question is short, the question otherwise.
func (e *Expander) RetrievalQuery(ctx context.Context, question string) string {
	if !e.ShouldExpand(question) {
		return question
	}
	related := e.RelatedTerms(ctx, question)
	if related == "" {
		return question
	}
	return question + " " + related
}
