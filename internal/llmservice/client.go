package llmservice

import (
	"context"
	"fmt"
	"strings"

	"intelliquery/internal/config"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// NewChatModel builds the chat model selected by the config provider.
func NewChatModel(ctx context.Context, llmConfig *config.LLMConfig) (llms.Model, error) {
	switch llmConfig.Provider {
	case "googleai":
		return googleai.New(ctx,
			googleai.WithAPIKey(llmConfig.Key),
			googleai.WithDefaultModel(llmConfig.Model),
		)
	case "ollama":
		return ollama.New(
			ollama.WithServerURL(llmConfig.BaseURL),
			ollama.WithModel(llmConfig.Model),
		)
	case "openai":
		return openai.New(
			openai.WithBaseURL(llmConfig.BaseURL),
			openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
			openai.WithModel(llmConfig.Model),
		)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", llmConfig.Provider)
	}
}

// GenerateContent runs the configured chat model over the given messages at
// the configured temperature.
func GenerateContent(ctx context.Context, llmConfig *config.LLMConfig, messages []llms.MessageContent) (*llms.ContentResponse, error) {
	log.Debug().Str("provider", llmConfig.Provider).Str("model", llmConfig.Model).Msg("Generating content")

	llm, err := NewChatModel(ctx, llmConfig)
	if err != nil {
		return nil, err
	}
	return llm.GenerateContent(ctx, messages, llms.WithTemperature(llmConfig.Temperature))
}

// GeneratePrompt is the single-prompt convenience wrapper around
// GenerateContent.
func GeneratePrompt(ctx context.Context, llmConfig *config.LLMConfig, prompt string) (string, error) {
	res, err := GenerateContent(ctx, llmConfig, []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextContent{Text: prompt}},
		},
	})
	if err != nil {
		return "", err
	}
	if len(res.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}
	return res.Choices[0].Content, nil
}

// AskWithImage answers a question about an image with the multimodal model,
// bypassing retrieval entirely.
func AskWithImage(ctx context.Context, llmConfig *config.LLMConfig, question string, imageData []byte, mimeType string) (string, error) {
	res, err := GenerateContent(ctx, llmConfig, []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextContent{Text: question},
				llms.BinaryPart(mimeType, imageData),
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("processing image: %w", err)
	}
	if len(res.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}
	return res.Choices[0].Content, nil
}
