package adapter

import (
	"context"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"finquery/backend/internal/constants"
	apperrors "finquery/backend/pkg/errors"
	"finquery/backend/pkg/logger"
)

// OpenAIEmbedder turns text into vectors through an OpenAI-compatible
// embeddings endpoint.
type OpenAIEmbedder struct {
	client      *openai.Client
	model       string
	maxAttempts int
	backoff     time.Duration
	logger      *zap.Logger
}

// NewOpenAIEmbedder creates a new embedder
func NewOpenAIEmbedder(baseURL, apiKey, model string, log *zap.Logger) *OpenAIEmbedder {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = strings.TrimRight(baseURL, "/")
	}

	return &OpenAIEmbedder{
		client:      openai.NewClientWithConfig(config),
		model:       model,
		maxAttempts: constants.LLMMaxAttempts,
		backoff:     time.Second,
		logger:      logger.For(log, "embedder"),
	}
}

// Embed returns the embedding vector for text
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp openai.EmbeddingResponse
	err := retry(ctx, e.logger, e.maxAttempts, e.backoff, e.model, isRetryableOpenAI, func() error {
		var callErr error
		resp, callErr = e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: []string{text},
			Model: openai.EmbeddingModel(e.model),
		})
		return callErr
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, apperrors.NewBaseError(apperrors.ErrorTypeMemory, "embedding response was empty", nil)
	}
	return resp.Data[0].Embedding, nil
}
