package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/shoptalk-ai/shoptalk/resilience"
)

// Embedder turns text into vectors. Satisfied by langchaingo embedders
// and by test fakes.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// NewOpenAIEmbedder builds a langchaingo embedder against an
// OpenAI-compatible embeddings endpoint. An empty baseURL targets OpenAI
// itself; local servers work with any key.
func NewOpenAIEmbedder(baseURL, apiKey, model string) (Embedder, error) {
	opts := []openai.Option{
		openai.WithEmbeddingModel(model),
	}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, openai.WithBaseURL(strings.TrimRight(baseURL, "/")))
	}
	if strings.TrimSpace(apiKey) != "" {
		opts = append(opts, openai.WithToken(apiKey))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("embedder: init client: %w", err)
	}
	emb, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	return &retryingEmbedder{inner: emb}, nil
}

// retryingEmbedder retries transient embedding API failures.
type retryingEmbedder struct {
	inner Embedder
}

func (r *retryingEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := resilience.Do(ctx, func() error {
		var innerErr error
		out, innerErr = r.inner.EmbedDocuments(ctx, texts)
		return innerErr
	})
	return out, err
}

func (r *retryingEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := resilience.Do(ctx, func() error {
		var innerErr error
		out, innerErr = r.inner.EmbedQuery(ctx, text)
		return innerErr
	})
	return out, err
}
