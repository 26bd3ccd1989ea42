package store

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	apperrors "github.com/clinrag/clinrag/internal/errors"
)

// Embedder turns text into a vector for similarity search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// embedClient is the slice of the OpenAI client the embedder needs.
type embedClient interface {
	CreateEmbeddings(ctx context.Context, req openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

var _ embedClient = (*openai.Client)(nil)

// OpenAIEmbedder embeds text with an OpenAI-compatible embeddings endpoint.
type OpenAIEmbedder struct {
	client embedClient
	model  openai.EmbeddingModel
}

// NewOpenAIEmbedder builds an embedder for the given model name.
func NewOpenAIEmbedder(client *openai.Client, model string) *OpenAIEmbedder {
	return newOpenAIEmbedder(client, model)
}

func newOpenAIEmbedder(client embedClient, model string) *OpenAIEmbedder {
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	return &OpenAIEmbedder{client: client, model: openai.EmbeddingModel(model)}
}

// Embed returns the embedding vector for text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: e.model,
		Input: []string{text},
	})
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeEmbeddingFailed, "embedding request failed", err)
	}
	if len(resp.Data) == 0 {
		return nil, apperrors.New(apperrors.ErrCodeEmbeddingFailed, "embedding response contained no vectors", nil)
	}
	return resp.Data[0].Embedding, nil
}
