package llm

import (
	"context"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Client is the minimal interface needed by core logic to call a chat model.
// It intentionally mirrors the CreateChatCompletion method used throughout the
// codebase so that any OpenAI-compatible or local backend can be adapted.
type Client interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Embedder produces a vector for a piece of text. Implementations may return
// (nil, nil) when embeddings are not available; callers downgrade to string
// similarity in that case.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// OpenAIProvider adapts *openai.Client to the Client and Embedder interfaces.
type OpenAIProvider struct {
	Inner *openai.Client
	// EmbeddingModel names the embedding model to use. Empty disables the
	// Embedder capability (Embed returns nil, nil).
	EmbeddingModel string
}

func (p *OpenAIProvider) CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return p.Inner.CreateChatCompletion(ctx, request)
}

func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(p.EmbeddingModel) == "" {
		return nil, nil
	}
	resp, err := p.Inner.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(p.EmbeddingModel),
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("embeddings: empty response")
	}
	return resp.Data[0].Embedding, nil
}
