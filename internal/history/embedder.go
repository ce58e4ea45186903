package history

import (
	"context"
	"fmt"

	"github.com/udegarami/llmapi/internal/llm"
)

const defaultEmbeddingModel = "text-embedding-3-small"

// GatewayEmbedder produces embeddings through the LLM gateway's OpenAI
// provider. The local provider's embedding models use a different
// dimensionality than the exchanges table, so the provider is pinned.
type GatewayEmbedder struct {
	gateway llm.Gateway
	model   string
}

func NewGatewayEmbedder(gw llm.Gateway, model string) *GatewayEmbedder {
	if model == "" {
		model = defaultEmbeddingModel
	}
	return &GatewayEmbedder{gateway: gw, model: model}
}

func (e *GatewayEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.gateway.Embed(ctx, llm.EmbeddingRequest{
		Provider: "openai",
		Model:    e.model,
		Input:    []string{text},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned for input")
	}
	return resp.Embeddings[0], nil
}
