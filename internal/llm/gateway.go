package llm

import (
	"context"
	"fmt"

	"github.com/udegarami/llmapi/internal/config"
)

type gateway struct {
	providers       map[string]Provider
	defaultProvider string
	defaultModels   map[string]string
}

// NewGateway builds the provider set from configuration. The OpenAI and
// Anthropic providers are only registered when their keys are present;
// the local provider is always available. The default provider is
// OpenAI when configured, otherwise the local model server.
func NewGateway(cfg config.LLMConfig) Gateway {
	g := &gateway{
		providers:       make(map[string]Provider),
		defaultProvider: "local",
		defaultModels: map[string]string{
			"openai":    cfg.OpenAIModel,
			"anthropic": cfg.AnthropicModel,
			"local":     cfg.LocalModel,
		},
	}

	if cfg.OpenAIKey != "" {
		g.providers["openai"] = NewOpenAIProvider(cfg.OpenAIKey)
		g.defaultProvider = "openai"
	}
	if cfg.AnthropicKey != "" {
		g.providers["anthropic"] = NewAnthropicProvider(cfg.AnthropicKey)
	}
	g.providers["local"] = NewLocalProvider(cfg.LocalBaseURL)

	return g
}

func (g *gateway) Provider(name string) (Provider, error) {
	p, ok := g.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q not configured", name)
	}
	return p, nil
}

func (g *gateway) resolve(req *ChatRequest) (Provider, error) {
	name := req.Provider
	if name == "" {
		name = g.defaultProvider
	}
	p, err := g.Provider(name)
	if err != nil {
		return nil, err
	}
	if req.Model == "" {
		req.Model = g.defaultModels[name]
	}
	return p, nil
}

func (g *gateway) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	p, err := g.resolve(&req)
	if err != nil {
		return nil, err
	}
	return p.ChatCompletion(ctx, req)
}

func (g *gateway) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	p, err := g.resolve(&req)
	if err != nil {
		return nil, err
	}
	return p.ChatCompletionStream(ctx, req)
}

func (g *gateway) Embed(ctx context.Context, req EmbeddingRequest) (*EmbeddingResponse, error) {
	name := req.Provider
	if name == "" {
		name = g.defaultProvider
	}
	p, err := g.Provider(name)
	if err != nil {
		return nil, err
	}
	return p.GenerateEmbedding(ctx, req)
}

func (g *gateway) ListModels() []ModelInfo {
	var models []ModelInfo
	for _, p := range g.providers {
		for _, m := range p.Models() {
			models = append(models, ModelInfo{
				Provider: p.Name(),
				Model:    m,
				Type:     "chat",
			})
		}
	}
	return models
}
