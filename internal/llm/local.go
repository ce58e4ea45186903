package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// LocalProvider talks to an Ollama-compatible model server hosting the
// on-device models (gpt4all-j, llama, mistral). No credential needed.
type LocalProvider struct {
	baseURL    string
	httpClient *http.Client
}

func NewLocalProvider(baseURL string) *LocalProvider {
	return &LocalProvider{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

func (p *LocalProvider) Name() string { return "local" }

func (p *LocalProvider) Models() []string {
	return []string{"ggml-gpt4all-j", "llama3", "mistral"}
}

type localChatReq struct {
	Model    string         `json:"model"`
	Messages []localMessage `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  *localOptions  `json:"options,omitempty"`
}

type localMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type localOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
}

type localChatResp struct {
	Message         localMessage `json:"message"`
	Done            bool         `json:"done"`
	Error           string       `json:"error"`
	PromptEvalCount int          `json:"prompt_eval_count"`
	EvalCount       int          `json:"eval_count"`
}

func toLocalMessages(msgs []Message) []localMessage {
	out := make([]localMessage, len(msgs))
	for i, m := range msgs {
		out[i] = localMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

func (p *LocalProvider) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	lReq := localChatReq{
		Model:    req.Model,
		Messages: toLocalMessages(req.Messages),
		Stream:   false,
	}
	if req.Temperature > 0 || req.MaxTokens > 0 || req.TopP > 0 {
		lReq.Options = &localOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
			TopP:        req.TopP,
		}
	}

	body, _ := json.Marshal(lReq)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("local model request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("local model chat: %w", err)
	}
	defer resp.Body.Close()

	var lResp localChatResp
	if err := json.NewDecoder(resp.Body).Decode(&lResp); err != nil {
		return nil, fmt.Errorf("local model decode: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if lResp.Error != "" {
			return nil, fmt.Errorf("local model: %s", lResp.Error)
		}
		return nil, fmt.Errorf("local model: status %d", resp.StatusCode)
	}

	return &ChatResponse{
		Provider:     "local",
		Model:        req.Model,
		Content:      lResp.Message.Content,
		InputTokens:  lResp.PromptEvalCount,
		OutputTokens: lResp.EvalCount,
		TotalTokens:  lResp.PromptEvalCount + lResp.EvalCount,
		CostUSD:      0,
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}

func (p *LocalProvider) ChatCompletionStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	lReq := localChatReq{
		Model:    req.Model,
		Messages: toLocalMessages(req.Messages),
		Stream:   true,
	}
	if req.Temperature > 0 || req.MaxTokens > 0 {
		lReq.Options = &localOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		}
	}

	body, _ := json.Marshal(lReq)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("local model stream request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("local model stream: %w", err)
	}

	ch := make(chan StreamChunk, 64)
	go func() {
		defer close(ch)
		defer resp.Body.Close()
		dec := json.NewDecoder(resp.Body)
		for {
			var chunk localChatResp
			if err := dec.Decode(&chunk); err != nil {
				if err == io.EOF {
					ch <- StreamChunk{Done: true}
				} else {
					ch <- StreamChunk{Error: err, Done: true}
				}
				return
			}
			if chunk.Error != "" {
				ch <- StreamChunk{Error: fmt.Errorf("local model: %s", chunk.Error), Done: true}
				return
			}
			if chunk.Done {
				ch <- StreamChunk{
					Done:         true,
					InputTokens:  chunk.PromptEvalCount,
					OutputTokens: chunk.EvalCount,
				}
				return
			}
			ch <- StreamChunk{Content: chunk.Message.Content}
		}
	}()

	return ch, nil
}

type localEmbedReq struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

type localEmbedResp struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (p *LocalProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*EmbeddingResponse, error) {
	model := req.Model
	if model == "" {
		model = "nomic-embed-text"
	}

	body, _ := json.Marshal(localEmbedReq{Model: model, Input: req.Input})
	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("local embed request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("local embed: %w", err)
	}
	defer resp.Body.Close()

	var lResp localEmbedResp
	if err := json.NewDecoder(resp.Body).Decode(&lResp); err != nil {
		return nil, fmt.Errorf("local embed decode: %w", err)
	}

	return &EmbeddingResponse{
		Provider:   "local",
		Model:      model,
		Embeddings: lResp.Embeddings,
		CostUSD:    0,
	}, nil
}
