package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalProviderChatCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, "POST", r.Method)

		var req localChatReq
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ggml-gpt4all-j", req.Model)
		assert.False(t, req.Stream)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)

		json.NewEncoder(w).Encode(localChatResp{
			Message:         localMessage{Role: "assistant", Content: "local says hi"},
			Done:            true,
			PromptEvalCount: 12,
			EvalCount:       5,
		})
	}))
	defer server.Close()

	p := NewLocalProvider(server.URL)
	assert.Equal(t, "local", p.Name())

	resp, err := p.ChatCompletion(context.Background(), ChatRequest{
		Model: "ggml-gpt4all-j",
		Messages: []Message{
			{Role: "system", Content: "You are a helpful assistant."},
			{Role: "user", Content: "hello"},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "local says hi", resp.Content)
	assert.Equal(t, 12, resp.InputTokens)
	assert.Equal(t, 5, resp.OutputTokens)
	assert.Equal(t, 17, resp.TotalTokens)
	assert.Zero(t, resp.CostUSD)
}

func TestLocalProviderChatCompletionServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "model 'ggml-gpt4all-j' not found"})
	}))
	defer server.Close()

	p := NewLocalProvider(server.URL)
	resp, err := p.ChatCompletion(context.Background(), ChatRequest{
		Model:    "ggml-gpt4all-j",
		Messages: []Message{{Role: "user", Content: "hello"}},
	})

	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Contains(t, err.Error(), "not found")
}

func TestLocalProviderChatCompletionUnreachable(t *testing.T) {
	p := NewLocalProvider("http://127.0.0.1:1")

	_, err := p.ChatCompletion(context.Background(), ChatRequest{
		Model:    "ggml-gpt4all-j",
		Messages: []Message{{Role: "user", Content: "hello"}},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "local model chat")
}

func TestLocalProviderChatCompletionStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		enc := json.NewEncoder(w)
		enc.Encode(localChatResp{Message: localMessage{Role: "assistant", Content: "hel"}})
		enc.Encode(localChatResp{Message: localMessage{Role: "assistant", Content: "lo"}})
		enc.Encode(localChatResp{Done: true, PromptEvalCount: 3, EvalCount: 2})
	}))
	defer server.Close()

	p := NewLocalProvider(server.URL)
	ch, err := p.ChatCompletionStream(context.Background(), ChatRequest{
		Model:    "ggml-gpt4all-j",
		Messages: []Message{{Role: "user", Content: "hello"}},
	})
	require.NoError(t, err)

	var content string
	var done bool
	for chunk := range ch {
		require.NoError(t, chunk.Error)
		content += chunk.Content
		if chunk.Done {
			done = true
			assert.Equal(t, 3, chunk.InputTokens)
			assert.Equal(t, 2, chunk.OutputTokens)
		}
	}

	assert.True(t, done)
	assert.Equal(t, "hello", content)
}

func TestLocalProviderGenerateEmbedding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		json.NewEncoder(w).Encode(localEmbedResp{
			Embeddings: [][]float32{{0.1, 0.2}, {0.3, 0.4}},
		})
	}))
	defer server.Close()

	p := NewLocalProvider(server.URL)
	resp, err := p.GenerateEmbedding(context.Background(), EmbeddingRequest{
		Input: []string{"one", "two"},
	})

	require.NoError(t, err)
	assert.Equal(t, "nomic-embed-text", resp.Model)
	require.Len(t, resp.Embeddings, 2)
	assert.Equal(t, []float32{0.1, 0.2}, resp.Embeddings[0])
}
