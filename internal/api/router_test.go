package api

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udegarami/llmapi/internal/audio"
	"github.com/udegarami/llmapi/internal/auth"
	"github.com/udegarami/llmapi/internal/config"
	"github.com/udegarami/llmapi/internal/llm"
	"github.com/udegarami/llmapi/internal/metrics"
	"github.com/udegarami/llmapi/internal/pipeline"
	"github.com/udegarami/llmapi/internal/stt"
)

type fixedEngine struct{ text string }

func (e *fixedEngine) Transcribe(ctx context.Context, req stt.Request) (*stt.Result, error) {
	return &stt.Result{Text: e.text}, nil
}

func (e *fixedEngine) Name() string { return "fixed" }

type fixedGenerator struct{ reply string }

func (g *fixedGenerator) Reply(ctx context.Context, transcript string) (string, error) {
	return g.reply, nil
}

type fixedGateway struct{}

func (fixedGateway) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	return &llm.ChatResponse{Content: "ok"}, nil
}

func (fixedGateway) ChatStream(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	return nil, errors.New("not supported")
}

func (fixedGateway) Embed(ctx context.Context, req llm.EmbeddingRequest) (*llm.EmbeddingResponse, error) {
	return &llm.EmbeddingResponse{}, nil
}

func (fixedGateway) Provider(name string) (llm.Provider, error) { return nil, errors.New("none") }

func (fixedGateway) ListModels() []llm.ModelInfo {
	return []llm.ModelInfo{{Provider: "openai", Model: "gpt-4", Type: "chat"}}
}

func testConfig(jwtSecret string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:           "127.0.0.1",
			Port:           8000,
			AllowedOrigins: []string{"*"},
			RateLimitRPS:   100,
			RateLimitBurst: 200,
		},
		Pipeline: config.PipelineConfig{
			MaxUploadBytes: 32 << 20,
			Timeout:        time.Minute,
		},
		Auth: config.AuthConfig{JWTSecret: jwtSecret},
	}
}

func newTestServer(t *testing.T, jwtSecret string) http.Handler {
	t.Helper()
	spooler := audio.NewSpooler(t.TempDir())
	engine := &fixedEngine{text: "hello"}
	p := pipeline.New(pipeline.Config{
		Spooler:     spooler,
		Transcriber: engine,
		Remote:      &fixedGenerator{reply: "hi there"},
		Local:       &fixedGenerator{reply: "local hi"},
		RemoteModel: "gpt-4",
		LocalModel:  "ggml-gpt4all-j",
	})
	rt := NewRouter(Deps{
		Config:   testConfig(jwtSecret),
		Pipeline: p,
		Engine:   engine,
		Spooler:  spooler,
		Gateway:  fixedGateway{},
		Metrics:  metrics.NewWith(prometheus.NewRegistry()),
	})
	return rt.Setup()
}

func audioRequest(t *testing.T, target string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "speech.wav")
	require.NoError(t, err)
	_, err = fw.Write([]byte("RIFF fake audio"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestRouterCompatEndpoint(t *testing.T) {
	srv := newTestServer(t, "")

	for _, target := range []string{"/process-audio/", "/process-audio"} {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, audioRequest(t, target))

		require.Equal(t, http.StatusOK, rec.Code, target)
		assert.JSONEq(t, `{"transcription":"hello","chatgpt_response":"hi there"}`, rec.Body.String())
	}
}

func TestRouterProbes(t *testing.T) {
	srv := newTestServer(t, "")

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, "")

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRouterAuthProtectsV1Only(t *testing.T) {
	srv := newTestServer(t, "test-secret")

	// v1 without a token is rejected.
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/models", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// v1 with a signed token works.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		Sub: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/models", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// The original endpoint stays open.
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, audioRequest(t, "/process-audio/"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterHistoryRoutesAbsentWithoutStore(t *testing.T) {
	srv := newTestServer(t, "")

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/history", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
