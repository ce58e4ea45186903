package handlers

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udegarami/llmapi/internal/audio"
	"github.com/udegarami/llmapi/internal/pipeline"
	"github.com/udegarami/llmapi/internal/stt"
)

type stubEngine struct {
	text  string
	err   error
	calls int
}

func (e *stubEngine) Transcribe(ctx context.Context, req stt.Request) (*stt.Result, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return &stt.Result{Text: e.text}, nil
}

func (e *stubEngine) Name() string { return "stub" }

type stubGenerator struct {
	reply string
	err   error
	calls int
}

func (g *stubGenerator) Reply(ctx context.Context, transcript string) (string, error) {
	g.calls++
	return g.reply, g.err
}

type handlerEnv struct {
	handler     *ProcessHandler
	spoolDir    string
	transcriber *stubEngine
	remote      *stubGenerator
	local       *stubGenerator
}

func newHandlerEnv(t *testing.T, withRemote bool) *handlerEnv {
	t.Helper()
	env := &handlerEnv{
		spoolDir:    t.TempDir(),
		transcriber: &stubEngine{text: "hello"},
		remote:      &stubGenerator{reply: "hi there"},
		local:       &stubGenerator{reply: "local hi"},
	}
	cfg := pipeline.Config{
		Spooler:     audio.NewSpooler(env.spoolDir),
		Transcriber: env.transcriber,
		Local:       env.local,
		RemoteModel: "gpt-4",
		LocalModel:  "ggml-gpt4all-j",
	}
	if withRemote {
		cfg.Remote = env.remote
	}
	env.handler = NewProcessHandler(pipeline.New(cfg), 32<<20)
	return env
}

// multipartUpload builds a request body with a file part and extra
// form fields.
func multipartUpload(t *testing.T, filename string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func postAudio(t *testing.T, h http.HandlerFunc, target string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartUpload(t, "speech.wav", []byte("RIFF fake audio"), fields)
	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func spoolEntries(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return len(entries)
}

func TestProcessAudioDefaultChoice(t *testing.T) {
	env := newHandlerEnv(t, true)

	rec := postAudio(t, env.handler.ProcessAudio, "/process-audio/", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"transcription":"hello","chatgpt_response":"hi there"}`, rec.Body.String())
	assert.Equal(t, 1, env.remote.calls)
	assert.Zero(t, env.local.calls)
}

func TestProcessAudioLocalChoice(t *testing.T) {
	env := newHandlerEnv(t, true)

	rec := postAudio(t, env.handler.ProcessAudio, "/process-audio/", map[string]string{
		"model_choice": "GPT4All",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"transcription":"hello","chatgpt_response":"local hi"}`, rec.Body.String())
	assert.Zero(t, env.remote.calls, "remote service must not be invoked for the local choice")
}

func TestProcessAudioChoiceFromQuery(t *testing.T) {
	env := newHandlerEnv(t, true)

	rec := postAudio(t, env.handler.ProcessAudio, "/process-audio/?model_choice=GPT4All", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, env.remote.calls)
	assert.Equal(t, 1, env.local.calls)
}

func TestProcessAudioMissingCredential(t *testing.T) {
	env := newHandlerEnv(t, false)

	rec := postAudio(t, env.handler.ProcessAudio, "/process-audio/", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t,
		`{"detail":"OpenAI API key is not configured. Please set the 'OPENAI_API_KEY' environment variable."}`,
		rec.Body.String())
	assert.Zero(t, env.transcriber.calls, "no transcription before the credential gate")
	assert.Zero(t, spoolEntries(t, env.spoolDir), "no temp file before the credential gate")
}

func TestProcessAudioEmptyTranscript(t *testing.T) {
	env := newHandlerEnv(t, true)
	env.transcriber.text = ""

	rec := postAudio(t, env.handler.ProcessAudio, "/process-audio/", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"detail":"Transcription failed: No text generated."}`, rec.Body.String())
	assert.Zero(t, env.remote.calls, "no generation after an empty transcript")
}

func TestProcessAudioUnknownChoice(t *testing.T) {
	env := newHandlerEnv(t, true)

	rec := postAudio(t, env.handler.ProcessAudio, "/process-audio/", map[string]string{
		"model_choice": "Claude",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unsupported model_choice")
}

func TestProcessAudioGenerationFailure(t *testing.T) {
	env := newHandlerEnv(t, true)
	env.remote.err = errors.New("rate limited")

	rec := postAudio(t, env.handler.ProcessAudio, "/process-audio/", nil)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{"detail":"Error with OpenAI API: rate limited"}`, rec.Body.String())
}

func TestProcessAudioMissingFile(t *testing.T) {
	env := newHandlerEnv(t, true)

	body, contentType := multipartUpload(t, "", nil, map[string]string{"model_choice": "GPT4All"})
	req := httptest.NewRequest(http.MethodPost, "/process-audio/", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	env.handler.ProcessAudio(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "file")
	assert.Zero(t, env.transcriber.calls)
}

func TestProcessAudioUploadTooLarge(t *testing.T) {
	env := newHandlerEnv(t, true)
	env.handler.maxUploadBytes = 10

	rec := postAudio(t, env.handler.ProcessAudio, "/process-audio/", nil)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "byte limit")
}

func TestProcessAudioLeavesNoTempFiles(t *testing.T) {
	env := newHandlerEnv(t, true)

	postAudio(t, env.handler.ProcessAudio, "/process-audio/", nil)
	env.transcriber.text = ""
	postAudio(t, env.handler.ProcessAudio, "/process-audio/", nil)

	assert.Zero(t, spoolEntries(t, env.spoolDir))
}

func TestProcessAudioV1Envelope(t *testing.T) {
	env := newHandlerEnv(t, true)

	rec := postAudio(t, env.handler.ProcessAudioV1, "/api/v1/process", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"transcription":"hello"`)
	assert.Contains(t, body, `"reply":"hi there"`)
	assert.Contains(t, body, `"model":"gpt-4"`)
	assert.Contains(t, body, `"latency_ms"`)
}

func TestProcessAudioV1ErrorShape(t *testing.T) {
	env := newHandlerEnv(t, false)

	rec := postAudio(t, env.handler.ProcessAudioV1, "/api/v1/process", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "OPENAI_API_KEY")
}
