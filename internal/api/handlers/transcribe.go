package handlers

import (
	"net/http"

	"github.com/udegarami/llmapi/internal/audio"
	"github.com/udegarami/llmapi/internal/stt"
)

// TranscribeHandler exposes the speech-to-text engine without the
// generation step.
type TranscribeHandler struct {
	spooler        *audio.Spooler
	engine         stt.Engine
	maxUploadBytes int64
}

func NewTranscribeHandler(spooler *audio.Spooler, engine stt.Engine, maxUploadBytes int64) *TranscribeHandler {
	return &TranscribeHandler{spooler: spooler, engine: engine, maxUploadBytes: maxUploadBytes}
}

type transcribeResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language,omitempty"`
	Duration float64 `json:"duration,omitempty"`
	Engine   string  `json:"engine"`
}

func (h *TranscribeHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	file, _, ok := openUpload(w, r, h.maxUploadBytes)
	if !ok {
		return
	}
	defer file.Close()

	path, err := h.spooler.Spool(file)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "failed to store upload: "+err.Error())
		return
	}
	defer h.spooler.Remove(path)

	result, err := h.engine.Transcribe(r.Context(), stt.Request{
		FilePath: path,
		Language: r.FormValue("language"),
		Prompt:   r.FormValue("prompt"),
	})
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "transcription failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, transcribeResponse{
		Text:     result.Text,
		Language: result.Language,
		Duration: result.Duration,
		Engine:   h.engine.Name(),
	})
}
