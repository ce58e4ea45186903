package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/udegarami/llmapi/internal/pipeline"
)

// ProcessHandler runs the audio pipeline synchronously.
type ProcessHandler struct {
	pipeline       *pipeline.Pipeline
	maxUploadBytes int64
}

func NewProcessHandler(p *pipeline.Pipeline, maxUploadBytes int64) *ProcessHandler {
	return &ProcessHandler{pipeline: p, maxUploadBytes: maxUploadBytes}
}

type processResponse struct {
	Transcription string `json:"transcription"`
	Reply         string `json:"chatgpt_response"`
}

type processResponseV1 struct {
	ID            string `json:"id,omitempty"`
	Transcription string `json:"transcription"`
	Reply         string `json:"reply"`
	Model         string `json:"model"`
	LatencyMs     int64  `json:"latency_ms"`
}

// openUpload pulls the multipart audio file out of the request and
// enforces the upload size limit.
func openUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) (multipart.File, *multipart.FileHeader, bool) {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeDetail(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("uploaded file exceeds the %d byte limit", maxErr.Limit))
			return nil, nil, false
		}
		writeDetail(w, http.StatusBadRequest, "multipart file field 'file' is required")
		return nil, nil, false
	}
	return file, header, true
}

// ProcessAudio is the original wire contract: multipart audio in,
// transcript and reply out, failures as {"detail": ...}.
func (h *ProcessHandler) ProcessAudio(w http.ResponseWriter, r *http.Request) {
	file, header, ok := openUpload(w, r, h.maxUploadBytes)
	if !ok {
		return
	}
	defer file.Close()

	res, err := h.pipeline.Process(r.Context(), pipeline.Upload{
		Filename: header.Filename,
		Size:     header.Size,
		Data:     file,
	}, r.FormValue("model_choice"))
	if err != nil {
		pipelineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, processResponse{
		Transcription: res.Transcription,
		Reply:         res.Reply,
	})
}

// ProcessAudioV1 is the same pipeline behind the richer v1 envelope.
func (h *ProcessHandler) ProcessAudioV1(w http.ResponseWriter, r *http.Request) {
	file, header, ok := openUpload(w, r, h.maxUploadBytes)
	if !ok {
		return
	}
	defer file.Close()

	res, err := h.pipeline.Process(r.Context(), pipeline.Upload{
		Filename: header.Filename,
		Size:     header.Size,
		Data:     file,
	}, r.FormValue("model_choice"))
	if err != nil {
		pipelineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, processResponseV1{
		ID:            res.ID,
		Transcription: res.Transcription,
		Reply:         res.Reply,
		Model:         res.Model,
		LatencyMs:     res.LatencyMs,
	})
}
