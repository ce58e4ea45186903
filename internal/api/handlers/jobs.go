package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/udegarami/llmapi/internal/audio"
	"github.com/udegarami/llmapi/internal/jobs"
	"github.com/udegarami/llmapi/internal/metrics"
	"github.com/udegarami/llmapi/internal/pipeline"
	"github.com/udegarami/llmapi/internal/queue"
)

// JobQueue enqueues background audio tasks.
type JobQueue interface {
	EnqueueAudioProcess(payload queue.AudioProcessPayload) error
}

// JobStore is the slice of the job store the API needs.
type JobStore interface {
	Create(ctx context.Context, id, modelChoice, filename string) (*jobs.Job, error)
	Get(ctx context.Context, id string) (*jobs.Job, error)
	MarkFailed(ctx context.Context, id, message string) error
}

// JobsHandler accepts uploads for background processing and reports
// job state.
type JobsHandler struct {
	spooler        *audio.Spooler
	queue          JobQueue
	store          JobStore
	metrics        *metrics.Metrics
	logger         *slog.Logger
	maxUploadBytes int64
}

func NewJobsHandler(spooler *audio.Spooler, q JobQueue, store JobStore, m *metrics.Metrics, logger *slog.Logger, maxUploadBytes int64) *JobsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobsHandler{
		spooler:        spooler,
		queue:          q,
		store:          store,
		metrics:        m,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
	}
}

// Submit spools the upload and enqueues it. The spooled file is handed
// to the worker, which owns its removal; on enqueue failure the file
// is removed here.
func (h *JobsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	file, header, ok := openUpload(w, r, h.maxUploadBytes)
	if !ok {
		return
	}
	defer file.Close()

	choice := r.FormValue("model_choice")
	if !pipeline.ValidChoice(choice) {
		writeDetail(w, http.StatusBadRequest, fmt.Sprintf("unsupported model_choice: %q", choice))
		return
	}

	path, err := h.spooler.Spool(file)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "failed to store upload: "+err.Error())
		return
	}

	id := uuid.NewString()
	if _, err := h.store.Create(r.Context(), id, choice, header.Filename); err != nil {
		h.discard(path)
		writeDetail(w, http.StatusInternalServerError, "failed to create job: "+err.Error())
		return
	}

	err = h.queue.EnqueueAudioProcess(queue.AudioProcessPayload{
		JobID:       id,
		AudioPath:   path,
		Filename:    header.Filename,
		ModelChoice: choice,
	})
	if err != nil {
		h.discard(path)
		if markErr := h.store.MarkFailed(r.Context(), id, "failed to enqueue job"); markErr != nil {
			h.logger.Warn("failed to mark job failed", "job_id", id, "error", markErr)
		}
		writeDetail(w, http.StatusInternalServerError, "failed to enqueue job: "+err.Error())
		return
	}

	if h.metrics != nil {
		h.metrics.RecordJobEnqueued()
	}
	h.logger.Info("audio job enqueued", "job_id", id, "filename", header.Filename)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id": id,
		"status": string(jobs.StatusQueued),
	})
}

// Get reports the current state of a job, including its result once
// the worker finishes.
func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	job, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			writeDetail(w, http.StatusNotFound, "job not found")
			return
		}
		writeDetail(w, http.StatusInternalServerError, "failed to load job: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, job)
}

func (h *JobsHandler) discard(path string) {
	if err := h.spooler.Remove(path); err != nil {
		h.logger.Warn("failed to remove spooled audio", "path", path, "error", err)
	}
}
