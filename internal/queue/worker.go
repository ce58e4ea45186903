package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"github.com/udegarami/llmapi/internal/pipeline"
)

// StatusStore records job lifecycle transitions.
type StatusStore interface {
	MarkRunning(ctx context.Context, id string) error
	MarkSucceeded(ctx context.Context, id, transcription, reply string) error
	MarkFailed(ctx context.Context, id, message string) error
}

// AudioWorker consumes audio:process tasks and drives the pipeline.
type AudioWorker struct {
	pipeline *pipeline.Pipeline
	jobs     StatusStore
	logger   *slog.Logger
}

func NewAudioWorker(p *pipeline.Pipeline, jobs StatusStore, logger *slog.Logger) *AudioWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &AudioWorker{pipeline: p, jobs: jobs, logger: logger}
}

// Mux returns an asynq mux with all task handlers registered.
func (w *AudioWorker) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypeAudioProcess, asynq.HandlerFunc(w.ProcessTask))
	return mux
}

// ProcessTask runs the pipeline for one spooled upload. The spooled
// file is removed whatever the outcome; failures land in the job record
// rather than being retried.
func (w *AudioWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload AudioProcessPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	defer func() {
		if err := os.Remove(payload.AudioPath); err != nil && !os.IsNotExist(err) {
			w.logger.Warn("failed to remove spooled audio", "path", payload.AudioPath, "error", err)
		}
	}()

	w.logger.Info("processing audio job", "job_id", payload.JobID, "filename", payload.Filename)

	if err := w.jobs.MarkRunning(ctx, payload.JobID); err != nil {
		w.logger.Warn("failed to mark job running", "job_id", payload.JobID, "error", err)
	}

	res, err := w.pipeline.ProcessFile(ctx, payload.AudioPath, payload.Filename, payload.ModelChoice)
	if err != nil {
		if markErr := w.jobs.MarkFailed(ctx, payload.JobID, err.Error()); markErr != nil {
			w.logger.Error("failed to mark job failed", "job_id", payload.JobID, "error", markErr)
		}
		return fmt.Errorf("process job %s: %w", payload.JobID, err)
	}

	if err := w.jobs.MarkSucceeded(ctx, payload.JobID, res.Transcription, res.Reply); err != nil {
		w.logger.Error("failed to mark job succeeded", "job_id", payload.JobID, "error", err)
	}

	w.logger.Info("audio job finished", "job_id", payload.JobID, "latency_ms", res.LatencyMs)
	return nil
}
