package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Status is the lifecycle state of an async processing job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// ErrNotFound is returned when a job ID is unknown or its record expired.
var ErrNotFound = errors.New("job not found")

// Job is the stored state of one async audio request.
type Job struct {
	ID            string    `json:"id"`
	Status        Status    `json:"status"`
	ModelChoice   string    `json:"model_choice"`
	Filename      string    `json:"filename"`
	Transcription string    `json:"transcription,omitempty"`
	Reply         string    `json:"reply,omitempty"`
	Error         string    `json:"error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Store keeps job records in Redis with a bounded lifetime.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{client: client, ttl: ttl}
}

func jobKey(id string) string { return "job:" + id }

// Create stores a new job in the queued state.
func (s *Store) Create(ctx context.Context, id, modelChoice, filename string) (*Job, error) {
	now := time.Now().UTC()
	job := &Job{
		ID:          id,
		Status:      StatusQueued,
		ModelChoice: modelChoice,
		Filename:    filename,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.put(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Get returns a job by ID.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	val, err := s.client.Get(ctx, jobKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	var job Job
	if err := json.Unmarshal([]byte(val), &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}

// MarkRunning transitions a job to the running state.
func (s *Store) MarkRunning(ctx context.Context, id string) error {
	return s.transition(ctx, id, func(job *Job) {
		job.Status = StatusRunning
	})
}

// MarkSucceeded records the pipeline result on a finished job.
func (s *Store) MarkSucceeded(ctx context.Context, id, transcription, reply string) error {
	return s.transition(ctx, id, func(job *Job) {
		job.Status = StatusSucceeded
		job.Transcription = transcription
		job.Reply = reply
		job.Error = ""
	})
}

// MarkFailed records the failure message on a finished job.
func (s *Store) MarkFailed(ctx context.Context, id, message string) error {
	return s.transition(ctx, id, func(job *Job) {
		job.Status = StatusFailed
		job.Error = message
	})
}

func (s *Store) transition(ctx context.Context, id string, mutate func(*Job)) error {
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	mutate(job)
	job.UpdatedAt = time.Now().UTC()
	return s.put(ctx, job)
}

func (s *Store) put(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := s.client.Set(ctx, jobKey(job.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("store job %s: %w", job.ID, err)
	}
	return nil
}
