package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udegarami/llmapi/internal/audio"
	"github.com/udegarami/llmapi/internal/jobs"
	"github.com/udegarami/llmapi/internal/queue"
)

type fakeJobQueue struct {
	enqueued []queue.AudioProcessPayload
	err      error
}

func (q *fakeJobQueue) EnqueueAudioProcess(p queue.AudioProcessPayload) error {
	if q.err != nil {
		return q.err
	}
	q.enqueued = append(q.enqueued, p)
	return nil
}

type fakeJobStore struct {
	created map[string]*jobs.Job
	failed  map[string]string
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{created: make(map[string]*jobs.Job), failed: make(map[string]string)}
}

func (s *fakeJobStore) Create(ctx context.Context, id, modelChoice, filename string) (*jobs.Job, error) {
	job := &jobs.Job{ID: id, Status: jobs.StatusQueued, ModelChoice: modelChoice, Filename: filename}
	s.created[id] = job
	return job, nil
}

func (s *fakeJobStore) Get(ctx context.Context, id string) (*jobs.Job, error) {
	job, ok := s.created[id]
	if !ok {
		return nil, jobs.ErrNotFound
	}
	return job, nil
}

func (s *fakeJobStore) MarkFailed(ctx context.Context, id, message string) error {
	s.failed[id] = message
	return nil
}

func newJobsEnv(t *testing.T) (*JobsHandler, *fakeJobQueue, *fakeJobStore, string) {
	t.Helper()
	dir := t.TempDir()
	q := &fakeJobQueue{}
	store := newFakeJobStore()
	h := NewJobsHandler(audio.NewSpooler(dir), q, store, nil, nil, 32<<20)
	return h, q, store, dir
}

func TestJobSubmit(t *testing.T) {
	h, q, store, _ := newJobsEnv(t)

	rec := postAudio(t, h.Submit, "/api/v1/jobs", map[string]string{"model_choice": "GPT4All"})

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "queued", resp["status"])
	assert.NotEmpty(t, resp["job_id"])

	require.Len(t, q.enqueued, 1)
	payload := q.enqueued[0]
	assert.Equal(t, resp["job_id"], payload.JobID)
	assert.Equal(t, "speech.wav", payload.Filename)
	assert.Equal(t, "GPT4All", payload.ModelChoice)
	assert.FileExists(t, payload.AudioPath, "spooled file is handed to the worker")

	_, ok := store.created[resp["job_id"]]
	assert.True(t, ok)
}

func TestJobSubmitRejectsUnknownChoice(t *testing.T) {
	h, q, _, dir := newJobsEnv(t)

	rec := postAudio(t, h.Submit, "/api/v1/jobs", map[string]string{"model_choice": "Claude"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, q.enqueued)
	assert.Zero(t, spoolEntries(t, dir), "nothing spooled for a rejected choice")
}

func TestJobSubmitEnqueueFailure(t *testing.T) {
	h, q, store, dir := newJobsEnv(t)
	q.err = errors.New("redis down")

	rec := postAudio(t, h.Submit, "/api/v1/jobs", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Zero(t, spoolEntries(t, dir), "spooled file removed when enqueue fails")
	assert.Len(t, store.failed, 1)
}

func TestJobGet(t *testing.T) {
	h, _, store, _ := newJobsEnv(t)
	store.created["abc"] = &jobs.Job{ID: "abc", Status: jobs.StatusSucceeded, Reply: "done"}

	r := chi.NewRouter()
	r.Get("/api/v1/jobs/{id}", h.Get)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/abc", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"succeeded"`)
	assert.Contains(t, rec.Body.String(), `"reply":"done"`)
}

func TestJobGetNotFound(t *testing.T) {
	h, _, _, _ := newJobsEnv(t)

	r := chi.NewRouter()
	r.Get("/api/v1/jobs/{id}", h.Get)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/missing", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"detail":"job not found"}`, rec.Body.String())
}
