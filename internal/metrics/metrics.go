package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the audio pipeline
// service.
type Metrics struct {
	// Pipeline metrics
	PipelineRuns  *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec

	// Transcription metrics
	EmptyTranscriptions prometheus.Counter

	// Job metrics
	JobsEnqueued prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the metrics on reg. Tests pass a private registry
// so repeated construction stays independent.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		PipelineRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "llmapi_pipeline_runs_total",
			Help: "Total number of pipeline runs by engine choice and outcome",
		}, []string{"choice", "outcome"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "llmapi_pipeline_stage_duration_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		}, []string{"stage"}),
		EmptyTranscriptions: factory.NewCounter(prometheus.CounterOpts{
			Name: "llmapi_empty_transcriptions_total",
			Help: "Total number of transcriptions that produced no text",
		}),
		JobsEnqueued: factory.NewCounter(prometheus.CounterOpts{
			Name: "llmapi_jobs_enqueued_total",
			Help: "Total number of async audio jobs enqueued",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "llmapi_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "llmapi_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}

// RecordRun counts one finished pipeline run.
func (m *Metrics) RecordRun(choice, outcome string) {
	m.PipelineRuns.WithLabelValues(choice, outcome).Inc()
}

// ObserveStage records the duration of one pipeline stage.
func (m *Metrics) ObserveStage(stage string, seconds float64) {
	m.StageDuration.WithLabelValues(stage).Observe(seconds)
}

// RecordEmptyTranscription counts a transcription with no usable text.
func (m *Metrics) RecordEmptyTranscription() {
	m.EmptyTranscriptions.Inc()
}

// RecordJobEnqueued counts an enqueued async job.
func (m *Metrics) RecordJobEnqueued() {
	m.JobsEnqueued.Inc()
}

// RecordHTTPRequest counts one handled request and its duration.
func (m *Metrics) RecordHTTPRequest(method, path, status string, seconds float64) {
	m.HTTPRequests.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(seconds)
}
