package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/udegarami/llmapi/internal/audio"
	"github.com/udegarami/llmapi/internal/metrics"
	"github.com/udegarami/llmapi/internal/stt"
)

// Engine choices accepted on the wire. An empty choice means OpenAI.
const (
	ChoiceOpenAI  = "OpenAI API"
	ChoiceGPT4All = "GPT4All"
)

// ValidChoice reports whether choice names a supported engine.
func ValidChoice(choice string) bool {
	switch choice {
	case "", ChoiceOpenAI, ChoiceGPT4All:
		return true
	}
	return false
}

// Generator produces a conversational reply for a transcript.
type Generator interface {
	Reply(ctx context.Context, transcript string) (string, error)
}

// Exchange is one completed transcript/reply pair handed to the
// history recorder.
type Exchange struct {
	Model         string
	Transcription string
	Reply         string
	Filename      string
	AudioBytes    int64
	LatencyMs     int64
}

// Recorder persists finished exchanges and returns their storage ID.
type Recorder interface {
	Record(ctx context.Context, ex Exchange) (string, error)
}

// Upload is the raw audio handed to the pipeline.
type Upload struct {
	Filename string
	Size     int64
	Data     io.Reader
}

// Result is a successful pipeline run.
type Result struct {
	ID            string
	Transcription string
	Reply         string
	Model         string
	LatencyMs     int64
}

// Config wires a Pipeline. Remote may be nil when no OpenAI key is
// configured; History and Metrics may be nil.
type Config struct {
	Spooler     *audio.Spooler
	Transcriber stt.Engine
	Remote      Generator
	Local       Generator
	RemoteModel string
	LocalModel  string
	History     Recorder
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
	Timeout     time.Duration
}

// Pipeline orchestrates one audio upload end to end: spool, transcribe,
// generate, assemble. Engines are constructed once at process start and
// shared; runs are independent and hold no shared mutable state.
type Pipeline struct {
	spooler     *audio.Spooler
	transcriber stt.Engine
	remote      Generator
	local       Generator
	remoteModel string
	localModel  string
	history     Recorder
	metrics     *metrics.Metrics
	logger      *slog.Logger
	timeout     time.Duration
}

func New(cfg Config) *Pipeline {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewWith(prometheus.NewRegistry())
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &Pipeline{
		spooler:     cfg.Spooler,
		transcriber: cfg.Transcriber,
		remote:      cfg.Remote,
		local:       cfg.Local,
		remoteModel: cfg.RemoteModel,
		localModel:  cfg.LocalModel,
		history:     cfg.History,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		timeout:     cfg.Timeout,
	}
}

// target is one resolved generation branch.
type target struct {
	engine string // "openai" or "local"
	model  string
	gen    Generator
}

// selectTarget resolves the wire choice. The credential gate lives
// here: a remote choice without a configured remote generator fails
// before any file I/O happens.
func (p *Pipeline) selectTarget(choice string) (target, *Error) {
	switch choice {
	case "", ChoiceOpenAI:
		if p.remote == nil {
			return target{engine: "openai"}, errConfiguration()
		}
		return target{engine: "openai", model: p.remoteModel, gen: p.remote}, nil
	case ChoiceGPT4All:
		return target{engine: "local", model: p.localModel, gen: p.local}, nil
	default:
		return target{engine: "invalid"}, errInvalidChoice(choice)
	}
}

// Process runs the full pipeline on an uploaded stream. The upload is
// spooled to a temp file that is removed on every exit path.
func (p *Pipeline) Process(ctx context.Context, up Upload, choice string) (*Result, error) {
	t, perr := p.selectTarget(choice)
	if perr != nil {
		p.metrics.RecordRun(t.engine, string(perr.Kind))
		return nil, perr
	}

	start := time.Now()
	path, err := p.spooler.Spool(up.Data)
	if err != nil {
		uerr := errUnexpected(err)
		p.metrics.RecordRun(t.engine, string(uerr.Kind))
		return nil, uerr
	}
	p.metrics.ObserveStage("spool", time.Since(start).Seconds())
	p.logger.Debug("audio spooled", "path", path, "filename", up.Filename, "bytes", up.Size)

	defer func() {
		if rmErr := p.spooler.Remove(path); rmErr != nil {
			p.logger.Warn("failed to remove spooled audio", "path", path, "error", rmErr)
		}
	}()

	res, rerr := p.run(ctx, t, path, up.Filename, up.Size, start)
	p.recordOutcome(t.engine, rerr)
	return res, rerr
}

// ProcessFile runs the pipeline on audio already sitting on disk (the
// async job path). The caller owns the file and its removal.
func (p *Pipeline) ProcessFile(ctx context.Context, path, filename, choice string) (*Result, error) {
	t, perr := p.selectTarget(choice)
	if perr != nil {
		p.metrics.RecordRun(t.engine, string(perr.Kind))
		return nil, perr
	}

	info, err := os.Stat(path)
	if err != nil {
		uerr := errUnexpected(err)
		p.metrics.RecordRun(t.engine, string(uerr.Kind))
		return nil, uerr
	}

	start := time.Now()
	res, rerr := p.run(ctx, t, path, filename, info.Size(), start)
	p.recordOutcome(t.engine, rerr)
	return res, rerr
}

func (p *Pipeline) recordOutcome(engine string, err error) {
	outcome := "success"
	if err != nil {
		var perr *Error
		if errors.As(err, &perr) {
			outcome = string(perr.Kind)
		} else {
			outcome = string(KindUnexpected)
		}
		p.logger.Error("pipeline run failed", "engine", engine, "outcome", outcome, "error", err)
	}
	p.metrics.RecordRun(engine, outcome)
}

func (p *Pipeline) run(ctx context.Context, t target, path, filename string, size int64, start time.Time) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	stageStart := time.Now()
	tr, err := p.transcriber.Transcribe(ctx, stt.Request{FilePath: path})
	if err != nil {
		return nil, errUnexpected(err)
	}
	p.metrics.ObserveStage("transcription", time.Since(stageStart).Seconds())

	transcript := strings.TrimSpace(tr.Text)
	p.logger.Debug("transcription complete", "engine", p.transcriber.Name(), "chars", len(transcript))
	if transcript == "" {
		p.metrics.RecordEmptyTranscription()
		return nil, errEmptyTranscript()
	}

	stageStart = time.Now()
	reply, err := t.gen.Reply(ctx, transcript)
	if err != nil {
		if t.engine == "local" {
			return nil, errLocalGeneration(err)
		}
		return nil, errRemoteGeneration(err)
	}
	p.metrics.ObserveStage("generation", time.Since(stageStart).Seconds())
	p.logger.Debug("generation complete", "engine", t.engine, "model", t.model, "chars", len(reply))

	res := &Result{
		Transcription: transcript,
		Reply:         reply,
		Model:         t.model,
		LatencyMs:     time.Since(start).Milliseconds(),
	}

	if p.history != nil {
		id, err := p.history.Record(ctx, Exchange{
			Model:         t.model,
			Transcription: res.Transcription,
			Reply:         res.Reply,
			Filename:      filename,
			AudioBytes:    size,
			LatencyMs:     res.LatencyMs,
		})
		if err != nil {
			p.logger.Warn("history record failed", "error", err)
		} else {
			res.ID = id
		}
	}

	return res, nil
}
