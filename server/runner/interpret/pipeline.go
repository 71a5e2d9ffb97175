// Package interpret drives a note image through fetch, inference, parsing,
// derivation, embedding and commit.
package interpret

import (
	"context"
	"encoding/json"
	"log/slog"
	"mime"
	"net/url"
	"path"
	"time"

	"github.com/pkg/errors"

	snaperrors "github.com/hrygo/snapnote/internal/errors"
	"github.com/hrygo/snapnote/internal/observability"
	"github.com/hrygo/snapnote/plugin/ai"
	"github.com/hrygo/snapnote/plugin/ai/interpret"
	"github.com/hrygo/snapnote/plugin/ai/timeout"
	"github.com/hrygo/snapnote/store"
)

// ObjectFetcher returns the bytes of the object at uri.
type ObjectFetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// Embedder produces normalized embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string, mode ai.EmbeddingMode) ([]float32, error)
}

// InterpretationCommitter persists a finished interpretation.
type InterpretationCommitter interface {
	CommitNoteInterpretation(ctx context.Context, commit *store.CommitNoteInterpretation) (*store.Note, error)
}

// Pipeline runs the interpretation stages in order and stops at the first failure.
type Pipeline struct {
	fetcher   ObjectFetcher
	vision    ai.VisionService
	embedder  Embedder
	committer InterpretationCommitter

	observer          observability.StageObserver
	logger            *slog.Logger
	maxImageDimension int
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithObserver sets the stage observer.
func WithObserver(observer observability.StageObserver) PipelineOption {
	return func(p *Pipeline) {
		p.observer = observer
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithMaxImageDimension sets the longest image edge sent to the model; 0 disables resizing.
func WithMaxImageDimension(px int) PipelineOption {
	return func(p *Pipeline) {
		p.maxImageDimension = px
	}
}

// NewPipeline creates a pipeline.
func NewPipeline(fetcher ObjectFetcher, vision ai.VisionService, embedder Embedder, committer InterpretationCommitter, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		fetcher:           fetcher,
		vision:            vision,
		embedder:          embedder,
		committer:         committer,
		logger:            slog.Default(),
		maxImageDimension: ai.DefaultMaxImageDimension,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.observer == nil {
		p.observer = observability.NewLogObserver(p.logger)
	}
	return p
}

// Run interprets the job's image and commits the result to the note.
// On failure nothing is written and the error carries the failing stage.
func (p *Pipeline) Run(ctx context.Context, job Job) (*store.Note, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}
	rc, ok := observability.FromContext(ctx)
	if !ok {
		rc = observability.NewRunContext(p.logger, job.NoteID)
		ctx = observability.WithRunContext(ctx, rc)
	}
	rc.Info("interpretation started", slog.String("image_url", job.ImageURL))

	var image []byte
	err := p.stage(ctx, rc, observability.StageFetch, timeout.FetchTimeout, func(ctx context.Context) error {
		var err error
		image, err = p.fetcher.Fetch(ctx, job.ImageURL)
		return err
	})
	if err != nil {
		return nil, err
	}

	var raw string
	err = p.stage(ctx, rc, observability.StageExtract, timeout.VisionTimeout, func(ctx context.Context) error {
		data, mediaType := ai.PrepareImage(image, declaredMediaType(job.ImageURL), p.maxImageDimension)
		var err error
		raw, err = p.vision.Extract(ctx, data, mediaType)
		return err
	})
	if err != nil {
		return nil, err
	}

	var interp *interpret.Interpretation
	err = p.stage(ctx, rc, observability.StageParse, 0, func(context.Context) error {
		var err error
		interp, err = interpret.Parse(raw)
		return err
	})
	if err != nil {
		rc.Warn("model output rejected", slog.String("raw_output", timeout.Truncate(raw)))
		return nil, err
	}

	var derived *interpret.Derived
	var document json.RawMessage
	err = p.stage(ctx, rc, observability.StageDerive, 0, func(context.Context) error {
		derived = interpret.Derive(interp)
		var err error
		document, err = json.Marshal(interp)
		return err
	})
	if err != nil {
		return nil, err
	}

	var embedding []float32
	err = p.stage(ctx, rc, observability.StageEmbed, timeout.EmbeddingTimeout, func(ctx context.Context) error {
		var err error
		embedding, err = p.embedder.Embed(ctx, derived.EmbeddingText(), ai.ModePassage)
		return err
	})
	if err != nil {
		return nil, err
	}

	var note *store.Note
	err = p.stage(ctx, rc, observability.StageCommit, timeout.CommitTimeout, func(ctx context.Context) error {
		var err error
		note, err = p.committer.CommitNoteInterpretation(ctx, &store.CommitNoteInterpretation{
			UID:            job.NoteID,
			Title:          derived.Title,
			Summary:        derived.Summary,
			Interpretation: document,
			Embedding:      embedding,
			Metadata:       derived.Metadata,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	rc.Info("interpretation completed",
		slog.String("title", note.Title),
		slog.Int64(observability.LogFieldDuration, rc.Duration().Milliseconds()),
	)
	return note, nil
}

// stage runs fn under an optional timeout, reports it to the observer and tags errors with the stage.
func (p *Pipeline) stage(ctx context.Context, rc *observability.RunContext, stage observability.Stage, limit time.Duration, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return stageError(stage, err)
	}
	stageCtx := ctx
	if limit > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, limit)
		defer cancel()
	}

	start := time.Now()
	err := fn(stageCtx)
	if err != nil {
		err = stageError(stage, err)
	}

	event := observability.StageEvent{
		Stage:    stage,
		RunID:    rc.RunID,
		NoteID:   rc.NoteID,
		Outcome:  observability.OutcomeOK,
		Duration: time.Since(start),
		Err:      err,
	}
	if err != nil {
		event.Outcome = observability.OutcomeFailed
	}
	p.observer.ObserveStage(ctx, event)
	return err
}

// stageError attaches the stage to coded errors. A cancelled or expired run
// context before a stage starts gets that stage's failure kind.
func stageError(stage observability.Stage, err error) error {
	if e, ok := snaperrors.As(err); ok {
		e.WithContext("stage", string(stage))
		return err
	}
	if code, ok := stageKinds[stage]; ok && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return snaperrors.Wrap(err, code, "run aborted").WithContext("stage", string(stage))
	}
	return errors.Wrapf(err, "%s stage failed", stage)
}

var stageKinds = map[observability.Stage]snaperrors.ErrorCode{
	observability.StageFetch:   snaperrors.ErrCodeObjectUnavailable,
	observability.StageExtract: snaperrors.ErrCodeInferenceUnavailable,
	observability.StageEmbed:   snaperrors.ErrCodeInferenceUnavailable,
}

// StageOf returns the stage recorded on err, if any.
func StageOf(err error) string {
	if e, ok := snaperrors.As(err); ok {
		if s, ok := e.Context["stage"].(string); ok {
			return s
		}
	}
	return ""
}

func declaredMediaType(imageURL string) string {
	p := imageURL
	if u, err := url.Parse(imageURL); err == nil {
		p = u.Path
	}
	ext := path.Ext(p)
	if ext == "" {
		return ""
	}
	mediaType, _, _ := mime.ParseMediaType(mime.TypeByExtension(ext))
	return mediaType
}
