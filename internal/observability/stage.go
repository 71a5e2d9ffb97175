package observability

import (
	"context"
	"log/slog"
	"time"

	"github.com/hrygo/snapnote/internal/errors"
)

const unknownErrorCode errors.ErrorCode = "UNKNOWN"

// Stage names one step of the interpretation pipeline.
type Stage string

const (
	StageFetch   Stage = "fetch"
	StageExtract Stage = "extract"
	StageParse   Stage = "parse"
	StageDerive  Stage = "derive"
	StageEmbed   Stage = "embed"
	StageCommit  Stage = "commit"
)

// Stages lists the pipeline stages in execution order.
var Stages = []Stage{StageFetch, StageExtract, StageParse, StageDerive, StageEmbed, StageCommit}

// Outcome is the result of a stage.
type Outcome string

const (
	OutcomeOK     Outcome = "ok"
	OutcomeFailed Outcome = "failed"
)

// StageEvent reports the completion of one stage.
type StageEvent struct {
	Stage    Stage
	RunID    string
	NoteID   string
	Outcome  Outcome
	Duration time.Duration
	Err      error
}

// StageObserver receives stage events. Implementations must be safe for concurrent use.
type StageObserver interface {
	ObserveStage(ctx context.Context, event StageEvent)
}

// LogObserver writes stage events as slog records.
type LogObserver struct {
	Logger *slog.Logger
}

// NewLogObserver returns a LogObserver; a nil logger means slog.Default().
func NewLogObserver(logger *slog.Logger) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogObserver{Logger: logger}
}

func (o *LogObserver) ObserveStage(ctx context.Context, event StageEvent) {
	attrs := []slog.Attr{
		slog.String(LogFieldRunID, event.RunID),
		slog.String(LogFieldNoteID, event.NoteID),
		slog.String(LogFieldStage, string(event.Stage)),
		slog.String(LogFieldOutcome, string(event.Outcome)),
		slog.Int64(LogFieldDuration, event.Duration.Milliseconds()),
	}
	level := slog.LevelDebug
	if event.Err != nil {
		level = slog.LevelWarn
		attrs = append(attrs,
			slog.String(LogFieldErrorCode, string(errors.GetCodeFromError(event.Err, unknownErrorCode))),
			slog.String("error", event.Err.Error()),
		)
	}
	o.Logger.LogAttrs(ctx, level, "pipeline stage finished", attrs...)
}

// MultiObserver fans events out to several observers in order.
type MultiObserver []StageObserver

func (m MultiObserver) ObserveStage(ctx context.Context, event StageEvent) {
	for _, o := range m {
		if o != nil {
			o.ObserveStage(ctx, event)
		}
	}
}
