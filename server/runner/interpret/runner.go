package interpret

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hrygo/snapnote/internal/errors"
	"github.com/hrygo/snapnote/internal/observability"
	"github.com/hrygo/snapnote/internal/profile"
	"github.com/hrygo/snapnote/plugin/ai/timeout"
	"github.com/hrygo/snapnote/store"
)

const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"

	// unknownErrorCode is reported for failures that carry no error kind.
	unknownErrorCode errors.ErrorCode = "UNKNOWN"

	defaultMaxAttempts = 5
	maxRetryBackoff    = 6 * time.Hour
)

// NoteSweeper lists pending notes and counts the attempts made on them.
type NoteSweeper interface {
	ListNotes(ctx context.Context, find *store.FindNote) ([]*store.Note, error)
	RecordNoteAttempt(ctx context.Context, record *store.RecordNoteAttempt) (*store.Note, error)
}

// Result is the outcome of one job.
type Result struct {
	NoteID     string         `json:"noteId"`
	RunID      string         `json:"runId"`
	Status     string         `json:"status"`
	Title      string         `json:"title,omitempty"`
	Summary    string         `json:"summary,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Stage      string         `json:"stage,omitempty"`
	ErrorCode  string         `json:"errorCode,omitempty"`
	Error      string         `json:"error,omitempty"`
	DurationMs int64          `json:"durationMs"`
}

// Runner executes pipeline runs one at a time, in batches, or as a periodic sweep of pending notes.
type Runner struct {
	pipeline *Pipeline
	notes    NoteSweeper
	metrics  *observability.Metrics
	logger   *slog.Logger

	concurrency int
	runTimeout  time.Duration
	interval    time.Duration
	gracePeriod time.Duration
	batchSize   int
	maxAttempts int
	// retryBackoff is the wait after the first sweep attempt; it doubles per attempt.
	retryBackoff time.Duration
}

// NewRunner creates a runner. notes may be nil when sweeping is not used.
func NewRunner(pipeline *Pipeline, notes NoteSweeper, p *profile.Profile, metrics *observability.Metrics) *Runner {
	r := &Runner{
		pipeline:    pipeline,
		notes:       notes,
		metrics:     metrics,
		logger:      pipeline.logger,
		concurrency: 4,
		runTimeout:  timeout.RunTimeout,
		interval:    2 * time.Minute,
		gracePeriod: 10 * time.Minute,
		batchSize:   32,
		maxAttempts: defaultMaxAttempts,
	}
	if p != nil {
		if p.WorkerConcurrency > 0 {
			r.concurrency = p.WorkerConcurrency
		}
		if p.WorkerRunTimeout > 0 {
			r.runTimeout = p.WorkerRunTimeout
		}
		if p.SweepInterval > 0 {
			r.interval = p.SweepInterval
		}
		if p.SweepGracePeriod > 0 {
			r.gracePeriod = p.SweepGracePeriod
		}
		if p.SweepMaxAttempts > 0 {
			r.maxAttempts = p.SweepMaxAttempts
		}
	}
	r.retryBackoff = r.interval
	return r
}

// RunOne runs a single job under the run timeout.
func (r *Runner) RunOne(ctx context.Context, job Job) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.runTimeout)
	defer cancel()

	rc := observability.NewRunContext(r.logger, job.NoteID)
	ctx = observability.WithRunContext(ctx, rc)

	note, err := r.pipeline.Run(ctx, job)
	if r.metrics != nil {
		r.metrics.RecordRun(err)
	}

	result := &Result{
		NoteID:     job.NoteID,
		RunID:      rc.RunID,
		DurationMs: rc.Duration().Milliseconds(),
	}
	if err != nil {
		result.Status = StatusFailed
		result.Stage = StageOf(err)
		result.ErrorCode = string(errors.GetCodeFromError(err, unknownErrorCode))
		result.Error = err.Error()
		rc.Error("interpretation failed", err, slog.String("stage", result.Stage))
		return result, err
	}

	result.Status = StatusCompleted
	result.Title = note.Title
	result.Summary = note.Summary
	result.Metadata = note.Metadata
	return result, nil
}

// RunBatch runs jobs concurrently. A failing job does not cancel the others;
// results are returned in job order.
func (r *Runner) RunBatch(ctx context.Context, jobs []Job) []*Result {
	results := make([]*Result, len(jobs))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, job := range jobs {
		g.Go(func() error {
			results[i], _ = r.RunOne(ctx, job)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Run sweeps on startup and then every interval until ctx is done.
func (r *Runner) Run(ctx context.Context) {
	r.sweepAndLog(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweepAndLog(ctx)
		case <-ctx.Done():
			r.logger.Info("interpretation sweeper stopped")
			return
		}
	}
}

func (r *Runner) sweepAndLog(ctx context.Context) {
	results, err := r.Sweep(ctx)
	if err != nil {
		r.logger.Error("failed to sweep pending notes", "error", err)
		return
	}
	if len(results) == 0 {
		return
	}
	failed := 0
	for _, res := range results {
		if res.Status == StatusFailed {
			failed++
		}
	}
	r.logger.Info("sweep finished", "processed", len(results), "failed", failed)
}

// Sweep re-drives notes still pending after the grace period, oldest first.
// Each pick is counted on the note before it runs; a note is retried with
// exponential backoff and left alone once it reaches the attempt limit.
func (r *Runner) Sweep(ctx context.Context) ([]*Result, error) {
	if r.notes == nil {
		return nil, nil
	}
	now := time.Now()
	completed := false
	cutoff := now.Add(-r.gracePeriod).Unix()
	due := now.Unix()
	limit, maxAttempts := r.batchSize, r.maxAttempts
	notes, err := r.notes.ListNotes(ctx, &store.FindNote{
		Completed:     &completed,
		CreatedBefore: &cutoff,
		AttemptsBelow: &maxAttempts,
		DueBy:         &due,
		OldestFirst:   true,
		Limit:         &limit,
	})
	if err != nil {
		return nil, err
	}
	if len(notes) == 0 {
		return nil, nil
	}

	r.logger.Info("sweeping pending notes", "count", len(notes))
	jobs := make([]Job, 0, len(notes))
	for _, note := range notes {
		attempt := note.InterpretAttempts + 1
		if _, err := r.notes.RecordNoteAttempt(ctx, &store.RecordNoteAttempt{
			UID:           note.UID,
			AttemptTs:     now.Unix(),
			NextAttemptTs: now.Add(r.backoff(attempt)).Unix(),
		}); err != nil {
			r.logger.Warn("skipping note, failed to record attempt", "note_id", note.UID, "error", err)
			continue
		}
		if attempt == r.maxAttempts {
			r.logger.Warn("last sweep attempt for note", "note_id", note.UID, "attempt", attempt)
		}
		jobs = append(jobs, Job{NoteID: note.UID, ImageURL: note.ImageURL})
	}
	return r.RunBatch(ctx, jobs), nil
}

// backoff returns the wait after the given attempt: retryBackoff * 2^(attempt-1), capped.
func (r *Runner) backoff(attempt int) time.Duration {
	if r.retryBackoff <= 0 {
		return 0
	}
	d := r.retryBackoff
	for i := 1; i < attempt && d < maxRetryBackoff; i++ {
		d *= 2
	}
	return min(d, maxRetryBackoff)
}
