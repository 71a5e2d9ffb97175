package store

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/lithammer/shortuuid/v4"

	"github.com/hrygo/snapnote/internal/errors"
)

const (
	// DefaultSearchLimit is the number of nearest notes returned when no limit is given.
	DefaultSearchLimit = 30
	// MaxNumCandidates caps the approximate-search candidate pool.
	MaxNumCandidates = 10000
	// CandidateMultiplier sizes the candidate pool relative to the limit.
	CandidateMultiplier = 30
)

// Note is one captured image and, once interpreted, its searchable representation.
type Note struct {
	// ID is the datastore primary key.
	ID string
	// UID is the external identifier the pipeline commits against.
	UID      string
	OwnerID  string
	ImageURL string

	Embedding      []float32
	Title          string
	Summary        string
	Metadata       map[string]any
	Interpretation json.RawMessage

	InterpretationCompleted bool
	CreatedTs               int64
	UpdatedTs               int64

	// InterpretAttempts counts sweeper-driven runs. NextAttemptTs is the earliest
	// time the sweeper may pick the note again.
	InterpretAttempts int
	LastAttemptTs     int64
	NextAttemptTs     int64
}

// FindNote is the find condition for notes.
type FindNote struct {
	ID        *string
	UID       *string
	OwnerID   *string
	Completed *bool
	// CreatedBefore matches notes with created_ts strictly lower.
	CreatedBefore *int64
	// AttemptsBelow matches notes with fewer interpret attempts.
	AttemptsBelow *int
	// DueBy matches notes whose next attempt time is not after it.
	DueBy *int64
	// OldestFirst lists by created_ts ascending instead of newest first.
	OldestFirst bool
	Limit       *int
}

// RecordNoteAttempt counts one interpretation attempt against a note.
type RecordNoteAttempt struct {
	UID string
	// AttemptTs is when the attempt started; NextAttemptTs gates the next sweep.
	AttemptTs     int64
	NextAttemptTs int64
}

// CommitNoteInterpretation sets every interpretation field of a note in one update.
type CommitNoteInterpretation struct {
	UID            string
	Title          string
	Summary        string
	Interpretation json.RawMessage
	Embedding      []float32
	// Metadata is merged into the note's existing metadata.
	Metadata map[string]any
}

// DeleteNote is the delete condition for a note.
type DeleteNote struct {
	UID string
}

// NoteWithScore is a vector search hit.
type NoteWithScore struct {
	Note *Note
	// Score is the cosine similarity to the query vector.
	Score float32
}

// NoteVectorSearch represents the options for note vector search.
type NoteVectorSearch struct {
	OwnerID string    // Required, only notes of this owner are searched
	Vector  []float32 // Query vector
	Limit   int       // Number of results to return, default 30
	// NumCandidates is the approximate-search candidate pool, default min(10000, Limit*30).
	NumCandidates int
}

// NumCandidatesFor returns the default candidate pool for limit.
func NumCandidatesFor(limit int) int {
	return min(MaxNumCandidates, limit*CandidateMultiplier)
}

// CreateNote creates a note awaiting interpretation. A UID is generated when empty.
func (s *Store) CreateNote(ctx context.Context, create *Note) (*Note, error) {
	if strings.TrimSpace(create.OwnerID) == "" {
		return nil, errors.MissingScope("note owner is required")
	}
	if strings.TrimSpace(create.ImageURL) == "" {
		return nil, errors.InvalidInput("note image url is required")
	}
	if create.UID == "" {
		create.UID = shortuuid.New()
	}
	if create.Metadata == nil {
		create.Metadata = map[string]any{}
	}
	create.InterpretationCompleted = false
	create.Embedding = nil
	create.Interpretation = nil
	return s.driver.CreateNote(ctx, create)
}

// GetNote returns the first matching note, or nil if none matches.
func (s *Store) GetNote(ctx context.Context, find *FindNote) (*Note, error) {
	limit := 1
	f := *find
	f.Limit = &limit
	list, err := s.driver.ListNotes(ctx, &f)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// ListNotes lists notes, newest first unless find.OldestFirst is set.
func (s *Store) ListNotes(ctx context.Context, find *FindNote) ([]*Note, error) {
	return s.driver.ListNotes(ctx, find)
}

// CommitNoteInterpretation writes the interpretation, derived fields and embedding
// atomically and marks the note completed. It never creates a note.
func (s *Store) CommitNoteInterpretation(ctx context.Context, commit *CommitNoteInterpretation) (*Note, error) {
	if commit.UID == "" {
		return nil, errors.InvalidInput("note identifier is required")
	}
	if len(commit.Embedding) == 0 {
		return nil, errors.InvalidInput("embedding is required")
	}
	if !json.Valid(commit.Interpretation) {
		return nil, errors.InvalidInput("interpretation must be valid JSON")
	}
	if commit.Metadata == nil {
		commit.Metadata = map[string]any{}
	}

	note, err := s.driver.CommitNoteInterpretation(ctx, commit)
	if err != nil {
		return nil, err
	}
	if note == nil {
		return nil, errors.NoteNotFound(commit.UID)
	}
	return note, nil
}

// RecordNoteAttempt increments the note's attempt counter and schedules its next attempt.
// It is written outside the interpretation commit so that failed runs are counted too.
func (s *Store) RecordNoteAttempt(ctx context.Context, record *RecordNoteAttempt) (*Note, error) {
	if record.UID == "" {
		return nil, errors.InvalidInput("note identifier is required")
	}
	note, err := s.driver.RecordNoteAttempt(ctx, record)
	if err != nil {
		return nil, err
	}
	if note == nil {
		return nil, errors.NoteNotFound(record.UID)
	}
	return note, nil
}

// DeleteNote deletes a note.
func (s *Store) DeleteNote(ctx context.Context, delete *DeleteNote) error {
	return s.driver.DeleteNote(ctx, delete)
}

// SearchNotesByVector returns the owner's completed notes nearest to the vector,
// most similar first.
func (s *Store) SearchNotesByVector(ctx context.Context, search *NoteVectorSearch) ([]*NoteWithScore, error) {
	if strings.TrimSpace(search.OwnerID) == "" {
		return nil, errors.MissingScope("vector search requires an owner")
	}
	if len(search.Vector) == 0 {
		return nil, errors.InvalidInput("vector search requires a query vector")
	}

	opts := *search
	if opts.Limit <= 0 {
		opts.Limit = DefaultSearchLimit
	}
	if opts.NumCandidates <= 0 {
		opts.NumCandidates = NumCandidatesFor(opts.Limit)
	}
	opts.NumCandidates = max(opts.NumCandidates, opts.Limit)
	return s.driver.SearchNotesByVector(ctx, &opts)
}
