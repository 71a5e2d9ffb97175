package store

import (
	"context"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	Close() error

	IsInitialized(ctx context.Context) (bool, error)
	// ApplySchema installs the latest schema on an uninitialized database.
	ApplySchema(ctx context.Context, schema string) error

	// Note model related methods.
	CreateNote(ctx context.Context, create *Note) (*Note, error)
	ListNotes(ctx context.Context, find *FindNote) ([]*Note, error)
	DeleteNote(ctx context.Context, delete *DeleteNote) error

	// CommitNoteInterpretation applies the commit in a single atomic update keyed by UID.
	// It returns nil, nil when no note matches.
	CommitNoteInterpretation(ctx context.Context, commit *CommitNoteInterpretation) (*Note, error)

	// RecordNoteAttempt atomically increments interpret_attempts and sets the attempt times.
	// It returns nil, nil when no note matches.
	RecordNoteAttempt(ctx context.Context, record *RecordNoteAttempt) (*Note, error)

	// SearchNotesByVector performs owner-scoped similarity search over completed notes.
	SearchNotesByVector(ctx context.Context, search *NoteVectorSearch) ([]*NoteWithScore, error)
}
