package store

import (
	"context"

	"github.com/hrygo/snapnote/internal/errors"
	"github.com/hrygo/snapnote/internal/profile"
)

// Store provides database access to notes.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

// EmbeddingSchema is implemented by drivers whose schema fixes the embedding dimension.
type EmbeddingSchema interface {
	EmbeddingDimensions(ctx context.Context) (int, error)
}

// CheckEmbeddingDimensions fails when the schema cannot hold vectors of the given dimension.
// Drivers without a fixed dimension always pass.
func (s *Store) CheckEmbeddingDimensions(ctx context.Context, dimensions int) error {
	schema, ok := s.driver.(EmbeddingSchema)
	if !ok {
		return nil
	}
	stored, err := schema.EmbeddingDimensions(ctx)
	if err != nil {
		return err
	}
	if stored > 0 && stored != dimensions {
		return errors.Newf(errors.ErrCodeInvalidInput,
			"note schema stores %d-dimension embeddings but the embedding model is configured for %d", stored, dimensions)
	}
	return nil
}

func (s *Store) Close() error {
	return s.driver.Close()
}
