package blob

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/snapnote/internal/errors"
)

type failingStore struct {
	err error
}

func (s *failingStore) Get(context.Context, *Locator) (io.ReadCloser, error) {
	return nil, s.err
}

func TestFetcherFetch(t *testing.T) {
	store := NewMemoryStore()
	store.Put("notes", "uploads/a.jpg", []byte("jpeg-bytes"))
	fetcher := NewFetcher(store, nil, 0)

	data, err := fetcher.Fetch(context.Background(), "https://notes.s3.us-east-1.amazonaws.com/uploads/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), data)

	data, err = fetcher.Fetch(context.Background(), "s3://notes/uploads/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), data)
}

func TestFetcherMissingObject(t *testing.T) {
	fetcher := NewFetcher(NewMemoryStore(), nil, 0)

	_, err := fetcher.Fetch(context.Background(), "s3://notes/missing.jpg")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeObjectUnavailable))
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestFetcherInvalidLocator(t *testing.T) {
	fetcher := NewFetcher(NewMemoryStore(), nil, 0)

	_, err := fetcher.Fetch(context.Background(), "https://example.com/a.jpg")
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidLocator))
}

func TestFetcherStoreFailure(t *testing.T) {
	fetcher := NewFetcher(&failingStore{err: io.ErrUnexpectedEOF}, nil, 0)

	_, err := fetcher.Fetch(context.Background(), "s3://notes/a.jpg")
	assert.True(t, errors.IsCode(err, errors.ErrCodeObjectUnavailable))
}

func TestFetcherSizeLimit(t *testing.T) {
	store := NewMemoryStore()
	store.Put("notes", "big.jpg", make([]byte, 11))
	store.Put("notes", "exact.jpg", make([]byte, 10))
	fetcher := NewFetcher(store, nil, 10)

	_, err := fetcher.Fetch(context.Background(), "s3://notes/big.jpg")
	assert.True(t, errors.IsCode(err, errors.ErrCodeObjectUnavailable))

	data, err := fetcher.Fetch(context.Background(), "s3://notes/exact.jpg")
	require.NoError(t, err)
	assert.Len(t, data, 10)
}

func TestMemoryStoreCanceledContext(t *testing.T) {
	store := NewMemoryStore()
	store.Put("notes", "a.jpg", []byte("x"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFetcher(store, nil, 0).Fetch(ctx, "s3://notes/a.jpg")
	assert.True(t, errors.IsCode(err, errors.ErrCodeObjectUnavailable))
	assert.ErrorIs(t, err, context.Canceled)
}
