package blob

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"log/slog"

	"github.com/hrygo/snapnote/internal/errors"
)

// DefaultMaxObjectBytes bounds the size of a fetched object.
const DefaultMaxObjectBytes int64 = 20 << 20

// Fetcher retrieves whole objects addressed by URI.
type Fetcher struct {
	store    Store
	parser   *LocatorParser
	maxBytes int64
}

// NewFetcher creates a Fetcher. maxBytes <= 0 selects DefaultMaxObjectBytes.
func NewFetcher(store Store, parser *LocatorParser, maxBytes int64) *Fetcher {
	if parser == nil {
		parser = &LocatorParser{}
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxObjectBytes
	}
	return &Fetcher{store: store, parser: parser, maxBytes: maxBytes}
}

// Fetch returns the bytes of the object at uri.
func (f *Fetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	loc, err := f.parser.Parse(uri)
	if err != nil {
		return nil, err
	}

	rc, err := f.store.Get(ctx, loc)
	if err != nil {
		msg := "failed to get object"
		if stderrors.Is(err, ErrObjectNotFound) {
			msg = "object does not exist"
		}
		return nil, errors.ObjectUnavailable(msg, err).
			WithContext("bucket", loc.Bucket).
			WithContext("key", loc.Key)
	}
	defer rc.Close()

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(rc, f.maxBytes+1))
	if err != nil {
		return nil, errors.ObjectUnavailable("failed to read object", err).
			WithContext("bucket", loc.Bucket).
			WithContext("key", loc.Key)
	}
	if n > f.maxBytes {
		return nil, errors.Newf(errors.ErrCodeObjectUnavailable, "object exceeds %d bytes", f.maxBytes).
			WithContext("bucket", loc.Bucket).
			WithContext("key", loc.Key)
	}

	slog.Debug("fetched object", "bucket", loc.Bucket, "key", loc.Key, "bytes", n)
	return buf.Bytes(), nil
}
