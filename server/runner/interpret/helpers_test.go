package interpret

import (
	"bytes"
	"context"
	"image/color"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/snapnote/internal/errors"
	"github.com/hrygo/snapnote/plugin/ai"
	"github.com/hrygo/snapnote/plugin/blob"
	"github.com/hrygo/snapnote/store"
)

const buyMilk = `{"todos":[{"task":"Buy milk","checkbox_checked":false,"deadline":null}],"quote_of_the_day":null,"written_and_drawn_notes_summary":[],"sticky_notes_summary":[]}`

const testDimensions = 1024

// jpegFixture returns a 10x10 white JPEG.
func jpegFixture(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(10, 10, color.White), imaging.JPEG))
	return buf.Bytes()
}

// stubVision returns a fixed model output and records what it was sent.
type stubVision struct {
	output string
	err    error
	delay  time.Duration

	calls     atomic.Int32
	inFlight  atomic.Int32
	maxSeen   atomic.Int32
	mu        sync.Mutex
	mediaType string
}

func (s *stubVision) Extract(ctx context.Context, image []byte, mediaType string) (string, error) {
	s.calls.Add(1)
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		seen := s.maxSeen.Load()
		if n <= seen || s.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	s.mu.Lock()
	s.mediaType = mediaType
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", errors.InferenceUnavailable("inference request aborted", ctx.Err())
		}
	}
	if s.err != nil {
		return "", s.err
	}
	return s.output, nil
}

// constantEmbedding is an EmbeddingService returning the same non-zero vector for every text.
type constantEmbedding struct {
	calls atomic.Int32
	err   error
	texts []string
	mu    sync.Mutex
}

func (c *constantEmbedding) Embed(_ context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	c.mu.Lock()
	c.texts = append(c.texts, text)
	c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	v := make([]float32, testDimensions)
	v[0], v[1] = 3, 4
	return v, nil
}

func (c *constantEmbedding) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		v, err := c.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (c *constantEmbedding) Dimensions() int { return testDimensions }

// recordingCommitter is an InterpretationCommitter that keeps every commit.
type recordingCommitter struct {
	mu      sync.Mutex
	commits []*store.CommitNoteInterpretation
	err     error
}

func (r *recordingCommitter) CommitNoteInterpretation(_ context.Context, commit *store.CommitNoteInterpretation) (*store.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	r.commits = append(r.commits, commit)
	return &store.Note{
		UID:                     commit.UID,
		Title:                   commit.Title,
		Summary:                 commit.Summary,
		Metadata:                commit.Metadata,
		Interpretation:          commit.Interpretation,
		Embedding:               commit.Embedding,
		InterpretationCompleted: true,
	}, nil
}

func (r *recordingCommitter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.commits)
}

type fixture struct {
	objects   *blob.MemoryStore
	vision    *stubVision
	model     *constantEmbedding
	committer *recordingCommitter
	pipeline  *Pipeline
}

func newFixture(t *testing.T, opts ...PipelineOption) *fixture {
	t.Helper()
	f := &fixture{
		objects:   blob.NewMemoryStore(),
		vision:    &stubVision{output: buyMilk},
		model:     &constantEmbedding{},
		committer: &recordingCommitter{},
	}
	f.objects.Put("whiteboards", "uploads/note-1.jpg", jpegFixture(t))
	f.pipeline = NewPipeline(
		blob.NewFetcher(f.objects, nil, 0),
		f.vision,
		ai.NewEmbeddingGenerator(f.model, 2),
		f.committer,
		opts...,
	)
	return f
}

var testJob = Job{NoteID: "note-1", ImageURL: "s3://whiteboards/uploads/note-1.jpg"}
