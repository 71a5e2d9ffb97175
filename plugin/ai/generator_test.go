package ai

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	snaperrors "github.com/hrygo/snapnote/internal/errors"
)

// hashEmbedding is a deterministic EmbeddingService that folds characters into buckets.
type hashEmbedding struct {
	dims     int
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	delay    time.Duration
	mu       sync.Mutex
	inputs   []string
	err      error
	override []float32
}

func (h *hashEmbedding) Embed(ctx context.Context, text string) ([]float32, error) {
	n := h.inFlight.Add(1)
	defer h.inFlight.Add(-1)
	for {
		seen := h.maxSeen.Load()
		if n <= seen || h.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	if h.delay > 0 {
		time.Sleep(h.delay)
	}

	h.mu.Lock()
	h.inputs = append(h.inputs, text)
	h.mu.Unlock()

	if h.err != nil {
		return nil, h.err
	}
	if h.override != nil {
		return h.override, nil
	}
	v := make([]float32, h.dims)
	for i, c := range text {
		v[i%h.dims] += float32(c%31) + 1
	}
	return v, nil
}

func (h *hashEmbedding) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := h.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (h *hashEmbedding) Dimensions() int { return h.dims }

func l2(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestEmbeddingGeneratorUnitNormAndLength(t *testing.T) {
	gen := NewEmbeddingGenerator(&hashEmbedding{dims: 16}, 4)

	for _, text := range []string{"x", "Buy milk", "a much longer passage about whiteboards and sticky notes"} {
		for _, mode := range []EmbeddingMode{ModeQuery, ModePassage} {
			v, err := gen.Embed(context.Background(), text, mode)
			require.NoError(t, err)
			assert.Len(t, v, 16)
			assert.InDelta(t, 1.0, l2(v), 1e-5)
		}
	}
}

func TestEmbeddingGeneratorModesDiffer(t *testing.T) {
	model := &hashEmbedding{dims: 16}
	gen := NewEmbeddingGenerator(model, 1)

	q, err := gen.Embed(context.Background(), "hello", ModeQuery)
	require.NoError(t, err)
	p, err := gen.Embed(context.Background(), "hello", ModePassage)
	require.NoError(t, err)

	assert.NotEqual(t, q, p)
	assert.Equal(t, []string{"query: hello", "passage: hello"}, model.inputs)
}

func TestEmbeddingGeneratorInvalidInput(t *testing.T) {
	model := &hashEmbedding{dims: 4}
	gen := NewEmbeddingGenerator(model, 1)

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := gen.Embed(context.Background(), text, ModePassage)
		assert.True(t, snaperrors.IsCode(err, snaperrors.ErrCodeInvalidInput))
	}
	_, err := gen.Embed(context.Background(), "hello", EmbeddingMode("document"))
	assert.True(t, snaperrors.IsCode(err, snaperrors.ErrCodeInvalidInput))
	assert.Empty(t, model.inputs, "model must not be called for invalid input")
}

func TestEmbeddingGeneratorModelFailures(t *testing.T) {
	tests := []struct {
		name  string
		model *hashEmbedding
	}{
		{"model error", &hashEmbedding{dims: 4, err: errors.New("boom")}},
		{"wrong dimension", &hashEmbedding{dims: 4, override: []float32{1, 2, 3}}},
		{"zero vector", &hashEmbedding{dims: 4, override: []float32{0, 0, 0, 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEmbeddingGenerator(tt.model, 1).Embed(context.Background(), "hello", ModeQuery)
			assert.True(t, snaperrors.IsCode(err, snaperrors.ErrCodeInferenceUnavailable), "got %v", err)
		})
	}
}

func TestEmbeddingGeneratorSerializes(t *testing.T) {
	model := &hashEmbedding{dims: 4, delay: 5 * time.Millisecond}
	gen := NewEmbeddingGenerator(model, 1)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := gen.Embed(context.Background(), "concurrent text", ModePassage)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), model.maxSeen.Load())
	assert.Len(t, model.inputs, 8)
}

func TestEmbeddingGeneratorDeterministic(t *testing.T) {
	gen := NewEmbeddingGenerator(&hashEmbedding{dims: 8}, 2)

	a, err := gen.Embed(context.Background(), "same text", ModePassage)
	require.NoError(t, err)
	b, err := gen.Embed(context.Background(), "same text", ModePassage)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestNormalize(t *testing.T) {
	v, ok := Normalize([]float32{3, 4})
	require.True(t, ok)
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	_, ok = Normalize([]float32{0, 0})
	assert.False(t, ok)
	_, ok = Normalize(nil)
	assert.False(t, ok)
}
