package ai

import (
	"context"
	"math"
	"strings"

	"golang.org/x/sync/semaphore"

	"github.com/hrygo/snapnote/internal/errors"
)

// EmbeddingMode selects the asymmetric prefix applied before embedding.
type EmbeddingMode string

const (
	// ModeQuery is used for search queries.
	ModeQuery EmbeddingMode = "query"
	// ModePassage is used for stored note text.
	ModePassage EmbeddingMode = "passage"
)

// Prefix returns the literal text prepended to the input.
func (m EmbeddingMode) Prefix() string {
	switch m {
	case ModeQuery:
		return "query: "
	case ModePassage:
		return "passage: "
	default:
		return ""
	}
}

// EmbeddingGenerator turns text into fixed-length unit vectors.
// One generator wraps the process-wide model and is safe for concurrent use.
type EmbeddingGenerator struct {
	model      EmbeddingService
	dimensions int
	sem        *semaphore.Weighted
}

// NewEmbeddingGenerator creates a generator over model.
// maxConcurrency bounds in-flight model calls; values < 1 are treated as 1.
func NewEmbeddingGenerator(model EmbeddingService, maxConcurrency int) *EmbeddingGenerator {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &EmbeddingGenerator{
		model:      model,
		dimensions: model.Dimensions(),
		sem:        semaphore.NewWeighted(int64(maxConcurrency)),
	}
}

// Dimensions returns the length of every vector produced.
func (g *EmbeddingGenerator) Dimensions() int {
	return g.dimensions
}

// Embed returns the L2-normalized embedding of mode's prefix followed by text.
func (g *EmbeddingGenerator) Embed(ctx context.Context, text string, mode EmbeddingMode) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.InvalidInput("text to embed is empty")
	}
	prefix := mode.Prefix()
	if prefix == "" {
		return nil, errors.Newf(errors.ErrCodeInvalidInput, "unknown embedding mode %q", mode)
	}

	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, errors.InferenceUnavailable("embedding aborted while waiting for model", err)
	}
	vector, err := g.model.Embed(ctx, prefix+text)
	g.sem.Release(1)
	if err != nil {
		return nil, errors.InferenceUnavailable("embedding model failed", err)
	}

	if len(vector) != g.dimensions {
		return nil, errors.Newf(errors.ErrCodeInferenceUnavailable,
			"embedding has %d dimensions, expected %d", len(vector), g.dimensions)
	}
	normalized, ok := Normalize(vector)
	if !ok {
		return nil, errors.New(errors.ErrCodeInferenceUnavailable, "embedding model returned a zero vector")
	}
	return normalized, nil
}

// Normalize returns v scaled to unit L2 norm. It reports false for zero or non-finite vectors.
func Normalize(v []float32) ([]float32, bool) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return nil, false
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out, true
}
