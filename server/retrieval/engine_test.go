package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/snapnote/internal/errors"
	"github.com/hrygo/snapnote/plugin/ai"
	"github.com/hrygo/snapnote/store"
	"github.com/hrygo/snapnote/store/cache"
)

// MockEmbedder is a mock for QueryEmbedder
type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) Embed(ctx context.Context, text string, mode ai.EmbeddingMode) ([]float32, error) {
	args := m.Called(ctx, text, mode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

// MockSearcher is a mock for NoteSearcher
type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) SearchNotesByVector(ctx context.Context, search *store.NoteVectorSearch) ([]*store.NoteWithScore, error) {
	args := m.Called(ctx, search)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*store.NoteWithScore), args.Error(1)
}

func hit(uid, title string, score float32) *store.NoteWithScore {
	return &store.NoteWithScore{
		Note:  &store.Note{UID: uid, OwnerID: "user-1", Title: title},
		Score: score,
	}
}

func uids(candidates []*Candidate) []string {
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.Note.UID
	}
	return out
}

func TestRankOrdering(t *testing.T) {
	// Lexical [0.8, 0.5, 0.5], similarity [0.1, 0.9, 0.2] ranks 1, 2, 3.
	candidates := []*Candidate{
		{Note: &store.Note{UID: "3"}, LexicalScore: 0.5, Similarity: 0.2},
		{Note: &store.Note{UID: "2"}, LexicalScore: 0.5, Similarity: 0.9},
		{Note: &store.Note{UID: "1"}, LexicalScore: 0.8, Similarity: 0.1},
	}
	Rank(candidates)
	assert.Equal(t, []string{"1", "2", "3"}, uids(candidates))
}

func TestRankIsStable(t *testing.T) {
	candidates := []*Candidate{
		{Note: &store.Note{UID: "a"}, LexicalScore: 0.5, Similarity: 0.5},
		{Note: &store.Note{UID: "b"}, LexicalScore: 0.5, Similarity: 0.5},
		{Note: &store.Note{UID: "c"}, LexicalScore: 0.5, Similarity: 0.5},
	}
	Rank(candidates)
	assert.Equal(t, []string{"a", "b", "c"}, uids(candidates))
}

func TestSearchValidatesBeforeIO(t *testing.T) {
	embedder := new(MockEmbedder)
	searcher := new(MockSearcher)
	engine := NewEngine(embedder, searcher)
	ctx := context.Background()

	_, err := engine.Search(ctx, &SearchRequest{Query: "milk"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeMissingScope))

	_, err = engine.Search(ctx, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMissingScope))

	for _, q := range []string{"", "   ", "\n\t"} {
		_, err = engine.Search(ctx, &SearchRequest{OwnerID: "user-1", Query: q})
		assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidQuery), "query %q", q)
	}

	embedder.AssertNotCalled(t, "Embed", mock.Anything, mock.Anything, mock.Anything)
	searcher.AssertNotCalled(t, "SearchNotesByVector", mock.Anything, mock.Anything)
}

func TestSearchReranksLexically(t *testing.T) {
	embedder := new(MockEmbedder)
	searcher := new(MockSearcher)
	ctx := context.Background()

	vector := []float32{1, 0}
	embedder.On("Embed", ctx, "buy milk", ai.ModeQuery).Return(vector, nil).Once()
	searcher.On("SearchNotesByVector", ctx, mock.MatchedBy(func(s *store.NoteVectorSearch) bool {
		return s.OwnerID == "user-1" && s.Limit == 30 && s.NumCandidates == 900 && len(s.Vector) == 2
	})).Return([]*store.NoteWithScore{
		hit("nearest", "Call the plumber", 0.95),
		hit("milk", "Buy milk", 0.60),
		hit("milk-eggs", "Buy milk | Buy eggs", 0.70),
	}, nil).Once()

	engine := NewEngine(embedder, searcher)
	results, err := engine.Search(ctx, &SearchRequest{OwnerID: "user-1", Query: "buy milk"})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, []string{"milk", "milk-eggs", "nearest"}, uids(results))
	assert.InDelta(t, 1.0, results[0].LexicalScore, 1e-9)
	assert.Equal(t, float32(0.60), results[0].Similarity)
	assert.Zero(t, results[2].LexicalScore)

	embedder.AssertExpectations(t)
	searcher.AssertExpectations(t)
}

func TestSearchTruncatesToFinalCount(t *testing.T) {
	embedder := new(MockEmbedder)
	searcher := new(MockSearcher)
	ctx := context.Background()

	embedder.On("Embed", ctx, "milk", ai.ModeQuery).Return([]float32{1}, nil)
	var hits []*store.NoteWithScore
	for i, title := range []string{"a", "b", "c", "d", "e"} {
		hits = append(hits, hit(title, title, float32(1-float64(i)/10)))
	}
	searcher.On("SearchNotesByVector", ctx, mock.MatchedBy(func(s *store.NoteVectorSearch) bool {
		return s.Limit == 5 && s.NumCandidates == 150
	})).Return(hits, nil)

	engine := NewEngine(embedder, searcher)
	results, err := engine.Search(ctx, &SearchRequest{OwnerID: "user-1", Query: "milk", CandidateCount: 5, FinalCount: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, uids(results))
}

func TestSearchPropagatesErrors(t *testing.T) {
	ctx := context.Background()

	embedder := new(MockEmbedder)
	searcher := new(MockSearcher)
	embedder.On("Embed", ctx, "milk", ai.ModeQuery).Return(nil, errors.InferenceUnavailable("down", nil))
	_, err := NewEngine(embedder, searcher).Search(ctx, &SearchRequest{OwnerID: "user-1", Query: "milk"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeInferenceUnavailable))
	searcher.AssertNotCalled(t, "SearchNotesByVector", mock.Anything, mock.Anything)

	embedder = new(MockEmbedder)
	searcher = new(MockSearcher)
	embedder.On("Embed", ctx, "milk", ai.ModeQuery).Return([]float32{1}, nil)
	searcher.On("SearchNotesByVector", ctx, mock.Anything).Return(nil, assert.AnError)
	_, err = NewEngine(embedder, searcher).Search(ctx, &SearchRequest{OwnerID: "user-1", Query: "milk"})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestSearchUsesQueryCache(t *testing.T) {
	embedder := new(MockEmbedder)
	searcher := new(MockSearcher)
	ctx := context.Background()

	embedder.On("Embed", ctx, "milk", ai.ModeQuery).Return([]float32{1, 0}, nil).Once()
	searcher.On("SearchNotesByVector", ctx, mock.Anything).Return([]*store.NoteWithScore{hit("a", "milk", 0.9)}, nil).Twice()

	tc := cache.NewTieredCache(nil)
	defer tc.Close()
	engine := NewEngine(embedder, searcher, WithQueryCache(tc, "bge"))

	for i := 0; i < 2; i++ {
		results, err := engine.Search(ctx, &SearchRequest{OwnerID: "user-1", Query: "milk"})
		require.NoError(t, err)
		assert.Len(t, results, 1)
	}
	embedder.AssertNumberOfCalls(t, "Embed", 1)
	searcher.AssertExpectations(t)
}

func TestComparisonText(t *testing.T) {
	note := &store.Note{
		Title:    "Buy milk",
		Summary:  "Whiteboard todo list with 1 items",
		Metadata: map[string]any{"hasTodos": true, "todoCount": 1},
	}
	text := comparisonText(note)
	assert.Equal(t, "Buy milk\nWhiteboard todo list with 1 items\n{\"hasTodos\":true,\"todoCount\":1}", text)

	note.Metadata = nil
	assert.Equal(t, "Buy milk\nWhiteboard todo list with 1 items\n", comparisonText(note))
}
