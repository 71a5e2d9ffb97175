package retrieval

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"

	"github.com/hrygo/snapnote/internal/errors"
	"github.com/hrygo/snapnote/plugin/ai"
	"github.com/hrygo/snapnote/store"
	"github.com/hrygo/snapnote/store/cache"
)

const (
	// DefaultCandidateCount is the number of notes fetched by similarity.
	DefaultCandidateCount = 30
	// DefaultFinalCount is the number of notes returned after lexical re-ranking.
	DefaultFinalCount = 10
)

// QueryEmbedder embeds text in a given mode.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string, mode ai.EmbeddingMode) ([]float32, error)
}

// NoteSearcher finds an owner's notes nearest to a vector.
type NoteSearcher interface {
	SearchNotesByVector(ctx context.Context, search *store.NoteVectorSearch) ([]*store.NoteWithScore, error)
}

// VectorCache caches query embeddings. Misses and failures are indistinguishable to callers.
type VectorCache interface {
	GetVector(ctx context.Context, key string) ([]float32, bool)
	SetVector(ctx context.Context, key string, vector []float32)
}

// SearchRequest 检索请求
type SearchRequest struct {
	OwnerID string
	Query   string
	// CandidateCount defaults to 30. 向量召回数量
	CandidateCount int
	// FinalCount defaults to 10. 最终返回数量
	FinalCount int
}

// Candidate is a retrieved note with both of its scores.
// Candidate 检索结果，携带相似度与词汇得分
type Candidate struct {
	Note         *store.Note
	Similarity   float32
	LexicalScore float64
}

// Engine runs two-phase retrieval: vector similarity, then lexical re-ranking.
// Engine 两阶段检索器：先向量相似度召回，再按词汇重排
type Engine struct {
	embedder QueryEmbedder
	searcher NoteSearcher

	cache      VectorCache
	cacheModel string
	logger     *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithQueryCache caches query vectors keyed by model and query text.
func WithQueryCache(c VectorCache, model string) Option {
	return func(e *Engine) {
		e.cache = c
		e.cacheModel = model
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine 创建检索引擎
func NewEngine(embedder QueryEmbedder, searcher NoteSearcher, opts ...Option) *Engine {
	e := &Engine{
		embedder: embedder,
		searcher: searcher,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search returns at most FinalCount of the owner's notes, ordered by lexical
// score then similarity, both descending.
// Search 检索主入口
func (e *Engine) Search(ctx context.Context, req *SearchRequest) ([]*Candidate, error) {
	if req == nil || strings.TrimSpace(req.OwnerID) == "" {
		return nil, errors.MissingScope("search requires an owner")
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, errors.InvalidQuery("query must not be empty")
	}
	candidateCount := req.CandidateCount
	if candidateCount <= 0 {
		candidateCount = DefaultCandidateCount
	}
	finalCount := req.FinalCount
	if finalCount <= 0 {
		finalCount = DefaultFinalCount
	}

	// 阶段 1：查询向量（优先命中缓存）
	vector, err := e.queryVector(ctx, req.Query)
	if err != nil {
		return nil, err
	}

	hits, err := e.searcher.SearchNotesByVector(ctx, &store.NoteVectorSearch{
		OwnerID:       req.OwnerID,
		Vector:        vector,
		Limit:         candidateCount,
		NumCandidates: store.NumCandidatesFor(candidateCount),
	})
	if err != nil {
		return nil, err
	}

	// 阶段 2：词汇重排
	candidates := make([]*Candidate, 0, len(hits))
	for _, hit := range hits {
		candidates = append(candidates, &Candidate{
			Note:         hit.Note,
			Similarity:   hit.Score,
			LexicalScore: Jaccard(req.Query, comparisonText(hit.Note)),
		})
	}
	Rank(candidates)

	if len(candidates) > finalCount {
		candidates = candidates[:finalCount]
	}
	e.logger.DebugContext(ctx, "retrieval finished",
		"owner_id", req.OwnerID,
		"candidates", len(hits),
		"returned", len(candidates),
	)
	return candidates, nil
}

func (e *Engine) queryVector(ctx context.Context, query string) ([]float32, error) {
	if e.cache == nil {
		return e.embedder.Embed(ctx, query, ai.ModeQuery)
	}
	key := cache.QueryVectorKey(e.cacheModel, query)
	if vector, ok := e.cache.GetVector(ctx, key); ok {
		return vector, nil
	}
	vector, err := e.embedder.Embed(ctx, query, ai.ModeQuery)
	if err != nil {
		return nil, err
	}
	e.cache.SetVector(ctx, key, vector)
	return vector, nil
}

// Rank sorts candidates by lexical score, then similarity, both descending.
// Ties keep their incoming order.
// Rank 稳定排序，得分相同时保持原有顺序
func Rank(candidates []*Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].LexicalScore != candidates[j].LexicalScore {
			return candidates[i].LexicalScore > candidates[j].LexicalScore
		}
		return candidates[i].Similarity > candidates[j].Similarity
	})
}

// comparisonText is the text a note is lexically matched on.
func comparisonText(note *store.Note) string {
	if note == nil {
		return ""
	}
	metadata := ""
	if note.Metadata != nil {
		if data, err := json.Marshal(note.Metadata); err == nil {
			metadata = string(data)
		}
	}
	return note.Title + "\n" + note.Summary + "\n" + metadata
}
