package main

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/hrygo/snapnote/internal/observability"
	"github.com/hrygo/snapnote/internal/profile"
	"github.com/hrygo/snapnote/plugin/ai"
	"github.com/hrygo/snapnote/plugin/blob"
	"github.com/hrygo/snapnote/server/retrieval"
	"github.com/hrygo/snapnote/server/runner/interpret"
	"github.com/hrygo/snapnote/store"
	"github.com/hrygo/snapnote/store/cache"
	"github.com/hrygo/snapnote/store/db"
)

// app holds the process-wide components. The embedding model is created once and shared.
type app struct {
	profile  *profile.Profile
	store    *store.Store
	aiConfig *ai.Config
	embedder *ai.EmbeddingGenerator
	metrics  *observability.Metrics
	cache    *cache.TieredCache
}

func newApp(ctx context.Context) (*app, error) {
	p, err := loadProfile()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load profile")
	}

	driver, err := db.NewDBDriver(p)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	st := store.New(driver, p)
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, errors.Wrap(err, "failed to migrate")
	}
	if err := st.CheckEmbeddingDimensions(ctx, p.AIEmbeddingDimensions); err != nil {
		_ = st.Close()
		return nil, err
	}

	return &app{
		profile:  p,
		store:    st,
		aiConfig: ai.NewConfigFromProfile(p),
		metrics:  observability.NewMetrics(),
	}, nil
}

func (a *app) embeddingGenerator() (*ai.EmbeddingGenerator, error) {
	if a.embedder != nil {
		return a.embedder, nil
	}
	model, err := ai.NewEmbeddingService(&a.aiConfig.Embedding)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create embedding service")
	}
	a.embedder = ai.NewEmbeddingGenerator(model, a.aiConfig.Embedding.MaxConcurrency)
	return a.embedder, nil
}

func (a *app) runner(ctx context.Context) (*interpret.Runner, error) {
	if err := a.aiConfig.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid AI configuration")
	}
	objects, err := blob.NewS3Store(ctx, blob.S3Config{
		Region:   a.profile.S3Region,
		Endpoint: a.profile.S3Endpoint,
	})
	if err != nil {
		return nil, err
	}
	fetcher := blob.NewFetcher(objects, &blob.LocatorParser{Endpoint: a.profile.S3Endpoint}, a.profile.MaxObjectBytes)

	vision, err := ai.NewVisionService(&a.aiConfig.Vision)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create vision service")
	}
	embedder, err := a.embeddingGenerator()
	if err != nil {
		return nil, err
	}

	logger := slog.Default()
	pipeline := interpret.NewPipeline(fetcher, vision, embedder, a.store,
		interpret.WithLogger(logger),
		interpret.WithObserver(observability.MultiObserver{observability.NewLogObserver(logger), a.metrics}),
		interpret.WithMaxImageDimension(a.aiConfig.Vision.MaxImageDimension),
	)
	return interpret.NewRunner(pipeline, a.store, a.profile, a.metrics), nil
}

func (a *app) engine(ctx context.Context) (*retrieval.Engine, error) {
	embedder, err := a.embeddingGenerator()
	if err != nil {
		return nil, err
	}

	config := cache.DefaultTieredConfig()
	if a.profile.CacheRedisAddr != "" {
		redisConfig := cache.RedisConfigFromEnv()
		redisConfig.Addr = a.profile.CacheRedisAddr
		redisConfig.Password = a.profile.CacheRedisPassword
		l2, err := cache.NewRedisCache(ctx, redisConfig)
		if err != nil {
			slog.Warn("redis cache unavailable, using memory cache only", "error", err)
		} else {
			config.L2 = l2
		}
	}
	a.cache = cache.NewTieredCache(config)

	return retrieval.NewEngine(embedder, a.store,
		retrieval.WithQueryCache(a.cache, a.aiConfig.Embedding.Model),
		retrieval.WithLogger(slog.Default()),
	), nil
}

func (a *app) Close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			slog.Warn("failed to close cache", "error", err)
		}
	}
	if err := a.store.Close(); err != nil {
		slog.Warn("failed to close store", "error", err)
	}
}
