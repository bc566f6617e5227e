package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/openai/openai-go/v3"

	"semantic-similarity/internal/cache"
	"semantic-similarity/internal/config"
	"semantic-similarity/internal/embeddings"
	"semantic-similarity/internal/grader"
	"semantic-similarity/internal/logger"
	"semantic-similarity/internal/queue"
	"semantic-similarity/internal/retry"
	"semantic-similarity/internal/translit"
)

const (
	connectAttempts = 5
	connectBackoff  = 500 * time.Millisecond
)

// Deps bundles common runtime dependencies for services.
type Deps struct {
	Config   config.Config
	Log      *slog.Logger
	Embedder embeddings.Embedder
	Cache    cache.Cache
	Grader   *grader.Service
}

// WorkerDeps adds the NATS transport used by the scoring worker.
type WorkerDeps struct {
	Deps
	Queue queue.Responder
	conn  *nats.Conn
}

// Build loads env, config, and shared components. The embedder is created
// once here and shared by every request.
func Build(ctx context.Context) (Deps, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Deps{}, fmt.Errorf("failed to load environment variables: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return Deps{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Deps{}, fmt.Errorf("invalid configuration: %w", err)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	embedder, err := buildEmbedder(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	c, err := buildCache(ctx, cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize cache: %w", err)
	}
	return Assemble(cfg, log, embedder, c), nil
}

// Assemble wires the scoring service from already built parts. User
// answers always go straight to embedder; reference answers and keywords
// go through c unless it is a NoOpCache.
func Assemble(cfg config.Config, log *slog.Logger, embedder embeddings.Embedder, c cache.Cache) Deps {
	if c == nil {
		c = cache.NewNoOpCache()
	}
	references := embedder
	if _, noop := c.(*cache.NoOpCache); !noop {
		references = cache.NewEmbedder(embedder, c, cfg.ModelID, cfg.CacheTTL, cfg.EmbeddingTimeout, log)
	}
	tr := translit.NewSafe(translit.ITRANS{}, log)
	return Deps{
		Config:   cfg,
		Log:      log,
		Embedder: embedder,
		Cache:    c,
		Grader:   grader.New(embedder, references, tr, cfg.KeywordThreshold),
	}
}

// Close releases connections held by the dependencies.
func (d Deps) Close() error {
	if d.Cache == nil {
		return nil
	}
	return d.Cache.Close()
}

// BuildWorker builds Deps and connects to NATS.
func BuildWorker(ctx context.Context) (WorkerDeps, error) {
	deps, err := Build(ctx)
	if err != nil {
		return WorkerDeps{}, err
	}
	return connectWorker(ctx, deps, nats.Connect)
}

type natsDialer func(url string, opts ...nats.Option) (*nats.Conn, error)

// connectWorker takes ownership of deps: they are closed on any failure.
func connectWorker(ctx context.Context, deps Deps, dial natsDialer) (WorkerDeps, error) {
	if deps.Config.QueueURL == "" {
		_ = deps.Close()
		return WorkerDeps{}, fmt.Errorf("QUEUE_URL is required for the worker")
	}
	var nc *nats.Conn
	err := retry.Do(ctx, connectAttempts, connectBackoff, func(context.Context) error {
		var err error
		nc, err = dial(deps.Config.QueueURL, nats.Name("similarity-worker"))
		return err
	})
	if err != nil {
		_ = deps.Close()
		return WorkerDeps{}, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	deps.Log.Info("connected to NATS", "url", nc.ConnectedUrlRedacted())
	return WorkerDeps{
		Deps:  deps,
		Queue: queue.NewNATS(deps.Log, nc),
		conn:  nc,
	}, nil
}

// Close drains the NATS connection and closes the shared dependencies.
func (d WorkerDeps) Close() error {
	if d.conn != nil {
		_ = d.conn.Drain()
	}
	return d.Deps.Close()
}

func buildEmbedder(cfg config.Config, log *slog.Logger) (embeddings.Embedder, error) {
	switch cfg.EmbeddingProvider {
	case "tei":
		e, err := embeddings.NewTEIEmbedder(cfg.EmbeddingURL, cfg.ModelID, cfg.EmbeddingTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize TEI embedder: %w", err)
		}
		log.Info("using TEI embedder", "model", cfg.ModelID, "url", cfg.EmbeddingURL)
		return embeddings.Instrument(embeddings.WithBreaker(e, "tei", cfg.BreakerMaxFailures, cfg.BreakerTimeout), "tei"), nil
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required when EMBEDDING_PROVIDER=openai")
		}
		e, err := embeddings.NewOpenAIEmbedder(cfg.OpenAIKey, openai.EmbeddingModel(cfg.ModelID), cfg.EmbeddingTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OpenAI embedder: %w", err)
		}
		log.Info("using OpenAI embedder", "model", cfg.ModelID)
		return embeddings.Instrument(embeddings.WithBreaker(e, "openai", cfg.BreakerMaxFailures, cfg.BreakerTimeout), "openai"), nil
	case "hash":
		log.Warn("using hash embedder; scores reflect surface overlap only", "dimensions", cfg.EmbeddingDimensions)
		return embeddings.Instrument(embeddings.NewHashEmbedder(cfg.EmbeddingDimensions), "hash"), nil
	default:
		return nil, fmt.Errorf("invalid EMBEDDING_PROVIDER: %s (valid options: tei, openai, hash)", cfg.EmbeddingProvider)
	}
}

func buildCache(ctx context.Context, cfg config.Config, log *slog.Logger) (cache.Cache, error) {
	switch cfg.CacheProvider {
	case "none":
		return cache.NewNoOpCache(), nil
	case "redis":
		var rc *cache.RedisCache
		err := retry.Do(ctx, connectAttempts, connectBackoff, func(ctx context.Context) error {
			var err error
			rc, err = cache.NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisPassword)
			return err
		})
		if err != nil {
			return nil, err
		}
		log.Info("using Redis embedding cache", "addr", cfg.RedisAddr, "ttl", cfg.CacheTTL)
		return rc, nil
	case "postgres":
		if cfg.DBURL == "" {
			return nil, fmt.Errorf("DB_URL is required when CACHE_PROVIDER=postgres")
		}
		var pc *cache.PostgresCache
		err := retry.Do(ctx, connectAttempts, connectBackoff, func(ctx context.Context) error {
			var err error
			pc, err = cache.NewPostgresCache(ctx, cfg.DBURL)
			return err
		})
		if err != nil {
			return nil, err
		}
		if n, err := pc.PurgeExpired(ctx); err != nil {
			log.Warn("failed to purge expired embeddings", "err", err)
		} else if n > 0 {
			log.Info("purged expired embeddings", "rows", n)
		}
		log.Info("using Postgres embedding cache", "ttl", cfg.CacheTTL)
		return pc, nil
	default:
		return nil, fmt.Errorf("invalid CACHE_PROVIDER: %s (valid options: none, redis, postgres)", cfg.CacheProvider)
	}
}
