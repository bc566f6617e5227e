package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"

	"semantic-similarity/internal/embeddings"
)

// PostgresCache keeps embeddings in a table so they survive restarts and
// are shared by every replica.
type PostgresCache struct {
	db *sql.DB
}

// NewPostgresCache opens the database and creates the cache table.
func NewPostgresCache(ctx context.Context, dsn string) (*PostgresCache, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	c := &PostgresCache{db: db}
	if err := c.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

func (c *PostgresCache) migrate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres connection failed: %w", err)
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS embedding_cache (
			key TEXT PRIMARY KEY,
			embedding FLOAT4[] NOT NULL,
			expires_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_embedding_cache_expires ON embedding_cache(expires_at);`,
	}
	for _, stmt := range stmts {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate embedding_cache: %w", err)
		}
	}
	return nil
}

// GetEmbedding returns the stored vector unless it is missing or expired.
func (c *PostgresCache) GetEmbedding(ctx context.Context, key string) (embeddings.Vector, error) {
	var arr pq.Float64Array
	err := c.db.QueryRowContext(ctx,
		`SELECT embedding FROM embedding_cache
		 WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())`,
		key,
	).Scan(&arr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	vec := make(embeddings.Vector, len(arr))
	for i, v := range arr {
		vec[i] = float32(v)
	}
	return vec, nil
}

// SetEmbedding upserts the vector. Expired rows are overwritten in place.
func (c *PostgresCache) SetEmbedding(ctx context.Context, key string, vec embeddings.Vector, ttl time.Duration) error {
	arr := make(pq.Float64Array, len(vec))
	for i, v := range vec {
		arr[i] = float64(v)
	}
	var expires sql.NullTime
	if ttl > 0 {
		expires = sql.NullTime{Time: time.Now().Add(ttl), Valid: true}
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO embedding_cache (key, embedding, expires_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET embedding = EXCLUDED.embedding, expires_at = EXCLUDED.expires_at`,
		key, arr, expires,
	)
	return err
}

// PurgeExpired deletes expired rows and reports how many were removed.
func (c *PostgresCache) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM embedding_cache WHERE expires_at IS NOT NULL AND expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Close closes the database handle.
func (c *PostgresCache) Close() error {
	return c.db.Close()
}
