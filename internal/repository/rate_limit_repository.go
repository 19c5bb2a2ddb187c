package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RateLimitRepository counts requests per key in fixed windows.
type RateLimitRepository interface {
	Allow(ctx context.Context, key string, requests int, window time.Duration) (bool, error)
	CleanupExpired(ctx context.Context) (int64, error)
}

type rateLimitRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewRateLimitRepository(pool *pgxpool.Pool) RateLimitRepository {
	return &rateLimitRepository{pool: pool, now: time.Now}
}

// hashKey keeps client addresses and emails out of the table.
func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Allow records one request for key and reports whether it is within the
// limit. A window older than window restarts the count.
func (r *rateLimitRepository) Allow(ctx context.Context, key string, requests int, window time.Duration) (bool, error) {
	const q = `
		INSERT INTO rate_limits (rl_key, count, window_start, expires_at)
		VALUES ($1, 1, $2, $3)
		ON CONFLICT (rl_key) DO UPDATE SET
			count = CASE
				WHEN rate_limits.window_start < $4 THEN 1
				ELSE rate_limits.count + 1
			END,
			window_start = CASE
				WHEN rate_limits.window_start < $4 THEN $2
				ELSE rate_limits.window_start
			END,
			expires_at = $3
		RETURNING count`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	now := r.now()
	var count int
	err := r.pool.QueryRow(ctx, q, hashKey(key), now, now.Add(window), now.Add(-window)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count <= requests, nil
}

func (r *rateLimitRepository) CleanupExpired(ctx context.Context) (int64, error) {
	const q = `DELETE FROM rate_limits WHERE expires_at < now()`

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tag, err := r.pool.Exec(ctx, q)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
