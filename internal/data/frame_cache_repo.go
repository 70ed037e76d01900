package data

import (
	"context"
	"errors"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/jackc/pgx/v5"

	"videomoderation/internal/biz"
)

const (
	upsertFrameCache = `
INSERT INTO frame_caches (sha256, phash, category, nsfw_score, source, source_index, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (sha256) DO UPDATE SET
    category = EXCLUDED.category,
    nsfw_score = EXCLUDED.nsfw_score,
    source = EXCLUDED.source,
    source_index = EXCLUDED.source_index,
    expires_at = EXCLUDED.expires_at,
    updated_at = NOW()`

	frameCacheColumns = `sha256, phash, category, nsfw_score, source, source_index, expires_at, created_at, updated_at`

	getFrameCache = `SELECT ` + frameCacheColumns + ` FROM frame_caches
WHERE sha256 = $1 AND (expires_at IS NULL OR expires_at > NOW())`

	findSimilarFrameCaches = `SELECT ` + frameCacheColumns + ` FROM frame_caches
WHERE bit_count((phash # $1)::bit(64)) <= $2
  AND (expires_at IS NULL OR expires_at > NOW())
ORDER BY bit_count((phash # $1)::bit(64)) ASC
LIMIT 10`

	listFrameCachePHashes = `SELECT DISTINCT phash FROM frame_caches
WHERE expires_at IS NULL OR expires_at > NOW()`

	deleteExpiredFrameCaches = `DELETE FROM frame_caches WHERE expires_at IS NOT NULL AND expires_at <= NOW()`

	countFrameCaches = `SELECT COUNT(*) FROM frame_caches`
)

type frameCacheRow struct {
	SHA256      string     `db:"sha256"`
	PHash       int64      `db:"phash"`
	Category    string     `db:"category"`
	NSFWScore   float64    `db:"nsfw_score"`
	Source      string     `db:"source"`
	SourceIndex int32      `db:"source_index"`
	ExpiresAt   *time.Time `db:"expires_at"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

type frameCacheRepo struct {
	data *Data
	log  *log.Helper
}

// NewFrameCacheRepo creates a new FrameCacheRepo. It returns nil when the database is disabled.
func NewFrameCacheRepo(data *Data, logger log.Logger) biz.FrameCacheRepo {
	if data.Pool == nil {
		return nil
	}
	return &frameCacheRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

func (r *frameCacheRepo) Upsert(ctx context.Context, cache *biz.FrameCache) error {
	_, err := r.data.Pool.Exec(ctx, upsertFrameCache,
		cache.SHA256,
		cache.PHash,
		cache.Category,
		cache.NSFWScore,
		cache.Source,
		int32(cache.SourceIndex),
		cache.ExpiresAt,
	)
	return err
}

func (r *frameCacheRepo) Get(ctx context.Context, sha256 string) (*biz.FrameCache, error) {
	rows, err := r.data.Pool.Query(ctx, getFrameCache, sha256)
	if err != nil {
		return nil, err
	}
	row, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[frameCacheRow])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}
	return toBizFrameCache(row), nil
}

func (r *frameCacheRepo) FindSimilarByPHash(ctx context.Context, phash int64, maxDistance int32) ([]*biz.FrameCache, error) {
	rows, err := r.data.Pool.Query(ctx, findSimilarFrameCaches, phash, maxDistance)
	if err != nil {
		return nil, err
	}
	results, err := pgx.CollectRows(rows, pgx.RowToStructByName[frameCacheRow])
	if err != nil {
		return nil, err
	}
	caches := make([]*biz.FrameCache, len(results))
	for i, result := range results {
		caches[i] = toBizFrameCache(result)
	}
	return caches, nil
}

func (r *frameCacheRepo) ListPHashes(ctx context.Context) ([]int64, error) {
	rows, err := r.data.Pool.Query(ctx, listFrameCachePHashes)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func (r *frameCacheRepo) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.data.Pool.Exec(ctx, deleteExpiredFrameCaches)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *frameCacheRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.data.Pool.QueryRow(ctx, countFrameCaches).Scan(&n)
	return n, err
}

func toBizFrameCache(r frameCacheRow) *biz.FrameCache {
	return &biz.FrameCache{
		SHA256:      r.SHA256,
		PHash:       r.PHash,
		Category:    r.Category,
		NSFWScore:   r.NSFWScore,
		Source:      r.Source,
		SourceIndex: int(r.SourceIndex),
		ExpiresAt:   r.ExpiresAt,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}
