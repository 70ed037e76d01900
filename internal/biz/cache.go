package biz

import (
	"context"
	"time"
)

// FrameCache is a flagged frame remembered across runs.
type FrameCache struct {
	SHA256      string
	PHash       int64
	Category    string
	NSFWScore   float64
	Source      string // video path the frame was sampled from
	SourceIndex int    // frame position in that video
	ExpiresAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FrameCacheRepo is a repository interface for flagged frames.
type FrameCacheRepo interface {
	Upsert(ctx context.Context, cache *FrameCache) error
	Get(ctx context.Context, sha256 string) (*FrameCache, error)
	// FindSimilarByPHash returns frames within maxDistance Hamming bits, closest first.
	FindSimilarByPHash(ctx context.Context, phash int64, maxDistance int32) ([]*FrameCache, error)
	ListPHashes(ctx context.Context) ([]int64, error)
	DeleteExpired(ctx context.Context) (int64, error)
	Count(ctx context.Context) (int64, error)
}
