package data

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"videomoderation/internal/biz"
	"videomoderation/internal/conf"
	"videomoderation/internal/pkg/bloom"
	"videomoderation/internal/pkg/dataset"
	"videomoderation/internal/pkg/ffmpeg"
	"videomoderation/internal/pkg/gocv"
	"videomoderation/internal/pkg/hash"
	"videomoderation/internal/pkg/llm"
	"videomoderation/internal/pkg/moderator"
	"videomoderation/internal/pkg/nsfw"
	pkgredis "videomoderation/internal/pkg/redis"
	"videomoderation/internal/pkg/sampler"
)

// frameStoreAdapter adapts FrameCacheRepo to moderator.FrameStore interface.
// Rows saved with a positive ttl expire and are swept by DeleteExpired.
type frameStoreAdapter struct {
	repo biz.FrameCacheRepo
	ttl  time.Duration
	now  func() time.Time
}

func (a *frameStoreAdapter) FindBySHA256(ctx context.Context, sha string) (*moderator.CachedVerdict, error) {
	cache, err := a.repo.Get(ctx, sha)
	if err != nil {
		return nil, err
	}
	if cache == nil {
		return nil, nil
	}
	return &moderator.CachedVerdict{
		PHash:      uint64(cache.PHash),
		Reason:     cache.Category,
		Confidence: cache.NSFWScore,
	}, nil
}

func (a *frameStoreAdapter) FindNearest(ctx context.Context, phash uint64, maxDistance int) (*moderator.CachedVerdict, error) {
	frames, err := a.repo.FindSimilarByPHash(ctx, int64(phash), int32(maxDistance))
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, nil
	}
	match := frames[0] // closest match (sorted by distance ASC)
	return &moderator.CachedVerdict{
		PHash:      uint64(match.PHash),
		Reason:     match.Category,
		Confidence: match.NSFWScore,
	}, nil
}

func (a *frameStoreAdapter) SaveFlagged(ctx context.Context, f *moderator.FlaggedFrame) error {
	cache := &biz.FrameCache{
		SHA256:      f.SHA256,
		PHash:       int64(f.PHash),
		Category:    f.Reason,
		NSFWScore:   f.Confidence,
		Source:      f.Source,
		SourceIndex: f.SourceIndex,
	}
	if a.ttl > 0 {
		now := time.Now
		if a.now != nil {
			now = a.now
		}
		expires := now().Add(a.ttl)
		cache.ExpiresAt = &expires
	}
	return a.repo.Upsert(ctx, cache)
}

// ollamaDetectorAdapter adapts the vision LLM guard to moderator.Detector. The guard gives
// a binary answer, so scores are 0 or 1.
type ollamaDetectorAdapter struct {
	client *llm.OllamaClient
}

func (a *ollamaDetectorAdapter) Detect(ctx context.Context, imageData []byte) (*nsfw.DetectionResult, error) {
	res, err := a.client.ModerateImage(ctx, imageData)
	if err != nil {
		return nil, err
	}
	if res.IsSafe {
		return &nsfw.DetectionResult{NormalScore: 1, Label: "safe", Confidence: 1}, nil
	}
	label := "unsafe"
	if len(res.ViolatedCategories) > 0 {
		label = llm.CategoryDescription(res.ViolatedCategories[0])
	}
	return &nsfw.DetectionResult{IsNSFW: true, NSFWScore: 1, Label: label, Confidence: 1}, nil
}

func (a *ollamaDetectorAdapter) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}

// NewDetector creates the frame detector selected by classifier.backend.
func NewDetector(c *conf.Classifier, logger log.Logger) (moderator.Detector, func(), error) {
	helper := log.NewHelper(logger)

	switch c.Backend {
	case "http":
		cfg := nsfw.DefaultHTTPConfig()
		if c.HTTP != nil {
			if c.HTTP.BaseURL != "" {
				cfg.BaseURL = c.HTTP.BaseURL
			}
			if c.HTTP.Timeout > 0 {
				cfg.Timeout = c.HTTP.Timeout.AsDuration()
			}
		}
		helper.Infof("NSFW image HTTP detector at %s", cfg.BaseURL)
		return nsfw.NewClient(cfg), func() {}, nil

	case "grpc":
		if c.GRPC == nil || len(c.GRPC.Addrs) == 0 {
			return nil, nil, fmt.Errorf("classifier.grpc.addrs is empty")
		}
		return newImageClientPool(c, helper)

	case "ollama":
		cfg := llm.DefaultOllamaConfig()
		if c.Ollama != nil {
			if c.Ollama.BaseURL != "" {
				cfg.BaseURL = c.Ollama.BaseURL
			}
			if c.Ollama.Model != "" {
				cfg.Model = c.Ollama.Model
			}
			if c.Ollama.Timeout > 0 {
				cfg.Timeout = c.Ollama.Timeout.AsDuration()
			}
		}
		helper.Infof("Ollama vision guard %s at %s", cfg.Model, cfg.BaseURL)
		return &ollamaDetectorAdapter{client: llm.NewOllamaClient(cfg)}, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown classifier backend %q", c.Backend)
}

// newImageClientPool dials every gRPC replica. A single address skips the pool.
func newImageClientPool(c *conf.Classifier, helper *log.Helper) (moderator.Detector, func(), error) {
	clients := make(map[string]nsfw.Detector, len(c.GRPC.Addrs))
	cleanup := func() {
		helper.Info("closing NSFW image gRPC connections")
		for _, client := range clients {
			client.(*nsfw.ImageClient).Close()
		}
	}
	for _, addr := range c.GRPC.Addrs {
		cfg := nsfw.DefaultConfig(addr)
		if c.GRPC.Timeout > 0 {
			cfg.Timeout = c.GRPC.Timeout.AsDuration()
		}
		client, err := nsfw.NewImageClient(cfg)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		clients[addr] = client
		helper.Infof("NSFW image gRPC client connected to %s", cfg.Address)
	}
	if len(clients) == 1 {
		return clients[c.GRPC.Addrs[0]], cleanup, nil
	}
	return nsfw.NewPool(clients), cleanup, nil
}

// NewBloomFilter creates the Redis Bloom filter of flagged frame hashes. It returns nil when
// Redis is disabled.
func NewBloomFilter(cache pkgredis.Cache, c *conf.Cache) *bloom.Filter {
	if cache == nil {
		return nil
	}
	var opts []bloom.Option
	if c.BloomTTL > 0 {
		opts = append(opts, bloom.WithTTL(c.BloomTTL.AsDuration()))
	}
	return bloom.NewBloomFilter(cache, c.BloomKey, c.BloomBits, c.BloomHashFuncs, opts...)
}

// NewFrameModerator creates a LocalFrameModerator with optional Bloom and Postgres layers.
func NewFrameModerator(
	c *conf.Classifier,
	cc *conf.Cache,
	detector moderator.Detector,
	filter *bloom.Filter,
	repo biz.FrameCacheRepo,
	logger log.Logger,
) *moderator.LocalFrameModerator {
	config := moderator.DefaultFrameModeratorConfig()
	config.Threshold = c.Threshold
	if c.JPEGQuality > 0 {
		config.JPEGQuality = c.JPEGQuality
	}
	config.HashType = hash.ParseHashType(cc.HashType)
	config.MaxDistance = cc.MaxDistance

	var store moderator.FrameStore
	if repo != nil {
		store = &frameStoreAdapter{repo: repo, ttl: cc.FrameTTL.AsDuration()}
	}
	return moderator.NewLocalFrameModerator(config, detector, filter, store, logger)
}

// NewOpener selects the video decoder named by sampler.backend.
func NewOpener(c *conf.Sampler) (sampler.Opener, error) {
	switch c.Backend {
	case "ffmpeg":
		var opts []ffmpeg.Option
		if c.FFmpegPath != "" {
			opts = append(opts, ffmpeg.WithFFmpegPath(c.FFmpegPath))
		}
		if c.FFprobePath != "" {
			opts = append(opts, ffmpeg.WithFFprobePath(c.FFprobePath))
		}
		return ffmpeg.NewOpener(opts...), nil
	case "gocv":
		if !gocv.Available() {
			return nil, gocv.ErrUnavailable
		}
		return gocv.NewOpener(), nil
	}
	return nil, fmt.Errorf("unknown sampler backend %q", c.Backend)
}

// NewSampler creates the Sampler used by video analysis.
func NewSampler(opener sampler.Opener, c *conf.Sampler, logger log.Logger) (*sampler.Sampler, error) {
	return sampler.New(opener, samplerConfig(c, c.FrameInterval),
		sampler.WithLogger(logger),
		sampler.WithProgress(progressLogger(log.NewHelper(logger), c.FrameInterval*10)),
	)
}

// progressLogger logs decode progress every step source frames.
func progressLogger(helper *log.Helper, step int) sampler.ProgressFunc {
	return func(read, total int) {
		if read%step != 0 && read != total {
			return
		}
		if total > 0 {
			helper.Debugf("Extracting frames: %d/%d (%d%%)", read, total, read*100/total)
			return
		}
		helper.Debugf("Extracting frames: %d", read)
	}
}

// NewVideoModerator creates the video moderation pipeline.
func NewVideoModerator(s *sampler.Sampler, frames *moderator.LocalFrameModerator, logger log.Logger) *moderator.LocalVideoModerator {
	return moderator.NewLocalVideoModerator(s, frames, logger)
}

// NewDatasetBuilder creates a dataset Builder with its own, denser Sampler.
func NewDatasetBuilder(opener sampler.Opener, c *conf.Sampler, d *conf.Dataset, logger log.Logger) (*dataset.Builder, error) {
	s, err := sampler.New(opener, samplerConfig(c, d.FrameInterval), sampler.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return dataset.NewBuilder(s, logger), nil
}

func samplerConfig(c *conf.Sampler, interval int) sampler.Config {
	return sampler.Config{
		FrameInterval: interval,
		Width:         c.Width,
		Height:        c.Height,
		MaxFrames:     c.MaxFrames,
	}
}
