package biz

import (
	"context"
	"errors"
	"sync"
	"time"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"

	"videomoderation/internal/conf"
	"videomoderation/internal/pkg/moderator"
	"videomoderation/internal/pkg/sampler"
)

// Error reasons returned by video analysis.
const (
	ReasonVideoOpenFailed      = "VIDEO_OPEN_FAILED"
	ReasonNoFramesExtracted    = "NO_FRAMES_EXTRACTED"
	ReasonClassificationFailed = "CLASSIFICATION_FAILED"
	ReasonAnalysisTimeout      = "ANALYSIS_TIMEOUT"
	ReasonCancelled            = "CANCELLED"
	ReasonCacheUnavailable     = "CACHE_UNAVAILABLE"
	ReasonInternal             = "INTERNAL"
)

// FrameModerator is the frame classifier as seen by maintenance operations.
type FrameModerator interface {
	Ping(ctx context.Context) error
	RebuildBloomFilter(ctx context.Context, phashes []uint64) error
}

// VideoReport is the outcome of analysing one video.
type VideoReport struct {
	RequestID string
	Path      string
	Verdict   *moderator.AggregateVerdict
	Err       error
	Elapsed   time.Duration
}

// ModerationUsecase orchestrates video moderation.
type ModerationUsecase struct {
	videoModerator moderator.VideoModerator
	frameModerator FrameModerator
	frameCache     FrameCacheRepo
	workers        int
	timeout        time.Duration
	log            *log.Helper
}

// NewModerationUsecase creates a new ModerationUsecase. frameCache may be nil.
func NewModerationUsecase(
	videoMod moderator.VideoModerator,
	frameMod FrameModerator,
	frameCache FrameCacheRepo,
	c *conf.Analyze,
	logger log.Logger,
) *ModerationUsecase {
	workers := c.Workers
	if workers <= 0 {
		workers = 1
	}
	return &ModerationUsecase{
		videoModerator: videoMod,
		frameModerator: frameMod,
		frameCache:     frameCache,
		workers:        workers,
		timeout:        c.Timeout.AsDuration(),
		log:            log.NewHelper(logger),
	}
}

// Ping checks that the frame classifier is reachable.
func (uc *ModerationUsecase) Ping(ctx context.Context) error {
	if err := uc.frameModerator.Ping(ctx); err != nil {
		return kerrors.ServiceUnavailable(ReasonClassificationFailed, "frame classifier unavailable").WithCause(err)
	}
	return nil
}

// AnalyzeVideo moderates the video at path.
func (uc *ModerationUsecase) AnalyzeVideo(ctx context.Context, path string) (*moderator.AggregateVerdict, error) {
	report := uc.analyze(ctx, uuid.NewString(), path)
	return report.Verdict, report.Err
}

// AnalyzeBatch moderates every path with up to the configured number of workers. Reports
// are returned in input order; a failed video carries its error and does not stop the others.
func (uc *ModerationUsecase) AnalyzeBatch(ctx context.Context, paths []string) []*VideoReport {
	type job struct {
		index int
		path  string
	}
	workerCount := min(uc.workers, len(paths))
	jobs := make(chan job)
	reports := make([]*VideoReport, len(paths))
	var wg sync.WaitGroup
	worker := func() {
		defer wg.Done()
		for j := range jobs {
			reports[j.index] = uc.analyze(ctx, uuid.NewString(), j.path)
		}
	}

	wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go worker()
	}
	for i, path := range paths {
		jobs <- job{index: i, path: path}
	}
	close(jobs)
	wg.Wait()
	return reports
}

func (uc *ModerationUsecase) analyze(ctx context.Context, requestID, path string) *VideoReport {
	if uc.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.timeout)
		defer cancel()
	}

	start := time.Now()
	uc.log.Debugf("AnalyzeVideo: requestID=%s, path=%s", requestID, path)
	verdict, err := uc.videoModerator.ModerateVideo(ctx, path)
	report := &VideoReport{
		RequestID: requestID,
		Path:      path,
		Elapsed:   time.Since(start),
	}
	if err != nil {
		report.Err = toAnalysisError(err)
		uc.log.Warnf("AnalyzeVideo failed: requestID=%s, path=%s: %v", requestID, path, err)
		return report
	}
	report.Verdict = verdict
	uc.log.Infof("AnalyzeVideo: requestID=%s, path=%s, status=%s, unsafe=%d/%d, elapsed=%s",
		requestID, path, verdict.Status, verdict.UnsafeFrames, verdict.TotalFrames, report.Elapsed)
	return report
}

// toAnalysisError maps pipeline errors to kratos errors with stable reasons.
func toAnalysisError(err error) error {
	var ce *moderator.ClassificationError
	switch {
	case errors.Is(err, sampler.ErrOpen):
		return kerrors.BadRequest(ReasonVideoOpenFailed, err.Error()).WithCause(err)
	case errors.Is(err, moderator.ErrNoFrames):
		return kerrors.New(422, ReasonNoFramesExtracted, err.Error()).WithCause(err)
	case errors.As(err, &ce):
		return kerrors.InternalServer(ReasonClassificationFailed, err.Error()).WithCause(err)
	case errors.Is(err, context.DeadlineExceeded):
		return kerrors.GatewayTimeout(ReasonAnalysisTimeout, err.Error()).WithCause(err)
	case errors.Is(err, context.Canceled):
		return kerrors.ClientClosed(ReasonCancelled, err.Error()).WithCause(err)
	}
	return kerrors.InternalServer(ReasonInternal, err.Error()).WithCause(err)
}

// RebuildBloom purges expired frames and rebuilds the Bloom filter from the frame cache.
func (uc *ModerationUsecase) RebuildBloom(ctx context.Context) (int, error) {
	if uc.frameCache == nil {
		return 0, kerrors.ServiceUnavailable(ReasonCacheUnavailable, "database disabled, no flagged frames to load")
	}
	uc.log.Info("Rebuilding frame Bloom filter from database")

	purged, err := uc.frameCache.DeleteExpired(ctx)
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		uc.log.Infof("Purged %d expired frames", purged)
	}

	phashes, err := uc.frameCache.ListPHashes(ctx)
	if err != nil {
		return 0, err
	}
	values := make([]uint64, len(phashes))
	for i, p := range phashes {
		values[i] = uint64(p)
	}
	if err := uc.frameModerator.RebuildBloomFilter(ctx, values); err != nil {
		return 0, kerrors.ServiceUnavailable(ReasonCacheUnavailable, err.Error()).WithCause(err)
	}

	total, err := uc.frameCache.Count(ctx)
	if err == nil {
		uc.log.Infof("Frame cache holds %d flagged frames", total)
	}
	return len(values), nil
}
