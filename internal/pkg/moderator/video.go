package moderator

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-kratos/kratos/v2/log"

	"videomoderation/internal/pkg/sampler"
)

// ErrNoFrames is returned when a video opened but yielded no frames.
var ErrNoFrames = errors.New("no frames could be extracted from video")

// ErrNilVerdict is returned when a classifier reports neither a verdict nor an error.
var ErrNilVerdict = errors.New("classifier returned no verdict")

// ClassificationError reports the frame whose classification aborted a video.
type ClassificationError struct {
	FrameIndex int
	Err        error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classify frame %d: %v", e.FrameIndex, e.Err)
}

func (e *ClassificationError) Unwrap() error {
	return e.Err
}

// FrameClassifier classifies a single frame.
type FrameClassifier interface {
	Classify(ctx context.Context, frame *sampler.Frame) (*FrameVerdict, error)
}

// FrameExtractor produces the sampled frames of a video.
type FrameExtractor interface {
	ExtractFrames(ctx context.Context, path string) (sampler.FrameSequence, error)
}

// VideoModerator moderates a video file.
type VideoModerator interface {
	ModerateVideo(ctx context.Context, path string) (*AggregateVerdict, error)
}

type sourceKey struct{}

// WithSource attaches the video path to ctx so classifiers can record where a frame came from.
func WithSource(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, sourceKey{}, path)
}

// SourceFromContext returns the path set by WithSource.
func SourceFromContext(ctx context.Context) string {
	s, _ := ctx.Value(sourceKey{}).(string)
	return s
}

// LocalVideoModerator samples a video, classifies every sampled frame in order on the
// calling goroutine and aggregates the verdicts.
type LocalVideoModerator struct {
	extractor  FrameExtractor
	classifier FrameClassifier
	log        *log.Helper
}

// NewLocalVideoModerator creates a new LocalVideoModerator.
func NewLocalVideoModerator(extractor FrameExtractor, classifier FrameClassifier, logger log.Logger) *LocalVideoModerator {
	return &LocalVideoModerator{
		extractor:  extractor,
		classifier: classifier,
		log:        log.NewHelper(logger),
	}
}

// ModerateVideo returns the aggregate verdict for the video at path.
//
// Errors: sampler.ErrOpen when the file cannot be opened, ErrNoFrames when nothing was
// sampled, *ClassificationError when any frame fails to classify. No partial verdict is
// returned on error.
func (m *LocalVideoModerator) ModerateVideo(ctx context.Context, path string) (*AggregateVerdict, error) {
	frames, err := m.extractor.ExtractFrames(ctx, path)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoFrames, path)
	}

	ctx = WithSource(ctx, path)
	verdicts := make([]FrameVerdict, len(frames))
	for i, frame := range frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := m.classifier.Classify(ctx, frame)
		if err != nil {
			return nil, &ClassificationError{FrameIndex: i, Err: err}
		}
		if v == nil {
			return nil, &ClassificationError{FrameIndex: i, Err: ErrNilVerdict}
		}
		verdicts[i] = *v
	}

	result, err := Aggregate(verdicts)
	if err != nil {
		return nil, err
	}
	m.log.Debugf("moderated %s: %s, %d/%d frames flagged", path, result.Status, result.UnsafeFrames, result.TotalFrames)
	return result, nil
}
