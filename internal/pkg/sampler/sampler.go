package sampler

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/go-kratos/kratos/v2/log"
)

var (
	// ErrOpen is returned when a video container cannot be opened.
	ErrOpen = errors.New("could not open video file")
	// ErrDecode marks a decode failure after the container was opened.
	// The sampler treats it as end of stream.
	ErrDecode = errors.New("could not decode video frame")
	// ErrInvalidConfig is returned by New for out-of-range settings.
	ErrInvalidConfig = errors.New("invalid sampler config")
)

// VideoHandle is an open, sequentially readable video container.
type VideoHandle interface {
	// Read decodes the next frame. It returns io.EOF at end of stream.
	Read() (image.Image, error)
	// FrameCount is the container's frame-count hint; <= 0 means unknown.
	FrameCount() int
	// Close releases the handle.
	Close() error
}

// Opener opens video containers.
type Opener interface {
	Open(ctx context.Context, path string) (VideoHandle, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, path string) (VideoHandle, error)

// Open implements Opener.
func (f OpenerFunc) Open(ctx context.Context, path string) (VideoHandle, error) {
	return f(ctx, path)
}

// ProgressFunc receives the number of source frames read so far and the expected total
// (0 when the container has no frame count).
type ProgressFunc func(read, total int)

// Config holds sampling parameters.
type Config struct {
	FrameInterval int // stride in source frames between samples
	Width         int // target width
	Height        int // target height
	MaxFrames     int // cap on sampled frames
}

// DefaultConfig returns the default sampling parameters.
func DefaultConfig() Config {
	return Config{
		FrameInterval: 90,
		Width:         224,
		Height:        224,
		MaxFrames:     150,
	}
}

// Validate reports whether the config can drive an extraction.
func (c Config) Validate() error {
	switch {
	case c.FrameInterval < 1:
		return fmt.Errorf("%w: frame interval %d < 1", ErrInvalidConfig, c.FrameInterval)
	case c.Width <= 0 || c.Height <= 0:
		return fmt.Errorf("%w: target size %dx%d", ErrInvalidConfig, c.Width, c.Height)
	case c.MaxFrames < 1:
		return fmt.Errorf("%w: max frames %d < 1", ErrInvalidConfig, c.MaxFrames)
	}
	return nil
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithProgress sets a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(s *Sampler) {
		s.progress = fn
	}
}

// WithLogger sets the logger used for decode warnings and summaries.
func WithLogger(logger log.Logger) Option {
	return func(s *Sampler) {
		s.log = log.NewHelper(logger)
	}
}

// Sampler extracts a bounded, strided, uniformly sized frame sequence from a video.
type Sampler struct {
	opener   Opener
	config   Config
	progress ProgressFunc
	log      *log.Helper
}

// New creates a Sampler. It fails if cfg is out of range.
func New(opener Opener, cfg Config, opts ...Option) (*Sampler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Sampler{
		opener: opener,
		config: cfg,
		log:    log.NewHelper(log.DefaultLogger),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Config returns the sampling parameters.
func (s *Sampler) Config() Config {
	return s.config
}

// ExtractFrames samples every FrameInterval-th source frame of the video at path, starting
// with frame 0, until MaxFrames frames are collected or the stream ends. A decode error
// mid-stream ends sampling and the frames collected so far are returned. An empty result is
// not an error.
func (s *Sampler) ExtractFrames(ctx context.Context, path string) (FrameSequence, error) {
	handle, err := s.opener.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrOpen, path, err)
	}
	defer handle.Close()

	cfg := s.config
	total := handle.FrameCount()
	if total > 0 {
		total = min(total, cfg.MaxFrames*cfg.FrameInterval)
	}

	frames := make(FrameSequence, 0, min(cfg.MaxFrames, 64))
	read := 0
	for len(frames) < cfg.MaxFrames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		img, err := handle.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.log.Warnf("stopping extraction of %s at source frame %d: %v", path, read, err)
			break
		}

		if read%cfg.FrameInterval == 0 {
			f := newFrame(img, cfg.Width, cfg.Height)
			f.Index = len(frames)
			f.SourceIndex = read
			frames = append(frames, f)
		}

		read++
		if s.progress != nil {
			s.progress(read, total)
		}
	}

	s.log.Debugf("extracted %d frames from %s", len(frames), path)
	return frames, nil
}
