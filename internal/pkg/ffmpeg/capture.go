package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"

	"videomoderation/internal/pkg/sampler"
)

// Opener decodes videos by piping ffmpeg's rawvideo output.
// It implements sampler.Opener.
type Opener struct {
	ffmpegPath string
	prober     *Prober
	runner     CommandRunner
}

// Option configures an Opener.
type Option func(*openerOptions)

type openerOptions struct {
	ffmpegPath  string
	ffprobePath string
	runner      CommandRunner
}

// WithFFmpegPath sets the ffmpeg binary.
func WithFFmpegPath(path string) Option {
	return func(o *openerOptions) {
		if path != "" {
			o.ffmpegPath = path
		}
	}
}

// WithFFprobePath sets the ffprobe binary.
func WithFFprobePath(path string) Option {
	return func(o *openerOptions) {
		if path != "" {
			o.ffprobePath = path
		}
	}
}

// WithCommandRunner replaces the process runner.
func WithCommandRunner(r CommandRunner) Option {
	return func(o *openerOptions) {
		o.runner = r
	}
}

// NewOpener creates an Opener. Binaries default to ffmpeg and ffprobe on PATH.
func NewOpener(opts ...Option) *Opener {
	o := &openerOptions{
		ffmpegPath:  "ffmpeg",
		ffprobePath: "ffprobe",
		runner:      &ExecCommandRunner{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return &Opener{
		ffmpegPath: o.ffmpegPath,
		prober:     NewProber(o.ffprobePath, o.runner),
		runner:     o.runner,
	}
}

// Open probes path and starts decoding its first video stream.
func (o *Opener) Open(ctx context.Context, path string) (sampler.VideoHandle, error) {
	info, err := o.prober.Probe(ctx, path)
	if err != nil {
		return nil, err
	}

	stream, err := o.runner.Stream(ctx, o.ffmpegPath,
		"-v", "error",
		"-nostdin",
		"-noautorotate",
		"-i", path,
		"-map", "0:v:0",
		"-vsync", "0",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-",
	)
	if err != nil {
		return nil, err
	}

	return &capture{
		stream: stream,
		info:   info,
		buf:    make([]byte, info.Width*info.Height*3),
	}, nil
}

// capture reads fixed-size rgb24 frames from a running ffmpeg.
type capture struct {
	stream io.ReadCloser
	info   *ProbeResult
	buf    []byte
}

func (c *capture) Read() (image.Image, error) {
	_, err := io.ReadFull(c.stream, c.buf)
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", sampler.ErrDecode, err)
	}

	w, h := c.info.Width, c.info.Height
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i, j := 0, 0; i < len(c.buf); i, j = i+3, j+4 {
		img.Pix[j] = c.buf[i]
		img.Pix[j+1] = c.buf[i+1]
		img.Pix[j+2] = c.buf[i+2]
		img.Pix[j+3] = 0xff
	}
	return img, nil
}

func (c *capture) FrameCount() int {
	return c.info.FrameCount
}

func (c *capture) Close() error {
	return c.stream.Close()
}
