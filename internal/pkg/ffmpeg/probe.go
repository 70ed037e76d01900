package ffmpeg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrNoVideoStream is returned when a container has no decodable video stream.
var ErrNoVideoStream = errors.New("no video stream")

// ProbeResult contains metadata about the first video stream of a file
type ProbeResult struct {
	Path       string
	Format     string
	VideoCodec string
	Width      int
	Height     int
	FrameRate  float64
	FrameCount int // nb_frames, or an estimate from duration and frame rate; 0 if unknown
	Duration   time.Duration
}

// ffprobeOutput represents the JSON output from ffprobe
type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
}

type ffprobeStream struct {
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	NbFrames     string `json:"nb_frames"`
	Duration     string `json:"duration"`
}

// Prober wraps ffprobe functionality
type Prober struct {
	ffprobePath string
	runner      CommandRunner
}

// NewProber creates a new Prober with the given ffprobe path
func NewProber(ffprobePath string, runner CommandRunner) *Prober {
	if runner == nil {
		runner = &ExecCommandRunner{}
	}
	return &Prober{ffprobePath: ffprobePath, runner: runner}
}

// Probe returns metadata about the first video stream of a file
func (p *Prober) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	output, err := p.runner.Output(ctx, p.ffprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		"-select_streams", "v:0",
		path,
	)
	if err != nil {
		return nil, err
	}
	return parseProbeOutput(path, output)
}

func parseProbeOutput(path string, output []byte) (*ProbeResult, error) {
	var probeOutput ffprobeOutput
	if err := json.Unmarshal(output, &probeOutput); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	result := &ProbeResult{
		Path:   path,
		Format: probeOutput.Format.FormatName,
	}
	if probeOutput.Format.Duration != "" {
		durationSec, _ := strconv.ParseFloat(probeOutput.Format.Duration, 64)
		result.Duration = time.Duration(math.Round(durationSec * float64(time.Second)))
	}

	for _, stream := range probeOutput.Streams {
		if stream.CodecType != "video" {
			continue
		}
		result.VideoCodec = stream.CodecName
		result.Width = stream.Width
		result.Height = stream.Height
		result.FrameRate = parseFrameRate(stream.RFrameRate)
		if result.FrameRate == 0 {
			result.FrameRate = parseFrameRate(stream.AvgFrameRate)
		}
		if stream.NbFrames != "" {
			result.FrameCount, _ = strconv.Atoi(stream.NbFrames)
		}
		if result.FrameCount == 0 && result.FrameRate > 0 && result.Duration > 0 {
			result.FrameCount = int(math.Round(result.Duration.Seconds() * result.FrameRate))
		}
		break
	}

	if result.VideoCodec == "" || result.Width <= 0 || result.Height <= 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoVideoStream, path)
	}
	return result, nil
}

// parseFrameRate parses a frame rate string like "30000/1001" or "30/1"
func parseFrameRate(s string) float64 {
	if s == "" || s == "0/0" {
		return 0
	}
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		f, _ := strconv.ParseFloat(s, 64)
		return f
	}
	num, _ := strconv.ParseFloat(parts[0], 64)
	den, _ := strconv.ParseFloat(parts[1], 64)
	if den == 0 {
		return 0
	}
	return num / den
}

// IsVideoFile returns true if the file extension is one of exts (case-insensitive).
func IsVideoFile(path string, exts ...string) bool {
	lower := strings.ToLower(path)
	for _, ext := range exts {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}
