package dataset

import (
	"context"
	"fmt"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-kratos/kratos/v2/log"
	"gopkg.in/yaml.v3"

	"videomoderation/internal/pkg/fsutil"
	"videomoderation/internal/pkg/hash"
	"videomoderation/internal/pkg/sampler"
)

// ManifestFile is the name of the manifest written to the output directory.
const ManifestFile = "labels.yaml"

// VideoExts are the container extensions picked up from the class directories.
var VideoExts = []string{".mp4", ".avi", ".mov"}

// Label is the class of a training frame.
type Label int

const (
	LabelNonViolent Label = 0
	LabelViolent    Label = 1
)

func (l Label) String() string {
	if l == LabelViolent {
		return "violence"
	}
	return "nonviolence"
}

// FrameExtractor produces the sampled frames of a video.
type FrameExtractor interface {
	ExtractFrames(ctx context.Context, path string) (sampler.FrameSequence, error)
}

// Config describes one dataset build.
type Config struct {
	ViolenceDir       string
	NonViolenceDir    string
	OutDir            string
	MaxVideosPerClass int    // 0 means all
	Format            string // "png" (default) or "jpeg"
}

// Sample is one frame on disk.
type Sample struct {
	File        string `yaml:"file"` // relative to the output directory
	Label       Label  `yaml:"label"`
	Video       string `yaml:"video"`
	FrameIndex  int    `yaml:"frame_index"`
	SourceFrame int    `yaml:"source_frame"`
}

// Manifest lists every frame written by a build.
type Manifest struct {
	Width   int            `yaml:"width"`
	Height  int            `yaml:"height"`
	Counts  map[string]int `yaml:"counts"`
	Failed  []string       `yaml:"failed,omitempty"`
	Samples []Sample       `yaml:"samples"`
}

// Builder turns two directories of labelled videos into a directory of labelled frames.
type Builder struct {
	extractor FrameExtractor
	log       *log.Helper
}

// NewBuilder creates a Builder.
func NewBuilder(extractor FrameExtractor, logger log.Logger) *Builder {
	return &Builder{
		extractor: extractor,
		log:       log.NewHelper(logger),
	}
}

// Build extracts frames from every video of both classes, writes them under
// cfg.OutDir/<class>/ and writes the manifest. A video that fails to decode is logged,
// recorded in Manifest.Failed and skipped.
func (b *Builder) Build(ctx context.Context, cfg Config) (*Manifest, error) {
	violent, err := listVideos(cfg.ViolenceDir, cfg.MaxVideosPerClass)
	if err != nil {
		return nil, err
	}
	nonViolent, err := listVideos(cfg.NonViolenceDir, cfg.MaxVideosPerClass)
	if err != nil {
		return nil, err
	}
	b.log.Infof("Found %d violent videos", len(violent))
	b.log.Infof("Found %d non-violent videos", len(nonViolent))

	m := &Manifest{Counts: map[string]int{
		LabelViolent.String():    0,
		LabelNonViolent.String(): 0,
	}}
	classes := []struct {
		label  Label
		videos []string
	}{
		{LabelViolent, violent},
		{LabelNonViolent, nonViolent},
	}
	for _, class := range classes {
		if err := os.MkdirAll(filepath.Join(cfg.OutDir, class.label.String()), 0o755); err != nil {
			return nil, err
		}
		for _, video := range class.videos {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := b.addVideo(ctx, cfg, m, class.label, video); err != nil {
				b.log.Errorf("Error: %s - %v", video, err)
				m.Failed = append(m.Failed, video)
			}
		}
	}

	if err := writeManifest(filepath.Join(cfg.OutDir, ManifestFile), m); err != nil {
		return nil, err
	}
	b.log.Infof("Wrote %d violent and %d non-violent frames to %s",
		m.Counts[LabelViolent.String()], m.Counts[LabelNonViolent.String()], cfg.OutDir)
	return m, nil
}

func (b *Builder) addVideo(ctx context.Context, cfg Config, m *Manifest, label Label, video string) error {
	frames, err := b.extractor.ExtractFrames(ctx, video)
	if err != nil {
		return err
	}

	stem := videoStem(video)
	ext := ".png"
	if cfg.Format == "jpeg" || cfg.Format == "jpg" {
		ext = ".jpg"
	}

	samples := make([]Sample, 0, len(frames))
	for _, f := range frames {
		rel := filepath.Join(label.String(), fmt.Sprintf("%s_%05d%s", stem, f.SourceIndex, ext))
		if err := writeFrame(filepath.Join(cfg.OutDir, rel), f, ext); err != nil {
			for _, done := range samples {
				_ = os.Remove(filepath.Join(cfg.OutDir, filepath.FromSlash(done.File)))
			}
			return err
		}
		samples = append(samples, Sample{
			File:        filepath.ToSlash(rel),
			Label:       label,
			Video:       video,
			FrameIndex:  f.Index,
			SourceFrame: f.SourceIndex,
		})
	}

	// Only fully written videos reach the manifest.
	if n := len(frames); n > 0 {
		m.Width, m.Height = frames[n-1].Width, frames[n-1].Height
	}
	m.Samples = append(m.Samples, samples...)
	m.Counts[label.String()] += len(samples)
	b.log.Debugf("%s: %d frames", video, len(frames))
	return nil
}

// videoStem names the frames of one video. The container extension and a
// hash of the full path keep same-named videos from overwriting each other.
func videoStem(video string) string {
	ext := filepath.Ext(video)
	base := fsutil.SecureFilename(strings.TrimSuffix(filepath.Base(video), ext))
	if base == "" {
		base = "video"
	}
	if e := strings.TrimPrefix(strings.ToLower(ext), "."); e != "" {
		base += "_" + e
	}
	return fmt.Sprintf("%s_%08x", base, uint32(hash.FastHash([]byte(video))))
}

func listVideos(dir string, limit int) ([]string, error) {
	videos, err := fsutil.ListFiles(dir, VideoExts...)
	if err != nil {
		return nil, fmt.Errorf("list videos in %s: %w", dir, err)
	}
	if limit > 0 && len(videos) > limit {
		videos = videos[:limit]
	}
	return videos, nil
}

func writeFrame(path string, f *sampler.Frame, ext string) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if ext == ".jpg" {
		err = jpeg.Encode(out, f.Image(), &jpeg.Options{Quality: 95})
	} else {
		err = png.Encode(out, f.Image())
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return err
}

func writeManifest(path string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadManifest loads a manifest written by Build.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &m, nil
}
