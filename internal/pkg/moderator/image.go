package moderator

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"

	"github.com/go-kratos/kratos/v2/log"

	"videomoderation/internal/pkg/bloom"
	"videomoderation/internal/pkg/hash"
	"videomoderation/internal/pkg/nsfw"
	"videomoderation/internal/pkg/sampler"
)

// Detector is the remote model behind frame classification.
type Detector interface {
	Detect(ctx context.Context, imageData []byte) (*nsfw.DetectionResult, error)
	Ping(ctx context.Context) error
}

// FrameModeratorConfig holds configuration for frame classification.
type FrameModeratorConfig struct {
	Threshold   float64 // NSFW score at or above which a frame is flagged (0-1)
	JPEGQuality int     // quality of frames sent to the detector
	HashType    hash.HashType
	MaxDistance int // pHash Hamming distance accepted as the same frame
}

// DefaultFrameModeratorConfig returns default configuration.
func DefaultFrameModeratorConfig() FrameModeratorConfig {
	return FrameModeratorConfig{
		Threshold:   0.7,
		JPEGQuality: 90,
		HashType:    hash.PHash,
		MaxDistance: 4,
	}
}

// CachedVerdict is a previously flagged frame found in the store.
type CachedVerdict struct {
	PHash      uint64
	Reason     string
	Confidence float64
}

// FlaggedFrame is what gets persisted for a frame the detector flagged.
type FlaggedFrame struct {
	SHA256      string
	PHash       uint64
	Reason      string
	Confidence  float64
	Source      string
	SourceIndex int
}

// FrameStore remembers flagged frames.
type FrameStore interface {
	// FindBySHA256 returns nil, nil when no frame with these exact bytes is stored.
	FindBySHA256(ctx context.Context, sha string) (*CachedVerdict, error)
	// FindNearest returns the stored frame closest to phash within maxDistance, or nil, nil.
	FindNearest(ctx context.Context, phash uint64, maxDistance int) (*CachedVerdict, error)
	SaveFlagged(ctx context.Context, f *FlaggedFrame) error
}

// LocalFrameModerator classifies frames with a detector, short-circuiting frames already
// known to be bad.
//  1. Hash the frame (SHA-256 of pixels, perceptual hash)
//  2. Check Bloom filter
//  3. If Bloom hit -> store lookup to confirm
//  4. If not cached -> detector
//  5. If flagged -> save to store + Bloom
//
// The Bloom filter and the store are optional; with neither, every frame goes to the detector.
type LocalFrameModerator struct {
	config   FrameModeratorConfig
	detector Detector
	filter   *bloom.Filter
	store    FrameStore
	hasher   *hash.PerceptualHasher
	log      *log.Helper
}

// NewLocalFrameModerator creates a new LocalFrameModerator. filter and store may be nil.
func NewLocalFrameModerator(
	config FrameModeratorConfig,
	detector Detector,
	filter *bloom.Filter,
	store FrameStore,
	logger log.Logger,
) *LocalFrameModerator {
	if config.JPEGQuality <= 0 {
		config.JPEGQuality = jpeg.DefaultQuality
	}
	return &LocalFrameModerator{
		config:   config,
		detector: detector,
		filter:   filter,
		store:    store,
		hasher:   hash.NewPerceptualHasher(config.HashType),
		log:      log.NewHelper(logger),
	}
}

// Classify implements FrameClassifier.
func (m *LocalFrameModerator) Classify(ctx context.Context, frame *sampler.Frame) (*FrameVerdict, error) {
	if m.filter == nil && m.store == nil {
		return m.detect(ctx, frame, nil)
	}

	sha := hash.Sha256Hex(frame.Pix)
	imgHash, err := m.hasher.Compute(frame.Image())
	if err != nil {
		m.log.Warnf("Failed to compute pHash of frame %d: %v, using direct detection", frame.Index, err)
		return m.detect(ctx, frame, nil)
	}
	key := &FlaggedFrame{SHA256: sha, PHash: imgHash.Hash}

	if cached := m.lookup(ctx, frame, key); cached != nil {
		return &FrameVerdict{Flagged: true, Confidence: cached.Confidence, Reason: cached.Reason}, nil
	}
	return m.detect(ctx, frame, key)
}

// lookup returns the stored verdict for a frame, or nil. Cache failures are logged and
// treated as misses.
func (m *LocalFrameModerator) lookup(ctx context.Context, frame *sampler.Frame, key *FlaggedFrame) *CachedVerdict {
	if m.filter != nil {
		maybeExists, err := m.filter.Exists(ctx, hash.Uint64Bytes(key.PHash))
		switch {
		case err != nil:
			m.log.Warnf("Bloom filter check failed: %v", err)
		case !maybeExists:
			return nil
		default:
			m.log.Debugf("Bloom filter hit for pHash %016x", key.PHash)
		}
	}
	if m.store == nil {
		return nil
	}

	cached, err := m.store.FindBySHA256(ctx, key.SHA256)
	if err != nil {
		m.log.Warnf("Frame lookup by sha256 failed: %v", err)
	}
	if cached == nil && m.config.MaxDistance >= 0 {
		cached, err = m.store.FindNearest(ctx, key.PHash, m.config.MaxDistance)
		if err != nil {
			m.log.Warnf("Frame lookup by pHash failed: %v", err)
		}
	}
	if cached != nil {
		m.log.Infof("Cached bad frame %d detected: pHash=%016x reason=%s", frame.Index, key.PHash, cached.Reason)
	}
	return cached
}

// detect sends the frame to the detector. key is nil when hashing was skipped.
func (m *LocalFrameModerator) detect(ctx context.Context, frame *sampler.Frame, key *FlaggedFrame) (*FrameVerdict, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame.Image(), &jpeg.Options{Quality: m.config.JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode frame %d: %w", frame.Index, err)
	}

	result, err := m.detector.Detect(ctx, buf.Bytes())
	if err != nil {
		return nil, err
	}

	if !result.IsNSFW && result.NSFWScore < m.config.Threshold {
		return &FrameVerdict{Flagged: false, Confidence: result.NormalScore}, nil
	}

	verdict := &FrameVerdict{
		Flagged:    true,
		Confidence: result.NSFWScore,
		Reason:     result.Label,
	}
	if verdict.Reason == "" {
		verdict.Reason = "nsfw"
	}

	if key != nil {
		key.Reason = verdict.Reason
		key.Confidence = verdict.Confidence
		key.Source = SourceFromContext(ctx)
		key.SourceIndex = frame.SourceIndex
		if err := m.saveFlagged(ctx, key); err != nil {
			m.log.Warnf("Failed to save flagged frame: %v", err)
		}
	}
	return verdict, nil
}

// saveFlagged saves a flagged frame to the store and updates the Bloom filter.
func (m *LocalFrameModerator) saveFlagged(ctx context.Context, f *FlaggedFrame) error {
	if m.store != nil {
		if err := m.store.SaveFlagged(ctx, f); err != nil {
			return err
		}
	}
	if m.filter != nil {
		if err := m.filter.Add(ctx, hash.Uint64Bytes(f.PHash)); err != nil {
			m.log.Warnf("Failed to add pHash to Bloom filter: %v", err)
		}
	}
	m.log.Infof("Saved flagged frame: pHash=%016x, reason=%s, score=%.2f", f.PHash, f.Reason, f.Confidence)
	return nil
}

// Ping checks the detector.
func (m *LocalFrameModerator) Ping(ctx context.Context) error {
	return m.detector.Ping(ctx)
}

// RebuildBloomFilter resets the Bloom filter and re-adds every flagged pHash.
func (m *LocalFrameModerator) RebuildBloomFilter(ctx context.Context, phashes []uint64) error {
	if m.filter == nil {
		return fmt.Errorf("bloom filter not configured")
	}
	if err := m.filter.Reset(ctx); err != nil {
		return fmt.Errorf("reset bloom filter: %w", err)
	}
	for _, phash := range phashes {
		if err := m.filter.Add(ctx, hash.Uint64Bytes(phash)); err != nil {
			m.log.Warnf("Failed to add pHash %016x to Bloom: %v", phash, err)
		}
	}
	m.log.Infof("Rebuilt frame Bloom filter with %d pHashes", len(phashes))
	return nil
}
