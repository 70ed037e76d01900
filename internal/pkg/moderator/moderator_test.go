package moderator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"math"
	"reflect"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-kratos/kratos/v2/log"

	"videomoderation/internal/pkg/bloom"
	"videomoderation/internal/pkg/hash"
	"videomoderation/internal/pkg/nsfw"
	"videomoderation/internal/pkg/redis"
	"videomoderation/internal/pkg/sampler"
)

func TestAggregate_Mixed(t *testing.T) {
	verdicts := []FrameVerdict{
		{Flagged: false, Confidence: 0.9},
		{Flagged: true, Confidence: 0.8, Reason: "nudity"},
		{Flagged: true, Confidence: 0.95, Reason: "violence"},
	}

	result, err := Aggregate(verdicts)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	if result.Status != StatusUnsafe {
		t.Errorf("Expected UNSAFE, got %s", result.Status)
	}
	if result.TotalFrames != 3 || result.UnsafeFrames != 2 {
		t.Errorf("Expected 2/3 unsafe, got %d/%d", result.UnsafeFrames, result.TotalFrames)
	}
	if math.Abs(result.UnsafePercentage-200.0/3) > 1e-9 {
		t.Errorf("Expected 66.666..., got %v", result.UnsafePercentage)
	}
	if result.Confidence != 0.95 {
		t.Errorf("Expected confidence 0.95, got %v", result.Confidence)
	}

	want := []FrameDetail{
		{FrameIndex: 1, Reason: "nudity", Confidence: 0.8},
		{FrameIndex: 2, Reason: "violence", Confidence: 0.95},
	}
	if !reflect.DeepEqual(result.Details, want) {
		t.Errorf("Details = %+v; want %+v", result.Details, want)
	}
}

func TestAggregate_AllSafe(t *testing.T) {
	verdicts := []FrameVerdict{
		{Flagged: false, Confidence: 0.6},
		{Flagged: false, Confidence: 0.99},
	}

	result, err := Aggregate(verdicts)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	if result.Status != StatusSafe {
		t.Errorf("Expected SAFE, got %s", result.Status)
	}
	if result.UnsafeFrames != 0 || result.UnsafePercentage != 0 {
		t.Errorf("Expected no unsafe frames, got %d (%v%%)", result.UnsafeFrames, result.UnsafePercentage)
	}
	if result.Confidence != 1.0 {
		t.Errorf("Expected confidence 1.0, got %v", result.Confidence)
	}
	if result.Details == nil || len(result.Details) != 0 {
		t.Errorf("Expected empty non-nil details, got %#v", result.Details)
	}
}

func TestAggregate_Empty(t *testing.T) {
	if _, err := Aggregate(nil); !errors.Is(err, ErrNoVerdicts) {
		t.Errorf("Expected ErrNoVerdicts, got %v", err)
	}
}

func TestAggregate_OrderNotByConfidence(t *testing.T) {
	verdicts := []FrameVerdict{
		{Flagged: true, Confidence: 0.99, Reason: "a"},
		{Flagged: false, Confidence: 0.5},
		{Flagged: true, Confidence: 0.51, Reason: "b"},
		{Flagged: true, Confidence: 0.75, Reason: "c"},
	}

	result, err := Aggregate(verdicts)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	want := []int{0, 2, 3}
	for i, d := range result.Details {
		if d.FrameIndex != want[i] {
			t.Errorf("Details[%d].FrameIndex = %d; want %d", i, d.FrameIndex, want[i])
		}
	}
	if result.UnsafePercentage != 75 {
		t.Errorf("Expected 75%%, got %v", result.UnsafePercentage)
	}
}

func TestAggregate_Idempotent(t *testing.T) {
	verdicts := []FrameVerdict{
		{Flagged: true, Confidence: 0.7, Reason: "violence"},
		{Flagged: false, Confidence: 0.8},
	}

	first, _ := Aggregate(verdicts)
	second, _ := Aggregate(verdicts)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Expected identical results, got %+v and %+v", first, second)
	}
}

func TestAggregateVerdict_JSON(t *testing.T) {
	result, _ := Aggregate([]FrameVerdict{{Flagged: false, Confidence: 0.9}})

	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `{"status":"SAFE","total_frames":1,"unsafe_frames":0,"unsafe_percentage":0,"confidence":1,"details":[]}`
	if string(data) != want {
		t.Errorf("JSON = %s; want %s", data, want)
	}
}

// fakeExtractor returns n solid frames whose red channel is the frame index.
type fakeExtractor struct {
	n   int
	err error
}

func (e *fakeExtractor) ExtractFrames(ctx context.Context, path string) (sampler.FrameSequence, error) {
	if e.err != nil {
		return nil, e.err
	}
	frames := make(sampler.FrameSequence, e.n)
	for i := range frames {
		frames[i] = solidFrame(i, uint8(i))
	}
	return frames, nil
}

func solidFrame(index int, red uint8) *sampler.Frame {
	f := &sampler.Frame{Index: index, SourceIndex: index * 10, Width: 8, Height: 8, Pix: make([]byte, 8*8*sampler.Channels)}
	for i := 0; i < len(f.Pix); i += sampler.Channels {
		f.Pix[i] = red
		f.Pix[i+1] = 30
		f.Pix[i+2] = 60
	}
	return f
}

// scriptedClassifier flags the frames listed in flagged and fails at failAt.
type scriptedClassifier struct {
	flagged map[int]string
	failAt  int
	calls   []int
	source  string
}

func (c *scriptedClassifier) Classify(ctx context.Context, frame *sampler.Frame) (*FrameVerdict, error) {
	c.calls = append(c.calls, frame.Index)
	c.source = SourceFromContext(ctx)
	if frame.Index == c.failAt {
		return nil, errors.New("model unavailable")
	}
	if reason, ok := c.flagged[frame.Index]; ok {
		return &FrameVerdict{Flagged: true, Confidence: 0.9, Reason: reason}, nil
	}
	return &FrameVerdict{Confidence: 0.8}, nil
}

func TestLocalVideoModerator_ModerateVideo(t *testing.T) {
	classifier := &scriptedClassifier{flagged: map[int]string{2: "violence"}, failAt: -1}
	m := NewLocalVideoModerator(&fakeExtractor{n: 4}, classifier, log.DefaultLogger)

	result, err := m.ModerateVideo(context.Background(), "fight.mp4")
	if err != nil {
		t.Fatalf("ModerateVideo failed: %v", err)
	}

	if result.Status != StatusUnsafe || result.TotalFrames != 4 || result.UnsafeFrames != 1 {
		t.Errorf("Unexpected result %+v", result)
	}
	if len(result.Details) != 1 || result.Details[0].FrameIndex != 2 {
		t.Errorf("Expected frame 2 flagged, got %+v", result.Details)
	}
	if !reflect.DeepEqual(classifier.calls, []int{0, 1, 2, 3}) {
		t.Errorf("Expected frames classified in order, got %v", classifier.calls)
	}
	if classifier.source != "fight.mp4" {
		t.Errorf("Expected source in context, got %q", classifier.source)
	}
}

func TestLocalVideoModerator_NoFrames(t *testing.T) {
	classifier := &scriptedClassifier{failAt: -1}
	m := NewLocalVideoModerator(&fakeExtractor{n: 0}, classifier, log.DefaultLogger)

	if _, err := m.ModerateVideo(context.Background(), "empty.mp4"); !errors.Is(err, ErrNoFrames) {
		t.Errorf("Expected ErrNoFrames, got %v", err)
	}
	if len(classifier.calls) != 0 {
		t.Errorf("Expected no classification, got %v", classifier.calls)
	}
}

func TestLocalVideoModerator_OpenError(t *testing.T) {
	openErr := errors.Join(sampler.ErrOpen, errors.New("missing.mp4"))
	m := NewLocalVideoModerator(&fakeExtractor{err: openErr}, &scriptedClassifier{failAt: -1}, log.DefaultLogger)

	if _, err := m.ModerateVideo(context.Background(), "missing.mp4"); !errors.Is(err, sampler.ErrOpen) {
		t.Errorf("Expected sampler.ErrOpen, got %v", err)
	}
}

func TestLocalVideoModerator_ClassificationAborts(t *testing.T) {
	classifier := &scriptedClassifier{failAt: 1}
	m := NewLocalVideoModerator(&fakeExtractor{n: 5}, classifier, log.DefaultLogger)

	result, err := m.ModerateVideo(context.Background(), "clip.mp4")
	if result != nil {
		t.Errorf("Expected no partial result, got %+v", result)
	}

	var ce *ClassificationError
	if !errors.As(err, &ce) {
		t.Fatalf("Expected ClassificationError, got %v", err)
	}
	if ce.FrameIndex != 1 {
		t.Errorf("Expected failure at frame 1, got %d", ce.FrameIndex)
	}
	if len(classifier.calls) != 2 {
		t.Errorf("Expected classification to stop after the failure, got %v", classifier.calls)
	}
}

// silentClassifier returns neither a verdict nor an error.
type silentClassifier struct{}

func (silentClassifier) Classify(ctx context.Context, frame *sampler.Frame) (*FrameVerdict, error) {
	return nil, nil
}

func TestLocalVideoModerator_NilVerdict(t *testing.T) {
	m := NewLocalVideoModerator(&fakeExtractor{n: 3}, silentClassifier{}, log.DefaultLogger)

	result, err := m.ModerateVideo(context.Background(), "clip.mp4")
	if result != nil {
		t.Errorf("Expected no result, got %+v", result)
	}
	var ce *ClassificationError
	if !errors.As(err, &ce) {
		t.Fatalf("Expected ClassificationError, got %v", err)
	}
	if ce.FrameIndex != 0 || !errors.Is(err, ErrNilVerdict) {
		t.Errorf("Expected nil verdict at frame 0, got %v", err)
	}
}

// fakeDetector flags every image with the given score.
type fakeDetector struct {
	result *nsfw.DetectionResult
	err    error
	calls  int
}

func (d *fakeDetector) Detect(ctx context.Context, imageData []byte) (*nsfw.DetectionResult, error) {
	d.calls++
	if _, err := decodeJPEG(imageData); err != nil {
		return nil, err
	}
	return d.result, d.err
}

func (d *fakeDetector) Ping(ctx context.Context) error { return nil }

// memoryStore is an in-memory FrameStore.
type memoryStore struct {
	frames []*FlaggedFrame
}

func (s *memoryStore) FindBySHA256(ctx context.Context, sha string) (*CachedVerdict, error) {
	for _, f := range s.frames {
		if f.SHA256 == sha {
			return &CachedVerdict{PHash: f.PHash, Reason: f.Reason, Confidence: f.Confidence}, nil
		}
	}
	return nil, nil
}

func (s *memoryStore) FindNearest(ctx context.Context, phash uint64, maxDistance int) (*CachedVerdict, error) {
	for _, f := range s.frames {
		if hash.HammingDistance(f.PHash, phash) <= maxDistance {
			return &CachedVerdict{PHash: f.PHash, Reason: f.Reason, Confidence: f.Confidence}, nil
		}
	}
	return nil, nil
}

func (s *memoryStore) SaveFlagged(ctx context.Context, f *FlaggedFrame) error {
	s.frames = append(s.frames, f)
	return nil
}

func newTestBloom(t *testing.T) *bloom.Filter {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := redis.New("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("redis.New failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return bloom.NewBloomFilter(store, "test:bloom:frame", 1<<16, 5)
}

func TestLocalFrameModerator_Threshold(t *testing.T) {
	tests := []struct {
		name        string
		result      *nsfw.DetectionResult
		wantFlagged bool
		wantConf    float64
		wantReason  string
	}{
		{
			name:        "model says nsfw",
			result:      &nsfw.DetectionResult{IsNSFW: true, NSFWScore: 0.6, NormalScore: 0.4, Label: "nsfw"},
			wantFlagged: true, wantConf: 0.6, wantReason: "nsfw",
		},
		{
			name:        "score over threshold",
			result:      &nsfw.DetectionResult{NSFWScore: 0.75, NormalScore: 0.25, Label: "violence"},
			wantFlagged: true, wantConf: 0.75, wantReason: "violence",
		},
		{
			name:        "missing label",
			result:      &nsfw.DetectionResult{IsNSFW: true, NSFWScore: 0.9},
			wantFlagged: true, wantConf: 0.9, wantReason: "nsfw",
		},
		{
			name:        "safe",
			result:      &nsfw.DetectionResult{NSFWScore: 0.1, NormalScore: 0.9, Label: "normal"},
			wantFlagged: false, wantConf: 0.9,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewLocalFrameModerator(DefaultFrameModeratorConfig(), &fakeDetector{result: tt.result}, nil, nil, log.DefaultLogger)

			v, err := m.Classify(context.Background(), solidFrame(0, 100))
			if err != nil {
				t.Fatalf("Classify failed: %v", err)
			}
			if v.Flagged != tt.wantFlagged || v.Confidence != tt.wantConf || v.Reason != tt.wantReason {
				t.Errorf("Classify = %+v; want flagged=%v conf=%v reason=%q", v, tt.wantFlagged, tt.wantConf, tt.wantReason)
			}
		})
	}
}

func TestLocalFrameModerator_DetectorError(t *testing.T) {
	detErr := errors.New("deadline exceeded")
	m := NewLocalFrameModerator(DefaultFrameModeratorConfig(), &fakeDetector{err: detErr}, nil, nil, log.DefaultLogger)

	if _, err := m.Classify(context.Background(), solidFrame(0, 1)); !errors.Is(err, detErr) {
		t.Errorf("Expected detector error, got %v", err)
	}
}

func TestLocalFrameModerator_CachesFlaggedFrames(t *testing.T) {
	detector := &fakeDetector{result: &nsfw.DetectionResult{IsNSFW: true, NSFWScore: 0.93, Label: "violence"}}
	store := &memoryStore{}
	m := NewLocalFrameModerator(DefaultFrameModeratorConfig(), detector, newTestBloom(t), store, log.DefaultLogger)

	ctx := WithSource(context.Background(), "fight.mp4")
	frame := solidFrame(3, 200)

	first, err := m.Classify(ctx, frame)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if !first.Flagged || detector.calls != 1 {
		t.Fatalf("Expected detector to flag the frame, got %+v after %d calls", first, detector.calls)
	}
	if len(store.frames) != 1 {
		t.Fatalf("Expected flagged frame to be saved, got %d", len(store.frames))
	}
	saved := store.frames[0]
	if saved.Source != "fight.mp4" || saved.SourceIndex != 30 || saved.Reason != "violence" {
		t.Errorf("Unexpected saved frame %+v", saved)
	}

	second, err := m.Classify(ctx, frame)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if detector.calls != 1 {
		t.Errorf("Expected cached verdict without calling detector, got %d calls", detector.calls)
	}
	if !second.Flagged || second.Confidence != 0.93 || second.Reason != "violence" {
		t.Errorf("Expected cached verdict, got %+v", second)
	}
}

func TestLocalFrameModerator_SafeFramesNotCached(t *testing.T) {
	detector := &fakeDetector{result: &nsfw.DetectionResult{NSFWScore: 0.05, NormalScore: 0.95}}
	store := &memoryStore{}
	m := NewLocalFrameModerator(DefaultFrameModeratorConfig(), detector, newTestBloom(t), store, log.DefaultLogger)

	for i := 0; i < 2; i++ {
		if _, err := m.Classify(context.Background(), solidFrame(0, 10)); err != nil {
			t.Fatalf("Classify failed: %v", err)
		}
	}
	if detector.calls != 2 {
		t.Errorf("Expected detector on every safe frame, got %d calls", detector.calls)
	}
	if len(store.frames) != 0 {
		t.Errorf("Expected nothing saved, got %d", len(store.frames))
	}
}

func TestLocalFrameModerator_RebuildBloomFilter(t *testing.T) {
	filter := newTestBloom(t)
	m := NewLocalFrameModerator(DefaultFrameModeratorConfig(), &fakeDetector{}, filter, nil, log.DefaultLogger)
	ctx := context.Background()

	if err := filter.Add(ctx, hash.Uint64Bytes(1)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := m.RebuildBloomFilter(ctx, []uint64{0xABCDEF, 0x123456}); err != nil {
		t.Fatalf("RebuildBloomFilter failed: %v", err)
	}

	for _, v := range []uint64{0xABCDEF, 0x123456} {
		ok, err := filter.Exists(ctx, hash.Uint64Bytes(v))
		if err != nil || !ok {
			t.Errorf("Expected %x in rebuilt filter, got %v, %v", v, ok, err)
		}
	}
	if ok, _ := filter.Exists(ctx, hash.Uint64Bytes(1)); ok {
		t.Error("Expected stale entry to be dropped by rebuild")
	}
}

func TestFrameModeratorConfig_Defaults(t *testing.T) {
	config := DefaultFrameModeratorConfig()

	if config.Threshold != 0.7 {
		t.Errorf("Expected Threshold 0.7, got %f", config.Threshold)
	}
	if config.HashType != hash.PHash {
		t.Errorf("Expected pHash, got %s", config.HashType)
	}
}

func decodeJPEG(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}
