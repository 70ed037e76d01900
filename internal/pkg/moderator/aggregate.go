package moderator

import "errors"

// ErrNoVerdicts is returned by Aggregate for an empty input. Callers are expected to
// reject zero-frame videos before aggregating.
var ErrNoVerdicts = errors.New("cannot aggregate zero frame verdicts")

// Status is the document-level outcome.
type Status string

const (
	StatusSafe   Status = "SAFE"
	StatusUnsafe Status = "UNSAFE"
)

// FrameVerdict is the classifier output for one frame.
type FrameVerdict struct {
	Flagged    bool
	Confidence float64 // 0.0 to 1.0
	Reason     string  // only meaningful when Flagged
}

// FrameDetail is the evidence for one flagged frame.
type FrameDetail struct {
	FrameIndex int     `json:"frame_index"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

// AggregateVerdict summarises the verdicts of every sampled frame of one video.
type AggregateVerdict struct {
	Status           Status        `json:"status"`
	TotalFrames      int           `json:"total_frames"`
	UnsafeFrames     int           `json:"unsafe_frames"`
	UnsafePercentage float64       `json:"unsafe_percentage"`
	Confidence       float64       `json:"confidence"`
	Details          []FrameDetail `json:"details"`
}

// Aggregate reduces per-frame verdicts, in sampling order, to one verdict.
//
// Confidence is 1.0 when nothing is flagged, otherwise the highest confidence among
// flagged frames. Details keeps flagged frames in their original order.
func Aggregate(verdicts []FrameVerdict) (*AggregateVerdict, error) {
	if len(verdicts) == 0 {
		return nil, ErrNoVerdicts
	}

	result := &AggregateVerdict{
		Status:      StatusSafe,
		TotalFrames: len(verdicts),
		Confidence:  1.0,
		Details:     make([]FrameDetail, 0),
	}

	maxConfidence := 0.0
	for i, v := range verdicts {
		if !v.Flagged {
			continue
		}
		result.UnsafeFrames++
		maxConfidence = max(maxConfidence, v.Confidence)
		result.Details = append(result.Details, FrameDetail{
			FrameIndex: i,
			Reason:     v.Reason,
			Confidence: v.Confidence,
		})
	}

	result.UnsafePercentage = float64(result.UnsafeFrames) / float64(result.TotalFrames) * 100
	if result.UnsafeFrames > 0 {
		result.Status = StatusUnsafe
		result.Confidence = maxConfidence
	}
	return result, nil
}
