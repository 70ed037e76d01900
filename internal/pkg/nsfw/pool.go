package nsfw

import (
	"context"
	"errors"
	"fmt"

	"videomoderation/internal/pkg/hash"
)

// ErrEmptyPool is returned when a Pool has no members.
var ErrEmptyPool = errors.New("nsfw: empty detector pool")

// Detector classifies one encoded image.
type Detector interface {
	Detect(ctx context.Context, imageData []byte) (*DetectionResult, error)
	Ping(ctx context.Context) error
}

// Pool spreads detection over several detector replicas. Identical images always land
// on the same replica, so replica-side caches stay warm. Replicas failing Ping leave the
// ring until a later Ping succeeds.
type Pool struct {
	ring    *hash.Ring
	members map[string]Detector
}

// NewPool builds a Pool from detectors keyed by address.
func NewPool(members map[string]Detector) *Pool {
	p := &Pool{
		ring:    hash.NewRing(hash.WithRingHash(hash.FastHash)),
		members: members,
	}
	for addr := range members {
		p.ring.Add(addr)
	}
	return p
}

// Detect forwards to the replica that owns imageData.
func (p *Pool) Detect(ctx context.Context, imageData []byte) (*DetectionResult, error) {
	d, err := p.pick(imageData)
	if err != nil {
		return nil, err
	}
	return d.Detect(ctx, imageData)
}

// Ping checks every replica and routes around the unhealthy ones.
func (p *Pool) Ping(ctx context.Context) error {
	if len(p.members) == 0 {
		return ErrEmptyPool
	}
	var errs []error
	for addr, d := range p.members {
		if err := d.Ping(ctx); err != nil {
			p.ring.Remove(addr)
			errs = append(errs, fmt.Errorf("%s: %w", addr, err))
			continue
		}
		p.ring.Add(addr)
	}
	return errors.Join(errs...)
}

// Healthy reports how many replicas currently receive traffic.
func (p *Pool) Healthy() int {
	return p.ring.Members()
}

func (p *Pool) pick(imageData []byte) (Detector, error) {
	node, ok := p.ring.Get(hash.FastHash(imageData))
	if !ok {
		return nil, ErrEmptyPool
	}
	return p.members[node], nil
}
