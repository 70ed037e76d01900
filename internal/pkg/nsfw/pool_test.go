package nsfw

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type countingDetector struct {
	calls   int
	pingErr error
}

func (d *countingDetector) Detect(ctx context.Context, imageData []byte) (*DetectionResult, error) {
	d.calls++
	return &DetectionResult{Label: "normal"}, nil
}

func (d *countingDetector) Ping(ctx context.Context) error {
	return d.pingErr
}

func TestPool_SameImageSameReplica(t *testing.T) {
	a, b, c := &countingDetector{}, &countingDetector{}, &countingDetector{}
	pool := NewPool(map[string]Detector{"a:50051": a, "b:50051": b, "c:50051": c})

	img := []byte("frame-0001")
	for i := 0; i < 10; i++ {
		if _, err := pool.Detect(context.Background(), img); err != nil {
			t.Fatalf("Detect failed: %v", err)
		}
	}

	hit := 0
	for _, d := range []*countingDetector{a, b, c} {
		if d.calls == 10 {
			hit++
		} else if d.calls != 0 {
			t.Errorf("Expected all calls on one replica, got %d", d.calls)
		}
	}
	if hit != 1 {
		t.Errorf("Expected exactly one replica to serve the image, got %d", hit)
	}
}

func TestPool_Empty(t *testing.T) {
	pool := NewPool(nil)

	if _, err := pool.Detect(context.Background(), []byte{1}); !errors.Is(err, ErrEmptyPool) {
		t.Errorf("Expected ErrEmptyPool, got %v", err)
	}
	if err := pool.Ping(context.Background()); !errors.Is(err, ErrEmptyPool) {
		t.Errorf("Expected ErrEmptyPool from Ping, got %v", err)
	}
}

func TestPool_PingJoinsErrors(t *testing.T) {
	down := errors.New("connection refused")
	pool := NewPool(map[string]Detector{
		"a": &countingDetector{},
		"b": &countingDetector{pingErr: down},
	})

	if err := pool.Ping(context.Background()); !errors.Is(err, down) {
		t.Errorf("Expected replica error, got %v", err)
	}
}

func TestPool_PingRoutesAroundDownReplica(t *testing.T) {
	down := errors.New("connection refused")
	a, b := &countingDetector{}, &countingDetector{pingErr: down}
	pool := NewPool(map[string]Detector{"a": a, "b": b})

	if err := pool.Ping(context.Background()); !errors.Is(err, down) {
		t.Fatalf("Expected replica error, got %v", err)
	}
	if pool.Healthy() != 1 {
		t.Errorf("Expected 1 healthy replica, got %d", pool.Healthy())
	}
	for i := 0; i < 50; i++ {
		if _, err := pool.Detect(context.Background(), []byte(fmt.Sprintf("frame-%d", i))); err != nil {
			t.Fatalf("Detect failed: %v", err)
		}
	}
	if b.calls != 0 || a.calls != 50 {
		t.Errorf("Expected all frames on a, got a=%d b=%d", a.calls, b.calls)
	}

	b.pingErr = nil
	if err := pool.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed after recovery: %v", err)
	}
	if pool.Healthy() != 2 {
		t.Errorf("Expected 2 healthy replicas after recovery, got %d", pool.Healthy())
	}
	for i := 0; i < 50; i++ {
		pool.Detect(context.Background(), []byte(fmt.Sprintf("frame-%d", i)))
	}
	if b.calls == 0 {
		t.Error("Expected recovered replica to receive frames again")
	}
}
