package bloom

import (
	"context"
	"time"
)

type bitSetProvider interface {
	check(ctx context.Context, offsets []uint) (bool, error)
	set(ctx context.Context, offsets []uint) error
	del(ctx context.Context) error
	exists(ctx context.Context) (bool, error)
	expire(ctx context.Context, ttl time.Duration) (bool, error)
}
