package bloom

import (
	"context"
	_ "embed"
	"errors"
	"time"

	"videomoderation/internal/pkg/hash"
	"videomoderation/internal/pkg/redis"
)

var (
	// ErrTooLargeOffset indicates the offset is too large in bitset.
	ErrTooLargeOffset = errors.New("too large offset")

	//go:embed set_script.lua
	setLuaScript string
	setScript    = redis.NewScript(setLuaScript)

	//go:embed get_script.lua
	getLuaScript string
	getScript    = redis.NewScript(getLuaScript)
)

// Filter is a Bloom filter whose bits live in a Redis string.
type Filter struct {
	bitSet         bitSetProvider
	bits           uint
	kHashFunctions uint
	ttl            time.Duration
}

// Option configures a Filter.
type Option func(*Filter)

// WithTTL refreshes the key's expiry on every Add. Zero keeps the key forever.
func WithTTL(ttl time.Duration) Option {
	return func(f *Filter) {
		f.ttl = ttl
	}
}

// NewBloomFilter creates a new Bloom filter with the given parameters.
func NewBloomFilter(store redis.Cache, key string, bits uint, kHashFunctions uint, opts ...Option) *Filter {
	f := &Filter{
		bits:           bits,
		bitSet:         newRedisBitSet(store, key, bits),
		kHashFunctions: kHashFunctions,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// getLocations computes the bit locations for the given data.
func (f *Filter) getLocations(data []byte) []uint {
	locations := make([]uint, f.kHashFunctions)
	buf := make([]byte, len(data)+1)
	copy(buf, data)
	for i := uint(0); i < f.kHashFunctions; i++ {
		buf[len(data)] = byte(i)
		hashVal := hash.Hash(buf)
		locations[i] = uint(hashVal % uint64(f.bits))
	}
	return locations
}

// Add adds the given data to the Bloom filter.
func (f *Filter) Add(ctx context.Context, data []byte) error {
	if err := f.bitSet.set(ctx, f.getLocations(data)); err != nil {
		return err
	}
	if f.ttl > 0 {
		if _, err := f.bitSet.expire(ctx, f.ttl); err != nil {
			return err
		}
	}
	return nil
}

// Exists checks if the given data may exist in the Bloom filter.
func (f *Filter) Exists(ctx context.Context, data []byte) (bool, error) {
	return f.bitSet.check(ctx, f.getLocations(data))
}

// Initialized reports whether anything has ever been added (and not expired or reset).
func (f *Filter) Initialized(ctx context.Context) (bool, error) {
	return f.bitSet.exists(ctx)
}

// Reset clears every bit.
func (f *Filter) Reset(ctx context.Context) error {
	return f.bitSet.del(ctx)
}
