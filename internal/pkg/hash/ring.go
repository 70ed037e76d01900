package hash

import (
	"sort"
	"strconv"
	"sync"
)

const defaultVirtualNodes = 100

// Ring places members on a hash ring so that adding or removing a member only
// moves the keys that hashed next to it.
type Ring struct {
	mu       sync.RWMutex
	hashFunc func([]byte) uint64
	vnodes   int
	points   []uint64
	owners   map[uint64]string
	members  map[string]struct{}
}

// RingOption configures a Ring.
type RingOption func(*Ring)

// WithVirtualNodes sets how many points each member takes on the ring.
func WithVirtualNodes(n int) RingOption {
	return func(r *Ring) {
		if n > 0 {
			r.vnodes = n
		}
	}
}

// WithRingHash replaces the murmur3 point hash.
func WithRingHash(fn func([]byte) uint64) RingOption {
	return func(r *Ring) {
		r.hashFunc = fn
	}
}

// NewRing creates an empty ring.
func NewRing(opts ...RingOption) *Ring {
	r := &Ring{
		hashFunc: Hash,
		vnodes:   defaultVirtualNodes,
		owners:   make(map[uint64]string),
		members:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add puts member on the ring. Adding a present member is a no-op.
func (r *Ring) Add(member string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[member]; ok {
		return
	}
	r.members[member] = struct{}{}
	for i := 0; i < r.vnodes; i++ {
		p := r.point(member, i)
		if _, taken := r.owners[p]; taken {
			continue
		}
		r.owners[p] = member
		r.points = append(r.points, p)
	}
	sort.Slice(r.points, func(i, j int) bool { return r.points[i] < r.points[j] })
}

// Remove takes member off the ring.
func (r *Ring) Remove(member string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[member]; !ok {
		return
	}
	delete(r.members, member)
	kept := r.points[:0]
	for _, p := range r.points {
		if r.owners[p] == member {
			delete(r.owners, p)
			continue
		}
		kept = append(kept, p)
	}
	r.points = kept
}

// Get returns the member owning key, or false on an empty ring.
func (r *Ring) Get(key uint64) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.points) == 0 {
		return "", false
	}
	i := sort.Search(len(r.points), func(i int) bool { return r.points[i] >= key })
	if i == len(r.points) {
		i = 0
	}
	return r.owners[r.points[i]], true
}

// Members reports how many members are on the ring.
func (r *Ring) Members() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

func (r *Ring) point(member string, i int) uint64 {
	return r.hashFunc([]byte(member + "#" + strconv.Itoa(i)))
}
