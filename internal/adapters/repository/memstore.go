package repository

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/okian/sensorboard/internal/domain/model"
	"github.com/okian/sensorboard/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// Ordering: timestamp ASC, then id ASC. In-order traversal yields readings
// oldest first. Each node tracks its subtree size so range counts without a
// mode filter run in O(log n).

type node struct {
	r     model.Reading
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

// insert places r by (timestamp, id). Priorities are random so mostly
// increasing timestamps do not degrade the tree into a list.
func insert(n *node, r model.Reading, prio uint64) *node {
	if n == nil {
		return &node{r: r, prio: prio, size: 1}
	}
	if r.Before(n.r) {
		n.left = insert(n.left, r, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, r, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

// countBelow returns how many readings have a timestamp before t
// (or at t when inclusive).
func countBelow(n *node, t time.Time, inclusive bool) int {
	c := 0
	for n != nil {
		ts := n.r.Timestamp
		if ts.Before(t) || (inclusive && ts.Equal(t)) {
			c += nsize(n.left) + 1
			n = n.right
		} else {
			n = n.left
		}
	}
	return c
}

// bounds wraps a Filter's time predicates for subtree pruning.
type bounds struct{ f Filter }

func (b bounds) beforeFrom(ts time.Time) bool {
	return !b.f.From.IsZero() && ts.Before(b.f.From)
}

func (b bounds) afterTo(ts time.Time) bool {
	if b.f.To.IsZero() {
		return false
	}
	if b.f.ToExclusive {
		return !ts.Before(b.f.To)
	}
	return ts.After(b.f.To)
}

func (b bounds) modeMatches(r model.Reading) bool {
	if b.f.Mode == nil {
		return true
	}
	return r.Mode != nil && *r.Mode == *b.f.Mode
}

// ascend visits matching readings oldest first until visit returns false.
func ascend(n *node, b bounds, visit func(model.Reading) bool) bool {
	if n == nil {
		return true
	}
	if b.beforeFrom(n.r.Timestamp) {
		return ascend(n.right, b, visit)
	}
	if b.afterTo(n.r.Timestamp) {
		return ascend(n.left, b, visit)
	}
	if !ascend(n.left, b, visit) {
		return false
	}
	if b.modeMatches(n.r) && !visit(n.r) {
		return false
	}
	return ascend(n.right, b, visit)
}

// descend visits matching readings newest first until visit returns false.
func descend(n *node, b bounds, visit func(model.Reading) bool) bool {
	if n == nil {
		return true
	}
	if b.beforeFrom(n.r.Timestamp) {
		return descend(n.right, b, visit)
	}
	if b.afterTo(n.r.Timestamp) {
		return descend(n.left, b, visit)
	}
	if !descend(n.right, b, visit) {
		return false
	}
	if b.modeMatches(n.r) && !visit(n.r) {
		return false
	}
	return descend(n.left, b, visit)
}

// MemoryStore keeps readings in a treap guarded by a RWMutex.
// Reads run concurrently; appends are exclusive.
type MemoryStore struct {
	mu     sync.RWMutex
	root   *node
	nextID int64
	closed bool
	opts   options
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{opts: applyOptions(opts)}
}

// Append implements Store.Append in O(log n) expected time.
func (s *MemoryStore) Append(ctx context.Context, r model.Reading) (model.Reading, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryAppendLatency(DriverMemory, float64(time.Since(start).Microseconds())/1000)
	}()

	if err := r.Validate(); err != nil {
		return model.Reading{}, err
	}
	if err := ctx.Err(); err != nil {
		return model.Reading{}, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return model.Reading{}, ErrClosed
	}
	s.nextID++
	r.ID = s.nextID
	if r.Timestamp.IsZero() {
		r.Timestamp = s.opts.now()
	}
	r.Timestamp = r.Timestamp.UTC()
	if r.Mode != nil {
		r.Mode = r.Mode.Ptr()
	}
	s.root = insert(s.root, r, rand.Uint64())
	total := nsize(s.root)
	s.mu.Unlock()

	metrics.UpdateRepositoryRecordsTotal(total)
	return r, nil
}

// List implements Store.List.
func (s *MemoryStore) List(ctx context.Context, f Filter) ([]model.Reading, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(DriverMemory, float64(time.Since(start).Microseconds())/1000)
	}()

	if f.Offset < 0 {
		metrics.RecordErrorByComponent("repository", "invalid_filter")
		return nil, ErrInvalidFilter
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	out := make([]model.Reading, 0)
	skip := f.Offset
	visit := func(r model.Reading) bool {
		if skip > 0 {
			skip--
			return true
		}
		out = append(out, r)
		return f.Limit <= 0 || len(out) < f.Limit
	}
	b := bounds{f: f}
	if f.Desc {
		descend(s.root, b, visit)
	} else {
		ascend(s.root, b, visit)
	}
	return out, nil
}

// Count implements Store.Count.
func (s *MemoryStore) Count(ctx context.Context, f Filter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}

	if f.Mode != nil {
		n := 0
		ascend(s.root, bounds{f: f}, func(model.Reading) bool {
			n++
			return true
		})
		return n, nil
	}

	hi := nsize(s.root)
	if !f.To.IsZero() {
		hi = countBelow(s.root, f.To, !f.ToExclusive)
	}
	lo := 0
	if !f.From.IsZero() {
		lo = countBelow(s.root, f.From, false)
	}
	if hi < lo {
		return 0, nil
	}
	return hi - lo, nil
}

// Latest implements Store.Latest.
func (s *MemoryStore) Latest(ctx context.Context) (model.Reading, error) {
	if err := ctx.Err(); err != nil {
		return model.Reading{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.Reading{}, ErrClosed
	}
	n := s.root
	if n == nil {
		return model.Reading{}, ErrNotFound
	}
	for n.right != nil {
		n = n.right
	}
	return n.r, nil
}

// Ping reports whether the store is open.
func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return ctx.Err()
}

// Close releases the tree. Further calls fail with ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.root = nil
	return nil
}
