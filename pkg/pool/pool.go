// Package pool provides a single-shape node allocator for an ordered
// multi-way search tree: a chunked bump allocator backed by a freelist of
// released nodes, grounded on the bump-plus-freelist design of
// github.com/flier/goutil's pkg/arena, simplified to one size class and
// made type-safe (no raw byte arenas, no unsafe casts) since the tree's
// value type may itself hold pointers the GC must track.
package pool

import (
	"errors"

	"github.com/go-ordtree/ordtree/internal/debug"
	"github.com/go-ordtree/ordtree/pkg/node"
	"github.com/go-ordtree/ordtree/pkg/res"
)

// ErrNodeExhausted is returned by Acquire when the pool was constructed
// with a finite node budget (WithMaxNodes) that has been reached.
var ErrNodeExhausted = errors.New("ordtree: node pool exhausted")

const defaultChunkSize = 64

// Pool is a single-owner allocator for *node.Node[K, V] values, all of
// uniform shape (Keys/Children pre-sized to maxDegree). It is not safe for
// concurrent use; a Pool is meant to be owned by exactly one Tree.
type Pool[K, V any] struct {
	maxDegree int
	chunkSize int
	maxNodes  int // 0 means unbounded
	allocated int

	chunk    []node.Node[K, V]
	chunkPos int

	free []*node.Node[K, V]
}

// Option configures a Pool at construction time.
type Option[K, V any] func(*Pool[K, V])

// WithChunkSize overrides the number of nodes bump-allocated per chunk.
func WithChunkSize[K, V any](n int) Option[K, V] {
	return func(p *Pool[K, V]) {
		if n > 0 {
			p.chunkSize = n
		}
	}
}

// WithMaxNodes bounds the total number of nodes this pool will ever hand
// out simultaneously. Acquire fails with ErrNodeExhausted once the budget
// is reached. A value of 0 (the default) means unbounded.
func WithMaxNodes[K, V any](n int) Option[K, V] {
	return func(p *Pool[K, V]) { p.maxNodes = n }
}

// New creates a Pool producing nodes with Keys/Children capacity
// maxDegree.
func New[K, V any](maxDegree int, opts ...Option[K, V]) *Pool[K, V] {
	p := &Pool[K, V]{
		maxDegree: maxDegree,
		chunkSize: defaultChunkSize,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Len reports how many nodes are currently acquired (not released) from
// this pool.
func (p *Pool[K, V]) Len() int { return p.allocated }

// Remaining reports how many more nodes this pool can hand out before
// ErrNodeExhausted, and whether it is bounded at all (WithMaxNodes). When
// unbounded, it returns (0, false).
func (p *Pool[K, V]) Remaining() (int, bool) {
	if p.maxNodes <= 0 {
		return 0, false
	}

	return p.maxNodes - p.allocated, true
}

// Acquire returns a node with Degree == 0, Height == 0, ready for use in
// any role. It is satisfied first from the freelist, then by bump
// allocation from the current chunk, growing a new chunk as needed.
func (p *Pool[K, V]) Acquire() res.Result[*node.Node[K, V]] {
	if p.maxNodes > 0 && p.allocated >= p.maxNodes {
		return res.Err[*node.Node[K, V]](ErrNodeExhausted)
	}

	var n *node.Node[K, V]

	if l := len(p.free); l > 0 {
		n = p.free[l-1]
		p.free = p.free[:l-1]
		n.Reset()
	} else {
		if p.chunk == nil || p.chunkPos >= len(p.chunk) {
			p.growChunk()
		}

		n = &p.chunk[p.chunkPos]
		*n = node.Node[K, V]{
			Keys:     make([]K, p.maxDegree),
			Children: make([]node.Slot[K, V], p.maxDegree),
		}
		p.chunkPos++
	}

	p.allocated++

	debug.Log(nil, "acquire", "%p degree=%d height=%d", n, n.Degree, n.Height)

	return res.Ok(n)
}

// Release returns a node to the freelist so it can be reused by a future
// Acquire. The node's contents are cleared lazily, on the next Acquire
// that reuses it.
func (p *Pool[K, V]) Release(n *node.Node[K, V]) {
	if n == nil {
		return
	}

	p.free = append(p.free, n)
	p.allocated--

	debug.Log(nil, "release", "%p", n)
}

// Destroy drops every chunk and the freelist in one shot. Nodes previously
// handed out by this pool must not be used afterward.
func (p *Pool[K, V]) Destroy() {
	p.chunk = nil
	p.chunkPos = 0
	p.free = nil
	p.allocated = 0
}

func (p *Pool[K, V]) growChunk() {
	p.chunk = make([]node.Node[K, V], p.chunkSize)
	p.chunkPos = 0

	debug.Log(nil, "grow", "chunk=%d", p.chunkSize)
}
