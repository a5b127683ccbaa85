// Package tree implements an in-memory, single-threaded, ordered multi-way
// search tree: point lookup, insertion, and deletion over a totally ordered
// key domain and an opaque value type, with a configurable fan-out.
//
// A Tree owns exactly one pkg/pool.Pool and, transitively, every
// pkg/node.Node reachable from its root. It is not safe for concurrent
// use; callers needing concurrent access must provide their own external
// synchronization, the same caveat github.com/flier/goutil's pkg/arena
// makes about its own allocators.
package tree

import (
	"errors"
	"fmt"

	"github.com/go-ordtree/ordtree/pkg/node"
	"github.com/go-ordtree/ordtree/pkg/opt"
	"github.com/go-ordtree/ordtree/pkg/pool"
	"github.com/go-ordtree/ordtree/pkg/res"
)

// LessFunc reports whether a orders strictly before b.
type LessFunc[K any] = node.LessFunc[K]

// ErrHeightOverflow is returned by Insert when a root split would push the
// tree past its configured MaxHeight.
var ErrHeightOverflow = errors.New("ordtree: height overflow")

// ErrNodeExhausted is returned by Insert when the underlying node pool has
// reached a configured node budget. It is an alias of pool.ErrNodeExhausted
// so callers can check either name with errors.Is.
var ErrNodeExhausted = pool.ErrNodeExhausted

const (
	defaultMaxDegree = 256
	defaultMaxHeight = 128
)

// Tree is an ordered multi-way search tree keyed by K with opaque values V.
type Tree[K, V any] struct {
	less  LessFunc[K]
	equal func(a, b K) bool

	maxDegree int
	minDegree int
	maxHeight int

	pool *pool.Pool[K, V]
	root *node.Node[K, V]
}

// Option configures a Tree at construction time.
type Option[K, V any] func(*config[K, V])

type config[K, V any] struct {
	equal     func(a, b K) bool
	maxDegree int
	maxHeight int
	maxNodes  int
	chunkSize int
}

// WithMaxDegree overrides the tree's fan-out. Must be even and at least 4;
// New panics otherwise, since this is a construction-time programmer
// error rather than a runtime data condition.
func WithMaxDegree[K, V any](n int) Option[K, V] {
	return func(c *config[K, V]) { c.maxDegree = n }
}

// WithEqual overrides the equality predicate used to detect key matches.
// Defaults to !less(a,b) && !less(b,a).
func WithEqual[K, V any](eq func(a, b K) bool) Option[K, V] {
	return func(c *config[K, V]) { c.equal = eq }
}

// WithMaxHeight overrides the maximum tree height. Insert fails with
// ErrHeightOverflow rather than grow past it.
func WithMaxHeight[K, V any](n int) Option[K, V] {
	return func(c *config[K, V]) { c.maxHeight = n }
}

// WithMaxNodes bounds the number of nodes the tree's pool will allocate
// simultaneously. Insert fails with ErrNodeExhausted once the budget is
// reached. Default 0 means unbounded.
func WithMaxNodes[K, V any](n int) Option[K, V] {
	return func(c *config[K, V]) { c.maxNodes = n }
}

// WithChunkSize overrides the number of nodes bump-allocated per pool
// chunk. Purely a performance tuning knob.
func WithChunkSize[K, V any](n int) Option[K, V] {
	return func(c *config[K, V]) { c.chunkSize = n }
}

// New constructs an empty Tree ordered by less.
func New[K, V any](less LessFunc[K], opts ...Option[K, V]) *Tree[K, V] {
	c := &config[K, V]{
		maxDegree: defaultMaxDegree,
		maxHeight: defaultMaxHeight,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.maxDegree < 4 || c.maxDegree%2 != 0 {
		panic("ordtree: maxDegree must be even and at least 4")
	}

	if c.equal == nil {
		c.equal = func(a, b K) bool { return !less(a, b) && !less(b, a) }
	}

	t := &Tree[K, V]{
		less:      less,
		equal:     c.equal,
		maxDegree: c.maxDegree,
		minDegree: c.maxDegree / 2,
		maxHeight: c.maxHeight,
	}

	var poolOpts []pool.Option[K, V]
	if c.maxNodes > 0 {
		poolOpts = append(poolOpts, pool.WithMaxNodes[K, V](c.maxNodes))
	}
	if c.chunkSize > 0 {
		poolOpts = append(poolOpts, pool.WithChunkSize[K, V](c.chunkSize))
	}

	t.pool = pool.New[K, V](t.maxDegree, poolOpts...)

	// The root always exists, even for an empty tree, and its identity
	// never changes for the lifetime of the Tree.
	t.root = t.pool.Acquire().Unwrap()

	return t
}

// Destroy releases the tree's pool and, with it, every node reachable from
// the root. The tree must not be used afterward.
func (t *Tree[K, V]) Destroy() {
	t.pool.Destroy()
	t.root = nil
}

// Get returns the value stored for key, or opt.None if no such key exists.
func (t *Tree[K, V]) Get(key K) opt.Option[V] {
	n := t.root

	for !n.IsLeaf() {
		n = n.Child(n.Locate(t.less, key))
	}

	if n.Degree == 0 {
		return opt.None[V]()
	}

	i := n.Locate(t.less, key)
	if !t.equal(n.Keys[i], key) {
		return opt.None[V]()
	}

	return opt.Some(n.Value(i))
}

// Insert adds key/value to the tree, or overwrites the value already
// stored for key if present. Failure indicates the insert could not
// complete without exceeding the tree's configured node or height budget;
// on failure the tree is left exactly as it was before the call.
func (t *Tree[K, V]) Insert(key K, value V) res.Result[struct{}] {
	return t.insert(key, value)
}

// Delete removes key from the tree, returning the removed value, or
// opt.None if key was not present.
func (t *Tree[K, V]) Delete(key K) opt.Option[V] {
	return t.delete(key)
}

// assertInvariant panics when cond is false, in every build; unlike
// debug.Assert, it is not gated by the debug build tag, since checkInvariants is meant to do real
// work whenever a caller (typically a test) invokes it directly. Callers
// on the hot mutation path instead gate the call to checkInvariants itself
// behind debug.Enabled, which the compiler prunes entirely in release
// builds.
func assertInvariant(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Errorf("ordtree: invariant violated: "+format, args...))
	}
}

// checkInvariants walks the whole tree from the root and panics if any of
// the structural invariants are violated. It is always fully functional
// (not gated by the debug build tag) so tests can call it directly in
// ordinary builds; internal callers on the mutation path instead guard
// their own call with debug.Enabled.
func (t *Tree[K, V]) checkInvariants() {
	assertInvariant(t.root != nil, "root must never be nil")

	var walk func(n *node.Node[K, V], depth int) (leafDepth int, minKey K, maxKey K, has bool)

	seen := map[*node.Node[K, V]]bool{}

	walk = func(n *node.Node[K, V], depth int) (int, K, K, bool) {
		assertInvariant(!seen[n], "node visited twice: shared or cyclic structure")
		seen[n] = true

		if n != t.root {
			assertInvariant(n.Degree >= t.minDegree, "non-root node underflowed: degree=%d min=%d", n.Degree, t.minDegree)
		}
		assertInvariant(n.Degree <= t.maxDegree, "node overflowed: degree=%d max=%d", n.Degree, t.maxDegree)

		if n.IsLeaf() {
			if n.Degree == 0 {
				var zero K
				return depth, zero, zero, false
			}

			for i := 1; i < n.Degree; i++ {
				assertInvariant(t.less(n.Keys[i-1], n.Keys[i]), "leaf keys must be strictly ascending")
			}

			return depth, n.Keys[0], n.Keys[n.Degree-1], true
		}

		leafDepth := -1
		var firstMin, lastMax K
		haveFirstMin, haveLastMax := false, false

		for i := 0; i < n.Degree; i++ {
			child := n.Child(i)
			cd, cmin, cmax, chas := walk(child, depth+1)

			if leafDepth == -1 {
				leafDepth = cd
			} else {
				assertInvariant(cd == leafDepth, "all leaves must share one depth")
			}

			if i >= 1 && chas {
				assertInvariant(t.equal(n.Keys[i], cmin), "separator key must equal child's minimum key")
			}

			if haveLastMax && chas {
				assertInvariant(t.less(lastMax, cmin), "sibling subtrees must not overlap")
			}

			if chas {
				if !haveFirstMin {
					firstMin = cmin
					haveFirstMin = true
				}
				lastMax = cmax
				haveLastMax = true
			}
		}

		var zero K
		if !haveLastMax {
			return leafDepth, zero, zero, false
		}

		return leafDepth, firstMin, lastMax, true
	}

	walk(t.root, 0)
}
