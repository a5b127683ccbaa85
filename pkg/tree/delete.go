package tree

import (
	"github.com/go-ordtree/ordtree/internal/debug"
	"github.com/go-ordtree/ordtree/pkg/node"
	"github.com/go-ordtree/ordtree/pkg/opt"
	"github.com/go-ordtree/ordtree/pkg/tuple"
)

func (t *Tree[K, V]) delete(key K) opt.Option[V] {
	stack := make([]frame[K, V], 0, t.maxHeight)

	n := t.root
	for !n.IsLeaf() {
		i := n.Locate(t.less, key)
		stack = append(stack, tuple.New2(n, i))
		n = n.Child(i)
	}

	if n.Degree == 0 {
		return opt.None[V]()
	}

	i := n.Locate(t.less, key)
	if !t.equal(n.Keys[i], key) {
		return opt.None[V]()
	}

	removed := n.Value(i)
	n.RemoveAt(i)

	// Removing a leaf's first key changes the minimum of the subtree that
	// starts at this leaf; refresh the nearest ancestor separator naming it.
	if i == 0 && n.Degree > 0 {
		for j := len(stack) - 1; j >= 0; j-- {
			parent, idx := stack[j].Unpack()
			if idx > 0 {
				parent.Keys[idx] = n.Keys[0]
				break
			}
		}
	}

	t.rebalance(n, stack)
	if debug.Enabled {
		t.checkInvariants()
	}

	return opt.Some(removed)
}

// rebalance restores the minimum-degree invariant starting at current,
// walking back up the parent-stack as needed.
func (t *Tree[K, V]) rebalance(current *node.Node[K, V], stack []frame[K, V]) {
	for current.Degree < t.minDegree {
		if len(stack) == 0 {
			// Root case: underflow is tolerated unless current is an
			// internal node reduced to a single child, in which case the
			// tree shrinks by collapsing that child into the root.
			if current.IsLeaf() || current.Degree >= 2 {
				return
			}

			sole := current.Child(0)
			current.CopyFrom(sole)
			t.pool.Release(sole)

			return
		}

		var parentFrame frame[K, V]
		parentFrame, stack = stack[len(stack)-1], stack[:len(stack)-1]
		parent, idx := parentFrame.Unpack()

		if idx+1 < parent.Degree {
			if t.borrowFromRight(parent, idx, current) {
				return
			}

			t.mergeWithRight(parent, idx, current)
		} else {
			left := parent.Child(idx - 1)

			if t.borrowFromLeft(parent, idx-1, left, current) {
				return
			}

			t.mergeWithRight(parent, idx-1, left)
		}

		current = parent
	}
}

// borrowFromRight moves current's right sibling's first entry into
// current, when that sibling can spare one. Returns true if the borrow
// happened.
func (t *Tree[K, V]) borrowFromRight(parent *node.Node[K, V], idx int, current *node.Node[K, V]) bool {
	sibling := parent.Child(idx + 1)
	if sibling.Degree <= t.minDegree {
		return false
	}

	if current.IsLeaf() {
		// Leaf case: move sibling's first (key, value) onto the end of
		// current, then fix the parent separator to sibling's new
		// minimum key.
		borrowedKey := sibling.Keys[0]
		borrowedVal := sibling.Value(0)

		current.InsertAt(current.Degree, borrowedKey, node.Slot[K, V]{})
		current.SetValue(current.Degree-1, borrowedVal)

		sibling.RemoveAt(0)

		parent.Keys[idx+1] = sibling.Keys[0]

		return true
	}

	// Internal case: the separator key at parent.Keys[idx+1] becomes
	// current's new last key, paired with sibling's first child; sibling's
	// own Keys[0] is don't-care, so the new separator comes from sibling's
	// Keys[1] (read after the shift, since RemoveAt(0) moves it to [0]).
	borrowedChild := sibling.Child(0)
	oldSeparator := parent.Keys[idx+1]

	current.InsertAt(current.Degree, oldSeparator, node.Slot[K, V]{})
	current.SetChild(current.Degree-1, borrowedChild)

	sibling.RemoveAt(0)

	parent.Keys[idx+1] = sibling.Keys[0]

	return true
}

// borrowFromLeft moves left's last entry onto the front of current, when
// left can spare one. idx is left's index in parent (current is at
// idx+1). Returns true if the borrow happened.
func (t *Tree[K, V]) borrowFromLeft(parent *node.Node[K, V], idx int, left, current *node.Node[K, V]) bool {
	if left.Degree <= t.minDegree {
		return false
	}

	if current.IsLeaf() {
		borrowedKey := left.Keys[left.Degree-1]
		borrowedVal := left.Value(left.Degree - 1)

		left.RemoveAt(left.Degree - 1)

		current.InsertAt(0, borrowedKey, node.Slot[K, V]{})
		current.SetValue(0, borrowedVal)

		parent.Keys[idx+1] = current.Keys[0]

		return true
	}

	// Internal case: left's last child moves to current's new front slot.
	// current's own Keys[0] is don't-care (the InsertAt below shifts it to
	// [1] regardless of what we pass), so the real separator for current's
	// old Children[0] (now Children[1]) must be written explicitly to
	// Keys[1] once the shift has made room for it. The new parent
	// separator is left's own separator for the child being moved,
	// captured before left.RemoveAt discards it.
	borrowedChild := left.Child(left.Degree - 1)
	newSeparator := left.Keys[left.Degree-1]
	oldSeparator := parent.Keys[idx+1]

	left.RemoveAt(left.Degree - 1)

	current.InsertAt(0, oldSeparator, node.Slot[K, V]{})
	current.SetChild(0, borrowedChild)
	current.Keys[1] = oldSeparator

	parent.Keys[idx+1] = newSeparator

	return true
}

// mergeWithRight absorbs the sibling immediately to the right of
// parent.Child(idx) into that child, releasing the sibling node and
// removing its separator from parent. Works uniformly for leaves and
// internal nodes: for internal nodes, the separator key carried down
// becomes the sibling's former Keys[0] don't-care slot, which is fine
// since it is never read.
func (t *Tree[K, V]) mergeWithRight(parent *node.Node[K, V], idx int, left *node.Node[K, V]) {
	right := parent.Child(idx + 1)

	for j := 0; j < right.Degree; j++ {
		key := right.Keys[j]
		if j == 0 && !right.IsLeaf() {
			key = parent.Keys[idx+1]
		}

		left.InsertAt(left.Degree, key, node.Slot[K, V]{})
		left.Children[left.Degree-1] = right.Children[j]
	}

	parent.RemoveAt(idx + 1)
	t.pool.Release(right)
}
