// Package tree implements the arena-allocated data tree described in the
// design notes: nodes live in a single slab per Tree and reference each
// other by integer Handle rather than pointer, which keeps list/parent/child
// relationships from requiring weak references or manual cycle breaking.
// Ordered siblings are additionally indexed in a github.com/google/btree
// ordered tree keyed by sequence number, which keeps sibling order and
// supports cheap reordering of user-ordered lists. Lookup of a child by
// name scans the siblings in order.
package tree

import (
	"fmt"

	"github.com/google/btree"
	"github.com/sysrepo-go/sysrepod/schema"
	"github.com/sysrepo-go/sysrepod/srerr"
)

// Handle addresses a node within a Tree's arena. The zero Handle is always
// the root (index 0 is reserved for it).
type Handle int32

// InvalidHandle is returned by lookups that find nothing.
const InvalidHandle Handle = -1

const invalidHandle = InvalidHandle

// Value is the scalar payload a leaf node carries. Exactly one field is
// meaningful, selected by the owning schema node's Type.
type Value struct {
	Str      string
	Bin      []byte
	Bool     bool
	Int      int64
	Uint     uint64
	Mantissa int64 // decimal64
}

type node struct {
	name      string
	schema    *schema.Node
	parent    Handle
	value     Value
	isDefault bool
	seq       int64 // ordering key among siblings
	children  []Handle
	free      bool
}

// childItem is the btree.Item used to keep a container's children ordered
// by sequence number, with the handle breaking ties.
type childItem struct {
	seq    int64
	handle Handle
}

func (a childItem) Less(than btree.Item) bool {
	b := than.(childItem)
	if a.seq != b.seq {
		return a.seq < b.seq
	}
	return a.handle < b.handle
}

// Tree is one module's data tree: an arena of nodes plus, per container
// node, a btree ordering its children.
type Tree struct {
	nodes   []node
	free    []Handle
	order   map[Handle]*btree.BTree // container handle -> ordered children
	root    Handle
	nextSeq int64
}

// New creates an empty tree with a single root container node named after
// the module.
func New(moduleName string) *Tree {
	t := &Tree{order: map[Handle]*btree.BTree{}}
	t.nodes = append(t.nodes, node{name: moduleName, parent: invalidHandle})
	t.root = 0
	t.order[t.root] = btree.New(32)
	return t
}

func (t *Tree) Root() Handle { return t.root }

func (t *Tree) alloc(n node) Handle {
	if len(t.free) > 0 {
		h := t.free[len(t.free)-1]
		t.free = t.free[:len(t.free)-1]
		t.nodes[h] = n
		return h
	}
	t.nodes = append(t.nodes, n)
	return Handle(len(t.nodes) - 1)
}

func (t *Tree) get(h Handle) (*node, *srerr.Error) {
	if h < 0 || int(h) >= len(t.nodes) || t.nodes[h].free {
		return nil, srerr.New(srerr.Internal, "invalid tree handle %d", h)
	}
	return &t.nodes[h], nil
}

// Name returns the node's local name.
func (t *Tree) Name(h Handle) string {
	n, err := t.get(h)
	if err != nil {
		return ""
	}
	return n.name
}

// Value returns a handle's scalar value and default-ness.
func (t *Tree) Value(h Handle) (Value, bool, *srerr.Error) {
	n, err := t.get(h)
	if err != nil {
		return Value{}, false, err
	}
	return n.value, n.isDefault, nil
}

// Children returns the ordered list of a container/list-instance's children.
func (t *Tree) Children(h Handle) ([]Handle, *srerr.Error) {
	if _, err := t.get(h); err != nil {
		return nil, err
	}
	ord, ok := t.order[h]
	if !ok {
		return nil, nil
	}
	out := make([]Handle, 0, ord.Len())
	ord.Ascend(func(it btree.Item) bool {
		out = append(out, it.(childItem).handle)
		return true
	})
	return out, nil
}

// Child finds a direct child of h by name, or invalidHandle if absent.
func (t *Tree) Child(h Handle, name string) (Handle, *srerr.Error) {
	children, err := t.Children(h)
	if err != nil {
		return invalidHandle, err
	}
	for _, c := range children {
		if t.Name(c) == name {
			return c, nil
		}
	}
	return invalidHandle, nil
}

// CreateChild appends a new child node under parent, returning its handle.
// The new node becomes an ordering container in its own right (callers may
// attach further children beneath it, e.g. list instances under a list
// schema node).
func (t *Tree) CreateChild(parent Handle, name string, sch *schema.Node) (Handle, *srerr.Error) {
	if _, err := t.get(parent); err != nil {
		return invalidHandle, err
	}
	t.nextSeq++
	h := t.alloc(node{name: name, schema: sch, parent: parent, seq: t.nextSeq})
	ord, ok := t.order[parent]
	if !ok {
		ord = btree.New(32)
		t.order[parent] = ord
	}
	ord.ReplaceOrInsert(childItem{seq: t.nextSeq, handle: h})
	p, _ := t.get(parent)
	p.children = append(p.children, h)
	t.order[h] = btree.New(32)
	return h, nil
}

// SetValue sets a leaf's scalar value, clearing the default flag.
func (t *Tree) SetValue(h Handle, v Value) *srerr.Error {
	n, err := t.get(h)
	if err != nil {
		return err
	}
	n.value = v
	n.isDefault = false
	return nil
}

// SetDefault marks a leaf as holding its schema default rather than an
// explicitly-set value; the commit path uses this to avoid persisting
// leaves that were never actually set by a client.
func (t *Tree) SetDefault(h Handle, v Value) *srerr.Error {
	n, err := t.get(h)
	if err != nil {
		return err
	}
	n.value = v
	n.isDefault = true
	return nil
}

// Delete removes h and its entire subtree from the tree, unlinking it from
// its parent's ordering and freeing the arena slots for reuse.
func (t *Tree) Delete(h Handle) *srerr.Error {
	n, err := t.get(h)
	if err != nil {
		return err
	}
	for _, c := range append([]Handle(nil), n.children...) {
		_ = t.Delete(c)
	}
	if parent, perr := t.get(n.parent); perr == nil {
		for i, c := range parent.children {
			if c == h {
				parent.children = append(parent.children[:i], parent.children[i+1:]...)
				break
			}
		}
	}
	if ord, ok := t.order[n.parent]; ok {
		ord.Delete(childItem{seq: n.seq, handle: h})
	}
	delete(t.order, h)
	n.free = true
	t.free = append(t.free, h)
	return nil
}

// seqStride is the spacing renumber gives neighbouring siblings, and the
// default gap assumed at either end of an ordering with room to spare.
const seqStride = 1 << 20

// MoveAfter reorders a user-ordered list instance to sit immediately after
// `after` among their common parent's children (after == invalidHandle
// means "move to the front"). The moved node's sequence number is set to
// the midpoint of the gap between its new neighbours. If repeated moves
// into the same spot have collapsed that gap to zero room, every sibling's
// sequence number is evenly respaced first — otherwise the moved node's
// seq would land exactly on a neighbour's and silently evict it from the
// ordering's btree (its key is keyed on seq).
func (t *Tree) MoveAfter(parent, moved, after Handle) *srerr.Error {
	if _, err := t.get(moved); err != nil {
		return err
	}
	ord, ok := t.order[parent]
	if !ok {
		return srerr.New(srerr.Internal, "parent %d has no ordering", parent)
	}

	n, _ := t.get(moved)
	ord.Delete(childItem{seq: n.seq, handle: moved})

	lo, hi, gerr := t.moveGap(ord, after)
	if gerr != nil {
		return gerr
	}
	if hi-lo < 2 {
		t.renumber(ord)
		lo, hi, gerr = t.moveGap(ord, after)
		if gerr != nil {
			return gerr
		}
	}
	n.seq = midpoint(lo, hi)
	ord.ReplaceOrInsert(childItem{seq: n.seq, handle: moved})
	return nil
}

// moveGap returns the open (lo, hi) interval a node inserted after `after`
// (or at the front, if invalidHandle) must fit its sequence number into.
func (t *Tree) moveGap(ord *btree.BTree, after Handle) (lo, hi int64, err *srerr.Error) {
	if after == invalidHandle {
		if ord.Len() == 0 {
			return 0, 2 * seqStride, nil
		}
		hi = minSeq(ord)
		return hi - seqStride, hi, nil
	}
	afterNode, gerr := t.get(after)
	if gerr != nil {
		return 0, 0, gerr
	}
	lo = afterNode.seq
	return lo, nextSeqAfter(ord, lo), nil
}

// renumber evenly respaces every child currently in ord, preserving their
// relative order, so the next insert always has room for a strictly-between
// sequence number.
func (t *Tree) renumber(ord *btree.BTree) {
	var items []childItem
	ord.Ascend(func(it btree.Item) bool {
		items = append(items, it.(childItem))
		return true
	})
	for _, it := range items {
		ord.Delete(it)
	}
	for i, it := range items {
		it.seq = int64(i+1) * seqStride
		ord.ReplaceOrInsert(it)
		if n, gerr := t.get(it.handle); gerr == nil {
			n.seq = it.seq
		}
	}
}

func midpoint(lo, hi int64) int64 {
	if hi-lo < 2 {
		return lo + 1
	}
	return lo + (hi-lo)/2
}

func minSeq(ord *btree.BTree) int64 {
	var m int64
	first := true
	ord.Ascend(func(it btree.Item) bool {
		if first {
			m = it.(childItem).seq
			first = false
		}
		return false
	})
	if first {
		return 0
	}
	return m
}

func nextSeqAfter(ord *btree.BTree, seq int64) int64 {
	found := seq + seqStride
	ord.AscendGreaterOrEqual(childItem{seq: seq + 1}, func(it btree.Item) bool {
		found = it.(childItem).seq
		return false
	})
	return found
}

// Walk visits h and every descendant depth-first, pre-order.
func (t *Tree) Walk(h Handle, visit func(Handle) error) error {
	if err := visit(h); err != nil {
		return err
	}
	children, _ := t.Children(h)
	for _, c := range children {
		if err := t.Walk(c, visit); err != nil {
			return err
		}
	}
	return nil
}

// PathString renders a handle's ancestry as a slash-separated path, for
// error messages and log lines.
func (t *Tree) PathString(h Handle) string {
	var names []string
	for cur := h; cur != invalidHandle; {
		n, err := t.get(cur)
		if err != nil {
			break
		}
		names = append([]string{n.name}, names...)
		cur = n.parent
	}
	s := ""
	for _, n := range names {
		s += "/" + n
	}
	return s
}

func (t *Tree) String() string {
	return fmt.Sprintf("Tree{nodes=%d, free=%d}", len(t.nodes), len(t.free))
}
