// Package datastore implements the Data Manager: the startup/running/
// candidate datastore set, per-session overlays, operation-log replay, and
// the two-phase commit protocol from the specification.
package datastore

import (
	"strings"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/sysrepo-go/sysrepod/lockmgr"
	"github.com/sysrepo-go/sysrepod/persist"
	"github.com/sysrepo-go/sysrepod/schema"
	"github.com/sysrepo-go/sysrepod/srerr"
	"github.com/sysrepo-go/sysrepod/srlog"
	"github.com/sysrepo-go/sysrepod/tree"
)

var log = srlog.Get("datastore")

// Kind identifies which of the three datastores an operation targets.
type Kind int

const (
	Running Kind = iota
	Candidate
	Startup
)

func (k Kind) String() string {
	switch k {
	case Running:
		return "running"
	case Candidate:
		return "candidate"
	case Startup:
		return "startup"
	default:
		return "?"
	}
}

// EditFlags mirrors the teacher's Feature-bitmask idiom (lib/db.Feature),
// generalised to the edit-time flags spec.md names.
type EditFlags uint8

const (
	FlagDefault EditFlags = 0
	FlagStrict  EditFlags = 1 << (iota - 1)
	FlagNonRecursive
)

// Direction is the move_list reorder direction for a user-ordered list
// instance.
type Direction uint8

const (
	DirUp Direction = iota
	DirDown
	DirFirst
	DirLast
)

// opKind enumerates the operations recorded in a session's operation log.
type opKind int

const (
	opSet opKind = iota
	opDelete
	opMove
)

// OpEntry is one recorded edit, replayed in order against a freshly-read
// base tree during refresh and commit.
type OpEntry struct {
	Kind      opKind
	Path      string
	Value     tree.Value
	Flags     EditFlags
	Direction Direction // for opMove
}

// moduleState holds one module's live running and candidate trees. startup
// is not kept resident; it is read from / written to the persistence store
// directly.
type moduleState struct {
	mu        sync.RWMutex
	schemaMod *schema.Module
	running   *tree.Tree
	candidate *tree.Tree
}

// Manager is the top-level Data Manager. One Manager instance exists per
// engine and is shared by every session.
type Manager struct {
	schemaCtx   *schema.Context
	store       *persist.Store
	locks       *lockmgr.Manager
	commitGuard sync.Mutex
	modules     *xsync.MapOf[string, *moduleState]
}

func NewManager(schemaCtx *schema.Context, store *persist.Store, locks *lockmgr.Manager) *Manager {
	return &Manager{
		schemaCtx: schemaCtx,
		store:     store,
		locks:     locks,
		modules:   xsync.NewMapOf[string, *moduleState](),
	}
}

// LoadModule reads module's startup datastore from disk (if present),
// replays its operation log onto a fresh schema-shaped tree, and makes the
// result the module's initial running tree. Candidate starts out identical
// to running, per spec.md §3's "seeded from running".
func (m *Manager) LoadModule(name string) *srerr.Error {
	sm, err := m.schemaCtx.Module(name)
	if err != nil {
		return err
	}
	records, rerr := m.store.ReadRecords(name, persist.Startup)
	if rerr != nil {
		return rerr
	}
	ops, rerr := decodeOps(records)
	if rerr != nil {
		return rerr
	}
	base := tree.New(name)
	if err := replay(base, ops); err != nil {
		return err
	}
	cand := tree.New(name)
	if err := replay(cand, ops); err != nil {
		return err
	}
	m.modules.Store(name, &moduleState{schemaMod: sm, running: base, candidate: cand})
	return nil
}

func (m *Manager) state(name string) (*moduleState, *srerr.Error) {
	st, ok := m.modules.Load(name)
	if !ok {
		return nil, srerr.New(srerr.UnknownModel, "module %q not loaded", name)
	}
	return st, nil
}

func (m *Manager) treeFor(st *moduleState, ds Kind) *tree.Tree {
	switch ds {
	case Candidate:
		return st.candidate
	default:
		return st.running
	}
}

// Session is the datastore-facing half of a client session: which
// datastore it targets and its accumulated per-module operation logs,
// applied only at Commit.
type Session struct {
	mu      sync.Mutex
	Target  Kind
	pending map[string][]OpEntry
	errors  []*srerr.Error
	iters   map[string]*iterator
}

func NewSession(target Kind) *Session {
	return &Session{Target: target, pending: map[string][]OpEntry{}, iters: map[string]*iterator{}}
}

func (s *Session) recordError(err *srerr.Error) *srerr.Error {
	if err != nil {
		s.mu.Lock()
		s.errors = append([]*srerr.Error{err}, s.errors...)
		s.mu.Unlock()
	}
	return err
}

// LastErrors returns the session's error history, most recent first.
func (s *Session) LastErrors() []*srerr.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*srerr.Error, len(s.errors))
	copy(out, s.errors)
	return out
}

// SetItem stages a set edit. It validates the path against the schema
// immediately (BAD_ELEMENT / UNKNOWN_MODEL surface here) but only applies
// it to the session's view, not the shared tree, until Commit.
func (m *Manager) SetItem(sess *Session, path string, v tree.Value, flags EditFlags) *srerr.Error {
	modName, segs, err := schema.ParsePath(path)
	if err != nil {
		return sess.recordError(err)
	}
	st, err := m.state(modName)
	if err != nil {
		return sess.recordError(err)
	}
	if _, err := st.schemaMod.Resolve(segs); err != nil {
		return sess.recordError(err)
	}
	sess.mu.Lock()
	sess.pending[modName] = append(sess.pending[modName], OpEntry{Kind: opSet, Path: path, Value: v, Flags: flags})
	sess.mu.Unlock()
	return nil
}

// DeleteItem stages a delete edit.
func (m *Manager) DeleteItem(sess *Session, path string, flags EditFlags) *srerr.Error {
	modName, segs, err := schema.ParsePath(path)
	if err != nil {
		return sess.recordError(err)
	}
	st, err := m.state(modName)
	if err != nil {
		return sess.recordError(err)
	}
	if _, err := st.schemaMod.Resolve(segs); err != nil {
		return sess.recordError(err)
	}
	sess.mu.Lock()
	sess.pending[modName] = append(sess.pending[modName], OpEntry{Kind: opDelete, Path: path, Flags: flags})
	sess.mu.Unlock()
	return nil
}

// MoveList stages a reorder of a user-ordered list instance. The target
// list's schema node must declare itself user-ordered; reordering a
// system-ordered (keyed, implicitly sorted) list is a client error.
func (m *Manager) MoveList(sess *Session, path string, dir Direction) *srerr.Error {
	modName, segs, err := schema.ParsePath(path)
	if err != nil {
		return sess.recordError(err)
	}
	st, err := m.state(modName)
	if err != nil {
		return sess.recordError(err)
	}
	node, err := st.schemaMod.Resolve(segs)
	if err != nil {
		return sess.recordError(err)
	}
	if node.Kind != schema.KindList || !node.UserOrdered {
		return sess.recordError(srerr.NewPath(srerr.InvalArg, path, "move_list target is not a user-ordered list"))
	}
	sess.mu.Lock()
	sess.pending[modName] = append(sess.pending[modName], OpEntry{Kind: opMove, Path: path, Direction: dir})
	sess.mu.Unlock()
	return nil
}

// DiscardChanges drops every pending edit a session has accumulated without
// committing them, matching "candidate discarded back to running" / session
// abort semantics.
func (s *Session) DiscardChanges() {
	s.mu.Lock()
	s.pending = map[string][]OpEntry{}
	s.mu.Unlock()
}

// Validate replays a session's pending edits for module onto a scratch copy
// of the target tree and runs schema validation, without mutating shared
// state, surfacing VALIDATION_FAILED / DATA_MISSING early.
func (m *Manager) Validate(sess *Session, module string) *srerr.Error {
	st, err := m.state(module)
	if err != nil {
		return sess.recordError(err)
	}
	st.mu.RLock()
	base := m.treeFor(st, sess.Target)
	scratch, cerr := cloneLinear(base, st.schemaMod.Name)
	st.mu.RUnlock()
	if cerr != nil {
		return sess.recordError(cerr)
	}

	sess.mu.Lock()
	ops := append([]OpEntry(nil), sess.pending[module]...)
	sess.mu.Unlock()

	if err := replay(scratch, ops); err != nil {
		return sess.recordError(err)
	}
	if err := validateTree(scratch, st.schemaMod); err != nil {
		return sess.recordError(err)
	}
	return nil
}

// cloneLinear rebuilds base's content into a fresh tree; the arena design
// makes a literal struct copy unsafe to share, so validation works from a
// scratch tree seeded with the overlay's current content instead of
// mutating the live one directly.
func cloneLinear(base *tree.Tree, moduleName string) (*tree.Tree, *srerr.Error) {
	cloned := tree.New(moduleName)
	if err := copyTree(base, base.Root(), cloned, cloned.Root()); err != nil {
		return nil, err
	}
	return cloned, nil
}

func replay(t *tree.Tree, ops []OpEntry) *srerr.Error {
	for _, op := range ops {
		switch op.Kind {
		case opSet:
			if err := applySet(t, op.Path, op.Value, op.Flags); err != nil {
				return err
			}
		case opDelete:
			if err := applyDelete(t, op.Path, op.Flags); err != nil {
				return err
			}
		case opMove:
			if err := applyMove(t, op.Path, op.Direction); err != nil {
				return err
			}
		}
	}
	return nil
}

// applySet walks/creates intermediate containers along path and sets the
// terminal leaf's value. FlagStrict rejects a set whose terminal node
// already exists; FlagNonRecursive rejects auto-creating a missing
// ancestor container instead of the usual implicit create.
func applySet(t *tree.Tree, path string, v tree.Value, flags EditFlags) *srerr.Error {
	_, segs, err := schema.ParsePath(path)
	if err != nil {
		return err
	}
	cur := t.Root()
	for i, seg := range segs {
		name := segmentKey(seg)
		last := i == len(segs)-1
		child, cerr := t.Child(cur, name)
		if cerr != nil {
			return cerr
		}
		if child == tree.InvalidHandle {
			if !last && flags&FlagNonRecursive != 0 {
				return srerr.NewPath(srerr.DataMissing, path, "non-recursive set: ancestor %q does not exist", name)
			}
			child, cerr = t.CreateChild(cur, name, nil)
			if cerr != nil {
				return cerr
			}
		} else if last && flags&FlagStrict != 0 {
			return srerr.NewPath(srerr.DataExists, path, "strict set: node already exists")
		}
		cur = child
		if last {
			return t.SetValue(cur, v)
		}
	}
	return nil
}

// applyDelete removes the node at path. Without FlagStrict, deleting a node
// that doesn't exist is a no-op; with it, the node must exist.
func applyDelete(t *tree.Tree, path string, flags EditFlags) *srerr.Error {
	_, segs, err := schema.ParsePath(path)
	if err != nil {
		return err
	}
	cur := t.Root()
	for _, seg := range segs {
		name := segmentKey(seg)
		child, cerr := t.Child(cur, name)
		if cerr != nil {
			return cerr
		}
		if child == tree.InvalidHandle {
			if flags&FlagStrict != 0 {
				return srerr.NewPath(srerr.DataMissing, path, "node does not exist")
			}
			return nil
		}
		cur = child
	}
	return t.Delete(cur)
}

// applyMove reorders a user-ordered list instance relative to its siblings.
// UP/DOWN swap with the adjacent sibling (a no-op at either end); FIRST/LAST
// move the instance to either extreme.
func applyMove(t *tree.Tree, path string, dir Direction) *srerr.Error {
	_, segs, err := schema.ParsePath(path)
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		return srerr.NewPath(srerr.InvalArg, path, "empty path for move")
	}
	parent := t.Root()
	for _, seg := range segs[:len(segs)-1] {
		child, cerr := t.Child(parent, segmentKey(seg))
		if cerr != nil {
			return cerr
		}
		if child == tree.InvalidHandle {
			return srerr.NewPath(srerr.DataMissing, path, "parent does not exist")
		}
		parent = child
	}
	moved, cerr := t.Child(parent, segmentKey(segs[len(segs)-1]))
	if cerr != nil {
		return cerr
	}
	if moved == tree.InvalidHandle {
		return srerr.NewPath(srerr.DataMissing, path, "list instance does not exist")
	}

	siblings, serr := t.Children(parent)
	if serr != nil {
		return serr
	}
	idx := -1
	for i, h := range siblings {
		if h == moved {
			idx = i
			break
		}
	}
	if idx < 0 {
		return srerr.New(srerr.Internal, "moved node missing from its own parent's children")
	}

	var after tree.Handle
	switch dir {
	case DirFirst:
		after = tree.InvalidHandle
	case DirLast:
		after = tree.InvalidHandle
		for _, h := range siblings {
			if h != moved {
				after = h
			}
		}
	case DirUp:
		if idx == 0 {
			return nil
		}
		if idx == 1 {
			after = tree.InvalidHandle
		} else {
			after = siblings[idx-2]
		}
	case DirDown:
		if idx == len(siblings)-1 {
			return nil
		}
		after = siblings[idx+1]
	default:
		return srerr.NewPath(srerr.InvalArg, path, "unknown move direction")
	}
	return t.MoveAfter(parent, moved, after)
}

func segmentKey(seg schema.Segment) string {
	if len(seg.Keys) == 0 {
		return seg.Name
	}
	key := seg.Name
	for k, v := range seg.Keys {
		key += "[" + k + "=" + v + "]"
	}
	return key
}

// treeCursor adapts a *tree.Tree position to schema.Cursor, letting
// CheckMandatory recurse through containers and list instances without the
// schema package depending on package tree.
type treeCursor struct {
	t *tree.Tree
	h tree.Handle
}

func (c treeCursor) Child(name string) (schema.Cursor, bool) {
	h, err := c.t.Child(c.h, name)
	if err != nil || h == tree.InvalidHandle {
		return nil, false
	}
	return treeCursor{t: c.t, h: h}, true
}

// ListInstances finds every child whose tree name is the bare list name
// (unkeyed) or starts with "name[" (segmentKey's keyed encoding).
func (c treeCursor) ListInstances(name string) []schema.Cursor {
	children, err := c.t.Children(c.h)
	if err != nil {
		return nil
	}
	var out []schema.Cursor
	for _, ch := range children {
		n := c.t.Name(ch)
		if n == name || strings.HasPrefix(n, name+"[") {
			out = append(out, treeCursor{t: c.t, h: ch})
		}
	}
	return out
}

func validateTree(t *tree.Tree, mod *schema.Module) *srerr.Error {
	rev := mod.LatestRevision()
	if rev == nil {
		return srerr.New(srerr.Internal, "module %q has no revisions", mod.Name)
	}
	root := treeCursor{t: t, h: t.Root()}
	cur, ok := root.Child(rev.Root.Name)
	if !ok {
		if rev.Root.Mandatory {
			return srerr.NewPath(srerr.ValidationFailed, rev.Root.Name, "mandatory node %q missing", rev.Root.Name)
		}
		return nil
	}
	return schema.CheckMandatory(rev.Root, cur)
}

// GetDataTree returns the live tree for module at the given datastore kind.
// Callers must not mutate the tree directly; use the session edit methods.
// Returns NOT_FOUND if the datastore holds no data yet.
func (m *Manager) GetDataTree(module string, ds Kind) (*tree.Tree, *srerr.Error) {
	st, err := m.state(module)
	if err != nil {
		return nil, err
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	t := m.treeFor(st, ds)
	children, cerr := t.Children(t.Root())
	if cerr != nil {
		return nil, cerr
	}
	if len(children) == 0 {
		return nil, srerr.New(srerr.NotFound, "module %q datastore %s is empty", module, ds)
	}
	return t, nil
}

// GetItem resolves path against sess's target datastore, with the session's
// pending edits for that module applied on a scratch copy, and returns its
// value along with the schema node describing its scalar type.
func (m *Manager) GetItem(sess *Session, path string) (tree.Value, *schema.Node, *srerr.Error) {
	modName, segs, err := schema.ParsePath(path)
	if err != nil {
		return tree.Value{}, nil, sess.recordError(err)
	}
	st, err := m.state(modName)
	if err != nil {
		return tree.Value{}, nil, sess.recordError(err)
	}
	node, err := st.schemaMod.Resolve(segs)
	if err != nil {
		return tree.Value{}, nil, sess.recordError(err)
	}
	sess.mu.Lock()
	ops := append([]OpEntry(nil), sess.pending[modName]...)
	sess.mu.Unlock()

	st.mu.RLock()
	t := m.treeFor(st, sess.Target)
	if len(ops) > 0 {
		view, cerr := cloneLinear(t, modName)
		if cerr == nil {
			cerr = replay(view, ops)
		}
		if cerr != nil {
			st.mu.RUnlock()
			return tree.Value{}, nil, sess.recordError(cerr)
		}
		t = view
	}
	st.mu.RUnlock()

	cur := t.Root()
	for _, seg := range segs {
		child, cerr := t.Child(cur, segmentKey(seg))
		if cerr != nil {
			return tree.Value{}, nil, sess.recordError(cerr)
		}
		if child == tree.InvalidHandle {
			return tree.Value{}, nil, sess.recordError(srerr.NewPath(srerr.DataMissing, path, "node does not exist"))
		}
		cur = child
	}
	v, _, verr := t.Value(cur)
	if verr != nil {
		return tree.Value{}, nil, sess.recordError(verr)
	}
	return v, node, nil
}

// GetItems resolves path to a subtree and returns the paths + values of
// every descendant leaf beneath it, in tree order.
func (m *Manager) GetItems(sess *Session, path string) ([]string, []tree.Value, *srerr.Error) {
	modName, segs, err := schema.ParsePath(path)
	if err != nil {
		return nil, nil, sess.recordError(err)
	}
	st, err := m.state(modName)
	if err != nil {
		return nil, nil, sess.recordError(err)
	}
	st.mu.RLock()
	t := m.treeFor(st, sess.Target)
	st.mu.RUnlock()

	cur := t.Root()
	for _, seg := range segs {
		child, cerr := t.Child(cur, segmentKey(seg))
		if cerr != nil {
			return nil, nil, sess.recordError(cerr)
		}
		if child == tree.InvalidHandle {
			return nil, nil, sess.recordError(srerr.NewPath(srerr.DataMissing, path, "node does not exist"))
		}
		cur = child
	}

	var paths []string
	var values []tree.Value
	walkErr := t.Walk(cur, func(h tree.Handle) error {
		children, cerr := t.Children(h)
		if cerr != nil {
			return cerr
		}
		if len(children) == 0 {
			v, _, verr := t.Value(h)
			if verr != nil {
				return verr
			}
			paths = append(paths, t.PathString(h))
			values = append(values, v)
		}
		return nil
	})
	if walkErr != nil {
		if serr, ok := walkErr.(*srerr.Error); ok {
			return nil, nil, sess.recordError(serr)
		}
		return nil, nil, sess.recordError(srerr.New(srerr.Internal, "walk failed: %v", walkErr))
	}
	return paths, values, nil
}

// ListSchemas returns the names of every installed module.
func (m *Manager) ListSchemas() []string {
	return m.schemaCtx.Modules()
}

// GetSchema resolves a single module's schema.
func (m *Manager) GetSchema(name string) (*schema.Module, *srerr.Error) {
	return m.schemaCtx.Module(name)
}

// CopyConfig bulk-copies one datastore's content for module into another,
// supplementing the operations the distilled spec names but never exposes
// (see SPEC_FULL.md §11): candidate re-seeding and startup promotion both
// go through this one path.
func (m *Manager) CopyConfig(module string, src, dst Kind) *srerr.Error {
	st, err := m.state(module)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if src == Startup || dst == Startup {
		return m.copyViaStartup(st, module, src, dst)
	}
	copied := tree.New(module)
	srcTree := m.treeFor(st, src)
	if err := copyTree(srcTree, srcTree.Root(), copied, copied.Root()); err != nil {
		return err
	}
	switch dst {
	case Running:
		st.running = copied
	case Candidate:
		st.candidate = copied
	}
	return nil
}

func (m *Manager) copyViaStartup(st *moduleState, module string, src, dst Kind) *srerr.Error {
	if src == Startup {
		records, rerr := m.store.ReadRecords(module, persist.Startup)
		if rerr != nil {
			return rerr
		}
		ops, derr := decodeOps(records)
		if derr != nil {
			return derr
		}
		t := tree.New(module)
		if err := replay(t, ops); err != nil {
			return err
		}
		switch dst {
		case Running:
			st.running = t
		case Candidate:
			st.candidate = t
		}
		return nil
	}
	// dst == Startup: persist the chosen source tree's content as the new
	// startup operation log via its leaf values, flattened to Set ops.
	srcTree := m.treeFor(st, src)
	ops := flattenToOps(srcTree)
	records, err := encodeOps(ops)
	if err != nil {
		return err
	}
	lock, lerr := m.store.Lock(module, persist.Startup)
	if lerr != nil {
		return lerr
	}
	defer lock.Unlock()
	return lock.WriteRecords(records)
}

func copyTree(src *tree.Tree, srcH tree.Handle, dst *tree.Tree, dstH tree.Handle) *srerr.Error {
	children, err := src.Children(srcH)
	if err != nil {
		return err
	}
	for _, c := range children {
		v, isDefault, verr := src.Value(c)
		if verr != nil {
			return verr
		}
		nh, cerr := dst.CreateChild(dstH, src.Name(c), nil)
		if cerr != nil {
			return cerr
		}
		if isDefault {
			if err := dst.SetDefault(nh, v); err != nil {
				return err
			}
		} else {
			if err := dst.SetValue(nh, v); err != nil {
				return err
			}
		}
		if err := copyTree(src, c, dst, nh); err != nil {
			return err
		}
	}
	return nil
}

func flattenToOps(t *tree.Tree) []OpEntry {
	var ops []OpEntry
	var walk func(h tree.Handle, path string)
	walk = func(h tree.Handle, path string) {
		children, _ := t.Children(h)
		for _, c := range children {
			cp := path + "/" + t.Name(c)
			if h == t.Root() {
				cp = path + t.Name(c)
			}
			v, isDefault, _ := t.Value(c)
			if !isDefault {
				ops = append(ops, OpEntry{Kind: opSet, Path: cp, Value: v})
			}
			walk(c, cp)
		}
	}
	walk(t.Root(), "/"+t.Name(t.Root())+":")
	return ops
}
