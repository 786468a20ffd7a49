package datastore

import (
	"bytes"
	"encoding/gob"

	"github.com/sysrepo-go/sysrepod/persist"
	"github.com/sysrepo-go/sysrepod/schema"
	"github.com/sysrepo-go/sysrepod/srerr"
	"github.com/sysrepo-go/sysrepod/tree"
)

func encodeOps(ops []OpEntry) ([][]byte, *srerr.Error) {
	records := make([][]byte, 0, len(ops))
	for _, op := range ops {
		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(op); err != nil {
			return nil, srerr.New(srerr.Internal, "encode op log entry: %v", err)
		}
		records = append(records, buf.Bytes())
	}
	return records, nil
}

func decodeOps(records [][]byte) ([]OpEntry, *srerr.Error) {
	ops := make([]OpEntry, 0, len(records))
	for _, rec := range records {
		var op OpEntry
		if err := gob.NewDecoder(bytes.NewReader(rec)).Decode(&op); err != nil {
			return nil, srerr.New(srerr.Internal, "decode op log entry: %v", err)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// Commit implements the eight-step two-phase commit protocol: local
// validate, acquire the global commit guard, take per-module advisory file
// locks, refresh each module from disk and replay this session's pending
// edits on top, re-validate, durably write, then release and report which
// modules actually changed so the caller can publish notifications. No
// module's write is observable to another commit until every participating
// module has synced successfully (all-or-nothing publish).
func (m *Manager) Commit(sess *Session) ([]string, *srerr.Error) {
	sess.mu.Lock()
	modules := make([]string, 0, len(sess.pending))
	for mod := range sess.pending {
		modules = append(modules, mod)
	}
	pending := make(map[string][]OpEntry, len(modules))
	for _, mod := range modules {
		pending[mod] = append([]OpEntry(nil), sess.pending[mod]...)
	}
	sess.mu.Unlock()

	if len(modules) == 0 {
		return nil, nil
	}

	for _, mod := range modules {
		if err := m.Validate(sess, mod); err != nil {
			return nil, err
		}
	}

	m.commitGuard.Lock()
	defer m.commitGuard.Unlock()

	locks := make(map[string]*persist.FileLock, len(modules))
	defer func() {
		for _, l := range locks {
			l.Unlock()
		}
	}()

	newTrees := make(map[string]*tree.Tree, len(modules))
	newOps := make(map[string][]OpEntry, len(modules))

	for _, modName := range modules {
		lock, lerr := m.store.Lock(modName, persist.Startup)
		if lerr != nil {
			return nil, lerr
		}
		locks[modName] = lock

		records, rerr := m.store.ReadRecords(modName, persist.Startup)
		if rerr != nil {
			return nil, rerr
		}
		baseOps, derr := decodeOps(records)
		if derr != nil {
			return nil, derr
		}
		fresh := tree.New(modName)
		if err := replay(fresh, baseOps); err != nil {
			return nil, err
		}
		if err := replay(fresh, pending[modName]); err != nil {
			return nil, err
		}

		st, serr := m.state(modName)
		if serr != nil {
			return nil, serr
		}
		if err := validateTree(fresh, st.schemaMod); err != nil {
			return nil, err
		}

		allOps := append(append([]OpEntry(nil), baseOps...), pending[modName]...)
		newTrees[modName] = fresh
		newOps[modName] = allOps
	}

	for modName, ops := range newOps {
		records, eerr := encodeOps(ops)
		if eerr != nil {
			return nil, eerr
		}
		if err := locks[modName].WriteRecords(records); err != nil {
			return nil, err
		}
	}

	for modName, fresh := range newTrees {
		candidate, cerr := cloneLinear(fresh, modName)
		if cerr != nil {
			return nil, cerr
		}
		st, _ := m.state(modName)
		st.mu.Lock()
		st.running = fresh
		st.candidate = candidate
		st.mu.Unlock()
	}

	sess.mu.Lock()
	sess.pending = map[string][]OpEntry{}
	sess.mu.Unlock()

	return modules, nil
}

// LockModule acquires an exclusive advisory lock on a single module for the
// duration of sess's lifetime (released by UnlockModule or session
// teardown), preventing other sessions from locking the whole datastore.
func (m *Manager) LockModule(owner []byte, module string) (ok bool, lerr *srerr.Error) {
	if _, err := m.schemaCtx.Module(module); err != nil {
		return false, err
	}
	return m.locks.AcquireModule(owner, module)
}

func (m *Manager) UnlockModule(owner []byte, module string) (bool, *srerr.Error) {
	return m.locks.ReleaseModule(owner, module)
}

// LockDatastore acquires a lock over every installed module at once,
// mutually exclusive with any individual module lock.
func (m *Manager) LockDatastore(owner []byte) (bool, *srerr.Error) {
	return m.locks.AcquireDatastore(owner, m.schemaCtx.Modules())
}

func (m *Manager) UnlockDatastore(owner []byte) (bool, *srerr.Error) {
	return m.locks.ReleaseDatastore(owner)
}

// iterator is the server-side cursor backing get_items_iter / get_item_next,
// implementing the original_source-derived streaming behaviour from
// SPEC_FULL.md §11: a failed Next simply drops the iterator from the
// session's map, requiring the client to start over.
type iterator struct {
	nodes []tree.Handle
	pos   int
}

// GetItemsIter starts a new streaming cursor over the direct children of
// the node at path and returns its handle.
func (m *Manager) GetItemsIter(sess *Session, path string) (string, *srerr.Error) {
	modName, segs, err := schema.ParsePath(path)
	if err != nil {
		return "", err
	}
	st, serr := m.state(modName)
	if serr != nil {
		return "", serr
	}
	st.mu.RLock()
	t := m.treeFor(st, sess.Target)
	st.mu.RUnlock()

	cur := t.Root()
	for _, seg := range segs {
		key := segmentKey(seg)
		child, cerr := t.Child(cur, key)
		if cerr != nil {
			return "", cerr
		}
		if child == tree.InvalidHandle {
			return "", srerr.NewPath(srerr.DataMissing, path, "node does not exist")
		}
		cur = child
	}
	children, cerr := t.Children(cur)
	if cerr != nil {
		return "", cerr
	}
	id := path
	sess.mu.Lock()
	sess.iters[id] = &iterator{nodes: children}
	sess.mu.Unlock()
	return id, nil
}

// GetItemNext advances id's cursor and returns the next child's path, or
// NOT_FOUND when exhausted or the handle is unknown/failed.
func (m *Manager) GetItemNext(sess *Session, module, id string) (string, *srerr.Error) {
	sess.mu.Lock()
	it, ok := sess.iters[id]
	if !ok {
		sess.mu.Unlock()
		return "", srerr.New(srerr.NotFound, "no such iterator %q", id)
	}
	if it.pos >= len(it.nodes) {
		delete(sess.iters, id)
		sess.mu.Unlock()
		return "", srerr.New(srerr.NotFound, "iterator %q exhausted", id)
	}
	h := it.nodes[it.pos]
	it.pos++
	sess.mu.Unlock()

	st, err := m.state(module)
	if err != nil {
		sess.mu.Lock()
		delete(sess.iters, id)
		sess.mu.Unlock()
		return "", err
	}
	st.mu.RLock()
	t := m.treeFor(st, sess.Target)
	st.mu.RUnlock()
	return t.PathString(h), nil
}
