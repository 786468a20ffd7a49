// Package lockmgr implements the module/datastore lock table described in
// the specification: a module lock excludes a whole-datastore lock and vice
// versa, ownership is proven by a random per-holder token, and lock
// acquisition is a compare-and-set rather than a blocking wait — mirroring
// the teacher's lib/lockmgr package, which performs the same CAS-by-owner-ID
// dance over a pluggable IStore. This version holds the table in memory
// rather than behind IStore, since there is no distributed store in this
// design (see DESIGN.md).
package lockmgr

import (
	"bytes"
	"crypto/rand"
	"sync"

	"github.com/sysrepo-go/sysrepod/srerr"
)

const ownerIDBytes = 32

// NewOwnerID generates a fresh random owner token, the same way the
// teacher's generateOwnerID does.
func NewOwnerID() ([]byte, error) {
	b := make([]byte, ownerIDBytes)
	_, err := rand.Read(b)
	return b, err
}

// Manager holds the exclusive module and whole-datastore locks. A module
// lock and the datastore lock are mutually exclusive: acquiring the
// datastore lock fails if any module is individually locked, and locking a
// module fails while the datastore lock is held.
type Manager struct {
	mu          sync.Mutex
	moduleOwner map[string][]byte
	dsOwner     []byte
}

func NewManager() *Manager {
	return &Manager{moduleOwner: map[string][]byte{}}
}

// AcquireModule locks a single module for owner. Fails with LOCKED if
// already locked by anyone (including a re-entrant call by the same owner)
// or if the whole-datastore lock is held.
func (m *Manager) AcquireModule(owner []byte, module string) (bool, *srerr.Error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dsOwner != nil {
		return false, srerr.New(srerr.Locked, "datastore is locked")
	}
	if _, locked := m.moduleOwner[module]; locked {
		return false, srerr.New(srerr.Locked, "module %q is locked", module)
	}
	m.moduleOwner[module] = append([]byte(nil), owner...)
	return true, nil
}

// ReleaseModule unlocks module if owner currently holds it.
func (m *Manager) ReleaseModule(owner []byte, module string) (bool, *srerr.Error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, locked := m.moduleOwner[module]
	if !locked {
		return false, srerr.New(srerr.InvalArg, "module %q is not locked", module)
	}
	if !bytes.Equal(cur, owner) {
		return false, srerr.New(srerr.Unauthorized, "module %q is locked by a different owner", module)
	}
	delete(m.moduleOwner, module)
	return true, nil
}

// AcquireDatastore locks every module at once for owner. Fails if any
// individual module lock is held.
func (m *Manager) AcquireDatastore(owner []byte, modules []string) (bool, *srerr.Error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dsOwner != nil {
		return false, srerr.New(srerr.Locked, "datastore already locked")
	}
	if len(m.moduleOwner) > 0 {
		return false, srerr.New(srerr.Locked, "one or more modules are individually locked")
	}
	m.dsOwner = append([]byte(nil), owner...)
	return true, nil
}

// ReleaseDatastore unlocks the whole-datastore lock if owner currently
// holds it.
func (m *Manager) ReleaseDatastore(owner []byte) (bool, *srerr.Error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dsOwner == nil {
		return false, srerr.New(srerr.InvalArg, "datastore is not locked")
	}
	if !bytes.Equal(m.dsOwner, owner) {
		return false, srerr.New(srerr.Unauthorized, "datastore is locked by a different owner")
	}
	m.dsOwner = nil
	return true, nil
}

// ReleaseAll drops every lock owner currently holds, used when a session
// disconnects without explicitly unlocking.
func (m *Manager) ReleaseAll(owner []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for mod, o := range m.moduleOwner {
		if bytes.Equal(o, owner) {
			delete(m.moduleOwner, mod)
		}
	}
	if bytes.Equal(m.dsOwner, owner) {
		m.dsOwner = nil
	}
}
