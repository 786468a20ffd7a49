// Package sessionmgr implements the Session Manager: connection and session
// lookup tables, session lifecycle, and per-session request queues. The
// lookup tables are xsync.MapOf sharded concurrent maps.
package sessionmgr

import (
	"container/list"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/sysrepo-go/sysrepod/datastore"
	"github.com/sysrepo-go/sysrepod/lockmgr"
	"github.com/sysrepo-go/sysrepod/metrics"
	"github.com/sysrepo-go/sysrepod/srerr"
)

// Connection tracks one accepted AF_UNIX connection and the sessions
// created on it.
type Connection struct {
	ID       uint64
	UID      uint32
	GID      uint32
	sessions *xsync.MapOf[uint64, *Session]
}

// Session wraps one datastore.Session with the identifiers the wire
// protocol and lock manager need: a session id unique across the daemon and
// an owner token for lock ownership. Requests for one session can arrive on
// different worker-pool goroutines (rpc/transport/base's bounded worker
// pool does not itself preserve order across a connection's frames), so
// Session serializes its own execution with a FIFO ticket queue.
type Session struct {
	ID     uint64
	ConnID uint64
	Owner  []byte
	DS     *datastore.Session

	queueMu   sync.Mutex
	queueCond *sync.Cond
	queue     *list.List
	running   bool
}

// Acquire blocks until every ticket enqueued before this one has released,
// then returns a func that must be called to hand the turn to the next
// waiter.
func (s *Session) Acquire() func() {
	ticket := make(chan struct{})
	s.queueMu.Lock()
	el := s.queue.PushBack(ticket)
	for s.queue.Front() != el || s.running {
		s.queueCond.Wait()
	}
	s.running = true
	s.queueMu.Unlock()

	return func() {
		s.queueMu.Lock()
		s.queue.Remove(el)
		s.running = false
		s.queueCond.Broadcast()
		s.queueMu.Unlock()
	}
}

// Manager owns the connection and session tables.
type Manager struct {
	connections *xsync.MapOf[uint64, *Connection]
	sessions    *xsync.MapOf[uint64, *Session]
	nextConnID  uint64
	nextSessID  uint64
}

func NewManager() *Manager {
	return &Manager{
		connections: xsync.NewMapOf[uint64, *Connection](),
		sessions:    xsync.NewMapOf[uint64, *Session](),
	}
}

// NewConnection registers a freshly accepted connection.
func (m *Manager) NewConnection(uid, gid uint32) *Connection {
	id := atomic.AddUint64(&m.nextConnID, 1)
	conn := &Connection{
		ID:       id,
		UID:      uid,
		GID:      gid,
		sessions: xsync.NewMapOf[uint64, *Session](),
	}
	m.connections.Store(id, conn)
	return conn
}

// CreateSession starts a new session bound to conn, targeting the given
// datastore kind.
func (m *Manager) CreateSession(conn *Connection, target datastore.Kind) (*Session, *srerr.Error) {
	owner, err := lockmgr.NewOwnerID()
	if err != nil {
		return nil, srerr.New(srerr.Internal, "generate session owner: %v", err)
	}
	id := atomic.AddUint64(&m.nextSessID, 1)
	sess := &Session{
		ID:     id,
		ConnID: conn.ID,
		Owner:  owner,
		DS:     datastore.NewSession(target),
		queue:  list.New(),
	}
	sess.queueCond = sync.NewCond(&sess.queueMu)
	m.sessions.Store(id, sess)
	conn.sessions.Store(id, sess)
	metrics.SessionOpened()
	return sess, nil
}

// Session looks up a session by id.
func (m *Manager) Session(id uint64) (*Session, bool) {
	return m.sessions.Load(id)
}

// Connection looks up a connection by id.
func (m *Manager) Connection(id uint64) (*Connection, bool) {
	return m.connections.Load(id)
}

// DropSession removes a session from both tables. Callers are responsible
// for releasing its locks and notification subscriptions first.
func (m *Manager) DropSession(id uint64) {
	sess, ok := m.sessions.LoadAndDelete(id)
	if !ok {
		return
	}
	if conn, ok := m.connections.Load(sess.ConnID); ok {
		conn.sessions.Delete(id)
	}
	metrics.SessionClosed()
}

// DropConnection removes a connection and every session it owns, returning
// the dropped sessions so the caller can release their locks/subscriptions.
func (m *Manager) DropConnection(id uint64) []*Session {
	conn, ok := m.connections.LoadAndDelete(id)
	if !ok {
		return nil
	}
	var dropped []*Session
	conn.sessions.Range(func(sid uint64, sess *Session) bool {
		m.sessions.Delete(sid)
		dropped = append(dropped, sess)
		metrics.SessionClosed()
		return true
	})
	return dropped
}
