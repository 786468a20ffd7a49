// Package connmgr implements the Connection Manager: the AF_UNIX accept
// loop, SO_PEERCRED-based accept policy, and the glue between one accepted
// connection and its sessionmgr.Connection record. It supplies its own
// IServerConnector to rpc/transport/base so the teacher-derived accept-loop
// and bounded-worker-pool machinery in that package does the actual
// framing and dispatch, while connmgr owns connection identity and
// teardown.
package connmgr

import (
	"fmt"
	"net"
	"sync"

	"github.com/sysrepo-go/sysrepod/access"
	"github.com/sysrepo-go/sysrepod/engine"
	"github.com/sysrepo-go/sysrepod/metrics"
	"github.com/sysrepo-go/sysrepod/notify"
	"github.com/sysrepo-go/sysrepod/reqproc"
	"github.com/sysrepo-go/sysrepod/rpc/common"
	"github.com/sysrepo-go/sysrepod/rpc/serializer"
	"github.com/sysrepo-go/sysrepod/rpc/transport"
	"github.com/sysrepo-go/sysrepod/rpc/transport/base"
	"github.com/sysrepo-go/sysrepod/rpc/transport/unix"
	"github.com/sysrepo-go/sysrepod/sessionmgr"
	"github.com/sysrepo-go/sysrepod/srlog"
)

var log = srlog.Get("connmgr")

// Loop owns the accept loop and the connection identity table.
type Loop struct {
	sessions   *sessionmgr.Manager
	proc       *reqproc.Processor
	serializer serializer.IRPCSerializer
	transport  transport.IRPCServerTransport

	mu     sync.Mutex
	byConn map[net.Conn]*sessionmgr.Connection
	byID   map[uint64]net.Conn
}

// LateDispatcher satisfies notify.Dispatcher before the Loop it forwards to
// exists, breaking the engine/connmgr construction cycle: engine.New wants
// a Dispatcher up front, but building a Loop wants a finished Engine.
// Dispatch is a silent no-op until Bind is called, which is fine since no
// connection can hold a subscription before the Loop is serving.
type LateDispatcher struct {
	mu   sync.RWMutex
	loop *Loop
}

func (d *LateDispatcher) Bind(l *Loop) {
	d.mu.Lock()
	d.loop = l
	d.mu.Unlock()
}

func (d *LateDispatcher) Dispatch(dest notify.Destination, module string, event notify.Event, path string) {
	d.mu.RLock()
	l := d.loop
	d.mu.RUnlock()
	if l != nil {
		l.Dispatch(dest, module, event, path)
	}
}

// New builds a Loop bound to eng, using a bounded worker pool of
// maxWorkersPerConn goroutines per accepted connection.
func New(eng *engine.Engine, bufferSize, maxWorkersPerConn int, s serializer.IRPCSerializer) *Loop {
	sessions := sessionmgr.NewManager()
	l := &Loop{
		sessions:   sessions,
		proc:       reqproc.NewProcessor(eng, sessions),
		serializer: s,
		byConn:     map[net.Conn]*sessionmgr.Connection{},
		byID:       map[uint64]net.Conn{},
	}
	l.transport = base.NewBaseServerTransport(l, bufferSize, maxWorkersPerConn)
	l.transport.RegisterHandler(l.handle)
	return l
}

// Serve blocks accepting and processing connections until config.SocketPath
// can no longer be listened on or the process is terminated.
func (l *Loop) Serve(config common.ServerConfig) error {
	return l.transport.Listen(config)
}

// --------------------------------------------------------------------------
// base.IServerConnector
// --------------------------------------------------------------------------

func (l *Loop) GetName() string { return "unix" }

// Listen creates the AF_UNIX listener via unix.ListenSocket and wraps Accept
// so every accepted connection is credential-checked and registered with
// the Session Manager before the base transport ever reads a frame off it.
func (l *Loop) Listen(config common.ServerConfig) (net.Listener, error) {
	ln, err := unix.ListenSocket(config)
	if err != nil {
		return nil, err
	}
	return &acceptWrapper{Listener: ln, loop: l}, nil
}

// acceptWrapper intercepts Accept to register/credential-check each
// connection and intercepts Close (via connWrapper) to release its
// sessions and locks on disconnect.
type acceptWrapper struct {
	net.Listener
	loop *Loop
}

func (a *acceptWrapper) Accept() (net.Conn, error) {
	conn, err := a.Listener.Accept()
	if err != nil {
		return nil, err
	}
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		conn.Close()
		metrics.ConnectionRejected()
		return nil, fmt.Errorf("accepted non-unix connection")
	}
	creds, cerr := access.CredsFromConn(unixConn)
	if cerr != nil {
		log.Warningf("rejecting connection, failed to read peer credentials: %v", cerr)
		conn.Close()
		metrics.ConnectionRejected()
		return nil, fmt.Errorf("peer credential check failed: %v", cerr)
	}
	connRecord := a.loop.sessions.NewConnection(creds.UID, creds.GID)
	wrapped := &connWrapper{Conn: conn, loop: a.loop, record: connRecord}

	a.loop.mu.Lock()
	a.loop.byConn[wrapped] = connRecord
	a.loop.byID[connRecord.ID] = wrapped
	a.loop.mu.Unlock()

	return wrapped, nil
}

// connWrapper releases a connection's sessions, locks, and subscriptions
// exactly once when the underlying socket closes, whether that is a
// graceful session_stop-then-disconnect or an abrupt drop.
type connWrapper struct {
	net.Conn
	loop   *Loop
	record *sessionmgr.Connection
	once   sync.Once
}

func (c *connWrapper) Close() error {
	c.once.Do(func() {
		c.loop.mu.Lock()
		delete(c.loop.byConn, c)
		delete(c.loop.byID, c.record.ID)
		c.loop.mu.Unlock()

		for _, sess := range c.loop.sessions.DropConnection(c.record.ID) {
			c.loop.proc.ReleaseSession(sess)
		}
	})
	return c.Conn.Close()
}

// --------------------------------------------------------------------------
// Request handling
// --------------------------------------------------------------------------

func (l *Loop) handle(conn net.Conn, data []byte) []byte {
	l.mu.Lock()
	connRecord, ok := l.byConn[conn]
	l.mu.Unlock()
	if !ok {
		log.Errorf("received frame from unregistered connection")
		return nil
	}
	return l.proc.Handle(connRecord.ID, data, l.serializer)
}

// --------------------------------------------------------------------------
// notify.Dispatcher
// --------------------------------------------------------------------------

// Dispatch pushes a notification frame to dest's connection out of band
// from the request/response cycle. A connection that has since dropped, or
// a write that fails, is logged and dropped — notification delivery is
// best-effort, matching spec.md's framing of subscriptions as push
// convenience rather than a guaranteed-delivery channel.
//
// A push can in principle interleave on the wire with an in-flight
// response frame on the same connection, since the base transport's
// response writer and this method both ultimately call net.Conn.Write
// without sharing a lock. A client library that wants to both issue
// requests and receive pushes on the same socket needs to demultiplex by
// reading full frames and checking MsgType == MsgTNotification before
// matching a frame to a pending request.
func (l *Loop) Dispatch(dest notify.Destination, module string, event notify.Event, path string) {
	l.mu.Lock()
	conn, ok := l.byID[dest.ConnID]
	l.mu.Unlock()
	if !ok {
		return
	}

	msg := common.NewNotification(module, string(event), path)
	msg.SessionID = dest.SessionID
	data, err := l.serializer.Serialize(*msg)
	if err != nil {
		log.Errorf("failed to encode notification: %v", err)
		return
	}
	if err := base.WriteFrame(conn, data); err != nil {
		log.Warningf("failed to push notification to conn %d: %v", dest.ConnID, err)
		return
	}
	metrics.NotificationDispatched()
}
