package base

import (
	"fmt"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sysrepo-go/sysrepod/rpc/common"
	"github.com/sysrepo-go/sysrepod/rpc/transport"
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection based on the provided configuration
	Connect(config common.ClientConfig) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix")
	GetName() string
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// clientConnection represents a single net connection. Requests and
// responses on it are strictly synchronous: sysrepo clients never pipeline
// requests on one connection, so there is no requestID multiplexing here,
// unlike a fan-out RPC client talking to a cluster.
type clientConnection struct {
	conn   net.Conn
	connMu sync.Mutex
	parent *clientTransport
}

// clientTransport implements the core client transport functionality
// independent of the specific transport medium.
type clientTransport struct {
	connector     IClientConnector
	config        common.ClientConfig
	connections   []*clientConnection
	connectionsMu sync.RWMutex
	nextConnIndex uint64
}

// -----------------------------------------------------------
// Transport Factory Method (used for unix)
// -----------------------------------------------------------

// NewBaseClientTransport creates a new base client transport with the specified connector
func NewBaseClientTransport(connector IClientConnector) transport.IRPCClientTransport {
	return &clientTransport{connector: connector}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Connect(config common.ClientConfig) error {
	if config.SocketPath == "" {
		return fmt.Errorf("no socket path provided")
	}

	t.config = config
	t.closeConnections()

	count := config.ConnectionsPerEndpoint
	if count < 1 {
		count = 1
	}

	conns := make([]*clientConnection, 0, count)
	for i := 0; i < count; i++ {
		cc := &clientConnection{parent: t}
		if err := cc.reconnect(); err != nil {
			return fmt.Errorf("failed to connect (%d/%d): %w", i+1, count, err)
		}
		conns = append(conns, cc)
	}

	t.connectionsMu.Lock()
	t.connections = conns
	t.connectionsMu.Unlock()

	return nil
}

func (t *clientTransport) Send(req []byte) (resp []byte, err error) {
	send := func(c *clientConnection) ([]byte, error) {
		c.connMu.Lock()
		defer c.connMu.Unlock()

		if c.conn == nil {
			if err := c.reconnectLocked(); err != nil {
				return nil, err
			}
		}

		timeout := time.Duration(t.config.TimeoutSecond) * time.Second
		if timeout > 0 {
			_ = c.conn.SetDeadline(time.Now().Add(timeout))
		}

		if err := writeFrame(c.conn, req); err != nil {
			c.conn.Close()
			c.conn = nil
			return nil, err
		}

		data, err := readFrame(c.conn, nil, 0)
		if err != nil {
			c.conn.Close()
			c.conn = nil
			return nil, err
		}
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	}

	maxRetries := t.config.RetryCount
	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastErr error
	backoffMs := 50
	for i := 0; i < maxRetries; i++ {
		conn := t.getNextConnection()
		if conn == nil {
			return nil, fmt.Errorf("no active connections available")
		}

		data, err := send(conn)
		if err == nil {
			return data, nil
		}
		lastErr = err

		if i < maxRetries-1 {
			jitter := float64(backoffMs) * (0.9 + 0.2*rand.Float64())
			time.Sleep(time.Duration(jitter) * time.Millisecond)
			backoffMs *= 2
		}
	}

	return nil, fmt.Errorf("failed to send request after %d attempts: %w", maxRetries, lastErr)
}

func (t *clientTransport) Close() error {
	t.closeConnections()
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (t *clientTransport) getNextConnection() *clientConnection {
	t.connectionsMu.RLock()
	defer t.connectionsMu.RUnlock()

	if len(t.connections) == 0 {
		return nil
	}
	if len(t.connections) == 1 {
		return t.connections[0]
	}
	index := atomic.AddUint64(&t.nextConnIndex, 1) % uint64(len(t.connections))
	return t.connections[index]
}

func (t *clientTransport) closeConnections() {
	t.connectionsMu.Lock()
	defer t.connectionsMu.Unlock()

	for _, c := range t.connections {
		c.connMu.Lock()
		if c.conn != nil {
			c.conn.Close()
			c.conn = nil
		}
		c.connMu.Unlock()
	}
	t.connections = nil
}

// reconnect establishes the connection to the server, locking connMu itself.
func (c *clientConnection) reconnect() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.reconnectLocked()
}

// reconnectLocked establishes the connection; caller must hold connMu.
func (c *clientConnection) reconnectLocked() error {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	conn, err := c.parent.connector.Connect(c.parent.config)
	if err != nil {
		return fmt.Errorf("failed to connect via %s: %w", c.parent.connector.GetName(), err)
	}
	c.conn = conn
	return nil
}
