package unix

import (
	"fmt"
	"net"
	"os"

	"github.com/sysrepo-go/sysrepod/rpc/common"
	"github.com/sysrepo-go/sysrepod/rpc/transport"
	"github.com/sysrepo-go/sysrepod/rpc/transport/base"
)

const (
	defaultBufferSize        = 64 * 1024 // 64 KB
	defaultMaxWorkersPerConn = 32
	defaultSocketMode        = 0666
)

// serverConnector implements the IServerConnector interface for Unix sockets
type serverConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IServerConnector)
// --------------------------------------------------------------------------

func (c *serverConnector) GetName() string {
	return "unix"
}

func (c *serverConnector) Listen(config common.ServerConfig) (net.Listener, error) {
	return ListenSocket(config)
}

// ListenSocket creates (recreating it if stale) the AF_UNIX listener at
// config.SocketPath with config.SocketMode permissions (or
// defaultSocketMode if unset). It is shared by serverConnector.Listen here
// and by connmgr.Loop.Listen, which wraps the returned listener's Accept to
// add per-connection credential checks before the base transport ever reads
// a frame off it.
func ListenSocket(config common.ServerConfig) (net.Listener, error) {
	socketPath := config.SocketPath

	if err := os.RemoveAll(socketPath); err != nil {
		return nil, fmt.Errorf("failed to remove existing socket: %v", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create Unix socket: %v", err)
	}

	mode := os.FileMode(config.SocketMode)
	if mode == 0 {
		mode = defaultSocketMode
	}
	if err := os.Chmod(socketPath, mode); err != nil {
		listener.Close()
		return nil, fmt.Errorf("failed to set socket permissions: %v", err)
	}

	return listener, nil
}

// --------------------------------------------------------------------------
// Server Transport Factory Method
// --------------------------------------------------------------------------

// NewUnixDefaultServerTransport creates a new Unix server transport with
// default buffer size and worker pool bound.
func NewUnixDefaultServerTransport() transport.IRPCServerTransport {
	return NewUnixServerTransport(defaultBufferSize, defaultMaxWorkersPerConn)
}

// NewUnixServerTransport creates a new Unix server transport with specified
// buffer size and max workers per connection.
func NewUnixServerTransport(bufferSize int, maxWorkersPerConn int) transport.IRPCServerTransport {
	return base.NewBaseServerTransport(&serverConnector{}, bufferSize, maxWorkersPerConn)
}
