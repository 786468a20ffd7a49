package transport

import (
	"net"

	"github.com/sysrepo-go/sysrepod/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc handles a single decoded request frame and returns the
// encoded response frame to write back. conn is passed through so the
// handler can identify which connection the frame arrived on (e.g. to look
// up peer credentials), without the transport layer needing to know
// anything about sessions.
type ServerHandleFunc func(conn net.Conn, req []byte) (resp []byte)

// IRPCServerTransport is the interface for the RPC transport layer
// It must accept a common.ServerConfig as a parameter
type IRPCServerTransport interface {
	// RegisterHandler registers a handler for the transport layer
	// This handler should be called when a request is received
	RegisterHandler(handler ServerHandleFunc)
	// Listen starts the transport layer and listens for incoming requests
	Listen(config common.ServerConfig) error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface for the RPC client transport
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error
	// Send sends a request to the server and returns the response.
	Send(req []byte) (resp []byte, err error)
	// Close closes the transport connection
	Close() error
}
