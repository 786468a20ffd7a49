package base

import (
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/sysrepo-go/sysrepod/rpc/common"
	"github.com/sysrepo-go/sysrepod/rpc/transport"
	"github.com/sysrepo-go/sysrepod/srlog"
)

var log = srlog.Get("transport")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server
// operations, letting the framing/worker-pool logic below stay agnostic of
// the concrete socket family.
type IServerConnector interface {
	Listen(config common.ServerConfig) (net.Listener, error)
	GetName() string
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// serverTransport implements the core server transport functionality: an
// accept loop, per-connection framing, and a bounded worker pool so one
// slow request cannot starve others sharing a connection.
type serverTransport struct {
	connector  IServerConnector
	handler    transport.ServerHandleFunc
	config     common.ServerConfig
	listener   net.Listener
	bufferPool *sync.Pool
	maxWorkers int
}

// -----------------------------------------------------------
// Transport Factory Method (used for unix, and any future connector)
// -----------------------------------------------------------

// NewBaseServerTransport creates a new base server transport with a
// per-connection worker pool bounded at maxWorkersPerConn.
func NewBaseServerTransport(connector IServerConnector, bufferSize int, maxWorkersPerConn int) transport.IRPCServerTransport {
	if maxWorkersPerConn < 1 {
		maxWorkersPerConn = 1
	}
	return &serverTransport{
		connector:  connector,
		maxWorkers: maxWorkersPerConn,
		bufferPool: &sync.Pool{
			New: func() interface{} {
				return make([]byte, bufferSize)
			},
		},
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *serverTransport) Listen(config common.ServerConfig) error {
	t.config = config

	listener, err := t.connector.Listen(config)
	if err != nil {
		return fmt.Errorf("failed to create listener: %v", err)
	}
	t.listener = listener

	log.Infof("starting %s server on %s with %d workers per connection",
		t.connector.GetName(), config.SocketPath, t.maxWorkers)

	for {
		conn, err := listener.Accept()
		if err != nil {
			log.Errorf("accept error: %v", err)
			continue
		}
		go t.handleConnection(conn)
	}
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handleConnection reads frames off conn one at a time and dispatches each
// to a bounded worker goroutine; a connMutex serializes writes back since
// workers finish out of order.
func (t *serverTransport) handleConnection(conn net.Conn) {
	defer conn.Close()

	timeout := time.Duration(t.config.TimeoutSecond) * time.Second
	workerSemaphore := make(chan struct{}, t.maxWorkers)
	var wg sync.WaitGroup
	var connMutex sync.Mutex

	handleResponse := func(data []byte) {
		defer func() {
			<-workerSemaphore
			wg.Done()
		}()

		start := time.Now()
		resp := t.handler(conn, data)
		log.Debugf("request processed in %s", time.Since(start))

		connMutex.Lock()
		defer connMutex.Unlock()

		if timeout > 0 {
			if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
				log.Errorf("failed to set write deadline: %v", err)
				return
			}
		}
		if err := writeFrame(conn, resp); err != nil {
			log.Errorf("failed to write response: %v", err)
		}
	}

	handleRequest := func() error {
		if timeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
				return fmt.Errorf("failed to set read deadline: %v", err)
			}
		}

		buf := t.bufferPool.Get().([]byte)
		data, err := readFrame(conn, buf, t.config.MaxMessageSize)
		if err != nil {
			t.bufferPool.Put(buf)
			return err
		}

		workerSemaphore <- struct{}{}
		wg.Add(1)
		go func() {
			defer t.bufferPool.Put(buf)
			handleResponse(data)
		}()
		return nil
	}

	for {
		err := handleRequest()
		if err == io.EOF {
			log.Infof("connection closed by client")
			break
		}
		if err != nil {
			log.Errorf("error handling request, closing connection: %v", err)
			break
		}
	}

	wg.Wait()
}
