package connmgr

import (
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/sysrepo-go/sysrepod/engine"
	"github.com/sysrepo-go/sysrepod/modules"
	"github.com/sysrepo-go/sysrepod/notify"
	"github.com/sysrepo-go/sysrepod/rpc/common"
	"github.com/sysrepo-go/sysrepod/rpc/serializer"
)

func newTestLoop(t *testing.T) *Loop {
	t.Helper()
	dispatcher := &LateDispatcher{}
	eng, err := engine.New(engine.Config{DataDir: t.TempDir(), Modules: modules.Builtin()}, dispatcher)
	if err != nil {
		t.Fatalf("engine.New failed: %v", err)
	}
	loop := New(eng, 4096, 4, serializer.NewBinarySerializer())
	dispatcher.Bind(loop)
	return loop
}

func readFrame(t *testing.T, r io.Reader) []byte {
	t.Helper()
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		t.Fatalf("failed to read frame header: %v", err)
	}
	length := binary.BigEndian.Uint32(header[:])
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		t.Fatalf("failed to read frame payload: %v", err)
	}
	return buf
}

func TestDispatchPushesNotificationToRegisteredConn(t *testing.T) {
	loop := newTestLoop(t)

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	const connID = uint64(42)
	loop.mu.Lock()
	loop.byID[connID] = server
	loop.mu.Unlock()

	dest := notify.Destination{ConnID: connID, SessionID: 7}

	done := make(chan []byte, 1)
	go func() {
		done <- readFrame(t, client)
	}()

	loop.Dispatch(dest, "ietf-interfaces", notify.EventModuleChange, "/ietf-interfaces:interfaces")

	select {
	case data := <-done:
		var msg common.Message
		if err := serializer.NewBinarySerializer().Deserialize(data, &msg); err != nil {
			t.Fatalf("failed to decode pushed frame: %v", err)
		}
		if msg.MsgType != common.MsgTNotification || msg.Module != "ietf-interfaces" {
			t.Fatalf("unexpected notification: %+v", msg)
		}
		if msg.SessionID != dest.SessionID {
			t.Fatalf("expected session id %d, got %d", dest.SessionID, msg.SessionID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for pushed notification")
	}
}

func TestDispatchToUnknownConnIsNoOp(t *testing.T) {
	loop := newTestLoop(t)
	// No registered connection for this id; Dispatch must not panic or block.
	loop.Dispatch(notify.Destination{ConnID: 999, SessionID: 1}, "ietf-interfaces", notify.EventModuleChange, "/x")
}

func TestHandleRejectsFrameFromUnregisteredConnection(t *testing.T) {
	loop := newTestLoop(t)
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	if out := loop.handle(server, []byte("irrelevant")); out != nil {
		t.Fatalf("expected nil response for unregistered connection, got %v", out)
	}
}
