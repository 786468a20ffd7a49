package client

import (
	"testing"

	"github.com/sysrepo-go/sysrepod/datastore"
	"github.com/sysrepo-go/sysrepod/rpc/common"
	"github.com/sysrepo-go/sysrepod/rpc/serializer"
)

// fakeTransport hands back a canned response for the next Send call,
// decoded just enough to mirror what the request asked for.
type fakeTransport struct {
	s        serializer.IRPCSerializer
	handler  func(req common.Message) common.Message
	closed   bool
	lastSent common.Message
}

func (f *fakeTransport) Connect(common.ClientConfig) error { return nil }

func (f *fakeTransport) Send(reqBytes []byte) ([]byte, error) {
	var req common.Message
	if err := f.s.Deserialize(reqBytes, &req); err != nil {
		return nil, err
	}
	f.lastSent = req
	resp := f.handler(req)
	return f.s.Serialize(resp)
}

func (f *fakeTransport) Close() error {
	f.closed = true
	return nil
}

func newConnectedSession(t *testing.T, handler func(req common.Message) common.Message) (*Session, *fakeTransport) {
	t.Helper()
	s := serializer.NewBinarySerializer()
	ft := &fakeTransport{s: s, handler: handler}
	sess, err := Connect(common.ClientConfig{}, ft, s, datastore.Running)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	return sess, ft
}

func TestConnectStartsSession(t *testing.T) {
	sess, _ := newConnectedSession(t, func(req common.Message) common.Message {
		return *common.NewSessionStartResponse(123, nil)
	})
	if sess.id != 123 {
		t.Fatalf("expected session id 123, got %d", sess.id)
	}
}

func TestStopClosesTransport(t *testing.T) {
	sess, ft := newConnectedSession(t, func(req common.Message) common.Message {
		if req.MsgType == common.MsgTSessionStop {
			return *common.NewSessionStopResponse(nil)
		}
		return *common.NewSessionStartResponse(1, nil)
	})
	if err := sess.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if !ft.closed {
		t.Fatal("expected transport to be closed after Stop")
	}
}

func TestRPCSendRoundTripsModuleAndValue(t *testing.T) {
	sess, ft := newConnectedSession(t, func(req common.Message) common.Message {
		if req.MsgType == common.MsgTRPCSend {
			return *common.NewRPCSendResponse(req.Value, nil)
		}
		return *common.NewSessionStartResponse(1, nil)
	})

	reply, err := sess.RPCSend("ietf-interfaces", "/ietf-interfaces:reset", common.Value{Str: "go"})
	if err != nil {
		t.Fatalf("RPCSend failed: %v", err)
	}
	if reply == nil || reply.Str != "go" {
		t.Fatalf("expected echoed value, got %+v", reply)
	}
	if ft.lastSent.Module != "ietf-interfaces" {
		t.Fatalf("expected Module to be set on the wire request, got %q", ft.lastSent.Module)
	}
}

func TestInvokePropagatesServerError(t *testing.T) {
	sess, _ := newConnectedSession(t, func(req common.Message) common.Message {
		if req.MsgType == common.MsgTGetItem {
			resp := common.NewErrorResponse("boom")
			resp.MsgType = common.MsgTGetItem
			return *resp
		}
		return *common.NewSessionStartResponse(1, nil)
	})

	if _, err := sess.GetItem("/x"); err == nil {
		t.Fatal("expected error to propagate from server response")
	}
}
