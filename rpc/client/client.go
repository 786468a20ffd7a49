package client

import (
	"fmt"

	"github.com/sysrepo-go/sysrepod/datastore"
	"github.com/sysrepo-go/sysrepod/rpc/common"
	"github.com/sysrepo-go/sysrepod/rpc/serializer"
	"github.com/sysrepo-go/sysrepod/rpc/transport"
	"github.com/sysrepo-go/sysrepod/srlog"
)

var Logger = srlog.Get("rpc/client")

// Session is the client-side handle for one server-side session, mirroring
// the operations spec.md §6 names as the external API: get/set/delete,
// move, commit/validate/discard, locking, schema introspection, and
// subscriptions.
type Session struct {
	id         uint64
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// Connect dials the daemon via t and starts a session targeting target.
func Connect(config common.ClientConfig, t transport.IRPCClientTransport, s serializer.IRPCSerializer, target datastore.Kind) (*Session, error) {
	if err := t.Connect(config); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	sess := &Session{transport: t, serializer: s}
	resp, err := sess.invoke(common.NewSessionStartRequest(uint8(target)))
	if err != nil {
		t.Close()
		return nil, err
	}
	sess.id = resp.SessionID
	return sess, nil
}

// Stop ends the session and releases the underlying transport.
func (s *Session) Stop() error {
	req := common.NewSessionStopRequest(s.id)
	if _, err := s.invoke(req); err != nil {
		return err
	}
	return s.transport.Close()
}

func (s *Session) GetItem(path string) (*common.Value, error) {
	resp, err := s.invoke(common.NewGetItemRequest(s.id, path))
	if err != nil {
		return nil, err
	}
	return resp.Value, nil
}

func (s *Session) GetItems(path string) ([]string, []common.Value, error) {
	resp, err := s.invoke(common.NewGetItemsRequest(s.id, path))
	if err != nil {
		return nil, nil, err
	}
	return resp.Paths, resp.Values, nil
}

func (s *Session) SetItem(path string, value common.Value, flags datastore.EditFlags) error {
	_, err := s.invoke(common.NewSetItemRequest(s.id, path, &value, uint8(flags)))
	return err
}

func (s *Session) DeleteItem(path string, flags datastore.EditFlags) error {
	_, err := s.invoke(common.NewDeleteItemRequest(s.id, path, uint8(flags)))
	return err
}

// MoveList reorders a user-ordered list instance. dir is one of
// datastore.DirUp/DirDown/DirFirst/DirLast.
func (s *Session) MoveList(path string, dir datastore.Direction) error {
	_, err := s.invoke(common.NewMoveListRequest(s.id, path, uint8(dir)))
	return err
}

func (s *Session) Validate(module string) error {
	_, err := s.invoke(common.NewValidateRequest(s.id, module))
	return err
}

func (s *Session) Commit() error {
	_, err := s.invoke(common.NewCommitRequest(s.id))
	return err
}

func (s *Session) DiscardChanges() error {
	_, err := s.invoke(common.NewDiscardChangesRequest(s.id))
	return err
}

func (s *Session) CopyConfig(module string, src, dst datastore.Kind) error {
	_, err := s.invoke(common.NewCopyConfigRequest(s.id, module, uint8(src), uint8(dst)))
	return err
}

func (s *Session) LockModule(module string) (bool, error) {
	resp, err := s.invoke(common.NewLockModuleRequest(s.id, module))
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

func (s *Session) UnlockModule(module string) (bool, error) {
	resp, err := s.invoke(common.NewUnlockModuleRequest(s.id, module))
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

func (s *Session) LockDatastore() (bool, error) {
	resp, err := s.invoke(common.NewLockDatastoreRequest(s.id))
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

func (s *Session) UnlockDatastore() (bool, error) {
	resp, err := s.invoke(common.NewUnlockDatastoreRequest(s.id))
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

func (s *Session) ListSchemas() ([]string, error) {
	resp, err := s.invoke(common.NewListSchemasRequest(s.id))
	if err != nil {
		return nil, err
	}
	names := make([]string, len(resp.Values))
	for i, v := range resp.Values {
		names[i] = v.Str
	}
	return names, nil
}

func (s *Session) Subscribe(module, event string, durable bool) error {
	_, err := s.invoke(common.NewSubscribeRequest(s.id, module, event, durable))
	return err
}

func (s *Session) Unsubscribe(module string) error {
	_, err := s.invoke(common.NewUnsubscribeRequest(s.id, module))
	return err
}

// RPCSend invokes the rpc event bound to module, carrying value as its
// input, and returns the daemon's reply.
func (s *Session) RPCSend(module, path string, value common.Value) (*common.Value, error) {
	resp, err := s.invoke(common.NewRPCSendRequest(s.id, module, path, &value))
	if err != nil {
		return nil, err
	}
	return resp.Value, nil
}

// invoke serializes req, sends it, and deserializes the response, failing
// if the response carries an error or doesn't match the request's type.
func (s *Session) invoke(req *common.Message) (*common.Message, error) {
	reqBytes, err := s.serializer.Serialize(*req)
	if err != nil {
		return nil, fmt.Errorf("serialize request: %w", err)
	}

	respBytes, err := s.transport.Send(reqBytes)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	var resp common.Message
	if err := s.serializer.Deserialize(respBytes, &resp); err != nil {
		return nil, fmt.Errorf("deserialize response: %w", err)
	}

	if resp.Err != "" {
		return nil, fmt.Errorf("%s: %s", req.MsgType, resp.Err)
	}
	if resp.MsgType != req.MsgType {
		return nil, fmt.Errorf("unexpected response type %s, expected %s", resp.MsgType, req.MsgType)
	}

	return &resp, nil
}
