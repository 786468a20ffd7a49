// Package reqproc implements the Request Processor: the generalisation of
// the teacher's IRPCServerAdapter/Handle(req, store) dispatch
// (rpc/server/adapter_istore.go, adapter_lockmgr.go) across every component
// this daemon exposes, matched on the wire message type.
package reqproc

import (
	"time"

	"github.com/sysrepo-go/sysrepod/datastore"
	"github.com/sysrepo-go/sysrepod/engine"
	"github.com/sysrepo-go/sysrepod/metrics"
	"github.com/sysrepo-go/sysrepod/notify"
	"github.com/sysrepo-go/sysrepod/rpc/common"
	"github.com/sysrepo-go/sysrepod/schema"
	"github.com/sysrepo-go/sysrepod/sessionmgr"
	"github.com/sysrepo-go/sysrepod/srerr"
	"github.com/sysrepo-go/sysrepod/srlog"
	"github.com/sysrepo-go/sysrepod/tree"
)

var log = srlog.Get("reqproc")

// errIface converts a typed *srerr.Error to the error interface, returning
// an untyped nil (rather than a non-nil interface wrapping a nil pointer)
// when err is nil.
func errIface(err *srerr.Error) error {
	if err == nil {
		return nil
	}
	return err
}

// Processor dispatches decoded wire messages to the engine, keyed on
// Message.SessionID for every request that isn't itself session_start.
type Processor struct {
	eng      *engine.Engine
	sessions *sessionmgr.Manager
}

func NewProcessor(eng *engine.Engine, sessions *sessionmgr.Manager) *Processor {
	return &Processor{eng: eng, sessions: sessions}
}

// Handle decodes, dispatches, and re-encodes one request for connID using
// serializer s, returning the response bytes.
func (p *Processor) Handle(connID uint64, data []byte, s Serializer) []byte {
	var req common.Message
	if err := s.Deserialize(data, &req); err != nil {
		return mustEncode(s, common.NewErrorResponse("malformed request: "+err.Error()))
	}

	resp := p.dispatch(connID, &req)

	out, err := s.Serialize(*resp)
	if err != nil {
		return mustEncode(s, common.NewErrorResponse("failed to serialize response: "+err.Error()))
	}
	return out
}

// Serializer is the subset of serializer.IRPCSerializer reqproc needs,
// declared locally to avoid an import cycle with rpc/serializer's common
// dependency.
type Serializer interface {
	Serialize(msg common.Message) ([]byte, error)
	Deserialize(data []byte, msg *common.Message) error
}

func mustEncode(s Serializer, msg *common.Message) []byte {
	out, err := s.Serialize(*msg)
	if err != nil {
		log.Errorf("failed to encode error response: %v", err)
		return nil
	}
	return out
}

func (p *Processor) dispatch(connID uint64, req *common.Message) *common.Message {
	if req.MsgType == common.MsgTSessionStart {
		return p.handleSessionStart(connID, req)
	}

	sess, ok := p.sessions.Session(req.SessionID)
	if !ok {
		return errResp(req.MsgType, srerr.New(srerr.NotFound, "unknown session %d", req.SessionID))
	}

	// The base transport's worker pool may run two frames from the same
	// connection concurrently; a session's requests must still execute in
	// the order they arrived, so take the session's FIFO ticket for the
	// lifetime of this request.
	release := sess.Acquire()
	defer release()

	switch req.MsgType {
	case common.MsgTSessionStop:
		return p.handleSessionStop(sess)
	case common.MsgTGetItem:
		return p.handleGetItem(sess, req)
	case common.MsgTGetItems:
		return p.handleGetItems(sess, req)
	case common.MsgTGetItemsIter:
		return p.handleGetItemsIter(sess, req)
	case common.MsgTGetItemNext:
		return p.handleGetItemNext(sess, req)
	case common.MsgTSetItem:
		return p.handleSetItem(sess, req)
	case common.MsgTDeleteItem:
		return p.handleDeleteItem(sess, req)
	case common.MsgTMoveList:
		return p.handleMoveList(sess, req)
	case common.MsgTValidate:
		return p.handleValidate(sess, req)
	case common.MsgTCommit:
		return p.handleCommit(sess, req)
	case common.MsgTDiscardChanges:
		return p.handleDiscardChanges(sess)
	case common.MsgTCopyConfig:
		return p.handleCopyConfig(sess, req)
	case common.MsgTLockModule:
		return p.handleLockModule(sess, req)
	case common.MsgTUnlockModule:
		return p.handleUnlockModule(sess, req)
	case common.MsgTLockDatastore:
		return p.handleLockDatastore(sess)
	case common.MsgTUnlockDatastore:
		return p.handleUnlockDatastore(sess)
	case common.MsgTListSchemas:
		return p.handleListSchemas()
	case common.MsgTSubscribe:
		return p.handleSubscribe(sess, req)
	case common.MsgTUnsubscribe:
		return p.handleUnsubscribe(sess, req)
	case common.MsgTRPCSend:
		return p.handleRPCSend(sess, req)
	default:
		return errResp(req.MsgType, srerr.New(srerr.Unsupported, "unsupported message type %s", req.MsgType))
	}
}

func errResp(t common.MessageType, err *srerr.Error) *common.Message {
	msg := common.NewErrorResponse(err.Error())
	msg.MsgType = t
	return msg
}

func (p *Processor) handleSessionStart(connID uint64, req *common.Message) *common.Message {
	conn, ok := p.sessions.Connection(connID)
	if !ok {
		return common.NewSessionStartResponse(0, srerr.New(srerr.Internal, "connection %d not registered", connID))
	}
	sess, err := p.sessions.CreateSession(conn, datastore.Kind(req.Target))
	if err != nil {
		return common.NewSessionStartResponse(0, err)
	}
	return common.NewSessionStartResponse(sess.ID, nil)
}

func (p *Processor) handleSessionStop(sess *sessionmgr.Session) *common.Message {
	p.ReleaseSession(sess)
	p.sessions.DropSession(sess.ID)
	return common.NewSessionStopResponse(nil)
}

// ReleaseSession drops every lock and notification subscription sess holds,
// without removing it from the Session Manager's tables. Used both by
// session_stop and by the Connection Manager when a socket closes out from
// under a still-live session.
func (p *Processor) ReleaseSession(sess *sessionmgr.Session) {
	p.eng.Locks.ReleaseAll(sess.Owner)
	p.eng.Notify.DropDestination(notifyDest(sess))
}

func (p *Processor) handleGetItem(sess *sessionmgr.Session, req *common.Message) *common.Message {
	v, node, err := p.eng.Data.GetItem(sess.DS, req.Path)
	if err != nil {
		return common.NewGetItemResponse(nil, err)
	}
	wv := toWireValue(v, node)
	return common.NewGetItemResponse(&wv, nil)
}

func (p *Processor) handleGetItems(sess *sessionmgr.Session, req *common.Message) *common.Message {
	paths, values, err := p.eng.Data.GetItems(sess.DS, req.Path)
	if err != nil {
		return common.NewGetItemsResponse(nil, nil, err)
	}
	out := make([]common.Value, len(values))
	for i, v := range values {
		out[i] = toWireValue(v, nil)
	}
	return common.NewGetItemsResponse(paths, out, nil)
}

func (p *Processor) handleGetItemsIter(sess *sessionmgr.Session, req *common.Message) *common.Message {
	handle, err := p.eng.Data.GetItemsIter(sess.DS, req.Path)
	return common.NewGetItemsIterResponse(handle, errIface(err))
}

func (p *Processor) handleGetItemNext(sess *sessionmgr.Session, req *common.Message) *common.Message {
	path, err := p.eng.Data.GetItemNext(sess.DS, req.Module, req.IterHandle)
	return common.NewGetItemNextResponse(path, errIface(err))
}

func (p *Processor) handleSetItem(sess *sessionmgr.Session, req *common.Message) *common.Message {
	v := fromWireValue(req.Value)
	err := p.eng.Data.SetItem(sess.DS, req.Path, v, datastore.EditFlags(req.Flags))
	return common.NewSetItemResponse(errIface(err))
}

func (p *Processor) handleDeleteItem(sess *sessionmgr.Session, req *common.Message) *common.Message {
	err := p.eng.Data.DeleteItem(sess.DS, req.Path, datastore.EditFlags(req.Flags))
	return common.NewDeleteItemResponse(errIface(err))
}

func (p *Processor) handleMoveList(sess *sessionmgr.Session, req *common.Message) *common.Message {
	err := p.eng.Data.MoveList(sess.DS, req.Path, datastore.Direction(req.Direction))
	return common.NewMoveListResponse(errIface(err))
}

func (p *Processor) handleValidate(sess *sessionmgr.Session, req *common.Message) *common.Message {
	err := p.eng.Data.Validate(sess.DS, req.Module)
	if err != nil {
		metrics.ValidationFailed()
	}
	return common.NewValidateResponse(errIface(err))
}

func (p *Processor) handleCommit(sess *sessionmgr.Session, req *common.Message) *common.Message {
	start := time.Now()
	modules, err := p.eng.Data.Commit(sess.DS)
	metrics.CommitObserved(err == nil, time.Since(start).Seconds())
	if err != nil {
		return common.NewCommitResponse(err)
	}
	for _, mod := range modules {
		p.eng.Notify.Dispatch(mod, notify.EventModuleChange, "")
	}
	return common.NewCommitResponse(nil)
}

func (p *Processor) handleDiscardChanges(sess *sessionmgr.Session) *common.Message {
	sess.DS.DiscardChanges()
	return common.NewDiscardChangesResponse(nil)
}

func (p *Processor) handleCopyConfig(sess *sessionmgr.Session, req *common.Message) *common.Message {
	err := p.eng.Data.CopyConfig(req.Module, datastore.Kind(req.Flags), datastore.Kind(req.Target))
	return common.NewCopyConfigResponse(errIface(err))
}

func (p *Processor) handleLockModule(sess *sessionmgr.Session, req *common.Message) *common.Message {
	ok, err := p.eng.Data.LockModule(sess.Owner, req.Module)
	return common.NewLockModuleResponse(ok, errIface(err))
}

func (p *Processor) handleUnlockModule(sess *sessionmgr.Session, req *common.Message) *common.Message {
	ok, err := p.eng.Data.UnlockModule(sess.Owner, req.Module)
	return common.NewUnlockModuleResponse(ok, errIface(err))
}

func (p *Processor) handleLockDatastore(sess *sessionmgr.Session) *common.Message {
	ok, err := p.eng.Data.LockDatastore(sess.Owner)
	return common.NewLockDatastoreResponse(ok, errIface(err))
}

func (p *Processor) handleUnlockDatastore(sess *sessionmgr.Session) *common.Message {
	ok, err := p.eng.Data.UnlockDatastore(sess.Owner)
	return common.NewUnlockDatastoreResponse(ok, errIface(err))
}

func (p *Processor) handleListSchemas() *common.Message {
	return common.NewListSchemasResponse(p.eng.Data.ListSchemas(), nil)
}

func (p *Processor) handleSubscribe(sess *sessionmgr.Session, req *common.Message) *common.Message {
	p.eng.Notify.Subscribe(req.Module, eventFromWire(req.Event), notifyDest(sess), req.Durable)
	return common.NewSubscribeResponse(nil)
}

func (p *Processor) handleUnsubscribe(sess *sessionmgr.Session, req *common.Message) *common.Message {
	p.eng.Notify.Unsubscribe(notifyDest(sess), req.Module)
	return common.NewUnsubscribeResponse(nil)
}

// handleRPCSend delivers an RPC invocation to any session subscribed to
// module's rpc event and echoes the invocation value back as the reply.
// This is the stub round-trip named in the design notes: the wire protocol
// has no request-correlation id, so an already-connected subscriber has no
// way to push a reply back out of band on its own connection. A full
// bidirectional RPC channel is explicitly out of scope; this still
// notifies every subscriber that the call happened before replying.
func (p *Processor) handleRPCSend(sess *sessionmgr.Session, req *common.Message) *common.Message {
	subs := p.eng.Notify.Subscribers(req.Module)
	found := false
	for _, s := range subs {
		if s.Event == notify.EventRPC {
			found = true
			break
		}
	}
	if !found {
		return common.NewRPCSendResponse(nil, srerr.New(srerr.NotFound, "no rpc subscriber for module %s", req.Module))
	}
	p.eng.Notify.Dispatch(req.Module, notify.EventRPC, req.Path)
	return common.NewRPCSendResponse(req.Value, nil)
}

func toWireValue(v tree.Value, node *schema.Node) common.Value {
	wv := common.Value{
		Str:      v.Str,
		Bin:      v.Bin,
		Bool:     v.Bool,
		Int:      v.Int,
		Uint:     v.Uint,
		Mantissa: v.Mantissa,
	}
	if node != nil {
		wv.Type = uint8(node.Type)
		wv.Scale = node.Scale
	}
	return wv
}

func notifyDest(sess *sessionmgr.Session) notify.Destination {
	return notify.Destination{ConnID: sess.ConnID, SessionID: sess.ID}
}

func eventFromWire(s string) notify.Event {
	return notify.Event(s)
}

func fromWireValue(v *common.Value) tree.Value {
	if v == nil {
		return tree.Value{}
	}
	return tree.Value{
		Str:      v.Str,
		Bin:      v.Bin,
		Bool:     v.Bool,
		Int:      v.Int,
		Uint:     v.Uint,
		Mantissa: v.Mantissa,
	}
}
