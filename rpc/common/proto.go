package common

import (
	"encoding/json"
	"fmt"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for requests, responses, and
// server-initiated notifications. Which fields are used depends on the
// MsgType.
type Message struct {
	MsgType   MessageType `json:"msg_type"`
	SessionID uint64      `json:"session_id,omitempty"`

	// General fields
	Module    string   `json:"module,omitempty"`    // Used for: schema/lock operations addressed by module
	Path      string   `json:"path,omitempty"`      // Used for: get/set/delete/move/iter operations
	Direction uint8    `json:"direction,omitempty"` // Used for: move_list (datastore.Direction)
	Value     *Value   `json:"value,omitempty"`     // Used for: set (request), get (response)
	Values    []Value  `json:"values,omitempty"`    // Used for: get_items (response)
	Paths     []string `json:"paths,omitempty"`     // Used for: get_items (response), parallel to Values
	Flags     uint8    `json:"flags,omitempty"`     // Used for: set/delete/validate edit flags
	Target    uint8    `json:"target,omitempty"`    // 0=running, 1=candidate, 2=startup
	Owner     []byte   `json:"owner,omitempty"`     // Used for: lock operations

	// Subscription fields
	Event       string `json:"event,omitempty"`
	Durable     bool   `json:"durable,omitempty"`
	IterHandle  string `json:"iter_handle,omitempty"`

	// Response only fields
	Ok   bool     `json:"ok,omitempty"`
	Err  string   `json:"err,omitempty"`
	Errs []string `json:"errs,omitempty"` // Used for: session error-history responses

	// Meta information
	Meta []byte `json:"meta,omitempty"`
}

// Value is the wire representation of a schema-typed scalar.
type Value struct {
	Type     uint8  `json:"type"`
	Str      string `json:"str,omitempty"`
	Bin      []byte `json:"bin,omitempty"`
	Bool     bool   `json:"bool,omitempty"`
	Int      int64  `json:"int,omitempty"`
	Uint     uint64 `json:"uint,omitempty"`
	Mantissa int64  `json:"mantissa,omitempty"`
	Scale    uint8  `json:"scale,omitempty"`
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

func NewSessionStartRequest(target uint8) *Message {
	return &Message{MsgType: MsgTSessionStart, Target: target}
}

func NewSessionStartResponse(sessionID uint64, err error) *Message {
	msg := &Message{MsgType: MsgTSessionStart, SessionID: sessionID}
	setErr(msg, err)
	return msg
}

func NewSessionStopRequest(sessionID uint64) *Message {
	return &Message{MsgType: MsgTSessionStop, SessionID: sessionID}
}

func NewSessionStopResponse(err error) *Message {
	msg := &Message{MsgType: MsgTSessionStop}
	setErr(msg, err)
	return msg
}

func NewGetItemRequest(sessionID uint64, path string) *Message {
	return &Message{MsgType: MsgTGetItem, SessionID: sessionID, Path: path}
}

func NewGetItemResponse(value *Value, err error) *Message {
	msg := &Message{MsgType: MsgTGetItem, Value: value}
	setErr(msg, err)
	return msg
}

func NewGetItemsRequest(sessionID uint64, path string) *Message {
	return &Message{MsgType: MsgTGetItems, SessionID: sessionID, Path: path}
}

func NewGetItemsResponse(paths []string, values []Value, err error) *Message {
	msg := &Message{MsgType: MsgTGetItems, Paths: paths, Values: values}
	setErr(msg, err)
	return msg
}

func NewGetItemsIterRequest(sessionID uint64, path string) *Message {
	return &Message{MsgType: MsgTGetItemsIter, SessionID: sessionID, Path: path}
}

func NewGetItemsIterResponse(handle string, err error) *Message {
	msg := &Message{MsgType: MsgTGetItemsIter, IterHandle: handle}
	setErr(msg, err)
	return msg
}

func NewGetItemNextRequest(sessionID uint64, module, handle string) *Message {
	return &Message{MsgType: MsgTGetItemNext, SessionID: sessionID, Module: module, IterHandle: handle}
}

func NewGetItemNextResponse(path string, err error) *Message {
	msg := &Message{MsgType: MsgTGetItemNext, Path: path}
	setErr(msg, err)
	return msg
}

func NewSetItemRequest(sessionID uint64, path string, value *Value, flags uint8) *Message {
	return &Message{MsgType: MsgTSetItem, SessionID: sessionID, Path: path, Value: value, Flags: flags}
}

func NewSetItemResponse(err error) *Message {
	msg := &Message{MsgType: MsgTSetItem}
	setErr(msg, err)
	return msg
}

func NewDeleteItemRequest(sessionID uint64, path string, flags uint8) *Message {
	return &Message{MsgType: MsgTDeleteItem, SessionID: sessionID, Path: path, Flags: flags}
}

func NewDeleteItemResponse(err error) *Message {
	msg := &Message{MsgType: MsgTDeleteItem}
	setErr(msg, err)
	return msg
}

func NewMoveListRequest(sessionID uint64, path string, direction uint8) *Message {
	return &Message{MsgType: MsgTMoveList, SessionID: sessionID, Path: path, Direction: direction}
}

func NewMoveListResponse(err error) *Message {
	msg := &Message{MsgType: MsgTMoveList}
	setErr(msg, err)
	return msg
}

func NewValidateRequest(sessionID uint64, module string) *Message {
	return &Message{MsgType: MsgTValidate, SessionID: sessionID, Module: module}
}

func NewValidateResponse(err error) *Message {
	msg := &Message{MsgType: MsgTValidate}
	setErr(msg, err)
	return msg
}

func NewCommitRequest(sessionID uint64) *Message {
	return &Message{MsgType: MsgTCommit, SessionID: sessionID}
}

func NewCommitResponse(err error) *Message {
	msg := &Message{MsgType: MsgTCommit}
	setErr(msg, err)
	return msg
}

func NewDiscardChangesRequest(sessionID uint64) *Message {
	return &Message{MsgType: MsgTDiscardChanges, SessionID: sessionID}
}

func NewDiscardChangesResponse(err error) *Message {
	msg := &Message{MsgType: MsgTDiscardChanges}
	setErr(msg, err)
	return msg
}

func NewCopyConfigRequest(sessionID uint64, module string, srcTarget, dstTarget uint8) *Message {
	return &Message{MsgType: MsgTCopyConfig, SessionID: sessionID, Module: module, Target: dstTarget, Flags: srcTarget}
}

func NewCopyConfigResponse(err error) *Message {
	msg := &Message{MsgType: MsgTCopyConfig}
	setErr(msg, err)
	return msg
}

func NewLockModuleRequest(sessionID uint64, module string) *Message {
	return &Message{MsgType: MsgTLockModule, SessionID: sessionID, Module: module}
}

func NewLockModuleResponse(ok bool, err error) *Message {
	msg := &Message{MsgType: MsgTLockModule, Ok: ok}
	setErr(msg, err)
	return msg
}

func NewUnlockModuleRequest(sessionID uint64, module string) *Message {
	return &Message{MsgType: MsgTUnlockModule, SessionID: sessionID, Module: module}
}

func NewUnlockModuleResponse(ok bool, err error) *Message {
	msg := &Message{MsgType: MsgTUnlockModule, Ok: ok}
	setErr(msg, err)
	return msg
}

func NewLockDatastoreRequest(sessionID uint64) *Message {
	return &Message{MsgType: MsgTLockDatastore, SessionID: sessionID}
}

func NewLockDatastoreResponse(ok bool, err error) *Message {
	msg := &Message{MsgType: MsgTLockDatastore, Ok: ok}
	setErr(msg, err)
	return msg
}

func NewUnlockDatastoreRequest(sessionID uint64) *Message {
	return &Message{MsgType: MsgTUnlockDatastore, SessionID: sessionID}
}

func NewUnlockDatastoreResponse(ok bool, err error) *Message {
	msg := &Message{MsgType: MsgTUnlockDatastore, Ok: ok}
	setErr(msg, err)
	return msg
}

func NewListSchemasRequest(sessionID uint64) *Message {
	return &Message{MsgType: MsgTListSchemas, SessionID: sessionID}
}

func NewListSchemasResponse(modules []string, err error) *Message {
	values := make([]Value, len(modules))
	for i, m := range modules {
		values[i] = Value{Str: m}
	}
	msg := &Message{MsgType: MsgTListSchemas, Values: values}
	setErr(msg, err)
	return msg
}

func NewSubscribeRequest(sessionID uint64, module, event string, durable bool) *Message {
	return &Message{MsgType: MsgTSubscribe, SessionID: sessionID, Module: module, Event: event, Durable: durable}
}

func NewSubscribeResponse(err error) *Message {
	msg := &Message{MsgType: MsgTSubscribe}
	setErr(msg, err)
	return msg
}

func NewUnsubscribeRequest(sessionID uint64, module string) *Message {
	return &Message{MsgType: MsgTUnsubscribe, SessionID: sessionID, Module: module}
}

func NewUnsubscribeResponse(err error) *Message {
	msg := &Message{MsgType: MsgTUnsubscribe}
	setErr(msg, err)
	return msg
}

func NewNotification(module, event, path string) *Message {
	return &Message{MsgType: MsgTNotification, Module: module, Event: event, Path: path}
}

func NewRPCSendRequest(sessionID uint64, module, path string, value *Value) *Message {
	return &Message{MsgType: MsgTRPCSend, SessionID: sessionID, Module: module, Path: path, Value: value}
}

func NewRPCSendResponse(value *Value, err error) *Message {
	msg := &Message{MsgType: MsgTRPCSend, Value: value}
	setErr(msg, err)
	return msg
}

func NewErrorResponse(err string) *Message {
	return &Message{MsgType: MsgTError, Err: err}
}

func setErr(msg *Message, err error) {
	if err != nil {
		msg.Err = err.Error()
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

var typeNames = map[MessageType]string{
	MsgTUnknown:         "unknown",
	MsgTSuccess:         "success",
	MsgTError:           "error",
	MsgTSessionStart:    "session_start",
	MsgTSessionStop:     "session_stop",
	MsgTGetItem:         "get_item",
	MsgTGetItems:        "get_items",
	MsgTGetItemsIter:    "get_items_iter",
	MsgTGetItemNext:     "get_item_next",
	MsgTSetItem:         "set_item",
	MsgTDeleteItem:      "delete_item",
	MsgTMoveList:        "move_list",
	MsgTValidate:        "validate",
	MsgTCommit:          "commit",
	MsgTDiscardChanges:  "discard_changes",
	MsgTCopyConfig:      "copy_config",
	MsgTLockModule:      "lock_module",
	MsgTUnlockModule:    "unlock_module",
	MsgTLockDatastore:   "lock_datastore",
	MsgTUnlockDatastore: "unlock_datastore",
	MsgTListSchemas:     "list_schemas",
	MsgTSubscribe:       "subscribe",
	MsgTUnsubscribe:     "unsubscribe",
	MsgTNotification:    "notification",
	MsgTRPCSend:         "rpc_send",
}

func (t MessageType) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return "unknown"
}

func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for k, v := range typeNames {
		if v == s {
			*t = k
			return nil
		}
	}
	return fmt.Errorf("unknown message type: %s", s)
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	MsgTUnknown MessageType = iota
	MsgTSuccess
	MsgTError

	// Session lifecycle

	MsgTSessionStart
	MsgTSessionStop

	// Data Manager read operations

	MsgTGetItem
	MsgTGetItems
	MsgTGetItemsIter
	MsgTGetItemNext

	// Data Manager write operations

	MsgTSetItem
	MsgTDeleteItem
	MsgTMoveList
	MsgTValidate
	MsgTCommit
	MsgTDiscardChanges
	MsgTCopyConfig

	// Lock Manager operations

	MsgTLockModule
	MsgTUnlockModule
	MsgTLockDatastore
	MsgTUnlockDatastore

	// Schema operations

	MsgTListSchemas

	// Notification Processor operations

	MsgTSubscribe
	MsgTUnsubscribe
	MsgTNotification

	// RPC passthrough

	MsgTRPCSend
)
