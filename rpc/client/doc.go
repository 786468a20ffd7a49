// Package client implements the Go SDK for talking to sysrepod: a Session
// type wrapping the wire protocol's request/response pairs behind the
// operations the specification names as the client-facing API (get/set/
// delete, move, commit/validate/discard, module and datastore locking,
// schema listing, and subscriptions).
//
// Usage Example:
//
//	cfg := common.ClientConfig{SocketPath: "/run/sysrepod.sock", TimeoutSecond: 5}
//	sess, err := client.Connect(cfg, unix.NewUnixClientTransport(), serializer.NewBinarySerializer(), datastore.Running)
//	if err != nil {
//		// handle error
//	}
//	defer sess.Stop()
//
//	val, err := sess.GetItem("/example-module:config/name")
//
// Thread Safety:
//
//	A Session is not safe for concurrent use by multiple goroutines; each
//	server-side session already serializes its own requests, and one
//	Session per goroutine is the expected usage pattern.
package client
