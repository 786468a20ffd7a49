// Package common provides the wire protocol and configuration structures
// shared between the sysrepod daemon and its clients.
//
// The package focuses on:
//   - Message protocol definition for request/response/notification traffic
//     over the AF_UNIX transport
//   - Configuration structures for the daemon and for clients
//
// Key Components:
//
//   - Message: Core data structure for all RPC communication between
//     components, with a flexible structure that adapts to different
//     operation types. Includes factory methods for creating various
//     request and response messages.
//
//   - MessageType: Enumeration defining all supported operations, grouped
//     into session lifecycle, data manager reads/writes, lock manager,
//     schema, and notification operations.
//
//   - ServerConfig: Daemon configuration — listen socket, data directory,
//     message size limit, and logging.
//
//   - ClientConfig: Configuration for client components, controlling
//     connection parameters, timeouts, and retry behavior.
package common
