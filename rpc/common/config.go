package common

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds the daemon's listen socket, data directory, and
// logging settings. There is a single fixed AF_UNIX listener (spec.md §6
// names exactly one transport), so unlike the teacher's sharded/clustered
// config there is no shard routing table here.
type ServerConfig struct {
	// SocketPath is the AF_UNIX socket the daemon listens on.
	SocketPath string
	// SocketMode is the permission bits applied to SocketPath after bind.
	SocketMode uint32
	// DataDir holds the per-module persistence files.
	DataDir string
	// MaxMessageSize caps a single frame's payload, spec.md §6's
	// MAX_MSG_SIZE.
	MaxMessageSize uint32
	// TimeoutSecond, if positive, is the read deadline for each incoming
	// frame (so an idle connection is closed after it) and the write
	// deadline for each response. It does not bound how long a request's
	// handler runs.
	TimeoutSecond int64
	// LogLevel is one of srlog's level names.
	LogLevel string
	// MetricsAddr, if non-empty, serves Prometheus metrics on this address.
	MetricsAddr string
}

// String returns a formatted string representation of the configuration,
// in the same section/field layout the teacher's pretty-printer used.
func (c *ServerConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}
	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("RPC Server")
	addField("Socket Path", c.SocketPath)
	addField("Socket Mode", fmt.Sprintf("%#o", c.SocketMode))
	addField("Max Message Size", fmt.Sprintf("%d bytes", c.MaxMessageSize))
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))

	addSection("Storage")
	addField("Data Directory", c.DataDir)

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	if c.MetricsAddr != "" {
		addSection("Metrics")
		addField("Listen Address", c.MetricsAddr)
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	SocketPath             string
	TimeoutSecond          int
	RetryCount             int
	ConnectionsPerEndpoint int
}

// String returns a formatted string representation of the client
// configuration.
func (c *ClientConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}
	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client Configuration")
	addField("Socket Path", c.SocketPath)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.RetryCount))
	addField("Connections", strconv.Itoa(int(math.Max(1, float64(c.ConnectionsPerEndpoint)))))

	return sb.String()
}
