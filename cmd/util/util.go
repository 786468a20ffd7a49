package util

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sysrepo-go/sysrepod/rpc/common"
	"github.com/sysrepo-go/sysrepod/rpc/serializer"
	"github.com/sysrepo-go/sysrepod/rpc/transport"
	"github.com/sysrepo-go/sysrepod/rpc/transport/unix"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupRPCClientFlags adds the connection flags sysrepocfg's subcommands
// share: there is exactly one transport (AF_UNIX), so unlike the teacher's
// http/tcp/unix menu there is nothing left to select here beyond the socket
// path and retry/timeout behaviour.
func SetupRPCClientFlags(cmd *cobra.Command) {
	key := "socket"
	cmd.PersistentFlags().String(key, "/var/run/sysrepod/sysrepod.sock", WrapString("Path to the sysrepod AF_UNIX socket"))

	key = "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("The timeout in seconds of the client"))

	key = "retries"
	cmd.PersistentFlags().Int(key, 3, WrapString("How many times to retry a request"))

	key = "connections"
	cmd.PersistentFlags().Int(key, 1, WrapString("Simultaneous connections to the socket"))

	key = "serializer"
	cmd.PersistentFlags().String(key, "binary", WrapString("Wire serializer to use (binary, json, gob)"))
}

// InitClientConfig initializes configuration from environment variables and
// .env files, matching the teacher's cmd/util.go convention.
func InitClientConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("sysrepod")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// GetClientConfig reads client configuration from viper.
func GetClientConfig() *common.ClientConfig {
	return &common.ClientConfig{
		SocketPath:             viper.GetString("socket"),
		TimeoutSecond:          viper.GetInt("timeout"),
		RetryCount:             viper.GetInt("retries"),
		ConnectionsPerEndpoint: viper.GetInt("connections"),
	}
}

// GetSerializer creates a serializer based on configuration.
func GetSerializer() (serializer.IRPCSerializer, error) {
	switch viper.GetString("serializer") {
	case "json":
		return serializer.NewJSONSerializer(), nil
	case "gob":
		return serializer.NewGOBSerializer(), nil
	case "binary":
		return serializer.NewBinarySerializer(), nil
	default:
		return nil, fmt.Errorf("invalid serializer %s", viper.GetString("serializer"))
	}
}

// GetTransport builds the client transport. There is one AF_UNIX
// implementation; kept as a function rather than a direct constructor call
// at each call site so sysrepocfg's subcommands don't each import
// rpc/transport/unix themselves.
func GetTransport() transport.IRPCClientTransport {
	return unix.NewUnixClientTransport()
}

// BindCommandFlags binds a command's flags to viper.
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
