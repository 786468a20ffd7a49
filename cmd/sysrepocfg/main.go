// Command sysrepocfg is the control/client CLI for sysrepod: one-shot
// get/set/delete/commit operations and module/datastore locking, each run
// inside its own short-lived session against the daemon's socket.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sysrepo-go/sysrepod/cmd/util"
)

var rootCmd = &cobra.Command{
	Use:   "sysrepocfg",
	Short: "Command-line client for sysrepod",
	Long: `sysrepocfg opens a session against sysrepod's socket, performs one
operation, and closes it again. Use --target to pick running, candidate, or
startup (default running).`,
}

func init() {
	cobra.OnInitialize(util.InitClientConfig)
	util.SetupRPCClientFlags(rootCmd)
	rootCmd.PersistentFlags().String("target", "running", util.WrapString("Datastore to operate on (running, candidate, startup)"))

	rootCmd.AddCommand(dataCmd)
	rootCmd.AddCommand(lockCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
