// Command sysrepod is the datastore daemon: it loads the configured schema
// modules, opens the AF_UNIX listener, and serves get/set/commit/lock/
// subscribe requests until terminated.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sysrepo-go/sysrepod/cmd/util"
	"github.com/sysrepo-go/sysrepod/connmgr"
	"github.com/sysrepo-go/sysrepod/engine"
	"github.com/sysrepo-go/sysrepod/metrics"
	"github.com/sysrepo-go/sysrepod/modules"
	"github.com/sysrepo-go/sysrepod/rpc/common"
	"github.com/sysrepo-go/sysrepod/srlog"
)

var log = srlog.Get("sysrepod")

var rootCmd = &cobra.Command{
	Use:   "sysrepod",
	Short: "YANG-modelled configuration datastore daemon",
	Long: `sysrepod serves the configuration and operational datastores over a
single AF_UNIX socket: sessions, get/set/delete, commit/validate/discard,
module and datastore locking, schema introspection, and subscriptions.`,
	PreRunE: processConfig,
	RunE:    run,
}

var config common.ServerConfig

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("socket", "/var/run/sysrepod/sysrepod.sock", util.WrapString("Path to the AF_UNIX socket to listen on"))
	flags.Uint32("socket-mode", 0666, util.WrapString("Permission bits applied to the socket after bind"))
	flags.String("data-dir", "/var/lib/sysrepod", util.WrapString("Directory holding per-module datastore and operation-log files"))
	flags.Uint32("max-msg-size", 262144, util.WrapString("Maximum accepted frame size in bytes"))
	flags.Int64("timeout", 30, util.WrapString("Socket read/write deadline in seconds for each frame (0 disables)"))
	flags.String("serializer", "binary", util.WrapString("Wire serializer to use (binary, json, gob)"))
	flags.Int("buffer-size", 64*1024, util.WrapString("Per-connection read buffer size in bytes"))
	flags.Int("workers-per-conn", 32, util.WrapString("Bounded worker pool size per connection"))
	flags.String("log-level", "info", util.WrapString("Log level (debug, info, warn, error, critical)"))
	flags.String("metrics-addr", "", util.WrapString("If set, serve Prometheus-format metrics on this address (e.g. :9100)"))
	flags.String("pidfile", "/var/run/sysrepod/sysrepod.pid", util.WrapString("Pidfile path, locked for the life of the daemon"))
	flags.String("log-file", "/var/log/sysrepod.log", util.WrapString("Log file used when daemonized"))
	flags.BoolP("daemonize", "d", false, util.WrapString("Fork into the background and detach from the controlling terminal"))
}

func initConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("sysrepod")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func processConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	config = common.ServerConfig{
		SocketPath:     viper.GetString("socket"),
		SocketMode:     viper.GetUint32("socket-mode"),
		DataDir:        viper.GetString("data-dir"),
		MaxMessageSize: viper.GetUint32("max-msg-size"),
		TimeoutSecond:  viper.GetInt64("timeout"),
		LogLevel:       viper.GetString("log-level"),
		MetricsAddr:    viper.GetString("metrics-addr"),
	}

	level, err := srlog.ParseLevel(config.LogLevel)
	if err != nil {
		return err
	}
	srlog.SetGlobalLevel(level)

	return nil
}

func run(_ *cobra.Command, _ []string) error {
	if viper.GetBool("daemonize") && os.Getenv("SYSREPOD_DAEMONIZED") == "" {
		return daemonize(viper.GetString("log-file"))
	}

	pf, err := acquirePidFile(viper.GetString("pidfile"))
	if err != nil {
		return err
	}
	defer pf.Release()

	if err := os.MkdirAll(config.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	log.Infof("%s", config.String())

	dispatcher := &connmgr.LateDispatcher{}
	eng, srErr := engine.New(engine.Config{DataDir: config.DataDir, Modules: modules.Builtin()}, dispatcher)
	if srErr != nil {
		return fmt.Errorf("engine init: %w", srErr)
	}

	loop := connmgr.New(eng, viper.GetInt("buffer-size"), viper.GetInt("workers-per-conn"), s)
	dispatcher.Bind(loop)

	if config.MetricsAddr != "" {
		go func() {
			log.Infof("serving metrics on %s", config.MetricsAddr)
			srv := &http.Server{Addr: config.MetricsAddr, Handler: metrics.Handler()}
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Errorf("metrics listener failed: %v", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() { serveErr <- loop.Serve(config) }()

	select {
	case <-ctx.Done():
		log.Infof("received shutdown signal")
		return nil
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		srlog.Get("sysrepod").Errorf("%v", err)
		os.Exit(1)
	}
}
