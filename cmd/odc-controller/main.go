// Command odc-controller is the long-running partition-control-plane
// daemon: it loads configuration, builds a PartitionController, restores
// any partitions recorded in the restore file, and serves the gRPC
// transport-level server until it receives a termination signal.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/o2control/odc/internal/config"
	"github.com/o2control/odc/internal/controller"
	"github.com/o2control/odc/internal/logging"
	"github.com/o2control/odc/internal/occontext"
	"github.com/o2control/odc/internal/restore"
	"github.com/o2control/odc/internal/rpcserver"
	"github.com/o2control/odc/internal/scheduler"
	"github.com/o2control/odc/internal/topology"
	"github.com/o2control/odc/internal/transport"
	"github.com/o2control/odc/internal/trigger"
)

func main() {
	if err := run(); err != nil {
		log.WithError(err).Fatal("odc-controller exiting")
	}
}

func run() error {
	fs := pflag.NewFlagSet("odc-controller", pflag.ExitOnError)
	configDir := config.BindFlags(fs)
	logLevel := fs.String("logLevel", "info", "logrus level")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}

	if err := logging.ConfigureApplicationLogging(*logLevel); err != nil {
		return err
	}

	dir := *configDir
	if dir == "" {
		dir = "."
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}

	ctrl := buildController(cfg)

	ctx := occontext.Background()
	if err := ctrl.LoadRestoreFile(ctx); err != nil {
		ctx.Log.WithError(err).Warn("restore-file reattach pass failed")
	}

	registry := prometheus.NewRegistry()
	grpcServer := rpcserver.NewServer(registry)
	if err := rpcserver.Listen(cfg.GrpcListenAddress, grpcServer); err != nil {
		return err
	}
	rpcserver.ServeMetrics(cfg.MetricsListenAddress, registry)
	ctx.Log.WithFields(log.Fields{
		"grpc":    cfg.GrpcListenAddress,
		"metrics": cfg.MetricsListenAddress,
	}).Info("odc-controller listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx.Log.Info("shutting down")
	grpcServer.GracefulStop()
	return nil
}

func buildController(cfg config.Config) *controller.PartitionController {
	var restoreStore *restore.Store
	var history *restore.History
	if cfg.RestoreFileEnabled {
		restoreStore = restore.NewStore(cfg.RestoreFilePath)
	}
	if cfg.HistoryFilePath != "" {
		history = restore.NewHistory(cfg.HistoryFilePath)
	}

	triggers := trigger.New(cfg.RequestTriggers, cfg.ScriptTimeout)

	return controller.New(
		topology.YAMLReader{},
		func() scheduler.AgentScheduler { return scheduler.NewFakeScheduler() },
		func() transport.CommandTransport { return transport.NewFakeTransport() },
		restoreStore,
		cfg.RestoreFileEnabled,
		history,
		triggers,
		cfg.DefaultTimeout,
		cfg.ScriptTimeout,
		cfg.ResourcePluginDir,
	)
}
