package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/switchboard/pkg/cli"
	"mercator-hq/switchboard/pkg/config"
	"mercator-hq/switchboard/pkg/gateway"
	"mercator-hq/switchboard/pkg/server"
	"mercator-hq/switchboard/pkg/telemetry/logging"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
	noWatch       bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the gateway",
	Long: `Start the gateway with the specified configuration.

The gateway serves POST /v1/route together with the admin endpoints
(/status, /backends/{id}/enable|disable, /healthz, /readyz, /metrics) on the
configured listen address. The configuration file is watched and backend
enabled flags are applied live.

Examples:
  # Start with default config
  switchboard run

  # Start with custom config
  switchboard run --config /etc/switchboard/config.yaml

  # Override listen address
  switchboard run --listen 0.0.0.0:8080

  # Validate config and build every component without serving
  switchboard run --dry-run`,
	RunE: runGateway,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "build every component, then exit without serving")
	runCmd.Flags().BoolVar(&runFlags.noWatch, "no-watch", false, "do not watch the config file for changes")
}

func runGateway(cmd *cobra.Command, args []string) error {
	if err := config.Initialize(cfgFile); err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := config.GetConfig()

	if runFlags.listenAddress != "" {
		cfg.Admin.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	if _, err := logging.Setup(cfg.Telemetry.Logging, os.Stderr); err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Switchboard v%s\n", Version)
	fmt.Fprintf(out, "Loading configuration from: %s\n", cfgFile)

	gw, err := gateway.New(cfg, gateway.WithVersion(Version))
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Admin.ShutdownTimeout)
		defer cancel()
		if err := gw.Close(closeCtx); err != nil {
			slog.Error("gateway close failed", "error", err)
		}
	}()

	fmt.Fprintf(out, "✓ Backends initialized (%d backends)\n", len(cfg.Backends))
	if cfg.Cache.Enabled {
		fmt.Fprintf(out, "✓ Response cache enabled (%s)\n", cfg.Cache.Backend)
	}
	fmt.Fprintf(out, "✓ Audit store initialized (%s)\n", cfg.Audit.Backend)

	if runFlags.dryRun {
		fmt.Fprintln(out, "✓ Configuration valid")
		return nil
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	if err := gw.Start(ctx); err != nil {
		slog.Warn("failed to start retention scheduler", "error", err)
	}

	if !runFlags.noWatch {
		go func() {
			if err := gw.Watch(ctx, cfgFile); err != nil && !errors.Is(err, context.Canceled) {
				slog.Warn("config watcher stopped", "path", cfgFile, "error", err)
			}
		}()
	}

	opts := []server.Option{
		server.WithHealth(gw.Health()),
		server.WithBuildInfo(server.BuildInfo{Version: Version, Commit: GitCommit, BuildTime: BuildDate}),
	}
	if cfg.Telemetry.Metrics.Enabled {
		opts = append(opts, server.WithMetrics(cfg.Telemetry.Metrics.Path, gw.Metrics().Handler()))
	}
	srv := server.NewServer(&cfg.Admin, gw, opts...)

	ln, err := net.Listen("tcp", cfg.Admin.ListenAddress)
	if err != nil {
		return cli.NewCommandError("run", fmt.Errorf("failed to listen on %s: %w", cfg.Admin.ListenAddress, err))
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "✓ Listening on %s\n", ln.Addr())
	fmt.Fprintf(out, "✓ Route endpoint: http://%s/v1/route\n", ln.Addr())
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Fprintf(out, "✓ Metrics endpoint: http://%s%s\n", ln.Addr(), cfg.Telemetry.Metrics.Path)
	}
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	start := time.Now()
	if err := srv.Serve(ctx, ln); err != nil {
		return cli.NewCommandError("run", err)
	}

	fmt.Fprintf(out, "\n✓ Server stopped after %s\n", time.Since(start).Round(time.Second))
	return nil
}
