package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/rollcall/internal/config"
	"github.com/roach88/rollcall/internal/device/zk"
	"github.com/roach88/rollcall/internal/engine"
	"github.com/roach88/rollcall/internal/ledger"
	"github.com/roach88/rollcall/internal/metrics"
	"github.com/roach88/rollcall/internal/store"
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Poll the terminal and maintain the daily attendance ledger",
		Long: `Start the attendance poller.

The poller reads the roster CSV, opens (creating if needed) the SQLite
state database, materializes today's attendance CSV, then polls the
terminal on an interval, marking each person present the first time
they scan on a given day. It is safe to stop and restart at any time.

Example:
  rollcall run --device 192.168.1.201:4370 --roster users.csv --out ./days
  rollcall run --config rollcall.yml --verbose`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPoller(cmd, rootOpts)
		},
	}

	cmd.Flags().String("device", "", "terminal address (host:port)")
	cmd.Flags().Int("interval", 0, "poll interval in seconds")
	cmd.Flags().Int("rollover-hour", 0, "hour at which a new attendance day starts")
	cmd.Flags().String("roster", "", "path to roster CSV (id,name)")
	cmd.Flags().String("out", "", "directory for per-day attendance CSVs")
	cmd.Flags().String("db", "", "path to SQLite state database")
	cmd.Flags().String("metrics-listen", "", "serve Prometheus metrics on this address")

	return cmd
}

// resolveConfig layers flag values over the loaded configuration.
// Only flags the user actually set override the file.
func resolveConfig(cmd *cobra.Command, configPath string) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("device") {
		cfg.Device.Addr, _ = flags.GetString("device")
	}
	if flags.Changed("interval") {
		cfg.Poll.IntervalSeconds, _ = flags.GetInt("interval")
	}
	if flags.Changed("rollover-hour") {
		cfg.Poll.RolloverHour, _ = flags.GetInt("rollover-hour")
	}
	if flags.Changed("roster") {
		cfg.Paths.Roster, _ = flags.GetString("roster")
	}
	if flags.Changed("out") {
		cfg.Paths.OutputDir, _ = flags.GetString("out")
	}
	if flags.Changed("db") {
		cfg.Paths.State, _ = flags.GetString("db")
	}
	if flags.Changed("metrics-listen") {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Listen, _ = flags.GetString("metrics-listen")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func runPoller(cmd *cobra.Command, rootOpts *RootOptions) error {
	cfg, err := resolveConfig(cmd, rootOpts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	loc, err := cfg.DeviceLocation()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	slog.Info("opening state database", "path", cfg.Paths.State)
	st, err := store.Open(cfg.Paths.State)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open state database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing state database", "error", closeErr)
		}
	}()

	collector := metrics.NewCollector()
	if cfg.Metrics.Enabled {
		startMetricsServer(cfg.Metrics.Listen, collector)
	}

	source := &zk.Client{
		Addr:     cfg.Device.Addr,
		Timeout:  cfg.DeviceTimeout(),
		Location: loc,
	}

	eng := engine.New(st, ledger.New(cfg.Paths.OutputDir), source, collector, engine.Config{
		PollInterval: cfg.PollInterval(),
		RolloverHour: cfg.Poll.RolloverHour,
		RosterPath:   cfg.Paths.Roster,
	}, nil)

	ctx, cancel := signalContext(cmd)
	defer cancel()

	slog.Info("poller starting",
		"device", cfg.Device.Addr,
		"interval", cfg.PollInterval(),
		"rollover_hour", cfg.Poll.RolloverHour,
		"out", cfg.Paths.OutputDir)

	if err := eng.Run(ctx); err != nil && err != context.Canceled && err != context.DeadlineExceeded {
		return WrapExitError(ExitFailure, "poller error", err)
	}

	slog.Info("poller stopped gracefully")
	return nil
}

// signalContext derives a context cancelled by SIGINT/SIGTERM from the
// command's context (which tests may pre-wire).
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

func startMetricsServer(listen string, collector *metrics.Collector) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	srv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("metrics listening", "addr", listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server failed", "error", err)
		}
	}()
}
