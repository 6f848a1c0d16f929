package cli

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/rollcall/internal/config"
	"github.com/roach88/rollcall/internal/device/zk"
	"github.com/roach88/rollcall/internal/engine"
	"github.com/roach88/rollcall/internal/roster"
)

// FetchOptions holds flags for the fetch command.
type FetchOptions struct {
	*RootOptions
	Device string
	Roster string
	Out    string
}

// NewFetchCommand creates the fetch command: a one-shot dump of the
// terminal's raw attendance log.
func NewFetchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FetchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Dump the terminal's raw attendance log to CSV",
		Long: `Connect to the terminal once, read its full attendance log and write
it as CSV (id,name,timestamp,status). Names come from the roster when
one is available; unmatched ids are written as Unknown.

Example:
  rollcall fetch --device 192.168.1.201:4370 --out attendance.csv
  rollcall fetch --out - > attendance.csv`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Device, "device", "", "terminal address (host:port)")
	cmd.Flags().StringVar(&opts.Roster, "roster", "", "path to roster CSV for name mapping")
	cmd.Flags().StringVar(&opts.Out, "out", "attendance.csv", `output file ("-" for stdout)`)

	return cmd
}

func runFetch(cmd *cobra.Command, opts *FetchOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	if cmd.Flags().Changed("device") {
		cfg.Device.Addr = opts.Device
	}
	if cmd.Flags().Changed("roster") {
		cfg.Paths.Roster = opts.Roster
	}

	// Missing roster is tolerated here: the dump still carries the ids.
	var names *roster.Roster
	if r, err := roster.Load(cfg.Paths.Roster); err != nil {
		slog.Warn("roster not loaded, names will not be mapped", "path", cfg.Paths.Roster, "error", err)
	} else {
		names = r
	}

	sess, err := dialDevice(cmd, cfg)
	if err != nil {
		return WrapExitError(ExitFailure, "connect to terminal", err)
	}
	defer sess.Close()

	events, err := sess.Attendance(cmd.Context())
	if err != nil {
		return WrapExitError(ExitFailure, "read attendance log", err)
	}

	out, closeOut, err := openOutput(cmd, opts.Out)
	if err != nil {
		return WrapExitError(ExitCommandError, "open output", err)
	}
	defer closeOut()

	w := csv.NewWriter(out)
	if err := w.Write([]string{"id", "name", "timestamp", "status"}); err != nil {
		return WrapExitError(ExitFailure, "write output", err)
	}
	for _, ev := range events {
		name := "Unknown"
		if names != nil {
			if p, ok := names.Lookup(ev.PersonID); ok {
				name = p.Name
			}
		}
		record := []string{
			strconv.FormatInt(ev.PersonID, 10),
			name,
			ev.Time.Format(engine.TimeFormat),
			strconv.Itoa(int(ev.Status)),
		}
		if err := w.Write(record); err != nil {
			return WrapExitError(ExitFailure, "write output", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return WrapExitError(ExitFailure, "write output", err)
	}

	if opts.Out == "-" {
		slog.Info("attendance dumped", "records", len(events))
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d attendance records to %s\n", len(events), opts.Out)
	}
	return nil
}

func dialDevice(cmd *cobra.Command, cfg config.Config) (*zk.Session, error) {
	loc, err := cfg.DeviceLocation()
	if err != nil {
		return nil, err
	}
	client := &zk.Client{
		Addr:     cfg.Device.Addr,
		Timeout:  cfg.DeviceTimeout(),
		Location: loc,
	}
	return client.Dial(cmd.Context())
}

func openOutput(cmd *cobra.Command, path string) (io.Writer, func(), error) {
	if path == "-" {
		return cmd.OutOrStdout(), func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}
