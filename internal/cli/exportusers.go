package cli

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/rollcall/internal/config"
)

// ExportUsersOptions holds flags for the export-users command.
type ExportUsersOptions struct {
	*RootOptions
	Device string
	Out    string
}

// NewExportUsersCommand creates the export-users command, which seeds
// the roster CSV from the terminal's own user table.
func NewExportUsersCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportUsersOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export-users",
		Short: "Export the terminal's user table as a roster CSV",
		Long: `Connect to the terminal once, read its enrolled users and write them
as a roster CSV (id,name), sorted by id. The result is a usable
starting point for the run command's --roster file.

Example:
  rollcall export-users --device 192.168.1.201:4370 --out users.csv`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExportUsers(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Device, "device", "", "terminal address (host:port)")
	cmd.Flags().StringVar(&opts.Out, "out", "users.csv", `output file ("-" for stdout)`)

	return cmd
}

func runExportUsers(cmd *cobra.Command, opts *ExportUsersOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	if cmd.Flags().Changed("device") {
		cfg.Device.Addr = opts.Device
	}

	sess, err := dialDevice(cmd, cfg)
	if err != nil {
		return WrapExitError(ExitFailure, "connect to terminal", err)
	}
	defer sess.Close()

	users, err := sess.Users(cmd.Context())
	if err != nil {
		return WrapExitError(ExitFailure, "read user table", err)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })

	out, closeOut, err := openOutput(cmd, opts.Out)
	if err != nil {
		return WrapExitError(ExitCommandError, "open output", err)
	}
	defer closeOut()

	w := csv.NewWriter(out)
	if err := w.Write([]string{"id", "name"}); err != nil {
		return WrapExitError(ExitFailure, "write output", err)
	}
	for _, u := range users {
		if err := w.Write([]string{strconv.FormatInt(u.ID, 10), u.Name}); err != nil {
			return WrapExitError(ExitFailure, "write output", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return WrapExitError(ExitFailure, "write output", err)
	}

	if opts.Out == "-" {
		slog.Info("users exported", "users", len(users))
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d users to %s\n", len(users), opts.Out)
	}
	return nil
}
