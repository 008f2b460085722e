// Command boardcore operates a persisted board: it applies issue updates,
// moves and removes issues, prints the board and change feed, and manages
// snapshots and snapshot archives.
//
// Storage and archive backends are selected through the BOARDCORE_* environment
// variables documented on core.OpenSnapshotStore and blob.Open.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"boardcore/internal/blob"
	"boardcore/internal/columns"
	"boardcore/internal/core"
)

var exitFunc = os.Exit

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		exitFunc(1)
	}
}

// app carries the service shared by every subcommand of one invocation.
type app struct {
	stdin   io.Reader
	stdout  io.Writer
	logger  *slog.Logger
	columns *columns.Columns
	svc     *core.Service
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	a := &app{stdin: stdin, stdout: stdout}
	root := newRootCmd(a, stderr)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	if cerr := a.close(); err == nil {
		err = cerr
	}
	return err
}

func newRootCmd(a *app, stderr io.Writer) *cobra.Command {
	var logLevel string
	var archive bool
	root := &cobra.Command{
		Use:           "boardcore",
		Short:         "Operate a persisted issue board",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var level slog.Level
			if err := level.UnmarshalText([]byte(logLevel)); err != nil {
				return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
			}
			a.logger = slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: level}))
			return a.open(cmd.Context(), archive || strings.HasPrefix(cmd.CommandPath(), "boardcore archive"))
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn or error")
	root.PersistentFlags().BoolVar(&archive, "archive", false, "also write a compressed snapshot archive after mutations")

	root.AddCommand(
		newApplyCmd(a),
		newMoveCmd(a),
		newRemoveCmd(a),
		newBoardCmd(a),
		newChangesCmd(a),
		newSnapshotCmd(a),
		newArchiveCmd(a),
	)
	return root
}

func (a *app) open(ctx context.Context, withArchive bool) error {
	cols, err := columns.Load(os.Getenv("BOARDCORE_COLUMNS_FILE"))
	if err != nil {
		return err
	}
	a.columns = cols
	snapshots, err := core.OpenSnapshotStore(ctx, a.logger)
	if err != nil {
		return fmt.Errorf("open snapshot store: %w", err)
	}
	opts := []core.Option{
		core.WithLogger(core.NewSlogLogger(a.logger)),
		core.WithColumns(cols),
		core.WithSnapshotStore(snapshots),
	}
	if withArchive {
		blobs, err := blob.Open(ctx)
		if err != nil {
			_ = snapshots.Close()
			return fmt.Errorf("open blob store: %w", err)
		}
		opts = append(opts, core.WithArchiver(core.NewArchiver(blobs, core.NewSlogLogger(a.logger))))
	}
	a.svc = core.NewService(opts...)
	if err := a.svc.Load(ctx); err != nil {
		_ = a.svc.Close()
		a.svc = nil
		return fmt.Errorf("load board: %w", err)
	}
	return nil
}

func (a *app) close() error {
	if a.svc == nil {
		return nil
	}
	err := a.svc.Close()
	a.svc = nil
	return err
}
