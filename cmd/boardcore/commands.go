package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"boardcore/internal/core"
	"boardcore/pkg/domain"
)

func newApplyCmd(a *app) *cobra.Command {
	var checkpoint bool
	cmd := &cobra.Command{
		Use:   "apply FILE",
		Short: "Submit newline-delimited JSON issue updates ('-' reads stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := a.stdin
			if args[0] != "-" {
				// #nosec G304 -- operator supplied input file
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			dec := json.NewDecoder(in)
			applied := 0
			for {
				var u domain.Update
				err := dec.Decode(&u)
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return fmt.Errorf("decode update %d: %w", applied+1, err)
				}
				issue, err := a.svc.SubmitUpdate(cmd.Context(), u)
				if err != nil {
					return fmt.Errorf("update %d (%s): %w", applied+1, u.ID, err)
				}
				fmt.Fprintf(a.stdout, "%s\t%s\t%g\n", issue.Key, issue.Column, issue.Order)
				applied++
			}
			if checkpoint {
				if _, err := a.svc.Checkpoint(cmd.Context()); err != nil {
					return err
				}
			}
			a.logger.Info("updates applied", "count", applied)
			return nil
		},
	}
	cmd.Flags().BoolVar(&checkpoint, "checkpoint", false, "checkpoint (and archive with --archive) after applying")
	return cmd
}

func newMoveCmd(a *app) *cobra.Command {
	var before, after, column string
	cmd := &cobra.Command{
		Use:   "move ID",
		Short: "Move an issue between neighbours and optionally to another column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var beforeID, afterID *string
			if before != "" {
				beforeID = &before
			}
			if after != "" {
				afterID = &after
			}
			issue, err := a.svc.SetOrder(cmd.Context(), args[0], beforeID, afterID, column)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "%s\t%s\t%g\n", issue.Key, issue.Column, issue.Order)
			return nil
		},
	}
	cmd.Flags().StringVar(&before, "before", "", "id of the issue that must follow")
	cmd.Flags().StringVar(&after, "after", "", "id of the issue that must precede")
	cmd.Flags().StringVar(&column, "column", "", "target column (default: keep)")
	return cmd
}

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove ID",
		Short: "Remove an issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := a.svc.RemoveIssue(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("issue %s: %w", args[0], domain.ErrNotFound)
			}
			fmt.Fprintf(a.stdout, "removed %s\n", args[0])
			return nil
		},
	}
}

func newBoardCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Print the board grouped by column",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			board := a.svc.Store().Board()
			if asJSON {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(board)
			}
			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			seen := make(map[string]bool)
			printColumn := func(name string) {
				seen[name] = true
				fmt.Fprintf(tw, "%s (%d)\n", name, len(board[name]))
				for _, bi := range board[name] {
					fmt.Fprintf(tw, "  %s\t%s\t%d links\n", bi.Issue.Key, bi.Issue.Title, len(bi.Links))
				}
			}
			for _, col := range a.columns.All() {
				printColumn(col.Name)
			}
			// issues restored into columns that are no longer configured
			for name := range board {
				if !seen[name] {
					printColumn(name)
				}
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the board as JSON")
	return cmd
}

type changesOutput struct {
	Cursor  string               `json:"cursor"`
	Changes []domain.ChangeEntry `json:"changes"`
}

func newChangesCmd(a *app) *cobra.Command {
	var since string
	cmd := &cobra.Command{
		Use:   "changes",
		Short: "Print the change feed after a cursor",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			store := a.svc.Store()
			out := changesOutput{Cursor: store.ChangeCursor(), Changes: store.ChangesSince(since)}
			return json.NewEncoder(a.stdout).Encode(out)
		},
	}
	cmd.Flags().StringVar(&since, "since", "", "cursor returned by a previous call (default: everything)")
	return cmd
}

func newSnapshotCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Export or import board snapshots",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "export [FILE]",
		Short: "Write the snapshot to FILE or stdout",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := a.svc.Export(cmd.Context())
			if err != nil {
				return err
			}
			if len(args) == 0 {
				_, err = fmt.Fprintln(a.stdout, string(data))
				return err
			}
			return os.WriteFile(args[0], data, 0o600)
		},
	}, &cobra.Command{
		Use:   "import FILE",
		Short: "Replace the board with the snapshot in FILE",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// #nosec G304 -- operator supplied snapshot file
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if err := a.svc.Import(cmd.Context(), data); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "imported %d issues\n", a.svc.Store().Len())
			return nil
		},
	})
	return cmd
}

func newArchiveCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Manage compressed snapshot archives in the blob store",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "put",
		Short: "Archive the current snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info, err := a.svc.Archive(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, info.Key)
			return nil
		},
	}, &cobra.Command{
		Use:   "restore KEY",
		Short: "Restore the board from an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.svc.RestoreArchive(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "restored %d issues\n", a.svc.Store().Len())
			return nil
		},
	}, &cobra.Command{
		Use:   "list",
		Short: "List stored archives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			infos, err := a.svc.Archives(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			for _, info := range infos {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", info.Key, info.Size, info.Metadata[core.MetaCursor])
			}
			return tw.Flush()
		},
	})
	return cmd
}
