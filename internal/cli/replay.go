package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/tapestry/internal/canvas"
	"github.com/roach88/tapestry/internal/op"
	"github.com/roach88/tapestry/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Program  string
}

// ReplayResult holds the outcome of replaying one program's history.
type ReplayResult struct {
	Program       string `json:"program"`
	Toplevels     int    `json:"toplevels"`
	Live          int    `json:"live"`
	Deleted       int    `json:"deleted"`
	Ops           int    `json:"ops"`
	Warnings      int    `json:"warnings"`
	Deterministic bool   `json:"deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Refold a program's history and verify determinism",
		Long: `Fold the program's stored oplists twice and verify both folds
materialize identical toplevels.

Exit codes:
  0 - Replay is deterministic
  1 - The two folds diverged
  2 - Command error (database not found, etc.)

Examples:
  tapestry replay --db ./tapestry.db --program 7f9c...
  tapestry replay --db ./tapestry.db --program 7f9c... --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Program, "program", "", "program id (required)")
	_ = cmd.MarkFlagRequired("program")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	program, err := uuid.Parse(opts.Program)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid program id", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "open database", err)
	}
	defer st.Close()

	stored, err := st.LoadOplists(ctx, program, nil, true)
	if err != nil {
		return WrapExitError(ExitCommandError, "load oplists", err)
	}

	lists := make([]op.Oplist, 0, len(stored))
	totalOps := 0
	for _, tl := range stored {
		lists = append(lists, op.Oplist{Ops: tl.Ops})
		totalOps += len(tl.Ops)
	}

	first, err := canvas.Fold(canvas.New(), lists)
	if err != nil {
		return WrapExitError(ExitCommandError, "fold history", err)
	}
	second, err := canvas.Fold(canvas.New(), lists)
	if err != nil {
		return WrapExitError(ExitCommandError, "refold history", err)
	}

	result := ReplayResult{
		Program:       program.String(),
		Toplevels:     len(first.Canvas.TLIDs()),
		Live:          len(first.Canvas.Live),
		Deleted:       len(first.Canvas.Deleted),
		Ops:           totalOps,
		Warnings:      len(first.Warnings),
		Deterministic: sameSnapshot(first.Canvas, second.Canvas),
	}

	if opts.Format == "json" {
		if err := printJSON(cmd.OutOrStdout(), result); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Program %s: %d toplevels (%d live, %d deleted), %d ops, %d warnings.\n",
			result.Program, result.Toplevels, result.Live, result.Deleted, result.Ops, result.Warnings)
		if result.Deterministic {
			fmt.Fprintln(cmd.OutOrStdout(), "Replay is deterministic.")
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "Replay DIVERGED between folds.")
		}
	}

	if !result.Deterministic {
		return NewExitError(ExitFailure, "replay diverged")
	}
	return nil
}

// sameSnapshot compares two folded canvases by toplevel digest.
func sameSnapshot(a, b *canvas.Canvas) bool {
	if len(a.Live) != len(b.Live) || len(a.Deleted) != len(b.Deleted) {
		return false
	}
	for id, tl := range a.Live {
		other, ok := b.Live[id]
		if !ok || tl.Digest() != other.Digest() {
			return false
		}
	}
	for id, tl := range a.Deleted {
		other, ok := b.Deleted[id]
		if !ok || tl.Digest() != other.Digest() {
			return false
		}
	}
	return true
}
