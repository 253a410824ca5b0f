package cli

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/tapestry/internal/compiler"
	"github.com/roach88/tapestry/internal/engine"
	"github.com/roach88/tapestry/internal/op"
	"github.com/roach88/tapestry/internal/store"
)

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	*RootOptions
	Database string
	SeedFile string
	Program  string
}

// SeedResult holds the outcome of seeding a program.
type SeedResult struct {
	Program string  `json:"program"`
	TLIDs   []int64 `json:"tlids"`
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Compile a CUE seed into a new program",
		Long: `Compile a declarative CUE seed into oplists and apply them.

Without --program a fresh program id is minted and printed.

Examples:
  tapestry seed --db ./tapestry.db --seed ./blog.cue
  tapestry seed --db ./tapestry.db --seed ./blog.cue --program 7f9c...`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.SeedFile, "seed", "", "path to CUE seed file (required)")
	_ = cmd.MarkFlagRequired("seed")
	cmd.Flags().StringVar(&opts.Program, "program", "", "existing program id to seed into")

	return cmd
}

func runSeed(opts *SeedOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	program := uuid.New()
	if opts.Program != "" {
		parsed, err := uuid.Parse(opts.Program)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid program id", err)
		}
		program = parsed
	}

	lists, err := compiler.CompileSeedFile(opts.SeedFile, randomTLIDs())
	if err != nil {
		return WrapExitError(ExitCommandError, "compile seed", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "open database", err)
	}
	defer st.Close()

	res, err := engine.New(st).Submit(ctx, program, lists)
	if err != nil {
		return WrapExitError(ExitCommandError, "apply seed", err)
	}

	result := SeedResult{Program: program.String(), TLIDs: make([]int64, 0, len(res.Changed))}
	for _, id := range res.Changed {
		result.TLIDs = append(result.TLIDs, int64(id))
	}

	if opts.Format == "json" {
		return printJSON(cmd.OutOrStdout(), result)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Seeded program %s with %d toplevels.\n", result.Program, len(result.TLIDs))
	if opts.Verbose {
		for _, id := range result.TLIDs {
			fmt.Fprintf(cmd.OutOrStdout(), "  tlid %d\n", id)
		}
	}
	return nil
}

// randomTLIDs mints positive random toplevel ids. Collisions within one
// seed are vanishingly unlikely but checked anyway.
func randomTLIDs() compiler.NextTLID {
	seen := make(map[op.TLID]bool)
	return func() op.TLID {
		for {
			id := op.TLID(rand.Int64N(1<<62) + 1)
			if !seen[id] {
				seen[id] = true
				return id
			}
		}
	}
}
