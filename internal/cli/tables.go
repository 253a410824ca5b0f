package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/tapestry/internal/engine"
	"github.com/roach88/tapestry/internal/store"
)

// TablesOptions holds flags for the tables command.
type TablesOptions struct {
	*RootOptions
	Database string
	Program  string
}

// TableInfo describes one live table.
type TableInfo struct {
	TLID    int64    `json:"tlid"`
	Name    string   `json:"name"`
	Version int      `json:"version"`
	Columns []string `json:"columns"`
	Rows    int64    `json:"rows"`
	Locked  bool     `json:"locked"`
}

// NewTablesCommand creates the tables command.
func NewTablesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TablesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List a program's live tables",
		Long: `List the program's live tables with their columns, row counts,
and lock state. A table with rows at its current version is locked:
its schema cannot be reshaped in place.

Examples:
  tapestry tables --db ./tapestry.db --program 7f9c...
  tapestry tables --db ./tapestry.db --program 7f9c... --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTables(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Program, "program", "", "program id (required)")
	_ = cmd.MarkFlagRequired("program")

	return cmd
}

func runTables(opts *TablesOptions, cmd *cobra.Command) error {
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

	eng := engine.New(st)
	c, err := eng.Load(ctx, program)
	if err != nil {
		return WrapExitError(ExitCommandError, "load program", err)
	}
	data := eng.Data(program)

	infos := make([]TableInfo, 0)
	for _, t := range c.Tables() {
		count, err := data.Count(ctx, t)
		if err != nil {
			return WrapExitError(ExitCommandError, "count rows", err)
		}
		info := TableInfo{
			TLID:    int64(t.TLID),
			Name:    t.DB.Name,
			Version: t.DB.Version,
			Columns: []string{},
			Rows:    count,
			Locked:  count > 0,
		}
		for _, col := range t.DB.Cols {
			if col.Complete() {
				info.Columns = append(info.Columns, fmt.Sprintf("%s %s", col.Name, col.Type))
			}
		}
		infos = append(infos, info)
	}

	if opts.Format == "json" {
		return printJSON(cmd.OutOrStdout(), infos)
	}

	if len(infos) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No live tables.")
		return nil
	}
	for _, info := range infos {
		state := "unlocked"
		if info.Locked {
			state = "locked"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (tlid %d, v%d, %d rows, %s)\n",
			info.Name, info.TLID, info.Version, info.Rows, state)
		for _, col := range info.Columns {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", col)
		}
	}
	return nil
}
