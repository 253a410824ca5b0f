package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/tapestry/internal/dispatch"
	"github.com/roach88/tapestry/internal/engine"
	"github.com/roach88/tapestry/internal/store"
)

// DispatchOptions holds flags for the dispatch command.
type DispatchOptions struct {
	*RootOptions
	Database string
	Program  string
	Method   string
	Path     string
}

// DispatchResult holds the routing outcome.
type DispatchResult struct {
	Method    string            `json:"method"`
	Path      string            `json:"path"`
	Matched   bool              `json:"matched"`
	Ambiguous bool              `json:"ambiguous,omitempty"`
	TLID      int64             `json:"tlid,omitempty"`
	Handler   string            `json:"handler,omitempty"`
	Route     string            `json:"route,omitempty"`
	Bindings  map[string]string `json:"bindings,omitempty"`
}

// NewDispatchCommand creates the dispatch command.
func NewDispatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DispatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Resolve a request against a program's HTTP handlers",
		Long: `Resolve method and path against the program's live handlers and
report the winning handler with its bound route variables.

Exit codes:
  0 - A single handler matched
  1 - No handler matched, or the route is ambiguous
  2 - Command error (database not found, etc.)

Examples:
  tapestry dispatch --db ./tapestry.db --program 7f9c... --method GET --path /user/42`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDispatch(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Program, "program", "", "program id (required)")
	_ = cmd.MarkFlagRequired("program")
	cmd.Flags().StringVar(&opts.Method, "method", "GET", "HTTP method")
	cmd.Flags().StringVar(&opts.Path, "path", "", "request path (required)")
	_ = cmd.MarkFlagRequired("path")

	return cmd
}

func runDispatch(opts *DispatchOptions, cmd *cobra.Command) error {
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

	result := DispatchResult{Method: opts.Method, Path: opts.Path}

	match, err := engine.New(st).Route(ctx, program, opts.Method, opts.Path)
	var ambiguous *dispatch.AmbiguousRouteError
	switch {
	case errors.As(err, &ambiguous):
		result.Ambiguous = true
	case err != nil:
		return WrapExitError(ExitCommandError, "route request", err)
	case match != nil:
		result.Matched = true
		result.TLID = int64(match.TLID)
		result.Handler = match.Handler.Name
		result.Route = match.Handler.Route
		result.Bindings = match.Bindings
	}

	if opts.Format == "json" {
		if err := printJSON(cmd.OutOrStdout(), result); err != nil {
			return err
		}
	} else {
		switch {
		case result.Ambiguous:
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s is ambiguous.\n", result.Method, result.Path)
		case result.Matched:
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s -> %s (tlid %d, route %s)\n",
				result.Method, result.Path, result.Handler, result.TLID, result.Route)
			for k, v := range result.Bindings {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", k, v)
			}
		default:
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s matched no handler.\n", result.Method, result.Path)
		}
	}

	if result.Ambiguous {
		return NewExitError(ExitFailure, "ambiguous route")
	}
	if !result.Matched {
		return NewExitError(ExitFailure, "no matching handler")
	}
	return nil
}
