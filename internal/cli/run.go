package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/hopscotch/internal/exec"
	"github.com/roach88/hopscotch/internal/pipeline"
	"github.com/roach88/hopscotch/internal/sqlitegraph"
	"github.com/roach88/hopscotch/internal/strategy"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Graph    string // fixture YAML loaded into an in-memory store
	Database string // existing SQLite graph database

	// Tokens allows overriding the run token generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	Tokens exec.RunTokenGenerator
}

// RunResult holds the results of one plan execution.
type RunResult struct {
	RunID       string         `json:"run_id"`
	Pipeline    string         `json:"pipeline"`
	Results     []any          `json:"results"`
	SideEffects map[string]any `json:"side_effects,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <plan.cue>",
		Short: "Compile a plan and execute it against a graph",
		Long: `Compile a traversal plan and run it.

The graph comes from --graph (a YAML fixture loaded into an in-memory
store) or --db (an existing SQLite database). A plan that never touches
the graph runs without either.

Example:
  hopscotch run ./plan.cue --graph ./modern.yaml
  hopscotch run ./plan.cue --db ./graph.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Graph, "graph", "", "path to a YAML graph fixture")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to an existing SQLite graph database")

	return cmd
}

func runPlan(opts *RunOptions, planPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	if opts.Graph != "" && opts.Database != "" {
		return outputCommandError(formatter, ErrCodeGeneric, "--graph and --db are mutually exclusive")
	}

	tr, err := loadPlan(formatter, planPath, "")
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := openStore(ctx, opts, formatter)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	reg := strategy.Core()
	if store != nil {
		if err := sqlitegraph.RegisterStrategies(reg, store); err != nil {
			return outputCommandError(formatter, ErrCodeGeneric, fmt.Sprintf("registering provider strategies: %v", err))
		}
	}
	if err := reg.Seal(); err != nil {
		return outputCommandError(formatter, ErrCodeGeneric, fmt.Sprintf("sealing registry: %v", err))
	}

	if err := strategy.Compile(tr, reg); err != nil {
		return outputFailure(formatter, ErrCodeCompile, err.Error())
	}
	formatter.VerboseLog("Compiled pipeline: %s", pipeline.Render(tr))

	runner := exec.New(tr, runnerOptions(opts, cmd)...)
	result, err := runner.Run(ctx)
	if err != nil {
		return outputFailure(formatter, ErrCodeRun, err.Error())
	}

	return outputRunSuccess(formatter, &RunResult{
		RunID:       result.RunID,
		Pipeline:    pipeline.Render(tr),
		Results:     result.Values,
		SideEffects: result.SideEffects,
	})
}

// openStore opens the graph source named by the flags. No flags means
// no store; a plan that reaches for the graph then fails at run time.
func openStore(ctx context.Context, opts *RunOptions, formatter *OutputFormatter) (*sqlitegraph.Store, error) {
	switch {
	case opts.Graph != "":
		if _, err := os.Stat(opts.Graph); os.IsNotExist(err) {
			return nil, outputCommandError(formatter, ErrCodeNotFound, fmt.Sprintf("graph fixture not found: %s", opts.Graph))
		}
		formatter.VerboseLog("Loading graph fixture: %s", opts.Graph)
		store, err := sqlitegraph.OpenFixture(ctx, opts.Graph)
		if err != nil {
			return nil, outputCommandError(formatter, ErrCodeGraph, fmt.Sprintf("opening graph fixture: %v", err))
		}
		return store, nil
	case opts.Database != "":
		if _, err := os.Stat(opts.Database); os.IsNotExist(err) {
			return nil, outputCommandError(formatter, ErrCodeNotFound, fmt.Sprintf("database not found: %s", opts.Database))
		}
		formatter.VerboseLog("Opening database: %s", opts.Database)
		store, err := sqlitegraph.Open(opts.Database)
		if err != nil {
			return nil, outputCommandError(formatter, ErrCodeGraph, fmt.Sprintf("opening database: %v", err))
		}
		return store, nil
	default:
		return nil, nil
	}
}

// runnerOptions assembles the runner configuration. The run is a one
// shot in a fresh process, so the runner executes the traversal in
// place instead of cloning it.
func runnerOptions(opts *RunOptions, cmd *cobra.Command) []exec.Option {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: level,
	}))

	execOpts := []exec.Option{exec.WithLogger(logger), exec.WithExclusive()}
	if opts.Tokens != nil {
		execOpts = append(execOpts, exec.WithTokens(opts.Tokens))
	}
	return execOpts
}

// outputRunSuccess outputs the run results.
func outputRunSuccess(formatter *OutputFormatter, result *RunResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	// Human-readable text output
	fmt.Fprintf(formatter.Writer, "✓ %s\n\n", result.Pipeline)

	for _, v := range result.Results {
		fmt.Fprintln(formatter.Writer, v)
	}
	if len(result.Results) > 0 {
		fmt.Fprintln(formatter.Writer)
	}

	if len(result.SideEffects) > 0 {
		keys := make([]string, 0, len(result.SideEffects))
		for key := range result.SideEffects {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		fmt.Fprintln(formatter.Writer, "Side effects:")
		for _, key := range keys {
			fmt.Fprintf(formatter.Writer, "  %s: %v\n", key, result.SideEffects[key])
		}
		fmt.Fprintln(formatter.Writer)
	}

	fmt.Fprintf(formatter.Writer, "%d result(s)\n", len(result.Results))
	return nil
}
