package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/hopscotch/internal/pipeline"
	"github.com/roach88/hopscotch/internal/strategy"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Explain bool // print the rewrite trace instead of the summary
	Mode    string
}

// CompileResult holds the compiled pipeline summary.
type CompileResult struct {
	Pipeline     string `json:"pipeline"`
	Mode         string `json:"mode"`
	Requirements string `json:"requirements"`
	Steps        int    `json:"steps"`
}

// ExplainResult holds the full rewrite trace of one compilation.
type ExplainResult struct {
	Mode         string         `json:"mode"`
	Initial      string         `json:"initial"`
	Rewrites     []RewriteEntry `json:"rewrites"`
	Final        string         `json:"final"`
	Requirements string         `json:"requirements"`
}

// RewriteEntry is one recorded strategy application that changed the
// pipeline.
type RewriteEntry struct {
	Strategy string `json:"strategy"`
	Category string `json:"category"`
	Before   string `json:"before"`
	After    string `json:"after"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <plan.cue>",
		Short: "Compile a plan and print the final pipeline",
		Long: `Compile a traversal plan through the strategy pipeline.

The plan is loaded, rewritten by every registered strategy, and locked.
By default the final pipeline rendering is printed; --explain prints
the full rewrite trace instead. Provider strategies need a graph and
only apply under the run command.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Explain, "explain", false, "print the rewrite trace")
	cmd.Flags().StringVar(&opts.Mode, "mode", "", "override the plan's execution mode (standard|computer)")

	return cmd
}

func runCompile(opts *CompileOptions, planPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	tr, err := loadPlan(formatter, planPath, opts.Mode)
	if err != nil {
		return err
	}

	reg := strategy.Core()
	if err := reg.Seal(); err != nil {
		return outputCommandError(formatter, ErrCodeGeneric, fmt.Sprintf("sealing registry: %v", err))
	}

	if opts.Explain {
		trace, err := strategy.Explain(tr, reg)
		if err != nil {
			return outputFailure(formatter, ErrCodeCompile, err.Error())
		}
		return outputExplain(formatter, trace)
	}

	if err := strategy.Compile(tr, reg); err != nil {
		return outputFailure(formatter, ErrCodeCompile, err.Error())
	}

	return outputCompileSuccess(formatter, &CompileResult{
		Pipeline:     pipeline.Render(tr),
		Mode:         string(tr.Mode()),
		Requirements: tr.Requirements().String(),
		Steps:        tr.Len(),
	})
}

// outputCompileSuccess outputs the compiled pipeline summary.
func outputCompileSuccess(formatter *OutputFormatter, result *CompileResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	// Human-readable text output
	fmt.Fprintf(formatter.Writer, "✓ %s\n", result.Pipeline)
	fmt.Fprintf(formatter.Writer, "  mode: %s\n", result.Mode)
	fmt.Fprintf(formatter.Writer, "  requirements: %s\n", result.Requirements)
	fmt.Fprintf(formatter.Writer, "  steps: %d\n", result.Steps)
	return nil
}

// outputExplain outputs the rewrite trace. The text form is the trace's
// own stable rendering.
func outputExplain(formatter *OutputFormatter, trace *strategy.Trace) error {
	if formatter.Format == "json" {
		rewrites := make([]RewriteEntry, len(trace.Rewrites))
		for i, rw := range trace.Rewrites {
			rewrites[i] = RewriteEntry{
				Strategy: rw.Strategy,
				Category: string(rw.Category),
				Before:   rw.Before,
				After:    rw.After,
			}
		}
		return formatter.Success(&ExplainResult{
			Mode:         string(trace.Mode),
			Initial:      trace.Initial,
			Rewrites:     rewrites,
			Final:        trace.Final,
			Requirements: trace.Requirements,
		})
	}

	fmt.Fprint(formatter.Writer, trace.String())
	return nil
}
