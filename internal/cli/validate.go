package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/hopscotch/internal/parse"
	"github.com/roach88/hopscotch/internal/strategy"
)

// ValidationIssue describes one reason a plan failed validation.
type ValidationIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationIssue `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <plan.cue>",
		Short: "Validate a plan without printing the pipeline",
		Long: `Load and compile a traversal plan, reporting only whether it is valid.

Runs the same schema checks and strategy pipeline as compile. Useful as
a fast pre-flight for plan files.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, planPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	if _, err := os.Stat(planPath); os.IsNotExist(err) {
		return outputCommandError(formatter, ErrCodeNotFound, fmt.Sprintf("plan file not found: %s", planPath))
	}

	formatter.VerboseLog("Validating plan: %s", planPath)

	var issues []ValidationIssue
	tr, err := parse.LoadPlan(planPath)
	if err != nil {
		issues = append(issues, validationIssue(ErrCodeParse, err))
	} else {
		reg := strategy.Core()
		if err := reg.Seal(); err != nil {
			return outputCommandError(formatter, ErrCodeGeneric, fmt.Sprintf("sealing registry: %v", err))
		}
		if err := strategy.Compile(tr, reg); err != nil {
			issues = append(issues, validationIssue(ErrCodeCompile, err))
		}
	}

	if len(issues) > 0 {
		return outputValidationErrors(formatter, issues)
	}

	return outputValidateSuccess(formatter)
}

// validationIssue converts an error into a reportable issue, carrying
// the source line when the parser recorded one.
func validationIssue(code string, err error) ValidationIssue {
	issue := ValidationIssue{Code: code, Message: err.Error()}
	var loadErr *parse.LoadError
	if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
		issue.Line = loadErr.Pos.Line()
	}
	return issue
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true})
	}

	fmt.Fprintln(formatter.Writer, "✓ Plan valid")
	return nil
}

// outputValidationErrors outputs validation failures.
func outputValidationErrors(formatter *OutputFormatter, issues []ValidationIssue) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: issues},
			Error: &CLIError{
				Code:    issues[0].Code,
				Message: issues[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(issues)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, issue := range issues {
		if issue.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", issue.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", issue.Code, issue.Message)
	}

	// Validation failures = exit code 1
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(issues)))
}
