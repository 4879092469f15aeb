package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/roach88/hopscotch/internal/exec"
	"github.com/roach88/hopscotch/internal/parse"
	"github.com/roach88/hopscotch/internal/pipeline"
	"github.com/roach88/hopscotch/internal/sqlitegraph"
	"github.com/roach88/hopscotch/internal/strategy"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success. True if every expect
	// check matched.
	Pass bool `json:"pass"`

	// Pipeline is the rendering of the compiled pipeline, empty when
	// compilation never completed.
	Pipeline string `json:"pipeline,omitempty"`

	// Values are the run's output values in order, normalized to
	// strings.
	Values []string `json:"results"`

	// SideEffects is the run's bag snapshot, normalized to strings.
	SideEffects map[string]string `json:"side_effects,omitempty"`

	// Failure is the compile or run error, empty when execution
	// succeeded. A scenario expecting an error passes only when this
	// matches.
	Failure string `json:"failure,omitempty"`

	// Errors contains expectation mismatch messages. Empty if Pass is
	// true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{Pass: true, Values: []string{}}
}

// AddError adds an expectation mismatch and marks the result as failed.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Pass = false
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory store loaded from its
// fixture, so scenarios are isolated. Compile and run failures land in
// Result.Failure rather than the returned error, which is reserved for
// an unusable scenario.
func Run(scenario *Scenario) (*Result, error) {
	if scenario == nil {
		return nil, fmt.Errorf("nil scenario")
	}

	result := NewResult()
	if err := execute(context.Background(), scenario, result); err != nil {
		result.Failure = err.Error()
	}
	checkExpectations(scenario, result)
	return result, nil
}

// execute compiles and runs the scenario's plan, filling in the
// result's pipeline, values, and side effects as they become available.
func execute(ctx context.Context, s *Scenario, result *Result) error {
	var st *sqlitegraph.Store
	if s.Graph != "" {
		var err error
		st, err = sqlitegraph.OpenFixture(ctx, s.Graph)
		if err != nil {
			return fmt.Errorf("open graph fixture: %w", err)
		}
		defer st.Close()
	}

	tr, err := parse.LoadPlan(s.Plan)
	if err != nil {
		return err
	}

	if s.Mode != "" {
		mode, err := pipeline.ParseMode(s.Mode)
		if err != nil {
			return err
		}
		if err := tr.SetMode(mode); err != nil {
			return err
		}
	}

	reg := strategy.Core()
	if st != nil {
		if err := sqlitegraph.RegisterStrategies(reg, st); err != nil {
			return fmt.Errorf("register provider strategies: %w", err)
		}
	}
	if err := reg.Seal(); err != nil {
		return err
	}
	if err := strategy.Compile(tr, reg); err != nil {
		return err
	}
	result.Pipeline = pipeline.Render(tr)

	runner := exec.New(tr,
		exec.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))), // Suppress logs in tests
		exec.WithExclusive(),
	)
	out, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	result.Values = make([]string, len(out.Values))
	for i, v := range out.Values {
		result.Values[i] = fmt.Sprint(v)
	}
	if len(out.SideEffects) > 0 {
		result.SideEffects = make(map[string]string, len(out.SideEffects))
		for k, v := range out.SideEffects {
			result.SideEffects[k] = fmt.Sprint(v)
		}
	}
	return nil
}

// checkExpectations evaluates the scenario's expect clause against the
// result, accumulating mismatches rather than stopping at the first.
func checkExpectations(s *Scenario, result *Result) {
	expect := s.Expect

	if expect.Error != "" {
		if result.Failure == "" {
			result.AddError(fmt.Sprintf("expected failure containing %q, scenario succeeded", expect.Error))
		} else if !strings.Contains(result.Failure, expect.Error) {
			result.AddError(fmt.Sprintf("expected failure containing %q, got %q", expect.Error, result.Failure))
		}
		return
	}

	if result.Failure != "" {
		result.AddError(fmt.Sprintf("scenario failed: %s", result.Failure))
		return
	}

	if expect.Pipeline != "" && result.Pipeline != expect.Pipeline {
		result.AddError(fmt.Sprintf("pipeline mismatch:\n  want %s\n  got  %s", expect.Pipeline, result.Pipeline))
	}

	if expect.Results != nil && !slices.Equal(result.Values, expect.Results) {
		result.AddError(fmt.Sprintf("results mismatch:\n  want %v\n  got  %v", expect.Results, result.Values))
	}

	for key, want := range expect.SideEffects {
		got, ok := result.SideEffects[key]
		if !ok {
			result.AddError(fmt.Sprintf("side effect %q missing", key))
			continue
		}
		if got != want {
			result.AddError(fmt.Sprintf("side effect %q mismatch: want %s, got %s", key, want, got))
		}
	}
}
