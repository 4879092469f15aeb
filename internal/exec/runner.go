package exec

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/hopscotch/internal/pipeline"
)

// DefaultBudget is the default limit on traversers a single run may
// emit across all steps of its outer pipeline.
const DefaultBudget = int64(1) << 20

// Runner executes compiled pipelines.
//
// Unless WithExclusive is set, every Run call clones the compiled
// traversal first: steps retain per-execution mutable state (an end
// marker's captured comparison value, a dedup step's seen set), so two
// runs over shared steps would race.
//
// Thread-safety model:
//   - Run(): safe from any goroutine, unless WithExclusive was set
//   - WithExclusive: the caller guarantees one Run at a time
type Runner struct {
	traversal *pipeline.Traversal
	tokens    RunTokenGenerator
	logger    *slog.Logger
	budget    int64
	exclusive bool
	seeds     map[string]any
}

// Option allows configuration of runner parameters.
type Option func(*Runner)

// WithLogger routes the runner's structured logs.
//
// Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithBudget sets the traverser budget for each run.
//
// Default: DefaultBudget (1<<20).
// Use WithBudget(10) for testing budget enforcement.
func WithBudget(n int64) Option {
	return func(r *Runner) { r.budget = n }
}

// WithTokens swaps the run-token source. Tests use FixedGenerator for
// deterministic result and log correlation.
func WithTokens(g RunTokenGenerator) Option {
	return func(r *Runner) { r.tokens = g }
}

// WithSideEffect seeds the side-effect bag before traversers flow.
// Seeding forces a bag even when no step declares the requirement, so
// correlated filters can resolve the key through scope resolution.
func WithSideEffect(key string, value any) Option {
	return func(r *Runner) { r.seeds[key] = value }
}

// WithExclusive runs directly on the compiled traversal instead of a
// per-run clone. Per-execution step state still resets between runs.
func WithExclusive() Option {
	return func(r *Runner) { r.exclusive = true }
}

// New creates a Runner over a compiled traversal.
func New(t *pipeline.Traversal, opts ...Option) *Runner {
	r := &Runner{
		traversal: t,
		tokens:    UUIDv7Generator{},
		logger:    slog.Default(),
		budget:    DefaultBudget,
		seeds:     make(map[string]any),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Result is one run's output.
type Result struct {
	// RunID is the run's correlation token, present on every log line
	// the run emitted.
	RunID string

	// Values holds the surviving traversers' values in arrival order,
	// repeated per bulk multiplier.
	Values []any

	// SideEffects snapshots the bag after the run, nil when the run
	// carried none.
	SideEffects map[string]any
}

// Run executes the pipeline once and returns the surviving values.
//
// Starts are optional explicit source values. When absent and the head
// step can seed itself (scan, inject, a fused count probe), its seeds
// become the starts; a seed-capable head handed explicit starts passes
// them through instead.
func (r *Runner) Run(ctx context.Context, starts ...any) (*Result, error) {
	runID := r.tokens.Generate()

	if r.traversal == nil {
		return nil, fmt.Errorf("run %s: no traversal", runID)
	}
	if !r.traversal.Compiled() {
		return nil, fmt.Errorf("run %s: %w", runID, pipeline.ErrNotCompiled)
	}

	target := r.traversal
	if !r.exclusive {
		target = r.traversal.Clone()
	}
	target.ResetSteps()

	reqs := target.Requirements()
	if len(r.seeds) > 0 {
		reqs = reqs.Union(pipeline.ReqSideEffects)
	}

	var bag *pipeline.SideEffects
	if reqs.Has(pipeline.ReqSideEffects) {
		bag = pipeline.NewSideEffects()
		for k, v := range r.seeds {
			bag.Set(k, v)
		}
	}

	values := starts
	if len(values) == 0 && target.Len() > 0 {
		if seeder, ok := target.StepAt(target.Head()).(pipeline.Seeder); ok {
			seeded, err := seeder.Seed(ctx)
			if err != nil {
				r.logger.Error("run failed",
					"run_id", runID,
					"step", seeder.Name(),
					"error", err,
				)
				return nil, fmt.Errorf("run %s: seed %s: %w", runID, seeder.Name(), err)
			}
			values = seeded
		}
	}

	traversers := make([]*pipeline.Traverser, len(values))
	for i, v := range values {
		traversers[i] = pipeline.NewTraverser(v, reqs, bag)
	}

	r.logger.Debug("run starting",
		"run_id", runID,
		"mode", target.Mode(),
		"steps", target.Len(),
		"starts", len(traversers),
		"requirements", reqs,
	)

	// Budget accounting is cumulative across the outer pipeline's steps.
	var emitted int64
	observe := func(s pipeline.Step, in, out int) error {
		emitted += int64(out)
		if emitted > r.budget {
			return &BudgetError{RunID: runID, Emitted: emitted, Budget: r.budget}
		}
		r.logger.Debug("step processed",
			"run_id", runID,
			"step", s.Name(),
			"in", in,
			"out", out,
		)
		return nil
	}

	out, err := target.Process(ctx, traversers, observe)
	if err != nil {
		r.logger.Error("run failed",
			"run_id", runID,
			"error", err,
		)
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}

	res := &Result{RunID: runID, Values: make([]any, 0, len(out))}
	for _, tr := range out {
		n := tr.Bulk()
		if n < 1 {
			n = 1
		}
		for ; n > 0; n-- {
			res.Values = append(res.Values, tr.Value())
		}
	}
	if bag != nil {
		keys := bag.Keys()
		res.SideEffects = make(map[string]any, len(keys))
		for _, k := range keys {
			v, _ := bag.Get(k)
			res.SideEffects[k] = v
		}
	}

	r.logger.Info("run complete",
		"run_id", runID,
		"results", len(res.Values),
	)
	return res, nil
}
