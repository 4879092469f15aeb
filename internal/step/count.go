package step

import (
	"context"

	"github.com/roach88/hopscotch/internal/pipeline"
)

// CountStep is a barrier that reduces its whole input to one int64: the
// number of traversers weighted by bulk.
type CountStep struct {
	pipeline.BaseStep
	tally int64
}

// NewCountStep creates a count step.
func NewCountStep() *CountStep {
	return &CountStep{BaseStep: pipeline.NewBaseStep("count", pipeline.KindBarrier)}
}

// Requirements declares the traverser features this step needs.
func (s *CountStep) Requirements() pipeline.RequirementSet {
	return pipeline.ReqObject | pipeline.ReqBulk
}

// Reset clears the running tally.
func (s *CountStep) Reset() { s.tally = 0 }

// Clone deep-copies the step. Per-execution state starts at zero.
func (s *CountStep) Clone() pipeline.Step {
	return &CountStep{BaseStep: s.CloneBase()}
}

// Absorb accumulates one traverser into the tally.
func (s *CountStep) Absorb(_ context.Context, tr *pipeline.Traverser) error {
	s.tally += tr.Bulk()
	return nil
}

// Emit returns the final count.
func (s *CountStep) Emit() (any, error) { return s.tally, nil }
