package step

import (
	"context"

	"github.com/roach88/hopscotch/internal/pipeline"
)

// DedupStep filters out values already seen this execution. Equality
// follows the value's own contract via pipeline.ValuesEqual, so the seen
// set is a linear scan rather than a hash map: values are not required to
// be hashable and may carry custom equality.
//
// A surviving traverser is collapsed to bulk one, since its duplicates
// are exactly what was discarded.
type DedupStep struct {
	pipeline.BaseStep
	seen []any
}

// NewDedupStep creates a dedup step.
func NewDedupStep() *DedupStep {
	return &DedupStep{BaseStep: pipeline.NewBaseStep("dedup", pipeline.KindFilter)}
}

// Requirements declares the traverser features this step needs.
func (s *DedupStep) Requirements() pipeline.RequirementSet {
	return pipeline.ReqObject | pipeline.ReqBulk
}

// Reset clears the seen set.
func (s *DedupStep) Reset() { s.seen = nil }

// Clone deep-copies the step. Per-execution state starts empty.
func (s *DedupStep) Clone() pipeline.Step {
	return &DedupStep{BaseStep: s.CloneBase()}
}

// Test keeps the first traverser carrying each distinct value.
func (s *DedupStep) Test(_ context.Context, tr *pipeline.Traverser) (bool, error) {
	for _, prior := range s.seen {
		if pipeline.ValuesEqual(tr.Value(), prior) {
			return false, nil
		}
	}
	s.seen = append(s.seen, tr.Value())
	tr.SetBulk(1)
	return true, nil
}
