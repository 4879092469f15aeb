package step

import (
	"context"

	"github.com/roach88/hopscotch/internal/pipeline"
)

// DedupCountStep counts distinct values in a single pass. It is never
// written by a user: the fusion rewrite synthesizes it from an adjacent
// dedup and count under distributed execution, where the fused form
// saves a synchronization barrier.
type DedupCountStep struct {
	pipeline.BaseStep
	seen []any
}

// NewDedupCountStep creates a fused distinct-count barrier.
func NewDedupCountStep() *DedupCountStep {
	return &DedupCountStep{BaseStep: pipeline.NewBaseStep("dedupCount", pipeline.KindBarrier)}
}

// Requirements declares the traverser features this step needs.
func (s *DedupCountStep) Requirements() pipeline.RequirementSet {
	return pipeline.ReqObject | pipeline.ReqBulk
}

// Reset clears the seen set.
func (s *DedupCountStep) Reset() { s.seen = nil }

// Clone deep-copies the step. Per-execution state starts empty.
func (s *DedupCountStep) Clone() pipeline.Step {
	return &DedupCountStep{BaseStep: s.CloneBase()}
}

// Absorb records the traverser's value if it is new. Bulk is irrelevant:
// duplicates count once no matter how they are batched.
func (s *DedupCountStep) Absorb(_ context.Context, tr *pipeline.Traverser) error {
	for _, prior := range s.seen {
		if pipeline.ValuesEqual(tr.Value(), prior) {
			return nil
		}
	}
	s.seen = append(s.seen, tr.Value())
	return nil
}

// Emit returns the number of distinct values absorbed.
func (s *DedupCountStep) Emit() (any, error) { return int64(len(s.seen)), nil }
