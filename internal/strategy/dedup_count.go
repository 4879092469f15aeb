package strategy

import (
	"github.com/roach88/hopscotch/internal/pipeline"
	"github.com/roach88/hopscotch/internal/step"
)

// DedupCountStrategy fuses a dedup step immediately followed by a count
// step into one distinct-count barrier.
//
// The rewrite fires only under graph-computer mode and only inside a
// global child. On a single machine the unfused pair is already one
// pass, and a local child re-runs per parent traverser, where the fused
// barrier would count across parents.
type DedupCountStrategy struct{}

func (DedupCountStrategy) Name() string         { return NameDedupCount }
func (DedupCountStrategy) Category() Category   { return CategoryOptimization }
func (DedupCountStrategy) RunsBefore() []string { return nil }
func (DedupCountStrategy) RunsAfter() []string  { return nil }

// Apply splices a fused step over every dedup/count adjacency. The
// dedup's labels migrate to the fused step through Replace; the count's
// labels follow Remove's migration rule.
func (DedupCountStrategy) Apply(t *pipeline.Traversal) error {
	if !t.OnGraphComputer() || !t.IsGlobalChild() {
		return nil
	}
	for _, idx := range t.StepsMatching(isDedup) {
		next := t.Next(idx)
		if next == pipeline.NoStep {
			continue
		}
		if _, ok := t.StepAt(next).(*step.CountStep); !ok {
			continue
		}
		if err := t.Replace(idx, step.NewDedupCountStep()); err != nil {
			return err
		}
		if err := t.Remove(next); err != nil {
			return err
		}
	}
	return nil
}

func isDedup(s pipeline.Step) bool {
	_, ok := s.(*step.DedupStep)
	return ok
}
