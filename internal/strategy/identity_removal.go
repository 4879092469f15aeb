package strategy

import (
	"github.com/roach88/hopscotch/internal/pipeline"
	"github.com/roach88/hopscotch/internal/step"
)

// IdentityRemovalStrategy drops identity steps from the pipeline. An
// identity carrying labels is only dropped when Remove's migration rule
// would carry those labels to a neighbor; an identity whose labels would
// be orphaned stays, which keeps a labeled sole identity intact.
type IdentityRemovalStrategy struct{}

func (IdentityRemovalStrategy) Name() string         { return NameIdentityRemoval }
func (IdentityRemovalStrategy) Category() Category   { return CategoryOptimization }
func (IdentityRemovalStrategy) RunsBefore() []string { return []string{NameDedupCount} }
func (IdentityRemovalStrategy) RunsAfter() []string  { return nil }

// Apply removes every removable identity step. Removing identities can
// make fusible steps adjacent, hence the runs-before edge to the fusion
// pass.
func (IdentityRemovalStrategy) Apply(t *pipeline.Traversal) error {
	for _, idx := range t.StepsMatching(isIdentity) {
		s := t.StepAt(idx)
		if len(s.Labels()) > 0 && !labelsMigrate(t, idx) {
			continue
		}
		if err := t.Remove(idx); err != nil {
			return err
		}
	}
	return nil
}

func isIdentity(s pipeline.Step) bool {
	_, ok := s.(*step.IdentityStep)
	return ok
}

// labelsMigrate reports whether Remove at idx would carry the step's
// labels to a neighbor rather than drop them: the successor takes them
// unless it owns labels of its own, a missing successor defers to the
// predecessor under the same rule.
func labelsMigrate(t *pipeline.Traversal, idx pipeline.StepIndex) bool {
	if next := t.Next(idx); next != pipeline.NoStep {
		return len(t.StepAt(next).Labels()) == 0
	}
	if prev := t.Prev(idx); prev != pipeline.NoStep {
		return len(t.StepAt(prev).Labels()) == 0
	}
	return false
}
