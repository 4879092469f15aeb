package strategy

import (
	"github.com/roach88/hopscotch/internal/pipeline"
)

// ScopePreferenceStrategy coerces scoping steps with no scope keys to
// local scope. A step that correlates nothing across the pipeline never
// needs path history, and local scope lets the runner skip retaining it.
// End-markers ignore the coercion; their scope is fixed at construction.
type ScopePreferenceStrategy struct{}

func (ScopePreferenceStrategy) Name() string         { return NameScopePreference }
func (ScopePreferenceStrategy) Category() Category   { return CategoryOptimization }
func (ScopePreferenceStrategy) RunsBefore() []string { return nil }
func (ScopePreferenceStrategy) RunsAfter() []string  { return nil }

// Apply visits every scoping step in the traversal.
func (ScopePreferenceStrategy) Apply(t *pipeline.Traversal) error {
	for _, s := range t.Steps() {
		sc, ok := s.(pipeline.Scoping)
		if !ok {
			continue
		}
		if len(sc.ScopeKeys()) == 0 {
			sc.SetScope(pipeline.ScopeLocal)
		}
	}
	return nil
}
