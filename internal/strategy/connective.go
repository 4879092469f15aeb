package strategy

import (
	"github.com/roach88/hopscotch/internal/pipeline"
	"github.com/roach88/hopscotch/internal/step"
)

// ConnectiveStrategy folds infix and/or markers into nested connective
// steps with branch children, the prefix form every later pass recurses
// into. Correlated filters fold their own child at construction; this
// strategy covers markers written on the main pipeline.
type ConnectiveStrategy struct{}

func (ConnectiveStrategy) Name() string         { return NameConnective }
func (ConnectiveStrategy) Category() Category   { return CategoryDecoration }
func (ConnectiveStrategy) RunsBefore() []string { return nil }
func (ConnectiveStrategy) RunsAfter() []string  { return nil }

// Apply folds every marker in the traversal. Already-folded connectives
// carry branches instead of markers, so a second application is a no-op.
func (ConnectiveStrategy) Apply(t *pipeline.Traversal) error {
	return step.FoldConnectives(t)
}
