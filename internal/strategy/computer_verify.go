package strategy

import (
	"fmt"

	"github.com/roach88/hopscotch/internal/pipeline"
)

// ComputerVerificationStrategy rejects pipelines that graph-computer
// execution cannot honor. Bulk-synchronous workers evaluate local
// children against a bare value, so a local child whose requirements
// include path history can never be satisfied there.
type ComputerVerificationStrategy struct{}

func (ComputerVerificationStrategy) Name() string         { return NameComputerVerification }
func (ComputerVerificationStrategy) Category() Category   { return CategoryVerification }
func (ComputerVerificationStrategy) RunsBefore() []string { return nil }
func (ComputerVerificationStrategy) RunsAfter() []string  { return nil }

// Apply never mutates the traversal.
func (ComputerVerificationStrategy) Apply(t *pipeline.Traversal) error {
	if !t.OnGraphComputer() {
		return nil
	}
	for _, s := range t.Steps() {
		p, ok := s.(pipeline.Parent)
		if !ok {
			continue
		}
		for _, child := range p.LocalChildren() {
			if child.Requirements().Has(pipeline.ReqPath) {
				return &pipeline.ConstructionError{
					Site: s.Name(),
					Reason: fmt.Sprintf(
						"local child %s requires path history, which graph-computer execution cannot provide",
						pipeline.Render(child),
					),
				}
			}
		}
	}
	return nil
}
