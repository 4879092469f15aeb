package step

import (
	"context"

	"github.com/roach88/hopscotch/internal/pipeline"
)

// IdentityStep passes every value through unchanged. Parsers emit it for
// explicit no-op positions; the identity-removal strategy strips it back
// out unless a label pins it in place.
type IdentityStep struct {
	pipeline.BaseStep
}

// NewIdentityStep creates an identity step.
func NewIdentityStep() *IdentityStep {
	return &IdentityStep{BaseStep: pipeline.NewBaseStep("identity", pipeline.KindMap)}
}

// Requirements declares the traverser features this step needs.
func (s *IdentityStep) Requirements() pipeline.RequirementSet { return pipeline.ReqObject }

// Clone deep-copies the step.
func (s *IdentityStep) Clone() pipeline.Step {
	return &IdentityStep{BaseStep: s.CloneBase()}
}

// Map returns the incoming value unchanged.
func (s *IdentityStep) Map(_ context.Context, tr *pipeline.Traverser) (any, error) {
	return tr.Value(), nil
}
