package step

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/hopscotch/internal/pipeline"
)

// InjectStep seeds a pipeline with literal values. With no values it is a
// pure placeholder: the surface form "as(x)..." compiles to an empty
// inject carrying the label, and the correlation protocol later replaces
// that placeholder with a bound start marker.
//
// Mid-pipeline an inject acts as a pass-through, like every start-capable
// step handed input.
type InjectStep struct {
	pipeline.BaseStep
	values []any
}

// NewInjectStep creates an inject step over the given literal values.
func NewInjectStep(values ...any) *InjectStep {
	return &InjectStep{
		BaseStep: pipeline.NewBaseStep("inject", pipeline.KindMap),
		values:   slices.Clone(values),
	}
}

// Values returns a copy of the injected values.
func (s *InjectStep) Values() []any { return slices.Clone(s.values) }

// Requirements declares the traverser features this step needs.
func (s *InjectStep) Requirements() pipeline.RequirementSet { return pipeline.ReqObject }

// Clone deep-copies the step.
func (s *InjectStep) Clone() pipeline.Step {
	return &InjectStep{BaseStep: s.CloneBase(), values: slices.Clone(s.values)}
}

// Seed emits the literal values.
func (s *InjectStep) Seed(_ context.Context) ([]any, error) {
	return slices.Clone(s.values), nil
}

func (s *InjectStep) String() string {
	if len(s.values) == 0 {
		return "inject()"
	}
	parts := make([]string, len(s.values))
	for i, v := range s.values {
		parts[i] = fmt.Sprintf("%v", v)
	}
	return "inject(" + strings.Join(parts, ",") + ")"
}

// IsVariableStart reports whether a step is an empty inject placeholder
// carrying exactly one label: the compiled form of a sub-traversal that
// begins at a named variable rather than a value.
func IsVariableStart(s pipeline.Step) bool {
	inject, ok := s.(*InjectStep)
	return ok && len(inject.values) == 0 && len(inject.Labels()) == 1
}
