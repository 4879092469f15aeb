package step

import (
	"context"
	"strings"

	"github.com/roach88/hopscotch/internal/pipeline"
)

// UnionStep merges the outputs of several branch traversals: every
// incoming traverser is fed to every branch, and the step emits the
// concatenation of all branch results in branch order. Branches are
// global children, so they see full traverser context and their
// requirements propagate like a nested pipeline's.
type UnionStep struct {
	pipeline.BaseStep
	branches []*pipeline.Traversal
}

// NewUnionStep creates a union over the given branches.
func NewUnionStep(branches ...*pipeline.Traversal) (*UnionStep, error) {
	if len(branches) == 0 {
		return nil, &pipeline.ConstructionError{Site: "union", Reason: "union requires at least one branch"}
	}
	s := &UnionStep{BaseStep: pipeline.NewBaseStep("union", pipeline.KindMap)}
	for _, b := range branches {
		if err := pipeline.IntegrateChild(s, b, pipeline.ChildGlobal); err != nil {
			return nil, err
		}
		s.branches = append(s.branches, b)
	}
	return s, nil
}

// LocalChildren returns nil; union branches are always global.
func (s *UnionStep) LocalChildren() []*pipeline.Traversal { return nil }

// GlobalChildren returns the branch traversals.
func (s *UnionStep) GlobalChildren() []*pipeline.Traversal {
	out := make([]*pipeline.Traversal, len(s.branches))
	copy(out, s.branches)
	return out
}

// Requirements declares the traverser features this step needs.
func (s *UnionStep) Requirements() pipeline.RequirementSet { return pipeline.ReqObject }

// Clone deep-copies the step and its branches.
func (s *UnionStep) Clone() pipeline.Step {
	cp := &UnionStep{BaseStep: s.CloneBase()}
	for _, b := range s.branches {
		mustIntegrate(cp, b.Clone(), pipeline.ChildGlobal, &cp.branches)
	}
	return cp
}

// ProcessBatch runs the whole input through each branch in turn. Each
// branch receives its own split of every traverser, so branch-internal
// state never leaks across branches.
func (s *UnionStep) ProcessBatch(ctx context.Context, in []*pipeline.Traverser) ([]*pipeline.Traverser, error) {
	var out []*pipeline.Traverser
	for _, branch := range s.branches {
		branch.ResetSteps()
		seeds := make([]*pipeline.Traverser, len(in))
		for i, tr := range in {
			seeds[i] = tr.SplitSelf()
		}
		results, err := branch.Process(ctx, seeds)
		if err != nil {
			return nil, err
		}
		out = append(out, results...)
	}
	return out, nil
}

func (s *UnionStep) String() string {
	parts := make([]string, len(s.branches))
	for i, b := range s.branches {
		parts[i] = pipeline.Render(b)
	}
	return "union(" + strings.Join(parts, ",") + ")"
}
