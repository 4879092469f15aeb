package step

import (
	"context"
	"slices"
	"strings"

	"github.com/roach88/hopscotch/internal/pipeline"
)

// connectiveStep is the shared base of AndStep and OrStep: a boolean
// combinator over local child branches. A connective with no branches is
// an infix marker, the parser's placeholder form that FoldConnectives
// later legalizes into a real nested step.
type connectiveStep struct {
	pipeline.BaseStep
	branches []*pipeline.Traversal
}

func newConnectiveStep(name string) connectiveStep {
	return connectiveStep{BaseStep: pipeline.NewBaseStep(name, pipeline.KindFilter)}
}

// LocalChildren returns the branch traversals.
func (s *connectiveStep) LocalChildren() []*pipeline.Traversal {
	return slices.Clone(s.branches)
}

// GlobalChildren returns nil; connective branches are always local.
func (s *connectiveStep) GlobalChildren() []*pipeline.Traversal { return nil }

// Requirements declares the traverser features this step needs. Branch
// requirements are aggregated separately by the owning traversal.
func (s *connectiveStep) Requirements() pipeline.RequirementSet { return pipeline.ReqObject }

func (s *connectiveStep) connective() {}

func (s *connectiveStep) renderBranches() string {
	if len(s.branches) == 0 {
		return s.Name() + "()"
	}
	parts := make([]string, len(s.branches))
	for i, b := range s.branches {
		parts[i] = pipeline.Render(b)
	}
	return s.Name() + "(" + strings.Join(parts, ",") + ")"
}

// Connective is the common surface of AndStep and OrStep, used by the
// fold and by the correlation protocol's recursion into branches.
type Connective interface {
	pipeline.Parent

	// AddBranch integrates one more local branch.
	AddBranch(branch *pipeline.Traversal) error

	connective()
}

// AndStep passes a traverser only if every branch passes it. With no
// branches it is an infix marker and vacuously passes.
type AndStep struct {
	connectiveStep
}

// NewAndStep creates a conjunction over the given branches; with none it
// creates an infix marker.
func NewAndStep(branches ...*pipeline.Traversal) (*AndStep, error) {
	s := &AndStep{connectiveStep: newConnectiveStep("and")}
	for _, b := range branches {
		if err := s.AddBranch(b); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// AddBranch integrates one more local branch.
func (s *AndStep) AddBranch(branch *pipeline.Traversal) error {
	if err := pipeline.IntegrateChild(s, branch, pipeline.ChildLocal); err != nil {
		return err
	}
	s.branches = append(s.branches, branch)
	return nil
}

// Clone deep-copies the step and its branches.
func (s *AndStep) Clone() pipeline.Step {
	cp := &AndStep{connectiveStep: connectiveStep{BaseStep: s.CloneBase()}}
	for _, b := range s.branches {
		mustIntegrate(cp, b.Clone(), pipeline.ChildLocal, &cp.branches)
	}
	return cp
}

// Test passes when every branch passes.
func (s *AndStep) Test(ctx context.Context, tr *pipeline.Traverser) (bool, error) {
	for _, b := range s.branches {
		pass, err := pipeline.Test(ctx, b, tr)
		if err != nil {
			return false, err
		}
		if !pass {
			return false, nil
		}
	}
	return true, nil
}

func (s *AndStep) String() string { return s.renderBranches() }

// OrStep passes a traverser if any branch passes it. With no branches it
// is an infix marker and passes nothing.
type OrStep struct {
	connectiveStep
}

// NewOrStep creates a disjunction over the given branches; with none it
// creates an infix marker.
func NewOrStep(branches ...*pipeline.Traversal) (*OrStep, error) {
	s := &OrStep{connectiveStep: newConnectiveStep("or")}
	for _, b := range branches {
		if err := s.AddBranch(b); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// AddBranch integrates one more local branch.
func (s *OrStep) AddBranch(branch *pipeline.Traversal) error {
	if err := pipeline.IntegrateChild(s, branch, pipeline.ChildLocal); err != nil {
		return err
	}
	s.branches = append(s.branches, branch)
	return nil
}

// Clone deep-copies the step and its branches.
func (s *OrStep) Clone() pipeline.Step {
	cp := &OrStep{connectiveStep: connectiveStep{BaseStep: s.CloneBase()}}
	for _, b := range s.branches {
		mustIntegrate(cp, b.Clone(), pipeline.ChildLocal, &cp.branches)
	}
	return cp
}

// Test passes when any branch passes.
func (s *OrStep) Test(ctx context.Context, tr *pipeline.Traverser) (bool, error) {
	for _, b := range s.branches {
		pass, err := pipeline.Test(ctx, b, tr)
		if err != nil {
			return false, err
		}
		if pass {
			return true, nil
		}
	}
	return false, nil
}

func (s *OrStep) String() string { return s.renderBranches() }

// NotStep inverts its single child: a traverser passes only when the
// child produces nothing for it.
type NotStep struct {
	pipeline.BaseStep
	child *pipeline.Traversal
}

// NewNotStep creates a negation over child.
func NewNotStep(child *pipeline.Traversal) (*NotStep, error) {
	if child == nil {
		return nil, &pipeline.ConstructionError{Site: "not", Reason: "negation requires a child traversal"}
	}
	s := &NotStep{BaseStep: pipeline.NewBaseStep("not", pipeline.KindFilter)}
	if err := pipeline.IntegrateChild(s, child, pipeline.ChildLocal); err != nil {
		return nil, err
	}
	s.child = child
	return s, nil
}

// LocalChildren returns the negated traversal.
func (s *NotStep) LocalChildren() []*pipeline.Traversal { return []*pipeline.Traversal{s.child} }

// GlobalChildren returns nil.
func (s *NotStep) GlobalChildren() []*pipeline.Traversal { return nil }

// Requirements declares the traverser features this step needs.
func (s *NotStep) Requirements() pipeline.RequirementSet { return pipeline.ReqObject }

// Clone deep-copies the step and its child.
func (s *NotStep) Clone() pipeline.Step {
	cp := &NotStep{BaseStep: s.CloneBase()}
	child := s.child.Clone()
	mustIntegrate(cp, child, pipeline.ChildLocal, nil)
	cp.child = child
	return cp
}

// Test passes when the child rejects.
func (s *NotStep) Test(ctx context.Context, tr *pipeline.Traverser) (bool, error) {
	pass, err := pipeline.Test(ctx, s.child, tr)
	if err != nil {
		return false, err
	}
	return !pass, nil
}

func (s *NotStep) String() string { return "not(" + pipeline.Render(s.child) + ")" }

// mustIntegrate wires a freshly cloned child to its freshly cloned owner.
// Integration of an unowned child cannot fail.
func mustIntegrate(owner pipeline.Step, child *pipeline.Traversal, kind pipeline.ChildKind, into *[]*pipeline.Traversal) {
	if err := pipeline.IntegrateChild(owner, child, kind); err != nil {
		panic(err)
	}
	if into != nil {
		*into = append(*into, child)
	}
}

// FoldConnectives legalizes infix and/or markers: each marker folds the
// steps before it into a left branch and the steps after it into a right
// branch, then the fold recurses into both branches. Or-markers are
// processed before and-markers so disjunction binds more loosely:
//
//	a -> and -> b -> or -> c   becomes   or(and(a,b), c)
//
// Labels on a marker migrate to an empty inject placeholder planted at
// the front of the right branch. Already-folded connectives (those with
// branches) are left alone, which makes the fold idempotent.
func FoldConnectives(t *pipeline.Traversal) error {
	if err := foldMarkers(t, isOrMarker); err != nil {
		return err
	}
	return foldMarkers(t, isAndMarker)
}

func isOrMarker(s pipeline.Step) bool {
	c, ok := s.(*OrStep)
	return ok && len(c.branches) == 0
}

func isAndMarker(s pipeline.Step) bool {
	c, ok := s.(*AndStep)
	return ok && len(c.branches) == 0
}

func foldMarkers(t *pipeline.Traversal, isMarker func(pipeline.Step) bool) error {
	for {
		markers := t.StepsMatching(isMarker)
		if len(markers) == 0 {
			return nil
		}
		at := markers[0]
		marker := t.StepAt(at).(Connective)

		right := pipeline.New(pipeline.ModeStandard)
		if labels := marker.Labels(); len(labels) > 0 {
			carrier := NewInjectStep()
			for _, label := range labels {
				if err := carrier.AddLabel(label); err != nil {
					return err
				}
				marker.RemoveLabel(label)
			}
			if err := right.AddStep(carrier); err != nil {
				return err
			}
		}
		var after []pipeline.StepIndex
		for j := t.Next(at); j != pipeline.NoStep; j = t.Next(j) {
			after = append(after, j)
		}
		for _, j := range after {
			if err := relocate(t, j, right); err != nil {
				return err
			}
		}
		if err := FoldConnectives(right); err != nil {
			return err
		}

		left := pipeline.New(pipeline.ModeStandard)
		var before []pipeline.StepIndex
		for j := t.Prev(at); j != pipeline.NoStep; j = t.Prev(j) {
			before = append(before, j)
		}
		slices.Reverse(before)
		for _, j := range before {
			if err := relocate(t, j, left); err != nil {
				return err
			}
		}
		if err := FoldConnectives(left); err != nil {
			return err
		}

		if err := marker.AddBranch(left); err != nil {
			return err
		}
		if err := marker.AddBranch(right); err != nil {
			return err
		}
	}
}

// relocate detaches the step at an index and appends it to dst with its
// own labels intact. Labels are stripped around the removal so the
// remove operation's label migration does not scatter them onto
// neighbors.
func relocate(src *pipeline.Traversal, at pipeline.StepIndex, dst *pipeline.Traversal) error {
	s := src.StepAt(at)
	labels := s.Labels()
	for _, label := range labels {
		s.RemoveLabel(label)
	}
	if err := src.Remove(at); err != nil {
		return err
	}
	for _, label := range labels {
		if err := s.AddLabel(label); err != nil {
			return err
		}
	}
	return dst.AddStep(s)
}
