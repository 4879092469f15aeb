package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testStep is a minimal identity step used across this package's tests.
type testStep struct {
	BaseStep
	reqs RequirementSet
}

func newTestStep(t *testing.T, name string, kind Kind, labels ...string) *testStep {
	t.Helper()
	s := &testStep{BaseStep: NewBaseStep(name, kind), reqs: ReqObject}
	for _, label := range labels {
		require.NoError(t, s.AddLabel(label))
	}
	return s
}

func (s *testStep) Requirements() RequirementSet { return s.reqs }

func (s *testStep) Clone() Step {
	return &testStep{BaseStep: s.CloneBase(), reqs: s.reqs}
}

func (s *testStep) Map(_ context.Context, tr *Traverser) (any, error) {
	return tr.Value(), nil
}

// testParentStep owns child traversals and passes every traverser, so
// structural tests can exercise the tree predicates.
type testParentStep struct {
	BaseStep
	locals  []*Traversal
	globals []*Traversal
}

func newTestParentStep(t *testing.T, name string) *testParentStep {
	t.Helper()
	return &testParentStep{BaseStep: NewBaseStep(name, KindFilter)}
}

func (s *testParentStep) addLocal(t *testing.T, child *Traversal) {
	t.Helper()
	require.NoError(t, IntegrateChild(s, child, ChildLocal))
	s.locals = append(s.locals, child)
}

func (s *testParentStep) addGlobal(t *testing.T, child *Traversal) {
	t.Helper()
	require.NoError(t, IntegrateChild(s, child, ChildGlobal))
	s.globals = append(s.globals, child)
}

func (s *testParentStep) LocalChildren() []*Traversal  { return s.locals }
func (s *testParentStep) GlobalChildren() []*Traversal { return s.globals }

func (s *testParentStep) Requirements() RequirementSet { return ReqObject }

func (s *testParentStep) Clone() Step {
	cp := &testParentStep{BaseStep: s.CloneBase()}
	for _, child := range s.locals {
		cc := child.Clone()
		if err := IntegrateChild(cp, cc, ChildLocal); err != nil {
			panic(err)
		}
		cp.locals = append(cp.locals, cc)
	}
	for _, child := range s.globals {
		cc := child.Clone()
		if err := IntegrateChild(cp, cc, ChildGlobal); err != nil {
			panic(err)
		}
		cp.globals = append(cp.globals, cc)
	}
	return cp
}

func (s *testParentStep) Test(_ context.Context, _ *Traverser) (bool, error) {
	return true, nil
}

func stepNames(t *Traversal) []string {
	var names []string
	for _, s := range t.Steps() {
		names = append(names, s.Name())
	}
	return names
}

func TestTraversal_AddStepPreservesOrder(t *testing.T) {
	tr := New(ModeStandard)
	require.NoError(t, tr.AddStep(newTestStep(t, "a", KindMap)))
	require.NoError(t, tr.AddStep(newTestStep(t, "b", KindFilter)))
	require.NoError(t, tr.AddStep(newTestStep(t, "c", KindBarrier)))

	assert.Equal(t, []string{"a", "b", "c"}, stepNames(tr))
	assert.Equal(t, 3, tr.Len())
	assert.Equal(t, "a", tr.First().Name())
	assert.Equal(t, "c", tr.Last().Name())
}

func TestTraversal_InsertBeforeAndAfter(t *testing.T) {
	tr := New(ModeStandard)
	a := newTestStep(t, "a", KindMap)
	c := newTestStep(t, "c", KindMap)
	require.NoError(t, tr.AddStep(a))
	require.NoError(t, tr.AddStep(c))

	require.NoError(t, tr.InsertAfter(tr.IndexOf(a), newTestStep(t, "b", KindMap)))
	require.NoError(t, tr.InsertBefore(tr.IndexOf(a), newTestStep(t, "start", KindMap)))
	require.NoError(t, tr.InsertAfter(tr.IndexOf(c), newTestStep(t, "end", KindMap)))

	assert.Equal(t, []string{"start", "a", "b", "c", "end"}, stepNames(tr))
	assert.Equal(t, "start", tr.First().Name())
	assert.Equal(t, "end", tr.Last().Name())
}

func TestTraversal_IndicesStableAcrossRemoval(t *testing.T) {
	tr := New(ModeStandard)
	a := newTestStep(t, "a", KindMap)
	b := newTestStep(t, "b", KindMap)
	c := newTestStep(t, "c", KindMap)
	require.NoError(t, tr.AddStep(a))
	require.NoError(t, tr.AddStep(b))
	require.NoError(t, tr.AddStep(c))

	idxA, idxB, idxC := tr.IndexOf(a), tr.IndexOf(b), tr.IndexOf(c)
	require.NoError(t, tr.Remove(idxB))

	// Indices held before the removal still address the same steps.
	assert.Same(t, a, tr.StepAt(idxA))
	assert.Same(t, c, tr.StepAt(idxC))
	assert.Nil(t, tr.StepAt(idxB))
	assert.Equal(t, idxC, tr.Next(idxA))
	assert.Equal(t, idxA, tr.Prev(idxC))
	assert.Equal(t, 2, tr.Len())
	assert.Nil(t, b.Owner())
}

func TestTraversal_RemoveRejectsDeadIndex(t *testing.T) {
	tr := New(ModeStandard)
	a := newTestStep(t, "a", KindMap)
	require.NoError(t, tr.AddStep(a))
	idx := tr.IndexOf(a)
	require.NoError(t, tr.Remove(idx))

	err := tr.Remove(idx)
	require.Error(t, err)
	assert.True(t, IsIntegrityError(err))
}

func TestTraversal_RemoveMigratesLabels(t *testing.T) {
	testCases := []struct {
		name       string
		successor  []string
		wantOn     string
		wantLabels []string
	}{
		{
			name:       "labels move to unlabeled successor",
			successor:  nil,
			wantOn:     "succ",
			wantLabels: []string{"x"},
		},
		{
			name:       "labeled successor keeps its own labels",
			successor:  []string{"own"},
			wantOn:     "succ",
			wantLabels: []string{"own"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tr := New(ModeStandard)
			doomed := newTestStep(t, "doomed", KindMap, "x")
			succ := newTestStep(t, "succ", KindMap, tc.successor...)
			require.NoError(t, tr.AddStep(doomed))
			require.NoError(t, tr.AddStep(succ))

			require.NoError(t, tr.Remove(tr.IndexOf(doomed)))
			assert.Equal(t, tc.wantLabels, succ.Labels())
		})
	}
}

func TestTraversal_RemoveTailMigratesLabelsToPredecessor(t *testing.T) {
	tr := New(ModeStandard)
	pred := newTestStep(t, "pred", KindMap)
	doomed := newTestStep(t, "doomed", KindMap, "x")
	require.NoError(t, tr.AddStep(pred))
	require.NoError(t, tr.AddStep(doomed))

	require.NoError(t, tr.Remove(tr.IndexOf(doomed)))
	assert.Equal(t, []string{"x"}, pred.Labels())
	assert.Same(t, pred, tr.Last())
}

func TestTraversal_ReplaceMigratesLabels(t *testing.T) {
	testCases := []struct {
		name        string
		replacement []string
		wantLabels  []string
	}{
		{
			name:        "labels move to unlabeled replacement",
			replacement: nil,
			wantLabels:  []string{"x"},
		},
		{
			name:        "labeled replacement keeps its own labels",
			replacement: []string{"own"},
			wantLabels:  []string{"own"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tr := New(ModeStandard)
			old := newTestStep(t, "old", KindMap, "x")
			require.NoError(t, tr.AddStep(old))

			repl := newTestStep(t, "new", KindMap, tc.replacement...)
			require.NoError(t, tr.Replace(tr.IndexOf(old), repl))

			assert.Equal(t, tc.wantLabels, repl.Labels())
			assert.Equal(t, []string{"new"}, stepNames(tr))
			assert.Nil(t, old.Owner())
		})
	}
}

func TestTraversal_AdoptRejectsOwnedStep(t *testing.T) {
	tr := New(ModeStandard)
	s := newTestStep(t, "a", KindMap)
	require.NoError(t, tr.AddStep(s))

	other := New(ModeStandard)
	err := other.AddStep(s)
	require.Error(t, err)
	assert.True(t, IsConstructionError(err))
	assert.Contains(t, err.Error(), "already belongs")
}

func TestTraversal_LockedAfterFinalize(t *testing.T) {
	tr := New(ModeStandard)
	a := newTestStep(t, "a", KindMap)
	require.NoError(t, tr.AddStep(a))
	tr.Finalize()

	require.True(t, tr.Compiled())

	err := tr.AddStep(newTestStep(t, "b", KindMap))
	require.Error(t, err)
	assert.True(t, IsConstructionError(err))

	err = tr.Remove(tr.IndexOf(a))
	require.Error(t, err)
	assert.True(t, IsConstructionError(err))
}

func TestTraversal_FinalizeLocksChildren(t *testing.T) {
	child := New(ModeStandard)
	require.NoError(t, child.AddStep(newTestStep(t, "inner", KindMap)))

	parent := newTestParentStep(t, "parent")
	parent.addLocal(t, child)

	root := New(ModeStandard)
	require.NoError(t, root.AddStep(parent))
	root.Finalize()

	assert.True(t, child.Compiled())
}

func TestTraversal_TreePredicates(t *testing.T) {
	localChild := New(ModeStandard)
	require.NoError(t, localChild.AddStep(newTestStep(t, "l", KindMap)))
	globalChild := New(ModeStandard)
	require.NoError(t, globalChild.AddStep(newTestStep(t, "g", KindMap)))

	parent := newTestParentStep(t, "parent")
	parent.addLocal(t, localChild)
	parent.addGlobal(t, globalChild)

	root := New(ModeComputer)
	require.NoError(t, root.AddStep(parent))

	assert.True(t, root.IsRoot())
	assert.False(t, localChild.IsRoot())
	assert.Same(t, root, localChild.Root())
	assert.Same(t, root, globalChild.Root())

	assert.True(t, root.OnGraphComputer())
	assert.True(t, localChild.OnGraphComputer())

	assert.True(t, root.IsGlobalChild())
	assert.True(t, globalChild.IsGlobalChild())
	assert.False(t, localChild.IsGlobalChild())
}

func TestTraversal_GlobalUnderLocalIsNotGlobalChild(t *testing.T) {
	inner := New(ModeStandard)
	require.NoError(t, inner.AddStep(newTestStep(t, "inner", KindMap)))
	innerParent := newTestParentStep(t, "innerParent")
	innerParent.addGlobal(t, inner)

	middle := New(ModeStandard)
	require.NoError(t, middle.AddStep(innerParent))
	outerParent := newTestParentStep(t, "outerParent")
	outerParent.addLocal(t, middle)

	root := New(ModeStandard)
	require.NoError(t, root.AddStep(outerParent))

	// One local hop anywhere on the way up disqualifies the whole chain.
	assert.False(t, inner.IsGlobalChild())
}

func TestTraversal_ChildHasSingleOwner(t *testing.T) {
	child := New(ModeStandard)
	first := newTestParentStep(t, "first")
	first.addLocal(t, child)

	second := newTestParentStep(t, "second")
	err := IntegrateChild(second, child, ChildLocal)
	require.Error(t, err)
	assert.True(t, IsConstructionError(err))
}

func TestTraversal_RequirementsAggregate(t *testing.T) {
	child := New(ModeStandard)
	pathStep := newTestStep(t, "inner", KindMap)
	pathStep.reqs = ReqObject | ReqPath
	require.NoError(t, child.AddStep(pathStep))

	parent := newTestParentStep(t, "parent")
	parent.addLocal(t, child)

	root := New(ModeStandard)
	require.NoError(t, root.AddStep(newTestStep(t, "plain", KindMap)))
	require.NoError(t, root.AddStep(parent))

	reqs := root.Requirements()
	assert.True(t, reqs.Has(ReqObject))
	assert.True(t, reqs.Has(ReqPath))
}

func TestTraversal_RequirementsCacheInvalidatedByChildMutation(t *testing.T) {
	child := New(ModeStandard)
	require.NoError(t, child.AddStep(newTestStep(t, "inner", KindMap)))

	parent := newTestParentStep(t, "parent")
	parent.addLocal(t, child)

	root := New(ModeStandard)
	require.NoError(t, root.AddStep(parent))
	require.False(t, root.Requirements().Has(ReqSideEffects))

	bagStep := newTestStep(t, "bag", KindSideEffect)
	bagStep.reqs = ReqObject | ReqSideEffects
	require.NoError(t, child.AddStep(bagStep))

	// The root observes a mutation made deep in the tree.
	assert.True(t, root.Requirements().Has(ReqSideEffects))
}

func TestTraversal_CloneIsIndependent(t *testing.T) {
	tr := New(ModeStandard)
	a := newTestStep(t, "a", KindMap, "keep")
	b := newTestStep(t, "b", KindMap)
	require.NoError(t, tr.AddStep(a))
	require.NoError(t, tr.AddStep(b))
	idxB := tr.IndexOf(b)

	cp := tr.Clone()
	require.Equal(t, stepNames(tr), stepNames(cp))

	// Steps are distinct instances with the clone as owner.
	require.NotSame(t, tr.First(), cp.First())
	assert.Same(t, cp, cp.First().Owner())
	assert.Equal(t, []string{"keep"}, cp.First().Labels())

	// Indices carry the same meaning on both copies.
	assert.Equal(t, "b", cp.StepAt(idxB).Name())

	// Mutating the original leaves the clone untouched.
	require.NoError(t, tr.Remove(idxB))
	assert.Equal(t, 2, cp.Len())
	assert.Equal(t, 1, tr.Len())
}

func TestTraversal_CloneDeepCopiesChildren(t *testing.T) {
	child := New(ModeStandard)
	require.NoError(t, child.AddStep(newTestStep(t, "inner", KindMap)))
	parent := newTestParentStep(t, "parent")
	parent.addLocal(t, child)

	root := New(ModeStandard)
	require.NoError(t, root.AddStep(parent))

	cp := root.Clone()
	clonedParent, ok := cp.First().(*testParentStep)
	require.True(t, ok)
	require.Len(t, clonedParent.LocalChildren(), 1)

	clonedChild := clonedParent.LocalChildren()[0]
	require.NotSame(t, child, clonedChild)
	assert.Same(t, clonedParent, clonedChild.ParentStep())
	assert.Same(t, cp, clonedChild.Root())
}

func TestTraversal_StepsOfKind(t *testing.T) {
	tr := New(ModeStandard)
	require.NoError(t, tr.AddStep(newTestStep(t, "m1", KindMap)))
	require.NoError(t, tr.AddStep(newTestStep(t, "f1", KindFilter)))
	require.NoError(t, tr.AddStep(newTestStep(t, "m2", KindMap)))

	var names []string
	for _, idx := range tr.StepsOfKind(KindMap) {
		names = append(names, tr.StepAt(idx).Name())
	}
	assert.Equal(t, []string{"m1", "m2"}, names)
	assert.Empty(t, tr.StepsOfKind(KindBarrier))
}

func TestTraversal_SetModeRootOnly(t *testing.T) {
	child := New(ModeStandard)
	parent := newTestParentStep(t, "parent")
	parent.addLocal(t, child)

	root := New(ModeStandard)
	require.NoError(t, root.AddStep(parent))

	require.NoError(t, root.SetMode(ModeComputer))
	assert.True(t, child.OnGraphComputer())

	err := child.SetMode(ModeStandard)
	require.Error(t, err)
	assert.True(t, IsConstructionError(err))
}

func TestParseMode(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		want    ExecutionMode
		wantErr bool
	}{
		{name: "standard", input: "standard", want: ModeStandard},
		{name: "computer", input: "computer", want: ModeComputer},
		{name: "empty defaults to standard", input: "", want: ModeStandard},
		{name: "unknown rejected", input: "cluster", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mode, err := ParseMode(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, mode)
		})
	}
}
