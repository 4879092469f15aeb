package strategy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hopscotch/internal/pipeline"
	"github.com/roach88/hopscotch/internal/step"
)

// stubStep is an identity mapper with configurable requirements.
type stubStep struct {
	pipeline.BaseStep
	reqs pipeline.RequirementSet
}

func newStubStep(name string, reqs pipeline.RequirementSet) *stubStep {
	return &stubStep{BaseStep: pipeline.NewBaseStep(name, pipeline.KindMap), reqs: reqs}
}

func (s *stubStep) Requirements() pipeline.RequirementSet { return s.reqs }

func (s *stubStep) Clone() pipeline.Step {
	return &stubStep{BaseStep: s.CloneBase(), reqs: s.reqs}
}

func (s *stubStep) Map(_ context.Context, tr *pipeline.Traverser) (any, error) {
	return tr.Value(), nil
}

// rogueOwnerStep lies about its owner, which only the integrity check
// can notice.
type rogueOwnerStep struct {
	stubStep
}

func (s *rogueOwnerStep) Owner() *pipeline.Traversal { return nil }

// dirtyLabelStep reports a label the normalizer would never produce.
type dirtyLabelStep struct {
	stubStep
}

func (s *dirtyLabelStep) Labels() []string { return []string{""} }

// stolenChildStep claims a child traversal that is integrated under a
// different step.
type stolenChildStep struct {
	stubStep
	child *pipeline.Traversal
}

func (s *stolenChildStep) LocalChildren() []*pipeline.Traversal  { return []*pipeline.Traversal{s.child} }
func (s *stolenChildStep) GlobalChildren() []*pipeline.Traversal { return nil }

func labeled(t *testing.T, s pipeline.Step, labels ...string) pipeline.Step {
	t.Helper()
	for _, l := range labels {
		require.NoError(t, s.AddLabel(l))
	}
	return s
}

func TestConnectiveStrategy_FoldsMainPipelineMarkers(t *testing.T) {
	tr := pipeline.New(pipeline.ModeStandard)
	require.NoError(t, tr.AddStep(step.NewInjectStep("a")))
	or, err := step.NewOrStep()
	require.NoError(t, err)
	require.NoError(t, tr.AddStep(or))
	require.NoError(t, tr.AddStep(step.NewInjectStep("b")))

	require.NoError(t, Compile(tr, sealedCore(t)))

	assert.Equal(t, "[or([inject(a)],[inject(b)])]", pipeline.Render(tr))
}

func TestIdentityRemovalStrategy(t *testing.T) {
	testCases := []struct {
		name   string
		build  func(t *testing.T, tr *pipeline.Traversal)
		expect string
	}{
		{
			name: "unlabeled identities removed",
			build: func(t *testing.T, tr *pipeline.Traversal) {
				require.NoError(t, tr.AddStep(step.NewIdentityStep()))
				require.NoError(t, tr.AddStep(step.NewInjectStep(1)))
				require.NoError(t, tr.AddStep(step.NewIdentityStep()))
			},
			expect: "[inject(1)]",
		},
		{
			name: "labels migrate onto an unlabeled successor",
			build: func(t *testing.T, tr *pipeline.Traversal) {
				require.NoError(t, tr.AddStep(labeled(t, step.NewIdentityStep(), "a")))
				require.NoError(t, tr.AddStep(step.NewInjectStep(1)))
			},
			expect: "[inject(1)@[a]]",
		},
		{
			name: "labeled identity before a labeled successor stays",
			build: func(t *testing.T, tr *pipeline.Traversal) {
				require.NoError(t, tr.AddStep(labeled(t, step.NewIdentityStep(), "a")))
				require.NoError(t, tr.AddStep(labeled(t, step.NewInjectStep(1), "b")))
			},
			expect: "[identity()@[a] -> inject(1)@[b]]",
		},
		{
			name: "labeled sole identity stays",
			build: func(t *testing.T, tr *pipeline.Traversal) {
				require.NoError(t, tr.AddStep(labeled(t, step.NewIdentityStep(), "a")))
			},
			expect: "[identity()@[a]]",
		},
		{
			name: "tail identity labels migrate backward",
			build: func(t *testing.T, tr *pipeline.Traversal) {
				require.NoError(t, tr.AddStep(step.NewInjectStep(1)))
				require.NoError(t, tr.AddStep(labeled(t, step.NewIdentityStep(), "a")))
			},
			expect: "[inject(1)@[a]]",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tr := pipeline.New(pipeline.ModeStandard)
			tc.build(t, tr)

			require.NoError(t, IdentityRemovalStrategy{}.Apply(tr))

			assert.Equal(t, tc.expect, pipeline.Render(tr))
		})
	}
}

func TestScopePreferenceStrategy(t *testing.T) {
	child := pipeline.New(pipeline.ModeStandard)
	require.NoError(t, child.AddStep(labeled(t, step.NewInjectStep(), "a")))
	where, err := step.NewWhereStep(pipeline.ScopeGlobal, child)
	require.NoError(t, err)

	free := step.NewWhereStartStep("")
	bound := step.NewWhereStartStep("b")
	end := step.NewWhereEndStep("")

	tr := pipeline.New(pipeline.ModeStandard)
	for _, s := range []pipeline.Step{free, bound, end, where} {
		require.NoError(t, tr.AddStep(s))
	}

	require.NoError(t, ScopePreferenceStrategy{}.Apply(tr))

	// Only the keyless, coercible marker flips to local.
	assert.Equal(t, pipeline.ScopeLocal, free.Scope())
	assert.Equal(t, pipeline.ScopeGlobal, bound.Scope())
	assert.Equal(t, pipeline.ScopeGlobal, end.Scope())
	assert.Equal(t, pipeline.ScopeGlobal, where.Scope())
}

func TestDedupCountStrategy_ModeGating(t *testing.T) {
	testCases := []struct {
		name   string
		mode   pipeline.ExecutionMode
		expect string
	}{
		{
			name:   "fused on the graph computer",
			mode:   pipeline.ModeComputer,
			expect: "[inject(1,2,2,3) -> dedupCount()]",
		},
		{
			name:   "left unfused on a single machine",
			mode:   pipeline.ModeStandard,
			expect: "[inject(1,2,2,3) -> dedup() -> count()]",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tr := pipeline.New(tc.mode)
			require.NoError(t, tr.AddStep(step.NewInjectStep(1, 2, 2, 3)))
			require.NoError(t, tr.AddStep(step.NewDedupStep()))
			require.NoError(t, tr.AddStep(step.NewCountStep()))

			require.NoError(t, DedupCountStrategy{}.Apply(tr))

			assert.Equal(t, tc.expect, pipeline.Render(tr))
		})
	}
}

func TestDedupCountStrategy_SkipsLocalChildren(t *testing.T) {
	child := pipeline.New(pipeline.ModeComputer)
	require.NoError(t, child.AddStep(step.NewDedupStep()))
	require.NoError(t, child.AddStep(step.NewCountStep()))
	not, err := step.NewNotStep(child)
	require.NoError(t, err)
	root := pipeline.New(pipeline.ModeComputer)
	require.NoError(t, root.AddStep(step.NewInjectStep(1)))
	require.NoError(t, root.AddStep(not))

	require.NoError(t, DedupCountStrategy{}.Apply(child))

	// A local child re-runs per parent traverser; the fused barrier
	// would count across parents. Stays unfused.
	assert.Equal(t, "[dedup() -> count()]", pipeline.Render(child))
}

func TestDedupCountStrategy_FusesGlobalChildren(t *testing.T) {
	branch := pipeline.New(pipeline.ModeComputer)
	require.NoError(t, branch.AddStep(step.NewDedupStep()))
	require.NoError(t, branch.AddStep(step.NewCountStep()))
	union, err := step.NewUnionStep(branch)
	require.NoError(t, err)
	root := pipeline.New(pipeline.ModeComputer)
	require.NoError(t, root.AddStep(step.NewInjectStep(1)))
	require.NoError(t, root.AddStep(union))

	require.NoError(t, DedupCountStrategy{}.Apply(branch))

	assert.Equal(t, "[dedupCount()]", pipeline.Render(branch))
}

func TestDedupCountStrategy_LabelMigration(t *testing.T) {
	t.Run("dedup label rides the replacement", func(t *testing.T) {
		tr := pipeline.New(pipeline.ModeComputer)
		require.NoError(t, tr.AddStep(labeled(t, step.NewDedupStep(), "d")))
		require.NoError(t, tr.AddStep(step.NewCountStep()))

		require.NoError(t, DedupCountStrategy{}.Apply(tr))

		assert.Equal(t, "[dedupCount()@[d]]", pipeline.Render(tr))
	})

	t.Run("count label falls back to the fused step", func(t *testing.T) {
		tr := pipeline.New(pipeline.ModeComputer)
		require.NoError(t, tr.AddStep(step.NewDedupStep()))
		require.NoError(t, tr.AddStep(labeled(t, step.NewCountStep(), "c")))

		require.NoError(t, DedupCountStrategy{}.Apply(tr))

		assert.Equal(t, "[dedupCount()@[c]]", pipeline.Render(tr))
	})
}

func TestDedupCountStrategy_CompiledFusionCountsDistinct(t *testing.T) {
	tr := pipeline.New(pipeline.ModeComputer)
	require.NoError(t, tr.AddStep(step.NewInjectStep()))
	require.NoError(t, tr.AddStep(step.NewDedupStep()))
	require.NoError(t, tr.AddStep(step.NewCountStep()))
	require.NoError(t, Compile(tr, sealedCore(t)))

	values := []any{"x", "y", "y", "z", "x"}
	distinct := map[any]bool{}
	starts := make([]*pipeline.Traverser, len(values))
	for i, v := range values {
		distinct[v] = true
		starts[i] = pipeline.NewTraverser(v, tr.Requirements(), nil)
	}

	out, err := tr.Process(context.Background(), starts)
	require.NoError(t, err)

	require.Len(t, out, 1)
	assert.Equal(t, int64(len(distinct)), out[0].Value())
}

func TestComputerVerificationStrategy(t *testing.T) {
	buildNot := func(t *testing.T, mode pipeline.ExecutionMode, reqs pipeline.RequirementSet) *pipeline.Traversal {
		t.Helper()
		child := pipeline.New(mode)
		require.NoError(t, child.AddStep(newStubStep("probe", reqs)))
		not, err := step.NewNotStep(child)
		require.NoError(t, err)
		root := pipeline.New(mode)
		require.NoError(t, root.AddStep(step.NewInjectStep(1)))
		require.NoError(t, root.AddStep(not))
		return root
	}

	t.Run("path-needing local child rejected on the computer", func(t *testing.T) {
		root := buildNot(t, pipeline.ModeComputer, pipeline.ReqObject|pipeline.ReqPath)

		err := ComputerVerificationStrategy{}.Apply(root)
		require.Error(t, err)
		assert.True(t, pipeline.IsConstructionError(err))
		assert.Contains(t, err.Error(), "path history")
	})

	t.Run("same tree passes on a single machine", func(t *testing.T) {
		root := buildNot(t, pipeline.ModeStandard, pipeline.ReqObject|pipeline.ReqPath)
		assert.NoError(t, ComputerVerificationStrategy{}.Apply(root))
	})

	t.Run("path-free local child passes", func(t *testing.T) {
		root := buildNot(t, pipeline.ModeComputer, pipeline.ReqObject)
		assert.NoError(t, ComputerVerificationStrategy{}.Apply(root))
	})

	t.Run("global children may keep the path", func(t *testing.T) {
		branch := pipeline.New(pipeline.ModeComputer)
		require.NoError(t, branch.AddStep(newStubStep("probe", pipeline.ReqObject|pipeline.ReqPath)))
		union, err := step.NewUnionStep(branch)
		require.NoError(t, err)
		root := pipeline.New(pipeline.ModeComputer)
		require.NoError(t, root.AddStep(union))

		assert.NoError(t, ComputerVerificationStrategy{}.Apply(root))
	})
}

func TestIntegrityStrategy_CleanTraversalPasses(t *testing.T) {
	tr := injectPipeline(t, pipeline.ModeStandard, 1, 2)
	require.NoError(t, tr.AddStep(step.NewDedupStep()))
	// A tombstoned slot is normal arena state, not a violation.
	require.NoError(t, tr.Remove(tr.Head()))

	assert.NoError(t, IntegrityStrategy{}.Apply(tr))
}

func TestIntegrityStrategy_CatchesDisownedStep(t *testing.T) {
	tr := pipeline.New(pipeline.ModeStandard)
	rogue := &rogueOwnerStep{stubStep: *newStubStep("rogue", pipeline.ReqObject)}
	require.NoError(t, tr.AddStep(rogue))

	err := IntegrityStrategy{}.Apply(tr)
	require.Error(t, err)
	assert.True(t, pipeline.IsIntegrityError(err))
	assert.Contains(t, err.Error(), "step ownership")
}

func TestIntegrityStrategy_CatchesEmptyLabel(t *testing.T) {
	tr := pipeline.New(pipeline.ModeStandard)
	dirty := &dirtyLabelStep{stubStep: *newStubStep("dirty", pipeline.ReqObject)}
	require.NoError(t, tr.AddStep(dirty))

	err := IntegrityStrategy{}.Apply(tr)
	require.Error(t, err)
	assert.True(t, pipeline.IsIntegrityError(err))
	assert.Contains(t, err.Error(), "label hygiene")
}

func TestIntegrityStrategy_CatchesStaleChildPointer(t *testing.T) {
	child := pipeline.New(pipeline.ModeStandard)
	require.NoError(t, child.AddStep(step.NewInjectStep(1)))
	not, err := step.NewNotStep(child)
	require.NoError(t, err)
	elsewhere := pipeline.New(pipeline.ModeStandard)
	require.NoError(t, elsewhere.AddStep(not))

	thief := &stolenChildStep{stubStep: *newStubStep("thief", pipeline.ReqObject), child: child}
	tr := pipeline.New(pipeline.ModeStandard)
	require.NoError(t, tr.AddStep(thief))

	err = IntegrityStrategy{}.Apply(tr)
	require.Error(t, err)
	assert.True(t, pipeline.IsIntegrityError(err))
	assert.Contains(t, err.Error(), "child linkage")
}

func TestIntegrityStrategy_CatchesRequirementDrift(t *testing.T) {
	mut := newStubStep("shifty", pipeline.ReqObject)
	tr := pipeline.New(pipeline.ModeStandard)
	require.NoError(t, tr.AddStep(mut))
	tr.RefreshRequirements()

	// The step's declared requirements change behind the cache's back.
	mut.reqs = pipeline.ReqObject | pipeline.ReqPath

	err := IntegrityStrategy{}.Apply(tr)
	require.Error(t, err)
	assert.True(t, pipeline.IsIntegrityError(err))
	assert.Contains(t, err.Error(), "requirement agreement")
}
