package step

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hopscotch/internal/pipeline"
)

func TestNewUnionStep_RequiresBranches(t *testing.T) {
	_, err := NewUnionStep()
	require.Error(t, err)
	assert.True(t, pipeline.IsConstructionError(err))
}

func TestUnionStep_ConcatenatesBranchResultsInOrder(t *testing.T) {
	evens := branchOf(t, newEvenFilter())
	all := branchOf(t, NewIdentityStep())

	u, err := NewUnionStep(evens, all)
	require.NoError(t, err)

	root := pipeline.New(pipeline.ModeStandard)
	require.NoError(t, root.AddStep(u))
	root.Finalize()

	starts := []*pipeline.Traverser{
		pipeline.NewTraverser(1, pipeline.ReqObject, nil),
		pipeline.NewTraverser(2, pipeline.ReqObject, nil),
	}
	out, err := root.Process(context.Background(), starts)
	require.NoError(t, err)

	var values []any
	for _, tr := range out {
		values = append(values, tr.Value())
	}
	// First branch's survivors, then the second branch's.
	assert.Equal(t, []any{2, 1, 2}, values)
}

func TestUnionStep_BranchStateIsIndependent(t *testing.T) {
	left := branchOf(t, NewDedupStep())
	right := branchOf(t, NewDedupStep())

	u, err := NewUnionStep(left, right)
	require.NoError(t, err)

	root := pipeline.New(pipeline.ModeStandard)
	require.NoError(t, root.AddStep(u))
	root.Finalize()

	starts := []*pipeline.Traverser{
		pipeline.NewTraverser("x", pipeline.ReqObject, nil),
		pipeline.NewTraverser("x", pipeline.ReqObject, nil),
	}
	out, err := root.Process(context.Background(), starts)
	require.NoError(t, err)

	// Each branch deduplicates on its own: one survivor per branch, not
	// one overall.
	assert.Len(t, out, 2)
}

func TestUnionStep_BranchesAreGlobalChildren(t *testing.T) {
	branch := branchOf(t, NewIdentityStep())
	u, err := NewUnionStep(branch)
	require.NoError(t, err)

	root := pipeline.New(pipeline.ModeComputer)
	require.NoError(t, root.AddStep(u))

	assert.True(t, branch.IsGlobalChild())
	assert.True(t, branch.OnGraphComputer())
	assert.Empty(t, u.LocalChildren())
	require.Len(t, u.GlobalChildren(), 1)
}

func TestUnionStep_CloneIsDeep(t *testing.T) {
	u, err := NewUnionStep(branchOf(t, NewIdentityStep()))
	require.NoError(t, err)

	cp, ok := u.Clone().(*UnionStep)
	require.True(t, ok)
	require.Len(t, cp.GlobalChildren(), 1)
	assert.NotSame(t, u.GlobalChildren()[0], cp.GlobalChildren()[0])
	assert.Same(t, cp, cp.GlobalChildren()[0].ParentStep().(*UnionStep))
}
