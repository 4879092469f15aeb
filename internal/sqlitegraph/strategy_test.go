package sqlitegraph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hopscotch/internal/pipeline"
	"github.com/roach88/hopscotch/internal/step"
	"github.com/roach88/hopscotch/internal/strategy"
)

// trailStep needs path history, which gates the count-source rewrite.
type trailStep struct {
	pipeline.BaseStep
}

func newTrailStep() *trailStep {
	return &trailStep{BaseStep: pipeline.NewBaseStep("trail", pipeline.KindMap)}
}

func (s *trailStep) Requirements() pipeline.RequirementSet {
	return pipeline.ReqObject | pipeline.ReqPath
}

func (s *trailStep) Clone() pipeline.Step { return &trailStep{BaseStep: s.CloneBase()} }

func (s *trailStep) Map(_ context.Context, tr *pipeline.Traverser) (any, error) {
	return tr.Value(), nil
}

// providerRegistry seals the stock strategies plus this provider's.
func providerRegistry(t *testing.T, s *Store) *strategy.Registry {
	t.Helper()
	r := strategy.Core()
	require.NoError(t, RegisterStrategies(r, s))
	require.NoError(t, r.Seal())
	return r
}

func TestRegisterStrategies(t *testing.T) {
	s := createModernStore(t)
	r := providerRegistry(t, s)

	provider := r.Ordered(strategy.CategoryProviderOptimization)
	require.Len(t, provider, 1)
	assert.Equal(t, NameCountSource, provider[0].Name())

	final := r.Ordered(strategy.CategoryFinalization)
	require.Len(t, final, 1)
	assert.Equal(t, NameSourceBinding, final[0].Name())
}

func TestRegisterStrategies_AfterSealFails(t *testing.T) {
	s := createModernStore(t)

	r := strategy.Core()
	require.NoError(t, r.Seal())

	err := RegisterStrategies(r, s)
	require.Error(t, err)
	assert.True(t, pipeline.IsConstructionError(err))
}

func TestCountSourceStrategy_FusesHeadScanCount(t *testing.T) {
	s := createModernStore(t)
	ctx := context.Background()

	tr := pipeline.New(pipeline.ModeStandard)
	require.NoError(t, tr.AddStep(NewScanStep("person")))
	require.NoError(t, tr.AddStep(step.NewCountStep()))

	require.NoError(t, strategy.Compile(tr, providerRegistry(t, s)))
	require.Equal(t, "[countProbe(person)]", pipeline.Render(tr))

	// The probe is bound and answers from storage
	probe := tr.First().(*CountProbeStep)
	seeds, err := probe.Seed(ctx)
	require.NoError(t, err)

	starts := make([]*pipeline.Traverser, len(seeds))
	for i, seed := range seeds {
		starts[i] = pipeline.NewTraverser(seed, tr.Requirements(), nil)
	}
	results, err := tr.Process(ctx, starts)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(4), results[0].Value())
}

func TestCountSourceStrategy_CarriesScanLabels(t *testing.T) {
	s := createModernStore(t)

	scan := NewScanStep("person")
	require.NoError(t, scan.AddLabel("g"))

	tr := pipeline.New(pipeline.ModeStandard)
	require.NoError(t, tr.AddStep(scan))
	require.NoError(t, tr.AddStep(step.NewCountStep()))

	require.NoError(t, strategy.Compile(tr, providerRegistry(t, s)))
	assert.Equal(t, "[countProbe(person)@[g]]", pipeline.Render(tr))
}

func TestCountSourceStrategy_SkipsWhenPathRequired(t *testing.T) {
	s := createModernStore(t)

	tr := pipeline.New(pipeline.ModeStandard)
	require.NoError(t, tr.AddStep(NewScanStep("person")))
	require.NoError(t, tr.AddStep(step.NewCountStep()))
	require.NoError(t, tr.AddStep(newTrailStep()))

	require.NoError(t, strategy.Compile(tr, providerRegistry(t, s)))
	assert.Equal(t, "[scan(person) -> count() -> trail()]", pipeline.Render(tr))
}

func TestCountSourceStrategy_RequiresHeadPosition(t *testing.T) {
	s := createModernStore(t)

	tr := pipeline.New(pipeline.ModeStandard)
	require.NoError(t, tr.AddStep(step.NewInjectStep("marko")))
	require.NoError(t, tr.AddStep(NewScanStep("person")))
	require.NoError(t, tr.AddStep(step.NewCountStep()))

	require.NoError(t, strategy.Compile(tr, providerRegistry(t, s)))
	assert.Equal(t, "[inject(marko) -> scan(person) -> count()]", pipeline.Render(tr))
}

func TestCountSourceStrategy_RequiresAdjacentCount(t *testing.T) {
	s := createModernStore(t)

	tr := pipeline.New(pipeline.ModeStandard)
	require.NoError(t, tr.AddStep(NewScanStep("person")))
	require.NoError(t, tr.AddStep(NewOutStep("knows")))
	require.NoError(t, tr.AddStep(step.NewCountStep()))

	require.NoError(t, strategy.Compile(tr, providerRegistry(t, s)))
	assert.Equal(t, "[scan(person) -> out(knows) -> count()]", pipeline.Render(tr))
}

func TestCountSourceStrategy_IgnoresBranchScans(t *testing.T) {
	s := createModernStore(t)

	branch := pipeline.New(pipeline.ModeStandard)
	require.NoError(t, branch.AddStep(NewScanStep("person")))
	require.NoError(t, branch.AddStep(step.NewCountStep()))

	union, err := step.NewUnionStep(branch)
	require.NoError(t, err)

	tr := pipeline.New(pipeline.ModeStandard)
	require.NoError(t, tr.AddStep(union))

	// Only the root head gets seeded by a runner, so branch pairs stay put
	require.NoError(t, strategy.Compile(tr, providerRegistry(t, s)))
	assert.Equal(t, "[union([scan(person) -> count()])]", pipeline.Render(tr))
}

func TestSourceBindingStrategy_BindsWholeTree(t *testing.T) {
	s := createModernStore(t)

	branch := pipeline.New(pipeline.ModeStandard)
	require.NoError(t, branch.AddStep(NewOutStep("knows")))

	union, err := step.NewUnionStep(branch)
	require.NoError(t, err)

	tr := pipeline.New(pipeline.ModeStandard)
	require.NoError(t, tr.AddStep(NewScanStep("person")))
	require.NoError(t, tr.AddStep(union))

	require.NoError(t, strategy.Compile(tr, providerRegistry(t, s)))

	assert.Same(t, s, tr.First().(*ScanStep).store)
	inner := branch.First().(*OutStep)
	assert.Same(t, s, inner.store)
}

func TestSourceBindingStrategy_RequiresStore(t *testing.T) {
	r := strategy.Core()
	require.NoError(t, RegisterStrategies(r, nil))
	require.NoError(t, r.Seal())

	tr := pipeline.New(pipeline.ModeStandard)
	require.NoError(t, tr.AddStep(NewScanStep("person")))

	err := strategy.Compile(tr, r)
	require.Error(t, err)
	assert.True(t, pipeline.IsConstructionError(err))
	assert.ErrorContains(t, err, "no graph source to bind")
}
