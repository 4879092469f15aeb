package sqlitegraph

import (
	"github.com/roach88/hopscotch/internal/pipeline"
	"github.com/roach88/hopscotch/internal/step"
	"github.com/roach88/hopscotch/internal/strategy"
)

// Provider strategy names.
const (
	NameCountSource   = "countSource"
	NameSourceBinding = "sourceBinding"
)

// CountSourceStrategy collapses a head scan immediately followed by a
// count into a single storage-side probe, turning a full vertex
// materialization into one COUNT(*) query.
//
// The rewrite fires only at the root, where the runner actually seeds
// the head step, and never when the pipeline needs path history: the
// probe has no vertices to put in a path.
type CountSourceStrategy struct{}

func (CountSourceStrategy) Name() string                { return NameCountSource }
func (CountSourceStrategy) Category() strategy.Category { return strategy.CategoryProviderOptimization }
func (CountSourceStrategy) RunsBefore() []string        { return nil }
func (CountSourceStrategy) RunsAfter() []string         { return nil }

// Apply splices the probe over a head scan/count adjacency. The scan's
// labels migrate to the probe through Replace; the count's labels follow
// Remove's migration rule.
func (CountSourceStrategy) Apply(t *pipeline.Traversal) error {
	if !t.IsRoot() {
		return nil
	}
	if t.Requirements().Has(pipeline.ReqPath) {
		return nil
	}

	head := t.Head()
	if head == pipeline.NoStep {
		return nil
	}
	scan, ok := t.StepAt(head).(*ScanStep)
	if !ok {
		return nil
	}
	next := t.Next(head)
	if next == pipeline.NoStep {
		return nil
	}
	if _, ok := t.StepAt(next).(*step.CountStep); !ok {
		return nil
	}

	if err := t.Replace(head, NewCountProbeStep(scan.vertexLabel)); err != nil {
		return err
	}
	return t.Remove(next)
}

// SourceBindingStrategy hands the store to every graph leaf step in the
// tree. It runs at finalization, after all structural rewrites have
// settled, so no freshly planted step can miss its handle.
type SourceBindingStrategy struct {
	store *Store
}

// NewSourceBindingStrategy creates the binding pass for one store.
func NewSourceBindingStrategy(store *Store) SourceBindingStrategy {
	return SourceBindingStrategy{store: store}
}

func (SourceBindingStrategy) Name() string                { return NameSourceBinding }
func (SourceBindingStrategy) Category() strategy.Category { return strategy.CategoryFinalization }
func (SourceBindingStrategy) RunsBefore() []string        { return nil }
func (SourceBindingStrategy) RunsAfter() []string         { return nil }

// Apply binds every store-reading step in the traversal.
func (b SourceBindingStrategy) Apply(t *pipeline.Traversal) error {
	if b.store == nil {
		return &pipeline.ConstructionError{Site: NameSourceBinding, Reason: "no graph source to bind"}
	}
	for _, s := range t.Steps() {
		if leaf, ok := s.(storeBound); ok {
			leaf.bindStore(b.store)
		}
	}
	return nil
}

// RegisterStrategies adds the provider's strategies to a registry. Call
// before sealing.
func RegisterStrategies(r *strategy.Registry, store *Store) error {
	if err := r.Register(CountSourceStrategy{}); err != nil {
		return err
	}
	return r.Register(NewSourceBindingStrategy(store))
}
