package strategy

import (
	"github.com/roach88/hopscotch/internal/pipeline"
)

// Category places a strategy in one of five phases. A strategy only
// orders against other strategies in its own category; the categories
// themselves apply in the order Categories returns.
type Category string

const (
	// CategoryDecoration normalizes user input into canonical form,
	// e.g. folding infix connective markers into branch steps.
	CategoryDecoration Category = "decoration"

	// CategoryOptimization rewrites the pipeline into a cheaper
	// equivalent without knowledge of any storage provider.
	CategoryOptimization Category = "optimization"

	// CategoryProviderOptimization rewrites steps into provider-native
	// probes, e.g. collapsing a scan-then-count into a storage-side
	// count.
	CategoryProviderOptimization Category = "providerOptimization"

	// CategoryVerification checks invariants and rejects pipelines the
	// runtime cannot execute. Verification strategies never mutate.
	CategoryVerification Category = "verification"

	// CategoryFinalization binds remaining loose ends, e.g. storage
	// handles, immediately before the traversal locks.
	CategoryFinalization Category = "finalization"
)

// Categories returns the categories in application order.
func Categories() []Category {
	return []Category{
		CategoryDecoration,
		CategoryOptimization,
		CategoryProviderOptimization,
		CategoryVerification,
		CategoryFinalization,
	}
}

func (c Category) valid() bool {
	switch c {
	case CategoryDecoration, CategoryOptimization, CategoryProviderOptimization,
		CategoryVerification, CategoryFinalization:
		return true
	}
	return false
}

// Strategy is one rewrite pass over a traversal.
type Strategy interface {
	// Name identifies the strategy. Names are unique across the whole
	// registry, not just within a category.
	Name() string

	// Category selects the phase this strategy applies in.
	Category() Category

	// RunsBefore lists strategies, by name, this one must precede
	// within its category. Names not registered in the same category
	// are ignored.
	RunsBefore() []string

	// RunsAfter lists strategies, by name, this one must follow within
	// its category.
	RunsAfter() []string

	// Apply rewrites the traversal in place. The compile loop calls it
	// once per traversal in the tree, root first. Apply returns an
	// error only when the pipeline cannot be compiled at all; a rewrite
	// that does not apply simply leaves the traversal alone.
	Apply(t *pipeline.Traversal) error
}

// Stock strategy names, for RunsBefore and RunsAfter declarations.
const (
	NameConnective           = "connective"
	NameIdentityRemoval      = "identityRemoval"
	NameScopePreference      = "scopePreference"
	NameDedupCount           = "dedupCount"
	NameIntegrity            = "integrity"
	NameComputerVerification = "computerVerification"
)
