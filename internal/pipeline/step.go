package pipeline

import (
	"context"
	"slices"
)

// Kind is the coarse capability class of a step.
type Kind string

const (
	// KindMap transforms each incoming traverser into one or more
	// outgoing traversers.
	KindMap Kind = "map"

	// KindFilter passes or drops each incoming traverser.
	KindFilter Kind = "filter"

	// KindSideEffect mutates the shared side-effect bag and passes the
	// traverser through unchanged.
	KindSideEffect Kind = "sideEffect"

	// KindBarrier absorbs the entire incoming stream before emitting.
	KindBarrier Kind = "barrier"
)

// Scope selects how a correlation resolves label references: local looks
// only at the current value, global consults the full path history.
type Scope string

const (
	// ScopeLocal resolves against the current value only.
	ScopeLocal Scope = "local"

	// ScopeGlobal resolves against the full path history.
	ScopeGlobal Scope = "global"
)

// Step is a unit of computation in a traversal pipeline. A step carries a
// capability kind, a label set, and a declared requirement set; its
// next/previous links live in the owning Traversal's arena, never on the
// step itself.
//
// Step is sealed: the unexported bind method means only types embedding
// BaseStep can implement it, which keeps ownership bookkeeping in one
// place.
type Step interface {
	// Name is the step's lowercase name as written in a plan, e.g.
	// "dedup".
	Name() string

	// Kind reports the coarse capability class.
	Kind() Kind

	// Labels returns a sorted copy of the step's labels.
	Labels() []string

	// AddLabel attaches a label, NFC-normalized. Adding an existing
	// label is a no-op.
	AddLabel(label string) error

	// RemoveLabel detaches a label if present.
	RemoveLabel(label string)

	// HasLabel reports whether the step carries the label.
	HasLabel(label string) bool

	// Requirements is the step's own declared requirement set, not
	// including any child traversals'.
	Requirements() RequirementSet

	// Reset clears per-execution mutable state (seen sets, captured
	// comparison values, running tallies).
	Reset()

	// Clone deep-copies the step, including any owned child traversals.
	// The clone is unowned until placed into a traversal.
	Clone() Step

	// Owner returns the traversal this step currently belongs to, or nil.
	Owner() *Traversal

	bind(t *Traversal)
}

// Parent is implemented by steps that own child traversals. A child is
// integrated either locally (steps see only the current value) or globally
// (steps see full traverser context).
type Parent interface {
	Step
	LocalChildren() []*Traversal
	GlobalChildren() []*Traversal
}

// Scoping is the cross-cutting capability of steps that depend on named
// labels. ScopeKeys is non-empty by construction for correlated filters;
// marker steps may report a single key or none.
type Scoping interface {
	Step

	// ScopeKeys returns a sorted copy of the labels this step depends on.
	ScopeKeys() []string

	// Scope reports the current correlation scope.
	Scope() Scope

	// SetScope changes the correlation scope. Implementations locked at
	// construction silently ignore the call.
	SetScope(s Scope)
}

// Capability interfaces. A concrete step implements exactly the ones its
// semantics need; Process dispatches on them in a fixed order (Batcher,
// Reducer, Expander, Mapper, Filterer, Effector, then Seeder
// pass-through).

// Mapper transforms one traverser into exactly one value.
type Mapper interface {
	Step
	Map(ctx context.Context, t *Traverser) (any, error)
}

// Expander transforms one traverser into zero or more values.
type Expander interface {
	Step
	Expand(ctx context.Context, t *Traverser) ([]any, error)
}

// Filterer decides whether a traverser passes. It may adjust the
// traverser (e.g. force bulk to 1) but never its value.
type Filterer interface {
	Step
	Test(ctx context.Context, t *Traverser) (bool, error)
}

// Effector mutates the side-effect bag and passes the traverser through.
type Effector interface {
	Step
	SideEffect(ctx context.Context, t *Traverser) error
}

// Reducer is a barrier: it absorbs the entire incoming stream, then emits
// a single value. Emit with nothing absorbed returns the reduction seed.
type Reducer interface {
	Step
	Absorb(ctx context.Context, t *Traverser) error
	Emit() (any, error)
}

// Seeder produces a pipeline's initial values when no upstream input
// exists. A Seeder receiving input instead passes it through unchanged.
type Seeder interface {
	Step
	Seed(ctx context.Context) ([]any, error)
}

// Batcher consumes the whole incoming batch at once. Steps that
// coordinate child pipelines over the full stream implement it.
type Batcher interface {
	Step
	ProcessBatch(ctx context.Context, in []*Traverser) ([]*Traverser, error)
}

// BaseStep carries the state every step shares: name, kind, labels, and
// the owning traversal. Concrete steps embed it and add their own fields.
type BaseStep struct {
	name   string
	kind   Kind
	labels []string // sorted, NFC-normalized, unique
	owner  *Traversal
}

// NewBaseStep creates the embeddable base for a concrete step.
func NewBaseStep(name string, kind Kind) BaseStep {
	return BaseStep{name: name, kind: kind}
}

// Name returns the step name.
func (b *BaseStep) Name() string { return b.name }

// Kind returns the capability class.
func (b *BaseStep) Kind() Kind { return b.kind }

// Labels returns a sorted copy of the label set.
func (b *BaseStep) Labels() []string {
	return slices.Clone(b.labels)
}

// AddLabel attaches a label after NFC normalization. Duplicates are
// ignored.
func (b *BaseStep) AddLabel(label string) error {
	canonical, err := NormalizeLabel(label)
	if err != nil {
		return err
	}
	i, found := slices.BinarySearch(b.labels, canonical)
	if found {
		return nil
	}
	b.labels = slices.Insert(b.labels, i, canonical)
	return nil
}

// RemoveLabel detaches a label. Unknown labels are ignored; the lookup is
// by canonical form, matching AddLabel.
func (b *BaseStep) RemoveLabel(label string) {
	canonical, err := NormalizeLabel(label)
	if err != nil {
		return
	}
	i, found := slices.BinarySearch(b.labels, canonical)
	if found {
		b.labels = slices.Delete(b.labels, i, i+1)
	}
}

// HasLabel reports whether the step carries the label (canonical form).
func (b *BaseStep) HasLabel(label string) bool {
	canonical, err := NormalizeLabel(label)
	if err != nil {
		return false
	}
	_, found := slices.BinarySearch(b.labels, canonical)
	return found
}

// Reset is a no-op for steps with no per-execution state.
func (b *BaseStep) Reset() {}

// Owner returns the traversal this step belongs to, or nil while unowned.
func (b *BaseStep) Owner() *Traversal { return b.owner }

// String renders the step in explain form. Steps with arguments override
// it.
func (b *BaseStep) String() string { return b.name + "()" }

// CloneBase copies the base for use in a concrete step's Clone. The copy
// is unowned.
func (b *BaseStep) CloneBase() BaseStep {
	return BaseStep{
		name:   b.name,
		kind:   b.kind,
		labels: slices.Clone(b.labels),
	}
}

func (b *BaseStep) bind(t *Traversal) { b.owner = t }
