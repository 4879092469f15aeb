package step

import (
	"context"
	"slices"

	"github.com/roach88/hopscotch/internal/pipeline"
)

// WhereStep correlates a sub-traversal with its enclosing pipeline: the
// child filters each incoming traverser against values bound earlier in
// the enclosing query. Construction runs the full correlation protocol
// synchronously, so a where that would be semantically empty never
// exists:
//
//  1. The child's infix connectives are folded.
//  2. If the child's first step is a conjunction or negation, the
//     protocol descends into every branch, so labels hidden inside
//     and/or/not are still discovered.
//  3. A variable-start placeholder (empty inject, one label) is replaced
//     by a start marker bound to that label; the marker takes its slot.
//  4. Otherwise, if the child's last step is labeled, a pass-through
//     start marker is planted at the front. Start-label detection wins
//     over end-label detection when both could apply.
//  5. A labeled last step then gets its label stripped and a bound end
//     marker appended; two labels there fail construction.
//  6. No keys collected anywhere means no correlation, which fails
//     construction.
type WhereStep struct {
	pipeline.BaseStep
	child     *pipeline.Traversal
	scope     pipeline.Scope
	scopeKeys []string
}

// NewWhereStep builds a correlated filter over child with the declared
// scope.
func NewWhereStep(scope pipeline.Scope, child *pipeline.Traversal) (*WhereStep, error) {
	if child == nil {
		return nil, &pipeline.ConstructionError{Site: "where", Reason: "correlated filter requires a child traversal"}
	}
	s := &WhereStep{
		BaseStep: pipeline.NewBaseStep("where", pipeline.KindFilter),
		scope:    scope,
	}
	if err := FoldConnectives(child); err != nil {
		return nil, err
	}
	if err := s.configureMarkers(child); err != nil {
		return nil, err
	}
	if len(s.scopeKeys) == 0 {
		return nil, &pipeline.ConstructionError{Site: "where", Reason: "a correlated filter must reference at least one label"}
	}
	if err := pipeline.IntegrateChild(s, child, pipeline.ChildLocal); err != nil {
		return nil, err
	}
	s.child = child
	return s, nil
}

// configureMarkers applies the start/end marker rewrites to the child
// and, through an explicit worklist, to every branch nested under
// conjunction and negation steps, so filter depth never translates into
// call-stack depth. Scope keys accumulate on the outer filter across
// all levels.
func (s *WhereStep) configureMarkers(child *pipeline.Traversal) error {
	work := []*pipeline.Traversal{child}
	for len(work) > 0 {
		cur := work[len(work)-1]
		work = work[:len(work)-1]

		first := cur.First()
		switch start := first.(type) {
		case Connective:
			work = append(work, start.LocalChildren()...)
		case *NotStep:
			work = append(work, start.LocalChildren()...)
		default:
			if first != nil && IsVariableStart(first) {
				label := first.Labels()[0]
				s.addScopeKey(label)
				// Strip before the replace so the label becomes the marker's
				// binding key, not a migrated label on the marker.
				first.RemoveLabel(label)
				if err := cur.Replace(cur.IndexOf(first), NewWhereStartStep(label)); err != nil {
					return err
				}
			} else if last := cur.Last(); last != nil && len(last.Labels()) > 0 {
				if err := cur.InsertBefore(cur.Head(), NewWhereStartStep("")); err != nil {
					return err
				}
			}
		}

		if last := cur.Last(); last != nil {
			labels := last.Labels()
			if len(labels) > 1 {
				return &pipeline.ConstructionError{Site: "where", Reason: "the end step of a correlated filter can only have one label"}
			}
			if len(labels) == 1 {
				label := labels[0]
				s.addScopeKey(label)
				last.RemoveLabel(label)
				if err := cur.AddStep(NewWhereEndStep(label)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (s *WhereStep) addScopeKey(key string) {
	if !slices.Contains(s.scopeKeys, key) {
		s.scopeKeys = append(s.scopeKeys, key)
		slices.Sort(s.scopeKeys)
	}
}

// Child returns the rewritten sub-traversal.
func (s *WhereStep) Child() *pipeline.Traversal { return s.child }

// LocalChildren returns the single child traversal.
func (s *WhereStep) LocalChildren() []*pipeline.Traversal { return []*pipeline.Traversal{s.child} }

// GlobalChildren returns nil.
func (s *WhereStep) GlobalChildren() []*pipeline.Traversal { return nil }

// ScopeKeys returns the labels this filter correlates on, sorted.
func (s *WhereStep) ScopeKeys() []string { return slices.Clone(s.scopeKeys) }

// Scope returns the filter's current scope.
func (s *WhereStep) Scope() pipeline.Scope { return s.scope }

// SetScope changes the filter's scope. Later rewrites may coerce it.
func (s *WhereStep) SetScope(scope pipeline.Scope) { s.scope = scope }

// Requirements declares the traverser features this step needs. Global
// correlation forces path retention; local correlation reads only the
// current value and the side-effect bag.
func (s *WhereStep) Requirements() pipeline.RequirementSet {
	if s.scope == pipeline.ScopeLocal {
		return pipeline.ReqObject | pipeline.ReqSideEffects
	}
	return pipeline.ReqPath | pipeline.ReqSideEffects
}

// Clone deep-copies the step and its child.
func (s *WhereStep) Clone() pipeline.Step {
	cp := &WhereStep{
		BaseStep:  s.CloneBase(),
		scope:     s.scope,
		scopeKeys: slices.Clone(s.scopeKeys),
	}
	child := s.child.Clone()
	mustIntegrate(cp, child, pipeline.ChildLocal, nil)
	cp.child = child
	return cp
}

// Test passes a traverser when the correlated child produces at least one
// result for it.
func (s *WhereStep) Test(ctx context.Context, tr *pipeline.Traverser) (bool, error) {
	return pipeline.Test(ctx, s.child, tr)
}

func (s *WhereStep) String() string { return "where(" + pipeline.Render(s.child) + ")" }

// WhereStartStep opens a correlated sub-traversal. Bound to a key, it
// swaps the incoming value for the enclosing pipeline's latest binding of
// that key; unbound, it passes the raw value through. Either way, if the
// sub-traversal ends in a bound end marker, the start marker first hands
// the incoming traverser over so the end marker can capture its
// comparison value from the enclosing context.
type WhereStartStep struct {
	pipeline.BaseStep
	selectKey string
	scope     pipeline.Scope
}

// NewWhereStartStep creates a start marker. An empty key means
// pass-through.
func NewWhereStartStep(selectKey string) *WhereStartStep {
	return &WhereStartStep{
		BaseStep:  pipeline.NewBaseStep("whereStart", pipeline.KindMap),
		selectKey: selectKey,
		scope:     pipeline.ScopeGlobal,
	}
}

// SelectKey returns the binding key, empty for pass-through.
func (s *WhereStartStep) SelectKey() string { return s.selectKey }

// ScopeKeys returns the binding key, or nothing for pass-through.
func (s *WhereStartStep) ScopeKeys() []string {
	if s.selectKey == "" {
		return nil
	}
	return []string{s.selectKey}
}

// Scope returns the marker's current scope.
func (s *WhereStartStep) Scope() pipeline.Scope { return s.scope }

// SetScope changes the marker's scope. Later rewrites may coerce it.
func (s *WhereStartStep) SetScope(scope pipeline.Scope) { s.scope = scope }

// Requirements declares the traverser features this step needs.
func (s *WhereStartStep) Requirements() pipeline.RequirementSet { return pipeline.ReqObject }

// Clone deep-copies the step.
func (s *WhereStartStep) Clone() pipeline.Step {
	return &WhereStartStep{BaseStep: s.CloneBase(), selectKey: s.selectKey, scope: s.scope}
}

// Map resolves the marker against the incoming traverser. The end marker
// is found by looking at the owning traversal's last step on every call
// rather than caching a pointer, so clones and later rewrites stay
// consistent.
func (s *WhereStartStep) Map(_ context.Context, tr *pipeline.Traverser) (any, error) {
	if end, ok := s.Owner().Last().(*WhereEndStep); ok {
		if err := end.captureFrom(tr); err != nil {
			return nil, err
		}
	}
	if s.selectKey == "" {
		return tr.Value(), nil
	}
	return pipeline.ScopeValue(s.selectKey, tr)
}

func (s *WhereStartStep) String() string { return "whereStart(" + s.selectKey + ")" }

// WhereEndStep closes a correlated sub-traversal: a filter that passes a
// traverser only when no match key is bound, or when the current value
// equals the value the start marker captured from the enclosing context.
// Unconditional pass with no match key is a deliberate state, not an
// error.
type WhereEndStep struct {
	pipeline.BaseStep
	matchKey   string
	matchValue any
}

// NewWhereEndStep creates an end marker bound to matchKey; empty means
// always pass.
func NewWhereEndStep(matchKey string) *WhereEndStep {
	return &WhereEndStep{
		BaseStep: pipeline.NewBaseStep("whereEnd", pipeline.KindFilter),
		matchKey: matchKey,
	}
}

// MatchKey returns the comparison key, empty for unconditional pass.
func (s *WhereEndStep) MatchKey() string { return s.matchKey }

// ScopeKeys returns the comparison key, or nothing when unbound.
func (s *WhereEndStep) ScopeKeys() []string {
	if s.matchKey == "" {
		return nil
	}
	return []string{s.matchKey}
}

// Scope is always global: the comparison value comes from the enclosing
// context.
func (s *WhereEndStep) Scope() pipeline.Scope { return pipeline.ScopeGlobal }

// SetScope is silently rejected. The end marker's correlation semantics
// are fixed at construction.
func (s *WhereEndStep) SetScope(pipeline.Scope) {}

// Requirements declares the traverser features this step needs.
func (s *WhereEndStep) Requirements() pipeline.RequirementSet { return pipeline.ReqObject }

// Reset clears the captured comparison value.
func (s *WhereEndStep) Reset() { s.matchValue = nil }

// Clone deep-copies the step. The captured value is per-execution state
// and starts empty.
func (s *WhereEndStep) Clone() pipeline.Step {
	return &WhereEndStep{BaseStep: s.CloneBase(), matchKey: s.matchKey}
}

// captureFrom records the enclosing context's binding for the match key,
// resolved against the traverser entering the sub-traversal.
func (s *WhereEndStep) captureFrom(tr *pipeline.Traverser) error {
	if s.matchKey == "" {
		return nil
	}
	v, err := pipeline.ScopeValue(s.matchKey, tr)
	if err != nil {
		return err
	}
	s.matchValue = v
	return nil
}

// Test compares the current value against the captured one under the
// value type's own equality contract.
func (s *WhereEndStep) Test(_ context.Context, tr *pipeline.Traverser) (bool, error) {
	if s.matchKey == "" {
		return true, nil
	}
	return pipeline.ValuesEqual(tr.Value(), s.matchValue), nil
}

func (s *WhereEndStep) String() string { return "whereEnd(" + s.matchKey + ")" }
