package pipeline

import (
	"reflect"
	"slices"
	"sort"
)

// Equaler lets a value type supply its own equality for deduplication and
// scope matching. Values that do not implement it are compared with
// reflect.DeepEqual.
type Equaler interface {
	Equals(other any) bool
}

// ValuesEqual compares two step values, preferring an Equals method on the
// left operand.
func ValuesEqual(a, b any) bool {
	if eq, ok := a.(Equaler); ok {
		return eq.Equals(b)
	}
	return reflect.DeepEqual(a, b)
}

// PathElement is one hop of a traverser's history: the value it sat at and
// the labels of the step that produced it.
type PathElement struct {
	value  any
	labels []string
}

// Value returns the element's value.
func (e PathElement) Value() any { return e.value }

// Labels returns the element's labels.
func (e PathElement) Labels() []string { return slices.Clone(e.labels) }

// Path is an append-only history of values a traverser has visited.
// Extending a path copies the element slice so sibling traversers never
// observe each other's writes; the label slices inside elements are shared
// until AddLabels replaces them wholesale.
type Path struct {
	elements []PathElement
}

// Len returns the number of elements.
func (p *Path) Len() int {
	if p == nil {
		return 0
	}
	return len(p.elements)
}

// Elements returns the path's elements oldest first.
func (p *Path) Elements() []PathElement {
	if p == nil {
		return nil
	}
	return slices.Clone(p.elements)
}

// Head returns the most recent element.
func (p *Path) Head() (PathElement, bool) {
	if p == nil || len(p.elements) == 0 {
		return PathElement{}, false
	}
	return p.elements[len(p.elements)-1], true
}

// Last returns the most recently written value recorded under label,
// scanning newest first. Under label reuse the latest write wins.
func (p *Path) Last(label string) (any, bool) {
	if p == nil {
		return nil, false
	}
	for i := len(p.elements) - 1; i >= 0; i-- {
		if slices.Contains(p.elements[i].labels, label) {
			return p.elements[i].value, true
		}
	}
	return nil, false
}

// HasLabel reports whether any element carries label.
func (p *Path) HasLabel(label string) bool {
	_, ok := p.Last(label)
	return ok
}

// extend returns a new path with one more element. The receiver is never
// mutated.
func (p *Path) extend(value any, labels []string) *Path {
	var prior []PathElement
	if p != nil {
		prior = p.elements
	}
	elements := make([]PathElement, len(prior)+1)
	copy(elements, prior)
	elements[len(prior)] = PathElement{value: value, labels: labels}
	return &Path{elements: elements}
}

// addLabels returns a new path whose most recent element carries the extra
// labels. The receiver and its element label slices are never mutated.
func (p *Path) addLabels(labels []string) *Path {
	if p == nil || len(p.elements) == 0 || len(labels) == 0 {
		return p
	}
	elements := slices.Clone(p.elements)
	last := &elements[len(elements)-1]
	merged := slices.Clone(last.labels)
	for _, label := range labels {
		if !slices.Contains(merged, label) {
			merged = append(merged, label)
		}
	}
	last.labels = merged
	return &Path{elements: elements}
}

// SideEffects is a shared mutable bag keyed by string. Every traverser of
// one execution holds the same bag.
type SideEffects struct {
	values map[string]any
}

// NewSideEffects returns an empty bag.
func NewSideEffects() *SideEffects {
	return &SideEffects{values: make(map[string]any)}
}

// Get returns the value under key.
func (se *SideEffects) Get(key string) (any, bool) {
	if se == nil {
		return nil, false
	}
	v, ok := se.values[key]
	return v, ok
}

// Set stores value under key, replacing any prior value.
func (se *SideEffects) Set(key string, value any) {
	se.values[key] = value
}

// Keys returns the populated keys in sorted order.
func (se *SideEffects) Keys() []string {
	if se == nil {
		return nil
	}
	keys := make([]string, 0, len(se.values))
	for k := range se.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Traverser is one unit of flow through a pipeline: the current value,
// optional path history, a handle on the shared side-effect bag, and a
// bulk multiplier standing for identical collapsed traversers.
type Traverser struct {
	value       any
	path        *Path
	sideEffects *SideEffects
	bulk        int64
}

// NewTraverser seeds a traverser at value. Path history is recorded only
// when reqs demands it, and the bag is attached only when reqs demands
// side effects. Bulk starts at one.
func NewTraverser(value any, reqs RequirementSet, bag *SideEffects) *Traverser {
	tr := &Traverser{value: value, bulk: 1}
	if reqs.Has(ReqPath) {
		tr.path = (*Path)(nil).extend(value, nil)
	}
	if reqs.Has(ReqSideEffects) {
		tr.sideEffects = bag
	}
	return tr
}

// Value returns the current value.
func (tr *Traverser) Value() any { return tr.value }

// Bulk returns the multiplier.
func (tr *Traverser) Bulk() int64 { return tr.bulk }

// SetBulk overwrites the multiplier. Deduplication uses it to collapse a
// surviving traverser back to a single unit.
func (tr *Traverser) SetBulk(n int64) { tr.bulk = n }

// Path returns the history, or nil when path tracking is off.
func (tr *Traverser) Path() *Path { return tr.path }

// SideEffects returns the shared bag, or nil when side effects are off.
func (tr *Traverser) SideEffects() *SideEffects { return tr.sideEffects }

// Split derives a child traverser at a new value, extending the path with
// the producing step's labels when history is on. Bulk carries over.
func (tr *Traverser) Split(value any, labels []string) *Traverser {
	child := &Traverser{value: value, sideEffects: tr.sideEffects, bulk: tr.bulk}
	if tr.path != nil {
		child.path = tr.path.extend(value, labels)
	}
	return child
}

// SplitSelf copies the traverser unchanged. Child tests seed from it so
// the parent's path and bag are visible without being mutable through the
// child.
func (tr *Traverser) SplitSelf() *Traverser {
	cp := *tr
	return &cp
}

// AddLabels stamps the producing step's labels onto the traverser's most
// recent path element. A no-op when path tracking is off.
func (tr *Traverser) AddLabels(labels []string) {
	tr.path = tr.path.addLabels(labels)
}

// ScopeValue resolves key against a traverser, checking in order: the
// current value as a string-keyed map, the side-effect bag, then the path
// history under latest-write-wins. A miss at every tier is a
// KeyNotFoundError.
func ScopeValue(key string, tr *Traverser) (any, error) {
	if m, ok := tr.value.(map[string]any); ok {
		if v, ok := m[key]; ok {
			return v, nil
		}
	}
	if v, ok := tr.sideEffects.Get(key); ok {
		return v, nil
	}
	if v, ok := tr.path.Last(key); ok {
		return v, nil
	}
	return nil, &KeyNotFoundError{Key: key}
}
