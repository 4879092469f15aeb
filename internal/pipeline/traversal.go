package pipeline

import (
	"fmt"
)

// StepIndex addresses a slot in a traversal's arena. Indices are stable
// for the life of the traversal: removal tombstones a slot, it never
// compacts, so an index held by a strategy mid-pass stays valid.
type StepIndex int

// NoStep is the sentinel index meaning "no step".
const NoStep StepIndex = -1

// ExecutionMode selects the execution semantics a traversal compiles for.
// Strategies consult it through OnGraphComputer; this package never
// implements the distributed protocol itself.
type ExecutionMode string

const (
	// ModeStandard is single-machine depth-first execution.
	ModeStandard ExecutionMode = "standard"

	// ModeComputer is bulk-synchronous distributed execution. Only the
	// compile-time decisions that depend on it live here.
	ModeComputer ExecutionMode = "computer"
)

// ParseMode validates a mode string. Empty defaults to standard.
func ParseMode(mode string) (ExecutionMode, error) {
	switch ExecutionMode(mode) {
	case ModeStandard, ModeComputer:
		return ExecutionMode(mode), nil
	case "":
		return ModeStandard, nil
	default:
		return "", fmt.Errorf("invalid execution mode %q: must be standard or computer", mode)
	}
}

// ChildKind is how a child traversal is integrated under its parent step.
type ChildKind string

const (
	// ChildLocal children see only the current value, no path context.
	ChildLocal ChildKind = "local"

	// ChildGlobal children see full traverser context and participate in
	// requirement propagation like a nested pipeline.
	ChildGlobal ChildKind = "global"
)

type slot struct {
	step Step
	next StepIndex
	prev StepIndex
	live bool
}

// Traversal is an ordered, doubly-linked sequence of steps backed by an
// arena of slots, plus the child traversals its parent-capable steps own.
//
// A traversal is created empty, populated, passed once through the
// strategy pipeline, locked, executed, then discarded. All mutation
// happens before the lock; Process rejects an unlocked traversal and the
// mutating operations reject a locked one.
type Traversal struct {
	slots []slot
	head  StepIndex
	tail  StepIndex
	size  int

	// mode is meaningful on the root traversal only; children defer to
	// the root through OnGraphComputer.
	mode     ExecutionMode
	compiled bool

	// parentStep is the step owning this traversal as a child, nil on a
	// root.
	parentStep Step
	childKind  ChildKind

	requirements RequirementSet
	reqsValid    bool
}

// New creates an empty root traversal for the given execution mode.
func New(mode ExecutionMode) *Traversal {
	return &Traversal{head: NoStep, tail: NoStep, mode: mode}
}

// Mode returns the traversal's execution mode. Meaningful on the root;
// strategies should use OnGraphComputer, which walks to the root first.
func (t *Traversal) Mode() ExecutionMode { return t.mode }

// SetMode changes the execution mode on a root traversal before
// compilation.
func (t *Traversal) SetMode(mode ExecutionMode) error {
	if !t.IsRoot() {
		return &ConstructionError{Site: "traversal", Reason: "execution mode can only be set on the root"}
	}
	if t.compiled {
		return &ConstructionError{Site: "traversal", Reason: "traversal is locked"}
	}
	t.mode = mode
	return nil
}

// Compiled reports whether the strategy pipeline has locked the traversal.
func (t *Traversal) Compiled() bool { return t.compiled }

// Finalize locks the traversal and every owned child. Called once, by the
// strategy pipeline, after the last rewrite.
func (t *Traversal) Finalize() {
	t.compiled = true
	for _, child := range t.Children() {
		child.Finalize()
	}
}

// IsRoot reports whether the traversal has no owning parent step.
func (t *Traversal) IsRoot() bool { return t.parentStep == nil }

// ParentStep returns the step owning this traversal as a child, or nil.
func (t *Traversal) ParentStep() Step { return t.parentStep }

// Root walks the parent chain to the outermost traversal.
func (t *Traversal) Root() *Traversal {
	cur := t
	for cur.parentStep != nil {
		owner := cur.parentStep.Owner()
		if owner == nil {
			break
		}
		cur = owner
	}
	return cur
}

// OnGraphComputer reports whether the root of this traversal tree compiles
// for distributed execution. Pure compile-time predicate; rewrites gate on
// it because a fusion that removes a synchronization barrier is pointless
// or wrong outside computer mode.
func (t *Traversal) OnGraphComputer() bool {
	return t.Root().mode == ModeComputer
}

// IsGlobalChild reports whether every hop from this traversal to the root
// is a global integration. The root itself is trivially a global child.
func (t *Traversal) IsGlobalChild() bool {
	cur := t
	for cur.parentStep != nil {
		if cur.childKind == ChildLocal {
			return false
		}
		owner := cur.parentStep.Owner()
		if owner == nil {
			break
		}
		cur = owner
	}
	return true
}

// IntegrateChild records owner as the single owner of child with the given
// integration kind. Parent-capable step constructors call it; a child can
// only ever have one owner.
func IntegrateChild(owner Step, child *Traversal, kind ChildKind) error {
	if owner == nil || child == nil {
		return &ConstructionError{Site: "traversal", Reason: "child integration requires an owner step and a child"}
	}
	if child.parentStep != nil && child.parentStep != owner {
		return &ConstructionError{Site: "traversal", Reason: "child traversal already has an owner"}
	}
	child.parentStep = owner
	child.childKind = kind
	return nil
}

// Children returns this traversal's owned children in pipeline order,
// local children of a step before its global children.
func (t *Traversal) Children() []*Traversal {
	var children []*Traversal
	for i := t.head; i != NoStep; i = t.next(i) {
		if p, ok := t.slots[i].step.(Parent); ok {
			children = append(children, p.LocalChildren()...)
			children = append(children, p.GlobalChildren()...)
		}
	}
	return children
}

// Len returns the number of live steps.
func (t *Traversal) Len() int { return t.size }

// Head returns the first live slot index, or NoStep when empty.
func (t *Traversal) Head() StepIndex { return t.head }

// Tail returns the last live slot index, or NoStep when empty.
func (t *Traversal) Tail() StepIndex { return t.tail }

// StepAt returns the step in the slot, or nil for a dead or out-of-range
// index.
func (t *Traversal) StepAt(i StepIndex) Step {
	if !t.valid(i) {
		return nil
	}
	return t.slots[i].step
}

// Next returns the successor slot index, or NoStep.
func (t *Traversal) Next(i StepIndex) StepIndex { return t.next(i) }

// Prev returns the predecessor slot index, or NoStep.
func (t *Traversal) Prev(i StepIndex) StepIndex {
	if !t.valid(i) {
		return NoStep
	}
	return t.slots[i].prev
}

// First returns the start step, or nil when empty.
func (t *Traversal) First() Step { return t.StepAt(t.head) }

// Last returns the end step, or nil when empty.
func (t *Traversal) Last() Step { return t.StepAt(t.tail) }

// Steps returns the live steps in pipeline order.
func (t *Traversal) Steps() []Step {
	steps := make([]Step, 0, t.size)
	for i := t.head; i != NoStep; i = t.next(i) {
		steps = append(steps, t.slots[i].step)
	}
	return steps
}

// IndexOf returns the slot index of a step owned by this traversal, or
// NoStep.
func (t *Traversal) IndexOf(s Step) StepIndex {
	for i := t.head; i != NoStep; i = t.next(i) {
		if t.slots[i].step == s {
			return i
		}
	}
	return NoStep
}

// StepsOfKind returns the indices of steps with the given capability kind,
// in pipeline order. This is the primary lookup strategies use to find
// rewrite targets.
func (t *Traversal) StepsOfKind(k Kind) []StepIndex {
	return t.StepsMatching(func(s Step) bool { return s.Kind() == k })
}

// StepsMatching returns the indices of steps satisfying pred, in pipeline
// order.
func (t *Traversal) StepsMatching(pred func(Step) bool) []StepIndex {
	var out []StepIndex
	for i := t.head; i != NoStep; i = t.next(i) {
		if pred(t.slots[i].step) {
			out = append(out, i)
		}
	}
	return out
}

// AddStep appends a step at the tail.
func (t *Traversal) AddStep(s Step) error {
	if err := t.ensureMutable(); err != nil {
		return err
	}
	if err := t.adopt(s); err != nil {
		return err
	}
	idx := StepIndex(len(t.slots))
	t.slots = append(t.slots, slot{step: s, next: NoStep, prev: t.tail, live: true})
	if t.tail != NoStep {
		t.slots[t.tail].next = idx
	} else {
		t.head = idx
	}
	t.tail = idx
	t.size++
	t.invalidateRequirements()
	return nil
}

// InsertBefore places a step immediately before the slot at.
func (t *Traversal) InsertBefore(at StepIndex, s Step) error {
	if err := t.ensureMutable(); err != nil {
		return err
	}
	if err := t.checkIndex(at); err != nil {
		return err
	}
	if err := t.adopt(s); err != nil {
		return err
	}
	prev := t.slots[at].prev
	idx := StepIndex(len(t.slots))
	t.slots = append(t.slots, slot{step: s, next: at, prev: prev, live: true})
	t.slots[at].prev = idx
	if prev != NoStep {
		t.slots[prev].next = idx
	} else {
		t.head = idx
	}
	t.size++
	t.invalidateRequirements()
	return nil
}

// InsertAfter places a step immediately after the slot at.
func (t *Traversal) InsertAfter(at StepIndex, s Step) error {
	if err := t.ensureMutable(); err != nil {
		return err
	}
	if err := t.checkIndex(at); err != nil {
		return err
	}
	if err := t.adopt(s); err != nil {
		return err
	}
	next := t.slots[at].next
	idx := StepIndex(len(t.slots))
	t.slots = append(t.slots, slot{step: s, next: next, prev: at, live: true})
	t.slots[at].next = idx
	if next != NoStep {
		t.slots[next].prev = idx
	} else {
		t.tail = idx
	}
	t.size++
	t.invalidateRequirements()
	return nil
}

// Replace swaps the step in the slot at for s, keeping the slot's links.
// The replaced step's labels migrate onto the replacement unless the
// replacement already owns labels of its own. The replaced step is
// detached and may be re-added elsewhere.
func (t *Traversal) Replace(at StepIndex, s Step) error {
	if err := t.ensureMutable(); err != nil {
		return err
	}
	if err := t.checkIndex(at); err != nil {
		return err
	}
	if err := t.adopt(s); err != nil {
		return err
	}
	old := t.slots[at].step
	if err := migrateLabels(old, s); err != nil {
		return err
	}
	old.bind(nil)
	t.slots[at].step = s
	t.invalidateRequirements()
	return nil
}

// Remove unlinks the slot at, relinking its neighbors. Labels on the
// removed step migrate onto its successor unless the successor already
// owns labels of its own; with no successor they migrate onto the
// predecessor under the same rule. The removed step is detached.
func (t *Traversal) Remove(at StepIndex) error {
	if err := t.ensureMutable(); err != nil {
		return err
	}
	if err := t.checkIndex(at); err != nil {
		return err
	}
	removed := t.slots[at].step
	next, prev := t.slots[at].next, t.slots[at].prev
	if next != NoStep {
		if err := migrateLabels(removed, t.slots[next].step); err != nil {
			return err
		}
	} else if prev != NoStep {
		if err := migrateLabels(removed, t.slots[prev].step); err != nil {
			return err
		}
	}
	if prev != NoStep {
		t.slots[prev].next = next
	} else {
		t.head = next
	}
	if next != NoStep {
		t.slots[next].prev = prev
	} else {
		t.tail = prev
	}
	removed.bind(nil)
	t.slots[at] = slot{step: nil, next: NoStep, prev: NoStep, live: false}
	t.size--
	t.invalidateRequirements()
	return nil
}

// Requirements returns the aggregate requirement set: the union of every
// owned step's declared requirements, including nested children's. The
// cache is invalidated by every mutation anywhere in the tree.
func (t *Traversal) Requirements() RequirementSet {
	if !t.reqsValid {
		return t.RefreshRequirements()
	}
	return t.requirements
}

// RefreshRequirements recomputes the aggregate requirement set bottom-up
// and caches it. The compile loop calls it after every strategy pass.
func (t *Traversal) RefreshRequirements() RequirementSet {
	var agg RequirementSet
	for i := t.head; i != NoStep; i = t.next(i) {
		s := t.slots[i].step
		agg = agg.Union(s.Requirements())
		if p, ok := s.(Parent); ok {
			for _, child := range p.LocalChildren() {
				agg = agg.Union(child.RefreshRequirements())
			}
			for _, child := range p.GlobalChildren() {
				agg = agg.Union(child.RefreshRequirements())
			}
		}
	}
	t.requirements = agg
	t.reqsValid = true
	return agg
}

// ResetSteps clears per-execution state on every step in the tree. Called
// before each run and before each child test.
func (t *Traversal) ResetSteps() {
	for i := t.head; i != NoStep; i = t.next(i) {
		t.slots[i].step.Reset()
	}
	for _, child := range t.Children() {
		child.ResetSteps()
	}
}

// Clone deep-copies the traversal: every step is cloned, every owned child
// traversal is cloned recursively, and slot indices are preserved so
// indices mean the same thing on both copies. The clone of a child comes
// back unowned.
//
// Cloning is how a compiled traversal becomes safe for a second concurrent
// execution: steps retain per-execution mutable state, so two runners must
// never share one instance.
func (t *Traversal) Clone() *Traversal {
	cp := &Traversal{
		slots:        make([]slot, len(t.slots)),
		head:         t.head,
		tail:         t.tail,
		size:         t.size,
		mode:         t.mode,
		compiled:     t.compiled,
		requirements: t.requirements,
		reqsValid:    t.reqsValid,
	}
	for i, sl := range t.slots {
		ns := slot{next: sl.next, prev: sl.prev, live: sl.live}
		if sl.live {
			ns.step = sl.step.Clone()
			ns.step.bind(cp)
		}
		cp.slots[i] = ns
	}
	return cp
}

func (t *Traversal) ensureMutable() error {
	if t.compiled {
		return &ConstructionError{Site: "traversal", Reason: "traversal is locked"}
	}
	return nil
}

func (t *Traversal) adopt(s Step) error {
	if s == nil {
		return &ConstructionError{Site: "traversal", Reason: "step must be non-nil"}
	}
	if s.Owner() != nil {
		return &ConstructionError{Site: "traversal", Reason: fmt.Sprintf("step %s already belongs to a traversal", s.Name())}
	}
	s.bind(t)
	return nil
}

func (t *Traversal) valid(i StepIndex) bool {
	return i >= 0 && int(i) < len(t.slots) && t.slots[i].live
}

func (t *Traversal) checkIndex(i StepIndex) error {
	if !t.valid(i) {
		return &IntegrityError{Check: "slot liveness", Index: i, Detail: "index does not address a live step"}
	}
	return nil
}

func (t *Traversal) next(i StepIndex) StepIndex {
	if !t.valid(i) {
		return NoStep
	}
	return t.slots[i].next
}

// invalidateRequirements marks the cached aggregate stale here and on
// every enclosing traversal, so a child rewrite is visible at the root.
func (t *Traversal) invalidateRequirements() {
	for cur := t; cur != nil; {
		cur.reqsValid = false
		if cur.parentStep == nil {
			return
		}
		cur = cur.parentStep.Owner()
	}
}

// migrateLabels moves every label from one step onto another, unless the
// destination already owns labels of its own.
func migrateLabels(from, to Step) error {
	if to == nil || len(to.Labels()) > 0 {
		return nil
	}
	for _, label := range from.Labels() {
		if err := to.AddLabel(label); err != nil {
			return err
		}
		from.RemoveLabel(label)
	}
	return nil
}
