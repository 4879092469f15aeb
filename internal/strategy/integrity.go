package strategy

import (
	"fmt"

	"github.com/roach88/hopscotch/internal/pipeline"
)

// IntegrityStrategy verifies the arena after every mutating pass has
// run: links must walk contiguously in both directions, label sets must
// be clean, child traversals must point back at the step that owns them,
// and the cached aggregate requirement set must agree with a fresh
// recomputation. A failure is a strategy bug, reported as an
// IntegrityError so it is distinguishable from a user mistake.
type IntegrityStrategy struct{}

func (IntegrityStrategy) Name() string         { return NameIntegrity }
func (IntegrityStrategy) Category() Category   { return CategoryVerification }
func (IntegrityStrategy) RunsBefore() []string { return nil }
func (IntegrityStrategy) RunsAfter() []string  { return nil }

// Apply never mutates the traversal.
func (IntegrityStrategy) Apply(t *pipeline.Traversal) error {
	if err := checkLinks(t); err != nil {
		return err
	}
	if err := checkSteps(t); err != nil {
		return err
	}
	cached := t.Requirements()
	if fresh := t.RefreshRequirements(); fresh != cached {
		return &pipeline.IntegrityError{
			Check:  "requirement agreement",
			Index:  pipeline.NoStep,
			Detail: fmt.Sprintf("cached %v, recomputed %v", cached, fresh),
		}
	}
	return nil
}

// checkLinks walks the list forward verifying every back-link, then
// counts the backward walk, and requires both to visit exactly Len
// steps ending at the boundary slots.
func checkLinks(t *pipeline.Traversal) error {
	count := 0
	prev := pipeline.NoStep
	for i := t.Head(); i != pipeline.NoStep; i = t.Next(i) {
		if t.StepAt(i) == nil {
			return &pipeline.IntegrityError{
				Check:  "slot liveness",
				Index:  i,
				Detail: "forward walk reached a dead slot",
			}
		}
		if t.Prev(i) != prev {
			return &pipeline.IntegrityError{
				Check:  "link contiguity",
				Index:  i,
				Detail: "prev link does not return to the previous step",
			}
		}
		prev = i
		count++
		if count > t.Len() {
			return &pipeline.IntegrityError{
				Check:  "link contiguity",
				Index:  i,
				Detail: "forward walk exceeds the step count",
			}
		}
	}
	if count != t.Len() {
		return &pipeline.IntegrityError{
			Check:  "link contiguity",
			Index:  pipeline.NoStep,
			Detail: fmt.Sprintf("forward walk visited %d of %d steps", count, t.Len()),
		}
	}
	if prev != t.Tail() {
		return &pipeline.IntegrityError{
			Check:  "link contiguity",
			Index:  prev,
			Detail: "forward walk does not end at the tail",
		}
	}
	back := 0
	for i := t.Tail(); i != pipeline.NoStep; i = t.Prev(i) {
		back++
		if back > t.Len() {
			return &pipeline.IntegrityError{
				Check:  "link contiguity",
				Index:  i,
				Detail: "backward walk exceeds the step count",
			}
		}
	}
	if back != t.Len() {
		return &pipeline.IntegrityError{
			Check:  "link contiguity",
			Index:  pipeline.NoStep,
			Detail: fmt.Sprintf("backward walk visited %d of %d steps", back, t.Len()),
		}
	}
	return nil
}

// checkSteps verifies per-step hygiene: ownership, label cleanliness,
// and the parent pointers of any child traversals.
func checkSteps(t *pipeline.Traversal) error {
	for i := t.Head(); i != pipeline.NoStep; i = t.Next(i) {
		s := t.StepAt(i)
		if s.Owner() != t {
			return &pipeline.IntegrityError{
				Check:  "step ownership",
				Index:  i,
				Detail: fmt.Sprintf("step %s is bound to a different traversal", s.Name()),
			}
		}
		for _, label := range s.Labels() {
			if label == "" {
				return &pipeline.IntegrityError{
					Check:  "label hygiene",
					Index:  i,
					Detail: fmt.Sprintf("step %s carries an empty label", s.Name()),
				}
			}
		}
		p, ok := s.(pipeline.Parent)
		if !ok {
			continue
		}
		for _, child := range p.LocalChildren() {
			if child.ParentStep() != s {
				return &pipeline.IntegrityError{
					Check:  "child linkage",
					Index:  i,
					Detail: fmt.Sprintf("local child of %s has a stale parent pointer", s.Name()),
				}
			}
		}
		for _, child := range p.GlobalChildren() {
			if child.ParentStep() != s {
				return &pipeline.IntegrityError{
					Check:  "child linkage",
					Index:  i,
					Detail: fmt.Sprintf("global child of %s has a stale parent pointer", s.Name()),
				}
			}
		}
	}
	return nil
}
