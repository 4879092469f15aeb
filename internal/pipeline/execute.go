package pipeline

import (
	"context"
	"fmt"
	"slices"
)

// Observer is called after each step processes its input set, with the
// input and output traverser counts. Returning an error aborts the run;
// the runner uses observers for budget enforcement and tracing.
type Observer func(step Step, in, out int) error

// Process pushes the start traversers through every step in order and
// returns the survivors. The traversal must be compiled.
//
// Process never invents traversers: the runner or the owning parent step
// supplies starts, and a start-capable head step acts as a pass-through
// when handed input. Every traverser a step emits is stamped with that
// step's labels when path history is on. A barrier consumes its whole
// input before emitting, and its output carries no history.
func (t *Traversal) Process(ctx context.Context, starts []*Traverser, observers ...Observer) ([]*Traverser, error) {
	if !t.compiled {
		return nil, ErrNotCompiled
	}
	current := slices.Clone(starts)
	for i := t.head; i != NoStep; i = t.next(i) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		step := t.slots[i].step
		out, err := applyStep(ctx, step, current, i)
		if err != nil {
			return nil, err
		}
		for _, observe := range observers {
			if err := observe(step, len(current), len(out)); err != nil {
				return nil, err
			}
		}
		current = out
	}
	return current, nil
}

func applyStep(ctx context.Context, step Step, in []*Traverser, at StepIndex) ([]*Traverser, error) {
	labels := step.Labels()
	switch s := step.(type) {
	case Batcher:
		out, err := s.ProcessBatch(ctx, in)
		if err != nil {
			return nil, err
		}
		for _, tr := range out {
			tr.AddLabels(labels)
		}
		return out, nil
	case Reducer:
		var bag *SideEffects
		for _, tr := range in {
			bag = tr.SideEffects()
			if err := s.Absorb(ctx, tr); err != nil {
				return nil, err
			}
		}
		value, err := s.Emit()
		if err != nil {
			return nil, err
		}
		return []*Traverser{{value: value, sideEffects: bag, bulk: 1}}, nil
	case Expander:
		var out []*Traverser
		for _, tr := range in {
			values, err := s.Expand(ctx, tr)
			if err != nil {
				return nil, err
			}
			for _, v := range values {
				out = append(out, tr.Split(v, labels))
			}
		}
		return out, nil
	case Mapper:
		out := make([]*Traverser, 0, len(in))
		for _, tr := range in {
			v, err := s.Map(ctx, tr)
			if err != nil {
				return nil, err
			}
			out = append(out, tr.Split(v, labels))
		}
		return out, nil
	case Filterer:
		var out []*Traverser
		for _, tr := range in {
			keep, err := s.Test(ctx, tr)
			if err != nil {
				return nil, err
			}
			if keep {
				tr.AddLabels(labels)
				out = append(out, tr)
			}
		}
		return out, nil
	case Effector:
		for _, tr := range in {
			if err := s.SideEffect(ctx, tr); err != nil {
				return nil, err
			}
			tr.AddLabels(labels)
		}
		return in, nil
	case Seeder:
		// Seeding is the runner's job; mid-pipeline a start-capable step
		// forwards its input untouched.
		for _, tr := range in {
			tr.AddLabels(labels)
		}
		return in, nil
	default:
		return nil, &IntegrityError{
			Check:  "step capability",
			Index:  at,
			Detail: fmt.Sprintf("step %s implements no execution capability", step.Name()),
		}
	}
}

// Test runs a child traversal against a single parent traverser and
// reports whether at least one traverser survives. The child's steps are
// reset first, so one child instance serves every parent traverser of a
// run in sequence.
func Test(ctx context.Context, child *Traversal, parent *Traverser) (bool, error) {
	child.ResetSteps()
	seed := parent.SplitSelf()
	seed.SetBulk(1)
	out, err := child.Process(ctx, []*Traverser{seed})
	if err != nil {
		return false, err
	}
	return len(out) > 0, nil
}
