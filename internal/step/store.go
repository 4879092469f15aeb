package step

import (
	"context"
	"fmt"

	"github.com/roach88/hopscotch/internal/pipeline"
)

// StoreStep appends every value flowing through it to a list in the
// shared side-effect bag, once per unit of bulk. The traverser itself
// passes through untouched; downstream correlation can then read the
// collected list through the bag tier of scope resolution.
type StoreStep struct {
	pipeline.BaseStep
	key string
}

// NewStoreStep creates a store step writing under key.
func NewStoreStep(key string) (*StoreStep, error) {
	if key == "" {
		return nil, &pipeline.ConstructionError{Site: "store", Reason: "side-effect key must be non-empty"}
	}
	return &StoreStep{BaseStep: pipeline.NewBaseStep("store", pipeline.KindSideEffect), key: key}, nil
}

// Key returns the side-effect key written to.
func (s *StoreStep) Key() string { return s.key }

// Requirements declares the traverser features this step needs.
func (s *StoreStep) Requirements() pipeline.RequirementSet {
	return pipeline.ReqObject | pipeline.ReqSideEffects | pipeline.ReqBulk
}

// Clone deep-copies the step.
func (s *StoreStep) Clone() pipeline.Step {
	return &StoreStep{BaseStep: s.CloneBase(), key: s.key}
}

// SideEffect appends the traverser's value to the bag list, weighted by
// bulk.
func (s *StoreStep) SideEffect(_ context.Context, tr *pipeline.Traverser) error {
	bag := tr.SideEffects()
	if bag == nil {
		return fmt.Errorf("store %q: side-effect bag not attached", s.key)
	}
	var list []any
	if existing, ok := bag.Get(s.key); ok {
		prior, isList := existing.([]any)
		if !isList {
			return fmt.Errorf("store %q: side effect holds %T, not a list", s.key, existing)
		}
		list = prior
	}
	for i := int64(0); i < tr.Bulk(); i++ {
		list = append(list, tr.Value())
	}
	bag.Set(s.key, list)
	return nil
}

func (s *StoreStep) String() string { return "store(" + s.key + ")" }
