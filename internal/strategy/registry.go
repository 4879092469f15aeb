package strategy

import (
	"fmt"
	"slices"

	"github.com/roach88/hopscotch/internal/pipeline"
)

// Registry collects strategies and, once sealed, fixes their application
// order. A sealed registry is read-only and safe for concurrent use by
// any number of compilations.
type Registry struct {
	byName     map[string]Strategy
	byCategory map[Category][]Strategy
	sealed     bool
}

// NewRegistry returns an empty, unsealed registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:     make(map[string]Strategy),
		byCategory: make(map[Category][]Strategy),
	}
}

// Core returns an unsealed registry preloaded with the stock strategies.
// Callers register provider strategies on top and then Seal.
func Core() *Registry {
	r := NewRegistry()
	stock := []Strategy{
		ConnectiveStrategy{},
		IdentityRemovalStrategy{},
		ScopePreferenceStrategy{},
		DedupCountStrategy{},
		IntegrityStrategy{},
		ComputerVerificationStrategy{},
	}
	for _, s := range stock {
		if err := r.Register(s); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds a strategy. Registration fails on a duplicate name, an
// unknown category, or a registry that has already sealed.
func (r *Registry) Register(s Strategy) error {
	if r.sealed {
		return &pipeline.ConstructionError{
			Site:   "strategy registry",
			Reason: "cannot register after sealing",
		}
	}
	if s == nil {
		return &pipeline.ConstructionError{
			Site:   "strategy registry",
			Reason: "nil strategy",
		}
	}
	name := s.Name()
	if name == "" {
		return &pipeline.ConstructionError{
			Site:   "strategy registry",
			Reason: "strategy has an empty name",
		}
	}
	if !s.Category().valid() {
		return &pipeline.ConstructionError{
			Site:   "strategy registry",
			Reason: fmt.Sprintf("strategy %s declares unknown category %q", name, s.Category()),
		}
	}
	if _, dup := r.byName[name]; dup {
		return &pipeline.ConstructionError{
			Site:   "strategy registry",
			Reason: fmt.Sprintf("strategy %s is already registered", name),
		}
	}
	r.byName[name] = s
	r.byCategory[s.Category()] = append(r.byCategory[s.Category()], s)
	return nil
}

// Seal orders every category and freezes the registry. A declared
// ordering cycle fails the seal with the cycle path named in the error.
// Sealing twice is an error.
func (r *Registry) Seal() error {
	if r.sealed {
		return &pipeline.ConstructionError{
			Site:   "strategy registry",
			Reason: "registry is already sealed",
		}
	}
	for _, cat := range Categories() {
		ordered, err := orderCategory(r.byCategory[cat])
		if err != nil {
			return err
		}
		r.byCategory[cat] = ordered
	}
	r.sealed = true
	return nil
}

// Sealed reports whether the registry has sealed.
func (r *Registry) Sealed() bool { return r.sealed }

// Ordered returns the category's strategies in application order, or nil
// before sealing.
func (r *Registry) Ordered(c Category) []Strategy {
	if !r.sealed {
		return nil
	}
	return slices.Clone(r.byCategory[c])
}

// Strategies returns every registered strategy in full application
// order, or nil before sealing.
func (r *Registry) Strategies() []Strategy {
	if !r.sealed {
		return nil
	}
	var all []Strategy
	for _, cat := range Categories() {
		all = append(all, r.byCategory[cat]...)
	}
	return all
}
