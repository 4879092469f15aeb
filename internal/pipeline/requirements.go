package pipeline

import "strings"

// RequirementSet is a bitmask of the traverser fields a step (or a whole
// traversal) needs at run time. A traversal's aggregate requirement set is
// the union of every owned step's declared requirements, including nested
// children's, recomputed after every strategy rewrite.
type RequirementSet uint8

const (
	// ReqObject requires the current value.
	ReqObject RequirementSet = 1 << iota

	// ReqPath requires full path history on every traverser. Path
	// retention costs strictly more per traverser than value-only flow,
	// which is why rewrites prefer local scope when no correlation needs
	// the path.
	ReqPath

	// ReqSideEffects requires access to the shared side-effect bag.
	ReqSideEffects

	// ReqBulk requires the bulk count to be honored rather than treated
	// as 1.
	ReqBulk
)

// Has reports whether every requirement in req is present.
func (r RequirementSet) Has(req RequirementSet) bool {
	return r&req == req
}

// Union returns the combination of both sets.
func (r RequirementSet) Union(other RequirementSet) RequirementSet {
	return r | other
}

// String renders the set in declaration order, e.g. "object|path".
// An empty set renders as "none".
func (r RequirementSet) String() string {
	if r == 0 {
		return "none"
	}
	var parts []string
	if r.Has(ReqObject) {
		parts = append(parts, "object")
	}
	if r.Has(ReqPath) {
		parts = append(parts, "path")
	}
	if r.Has(ReqSideEffects) {
		parts = append(parts, "sideEffects")
	}
	if r.Has(ReqBulk) {
		parts = append(parts, "bulk")
	}
	return strings.Join(parts, "|")
}
