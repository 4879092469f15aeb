package pipeline

import (
	"errors"
	"fmt"
)

// ErrNotCompiled is returned when a traversal is asked to process
// traversers before the strategy pipeline has locked it.
var ErrNotCompiled = errors.New("pipeline: traversal is not compiled")

// ConstructionError represents a failure while assembling a traversal.
//
// Construction errors include:
//   - Correlated filter with no anchor label anywhere in its sub-traversal
//   - More than one label on a sub-traversal's end step
//   - A declared strategy-ordering cycle
//   - Mutating a traversal after the strategy pipeline locked it
//
// Construction errors surface synchronously to the caller assembling the
// query; no partially built step or traversal stays reachable afterwards.
type ConstructionError struct {
	// Site identifies the construct that failed ("where", "traversal",
	// "strategy registry", a step name).
	Site string

	// Reason is a human-readable description.
	Reason string
}

// Error implements the error interface.
func (e *ConstructionError) Error() string {
	return fmt.Sprintf("construct %s: %s", e.Site, e.Reason)
}

// IsConstructionError returns true if the error is a ConstructionError.
// Uses errors.As to handle wrapped errors.
func IsConstructionError(err error) bool {
	var ce *ConstructionError
	return errors.As(err, &ce)
}

// IntegrityError indicates a rewrite left the pipeline in an inconsistent
// state: non-contiguous links, a stale child owner, or a cached requirement
// set that disagrees with recomputation.
//
// An IntegrityError is a strategy bug, not a user error. It should never
// occur for a correct strategy implementation.
type IntegrityError struct {
	// Check names the violated invariant.
	Check string

	// Index is the offending slot, or NoStep when the violation is not
	// tied to a single slot.
	Index StepIndex

	// Detail carries additional context.
	Detail string
}

// Error implements the error interface.
func (e *IntegrityError) Error() string {
	if e.Index != NoStep {
		return fmt.Sprintf("pipeline integrity: %s at slot %d: %s", e.Check, e.Index, e.Detail)
	}
	return fmt.Sprintf("pipeline integrity: %s: %s", e.Check, e.Detail)
}

// IsIntegrityError returns true if the error is an IntegrityError.
// Uses errors.As to handle wrapped errors.
func IsIntegrityError(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}

// KeyNotFoundError is returned when a scope key cannot be resolved against
// a traverser: the key names no map entry, no side effect, and no path
// element.
//
// Note the distinction from an unbound end-marker: absence of a match key
// is a deliberate always-pass state, not an error. This error means a key
// WAS declared and nothing satisfies it at run time.
type KeyNotFoundError struct {
	// Key is the unresolvable scope key.
	Key string
}

// Error implements the error interface.
func (e *KeyNotFoundError) Error() string {
	return fmt.Sprintf("neither the value map, side effects, nor path has a %q key", e.Key)
}

// IsKeyNotFound returns true if the error is a KeyNotFoundError.
// Uses errors.As to handle wrapped errors.
func IsKeyNotFound(err error) bool {
	var ke *KeyNotFoundError
	return errors.As(err, &ke)
}
