package exec

import (
	"errors"
	"fmt"
)

// BudgetError terminates a run whose steps emitted more traversers than
// the configured budget. Branch steps multiply input per branch per
// element, so a mistyped plan can expand without bound; the budget stops
// it before memory does.
type BudgetError struct {
	RunID   string // The run that blew the budget
	Emitted int64  // Traversers emitted when the run was aborted
	Budget  int64  // Configured limit
}

// Error implements the error interface.
func (e *BudgetError) Error() string {
	return fmt.Sprintf("run %s exceeded traverser budget: %d emitted > %d limit",
		e.RunID, e.Emitted, e.Budget)
}

// IsBudgetError returns true if the error is a BudgetError.
// Uses errors.As to handle wrapped errors.
func IsBudgetError(err error) bool {
	var be *BudgetError
	return errors.As(err, &be)
}
