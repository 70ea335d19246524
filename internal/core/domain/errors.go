package domain

import "fmt"

// ValidationError means the input was rejected before any write happened.
// ProductID is set when a specific line item is at fault.
type ValidationError struct {
	ProductID int64
	Reason    string
}

func (e *ValidationError) Error() string {
	if e.ProductID != 0 {
		return fmt.Sprintf("invalid order: product %d: %s", e.ProductID, e.Reason)
	}
	return "invalid request: " + e.Reason
}

// PersistenceError means a store operation failed. Atomicity still holds:
// either nothing or everything of the attempted unit persisted.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }
