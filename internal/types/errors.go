package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is checks against the typed errors below.
var (
	ErrAlignment      = errors.New("alignment error")
	ErrDivisionByZero = errors.New("division by zero")
	ErrOrdering       = errors.New("ordering error")
	ErrAssembly       = errors.New("assembly error")
)

// AlignmentError reports a snapshot year that could not be brought onto the
// reference grid. It is recoverable: the year is skipped.
type AlignmentError struct {
	Year   int
	Reason string
	Err    error
}

func (e *AlignmentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("alignment of %d failed: %s: %v", e.Year, e.Reason, e.Err)
	}
	return fmt.Sprintf("alignment of %d failed: %s", e.Year, e.Reason)
}

func (e *AlignmentError) Unwrap() error { return e.Err }

func (e *AlignmentError) Is(target error) bool { return target == ErrAlignment }

// DivisionByZeroError reports a unit whose footprint has no pixels.
type DivisionByZeroError struct {
	UnitID int
}

func (e *DivisionByZeroError) Error() string {
	return fmt.Sprintf("unit %d has an empty footprint", e.UnitID)
}

func (e *DivisionByZeroError) Is(target error) bool { return target == ErrDivisionByZero }

// OrderingError reports years that are not strictly ascending.
type OrderingError struct {
	Previous int
	Got      int
}

func (e *OrderingError) Error() string {
	return fmt.Sprintf("year %d presented after %d; years must be strictly ascending", e.Got, e.Previous)
}

func (e *OrderingError) Is(target error) bool { return target == ErrOrdering }

// AssemblyError reports daily series whose lengths disagree.
type AssemblyError struct {
	UnitID int
	Want   int
	Got    int
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("unit %d has %d daily values, expected %d", e.UnitID, e.Got, e.Want)
}

func (e *AssemblyError) Is(target error) bool { return target == ErrAssembly }

// IsRecoverable reports whether err only invalidates a single year.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrAlignment)
}
