package breakpoint

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNoBreakpoints is returned when an operation needs a breakpoint and the
// table is empty.
var ErrNoBreakpoints = errors.New("No breakpoints have been set.")

// ErrDuplicateID is returned by Insert when the ID is already registered.
var ErrDuplicateID = errors.New("duplicate breakpoint id")

// UnknownBreakpointError reports an ID that matches no breakpoint.
type UnknownBreakpointError struct {
	ID int
}

func (e *UnknownBreakpointError) Error() string {
	return fmt.Sprintf("No breakpoint number %d.", e.ID)
}
