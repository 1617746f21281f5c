// Package cartomesh structured error types for better error handling.
package cartomesh

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes the errors that cartomesh's constructors and public
// methods can return.
type ErrorKind int

const (
	// ShapeMismatch indicates tuple-length disagreements at a boundary.
	ShapeMismatch ErrorKind = iota
	// InsufficientPeers indicates the origin communicator has fewer members
	// than the requested grid needs.
	InsufficientPeers
	// NotInGrid indicates a grid-dependent method was called on a peer that
	// did not land inside the Cartesian grid.
	NotInGrid
	// OutOfRange indicates a rank or coordinate outside valid bounds.
	OutOfRange
	// InvalidOffset indicates a direction component outside {-1, 0, +1}.
	InvalidOffset
	// TransportError indicates a substrate failure; Err carries the
	// substrate's own diagnostic.
	TransportError
)

// String returns the error kind's name.
func (k ErrorKind) String() string {
	switch k {
	case ShapeMismatch:
		return "ShapeMismatch"
	case InsufficientPeers:
		return "InsufficientPeers"
	case NotInGrid:
		return "NotInGrid"
	case OutOfRange:
		return "OutOfRange"
	case InvalidOffset:
		return "InvalidOffset"
	case TransportError:
		return "TransportError"
	default:
		return "Unknown"
	}
}

// Error is the structured error type returned by every cartomesh
// constructor and public method.
type Error struct {
	Kind ErrorKind
	Op   string // operation that failed, e.g. "NewSplitter"
	Msg  string // human-readable detail
	Err  error  // underlying error, set for TransportError
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cartomesh: %s error in %s: %s (caused by: %v)", e.Kind, e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("cartomesh: %s error in %s: %s", e.Kind, e.Op, e.Msg)
}

// Unwrap allows error chain inspection with errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind ErrorKind) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}

func newErr(kind ErrorKind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

func errShapeMismatch(op, msg string) *Error {
	return newErr(ShapeMismatch, op, msg)
}

func errInsufficientPeers(op string, need, have int) *Error {
	return newErr(InsufficientPeers, op, fmt.Sprintf("grid needs %d peers, origin communicator has %d", need, have))
}

func errNotInGrid(op string) *Error {
	return newErr(NotInGrid, op, "called on a peer that is not a member of the Cartesian grid")
}

func errOutOfRange(op, msg string) *Error {
	return newErr(OutOfRange, op, msg)
}

func errInvalidOffset(op string, offset []int) *Error {
	return newErr(InvalidOffset, op, fmt.Sprintf("direction %v has a component outside {-1,0,+1}", offset))
}

func errTransport(op string, cause error) *Error {
	return &Error{Kind: TransportError, Op: op, Msg: "substrate operation failed", Err: cause}
}
