package graph

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for programmatic checks via errors.Is.
var (
	// ErrCycle indicates the dependency graph is not acyclic.
	ErrCycle = errors.New("dependency cycle")

	// ErrEmptyGraph indicates non-empty input produced no activities.
	ErrEmptyGraph = errors.New("no activities")

	// ErrInvalidToken indicates a malformed activity name in the input.
	ErrInvalidToken = errors.New("invalid activity token")

	// ErrDanglingEdge indicates an edge endpoint that is not a declared activity.
	ErrDanglingEdge = errors.New("dangling edge")

	// ErrMismatchedEdge indicates an edge present in Adj but not RevAdj, or
	// the reverse.
	ErrMismatchedEdge = errors.New("mismatched edge")
)

// CycleError reports a dependency cycle. Cycle starts and ends with the same
// activity, e.g. [A B A].
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	if e == nil || len(e.Cycle) == 0 {
		return ErrCycle.Error()
	}
	return fmt.Sprintf("%s detected: %s", ErrCycle, strings.Join(e.Cycle, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycle }

// EmptyGraphError is returned when declarations were supplied but every
// token was discarded.
type EmptyGraphError struct {
	Declarations int
}

func (e *EmptyGraphError) Error() string {
	return fmt.Sprintf("%s: %d declarations produced no activities", ErrEmptyGraph, e.Declarations)
}

func (e *EmptyGraphError) Unwrap() error { return ErrEmptyGraph }

// InvalidTokenError reports a declaration whose predecessor is blank while
// successors are present.
type InvalidTokenError struct {
	Line int // 1-based declaration index
	Msg  string
}

func (e *InvalidTokenError) Error() string {
	return fmt.Sprintf("%s: declaration %d: %s", ErrInvalidToken, e.Line, e.Msg)
}

func (e *InvalidTokenError) Unwrap() error { return ErrInvalidToken }

// DanglingEdgeError reports an edge referencing an unknown activity.
type DanglingEdgeError struct {
	Edge     Edge
	Activity string
}

func (e *DanglingEdgeError) Error() string {
	return fmt.Sprintf("%s: %s -> %s references unknown activity %q",
		ErrDanglingEdge, e.Edge.From, e.Edge.To, e.Activity)
}

func (e *DanglingEdgeError) Unwrap() error { return ErrDanglingEdge }

// MismatchedEdgeError reports an edge recorded in only one direction.
type MismatchedEdgeError struct {
	Edge    Edge
	Missing string // "successors" or "predecessors"
}

func (e *MismatchedEdgeError) Error() string {
	return fmt.Sprintf("%s: %s -> %s is missing from the %s of %s",
		ErrMismatchedEdge, e.Edge.From, e.Edge.To, e.Missing, e.owner())
}

func (e *MismatchedEdgeError) owner() string {
	if e.Missing == "successors" {
		return e.Edge.From
	}
	return e.Edge.To
}

func (e *MismatchedEdgeError) Unwrap() error { return ErrMismatchedEdge }
