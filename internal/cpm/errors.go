package cpm

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for programmatic checks via errors.Is.
var (
	ErrMissingDuration      = errors.New("missing duration")
	ErrInvalidDuration      = errors.New("invalid duration")
	ErrInconsistentSchedule = errors.New("inconsistent schedule")
)

// MissingDurationError lists every activity without a duration entry, in
// topological order.
type MissingDurationError struct {
	Activities []string
}

func (e *MissingDurationError) Error() string {
	return fmt.Sprintf("%s for %s", ErrMissingDuration, strings.Join(e.Activities, ", "))
}

func (e *MissingDurationError) Unwrap() error { return ErrMissingDuration }

// InvalidDurationError reports a negative, NaN or infinite duration.
type InvalidDurationError struct {
	Activity string
	Value    float64
}

func (e *InvalidDurationError) Error() string {
	return fmt.Sprintf("%s for %s: %v (must be a finite number >= 0)", ErrInvalidDuration, e.Activity, e.Value)
}

func (e *InvalidDurationError) Unwrap() error { return ErrInvalidDuration }

// InconsistentScheduleError signals negative slack, which cannot happen for a
// DAG with non-negative durations and points at a defect.
type InconsistentScheduleError struct {
	Activity string
	Slack    float64
}

func (e *InconsistentScheduleError) Error() string {
	return fmt.Sprintf("%s: activity %s has negative slack %v", ErrInconsistentSchedule, e.Activity, e.Slack)
}

func (e *InconsistentScheduleError) Unwrap() error { return ErrInconsistentSchedule }
