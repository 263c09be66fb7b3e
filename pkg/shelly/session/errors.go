package session

import (
	"errors"
	"fmt"
)

// Sentinel errors for the pending-request table and RPC intention layer,
// following the teacher's pattern of sentinel errors plus typed wrappers
// that Unwrap to them.
var (
	// ErrQueueFull is returned by Table.Enqueue when all slots are occupied.
	ErrQueueFull = errors.New("pending-request table full")

	// ErrNotFound is returned when a correlation id has no matching entry.
	ErrNotFound = errors.New("no pending request with that id")

	// ErrWrongState is returned when a state transition is attempted from
	// an entry that isn't in the expected state.
	ErrWrongState = errors.New("pending request in unexpected state")

	// ErrInvalidArgument is returned when a verb is asked to build a
	// request from user-supplied JSON that doesn't parse.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnknownInstance is returned when a verb targets an instance id
	// outside the configured bound (e.g. switch 99).
	ErrUnknownInstance = errors.New("unknown instance id")
)

// EnqueueError wraps ErrQueueFull with the capacity that was exceeded.
type EnqueueError struct {
	Capacity int
}

func (e *EnqueueError) Error() string {
	return fmt.Sprintf("pending-request table full (capacity %d)", e.Capacity)
}

func (e *EnqueueError) Unwrap() error { return ErrQueueFull }

// InvalidArgumentError wraps ErrInvalidArgument with the offending verb
// and the underlying parse error.
type InvalidArgumentError struct {
	Verb string
	Err  error
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("%s: invalid argument: %v", e.Verb, e.Err)
}

func (e *InvalidArgumentError) Unwrap() error { return ErrInvalidArgument }
