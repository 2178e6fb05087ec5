package dispatch

import (
	"errors"
	"fmt"
)

// Common sentinel errors
var (
	// ErrUnsupportedCall indicates no rule handled a call and no base
	// implementation exists.
	ErrUnsupportedCall = errors.New("unsupported call")

	// ErrInvalidDescriptor indicates a descriptor could not be built.
	ErrInvalidDescriptor = errors.New("invalid call descriptor")

	// ErrInvalidConfig indicates invalid dispatcher configuration.
	ErrInvalidConfig = errors.New("invalid dispatcher configuration")
)

// UnsupportedCallError is returned when a call reaches the end of its chain
// without a handler or base implementation.
type UnsupportedCallError struct {
	Descriptor Descriptor
}

// Error returns the error message.
func (e *UnsupportedCallError) Error() string {
	return fmt.Sprintf("unsupported call: no handler for %s", e.Descriptor)
}

// Unwrap returns ErrUnsupportedCall.
func (e *UnsupportedCallError) Unwrap() error {
	return ErrUnsupportedCall
}

// BuildError indicates a rule failed while building its context for a
// descriptor. Resolutions that fail this way are never cached.
type BuildError struct {
	Rule       string
	Descriptor Descriptor
	Err        error
}

// Error returns the error message.
func (e *BuildError) Error() string {
	return fmt.Sprintf("rule %s: build context for %s: %v", e.Rule, e.Descriptor, e.Err)
}

// Unwrap returns the underlying cause.
func (e *BuildError) Unwrap() error {
	return e.Err
}

// InvocationError wraps a failure raised from inside a handler invocation
// mechanism (reflective calls, adapters). The dispatcher strips it so callers
// see the original cause.
type InvocationError struct {
	Err error
}

// Error returns the error message.
func (e *InvocationError) Error() string {
	return fmt.Sprintf("invocation failed: %v", e.Err)
}

// Unwrap returns the underlying cause.
func (e *InvocationError) Unwrap() error {
	return e.Err
}

// StateTypeError indicates a handler received a state of the wrong type.
type StateTypeError struct {
	Descriptor Descriptor
	State      any
}

// Error returns the error message.
func (e *StateTypeError) Error() string {
	return fmt.Sprintf("handler for %s cannot use state of type %T", e.Descriptor, e.State)
}

// unwrapInvocation strips outer InvocationError layers.
func unwrapInvocation(err error) error {
	for {
		ie, ok := err.(*InvocationError)
		if !ok || ie.Err == nil {
			return err
		}
		err = ie.Err
	}
}
