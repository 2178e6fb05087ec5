package recipe

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrVerification indicates a state does not satisfy a required contract.
var ErrVerification = errors.New("state verification failed")

// VerificationError names the contract a state failed to satisfy.
type VerificationError struct {
	Recipe    string
	Provider  string
	Contract  reflect.Type
	StateType reflect.Type
}

// Error returns the error message.
func (e *VerificationError) Error() string {
	prefix := "recipe"
	if e.Recipe != "" {
		prefix = fmt.Sprintf("recipe %s", e.Recipe)
	}
	if e.StateType == nil {
		return fmt.Sprintf("%s: state is nil", prefix)
	}
	if e.Contract == nil {
		return fmt.Sprintf("%s: state %s rejected by %s", prefix, e.StateType, e.Provider)
	}
	return fmt.Sprintf("%s: state %s does not implement %s required by %s", prefix, e.StateType, e.Contract, e.Provider)
}

// Unwrap returns ErrVerification.
func (e *VerificationError) Unwrap() error {
	return ErrVerification
}
