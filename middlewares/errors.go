package middlewares

import (
	"errors"
	"fmt"
)

// PanicError is a panic recovered by Recover.
type PanicError struct {
	Value any    // The panic value
	Stack []byte // Stack trace, nil when stack capture is disabled
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// AsPanicError extracts the PanicError from an error chain.
func AsPanicError(err error) (*PanicError, bool) {
	var pe *PanicError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
