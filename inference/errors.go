package inference

import (
	"errors"
	"fmt"
)

// ErrModelUnavailable is returned when a prediction is attempted and the
// model session cannot be made ready.
var ErrModelUnavailable = errors.New("model is not available")

// ErrCGORequired is returned when ONNX inference is attempted without CGO
// support.
var ErrCGORequired = errors.New("inference requires CGO support; rebuild with CGO_ENABLED=1")

// SessionConstructionError reports that a fetched model artifact could not
// be parsed into a runnable session.
type SessionConstructionError struct {
	Err error
}

func (e *SessionConstructionError) Error() string {
	return fmt.Sprintf("failed to construct inference session: %v", e.Err)
}

func (e *SessionConstructionError) Unwrap() error { return e.Err }

// InferenceError reports a failure during the forward pass itself.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed: %v", e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }
