package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for deployment operations.
var (
	// ErrConfig indicates a missing or invalid configuration value.
	ErrConfig = errors.New("dynamo: invalid configuration")

	// ErrInputConflict indicates gamepad and keyboard are both enabled or both disabled.
	ErrInputConflict = errors.New("dynamo: exactly one of gamepad_enabled and keyboard_enabled must be true")

	// ErrModelNotFound indicates a policy graph file is missing.
	ErrModelNotFound = errors.New("dynamo: policy model not found")

	// ErrShapeMismatch indicates a tensor shape differs from what the loop provides.
	ErrShapeMismatch = errors.New("dynamo: tensor shape mismatch")

	// ErrSceneNotFound indicates the simulator scene could not be loaded.
	ErrSceneNotFound = errors.New("dynamo: scene not found")

	// ErrNoDevice indicates no input device is attached.
	ErrNoDevice = errors.New("dynamo: no input device found")

	// ErrInference indicates a policy evaluation failed mid-run.
	ErrInference = errors.New("dynamo: inference failed")

	// ErrInvalidState indicates NaN or Inf in simulator state or policy output.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")
)

// InferenceError wraps an inference failure with loop context.
type InferenceError struct {
	Step    int
	Time    float64
	Wrapped error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference at step %d (t=%.4f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *InferenceError) Unwrap() error {
	return e.Wrapped
}
