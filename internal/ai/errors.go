package ai

import (
	"errors"
	"fmt"
)

// ErrorType categorizes failures for structured handling by the agent
// loop and the HTTP layer.
type ErrorType string

const (
	// ErrModelUnavailable means the model turn itself failed. Terminal
	// for the request; the loop aborts.
	ErrModelUnavailable ErrorType = "model_unavailable"
	// ErrToolRejected means the executor's syntactic guard refused the
	// statement. Fed back to the model as a failure result.
	ErrToolRejected ErrorType = "tool_rejected"
	// ErrToolExecution means the statement was accepted but failed at
	// the data store. Same handling as ErrToolRejected.
	ErrToolExecution ErrorType = "tool_execution_failed"
	// ErrSerialization means a result value could not be represented in
	// the wire format. Treated like an execution failure.
	ErrSerialization ErrorType = "serialization_failure"
)

// ToolError classifies a tool-side failure. It never escapes the agent
// loop; it is serialized into a failure result so the model can decide
// whether to retry within budget.
type ToolError struct {
	Type    ErrorType
	Message string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// AsToolError coerces err into a *ToolError, classifying anything
// unrecognized as an execution failure.
func AsToolError(err error) *ToolError {
	var te *ToolError
	if errors.As(err, &te) {
		return te
	}
	return &ToolError{Type: ErrToolExecution, Message: err.Error()}
}

// ModelError marks an unrecoverable failure of the model channel.
// Unlike tool failures it always aborts the loop.
type ModelError struct {
	Err error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model call failed: %v", e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// ErrInvalidRewindPoint is returned by Rewind when the index does not
// address a user message. The conversation is left unmodified.
var ErrInvalidRewindPoint = errors.New("invalid rewind point")
