package domain

import "fmt"

// PipelineError is the common shape of every error surfaced to callers and
// event payloads: a stable kind, a short user-facing message, and an
// optional hint. It wraps the underlying cause for diagnostics without
// leaking it to end users.
type PipelineError struct {
	Kind    ErrorKind
	Message string
	Hint    string
	Step    Stage
	Cause   error
}

func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *PipelineError) Unwrap() error { return e.Cause }

// NewToolUnavailable reports that a required external tool could not be
// resolved or made to run.
func NewToolUnavailable(message string, cause error) *PipelineError {
	return &PipelineError{Kind: ErrKindToolUnavailable, Message: message, Cause: cause}
}

// NewInputInvalid reports a caller-supplied value outside its valid range.
func NewInputInvalid(message string) *PipelineError {
	return &PipelineError{Kind: ErrKindInputInvalid, Message: message}
}

// NewExtractorError builds the ExtractorError{kind} taxonomy value from
// §4.2, including the hint surfaced to the user.
func NewExtractorError(kind ErrorKind, message, hint string, cause error) *PipelineError {
	return &PipelineError{Kind: kind, Message: message, Hint: hint, Cause: cause}
}

// NewProcessingError reports an ffmpeg/IO failure during a named step.
func NewProcessingError(step Stage, message string, cause error) *PipelineError {
	return &PipelineError{Kind: ErrKindProcessingError, Message: message, Step: step, Cause: cause}
}

// NewCancelled reports cooperative cancellation of an in-flight item.
func NewCancelled(message string) *PipelineError {
	return &PipelineError{Kind: ErrKindCancelled, Message: message}
}

// NewInternal wraps an unexpected failure that does not fit the taxonomy.
func NewInternal(message string, cause error) *PipelineError {
	return &PipelineError{Kind: ErrKindInternal, Message: message, Cause: cause}
}

// AsPipelineError extracts a *PipelineError from err, or synthesizes an
// Internal one if err does not already carry a taxonomy kind.
func AsPipelineError(err error) *PipelineError {
	if err == nil {
		return nil
	}
	if pe, ok := err.(*PipelineError); ok {
		return pe
	}
	return NewInternal(err.Error(), err)
}
