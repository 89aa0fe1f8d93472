package core

import "github.com/google/uuid"

// Result is one unit of inference output. Exactly one of Outputs / Error is
// populated. For streaming responses a sequence of Results is produced; only
// the terminal element may have Partial=false, unless the sequence terminates
// with a single error result instead.
type Result struct {
	ID      string         `json:"id"`
	Outputs map[string]any `json:"outputs,omitempty"`
	Partial bool           `json:"partial"`
	Error   *Error         `json:"error,omitempty"`
}

// NewResult creates a final (non-partial) success result.
func NewResult(outputs map[string]any) Result {
	return Result{ID: NewID(), Outputs: outputs}
}

// NewTextResult creates a final success result with a single text output slot.
func NewTextResult(slot, text string) Result {
	return NewResult(map[string]any{slot: text})
}

// NewPartialResult creates a streaming fragment that will be followed by
// further results composing the final output.
func NewPartialResult(outputs map[string]any) Result {
	return Result{ID: NewID(), Outputs: outputs, Partial: true}
}

// NewErrorResult creates a terminal error result of the given kind.
func NewErrorResult(kind ErrorKind, format string, args ...any) Result {
	return Result{ID: NewID(), Error: NewError(kind, format, args...)}
}

// NewErrorResultFrom wraps an existing typed error in a terminal result.
func NewErrorResultFrom(err *Error) Result {
	return Result{ID: NewID(), Error: err}
}

// IsError reports whether the result carries an error envelope.
func (r Result) IsError() bool { return r.Error != nil }

// Text returns the named output slot as a string, or "" when absent.
func (r Result) Text(slot string) string {
	s, _ := r.Outputs[slot].(string)
	return s
}

// NewID generates a new unique identifier for results and requests.
func NewID() string { return uuid.NewString() }
