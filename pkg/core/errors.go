// Package core holds the error taxonomy shared by every component of the
// knowledge-session orchestration core.
package core

import "fmt"

// ErrorType categorizes failures by where they surface.
type ErrorType string

const (
	// ErrTransportOpen is a failure to open a voice or text connection.
	// The connection is left fully closed; retry happens only on the next
	// explicit user action.
	ErrTransportOpen ErrorType = "transport_open_error"

	// ErrStream is a mid-stream transport error or unexpected close.
	ErrStream ErrorType = "stream_error"

	// ErrImageJob is a failure of an asynchronous image generation or
	// edit job. Reported inline on the owning chat message.
	ErrImageJob ErrorType = "image_job_error"

	// ErrPrecondition is a local precondition failure, such as an edit
	// request with no prior generated image. No remote call is made.
	ErrPrecondition ErrorType = "precondition_error"

	// ErrDecode is a malformed persisted payload. The composer degrades
	// to a placeholder string instead of surfacing this past itself.
	ErrDecode ErrorType = "decode_error"

	// ErrStore is a persistence backend failure.
	ErrStore ErrorType = "store_error"

	// ErrInvalidRequest is a malformed intent from a client.
	ErrInvalidRequest ErrorType = "invalid_request_error"
)

// Error is the typed error carried across component boundaries.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Code    string    `json:"code,omitempty"`
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// NewTransportOpenError wraps a connection-open failure.
func NewTransportOpenError(channel string, underlying error) *Error {
	return &Error{Type: ErrTransportOpen, Message: fmt.Sprintf("open %s connection: %v", channel, underlying), Code: channel}
}

// NewStreamError wraps a mid-stream failure.
func NewStreamError(channel string, underlying error) *Error {
	return &Error{Type: ErrStream, Message: fmt.Sprintf("%s stream: %v", channel, underlying), Code: channel}
}

// NewImageJobError wraps an image job failure.
func NewImageJobError(op string, underlying error) *Error {
	return &Error{Type: ErrImageJob, Message: fmt.Sprintf("image %s: %v", op, underlying), Code: op}
}

// NewPreconditionError reports a local precondition failure.
func NewPreconditionError(message string) *Error {
	return &Error{Type: ErrPrecondition, Message: message}
}

// NewStoreError wraps a persistence failure.
func NewStoreError(op string, underlying error) *Error {
	return &Error{Type: ErrStore, Message: fmt.Sprintf("%s: %v", op, underlying), Code: op}
}

// NewInvalidRequestError reports a malformed client intent.
func NewInvalidRequestError(message string) *Error {
	return &Error{Type: ErrInvalidRequest, Message: message}
}
