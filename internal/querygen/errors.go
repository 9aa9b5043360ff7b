package querygen

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput is returned when a blank message is submitted.
	ErrEmptyInput = errors.New("querygen: message text is empty")

	// ErrInvalidVariationCount is returned when the requested variation
	// count is outside [1, 10].
	ErrInvalidVariationCount = errors.New("querygen: variation count must be between 1 and 10")

	// ErrSessionNotFound is returned when a session id is unknown.
	ErrSessionNotFound = errors.New("querygen: session not found")

	// ErrSessionBusy is returned when a submission arrives while another
	// request for the same session is still awaiting its response.
	ErrSessionBusy = errors.New("querygen: a request is already in flight for this session")
)

// FailureKind classifies a failed generation call.
type FailureKind string

const (
	// FailureUnavailable covers transport errors and timeouts.
	FailureUnavailable FailureKind = "unavailable"
	// FailureRemoteRejected covers non-success status codes.
	FailureRemoteRejected FailureKind = "remote_rejected"
	// FailureNoCompletion covers successful responses with no usable completion.
	FailureNoCompletion FailureKind = "no_completion"
	// FailureMalformedResponse covers undecodable response bodies.
	FailureMalformedResponse FailureKind = "malformed_response"
)

// GenerationError is the typed failure returned by a GenerationClient.
type GenerationError struct {
	Kind   FailureKind
	Detail string
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("querygen: generation failed (%s): %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("querygen: generation failed (%s)", e.Kind)
}

func (e *GenerationError) Unwrap() error { return e.Err }
