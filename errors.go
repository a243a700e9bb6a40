package authkit

import (
	"errors"

	"github.com/fynlo/authkit/internal/backend"
)

var (
	// ErrNotInitialized is returned when an operation requires Initialize to
	// have completed first.
	ErrNotInitialized = errors.New("client not initialized")
	// ErrNotAuthenticated is returned when an operation requires a stored
	// session token and none is present.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrInvalidToken is returned when the backend issues a token without the
	// three-segment JWT shape.
	ErrInvalidToken = errors.New("invalid token issued by backend")
	// ErrCredentialsRejected classifies terminal login rejections (wrong
	// password, wrong code, wrong answer). The literal backend message stays
	// available through the wrapping *APIError.
	ErrCredentialsRejected = errors.New("credentials rejected")
	// ErrAccountDisabled classifies rejections caused by administrative
	// account disablement. Terminal: retrying cannot succeed.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrBuilderUsed is returned when a Builder is built twice.
	ErrBuilderUsed = errors.New("builder already used")
)

// ErrTransport marks network-level failures. Test with [IsTransport] rather
// than direct comparison: some transport failures are only recognizable from
// the error text.
var ErrTransport = backend.ErrTransport

// APIError preserves a backend error response exactly as received. Callers
// must discriminate outcomes from Code and Message, never from the formatted
// error string.
type APIError struct {
	// Status is the HTTP status the backend answered with.
	Status int
	// Code is the structured error code when the backend provided one
	// (for example "CODE_REQUIRED"); empty otherwise.
	Code string
	// Message is the literal backend error message. Display this verbatim;
	// it always wins over client-generated text.
	Message string
	// Questions carries the security questions attached to a step-up
	// response, when present.
	Questions []SecurityQuestion
	// Body is the unparsed response body.
	Body []byte

	kind error
}

// Error formats the failure for logs.
func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "authentication rejected"
}

// Unwrap exposes the classification sentinel ([ErrCredentialsRejected] or
// [ErrAccountDisabled]) for errors.Is.
func (e *APIError) Unwrap() error {
	return e.kind
}

// AsAPIError unwraps err into an *APIError when the failure originated as a
// backend response, preserving the original payload for the caller.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsTransport reports whether err is a network-class failure (timeout,
// unreachable host) rather than a response the backend produced.
func IsTransport(err error) bool {
	return backend.IsTransport(err)
}

// apiErrorFrom lifts an internal backend error into the public type,
// classifying it for errors.Is without losing the original payload.
func apiErrorFrom(src *backend.APIError) *APIError {
	e := &APIError{
		Status:  src.Status,
		Code:    src.Code,
		Message: src.Message,
		Body:    src.Body,
		kind:    ErrCredentialsRejected,
	}
	for _, q := range src.Questions {
		e.Questions = append(e.Questions, SecurityQuestion{ID: q.ID, Question: q.Question})
	}
	if src.Disabled() {
		e.kind = ErrAccountDisabled
	}
	return e
}
