package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Structured error codes the backend returns in the "error" field. Anything
// outside this set is a human-readable rejection message.
const (
	CodeRequired          = "CODE_REQUIRED"
	CodeSecurityQuestions = "SECURITY_QUESTIONS_REQUIRED"
	CodeAccountDisabled   = "ACCOUNT_DISABLED"
)

// ErrTransport marks network-level failures (unreachable host, timeout)
// as opposed to responses the backend actually produced.
var ErrTransport = errors.New("auth backend unreachable")

// APIError preserves a backend error response in full. Callers discriminate
// step-up challenges from terminal rejections through Code and Message, never
// through the formatted error string.
type APIError struct {
	Status    int
	Code      string
	Message   string
	Questions []SecurityQuestion
	Body      []byte
}

// Error formats the backend failure for logs. The literal backend message
// always wins over a generic fallback.
func (e *APIError) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("auth backend: %s (status %d)", e.Message, e.Status)
	case e.Code != "":
		return fmt.Sprintf("auth backend: %s (status %d)", e.Code, e.Status)
	default:
		return fmt.Sprintf("auth backend: status %d", e.Status)
	}
}

// StepUp reports whether the error is a step-up challenge rather than a
// terminal rejection.
func (e *APIError) StepUp() bool {
	return e.Code == CodeRequired || e.Code == CodeSecurityQuestions
}

// Disabled reports whether the error indicates a disabled account. The
// structured code is authoritative; the message-substring check remains only
// for backends that predate the code.
func (e *APIError) Disabled() bool {
	if e.Code == CodeAccountDisabled {
		return true
	}
	return strings.Contains(strings.ToLower(e.Message), "disabled")
}

type errorPayload struct {
	Error     string             `json:"error,omitempty"`
	Message   string             `json:"message,omitempty"`
	Questions []SecurityQuestion `json:"questions,omitempty"`
}

// parseAPIError maps a non-2xx response body into an APIError, keeping the
// raw body so nothing the backend said is lost.
func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status, Body: body}

	var payload errorPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		apiErr.Message = strings.TrimSpace(string(body))
		return apiErr
	}

	apiErr.Questions = payload.Questions
	switch payload.Error {
	case CodeRequired, CodeSecurityQuestions, CodeAccountDisabled:
		apiErr.Code = payload.Error
		apiErr.Message = payload.Message
	default:
		apiErr.Message = payload.Error
		if apiErr.Message == "" {
			apiErr.Message = payload.Message
		}
	}
	return apiErr
}

// IsTransport reports whether err is a network-class failure. The backend
// guarantees no structured code for these, so beyond the typed checks this
// falls back to substring inspection of the transport error text.
func IsTransport(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransport) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"timeout",
		"timed out",
		"connection refused",
		"connection reset",
		"no such host",
		"network is unreachable",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
