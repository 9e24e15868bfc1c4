package upstream

import (
	"errors"
	"fmt"
)

type ErrorType string

const (
	TypeWarning ErrorType = "warning"
	TypeMessage ErrorType = "message"
)

const (
	CodeUnauthorized = "user_unauthorized"
	CodeUnknown      = "unknown_error"

	defaultMessage = "Произошла ошибка"
)

// APIError is a failed upstream envelope, decoded once at the client
// boundary.
type APIError struct {
	Type    ErrorType `json:"type"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Advice  string    `json:"advice,omitempty"`
	System  string    `json:"system,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstream %s %s: %s", e.Type, e.Code, e.Message)
}

func newAPIError(typ, code, message, advice, system string) *APIError {
	e := &APIError{
		Type:    ErrorType(typ),
		Code:    code,
		Message: message,
		Advice:  advice,
		System:  system,
	}
	if e.Type != TypeMessage {
		e.Type = TypeWarning
	}
	if e.Code == "" {
		e.Code = CodeUnknown
	}
	if e.Message == "" {
		e.Message = defaultMessage
	}
	return e
}

type Kind int

const (
	// KindCritical is anything unclassified: warnings, transport failures,
	// undecodable responses.
	KindCritical Kind = iota
	// KindAdvisory is shown inline and the flow continues.
	KindAdvisory
	// KindAuthRequired suspends the flow until the user authenticates.
	KindAuthRequired
)

func (k Kind) String() string {
	switch k {
	case KindAdvisory:
		return "message"
	case KindAuthRequired:
		return "auth_required"
	default:
		return "critical"
	}
}

// Classify maps any error returned by the client onto the error policy.
func Classify(err error) Kind {
	var ae *APIError
	if !errors.As(err, &ae) {
		return KindCritical
	}

	switch {
	case ae.Code == CodeUnauthorized:
		return KindAuthRequired
	case ae.Type == TypeMessage:
		return KindAdvisory
	default:
		return KindCritical
	}
}

// AsAPIError extracts the upstream error, if any.
func AsAPIError(err error) (*APIError, bool) {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
