package gateway

import (
	"fmt"
	"net/http"

	"github.com/electrowiki/assistant/domain"
)

// Kind classifies a gateway failure.
type Kind string

const (
	KindUnauthenticated Kind = "unauthenticated"
	KindInvalidInput    Kind = "invalid_input"
	KindMisconfigured   Kind = "misconfigured"
	KindOverloaded      Kind = "overloaded"
	KindTimeout         Kind = "timeout"
	KindUpstream        Kind = "upstream"
)

// User-facing messages. InvalidInput and Unauthenticated describe the
// caller's mistake; the rest give retry guidance without leaking internal
// detail.
const (
	MsgAuthRequired   = "Authentication required"
	MsgPromptRequired = "Prompt is required and must be a string"
	MsgPromptEmpty    = "Prompt cannot be empty"
	MsgPromptTooLong  = "Prompt is too long. Maximum 2000 characters allowed."
	MsgPromptBlocked  = "Prompt was rejected by the content policy."
	MsgMisconfigured  = "AI service is not properly configured"
	MsgOverloaded     = "AI service is currently at capacity. Please try again in a few moments."
	MsgTimeout        = "Request timed out. Please try again with a shorter prompt."
	MsgUpstream       = "Internal server error. Please try again later."
)

// Error is a gateway failure. Message is safe to return to the caller;
// cause, if any, is for server-side logs only.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// HTTPStatus maps the error kind to its HTTP status code.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindOverloaded:
		return http.StatusTooManyRequests
	case KindTimeout:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Outcome maps the error kind to its audit outcome.
func (e *Error) Outcome() domain.CompletionOutcome {
	switch e.Kind {
	case KindUnauthenticated:
		return domain.OutcomeUnauthenticated
	case KindInvalidInput:
		return domain.OutcomeInvalidInput
	case KindMisconfigured:
		return domain.OutcomeMisconfigured
	case KindOverloaded:
		return domain.OutcomeOverloaded
	case KindTimeout:
		return domain.OutcomeTimeout
	default:
		return domain.OutcomeUpstream
	}
}

// ErrUnauthenticated reports an unresolvable caller identity.
func ErrUnauthenticated() *Error {
	return &Error{Kind: KindUnauthenticated, Message: MsgAuthRequired}
}

// ErrInvalidInput reports a caller mistake with the given user-facing
// message.
func ErrInvalidInput(message string) *Error {
	return &Error{Kind: KindInvalidInput, Message: message}
}

// ErrMisconfigured reports a missing provider credential or configuration.
func ErrMisconfigured() *Error {
	return &Error{Kind: KindMisconfigured, Message: MsgMisconfigured}
}

// ErrOverloaded reports provider capacity or quota exhaustion.
func ErrOverloaded(cause error) *Error {
	return &Error{Kind: KindOverloaded, Message: MsgOverloaded, cause: cause}
}

// ErrTimeout reports a provider timeout.
func ErrTimeout(cause error) *Error {
	return &Error{Kind: KindTimeout, Message: MsgTimeout, cause: cause}
}

// ErrUpstream reports any other provider failure.
func ErrUpstream(cause error) *Error {
	return &Error{Kind: KindUpstream, Message: MsgUpstream, cause: cause}
}
