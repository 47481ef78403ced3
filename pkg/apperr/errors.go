// Package apperr defines the error taxonomy shared by the entity services
// and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers that need to react differently to it
type Kind int

const (
	// Internal is any failure that does not fit another kind
	Internal Kind = iota
	// PolicyViolation means the current role lacks the capability
	PolicyViolation
	// InvariantViolation means the operation would break a system-wide guarantee
	InvariantViolation
	// NotFound means the entity does not exist in the caller's scope
	NotFound
	// TransientFailure means the backend call failed and may succeed if retried
	TransientFailure
	// Validation means the payload was rejected
	Validation
)

func (k Kind) String() string {
	switch k {
	case PolicyViolation:
		return "policy_violation"
	case InvariantViolation:
		return "invariant_violation"
	case NotFound:
		return "not_found"
	case TransientFailure:
		return "transient_failure"
	case Validation:
		return "validation"
	default:
		return "internal"
	}
}

// Codes for errors the UI renders with a dedicated state
const (
	CodeLastAdmin = "last_admin"
)

// LastAdminMessage is the exact text shown when the last System Admin would be removed
const LastAdminMessage = "Cannot remove/deactivate the last System Admin."

// GenericFailureMessage is shown for transient and unclassified failures
const GenericFailureMessage = "Something went wrong. Please try again."

// Error is a classified application error
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind and code so sentinels work with errors.Is
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// Sentinel errors
var (
	ErrLastAdmin = &Error{Kind: InvariantViolation, Code: CodeLastAdmin, Message: LastAdminMessage}
	ErrNotFound  = &Error{Kind: NotFound, Message: "not found"}
	ErrTransient = &Error{Kind: TransientFailure, Message: "backend unavailable"}
	ErrPolicy    = &Error{Kind: PolicyViolation, Message: "not permitted for the current role"}
)

// New creates a classified error
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// NotFoundf returns a NotFound error for the given entity type and id
func NotFoundf(entity, id string) *Error {
	return &Error{Kind: NotFound, Message: fmt.Sprintf("%s %q not found", entity, id)}
}

// Invalid returns a Validation error
func Invalid(format string, args ...interface{}) *Error {
	return New(Validation, format, args...)
}

// Denied returns a PolicyViolation error naming the missing capability
func Denied(capability, reason string) *Error {
	return &Error{Kind: PolicyViolation, Code: capability, Message: reason}
}

// KindOf returns the kind of the first *Error in the chain, or Internal
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return Internal
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsLastAdmin reports whether err is the last-admin invariant violation
func IsLastAdmin(err error) bool {
	return errors.Is(err, ErrLastAdmin)
}

// UserMessage converts any error into the text shown to the user.
// Transient and unclassified failures get a generic alert.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var appErr *Error
	if !errors.As(err, &appErr) {
		return GenericFailureMessage
	}
	switch appErr.Kind {
	case TransientFailure, Internal:
		return GenericFailureMessage
	default:
		return appErr.Message
	}
}
