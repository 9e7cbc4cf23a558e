package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure the way the purchase flow reacts to it.
type Kind string

const (
	// KindAuthExpired is a 401 carrying the token-expiry marker. The
	// transport retries once after a refresh; a second occurrence forces
	// re-login.
	KindAuthExpired Kind = "AUTH_EXPIRED"

	// KindValidation is rejected locally before any network call.
	KindValidation Kind = "VALIDATION"

	// KindConflict means another buyer holds the contested resource. The
	// caller must re-fetch state before retrying.
	KindConflict Kind = "CONFLICT"

	// KindStream is a dropped or broken push channel, distinct from a
	// clean business failure delivered over it.
	KindStream Kind = "STREAM"

	// KindServerRejection is any non-2xx without a recognized marker.
	// Never retried automatically.
	KindServerRejection Kind = "SERVER_REJECTION"
)

type FlowError struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *FlowError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

func New(kind Kind, code, message string) *FlowError {
	return &FlowError{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

func Wrap(kind Kind, message string, err error) *FlowError {
	return &FlowError{
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

func AuthExpired(message string) *FlowError {
	return New(KindAuthExpired, "AUTH_EXPIRED", message)
}

func Validation(message string) *FlowError {
	return New(KindValidation, "VALIDATION_FAILED", message)
}

func Conflict(code, message string) *FlowError {
	return New(KindConflict, code, message)
}

func Stream(message string, err error) *FlowError {
	return Wrap(KindStream, message, err)
}

func ServerRejection(code, message string) *FlowError {
	return New(KindServerRejection, code, message)
}

// IsKind reports whether err (or anything it wraps) is a FlowError of
// the given kind.
func IsKind(err error, kind Kind) bool {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	return false
}
