package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies application errors so transport layers can map them
// uniformly (HTTP status for REST, error frames or closes for sockets).
type Kind int

const (
	KindInternal Kind = iota
	KindAuthenticationRequired
	KindAccessDenied
	KindValidation
	KindNotFound
	KindTransientDispatch
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func AuthenticationRequired(message string) *Error {
	return New(KindAuthenticationRequired, message)
}

func AccessDenied(message string) *Error {
	return New(KindAccessDenied, message)
}

func Validation(message string) *Error {
	return New(KindValidation, message)
}

func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

func Internal(message string, err error) *Error {
	return Wrap(KindInternal, message, err)
}

// KindOf returns the classification of err, defaulting to internal for
// anything that is not an *Error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
