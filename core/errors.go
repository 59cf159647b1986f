package core

import "github.com/pkg/errors"

// ErrorKind classifies the errors the app knows how to present to clients.
type ErrorKind int

const (
	KindUnauthorized ErrorKind = iota + 1
	KindForbidden
	KindNotFound
	KindConflict
	KindExpired
	KindAlreadyProcessed
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not found"
	case KindConflict:
		return "conflict"
	case KindExpired:
		return "expired"
	case KindAlreadyProcessed:
		return "already processed"
	}
	return "internal"
}

// AppError is a client-facing error; its Message is safe to send back as is.
type AppError struct {
	Kind    ErrorKind
	Message string
}

func NewAppError(kind ErrorKind, msg string) *AppError {
	return &AppError{Kind: kind, Message: msg}
}

func (err *AppError) Error() string {
	return err.Message
}

var (
	ErrUnauthorized = NewAppError(KindUnauthorized, "user not authenticated")
	ErrForbidden    = NewAppError(KindForbidden, "permission denied")
	ErrNotFound     = NewAppError(KindNotFound, "not found")
)

// KindOf returns the ErrorKind of the root cause of err, if it is an *AppError.
func KindOf(err error) (ErrorKind, bool) {
	if appErr, ok := errors.Cause(err).(*AppError); ok {
		return appErr.Kind, true
	}
	return 0, false
}

// IsKind reports whether the root cause of err is an *AppError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
