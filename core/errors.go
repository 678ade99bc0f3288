package core

import "github.com/pkg/errors"

var (
	ErrUnauthenticated    = errors.New("user not authenticated")
	ErrForbidden          = errors.New("permission denied")
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

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
		return "invalid data"
	}
	return err.Err.Error()
}

// ConflictError reports a uniqueness violation, detected either before the write
// or by the store's unique constraints.
type ConflictError struct {
	Err    error
	Fields []FieldError
}

func NewConflictError(err error, flds ...FieldError) error {
	return &ConflictError{err, flds}
}

func (err ConflictError) Error() string {
	if err.Err == nil {
		return "conflict"
	}
	return err.Err.Error()
}

func (err ConflictError) Unwrap() error { return err.Err }

// IsConflict reports whether err (or its cause) is a *ConflictError.
func IsConflict(err error) bool {
	_, ok := errors.Cause(err).(*ConflictError)
	return ok
}

// IsNotFound reports whether err's cause is ErrNotFound or a domain alias of it.
func IsNotFound(err error) bool {
	cause := errors.Cause(err)
	if cause == ErrNotFound {
		return true
	}
	nf, ok := cause.(interface{ NotFound() bool })
	return ok && nf.NotFound()
}

// NotFoundError is ErrNotFound with a resource-specific message.
type NotFoundError struct {
	msg string
}

func NewNotFoundError(msg string) error {
	return &NotFoundError{msg: msg}
}

func (err NotFoundError) Error() string { return err.msg }
func (err NotFoundError) NotFound() bool { return true }

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
