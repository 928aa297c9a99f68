package core

import "github.com/pkg/errors"

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

// IntegrityError rejects writes that would break a data invariant:
// duplicates, references to unknown rows, mismatched scopes.
type IntegrityError struct {
	Message string
}

func NewIntegrityError(msg string) error {
	return &IntegrityError{Message: msg}
}

func (err IntegrityError) Error() string {
	return err.Message
}

func IsIntegrity(err error) bool {
	_, ok := errors.Cause(err).(*IntegrityError)
	return ok
}

type AuthReason string

const (
	ReasonLocked       AuthReason = "locked"
	ReasonUnauthorized AuthReason = "unauthorized"
)

type AuthorizationError struct {
	Reason  AuthReason
	Message string
}

func NewAuthorizationError(reason AuthReason, msg string) error {
	return &AuthorizationError{Reason: reason, Message: msg}
}

func (err AuthorizationError) Error() string {
	return err.Message
}

var (
	ErrLocked       = NewAuthorizationError(ReasonLocked, "these results are locked, contact admin to unlock")
	ErrUnauthorized = NewAuthorizationError(ReasonUnauthorized, "unauthorized")
)

func IsLocked(err error) bool {
	aErr, ok := errors.Cause(err).(*AuthorizationError)
	return ok && aErr.Reason == ReasonLocked
}

func IsUnauthorized(err error) bool {
	aErr, ok := errors.Cause(err).(*AuthorizationError)
	return ok && aErr.Reason == ReasonUnauthorized
}

// NotFoundError reports a missing referenced entity. Packages declare one sentinel per entity.
type NotFoundError struct {
	Entity string
}

func NewNotFoundError(entity string) error {
	return &NotFoundError{Entity: entity}
}

func (err NotFoundError) Error() string {
	return err.Entity + " not found"
}

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
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
