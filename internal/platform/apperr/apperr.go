// Package apperr defines the error taxonomy shared by the clinic services and
// its mapping onto HTTP responses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Kind groups errors by how a caller should react to them.
type Kind string

const (
	KindNotFound      Kind = "NOT_FOUND"
	KindValidation    Kind = "VALIDATION"
	KindConflict      Kind = "CONFLICT"
	KindUnauthorized  Kind = "UNAUTHORIZED"
	KindGone          Kind = "GONE"
	KindUnprocessable Kind = "UNPROCESSABLE"
	KindRateLimited   Kind = "RATE_LIMITED"
	KindDependency    Kind = "DEPENDENCY"
	KindInternal      Kind = "INTERNAL"
)

// Error is a classified application error. Two errors match under errors.Is
// when their codes are equal, so wrapped copies of a sentinel still compare
// equal to it.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func newSentinel(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

var (
	ErrNotFound             = newSentinel(KindNotFound, "NOT_FOUND", "resource not found")
	ErrValidation           = newSentinel(KindValidation, "VALIDATION_FAILURE", "invalid input")
	ErrDuplicateHandle      = newSentinel(KindConflict, "DUPLICATE_HANDLE", "username already taken")
	ErrAlreadyLinked        = newSentinel(KindConflict, "ALREADY_LINKED", "record already linked to an account")
	ErrAlreadyActivated     = newSentinel(KindConflict, "ALREADY_ACTIVATED", "credentials already activated")
	ErrInvalidCredentials   = newSentinel(KindUnauthorized, "INVALID_CREDENTIALS", "invalid username or password")
	ErrInvalidChallenge     = newSentinel(KindValidation, "INVALID_CHALLENGE", "invalid verification code")
	ErrChallengeExpired     = newSentinel(KindGone, "CHALLENGE_EXPIRED", "verification code expired")
	ErrChallengeAlreadyUsed = newSentinel(KindConflict, "CHALLENGE_ALREADY_USED", "verification code already used")
	ErrVerificationMismatch = newSentinel(KindValidation, "VERIFICATION_MISMATCH", "verification details do not match")
	ErrNoContactMethod      = newSentinel(KindUnprocessable, "NO_CONTACT_METHOD", "record has no phone number on file")
	ErrRateLimited          = newSentinel(KindRateLimited, "RATE_LIMITED", "too many requests")
	ErrDependency           = newSentinel(KindDependency, "DEPENDENCY_FAILURE", "upstream dependency failed")
)

// Wrap attaches a cause and context message to a sentinel.
func Wrap(sentinel *Error, msg string, cause error) *Error {
	return &Error{Kind: sentinel.Kind, Code: sentinel.Code, Message: msg, Err: cause}
}

// Validation builds a validation failure with a specific message.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: ErrValidation.Code, Message: fmt.Sprintf(format, args...)}
}

// Dependency marks err as a store or collaborator failure unless it already
// carries a classification.
func Dependency(msg string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return Wrap(ErrDependency, msg, err)
}

// KindOf returns the classification of err, or KindInternal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// HTTPStatus maps err to a response status.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindGone:
		return http.StatusGone
	case KindUnprocessable:
		return http.StatusUnprocessableEntity
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindDependency:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Body is the JSON error payload.
type Body struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ToHTTP converts err into an echo error. Internal and dependency causes are
// not echoed to the client.
func ToHTTP(err error) *echo.HTTPError {
	var ae *Error
	if !errors.As(err, &ae) {
		return echo.NewHTTPError(http.StatusInternalServerError, Body{Code: "INTERNAL", Message: "internal error"}).SetInternal(err)
	}
	msg := ae.Message
	if ae.Kind == KindDependency || ae.Kind == KindInternal {
		msg = "service temporarily unavailable"
	}
	return echo.NewHTTPError(HTTPStatus(err), Body{Code: ae.Code, Message: msg}).SetInternal(err)
}
