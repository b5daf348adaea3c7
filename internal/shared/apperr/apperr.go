package apperr

import (
	"errors"
	"net/http"
)

// Kind categorizes user-visible failures.
type Kind int

const (
	NotFound Kind = iota + 1
	AccessDenied
	InvalidState
	Conflict
	Validation
)

type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// KindOf returns the kind of err, or 0 for errors outside the taxonomy.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// Status maps an error onto the HTTP status handlers should return.
func Status(err error) int {
	switch KindOf(err) {
	case NotFound:
		return http.StatusNotFound
	case AccessDenied:
		return http.StatusForbidden
	case InvalidState, Validation:
		return http.StatusBadRequest
	case Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
