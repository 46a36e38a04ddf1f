package api

import (
	"errors"
	"net/http"

	"github.com/okian/sensorboard/internal/domain/model"
)

// Sentinel kinds for API errors.
var (
	ErrTemplate = errors.New("template render failed")
)

// Error is an API failure tagged with the operation that produced it and the
// error kind that decides the response status.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() []error {
	if e.Kind == nil {
		return []error{e.Err}
	}
	return []error{e.Kind, e.Err}
}

// Wrap tags err with op; the kind is whatever err already carries.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// NewKind builds an error of the given kind with a client-facing message.
func NewKind(op string, kind error, msg string) error {
	return &Error{Op: op, Kind: kind, Err: errors.New(msg)}
}

type errorKind struct {
	kind   error
	status int
	code   string
}

var errorKinds = []errorKind{
	{model.ErrValidation, http.StatusBadRequest, "validation_error"},
	{model.ErrAuth, http.StatusUnauthorized, "unauthorized"},
	{model.ErrForbidden, http.StatusForbidden, "forbidden"},
	{model.ErrNotFound, http.StatusNotFound, "not_found"},
	{model.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
}

// classify maps err to a status, a machine code and a message safe to show
// to the client. Unclassified errors are internal and their text is hidden.
func classify(err error) (status int, code, msg string) {
	for _, k := range errorKinds {
		if errors.Is(err, k.kind) {
			return k.status, k.code, clientMessage(err)
		}
	}
	return http.StatusInternalServerError, "internal_error", "An error occurred while processing your request"
}

func clientMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Err.Error()
	}
	return err.Error()
}
