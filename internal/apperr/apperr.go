// Package apperr defines the semantic error kinds surfaced at the HTTP
// boundary and maps them to status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is a sentinel for a category of failure.
type Kind interface {
	error
	isKind()
}

type kind struct {
	name   string
	status int
	public string
}

func (k kind) Error() string { return k.name }
func (k kind) isKind()       {}

var (
	MalformedBody   Kind = kind{name: "MALFORMED_BODY", status: http.StatusBadRequest, public: "Malformed request body"}
	PayloadTooLarge Kind = kind{name: "PAYLOAD_TOO_LARGE", status: http.StatusRequestEntityTooLarge, public: "Payload Too Large"}
	ConnectFailure  Kind = kind{name: "CONNECT_FAILURE", status: http.StatusServiceUnavailable, public: "Service Unavailable"}
	NotFound        Kind = kind{name: "NOT_FOUND", status: http.StatusNotFound, public: "Not Found"}
	Conflict        Kind = kind{name: "CONFLICT", status: http.StatusConflict, public: "Conflict"}
	Invalid         Kind = kind{name: "INVALID", status: http.StatusBadRequest, public: "Bad Request"}
	HandlerError    Kind = kind{name: "HANDLER_ERROR", status: http.StatusInternalServerError, public: "Internal Server Error"}
)

// Error carries a kind, an optional cause and an optional public message.
// The cause is never shown to clients.
type Error struct {
	kind Kind
	err  error
	msg  string
}

// New creates an error of kind k with a client-facing message.
func New(k Kind, msgFmt string, args ...any) *Error {
	return &Error{kind: k, msg: fmt.Sprintf(msgFmt, args...)}
}

// Wrap attaches cause to kind k. msg may be empty, in which case the kind's
// default message is shown to clients.
func Wrap(k Kind, err error, msg string) *Error {
	return &Error{kind: k, err: err, msg: msg}
}

func (e *Error) Error() string {
	switch {
	case e.msg != "" && e.err != nil:
		return e.msg + ": " + e.err.Error()
	case e.msg != "":
		return e.msg
	case e.err != nil:
		return e.err.Error()
	default:
		return e.kind.Error()
	}
}

func (e *Error) Unwrap() error { return e.err }

// Is matches either the kind sentinel or anything in the wrapped chain.
func (e *Error) Is(target error) bool {
	if e.kind != nil && errors.Is(e.kind, target) {
		return true
	}
	return e.err != nil && errors.Is(e.err, target)
}

func (e *Error) Kind() Kind { return e.kind }

// KindOf returns the kind carried by err, or HandlerError for anything that
// was not classified.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.kind != nil {
		return appErr.kind
	}
	var k kind
	if errors.As(err, &k) {
		return k
	}
	return HandlerError
}

// Status maps err to an HTTP status code.
func Status(err error) int {
	if k, ok := KindOf(err).(kind); ok {
		return k.status
	}
	return http.StatusInternalServerError
}

// Message returns the text safe to show to clients.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.msg != "" {
		return appErr.msg
	}
	if k, ok := KindOf(err).(kind); ok {
		return k.public
	}
	return "Internal Server Error"
}
