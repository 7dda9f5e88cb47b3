package core

import (
	"errors"
	"fmt"
)

// Kind classifies every failure a console operation can surface.
type Kind string

const (
	KindAuth              Kind = "auth"
	KindFetch             Kind = "fetch"
	KindUnreachable       Kind = "unreachable"
	KindValidation        Kind = "validation"
	KindResolution        Kind = "resolution"
	KindLocalConstraint   Kind = "local_constraint"
	KindMalformedResponse Kind = "malformed_response"
)

// Error is the single normalized error shape returned by the API client,
// the fallback store and the session manager.
type Error struct {
	Kind   Kind
	Op     string // operation that failed, e.g. "listBlogs"
	Status int    // HTTP status reported by the backend, 0 when not applicable
	Detail string // backend or user-facing detail
	Err    error
}

func (e *Error) Error() string {
	msg := e.Detail
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches by kind, so errors.Is(err, ErrValidation) holds for any
// validation failure. An unreachable backend is also a fetch failure.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind == e.Kind {
		return true
	}
	return t.Kind == KindFetch && e.Kind == KindUnreachable
}

// NewError builds a coded error.
func NewError(kind Kind, op, detail string, err error) *Error {
	return &Error{Kind: kind, Op: op, Detail: detail, Err: err}
}

// Invalid wraps a client-side input error as a validation failure.
func Invalid(op string, err error) *Error {
	return &Error{Kind: KindValidation, Op: op, Detail: err.Error(), Err: err}
}

// KindOf reports the kind of a coded error, or "" for anything else.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// DetailOf returns the user-facing detail carried by err.
func DetailOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Detail != "" {
		return e.Detail
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// StatusOf returns the backend status carried by err, 0 if none.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

// Error taxonomy. Compare with errors.Is.
var (
	ErrAuth              = &Error{Kind: KindAuth, Detail: "authentication failed"}                  // 401
	ErrFetch             = &Error{Kind: KindFetch, Detail: "request failed"}                        // 502
	ErrUnreachable       = &Error{Kind: KindUnreachable, Detail: "backend unreachable"}             // 503
	ErrValidation        = &Error{Kind: KindValidation, Detail: "validation failed"}                // 400
	ErrResolution        = &Error{Kind: KindResolution, Detail: "could not resolve admin profile"} // 401
	ErrLocalConstraint   = &Error{Kind: KindLocalConstraint, Detail: "local constraint violated"}  // 409
	ErrMalformedResponse = &Error{Kind: KindMalformedResponse, Detail: "malformed response"}       // 502
)

// Session errors
var (
	ErrSessionUnresolved  = errors.New("session not resolved yet")            // 503
	ErrNotAuthenticated   = errors.New("not authenticated")                   // 401
	ErrNotSuperAdmin      = errors.New("super admin privileges required")     // 403
	ErrOfflineUnavailable = errors.New("offline login is not configured")     // 400
	ErrTokenMismatch      = errors.New("stored profile does not match token") // silent, restore only
)

// Validation errors (client input)
var (
	ErrIdentifierRequired = errors.New("username or email is required") // 400
	ErrSecretRequired     = errors.New("password is required")          // 400
	ErrTitleRequired      = errors.New("title is required")             // 400
	ErrInvalidStatus      = errors.New("status must be draft or published")
	ErrInvalidPagination  = errors.New("skip and limit must not be negative")
	ErrInvalidAction      = errors.New("action must be create, update or delete")
	ErrInvalidDate        = errors.New("date must be formatted as YYYY-MM-DD")
	ErrIdentityTaken      = errors.New("identity already registered") // 400
)

// Lookup errors
var (
	ErrAccountNotFound = errors.New("admin not found") // 404
	ErrBlogNotFound    = errors.New("blog not found")  // 404
	ErrStorageNotFound = errors.New("storage key not found")
)

// Config errors
var (
	ErrStorageRequired    = errors.New("storage adapter is required")
	ErrBackendRequired    = errors.New("backend is required")
	ErrBaseURLRequired    = errors.New("backend base url is required")
	ErrDemoSecretTooShort = errors.New("demo secret too short")
	ErrUnknownMode        = errors.New("unknown backend mode")
	ErrUnknownStorage     = errors.New("unknown storage driver")
)
