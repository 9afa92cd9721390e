package gateway

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a gateway failure so callers can decide between
// skip-and-continue and aborting the whole request.
type ErrorKind string

const (
	KindUnauthorized      ErrorKind = "unauthorized"
	KindRateLimited       ErrorKind = "rate_limited"
	KindTimeout           ErrorKind = "timeout"
	KindMalformedResponse ErrorKind = "malformed_response"
	KindUnavailable       ErrorKind = "unavailable"
)

// Error is the failure type shared by the LLM and web-search gateways.
type Error struct {
	Gateway string
	Kind    ErrorKind
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s gateway %s: %v", e.Gateway, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s gateway %s", e.Gateway, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err as a gateway failure of the given kind.
func NewError(gatewayName string, kind ErrorKind, err error) *Error {
	return &Error{Gateway: gatewayName, Kind: kind, Err: err}
}

// IsFatal reports whether the failure should abort the whole request rather
// than be skipped: auth failures and total outages are never worth retrying
// within a single run.
func IsFatal(err error) bool {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind == KindUnauthorized || ge.Kind == KindUnavailable
	}
	return false
}

// KindOf extracts the error kind, or "" when err is not a gateway error.
func KindOf(err error) ErrorKind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ""
}
