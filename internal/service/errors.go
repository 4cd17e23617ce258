package service

import "errors"

// Code classifies an operation failure for transport mapping. Anything
// that is not one of the typed codes is INTERNAL and its details stay in
// the logs, never in a response body.
type Code string

const (
	CodeNotFound   Code = "NOT_FOUND"
	CodeForbidden  Code = "FORBIDDEN"
	CodeBadRequest Code = "BAD_REQUEST"
	CodeInternal   Code = "INTERNAL"
)

// Error is the failure type every core operation returns for expected
// conditions. Reason strings are part of the client contract and
// surface verbatim; clients branch on them.
type Error struct {
	Code   Code
	Reason string
}

func (e *Error) Error() string {
	return e.Reason
}

func NotFound(reason string) error {
	return &Error{Code: CodeNotFound, Reason: reason}
}

func Forbidden(reason string) error {
	return &Error{Code: CodeForbidden, Reason: reason}
}

func BadRequest(reason string) error {
	return &Error{Code: CodeBadRequest, Reason: reason}
}

// CodeOf extracts the classification from any error returned by the
// core; untyped errors are storage or infrastructure failures.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
