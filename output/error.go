package output

import (
	"errors"
	"net/http"
)

// HTTPError is an error carrying the status code to answer with.
type HTTPError interface {
	error
	Code() int
}

type httpError struct {
	error
	code int
}

// HTTPErr wraps err with an HTTP status code.
func HTTPErr(err error, code int) HTTPError {
	return &httpError{
		error: err,
		code:  code,
	}
}

func (e httpError) Code() int {
	return e.code
}

func (e httpError) Unwrap() error {
	return e.error
}

// StatusOf returns the status code carried by err, or 500.
func StatusOf(err error) int {
	var he HTTPError
	if errors.As(err, &he) {
		return he.Code()
	}

	return http.StatusInternalServerError
}
