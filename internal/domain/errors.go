package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized    = errors.New("not authorized")
	ErrInvalidEndpoint = errors.New("invalid endpoint")
)

type ErrorKind int

const (
	KindOther ErrorKind = iota
	KindUnauthorized
)

func (k ErrorKind) String() string {
	if k == KindUnauthorized {
		return "unauthorized"
	}
	return "other"
}

// ResponseError is a provider response that was not a success. Body is the
// raw response payload.
type ResponseError struct {
	Kind       ErrorKind
	StatusCode int
	Endpoint   string
	Body       []byte
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Endpoint, e.StatusCode, string(e.Body))
}

func (e *ResponseError) Is(target error) bool {
	return target == ErrUnauthorized && e.Kind == KindUnauthorized
}

type EndpointError struct {
	URL string
	Err error
}

func (e *EndpointError) Error() string {
	return fmt.Sprintf("invalid endpoint %q: %v", e.URL, e.Err)
}

func (e *EndpointError) Unwrap() error {
	return e.Err
}

func (e *EndpointError) Is(target error) bool {
	return target == ErrInvalidEndpoint
}
