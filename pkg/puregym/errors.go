package puregym

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// RequestError reports a failure to reach a remote endpoint: DNS, connection,
// TLS, timeout or cancellation. It may be transient.
type RequestError struct {
	Op  string
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: request failed: %v", e.Op, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// ResponseError reports an endpoint that answered with an unexpected status or
// a body that does not match the expected schema.
type ResponseError struct {
	Op string
	// StatusCode is the HTTP status, or 0 when it is unknown.
	StatusCode int
	Err        error
}

func (e *ResponseError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: unexpected response (%d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: unexpected response: %v", e.Op, e.Err)
}

func (e *ResponseError) Unwrap() error {
	return e.Err
}

func isTransportError(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
