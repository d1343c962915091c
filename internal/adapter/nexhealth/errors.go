package nexhealth

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// AuthError means a bearer token could not be obtained or was rejected.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string { return e.Message }

// APIError is a non-2xx answer from the upstream, with the original status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("nexhealth api error (%d): %s", e.StatusCode, e.Message)
}

// TimeoutError means the client-side deadline elapsed before a response.
type TimeoutError struct {
	Err error
}

func (e *TimeoutError) Error() string { return fmt.Sprintf("nexhealth timeout: %v", e.Err) }
func (e *TimeoutError) Unwrap() error { return e.Err }

// NetworkError is any transport-level failure that is not a timeout.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("nexhealth network error: %v", e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// classifyTransport wraps an http.Client error as timeout or network.
func classifyTransport(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Err: err}
	}
	return &NetworkError{Err: err}
}
