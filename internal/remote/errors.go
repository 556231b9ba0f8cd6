package remote

import (
	"errors"
	"fmt"
	"strings"
)

// AuthError reports that the remote service rejected the credential.
type AuthError struct {
	Path   string
	Status int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("remote: credential rejected via %s (status %d)", e.Path, e.Status)
}

// TransportError reports that a path could not deliver the call: the request
// failed in flight or the service answered with an availability status.
type TransportError struct {
	Path   string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("remote: transport via %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("remote: transport via %s: status %d", e.Path, e.Status)
}

func (e *TransportError) Unwrap() error { return e.Err }

// MalformedResponseError reports a success status with an unparseable body.
type MalformedResponseError struct {
	Path string
	Err  error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("remote: malformed response via %s: %v", e.Path, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// RemoteValidationError reports that the service accepted the transport but
// rejected the semantics of the call.
type RemoteValidationError struct {
	Path    string
	Status  int
	Message string
}

func (e *RemoteValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("remote: rejected: %s", e.Message)
	}
	return fmt.Sprintf("remote: rejected via %s (status %d): %s", e.Path, e.Status, e.Message)
}

// ValidationError reports a payload that failed local validation and was never sent.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("remote: invalid payload: %v", e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Attempt records one path evaluation within a logical call.
type Attempt struct {
	Path string
	Err  error
}

// GatewayError aggregates a failed logical call. It unwraps to the failure of
// the last path tried.
type GatewayError struct {
	Method   string
	Endpoint string
	Attempts []Attempt
	Tries    int
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("remote: %s %s failed after %d attempt(s): %s", e.Method, e.Endpoint, max(e.Tries, 1), e.Summary())
}

// Summary lists the paths tried and why each failed.
func (e *GatewayError) Summary() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Path, a.Err))
	}
	return strings.Join(parts, "; ")
}

// Unwrap returns the terminal cause.
func (e *GatewayError) Unwrap() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}

// ErrNoPaths is returned by New when no transport path is configured.
var ErrNoPaths = errors.New("remote: at least one transport path required")

// Retryable reports whether err is an availability failure worth retrying.
// A gateway failure in which any path reported a rejected credential or a
// rejected call is final, whatever the last path said.
func Retryable(err error) bool {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		for _, a := range gwErr.Attempts {
			if final(a.Err) {
				return false
			}
		}
	}
	var transport *TransportError
	var malformed *MalformedResponseError
	return errors.As(err, &transport) || errors.As(err, &malformed)
}

func final(err error) bool {
	var auth *AuthError
	var rejected *RemoteValidationError
	return errors.As(err, &auth) || errors.As(err, &rejected)
}
