package publish

import (
	"errors"
	"fmt"
)

// ErrSessionClosed is wrapped by the TransportError returned from a send on a
// closed session.
var ErrSessionClosed = errors.New("publish: session closed")

// InitError means a publisher could not be set up. No reading is taken when
// the primary session fails to initialise.
type InitError struct {
	Sink string
	Err  error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("%s publisher init failed: %v", e.Sink, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// TransportError is a failed publish attempt. Message is the client library's
// description and StatusCode is set when the peer answered with a non-2xx.
type TransportError struct {
	Sink       string
	URL        string
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s publish to %s failed: %s", e.Sink, RedactURL(e.URL), e.Message)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
