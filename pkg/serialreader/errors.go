package serialreader

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by Read once the reader has been closed.
var ErrClosed = errors.New("serialreader: closed")

// OpenError means the device path could not be opened (missing, busy, or
// permission denied).
type OpenError struct {
	Device string
	Err    error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("unable to open serial port %q: %v", e.Device, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

// ConfigError means the device opened but its line settings could not be applied.
type ConfigError struct {
	Device string
	Err    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("couldn't set term attributes on %q: %v", e.Device, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
