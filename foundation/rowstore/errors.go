package rowstore

import (
	"errors"
	"fmt"
)

// ConnectionError is returned when a session could not be established.
// The client is left disconnected and the caller must connect again.
type ConnectionError struct {
	Endpoint string
	Err      error
}

// Error implements the error interface.
func (ce *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s: %s", ce.Endpoint, ce.Err)
}

// Unwrap returns the underlying failure.
func (ce *ConnectionError) Unwrap() error {
	return ce.Err
}

// RemoteReadError is returned when listing or reading from the remote store
// failed. The mirror is left unchanged.
type RemoteReadError struct {
	Op    string
	Table string
	Err   error
}

// Error implements the error interface.
func (re *RemoteReadError) Error() string {
	if re.Table == "" {
		return fmt.Sprintf("%s: %s", re.Op, re.Err)
	}
	return fmt.Sprintf("%s %s: %s", re.Op, re.Table, re.Err)
}

// Unwrap returns the underlying failure.
func (re *RemoteReadError) Unwrap() error {
	return re.Err
}

// RemoteWriteError is returned when an insert or delete failed. No change
// was applied to the mirror, any optimistic entry has been removed.
type RemoteWriteError struct {
	Op    string
	Table string
	ID    string
	Err   error
}

// Error implements the error interface.
func (we *RemoteWriteError) Error() string {
	if we.ID == "" {
		return fmt.Sprintf("%s %s: %s", we.Op, we.Table, we.Err)
	}
	return fmt.Sprintf("%s %s[%s]: %s", we.Op, we.Table, we.ID, we.Err)
}

// Unwrap returns the underlying failure.
func (we *RemoteWriteError) Unwrap() error {
	return we.Err
}

// NotReadyError is returned when an operation is attempted while the client
// has no usable session.
type NotReadyError struct {
	Op    string
	State State
}

// Error implements the error interface.
func (ne *NotReadyError) Error() string {
	return fmt.Sprintf("%s: client not ready, state %s", ne.Op, ne.State)
}

// =============================================================================

// IsConnectionError checks if an error of type ConnectionError exists.
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// IsRemoteReadError checks if an error of type RemoteReadError exists.
func IsRemoteReadError(err error) bool {
	var re *RemoteReadError
	return errors.As(err, &re)
}

// IsRemoteWriteError checks if an error of type RemoteWriteError exists.
func IsRemoteWriteError(err error) bool {
	var we *RemoteWriteError
	return errors.As(err, &we)
}

// IsNotReady checks if an error of type NotReadyError exists.
func IsNotReady(err error) bool {
	var ne *NotReadyError
	return errors.As(err, &ne)
}
