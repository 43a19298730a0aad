package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNetworkUnavailable is returned when the network is unreachable and no
	// fresh cache entry can serve a read, or when a write is attempted offline.
	ErrNetworkUnavailable = errors.New("no connection and no valid cache available")
	// ErrRemoteOperationFailed marks failures of the remote record store.
	ErrRemoteOperationFailed = errors.New("remote operation failed")
	// ErrDocumentNotFound is returned by record stores for unknown ids.
	ErrDocumentNotFound = errors.New("document not found")
)

// RemoteError carries the message of a failed remote call unchanged.
type RemoteError struct {
	Op         string
	Collection Collection
	Message    string
	Err        error
}

func (e *RemoteError) Error() string {
	if e.Collection == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.Collection, e.Message)
}

// Unwrap exposes the underlying cause.
func (e *RemoteError) Unwrap() error { return e.Err }

// Is matches ErrRemoteOperationFailed.
func (e *RemoteError) Is(target error) bool {
	return target == ErrRemoteOperationFailed
}
