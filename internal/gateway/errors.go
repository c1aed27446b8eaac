package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrAdapterDown is returned by Adapter.Publish while the subscription is lost.
	ErrAdapterDown = errors.New("pub/sub adapter disconnected")
	// ErrNotStarted is returned by operations that need Start first.
	ErrNotStarted = errors.New("gateway not started")
)

// BroadcastError reports a broadcast that reached local clients but could not
// be replicated to peer processes.
type BroadcastError struct {
	Event string
	Scope string
	Err   error
}

func (e *BroadcastError) Error() string {
	return fmt.Sprintf("broadcast %q to %s not replicated: %v", e.Event, e.Scope, e.Err)
}

func (e *BroadcastError) Unwrap() error {
	return e.Err
}
