// Package broker contracts how a Node talks to the underlying pub/sub
// transport, and provides a Redis-backed reference implementation.
package broker

import (
	"context"
	"time"
)

// Adapter is the transport a Node runs commands over. Implementations own a
// single logical connection: claiming an identity, joining/leaving named
// channels, and publishing/receiving raw bytes.
type Adapter interface {
	// Connect claims a node identity and returns it. Calling Connect while
	// already connected is a no-op that returns the existing identity.
	Connect(ctx context.Context) (nid string, err error)
	// Reconnect tears down and re-establishes the connection, reusing the
	// same identity where the transport allows it.
	Reconnect(ctx context.Context) error
	// Close releases the connection. Calling Close while not connected is a
	// no-op.
	Close(ctx context.Context) error
	// Join subscribes the adapter to a named channel.
	Join(ctx context.Context, name string) error
	// Leave unsubscribes the adapter from a named channel.
	Leave(ctx context.Context, name string) error
	// Send publishes data to the given destination names, returning the
	// number of nodes that received it, or -1 if the transport cannot report
	// a count.
	Send(ctx context.Context, data []byte, destinations []string) (int, error)
	// Recv waits for the next message addressed to a joined channel. If
	// block is false, timeout is ignored and Recv returns immediately
	// whether or not a message is available. A zero timeout with block true
	// waits forever. Recv returns (nil, nil) when nothing arrived within the
	// deadline.
	Recv(ctx context.Context, block bool, timeout time.Duration) ([]byte, error)
}
