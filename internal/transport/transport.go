// Package transport defines the connection abstraction the agent protocol
// runs over. Production uses the QUIC binding; tests use the in-memory pair.
package transport

import (
	"context"
	"io"
)

// Conn is a connection between the harvester and one agent. It can carry
// multiple concurrent streams; the agent protocol uses one stream per
// request/response exchange.
type Conn interface {
	// OpenStream opens a new bidirectional stream to the remote side.
	OpenStream(ctx context.Context) (Stream, error)

	// AcceptStream waits for and accepts an incoming stream.
	AcceptStream(ctx context.Context) (Stream, error)

	// Close closes the connection and all associated streams.
	Close() error
}

// Stream is a bidirectional byte stream. Streams are independent and can be
// used concurrently.
type Stream interface {
	io.Reader
	io.Writer
	// Close closes the stream. Subsequent reads and writes fail.
	Close() error
}
