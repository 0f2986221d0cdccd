package quictransport

import (
	"context"

	"github.com/quic-go/quic-go"

	"github.com/xcelerator/logharvest/internal/transport"
)

var (
	_ transport.Conn   = (*Conn)(nil)
	_ transport.Stream = (*Stream)(nil)
)

// Conn adapts a QUIC connection to the transport abstraction.
type Conn struct {
	conn quic.Connection
}

// WrapConn wraps an established QUIC connection.
func WrapConn(conn quic.Connection) *Conn {
	return &Conn{conn: conn}
}

// OpenStream opens a bidirectional QUIC stream.
func (c *Conn) OpenStream(ctx context.Context) (transport.Stream, error) {
	s, err := c.conn.OpenStreamSync(ctx)
	if err != nil {
		return nil, err
	}
	return &Stream{stream: s}, nil
}

// AcceptStream accepts an incoming bidirectional QUIC stream.
func (c *Conn) AcceptStream(ctx context.Context) (transport.Stream, error) {
	s, err := c.conn.AcceptStream(ctx)
	if err != nil {
		return nil, err
	}
	return &Stream{stream: s}, nil
}

// Close closes the connection with a normal-shutdown error code.
func (c *Conn) Close() error {
	return c.conn.CloseWithError(0, "done")
}

// Stream adapts a QUIC stream. Close shuts down the write direction; reads
// drain whatever the peer already sent, which is what one-shot
// request/response streams need.
type Stream struct {
	stream quic.Stream
}

func (s *Stream) Read(p []byte) (int, error)  { return s.stream.Read(p) }
func (s *Stream) Write(p []byte) (int, error) { return s.stream.Write(p) }
func (s *Stream) Close() error                { return s.stream.Close() }
