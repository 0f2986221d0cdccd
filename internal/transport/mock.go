package transport

import (
	"context"
	"io"
	"sync"
)

// NewMockPair creates two linked in-memory connections. Streams opened on one
// side pop out of AcceptStream on the other, backed by io.Pipe.
func NewMockPair() (Conn, Conn) {
	a := &mockConn{streamChan: make(chan *mockStream, 16)}
	b := &mockConn{streamChan: make(chan *mockStream, 16)}
	a.other = b
	b.other = a
	return a, b
}

type mockConn struct {
	mu         sync.Mutex
	other      *mockConn
	streamChan chan *mockStream
	closed     bool
}

type mockStream struct {
	mu     sync.Mutex
	reader *io.PipeReader
	writer *io.PipeWriter
	closed bool
}

var (
	_ Conn   = (*mockConn)(nil)
	_ Stream = (*mockStream)(nil)
)

// OpenStream opens a new bidirectional stream and hands the remote end to the
// peer's AcceptStream.
func (c *mockConn) OpenStream(ctx context.Context) (Stream, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, io.ErrClosedPipe
	}
	c.mu.Unlock()

	localToRemoteReader, localToRemoteWriter := io.Pipe()
	remoteToLocalReader, remoteToLocalWriter := io.Pipe()

	local := &mockStream{reader: remoteToLocalReader, writer: localToRemoteWriter}
	remote := &mockStream{reader: localToRemoteReader, writer: remoteToLocalWriter}

	select {
	case c.other.streamChan <- remote:
	case <-ctx.Done():
		local.Close()
		remote.Close()
		return nil, ctx.Err()
	}

	return local, nil
}

// AcceptStream waits for an incoming stream from the peer.
func (c *mockConn) AcceptStream(ctx context.Context) (Stream, error) {
	select {
	case s := <-c.streamChan:
		if s == nil {
			return nil, io.ErrClosedPipe
		}
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close closes the connection. Streams already handed out keep working until
// closed individually, matching how QUIC streams outlive graceful close.
func (c *mockConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return nil
}

func (s *mockStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, io.ErrClosedPipe
	}
	reader := s.reader
	s.mu.Unlock()
	return reader.Read(p)
}

func (s *mockStream) Write(p []byte) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, io.ErrClosedPipe
	}
	writer := s.writer
	s.mu.Unlock()
	return writer.Write(p)
}

func (s *mockStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.writer != nil {
		s.writer.Close()
	}
	if s.reader != nil {
		s.reader.Close()
	}
	return nil
}
