package agent

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/xcelerator/logharvest/internal/harvest"
	"github.com/xcelerator/logharvest/internal/transport"
)

// Client is a harvest.Source backed by one agent connection. The connection
// is already bound to a machine, so Resolve only maps the item onto the
// agent's served root.
type Client struct {
	conn transport.Conn
}

var _ harvest.Source = (*Client)(nil)

// NewClient wraps an established agent connection.
func NewClient(conn transport.Conn) *Client {
	return &Client{conn: conn}
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Resolve returns the item's directory relative to the agent's log root.
// The machine name is carried by the connection, not the path.
func (c *Client) Resolve(machine, item string) string {
	return path.Clean(item)
}

// List requests the file listing for dir.
func (c *Client) List(ctx context.Context, dir string) ([]harvest.FileRef, error) {
	stream, err := c.conn.OpenStream(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open stream: %w", err)
	}
	defer stream.Close()

	if err := writeMagic(stream, reqList); err != nil {
		return nil, err
	}
	if err := writeString(stream, dir); err != nil {
		return nil, err
	}

	if err := readStatus(stream); err != nil {
		return nil, err
	}

	var count uint32
	if err := binary.Read(stream, binary.BigEndian, &count); err != nil {
		return nil, fmt.Errorf("failed to read entry count: %w", err)
	}
	if count > maxEntryCount {
		return nil, fmt.Errorf("entry count %d exceeds limit", count)
	}

	refs := make([]harvest.FileRef, 0, count)
	for i := uint32(0); i < count; i++ {
		name, err := readString(stream)
		if err != nil {
			return nil, err
		}
		var size, mod uint64
		if err := binary.Read(stream, binary.BigEndian, &size); err != nil {
			return nil, fmt.Errorf("failed to read size: %w", err)
		}
		if err := binary.Read(stream, binary.BigEndian, &mod); err != nil {
			return nil, fmt.Errorf("failed to read mod time: %w", err)
		}
		refs = append(refs, harvest.FileRef{
			Path:    path.Join(dir, name),
			Name:    name,
			Size:    int64(size),
			ModTime: time.Unix(0, int64(mod)),
		})
	}
	return refs, nil
}

// OpenRange requests length bytes of p starting at offset. The returned
// reader delivers exactly the byte count the agent granted; closing it closes
// the underlying stream.
func (c *Client) OpenRange(ctx context.Context, p string, offset, length int64) (io.ReadCloser, error) {
	stream, err := c.conn.OpenStream(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open stream: %w", err)
	}

	wantLen := lengthToEnd
	if length >= 0 {
		wantLen = uint64(length)
	}

	if err := writeMagic(stream, reqFetch); err != nil {
		stream.Close()
		return nil, err
	}
	if err := writeString(stream, p); err != nil {
		stream.Close()
		return nil, err
	}
	if err := binary.Write(stream, binary.BigEndian, uint64(offset)); err != nil {
		stream.Close()
		return nil, fmt.Errorf("failed to write offset: %w", err)
	}
	if err := binary.Write(stream, binary.BigEndian, wantLen); err != nil {
		stream.Close()
		return nil, fmt.Errorf("failed to write length: %w", err)
	}

	if err := readStatus(stream); err != nil {
		stream.Close()
		return nil, err
	}
	var granted uint64
	if err := binary.Read(stream, binary.BigEndian, &granted); err != nil {
		stream.Close()
		return nil, fmt.Errorf("failed to read length: %w", err)
	}

	return &rangeReader{r: io.LimitReader(stream, int64(granted)), stream: stream}, nil
}

type rangeReader struct {
	r      io.Reader
	stream transport.Stream
}

func (r *rangeReader) Read(p []byte) (int, error) { return r.r.Read(p) }
func (r *rangeReader) Close() error               { return r.stream.Close() }
