package agent

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xcelerator/logharvest/internal/transport"
)

// Server serves a machine's log root over the agent protocol. One stream per
// request; streams on a connection are handled concurrently.
type Server struct {
	root   string
	logger *slog.Logger
}

// NewServer creates a server that serves files under root.
func NewServer(root string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{root: root, logger: logger}
}

// Serve accepts streams on conn until the context ends or the connection
// closes. Per-request failures are answered on the stream and logged, never
// fatal to the connection.
func (s *Server) Serve(ctx context.Context, conn transport.Conn) error {
	for {
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("failed to accept stream: %w", err)
		}
		go func() {
			defer stream.Close()
			if err := s.handleStream(ctx, stream); err != nil {
				s.logger.Warn("request failed", "error", err)
			}
		}()
	}
}

func (s *Server) handleStream(ctx context.Context, stream transport.Stream) error {
	reqType, err := readMagic(stream)
	if err != nil {
		return err
	}

	switch reqType {
	case reqList:
		return s.handleList(ctx, stream)
	case reqFetch:
		return s.handleFetch(ctx, stream)
	default:
		writeErrorResponse(stream, statusBadRequest, fmt.Sprintf("unknown request type 0x%02x", reqType))
		return fmt.Errorf("unknown request type 0x%02x", reqType)
	}
}

// localPath maps a validated request path onto the served root.
func (s *Server) localPath(rel string) (string, error) {
	if err := validatePath(rel); err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(rel)), nil
}

func (s *Server) handleList(ctx context.Context, stream transport.Stream) error {
	rel, err := readString(stream)
	if err != nil {
		return err
	}

	dir, err := s.localPath(rel)
	if err != nil {
		return writeErrorResponse(stream, statusBadRequest, err.Error())
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return writeErrorResponse(stream, statusNotAccessible, err.Error())
	}
	if len(entries) > maxEntryCount {
		entries = entries[:maxEntryCount]
	}

	if _, err := stream.Write([]byte{statusOK}); err != nil {
		return fmt.Errorf("failed to write status: %w", err)
	}

	// Count files first; directories are not part of the listing.
	files := entries[:0]
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, e)
		}
	}

	if err := binary.Write(stream, binary.BigEndian, uint32(len(files))); err != nil {
		return fmt.Errorf("failed to write entry count: %w", err)
	}
	for _, e := range files {
		info, err := e.Info()
		if err != nil {
			// Entry vanished mid-listing; report it with zero metadata
			// rather than breaking the framing.
			info = nil
		}
		if err := writeString(stream, e.Name()); err != nil {
			return err
		}
		var size int64
		var mod int64
		if info != nil {
			size = info.Size()
			mod = info.ModTime().UnixNano()
		}
		if err := binary.Write(stream, binary.BigEndian, uint64(size)); err != nil {
			return fmt.Errorf("failed to write size: %w", err)
		}
		if err := binary.Write(stream, binary.BigEndian, uint64(mod)); err != nil {
			return fmt.Errorf("failed to write mod time: %w", err)
		}
	}
	return nil
}

func (s *Server) handleFetch(ctx context.Context, stream transport.Stream) error {
	rel, err := readString(stream)
	if err != nil {
		return err
	}
	var offset, length uint64
	if err := binary.Read(stream, binary.BigEndian, &offset); err != nil {
		return fmt.Errorf("failed to read offset: %w", err)
	}
	if err := binary.Read(stream, binary.BigEndian, &length); err != nil {
		return fmt.Errorf("failed to read length: %w", err)
	}

	path, err := s.localPath(rel)
	if err != nil {
		return writeErrorResponse(stream, statusBadRequest, err.Error())
	}

	f, err := os.Open(path)
	if err != nil {
		return writeErrorResponse(stream, statusNotAccessible, err.Error())
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return writeErrorResponse(stream, statusNotAccessible, err.Error())
	}
	size := info.Size()
	if int64(offset) > size {
		return writeErrorResponse(stream, statusBadRequest, "offset beyond end of file")
	}

	avail := uint64(size) - offset
	n := length
	if n == lengthToEnd || n > avail {
		n = avail
	}

	if offset > 0 {
		if _, err := f.Seek(int64(offset), io.SeekStart); err != nil {
			return writeErrorResponse(stream, statusNotAccessible, err.Error())
		}
	}

	if _, err := stream.Write([]byte{statusOK}); err != nil {
		return fmt.Errorf("failed to write status: %w", err)
	}
	if err := binary.Write(stream, binary.BigEndian, n); err != nil {
		return fmt.Errorf("failed to write length: %w", err)
	}
	if _, err := io.CopyN(stream, f, int64(n)); err != nil {
		return fmt.Errorf("failed to stream file: %w", err)
	}
	return nil
}
