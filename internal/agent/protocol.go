// Package agent implements the harvest agent protocol: a binary-framed
// list / fetch-range exchange carried over one transport stream per request.
// It is the fallback source for machines whose administrative share is
// blocked; a harvestagent daemon on the machine serves its log root instead.
package agent

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
)

const (
	magicBytes = "XLH1"

	reqList  = byte(0x01)
	reqFetch = byte(0x02)

	statusOK            = byte(0x00)
	statusNotAccessible = byte(0x01)
	statusBadRequest    = byte(0x02)

	// lengthToEnd in a fetch request asks for everything from offset to EOF.
	lengthToEnd = uint64(math.MaxUint64)

	maxPathLength = 4096
	maxEntryCount = 65536
)

var (
	// ErrInvalidMagic indicates the magic bytes don't match.
	ErrInvalidMagic = errors.New("invalid magic bytes")
	// ErrPathTooLong indicates a request path exceeds the maximum length.
	ErrPathTooLong = errors.New("path too long")
	// ErrInvalidPath indicates a path that is empty, absolute, or escapes the
	// served root.
	ErrInvalidPath = errors.New("invalid path")
)

// validatePath ensures a request path stays inside the served root: relative,
// forward slashes only, no parent references.
func validatePath(p string) error {
	if p == "" {
		return ErrInvalidPath
	}
	if len(p) > maxPathLength {
		return ErrPathTooLong
	}
	if strings.Contains(p, "\\") || strings.HasPrefix(p, "/") {
		return ErrInvalidPath
	}
	for _, part := range strings.Split(p, "/") {
		if part == "" || part == "." || part == ".." {
			return ErrInvalidPath
		}
	}
	return nil
}

func writeMagic(w io.Writer, reqType byte) error {
	if _, err := w.Write([]byte(magicBytes)); err != nil {
		return fmt.Errorf("failed to write magic: %w", err)
	}
	if _, err := w.Write([]byte{reqType}); err != nil {
		return fmt.Errorf("failed to write request type: %w", err)
	}
	return nil
}

func readMagic(r io.Reader) (byte, error) {
	buf := make([]byte, len(magicBytes)+1)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, fmt.Errorf("failed to read magic: %w", err)
	}
	if string(buf[:len(magicBytes)]) != magicBytes {
		return 0, ErrInvalidMagic
	}
	return buf[len(magicBytes)], nil
}

func writeString(w io.Writer, s string) error {
	b := []byte(s)
	if len(b) > maxPathLength {
		return ErrPathTooLong
	}
	if err := binary.Write(w, binary.BigEndian, uint16(len(b))); err != nil {
		return fmt.Errorf("failed to write string length: %w", err)
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("failed to write string: %w", err)
	}
	return nil
}

func readString(r io.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", fmt.Errorf("failed to read string length: %w", err)
	}
	if int(n) > maxPathLength {
		return "", ErrPathTooLong
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("failed to read string: %w", err)
	}
	return string(buf), nil
}

// writeErrorResponse writes a non-OK status followed by a message.
func writeErrorResponse(w io.Writer, status byte, msg string) error {
	if _, err := w.Write([]byte{status}); err != nil {
		return fmt.Errorf("failed to write status: %w", err)
	}
	return writeString(w, msg)
}

// readStatus consumes the status byte and, for non-OK statuses, the
// accompanying message, returned as an error.
func readStatus(r io.Reader) error {
	buf := make([]byte, 1)
	if _, err := io.ReadFull(r, buf); err != nil {
		return fmt.Errorf("failed to read status: %w", err)
	}
	if buf[0] == statusOK {
		return nil
	}
	msg, err := readString(r)
	if err != nil {
		return fmt.Errorf("failed to read error message: %w", err)
	}
	if buf[0] == statusNotAccessible {
		return fmt.Errorf("agent: %s", msg)
	}
	return fmt.Errorf("agent rejected request: %s", msg)
}
