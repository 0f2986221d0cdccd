package harvest

import (
	"context"
	"io"
	"time"
)

// FileRef describes one remote file discovered during enumeration.
// It carries metadata only; discovery never opens file contents.
type FileRef struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// Source provides metadata enumeration and ranged reads against a remote log
// location. The share-backed implementation reaches the machine's
// administrative share directly; the agent-backed implementation speaks to a
// harvest agent over a transport connection.
type Source interface {
	// Resolve builds the log directory path for a machine/item pair
	// following the source's fixed path convention.
	Resolve(machine, item string) string

	// List enumerates the files directly inside dir. Subdirectories are
	// skipped. Implementations must not read file contents.
	List(ctx context.Context, dir string) ([]FileRef, error)

	// OpenRange opens path for reading length bytes starting at offset.
	// A negative length means read to end of file.
	OpenRange(ctx context.Context, path string, offset, length int64) (io.ReadCloser, error)
}
