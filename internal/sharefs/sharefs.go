// Package sharefs reads fleet log directories through the administrative
// share convention: \\<machine>\D$\Proj\LogFiles\<item>. The template is a
// policy constant of the fleet, not per-call configuration.
package sharefs

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/xcelerator/logharvest/internal/harvest"
)

const (
	sharePrefix = `\D$\Proj\LogFiles`
)

// Source implements harvest.Source over the machine's administrative share.
// Paths resolve to UNC; enumeration and reads go through the OS, so the
// process's ambient credentials apply.
type Source struct{}

var _ harvest.Source = (*Source)(nil)

// New returns a share-backed source.
func New() *Source {
	return &Source{}
}

// Resolve builds the UNC log directory path for a machine/item pair.
func (s *Source) Resolve(machine, item string) string {
	return `\\` + machine + sharePrefix + `\` + item
}

// List enumerates the files directly inside dir. Metadata only; file contents
// are never opened, which keeps scans cheap on slow shares with many
// historical files. Subdirectories are skipped; entries that vanish between
// enumeration and stat are skipped too.
func (s *Source) List(ctx context.Context, dir string) ([]harvest.FileRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	refs := make([]harvest.FileRef, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		refs = append(refs, harvest.FileRef{
			Path:    filepath.Join(dir, entry.Name()),
			Name:    entry.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return refs, nil
}

// OpenRange opens path for reading length bytes starting at offset. The open
// tolerates a remote process still appending to the file; what comes back is
// a best-effort snapshot of the bytes flushed at the moment of each read.
func (s *Source) OpenRange(ctx context.Context, path string, offset, length int64) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			f.Close()
			return nil, err
		}
	}
	if length < 0 {
		return f, nil
	}
	return &sectionReader{r: io.LimitReader(f, length), f: f}, nil
}

type sectionReader struct {
	r io.Reader
	f *os.File
}

func (s *sectionReader) Read(p []byte) (int, error) { return s.r.Read(p) }
func (s *sectionReader) Close() error               { return s.f.Close() }
