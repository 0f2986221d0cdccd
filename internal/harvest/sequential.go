package harvest

import (
	"context"
	"fmt"
	"io"
	"os"
)

// copySequential streams the whole file forward-only through a single large
// buffer. It is the default strategy and the fallback whenever the chunked
// fan-out is not applicable. The source may still be appended to by the
// remote writer; the copy is a best-effort snapshot of whatever bytes each
// read observes.
func (h *Harvester) copySequential(ctx context.Context, ref FileRef, destPath string) error {
	src, err := h.src.OpenRange(ctx, ref.Path, 0, -1)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer src.Close()

	dest, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}
	defer dest.Close()

	buf := h.seqPool.Get()
	defer h.seqPool.Put(buf)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dest.Write(buf[:n]); werr != nil {
				return fmt.Errorf("failed to write destination: %w", werr)
			}
			if h.params.ProgressFn != nil {
				h.params.ProgressFn(n)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return fmt.Errorf("failed to read source: %w", rerr)
		}
	}

	if err := dest.Close(); err != nil {
		return fmt.Errorf("failed to close destination: %w", err)
	}
	return nil
}
