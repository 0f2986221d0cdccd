package harvest

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
)

// chunkRange is one contiguous byte range of the source file.
type chunkRange struct {
	offset int64
	length int64
}

// splitRanges partitions [0, size) into n contiguous, non-overlapping ranges.
// The last range absorbs the remainder of the integer division so every byte
// is covered exactly once.
func splitRanges(size int64, n int) []chunkRange {
	if n < 1 {
		n = 1
	}
	ranges := make([]chunkRange, n)
	base := size / int64(n)
	for i := range ranges {
		ranges[i].offset = int64(i) * base
		ranges[i].length = base
	}
	ranges[n-1].length = size - ranges[n-1].offset
	return ranges
}

// copyChunked copies a large file as ChunkCount independently-read byte
// ranges, one goroutine per range, each with its own source handle. The
// destination is pre-sized to the known source size so concurrent WriteAt
// calls never extend the file or race on its length. Correctness depends only
// on the ranges being disjoint, not on completion order.
func (h *Harvester) copyChunked(ctx context.Context, ref FileRef, destPath string) error {
	dest, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}
	defer dest.Close()

	if err := dest.Truncate(ref.Size); err != nil {
		return fmt.Errorf("failed to presize destination: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ranges := splitRanges(ref.Size, h.params.ChunkCount)
	errCh := make(chan error, len(ranges))
	var wg sync.WaitGroup

	for i, rng := range ranges {
		wg.Add(1)
		go func(idx int, rng chunkRange) {
			defer wg.Done()
			if err := h.copyChunk(ctx, ref.Path, dest, rng); err != nil {
				errCh <- fmt.Errorf("chunk %d [%d,%d): %w", idx, rng.offset, rng.offset+rng.length, err)
				cancel()
			}
		}(i, rng)
	}

	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			return err
		}
	}

	if err := dest.Close(); err != nil {
		return fmt.Errorf("failed to close destination: %w", err)
	}
	return nil
}

// copyChunk copies one range into dest at the same offset it occupies in the
// source. A short read that leaves part of the range unconsumed is a hard
// failure, never a quiet truncation.
func (h *Harvester) copyChunk(ctx context.Context, srcPath string, dest *os.File, rng chunkRange) error {
	if rng.length == 0 {
		return nil
	}

	src, err := h.src.OpenRange(ctx, srcPath, rng.offset, rng.length)
	if err != nil {
		return fmt.Errorf("failed to open source range: %w", err)
	}
	defer src.Close()

	buf := h.chunkPool.Get()
	defer h.chunkPool.Put(buf)

	offset := rng.offset
	remaining := rng.length
	for remaining > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		want := len(buf)
		if int64(want) > remaining {
			want = int(remaining)
		}
		n, rerr := io.ReadFull(src, buf[:want])
		if n > 0 {
			if _, werr := dest.WriteAt(buf[:n], offset); werr != nil {
				return fmt.Errorf("failed to write destination: %w", werr)
			}
			offset += int64(n)
			remaining -= int64(n)
			if h.params.ProgressFn != nil {
				h.params.ProgressFn(n)
			}
		}
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			if remaining > 0 {
				return fmt.Errorf("short read: %d bytes of range unconsumed", remaining)
			}
			break
		}
		if rerr != nil {
			return fmt.Errorf("failed to read source range: %w", rerr)
		}
	}
	return nil
}
