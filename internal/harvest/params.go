package harvest

import "time"

const (
	// DefaultLargeFileThreshold is the size at or above which the chunked
	// parallel strategy takes over from the sequential copy.
	DefaultLargeFileThreshold = 10 * 1024 * 1024

	// DefaultChunkCount is the fan-out for chunked copies. Static, not
	// derived from file size or link speed.
	DefaultChunkCount = 4

	// DefaultSequentialBufSize is the buffer for sequential copies. Network
	// shares do better with fewer, larger I/O operations.
	DefaultSequentialBufSize = 8 * 1024 * 1024

	// DefaultChunkBufSize is the per-chunk sub-buffer for chunked copies.
	DefaultChunkBufSize = 1024 * 1024
)

// ProgressFn receives byte-count increments as a copy advances. It may be
// called concurrently from chunk goroutines.
type ProgressFn func(n int)

// Params are the effective per-harvest transfer settings.
type Params struct {
	LargeFileThreshold int64
	ChunkCount         int
	SequentialBufSize  int
	ChunkBufSize       int
	WorkspaceRoot      string        // parent of the XceleratorLogs tree; empty means os.TempDir
	Timeout            time.Duration // zero means no per-harvest deadline
	ProgressFn         ProgressFn
}

// NormalizeParams applies defaults and clamps parameter values.
func NormalizeParams(p Params) Params {
	out := p
	if out.LargeFileThreshold <= 0 {
		out.LargeFileThreshold = DefaultLargeFileThreshold
	}
	if out.ChunkCount == 0 {
		out.ChunkCount = DefaultChunkCount
	}
	if out.ChunkCount < 1 {
		out.ChunkCount = 1
	}
	if out.ChunkCount > 16 {
		out.ChunkCount = 16
	}
	if out.SequentialBufSize <= 0 {
		out.SequentialBufSize = DefaultSequentialBufSize
	}
	if out.ChunkBufSize <= 0 {
		out.ChunkBufSize = DefaultChunkBufSize
	}
	if out.Timeout < 0 {
		out.Timeout = 0
	}
	return out
}
