package harvest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xcelerator/logharvest/internal/bufpool"
)

// Request identifies one harvest: which machine and which logical log item.
type Request struct {
	Machine string
	Item    string
}

// Result is the outcome of one harvest call. Exactly one of LocalPath (on
// success) or ErrorMessage (on failure) is populated. On success the caller
// owns the file at LocalPath and its enclosing workspace directory; the
// harvester never deletes a file it successfully produced.
type Result struct {
	Machine      string
	Success      bool
	LocalPath    string
	ErrorMessage string
}

// Harvester locates and copies the newest remote log file for a machine/item
// pair into a fresh local workspace. It is stateless across calls and safe
// for concurrent use; fanning out over a fleet is the caller's job.
type Harvester struct {
	src       Source
	params    Params
	logger    *slog.Logger
	seqPool   *bufpool.Pool
	chunkPool *bufpool.Pool
}

// New creates a Harvester over src. Params are normalized; a nil logger
// falls back to slog.Default.
func New(src Source, params Params, logger *slog.Logger) *Harvester {
	p := NormalizeParams(params)
	if logger == nil {
		logger = slog.Default()
	}
	return &Harvester{
		src:       src,
		params:    p,
		logger:    logger,
		seqPool:   bufpool.New(p.SequentialBufSize),
		chunkPool: bufpool.New(p.ChunkBufSize),
	}
}

// Harvest runs one harvest call. It never returns an error; every failure is
// captured in the Result. Failures after workspace creation remove the
// workspace best-effort before returning.
func (h *Harvester) Harvest(ctx context.Context, req Request) Result {
	machine := strings.TrimSpace(req.Machine)
	item := strings.TrimSpace(req.Item)
	if machine == "" {
		return failure(req.Machine, "machine must not be blank")
	}
	if item == "" {
		return failure(machine, "item must not be blank")
	}

	if h.params.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.params.Timeout)
		defer cancel()
	}

	workspace, err := newWorkspace(h.params.WorkspaceRoot)
	if err != nil {
		return failure(machine, err.Error())
	}

	dir := h.src.Resolve(machine, item)
	ref, err := LocateNewest(ctx, h.src, dir)
	if err != nil {
		h.removeWorkspace(workspace)
		return failure(machine, err.Error())
	}

	destPath := filepath.Join(workspace, ref.Name)

	h.logger.Debug("harvesting",
		"machine", machine, "item", item,
		"file", ref.Name, "size", ref.Size,
		"chunked", ref.Size >= h.params.LargeFileThreshold)

	if ref.Size >= h.params.LargeFileThreshold {
		err = h.copyChunked(ctx, ref, destPath)
	} else {
		err = h.copySequential(ctx, ref, destPath)
	}
	if err != nil {
		h.removeWorkspace(workspace)
		return failure(machine, fmt.Sprintf("transfer failed: %v", err))
	}

	return Result{Machine: machine, Success: true, LocalPath: destPath}
}

func failure(machine, msg string) Result {
	return Result{Machine: machine, ErrorMessage: msg}
}

// removeWorkspace is the best-effort failure cleanup. Errors are logged and
// swallowed so cleanup can never mask the primary failure.
func (h *Harvester) removeWorkspace(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		h.logger.Warn("workspace cleanup failed", "dir", dir, "error", err)
	}
}
