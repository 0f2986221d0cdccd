package harvest

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// localSource serves machine/item directories under a local root, standing in
// for the administrative share in tests. Hooks inject faults; range calls are
// recorded so tests can verify strategy routing.
type localSource struct {
	root     string
	listHook func(ctx context.Context) error
	readHook func(path string, offset, length int64, r io.ReadCloser) (io.ReadCloser, error)

	mu         sync.Mutex
	rangeCalls []rangeCall
}

type rangeCall struct {
	offset int64
	length int64
}

var _ Source = (*localSource)(nil)

func (s *localSource) Resolve(machine, item string) string {
	return filepath.Join(s.root, machine, item)
}

func (s *localSource) List(ctx context.Context, dir string) ([]FileRef, error) {
	if s.listHook != nil {
		if err := s.listHook(ctx); err != nil {
			return nil, err
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	refs := make([]FileRef, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		refs = append(refs, FileRef{
			Path:    filepath.Join(dir, entry.Name()),
			Name:    entry.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return refs, nil
}

func (s *localSource) OpenRange(ctx context.Context, path string, offset, length int64) (io.ReadCloser, error) {
	s.mu.Lock()
	s.rangeCalls = append(s.rangeCalls, rangeCall{offset: offset, length: length})
	s.mu.Unlock()

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
	var rc io.ReadCloser = f
	if length >= 0 {
		rc = struct {
			io.Reader
			io.Closer
		}{io.LimitReader(f, length), f}
	}
	if s.readHook != nil {
		return s.readHook(path, offset, length, rc)
	}
	return rc, nil
}

func (s *localSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rangeCalls)
}

func writeLogFile(t *testing.T, dir, name string, data []byte, modTime time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	if err := os.Chtimes(path, modTime, modTime); err != nil {
		t.Fatalf("failed to set times on %s: %v", path, err)
	}
	return path
}

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	data := make([]byte, n)
	if _, err := rand.Read(data); err != nil {
		t.Fatalf("failed to generate random data: %v", err)
	}
	return data
}

func testParams(wsRoot string) Params {
	return Params{
		WorkspaceRoot:      wsRoot,
		LargeFileThreshold: 4096,
		SequentialBufSize:  1024,
		ChunkBufSize:       512,
		ChunkCount:         4,
	}
}

// workspaceCount returns how many workspace directories exist under wsRoot.
func workspaceCount(t *testing.T, wsRoot string) int {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(wsRoot, workspaceRootName))
	if os.IsNotExist(err) {
		return 0
	}
	if err != nil {
		t.Fatalf("failed to read workspace root: %v", err)
	}
	return len(entries)
}

func setupMachine(t *testing.T, src *localSource, machine, item string) string {
	t.Helper()
	dir := filepath.Join(src.root, machine, item)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to create %s: %v", dir, err)
	}
	return dir
}

func TestHarvest_CopiesNewestFile(t *testing.T) {
	src := &localSource{root: t.TempDir()}
	dir := setupMachine(t, src, "app01", "WebService")

	now := time.Now()
	writeLogFile(t, dir, "service.2.log", randomBytes(t, 2048), now.Add(-2*time.Hour))
	writeLogFile(t, dir, "service.1.log", randomBytes(t, 2048), now.Add(-time.Hour))
	want := randomBytes(t, 3000)
	writeLogFile(t, dir, "service.log", want, now)

	wsRoot := t.TempDir()
	h := New(src, testParams(wsRoot), nil)

	res := h.Harvest(context.Background(), Request{Machine: "app01", Item: "WebService"})
	if !res.Success {
		t.Fatalf("expected success, got error: %s", res.ErrorMessage)
	}
	if filepath.Base(res.LocalPath) != "service.log" {
		t.Errorf("expected original filename preserved, got %s", res.LocalPath)
	}

	got, err := os.ReadFile(res.LocalPath)
	if err != nil {
		t.Fatalf("failed to read harvested file: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Error("harvested bytes differ from newest remote file")
	}
	if n := workspaceCount(t, wsRoot); n != 1 {
		t.Errorf("expected 1 retained workspace, got %d", n)
	}
}

func TestHarvest_BlankInputsFailFast(t *testing.T) {
	src := &localSource{root: t.TempDir()}
	wsRoot := t.TempDir()
	h := New(src, testParams(wsRoot), nil)

	cases := []Request{
		{Machine: "", Item: "WebService"},
		{Machine: "   ", Item: "WebService"},
		{Machine: "app01", Item: ""},
		{Machine: "app01", Item: "\t"},
	}
	for _, req := range cases {
		res := h.Harvest(context.Background(), req)
		if res.Success {
			t.Errorf("request %+v: expected failure", req)
		}
		if res.ErrorMessage == "" {
			t.Errorf("request %+v: expected error message", req)
		}
		if res.LocalPath != "" {
			t.Errorf("request %+v: expected empty LocalPath", req)
		}
	}
	if n := workspaceCount(t, wsRoot); n != 0 {
		t.Errorf("validation failures must not create workspaces, found %d", n)
	}
}

func TestHarvest_PathNotAccessible(t *testing.T) {
	src := &localSource{root: t.TempDir()}
	wsRoot := t.TempDir()
	h := New(src, testParams(wsRoot), nil)

	res := h.Harvest(context.Background(), Request{Machine: "ghost", Item: "WebService"})
	if res.Success {
		t.Fatal("expected failure for missing machine directory")
	}
	if !strings.Contains(res.ErrorMessage, "path not accessible") {
		t.Errorf("expected path-not-accessible message, got %q", res.ErrorMessage)
	}
	if n := workspaceCount(t, wsRoot); n != 0 {
		t.Errorf("expected workspace removed, found %d", n)
	}
}

func TestHarvest_NoFilesFound(t *testing.T) {
	src := &localSource{root: t.TempDir()}
	setupMachine(t, src, "app01", "WebService")
	wsRoot := t.TempDir()
	h := New(src, testParams(wsRoot), nil)

	res := h.Harvest(context.Background(), Request{Machine: "app01", Item: "WebService"})
	if res.Success {
		t.Fatal("expected failure for empty directory")
	}
	if !strings.Contains(res.ErrorMessage, "no files found") {
		t.Errorf("expected no-files-found message, got %q", res.ErrorMessage)
	}
	if n := workspaceCount(t, wsRoot); n != 0 {
		t.Errorf("expected workspace removed, found %d", n)
	}
}

// faultReader fails with a read error once limit bytes have been delivered.
type faultReader struct {
	r    io.ReadCloser
	left int64
}

func (f *faultReader) Read(p []byte) (int, error) {
	if f.left <= 0 {
		return 0, fmt.Errorf("disk full")
	}
	if int64(len(p)) > f.left {
		p = p[:f.left]
	}
	n, err := f.r.Read(p)
	f.left -= int64(n)
	return n, err
}

func (f *faultReader) Close() error { return f.r.Close() }

// truncatedReader reports a clean EOF once limit bytes have been delivered,
// as a remote share does when a file shrank between stat and read.
type truncatedReader struct {
	r    io.ReadCloser
	left int64
}

func (tr *truncatedReader) Read(p []byte) (int, error) {
	if tr.left <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > tr.left {
		p = p[:tr.left]
	}
	n, err := tr.r.Read(p)
	tr.left -= int64(n)
	return n, err
}

func (tr *truncatedReader) Close() error { return tr.r.Close() }

func TestHarvest_SequentialMidCopyFailureRemovesWorkspace(t *testing.T) {
	src := &localSource{root: t.TempDir()}
	dir := setupMachine(t, src, "app01", "WebService")
	writeLogFile(t, dir, "service.log", randomBytes(t, 3000), time.Now())

	// Fail after half the bytes have been read.
	src.readHook = func(path string, offset, length int64, r io.ReadCloser) (io.ReadCloser, error) {
		return &faultReader{r: r, left: 1500}, nil
	}

	wsRoot := t.TempDir()
	h := New(src, testParams(wsRoot), nil)

	res := h.Harvest(context.Background(), Request{Machine: "app01", Item: "WebService"})
	if res.Success {
		t.Fatal("expected mid-copy failure")
	}
	if res.ErrorMessage == "" {
		t.Error("expected non-empty error message")
	}
	if n := workspaceCount(t, wsRoot); n != 0 {
		t.Errorf("expected workspace removed after failed transfer, found %d", n)
	}
}

func TestHarvest_ChunkedShortReadIsFailure(t *testing.T) {
	src := &localSource{root: t.TempDir()}
	dir := setupMachine(t, src, "app01", "WebService")
	writeLogFile(t, dir, "big.log", randomBytes(t, 8192), time.Now())

	// Truncate the range starting at offset 4096 to half its length.
	src.readHook = func(path string, offset, length int64, r io.ReadCloser) (io.ReadCloser, error) {
		if offset == 4096 {
			return &truncatedReader{r: r, left: length / 2}, nil
		}
		return r, nil
	}

	wsRoot := t.TempDir()
	params := testParams(wsRoot)
	params.LargeFileThreshold = 1024 // force chunked
	h := New(src, params, nil)

	res := h.Harvest(context.Background(), Request{Machine: "app01", Item: "WebService"})
	if res.Success {
		t.Fatal("expected short read to fail the harvest")
	}
	if !strings.Contains(res.ErrorMessage, "short read") {
		t.Errorf("expected short-read failure message, got %q", res.ErrorMessage)
	}
	if n := workspaceCount(t, wsRoot); n != 0 {
		t.Errorf("expected workspace removed after failed chunked copy, found %d", n)
	}
}

func TestHarvest_ThresholdRouting(t *testing.T) {
	cases := []struct {
		name      string
		size      int
		wantCalls int // sequential = 1 open, chunked = ChunkCount opens
	}{
		{name: "one byte below", size: 4095, wantCalls: 1},
		{name: "exactly threshold", size: 4096, wantCalls: 4},
		{name: "one byte above", size: 4097, wantCalls: 4},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := &localSource{root: t.TempDir()}
			dir := setupMachine(t, src, "app01", "WebService")
			want := randomBytes(t, tc.size)
			writeLogFile(t, dir, "service.log", want, time.Now())

			h := New(src, testParams(t.TempDir()), nil)
			res := h.Harvest(context.Background(), Request{Machine: "app01", Item: "WebService"})
			if !res.Success {
				t.Fatalf("expected success, got: %s", res.ErrorMessage)
			}
			if got := src.callCount(); got != tc.wantCalls {
				t.Errorf("expected %d range opens, got %d", tc.wantCalls, got)
			}

			got, err := os.ReadFile(res.LocalPath)
			if err != nil {
				t.Fatalf("failed to read harvested file: %v", err)
			}
			if !bytes.Equal(got, want) {
				t.Error("harvested bytes differ from source")
			}
		})
	}
}

func TestHarvest_ChunkedMatchesSequential(t *testing.T) {
	src := &localSource{root: t.TempDir()}
	dir := setupMachine(t, src, "app01", "WebService")
	want := randomBytes(t, 64*1024)
	writeLogFile(t, dir, "service.log", want, time.Now())

	seqParams := testParams(t.TempDir())
	seqParams.LargeFileThreshold = 1 << 20 // route sequential
	seqRes := New(src, seqParams, nil).Harvest(context.Background(), Request{Machine: "app01", Item: "WebService"})
	if !seqRes.Success {
		t.Fatalf("sequential harvest failed: %s", seqRes.ErrorMessage)
	}

	chkParams := testParams(t.TempDir())
	chkParams.LargeFileThreshold = 1024 // route chunked
	chkRes := New(src, chkParams, nil).Harvest(context.Background(), Request{Machine: "app01", Item: "WebService"})
	if !chkRes.Success {
		t.Fatalf("chunked harvest failed: %s", chkRes.ErrorMessage)
	}

	seqBytes, err := os.ReadFile(seqRes.LocalPath)
	if err != nil {
		t.Fatalf("failed to read sequential copy: %v", err)
	}
	chkBytes, err := os.ReadFile(chkRes.LocalPath)
	if err != nil {
		t.Fatalf("failed to read chunked copy: %v", err)
	}
	if !bytes.Equal(seqBytes, want) {
		t.Error("sequential copy differs from source")
	}
	if !bytes.Equal(chkBytes, seqBytes) {
		t.Error("chunked copy differs from sequential copy")
	}
}

func TestHarvest_IdempotentDistinctWorkspaces(t *testing.T) {
	src := &localSource{root: t.TempDir()}
	dir := setupMachine(t, src, "app01", "WebService")
	want := randomBytes(t, 5000)
	writeLogFile(t, dir, "service.log", want, time.Now())

	wsRoot := t.TempDir()
	h := New(src, testParams(wsRoot), nil)

	first := h.Harvest(context.Background(), Request{Machine: "app01", Item: "WebService"})
	second := h.Harvest(context.Background(), Request{Machine: "app01", Item: "WebService"})
	if !first.Success || !second.Success {
		t.Fatalf("expected both harvests to succeed: %q / %q", first.ErrorMessage, second.ErrorMessage)
	}
	if first.LocalPath == second.LocalPath {
		t.Error("expected distinct workspaces for repeated harvests")
	}

	for _, res := range []Result{first, second} {
		got, err := os.ReadFile(res.LocalPath)
		if err != nil {
			t.Fatalf("failed to read %s: %v", res.LocalPath, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("copy at %s differs from source", res.LocalPath)
		}
	}
	if n := workspaceCount(t, wsRoot); n != 2 {
		t.Errorf("expected 2 retained workspaces, got %d", n)
	}
}

func TestHarvest_TimeoutRunsCleanup(t *testing.T) {
	src := &localSource{root: t.TempDir()}
	src.listHook = func(ctx context.Context) error {
		<-ctx.Done() // simulate a hung share
		return ctx.Err()
	}

	wsRoot := t.TempDir()
	params := testParams(wsRoot)
	params.Timeout = 50 * time.Millisecond
	h := New(src, params, nil)

	start := time.Now()
	res := h.Harvest(context.Background(), Request{Machine: "app01", Item: "WebService"})
	if res.Success {
		t.Fatal("expected timeout failure")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("harvest did not respect deadline, took %v", elapsed)
	}
	if n := workspaceCount(t, wsRoot); n != 0 {
		t.Errorf("expected workspace removed after timeout, found %d", n)
	}
}
