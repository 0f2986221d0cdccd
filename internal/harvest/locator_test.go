package harvest

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

type fakeListSource struct {
	files   []FileRef
	listErr error
}

var _ Source = (*fakeListSource)(nil)

func (f *fakeListSource) Resolve(machine, item string) string { return machine + "/" + item }

func (f *fakeListSource) List(ctx context.Context, dir string) ([]FileRef, error) {
	return f.files, f.listErr
}

func (f *fakeListSource) OpenRange(ctx context.Context, path string, offset, length int64) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

func TestLocateNewest_PicksMaxModTime(t *testing.T) {
	now := time.Now()
	src := &fakeListSource{files: []FileRef{
		{Name: "service.2.log", ModTime: now.Add(-2 * time.Hour)},
		{Name: "service.log", ModTime: now},
		{Name: "service.1.log", ModTime: now.Add(-time.Hour)},
	}}

	ref, err := LocateNewest(context.Background(), src, "dir")
	if err != nil {
		t.Fatalf("LocateNewest error: %v", err)
	}
	if ref.Name != "service.log" {
		t.Errorf("expected service.log, got %s", ref.Name)
	}
}

func TestLocateNewest_TieGoesToFirstEncountered(t *testing.T) {
	when := time.Unix(1700000000, 0)
	src := &fakeListSource{files: []FileRef{
		{Name: "a.log", ModTime: when},
		{Name: "b.log", ModTime: when},
	}}

	ref, err := LocateNewest(context.Background(), src, "dir")
	if err != nil {
		t.Fatalf("LocateNewest error: %v", err)
	}
	if ref.Name != "a.log" {
		t.Errorf("expected first-encountered a.log, got %s", ref.Name)
	}
}

func TestLocateNewest_EmptyDirectory(t *testing.T) {
	src := &fakeListSource{}

	_, err := LocateNewest(context.Background(), src, "dir")
	if !errors.Is(err, ErrNoFilesFound) {
		t.Errorf("expected ErrNoFilesFound, got %v", err)
	}
}

func TestLocateNewest_ListFailure(t *testing.T) {
	src := &fakeListSource{listErr: errors.New("host unreachable")}

	_, err := LocateNewest(context.Background(), src, "dir")
	if !errors.Is(err, ErrPathNotAccessible) {
		t.Errorf("expected ErrPathNotAccessible, got %v", err)
	}
}
