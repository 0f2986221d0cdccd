package harvest

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrPathNotAccessible indicates the remote directory is missing, the
	// machine is unreachable, or access was denied. The caller cannot act
	// differently on any of these, so they collapse into one condition.
	ErrPathNotAccessible = errors.New("path not accessible")
	// ErrNoFilesFound indicates the remote directory exists but holds no files.
	ErrNoFilesFound = errors.New("no files found")
)

// LocateNewest enumerates dir through src and returns the file with the most
// recent write time, on the assumption that the remote process writes to one
// file at a time and rolls over by filename. Ties go to the first file
// encountered in directory order.
func LocateNewest(ctx context.Context, src Source, dir string) (FileRef, error) {
	files, err := src.List(ctx, dir)
	if err != nil {
		return FileRef{}, fmt.Errorf("%w: %s: %v", ErrPathNotAccessible, dir, err)
	}
	if len(files) == 0 {
		return FileRef{}, fmt.Errorf("%w in %s", ErrNoFilesFound, dir)
	}

	newest := files[0]
	for _, f := range files[1:] {
		if f.ModTime.After(newest.ModTime) {
			newest = f
		}
	}
	return newest, nil
}
