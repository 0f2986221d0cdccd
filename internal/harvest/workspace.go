package harvest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// workspaceRootName is the directory under the temp root that holds all
// harvest workspaces.
const workspaceRootName = "XceleratorLogs"

// newWorkspace creates a uniquely named directory scoped to one harvest call.
// Concurrent harvests of the same machine/item never collide because the leaf
// name is a fresh random identifier.
func newWorkspace(root string) (string, error) {
	if root == "" {
		root = os.TempDir()
	}
	dir := filepath.Join(root, workspaceRootName, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create workspace: %w", err)
	}
	return dir, nil
}
