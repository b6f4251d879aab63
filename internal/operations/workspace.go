package operations

import (
	"fmt"
	"os"

	"github.com/acwea904/qlback/internal/logger"
)

// Workspace is the private scratch directory one run works in. The PID in
// its name keeps concurrent invocations apart and makes leftovers
// attributable.
type Workspace struct {
	dir string
	log logger.Logger
}

// NewWorkspace creates the scratch directory under root, or under the
// system temp directory when root is empty.
func NewWorkspace(root string, log logger.Logger) (*Workspace, error) {
	if root != "" {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, fmt.Errorf("create workspace root: %w", err)
		}
	}
	dir, err := os.MkdirTemp(root, fmt.Sprintf("qlback-%d-*", os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	log.Debug("workspace created", "dir", dir)
	return &Workspace{dir: dir, log: log}, nil
}

// Dir returns the scratch directory path.
func (w *Workspace) Dir() string {
	return w.dir
}

// Remove deletes the scratch directory with everything in it. Safe to
// call more than once.
func (w *Workspace) Remove() {
	if w.dir == "" {
		return
	}
	if err := os.RemoveAll(w.dir); err != nil {
		w.log.Warn("workspace not fully removed", "dir", w.dir, "error", err)
		return
	}
	w.log.Debug("workspace removed", "dir", w.dir)
	w.dir = ""
}
