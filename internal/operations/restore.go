package operations

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/acwea904/qlback/internal/archive"
	"github.com/acwea904/qlback/internal/retention"
)

// ErrRestoreFailed indicates a restore could not complete.
var ErrRestoreFailed = errors.New("restore failed")

// Restore downloads the named artifact, or the newest one when name is
// empty, and unpacks it into destDir. The download lands in a scratch
// workspace that is removed afterwards.
func (m *Manager) Restore(ctx context.Context, name, destDir string) error {
	if name != "" && !archive.MatchName(name) {
		return fmt.Errorf("%w: %q is not an artifact name", ErrRestoreFailed, name)
	}
	if name == "" {
		names, err := m.store.List(ctx)
		if err != nil {
			return fmt.Errorf("%w: list artifacts: %v", ErrRestoreFailed, err)
		}
		// A plan that keeps exactly one name picks the newest.
		plan := retention.BuildPlan(names, retention.Policy{KeepLast: 1})
		if len(plan.Keep) == 0 {
			return fmt.Errorf("%w: collection has no artifacts", ErrRestoreFailed)
		}
		name = plan.Keep[0]
	}

	ws, err := NewWorkspace(m.cfg.Backup.WorkRoot, m.log)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRestoreFailed, err)
	}
	defer ws.Remove()

	path := filepath.Join(ws.Dir(), name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRestoreFailed, err)
	}
	m.log.Info("fetching artifact", "name", name)
	if err := m.store.Fetch(ctx, name, f); err != nil {
		f.Close()
		return fmt.Errorf("%w: %v", ErrRestoreFailed, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrRestoreFailed, err)
	}

	if err := archive.Extract(path, destDir); err != nil {
		return fmt.Errorf("%w: %v", ErrRestoreFailed, err)
	}
	m.log.Info("restore completed", "name", name, "dest", destDir)
	return nil
}
