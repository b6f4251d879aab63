package operations

import (
	"context"
	"fmt"

	"github.com/acwea904/qlback/internal/retention"
)

// Prune enforces the retention policy without uploading anything first.
func (m *Manager) Prune(ctx context.Context) (retention.Result, error) {
	return m.retain.Enforce(ctx, retention.Policy{KeepLast: m.cfg.Retention.KeepLast})
}

// Preview lists the collection and reports what a cleanup would keep and
// delete, without touching anything.
func (m *Manager) Preview(ctx context.Context) (retention.Plan, error) {
	names, err := m.store.List(ctx)
	if err != nil {
		return retention.Plan{}, fmt.Errorf("list artifacts: %w", err)
	}
	return retention.BuildPlan(names, retention.Policy{KeepLast: m.cfg.Retention.KeepLast}), nil
}
