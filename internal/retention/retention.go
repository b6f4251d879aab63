package retention

import (
	"context"
	"fmt"
	"sort"

	"github.com/acwea904/qlback/internal/archive"
	"github.com/acwea904/qlback/internal/logger"
)

// Policy says how many of the newest artifacts survive a cleanup.
type Policy struct {
	KeepLast int
}

// Plan partitions a listing into survivors and deletion candidates.
type Plan struct {
	Keep  []string
	Prune []string
}

// Result reports what a cleanup did. Deleted holds only the names that
// were actually removed.
type Result struct {
	Retained int
	Deleted  []string
}

// Store is the slice of the remote store retention needs.
type Store interface {
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, name string) error
}

// BuildPlan filters names down to canonical artifacts, sorts them newest
// first and applies the policy. Names that are not canonical artifacts are
// never deletion candidates. The zero-padded timestamps make plain string
// order chronological, so nothing needs parsing here.
func BuildPlan(names []string, policy Policy) Plan {
	var matching []string
	for _, n := range names {
		if archive.MatchName(n) {
			matching = append(matching, n)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(matching)))

	keep := policy.KeepLast
	if keep < 1 {
		keep = 1
	}
	if keep > len(matching) {
		keep = len(matching)
	}
	return Plan{Keep: matching[:keep], Prune: matching[keep:]}
}

// Manager enforces a retention policy against a remote store.
type Manager struct {
	store Store
	log   logger.Logger
}

func NewManager(store Store, log logger.Logger) *Manager {
	return &Manager{store: store, log: log}
}

// Enforce lists the collection and deletes everything beyond the policy.
// It is meant to run right after an upload: the fresh listing then holds
// the new artifact, which sorts first and cannot be pruned. Deletions are
// best effort; a failed one is logged and skipped.
//
// When the listing cannot be obtained or comes back empty, nothing is
// deleted and a single retained artifact is reported: the one the caller
// just uploaded, which exists whether or not the listing shows it.
func (m *Manager) Enforce(ctx context.Context, policy Policy) (Result, error) {
	names, err := m.store.List(ctx)
	if err != nil {
		return Result{Retained: 1}, fmt.Errorf("list for cleanup: %w", err)
	}

	plan := BuildPlan(names, policy)
	if len(plan.Keep) == 0 {
		m.log.Warn("listing came back empty, nothing to clean")
		return Result{Retained: 1}, nil
	}

	res := Result{Retained: len(plan.Keep)}
	for _, name := range plan.Prune {
		if err := m.store.Delete(ctx, name); err != nil {
			m.log.Warn("delete failed", "name", name, "error", err)
			continue
		}
		m.log.Info("old artifact deleted", "name", name)
		res.Deleted = append(res.Deleted, name)
	}
	return res, nil
}
