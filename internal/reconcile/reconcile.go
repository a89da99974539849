// Package reconcile deletes remote rows the editor no longer references.
package reconcile

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"cv-backend/internal/sections"
	"cv-backend/internal/shared/metrics"
	"cv-backend/internal/shared/telemetry"
)

const defaultConcurrency = 4

// Source is the remote side of one section. *sections.Repository satisfies it.
type Source interface {
	Kind() sections.Kind
	IDs(ctx context.Context, ownerID string) ([]string, error)
	Delete(ctx context.Context, id, ownerID string) error
}

// Result lists the outcome of each orphan deletion.
type Result struct {
	Deleted []string
	Failed  []string
}

// ReconciliationError reports orphan deletions that failed. The save that
// triggered reconciliation stands; the rows linger until the next pass.
type ReconciliationError struct {
	Section sections.Kind
	Failed  map[string]error
}

func (e *ReconciliationError) Error() string {
	ids := make([]string, 0, len(e.Failed))
	for id := range e.Failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return fmt.Sprintf("reconcile %s: %d orphan deletion(s) failed: %s", e.Section, len(ids), strings.Join(ids, ", "))
}

// Orphans returns the remote ids absent from kept, in remote order.
// Temporary ids are never orphans.
func Orphans(remoteIDs, keptIDs []string) []string {
	kept := make(map[string]struct{}, len(keptIDs))
	for _, id := range keptIDs {
		kept[id] = struct{}{}
	}
	var out []string
	for _, id := range remoteIDs {
		if sections.IsTempID(id) {
			continue
		}
		if _, ok := kept[id]; ok {
			continue
		}
		out = append(out, id)
	}
	return out
}

// Reconciler fans orphan deletions out with bounded concurrency.
type Reconciler struct {
	Concurrency int
}

// Reconcile re-queries the remote id set for ownerID and deletes every id the
// editor no longer keeps. Deletions are independent: one failing does not stop
// the others.
func (r *Reconciler) Reconcile(ctx context.Context, src Source, ownerID string, keptIDs []string) (Result, error) {
	remoteIDs, err := src.IDs(ctx, ownerID)
	if err != nil {
		return Result{}, err
	}
	orphans := Orphans(remoteIDs, keptIDs)
	if len(orphans) == 0 {
		return Result{}, nil
	}

	limit := defaultConcurrency
	if r != nil && r.Concurrency > 0 {
		limit = r.Concurrency
	}

	var (
		mu      sync.Mutex
		deleted = make(map[string]bool, len(orphans))
		failed  = make(map[string]error)
	)
	var g errgroup.Group
	g.SetLimit(limit)
	for _, id := range orphans {
		g.Go(func() error {
			err := src.Delete(ctx, id, ownerID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed[id] = err
				return nil
			}
			deleted[id] = true
			return nil
		})
	}
	_ = g.Wait()

	var res Result
	for _, id := range orphans {
		if deleted[id] {
			res.Deleted = append(res.Deleted, id)
		} else {
			res.Failed = append(res.Failed, id)
		}
	}
	section := string(src.Kind())
	metrics.AddOrphansDeleted(section, len(res.Deleted))
	if len(failed) == 0 {
		return res, nil
	}

	metrics.AddOrphanDeleteFailed(section, len(failed))
	recErr := &ReconciliationError{Section: src.Kind(), Failed: failed}
	telemetry.Warn("reconcile.orphans_failed", map[string]any{
		"section": section,
		"user_id": ownerID,
		"deleted": len(res.Deleted),
		"failed":  res.Failed,
		"error":   recErr,
	})
	return res, recErr
}
