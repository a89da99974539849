package reconcile

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"cv-backend/internal/sections"
	"cv-backend/internal/store"
)

func TestOrphansSkipsTemporaryAndKeptIDs(t *testing.T) {
	temp := sections.NewTempID()
	got := Orphans([]string{"a", "b", temp, "c", "d"}, []string{"a", "c"})
	want := []string{"b", "d"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("orphans mismatch (-want +got):\n%s", diff)
	}
	if got := Orphans([]string{"a"}, []string{"a"}); len(got) != 0 {
		t.Fatalf("expected no orphans, got %v", got)
	}
}

func TestReconcileRemovesItemsDroppedLocally(t *testing.T) {
	ctx := context.Background()
	repo := sections.NewRepository(store.NewMemoryStore(), sections.EducationMapper)

	var ids []string
	for _, name := range []string{"A", "B", "C"} {
		saved, err := repo.Save(ctx, sections.Education{ID: sections.NewTempID(), Institution: name, Degree: "BSc"}, "alice")
		if err != nil {
			t.Fatalf("Save %s: %v", name, err)
		}
		ids = append(ids, saved.ID)
	}
	a, b, c := ids[0], ids[1], ids[2]

	res, err := (&Reconciler{}).Reconcile(ctx, repo, "alice", []string{a, c})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if diff := cmp.Diff([]string{b}, res.Deleted); diff != "" {
		t.Fatalf("deleted mismatch (-want +got):\n%s", diff)
	}

	remaining, err := repo.IDs(ctx, "alice")
	if err != nil {
		t.Fatalf("IDs: %v", err)
	}
	sort.Strings(remaining)
	want := []string{a, c}
	sort.Strings(want)
	if diff := cmp.Diff(want, remaining); diff != "" {
		t.Fatalf("remote ids mismatch (-want +got):\n%s", diff)
	}
}

type flakySource struct {
	mu      sync.Mutex
	ids     []string
	fail    map[string]bool
	deleted []string
}

func (f *flakySource) Kind() sections.Kind { return sections.KindProjects }

func (f *flakySource) IDs(context.Context, string) ([]string, error) {
	return f.ids, nil
}

func (f *flakySource) Delete(_ context.Context, id, _ string) error {
	if f.fail[id] {
		return errors.New("connection reset")
	}
	f.mu.Lock()
	f.deleted = append(f.deleted, id)
	f.mu.Unlock()
	return nil
}

func TestReconcileContinuesPastFailedDeletes(t *testing.T) {
	src := &flakySource{ids: []string{"keep", "x", "y", "z"}, fail: map[string]bool{"y": true}}

	res, err := (&Reconciler{Concurrency: 2}).Reconcile(context.Background(), src, "alice", []string{"keep"})
	var recErr *ReconciliationError
	if !errors.As(err, &recErr) {
		t.Fatalf("expected ReconciliationError, got %v", err)
	}
	if _, ok := recErr.Failed["y"]; !ok || len(recErr.Failed) != 1 {
		t.Fatalf("expected only y to fail, got %v", recErr.Failed)
	}
	if diff := cmp.Diff([]string{"x", "z"}, res.Deleted); diff != "" {
		t.Fatalf("deleted mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"y"}, res.Failed); diff != "" {
		t.Fatalf("failed mismatch (-want +got):\n%s", diff)
	}
}

type failingIDs struct{ flakySource }

func (*failingIDs) IDs(context.Context, string) ([]string, error) {
	return nil, errors.New("timeout")
}

func TestReconcileSurfacesIDQueryFailure(t *testing.T) {
	src := &failingIDs{}
	if _, err := (&Reconciler{}).Reconcile(context.Background(), src, "alice", nil); err == nil {
		t.Fatalf("expected error when the id query fails")
	}
	if len(src.deleted) != 0 {
		t.Fatalf("expected no deletes, got %v", src.deleted)
	}
}
