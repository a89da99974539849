package editor

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"cv-backend/internal/document"
	"cv-backend/internal/sections"
	"cv-backend/internal/shared/cache"
	"cv-backend/internal/store"
)

type trackedRepo[T sections.Item[T]] struct {
	*sections.Repository[T]
	saves   atomic.Int32
	deletes atomic.Int32
	saveErr error
	gate    chan struct{}
	entered chan struct{}
}

func (r *trackedRepo[T]) Save(ctx context.Context, item T, ownerID string) (T, error) {
	r.saves.Add(1)
	if r.entered != nil {
		r.entered <- struct{}{}
	}
	if r.gate != nil {
		<-r.gate
	}
	if r.saveErr != nil {
		var zero T
		return zero, r.saveErr
	}
	return r.Repository.Save(ctx, item, ownerID)
}

func (r *trackedRepo[T]) Delete(ctx context.Context, id, ownerID string) error {
	r.deletes.Add(1)
	return r.Repository.Delete(ctx, id, ownerID)
}

type fixture struct {
	mem   *store.MemoryStore
	cache *cache.Memory
	agg   *document.Aggregator
	repo  *trackedRepo[sections.Education]
	ctl   *Controller[sections.Education]
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{mem: store.NewMemoryStore(), cache: cache.NewMemory()}
	f.agg = document.NewAggregator("alice", f.cache, time.Hour)
	f.repo = &trackedRepo[sections.Education]{Repository: sections.NewRepository(f.mem, sections.EducationMapper)}
	f.ctl = New(Config[sections.Education]{OwnerID: "alice", Repo: f.repo, Aggregator: f.agg})
	return f
}

func fill(e sections.Education) func(sections.Education) sections.Education {
	return func(sections.Education) sections.Education { return e }
}

func TestAddEducationEndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if err := f.ctl.OpenAdd(); err != nil {
		t.Fatalf("OpenAdd: %v", err)
	}
	want := sections.Education{Institution: "MIT", Degree: "BSc", StartDate: "2020-01-01", EndDate: "2024-01-01"}
	if err := f.ctl.UpdateDraft(fill(want)); err != nil {
		t.Fatalf("UpdateDraft: %v", err)
	}
	out, err := f.ctl.Save(ctx, false)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if got := f.ctl.Status(); got != StatusIdle {
		t.Fatalf("expected idle, got %s", got)
	}
	items := f.ctl.Items()
	if len(items) != 1 {
		t.Fatalf("expected one item, got %d", len(items))
	}
	if !sections.IsDurableID(items[0].ID) || items[0].ID != out.Item.ID {
		t.Fatalf("expected durable id, got %q", items[0].ID)
	}
	opts := cmp.Options{cmpopts.IgnoreFields(sections.Education{}, "ID"), cmpopts.EquateEmpty()}
	if diff := cmp.Diff(want, items[0], opts); diff != "" {
		t.Fatalf("item mismatch (-want +got):\n%s", diff)
	}

	var cached document.CVDocument
	found, err := f.cache.GetJSON(ctx, document.CacheKey("alice"), &cached)
	if err != nil || !found {
		t.Fatalf("expected cached snapshot, found=%v err=%v", found, err)
	}
	if len(cached.Education) != 1 || cached.Education[0].ID != items[0].ID {
		t.Fatalf("cache does not hold the saved item: %+v", cached.Education)
	}

	if n := f.repo.deletes.Load(); n != 0 {
		t.Fatalf("expected no deletes, got %d", n)
	}
	if res := f.ctl.LastReconcile(); len(res.Deleted) != 0 || len(res.Failed) != 0 {
		t.Fatalf("expected empty reconciliation, got %+v", res)
	}
}

func TestSaveReconcilesLocallyRemovedItems(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var ids []string
	for i, name := range []string{"A", "B", "C"} {
		saved, err := f.repo.Repository.Save(ctx, sections.Education{
			Institution: name, Degree: "BSc", StartDate: []string{"2012-01-01", "2011-01-01", "2010-01-01"}[i],
		}, "alice")
		if err != nil {
			t.Fatalf("seed %s: %v", name, err)
		}
		ids = append(ids, saved.ID)
	}
	loaded, _ := f.repo.Load(ctx, "alice")
	if err := f.ctl.Replace(loaded); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	if err := f.ctl.RemoveLocal(ctx, ids[1]); err != nil {
		t.Fatalf("RemoveLocal: %v", err)
	}
	if err := f.ctl.OpenEdit(ids[0]); err != nil {
		t.Fatalf("OpenEdit: %v", err)
	}
	if err := f.ctl.UpdateDraft(func(e sections.Education) sections.Education {
		e.EndDate = "2016-01-01"
		return e
	}); err != nil {
		t.Fatalf("UpdateDraft: %v", err)
	}
	out, err := f.ctl.Save(ctx, false)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if diff := cmp.Diff([]string{ids[1]}, out.Reconcile.Deleted); diff != "" {
		t.Fatalf("deleted mismatch (-want +got):\n%s", diff)
	}

	remote, _ := f.repo.IDs(ctx, "alice")
	sort.Strings(remote)
	want := []string{ids[0], ids[2]}
	sort.Strings(want)
	if diff := cmp.Diff(want, remote); diff != "" {
		t.Fatalf("remote ids mismatch (-want +got):\n%s", diff)
	}
	if got := document.ItemIDs(f.ctl.Items()); !cmp.Equal([]string{ids[0], ids[2]}, got) {
		t.Fatalf("unexpected local list %v", got)
	}
}

func TestValidationBlocksSaveWithoutRemoteCalls(t *testing.T) {
	f := newFixture(t)
	_ = f.ctl.OpenAdd()
	_ = f.ctl.UpdateDraft(fill(sections.Education{Institution: "MIT"}))

	_, err := f.ctl.Save(context.Background(), false)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if vErr.Fields["degree"] == "" {
		t.Fatalf("expected degree error, got %v", vErr.Fields)
	}
	if f.ctl.Status() != StatusAddEditing {
		t.Fatalf("expected to stay in addEditing, got %s", f.ctl.Status())
	}
	if f.repo.saves.Load() != 0 {
		t.Fatalf("expected no remote save")
	}
	if st := f.ctl.Snapshot(); st.FieldErrors["degree"] == "" {
		t.Fatalf("expected field errors in snapshot, got %+v", st)
	}
}

func TestRemoteFailureReturnsToEditing(t *testing.T) {
	f := newFixture(t)
	f.repo.saveErr = &sections.RemoteError{Op: "insert", Section: sections.KindEducation, Err: errors.New("network down")}
	_ = f.ctl.OpenAdd()
	_ = f.ctl.UpdateDraft(fill(sections.Education{Institution: "MIT", Degree: "BSc", StartDate: "2020-01-01", IsCurrent: true}))

	_, err := f.ctl.Save(context.Background(), false)
	var remoteErr *sections.RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	st := f.ctl.Snapshot()
	if st.Status != StatusAddEditing || st.LastError == "" {
		t.Fatalf("expected addEditing with error, got %+v", st)
	}
	if len(st.Items) != 0 {
		t.Fatalf("expected optimistic item to be rolled back, got %+v", st.Items)
	}
	if st.Draft == nil || st.Draft.Institution != "MIT" {
		t.Fatalf("expected draft to survive, got %+v", st.Draft)
	}
}

func TestSecondActionWhileSavingIsRefused(t *testing.T) {
	f := newFixture(t)
	f.repo.gate = make(chan struct{})
	f.repo.entered = make(chan struct{}, 1)
	_ = f.ctl.OpenAdd()
	_ = f.ctl.UpdateDraft(fill(sections.Education{Institution: "MIT", Degree: "BSc", StartDate: "2020-01-01", IsCurrent: true}))

	done := make(chan error, 1)
	go func() {
		_, err := f.ctl.Save(context.Background(), true)
		done <- err
	}()
	<-f.repo.entered

	if _, err := f.ctl.Save(context.Background(), false); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if err := f.ctl.Cancel(); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected cancel to wait for the save, got %v", err)
	}
	close(f.repo.gate)
	if err := <-done; err != nil {
		t.Fatalf("Save: %v", err)
	}

	st := f.ctl.Snapshot()
	if st.Status != StatusAddEditing || st.Draft == nil || st.Draft.Institution != "" {
		t.Fatalf("expected a fresh draft after continue, got %+v", st)
	}
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	saved, _ := f.repo.Repository.Save(ctx, sections.Education{Institution: "MIT", Degree: "BSc"}, "alice")
	loaded, _ := f.repo.Load(ctx, "alice")
	_ = f.ctl.Replace(loaded)

	if err := f.ctl.RequestDelete(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected delete from idle to be refused, got %v", err)
	}
	_ = f.ctl.OpenAdd()
	if err := f.ctl.RequestDelete(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected delete of a new draft to be refused, got %v", err)
	}
	_ = f.ctl.Cancel()

	if err := f.ctl.OpenEditAt(0); err != nil {
		t.Fatalf("OpenEditAt: %v", err)
	}
	if err := f.ctl.RequestDelete(); err != nil {
		t.Fatalf("RequestDelete: %v", err)
	}
	if err := f.ctl.CancelDelete(); err != nil {
		t.Fatalf("CancelDelete: %v", err)
	}
	if st := f.ctl.Snapshot(); st.Status != StatusAddEditing || st.ConfirmingDelete || st.TargetID != saved.ID {
		t.Fatalf("cancel changed more than the confirmation: %+v", st)
	}
	if f.repo.deletes.Load() != 0 {
		t.Fatalf("expected no delete before confirmation")
	}

	_ = f.ctl.RequestDelete()
	if err := f.ctl.ConfirmDelete(ctx); err != nil {
		t.Fatalf("ConfirmDelete: %v", err)
	}
	if f.ctl.Status() != StatusIdle || len(f.ctl.Items()) != 0 {
		t.Fatalf("expected idle and empty list, got %+v", f.ctl.Snapshot())
	}
	if ids, _ := f.repo.IDs(ctx, "alice"); len(ids) != 0 {
		t.Fatalf("expected remote row removed, got %v", ids)
	}
	if len(f.agg.Document().Education) != 0 {
		t.Fatalf("expected aggregator updated")
	}
}

func TestOpenEditRejectsUnknownItems(t *testing.T) {
	f := newFixture(t)
	if err := f.ctl.OpenEdit("missing"); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
	if err := f.ctl.OpenEditAt(3); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
	if err := f.ctl.UpdateDraft(fill(sections.Education{})); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected draft update from idle to be refused, got %v", err)
	}
	if _, err := f.ctl.Save(context.Background(), false); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected save from idle to be refused, got %v", err)
	}
}

func TestDraftKeepsTargetID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	saved, _ := f.repo.Repository.Save(ctx, sections.Education{Institution: "MIT", Degree: "BSc"}, "alice")
	_ = f.ctl.Replace([]sections.Education{saved})
	_ = f.ctl.OpenEdit(saved.ID)
	_ = f.ctl.SetDraft(sections.Education{ID: "forged", Institution: "ETH"})

	st := f.ctl.Snapshot()
	if st.Draft.ID != saved.ID {
		t.Fatalf("expected draft id %q, got %q", saved.ID, st.Draft.ID)
	}
}

func TestSaveBeforeFirstLoadDeletesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	existing, err := f.repo.Repository.Save(ctx, sections.Education{Institution: "ETH", Degree: "MSc", StartDate: "2015-01-01"}, "alice")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if f.ctl.Loaded() {
		t.Fatalf("expected fresh controller to be unloaded")
	}

	_ = f.ctl.OpenAdd()
	_ = f.ctl.UpdateDraft(fill(sections.Education{Institution: "MIT", Degree: "BSc", StartDate: "2020-01-01", IsCurrent: true}))
	if _, err := f.ctl.Save(ctx, false); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if f.repo.deletes.Load() != 0 {
		t.Fatalf("expected no deletes before the list was loaded")
	}
	items := f.ctl.Items()
	if len(items) != 2 || items[1].ID != existing.ID {
		t.Fatalf("expected canonical list with both rows, got %+v", items)
	}
	if !f.ctl.Loaded() {
		t.Fatalf("expected controller loaded after canonical reload")
	}
}

func TestConfirmDeleteMarksControllerLoaded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	gone, _ := f.repo.Repository.Save(ctx, sections.Education{Institution: "MIT", Degree: "BSc"}, "alice")
	kept, _ := f.repo.Repository.Save(ctx, sections.Education{Institution: "ETH", Degree: "MSc"}, "alice")
	f.ctl.items = []sections.Education{gone}

	_ = f.ctl.OpenEdit(gone.ID)
	_ = f.ctl.RequestDelete()
	if err := f.ctl.ConfirmDelete(ctx); err != nil {
		t.Fatalf("ConfirmDelete: %v", err)
	}
	if !f.ctl.Loaded() {
		t.Fatalf("expected controller loaded after canonical reload")
	}
	if items := f.ctl.Items(); len(items) != 1 || items[0].ID != kept.ID {
		t.Fatalf("expected canonical list with the remaining row, got %+v", items)
	}
}

func TestImpossibleDatesBlockSave(t *testing.T) {
	f := newFixture(t)
	_ = f.ctl.OpenAdd()
	_ = f.ctl.UpdateDraft(fill(sections.Education{Institution: "MIT", Degree: "BSc", StartDate: "2024-02-30", EndDate: "2024-13-45"}))

	_, err := f.ctl.Save(context.Background(), false)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if vErr.Fields["startDate"] == "" || vErr.Fields["endDate"] == "" {
		t.Fatalf("expected date errors, got %v", vErr.Fields)
	}
	if f.repo.saves.Load() != 0 {
		t.Fatalf("expected no remote save")
	}
}
