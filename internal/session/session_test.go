package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"cv-backend/internal/document"
	"cv-backend/internal/editor"
	"cv-backend/internal/sections"
	"cv-backend/internal/shared/cache"
	"cv-backend/internal/store"
)

type fakeCapturer struct {
	calls int
}

func (f *fakeCapturer) Capture(_ context.Context, html string) ([]byte, error) {
	f.calls++
	if html == "" {
		return nil, errors.New("empty html")
	}
	return []byte("%PDF-1.4 fake"), nil
}

func newTestManager(t *testing.T) (*Manager, *store.MemoryStore, *cache.Memory) {
	t.Helper()
	mem := store.NewMemoryStore()
	c := cache.NewMemory()
	m := NewManager(Dependencies{
		Store:         mem,
		Cache:         c,
		SnapshotTTL:   time.Hour,
		Capturer:      &fakeCapturer{},
		ExportTimeout: time.Second,
	}, time.Minute)
	return m, mem, c
}

func TestGetRequiresOwner(t *testing.T) {
	m, _, _ := newTestManager(t)
	if _, err := m.Get(context.Background(), "  "); !errors.Is(err, sections.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if m.Len() != 0 {
		t.Fatalf("expected no sessions, got %d", m.Len())
	}
}

func TestGetReusesSessionUntilEnded(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)
	a, err := m.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	b, _ := m.Get(ctx, "alice")
	if a != b {
		t.Fatalf("expected the same session")
	}
	if !m.End("alice") {
		t.Fatalf("expected End to report a session")
	}
	c, _ := m.Get(ctx, "alice")
	if c == a {
		t.Fatalf("expected a fresh session after End")
	}
}

func TestSweepExpiresIdleSessions(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)
	now := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	if _, err := m.Get(ctx, "alice"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	now = now.Add(30 * time.Second)
	if _, err := m.Get(ctx, "bob"); err != nil {
		t.Fatalf("Get: %v", err)
	}

	now = now.Add(45 * time.Second)
	if n := m.Sweep(); n != 1 {
		t.Fatalf("expected 1 expired session, got %d", n)
	}
	if m.Len() != 1 {
		t.Fatalf("expected bob to remain, got %d sessions", m.Len())
	}
}

type gatedCapturer struct {
	entered chan struct{}
	release chan struct{}
}

func (g *gatedCapturer) Capture(ctx context.Context, _ string) ([]byte, error) {
	close(g.entered)
	select {
	case <-g.release:
		return []byte("%PDF-1.4 fake"), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestGetKeepsExpiredSessionWhileExporting(t *testing.T) {
	ctx := context.Background()
	gate := &gatedCapturer{entered: make(chan struct{}), release: make(chan struct{})}
	m := NewManager(Dependencies{
		Store:         store.NewMemoryStore(),
		Cache:         cache.NewMemory(),
		Capturer:      gate,
		ExportTimeout: 5 * time.Second,
	}, time.Minute)
	now := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	s, _ := m.Get(ctx, "alice")
	if _, err := s.SavePersonalInfo(ctx, sections.PersonalInfo{FullName: "Ada Lovelace", Email: "ada@example.com"}); err != nil {
		t.Fatalf("SavePersonalInfo: %v", err)
	}
	done := make(chan error, 1)
	go func() {
		_, err := s.Export(ctx)
		done <- err
	}()
	<-gate.entered

	now = now.Add(2 * time.Minute)
	again, err := m.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if again != s {
		t.Fatalf("expected the exporting session to survive expiry")
	}

	close(gate.release)
	if err := <-done; err != nil {
		t.Fatalf("Export: %v", err)
	}
}

func TestRefreshLoadsEverySection(t *testing.T) {
	ctx := context.Background()
	m, mem, _ := newTestManager(t)
	edu := sections.NewRepository(mem, sections.EducationMapper)
	if _, err := edu.Save(ctx, sections.Education{Institution: "MIT", Degree: "BSc", StartDate: "2020-01-01", IsCurrent: true}, "alice"); err != nil {
		t.Fatalf("seed education: %v", err)
	}
	skills := sections.NewRepository(mem, sections.SkillMapper)
	if _, err := skills.Save(ctx, sections.SkillGroup{Category: "Languages", Skills: []sections.SkillEntry{{Name: "Go"}}}, "alice"); err != nil {
		t.Fatalf("seed skills: %v", err)
	}
	if _, err := sections.NewPersonalInfoRepository(mem).Save(ctx, sections.PersonalInfo{FullName: "Ada", Email: "ada@example.com"}, "alice"); err != nil {
		t.Fatalf("seed personal info: %v", err)
	}

	s, _ := m.Get(ctx, "alice")
	doc, err := s.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(doc.Education) != 1 || len(doc.Skills) != 1 || doc.PersonalInfo.FullName != "Ada" {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if s.Source() != document.SourceRemote {
		t.Fatalf("expected remote source, got %s", s.Source())
	}
	ed, _ := s.Editor(sections.KindEducation)
	if !ed.Loaded() {
		t.Fatalf("expected education controller to be loaded")
	}
	if items := ed.Items().([]sections.Education); len(items) != 1 || items[0].Institution != "MIT" {
		t.Fatalf("unexpected controller items: %+v", items)
	}
}

func TestNewSessionHydratesFromSnapshot(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)
	s, _ := m.Get(ctx, "alice")
	if err := s.EnsureLoaded(ctx); err != nil {
		t.Fatalf("EnsureLoaded: %v", err)
	}
	if _, err := s.SavePersonalInfo(ctx, sections.PersonalInfo{FullName: "Ada Lovelace", Email: "ada@example.com"}); err != nil {
		t.Fatalf("SavePersonalInfo: %v", err)
	}
	m.End("alice")

	next, _ := m.Get(ctx, "alice")
	if next.Source() != document.SourceCache {
		t.Fatalf("expected cache source, got %s", next.Source())
	}
	if got := next.Document().PersonalInfo.FullName; got != "Ada Lovelace" {
		t.Fatalf("expected hydrated name, got %q", got)
	}
	ed, _ := next.Editor(sections.KindEducation)
	if ed.Loaded() {
		t.Fatalf("hydration must not mark controllers loaded")
	}
}

func TestSavePersonalInfoValidates(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)
	s, _ := m.Get(ctx, "alice")
	_, err := s.SavePersonalInfo(ctx, sections.PersonalInfo{FullName: "Ada", Email: "not-an-email"})
	var verr *editor.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := verr.Fields["email"]; !ok {
		t.Fatalf("expected email field error, got %v", verr.Fields)
	}
}

func TestSetDraftJSONRejectsUnknownFields(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)
	s, _ := m.Get(ctx, "alice")
	ed, _ := s.Editor(sections.KindProjects)
	if err := ed.OpenAdd(); err != nil {
		t.Fatalf("OpenAdd: %v", err)
	}
	if err := ed.SetDraftJSON([]byte(`{"name":"cv","colour":"red"}`)); !errors.Is(err, ErrInvalidDraft) {
		t.Fatalf("expected ErrInvalidDraft, got %v", err)
	}
}

func TestEditorSaveUpdatesDocument(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)
	s, _ := m.Get(ctx, "alice")
	if err := s.EnsureLoaded(ctx); err != nil {
		t.Fatalf("EnsureLoaded: %v", err)
	}
	ed, _ := s.Editor(sections.KindWorkExperience)
	if err := ed.OpenAdd(); err != nil {
		t.Fatalf("OpenAdd: %v", err)
	}
	draft := `{"company":"Acme","position":"Engineer","startDate":"2021-02-01","isCurrent":true}`
	if err := ed.SetDraftJSON([]byte(draft)); err != nil {
		t.Fatalf("SetDraftJSON: %v", err)
	}
	res, err := ed.Save(ctx, false)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	saved := res.Item.(sections.WorkExperience)
	if !sections.IsDurableID(saved.ID) {
		t.Fatalf("expected durable id, got %q", saved.ID)
	}
	doc := s.Document()
	if len(doc.WorkExperience) != 1 || doc.WorkExperience[0].ID != saved.ID {
		t.Fatalf("document not updated: %+v", doc.WorkExperience)
	}
}

func TestUnknownSectionHasNoEditor(t *testing.T) {
	m, _, _ := newTestManager(t)
	s, _ := m.Get(context.Background(), "alice")
	if _, ok := s.Editor(sections.KindPersonalInfo); ok {
		t.Fatalf("personal info is not a list section")
	}
}

func TestExportUsesCurrentDocument(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)
	s, _ := m.Get(ctx, "alice")
	if _, err := s.SavePersonalInfo(ctx, sections.PersonalInfo{FullName: "Ada Lovelace", Email: "ada@example.com"}); err != nil {
		t.Fatalf("SavePersonalInfo: %v", err)
	}
	file, err := s.Export(ctx)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if file.Name != "Ada_Lovelace_CV.pdf" {
		t.Fatalf("unexpected file name %q", file.Name)
	}
	if s.IsExporting() {
		t.Fatalf("export flag should be cleared")
	}
}
