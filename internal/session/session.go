// Package session keeps one editing session per owner: the composite
// document, a controller per section and the export pipeline.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"cv-backend/internal/document"
	"cv-backend/internal/editor"
	"cv-backend/internal/export"
	"cv-backend/internal/preview"
	"cv-backend/internal/reconcile"
	"cv-backend/internal/sections"
	"cv-backend/internal/shared/cache"
	"cv-backend/internal/shared/storage/object"
	"cv-backend/internal/shared/telemetry"
	"cv-backend/internal/store"
)

// Dependencies are shared by every session.
type Dependencies struct {
	Store         store.Store
	Cache         cache.JSON
	SnapshotTTL   time.Duration
	Reconciler    *reconcile.Reconciler
	Capturer      export.Capturer
	Archive       object.Store
	ExportTimeout time.Duration
}

type Session struct {
	ownerID    string
	aggregator *document.Aggregator
	pipeline   *export.Pipeline
	personal   *sections.PersonalInfoRepository

	education *sectionEditor[sections.Education]
	work      *sectionEditor[sections.WorkExperience]
	projects  *sectionEditor[sections.Project]
	skills    *sectionEditor[sections.SkillGroup]

	personalMu sync.Mutex
	mu         sync.Mutex
	lastSeen   time.Time
	loaded     bool
}

func newSection[T sections.Item[T]](deps Dependencies, ownerID string, agg *document.Aggregator, m sections.Mapper[T]) *sectionEditor[T] {
	repo := sections.NewRepository(deps.Store, m)
	return &sectionEditor[T]{
		repo: repo,
		ctl: editor.New(editor.Config[T]{
			OwnerID:    ownerID,
			Repo:       repo,
			Reconciler: deps.Reconciler,
			Aggregator: agg,
		}),
	}
}

func newSession(deps Dependencies, ownerID string, now time.Time) *Session {
	agg := document.NewAggregator(ownerID, deps.Cache, deps.SnapshotTTL)
	return &Session{
		ownerID:    ownerID,
		aggregator: agg,
		pipeline:   export.NewPipeline(deps.Capturer, deps.Archive, deps.ExportTimeout),
		personal:   sections.NewPersonalInfoRepository(deps.Store),
		education:  newSection(deps, ownerID, agg, sections.EducationMapper),
		work:       newSection(deps, ownerID, agg, sections.WorkExperienceMapper),
		projects:   newSection(deps, ownerID, agg, sections.ProjectMapper),
		skills:     newSection(deps, ownerID, agg, sections.SkillMapper),
		lastSeen:   now,
	}
}

func (s *Session) OwnerID() string {
	return s.ownerID
}

// Editor returns the controller for a list section.
func (s *Session) Editor(kind sections.Kind) (SectionEditor, bool) {
	switch kind {
	case sections.KindEducation:
		return s.education, true
	case sections.KindWorkExperience:
		return s.work, true
	case sections.KindProjects:
		return s.projects, true
	case sections.KindSkills:
		return s.skills, true
	}
	return nil, false
}

// Document returns the current composite document.
func (s *Session) Document() document.CVDocument {
	return s.aggregator.Document()
}

func (s *Session) Source() document.Source {
	return s.aggregator.Source()
}

// Hydrate fills the document from the snapshot cache for display while the
// authoritative load runs. Controllers are not touched.
func (s *Session) Hydrate(ctx context.Context) (document.CVDocument, bool) {
	return s.aggregator.HydrateFromCache(ctx)
}

// Refresh loads every section from the remote store concurrently and
// replaces both the controllers' lists and the document.
func (s *Session) Refresh(ctx context.Context) (document.CVDocument, error) {
	var (
		doc   document.CVDocument
		found bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		info, ok, err := s.personal.Load(gctx, s.ownerID)
		doc.PersonalInfo, found = info, ok
		return err
	})
	g.Go(func() (err error) {
		doc.Education, err = s.education.load(gctx, s.ownerID)
		return err
	})
	g.Go(func() (err error) {
		doc.WorkExperience, err = s.work.load(gctx, s.ownerID)
		return err
	})
	g.Go(func() (err error) {
		doc.Projects, err = s.projects.load(gctx, s.ownerID)
		return err
	})
	g.Go(func() (err error) {
		doc.Skills, err = s.skills.load(gctx, s.ownerID)
		return err
	})
	if err := g.Wait(); err != nil {
		telemetry.Warn("session.refresh_failed", map[string]any{"user_id": s.ownerID, "error": err})
		return document.CVDocument{}, err
	}

	var busy []sections.Kind
	busy = replaceOrKeep(s.education.ctl, sections.KindEducation, doc.Education, busy)
	busy = replaceOrKeep(s.work.ctl, sections.KindWorkExperience, doc.WorkExperience, busy)
	busy = replaceOrKeep(s.projects.ctl, sections.KindProjects, doc.Projects, busy)
	busy = replaceOrKeep(s.skills.ctl, sections.KindSkills, doc.Skills, busy)
	if !found {
		doc.PersonalInfo = sections.PersonalInfo{}
	}
	s.aggregator.ReplaceAll(ctx, doc, busy...)

	s.mu.Lock()
	s.loaded = true
	s.mu.Unlock()
	return s.aggregator.Document(), nil
}

// replaceOrKeep installs loaded unless a save is in flight. Busy sections are
// appended to busy and left untouched in the document until the save settles.
func replaceOrKeep[T sections.Item[T]](ctl *editor.Controller[T], kind sections.Kind, loaded []T, busy []sections.Kind) []sections.Kind {
	if err := ctl.Replace(loaded); errors.Is(err, editor.ErrBusy) {
		return append(busy, kind)
	}
	return busy
}

// EnsureLoaded runs Refresh once per session.
func (s *Session) EnsureLoaded(ctx context.Context) error {
	s.mu.Lock()
	loaded := s.loaded
	s.mu.Unlock()
	if loaded {
		return nil
	}
	_, err := s.Refresh(ctx)
	return err
}

// SavePersonalInfo validates and upserts the owner's personal info.
func (s *Session) SavePersonalInfo(ctx context.Context, info sections.PersonalInfo) (sections.PersonalInfo, error) {
	if errs := sections.Validate(sections.KindPersonalInfo, info); len(errs) > 0 {
		return sections.PersonalInfo{}, &editor.ValidationError{Fields: errs}
	}
	s.personalMu.Lock()
	defer s.personalMu.Unlock()
	saved, err := s.personal.Save(ctx, info, s.ownerID)
	if err != nil {
		telemetry.Warn("session.personal_info_failed", map[string]any{"user_id": s.ownerID, "error": err})
		return sections.PersonalInfo{}, err
	}
	s.aggregator.ApplyPersonalInfo(ctx, saved)
	return saved, nil
}

// Preview renders the current document.
func (s *Session) Preview() preview.Node {
	return preview.Render(s.aggregator.Document())
}

func (s *Session) PreviewHTML() (string, error) {
	return preview.HTML(s.aggregator.Document())
}

// Export captures the current document to PDF.
func (s *Session) Export(ctx context.Context) (export.File, error) {
	return s.pipeline.Export(ctx, s.ownerID, s.aggregator.Document())
}

func (s *Session) IsExporting() bool {
	return s.pipeline.IsExporting()
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}
