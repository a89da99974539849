package document

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cv-backend/internal/sections"
	"cv-backend/internal/shared/cache"
	"cv-backend/internal/shared/metrics"
	"cv-backend/internal/shared/telemetry"
)

// CacheKey is the snapshot key for an owner.
func CacheKey(ownerID string) string {
	return "cv:document:" + ownerID
}

// Aggregator is the single writer of a session's document and of its cached
// snapshot. The lock is held across the in-memory update and the cache write
// so the cache always ends on the latest merged document.
type Aggregator struct {
	mu        sync.Mutex
	ownerID   string
	doc       CVDocument
	source    Source
	updatedAt time.Time

	cache cache.JSON
	ttl   time.Duration
	now   func() time.Time
}

// NewAggregator returns an empty document for ownerID. A nil cache disables
// snapshot mirroring.
func NewAggregator(ownerID string, c cache.JSON, ttl time.Duration) *Aggregator {
	return &Aggregator{
		ownerID: ownerID,
		source:  SourceEmpty,
		cache:   c,
		ttl:     ttl,
		now:     time.Now,
	}
}

// ApplySectionUpdate replaces one section list and overwrites the snapshot.
func (a *Aggregator) ApplySectionUpdate(ctx context.Context, kind sections.Kind, list any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	next, ok := a.doc.withSection(kind, list)
	if !ok {
		return fmt.Errorf("apply %s: unexpected list type %T", kind, list)
	}
	a.doc = next
	a.touch()
	a.writeSnapshot(ctx)
	return nil
}

// ApplyPersonalInfo replaces the personal info record and overwrites the snapshot.
func (a *Aggregator) ApplyPersonalInfo(ctx context.Context, info sections.PersonalInfo) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.doc.PersonalInfo = info.Clone()
	a.touch()
	a.writeSnapshot(ctx)
}

// HydrateFromCache loads the last snapshot as a display fallback. It never
// overwrites a document that already came from the remote store.
func (a *Aggregator) HydrateFromCache(ctx context.Context) (CVDocument, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cache == nil || a.source == SourceRemote {
		return a.doc.Clone(), false
	}
	var cached CVDocument
	found, err := a.cache.GetJSON(ctx, CacheKey(a.ownerID), &cached)
	if err != nil {
		telemetry.Warn("document.cache_read_failed", map[string]any{"user_id": a.ownerID, "error": err})
	}
	if err != nil || !found {
		metrics.IncSnapshotCacheMiss()
		return a.doc.Clone(), false
	}
	a.doc = cached
	a.source = SourceCache
	a.touch()
	return a.doc.Clone(), true
}

// ReplaceAll installs an authoritative document loaded from the remote store.
// Sections named in keep retain their current lists; they belong to an editor
// whose in-flight save will publish them.
func (a *Aggregator) ReplaceAll(ctx context.Context, doc CVDocument, keep ...sections.Kind) {
	a.mu.Lock()
	defer a.mu.Unlock()
	next := doc.Clone()
	for _, kind := range keep {
		if merged, ok := next.withSection(kind, a.doc.Section(kind)); ok {
			next = merged
		}
	}
	a.doc = next
	a.source = SourceRemote
	a.touch()
	a.writeSnapshot(ctx)
}

// Document returns a deep copy of the current document.
func (a *Aggregator) Document() CVDocument {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.doc.Clone()
}

func (a *Aggregator) Source() Source {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.source
}

func (a *Aggregator) UpdatedAt() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.updatedAt
}

func (a *Aggregator) touch() {
	a.updatedAt = a.now()
}

// writeSnapshot must be called with a.mu held. Failures are logged only: the
// cache is a best-effort mirror.
func (a *Aggregator) writeSnapshot(ctx context.Context) {
	if a.cache == nil {
		return
	}
	if err := a.cache.SetJSON(ctx, CacheKey(a.ownerID), a.doc, a.ttl); err != nil {
		telemetry.Warn("document.cache_write_failed", map[string]any{"user_id": a.ownerID, "error": err})
	}
}
