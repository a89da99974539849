// Package editor implements the per-section add/edit/delete state machine.
package editor

import (
	"context"
	"errors"
	"slices"
	"sync"

	"cv-backend/internal/document"
	"cv-backend/internal/reconcile"
	"cv-backend/internal/sections"
	"cv-backend/internal/shared/metrics"
	"cv-backend/internal/shared/telemetry"
)

type Status string

const (
	StatusIdle       Status = "idle"
	StatusAddEditing Status = "addEditing"
	StatusSaving     Status = "saving"
)

const maxNotices = 10

// Repository is the remote side of one section.
type Repository[T any] interface {
	Kind() sections.Kind
	Load(ctx context.Context, ownerID string) ([]T, error)
	Save(ctx context.Context, item T, ownerID string) (T, error)
	Delete(ctx context.Context, id, ownerID string) error
	IDs(ctx context.Context, ownerID string) ([]string, error)
}

// Aggregator receives every settled section list.
type Aggregator interface {
	ApplySectionUpdate(ctx context.Context, kind sections.Kind, list any) error
}

// Notice is a non-fatal message raised by the last action.
type Notice struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type Config[T any] struct {
	OwnerID    string
	Repo       Repository[T]
	Reconciler *reconcile.Reconciler
	Aggregator Aggregator
	// NewDraft returns a defaulted draft. Zero value when nil.
	NewDraft func() T
	// Validate defaults to sections.Validate for the repository's kind.
	Validate func(T) sections.FieldErrors
}

// Controller owns a section list and the draft being edited. Transitions are
// serialized by mu; the Saving status keeps a second action out while the
// lock is released for remote calls.
type Controller[T sections.Item[T]] struct {
	cfg  Config[T]
	kind sections.Kind

	mu               sync.Mutex
	status           Status
	draft            T
	targetID         string
	confirmingDelete bool
	items            []T
	fieldErrors      sections.FieldErrors
	lastErr          error
	notices          []Notice
	lastReconcile    reconcile.Result
	// loaded is set once the list came from the remote store. Until then
	// the list is not a basis for deleting remote rows.
	loaded bool
}

func New[T sections.Item[T]](cfg Config[T]) *Controller[T] {
	kind := cfg.Repo.Kind()
	if cfg.Validate == nil {
		cfg.Validate = func(v T) sections.FieldErrors { return sections.Validate(kind, v) }
	}
	if cfg.NewDraft == nil {
		cfg.NewDraft = func() T {
			var zero T
			return zero
		}
	}
	if cfg.Reconciler == nil {
		cfg.Reconciler = &reconcile.Reconciler{}
	}
	return &Controller[T]{cfg: cfg, kind: kind, status: StatusIdle}
}

func (c *Controller[T]) Kind() sections.Kind {
	return c.kind
}

// OpenAdd opens the form with a fresh draft. The temporary id is assigned at save.
func (c *Controller[T]) OpenAdd() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.status {
	case StatusSaving:
		return ErrBusy
	case StatusAddEditing:
		if c.confirmingDelete {
			return ErrInvalidTransition
		}
	}
	c.enterEditing(c.cfg.NewDraft(), "")
	return nil
}

// OpenEdit opens the form on a copy of the item with id.
func (c *Controller[T]) OpenEdit(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == StatusSaving {
		return ErrBusy
	}
	if c.status != StatusIdle {
		return ErrInvalidTransition
	}
	idx := c.indexOf(id)
	if idx < 0 {
		return ErrItemNotFound
	}
	c.enterEditing(c.items[idx].Clone(), id)
	return nil
}

// OpenEditAt resolves a list position to an id and opens it.
func (c *Controller[T]) OpenEditAt(index int) error {
	c.mu.Lock()
	if index < 0 || index >= len(c.items) {
		c.mu.Unlock()
		return ErrItemNotFound
	}
	id := c.items[index].ItemID()
	c.mu.Unlock()
	return c.OpenEdit(id)
}

// UpdateDraft applies a pure update to the draft. The draft keeps the id of
// the item being edited whatever fn returns.
func (c *Controller[T]) UpdateDraft(fn func(T) T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == StatusSaving {
		return ErrBusy
	}
	if c.status != StatusAddEditing || c.confirmingDelete {
		return ErrInvalidTransition
	}
	c.draft = fn(c.draft.Clone()).WithID(c.targetID)
	return nil
}

func (c *Controller[T]) SetDraft(draft T) error {
	return c.UpdateDraft(func(T) T { return draft })
}

// Outcome describes a settled save.
type Outcome[T any] struct {
	Item      T
	Reconcile reconcile.Result
	Notices   []Notice
}

// Save validates the draft, persists it, reconciles remote orphans and
// publishes the canonical list. On success the controller returns to Idle,
// or to a fresh draft when continueAdding is set.
func (c *Controller[T]) Save(ctx context.Context, continueAdding bool) (Outcome[T], error) {
	c.mu.Lock()
	if c.status == StatusSaving {
		c.mu.Unlock()
		return Outcome[T]{}, ErrBusy
	}
	if c.status != StatusAddEditing || c.confirmingDelete {
		c.mu.Unlock()
		return Outcome[T]{}, ErrInvalidTransition
	}
	c.notices = nil
	c.lastErr = nil
	if errs := c.cfg.Validate(c.draft); len(errs) > 0 {
		c.fieldErrors = errs
		c.mu.Unlock()
		metrics.IncSectionSaveFailed(string(c.kind))
		return Outcome[T]{}, &ValidationError{Fields: errs}
	}
	c.fieldErrors = nil

	item := sections.AssignNestedIDs(c.draft.Clone())
	if c.targetID == "" {
		item = item.WithID(sections.NewTempID())
	}
	previous := slices.Clone(c.items)
	if idx := c.indexOf(item.ItemID()); idx >= 0 {
		c.items[idx] = item
	} else {
		c.items = append(c.items, item)
	}
	c.status = StatusSaving
	c.mu.Unlock()

	saved, err := c.cfg.Repo.Save(ctx, item, c.cfg.OwnerID)
	if err != nil {
		c.mu.Lock()
		c.items = previous
		c.status = StatusAddEditing
		c.lastErr = err
		c.mu.Unlock()
		metrics.IncSectionSaveFailed(string(c.kind))
		telemetry.Warn("editor.save_failed", map[string]any{
			"section": string(c.kind),
			"user_id": c.cfg.OwnerID,
			"error":   err,
		})
		return Outcome[T]{}, err
	}

	c.mu.Lock()
	if idx := c.indexOf(item.ItemID()); idx >= 0 {
		c.items[idx] = saved
	}
	kept := document.ItemIDs(c.items)
	local := slices.Clone(c.items)
	loaded := c.loaded
	c.mu.Unlock()

	var (
		res     reconcile.Result
		notices []Notice
	)
	if loaded {
		res, notices = c.reconcile(ctx, kept)
	}
	list, reloaded := c.canonical(ctx, local, res.Failed, &notices)
	if err := c.cfg.Aggregator.ApplySectionUpdate(ctx, c.kind, list); err != nil {
		notices = append(notices, Notice{Kind: "document", Message: err.Error()})
	}
	metrics.IncSectionSave(string(c.kind))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = list
	c.loaded = c.loaded || reloaded
	c.lastReconcile = res
	c.notices = capNotices(notices)
	if continueAdding {
		c.enterEditing(c.cfg.NewDraft(), "")
	} else {
		c.enterIdle()
	}
	return Outcome[T]{Item: saved, Reconcile: res, Notices: slices.Clone(c.notices)}, nil
}

// RemoveLocal drops an item from the list without a remote call. The next
// save's reconciliation deletes it remotely.
func (c *Controller[T]) RemoveLocal(ctx context.Context, id string) error {
	c.mu.Lock()
	if c.status == StatusSaving {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.status == StatusAddEditing && c.targetID == id {
		c.mu.Unlock()
		return ErrInvalidTransition
	}
	idx := c.indexOf(id)
	if idx < 0 {
		c.mu.Unlock()
		return ErrItemNotFound
	}
	c.items = slices.Delete(slices.Clone(c.items), idx, idx+1)
	list := slices.Clone(c.items)
	c.mu.Unlock()
	return c.cfg.Aggregator.ApplySectionUpdate(ctx, c.kind, list)
}

// RequestDelete asks for confirmation before deleting the item being edited.
func (c *Controller[T]) RequestDelete() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == StatusSaving {
		return ErrBusy
	}
	if c.status != StatusAddEditing || c.targetID == "" || c.confirmingDelete {
		return ErrInvalidTransition
	}
	c.confirmingDelete = true
	return nil
}

// CancelDelete leaves the confirmation step with no other change.
func (c *Controller[T]) CancelDelete() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.confirmingDelete {
		return ErrInvalidTransition
	}
	c.confirmingDelete = false
	return nil
}

// ConfirmDelete deletes the target remotely, reloads the section and returns
// to Idle. A temporary target is dropped locally only.
func (c *Controller[T]) ConfirmDelete(ctx context.Context) error {
	c.mu.Lock()
	if c.status == StatusSaving {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.status != StatusAddEditing || !c.confirmingDelete {
		c.mu.Unlock()
		return ErrInvalidTransition
	}
	id := c.targetID
	c.notices = nil
	c.lastErr = nil
	c.status = StatusSaving
	c.mu.Unlock()

	if sections.IsDurableID(id) {
		if err := c.cfg.Repo.Delete(ctx, id, c.cfg.OwnerID); err != nil {
			c.mu.Lock()
			c.status = StatusAddEditing
			c.confirmingDelete = false
			c.lastErr = err
			c.mu.Unlock()
			telemetry.Warn("editor.delete_failed", map[string]any{
				"section": string(c.kind),
				"user_id": c.cfg.OwnerID,
				"item_id": id,
				"error":   err,
			})
			return err
		}
	}

	c.mu.Lock()
	local := slices.DeleteFunc(slices.Clone(c.items), func(item T) bool { return item.ItemID() == id })
	c.mu.Unlock()

	var (
		notices  []Notice
		reloaded bool
	)
	list := local
	if sections.IsDurableID(id) {
		list, reloaded = c.canonical(ctx, local, nil, &notices)
	}
	if err := c.cfg.Aggregator.ApplySectionUpdate(ctx, c.kind, list); err != nil {
		notices = append(notices, Notice{Kind: "document", Message: err.Error()})
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = list
	c.loaded = c.loaded || reloaded
	c.notices = capNotices(notices)
	c.enterIdle()
	return nil
}

// Cancel discards the draft. It is refused until an in-flight save settles.
func (c *Controller[T]) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.status {
	case StatusSaving:
		return ErrBusy
	case StatusAddEditing:
		c.enterIdle()
	}
	return nil
}

// Replace installs an authoritative list, keeping any open draft.
func (c *Controller[T]) Replace(items []T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == StatusSaving {
		return ErrBusy
	}
	c.items = cloneList(items)
	c.loaded = true
	if c.targetID != "" && c.indexOf(c.targetID) < 0 {
		c.enterIdle()
	}
	return nil
}

// Loaded reports whether the list has been loaded from the remote store.
func (c *Controller[T]) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// Items returns a copy of the current list.
func (c *Controller[T]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneList(c.items)
}

// State is the serializable view of a controller.
type State[T any] struct {
	Section          sections.Kind        `json:"section"`
	Status           Status               `json:"status"`
	Draft            *T                   `json:"draft,omitempty"`
	TargetID         string               `json:"targetId,omitempty"`
	ConfirmingDelete bool                 `json:"confirmingDelete"`
	FieldErrors      sections.FieldErrors `json:"fieldErrors,omitempty"`
	LastError        string               `json:"lastError,omitempty"`
	Notices          []Notice             `json:"notices,omitempty"`
	Items            []T                  `json:"items"`
}

func (c *Controller[T]) Snapshot() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := State[T]{
		Section:          c.kind,
		Status:           c.status,
		TargetID:         c.targetID,
		ConfirmingDelete: c.confirmingDelete,
		Notices:          slices.Clone(c.notices),
		Items:            cloneList(c.items),
	}
	if st.Items == nil {
		st.Items = []T{}
	}
	if c.status != StatusIdle {
		draft := c.draft.Clone()
		st.Draft = &draft
	}
	if len(c.fieldErrors) > 0 {
		st.FieldErrors = make(sections.FieldErrors, len(c.fieldErrors))
		for k, v := range c.fieldErrors {
			st.FieldErrors[k] = v
		}
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	return st
}

func (c *Controller[T]) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// LastReconcile reports the orphan deletions of the most recent save.
func (c *Controller[T]) LastReconcile() reconcile.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastReconcile
}

func (c *Controller[T]) reconcile(ctx context.Context, kept []string) (reconcile.Result, []Notice) {
	res, err := c.cfg.Reconciler.Reconcile(ctx, c.cfg.Repo, c.cfg.OwnerID, kept)
	if err == nil {
		return res, nil
	}
	var recErr *reconcile.ReconciliationError
	if !errors.As(err, &recErr) {
		telemetry.Warn("editor.reconcile_failed", map[string]any{
			"section": string(c.kind),
			"user_id": c.cfg.OwnerID,
			"error":   err,
		})
	}
	return res, []Notice{{Kind: "reconciliation", Message: err.Error()}}
}

// canonical reloads the section and drops rows whose orphan deletion failed,
// so they stay candidates for the next pass. The local list is used when the
// reload fails.
func (c *Controller[T]) canonical(ctx context.Context, local []T, stillOrphaned []string, notices *[]Notice) ([]T, bool) {
	loaded, err := c.cfg.Repo.Load(ctx, c.cfg.OwnerID)
	if err != nil {
		telemetry.Warn("editor.reload_failed", map[string]any{
			"section": string(c.kind),
			"user_id": c.cfg.OwnerID,
			"error":   err,
		})
		*notices = append(*notices, Notice{Kind: "reload", Message: err.Error()})
		return local, false
	}
	if len(stillOrphaned) == 0 {
		return loaded, true
	}
	return slices.DeleteFunc(loaded, func(item T) bool {
		return slices.Contains(stillOrphaned, item.ItemID())
	}), true
}

func (c *Controller[T]) enterEditing(draft T, targetID string) {
	c.status = StatusAddEditing
	c.draft = draft.WithID(targetID)
	c.targetID = targetID
	c.confirmingDelete = false
	c.fieldErrors = nil
	c.lastErr = nil
}

func (c *Controller[T]) enterIdle() {
	var zero T
	c.status = StatusIdle
	c.draft = zero
	c.targetID = ""
	c.confirmingDelete = false
	c.fieldErrors = nil
}

func (c *Controller[T]) indexOf(id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(c.items, func(item T) bool { return item.ItemID() == id })
}

func cloneList[T sections.Item[T]](items []T) []T {
	if items == nil {
		return nil
	}
	out := make([]T, len(items))
	for i, item := range items {
		out[i] = item.Clone()
	}
	return out
}

func capNotices(n []Notice) []Notice {
	if len(n) > maxNotices {
		return n[len(n)-maxNotices:]
	}
	return n
}
