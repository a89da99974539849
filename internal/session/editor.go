package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cv-backend/internal/editor"
	"cv-backend/internal/sections"
)

// ErrInvalidDraft is returned when a draft payload cannot be decoded.
var ErrInvalidDraft = errors.New("invalid draft")

// SectionEditor is the type-erased view of one section controller used by
// the HTTP layer.
type SectionEditor interface {
	Kind() sections.Kind
	OpenAdd() error
	OpenEdit(id string) error
	SetDraftJSON(raw []byte) error
	Save(ctx context.Context, continueAdding bool) (SaveResult, error)
	Cancel() error
	RequestDelete() error
	ConfirmDelete(ctx context.Context) error
	CancelDelete() error
	RemoveLocal(ctx context.Context, id string) error
	State() any
	Items() any
	Loaded() bool
}

// SaveResult is the serializable outcome of a save.
type SaveResult struct {
	Item    any             `json:"item"`
	Deleted []string        `json:"deleted,omitempty"`
	Failed  []string        `json:"failedDeletes,omitempty"`
	Notices []editor.Notice `json:"notices,omitempty"`
	Editor  any             `json:"editor"`
}

type sectionEditor[T sections.Item[T]] struct {
	ctl  *editor.Controller[T]
	repo *sections.Repository[T]
}

func (s *sectionEditor[T]) Kind() sections.Kind      { return s.ctl.Kind() }
func (s *sectionEditor[T]) OpenAdd() error           { return s.ctl.OpenAdd() }
func (s *sectionEditor[T]) OpenEdit(id string) error { return s.ctl.OpenEdit(id) }
func (s *sectionEditor[T]) Cancel() error            { return s.ctl.Cancel() }
func (s *sectionEditor[T]) RequestDelete() error     { return s.ctl.RequestDelete() }
func (s *sectionEditor[T]) CancelDelete() error      { return s.ctl.CancelDelete() }
func (s *sectionEditor[T]) State() any               { return s.ctl.Snapshot() }
func (s *sectionEditor[T]) Items() any               { return s.ctl.Items() }
func (s *sectionEditor[T]) Loaded() bool             { return s.ctl.Loaded() }

func (s *sectionEditor[T]) ConfirmDelete(ctx context.Context) error {
	return s.ctl.ConfirmDelete(ctx)
}

func (s *sectionEditor[T]) RemoveLocal(ctx context.Context, id string) error {
	return s.ctl.RemoveLocal(ctx, id)
}

// SetDraftJSON decodes raw into the section's model, rejecting unknown fields.
func (s *sectionEditor[T]) SetDraftJSON(raw []byte) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var draft T
	if err := dec.Decode(&draft); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDraft, err)
	}
	return s.ctl.SetDraft(draft)
}

func (s *sectionEditor[T]) Save(ctx context.Context, continueAdding bool) (SaveResult, error) {
	out, err := s.ctl.Save(ctx, continueAdding)
	if err != nil {
		return SaveResult{}, err
	}
	return SaveResult{
		Item:    out.Item,
		Deleted: out.Reconcile.Deleted,
		Failed:  out.Reconcile.Failed,
		Notices: out.Notices,
		Editor:  s.ctl.Snapshot(),
	}, nil
}

func (s *sectionEditor[T]) load(ctx context.Context, ownerID string) ([]T, error) {
	return s.repo.Load(ctx, ownerID)
}
