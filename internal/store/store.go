// Package store is the remote table-backed store the CV sections persist to.
// Every operation is scoped to an owner; a row is only visible to, and only
// mutable by, the owner recorded in its user_id column.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no row matches both the id and the owner.
var ErrNotFound = errors.New("row not found")

const (
	ColumnID     = "id"
	ColumnUserID = "user_id"
)

// Row is the storage shape of a record: snake_case column name to value.
type Row map[string]any

// Clone returns a shallow copy of r.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Order is one sort key of a table.
type Order struct {
	Column string
	Desc   bool
}

// Table describes a section table. Columns lists the writable columns,
// excluding id and user_id.
type Table struct {
	Name    string
	Columns []string
	OrderBy []Order
	// SingletonPerOwner marks tables holding at most one row per owner.
	SingletonPerOwner bool
}

// Store is implemented by PGStore and MemoryStore.
type Store interface {
	Select(ctx context.Context, t Table, ownerID string) ([]Row, error)
	Insert(ctx context.Context, t Table, ownerID string, row Row) (string, error)
	Update(ctx context.Context, t Table, id, ownerID string, row Row) error
	Delete(ctx context.Context, t Table, id, ownerID string) error
	IDs(ctx context.Context, t Table, ownerID string) ([]string, error)
	UpsertOwned(ctx context.Context, t Table, ownerID string, row Row) (string, error)
}
