package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store used in dev mode and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string][]memoryRow
	seq    uint64
}

type memoryRow struct {
	row Row
	seq uint64
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string][]memoryRow)}
}

func (s *MemoryStore) Select(ctx context.Context, t Table, ownerID string) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	var owned []memoryRow
	for _, r := range s.tables[t.Name] {
		if r.row[ColumnUserID] == ownerID {
			owned = append(owned, memoryRow{row: r.row.Clone(), seq: r.seq})
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(owned, func(i, j int) bool {
		for _, o := range t.OrderBy {
			c := compareValues(owned[i].row[o.Column], owned[j].row[o.Column], o.Desc)
			if c != 0 {
				return c < 0
			}
		}
		return owned[i].seq < owned[j].seq
	})

	out := make([]Row, 0, len(owned))
	for _, r := range owned {
		out = append(out, r.row)
	}
	return out, nil
}

func (s *MemoryStore) Insert(ctx context.Context, t Table, ownerID string, row Row) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	stored := pick(t, row)
	id := uuid.NewString()
	stored[ColumnID] = id
	stored[ColumnUserID] = ownerID

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.tables[t.Name] = append(s.tables[t.Name], memoryRow{row: stored, seq: s.seq})
	return id, nil
}

func (s *MemoryStore) Update(ctx context.Context, t Table, id, ownerID string, row Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.tables[t.Name]
	for i := range rows {
		if rows[i].row[ColumnID] == id && rows[i].row[ColumnUserID] == ownerID {
			updated := pick(t, row)
			updated[ColumnID] = id
			updated[ColumnUserID] = ownerID
			rows[i].row = updated
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) Delete(ctx context.Context, t Table, id, ownerID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.tables[t.Name]
	for i := range rows {
		if rows[i].row[ColumnID] == id && rows[i].row[ColumnUserID] == ownerID {
			s.tables[t.Name] = append(rows[:i:i], rows[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) IDs(ctx context.Context, t Table, ownerID string) ([]string, error) {
	rows, err := s.Select(ctx, t, ownerID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		if id, ok := r[ColumnID].(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *MemoryStore) UpsertOwned(ctx context.Context, t Table, ownerID string, row Row) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	for i, r := range s.tables[t.Name] {
		if r.row[ColumnUserID] == ownerID {
			id, _ := r.row[ColumnID].(string)
			updated := pick(t, row)
			updated[ColumnID] = id
			updated[ColumnUserID] = ownerID
			s.tables[t.Name][i].row = updated
			s.mu.Unlock()
			return id, nil
		}
	}
	s.mu.Unlock()
	return s.Insert(ctx, t, ownerID, row)
}

// pick copies only the table's writable columns, as the PG store does.
func pick(t Table, row Row) Row {
	out := make(Row, len(t.Columns)+2)
	for _, col := range t.Columns {
		out[col] = row[col]
	}
	return out
}

// compareValues orders a before b; nil sorts last in both directions.
func compareValues(a, b any, desc bool) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	var c int
	switch av := a.(type) {
	case string:
		bv, _ := b.(string)
		switch {
		case av < bv:
			c = -1
		case av > bv:
			c = 1
		}
	case time.Time:
		bv, _ := b.(time.Time)
		c = av.Compare(bv)
	case bool:
		bv, _ := b.(bool)
		if av != bv {
			if !av {
				c = -1
			} else {
				c = 1
			}
		}
	}
	if desc {
		return -c
	}
	return c
}
