package sections

import (
	"context"
	"strings"

	"cv-backend/internal/store"
)

// Repository persists one list section, scoped to an owner.
type Repository[T Item[T]] struct {
	store  store.Store
	mapper Mapper[T]
}

func NewRepository[T Item[T]](s store.Store, m Mapper[T]) *Repository[T] {
	return &Repository[T]{store: s, mapper: m}
}

func (r *Repository[T]) Kind() Kind {
	return r.mapper.Kind
}

// Load returns the owner's items in the table's sort order.
func (r *Repository[T]) Load(ctx context.Context, ownerID string) ([]T, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrUnauthenticated
	}
	rows, err := r.store.Select(ctx, r.mapper.Table, ownerID)
	if err != nil {
		return nil, remote("load", r.mapper.Kind, err)
	}
	items := make([]T, 0, len(rows))
	for _, row := range rows {
		items = append(items, r.mapper.FromRow(row))
	}
	return items, nil
}

// Save inserts items with a temporary or empty id and updates durable ones.
// Updates match on id and owner; a row of another owner is never touched.
func (r *Repository[T]) Save(ctx context.Context, item T, ownerID string) (T, error) {
	var zero T
	if strings.TrimSpace(ownerID) == "" {
		return zero, ErrUnauthenticated
	}
	item = AssignNestedIDs(item)
	row := r.mapper.ToRow(item)

	id := item.ItemID()
	if !IsDurableID(id) {
		newID, err := r.store.Insert(ctx, r.mapper.Table, ownerID, row)
		if err != nil {
			return zero, remote("insert", r.mapper.Kind, err)
		}
		return item.WithID(newID), nil
	}
	if err := r.store.Update(ctx, r.mapper.Table, id, ownerID, row); err != nil {
		return zero, remote("update", r.mapper.Kind, err)
	}
	return item, nil
}

// Delete removes the owner's row with id. Temporary ids are a no-op.
func (r *Repository[T]) Delete(ctx context.Context, id, ownerID string) error {
	if strings.TrimSpace(ownerID) == "" {
		return ErrUnauthenticated
	}
	if !IsDurableID(id) {
		return nil
	}
	return remote("delete", r.mapper.Kind, r.store.Delete(ctx, r.mapper.Table, id, ownerID))
}

// IDs returns the owner's remote id set.
func (r *Repository[T]) IDs(ctx context.Context, ownerID string) ([]string, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrUnauthenticated
	}
	ids, err := r.store.IDs(ctx, r.mapper.Table, ownerID)
	if err != nil {
		return nil, remote("ids", r.mapper.Kind, err)
	}
	return ids, nil
}

// PersonalInfoRepository persists the owner's single personal info row.
type PersonalInfoRepository struct {
	store store.Store
}

func NewPersonalInfoRepository(s store.Store) *PersonalInfoRepository {
	return &PersonalInfoRepository{store: s}
}

// Load reports false when the owner has not saved personal info yet.
func (r *PersonalInfoRepository) Load(ctx context.Context, ownerID string) (PersonalInfo, bool, error) {
	if strings.TrimSpace(ownerID) == "" {
		return PersonalInfo{}, false, ErrUnauthenticated
	}
	rows, err := r.store.Select(ctx, PersonalInfoTable, ownerID)
	if err != nil {
		return PersonalInfo{}, false, remote("load", KindPersonalInfo, err)
	}
	if len(rows) == 0 {
		return PersonalInfo{}, false, nil
	}
	return personalInfoFromRow(rows[0]), true, nil
}

func (r *PersonalInfoRepository) Save(ctx context.Context, info PersonalInfo, ownerID string) (PersonalInfo, error) {
	if strings.TrimSpace(ownerID) == "" {
		return PersonalInfo{}, ErrUnauthenticated
	}
	if _, err := r.store.UpsertOwned(ctx, PersonalInfoTable, ownerID, personalInfoToRow(info)); err != nil {
		return PersonalInfo{}, remote("upsert", KindPersonalInfo, err)
	}
	return info, nil
}
