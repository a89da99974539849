package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// PGStore persists section rows in Postgres. Table and column names come from
// the static Table descriptors and are quoted before being spliced into SQL.
type PGStore struct {
	DB *sql.DB
}

func (s *PGStore) Select(ctx context.Context, t Table, ownerID string) ([]Row, error) {
	query := fmt.Sprintf("SELECT %s::text AS id, %s, %s FROM %s WHERE %s = $1%s",
		ident(ColumnID), ident(ColumnUserID), identList(t.Columns), ident(t.Name), ident(ColumnUserID), orderClause(t.OrderBy))
	rows, err := s.DB.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := append([]string{ColumnID, ColumnUserID}, t.Columns...)
	var out []Row
	for rows.Next() {
		values := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			row[col] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *PGStore) Insert(ctx context.Context, t Table, ownerID string, row Row) (string, error) {
	cols := append([]string{ColumnUserID}, t.Columns...)
	args := append([]any{ownerID}, columnArgs(t, row)...)
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s::text",
		ident(t.Name), identList(cols), placeholders(1, len(cols)), ident(ColumnID))

	var id string
	if err := s.DB.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

func (s *PGStore) Update(ctx context.Context, t Table, id, ownerID string, row Row) error {
	sets := make([]string, 0, len(t.Columns)+1)
	for i, col := range t.Columns {
		sets = append(sets, fmt.Sprintf("%s = $%d", ident(col), i+1))
	}
	sets = append(sets, "updated_at = now()")
	n := len(t.Columns)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s::text = $%d AND %s = $%d",
		ident(t.Name), strings.Join(sets, ", "), ident(ColumnID), n+1, ident(ColumnUserID), n+2)

	args := append(columnArgs(t, row), id, ownerID)
	res, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *PGStore) Delete(ctx context.Context, t Table, id, ownerID string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s::text = $1 AND %s = $2",
		ident(t.Name), ident(ColumnID), ident(ColumnUserID))
	res, err := s.DB.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *PGStore) IDs(ctx context.Context, t Table, ownerID string) ([]string, error) {
	query := fmt.Sprintf("SELECT %s::text FROM %s WHERE %s = $1%s",
		ident(ColumnID), ident(t.Name), ident(ColumnUserID), orderClause(t.OrderBy))
	rows, err := s.DB.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PGStore) UpsertOwned(ctx context.Context, t Table, ownerID string, row Row) (string, error) {
	if !t.SingletonPerOwner {
		return "", fmt.Errorf("upsert on %s: table is not keyed by owner", t.Name)
	}
	cols := append([]string{ColumnUserID}, t.Columns...)
	updates := make([]string, 0, len(t.Columns)+1)
	for _, col := range t.Columns {
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", ident(col), ident(col)))
	}
	updates = append(updates, "updated_at = now()")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s RETURNING %s::text",
		ident(t.Name), identList(cols), placeholders(1, len(cols)), ident(ColumnUserID), strings.Join(updates, ", "), ident(ColumnID))

	args := append([]any{ownerID}, columnArgs(t, row)...)
	var id string
	if err := s.DB.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func columnArgs(t Table, row Row) []any {
	args := make([]any, 0, len(t.Columns))
	for _, col := range t.Columns {
		args = append(args, row[col])
	}
	return args
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func identList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = ident(n)
	}
	return strings.Join(quoted, ", ")
}

func placeholders(start, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ", ")
}

func orderClause(order []Order) string {
	if len(order) == 0 {
		return ""
	}
	parts := make([]string, 0, len(order)+1)
	for _, o := range order {
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		parts = append(parts, fmt.Sprintf("%s %s NULLS LAST", ident(o.Column), dir))
	}
	parts = append(parts, "created_at ASC")
	return " ORDER BY " + strings.Join(parts, ", ")
}

// IsNotFound reports whether err means the row is absent or owned by someone else.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
