package store

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
)

var testTable = Table{
	Name:    "education",
	Columns: []string{"institution", "start_date"},
	OrderBy: []Order{{Column: "start_date", Desc: true}},
}

func TestMemoryStoreScopesRowsByOwner(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	id, err := s.Insert(ctx, testTable, "alice", Row{"institution": "MIT", "start_date": "2019-09-01"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := s.Insert(ctx, testTable, "bob", Row{"institution": "ETH"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	rows, err := s.Select(ctx, testTable, "alice")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(rows) != 1 || rows[0]["institution"] != "MIT" || rows[0][ColumnID] != id {
		t.Fatalf("unexpected rows: %+v", rows)
	}

	if err := s.Update(ctx, testTable, id, "bob", Row{"institution": "Stolen"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on foreign update, got %v", err)
	}
	if err := s.Delete(ctx, testTable, id, "bob"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on foreign delete, got %v", err)
	}
	if err := s.Delete(ctx, testTable, id, "alice"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	ids, _ := s.IDs(ctx, testTable, "alice")
	if len(ids) != 0 {
		t.Fatalf("expected no ids after delete, got %v", ids)
	}
}

func TestMemoryStoreOrdersByStartDateDescending(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for _, start := range []any{"2015-01-01", nil, "2021-06-01", "2018-03-01"} {
		if _, err := s.Insert(ctx, testTable, "alice", Row{"institution": "x", "start_date": start}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	rows, err := s.Select(ctx, testTable, "alice")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	var got []any
	for _, r := range rows {
		got = append(got, r["start_date"])
	}
	want := []any{"2021-06-01", "2018-03-01", "2015-01-01", nil}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestMemoryStoreUpsertOwnedKeepsOneRow(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	table := Table{Name: "personal_info", Columns: []string{"full_name"}, SingletonPerOwner: true}
	first, err := s.UpsertOwned(ctx, table, "alice", Row{"full_name": "Ada"})
	if err != nil {
		t.Fatalf("UpsertOwned: %v", err)
	}
	second, err := s.UpsertOwned(ctx, table, "alice", Row{"full_name": "Ada Lovelace"})
	if err != nil {
		t.Fatalf("UpsertOwned: %v", err)
	}
	if first != second {
		t.Fatalf("expected stable id, got %q then %q", first, second)
	}
	rows, _ := s.Select(ctx, table, "alice")
	if len(rows) != 1 || rows[0]["full_name"] != "Ada Lovelace" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestPGStoreInsertReturnsID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "education" ("user_id", "institution", "start_date") VALUES ($1, $2, $3) RETURNING "id"::text`)).
		WithArgs("alice", "MIT", "2019-09-01").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("0d6f1c6e-1111-4222-8333-444455556666"))

	s := &PGStore{DB: db}
	id, err := s.Insert(context.Background(), testTable, "alice", Row{"institution": "MIT", "start_date": "2019-09-01"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if id != "0d6f1c6e-1111-4222-8333-444455556666" {
		t.Fatalf("unexpected id %q", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGStoreUpdateWithoutMatchIsNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "education" SET "institution" = $1, "start_date" = $2, updated_at = now() WHERE "id"::text = $3 AND "user_id" = $4`)).
		WithArgs("MIT", nil, "row-1", "mallory").
		WillReturnResult(sqlmock.NewResult(0, 0))

	s := &PGStore{DB: db}
	err = s.Update(context.Background(), testTable, "row-1", "mallory", Row{"institution": "MIT"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGStoreSelectScansColumns(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id"::text AS id, "user_id", "institution", "start_date" FROM "education" WHERE "user_id" = $1 ORDER BY "start_date" DESC NULLS LAST, created_at ASC`)).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "institution", "start_date"}).
			AddRow("row-1", "alice", "MIT", "2019-09-01"))

	s := &PGStore{DB: db}
	rows, err := s.Select(context.Background(), testTable, "alice")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	want := []Row{{"id": "row-1", "user_id": "alice", "institution": "MIT", "start_date": "2019-09-01"}}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
}
