package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), "sqlite3", filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_SaveAndList(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	runs := []Run{
		{ID: "a", FileName: "jan.csv", Periodicity: "monthly", Rows: 10, Customers: 5, Products: 7, Status: StatusSucceeded, DurationMs: 12, CreatedAt: base},
		{ID: "b", FileName: "feb.xlsx", Periodicity: "yearly", Status: StatusFailed, Error: "unresolved columns: quantity", CreatedAt: base.Add(time.Hour)},
		{ID: "c", FileName: "mar.csv", Periodicity: "monthly", Rows: 3, Status: StatusSucceeded, CreatedAt: base.Add(2 * time.Hour)},
	}
	for _, r := range runs {
		if err := s.SaveRun(ctx, r); err != nil {
			t.Fatalf("SaveRun(%s) error = %v", r.ID, err)
		}
	}

	got, err := s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListRuns() returned %d runs, want 2", len(got))
	}
	if got[0].ID != "c" || got[1].ID != "b" {
		t.Errorf("order = %s,%s, want c,b", got[0].ID, got[1].ID)
	}
	if got[1].Error != "unresolved columns: quantity" || got[1].Status != StatusFailed {
		t.Errorf("failed run = %+v", got[1])
	}
	if !got[0].CreatedAt.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("CreatedAt = %v", got[0].CreatedAt)
	}
}

func TestStore_ListEmpty(t *testing.T) {
	s := openTestStore(t)

	got, err := s.ListRuns(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("ListRuns() = %v, want empty non-nil slice", got)
	}
}

func TestStore_DuplicateID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	run := Run{ID: "dup", FileName: "x.csv", Periodicity: "monthly", Status: StatusSucceeded}

	if err := s.SaveRun(ctx, run); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveRun(ctx, run); err == nil {
		t.Error("expected primary key violation")
	}
}

func TestStore_MigrateIsIdempotent(t *testing.T) {
	s := openTestStore(t)

	if err := s.Migrate(context.Background()); err != nil {
		t.Errorf("second Migrate() error = %v", err)
	}
}

func TestRebind(t *testing.T) {
	q := "INSERT INTO runs (a, b) VALUES (?, ?)"

	pg := &Store{driver: "postgres"}
	if got := pg.rebind(q); got != "INSERT INTO runs (a, b) VALUES ($1, $2)" {
		t.Errorf("postgres rebind = %q", got)
	}

	lite := &Store{driver: "sqlite3"}
	if got := lite.rebind(q); got != q {
		t.Errorf("sqlite rebind = %q", got)
	}
}
