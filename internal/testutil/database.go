// Package testutil provides audit database fixtures for tests.
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/bates-must-flow/internal/model"
	"github.com/Veraticus/bates-must-flow/internal/storage"
)

// TestDB is a migrated in-memory audit database.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// SetupTestDB creates a migrated in-memory database seeded with runs. It is
// closed when the test ends.
//
// Example:
//
//	db := testutil.SetupTestDB(t,
//		testutil.NewRun("r1").Finalized(101, 103).Build(),
//		testutil.NewRun("r2").Failed(model.KindMissingStamps).Build(),
//	)
func SetupTestDB(t *testing.T, runs ...model.RunRecord) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	db := &TestDB{Storage: store, t: t}
	db.Seed(runs...)
	return db
}

// Seed records runs or fails the test.
func (db *TestDB) Seed(runs ...model.RunRecord) {
	db.t.Helper()
	for _, r := range runs {
		if err := db.Storage.RecordRun(context.Background(), r); err != nil {
			db.t.Fatalf("failed to seed run %q: %v", r.ID, err)
		}
	}
}

// MustGetRun returns the run with the given ID or fails the test.
func (db *TestDB) MustGetRun(id string) model.RunRecord {
	db.t.Helper()
	r, err := db.Storage.GetRun(context.Background(), id)
	if err != nil {
		db.t.Fatalf("failed to get run %q: %v", id, err)
	}
	return *r
}
