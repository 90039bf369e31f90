// Package storetest opens migrated in-memory databases for package tests.
package storetest

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/MrEthical07/onboardAuth/internal/store"
)

// NewDB returns a migrated in-memory SQLite database closed at test cleanup.
func NewDB(t testing.TB) *sqlx.DB {
	t.Helper()
	ctx := context.Background()
	db, err := store.Open(ctx, store.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := store.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
