package store

import (
	"github.com/jmoiron/sqlx"
)

// Store is the repository over a migrated database. It is safe for concurrent use.
type Store struct {
	db *sqlx.DB
}

// New wraps db. The schema must already be migrated.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying handle.
func (s *Store) DB() *sqlx.DB {
	return s.db
}
