package sqlite

import (
	"database/sql"

	"github.com/twohreichel/pisovereign/internal/storage"
)

// MemoryRepo is the SQLite-backed memory store.
type MemoryRepo struct {
	*storage.SQLStore
}

func NewMemoryRepo(db *sql.DB) *MemoryRepo {
	return &MemoryRepo{SQLStore: storage.NewSQLStore(db, storage.QuestionMark)}
}
