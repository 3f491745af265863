package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// DriverName is the database/sql driver registered by this package.
const DriverName = "sqlite3_memory"

// connectPragmas run on every new pooled connection. foreign_keys is
// per-connection in SQLite, so it cannot live in a migration.
var connectPragmas = []string{
	"PRAGMA foreign_keys = ON",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA journal_mode = WAL",
}

func init() {
	sql.Register(DriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			for _, pragma := range connectPragmas {
				if _, err := conn.Exec(pragma, nil); err != nil {
					return fmt.Errorf("failed to apply %q: %w", pragma, err)
				}
			}
			return nil
		},
	})
}
