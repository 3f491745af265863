package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twohreichel/pisovereign/internal/core"
	"github.com/twohreichel/pisovereign/internal/storage/storetest"
)

func testDSN(t *testing.T) string {
	t.Helper()

	dsn := os.Getenv("SOVEREIGN_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SOVEREIGN_TEST_POSTGRES_DSN not set")
	}
	return dsn
}

func TestMemoryRepo(t *testing.T) {
	dsn := testDSN(t)

	storetest.Run(t, func(t *testing.T) core.MemoryStore {
		ctx := context.Background()

		db, err := NewDB(ctx, dsn)
		require.NoError(t, err)

		_, err = db.ExecContext(ctx, `TRUNCATE memory_embeddings, memories`)
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })

		return NewMemoryRepo(db)
	})
}

func TestNewDB_EmptyDSN(t *testing.T) {
	_, err := NewDB(context.Background(), "")
	assert.Error(t, err)
}
