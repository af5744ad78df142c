package sqlite

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMigrations = fstest.MapFS{
	"migrations/1_items.up.sql":   {Data: []byte("CREATE TABLE items (id TEXT PRIMARY KEY, title TEXT NOT NULL);")},
	"migrations/1_items.down.sql": {Data: []byte("DROP TABLE items;")},
	"migrations/2_tags.up.sql":    {Data: []byte("ALTER TABLE items ADD COLUMN tags TEXT NOT NULL DEFAULT '';")},
	"migrations/2_tags.down.sql":  {Data: []byte("ALTER TABLE items DROP COLUMN tags;")},
}

func TestApplyMigrations(t *testing.T) {
	ctx := context.Background()
	db, err := NewInMemoryDB(ctx)
	require.NoError(t, err)
	defer db.Close()

	version, dirty, err := MigrationVersion(db, testMigrations, "migrations")
	require.NoError(t, err)
	assert.Zero(t, version)
	assert.False(t, dirty)

	require.NoError(t, ApplyMigrations(db, testMigrations, "migrations"))

	// База в памяти должна пережить миграцию: соединение не закрыто.
	_, err = db.ExecContext(ctx, "INSERT INTO items (id, title, tags) VALUES ('a', 'A', 'x')")
	require.NoError(t, err)

	version, dirty, err = MigrationVersion(db, testMigrations, "migrations")
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)
}

func TestApplyMigrations_Idempotent(t *testing.T) {
	db, err := NewInMemoryDB(context.Background())
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, ApplyMigrations(db, testMigrations, "migrations"))
	require.NoError(t, ApplyMigrations(db, testMigrations, "migrations"))
}

func TestApplyMigrations_MissingDir(t *testing.T) {
	db, err := NewInMemoryDB(context.Background())
	require.NoError(t, err)
	defer db.Close()

	err = ApplyMigrations(db, testMigrations, "nope")
	require.Error(t, err)
}
