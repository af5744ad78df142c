package pg

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMigrations = fstest.MapFS{
	"migrations/1_probe.up.sql":   {Data: []byte("CREATE TABLE IF NOT EXISTS pg_migrate_probe (id INT PRIMARY KEY);")},
	"migrations/1_probe.down.sql": {Data: []byte("DROP TABLE IF EXISTS pg_migrate_probe;")},
}

func TestApplyMigrations_MissingDir(t *testing.T) {
	t.Parallel()

	_, err := ApplyMigrations("postgres://localhost/db", testMigrations, "absent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "iofs")
}

func TestApplyMigrations_Integration(t *testing.T) {
	dsn := testDSN(t)

	info, err := ApplyMigrations(dsn, testMigrations, "migrations")
	require.NoError(t, err)
	assert.False(t, info.Dirty)

	again, err := ApplyMigrations(dsn, testMigrations, "migrations")
	require.NoError(t, err)
	assert.False(t, again.Applied)
	assert.Equal(t, again.CurrentVersion, again.FinalVersion)
}
