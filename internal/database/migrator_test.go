package database

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/disease-literature-harvester/migrations"
)

func TestNewMigrator_Validation(t *testing.T) {
	logger := zerolog.Nop()

	t.Run("fails with nil database", func(t *testing.T) {
		m, err := NewMigrator(nil, migrations.FS, logger)
		assert.Nil(t, m)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database is required")
	})

	t.Run("fails with nil pool", func(t *testing.T) {
		m, err := NewMigrator(&DB{}, migrations.FS, logger)
		assert.Nil(t, m)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database pool not initialized")
	})

	t.Run("fails with nil filesystem", func(t *testing.T) {
		db := setupTestDB(t)
		m, err := NewMigrator(db, nil, logger)
		assert.Nil(t, m)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "migrations filesystem is required")
	})
}

func TestEmbeddedMigrations(t *testing.T) {
	for _, name := range []string{
		"000001_create_harvest_runs.up.sql",
		"000001_create_harvest_runs.down.sql",
		"000002_create_canonical_records.up.sql",
		"000002_create_canonical_records.down.sql",
	} {
		data, err := migrations.FS.ReadFile(name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, data, name)
	}
}

func TestMigrator_Lifecycle(t *testing.T) {
	db := setupTestDB(t)

	m, err := NewMigrator(db, migrations.FS, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, m.Close()) })

	require.NoError(t, m.Up())
	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	// Applying again is a no-op.
	require.NoError(t, m.Up())

	require.NoError(t, m.Steps(-1))
	version, _, err = m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	require.NoError(t, m.Steps(1))
	require.NoError(t, m.Steps(1), "stepping past the latest version is a no-op")
}
