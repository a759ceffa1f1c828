package migrations_test

import (
	"ms-headcount/internal/database/migrations"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const migrationsDir = "../../../migrations"

func TestMigrationFiles_Paired(t *testing.T) {
	ups, err := filepath.Glob(filepath.Join(migrationsDir, "*.up.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, ups)

	for _, up := range ups {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		_, err := os.Stat(down)
		assert.NoError(t, err, "missing down migration for %s", filepath.Base(up))
	}
}

func TestMigrationFiles_EnforceSlotUniqueness(t *testing.T) {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.up.sql"))
	require.NoError(t, err)

	var found bool
	for _, f := range files {
		raw, err := os.ReadFile(f)
		require.NoError(t, err)
		if strings.Contains(string(raw), "UNIQUE INDEX") && strings.Contains(string(raw), "(date, time_slot)") {
			found = true
		}
	}
	assert.True(t, found, "a migration must create the (date, time_slot) unique index")
}

func TestDefaultOptions(t *testing.T) {
	opts := migrations.DefaultOptions()
	assert.Equal(t, "./migrations", opts.MigrationsDir)
	assert.NotEmpty(t, opts.MigrationsTable)
}
