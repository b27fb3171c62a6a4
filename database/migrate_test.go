package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMigrationsOrderedWithDownScripts(t *testing.T) {
	all, err := loadMigrations()
	require.NoError(t, err)
	require.Len(t, all, 2)

	assert.Equal(t, 1, all[0].version)
	assert.Equal(t, "init", all[0].name)
	assert.Contains(t, all[0].upSQL, "idx_assignments_experiment_visitor")
	assert.Contains(t, all[0].downSQL, "DROP TABLE IF EXISTS events")

	assert.Equal(t, 2, all[1].version)
	assert.Equal(t, "admins", all[1].name)
}

func TestInitMigrationIndexesEventColumns(t *testing.T) {
	all, err := loadMigrations()
	require.NoError(t, err)

	for _, col := range []string{"visitor_id", "event_type", "variant", "experiment_id", "created_at"} {
		assert.Contains(t, all[0].upSQL, "idx_events_"+col)
	}
	assert.Contains(t, all[0].upSQL, "ON DELETE CASCADE")
}
