package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"migrate", "up"},
		{"migrate", "down"},
		{"migrate", "status"},
		{"seed"},
		{"admin", "create"},
	} {
		cmd, rest, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Empty(t, rest)
		assert.Equal(t, path[len(path)-1], cmd.Name())
		assert.NotNil(t, cmd.RunE, path)
	}
}

func TestAdminCreateRequiresEmail(t *testing.T) {
	flag := adminCreateCmd.Flags().Lookup("email")
	require.NotNil(t, flag)
	assert.Equal(t, []string{"true"}, flag.Annotations["cobra_annotation_bash_completion_one_required_flag"])
}

func TestMigrateDownRejectsNegativeTarget(t *testing.T) {
	migrateTarget = -1
	defer func() { migrateTarget = 0 }()
	err := runMigrateDown(migrateDownCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--to")
}
