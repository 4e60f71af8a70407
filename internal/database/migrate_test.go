package database

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(migrationsFS, "migrations/*.down.sql")
	require.NoError(t, err)

	require.NotEmpty(t, ups)
	require.Len(t, downs, len(ups))
}

func TestMigrateDownRejectsNonPositiveSteps(t *testing.T) {
	require.ErrorContains(t, MigrateDown("postgres://unused", 0), "steps must be > 0")
}
