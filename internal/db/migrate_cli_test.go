package db

import (
	"bytes"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/beaconradar/internal/testutil"
)

func TestRunMigrateCommand(t *testing.T) {
	testutil.MuteLogs(t)
	path := filepath.Join(t.TempDir(), "archive.db")
	latest, err := LatestMigrationVersion()
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, RunMigrateCommand(&out, []string{"status"}, path))
	assert.Contains(t, out.String(), fmt.Sprintf("version: 0 (latest %d, dirty: false)", latest))

	out.Reset()
	require.NoError(t, RunMigrateCommand(&out, []string{"up"}, path))
	assert.Contains(t, out.String(), "all migrations applied")
	assert.Contains(t, out.String(), fmt.Sprintf("version: %d ", latest))

	out.Reset()
	require.NoError(t, RunMigrateCommand(&out, []string{"down"}, path))
	assert.Contains(t, out.String(), "rolled back one migration")
	assert.Contains(t, out.String(), fmt.Sprintf("version: %d ", latest-1))

	// Open brings the archive back to the latest schema.
	db, err := Open(path)
	require.NoError(t, err)
	version, _, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, latest, version)
	require.NoError(t, db.Close())
}

func TestRunMigrateCommand_Usage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.db")
	var out bytes.Buffer

	assert.ErrorIs(t, RunMigrateCommand(&out, nil, path), ErrMigrateUsage)
	assert.ErrorIs(t, RunMigrateCommand(&out, []string{"sideways"}, path), ErrMigrateUsage)
	assert.Error(t, RunMigrateCommand(&out, []string{"up"}, ""))
	assert.Empty(t, out.String())
}
