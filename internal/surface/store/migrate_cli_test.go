package store

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/surface.report/internal/testutil"
)

func TestRunMigrateCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cli.db")
	run := func(args ...string) (string, error) {
		var out bytes.Buffer
		err := RunMigrateCommand(args, dbPath, &out)
		return out.String(), err
	}

	out, err := run("status")
	require.NoError(t, err)
	assert.Contains(t, out, "Current version: 0")
	assert.Contains(t, out, "2 version(s) behind")

	out, err = run("up")
	require.NoError(t, err)
	assert.Contains(t, out, "Current version: 2 (dirty: false)")

	out, err = run("down")
	require.NoError(t, err)
	assert.Contains(t, out, "Current version: 1")

	_, err = run("version", "2")
	require.NoError(t, err)
	out, err = run("status")
	require.NoError(t, err)
	assert.Contains(t, out, "up to date")

	out, err = run("force", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "forced to 1")
}

func TestRunMigrateCommandErrors(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cli.db")
	var out bytes.Buffer

	assert.Error(t, RunMigrateCommand(nil, dbPath, &out))
	assert.Contains(t, out.String(), "Usage: surface migrate")

	testutil.AssertError(t, RunMigrateCommand([]string{"sideways"}, dbPath, &out))
	testutil.AssertError(t, RunMigrateCommand([]string{"force"}, dbPath, &out))
	testutil.AssertError(t, RunMigrateCommand([]string{"version", "x"}, dbPath, &out))
	testutil.AssertNoError(t, RunMigrateCommand([]string{"help"}, dbPath, &out))
}
