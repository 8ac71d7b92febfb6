package organizer_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	organizer "github.com/thrawn01/file-organizer"
)

func TestTreeLock(t *testing.T) {
	lockDir := t.TempDir()
	root := t.TempDir()

	first := organizer.NewTreeLock(lockDir, root)
	second := organizer.NewTreeLock(lockDir, root+"/")
	assert.Equal(t, first.Path(), second.Path(), "lock name follows the cleaned root")

	require.NoError(t, first.Acquire())
	err := second.Acquire()
	require.Error(t, err)
	assert.ErrorIs(t, err, organizer.ErrTreeLocked)

	require.NoError(t, first.Release())
	require.NoError(t, second.Acquire())
	require.NoError(t, second.Release())

	other := organizer.NewTreeLock(lockDir, t.TempDir())
	assert.NotEqual(t, first.Path(), other.Path())
}

func TestExecuteRefusesLockedTree(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "a.jpg")

	config := organizer.DefaultConfig()
	config.LockDir = t.TempDir()
	org, err := organizer.NewDefaultOrganizer(config, nil)
	require.NoError(t, err)

	scan, err := org.Scan(t.Context(), root, nil)
	require.NoError(t, err)
	plan, err := org.BuildPlan(t.Context(), scan, "", nil)
	require.NoError(t, err)

	held := organizer.NewTreeLock(config.LockDir, root)
	require.NoError(t, held.Acquire())
	defer held.Release()

	_, err = org.Execute(t.Context(), plan, nil)
	assert.ErrorIs(t, err, organizer.ErrTreeLocked)
	_, err = org.PruneEmptyDirectories(t.Context(), root, true, nil)
	assert.ErrorIs(t, err, organizer.ErrTreeLocked)
	assert.FileExists(t, filepath.Join(root, "a.jpg"))
}
