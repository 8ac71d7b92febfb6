package organizer_test

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	organizer "github.com/thrawn01/file-organizer"
)

func newOrganizer(t *testing.T, logger *slog.Logger) *organizer.DefaultOrganizer {
	t.Helper()
	config := organizer.DefaultConfig()
	config.LockDir = t.TempDir()
	org, err := organizer.NewDefaultOrganizer(config, logger)
	require.NoError(t, err)
	return org
}

func TestOrganizeEndToEnd(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeTree(t, root, "a.jpg", "b.txt", "note", "x.jpg", "zfolder/x.jpg")

	org := newOrganizer(t, nil)
	scan, err := org.Scan(ctx, root, nil)
	require.NoError(t, err)

	plan, err := org.BuildPlan(ctx, scan, "", nil)
	require.NoError(t, err)

	destinations := make(map[string]string)
	for _, op := range plan.Operations {
		rel, err := filepath.Rel(root, op.Destination)
		require.NoError(t, err)
		src, err := filepath.Rel(root, op.Source)
		require.NoError(t, err)
		destinations[filepath.ToSlash(src)] = filepath.ToSlash(rel)
	}
	assert.Equal(t, map[string]string{
		"a.jpg":         "Images/a.jpg",
		"b.txt":         "Documents/b.txt",
		"note":          "Others/note",
		"x.jpg":         "Images/x.jpg",
		"zfolder/x.jpg": "Images/x(1).jpg",
	}, destinations)

	result, err := org.Execute(ctx, plan, nil)
	require.NoError(t, err)
	assert.Equal(t, "5/5 files moved", result.Summary())

	pruned, err := org.PruneEmptyDirectories(ctx, root, true, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "zfolder")}, pruned.Removed)

	assert.Equal(t, []string{
		"Documents/", "Documents/b.txt",
		"Images/", "Images/a.jpg", "Images/x(1).jpg", "Images/x.jpg",
		"Others/", "Others/note",
	}, listTree(t, root))
	assert.Equal(t, "zfolder/x.jpg", readFile(t, filepath.Join(root, "Images", "x(1).jpg")))
}

func TestOrganizeShallowerFileKeepsName(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	// "album" sorts before "x.jpg" but the root's own file still wins the name.
	writeTree(t, root, "album/x.jpg", "x.jpg")

	org := newOrganizer(t, nil)
	scan, err := org.Scan(ctx, root, nil)
	require.NoError(t, err)
	plan, err := org.BuildPlan(ctx, scan, "", nil)
	require.NoError(t, err)

	result, err := org.Execute(ctx, plan, nil)
	require.NoError(t, err)
	assert.Equal(t, "2/2 files moved", result.Summary())

	assert.Equal(t, "x.jpg", readFile(t, filepath.Join(root, "Images", "x.jpg")))
	assert.Equal(t, "album/x.jpg", readFile(t, filepath.Join(root, "Images", "x(1).jpg")))
}

func TestOrganizeTwiceIsStable(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeTree(t, root, "a.jpg", "b.txt")

	org := newOrganizer(t, nil)
	var summaries []string
	for i := 0; i < 2; i++ {
		scan, err := org.Scan(ctx, root, nil)
		require.NoError(t, err)
		plan, err := org.BuildPlan(ctx, scan, "", nil)
		require.NoError(t, err)
		result, err := org.Execute(ctx, plan, nil)
		require.NoError(t, err)
		summaries = append(summaries, result.Summary())
	}

	assert.Equal(t, []string{"2/2 files moved", "0/0 files moved, 2 already organized"}, summaries)

	assert.Equal(t, []string{"Documents/", "Documents/b.txt", "Images/", "Images/a.jpg"}, listTree(t, root))
}

func TestOrganizeIntoSeparateDestination(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	dest := t.TempDir()
	writeTree(t, root, "song.mp3", "deep/clip.mov")

	org := newOrganizer(t, nil)
	scan, err := org.Scan(ctx, root, nil)
	require.NoError(t, err)
	plan, err := org.BuildPlan(ctx, scan, dest, nil)
	require.NoError(t, err)
	_, err = org.Execute(ctx, plan, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"Music/", "Music/song.mp3", "Videos/", "Videos/clip.mov"}, listTree(t, dest))
	assert.Equal(t, []string{"deep/"}, listTree(t, root))
}

func TestOrganizerEmitsAuditEvents(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeTree(t, root, "a.jpg", "empty/")

	var buf bytes.Buffer
	logger, err := organizer.NewLogger(organizer.LogOptions{Level: "info", Writer: &buf})
	require.NoError(t, err)
	journal := openJournal(t)
	logger = organizer.TeeLogger(logger, journal.Handler(nil)).With(slog.String("run_id", "run-42"))

	org := newOrganizer(t, logger)
	scan, err := org.Scan(ctx, root, nil)
	require.NoError(t, err)
	plan, err := org.BuildPlan(ctx, scan, "", nil)
	require.NoError(t, err)
	_, err = org.Execute(ctx, plan, nil)
	require.NoError(t, err)
	_, err = org.PruneEmptyDirectories(ctx, root, true, nil)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `msg="scan completed"`)
	assert.Contains(t, out, `msg="move succeeded"`)
	assert.Contains(t, out, `msg="directory removed"`)
	assert.Equal(t, 3, strings.Count(out, "run_id=run-42"))

	entries, err := journal.Recent(ctx, 0)
	require.NoError(t, err)
	events := make([]string, 0, len(entries))
	for _, e := range entries {
		events = append(events, e.Event)
	}
	assert.Equal(t, []string{
		organizer.EventDirectoryRemoved,
		organizer.EventMoveSucceeded,
		organizer.EventScanCompleted,
	}, events)
}

func TestNewDefaultOrganizerRejectsInvalidConfig(t *testing.T) {
	config := organizer.DefaultConfig()
	config.Categories = append(config.Categories, organizer.Category{Name: "Images", Extensions: []string{".x"}})

	_, err := organizer.NewDefaultOrganizer(config, nil)
	require.Error(t, err)
	assert.True(t, organizer.IsKind(err, organizer.KindConfiguration))
}

func TestOrganizerRequiresInputs(t *testing.T) {
	org := newOrganizer(t, nil)

	_, err := org.BuildPlan(context.Background(), nil, "", nil)
	assert.ErrorIs(t, err, organizer.ErrScanRequired)
	_, err = org.Execute(context.Background(), nil, nil)
	assert.ErrorIs(t, err, organizer.ErrPreviewRequired)
	_, err = org.FindDuplicates(context.Background(), nil, nil)
	assert.ErrorIs(t, err, organizer.ErrScanRequired)
}

func TestExecuteRejectsUnusableDestinationRoot(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeTree(t, root, "a.jpg", "blocker")

	org := newOrganizer(t, nil)
	scan, err := org.Scan(ctx, root, nil)
	require.NoError(t, err)
	plan, err := org.BuildPlan(ctx, scan, filepath.Join(root, "blocker"), nil)
	require.NoError(t, err)

	_, err = org.Execute(ctx, plan, nil)
	require.Error(t, err)
	assert.True(t, organizer.IsKind(err, organizer.KindConfiguration))
	assert.FileExists(t, filepath.Join(root, "a.jpg"))
}

func TestExecuteCreatesDestinationRoot(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	dest := filepath.Join(t.TempDir(), "new", "sorted")
	writeTree(t, root, "a.jpg")

	org := newOrganizer(t, nil)
	scan, err := org.Scan(ctx, root, nil)
	require.NoError(t, err)
	plan, err := org.BuildPlan(ctx, scan, dest, nil)
	require.NoError(t, err)

	result, err := org.Execute(ctx, plan, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Moved)
	assert.FileExists(t, filepath.Join(dest, "Images", "a.jpg"))
}
