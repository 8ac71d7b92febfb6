package organizer_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	organizer "github.com/thrawn01/file-organizer"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := organizer.RunCmd(append([]string{"file-organizer"}, args...), &organizer.RunCmdOptions{
		Stdout: &stdout,
		Stderr: &stderr,
	})
	return stdout.String(), err
}

func TestCLIIntegration(t *testing.T) {
	tempDir := t.TempDir()
	writeTree(t, tempDir, "a.jpg", "b.txt", "note", "copy/a.jpg")

	tests := []struct {
		name        string
		args        []string
		expectError bool
		contains    string
	}{
		{
			name:     "Help",
			args:     []string{"-h"},
			contains: "organize",
		},
		{
			name:     "NoArgs",
			args:     []string{},
			contains: "Usage:",
		},
		{
			name:     "ScanCommand",
			args:     []string{"scan", tempDir},
			contains: "4 files",
		},
		{
			name:     "PreviewCommand",
			args:     []string{"preview", tempDir},
			contains: "4 files planned",
		},
		{
			name:     "OrganizeDryRun",
			args:     []string{"--dry-run", "organize", tempDir},
			contains: "Documents",
		},
		{
			name:     "ClassifyCommand",
			args:     []string{"classify", "a.JPG", "README"},
			contains: "Others",
		},
		{
			name:     "CategoriesCommand",
			args:     []string{"categories"},
			contains: "Executables",
		},
		{
			name:     "DuplicatesCommand",
			args:     []string{"duplicates", tempDir},
			contains: "No duplicate files found.",
		},
		{
			name:        "InvalidCommand",
			args:        []string{"invalid"},
			expectError: true,
		},
		{
			name:        "ClassifyMissingArgs",
			args:        []string{"classify"},
			expectError: true,
		},
		{
			name:        "InvalidPath",
			args:        []string{"scan", "/nonexistent/path/for/organizer"},
			expectError: true,
		},
		{
			name:        "HistoryWithoutJournal",
			args:        []string{"history"},
			expectError: true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			out, err := runCmd(t, test.args...)
			if test.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, out, test.contains)
		})
	}

	// Nothing above may have moved a file.
	assert.Equal(t, []string{"a.jpg", "b.txt", "copy/", "copy/a.jpg", "note"}, listTree(t, tempDir))
}

func TestCLIOrganize(t *testing.T) {
	root := t.TempDir()
	journal := filepath.Join(t.TempDir(), "journal.db")
	writeTree(t, root, "a.jpg", "b.txt", "old/c.mp3")

	out, err := runCmd(t, "--json", "--journal", journal, "organize", "--prune", root)
	require.NoError(t, err)

	var result struct {
		Plan      organizer.Plan            `json:"plan"`
		Execution organizer.ExecutionResult `json:"execution"`
		Prune     organizer.PruneResult     `json:"prune"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Len(t, result.Plan.Operations, 3)
	assert.Equal(t, 3, result.Execution.Moved)
	assert.Equal(t, []string{filepath.Join(root, "old")}, result.Prune.Removed)

	assert.Equal(t, []string{
		"Documents/", "Documents/b.txt",
		"Images/", "Images/a.jpg",
		"Music/", "Music/c.mp3",
	}, listTree(t, root))

	out, err = runCmd(t, "--json", "--journal", journal, "history")
	require.NoError(t, err)
	var entries []organizer.JournalEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 5)
	assert.Equal(t, organizer.EventDirectoryRemoved, entries[0].Event)
	assert.Equal(t, organizer.EventScanCompleted, entries[4].Event)
	assert.NotEmpty(t, entries[0].RunID)
	assert.Equal(t, entries[0].RunID, entries[4].RunID)
}

func TestCLIOrganizeLeavesJournalInRoot(t *testing.T) {
	root := t.TempDir()
	journal := filepath.Join(root, "audit.db")
	writeTree(t, root, "a.jpg")

	out, err := runCmd(t, "--json", "--journal", journal, "organize", root)
	require.NoError(t, err)

	var result struct {
		Plan organizer.Plan `json:"plan"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Len(t, result.Plan.Operations, 1)
	assert.Equal(t, filepath.Join(root, "a.jpg"), result.Plan.Operations[0].Source)
	assert.FileExists(t, journal)
	assert.NoDirExists(t, filepath.Join(root, "Others"))

	out, err = runCmd(t, "--json", "--journal", journal, "history")
	require.NoError(t, err)
	var entries []organizer.JournalEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	assert.Len(t, entries, 2)
}

func TestCLIPrune(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "a/b/", "keep/file.txt")

	out, err := runCmd(t, "--dry-run", "prune", root)
	require.NoError(t, err)
	assert.Contains(t, out, "2 empty directories removed")
	assert.DirExists(t, filepath.Join(root, "a", "b"), "dry run removes nothing")

	out, err = runCmd(t, "prune", root)
	require.NoError(t, err)
	assert.Contains(t, out, "2 empty directories removed")
	assert.Equal(t, []string{"keep/", "keep/file.txt"}, listTree(t, root))
}

func TestCLIConfigFile(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "book.epub")
	config := filepath.Join(t.TempDir(), "organizer.yaml")
	require.NoError(t, os.WriteFile(config, []byte("categories:\n  - name: Books\n    extensions: [.epub]\n"), 0644))

	out, err := runCmd(t, "--config", config, "--json", "classify", "book.epub", "a.jpg")
	require.NoError(t, err)

	var results []struct {
		Name     string `json:"name"`
		Category string `json:"category"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)
	assert.Equal(t, "Books", results[0].Category)
	assert.Equal(t, "Others", results[1].Category)
}

func TestMCPServerCapabilities(t *testing.T) {
	t.Run("MCPServerToolDiscovery", func(t *testing.T) {
		ctx := context.Background()

		clientTransport, serverTransport := mcp.NewInMemoryTransports()

		serverDone := make(chan error, 1)
		go func() {
			options := &organizer.RunCmdOptions{
				MCPTransport: serverTransport,
			}
			serverDone <- organizer.RunCmd([]string{"file-organizer", "--mcp"}, options)
		}()

		client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v1.0.0"}, nil)
		session, err := client.Connect(ctx, clientTransport, nil)
		require.NoError(t, err)
		defer func() {
			_ = session.Close()
		}()

		err = session.Ping(ctx, nil)
		require.NoError(t, err)

		tools, err := session.ListTools(ctx, &mcp.ListToolsParams{})
		require.NoError(t, err)

		expectedTools := map[string]string{
			"scan_directory":          "List every regular file below a root directory with its size",
			"preview_organization":    "Show the planned category destination of every file without moving anything",
			"organize_directory":      "Move files into category folders, optionally pruning emptied directories",
			"prune_empty_directories": "Remove empty directories below a root, bottom-up",
			"classify_files":          "Map file names to their categories",
			"list_categories":         "List the category table in match order",
			"find_duplicates":         "Report groups of files with identical contents; nothing is changed",
		}

		foundTools := make(map[string]bool)
		for _, tool := range tools.Tools {
			if expectedDesc, expected := expectedTools[tool.Name]; expected {
				foundTools[tool.Name] = true
				assert.Equal(t, expectedDesc, tool.Description)
			} else {
				assert.Failf(t, "Unexpected tool found", "tool: %s", tool.Name)
			}
		}

		for toolName := range expectedTools {
			assert.True(t, foundTools[toolName])
		}
		assert.Len(t, tools.Tools, 7)
	})
}

func TestMCPTools(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeTree(t, root, "a.jpg", "b.txt", "dir/a.jpg")
	org := newOrganizer(t, nil)

	_, preview, err := organizer.PreviewOrganizationTool(ctx, nil, organizer.PreviewOrganizationParams{Root: root}, org)
	require.NoError(t, err)
	assert.Len(t, preview.(*organizer.Plan).Operations, 3)
	assert.FileExists(t, filepath.Join(root, "a.jpg"))

	_, classified, err := organizer.ClassifyFilesTool(ctx, nil, organizer.ClassifyFilesParams{Names: []string{"x.mp4"}}, org)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"x.mp4": "Videos"}, classified)

	_, out, err := organizer.OrganizeDirectoryTool(ctx, nil, organizer.OrganizeDirectoryParams{Root: root, Prune: true}, org, true)
	require.NoError(t, err)
	result := out.(*organizer.OrganizeDirectoryResult)
	assert.Equal(t, 3, result.Execution.Moved)
	assert.Equal(t, 1, result.Prune.Count())
	assert.FileExists(t, filepath.Join(root, "Images", "a(1).jpg"))

	_, _, err = organizer.ScanDirectoryTool(ctx, nil, organizer.ScanDirectoryParams{Root: "relative"}, org)
	assert.Error(t, err)
}

func TestMCPToolsMaxResults(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeTree(t, root, "a.jpg", "b.txt", "c.mp3")
	org := newOrganizer(t, nil)

	limit := func(n int) *int { return &n }

	tests := []struct {
		name      string
		max       *int
		wantCount int
		wantErr   bool
	}{
		{name: "Unlimited", max: nil, wantCount: 3},
		{name: "Truncated", max: limit(2), wantCount: 2},
		{name: "Zero", max: limit(0), wantCount: 0},
		{name: "LargerThanResult", max: limit(10), wantCount: 3},
		{name: "Negative", max: limit(-1), wantErr: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, scanned, err := organizer.ScanDirectoryTool(ctx, nil, organizer.ScanDirectoryParams{Root: root, MaxResults: test.max}, org)
			_, planned, planErr := organizer.PreviewOrganizationTool(ctx, nil, organizer.PreviewOrganizationParams{Root: root, MaxResults: test.max}, org)
			if test.wantErr {
				assert.Error(t, err)
				assert.Error(t, planErr)
				return
			}
			require.NoError(t, err)
			require.NoError(t, planErr)
			assert.Len(t, scanned.(*organizer.ScanResult).Files, test.wantCount)
			assert.Len(t, planned.(*organizer.Plan).Operations, test.wantCount)
		})
	}
}
