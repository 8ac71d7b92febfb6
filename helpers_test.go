package organizer_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	organizer "github.com/thrawn01/file-organizer"
)

// writeTree creates each relative path under root. Paths ending in "/" are
// created as empty directories, everything else as a file holding its own name.
func writeTree(t *testing.T, root string, paths ...string) {
	t.Helper()
	for _, p := range paths {
		full := filepath.Join(root, filepath.FromSlash(p))
		if p[len(p)-1] == '/' {
			require.NoError(t, os.MkdirAll(full, 0755))
			continue
		}
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(p), 0644))
	}
}

// listTree returns every file and directory below root as sorted slash paths;
// directories carry a trailing "/".
func listTree(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			rel += "/"
		}
		out = append(out, rel)
		return nil
	})
	require.NoError(t, err)
	sort.Strings(out)
	return out
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

// faultFS wraps the live filesystem and lets a test intercept renames and
// removals.
type faultFS struct {
	organizer.FileSystem
	rename func(src, dst string) error
	remove func(path string) error
}

func newFaultFS() *faultFS {
	return &faultFS{FileSystem: organizer.OSFileSystem{}}
}

func (f *faultFS) Rename(src, dst string) error {
	if f.rename != nil {
		return f.rename(src, dst)
	}
	return f.FileSystem.Rename(src, dst)
}

func (f *faultFS) Remove(path string) error {
	if f.remove != nil {
		return f.remove(path)
	}
	return f.FileSystem.Remove(path)
}
