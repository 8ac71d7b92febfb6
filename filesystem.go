package organizer

import (
	"io"
	"io/fs"
	"os"
)

// FileSystem is every filesystem primitive the organizer needs.
type FileSystem interface {
	Lstat(path string) (fs.FileInfo, error)
	Stat(path string) (fs.FileInfo, error)
	ReadDir(path string) ([]fs.DirEntry, error)
	MkdirAll(path string, perm fs.FileMode) error
	// Rename moves src to dst and must not replace an existing dst where the
	// platform allows it; an occupied dst is reported as fs.ErrExist.
	Rename(src, dst string) error
	// Remove deletes a file or an empty directory.
	Remove(path string) error
	Open(path string) (io.ReadCloser, error)
}

// OSFileSystem is the live filesystem.
type OSFileSystem struct{}

func (OSFileSystem) Lstat(path string) (fs.FileInfo, error) {
	return os.Lstat(path)
}

func (OSFileSystem) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

func (OSFileSystem) ReadDir(path string) ([]fs.DirEntry, error) {
	return os.ReadDir(path)
}

func (OSFileSystem) MkdirAll(path string, perm fs.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (OSFileSystem) Rename(src, dst string) error {
	return renameNoReplace(src, dst)
}

func (OSFileSystem) Remove(path string) error {
	return os.Remove(path)
}

func (OSFileSystem) Open(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// pathExists is the on-disk occupancy predicate. Anything at the path,
// including a dangling symlink, occupies it; an Lstat error other than
// "not exist" is treated as occupied so a name is never reused blindly.
func pathExists(fsys FileSystem) OccupancyFunc {
	return func(path string) bool {
		_, err := fsys.Lstat(path)
		if err == nil {
			return true
		}
		return !os.IsNotExist(err)
	}
}
