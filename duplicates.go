package organizer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"sort"
)

// ContentHash returns the hex SHA-256 of a file's contents.
func ContentHash(fsys FileSystem, path string) (string, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// DuplicateFinder reports files with identical contents. Its output is
// informational only; planning and execution never consult it.
type DuplicateFinder struct {
	fs     FileSystem
	logger *slog.Logger
}

func NewDuplicateFinder(fsys FileSystem, logger *slog.Logger) *DuplicateFinder {
	if fsys == nil {
		fsys = OSFileSystem{}
	}
	if logger == nil {
		logger = discardLogger()
	}
	return &DuplicateFinder{fs: fsys, logger: logger}
}

// FindDuplicates groups files by size and hashes only sizes shared by more
// than one file. Unreadable files are logged and left out. Groups are sorted
// by descending size, paths within a group keep scan order.
func (d *DuplicateFinder) FindDuplicates(ctx context.Context, files []FileRecord, progress ProgressFunc) []DuplicateGroup {
	bySize := make(map[int64][]string)
	for _, f := range files {
		bySize[f.Size] = append(bySize[f.Size], f.Path)
	}

	candidates := 0
	for _, paths := range bySize {
		if len(paths) > 1 {
			candidates += len(paths)
		}
	}

	type key struct {
		size int64
		hash string
	}
	groups := make(map[key][]string)
	var order []key
	done := 0

	for _, f := range files {
		if len(bySize[f.Size]) < 2 {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		hash, err := ContentHash(d.fs, f.Path)
		done++
		progress.report(done, candidates)
		if err != nil {
			d.logger.WarnContext(ctx, "cannot hash file", slog.String("path", f.Path), slog.String("reason", err.Error()))
			continue
		}

		k := key{size: f.Size, hash: hash}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], f.Path)
	}

	result := []DuplicateGroup{}
	for _, k := range order {
		if paths := groups[k]; len(paths) > 1 {
			result = append(result, DuplicateGroup{Hash: k.hash, Size: k.size, Paths: paths})
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Size > result[j].Size
	})
	return result
}
