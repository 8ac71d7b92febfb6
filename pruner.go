package organizer

import (
	"context"
	"log/slog"
	"path/filepath"
)

// Pruner removes directories left empty after files were moved out of them.
type Pruner struct {
	fs     FileSystem
	logger *slog.Logger
}

func NewPruner(fsys FileSystem, logger *slog.Logger) *Pruner {
	if fsys == nil {
		fsys = OSFileSystem{}
	}
	if logger == nil {
		logger = discardLogger()
	}
	return &Pruner{fs: fsys, logger: logger}
}

// Prune walks root bottom-up and removes every directory that is empty once
// its own subdirectories have been pruned, so a parent emptied by this pass is
// removed in the same pass. root itself is removed only when keepRoot is false.
// Failures are logged and recorded; they never stop the walk. Symlinks to
// directories are entries, not directories, and keep their parent alive.
func (p *Pruner) Prune(ctx context.Context, root string, keepRoot bool, progress ProgressFunc) *PruneResult {
	result := &PruneResult{Root: filepath.Clean(root), Removed: []string{}}
	visited := 0
	p.prune(ctx, result.Root, result.Root, keepRoot, result, &visited, progress)
	return result
}

// prune reports whether dir was removed.
func (p *Pruner) prune(ctx context.Context, root, dir string, keepRoot bool, result *PruneResult, visited *int, progress ProgressFunc) bool {
	entries, err := p.fs.ReadDir(dir)
	if err != nil {
		p.fail(ctx, result, dir, err)
		return false
	}

	remaining := len(entries)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if p.prune(ctx, root, filepath.Join(dir, entry.Name()), keepRoot, result, visited, progress) {
			remaining--
		}
	}

	*visited++
	progress.report(*visited, -1)

	if remaining > 0 || (dir == root && keepRoot) {
		return false
	}

	if err := p.fs.Remove(dir); err != nil {
		p.fail(ctx, result, dir, err)
		return false
	}
	result.Removed = append(result.Removed, dir)
	p.logger.InfoContext(ctx, EventDirectoryRemoved, slog.String("path", dir))
	return true
}

func (p *Pruner) fail(ctx context.Context, result *PruneResult, dir string, err error) {
	pruneErr := NewPruneError(dir, err)
	result.Failures = append(result.Failures, PruneFailure{Path: dir, Reason: err.Error()})
	p.logger.WarnContext(ctx, EventDirectoryRemovalFailed,
		slog.String("path", dir),
		slog.String("reason", pruneErr.Error()),
	)
}
