package organizer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	DefaultDirPermissions = 0755

	// maxRenameRaces bounds how often a move is re-resolved when another
	// process claims the resolved name before the rename lands.
	maxRenameRaces = 3
)

// Executor applies a plan to the live filesystem.
type Executor struct {
	fs            FileSystem
	logger        *slog.Logger
	maxCollisions int
}

func NewExecutor(fsys FileSystem, logger *slog.Logger, maxCollisions int) *Executor {
	if fsys == nil {
		fsys = OSFileSystem{}
	}
	if logger == nil {
		logger = discardLogger()
	}
	return &Executor{fs: fsys, logger: logger, maxCollisions: maxCollisions}
}

// Execute performs every operation in plan order and reports one result per
// operation. Destinations are re-resolved against what is on disk now, since
// the filesystem may have changed after planning. A failed item is logged and
// skipped; the batch always runs to completion, even if ctx is cancelled.
// Re-executing the same plan is not idempotent, build a new plan instead.
func (e *Executor) Execute(ctx context.Context, plan *Plan, progress ProgressFunc) *ExecutionResult {
	result := &ExecutionResult{
		Results: make([]MoveResult, 0, len(plan.Operations)),
		Total:   len(plan.Operations),
		InPlace: len(plan.InPlace),
	}

	for i, op := range plan.Operations {
		res := e.move(op)
		if res.Status == StatusMoved {
			result.Moved++
			e.logger.InfoContext(ctx, EventMoveSucceeded,
				slog.String("src", res.Source),
				slog.String("dest", res.FinalDestination),
			)
		} else {
			result.Failed++
			e.logger.ErrorContext(ctx, EventMoveFailed,
				slog.String("src", res.Source),
				slog.String("dest", res.PlannedDestination),
				slog.String("reason", res.Reason),
			)
		}
		result.Results = append(result.Results, res)
		progress.report(i+1, result.Total)
	}

	return result
}

func (e *Executor) move(op MoveOperation) MoveResult {
	res := MoveResult{
		Source:             op.Source,
		PlannedDestination: op.Destination,
		Status:             StatusFailed,
	}

	if _, err := e.fs.Lstat(op.Source); err != nil {
		return failMove(res, "source missing", err)
	}

	dir := filepath.Dir(op.Destination)
	if err := e.fs.MkdirAll(dir, DefaultDirPermissions); err != nil {
		return failMove(res, "cannot create destination directory", err)
	}

	occupied := pathExists(e.fs)
	for attempt := 0; attempt < maxRenameRaces; attempt++ {
		final, err := ResolveCollision(op.Destination, occupied, e.maxCollisions)
		if err != nil {
			return failMove(res, "cannot resolve destination", err)
		}

		err = e.fs.Rename(op.Source, final)
		if err == nil {
			res.Status = StatusMoved
			res.FinalDestination = final
			return res
		}
		if errors.Is(err, fs.ErrExist) {
			e.logger.Debug("destination claimed during move, resolving again", slog.String("dest", final))
			continue
		}
		if isCrossDevice(err) {
			return failMove(res, "cross-device move not supported", err)
		}
		return failMove(res, "rename failed", err)
	}

	return failMove(res, "destination kept changing during move", fmt.Errorf("%w after %d attempts", fs.ErrExist, maxRenameRaces))
}

func failMove(res MoveResult, msg string, err error) MoveResult {
	res.Status = StatusFailed
	res.Reason = moveReason(msg, err)
	res.Err = NewMoveError(res.Source, msg, err)
	return res
}

func moveReason(msg string, err error) string {
	var pathErr *fs.PathError
	var linkErr *os.LinkError
	switch {
	case errors.As(err, &linkErr):
		err = linkErr.Err
	case errors.As(err, &pathErr):
		err = pathErr.Err
	}
	return fmt.Sprintf("%s: %v", msg, err)
}
