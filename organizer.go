package organizer

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
)

// Organizer is the engine behind the CLI and MCP surfaces. It keeps no state
// between calls; the Session owns scan snapshots and plans.
type Organizer interface {
	Classify(name string) string
	Categories() []Category
	Scan(ctx context.Context, root string, progress ProgressFunc) (*ScanResult, error)
	BuildPlan(ctx context.Context, scan *ScanResult, destinationRoot string, progress ProgressFunc) (*Plan, error)
	Execute(ctx context.Context, plan *Plan, progress ProgressFunc) (*ExecutionResult, error)
	PruneEmptyDirectories(ctx context.Context, root string, keepRoot bool, progress ProgressFunc) (*PruneResult, error)
	FindDuplicates(ctx context.Context, scan *ScanResult, progress ProgressFunc) ([]DuplicateGroup, error)
}

type DefaultOrganizer struct {
	config    *Config
	table     *CategoryTable
	fs        FileSystem
	logger    *slog.Logger
	validator Validator
	scanner   *FilesystemScanner
	planner   *Planner
	executor  *Executor
	pruner    *Pruner
	finder    *DuplicateFinder
}

func NewDefaultOrganizer(config *Config, logger *slog.Logger) (*DefaultOrganizer, error) {
	return NewDefaultOrganizerWithFileSystem(config, OSFileSystem{}, logger)
}

// NewDefaultOrganizerWithFileSystem wires the engine over fsys. Tests use it
// to inject filesystem faults.
func NewDefaultOrganizerWithFileSystem(config *Config, fsys FileSystem, logger *slog.Logger) (*DefaultOrganizer, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if fsys == nil {
		fsys = OSFileSystem{}
	}
	if logger == nil {
		logger = discardLogger()
	}

	validator := NewDefaultValidator(fsys)
	if err := validator.ValidateConfig(config); err != nil {
		return nil, NewConfigurationError("", err.Error())
	}

	table, err := config.CategoryTable()
	if err != nil {
		return nil, fmt.Errorf("failed to build category table: %w", err)
	}

	return &DefaultOrganizer{
		config:    config,
		table:     table,
		fs:        fsys,
		logger:    logger,
		validator: validator,
		scanner:   NewFilesystemScanner(config, fsys, logger),
		planner:   NewPlanner(table, logger),
		executor:  NewExecutor(fsys, logger, config.MaxCollisions),
		pruner:    NewPruner(fsys, logger),
		finder:    NewDuplicateFinder(fsys, logger),
	}, nil
}

func (o *DefaultOrganizer) Config() *Config {
	return o.config
}

func (o *DefaultOrganizer) Validator() Validator {
	return o.validator
}

func (o *DefaultOrganizer) Classify(name string) string {
	return o.table.Classify(name)
}

func (o *DefaultOrganizer) Categories() []Category {
	return o.table.Categories()
}

func (o *DefaultOrganizer) Scan(ctx context.Context, root string, progress ProgressFunc) (*ScanResult, error) {
	root = filepath.Clean(root)
	if err := o.validator.ValidateRoot(root); err != nil {
		return nil, err
	}
	return o.scanner.Scan(ctx, root, progress)
}

// BuildPlan plans scan against destinationRoot; an empty destinationRoot
// means organize in place under the scanned root.
func (o *DefaultOrganizer) BuildPlan(ctx context.Context, scan *ScanResult, destinationRoot string, progress ProgressFunc) (*Plan, error) {
	if scan == nil {
		return nil, ErrScanRequired
	}
	if destinationRoot == "" {
		destinationRoot = scan.Root
	}
	plan, err := o.planner.BuildPlan(ctx, scan.Files, destinationRoot, progress)
	if err != nil {
		return nil, err
	}
	plan.Root = scan.Root
	return plan, nil
}

// Execute applies plan while holding the tree lock on its destination root.
// The only errors are a missing plan and a held lock; per-item failures are
// reported in the result.
func (o *DefaultOrganizer) Execute(ctx context.Context, plan *Plan, progress ProgressFunc) (*ExecutionResult, error) {
	if plan == nil {
		return nil, ErrPreviewRequired
	}

	// A separate destination root may not exist yet.
	if err := o.fs.MkdirAll(plan.DestinationRoot, DefaultDirPermissions); err != nil {
		return nil, NewConfigurationError(plan.DestinationRoot, fmt.Sprintf("cannot create destination root: %v", err))
	}
	if err := o.validator.ValidateRoot(plan.DestinationRoot); err != nil {
		return nil, err
	}

	lock := NewTreeLock(o.config.LockDir, plan.DestinationRoot)
	if err := lock.Acquire(); err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			o.logger.Warn("failed to release tree lock", slog.String("lock", lock.Path()), slog.String("reason", err.Error()))
		}
	}()

	return o.executor.Execute(ctx, plan, progress), nil
}

func (o *DefaultOrganizer) PruneEmptyDirectories(ctx context.Context, root string, keepRoot bool, progress ProgressFunc) (*PruneResult, error) {
	root = filepath.Clean(root)
	if err := o.validator.ValidateRoot(root); err != nil {
		return nil, err
	}

	lock := NewTreeLock(o.config.LockDir, root)
	if err := lock.Acquire(); err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			o.logger.Warn("failed to release tree lock", slog.String("lock", lock.Path()), slog.String("reason", err.Error()))
		}
	}()

	return o.pruner.Prune(ctx, root, keepRoot, progress), nil
}

func (o *DefaultOrganizer) FindDuplicates(ctx context.Context, scan *ScanResult, progress ProgressFunc) ([]DuplicateGroup, error) {
	if scan == nil {
		return nil, ErrScanRequired
	}
	return o.finder.FindDuplicates(ctx, scan.Files, progress), nil
}
