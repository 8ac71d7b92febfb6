package organizer

import (
	"context"
	"log/slog"
	"path/filepath"
)

// Planner computes move plans. It never touches the filesystem, so a preview
// can be rebuilt cheaply whenever the file list changes.
type Planner struct {
	table  *CategoryTable
	logger *slog.Logger
}

func NewPlanner(table *CategoryTable, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = discardLogger()
	}
	return &Planner{table: table, logger: logger}
}

// BuildPlan routes each file to destinationRoot/<category>/<name> in scan
// order. Collisions are resolved only against destinations claimed earlier in
// the same plan; the executor re-checks the live filesystem at move time.
// A file already sitting at its own destination is listed in InPlace and its
// path is claimed before anything else is planned.
func (p *Planner) BuildPlan(ctx context.Context, files []FileRecord, destinationRoot string, progress ProgressFunc) (*Plan, error) {
	if destinationRoot == "" || !filepath.IsAbs(destinationRoot) {
		return nil, NewConfigurationError(destinationRoot, "destination root must be an absolute path")
	}
	destinationRoot = filepath.Clean(destinationRoot)

	plan := &Plan{
		DestinationRoot: destinationRoot,
		Operations:      make([]MoveOperation, 0, len(files)),
	}

	claimed := make(claimSet, len(files))
	inPlace := make(map[int]bool)
	for i, file := range files {
		source := filepath.Clean(file.Path)
		if p.candidate(source, destinationRoot) == source {
			claimed.claim(source)
			inPlace[i] = true
			plan.InPlace = append(plan.InPlace, source)
		}
	}

	total := len(files)
	for i, file := range files {
		if inPlace[i] {
			progress.report(i+1, total)
			continue
		}

		source := filepath.Clean(file.Path)
		// claimed never holds more than len(files) paths, so one more attempt
		// than that always finds a free name.
		destination, err := ResolveCollision(p.candidate(source, destinationRoot), claimed.occupied, len(claimed)+1)
		if err != nil {
			return nil, err
		}
		claimed.claim(destination)

		plan.Operations = append(plan.Operations, MoveOperation{
			Source:      source,
			Destination: destination,
			Category:    p.table.Classify(source),
		})
		progress.report(i+1, total)
	}

	p.logger.DebugContext(ctx, "plan built",
		slog.String("destination_root", destinationRoot),
		slog.Int("operations", len(plan.Operations)),
		slog.Int("in_place", len(plan.InPlace)),
	)
	return plan, nil
}

func (p *Planner) candidate(source, destinationRoot string) string {
	return filepath.Join(destinationRoot, p.table.Classify(source), filepath.Base(source))
}
