package organizer

import (
	"context"
	"path/filepath"
	"sync"
)

type sessionStage int

const (
	stageRootSelected sessionStage = iota
	stageScanned
	stagePreviewed
	stageExecuted
)

// Session is the presentation-owned state of one organizing workflow:
// select a root, scan, preview, execute, then optionally prune. Long-running
// stages run on the TaskRunner; a stage submitted while another is running
// fails with ErrBusy.
type Session struct {
	organizer Organizer
	validator Validator
	runner    *TaskRunner

	mu       sync.Mutex
	root     string
	destRoot string
	stage    sessionStage
	scan     *ScanResult
	plan     *Plan
}

func NewSession(organizer Organizer, validator Validator, runner *TaskRunner) *Session {
	if runner == nil {
		runner = NewTaskRunner()
	}
	if validator == nil {
		validator = NewDefaultValidator(nil)
	}
	return &Session{organizer: organizer, validator: validator, runner: runner}
}

// SelectRoot validates root and starts a fresh workflow on it. The previous
// snapshot and plan are discarded. destinationRoot may be empty to organize
// in place.
func (s *Session) SelectRoot(root, destinationRoot string) error {
	root = filepath.Clean(root)
	if err := s.validator.ValidateRoot(root); err != nil {
		return err
	}
	if destinationRoot != "" && !filepath.IsAbs(destinationRoot) {
		return NewConfigurationError(destinationRoot, "destination root must be an absolute path")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.root = root
	s.destRoot = destinationRoot
	s.stage = stageRootSelected
	s.scan = nil
	s.plan = nil
	return nil
}

func (s *Session) Root() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root
}

// Snapshot returns the latest scan, or nil.
func (s *Session) Snapshot() *ScanResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scan
}

// CurrentPlan returns the pending plan, or nil.
func (s *Session) CurrentPlan() *Plan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plan
}

func (s *Session) Scan(ctx context.Context, progress ProgressFunc) (*Task[*ScanResult], error) {
	s.mu.Lock()
	root := s.root
	s.mu.Unlock()
	if root == "" {
		return nil, ErrNoRoot
	}

	return Submit(s.runner, "scan", func() (*ScanResult, error) {
		result, err := s.organizer.Scan(ctx, root, progress)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.root == root {
			s.scan = result
			s.plan = nil
			s.stage = stageScanned
		}
		return result, nil
	})
}

// Preview builds a plan from the latest scan. Planning never touches the
// filesystem, so it runs in the foreground.
func (s *Session) Preview(ctx context.Context) (*Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.root == "" {
		return nil, ErrNoRoot
	}
	if s.scan == nil {
		return nil, ErrScanRequired
	}

	plan, err := s.organizer.BuildPlan(ctx, s.scan, s.destRoot, nil)
	if err != nil {
		return nil, err
	}
	s.plan = plan
	s.stage = stagePreviewed
	return plan, nil
}

// Execute applies the previewed plan. The plan is consumed: a second Execute
// needs a fresh scan and preview.
func (s *Session) Execute(ctx context.Context, progress ProgressFunc) (*Task[*ExecutionResult], error) {
	s.mu.Lock()
	plan := s.plan
	s.mu.Unlock()
	if plan == nil {
		return nil, ErrPreviewRequired
	}

	return Submit(s.runner, "execute", func() (*ExecutionResult, error) {
		result, err := s.organizer.Execute(ctx, plan, progress)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.plan == plan {
			s.plan = nil
			s.scan = nil
			s.stage = stageExecuted
		}
		return result, nil
	})
}

// Prune removes empty directories under the root once a plan was executed.
func (s *Session) Prune(ctx context.Context, keepRoot bool, progress ProgressFunc) (*Task[*PruneResult], error) {
	s.mu.Lock()
	root, stage := s.root, s.stage
	s.mu.Unlock()
	if stage != stageExecuted {
		return nil, ErrExecuteRequired
	}

	return Submit(s.runner, "prune", func() (*PruneResult, error) {
		return s.organizer.PruneEmptyDirectories(ctx, root, keepRoot, progress)
	})
}
