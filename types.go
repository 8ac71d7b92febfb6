package organizer

import "fmt"

// FileRecord is a regular file seen by a scan. It is a point-in-time snapshot
// and may be stale by the time a plan is executed.
type FileRecord struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

type ScanResult struct {
	Root     string       `json:"root"`
	Files    []FileRecord `json:"files"`
	Warnings []string     `json:"warnings,omitempty"`
}

// TotalSize sums the sizes of all scanned files.
func (r *ScanResult) TotalSize() int64 {
	var total int64
	for _, f := range r.Files {
		total += f.Size
	}
	return total
}

type MoveOperation struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Category    string `json:"category"`
}

// Plan is an ordered list of intended moves whose destinations are unique
// within the plan. InPlace lists files already at their destination.
type Plan struct {
	Root            string          `json:"root,omitempty"`
	DestinationRoot string          `json:"destination_root"`
	Operations      []MoveOperation `json:"operations"`
	InPlace         []string        `json:"in_place,omitempty"`
}

type MoveStatus string

const (
	StatusMoved  MoveStatus = "moved"
	StatusFailed MoveStatus = "failed"
)

type MoveResult struct {
	Source             string     `json:"source"`
	PlannedDestination string     `json:"planned_destination"`
	FinalDestination   string     `json:"final_destination,omitempty"`
	Status             MoveStatus `json:"status"`
	Reason             string     `json:"reason,omitempty"`
	Err                error      `json:"-"`
}

// ExecutionResult reports one batch. InPlace counts files the plan left alone
// because they were already at their destination; they are not part of Total.
type ExecutionResult struct {
	Results []MoveResult `json:"results"`
	Moved   int          `json:"moved"`
	Failed  int          `json:"failed"`
	Total   int          `json:"total"`
	InPlace int          `json:"in_place"`
}

func (r *ExecutionResult) Summary() string {
	summary := fmt.Sprintf("%d/%d files moved", r.Moved, r.Total)
	if r.InPlace > 0 {
		summary += fmt.Sprintf(", %d already organized", r.InPlace)
	}
	return summary
}

type PruneFailure struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

type PruneResult struct {
	Root     string         `json:"root"`
	Removed  []string       `json:"removed"`
	Failures []PruneFailure `json:"failures,omitempty"`
}

// Count returns the number of directories removed.
func (r *PruneResult) Count() int {
	return len(r.Removed)
}

type DuplicateGroup struct {
	Hash  string   `json:"hash"`
	Size  int64    `json:"size"`
	Paths []string `json:"paths"`
}

// ProgressFunc is called after each item with the number done so far. A
// negative total means the total is not known up front.
type ProgressFunc func(done, total int)

func (p ProgressFunc) report(done, total int) {
	if p != nil {
		p(done, total)
	}
}
