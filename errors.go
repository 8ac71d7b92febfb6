package organizer

import (
	"errors"
	"fmt"
)

// ErrorKind classifies organizer errors.
type ErrorKind string

const (
	KindScan          ErrorKind = "SCAN"          // unreadable directory during a walk
	KindMove          ErrorKind = "MOVE"          // per-item move failure
	KindPrune         ErrorKind = "PRUNE"         // per-directory removal failure
	KindConfiguration ErrorKind = "CONFIGURATION" // fatal, surfaced before work starts
)

var (
	ErrTooManyCollisions = errors.New("too many collisions")
	ErrBusy              = errors.New("another task is still running")
	ErrTreeLocked        = errors.New("directory tree is locked by another process")
	ErrScanRequired      = errors.New("scan required before preview")
	ErrPreviewRequired   = errors.New("preview required before execute")
	ErrExecuteRequired   = errors.New("execute required before prune")
	ErrNoRoot            = errors.New("no root directory selected")
)

// Error is a structured organizer error tied to a path.
type Error struct {
	Kind    ErrorKind
	Path    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = fmt.Sprintf("%s: %v", msg, e.Err)
		}
	}
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Path, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewScanError reports a directory that could not be read during a walk.
func NewScanError(path string, err error) *Error {
	return &Error{Kind: KindScan, Path: path, Message: "cannot read directory", Err: err}
}

// NewMoveError reports a single failed move.
func NewMoveError(path, msg string, err error) *Error {
	return &Error{Kind: KindMove, Path: path, Message: msg, Err: err}
}

// NewPruneError reports a directory that could not be removed.
func NewPruneError(path string, err error) *Error {
	return &Error{Kind: KindPrune, Path: path, Message: "cannot remove directory", Err: err}
}

// NewConfigurationError reports a problem that must stop an operation before it starts.
func NewConfigurationError(path, msg string) *Error {
	return &Error{Kind: KindConfiguration, Path: path, Message: msg}
}

// IsKind reports whether err is, or wraps, an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var oErr *Error
	if errors.As(err, &oErr) {
		return oErr.Kind == kind
	}
	return false
}
