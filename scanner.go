package organizer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

type Scanner interface {
	ScanDirectory(ctx context.Context, rootPath string) iter.Seq2[FileRecord, error]
	Scan(ctx context.Context, rootPath string, progress ProgressFunc) (*ScanResult, error)
}

type FilesystemScanner struct {
	config *Config
	fs     FileSystem
	logger *slog.Logger
}

func NewFilesystemScanner(config *Config, fsys FileSystem, logger *slog.Logger) *FilesystemScanner {
	if fsys == nil {
		fsys = OSFileSystem{}
	}
	if logger == nil {
		logger = discardLogger()
	}
	return &FilesystemScanner{config: config, fs: fsys, logger: logger}
}

var errScanStopped = errors.New("scan terminated by consumer")

// ScanDirectory yields every regular file below rootPath. Each directory's
// files come before its subdirectories, both in lexical order, so a file
// nearer the root is always seen before a same-named file deeper down. A
// directory that cannot be read yields a scan error and its subtree is
// skipped; the walk continues with the rest of the tree.
func (s *FilesystemScanner) ScanDirectory(ctx context.Context, rootPath string) iter.Seq2[FileRecord, error] {
	return func(yield func(FileRecord, error) bool) {
		matcher, ignoreFile, err := s.loadIgnoreMatcher(rootPath)
		if err != nil {
			yield(FileRecord{}, err)
			return
		}

		entries, err := s.fs.ReadDir(rootPath)
		if err != nil {
			yield(FileRecord{}, NewConfigurationError(rootPath, fmt.Sprintf("cannot read root directory: %v", err)))
			return
		}

		w := &scanWalk{
			scanner: s,
			ctx:     ctx,
			root:    rootPath,
			matcher: matcher,
			skip:    s.ownFiles(ignoreFile),
			yield:   yield,
		}
		if err := w.walk(rootPath, entries); err != nil && !errors.Is(err, errScanStopped) {
			yield(FileRecord{}, err)
		}
	}
}

type scanWalk struct {
	scanner *FilesystemScanner
	ctx     context.Context
	root    string
	matcher *ignore.GitIgnore
	skip    map[string]bool
	yield   func(FileRecord, error) bool
}

func (w *scanWalk) walk(dir string, entries []fs.DirEntry) error {
	var subdirs []string
	for _, d := range entries {
		if err := w.ctx.Err(); err != nil {
			return err
		}

		path := filepath.Join(dir, d.Name())
		relPath, _ := filepath.Rel(w.root, path)
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if !w.scanner.excludedDir(d.Name()) && !w.ignored(relPath, true) {
				subdirs = append(subdirs, path)
			}
			continue
		}

		if !d.Type().IsRegular() || w.skip[path] || w.ignored(relPath, false) {
			continue
		}

		info, err := d.Info()
		if err != nil {
			// The file vanished after being listed.
			if !w.yield(FileRecord{}, NewScanError(path, err)) {
				return errScanStopped
			}
			continue
		}
		if !w.yield(FileRecord{Path: path, Size: info.Size()}, nil) {
			return errScanStopped
		}
	}

	for _, path := range subdirs {
		if err := w.ctx.Err(); err != nil {
			return err
		}
		children, err := w.scanner.fs.ReadDir(path)
		if err != nil {
			if !w.yield(FileRecord{}, NewScanError(path, err)) {
				return errScanStopped
			}
			continue
		}
		if err := w.walk(path, children); err != nil {
			return err
		}
	}
	return nil
}

func (w *scanWalk) ignored(relPath string, dir bool) bool {
	if w.matcher == nil {
		return false
	}
	if dir {
		return w.matcher.MatchesPath(relPath) || w.matcher.MatchesPath(relPath+"/")
	}
	return w.matcher.MatchesPath(relPath)
}

// ownFiles lists files the organizer itself keeps open or reads below a root:
// the ignore file and the audit journal with its SQLite sidecars.
func (s *FilesystemScanner) ownFiles(ignoreFile string) map[string]bool {
	skip := make(map[string]bool)
	if ignoreFile != "" {
		skip[ignoreFile] = true
	}
	if s.config.JournalPath != "" {
		if journal, err := filepath.Abs(s.config.JournalPath); err == nil {
			for _, suffix := range []string{"", "-wal", "-shm", "-journal"} {
				skip[journal+suffix] = true
			}
		}
	}
	return skip
}

// Scan materializes ScanDirectory into a snapshot. Unreadable subdirectories
// become warnings; only an unusable root is returned as an error.
func (s *FilesystemScanner) Scan(ctx context.Context, rootPath string, progress ProgressFunc) (*ScanResult, error) {
	result := &ScanResult{Root: rootPath, Files: []FileRecord{}}

	for record, err := range s.ScanDirectory(ctx, rootPath) {
		if err != nil {
			if IsKind(err, KindScan) {
				s.logger.WarnContext(ctx, "skipping unreadable path", slog.String("path", errPath(err)), slog.String("reason", err.Error()))
				result.Warnings = append(result.Warnings, err.Error())
				continue
			}
			return nil, err
		}
		result.Files = append(result.Files, record)
		progress.report(len(result.Files), -1)
	}

	s.logger.InfoContext(ctx, EventScanCompleted,
		slog.String("root", rootPath),
		slog.Int("count", len(result.Files)),
		slog.Int("warnings", len(result.Warnings)),
	)
	return result, nil
}

func (s *FilesystemScanner) excludedDir(name string) bool {
	for _, exclude := range s.config.ExcludeDirs {
		if strings.EqualFold(name, exclude) {
			return true
		}
	}
	return false
}

// loadIgnoreMatcher compiles exclude_patterns together with the root's ignore
// file, if any. It returns the ignore file path so the file itself is skipped.
func (s *FilesystemScanner) loadIgnoreMatcher(rootPath string) (*ignore.GitIgnore, string, error) {
	lines := append([]string{}, s.config.ExcludePatterns...)

	var ignoreFile string
	if s.config.IgnoreFile != "" {
		ignoreFile = filepath.Join(rootPath, s.config.IgnoreFile)
		data, err := s.readFile(ignoreFile)
		switch {
		case err == nil:
			lines = append(lines, strings.Split(string(data), "\n")...)
		case os.IsNotExist(err):
		default:
			return nil, "", NewConfigurationError(ignoreFile, fmt.Sprintf("cannot read ignore file: %v", err))
		}
	}

	if len(lines) == 0 {
		return nil, ignoreFile, nil
	}
	return ignore.CompileIgnoreLines(lines...), ignoreFile, nil
}

func (s *FilesystemScanner) readFile(path string) ([]byte, error) {
	f, err := s.fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func errPath(err error) string {
	var oErr *Error
	if errors.As(err, &oErr) {
		return oErr.Path
	}
	return ""
}
