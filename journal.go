package organizer

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

const journalSchemaVersion = 1

// Journal persists audit events to a SQLite database so past runs can be
// listed with the history command.
type Journal struct {
	db     *sql.DB
	path   string
	mu     sync.Mutex
	failed atomic.Bool
}

type JournalEntry struct {
	ID     int64     `json:"id"`
	RunID  string    `json:"run_id,omitempty"`
	Time   time.Time `json:"time"`
	Level  string    `json:"level"`
	Event  string    `json:"event"`
	Src    string    `json:"src,omitempty"`
	Dest   string    `json:"dest,omitempty"`
	Path   string    `json:"path,omitempty"`
	Reason string    `json:"reason,omitempty"`
	Count  int64     `json:"count,omitempty"`
}

func OpenJournal(path string) (*Journal, error) {
	if path == "" {
		return nil, NewConfigurationError(path, "journal path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	if err := migrateJournal(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Journal{db: db, path: path}, nil
}

func migrateJournal(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return fmt.Errorf("read journal version: %w", err)
	}

	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS events (
		  id         INTEGER PRIMARY KEY AUTOINCREMENT,
		  run_id     TEXT,
		  created_at INTEGER NOT NULL,
		  level      TEXT NOT NULL,
		  event      TEXT NOT NULL,
		  src        TEXT,
		  dest       TEXT,
		  path       TEXT,
		  reason     TEXT,
		  count      INTEGER
		);

		CREATE INDEX IF NOT EXISTS idx_events_run_id ON events(run_id);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("journal migration 1 failed: %w", err)
		}
	}

	if version < journalSchemaVersion {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", journalSchemaVersion)); err != nil {
			return fmt.Errorf("set journal version: %w", err)
		}
	}
	return nil
}

func (j *Journal) Path() string {
	return j.path
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// Handler returns a slog.Handler that records audit events and drops
// everything else. Tee it with the console handler. The first failed write is
// reported once to console, if not nil, since slog drops handler errors.
func (j *Journal) Handler(console slog.Handler) slog.Handler {
	return &journalHandler{journal: j, console: console}
}

// Recent lists up to limit entries, newest first. A limit <= 0 lists all.
func (j *Journal) Recent(ctx context.Context, limit int) ([]JournalEntry, error) {
	query := `SELECT id, COALESCE(run_id, ''), created_at, level, event,
		COALESCE(src, ''), COALESCE(dest, ''), COALESCE(path, ''), COALESCE(reason, ''), COALESCE(count, 0)
		FROM events ORDER BY id DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	entries := []JournalEntry{}
	for rows.Next() {
		var e JournalEntry
		var created int64
		if err := rows.Scan(&e.ID, &e.RunID, &created, &e.Level, &e.Event, &e.Src, &e.Dest, &e.Path, &e.Reason, &e.Count); err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}
		e.Time = time.UnixMilli(created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (j *Journal) insert(ctx context.Context, e JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO events (run_id, created_at, level, event, src, dest, path, reason, count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullable(e.RunID), e.Time.UnixMilli(), e.Level, e.Event,
		nullable(e.Src), nullable(e.Dest), nullable(e.Path), nullable(e.Reason), e.Count,
	)
	return err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isAuditEvent(msg string) bool {
	switch msg {
	case EventScanCompleted, EventMoveSucceeded, EventMoveFailed,
		EventDirectoryRemoved, EventDirectoryRemovalFailed:
		return true
	}
	return false
}

type journalHandler struct {
	journal *Journal
	console slog.Handler
	attrs   []slog.Attr
}

func (h *journalHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

func (h *journalHandler) Handle(ctx context.Context, record slog.Record) error {
	if !isAuditEvent(record.Message) {
		return nil
	}

	entry := JournalEntry{
		Time:  record.Time,
		Level: record.Level.String(),
		Event: record.Message,
	}
	if entry.Time.IsZero() {
		entry.Time = time.Now()
	}

	apply := func(a slog.Attr) bool {
		v := a.Value.Resolve()
		switch a.Key {
		case "run_id":
			entry.RunID = v.String()
		case "src":
			entry.Src = v.String()
		case "dest":
			entry.Dest = v.String()
		case "path", "root":
			entry.Path = v.String()
		case "reason":
			entry.Reason = v.String()
		case "count":
			if v.Kind() == slog.KindInt64 {
				entry.Count = v.Int64()
			}
		}
		return true
	}
	for _, a := range h.attrs {
		apply(a)
	}
	record.Attrs(apply)

	if err := h.journal.insert(context.WithoutCancel(ctx), entry); err != nil {
		h.reportFailure(ctx, entry, err)
		return err
	}
	return nil
}

func (h *journalHandler) reportFailure(ctx context.Context, entry JournalEntry, err error) {
	if h.console == nil || !h.journal.failed.CompareAndSwap(false, true) {
		return
	}
	if !h.console.Enabled(ctx, slog.LevelWarn) {
		return
	}
	record := slog.NewRecord(time.Now(), slog.LevelWarn, "journal write failed, audit events are not being recorded", 0)
	record.AddAttrs(
		slog.String("journal", h.journal.Path()),
		slog.String("event", entry.Event),
		slog.String("reason", err.Error()),
	)
	_ = h.console.Handle(ctx, record)
}

func (h *journalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	next = append(next, h.attrs...)
	next = append(next, attrs...)
	console := h.console
	if console != nil {
		console = console.WithAttrs(attrs)
	}
	return &journalHandler{journal: h.journal, console: console, attrs: next}
}

// Groups are flattened; audit attributes are always top-level.
func (h *journalHandler) WithGroup(string) slog.Handler {
	return h
}
