package persist

import (
	"context"
	"database/sql"
	"embed"
	"time"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"
	"github.com/tabd/tabd/pkg/tlog"
)

//go:embed migrations/0001_freshness.sql
var freshnessSchema embed.FS

// Index is the SQLite-backed freshness cache (spec SPEC_FULL.md §4.6):
// per (workspaceRoot, relativePath), the mtime/size of the newest log
// file last folded into a session's store. It answers "has this file's
// log changed since I last loaded it" without re-walking the filesystem
// on every onActivate; a stale or missing entry just means a full
// reload, never a correctness problem — this index is advisory, adapted
// from the teacher's database.Database, trimmed down from its
// versioned-migration machinery since a one-table advisory cache has no
// evolving schema to track.
type Index struct {
	db *sql.DB
}

// OpenIndex opens (creating if needed) the SQLite index at path and
// ensures the freshness table exists.
func OpenIndex(path string) (*Index, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "persist: open index db")
	}
	if err := ensureSchema(db, tlog.Nop()); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "persist: create index schema")
	}
	return &Index{db: db}, nil
}

// Close closes the underlying database connection.
func (ix *Index) Close() error { return ix.db.Close() }

// Entry is the cached freshness marker for one tracked file.
type Entry struct {
	NewestMTime time.Time
	NewestSize  int64
	NewestName  string
}

// Lookup returns the cached entry for (workspaceRoot, relativePath), or
// ok=false if there is none (forcing a full reload).
func (ix *Index) Lookup(ctx context.Context, workspaceRoot, relativePath string) (Entry, bool, error) {
	var e Entry
	var mtimeUnix int64
	err := ix.db.QueryRowContext(ctx,
		`SELECT newest_mtime, newest_size, newest_name FROM freshness WHERE workspace_root = ? AND relative_path = ?`,
		workspaceRoot, relativePath,
	).Scan(&mtimeUnix, &e.NewestSize, &e.NewestName)
	if err == sql.ErrNoRows {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, errors.Wrap(err, "persist: lookup freshness entry")
	}
	e.NewestMTime = time.Unix(mtimeUnix, 0)
	return e, true, nil
}

// Update records the newest log file's mtime/size/name for
// (workspaceRoot, relativePath).
func (ix *Index) Update(ctx context.Context, workspaceRoot, relativePath string, e Entry) error {
	_, err := ix.db.ExecContext(ctx, `
		INSERT INTO freshness (workspace_root, relative_path, newest_mtime, newest_size, newest_name)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(workspace_root, relative_path) DO UPDATE SET
			newest_mtime = excluded.newest_mtime,
			newest_size = excluded.newest_size,
			newest_name = excluded.newest_name
	`, workspaceRoot, relativePath, e.NewestMTime.Unix(), e.NewestSize, e.NewestName)
	if err != nil {
		return errors.Wrap(err, "persist: update freshness entry")
	}
	return nil
}

// ensureSchema issues the freshness table's CREATE TABLE IF NOT EXISTS
// directly. There is only one schema version, so the teacher's
// versioned-migration-file/schema_migrations bookkeeping (built for an
// evolving document store schema) doesn't earn its keep here.
func ensureSchema(db *sql.DB, log tlog.Logger) error {
	content, err := freshnessSchema.ReadFile("migrations/0001_freshness.sql")
	if err != nil {
		return errors.Wrap(err, "read freshness schema")
	}
	if _, err := db.Exec(string(content)); err != nil {
		return errors.Wrap(err, "create freshness table")
	}
	log.Debug("index schema ready")
	return nil
}
