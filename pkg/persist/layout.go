package persist

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/tabd/tabd/pkg/tlog"
)

// Store is the one interface every storage layout implements (spec §4.6).
type Store interface {
	Load(ctx context.Context, workspaceRoot, relativePath string) (*Record, error)
	Save(ctx context.Context, workspaceRoot, relativePath string, rec *Record) error
}

// FreshnessProbe is implemented by layouts backed by a directory of
// append-only log files: it reports the lexicographically newest file's
// name/mtime/size without reading or parsing any file, so SessionAdapter
// can compare it against the SQLite freshness Index and decide whether a
// full loadFolded scan is even necessary. vcs-notes has no such directory
// and doesn't implement this — its Load is already a single notes-blob
// read with nothing further to short-circuit.
type FreshnessProbe interface {
	NewestLogFile(ctx context.Context, workspaceRoot, relativePath string) (name string, mtime time.Time, size int64, found bool, err error)
}

func newestLogFile(dir string) (string, time.Time, int64, bool, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return "", time.Time{}, 0, false, nil
	}
	if err != nil {
		return "", time.Time{}, 0, false, errors.Wrapf(err, "persist: read log dir %s", dir)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		return "", time.Time{}, 0, false, nil
	}
	sort.Strings(names)
	newest := names[len(names)-1]

	info, err := os.Stat(filepath.Join(dir, newest))
	if err != nil {
		return "", time.Time{}, 0, false, errors.Wrapf(err, "persist: stat %s", newest)
	}
	return newest, info.ModTime(), info.Size(), true, nil
}

// newSaveFilename builds a "<YYYYMMDDhhmmss>-<6 lowercase alnum>.json"
// filename whose lexicographic order matches save order (spec §6). The
// suffix is a trimmed, lowercased UUIDv4 rather than a sequence counter,
// so concurrent writers across processes never collide.
func newSaveFilename(now time.Time) (string, error) {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:6]
	return now.UTC().Format("20060102150405") + "-" + suffix + ".json", nil
}

var sanitizeRun = regexp.MustCompile(`[^A-Za-z0-9]+`)

// SanitizeWorkspacePath replaces runs of non-alphanumerics with a single
// "_" and trims leading/trailing "_", per spec §6 homeDirectory layout.
func SanitizeWorkspacePath(path string) string {
	s := sanitizeRun.ReplaceAllString(path, "_")
	return strings.Trim(s, "_")
}

// repository implements the *repository* layout: one JSON file per save
// under <workspace>/.tabd/log/<relative/path>/<timestamp>-<suffix>.json.
type repository struct {
	log tlog.Logger
}

// NewRepositoryStore returns the repository-layout Store (spec §4.6).
func NewRepositoryStore(log tlog.Logger) Store {
	if log == nil {
		log = tlog.Nop()
	}
	return &repository{log: log}
}

func (r *repository) logDir(workspaceRoot, relativePath string) string {
	return filepath.Join(workspaceRoot, ".tabd", "log", filepath.FromSlash(relativePath))
}

func (r *repository) Load(ctx context.Context, workspaceRoot, relativePath string) (*Record, error) {
	return loadFolded(ctx, r.logDir(workspaceRoot, relativePath), r.log)
}

func (r *repository) Save(ctx context.Context, workspaceRoot, relativePath string, rec *Record) error {
	return saveOne(ctx, r.logDir(workspaceRoot, relativePath), rec)
}

// NewestLogFile implements FreshnessProbe.
func (r *repository) NewestLogFile(ctx context.Context, workspaceRoot, relativePath string) (string, time.Time, int64, bool, error) {
	return newestLogFile(r.logDir(workspaceRoot, relativePath))
}

// homeDirectory implements the *homeDirectory* layout: identical file
// format, rooted at <home>/.tabd/workspaces/<sanitized>/log/<path>/...
type homeDirectory struct {
	home string
	log  tlog.Logger
}

// NewHomeDirectoryStore returns the homeDirectory-layout Store, rooted at
// home (typically os.UserHomeDir()).
func NewHomeDirectoryStore(home string, log tlog.Logger) Store {
	if log == nil {
		log = tlog.Nop()
	}
	return &homeDirectory{home: home, log: log}
}

func (h *homeDirectory) logDir(workspaceRoot, relativePath string) string {
	sanitized := SanitizeWorkspacePath(workspaceRoot)
	return filepath.Join(h.home, ".tabd", "workspaces", sanitized, "log", filepath.FromSlash(relativePath))
}

func (h *homeDirectory) Load(ctx context.Context, workspaceRoot, relativePath string) (*Record, error) {
	return loadFolded(ctx, h.logDir(workspaceRoot, relativePath), h.log)
}

func (h *homeDirectory) Save(ctx context.Context, workspaceRoot, relativePath string, rec *Record) error {
	return saveOne(ctx, h.logDir(workspaceRoot, relativePath), rec)
}

// NewestLogFile implements FreshnessProbe.
func (h *homeDirectory) NewestLogFile(ctx context.Context, workspaceRoot, relativePath string) (string, time.Time, int64, bool, error) {
	return newestLogFile(h.logDir(workspaceRoot, relativePath))
}

// loadFolded lists dir, sorts entries lexicographically (timestamp-
// sortable filenames), and folds each into a single Record by
// concatenating changes in file order — a malformed file is skipped with
// a warning rather than failing the whole load (spec §4.6, §7
// MalformedLog).
func loadFolded(ctx context.Context, dir string, log tlog.Logger) (*Record, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return &Record{Version: CurrentVersion}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "persist: read log dir %s", dir)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	out := &Record{Version: CurrentVersion}
	for _, name := range names {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.Warn("persist: skip unreadable log file %s: %s", name, err)
			continue
		}
		rec, err := ParseRecord(data)
		if err != nil {
			log.Warn("persist: skip malformed log file %s: %s", name, err)
			continue
		}
		if rec.Version != CurrentVersion {
			log.Warn("persist: skip log file %s with unknown version %d", name, rec.Version)
			continue
		}
		out.Changes = append(out.Changes, rec.Changes...)
	}
	return out, nil
}

// saveOne writes rec as a new timestamped file in dir, creating dir if
// needed.
func saveOne(ctx context.Context, dir string, rec *Record) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "persist: mkdir %s", dir)
	}
	name, err := newSaveFilename(time.Now())
	if err != nil {
		return err
	}
	data, err := MarshalRecord(*rec)
	if err != nil {
		return errors.Wrap(err, "persist: marshal record")
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return errors.Wrapf(err, "persist: write %s", name)
	}
	return nil
}
