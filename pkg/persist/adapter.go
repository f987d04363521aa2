package persist

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/tabd/tabd/pkg/interval"
)

// SessionAdapter adapts a Store (which speaks in workspaceRoot +
// relativePath + Record) to the uri-based Load/Save shape
// session.Coordinator expects, splitting a "file://" or plain
// filesystem uri against WorkspaceRoot. Index is optional: when set and
// Store implements FreshnessProbe, SessionAdapter satisfies
// session.FreshnessChecker, letting onActivate skip a reload when the
// index says nothing has changed on disk since the last load/save
// (SPEC_FULL.md §4.6).
type SessionAdapter struct {
	Store         Store
	WorkspaceRoot string
	Index         *Index
}

func (a *SessionAdapter) relativePath(uri string) string {
	clean := strings.TrimPrefix(uri, "file://")
	rel, err := filepath.Rel(a.WorkspaceRoot, clean)
	if err != nil {
		return clean
	}
	return filepath.ToSlash(rel)
}

// Load implements session.Persistence.
func (a *SessionAdapter) Load(ctx context.Context, uri string) ([]interval.TaggedInterval, error) {
	rel := a.relativePath(uri)
	if !ShouldTrack(rel) {
		return nil, nil
	}
	rec, err := a.Store.Load(ctx, a.WorkspaceRoot, rel)
	if err != nil {
		return nil, err
	}
	a.refreshIndex(ctx, rel)
	if rec == nil {
		return nil, nil
	}
	return FromRecord(*rec)
}

// Save implements session.Persistence.
func (a *SessionAdapter) Save(ctx context.Context, uri string, items []interval.TaggedInterval) error {
	rel := a.relativePath(uri)
	if !ShouldTrack(rel) {
		return nil
	}
	rec := ToRecord(items, "")
	if err := a.Store.Save(ctx, a.WorkspaceRoot, rel, &rec); err != nil {
		return err
	}
	a.refreshIndex(ctx, rel)
	return nil
}

// Fresh implements session.FreshnessChecker: it reports whether the
// newest on-disk log file for rel still matches the index's cached
// entry, letting onActivate skip re-reading and re-merging every log
// file when nothing has changed since the last load/save. Without an
// Index, or when Store doesn't expose FreshnessProbe (vcs-notes), it
// always reports stale so the caller falls back to a full reload.
func (a *SessionAdapter) Fresh(ctx context.Context, uri string) (bool, error) {
	if a.Index == nil {
		return false, nil
	}
	probe, ok := a.Store.(FreshnessProbe)
	if !ok {
		return false, nil
	}
	rel := a.relativePath(uri)

	name, mtime, size, found, err := probe.NewestLogFile(ctx, a.WorkspaceRoot, rel)
	if err != nil {
		return false, err
	}
	if !found {
		return true, nil
	}

	entry, ok, err := a.Index.Lookup(ctx, a.WorkspaceRoot, rel)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	// Entry.NewestMTime round-trips through the index at second
	// precision (Index.Update stores mtime.Unix()), so compare at that
	// same granularity rather than via Equal — the freshly-probed mtime
	// still carries sub-second precision that would never match.
	return entry.NewestName == name && entry.NewestSize == size && entry.NewestMTime.Unix() == mtime.Unix(), nil
}

// refreshIndex records the newest on-disk log file's freshness marker
// after a successful load or save. Best-effort: a failure here just
// means the next onActivate falls back to a full reload, never a
// correctness problem.
func (a *SessionAdapter) refreshIndex(ctx context.Context, rel string) {
	if a.Index == nil {
		return
	}
	probe, ok := a.Store.(FreshnessProbe)
	if !ok {
		return
	}
	name, mtime, size, found, err := probe.NewestLogFile(ctx, a.WorkspaceRoot, rel)
	if err != nil || !found {
		return
	}
	_ = a.Index.Update(ctx, a.WorkspaceRoot, rel, Entry{NewestMTime: mtime, NewestSize: size, NewestName: name})
}
