// Package session implements the Session Coordinator (spec §4.5): the
// per-document state container that drives the Edit Transformer, Log
// Merger, and Edit Coalescer from host-delivered events, under the
// single per-process exclusive lock spec §5 requires.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/tabd/tabd/pkg/classify"
	"github.com/tabd/tabd/pkg/coalesce"
	"github.com/tabd/tabd/pkg/hint"
	"github.com/tabd/tabd/pkg/interval"
	"github.com/tabd/tabd/pkg/merge"
	"github.com/tabd/tabd/pkg/position"
	"github.com/tabd/tabd/pkg/tlog"
	"github.com/tabd/tabd/pkg/transform"
)

const pasteHintMaxAgeMS = 400

// Persistence is the capability the Coordinator needs from storage: load
// a document's historical log at activation, and commit a save. Concrete
// layouts (repository, homeDirectory, vcs-notes) live in pkg/persist.
type Persistence interface {
	Load(ctx context.Context, uri string) ([]interval.TaggedInterval, error)
	Save(ctx context.Context, uri string, items []interval.TaggedInterval) error
}

// Broadcaster is the decoration-update push channel (SPEC_FULL.md §4.7).
// A nil Broadcaster is valid — onEditBatch simply skips publishing.
type Broadcaster interface {
	Publish(uri string, items []interval.TaggedInterval)
}

// FreshnessChecker is an optional capability a Persistence may implement
// (pkg/persist's SessionAdapter does, backed by the SQLite freshness
// Index — SPEC_FULL.md §4.6): Fresh reports whether uri's on-disk log is
// unchanged since the last load/save, letting onActivate skip a reload
// that would just re-derive the same store it already has cached.
type FreshnessChecker interface {
	Fresh(ctx context.Context, uri string) (bool, error)
}

// SessionFileState is the per-document state a Coordinator caches: the
// live interval store, outstanding paste hints, the load watermark used
// by onSave's creation_ts filter, and any AI edit batch parked by a
// before-tool command awaiting its postInsertEdit re-run.
type SessionFileState struct {
	Doc           position.DocumentRef
	Store         []interval.TaggedInterval
	PasteHints    []interval.TaggedInterval
	LoadTimestamp int64
	Loaded        bool

	pendingAIEdit   *position.Edit
	pendingAIOffset int
	hasPendingAI    bool
}

// Coordinator is the Session Coordinator. All exported methods acquire
// mu before touching any field — documents intentionally share one lock
// (spec §5), matching Kolabpad's single-struct-mutex pattern generalised
// across every open document instead of one per document.
type Coordinator struct {
	mu          sync.Mutex
	files       map[string]*SessionFileState
	hints       hint.Hints
	persistence Persistence
	broadcaster Broadcaster
	now         func() int64
	author      string
	log         tlog.Logger
}

// New builds a Coordinator. now defaults to the wall clock in
// milliseconds if nil; persistence/broadcaster may be nil (no-op).
func New(author string, persistence Persistence, broadcaster Broadcaster, log tlog.Logger, now func() int64) *Coordinator {
	if now == nil {
		now = func() int64 { return time.Now().UnixMilli() }
	}
	if log == nil {
		log = tlog.Nop()
	}
	return &Coordinator{
		files:       make(map[string]*SessionFileState),
		persistence: persistence,
		broadcaster: broadcaster,
		now:         now,
		author:      author,
		log:         log,
	}
}

func (c *Coordinator) fileFor(doc position.DocumentRef) *SessionFileState {
	uri := doc.URI()
	f, ok := c.files[uri]
	if !ok {
		f = &SessionFileState{Doc: doc}
		c.files[uri] = f
	} else {
		f.Doc = doc
	}
	return f
}

// OnEditBatch implements onEditBatch(doc, edits, reason): acquires the
// lock, runs the Edit Transformer, stores the result, and emits a
// decoration update. A classifier panic is caught by transform.Apply
// itself and degrades to folding the edit without AI metadata — it
// never reaches here as an error the caller must recover from, but a
// non-nil err is still surfaced for logging, per §4.5 failure semantics.
func (c *Coordinator) OnEditBatch(doc position.DocumentRef, edits []position.Edit, reason classify.Reason) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	f := c.fileFor(doc)
	now := c.now()

	out, err := transform.Apply(transform.Params{
		Store:      f.Store,
		PasteHints: f.PasteHints,
		Edits:      edits,
		Reason:     reason,
		Doc:        doc,
		Hints:      c.hints,
		Now:        now,
		Author:     c.author,
	})
	if err != nil {
		c.log.Error("onEditBatch: classifier failed: %s", err)
	}

	f.Store = out.Store
	if out.ClearAI {
		c.hints.LastAICommand = nil
	}
	if out.HasPendingAI {
		f.pendingAIEdit = out.PendingAIEdit
		f.pendingAIOffset = out.PendingAIOffset
		f.hasPendingAI = true
	}

	if c.broadcaster != nil {
		c.broadcaster.Publish(doc.URI(), f.Store)
	}

	return err
}

// OnPaste implements onPaste(doc, ranges): appends (r, Paste, now) hints
// and prunes hints older than 400ms.
func (c *Coordinator) OnPaste(doc position.DocumentRef, ranges []position.Range) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f := c.fileFor(doc)
	now := c.now()

	for _, r := range ranges {
		f.PasteHints = append(f.PasteHints, interval.TaggedInterval{
			Range:      r,
			Kind:       interval.Paste,
			CreationTS: now,
		})
	}

	pruned := f.PasteHints[:0]
	for _, h := range f.PasteHints {
		if now-h.CreationTS <= pasteHintMaxAgeMS {
			pruned = append(pruned, h)
		}
	}
	f.PasteHints = pruned
}

// OnActivate implements onActivate(doc): loads the persisted log via the
// Log Merger, then sets loadTimestamp = now - 1. A document already
// loaded in this process skips the reload unless its Persistence reports
// (via FreshnessChecker, SPEC_FULL.md §4.6) that the on-disk log has
// changed since the last load/save — e.g. another process appended to
// it — in which case it is re-read and re-merged just as on first
// activation.
func (c *Coordinator) OnActivate(ctx context.Context, doc position.DocumentRef) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	f := c.fileFor(doc)
	now := c.now()

	reload := !f.Loaded
	if !reload && c.persistence != nil {
		if fc, ok := c.persistence.(FreshnessChecker); ok {
			fresh, err := fc.Fresh(ctx, doc.URI())
			if err != nil {
				c.log.Warn("onActivate: freshness check failed for %s: %s", doc.URI(), err)
				reload = true
			} else if !fresh {
				reload = true
			}
		}
	}

	if reload && c.persistence != nil {
		loaded, err := c.persistence.Load(ctx, doc.URI())
		if err != nil {
			c.log.Error("onActivate: load failed for %s: %s", doc.URI(), err)
		} else {
			f.Store = merge.MergeSequentially(f.Store, loaded)
		}
	}
	f.Loaded = true

	f.LoadTimestamp = now - 1
	return nil
}

// OnSave implements onSave(doc): coalesces, filters to
// creation_ts > loadTimestamp, serialises, and commits to persistence. A
// persistence failure is logged and does not roll back in-memory state
// (spec §7 StorageUnavailable/TransientExternal policy).
func (c *Coordinator) OnSave(ctx context.Context, doc position.DocumentRef) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	f := c.fileFor(doc)
	coalesced := coalesce.Coalesce(f.Store)
	st := interval.NewFromSlice(coalesced)
	st.Sort()
	f.Store = st.Items()

	var toPersist []interval.TaggedInterval
	for _, it := range f.Store {
		if it.CreationTS > f.LoadTimestamp {
			toPersist = append(toPersist, it)
		}
	}

	if c.persistence == nil {
		return nil
	}
	if err := c.persistence.Save(ctx, doc.URI(), toPersist); err != nil {
		c.log.Error("onSave: persistence failed for %s: %s", doc.URI(), err)
		return err
	}
	return nil
}

// OnInternalAICommand implements onInternalAICommand(payload): stores
// payload as lastAICommand, then acts on its type per §4.5.
//
//   - postInsertEdit: re-run the Transformer with the pending AI-edit
//     batch parked by an earlier before-tool command, reason =
//     AIGenerated.
//   - createFile: open the named document's state (via open) and apply a
//     single synthetic edit (0,0)->(0,0) with the insert text, reason =
//     AIGenerated.
//
// open resolves a URI to the DocumentRef the createFile branch should
// operate on; callers without a document registry may pass nil, in
// which case createFile payloads are logged and skipped.
func (c *Coordinator) OnInternalAICommand(payload *hint.AICommand, open func(uri string) position.DocumentRef, targetDoc position.DocumentRef) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.hints.LastAICommand = payload
	if payload == nil {
		return nil
	}

	switch payload.Type {
	case hint.TypePostInsertEdit:
		f := c.fileFor(targetDoc)
		if !f.hasPendingAI || f.pendingAIEdit == nil {
			return nil
		}
		start := targetDoc.PositionAt(f.pendingAIOffset)
		edit := position.Edit{
			Range:       position.Range{Start: start, End: start},
			Replacement: f.pendingAIEdit.Replacement,
		}
		f.hasPendingAI = false
		f.pendingAIEdit = nil

		out, err := transform.Apply(transform.Params{
			Store:      f.Store,
			PasteHints: f.PasteHints,
			Edits:      []position.Edit{edit},
			Reason:     classify.ReasonAIGenerated,
			Doc:        targetDoc,
			Hints:      c.hints,
			Now:        c.now(),
			Author:     c.author,
		})
		if err != nil {
			c.log.Error("onInternalAICommand: postInsertEdit replay failed: %s", err)
		}
		f.Store = out.Store
		if c.broadcaster != nil {
			c.broadcaster.Publish(targetDoc.URI(), f.Store)
		}
		return err

	case hint.TypeCreateFile:
		var doc position.DocumentRef
		if open != nil && payload.Document != "" {
			doc = open(payload.Document)
		}
		if doc == nil {
			c.log.Warn("onInternalAICommand: createFile with no resolvable document %q", payload.Document)
			return nil
		}
		f := c.fileFor(doc)
		zero := position.Position{}
		out, err := transform.Apply(transform.Params{
			Store:      f.Store,
			PasteHints: f.PasteHints,
			Edits:      []position.Edit{{Range: position.Range{Start: zero, End: zero}, Replacement: payload.InsertText}},
			Reason:     classify.ReasonAIGenerated,
			Doc:        doc,
			Hints:      c.hints,
			Now:        c.now(),
			Author:     c.author,
		})
		if err != nil {
			c.log.Error("onInternalAICommand: createFile failed: %s", err)
		}
		f.Store = out.Store
		if c.broadcaster != nil {
			c.broadcaster.Publish(doc.URI(), f.Store)
		}
		return err
	}

	return nil
}

// OnStorageConfigChange implements onStorageConfigChange(): drops every
// cached SessionFileState, forcing the next onActivate to reload from
// the (now reconfigured) persistence layout.
func (c *Coordinator) OnStorageConfigChange() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files = make(map[string]*SessionFileState)
}

// Snapshot returns a copy of the current store for doc, or nil if doc
// has no cached state. Intended for tests and the decoration transport's
// initial-state handshake.
func (c *Coordinator) Snapshot(uri string) []interval.TaggedInterval {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.files[uri]
	if !ok {
		return nil
	}
	out := make([]interval.TaggedInterval, len(f.Store))
	copy(out, f.Store)
	return out
}
