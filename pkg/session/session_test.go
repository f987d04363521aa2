package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tabd/tabd/internal/testrope"
	"github.com/tabd/tabd/pkg/classify"
	"github.com/tabd/tabd/pkg/hint"
	"github.com/tabd/tabd/pkg/interval"
	"github.com/tabd/tabd/pkg/position"
)

var errFreshnessUnavailable = errors.New("freshness check unavailable")

type fakePersistence struct {
	loadItems []interval.TaggedInterval
	loadErr   error
	saved     []interval.TaggedInterval
	saveErr   error
}

func (f *fakePersistence) Load(ctx context.Context, uri string) ([]interval.TaggedInterval, error) {
	return f.loadItems, f.loadErr
}

func (f *fakePersistence) Save(ctx context.Context, uri string, items []interval.TaggedInterval) error {
	f.saved = items
	return f.saveErr
}

// fakeFreshPersistence additionally implements FreshnessChecker so
// OnActivate's type assertion finds it, letting tests drive the
// freshness-checked reload path independently of fakePersistence's
// plain "reload once" behavior.
type fakeFreshPersistence struct {
	fakePersistence
	fresh    bool
	freshErr error
	checked  int
}

func (f *fakeFreshPersistence) Fresh(ctx context.Context, uri string) (bool, error) {
	f.checked++
	return f.fresh, f.freshErr
}

type fakeBroadcaster struct {
	published map[string][]interval.TaggedInterval
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{published: make(map[string][]interval.TaggedInterval)}
}

func (b *fakeBroadcaster) Publish(uri string, items []interval.TaggedInterval) {
	b.published[uri] = items
}

func clockAt(ms int64) func() int64 {
	return func() int64 { return ms }
}

func TestOnEditBatchStoresAndPublishes(t *testing.T) {
	doc := testrope.New("file://t", "")
	b := newFakeBroadcaster()
	c := New("alice", nil, b, nil, clockAt(1000))

	edits := []position.Edit{{Range: position.Range{Start: position.Position{}, End: position.Position{}}, Replacement: "h"}}
	err := c.OnEditBatch(doc, edits, classify.ReasonNone)
	require.NoError(t, err)

	items := c.Snapshot(doc.URI())
	require.Len(t, items, 1)
	require.Equal(t, interval.UserEdit, items[0].Kind)
	require.Contains(t, b.published, doc.URI())
}

func TestOnActivateMergesPersistedLogOnlyOnce(t *testing.T) {
	doc := testrope.New("file://t", "hello")
	p := &fakePersistence{loadItems: []interval.TaggedInterval{
		{Range: position.Range{Start: position.Position{Line: 0, Column: 0}, End: position.Position{Line: 0, Column: 5}}, Kind: interval.UserEdit, CreationTS: 1},
	}}
	c := New("alice", p, nil, nil, clockAt(2000))

	require.NoError(t, c.OnActivate(context.Background(), doc))
	require.Len(t, c.Snapshot(doc.URI()), 1)

	// A second activate must not reload/duplicate.
	p.loadItems = append(p.loadItems, interval.TaggedInterval{Kind: interval.UserEdit, CreationTS: 2})
	require.NoError(t, c.OnActivate(context.Background(), doc))
	require.Len(t, c.Snapshot(doc.URI()), 1)
}

func TestOnActivateSkipsReloadWhenPersistenceReportsFresh(t *testing.T) {
	doc := testrope.New("file://t", "hello")
	p := &fakeFreshPersistence{fresh: true}
	p.loadItems = []interval.TaggedInterval{
		{Range: position.Range{Start: position.Position{Line: 0, Column: 0}, End: position.Position{Line: 0, Column: 5}}, Kind: interval.UserEdit, CreationTS: 1},
	}
	c := New("alice", p, nil, nil, clockAt(2000))

	require.NoError(t, c.OnActivate(context.Background(), doc))
	require.Equal(t, 0, p.checked)
	// First activate always reloads regardless of freshness (nothing cached yet).
	require.Len(t, c.Snapshot(doc.URI()), 1)

	p.loadItems = append(p.loadItems, interval.TaggedInterval{Kind: interval.UserEdit, CreationTS: 2})
	require.NoError(t, c.OnActivate(context.Background(), doc))
	require.Equal(t, 1, p.checked)
	// Reported fresh, so the second load's extra item never gets merged in.
	require.Len(t, c.Snapshot(doc.URI()), 1)
}

func TestOnActivateReloadsWhenPersistenceReportsStale(t *testing.T) {
	doc := testrope.New("file://t", "hello")
	p := &fakeFreshPersistence{fresh: false}
	p.loadItems = []interval.TaggedInterval{
		{Range: position.Range{Start: position.Position{Line: 0, Column: 0}, End: position.Position{Line: 0, Column: 5}}, Kind: interval.UserEdit, CreationTS: 1},
	}
	c := New("alice", p, nil, nil, clockAt(2000))

	require.NoError(t, c.OnActivate(context.Background(), doc))
	require.Len(t, c.Snapshot(doc.URI()), 1)

	p.loadItems = append(p.loadItems, interval.TaggedInterval{
		Range: position.Range{Start: position.Position{Line: 1, Column: 0}, End: position.Position{Line: 1, Column: 1}},
		Kind:  interval.UserEdit, CreationTS: 2,
	})
	require.NoError(t, c.OnActivate(context.Background(), doc))
	// Reported stale, so the second activate re-merges and picks up the new item.
	require.Len(t, c.Snapshot(doc.URI()), 2)
}

func TestOnActivateFreshnessCheckErrorFallsBackToReload(t *testing.T) {
	doc := testrope.New("file://t", "hello")
	p := &fakeFreshPersistence{freshErr: errFreshnessUnavailable}
	p.loadItems = []interval.TaggedInterval{
		{Range: position.Range{Start: position.Position{Line: 0, Column: 0}, End: position.Position{Line: 0, Column: 5}}, Kind: interval.UserEdit, CreationTS: 1},
	}
	c := New("alice", p, nil, nil, clockAt(2000))
	require.NoError(t, c.OnActivate(context.Background(), doc))
	require.Len(t, c.Snapshot(doc.URI()), 1)

	p.loadItems = append(p.loadItems, interval.TaggedInterval{
		Range: position.Range{Start: position.Position{Line: 1, Column: 0}, End: position.Position{Line: 1, Column: 1}},
		Kind:  interval.UserEdit, CreationTS: 2,
	})
	require.NoError(t, c.OnActivate(context.Background(), doc))
	require.Len(t, c.Snapshot(doc.URI()), 2)
}

func TestOnActivateSetsLoadTimestampBeforeNow(t *testing.T) {
	doc := testrope.New("file://t", "")
	c := New("alice", nil, nil, nil, clockAt(5000))
	require.NoError(t, c.OnActivate(context.Background(), doc))

	c.mu.Lock()
	ts := c.files[doc.URI()].LoadTimestamp
	c.mu.Unlock()
	require.Equal(t, int64(4999), ts)
}

func TestOnSaveFiltersToItemsNewerThanLoadTimestamp(t *testing.T) {
	doc := testrope.New("file://t", "")
	p := &fakePersistence{}
	c := New("alice", p, nil, nil, clockAt(1000))

	require.NoError(t, c.OnActivate(context.Background(), doc)) // loadTimestamp = 999

	edits := []position.Edit{{Range: position.Range{Start: position.Position{}, End: position.Position{}}, Replacement: "x"}}
	require.NoError(t, c.OnEditBatch(doc, edits, classify.ReasonNone))

	require.NoError(t, c.OnSave(context.Background(), doc))
	require.Len(t, p.saved, 1)
}

func TestOnSaveNoopWithoutPersistence(t *testing.T) {
	doc := testrope.New("file://t", "")
	c := New("alice", nil, nil, nil, clockAt(1000))
	require.NoError(t, c.OnActivate(context.Background(), doc))
	require.NoError(t, c.OnSave(context.Background(), doc))
}

func TestOnPastePrunesHintsOlderThanWindow(t *testing.T) {
	doc := testrope.New("file://t", "")
	now := int64(0)
	c := New("alice", nil, nil, nil, func() int64 { return now })

	c.OnPaste(doc, []position.Range{{Start: position.Position{}, End: position.Position{}}})

	now = pasteHintMaxAgeMS + 1
	c.OnPaste(doc, nil) // re-runs the prune with the new clock value

	c.mu.Lock()
	hints := c.files[doc.URI()].PasteHints
	c.mu.Unlock()
	require.Empty(t, hints)
}

func TestOnStorageConfigChangeDropsCache(t *testing.T) {
	doc := testrope.New("file://t", "")
	c := New("alice", nil, nil, nil, clockAt(1000))
	require.NoError(t, c.OnActivate(context.Background(), doc))
	require.NotNil(t, c.Snapshot(doc.URI()))

	c.OnStorageConfigChange()
	require.Nil(t, c.Snapshot(doc.URI()))
}

func TestOnInternalAICommandPostInsertEditReplaysPendingEdit(t *testing.T) {
	doc := testrope.New("file://t", "hello world")
	b := newFakeBroadcaster()
	c := New("alice", nil, b, nil, clockAt(1000))

	ai := &hint.AICommand{Type: hint.TypeOnBeforeInsertEditTool, OldText: "hello world"}
	edits := []position.Edit{{Range: position.Range{Start: position.Position{Line: 0, Column: 6}, End: position.Position{Line: 0, Column: 11}}, Replacement: "brave world"}}

	// Registering the before-tool command first makes the next edit
	// batch hit the before-tool branch, which parks a derived edit
	// instead of emitting an interval directly.
	require.NoError(t, c.OnInternalAICommand(ai, nil, doc))
	require.NoError(t, c.OnEditBatch(doc, edits, classify.ReasonNone))

	c.mu.Lock()
	hasPending := c.files[doc.URI()].hasPendingAI
	c.mu.Unlock()
	require.True(t, hasPending)

	post := &hint.AICommand{Type: hint.TypePostInsertEdit}
	require.NoError(t, c.OnInternalAICommand(post, nil, doc))

	items := c.Snapshot(doc.URI())
	var sawAI bool
	for _, it := range items {
		if it.Kind == interval.AIGenerated {
			sawAI = true
		}
	}
	require.True(t, sawAI)
}

func TestOnInternalAICommandCreateFileAppliesSyntheticInsert(t *testing.T) {
	target := testrope.New("file://new", "")
	c := New("alice", nil, nil, nil, clockAt(1000))

	payload := &hint.AICommand{Type: hint.TypeCreateFile, Document: "file://new", InsertText: "package main\n"}
	err := c.OnInternalAICommand(payload, func(uri string) position.DocumentRef { return target }, nil)
	require.NoError(t, err)

	items := c.Snapshot(target.URI())
	require.Len(t, items, 1)
	require.Equal(t, interval.AIGenerated, items[0].Kind)
}

func TestOnInternalAICommandCreateFileWithoutResolverIsNoop(t *testing.T) {
	c := New("alice", nil, nil, nil, clockAt(1000))
	payload := &hint.AICommand{Type: hint.TypeCreateFile, Document: "file://new", InsertText: "x"}
	err := c.OnInternalAICommand(payload, nil, nil)
	require.NoError(t, err)
}
