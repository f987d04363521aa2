package transform

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tabd/tabd/internal/testrope"
	"github.com/tabd/tabd/pkg/classify"
	"github.com/tabd/tabd/pkg/interval"
	"github.com/tabd/tabd/pkg/position"
)

func pos(l, c int) position.Position { return position.Position{Line: l, Column: c} }

func TestApplySingleInsertEmitsOneUserEditInterval(t *testing.T) {
	// A single typed character; doc holds the text after the edit.
	doc := testrope.New("file://t", "h")
	edits := []position.Edit{{Range: position.Range{Start: pos(0, 0), End: pos(0, 0)}, Replacement: "h"}}

	out, err := Apply(Params{Edits: edits, Reason: classify.ReasonNone, Doc: doc, Now: 1000, Author: "alice"})
	require.NoError(t, err)
	require.Len(t, out.Store, 1)
	require.Equal(t, interval.UserEdit, out.Store[0].Kind)
	require.Equal(t, pos(0, 1), out.Store[0].Range.End)
}

func TestApplyShiftsExistingIntervalAfterInsert(t *testing.T) {
	doc := testrope.New("file://t", "hello world")
	existing := []interval.TaggedInterval{
		{Range: position.Range{Start: pos(0, 6), End: pos(0, 11)}, Kind: interval.UserEdit, CreationTS: 1},
	}
	edits := []position.Edit{{Range: position.Range{Start: pos(0, 0), End: pos(0, 0)}, Replacement: "XX"}}

	out, err := Apply(Params{Store: existing, Edits: edits, Reason: classify.ReasonNone, Doc: doc, Now: 1000})
	require.NoError(t, err)

	var shifted *interval.TaggedInterval
	for i := range out.Store {
		if out.Store[i].Kind == interval.UserEdit && out.Store[i].CreationTS == 1 {
			shifted = &out.Store[i]
		}
	}
	require.NotNil(t, shifted)
	require.Equal(t, pos(0, 8), shifted.Range.Start)
	require.Equal(t, pos(0, 13), shifted.Range.End)
}

func TestApplyDeletionShrinksOverlappingInterval(t *testing.T) {
	doc := testrope.New("file://t", "hello world")
	existing := []interval.TaggedInterval{
		{Range: position.Range{Start: pos(0, 0), End: pos(0, 11)}, Kind: interval.UserEdit, CreationTS: 1},
	}
	// Delete "hello " (0..6).
	edits := []position.Edit{{Range: position.Range{Start: pos(0, 0), End: pos(0, 6)}}}

	out, err := Apply(Params{Store: existing, Edits: edits, Reason: classify.ReasonNone, Doc: doc, Now: 1000})
	require.NoError(t, err)
	require.Len(t, out.Store, 1)
	require.Equal(t, pos(0, 0), out.Store[0].Range.Start)
	require.Equal(t, pos(0, 5), out.Store[0].Range.End)
}

func TestApplyReverseWholeFileBatchCollapses(t *testing.T) {
	doc := testrope.New("file://t", "ab")
	// Simulates the host quirk: multiple edits where the last one's end
	// is (0,0) — spec says fold these into one reversed-concat batch.
	// Paste reason so the collapsed two-character text emits an interval.
	edits := []position.Edit{
		{Range: position.Range{Start: pos(0, 0), End: pos(0, 0)}, Replacement: "b"},
		{Range: position.Range{Start: pos(0, 0), End: pos(0, 0)}, Replacement: "a"},
	}
	out, err := Apply(Params{Edits: edits, Reason: classify.ReasonPaste, Doc: doc, Now: 1000})
	require.NoError(t, err)
	require.Len(t, out.Store, 1)
	require.Equal(t, pos(0, 2), out.Store[0].Range.End)
}

func TestApplyUndoReasonEmitsUndoRedoKind(t *testing.T) {
	doc := testrope.New("file://t", "abc")
	edits := []position.Edit{{Range: position.Range{Start: pos(0, 0), End: pos(0, 3)}}}
	out, err := Apply(Params{Edits: edits, Reason: classify.ReasonUndo, Doc: doc, Now: 1000})
	require.NoError(t, err)
	require.Len(t, out.Store, 1)
	require.Equal(t, interval.UndoRedo, out.Store[0].Kind)
}

func TestApplyTouchingEditDoesNotSplitIntervalButStillShiftsIt(t *testing.T) {
	doc := testrope.New("file://t", "helloworld")
	existing := []interval.TaggedInterval{
		{Range: position.Range{Start: pos(0, 5), End: pos(0, 10)}, Kind: interval.UserEdit, CreationTS: 1},
	}
	// Insert exactly at the interval's start boundary — touch only, so no
	// split, but position.Shift's insertion-at-position rule (§9.3) still
	// pushes the interval's start right.
	edits := []position.Edit{{Range: position.Range{Start: pos(0, 5), End: pos(0, 5)}, Replacement: "XX"}}

	out, err := Apply(Params{Store: existing, Edits: edits, Reason: classify.ReasonNone, Doc: doc, Now: 1000})
	require.NoError(t, err)

	found := false
	for _, iv := range out.Store {
		if iv.CreationTS == 1 {
			found = true
			require.Equal(t, pos(0, 7), iv.Range.Start)
			require.Equal(t, pos(0, 12), iv.Range.End)
		}
	}
	require.True(t, found)
}
