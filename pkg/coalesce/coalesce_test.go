package coalesce

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tabd/tabd/pkg/interval"
	"github.com/tabd/tabd/pkg/position"
)

func rng(sc, ec int) position.Range {
	return position.Range{Start: position.Position{Line: 0, Column: sc}, End: position.Position{Line: 0, Column: ec}}
}

func TestCoalesceMergesAdjacentUserEditsWithinWindow(t *testing.T) {
	items := []interval.TaggedInterval{
		{Range: rng(0, 3), Kind: interval.UserEdit, CreationTS: 1000, Author: "alice"},
		{Range: rng(3, 6), Kind: interval.UserEdit, CreationTS: 1500},
	}
	out := Coalesce(items)
	require.Len(t, out, 1)
	require.Equal(t, rng(0, 6), out[0].Range)
	require.Equal(t, int64(1000), out[0].CreationTS)
	require.Equal(t, "alice", out[0].Author)
}

func TestCoalesceDoesNotMergeAcrossWindow(t *testing.T) {
	items := []interval.TaggedInterval{
		{Range: rng(0, 3), Kind: interval.UserEdit, CreationTS: 0},
		{Range: rng(3, 6), Kind: interval.UserEdit, CreationTS: windowMS + 1},
	}
	out := Coalesce(items)
	require.Len(t, out, 2)
}

func TestCoalesceDoesNotMergeNonAdjacentIntervals(t *testing.T) {
	items := []interval.TaggedInterval{
		{Range: rng(0, 3), Kind: interval.UserEdit, CreationTS: 1000},
		{Range: rng(5, 8), Kind: interval.UserEdit, CreationTS: 1100},
	}
	out := Coalesce(items)
	require.Len(t, out, 2)
}

func TestCoalesceLeavesNonUserEditIntervalsUntouched(t *testing.T) {
	items := []interval.TaggedInterval{
		{Range: rng(0, 3), Kind: interval.UserEdit, CreationTS: 1000},
		{Range: rng(3, 6), Kind: interval.UserEdit, CreationTS: 1100},
		{Range: rng(10, 12), Kind: interval.AIGenerated, CreationTS: 1000},
	}
	out := Coalesce(items)
	require.Len(t, out, 2)

	var sawAI bool
	for _, iv := range out {
		if iv.Kind == interval.AIGenerated {
			sawAI = true
			require.Equal(t, rng(10, 12), iv.Range)
		}
	}
	require.True(t, sawAI)
}

func TestCoalesceChainsThreeAdjacentEdits(t *testing.T) {
	items := []interval.TaggedInterval{
		{Range: rng(0, 2), Kind: interval.UserEdit, CreationTS: 500},
		{Range: rng(2, 4), Kind: interval.UserEdit, CreationTS: 1000},
		{Range: rng(4, 6), Kind: interval.UserEdit, CreationTS: 1400},
	}
	out := Coalesce(items)
	require.Len(t, out, 1)
	require.Equal(t, rng(0, 6), out[0].Range)
	require.Equal(t, int64(500), out[0].CreationTS)
}
