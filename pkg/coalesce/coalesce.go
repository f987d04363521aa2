// Package coalesce implements the Edit Coalescer: merging adjacent
// small user-edit intervals within a time window into one, run only at
// persist time (spec §4.4).
package coalesce

import (
	"sort"

	"github.com/tabd/tabd/pkg/interval"
)

const windowMS = 60_000

// Coalesce groups adjacent UserEdit intervals that touch (prev.End ==
// cur.Start) and were created within 60s of each other into one
// interval spanning [group[0].Start, group[-1].End], with
// CreationTS = min(group.CreationTS) and author/options from group[0].
// Non-UserEdit intervals pass through unchanged. The result is NOT
// re-sorted relative to non-UserEdit intervals' original positions
// beyond what grouping requires; callers that need I3 afterwards should
// call interval.Store.Sort().
func Coalesce(items []interval.TaggedInterval) []interval.TaggedInterval {
	var userEdits []interval.TaggedInterval
	var rest []interval.TaggedInterval
	for _, it := range items {
		if it.Kind == interval.UserEdit {
			userEdits = append(userEdits, it)
		} else {
			rest = append(rest, it)
		}
	}

	sort.SliceStable(userEdits, func(i, j int) bool {
		return userEdits[i].Range.Start.Less(userEdits[j].Range.Start)
	})

	// minTS tracks each group's running minimum creation timestamp —
	// once two edits coalesce, the group behaves as though it was
	// created at its earliest member's time for the purpose of deciding
	// whether the next adjacent edit still falls inside the 60s window.
	var groups [][]interval.TaggedInterval
	var minTS []int64
	for _, cur := range userEdits {
		if len(groups) > 0 {
			g := groups[len(groups)-1]
			prev := g[len(g)-1]
			gi := len(groups) - 1
			if prev.Range.End == cur.Range.Start && absDiff(cur.CreationTS, minTS[gi]) < windowMS {
				groups[gi] = append(g, cur)
				if cur.CreationTS < minTS[gi] {
					minTS[gi] = cur.CreationTS
				}
				continue
			}
		}
		groups = append(groups, []interval.TaggedInterval{cur})
		minTS = append(minTS, cur.CreationTS)
	}

	out := make([]interval.TaggedInterval, 0, len(userEdits)+len(rest))
	for _, g := range groups {
		if len(g) == 1 {
			out = append(out, g[0])
			continue
		}
		merged := g[0]
		merged.Range.End = g[len(g)-1].Range.End
		minTS := g[0].CreationTS
		for _, it := range g[1:] {
			if it.CreationTS < minTS {
				minTS = it.CreationTS
			}
		}
		merged.CreationTS = minTS
		out = append(out, merged)
	}

	out = append(out, rest...)
	return out
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}
