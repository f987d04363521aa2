// Package merge implements the Log Merger: sequentially reconciling a
// just-loaded annotation log with the live store by timestamp precedence
// (spec §4.3).
package merge

import (
	"sort"

	"github.com/tabd/tabd/pkg/interval"
	"github.com/tabd/tabd/pkg/position"
)

// MergeSequentially folds each interval in newBatch into store, in order,
// per spec §4.3: overlapping existing intervals are found, removed, and
// the winner (by creation timestamp — ties favor the existing interval)
// determines what survives. After processing every new interval, the
// result is deduplicated by full-field equality and sorted by
// (start.line, start.column) — establishing invariant I3.
func MergeSequentially(store []interval.TaggedInterval, newBatch []interval.TaggedInterval) []interval.TaggedInterval {
	result := make([]interval.TaggedInterval, len(store))
	copy(result, store)

	for _, n := range newBatch {
		result = mergeOne(result, n)
	}

	out := interval.NewFromSlice(result)
	out.Dedup()
	items := out.Items()
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].Range.Start, items[j].Range.Start
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
	return items
}

// strictlyOverlaps reports ex.start < n.end && n.start < ex.end, per spec
// §4.3 (note: this is strict — touching ranges don't overlap here).
func strictlyOverlaps(ex, n position.Range) bool {
	return ex.Start.Less(n.End) && n.Start.Less(ex.End)
}

// mergeOne folds one new interval n into store. Existing intervals never
// strictly overlap each other (I4), so n can only span a left-to-right
// run of disjoint existing intervals; this walks that run left to right,
// at each one either splitting the existing interval around n (n wins)
// or splitting the surviving fragment(s) of n around the existing one
// (the existing interval wins, ties included).
func mergeOne(store []interval.TaggedInterval, n interval.TaggedInterval) []interval.TaggedInterval {
	var overlapping []interval.TaggedInterval
	var survivors []interval.TaggedInterval
	for _, ex := range store {
		if strictlyOverlaps(ex.Range, n.Range) {
			overlapping = append(overlapping, ex)
		} else {
			survivors = append(survivors, ex)
		}
	}

	sort.SliceStable(overlapping, func(i, j int) bool {
		return overlapping[i].Range.Start.Less(overlapping[j].Range.Start)
	})

	// fragments are the remaining pieces of n still being resolved
	// against further overlapping existing intervals.
	fragments := []position.Range{n.Range}
	var winners []position.Range // fragments where n beat an overlapping ex

	for _, ex := range overlapping {
		var next []position.Range
		for _, frag := range fragments {
			if !strictlyOverlaps(ex.Range, frag) {
				next = append(next, frag)
				continue
			}
			if n.CreationTS > ex.CreationTS {
				// n wins this overlap: split ex around frag, frag
				// survives whole as a winner (no further trimming
				// needed for this ex).
				if ex.Range.Start.Less(frag.Start) {
					left := ex
					left.Range.End = frag.Start
					if !left.Range.Empty() {
						survivors = append(survivors, left)
					}
				}
				if frag.End.Less(ex.Range.End) {
					right := ex
					right.Range.Start = frag.End
					if !right.Range.Empty() {
						survivors = append(survivors, right)
					}
				}
				winners = append(winners, frag)
			} else {
				// ex wins (including the tie case): keep ex as-is, trim
				// frag to its parts outside ex.
				survivors = append(survivors, ex)
				if frag.Start.Less(ex.Range.Start) {
					left := position.Range{Start: frag.Start, End: ex.Range.Start}
					if !left.Empty() {
						next = append(next, left)
					}
				}
				if ex.Range.End.Less(frag.End) {
					right := position.Range{Start: ex.Range.End, End: frag.End}
					if !right.Empty() {
						next = append(next, right)
					}
				}
			}
		}
		fragments = next
	}

	if len(overlapping) == 0 {
		survivors = append(survivors, n)
		return survivors
	}

	for _, w := range winners {
		cp := n
		cp.Range = w
		survivors = append(survivors, cp)
	}
	for _, f := range fragments {
		if f.Empty() {
			continue
		}
		cp := n
		cp.Range = f
		survivors = append(survivors, cp)
	}

	return survivors
}
