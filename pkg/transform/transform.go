// Package transform implements the Edit Transformer: folding a batch of
// edit events over the Interval Store, classifying new intervals, and
// preserving the store's invariants (spec §4.2). This is the largest
// single module in the engine.
package transform

import (
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/tabd/tabd/pkg/classify"
	"github.com/tabd/tabd/pkg/hint"
	"github.com/tabd/tabd/pkg/interval"
	"github.com/tabd/tabd/pkg/position"
)

// Params bundles the Apply call's inputs.
type Params struct {
	Store      []interval.TaggedInterval
	PasteHints []interval.TaggedInterval
	Edits      []position.Edit
	Reason     classify.Reason
	Doc        position.DocumentRef
	Hints      hint.Hints
	Now        int64
	Author     string
}

// Outcome is everything Apply produces: the new store, plus side effects
// the session Coordinator must act on (clearing the AI hint, stashing a
// derived edit batch for the next call).
type Outcome struct {
	Store           []interval.TaggedInterval
	ClearAI         bool
	PendingAIEdit   *position.Edit // set when the before-tool branch fired
	PendingAIOffset int
	HasPendingAI    bool
}

// Apply folds edits over store per spec §4.2. A classifier panic/failure
// (surfaced here as a recovered error) still folds the edit into the
// store, just without AI metadata, per spec §4.5 failure semantics.
func Apply(p Params) (out Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("transform: classifier panic recovered: %v", r)
		}
	}()

	edits := maybeUnreverseWholeFileBatch(p.Edits)
	edits = sortDescendingByStart(edits)

	existing := make([]interval.TaggedInterval, len(p.Store))
	copy(existing, p.Store)

	var additional []interval.TaggedInterval

	for _, e := range edits {
		var result classify.Result
		func() {
			defer func() {
				if r := recover(); r != nil {
					result = classify.Result{}
					err = errors.Newf("transform: classifier panic recovered: %v", r)
				}
			}()
			result = classify.Classify(classify.Input{
				Edit:       e,
				Reason:     p.Reason,
				Hints:      p.Hints,
				PasteHints: p.PasteHints,
				Now:        p.Now,
				Doc:        p.Doc,
				Author:     p.Author,
			})
		}()

		if result.DerivedEdit != nil {
			out.PendingAIEdit = result.DerivedEdit
			out.PendingAIOffset = result.DerivedEditOffset
			out.HasPendingAI = true
			continue
		}

		if result.ScheduleClearAI {
			out.ClearAI = true
		}

		isAI := result.Emit != nil && result.Emit.Kind == interval.AIGenerated

		existing, additional = foldEdit(e, existing, additional, isAI, p.Doc)

		if result.Emit != nil {
			additional = append(additional, *result.Emit)
		}
	}

	union := append(existing, additional...)
	union = interval.DedupTouchingEmpties(union)

	out.Store = union
	return out, err
}

// maybeUnreverseWholeFileBatch implements the "known host quirk" fix
// from spec §4.2: if |edits| > 1 and the last edit's range end is
// exactly (0,0), the batch is collapsed into one edit whose range is the
// first edit's range and whose text is the concatenation, in reverse
// order, of every edit's replacement text. Kept behind this narrow,
// named helper per design note 9.1 — it is not generalised to other
// possible host quirks.
func maybeUnreverseWholeFileBatch(edits []position.Edit) []position.Edit {
	if len(edits) <= 1 {
		return edits
	}
	last := edits[len(edits)-1]
	if last.Range.End != (position.Position{}) {
		return edits
	}

	var text string
	for i := len(edits) - 1; i >= 0; i-- {
		text += edits[i].Replacement
	}
	return []position.Edit{{Range: edits[0].Range, Replacement: text}}
}

// sortDescendingByStart copies and sorts edits by Range.Start descending,
// so tail-to-head application never invalidates an earlier edit's
// position (spec §4.2 "Ordering").
func sortDescendingByStart(edits []position.Edit) []position.Edit {
	out := make([]position.Edit, len(edits))
	copy(out, edits)
	sort.SliceStable(out, func(i, j int) bool {
		return out[j].Range.Start.Less(out[i].Range.Start)
	})
	return out
}

// foldEdit applies the fold step (spec §4.2) of edit e to every interval
// in existing, producing the updated existing slice plus any additional
// intervals the deletion sub-step (AI-clamp path) peels off.
func foldEdit(
	e position.Edit,
	existing []interval.TaggedInterval,
	additional []interval.TaggedInterval,
	isAI bool,
	doc position.DocumentRef,
) ([]interval.TaggedInterval, []interval.TaggedInterval) {
	var aiAdded position.Range
	if isAI && doc != nil {
		aiAdded = position.Range{
			Start: e.Range.End,
			End:   position.EndAfterInsert(doc, e.Range.Start, e.Replacement),
		}
	}

	out := make([]interval.TaggedInterval, 0, len(existing))

	for _, iv := range existing {
		keep, extra := foldOne(e, iv, isAI, aiAdded, doc)
		if keep != nil {
			out = append(out, *keep)
		}
		if extra != nil {
			additional = append(additional, extra...)
		}
	}

	return out, additional
}

// touchOnly reports whether e.Range and iv.Range only touch at a single
// shared boundary point — the exclusion spec §4.2 carves out of both the
// deletion and addition sub-steps ("e.range.end == iv.start" or
// "e.range.start == iv.end").
func touchOnly(e position.Edit, iv interval.TaggedInterval) bool {
	return e.Range.End == iv.Range.Start || e.Range.Start == iv.Range.End
}

// foldOne folds one edit into one existing interval, returning the kept
// interval (nil if dropped) and any additional intervals peeled off by
// the AI-clamp deletion path.
func foldOne(
	e position.Edit,
	iv interval.TaggedInterval,
	isAI bool,
	aiAdded position.Range,
	doc position.DocumentRef,
) (*interval.TaggedInterval, []interval.TaggedInterval) {
	deletionNonEmpty := e.Range.Start.Less(e.Range.End)
	intersects := position.Intersects(e.Range, iv.Range)

	var extra []interval.TaggedInterval

	// Deletion sub-step.
	if deletionNonEmpty && intersects && !touchOnly(e, iv) {
		if isAI {
			clamped := iv
			if aiAdded.Contains(clamped.Range.Start) {
				clamped.Range.Start = aiAdded.End
			}
			if aiAdded.Contains(clamped.Range.End) {
				clamped.Range.End = aiAdded.Start
			}
			extra = append(extra, clamped)
			return nil, extra // removed from store, clamped copy emitted.
		}

		if e.Range.Contains(iv.Range.Start) {
			iv.Range.Start = e.Range.End
		}
		if e.Range.Contains(iv.Range.End) {
			iv.Range.End = e.Range.Start
		}
		if iv.Range.End.Less(iv.Range.Start) {
			return nil, extra // inverted: drop.
		}
	}

	// Addition sub-step: split iv at e.Range.Start if e intersects iv
	// (same touch-exclusion) and e inserts text.
	if e.Replacement != "" && intersects && !touchOnly(e, iv) {
		if iv.Range.Start.Less(e.Range.Start) && e.Range.Start.Less(iv.Range.End) {
			left := iv
			left.Range.End = e.Range.Start
			right := iv
			right.Range.Start = e.Range.Start

			left = shiftInterval(e, left, doc)
			right = shiftInterval(e, right, doc)
			extra = append(extra, left)
			return &right, extra
		}
	}

	iv = shiftInterval(e, iv, doc)
	return &iv, extra
}

// shiftInterval rewrites both endpoints of iv via position.Shift, with
// the special case from spec §4.2: if iv is non-empty and iv.End ==
// e.Range.End, the end is left unchanged (prevents the tail from
// drifting when an edit ends exactly at the interval's end).
func shiftInterval(e position.Edit, iv interval.TaggedInterval, doc position.DocumentRef) interval.TaggedInterval {
	keepEnd := !iv.Range.Empty() && iv.Range.End == e.Range.End

	iv.Range.Start = position.Shift(iv.Range.Start, e)
	if !keepEnd {
		iv.Range.End = position.Shift(iv.Range.End, e)
	}
	return iv
}
