// Package interval implements the Interval Store: an ordered collection
// of provenance-tagged intervals for one document, with the invariants
// from spec §3 (I1-I5).
package interval

import (
	"sort"

	"github.com/tabd/tabd/pkg/position"
)

// Kind is the closed set of provenance kinds (spec §3).
type Kind string

const (
	Unknown      Kind = "Unknown"
	UserEdit     Kind = "UserEdit"
	AIGenerated  Kind = "AIGenerated"
	UndoRedo     Kind = "UndoRedo"
	Paste        Kind = "Paste"
	IDEPaste     Kind = "IDEPaste"
)

// Options carries the optional provenance metadata fields, all empty
// string when absent. Kept flat — no inheritance hierarchy (spec §9).
type Options struct {
	PasteURL      string
	PasteTitle    string
	AIName        string
	AIModel       string
	AIExplanation string
	AIType        string
}

// TaggedInterval is a Range plus provenance metadata. Equality requires
// equality on every field, including CreationTS (spec §3).
type TaggedInterval struct {
	Range      position.Range
	Kind       Kind
	CreationTS int64 // ms since epoch
	Author     string
	Options    Options
}

// Equal reports full-field equality, used by I5 (no duplicates) and the
// Log Merger's post-merge dedup.
func (t TaggedInterval) Equal(o TaggedInterval) bool {
	return t.Range == o.Range &&
		t.Kind == o.Kind &&
		t.CreationTS == o.CreationTS &&
		t.Author == o.Author &&
		t.Options == o.Options
}

// Store is the ordered collection of tagged intervals for one document.
type Store struct {
	items []TaggedInterval
}

// New returns an empty store.
func New() *Store {
	return &Store{}
}

// NewFromSlice builds a store from an arbitrary slice, without sorting or
// deduplicating — used by callers (the Log Merger, the Session
// Coordinator's save path) that then call Dedup and/or Sort themselves.
func NewFromSlice(items []TaggedInterval) *Store {
	cp := make([]TaggedInterval, len(items))
	copy(cp, items)
	return &Store{items: cp}
}

// Items returns a copy of the stored intervals, in current order.
func (s *Store) Items() []TaggedInterval {
	cp := make([]TaggedInterval, len(s.items))
	copy(cp, s.items)
	return cp
}

// Len returns the number of stored intervals.
func (s *Store) Len() int { return len(s.items) }

// Set replaces the store's contents wholesale (used after a fold or a
// merge produces a new slice).
func (s *Store) Set(items []TaggedInterval) {
	s.items = items
}

// Sort orders intervals by Start (primary) then End, per I3. Must be
// called after mergeSequentially and is safe to call any time.
func (s *Store) Sort() {
	sort.SliceStable(s.items, func(i, j int) bool {
		a, b := s.items[i].Range, s.items[j].Range
		if a.Start != b.Start {
			return a.Start.Less(b.Start)
		}
		return a.End.Less(b.End)
	})
}

// Dedup removes full-field-equal duplicates (I5), preserving order of
// first occurrence.
func (s *Store) Dedup() {
	out := make([]TaggedInterval, 0, len(s.items))
	for _, it := range s.items {
		dup := false
		for _, kept := range out {
			if kept.Equal(it) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, it)
		}
	}
	s.items = out
}

// Bounds reports whether every interval's [Start, End] lies within
// [0,0]..docEnd inclusive (I2). docEnd is the document's end position as
// reported by the DocumentRef oracle.
func (s *Store) Bounds(docEnd position.Position) bool {
	origin := position.Position{}
	for _, it := range s.items {
		if it.Range.Start.Less(origin) || docEnd.Less(it.Range.Start) {
			return false
		}
		if it.Range.End.Less(origin) || docEnd.Less(it.Range.End) {
			return false
		}
	}
	return true
}

// NoInverted reports whether every interval satisfies I1 (Start <= End).
func (s *Store) NoInverted() bool {
	for _, it := range s.items {
		if it.Range.End.Less(it.Range.Start) {
			return false
		}
	}
	return true
}

// NoStrictOverlap reports whether I4 holds: two non-empty intervals may
// touch but never strictly overlap; empties may coexist anywhere. Assumes
// the store is sorted.
func (s *Store) NoStrictOverlap() bool {
	for i := 0; i < len(s.items); i++ {
		a := s.items[i]
		if a.Range.Empty() {
			continue
		}
		for j := i + 1; j < len(s.items); j++ {
			b := s.items[j]
			if b.Range.Empty() {
				continue
			}
			if a.Range.End.LessEqual(b.Range.Start) {
				continue // a ends at-or-before b starts: no overlap.
			}
			if b.Range.End.LessEqual(a.Range.Start) {
				continue
			}
			return false
		}
	}
	return true
}

// DedupTouchingEmpties implements the post-pass from spec §4.2: for each
// ordered pair (i, j) with i < j, if intervals i and j touch, drop
// whichever of the pair is empty (preferring to drop j, falling back to
// dropping i if j isn't the empty one). Non-empty/non-touching pairs are
// untouched.
func DedupTouchingEmpties(items []TaggedInterval) []TaggedInterval {
	dropped := make([]bool, len(items))
	for i := 0; i < len(items); i++ {
		if dropped[i] {
			continue
		}
		for j := i + 1; j < len(items); j++ {
			if dropped[j] {
				continue
			}
			a, b := items[i], items[j]
			touching := a.Range.End == b.Range.Start || a.Range.Start == b.Range.End
			if !touching {
				continue
			}
			if b.Range.Empty() {
				dropped[j] = true
			} else if a.Range.Empty() {
				dropped[i] = true
			}
		}
	}
	out := make([]TaggedInterval, 0, len(items))
	for i, it := range items {
		if !dropped[i] {
			out = append(out, it)
		}
	}
	return out
}
