// Package position implements the position algebra: rewriting a single
// document position under one text-edit event.
package position

import "strings"

// Position is a zero-based (line, column) location in a document.
type Position struct {
	Line   int
	Column int
}

// Less reports whether p sorts strictly before other, lexicographically
// by line then column.
func (p Position) Less(other Position) bool {
	if p.Line != other.Line {
		return p.Line < other.Line
	}
	return p.Column < other.Column
}

// LessEqual reports whether p sorts at or before other.
func (p Position) LessEqual(other Position) bool {
	return p == other || p.Less(other)
}

// Range is a [Start, End] span of positions with Start <= End.
type Range struct {
	Start Position
	End   Position
}

// Empty reports whether the range spans zero positions.
func (r Range) Empty() bool {
	return r.Start == r.End
}

// Contains reports whether p lies within [r.Start, r.End) — used by the
// fold step to decide whether an edit's deleted/inserted span swallows an
// interval endpoint. Touch at r.End is not containment.
func (r Range) Contains(p Position) bool {
	return r.Start.LessEqual(p) && p.Less(r.End)
}

// Intersects reports whether two ranges share any position, including a
// shared boundary point.
func Intersects(a, b Range) bool {
	return a.Start.LessEqual(b.End) && b.Start.LessEqual(a.End)
}

// Edit is one atomic (range, replacement) event supplied by the host.
// A deletion has Replacement == "", an insertion has Range.Start ==
// Range.End.
type Edit struct {
	Range       Range
	Replacement string
}

// countLastLine returns (newline count, rune-length of the text after the
// final newline) — used by the insertion part of shift.
func countLastLine(s string) (nl int, lastLineLen int) {
	last := 0
	for i, r := range s {
		if r == '\n' {
			nl++
			last = i + 1
		}
	}
	if nl == 0 {
		return 0, len([]rune(s))
	}
	return nl, len([]rune(s[last:]))
}

// Shift rewrites p to the position it occupies after e is applied to the
// document, per spec §4.1. Rules are applied in order:
//
//  1. an edit strictly after p leaves p unchanged (re > p);
//  2. an edit ending at or before p is applied: first the deletion part
//     (rs < re) shrinks p's line/column, then the insertion part grows
//     them back.
//
// Note: when re == p (insertion exactly at p, rs == re == p), rule 1 does
// NOT fire — p is treated as "at or after" the edit and is pushed right by
// the insertion. This is intentional cursor-like behavior (spec §9.3),
// not a bug.
func Shift(p Position, e Edit) Position {
	rs, re := e.Range.Start, e.Range.End

	if p.Less(re) {
		// re > p: edit is strictly after p, p is untouched.
		return p
	}

	// re <= p: the edit is at-or-before p (rule 9.3: re == p still applies
	// the edit, pushing p right by any insertion).

	// Deletion part.
	if rs.Less(re) {
		if re.Line == p.Line {
			p.Column -= re.Column - rs.Column
		}
		p.Line -= re.Line - rs.Line
	}

	// Insertion part.
	if e.Replacement != "" {
		nl, lastLineLen := countLastLine(e.Replacement)
		if rs.Line == p.Line {
			if nl > 0 {
				p.Column = lastLineLen + (p.Column - rs.Column)
			} else {
				p.Column += lastLineLen
			}
		}
		p.Line += nl
	}

	return p
}

// CountNewlines is exported for callers (e.g. the transformer) that need
// the same newline count shift uses internally, e.g. to compute the span
// of newly-inserted text.
func CountNewlines(s string) int {
	return strings.Count(s, "\n")
}

// DocumentRef is the offset/position oracle capability the host exposes
// (spec §6, §9 "do not reimplement the text index"). The core never
// reimplements this: it accepts a DocumentRef and calls into it.
type DocumentRef interface {
	OffsetAt(p Position) int
	PositionAt(offset int) Position
	LineText(line int) string
	URI() string
}

// EndAfterInsert returns the position offsetAt(rangeStart)+len(text)
// lands at, per doc — the common "where does this inserted text end"
// computation used by the AI-matching branch and the fold step's aiAdded
// span.
func EndAfterInsert(doc DocumentRef, start Position, text string) Position {
	return doc.PositionAt(doc.OffsetAt(start) + len([]rune(text)))
}
