// Package testrope is a minimal in-memory DocumentRef used by tests
// across the engine, standing in for the host's real text index (spec
// §9 "tests substitute an in-memory rope").
package testrope

import (
	"strings"

	"github.com/tabd/tabd/pkg/position"
)

// Rope is a whole-text DocumentRef backed by a single string, split into
// lines lazily on each query. It is not optimised for large documents —
// that tradeoff is fine for a test double.
type Rope struct {
	uri  string
	text string
}

// New returns a Rope over text, addressed by uri.
func New(uri, text string) *Rope {
	return &Rope{uri: uri, text: text}
}

// SetText replaces the rope's contents, e.g. to model a host applying an
// edit between test steps.
func (r *Rope) SetText(text string) { r.text = text }

// Text returns the rope's current contents.
func (r *Rope) Text() string { return r.text }

// URI implements position.DocumentRef.
func (r *Rope) URI() string { return r.uri }

func (r *Rope) lines() []string {
	return strings.Split(r.text, "\n")
}

// LineText implements position.DocumentRef.
func (r *Rope) LineText(line int) string {
	ls := r.lines()
	if line < 0 || line >= len(ls) {
		return ""
	}
	return ls[line]
}

// OffsetAt implements position.DocumentRef: converts a (line, column) to
// a rune offset into the whole text.
func (r *Rope) OffsetAt(p position.Position) int {
	ls := r.lines()
	offset := 0
	for i := 0; i < p.Line && i < len(ls); i++ {
		offset += len([]rune(ls[i])) + 1 // +1 for the newline
	}
	if p.Line < len(ls) {
		lineRunes := []rune(ls[p.Line])
		col := p.Column
		if col > len(lineRunes) {
			col = len(lineRunes)
		}
		offset += col
	}
	return offset
}

// PositionAt implements position.DocumentRef: converts a rune offset
// back into a (line, column).
func (r *Rope) PositionAt(offset int) position.Position {
	runes := []rune(r.text)
	if offset < 0 {
		offset = 0
	}
	if offset > len(runes) {
		offset = len(runes)
	}
	line, col := 0, 0
	for i := 0; i < offset; i++ {
		if runes[i] == '\n' {
			line++
			col = 0
		} else {
			col++
		}
	}
	return position.Position{Line: line, Column: col}
}

// Apply returns the text that results from applying e to r's current
// text, without mutating r — test helper for asserting the host's view
// of the document matches what the engine expects after a batch.
func (r *Rope) Apply(e position.Edit) string {
	runes := []rune(r.text)
	start := r.OffsetAt(e.Range.Start)
	end := r.OffsetAt(e.Range.End)
	var b strings.Builder
	b.WriteString(string(runes[:start]))
	b.WriteString(e.Replacement)
	b.WriteString(string(runes[end:]))
	return b.String()
}
