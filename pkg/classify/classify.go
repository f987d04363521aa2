// Package classify implements the Provenance Classifier: mapping a
// (recent-paste hint, recent-AI hint, edit shape, undo/redo flag) tuple
// to a provenance tag and metadata, per spec §4.2.
package classify

import (
	"strings"

	"github.com/tabd/tabd/pkg/hint"
	"github.com/tabd/tabd/pkg/interval"
	"github.com/tabd/tabd/pkg/position"
)

// Reason is the batch-level edit reason the host (or a re-classification
// inside the loop) supplies.
type Reason string

const (
	ReasonNone        Reason = "None"
	ReasonUndo        Reason = "Undo"
	ReasonRedo        Reason = "Redo"
	ReasonPaste       Reason = "Paste"
	ReasonIDEPaste    Reason = "IDEPaste"
	ReasonAIGenerated Reason = "AIGenerated"
)

const (
	pasteHintWindowMS = 200
	clipboardWindowMS = 60 * 60 * 1000 // 1 hour
	aiRecentWindowMS  = 2000
	aiInlineWindowMS  = 5 * 60 * 1000 // 5 minutes
)

// Input bundles everything one classification needs.
type Input struct {
	Edit       position.Edit
	Reason     Reason
	Hints      hint.Hints
	PasteHints []interval.TaggedInterval // recent Paste-kind intervals
	Now        int64                     // ms since epoch
	Doc        position.DocumentRef
	Author     string
}

// Result is what the classifier decided for one edit.
type Result struct {
	// Emit is the new interval to add to the store, or nil to emit
	// nothing (the "otherwise" row with no AI match).
	Emit *interval.TaggedInterval

	// DerivedEdit is set only by the before-tool branch: the caller must
	// stash it as the pending AI-edit batch and skip emitting/folding
	// this edit entirely ("continue" per spec). The edit's rune offset
	// (not yet resolved to a Position — resolving it needs the
	// DocumentRef, which the caller owns) is in DerivedEditOffset.
	DerivedEdit       *position.Edit
	DerivedEditOffset int

	// ScheduleClearAI reports whether lastAICommand should be cleared
	// after this classification (AIGenerated reason, or a matched
	// terminal after-tool type).
	ScheduleClearAI bool

	// ReasonOverride is set when reclassification (paste-hint proximity)
	// changed the effective reason the caller should use for folding.
	ReasonOverride Reason
}

// Classify runs the decision table for one edit.
func Classify(in Input) Result {
	reason := in.Reason

	// Step 1: reclassify as Paste if a hint shares this edit's start and
	// is younger than 200ms.
	for _, h := range in.PasteHints {
		if h.Range.Start == in.Edit.Range.Start && in.Now-h.CreationTS < pasteHintWindowMS {
			reason = ReasonPaste
			break
		}
	}

	text := in.Edit.Replacement
	trimmed := strings.TrimSpace(text)

	switch {
	case reason == ReasonPaste || reason == ReasonIDEPaste:
		return classifyPaste(in, reason, trimmed)

	case reason == ReasonAIGenerated:
		return classifyAIReason(in, text)

	case reason == ReasonUndo || reason == ReasonRedo:
		return Result{
			ReasonOverride: reason,
			Emit: &interval.TaggedInterval{
				Range:      in.Edit.Range,
				Kind:       interval.UndoRedo,
				CreationTS: in.Now,
				Author:     in.Author,
			},
		}

	case len([]rune(trimmed)) <= 1 && !beforeOrAfterToolType(in.Hints.LastAICommand):
		end := in.Edit.Range.Start
		if in.Doc != nil {
			end = position.EndAfterInsert(in.Doc, in.Edit.Range.Start, text)
		}
		return Result{
			ReasonOverride: reason,
			Emit: &interval.TaggedInterval{
				Range:      position.Range{Start: in.Edit.Range.Start, End: end},
				Kind:       interval.UserEdit,
				CreationTS: in.Now,
				Author:     in.Author,
			},
		}

	default:
		return classifyAIMatch(in, trimmed, reason)
	}
}

func beforeOrAfterToolType(ai *hint.AICommand) bool {
	return ai != nil && ai.Type.IsBeforeOrAfterToolType()
}

// classifyPaste resolves the Paste/IDEPaste metadata from the recent
// clipboard hint, per spec §4.2 "Paste resolution".
func classifyPaste(in Input, reason Reason, trimmed string) Result {
	opts := interval.Options{}
	kind := interval.Paste
	if reason == ReasonIDEPaste {
		kind = interval.IDEPaste
	}

	c := in.Hints.LastClipboard
	if c != nil && strings.TrimSpace(c.Text) == trimmed && in.Now-c.TS < clipboardWindowMS {
		if c.Kind == hint.IDEClipboardCopy {
			reason = ReasonIDEPaste
			kind = interval.IDEPaste
			// URL and title are taken from the hint as given; no VCS
			// remote or branch lookup is performed here or elsewhere in
			// the engine, and WorkspacePath/RelativePath are not read.
			opts.PasteURL = c.URL
			opts.PasteTitle = c.Title
		} else if c.Kind == hint.ClipboardCopy {
			opts.PasteURL = c.URL
			opts.PasteTitle = c.Title
		}
	}

	end := in.Edit.Range.Start
	if in.Doc != nil {
		end = position.EndAfterInsert(in.Doc, in.Edit.Range.Start, in.Edit.Replacement)
	}

	return Result{
		ReasonOverride: reason,
		Emit: &interval.TaggedInterval{
			Range:      position.Range{Start: in.Edit.Range.Start, End: end},
			Kind:       kind,
			CreationTS: in.Now,
			Author:     in.Author,
			Options:    opts,
		},
	}
}

// classifyAIReason handles reason == AIGenerated: metadata comes straight
// from the AI hint envelope, no matching needed.
func classifyAIReason(in Input, text string) Result {
	ai := in.Hints.LastAICommand
	opts := interval.Options{}
	if ai != nil {
		opts = interval.Options{
			AIName:        ai.ExtensionName,
			AIModel:       ai.ModelID,
			AIExplanation: ai.Explanation,
			AIType:        ai.Type.ToolName(),
		}
	}

	end := in.Edit.Range.Start
	if in.Doc != nil {
		end = position.EndAfterInsert(in.Doc, in.Edit.Range.Start, text)
	}

	return Result{
		ReasonOverride:  ReasonAIGenerated,
		ScheduleClearAI: true,
		Emit: &interval.TaggedInterval{
			Range:      position.Range{Start: in.Edit.Range.Start, End: end},
			Kind:       interval.AIGenerated,
			CreationTS: in.Now,
			Author:     in.Author,
			Options:    opts,
		},
	}
}

// classifyAIMatch runs the "AI-matching branch" and, for a before-tool
// type, the "special before-tool branch" that synthesizes a derived edit
// instead of emitting anything for the current one.
func classifyAIMatch(in Input, trimmed string, reason Reason) Result {
	ai := in.Hints.LastAICommand
	if ai == nil {
		return Result{ReasonOverride: reason}
	}

	if ai.Type.IsBeforeToolType() {
		derived, offset := synthesizeDerivedEdit(ai)
		return Result{ReasonOverride: reason, DerivedEdit: derived, DerivedEditOffset: offset}
	}

	if ai.InsertText == "" {
		return Result{ReasonOverride: reason}
	}
	insertTrim := strings.TrimSpace(ai.InsertText)
	if !strings.Contains(insertTrim, trimmed) || trimmed == "" {
		return Result{ReasonOverride: reason}
	}

	recent := in.Now-ai.Timestamp < aiRecentWindowMS
	recentInline := ai.Type == hint.TypeInlineCompletion && in.Now-ai.Timestamp < aiInlineWindowMS
	if !recent && !recentInline {
		return Result{ReasonOverride: reason}
	}

	if ai.Range != nil {
		wantStart := position.Position{Line: ai.Range.StartLine, Column: ai.Range.StartColumn}
		if in.Edit.Range.Start != wantStart {
			return Result{ReasonOverride: reason}
		}
	}

	end := in.Edit.Range.Start
	if in.Doc != nil {
		end = position.EndAfterInsert(in.Doc, in.Edit.Range.Start, in.Edit.Replacement)
	}

	result := Result{
		ReasonOverride: ReasonAIGenerated,
		Emit: &interval.TaggedInterval{
			Range:      position.Range{Start: in.Edit.Range.Start, End: end},
			Kind:       interval.AIGenerated,
			CreationTS: in.Now,
			Author:     in.Author,
			Options: interval.Options{
				AIName:        ai.ExtensionName,
				AIModel:       ai.ModelID,
				AIExplanation: ai.Explanation,
				AIType:        ai.Type.ToolName(),
			},
		},
	}
	if ai.Type.IsTerminalAfterToolType() {
		result.ScheduleClearAI = true
	}
	return result
}

// synthesizeDerivedEdit computes the common-prefix/suffix offsets of
// insertText against oldText and returns the single derived edit: a
// zero-width range at the best-match offset, replacement = trimmed
// insertText. Per spec §4.2 "special before-tool branch".
func synthesizeDerivedEdit(ai *hint.AICommand) (*position.Edit, int) {
	old := []rune(ai.OldText)
	ins := []rune(strings.TrimSpace(ai.InsertText))

	prefix := 0
	for prefix < len(old) && prefix < len(ins) && old[prefix] == ins[prefix] {
		prefix++
	}

	suffix := 0
	for suffix < len(old)-prefix && suffix < len(ins)-prefix &&
		old[len(old)-1-suffix] == ins[len(ins)-1-suffix] {
		suffix++
	}

	replacement := string(ins)

	// The caller (session.Coordinator, which owns the DocumentRef)
	// resolves this rune offset into a zero-width Position range via
	// doc.PositionAt before folding it through apply() as the pending AI
	// edit batch.
	return &position.Edit{Replacement: replacement}, prefix
}
