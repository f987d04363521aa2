// Package hint holds the process-wide ExternalHint singletons (spec §3):
// the last clipboard copy observed and the last AI-tool command envelope.
// Both are read-only outside their update points, and those update points
// are confined to the session Coordinator, which holds the same lock
// guarding everything else (spec §9 "do not expose them globally").
package hint

// ClipboardKind distinguishes a plain OS clipboard copy from one made via
// the in-IDE clipboard path (which carries VCS-derived url/title instead
// of browser-sourced ones).
type ClipboardKind string

const (
	ClipboardCopy     ClipboardKind = "clipboard_copy"
	IDEClipboardCopy  ClipboardKind = "ide_clipboard_copy"
)

// Clipboard is the last clipboard hint observed from the external
// clipboard-intake collaborator (spec §6, out of core scope to produce).
type Clipboard struct {
	Text          string
	TS            int64 // ms since epoch
	Kind          ClipboardKind
	URL           string
	Title         string
	WorkspacePath string
	RelativePath  string
}

// AICommandType is the opaque "_type" discriminator on an AI command
// envelope. The closed set the classifier cares about is named here;
// anything else passes through opaquely.
type AICommandType string

const (
	TypeInlineCompletion       AICommandType = "inlineCompletion"
	TypePostInsertEdit         AICommandType = "postInsertEdit"
	TypeCreateFile             AICommandType = "createFile"
	TypeOnBeforeInsertEditTool AICommandType = "onBeforeInsertEditTool"
	TypeOnBeforeReplaceStringTool AICommandType = "onBeforeReplaceStringTool"
	TypeOnBeforeApplyPatchTool AICommandType = "onBeforeApplyPatchTool"
	TypeOnAfterApplyPatchTool  AICommandType = "onAfterApplyPatchTool"
	TypeOnAfterCreateFileTool  AICommandType = "onAfterCreateFileTool"
	TypeOnAfterInsertEditTool  AICommandType = "onAfterInsertEditTool"
	TypeOnAfterReplaceStringTool AICommandType = "onAfterReplaceStringTool"
)

// RangeSpan is the optional [start, end] position pair an AI command may
// carry, expressed in the same (line, column) terms as the rest of the
// engine. Kept here rather than importing pkg/position to avoid a cycle;
// callers convert.
type RangeSpan struct {
	StartLine, StartColumn int
	EndLine, EndColumn     int
}

// AICommand is the opaque AI-tool invocation envelope (spec §3
// lastAICommand), plus its companion document/changes payload.
type AICommand struct {
	Type          AICommandType
	Timestamp     int64 // ms since epoch
	InsertText    string
	OldText       string
	Range         *RangeSpan
	ModelID       string
	ExtensionName string
	Explanation   string
	Command       string

	// Companion payload, set on a postInsertEdit re-run.
	Document string
	Changes  string
}

// IsBeforeToolType reports whether t is one of the "before-tool" types
// that, per spec §4.2, synthesize a derived edit instead of emitting an
// interval directly.
func (t AICommandType) IsBeforeToolType() bool {
	return t == TypeOnBeforeInsertEditTool || t == TypeOnBeforeReplaceStringTool
}

// IsBeforeOrAfterToolType reports whether t is any onBefore*Tool or
// onAfter*Tool variant — the set the UserEdit decision-table row must
// exclude (spec §4.2: "aiInfo._type is not one of the AI
// before/after-tool types").
func (t AICommandType) IsBeforeOrAfterToolType() bool {
	switch t {
	case TypeOnBeforeInsertEditTool, TypeOnBeforeReplaceStringTool, TypeOnBeforeApplyPatchTool,
		TypeOnAfterApplyPatchTool, TypeOnAfterCreateFileTool, TypeOnAfterInsertEditTool, TypeOnAfterReplaceStringTool:
		return true
	}
	return false
}

// IsTerminalAfterToolType reports whether t is one of the "terminal"
// after-tool types that schedule clearing lastAICommand once matched.
func (t AICommandType) IsTerminalAfterToolType() bool {
	switch t {
	case TypeOnAfterApplyPatchTool, TypeOnAfterCreateFileTool,
		TypeOnAfterInsertEditTool, TypeOnAfterReplaceStringTool:
		return true
	}
	return false
}

// ToolName maps an onBefore*/onAfter*Tool type to the AIType option
// value stored on an emitted interval (spec §4.2 tool-name map).
func (t AICommandType) ToolName() string {
	switch t {
	case TypeOnBeforeApplyPatchTool, TypeOnAfterApplyPatchTool:
		return "applyPatch"
	case TypeOnAfterCreateFileTool:
		return "createFile"
	case TypeOnBeforeInsertEditTool, TypeOnAfterInsertEditTool:
		return "insertEdit"
	case TypeOnBeforeReplaceStringTool, TypeOnAfterReplaceStringTool:
		return "replaceString"
	default:
		return string(t)
	}
}

// Hints is the pair of process-wide singletons. A zero Hints has no
// clipboard/AI data and classifies nothing specially.
type Hints struct {
	LastClipboard *Clipboard
	LastAICommand *AICommand
}
