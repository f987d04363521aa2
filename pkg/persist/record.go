// Package persist implements the persisted record format (spec §6) and
// the storage-layout implementations behind it: repository,
// homeDirectory, and vcs-notes, plus a SQLite-backed freshness index
// (spec SPEC_FULL.md §4.6).
package persist

import (
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/tabd/tabd/pkg/interval"
	"github.com/tabd/tabd/pkg/position"
)

// CurrentVersion is the only record version this engine writes. Loaders
// skip any other version with a warning (spec §6 "Unknown version: skip
// with warning").
const CurrentVersion = 1

// ErrMalformedLog marks an error as spec §7's MalformedLog kind: skip
// that file, continue with others.
var ErrMalformedLog = errors.New("persist: malformed log entry")

// Record is the on-disk JSON shape for one persisted file's annotations.
type Record struct {
	Version  int      `json:"version"`
	Checksum string   `json:"checksum,omitempty"`
	Changes  []Change `json:"changes"`
}

// Change is one persisted TaggedInterval, using the wire type strings
// from spec §6.
type Change struct {
	Start             WirePos `json:"start"`
	End               WirePos `json:"end"`
	Type              string  `json:"type"`
	CreationTimestamp int64   `json:"creationTimestamp"`
	Author            string  `json:"author,omitempty"`
	PasteURL          string  `json:"pasteUrl,omitempty"`
	PasteTitle        string  `json:"pasteTitle,omitempty"`
	AIName            string  `json:"aiName,omitempty"`
	AIModel           string  `json:"aiModel,omitempty"`
	AIExplanation     string  `json:"aiExplanation,omitempty"`
	AIType            string  `json:"aiType,omitempty"`
}

// WirePos mirrors the {"line":n,"character":n} shape of the persisted
// record, distinct from position.Position's field names.
type WirePos struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

var kindToWire = map[interval.Kind]string{
	interval.Unknown:     "UNKNOWN",
	interval.UserEdit:    "USER_EDIT",
	interval.AIGenerated: "AI_GENERATED",
	interval.UndoRedo:    "UNDO_REDO",
	interval.Paste:       "PASTE",
	interval.IDEPaste:    "IDE_PASTE",
}

var wireToKind = map[string]interval.Kind{
	"UNKNOWN":      interval.Unknown,
	"USER_EDIT":    interval.UserEdit,
	"AI_GENERATED": interval.AIGenerated,
	"UNDO_REDO":    interval.UndoRedo,
	"PASTE":        interval.Paste,
	"IDE_PASTE":    interval.IDEPaste,
}

// ToRecord serialises a slice of tagged intervals into the §6 record
// shape. checksum is advisory (spec §1 "treated as advisory") and may be
// empty.
func ToRecord(items []interval.TaggedInterval, checksum string) Record {
	rec := Record{Version: CurrentVersion, Checksum: checksum, Changes: make([]Change, 0, len(items))}
	for _, it := range items {
		wireKind, ok := kindToWire[it.Kind]
		if !ok {
			wireKind = "UNKNOWN"
		}
		rec.Changes = append(rec.Changes, Change{
			Start:             WirePos{Line: it.Range.Start.Line, Character: it.Range.Start.Column},
			End:               WirePos{Line: it.Range.End.Line, Character: it.Range.End.Column},
			Type:              wireKind,
			CreationTimestamp: it.CreationTS,
			Author:            it.Author,
			PasteURL:          it.Options.PasteURL,
			PasteTitle:        it.Options.PasteTitle,
			AIName:            it.Options.AIName,
			AIModel:           it.Options.AIModel,
			AIExplanation:     it.Options.AIExplanation,
			AIType:            it.Options.AIType,
		})
	}
	return rec
}

// FromRecord deserialises the §6 record shape back into tagged
// intervals. An unknown version returns ErrMalformedLog wrapped with
// context; the caller is expected to skip the file and continue, per
// spec §7. Unknown optional fields are already ignored by
// encoding/json; unknown change `type` strings fall back to Unknown
// rather than failing the whole record.
func FromRecord(rec Record) ([]interval.TaggedInterval, error) {
	if rec.Version != CurrentVersion {
		return nil, errors.Wrapf(ErrMalformedLog, "unsupported record version %d", rec.Version)
	}
	out := make([]interval.TaggedInterval, 0, len(rec.Changes))
	for _, c := range rec.Changes {
		kind, ok := wireToKind[c.Type]
		if !ok {
			kind = interval.Unknown
		}
		out = append(out, interval.TaggedInterval{
			Range: position.Range{
				Start: position.Position{Line: c.Start.Line, Column: c.Start.Character},
				End:   position.Position{Line: c.End.Line, Column: c.End.Character},
			},
			Kind:       kind,
			CreationTS: c.CreationTimestamp,
			Author:     c.Author,
			Options: interval.Options{
				PasteURL:      c.PasteURL,
				PasteTitle:    c.PasteTitle,
				AIName:        c.AIName,
				AIModel:       c.AIModel,
				AIExplanation: c.AIExplanation,
				AIType:        c.AIType,
			},
		})
	}
	return out, nil
}

// ParseRecord unmarshals raw JSON bytes into a Record, wrapping any
// parse error as ErrMalformedLog.
func ParseRecord(data []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, errors.Wrapf(ErrMalformedLog, "json parse: %s", err)
	}
	return rec, nil
}

// MarshalRecord serialises rec to indented JSON for on-disk storage.
func MarshalRecord(rec Record) ([]byte, error) {
	return json.MarshalIndent(rec, "", "  ")
}

// ShouldTrack implements the §6 "shouldn't-process rule": any file whose
// basename begins with '.', or that lies under a path component
// beginning with '.', is excluded from tracking.
func ShouldTrack(relativePath string) bool {
	parts := strings.Split(filepathToSlash(relativePath), "/")
	for _, p := range parts {
		if p == "" {
			continue
		}
		if strings.HasPrefix(p, ".") {
			return false
		}
	}
	return true
}

func filepathToSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}
