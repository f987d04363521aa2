package persist

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os/exec"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/tabd/tabd/pkg/tlog"
)

// ErrStorageUnavailable marks the spec §7 StorageUnavailable error kind:
// no git binary, no repository, or a non-zero exit from a required git
// invocation. Callers should treat a save as a no-op-with-warning, never
// fail the in-memory edit.
var ErrStorageUnavailable = errors.New("persist: storage unavailable")

const (
	gitConfigTimeout = 2 * time.Second
	gitNotesTimeout  = 15 * time.Second
)

// vcsNotes implements the experimental *vcs-notes* layout: one JSON
// record per save, attached as a git note on HEAD under ref
// "tabd__<branch>__<sha256(sanitized relative path)>". This is the one
// storage layout with no good third-party Go library to reach for — the
// real collaborator is the git binary itself; see DESIGN.md.
type vcsNotes struct {
	gitBin string
	log    tlog.Logger
}

// NewVCSNotesStore returns the vcs-notes-layout Store, invoking gitBin
// (typically "git") as a subprocess.
func NewVCSNotesStore(gitBin string, log tlog.Logger) Store {
	if gitBin == "" {
		gitBin = "git"
	}
	if log == nil {
		log = tlog.Nop()
	}
	return &vcsNotes{gitBin: gitBin, log: log}
}

func (v *vcsNotes) run(ctx context.Context, timeout time.Duration, repoDir string, args ...string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, v.gitBin, args...)
	cmd.Dir = repoDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", errors.Wrapf(ErrStorageUnavailable, "git %s: %s", strings.Join(args, " "), strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

func noteRef(repoDir, gitBin, relativePath string) (string, func(context.Context) (string, error)) {
	sum := sha256.Sum256([]byte(SanitizeWorkspacePath(relativePath)))
	digest := hex.EncodeToString(sum[:])
	resolveBranch := func(ctx context.Context) (string, error) {
		cctx, cancel := context.WithTimeout(ctx, gitConfigTimeout)
		defer cancel()
		cmd := exec.CommandContext(cctx, gitBin, "rev-parse", "--abbrev-ref", "HEAD")
		cmd.Dir = repoDir
		out, err := cmd.Output()
		if err != nil {
			return "", errors.Wrap(ErrStorageUnavailable, "resolve current branch")
		}
		return strings.TrimSpace(string(out)), nil
	}
	return digest, resolveBranch
}

// Load reads the most recent note on the given ref for relativePath, if
// any, parsing it as a single-record log. Absence of a note (or of a git
// repository at all) degrades to an empty record, per the
// StorageUnavailable policy — it never fails onActivate.
func (v *vcsNotes) Load(ctx context.Context, workspaceRoot, relativePath string) (*Record, error) {
	digest, resolveBranch := noteRef(workspaceRoot, v.gitBin, relativePath)
	branch, err := resolveBranch(ctx)
	if err != nil {
		v.log.Warn("persist/vcs-notes: %s", err)
		return &Record{Version: CurrentVersion}, nil
	}
	ref := "refs/notes/tabd__" + branch + "__" + digest

	out, err := v.run(ctx, gitNotesTimeout, workspaceRoot, "notes", "--ref", ref, "show", "HEAD")
	if err != nil {
		// No note yet is the common case, not a failure.
		return &Record{Version: CurrentVersion}, nil
	}
	rec, perr := ParseRecord([]byte(out))
	if perr != nil {
		v.log.Warn("persist/vcs-notes: malformed note on %s: %s", ref, perr)
		return &Record{Version: CurrentVersion}, nil
	}
	return &rec, nil
}

// Save attaches rec as a git note on HEAD. A missing git binary, missing
// repository, or non-zero exit is logged as StorageUnavailable and the
// save is a no-op — live tracking continues unaffected.
func (v *vcsNotes) Save(ctx context.Context, workspaceRoot, relativePath string, rec *Record) error {
	digest, resolveBranch := noteRef(workspaceRoot, v.gitBin, relativePath)
	branch, err := resolveBranch(ctx)
	if err != nil {
		v.log.Warn("persist/vcs-notes: save skipped, %s", err)
		return nil
	}
	ref := "refs/notes/tabd__" + branch + "__" + digest

	data, err := MarshalRecord(*rec)
	if err != nil {
		return errors.Wrap(err, "persist/vcs-notes: marshal record")
	}

	if _, err := v.run(ctx, gitNotesTimeout, workspaceRoot, "notes", "--ref", ref, "add", "-f", "-m", string(data), "HEAD"); err != nil {
		v.log.Warn("persist/vcs-notes: save skipped, %s", err)
		return nil
	}
	return nil
}
