package persist

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tabd/tabd/pkg/tlog"
)

// initGitRepo creates a minimal git repository in t.TempDir() with one
// commit on HEAD, so "git notes" has a commit to attach to.
func initGitRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		require.NoError(t, cmd.Run())
	}
	run("init", "-q")
	run("config", "user.email", "tabd@example.com")
	run("config", "user.name", "tabd")
	run("commit", "--allow-empty", "-q", "-m", "initial")
	return dir
}

func TestVCSNotesStoreSaveThenLoadRoundTrips(t *testing.T) {
	repo := initGitRepo(t)
	store := NewVCSNotesStore("git", tlog.Nop())

	rec := ToRecord(sampleItems(), "")
	require.NoError(t, store.Save(context.Background(), repo, "src/main.go", &rec))

	loaded, err := store.Load(context.Background(), repo, "src/main.go")
	require.NoError(t, err)
	require.Len(t, loaded.Changes, 1)
}

func TestVCSNotesStoreLoadWithoutNoteReturnsEmptyRecord(t *testing.T) {
	repo := initGitRepo(t)
	store := NewVCSNotesStore("git", tlog.Nop())

	loaded, err := store.Load(context.Background(), repo, "untouched.go")
	require.NoError(t, err)
	require.Empty(t, loaded.Changes)
}

func TestVCSNotesStoreSaveOutsideRepoDegradesToNoop(t *testing.T) {
	notARepo := t.TempDir()
	store := NewVCSNotesStore("git", tlog.Nop())

	rec := ToRecord(sampleItems(), "")
	err := store.Save(context.Background(), notARepo, "f.go", &rec)
	require.NoError(t, err) // StorageUnavailable degrades to a logged no-op, never an error.
}

func TestVCSNotesStoreLoadOutsideRepoReturnsEmptyRecord(t *testing.T) {
	notARepo := t.TempDir()
	store := NewVCSNotesStore("git", tlog.Nop())

	loaded, err := store.Load(context.Background(), notARepo, "f.go")
	require.NoError(t, err)
	require.Empty(t, loaded.Changes)
}
