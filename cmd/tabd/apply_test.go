package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// captureStdout runs fn with os.Stdout redirected to a pipe and returns
// everything written to it. apply/serve/inspect print their result via
// fmt.Println rather than taking a io.Writer, matching the teacher's
// cmd/server/main.go style of printing straight to the terminal.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)

	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	fn()

	require.NoError(t, w.Close())
	var buf bytes.Buffer
	_, err = io.Copy(&buf, r)
	require.NoError(t, err)
	return buf.String()
}

func TestApplyCommandPrintsResultingRecord(t *testing.T) {
	fixture := `{
		"text": "",
		"batches": [
			{"reason": "None", "edits": [{"startLine":0,"startColumn":0,"endLine":0,"endColumn":0,"text":"h"}]}
		]
	}`
	path := filepath.Join(t.TempDir(), "fixture.json")
	require.NoError(t, os.WriteFile(path, []byte(fixture), 0o644))

	t.Setenv("HOME", t.TempDir())

	out := captureStdout(t, func() {
		cmd := newApplyCmd()
		cmd.SetArgs([]string{path})
		require.NoError(t, cmd.Execute())
	})

	require.Contains(t, out, `"USER_EDIT"`)
}

func TestApplyCommandRejectsMissingFixture(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cmd := newApplyCmd()
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "does-not-exist.json")})
	require.Error(t, cmd.Execute())
}
