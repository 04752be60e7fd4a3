package files

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarryhq/quarry/pkg/log"
	"github.com/quarryhq/quarry/pkg/types"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: log.ErrorLevel, Output: io.Discard})
	os.Exit(m.Run())
}

// staticResolver maps every alias to a fixed root
type staticResolver struct {
	root string
}

func (r staticResolver) RepoPath(username, userAlias string) string {
	return r.root
}

func newTestService(t *testing.T) (*Service, string) {
	t.Helper()
	root := t.TempDir()
	return NewService(staticResolver{root: root}), root
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"simple file", "main.go", false},
		{"nested file", "src/app/main.go", false},
		{"gitignore allowed", ".gitignore", false},
		{"github dir allowed", ".github/workflows/ci.yml", false},
		{"git dir blocked", ".git/config", true},
		{"nested git dir blocked", "src/.git/hooks/pre-commit", true},
		{"bare git component blocked", "src/.git", true},
		{"traversal blocked", "../escape.txt", true},
		{"embedded traversal blocked", "src/../../escape.txt", true},
		{"absolute blocked", "/etc/passwd", true},
		{"empty blocked", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCreateReadRoundTrip(t *testing.T) {
	svc, root := newTestService(t)

	result, err := svc.Create("repo", "app.py", "print('hi')\n", "alice")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, Hash([]byte("print('hi')\n")), result.ContentHash)
	assert.Equal(t, 12, result.SizeBytes)

	read, err := svc.Read("repo", "app.py", "alice")
	require.NoError(t, err)
	assert.Equal(t, "print('hi')\n", read.Content)
	assert.Equal(t, result.ContentHash, read.ContentHash)

	data, err := os.ReadFile(filepath.Join(root, "app.py"))
	require.NoError(t, err)
	assert.Equal(t, "print('hi')\n", string(data))
}

func TestCreateExistingFileFails(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create("repo", "app.py", "one", "alice")
	require.NoError(t, err)

	_, err = svc.Create("repo", "app.py", "two", "alice")
	var conflict *types.ConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestCreateMakesParentDirectories(t *testing.T) {
	svc, root := newTestService(t)

	_, err := svc.Create("repo", "deep/nested/dir/file.txt", "x", "alice")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(root, "deep", "nested", "dir", "file.txt"))
}

func TestEditHashLocked(t *testing.T) {
	svc, _ := newTestService(t)

	created, err := svc.Create("repo", "app.py", "print('hi')\n", "alice")
	require.NoError(t, err)

	edited, err := svc.Edit("repo", "app.py", "hi", "ok", created.ContentHash, false, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, edited.ChangesMade)
	assert.Equal(t, Hash([]byte("print('ok')\n")), edited.ContentHash)

	// Replaying the edit with the stale hash fails
	_, err = svc.Edit("repo", "app.py", "hi", "ok", created.ContentHash, false, "alice")
	var mismatch *types.HashMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, created.ContentHash, mismatch.Expected)
	assert.Equal(t, edited.ContentHash, mismatch.Actual)
}

func TestEditRequiresUniqueMatch(t *testing.T) {
	svc, _ := newTestService(t)

	created, err := svc.Create("repo", "a.txt", "dup dup\n", "alice")
	require.NoError(t, err)

	_, err = svc.Edit("repo", "a.txt", "dup", "one", created.ContentHash, false, "alice")
	var validation *types.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Contains(t, validation.Msg, "2 times")

	_, err = svc.Edit("repo", "a.txt", "missing", "x", created.ContentHash, false, "alice")
	require.ErrorAs(t, err, &validation)
	assert.Contains(t, validation.Msg, "not found")
}

func TestEditReplaceAll(t *testing.T) {
	svc, _ := newTestService(t)

	created, err := svc.Create("repo", "a.txt", "dup dup dup\n", "alice")
	require.NoError(t, err)

	edited, err := svc.Edit("repo", "a.txt", "dup", "x", created.ContentHash, true, "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, edited.ChangesMade)

	read, err := svc.Read("repo", "a.txt", "alice")
	require.NoError(t, err)
	assert.Equal(t, "x x x\n", read.Content)
}

func TestDeleteWithHashValidation(t *testing.T) {
	svc, root := newTestService(t)

	created, err := svc.Create("repo", "a.txt", "bye\n", "alice")
	require.NoError(t, err)

	_, err = svc.Delete("repo", "a.txt", "deadbeef", "alice")
	var mismatch *types.HashMismatchError
	assert.ErrorAs(t, err, &mismatch)
	assert.FileExists(t, filepath.Join(root, "a.txt"))

	result, err := svc.Delete("repo", "a.txt", created.ContentHash, "alice")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.NoFileExists(t, filepath.Join(root, "a.txt"))
}

func TestDeleteWithoutHash(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create("repo", "a.txt", "bye\n", "alice")
	require.NoError(t, err)

	_, err = svc.Delete("repo", "a.txt", "", "alice")
	assert.NoError(t, err)
}

func TestDeleteMissingFile(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Delete("repo", "ghost.txt", "", "alice")
	var notFound *types.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestSymlinkEscapeRejected(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	svc := NewService(staticResolver{root: root})

	require.NoError(t, os.Symlink(outside, filepath.Join(root, "link")))

	_, err := svc.Create("repo", "link/escape.txt", "x", "alice")
	var sandbox *types.SandboxError
	assert.ErrorAs(t, err, &sandbox)
}

func TestMissingRepositoryRejected(t *testing.T) {
	svc := NewService(staticResolver{root: filepath.Join(t.TempDir(), "nope")})

	_, err := svc.Create("repo", "a.txt", "x", "alice")
	var notFound *types.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestAtomicWriteLeavesNoTempFiles(t *testing.T) {
	svc, root := newTestService(t)

	created, err := svc.Create("repo", "a.txt", "one\n", "alice")
	require.NoError(t, err)
	_, err = svc.Edit("repo", "a.txt", "one", "two", created.ContentHash, false, "alice")
	require.NoError(t, err)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
