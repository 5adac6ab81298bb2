package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeTree creates:
//
//	sample/
//	├── top.txt
//	└── foo/
//	    ├── bar/baz.txt
//	    └── empty/
func makeTree(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "sample")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "foo", "bar"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "foo", "empty"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "top.txt"), []byte("top"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "foo", "bar", "baz.txt"), []byte("baz"), 0600))
	return root
}

func TestArchiveAndExtract(t *testing.T) {
	src := makeTree(t)
	dest := filepath.Join(t.TempDir(), "backups", "0001_20250123T123456Z.tar.gz")
	a := New(0)

	res, err := a.Archive(context.Background(), src, dest)
	require.NoError(t, err)
	assert.Positive(t, res.Size)
	assert.Len(t, res.Checksum, 64)

	fi, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(t, res.Size, fi.Size())
	require.NoError(t, a.Verify(dest, res.Checksum))

	out := filepath.Join(t.TempDir(), "restored")
	require.NoError(t, a.Extract(context.Background(), dest, out))

	got, err := os.ReadFile(filepath.Join(out, "top.txt"))
	require.NoError(t, err)
	assert.Equal(t, "top", string(got))
	got, err = os.ReadFile(filepath.Join(out, "foo", "bar", "baz.txt"))
	require.NoError(t, err)
	assert.Equal(t, "baz", string(got))
	assert.DirExists(t, filepath.Join(out, "foo", "empty"))
}

func TestArchive_LeavesNothingOnFailure(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.tar.gz")

	_, err := New(0).Archive(context.Background(), filepath.Join(dir, "missing"), dest)
	require.Error(t, err)
	assert.NoFileExists(t, dest)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no partial files may remain")
}

func TestArchive_Cancelled(t *testing.T) {
	src := makeTree(t)
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.tar.gz")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(0).Archive(ctx, src, dest)
	require.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, dest)
}

func TestVerify(t *testing.T) {
	src := makeTree(t)
	dest := filepath.Join(t.TempDir(), "a.tar.gz")
	a := New(0)
	res, err := a.Archive(context.Background(), src, dest)
	require.NoError(t, err)

	assert.ErrorIs(t, a.Verify(dest+".nope", ""), ErrMissing)

	require.NoError(t, os.WriteFile(dest, []byte("garbage"), 0644))
	assert.ErrorIs(t, a.Verify(dest, res.Checksum), ErrCorrupt)
	assert.NoError(t, a.Verify(dest, ""), "without a checksum only existence is checked")
}

func TestExtract_CorruptArchive(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "bad.tar.gz")
	require.NoError(t, os.WriteFile(dest, []byte("definitely not gzip"), 0644))

	err := New(0).Extract(context.Background(), dest, t.TempDir())
	assert.ErrorIs(t, err, ErrCorrupt)

	err = New(0).Extract(context.Background(), dest+".missing", t.TempDir())
	assert.ErrorIs(t, err, ErrMissing)
}

func TestCleanName(t *testing.T) {
	assert.Equal(t, "a/b", cleanName("./a/b"))
	assert.Equal(t, "a", cleanName("/a"))
	assert.Equal(t, "", cleanName("../etc/passwd"))
	assert.Equal(t, "", cleanName("."))
}

func TestExtract_DoesNotFollowSymlinkedDirs(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "sub", "f.txt"), []byte("inside"), 0644))
	dest := filepath.Join(t.TempDir(), "a.tar.gz")
	a := New(0)
	_, err := a.Archive(context.Background(), src, dest)
	require.NoError(t, err)

	// Between backup and restore, sub is swapped for a link pointing elsewhere.
	outside := t.TempDir()
	require.NoError(t, os.RemoveAll(filepath.Join(src, "sub")))
	require.NoError(t, os.Symlink(outside, filepath.Join(src, "sub")))

	require.NoError(t, a.Extract(context.Background(), dest, src))

	assert.NoFileExists(t, filepath.Join(outside, "f.txt"))
	fi, err := os.Lstat(filepath.Join(src, "sub"))
	require.NoError(t, err)
	assert.True(t, fi.IsDir())
	got, err := os.ReadFile(filepath.Join(src, "sub", "f.txt"))
	require.NoError(t, err)
	assert.Equal(t, "inside", string(got))
}

func TestExtract_ReplacesSymlinkedFile(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "f.txt"), []byte("inside"), 0644))
	dest := filepath.Join(t.TempDir(), "a.tar.gz")
	a := New(0)
	_, err := a.Archive(context.Background(), src, dest)
	require.NoError(t, err)

	victim := filepath.Join(t.TempDir(), "victim.txt")
	require.NoError(t, os.WriteFile(victim, []byte("untouched"), 0644))
	require.NoError(t, os.Remove(filepath.Join(src, "f.txt")))
	require.NoError(t, os.Symlink(victim, filepath.Join(src, "f.txt")))

	require.NoError(t, a.Extract(context.Background(), dest, src))

	got, err := os.ReadFile(victim)
	require.NoError(t, err)
	assert.Equal(t, "untouched", string(got))
	fi, err := os.Lstat(filepath.Join(src, "f.txt"))
	require.NoError(t, err)
	assert.True(t, fi.Mode().IsRegular())
}

func TestArchive_SkipsExcludedAndPartialEntries(t *testing.T) {
	src := makeTree(t)
	store := filepath.Join(src, "store")
	require.NoError(t, os.MkdirAll(store, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(store, "dirback.db"), []byte("db"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, ".partial-123.tar.gz"), []byte("half"), 0644))
	dest := filepath.Join(store, "targets", "T1", "backups", "0001_20250123T123456Z.tar.gz")

	a := New(0)
	_, err := a.Archive(context.Background(), src, dest, store)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "restored")
	require.NoError(t, a.Extract(context.Background(), dest, out))

	assert.FileExists(t, filepath.Join(out, "top.txt"))
	assert.NoDirExists(t, filepath.Join(out, "store"))
	assert.NoFileExists(t, filepath.Join(out, ".partial-123.tar.gz"))
}
