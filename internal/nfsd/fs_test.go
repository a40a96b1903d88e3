package nfsd

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benignx/nfs-mirror/internal/nfsvfs"
)

func newTestFilesystem(t *testing.T) *Filesystem {
	t.Helper()
	dir := t.TempDir()
	vfs := nfsvfs.New([]nfsvfs.Mount{{Target: "/a", Source: dir}}, false)
	return NewFilesystem(vfs)
}

func TestFilesystemCreateWriteReadRoundTrip(t *testing.T) {
	fs := newTestFilesystem(t)

	f, err := fs.Create("/a/hello.txt")
	require.NoError(t, err)
	n, err := f.Write([]byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, 11, n)
	require.NoError(t, f.Close())

	f, err = fs.Open("/a/hello.txt")
	require.NoError(t, err)
	buf := make([]byte, 11)
	n, err = f.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(buf[:n]))
}

func TestFilesystemStatReportsSize(t *testing.T) {
	fs := newTestFilesystem(t)

	f, err := fs.Create("/a/sized.txt")
	require.NoError(t, err)
	_, err = f.Write([]byte("1234567890"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	fi, err := fs.Stat("/a/sized.txt")
	require.NoError(t, err)
	assert.EqualValues(t, 10, fi.Size())
	assert.False(t, fi.IsDir())
}

func TestFilesystemReadDirListsChildren(t *testing.T) {
	fs := newTestFilesystem(t)

	_, err := fs.Create("/a/one.txt")
	require.NoError(t, err)
	_, err = fs.Create("/a/two.txt")
	require.NoError(t, err)

	entries, err := fs.ReadDir("/a")
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"one.txt", "two.txt"}, names)
}

func TestFilesystemMkdirAllCreatesIntermediateDirs(t *testing.T) {
	fs := newTestFilesystem(t)

	require.NoError(t, fs.MkdirAll("/a/x/y/z", 0755))

	fi, err := fs.Stat("/a/x/y/z")
	require.NoError(t, err)
	assert.True(t, fi.IsDir())
}

func TestFilesystemRenameMovesFile(t *testing.T) {
	fs := newTestFilesystem(t)

	_, err := fs.Create("/a/old.txt")
	require.NoError(t, err)

	require.NoError(t, fs.Rename("/a/old.txt", "/a/new.txt"))

	_, err = fs.Stat("/a/old.txt")
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = fs.Stat("/a/new.txt")
	assert.NoError(t, err)
}

func TestFilesystemRemoveDeletesFile(t *testing.T) {
	fs := newTestFilesystem(t)

	_, err := fs.Create("/a/gone.txt")
	require.NoError(t, err)
	require.NoError(t, fs.Remove("/a/gone.txt"))

	_, err = fs.Stat("/a/gone.txt")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFilesystemSymlinkAndReadlink(t *testing.T) {
	fs := newTestFilesystem(t)

	require.NoError(t, fs.Symlink("/a/target.txt", "/a/link.txt"))

	target, err := fs.Readlink("/a/link.txt")
	require.NoError(t, err)
	assert.Equal(t, "/a/target.txt", target)
}

func TestFilesystemTempFileIsUnique(t *testing.T) {
	fs := newTestFilesystem(t)

	f1, err := fs.TempFile("/a", "tmp-")
	require.NoError(t, err)
	f2, err := fs.TempFile("/a", "tmp-")
	require.NoError(t, err)

	assert.NotEqual(t, f1.Name(), f2.Name())
}

func TestFilesystemChmodAppliesMode(t *testing.T) {
	fs := newTestFilesystem(t)

	_, err := fs.Create("/a/perm.txt")
	require.NoError(t, err)

	require.NoError(t, fs.Chmod("/a/perm.txt", 0600))

	fi, err := fs.Stat("/a/perm.txt")
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), fi.Mode().Perm())
}

func TestFilesystemOpenFileCreateExclFailsOnExisting(t *testing.T) {
	fs := newTestFilesystem(t)

	_, err := fs.Create("/a/dup.txt")
	require.NoError(t, err)

	_, err = fs.OpenFile("/a/dup.txt", os.O_CREATE|os.O_EXCL, 0644)
	assert.ErrorIs(t, err, os.ErrExist)
}
