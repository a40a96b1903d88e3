package nfsvfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSingleMountVFS(t *testing.T, readOnly bool) (*VFS, string) {
	t.Helper()
	dir := t.TempDir()
	vfs := New([]Mount{{Target: "/a", Source: dir, ReadOnly: readOnly}}, false)
	return vfs, dir
}

// Scenario 1: single mount bootstrap.
func TestScenarioSingleMountBootstrap(t *testing.T) {
	vfs, _ := newSingleMountVFS(t, false)

	entries, end, st := vfs.ReadDir(RootFileID, 0, 100)
	require.Equal(t, OK, st)
	require.True(t, end)
	require.Len(t, entries, 1)
	assert.Equal(t, "a", string(entries[0].Name))
	assert.Equal(t, TypeDirectory, entries[0].Attrs.Type)
	assert.Equal(t, FileID(1), entries[0].ID)

	childEntries, end, st := vfs.ReadDir(FileID(1), 0, 100)
	require.Equal(t, OK, st)
	assert.True(t, end)
	assert.Len(t, childEntries, 0)
}

// Scenario 2: create-read-remove.
func TestScenarioCreateReadRemove(t *testing.T) {
	vfs, _ := newSingleMountVFS(t, false)
	_, _, st := vfs.ReadDir(RootFileID, 0, 100) // populate mount node at id 1
	require.Equal(t, OK, st)

	id, attrs, st := vfs.Create(FileID(1), []byte("hello"), 0644)
	require.Equal(t, OK, st)
	assert.Equal(t, FileID(2), id)
	assert.EqualValues(t, 0, attrs.Size)

	fresh, st := vfs.Write(id, 0, []byte("world"))
	require.Equal(t, OK, st)
	assert.EqualValues(t, 5, fresh.Size)

	data, eof, st := vfs.Read(id, 0, 1024)
	require.Equal(t, OK, st)
	assert.True(t, eof)
	assert.Equal(t, "world", string(data))

	st = vfs.Remove(FileID(1), []byte("hello"))
	require.Equal(t, OK, st)

	_, st = vfs.Lookup(FileID(1), []byte("hello"))
	assert.Equal(t, ErrNoEnt, st)
}

// Scenario 3: rename preserves fileid.
func TestScenarioRenamePreservesFileID(t *testing.T) {
	vfs, _ := newSingleMountVFS(t, false)
	vfs.ReadDir(RootFileID, 0, 100)

	id, _, st := vfs.Create(FileID(1), []byte("hello"), 0644)
	require.Equal(t, OK, st)

	st = vfs.Rename(FileID(1), []byte("hello"), FileID(1), []byte("world"))
	require.Equal(t, OK, st)

	newID, st := vfs.Lookup(FileID(1), []byte("world"))
	require.Equal(t, OK, st)
	assert.Equal(t, id, newID)

	_, st = vfs.Lookup(FileID(1), []byte("hello"))
	assert.Equal(t, ErrNoEnt, st)
}

// Scenario 4: out-of-band delete.
func TestScenarioOutOfBandDelete(t *testing.T) {
	vfs, dir := newSingleMountVFS(t, false)
	vfs.ReadDir(RootFileID, 0, 100)

	id, _, st := vfs.Create(FileID(1), []byte("x"), 0644)
	require.Equal(t, OK, st)

	require.NoError(t, os.Remove(filepath.Join(dir, "x")))

	_, st = vfs.GetAttr(id)
	assert.Equal(t, ErrNoEnt, st)

	entries, _, st := vfs.ReadDir(FileID(1), 0, 100)
	require.Equal(t, OK, st)
	for _, e := range entries {
		assert.NotEqual(t, "x", string(e.Name))
	}
}

// Scenario 5: read-only mount.
func TestScenarioReadOnlyMount(t *testing.T) {
	vfs, _ := newSingleMountVFS(t, true)
	entries, _, st := vfs.ReadDir(RootFileID, 0, 100)
	require.Equal(t, OK, st)
	require.Len(t, entries, 1)
	dirID := entries[0].ID

	_, _, st = vfs.Create(dirID, []byte("f"), 0644)
	assert.Equal(t, ErrROFS, st)

	_, end, st := vfs.ReadDir(dirID, 0, 100)
	assert.Equal(t, OK, st)
	assert.True(t, end)
}

// Scenario 6: type flip.
func TestScenarioTypeFlip(t *testing.T) {
	vfs, dir := newSingleMountVFS(t, false)
	vfs.ReadDir(RootFileID, 0, 100)

	id, _, st := vfs.Create(FileID(1), []byte("p"), 0644)
	require.Equal(t, OK, st)

	require.NoError(t, os.Remove(filepath.Join(dir, "p")))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "p"), 0755))

	_, st = vfs.GetAttr(id)
	assert.Equal(t, ErrNoEnt, st)

	newID, st := vfs.Lookup(FileID(1), []byte("p"))
	require.Equal(t, OK, st)
	assert.NotEqual(t, id, newID)

	attrs, st := vfs.GetAttr(newID)
	require.Equal(t, OK, st)
	assert.Equal(t, TypeDirectory, attrs.Type)
}

// Scenario 7: a mount node looked up against its own name resolves to
// itself rather than falling through to a host lookup under that mount.
func TestScenarioMountSelfReferenceLookup(t *testing.T) {
	vfs, _ := newSingleMountVFS(t, false)
	entries, _, st := vfs.ReadDir(RootFileID, 0, 100)
	require.Equal(t, OK, st)
	require.Len(t, entries, 1)
	mountID := entries[0].ID

	found, st := vfs.Lookup(mountID, []byte("a"))
	require.Equal(t, OK, st)
	assert.Equal(t, mountID, found)
}

// P1: map inversion -- exercised indirectly via Lookup/ReadDir agreeing on
// ids, since FSMap does not expose its raw maps outside the package.
func TestInvariantMapInversion(t *testing.T) {
	vfs, _ := newSingleMountVFS(t, false)
	vfs.ReadDir(RootFileID, 0, 100)

	id, _, st := vfs.Create(FileID(1), []byte("q"), 0644)
	require.Equal(t, OK, st)

	found, st := vfs.Lookup(FileID(1), []byte("q"))
	require.Equal(t, OK, st)
	assert.Equal(t, id, found)
}

// P2: id monotonicity.
func TestInvariantIDMonotonicity(t *testing.T) {
	vfs, _ := newSingleMountVFS(t, false)
	vfs.ReadDir(RootFileID, 0, 100)

	first, _, st := vfs.Create(FileID(1), []byte("one"), 0644)
	require.Equal(t, OK, st)
	second, _, st := vfs.Create(FileID(1), []byte("two"), 0644)
	require.Equal(t, OK, st)

	assert.Greater(t, second, first)
	assert.NotZero(t, first)
	assert.NotZero(t, second)
}

// P3: root stability.
func TestInvariantRootStability(t *testing.T) {
	vfs, _ := newSingleMountVFS(t, false)
	entries, _, st := vfs.ReadDir(RootFileID, 0, 100)
	require.Equal(t, OK, st)
	require.Len(t, entries, 1)

	attrs, st := vfs.GetAttr(RootFileID)
	require.Equal(t, OK, st)
	assert.Equal(t, TypeDirectory, attrs.Type)
}

// P5: hard-link aliasing.
func TestInvariantHardLinkAliasing(t *testing.T) {
	vfs, _ := newSingleMountVFS(t, false)
	vfs.ReadDir(RootFileID, 0, 100)

	id, _, st := vfs.Create(FileID(1), []byte("orig"), 0644)
	require.Equal(t, OK, st)

	st = vfs.Link(id, FileID(1), []byte("alias"))
	require.Equal(t, OK, st)

	aliasID, st := vfs.Lookup(FileID(1), []byte("alias"))
	require.Equal(t, OK, st)
	assert.Equal(t, id, aliasID)
}

// P6: read-only enforcement leaves host and map unchanged.
func TestInvariantReadOnlyEnforcement(t *testing.T) {
	vfs, dir := newSingleMountVFS(t, true)
	vfs.ReadDir(RootFileID, 0, 100)

	_, _, st := vfs.Create(FileID(1), []byte("blocked"), 0644)
	assert.Equal(t, ErrROFS, st)

	_, err := os.Lstat(filepath.Join(dir, "blocked"))
	assert.True(t, os.IsNotExist(err))
}

// Readdir ordering: children stay in ascending fileid order even when a listing
// is (re)built from the host's name-sorted directory entries, so a
// paginated readdir cursor neither skips nor repeats an entry.
func TestInvariantReaddirChildrenOrderSurvivesRelist(t *testing.T) {
	vfs, _ := newSingleMountVFS(t, false)
	vfs.ReadDir(RootFileID, 0, 100) // populate mount node at id 1

	// Creation order is reverse-alphabetical, so fileid order (creation
	// order) and the host's name-sorted order disagree.
	names := []string{"d", "b", "c", "a"}
	ids := make(map[string]FileID, len(names))
	for _, name := range names {
		id, _, st := vfs.Create(FileID(1), []byte(name), 0644)
		require.Equal(t, OK, st)
		ids[name] = id
	}

	// The first ReadDir of the mount node forces refreshDirList to build
	// Children from a fresh os.ReadDir of the host directory.
	var cursor FileID
	seen := make(map[FileID]bool)
	var order []FileID
	for {
		entries, end, st := vfs.ReadDir(FileID(1), cursor, 2)
		require.Equal(t, OK, st)
		for _, e := range entries {
			require.False(t, seen[e.ID], "fileid %d emitted twice", e.ID)
			seen[e.ID] = true
			order = append(order, e.ID)
			cursor = e.ID
		}
		if end {
			break
		}
	}

	require.Len(t, order, len(names))
	for i := 1; i < len(order); i++ {
		assert.Less(t, order[i-1], order[i], "children must be emitted in ascending fileid order")
	}
	for _, name := range names {
		assert.True(t, seen[ids[name]], "fileid for %q was never emitted", name)
	}
}

// P8: read round-trip.
func TestInvariantReadRoundTrip(t *testing.T) {
	vfs, _ := newSingleMountVFS(t, false)
	vfs.ReadDir(RootFileID, 0, 100)

	id, _, st := vfs.Create(FileID(1), []byte("data"), 0644)
	require.Equal(t, OK, st)

	content := []byte("the quick brown fox")
	_, st = vfs.Write(id, 0, content)
	require.Equal(t, OK, st)

	first, eof, st := vfs.Read(id, 0, 10)
	require.Equal(t, OK, st)
	assert.False(t, eof)
	assert.Equal(t, content[:10], first)

	second, eof, st := vfs.Read(id, 10, 1024)
	require.Equal(t, OK, st)
	assert.True(t, eof)
	assert.Equal(t, content[10:], second)
}
