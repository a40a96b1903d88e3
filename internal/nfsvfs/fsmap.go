package nfsvfs

import (
	"github.com/benignx/nfs-mirror/internal/intern"
)

// FSMap is the Identifier Map (C2): the bidirectional mapping between NFS
// file IDs and interned symbolic paths, plus per-entry cached attributes
// and directory children sets.
//
// FSMap itself holds no lock; the VFS struct that owns an *FSMap also owns
// the single coarse sync.Mutex guarding it, following gcsfuse's
// fileSystem.mu / fs.inodes split (the map is plain data, the lock lives
// on the wrapping type). Every method below is
// LOCKS_REQUIRED(the owning VFS's mu).
type FSMap struct {
	intern     *intern.Table
	nextFileID FileID
	idToEntry  map[FileID]*Entry
	pathToID   map[string]FileID
	mounts     *MountTable
}

// NewFSMap constructs an FSMap with only the root entry present, per the
// distilled spec's lazy-population invariant ("children is non-null iff it
// has been listed at least once"): unlike the original implementation's
// new_with_mounts, mount entries are not eagerly created here -- the first
// refresh_dir_list(0) call populates them (see refresh.go).
func NewFSMap(mounts *MountTable, rootAttrs Attributes) *FSMap {
	m := &FSMap{
		intern:     intern.New(),
		nextFileID: 1,
		idToEntry:  make(map[FileID]*Entry),
		pathToID:   make(map[string]FileID),
		mounts:     mounts,
	}

	root := &Entry{
		Name:         SymbolicPath{},
		FSMeta:       rootAttrs,
		ChildrenMeta: rootAttrs,
	}
	m.idToEntry[RootFileID] = root
	m.pathToID[SymbolicPath{}.key()] = RootFileID

	return m
}

// Intern exposes the map's path interner (C1) to callers that need to turn
// a raw host name into a Symbol before composing a SymbolicPath.
func (m *FSMap) Intern() *intern.Table {
	return m.intern
}

// Mounts exposes the map's mount table (C3).
func (m *FSMap) Mounts() *MountTable {
	return m.mounts
}

// FindEntry returns a clone of the entry for id, or ErrNoEnt.
func (m *FSMap) FindEntry(id FileID) (Entry, Status) {
	e, ok := m.idToEntry[id]
	if !ok {
		return Entry{}, ErrNoEnt
	}
	return e.Clone(), OK
}

// FindEntryMut returns the live *Entry for id for in-place update of
// FSMeta/Children, or ErrNoEnt. Callers must not retain the pointer beyond
// the current lock hold.
func (m *FSMap) FindEntryMut(id FileID) (*Entry, Status) {
	e, ok := m.idToEntry[id]
	if !ok {
		return nil, ErrNoEnt
	}
	return e, OK
}

// FindChild looks up the fileid of name under parent id using only the
// path map -- a pure cache lookup, no syscalls. It fails with ErrNoEnt if
// either name is not interned or the composed path is unknown.
func (m *FSMap) FindChild(id FileID, name []byte) (FileID, Status) {
	parent, ok := m.idToEntry[id]
	if !ok {
		return 0, ErrNoEnt
	}

	sym, ok := m.intern.CheckInterned(name)
	if !ok {
		return 0, ErrNoEnt
	}

	childPath := parent.Name.Child(sym)
	childID, ok := m.pathToID[childPath.key()]
	if !ok {
		return 0, ErrNoEnt
	}
	return childID, OK
}

// CreateEntry binds fullPath to a fileid. If the path is already bound, its
// FSMeta is refreshed in place and the existing id is returned; otherwise a
// new id is allocated, inserted into both maps with Children unset and
// FSMeta == ChildrenMeta == attrs, and the new id is returned.
func (m *FSMap) CreateEntry(fullPath SymbolicPath, attrs Attributes) FileID {
	key := fullPath.key()

	if id, ok := m.pathToID[key]; ok {
		e := m.idToEntry[id]
		attrs.FileID = uint64(id)
		e.FSMeta = attrs
		return id
	}

	id := m.nextFileID
	m.nextFileID++

	attrs.FileID = uint64(id)
	name := append(SymbolicPath(nil), fullPath...)
	m.idToEntry[id] = &Entry{
		Name:         name,
		FSMeta:       attrs,
		ChildrenMeta: attrs,
	}
	m.pathToID[key] = id

	return id
}

// DeleteEntry removes id and all of its transitive descendants (reached
// via Children) from both maps. It must not be called with id ==
// RootFileID.
func (m *FSMap) DeleteEntry(id FileID) {
	var victims []FileID
	m.collectDescendants(id, &victims)

	for _, v := range victims {
		if e, ok := m.idToEntry[v]; ok {
			delete(m.pathToID, e.Name.key())
			delete(m.idToEntry, v)
		}
	}
}

func (m *FSMap) collectDescendants(id FileID, out *[]FileID) {
	*out = append(*out, id)
	e, ok := m.idToEntry[id]
	if !ok {
		return
	}
	for _, child := range e.Children {
		m.collectDescendants(child, out)
	}
}

// RebindPath moves the path binding for id from oldPath to newPath,
// leaving the fileid unchanged -- used by rename, which must preserve
// identity across the move.
func (m *FSMap) RebindPath(id FileID, oldPath, newPath SymbolicPath) {
	delete(m.pathToID, oldPath.key())
	newName := append(SymbolicPath(nil), newPath...)
	m.pathToID[newName.key()] = id
	if e, ok := m.idToEntry[id]; ok {
		e.Name = newName
	}
}

// BindAlias binds an additional SymbolicPath to an existing fileid without
// allocating a new one -- used by link (hard-link aliasing, P5).
func (m *FSMap) BindAlias(id FileID, path SymbolicPath) {
	m.pathToID[path.key()] = id
}
