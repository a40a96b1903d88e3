package nfsvfs

import (
	"os"
	"path/filepath"
)

// DirEntry is one entry emitted by ReadDir: its fileid, raw byte-string
// name (from the interner, not UTF-8-validated), and last-known
// attributes.
type DirEntry struct {
	ID    FileID
	Name  []byte
	Attrs Attributes
}

// ReadDir lists dirID's children in fileid order, skipping ids <=
// startAfter when startAfter > 0, and returns at most maxEntries entries.
// end is true iff the emitted count equals the remaining-after-cursor
// count.
//
// LOCKS_EXCLUDED(v.mu)
func (v *VFS) ReadDir(dirID FileID, startAfter FileID, maxEntries int) ([]DirEntry, bool, Status) {
	v.mu.Lock()
	defer v.mu.Unlock()

	entry, st := v.fsmap.FindEntry(dirID)
	if st != OK {
		return nil, false, ErrNoEnt
	}
	if entry.FSMeta.Type != TypeDirectory {
		return nil, false, ErrNotDir
	}

	if res, st := v.refreshEntry(dirID); st != OK {
		return nil, false, st
	} else if res == Delete {
		return nil, false, ErrNoEnt
	}

	if st := v.refreshDirList(dirID); st != OK {
		return nil, false, st
	}

	entry, st = v.fsmap.FindEntry(dirID)
	if st != OK {
		return nil, false, ErrNoEnt
	}

	var remaining []FileID
	for _, id := range entry.Children {
		if startAfter > 0 && id <= startAfter {
			continue
		}
		remaining = append(remaining, id)
	}

	emit := remaining
	if maxEntries >= 0 && len(emit) > maxEntries {
		emit = emit[:maxEntries]
	}

	out := make([]DirEntry, 0, len(emit))
	for _, id := range emit {
		child, st := v.fsmap.FindEntry(id)
		if st != OK {
			continue
		}
		var name []byte
		if len(child.Name) > 0 {
			name = v.fsmap.Intern().Get(child.Name[len(child.Name)-1])
		}
		out = append(out, DirEntry{ID: id, Name: name, Attrs: child.FSMeta})
	}

	return out, len(emit) == len(remaining), OK
}

// createKind is the closed dispatch tag for the five creation variants
// (file, exclusive file, directory, symlink, device-degraded-to-file);
// they share one code path via this tag rather than per-kind interfaces.
type createKind int

const (
	createFile createKind = iota
	createFileExclusive
	createDir
	createSymlink
	createDevice
)

// createObject is the single "create object" helper backing create,
// create_exclusive, mkdir, symlink, and mknod.
//
// LOCKS_EXCLUDED(v.mu)
func (v *VFS) createObject(dirID FileID, name []byte, kind createKind, mode uint32, symlinkTarget string) (FileID, Attributes, Status) {
	v.mu.Lock()
	defer v.mu.Unlock()

	dirEntry, st := v.fsmap.FindEntry(dirID)
	if st != OK {
		return 0, Attributes{}, ErrNoEnt
	}

	if v.effectiveReadOnly(dirEntry.Name) {
		return 0, Attributes{}, ErrROFS
	}

	hostDir, _, resolved := v.fsmap.Mounts().Resolve(v.fsmap.Intern(), dirEntry.Name)
	if !resolved {
		// The synthetic root is not a real directory a child can be
		// created under. (A mount node resolves to its source directory.)
		return 0, Attributes{}, ErrAcces
	}
	if dirEntry.FSMeta.Type != TypeDirectory {
		return 0, Attributes{}, ErrAcces
	}

	childHostPath := filepath.Join(hostDir, string(name))

	var opErr error
	switch kind {
	case createFile, createDevice:
		f, err := os.OpenFile(childHostPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(mode))
		if err == nil {
			f.Close()
		}
		opErr = err
	case createFileExclusive:
		f, err := os.OpenFile(childHostPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, os.FileMode(mode))
		if err == nil {
			f.Close()
		}
		opErr = err
	case createDir:
		opErr = os.Mkdir(childHostPath, os.FileMode(mode))
	case createSymlink:
		opErr = os.Symlink(symlinkTarget, childHostPath)
	}
	if opErr != nil {
		return 0, Attributes{}, translateHostError(opErr)
	}

	v.refreshEntry(dirID)

	fi, err := os.Lstat(childHostPath)
	if err != nil {
		return 0, Attributes{}, translateHostError(err)
	}
	attrs := ProjectAttributes(fi, dirEntry.FSMeta.FSID, 0)

	sym := v.fsmap.Intern().Intern(name)
	childPath := dirEntry.Name.Child(sym)
	childID := v.fsmap.CreateEntry(childPath, attrs)
	v.fsmap.AddChild(dirID, childID)

	finalEntry, _ := v.fsmap.FindEntry(childID)
	return childID, finalEntry.FSMeta, OK
}

// Create creates a regular file, truncating if it already exists.
func (v *VFS) Create(dirID FileID, name []byte, mode uint32) (FileID, Attributes, Status) {
	return v.createObject(dirID, name, createFile, mode, "")
}

// CreateExclusive creates a regular file, failing with ErrExist if it
// already exists.
func (v *VFS) CreateExclusive(dirID FileID, name []byte, mode uint32) (FileID, Attributes, Status) {
	return v.createObject(dirID, name, createFileExclusive, mode, "")
}

// Mkdir creates a directory.
func (v *VFS) Mkdir(dirID FileID, name []byte, mode uint32) (FileID, Attributes, Status) {
	return v.createObject(dirID, name, createDir, mode, "")
}

// Symlink creates a symbolic link pointing at target.
func (v *VFS) Symlink(dirID FileID, name []byte, target string, mode uint32) (FileID, Attributes, Status) {
	return v.createObject(dirID, name, createSymlink, mode, target)
}

// Mknod creates character, block, socket, or FIFO nodes, all of which
// degrade to regular-file creation so no host privilege is required. Any
// other requested type is rejected with ErrBadType.
func (v *VFS) Mknod(dirID FileID, name []byte, kind FileType, mode uint32) (FileID, Attributes, Status) {
	switch kind {
	case TypeCharDevice, TypeBlockDevice, TypeSocket, TypeFIFO:
		return v.createObject(dirID, name, createDevice, mode, "")
	default:
		return 0, Attributes{}, ErrBadType
	}
}

// Remove deletes name from directory dirID -- unlinking a file or removing
// an empty directory as appropriate.
//
// LOCKS_EXCLUDED(v.mu)
func (v *VFS) Remove(dirID FileID, name []byte) Status {
	v.mu.Lock()
	defer v.mu.Unlock()

	dirEntry, st := v.fsmap.FindEntry(dirID)
	if st != OK {
		return ErrNoEnt
	}
	if v.effectiveReadOnly(dirEntry.Name) {
		return ErrROFS
	}

	hostDir, _, resolved := v.fsmap.Mounts().Resolve(v.fsmap.Intern(), dirEntry.Name)
	if !resolved {
		return ErrAcces
	}

	childHostPath := filepath.Join(hostDir, string(name))
	if _, err := os.Lstat(childHostPath); err != nil {
		return translateHostError(err)
	}

	if err := os.Remove(childHostPath); err != nil {
		return translateHostError(err)
	}

	if childID, st := v.fsmap.FindChild(dirID, name); st == OK {
		v.fsmap.DeleteEntry(childID)
		v.fsmap.RemoveChild(dirID, childID)
	}

	v.refreshEntry(dirID)
	return OK
}

// Rename moves fromName under fromDir to toName under toDir, preserving
// the moved entry's fileid.
//
// LOCKS_EXCLUDED(v.mu)
func (v *VFS) Rename(fromDir FileID, fromName []byte, toDir FileID, toName []byte) Status {
	v.mu.Lock()
	defer v.mu.Unlock()

	fromEntry, st := v.fsmap.FindEntry(fromDir)
	if st != OK {
		return ErrNoEnt
	}
	toEntry, st := v.fsmap.FindEntry(toDir)
	if st != OK {
		return ErrNoEnt
	}

	if v.effectiveReadOnly(fromEntry.Name) || v.effectiveReadOnly(toEntry.Name) {
		return ErrROFS
	}

	fromHostDir, _, fromResolved := v.fsmap.Mounts().Resolve(v.fsmap.Intern(), fromEntry.Name)
	toHostDir, _, toResolved := v.fsmap.Mounts().Resolve(v.fsmap.Intern(), toEntry.Name)
	if !fromResolved || !toResolved {
		return ErrAcces
	}

	fromHostPath := filepath.Join(fromHostDir, string(fromName))
	toHostPath := filepath.Join(toHostDir, string(toName))

	if !exists(fromHostPath) {
		return ErrNoEnt
	}
	if !exists(toHostDir) {
		return ErrNoEnt
	}

	if err := os.Rename(fromHostPath, toHostPath); err != nil {
		return translateHostError(err)
	}

	movedID, st := v.fsmap.FindChild(fromDir, fromName)
	if st == OK {
		oldPath := fromEntry.Name.Child(v.fsmap.Intern().Intern(fromName))
		newSym := v.fsmap.Intern().Intern(toName)
		newPath := toEntry.Name.Child(newSym)
		v.fsmap.RebindPath(movedID, oldPath, newPath)

		if fromDir != toDir {
			v.fsmap.RemoveChild(fromDir, movedID)
			v.fsmap.AddChild(toDir, movedID)
		}
	}

	v.refreshEntry(fromDir)
	v.refreshEntry(toDir)
	return OK
}

// Link creates a host hard link at linkDirID/linkName pointing at fileID's
// host object, binding the new symbolic path to the existing fileid
// (hard-link aliases share identity) rather than allocating a new one.
//
// LOCKS_EXCLUDED(v.mu)
func (v *VFS) Link(fileID FileID, linkDirID FileID, linkName []byte) Status {
	v.mu.Lock()
	defer v.mu.Unlock()

	fileEntry, st := v.fsmap.FindEntry(fileID)
	if st != OK {
		return ErrNoEnt
	}
	dirEntry, st := v.fsmap.FindEntry(linkDirID)
	if st != OK {
		return ErrNoEnt
	}

	if v.effectiveReadOnly(dirEntry.Name) {
		return ErrROFS
	}

	fileHostPath, _, fileResolved := v.fsmap.Mounts().Resolve(v.fsmap.Intern(), fileEntry.Name)
	dirHostPath, _, dirResolved := v.fsmap.Mounts().Resolve(v.fsmap.Intern(), dirEntry.Name)
	if !fileResolved || !dirResolved {
		return ErrAcces
	}

	linkHostPath := filepath.Join(dirHostPath, string(linkName))
	if err := os.Link(fileHostPath, linkHostPath); err != nil {
		return translateHostError(err)
	}

	sym := v.fsmap.Intern().Intern(linkName)
	newPath := dirEntry.Name.Child(sym)
	v.fsmap.BindAlias(fileID, newPath)
	v.fsmap.AddChild(linkDirID, fileID)

	v.refreshEntry(linkDirID)
	return OK
}
