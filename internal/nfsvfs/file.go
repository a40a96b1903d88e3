package nfsvfs

import (
	"io"
	"os"
	"time"
)

// Read returns up to count bytes starting at offset from id's host file,
// clamped to the file's current length, and whether the returned range
// reaches end of file.
//
// The Identifier Map lock is held only while resolving id to a host path;
// it is released before the bulk read syscall so a slow read on one file
// does not stall every other operation.
func (v *VFS) Read(id FileID, offset uint64, count uint32) ([]byte, bool, Status) {
	v.mu.Lock()
	entry, st := v.fsmap.FindEntry(id)
	if st != OK {
		v.mu.Unlock()
		return nil, false, ErrNoEnt
	}
	hostPath, _, resolved := v.fsmap.Mounts().Resolve(v.fsmap.Intern(), entry.Name)
	v.mu.Unlock()

	if !resolved {
		return nil, false, ErrIsDir
	}

	f, err := os.Open(hostPath)
	if err != nil {
		return nil, false, translateHostError(err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, false, translateHostError(err)
	}
	length := uint64(fi.Size())

	if offset >= length {
		return nil, true, OK
	}

	end := offset + uint64(count)
	if end > length {
		end = length
	}

	buf := make([]byte, end-offset)
	n, err := f.ReadAt(buf, int64(offset))
	if err != nil && err != io.EOF {
		return nil, false, translateHostError(err)
	}

	return buf[:n], end >= length, OK
}

// Write writes bytes at offset into id's host file, flushing and syncing,
// then returns the file's fresh attributes.
func (v *VFS) Write(id FileID, offset uint64, data []byte) (Attributes, Status) {
	v.mu.Lock()
	entry, st := v.fsmap.FindEntry(id)
	if st != OK {
		v.mu.Unlock()
		return Attributes{}, ErrNoEnt
	}
	if v.effectiveReadOnly(entry.Name) {
		v.mu.Unlock()
		return Attributes{}, ErrROFS
	}
	hostPath, _, resolved := v.fsmap.Mounts().Resolve(v.fsmap.Intern(), entry.Name)
	fsid := entry.FSMeta.FSID
	v.mu.Unlock()

	if !resolved {
		return Attributes{}, ErrIsDir
	}

	f, err := os.OpenFile(hostPath, os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return Attributes{}, translateHostError(err)
	}
	defer f.Close()

	if _, err := f.WriteAt(data, int64(offset)); err != nil {
		return Attributes{}, ErrIO
	}
	if err := f.Sync(); err != nil {
		return Attributes{}, ErrIO
	}

	fi, err := f.Stat()
	if err != nil {
		return Attributes{}, translateHostError(err)
	}
	fresh := ProjectAttributes(fi, fsid, uint64(id))

	v.mu.Lock()
	defer v.mu.Unlock()
	if mut, st := v.fsmap.FindEntryMut(id); st == OK {
		mut.FSMeta = fresh
	}
	return fresh, OK
}

// Readlink returns the raw link target bytes of a symlink id.
func (v *VFS) Readlink(id FileID) ([]byte, Status) {
	v.mu.Lock()
	entry, st := v.fsmap.FindEntry(id)
	if st != OK {
		v.mu.Unlock()
		return nil, ErrNoEnt
	}
	if entry.FSMeta.Type != TypeSymlink {
		v.mu.Unlock()
		return nil, ErrBadType
	}
	hostPath, _, resolved := v.fsmap.Mounts().Resolve(v.fsmap.Intern(), entry.Name)
	v.mu.Unlock()

	if !resolved {
		return nil, ErrBadType
	}

	target, err := os.Readlink(hostPath)
	if err != nil {
		return nil, translateHostError(err)
	}
	return []byte(target), OK
}

// TimeSetMode follows the NFSv3 sattr3 time-setting convention.
type TimeSetMode int

const (
	DontChange TimeSetMode = iota
	SetToClientTime
	SetToServerTime
)

// Sattr is the set-attributes argument: each field is a pointer, nil
// meaning "do not change this field", matching NFSv3's sattr3 union-style
// optionality.
type Sattr struct {
	Mode      *uint32
	UID       *uint32
	GID       *uint32
	Size      *uint64
	AtimeMode TimeSetMode
	Atime     time.Time
	MtimeMode TimeSetMode
	Mtime     time.Time
}

// SetAttr applies sattr to id's host object, then re-stats and returns the
// fresh attributes.
func (v *VFS) SetAttr(id FileID, sattr Sattr) (Attributes, Status) {
	v.mu.Lock()
	entry, st := v.fsmap.FindEntry(id)
	if st != OK {
		v.mu.Unlock()
		return Attributes{}, ErrNoEnt
	}
	if v.effectiveReadOnly(entry.Name) {
		v.mu.Unlock()
		return Attributes{}, ErrROFS
	}
	hostPath, _, resolved := v.fsmap.Mounts().Resolve(v.fsmap.Intern(), entry.Name)
	fsid := entry.FSMeta.FSID
	v.mu.Unlock()

	if !resolved {
		if len(entry.Name) == 1 {
			mount, found := v.fsmap.Mounts().ByTargetName(string(v.fsmap.Intern().Get(entry.Name[0])))
			if found {
				hostPath, resolved = mount.Source, true
			}
		}
		if !resolved {
			return Attributes{}, ErrAcces
		}
	}

	if sattr.Mode != nil {
		if err := os.Chmod(hostPath, os.FileMode(*sattr.Mode)); err != nil {
			return Attributes{}, translateHostError(err)
		}
	}
	if sattr.UID != nil || sattr.GID != nil {
		uid, gid := -1, -1
		if sattr.UID != nil {
			uid = int(*sattr.UID)
		}
		if sattr.GID != nil {
			gid = int(*sattr.GID)
		}
		if err := os.Chown(hostPath, uid, gid); err != nil {
			return Attributes{}, translateHostError(err)
		}
	}
	if sattr.Size != nil {
		if err := os.Truncate(hostPath, int64(*sattr.Size)); err != nil {
			return Attributes{}, translateHostError(err)
		}
	}
	if sattr.AtimeMode != DontChange || sattr.MtimeMode != DontChange {
		fi, err := os.Lstat(hostPath)
		if err != nil {
			return Attributes{}, translateHostError(err)
		}
		now := time.Now()
		atime, mtime := accessTime(fi), fi.ModTime()
		switch sattr.AtimeMode {
		case SetToClientTime:
			atime = sattr.Atime
		case SetToServerTime:
			atime = now
		}
		switch sattr.MtimeMode {
		case SetToClientTime:
			mtime = sattr.Mtime
		case SetToServerTime:
			mtime = now
		}
		if err := os.Chtimes(hostPath, atime, mtime); err != nil {
			return Attributes{}, translateHostError(err)
		}
	}

	fi, err := os.Lstat(hostPath)
	if err != nil {
		return Attributes{}, translateHostError(err)
	}
	fresh := ProjectAttributes(fi, fsid, uint64(id))

	v.mu.Lock()
	defer v.mu.Unlock()
	if mut, st := v.fsmap.FindEntryMut(id); st == OK {
		mut.FSMeta = fresh
	}
	return fresh, OK
}

// accessTime extracts the access time already folded into Attributes by
// ProjectAttributes, re-deriving it here from a fresh stat since Sattr
// preserves whichever of atime/mtime the caller did not ask to change.
func accessTime(fi os.FileInfo) time.Time {
	return ProjectAttributes(fi, 0, 0).Atime
}
