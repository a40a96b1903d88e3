package nfsvfs

import "path/filepath"

// Lookup resolves name under directory dirID, returning its fileid.
//
// LOCKS_EXCLUDED(v.mu) -- acquired internally; may perform host stats.
func (v *VFS) Lookup(dirID FileID, name []byte) (FileID, Status) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if id, st := v.fsmap.FindChild(dirID, name); st == OK {
		return id, OK
	}

	dirEntry, st := v.fsmap.FindEntry(dirID)
	if st != OK {
		return 0, ErrNoEnt
	}

	// A mount node looked up against its own name resolves to itself. A
	// mount node's symbolic path is always exactly one component (its
	// target name with the leading slash stripped), so this check is
	// independent of whether Resolve below can also join name onto a host
	// path -- it must fire before that, not only when Resolve fails.
	if len(dirEntry.Name) == 1 && string(v.fsmap.Intern().Get(dirEntry.Name[0])) == string(name) {
		return dirID, OK
	}

	hostDir, _, resolved := v.fsmap.Mounts().Resolve(v.fsmap.Intern(), dirEntry.Name)
	if !resolved {
		return 0, ErrNoEnt
	}

	childHostPath := filepath.Join(hostDir, string(name))
	if !exists(childHostPath) {
		return 0, ErrNoEnt
	}

	if res, st := v.refreshEntry(dirID); st == OK && res == Delete {
		return 0, ErrNoEnt
	}

	if st := v.refreshDirList(dirID); st != OK {
		return 0, st
	}

	return v.fsmap.FindChild(dirID, name)
}

// GetAttr refreshes and returns id's attributes.
//
// LOCKS_EXCLUDED(v.mu)
func (v *VFS) GetAttr(id FileID) (Attributes, Status) {
	v.mu.Lock()
	defer v.mu.Unlock()

	res, st := v.refreshEntry(id)
	if st != OK {
		return Attributes{}, st
	}
	if res == Delete {
		return Attributes{}, ErrNoEnt
	}

	entry, st := v.fsmap.FindEntry(id)
	if st != OK {
		return Attributes{}, ErrNoEnt
	}
	return entry.FSMeta, OK
}
