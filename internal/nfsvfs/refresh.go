package nfsvfs

import (
	"os"
	"path/filepath"
	"sort"
)

// RefreshResult is the outcome of refreshEntry.
type RefreshResult int

const (
	// Noop means nothing has changed.
	Noop RefreshResult = iota
	// Reload means the fileid's attributes were updated in place; caches
	// that depend on them (e.g. a parent's children list) should be
	// considered stale.
	Reload
	// Delete means the fileid no longer refers to anything live and has
	// been removed from the map, cascading to descendants.
	Delete
)

// statNoTraverse stats path without following a trailing symlink, so a
// dangling symlink is still observed as present. It mirrors
// rclone's stat_unix.go idiom of widening os.Lstat via syscall.Stat_t.
func statNoTraverse(path string, fsid uint64, fileID uint64) (Attributes, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		return Attributes{}, err
	}
	return ProjectAttributes(fi, fsid, fileID), nil
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// refreshEntry re-stats id's backing host object (or the mount source, or
// nothing, for the root) and reconciles the cached Entry with what it
// finds, deleting or reloading it as needed.
//
// LOCKS_REQUIRED(v.mu)
func (v *VFS) refreshEntry(id FileID) (RefreshResult, Status) {
	entry, st := v.fsmap.FindEntry(id)
	if st != OK {
		return Delete, st
	}

	hostPath, _, resolved := v.fsmap.Mounts().Resolve(v.fsmap.Intern(), entry.Name)
	if !resolved {
		if len(entry.Name) == 0 {
			// The root always exists.
			return Noop, OK
		}
		return v.refreshMountNode(id, entry)
	}

	if !exists(hostPath) {
		v.fsmap.DeleteEntry(id)
		return Delete, OK
	}

	fresh, err := statNoTraverse(hostPath, entry.FSMeta.FSID, uint64(id))
	if err != nil {
		v.fsmap.DeleteEntry(id)
		return Delete, OK
	}

	if !Differ(fresh, entry.FSMeta) {
		return Noop, OK
	}

	if fresh.Type != entry.FSMeta.Type {
		// A type flip means the whole object has been replaced; the
		// identifier is considered invalid rather than merely stale.
		v.fsmap.DeleteEntry(id)
		return Delete, OK
	}

	mut, st := v.fsmap.FindEntryMut(id)
	if st != OK {
		return Delete, st
	}
	mut.FSMeta = fresh
	return Reload, OK
}

// refreshMountNode handles refreshEntry for a length-1 symbolic path (a
// mount's own root node), which has no parent-relative host path to
// resolve via the mount table's usual join.
func (v *VFS) refreshMountNode(id FileID, entry Entry) (RefreshResult, Status) {
	name := string(v.fsmap.Intern().Get(entry.Name[0]))
	mount, found := v.fsmap.Mounts().ByTargetName(name)
	if !found {
		return Noop, OK
	}

	if !exists(mount.Source) {
		v.fsmap.DeleteEntry(id)
		return Delete, OK
	}

	fresh, err := statNoTraverse(mount.Source, entry.FSMeta.FSID, uint64(id))
	if err != nil {
		v.fsmap.DeleteEntry(id)
		return Delete, OK
	}

	if !Differ(fresh, entry.FSMeta) {
		return Noop, OK
	}

	mut, st := v.fsmap.FindEntryMut(id)
	if st != OK {
		return Delete, st
	}
	mut.FSMeta = fresh
	return Reload, OK
}

// refreshDirList (re)populates id's Children set if it is stale or never
// populated.
//
// LOCKS_REQUIRED(v.mu)
func (v *VFS) refreshDirList(id FileID) Status {
	entry, st := v.fsmap.FindEntry(id)
	if st != OK {
		return st
	}

	if entry.HasChildren() && !Differ(entry.ChildrenMeta, entry.FSMeta) {
		return OK
	}
	if entry.FSMeta.Type != TypeDirectory {
		return OK
	}

	var newChildren []FileID

	if len(entry.Name) == 0 {
		for _, mount := range v.fsmap.Mounts().Mounts() {
			sym := v.fsmap.Intern().Intern([]byte(mount.Target[1:]))
			childPath := entry.Name.Child(sym)
			if !exists(mount.Source) {
				continue
			}
			attrs, err := statNoTraverse(mount.Source, mountFSID(mount), 0)
			if err != nil {
				continue
			}
			childID := v.fsmap.CreateEntry(childPath, attrs)
			newChildren = append(newChildren, childID)
		}
	} else {
		hostPath, _, resolved := v.fsmap.Mounts().Resolve(v.fsmap.Intern(), entry.Name)
		if !resolved {
			return OK
		}

		dirEntries, err := os.ReadDir(hostPath)
		if err == nil {
			for _, de := range dirEntries {
				sym := v.fsmap.Intern().Intern([]byte(de.Name()))
				childPath := entry.Name.Child(sym)
				attrs, err := statNoTraverse(filepath.Join(hostPath, de.Name()), entry.FSMeta.FSID, 0)
				if err != nil {
					continue
				}
				childID := v.fsmap.CreateEntry(childPath, attrs)
				newChildren = append(newChildren, childID)
			}
		}
	}

	mut, st := v.fsmap.FindEntryMut(id)
	if st != OK {
		return st
	}
	if newChildren == nil {
		newChildren = []FileID{}
	}
	// readdir pagination keys its cursor off the last-emitted fileid and
	// relies on ascending order to split children into non-overlapping
	// pages without dropping or repeating any of them, so children must
	// come out in fileid order regardless of the host directory's own
	// (name-sorted) iteration order.
	sort.Slice(newChildren, func(i, j int) bool { return newChildren[i] < newChildren[j] })
	mut.Children = newChildren
	mut.ChildrenMeta = mut.FSMeta
	return OK
}

// mountFSID derives a stable per-mount filesystem id from the mount's
// target name, satisfying "filesystem-id (constant per mount)" without
// requiring a host statfs call the stdlib does not expose portably.
func mountFSID(m Mount) uint64 {
	var h uint64 = 14695981039346656037 // FNV-1a offset basis
	for _, c := range []byte(m.Target) {
		h ^= uint64(c)
		h *= 1099511628211 // FNV-1a prime
	}
	return h
}
