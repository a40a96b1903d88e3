package nfsd

import (
	"os"
	"strings"

	"github.com/benignx/nfs-mirror/internal/nfsvfs"
)

// splitComponents turns a billy-style slash-separated path into its
// non-empty components. "", "/", and "." all denote the synthetic root.
func splitComponents(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" || p == "." {
		return nil
	}
	return strings.Split(p, "/")
}

// ensureRootListed makes sure the synthetic root's mount-node children are
// materialized before the first path component is looked up against it:
// nfsvfs.VFS.Lookup only consults entries refresh_dir_list has already
// populated, and the root itself is lazily populated on its first listing
// (NewFSMap's doc comment), so a Lookup of a bare mount name issued before
// any ReadDir of the root would otherwise always miss.
func ensureRootListed(vfs *nfsvfs.VFS) {
	vfs.ReadDir(vfs.RootDir(), 0, 0)
}

// resolve walks p component by component from the root, returning the
// fileid it names.
func resolve(vfs *nfsvfs.VFS, p string) (nfsvfs.FileID, error) {
	ensureRootListed(vfs)
	id := vfs.RootDir()
	for _, comp := range splitComponents(p) {
		next, st := vfs.Lookup(id, []byte(comp))
		if st != nfsvfs.OK {
			return 0, statusError(st)
		}
		id = next
	}
	return id, nil
}

// resolveParent splits p into its containing directory's fileid and its
// final component, which need not itself exist yet -- the shape every
// create/remove/rename-one-side operation needs.
func resolveParent(vfs *nfsvfs.VFS, p string) (nfsvfs.FileID, string, error) {
	comps := splitComponents(p)
	if len(comps) == 0 {
		return 0, "", os.ErrInvalid
	}
	ensureRootListed(vfs)
	id := vfs.RootDir()
	for _, comp := range comps[:len(comps)-1] {
		next, st := vfs.Lookup(id, []byte(comp))
		if st != nfsvfs.OK {
			return 0, "", statusError(st)
		}
		id = next
	}
	return id, comps[len(comps)-1], nil
}

// statusError maps an nfsvfs.Status to the closest stdlib sentinel error,
// the boundary at which this package's callers (billy.Filesystem users)
// stop caring about NFSv3-shaped statuses and start caring about the
// io/fs sentinels Go code conventionally checks with errors.Is.
func statusError(st nfsvfs.Status) error {
	switch st {
	case nfsvfs.OK:
		return nil
	case nfsvfs.ErrNoEnt:
		return os.ErrNotExist
	case nfsvfs.ErrExist:
		return os.ErrExist
	case nfsvfs.ErrAcces, nfsvfs.ErrROFS:
		return os.ErrPermission
	case nfsvfs.ErrNotDir:
		return os.ErrInvalid
	case nfsvfs.ErrIsDir:
		return os.ErrInvalid
	case nfsvfs.ErrBadType, nfsvfs.ErrInval:
		return os.ErrInvalid
	case nfsvfs.ErrNotEmpty:
		return os.ErrInvalid
	default:
		return os.ErrInvalid
	}
}
