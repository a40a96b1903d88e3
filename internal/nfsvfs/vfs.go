// Package nfsvfs is the virtual filesystem layer bridging NFSv3 semantics
// and the host filesystem: the stable-identifier mapping, the
// lazily-refreshed directory cache, multi-mount namespace composition, and
// the per-operation handlers that enforce read-only policy, translate
// errors, and keep the identifier map coherent with on-disk changes made
// out-of-band.
package nfsvfs

import (
	"os"
	"sync"
)

// Capabilities reports whether a VFS accepts mutating operations at all.
type Capabilities int

const (
	ReadWrite Capabilities = iota
	ReadOnly
)

// VFS is the root of the virtual filesystem layer (C5), composing the
// Identifier Map (C2), Mount Table (C3), and Refresh Engine (C4) behind a
// single coarse lock.
//
// Dependencies
//
//	fsmap: the Identifier Map this VFS serializes access to.
//
// Mutable state
//
//	mu protects every field reachable from fsmap: entries, the path map,
//	the id counter, and the interner. It is held for the duration of any
//	cached-state mutation and released before bulk read/write syscalls,
//	mirroring gcsfuse's fileSystem.mu / LOCKS_REQUIRED convention.
type VFS struct {
	// Constant data
	globalReadOnly bool

	// Mutable state
	mu    sync.Mutex
	fsmap *FSMap
}

// New constructs a VFS over the given mounts. globalReadOnly is the
// server-wide read-only flag; it is OR'd with each mount's own ReadOnly
// flag to produce the effective per-operation policy.
func New(mounts []Mount, globalReadOnly bool) *VFS {
	rootAttrs := ProjectAttributes(rootDirFileInfo(), 0, uint64(RootFileID))
	return &VFS{
		globalReadOnly: globalReadOnly,
		fsmap:          NewFSMap(NewMountTable(mounts), rootAttrs),
	}
}

// rootDirFileInfo stats the process's current working directory to seed
// the synthetic root's attributes with something plausible (mode, a
// directory type) when no single host directory backs fileid 0. This
// mirrors new_with_root's fallback to `std::fs::metadata(".")` when the
// configured root has no independent existence.
func rootDirFileInfo() os.FileInfo {
	fi, err := os.Stat(".")
	if err != nil {
		// The working directory is always statable in practice; if this
		// ever fails the process is in no state to serve anything.
		panic("nfsvfs: cannot stat working directory for root attributes: " + err.Error())
	}
	return fi
}

// RootDir returns the fileid of the synthetic root.
func (v *VFS) RootDir() FileID {
	return RootFileID
}

// Capabilities reports the server-wide access mode.
func (v *VFS) Capabilities() Capabilities {
	if v.globalReadOnly {
		return ReadOnly
	}
	return ReadWrite
}

// effectiveReadOnly reports whether writes under path are currently
// forbidden, combining the server-wide flag with the owning mount's own
// flag via logical OR.
//
// LOCKS_REQUIRED(v.mu)
func (v *VFS) effectiveReadOnly(path SymbolicPath) bool {
	if v.globalReadOnly {
		return true
	}
	if len(path) == 0 {
		return false
	}
	name := string(v.fsmap.Intern().Get(path[0]))
	mount, found := v.fsmap.Mounts().ByTargetName(name)
	if !found {
		return false
	}
	return mount.ReadOnly
}
