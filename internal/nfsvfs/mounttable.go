package nfsvfs

import (
	"path/filepath"
	"strings"

	"github.com/benignx/nfs-mirror/internal/intern"
)

// Mount is one exported directory: Target is a string beginning with "/"
// acting as the single top-level namespace segment under the synthetic
// root, Source is an absolute host path, and ReadOnly shadows the
// server-wide flag from below (the effective read-only is the logical OR,
// computed by callers as serverReadOnly || mount.ReadOnly).
type Mount struct {
	Target   string
	Source   string
	ReadOnly bool
}

// targetName is Target with its leading slash stripped -- the bare name
// interned as the mount's root-level symbol.
func (m Mount) targetName() string {
	return strings.TrimPrefix(m.Target, "/")
}

// MountTable resolves a SymbolicPath to a concrete host path by matching
// its first component against configured exports.
type MountTable struct {
	mounts []Mount
}

// NewMountTable returns a MountTable over the given exports, in the order
// supplied (iteration order of refresh_dir_list on the root follows this
// same order).
func NewMountTable(mounts []Mount) *MountTable {
	cp := make([]Mount, len(mounts))
	copy(cp, mounts)
	return &MountTable{mounts: cp}
}

// Mounts returns the configured exports in order.
func (mt *MountTable) Mounts() []Mount {
	return mt.mounts
}

// ByTargetName returns the Mount whose target (sans leading slash) equals
// name, and true, or the zero Mount and false.
func (mt *MountTable) ByTargetName(name string) (Mount, bool) {
	for _, m := range mt.mounts {
		if m.targetName() == name {
			return m, true
		}
	}
	return Mount{}, false
}

// Resolve maps a SymbolicPath to a host path and the owning mount's own
// ReadOnly flag (the server-wide flag is not folded in). It returns ok=false for the empty path (the synthetic root has no
// host backing) and for a path whose first component matches no
// configured mount (a dangling or purely synthetic node). A component
// beyond the first that was never interned also resolves to ok=false,
// matching the distilled spec's "aborts the resolution with unresolved".
func (mt *MountTable) Resolve(tab *intern.Table, path SymbolicPath) (hostPath string, readOnly bool, ok bool) {
	if len(path) == 0 {
		return "", false, false
	}

	name := string(tab.Get(path[0]))
	mount, found := mt.ByTargetName(name)
	if !found {
		return "", false, false
	}

	if len(path) == 1 {
		return mount.Source, mount.ReadOnly, true
	}

	real := mount.Source
	for _, sym := range path[1:] {
		if sym == 0 || int(sym) > tab.Len() {
			return "", false, false
		}
		real = filepath.Join(real, string(tab.Get(sym)))
	}
	return real, mount.ReadOnly, true
}
