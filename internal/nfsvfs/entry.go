package nfsvfs

import (
	"encoding/binary"

	"github.com/benignx/nfs-mirror/internal/intern"
)

// FileID is the 64-bit opaque handle the server issues to clients. Zero is
// reserved for the synthetic root and is never reused.
type FileID uint64

// RootFileID is the fileid of the synthetic root directory.
const RootFileID FileID = 0

// SymbolicPath is an ordered sequence of interned path-component symbols.
// The empty sequence denotes the synthetic root. Two SymbolicPaths are
// equal iff they are component-wise equal.
type SymbolicPath []intern.Symbol

// Child returns the SymbolicPath formed by appending name to p. The
// receiver is never mutated.
func (p SymbolicPath) Child(name intern.Symbol) SymbolicPath {
	child := make(SymbolicPath, len(p)+1)
	copy(child, p)
	child[len(p)] = name
	return child
}

// Parent returns the SymbolicPath with its final component removed, and
// true, unless p is already the root, in which case it returns (nil,
// false). Entries do not store a parent back-pointer; the parent is always
// recovered this way, which keeps ownership tree-shaped.
func (p SymbolicPath) Parent() (SymbolicPath, bool) {
	if len(p) == 0 {
		return nil, false
	}
	return p[:len(p)-1], true
}

// key encodes p into a comparable Go string suitable for use as a map key.
// Each Symbol is packed as 4 big-endian bytes; since components are already
// interned to fixed-width integers there is no delimiter-collision risk the
// way there would be encoding raw path strings.
func (p SymbolicPath) key() string {
	buf := make([]byte, 4*len(p))
	for i, sym := range p {
		binary.BigEndian.PutUint32(buf[i*4:], uint32(sym))
	}
	return string(buf)
}

// Entry is a record owned exclusively by the Identifier Map, keyed by
// fileid.
type Entry struct {
	// Name is the symbolic path of this entry.
	Name SymbolicPath
	// FSMeta is the attributes as of the last refresh.
	FSMeta Attributes
	// ChildrenMeta is the FSMeta that was in effect when Children was last
	// populated.
	ChildrenMeta Attributes
	// Children is the ordered set of child fileids, present only for
	// directories whose listing has been materialized at least once since
	// the last detected metadata change. A nil slice (as opposed to an
	// empty, non-nil one) means "never listed".
	Children []FileID
}

// Clone returns a deep-enough copy of e: Name and Children are copied so
// that a caller holding a clone cannot observe or cause mutation of the
// map's internal state through it. find_entry in the distilled spec
// returns "a clone of the entry" for exactly this reason.
func (e Entry) Clone() Entry {
	out := e
	if e.Name != nil {
		out.Name = append(SymbolicPath(nil), e.Name...)
	}
	if e.Children != nil {
		out.Children = append(make([]FileID, 0, len(e.Children)), e.Children...)
	}
	return out
}

// HasChildren reports whether e's children set has been materialized.
func (e Entry) HasChildren() bool {
	return e.Children != nil
}
