// Package intern assigns small stable integers to repeated byte strings.
//
// A server mirroring a directory tree sees the same path components over and
// over -- every file in a directory shares the same parent name, every
// sibling shares the same suffix components after a rename. Interning turns
// comparison and hashing of a path into comparison and hashing of a short
// slice of integers instead of repeated byte slices.
package intern

// A Symbol is an opaque handle for one interned byte string. The zero Symbol
// is never returned by Table.Intern; callers may use it as a sentinel for
// "no symbol".
type Symbol uint32

// A Table interns byte strings to Symbols and back. It is not safe for
// concurrent use; callers that share a Table across goroutines must
// serialize access themselves (the virtual filesystem layer does this with
// its single coarse lock).
type Table struct {
	byBytes map[string]Symbol
	byID    [][]byte
}

// New returns an empty Table.
func New() *Table {
	return &Table{
		byBytes: make(map[string]Symbol),
		// Symbol 0 is reserved so that a zero Symbol can never be confused
		// with a real interned value.
		byID: [][]byte{nil},
	}
}

// Intern returns the Symbol for b, interning it if this is the first time it
// has been seen. Interning is idempotent: interning the same bytes twice
// returns the same Symbol. The returned Symbol is never 0.
func (t *Table) Intern(b []byte) Symbol {
	if sym, ok := t.byBytes[string(b)]; ok {
		return sym
	}

	cp := make([]byte, len(b))
	copy(cp, b)

	sym := Symbol(len(t.byID))
	t.byID = append(t.byID, cp)
	t.byBytes[string(cp)] = sym

	return sym
}

// Get returns the bytes behind sym. It panics if sym is beyond the last
// Symbol this Table has produced, since that indicates a programming error
// (a Symbol from another Table, or a corrupted value) rather than a
// recoverable condition. Get(0) returns nil.
func (t *Table) Get(sym Symbol) []byte {
	return t.byID[sym]
}

// CheckInterned looks up b without interning it, returning (0, false) if b
// has never been seen. Used on the negative-lookup path so that checking for
// an unknown name never grows the table.
func (t *Table) CheckInterned(b []byte) (Symbol, bool) {
	sym, ok := t.byBytes[string(b)]
	return sym, ok
}

// Len reports the number of distinct byte strings interned so far.
func (t *Table) Len() int {
	return len(t.byID) - 1
}
