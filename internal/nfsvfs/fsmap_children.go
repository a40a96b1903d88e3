package nfsvfs

// AddChild inserts childID into parentID's children set, maintaining
// ascending fileid order (monotone by creation time) so that readdir
// cookie semantics are well-defined without sorting by name. A no-op if
// parentID has no materialized children set or already contains childID.
func (m *FSMap) AddChild(parentID, childID FileID) {
	e, ok := m.idToEntry[parentID]
	if !ok || e.Children == nil {
		return
	}
	idx := 0
	for idx < len(e.Children) && e.Children[idx] < childID {
		idx++
	}
	if idx < len(e.Children) && e.Children[idx] == childID {
		return
	}
	e.Children = append(e.Children, 0)
	copy(e.Children[idx+1:], e.Children[idx:])
	e.Children[idx] = childID
}

// RemoveChild deletes childID from parentID's children set, if present.
func (m *FSMap) RemoveChild(parentID, childID FileID) {
	e, ok := m.idToEntry[parentID]
	if !ok || e.Children == nil {
		return
	}
	for i, c := range e.Children {
		if c == childID {
			e.Children = append(e.Children[:i], e.Children[i+1:]...)
			return
		}
	}
}
