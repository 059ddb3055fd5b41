package common

// IndexedSet is an ordered set supporting O(1) membership checks and O(1)
// removal via swap-with-last-then-pop. Positions are stored 1-based in the
// companion map; position zero means "absent". The ported contracts compare
// against position zero everywhere, so the sentinel convention is part of the
// container's contract, not an implementation detail.
type IndexedSet[K comparable] struct {
	items []K
	pos   map[K]uint64
}

// NewIndexedSet returns an empty set.
func NewIndexedSet[K comparable]() *IndexedSet[K] {
	return &IndexedSet[K]{pos: make(map[K]uint64)}
}

// Len reports the number of live entries.
func (s *IndexedSet[K]) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// Contains reports membership.
func (s *IndexedSet[K]) Contains(k K) bool {
	return s.Position(k) != 0
}

// Position returns the 1-based position of k, or zero when absent.
func (s *IndexedSet[K]) Position(k K) uint64 {
	if s == nil || s.pos == nil {
		return 0
	}
	return s.pos[k]
}

// Append inserts k at the tail. Inserting an existing key is a no-op so the
// container stays idempotent under replayed insertions.
func (s *IndexedSet[K]) Append(k K) bool {
	if s.pos == nil {
		s.pos = make(map[K]uint64)
	}
	if s.pos[k] != 0 {
		return false
	}
	s.items = append(s.items, k)
	s.pos[k] = uint64(len(s.items))
	return true
}

// Remove deletes k by swapping the last element into its slot and popping the
// tail. Returns false when k is not present.
func (s *IndexedSet[K]) Remove(k K) bool {
	if s == nil || s.pos == nil {
		return false
	}
	p := s.pos[k]
	if p == 0 {
		return false
	}
	last := uint64(len(s.items))
	if p != last {
		moved := s.items[last-1]
		s.items[p-1] = moved
		s.pos[moved] = p
	}
	s.items = s.items[:last-1]
	delete(s.pos, k)
	return true
}

// Items returns a copy of the live entries in storage order.
func (s *IndexedSet[K]) Items() []K {
	if s == nil || len(s.items) == 0 {
		return nil
	}
	out := make([]K, len(s.items))
	copy(out, s.items)
	return out
}

// Snapshot exposes the raw slice and map for persistence codecs. Callers must
// not mutate the returned values.
func (s *IndexedSet[K]) Snapshot() ([]K, map[K]uint64) {
	if s == nil {
		return nil, nil
	}
	return s.items, s.pos
}

// RestoreIndexedSet rebuilds a set from a persisted item slice. Positions are
// re-derived so a stale map can never disagree with the array.
func RestoreIndexedSet[K comparable](items []K) *IndexedSet[K] {
	s := NewIndexedSet[K]()
	for _, k := range items {
		s.Append(k)
	}
	return s
}
