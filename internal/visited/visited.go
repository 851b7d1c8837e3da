// Package visited tracks visited graph nodes during a single traversal.
package visited

// Set tracks visited nodes using a bitset plus a dirty list, so a reset
// between traversals touches only the words that were actually set.
type Set struct {
	bits  []uint64
	dirty []uint32
}

// New creates a visited set sized for the given number of nodes.
func New(capacity int) *Set {
	return &Set{
		bits:  make([]uint64, (capacity+63)/64),
		dirty: make([]uint32, 0, 128),
	}
}

// Visit marks a node as visited.
func (s *Set) Visit(id uint32) {
	wordIdx := int(id >> 6)
	bitMask := uint64(1) << (id & 63)

	if wordIdx >= len(s.bits) {
		s.grow(wordIdx + 1)
	}

	if s.bits[wordIdx]&bitMask == 0 {
		s.bits[wordIdx] |= bitMask
		s.dirty = append(s.dirty, id)
	}
}

// Visited returns true if the node has been visited since the last Reset.
func (s *Set) Visited(id uint32) bool {
	wordIdx := int(id >> 6)
	if wordIdx >= len(s.bits) {
		return false
	}
	return s.bits[wordIdx]&(uint64(1)<<(id&63)) != 0
}

// Reset clears the visited marks set since the previous Reset.
func (s *Set) Reset() {
	for _, id := range s.dirty {
		s.bits[id>>6] &^= uint64(1) << (id & 63)
	}
	s.dirty = s.dirty[:0]
}

func (s *Set) grow(newLen int) {
	newCap := len(s.bits) * 2
	if newCap < newLen {
		newCap = newLen
	}

	newBits := make([]uint64, newCap)
	copy(newBits, s.bits)
	s.bits = newBits
}
