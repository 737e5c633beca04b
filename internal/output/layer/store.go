package layer

import "sort"

// Store maps layer numbers to value buffers of a fixed element count.
type Store[T any] struct {
	size   int
	layers map[int][]T
	order  []int
}

// New creates an empty store whose layers hold size elements.
func New[T any](size int) *Store[T] {
	if size < 0 {
		size = 0
	}
	return &Store[T]{size: size, layers: make(map[int][]T)}
}

// Size returns the element count of every layer.
func (s *Store[T]) Size() int {
	return s.size
}

// Len returns the number of layers.
func (s *Store[T]) Len() int {
	return len(s.layers)
}

// Get returns the buffer for layer nr. The slice is owned by the store and
// stays valid until the layer is removed or the store is cleared or resized.
func (s *Store[T]) Get(nr int) ([]T, bool) {
	buf, ok := s.layers[nr]
	return buf, ok
}

// GetOrCreate returns the buffer for layer nr, allocating a zero-filled one if
// it does not exist yet.
func (s *Store[T]) GetOrCreate(nr int) []T {
	if buf, ok := s.layers[nr]; ok {
		return buf
	}
	buf := make([]T, s.size)
	s.layers[nr] = buf
	s.insert(nr)
	return buf
}

// Set stores v at element i of layer nr, creating the layer if necessary.
// Out-of-range indexes are ignored and reported as false.
func (s *Store[T]) Set(nr, i int, v T) bool {
	if i < 0 || i >= s.size {
		return false
	}
	s.GetOrCreate(nr)[i] = v
	return true
}

// Fill sets every element of layer nr to v.
func (s *Store[T]) Fill(nr int, v T) {
	buf := s.GetOrCreate(nr)
	for i := range buf {
		buf[i] = v
	}
}

// Remove drops layer nr. Removing an unknown layer is a no-op.
func (s *Store[T]) Remove(nr int) {
	if _, ok := s.layers[nr]; !ok {
		return
	}
	delete(s.layers, nr)
	idx := sort.SearchInts(s.order, nr)
	s.order = append(s.order[:idx], s.order[idx+1:]...)
}

// Clear drops every layer.
func (s *Store[T]) Clear() {
	clear(s.layers)
	s.order = s.order[:0]
}

// Resize changes the element count and drops every layer.
func (s *Store[T]) Resize(size int) {
	if size < 0 {
		size = 0
	}
	s.size = size
	s.Clear()
}

// Numbers returns the layer numbers in ascending order.
func (s *Store[T]) Numbers() []int {
	out := make([]int, len(s.order))
	copy(out, s.order)
	return out
}

// Each calls fn for every layer in ascending layer-number order.
func (s *Store[T]) Each(fn func(nr int, buf []T)) {
	for _, nr := range s.order {
		fn(nr, s.layers[nr])
	}
}

func (s *Store[T]) insert(nr int) {
	idx := sort.SearchInts(s.order, nr)
	s.order = append(s.order, 0)
	copy(s.order[idx+1:], s.order[idx:])
	s.order[idx] = nr
}
