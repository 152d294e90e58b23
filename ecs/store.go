// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package ecs

// slot identifies a store.data element.
// A negative value means that the ID is not in use.
type slot struct {
	data int
}

// entry is what a store holds.
type entry[D any] struct {
	data D
	id   int
}

// store holds data of type D densely, addressed by
// stable identifiers of type I. Removal moves the last
// element into the vacated position, so iteration order
// is insertion order until the first removal.
type store[I ~int, D any] struct {
	ids  []slot
	free []I
	data []entry[D]
}

// insert inserts data into s.
// It returns an I value that identifies data in s.
func (s *store[I, D]) insert(data D) I {
	var id I
	if n := len(s.free); n > 0 {
		id = s.free[n-1]
		s.free = s.free[:n-1]
	} else {
		id = I(len(s.ids))
		s.ids = append(s.ids, slot{})
	}
	s.ids[id] = slot{data: len(s.data)}
	s.data = append(s.data, entry[D]{data, int(id)})
	return id
}

// remove removes the data identified by id.
// It returns the removed data.
// id must belong to s.
func (s *store[I, D]) remove(id I) D {
	d := s.ids[id].data
	if d < 0 {
		panic("ecs: removal of unused id")
	}
	data := s.data[d].data
	last := len(s.data) - 1
	if d < last {
		moved := s.data[last].id
		s.ids[moved].data = d
		s.data[d] = s.data[last]
	}
	s.ids[id].data = -1
	s.free = append(s.free, id)
	var zero entry[D]
	s.data[last] = zero
	s.data = s.data[:last]
	return data
}

// get returns a pointer to the data identified by id.
// id must belong to s.
func (s *store[I, D]) get(id I) *D { return &s.data[s.ids[id].data].data }

// valid returns whether id is in use.
func (s *store[I, D]) valid(id I) bool {
	return int(id) >= 0 && int(id) < len(s.ids) && s.ids[id].data >= 0
}

// len returns the number of elements in s.
func (s *store[_, _]) len() int { return len(s.data) }
