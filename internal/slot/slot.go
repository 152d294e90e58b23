// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Package slot implements a slot allocator backed by a
// growable bit vector.
// A set bit means that the slot is in use.
package slot

import (
	"iter"
	"math/bits"
	"unsafe"
)

// Uint represents the granularity of a Map.
type Uint interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Map is a growable slot map with custom granularity.
// The zero value is an empty map ready to use.
type Map[T Uint] struct {
	s   []T
	rem int
}

func (*Map[T]) nbit() int { return int(unsafe.Sizeof(T(0))) * 8 }

// Len returns the number of slots in the map.
func (m *Map[_]) Len() int { return len(m.s) * m.nbit() }

// Rem returns the number of free slots in the map.
func (m *Map[_]) Rem() int { return m.rem }

// Used returns the number of slots in use.
func (m *Map[_]) Used() int { return m.Len() - m.rem }

// Grow appends nplus words of free slots to the map.
// It returns the index of the first new slot.
func (m *Map[T]) Grow(nplus int) (index int) {
	index = m.Len()
	if nplus > 0 {
		m.s = append(m.s, make([]T, nplus)...)
		m.rem += nplus * m.nbit()
	}
	return
}

// Set marks a slot as used.
func (m *Map[T]) Set(index int) {
	n := m.nbit()
	b := T(1) << (index % n)
	if w := &m.s[index/n]; *w&b == 0 {
		*w |= b
		m.rem--
	}
}

// Unset marks a slot as free.
func (m *Map[T]) Unset(index int) {
	n := m.nbit()
	b := T(1) << (index % n)
	if w := &m.s[index/n]; *w&b != 0 {
		*w &^= b
		m.rem++
	}
}

// IsSet returns whether a slot is in use.
// Slots past Len are never in use.
func (m *Map[T]) IsSet(index int) bool {
	if index < 0 || index >= m.Len() {
		return false
	}
	n := m.nbit()
	return m.s[index/n]&(T(1)<<(index%n)) != 0
}

// SearchRange locates n contiguous free slots.
// If ok is true, the range [index, index+n) is free.
func (m *Map[T]) SearchRange(n int) (index int, ok bool) {
	if n < 1 || m.rem < n {
		return
	}
	nb := m.nbit()
	var run int
	for i, w := range m.s {
		if w == ^T(0) {
			run = 0
			continue
		}
		if w == 0 && run+nb < n {
			run += nb
			continue
		}
		for b := range nb {
			if w&(T(1)<<b) != 0 {
				run = 0
				continue
			}
			run++
			if run == n {
				return i*nb + b - n + 1, true
			}
		}
	}
	return
}

// Alloc marks n contiguous slots as used, growing the
// map if needed. It returns the first slot of the range.
func (m *Map[T]) Alloc(n int) int {
	if n < 1 {
		panic("slot: Alloc with non-positive count")
	}
	index, ok := m.SearchRange(n)
	if !ok {
		nb := m.nbit()
		// Free slots at the end may be part of the range.
		trail := 0
		if ln := len(m.s); ln > 0 {
			trail = bits.LeadingZeros64(uint64(m.s[ln-1])) - (64 - nb)
			if trail == nb {
				trail = 0
				for i := ln - 1; i >= 0 && m.s[i] == 0; i-- {
					trail += nb
				}
			}
		}
		m.Grow((n - trail + nb - 1) / nb)
		if index, ok = m.SearchRange(n); !ok {
			panic("slot: unexpected failure from SearchRange")
		}
	}
	for i := index; i < index+n; i++ {
		m.Set(i)
	}
	return index
}

// Free marks the range [index, index+n) as free.
func (m *Map[T]) Free(index, n int) {
	for i := index; i < index+n; i++ {
		m.Unset(i)
	}
}

// Clear marks every slot as free.
func (m *Map[T]) Clear() {
	clear(m.s)
	m.rem = m.Len()
}

// All returns an iterator over the slots in use,
// in increasing order.
func (m *Map[T]) All() iter.Seq[int] {
	return func(yield func(int) bool) {
		nb := m.nbit()
		for i, w := range m.s {
			for w != 0 {
				b := bits.TrailingZeros64(uint64(w))
				if !yield(i*nb + b) {
					return
				}
				w &^= T(1) << b
			}
		}
	}
}
