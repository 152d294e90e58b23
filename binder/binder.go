// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Package binder implements the registry that maps shader
// input names to the functions producing their contents.
//
// Every entry has a Frequency that determines how often the
// resource backing the input is refreshed. The registry is
// metadata only: it never calls into the driver.
package binder

import (
	"errors"
	"fmt"

	"cogentcore.org/core/base/keylist"

	"github.com/gviegas/framegraph/asset"
	"github.com/gviegas/framegraph/ecs"
	"github.com/gviegas/framegraph/resource"
)

const prefix = "binder: "

// Frequency determines the caching granularity of a
// shader input.
type Frequency int

// Frequencies.
const (
	// Materialized a single time per sub-geometry and
	// never refreshed.
	Once Frequency = iota
	// One instance per sub-geometry, refreshed only if the
	// geometry changes.
	EachGeometry
	// One instance per entity, refreshed every frame.
	EachEntity
	// One instance per frame slot, refreshed once per frame
	// regardless of entity count.
	EachFrame
)

// String implements fmt.Stringer.
func (f Frequency) String() string {
	switch f {
	case Once:
		return "Once"
	case EachGeometry:
		return "EachGeometry"
	case EachEntity:
		return "EachEntity"
	case EachFrame:
		return "EachFrame"
	}
	return fmt.Sprintf("Frequency(%d)", int(f))
}

// Geometry identifies one sub-mesh of an entity.
type Geometry struct {
	Entity *ecs.Entity
	Mesh   *asset.MeshGeometry
	Index  int
}

// SubMesh returns the sub-mesh identified by g.
func (g *Geometry) SubMesh() *asset.SubMeshGeometry { return &g.Mesh.SubMeshes[g.Index] }

// Input is the argument of a Producer.
// Entity is nil for EachFrame producers, and Geometry is
// only set for Once and EachGeometry producers.
type Input struct {
	Table    *ecs.Table
	Entity   *ecs.Entity
	Geometry *Geometry
	Frame    int
}

// Producer generates the contents of a shader input.
// A nil Content with a nil error means that the input does
// not apply (e.g., bone transforms of a rigid entity), in
// which case nothing is bound.
type Producer func(in *Input) (*resource.Content, error)

// Entry is a registered shader input.
type Entry struct {
	Index     int
	Name      string
	Frequency Frequency
	Producer  Producer
}

var (
	// ErrDuplicate means that a name was registered twice.
	ErrDuplicate = errors.New(prefix + "duplicate binder name")
	// ErrUnbound means that no binder exists with the
	// given name.
	ErrUnbound = errors.New(prefix + "no such binder")
)

// Binder is the registry of shader inputs.
// Indices are assigned in registration order and remain
// valid for the lifetime of the Binder.
type Binder struct {
	entries  *keylist.List[string, *Entry]
	loadOnce []int
}

// New creates an empty Binder.
func New() *Binder {
	return &Binder{entries: keylist.New[string, *Entry]()}
}

// Register registers a new shader input and returns its
// index.
func (b *Binder) Register(name string, freq Frequency, fn Producer) (int, error) {
	if fn == nil {
		panic(prefix + "nil Producer")
	}
	idx := b.entries.Len()
	e := &Entry{Index: idx, Name: name, Frequency: freq, Producer: fn}
	if err := b.entries.Add(name, e); err != nil {
		return -1, fmt.Errorf("%w: %q", ErrDuplicate, name)
	}
	return idx, nil
}

// RegisterLoadOnce registers a shader input with frequency
// Once that is materialized for every sub-geometry as soon
// as the geometry is created.
func (b *Binder) RegisterLoadOnce(name string, fn Producer) (int, error) {
	idx, err := b.Register(name, Once, fn)
	if err != nil {
		return -1, err
	}
	b.loadOnce = append(b.loadOnce, idx)
	return idx, nil
}

// Lookup returns the index of the named shader input.
// It returns an error wrapping ErrUnbound if no such
// input was registered.
func (b *Binder) Lookup(name string) (int, error) {
	idx := b.entries.IndexByKey(name)
	if idx < 0 {
		return -1, fmt.Errorf("%w: %q", ErrUnbound, name)
	}
	return idx, nil
}

// Exists returns whether name was registered.
func (b *Binder) Exists(name string) bool { return b.entries.IndexByKey(name) >= 0 }

// ByIndex returns the entry at index idx.
// It panics if idx is out of range.
func (b *Binder) ByIndex(idx int) *Entry { return b.entries.Values[idx] }

// ByName returns the named entry.
func (b *Binder) ByName(name string) (*Entry, error) {
	idx, err := b.Lookup(name)
	if err != nil {
		return nil, err
	}
	return b.entries.Values[idx], nil
}

// Len returns the number of registered entries.
func (b *Binder) Len() int { return b.entries.Len() }

// LoadOnce returns the indices of the entries registered
// with RegisterLoadOnce, in registration order.
// The slice must not be modified.
func (b *Binder) LoadOnce() []int { return b.loadOnce }

// Names returns the registered names in index order.
func (b *Binder) Names() []string { return append([]string(nil), b.entries.Keys...) }
