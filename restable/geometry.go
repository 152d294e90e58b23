// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package restable

import (
	"fmt"
	"iter"

	"golang.org/x/exp/slices"

	"github.com/gviegas/framegraph/asset"
	"github.com/gviegas/framegraph/binder"
	"github.com/gviegas/framegraph/component"
	"github.com/gviegas/framegraph/driver"
	"github.com/gviegas/framegraph/ecs"
	"github.com/gviegas/framegraph/resource"
)

// GeometryKind selects the set of drawables a pass
// iterates.
type GeometryKind int

// Geometry kinds.
const (
	// Every entity of the scene that has a mesh.
	Model GeometryKind = iota
	// The built-in quad.
	Quad
	// The built-in cube.
	Cube
	// The built-in triangle that covers the whole screen.
	OverSizedTriangle
)

// String implements fmt.Stringer.
func (k GeometryKind) String() string {
	switch k {
	case Model:
		return "Model"
	case Quad:
		return "Quad"
	case Cube:
		return "Cube"
	case OverSizedTriangle:
		return "OverSizedTriangle"
	}
	return fmt.Sprintf("GeometryKind(%d)", int(k))
}

// Drawable is an entity together with the range of
// geometry indices of its sub-meshes.
type Drawable struct {
	Entity *ecs.Entity
	First  int
	Count  int
}

// Geometries returns an iterator over the geometry indices
// of d.
func (d *Drawable) Geometries() iter.Seq[int] {
	return func(yield func(int) bool) {
		for g := d.First; g < d.First+d.Count; g++ {
			if !yield(g) {
				return
			}
		}
	}
}

type geometry struct {
	bin    binder.Geometry
	vertex *resource.ShaderResource
	index  *resource.ShaderResource
	// Per-geometry and load-once resources, by binder index.
	res map[int]*binding
}

func (t *Table) geometry(g int) *geometry {
	if g < 0 || g >= len(t.geoms) || t.geoms[g] == nil {
		panic(fmt.Sprintf(prefix+"invalid geometry index %d", g))
	}
	return t.geoms[g]
}

// SubMesh returns the sub-mesh of geometry g.
func (t *Table) SubMesh(g int) *asset.SubMeshGeometry { return t.geometry(g).bin.SubMesh() }

// GeometryBuffers returns the vertex and index buffers of
// geometry g. index is nil for non-indexed geometry.
func (t *Table) GeometryBuffers(g int) (vertex, index *resource.ShaderResource) {
	geo := t.geometry(g)
	return geo.vertex, geo.index
}

// GeometryList returns the drawables that a pass with the
// given geometry kind iterates.
// The slice must not be modified.
func (t *Table) GeometryList(kind GeometryKind) []*Drawable {
	if kind == Model {
		return t.models
	}
	return t.builtins[kind : kind+1]
}

// Drawable returns the drawable of e, if e has been added.
func (t *Table) Drawable(e *ecs.Entity) (*Drawable, bool) {
	d, ok := t.entities[e.UID()]
	return d, ok
}

func (t *Table) initBuiltins() error {
	for _, x := range [...]struct {
		kind GeometryKind
		mesh *asset.MeshGeometry
	}{
		{Quad, asset.Quad()},
		{Cube, asset.Cube()},
		{OverSizedTriangle, asset.OverSizedTriangle()},
	} {
		e := ecs.NewEntity("builtin." + x.mesh.Name)
		ecs.Add(e, &component.Mesh{Geometry: x.mesh})
		d, err := t.addMesh(e, x.mesh)
		if err != nil {
			return err
		}
		t.builtins[x.kind] = d
	}
	return nil
}

// AddEntity uploads the geometry of e and of its
// descendants. Entities without a mesh, skyboxes and
// entities that were already added are skipped.
// Vertex and index data are uploaded once, and every
// load-once binder is materialized for each sub-mesh.
// If any entity fails, the ones added by this call are
// removed again.
func (t *Table) AddEntity(e *ecs.Entity) error {
	var (
		err   error
		added []*Drawable
	)
	e.Walk(func(x *ecs.Entity) bool {
		if _, ok := t.entities[x.UID()]; ok {
			return true
		}
		m, ok := ecs.Get[*component.Mesh](x)
		if !ok || m.Geometry == nil || ecs.Has[*component.Skybox](x) {
			return true
		}
		var d *Drawable
		if d, err = t.addMesh(x, m.Geometry); err != nil {
			return false
		}
		added = append(added, d)
		return true
	})
	if err != nil {
		for _, d := range added {
			t.removeDrawable(d)
		}
		return err
	}
	t.models = append(t.models, added...)
	return nil
}

func (t *Table) addMesh(e *ecs.Entity, mesh *asset.MeshGeometry) (*Drawable, error) {
	if err := mesh.Validate(); err != nil {
		return nil, fmt.Errorf(prefix+"%v: %w", e, err)
	}
	n := mesh.Len()
	d := &Drawable{Entity: e, First: t.geomMap.Alloc(n), Count: n}
	if len(t.geoms) < t.geomMap.Len() {
		t.geoms = append(t.geoms, make([]*geometry, t.geomMap.Len()-len(t.geoms))...)
	}
	t.entities[e.UID()] = d
	for g := range d.Geometries() {
		geo := &geometry{
			bin: binder.Geometry{Entity: e, Mesh: mesh, Index: g - d.First},
			res: make(map[int]*binding),
		}
		t.geoms[g] = geo
		if err := t.upload(geo); err != nil {
			t.removeDrawable(d)
			return nil, err
		}
	}
	logger().Debug("entity added", "entity", e, "geometries", n)
	return d, nil
}

func (t *Table) upload(geo *geometry) error {
	sub := geo.bin.SubMesh()
	name := geo.bin.Mesh.Name
	vertex, err := t.uploadBuffer(resource.Identifier{Name: name + ".vertex", Deviation: geo.bin.Index}, driver.TVertexData, sub.VertexBytes())
	if err != nil {
		return err
	}
	geo.vertex = vertex
	if sub.IndexCount() > 0 {
		index, err := t.uploadBuffer(resource.Identifier{Name: name + ".index", Deviation: geo.bin.Index}, driver.TIndexData, sub.IndexBytes())
		if err != nil {
			return err
		}
		geo.index = index
	}
	for _, idx := range t.binder.LoadOnce() {
		if err := t.produceGeometry(geo, idx); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) uploadBuffer(id resource.Identifier, typ driver.ResourceType, data []byte) (*resource.ShaderResource, error) {
	c := &resource.Content{Type: typ, Stages: driver.SVertex, Data: data}
	res, err := resource.New(t.gpu, id, c, driver.LoadOnce, driver.DeviceMemory|driver.Stored)
	if err != nil {
		return nil, err
	}
	if err := res.Allocate(data); err != nil {
		res.Destroy()
		return nil, fmt.Errorf(prefix+"upload %s: %w", id, err)
	}
	t.stats.Allocs++
	return res, nil
}

// RemoveEntity frees every resource tied to the geometry
// of e and of its descendants, as well as their per-entity
// resources. Entities that were never added are ignored.
func (t *Table) RemoveEntity(e *ecs.Entity) {
	e.Walk(func(x *ecs.Entity) bool {
		t.releaseEntity(x.UID())
		if d, ok := t.entities[x.UID()]; ok {
			t.removeDrawable(d)
			t.models = slices.DeleteFunc(t.models, func(y *Drawable) bool { return y == d })
			logger().Debug("entity removed", "entity", x)
		}
		return true
	})
}

// UpdateEntity removes and then adds e again.
func (t *Table) UpdateEntity(e *ecs.Entity) error {
	t.RemoveEntity(e)
	return t.AddEntity(e)
}

func (t *Table) removeDrawable(d *Drawable) {
	for g := range d.Geometries() {
		geo := t.geoms[g]
		if geo == nil {
			continue
		}
		for _, res := range [...]*resource.ShaderResource{geo.vertex, geo.index} {
			if res != nil {
				res.Destroy()
				t.stats.Deallocs++
			}
		}
		for _, b := range geo.res {
			t.release(b)
		}
		t.geoms[g] = nil
	}
	t.geomMap.Free(d.First, d.Count)
	delete(t.entities, d.Entity.UID())
}
