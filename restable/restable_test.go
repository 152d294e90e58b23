// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package restable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gviegas/framegraph/asset"
	"github.com/gviegas/framegraph/binder"
	"github.com/gviegas/framegraph/component"
	"github.com/gviegas/framegraph/driver"
	"github.com/gviegas/framegraph/driver/nulldrv"
	"github.com/gviegas/framegraph/ecs"
	"github.com/gviegas/framegraph/resource"
)

func uniform(*binder.Input) (*resource.Content, error) {
	return &resource.Content{Type: driver.TUniform, Stages: driver.SFragment, Data: make([]byte, 16)}, nil
}

func newTable(t *testing.T, b *binder.Binder, frames int) (*Table, *nulldrv.GPU) {
	t.Helper()
	gpu := nulldrv.New(frames)
	tab, err := New(gpu, b, frames)
	require.NoError(t, err)
	t.Cleanup(tab.Destroy)
	return tab, gpu
}

func twoPartMesh() *asset.MeshGeometry {
	return &asset.MeshGeometry{
		Name: "m",
		SubMeshes: []asset.SubMeshGeometry{
			asset.Quad().SubMeshes[0],
			asset.OverSizedTriangle().SubMeshes[0],
		},
	}
}

func meshEntity(name string, mesh *asset.MeshGeometry) *ecs.Entity {
	e := ecs.NewEntity(name)
	ecs.Add(e, &component.Mesh{Geometry: mesh})
	return e
}

func TestNew(t *testing.T) {
	_, err := New(nulldrv.New(1), binder.New(), 0)
	assert.Error(t, err)

	tab, _ := newTable(t, binder.New(), 2)
	assert.Equal(t, 2, tab.FrameCount())
	assert.Empty(t, tab.GeometryList(Model))
	for _, k := range [...]GeometryKind{Quad, Cube, OverSizedTriangle} {
		l := tab.GeometryList(k)
		require.Len(t, l, 1, k.String())
		assert.Equal(t, 1, l[0].Count)
		vertex, _ := tab.GeometryBuffers(l[0].First)
		assert.True(t, vertex.Allocated())
	}
	assert.Equal(t, 3, tab.Stats().Geometries)
}

func TestPerFrameCaching(t *testing.T) {
	b := binder.New()
	idx, err := b.Register("Time", binder.EachFrame, uniform)
	require.NoError(t, err)
	tab, gpu := newTable(t, b, 3)
	tab.Track(idx, binder.EachFrame)
	tab.Track(idx, binder.EachFrame)
	assert.Equal(t, []int{idx}, tab.Tracked(binder.EachFrame))

	_, err = tab.Resource(idx, 0)
	assert.ErrorIs(t, err, ErrNotAllocated)

	require.NoError(t, tab.AllocateAllPerFrame(0))
	require.NoError(t, tab.AllocateAllPerFrame(0))
	rs := gpu.ResourcesNamed("Time")
	require.Len(t, rs, 1)
	if rs[0].Allocs != 1 || rs[0].Updates != 1 {
		t.Fatalf("AllocateAllPerFrame: allocs/updates\nhave %d/%d\nwant 1/1", rs[0].Allocs, rs[0].Updates)
	}
	tab.ResetFrame(0)
	require.NoError(t, tab.AllocateAllPerFrame(0))
	assert.Equal(t, 1, rs[0].Allocs)
	assert.Equal(t, 2, rs[0].Updates)

	// Other slots have their own resources.
	_, err = tab.Resource(idx, 1)
	assert.ErrorIs(t, err, ErrNotAllocated)
	require.NoError(t, tab.AllocateAllPerFrame(1))
	rs = gpu.ResourcesNamed("Time")
	require.Len(t, rs, 2)
	assert.Equal(t, 1, rs[1].Allocs)
	assert.Equal(t, 0, rs[1].Updates)

	r0, err := tab.Resource(idx, 0)
	require.NoError(t, err)
	r1, err := tab.Resource(idx, 1)
	require.NoError(t, err)
	assert.NotSame(t, r0, r1)
}

func TestPushConstant(t *testing.T) {
	b := binder.New()
	idx, _ := b.Register("Push", binder.EachFrame, func(*binder.Input) (*resource.Content, error) {
		return &resource.Content{Type: driver.TPushConstant, Data: []byte{1, 2}}, nil
	})
	tab, gpu := newTable(t, b, 1)
	n := len(gpu.Resources())
	require.NoError(t, tab.AllocateResource(idx, resource.ID("Push"), 0, &resource.Content{Type: driver.TPushConstant, Data: []byte{1}}))
	r, err := tab.Resource(idx, 0)
	require.NoError(t, err)
	assert.True(t, r.Allocated())
	assert.Nil(t, r.Backend())
	assert.Len(t, gpu.Resources(), n)
}

func TestLoadOnce(t *testing.T) {
	b := binder.New()
	idx, err := b.RegisterLoadOnce("Height", uniform)
	require.NoError(t, err)
	tab, gpu := newTable(t, b, 2)
	tab.Track(idx, binder.Once)

	e := meshEntity("e", twoPartMesh())
	require.NoError(t, tab.AddEntity(e))
	require.NoError(t, tab.AddEntity(e))
	d, ok := tab.Drawable(e)
	require.True(t, ok)
	for range 5 {
		for g := range d.Geometries() {
			require.NoError(t, tab.AllocateAllPerGeometry(g))
		}
	}
	for i, name := range [...]string{"m.Height0", "m.Height1"} {
		rs := gpu.ResourcesNamed(name)
		require.Len(t, rs, 1, name)
		if rs[0].Allocs != 1 || rs[0].Updates != 0 {
			t.Fatalf("load-once resource %d: allocs/updates\nhave %d/%d\nwant 1/0", i, rs[0].Allocs, rs[0].Updates)
		}
	}
	r, err := tab.GeometryResource(idx, d.First+1)
	require.NoError(t, err)
	assert.Equal(t, resource.Identifier{Name: "m.Height", Deviation: 1}, r.ID)
}

func TestPerGeometry(t *testing.T) {
	b := binder.New()
	idx, _ := b.Register("Mat", binder.EachGeometry, uniform)
	tab, gpu := newTable(t, b, 2)
	tab.Track(idx, binder.EachGeometry)
	e := meshEntity("e", asset.Quad())
	require.NoError(t, tab.AddEntity(e))
	d, _ := tab.Drawable(e)

	_, err := tab.GeometryResource(idx, d.First)
	assert.ErrorIs(t, err, ErrNotAllocated)
	require.NoError(t, tab.AllocateAllPerGeometry(d.First))
	require.NoError(t, tab.AllocateAllPerGeometry(d.First))
	rs := gpu.ResourcesNamed("quad.Mat0")
	require.Len(t, rs, 1)
	assert.Equal(t, 1, rs[0].Allocs)
	assert.Equal(t, 0, rs[0].Updates)

	// A geometry change rebuilds everything.
	require.NoError(t, tab.UpdateEntity(e))
	assert.Equal(t, 1, rs[0].Deallocs)
	d, _ = tab.Drawable(e)
	_, err = tab.GeometryResource(idx, d.First)
	assert.ErrorIs(t, err, ErrNotAllocated)
}

func TestRemoveEntity(t *testing.T) {
	b := binder.New()
	hm, _ := b.RegisterLoadOnce("Height", uniform)
	ent, _ := b.Register("Bones", binder.EachEntity, uniform)
	tab, gpu := newTable(t, b, 2)
	tab.Track(hm, binder.Once)
	tab.Track(ent, binder.EachEntity)
	before := len(gpu.Resources())

	e := meshEntity("e", twoPartMesh())
	require.NoError(t, tab.AddEntity(e))
	assert.Len(t, tab.GeometryList(Model), 1)
	require.NoError(t, tab.AllocateAllPerEntity(0, e))
	require.NoError(t, tab.AllocateAllPerEntity(1, e))
	created := gpu.Resources()[before:]
	// Two vertex buffers, one index buffer (the triangle is
	// not indexed), two load-once resources and one
	// per-entity resource per slot.
	require.Len(t, created, 7)

	tab.RemoveEntity(e)
	tab.RemoveEntity(e)
	for _, r := range created {
		if r.Deallocs != 1 {
			t.Fatalf("RemoveEntity: %s deallocations\nhave %d\nwant 1", r.Name, r.Deallocs)
		}
		assert.True(t, r.Destroyed, r.Name)
	}
	assert.Empty(t, tab.GeometryList(Model))
	_, ok := tab.Drawable(e)
	assert.False(t, ok)
	s := tab.Stats()
	assert.Equal(t, 3, s.Geometries)
	assert.Equal(t, 0, s.PerEntity)

	// Never added.
	tab.RemoveEntity(ecs.NewEntity("x"))
}

func TestAddEntityTree(t *testing.T) {
	tab, _ := newTable(t, binder.New(), 1)
	root := ecs.NewEntity("root")
	a := meshEntity("a", asset.Quad())
	sky := meshEntity("sky", asset.Cube())
	ecs.Add(sky, &component.Skybox{})
	c := meshEntity("c", asset.Cube())
	root.AddChild(a)
	root.AddChild(sky)
	a.AddChild(c)
	require.NoError(t, tab.AddEntity(root))
	l := tab.GeometryList(Model)
	require.Len(t, l, 2)
	assert.Same(t, a, l[0].Entity)
	assert.Same(t, c, l[1].Entity)

	bad := meshEntity("bad", &asset.MeshGeometry{Name: "empty"})
	assert.Error(t, tab.AddEntity(bad))
	_, ok := tab.Drawable(bad)
	assert.False(t, ok)

	tab.RemoveEntity(root)
	assert.Empty(t, tab.GeometryList(Model))

	// A failing descendant undoes the whole call.
	tab, gpu := newTable(t, binder.New(), 1)
	parent := meshEntity("parent", twoPartMesh())
	parent.AddChild(meshEntity("bad", &asset.MeshGeometry{Name: "empty"}))
	assert.Error(t, tab.AddEntity(parent))
	_, ok = tab.Drawable(parent)
	assert.False(t, ok)
	assert.Empty(t, tab.GeometryList(Model))
	rs := gpu.ResourcesNamed("m.vertex0")
	require.Len(t, rs, 1)
	assert.True(t, rs[0].Destroyed)

	ecs.Remove[*component.Mesh](parent.Children()[0])
	require.NoError(t, tab.AddEntity(parent))
	assert.Len(t, tab.GeometryList(Model), 1)
}

func TestPerEntity(t *testing.T) {
	b := binder.New()
	idx, _ := b.Register("Model", binder.EachEntity, uniform)
	none, _ := b.Register("None", binder.EachEntity, func(*binder.Input) (*resource.Content, error) { return nil, nil })
	tab, gpu := newTable(t, b, 2)
	e := meshEntity("e", asset.Quad())
	require.NoError(t, tab.AddEntity(e))

	_, err := tab.EntityResource(idx, 0, e)
	assert.ErrorIs(t, err, ErrNotAllocated)
	for range 3 {
		require.NoError(t, tab.AllocatePerEntity(0, e, []int{idx, none}))
	}
	rs := gpu.ResourcesNamed("e.Model")
	require.Len(t, rs, 1)
	assert.Equal(t, 1, rs[0].Allocs)
	assert.Equal(t, 0, rs[0].Updates)
	tab.ResetFrame(0)
	require.NoError(t, tab.AllocatePerEntity(0, e, []int{idx}))
	assert.Equal(t, 1, rs[0].Updates)

	r, err := tab.EntityResource(none, 0, e)
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestTextureCache(t *testing.T) {
	b := binder.NewDefault()
	idx, _ := b.Lookup(binder.AlbedoTexture)
	tab, gpu := newTable(t, b, 1)
	tab.Track(idx, binder.EachGeometry)

	tex := &asset.Texture{Name: "brick", Width: 1, Height: 1, Format: driver.RGBA8un, Layers: 1, Data: make([]byte, 4)}
	var es []*ecs.Entity
	for _, name := range []string{"a", "b"} {
		e := meshEntity(name, asset.Quad())
		ecs.Add(e, &component.Material{Materials: []component.MaterialData{{Albedo: tex}}})
		require.NoError(t, tab.AddEntity(e))
		d, _ := tab.Drawable(e)
		require.NoError(t, tab.AllocateAllPerGeometry(d.First))
		es = append(es, e)
	}
	rs := gpu.ResourcesNamed(binder.TextureKey(tex))
	require.Len(t, rs, 1)
	assert.Equal(t, 1, tab.Stats().Textures)

	// Same name, different image.
	other := &asset.Texture{Name: "brick", Width: 1, Height: 1, Format: driver.RGBA8un, Layers: 1, Data: []byte{255, 0, 0, 255}}
	c := meshEntity("c", asset.Quad())
	ecs.Add(c, &component.Material{Materials: []component.MaterialData{{Albedo: other}}})
	require.NoError(t, tab.AddEntity(c))
	d, _ := tab.Drawable(c)
	require.NoError(t, tab.AllocateAllPerGeometry(d.First))
	assert.Equal(t, 2, tab.Stats().Textures)
	rs2 := gpu.ResourcesNamed(binder.TextureKey(other))
	require.Len(t, rs2, 1)
	assert.Equal(t, other.Data, rs2[0].Data)
	tab.RemoveEntity(c)
	assert.True(t, rs2[0].Destroyed)

	tab.RemoveEntity(es[0])
	assert.False(t, rs[0].Destroyed)
	tab.RemoveEntity(es[1])
	assert.True(t, rs[0].Destroyed)
	assert.Equal(t, 1, rs[0].Deallocs)
	assert.Equal(t, 0, tab.Stats().Textures)
}
