// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package binder

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gviegas/framegraph/asset"
	"github.com/gviegas/framegraph/component"
	"github.com/gviegas/framegraph/driver"
	"github.com/gviegas/framegraph/ecs"
	"github.com/gviegas/framegraph/resource"
)

func nop(*Input) (*resource.Content, error) { return nil, nil }

func TestRegister(t *testing.T) {
	b := New()
	for i, x := range [...]struct {
		name string
		freq Frequency
	}{
		{"a", EachFrame},
		{"b", EachEntity},
		{"c", EachGeometry},
	} {
		idx, err := b.Register(x.name, x.freq, nop)
		require.NoError(t, err)
		if idx != i {
			t.Fatalf("Binder.Register: index\nhave %d\nwant %d", idx, i)
		}
	}
	idx, err := b.RegisterLoadOnce("d", nop)
	require.NoError(t, err)
	assert.Equal(t, 3, idx)
	assert.Equal(t, []int{3}, b.LoadOnce())
	assert.Equal(t, Once, b.ByIndex(3).Frequency)

	_, err = b.Register("b", EachFrame, nop)
	assert.ErrorIs(t, err, ErrDuplicate)
	_, err = b.RegisterLoadOnce("a", nop)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Equal(t, []int{3}, b.LoadOnce())
	assert.Equal(t, 4, b.Len())

	// Indices are stable.
	idx, err = b.Lookup("b")
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	e, err := b.ByName("c")
	require.NoError(t, err)
	assert.Equal(t, 2, e.Index)
	assert.Equal(t, EachGeometry, e.Frequency)

	assert.True(t, b.Exists("a"))
	assert.False(t, b.Exists("shadowMap"))
	_, err = b.Lookup("shadowMap")
	assert.ErrorIs(t, err, ErrUnbound)
	_, err = b.ByName("shadowMap")
	assert.ErrorIs(t, err, ErrUnbound)
	assert.Equal(t, []string{"a", "b", "c", "d"}, b.Names())
}

func TestDefault(t *testing.T) {
	b := NewDefault()
	for _, x := range [...]struct {
		name string
		freq Frequency
	}{
		{Camera, EachFrame},
		{LightingEnvironment, EachFrame},
		{Skybox, EachFrame},
		{Model, EachEntity},
		{BoneTransforms, EachEntity},
		{InstanceTransforms, EachEntity},
		{Outline, EachEntity},
		{Material, EachGeometry},
		{AlbedoTexture, EachGeometry},
		{HeightMap, Once},
	} {
		e, err := b.ByName(x.name)
		require.NoError(t, err, x.name)
		assert.Equal(t, x.freq, e.Frequency, x.name)
	}
	hm, _ := b.Lookup(HeightMap)
	assert.Equal(t, []int{hm}, b.LoadOnce())
}

func camera() *ecs.Entity {
	e := ecs.NewEntity("camera")
	ecs.Add(e, &component.Camera{
		Active:   true,
		Position: mgl32.Vec3{0, 1, 5},
		FovY:     mgl32.DegToRad(60),
		Aspect:   1,
		Near:     0.1,
		Far:      100,
	})
	return e
}

func TestNoCamera(t *testing.T) {
	tab := ecs.NewTable()
	e := ecs.NewEntity("inactive")
	ecs.Add(e, &component.Camera{})
	tab.Insert(e)
	_, err := FormatCamera(tab)
	assert.ErrorIs(t, err, ErrNoCamera)
	_, err = FormatLightingEnvironment(tab)
	assert.ErrorIs(t, err, ErrNoCamera)

	tab.Insert(camera())
	blk, err := FormatCamera(tab)
	require.NoError(t, err)
	assert.Equal(t, mgl32.Vec4{0, 1, 5, 1}, blk.Eye)
	assert.Len(t, blk.Bytes(), 3*64+16)
}

func TestLightingEnvironment(t *testing.T) {
	tab := ecs.NewTable()
	tab.Insert(camera())
	for i, dir := range []mgl32.Vec3{{0, -1, 0}, {1, 0, 0}} {
		e := ecs.NewEntity("sun")
		ecs.Add(e, &component.DirectionalLight{
			Direction: dir,
			Color:     mgl32.Vec3{1, 1, 1},
			Intensity: float32(i + 1),
		})
		tab.Insert(e)
	}
	p := ecs.NewEntity("lamp")
	ecs.Add(p, &component.PointLight{Position: mgl32.Vec3{1, 2, 3}, Intensity: 5, Range: 10})
	tab.Insert(p)

	env, err := FormatLightingEnvironment(tab)
	require.NoError(t, err)
	if n := env.DirectionalLightCount(); n != 2 {
		t.Fatalf("FormatLightingEnvironment: directional light count\nhave %d\nwant 2", n)
	}
	assert.Equal(t, 1, env.PointLightCount())
	// Table order.
	assert.Equal(t, mgl32.Vec4{0, -1, 0, 1}, env.DirectionalLights[0].Direction)
	assert.Equal(t, mgl32.Vec4{1, 0, 0, 2}, env.DirectionalLights[1].Direction)
	assert.Equal(t, mgl32.Vec4{1, 2, 3, 10}, env.PointLights[0].Position)

	b := env.Bytes()
	assert.Len(t, b, 32+MaxDirectionalLights*32+MaxPointLights*32)
	assert.Equal(t, uint32(2), binary.NativeEndian.Uint32(b[16:]))
	assert.Equal(t, uint32(1), binary.NativeEndian.Uint32(b[20:]))
	// Second directional record's intensity.
	assert.Equal(t, float32(2), math.Float32frombits(binary.NativeEndian.Uint32(b[32+32+12:])))

	// The input named LightingEnvironment uploads a LightingBlock.
	var blk *LightingBlock = env
	ent, err := NewDefault().ByName(LightingEnvironment)
	require.NoError(t, err)
	c, err := ent.Producer(&Input{Table: tab})
	require.NoError(t, err)
	assert.Equal(t, blk.Bytes(), c.Data)
	assert.Equal(t, driver.TUniform, c.Type)
}

func TestProducers(t *testing.T) {
	b := NewDefault()
	tab := ecs.NewTable()
	e := ecs.NewEntity("e")
	mesh := asset.Quad()
	ecs.Add(e, &component.Mesh{Geometry: mesh})
	tab.Insert(e)

	produce := func(name string, in *Input) *resource.Content {
		t.Helper()
		ent, err := b.ByName(name)
		require.NoError(t, err)
		c, err := ent.Producer(in)
		require.NoError(t, err)
		return c
	}
	in := &Input{Table: tab, Entity: e}

	c := produce(Model, in)
	require.NotNil(t, c)
	assert.Equal(t, driver.TPushConstant, c.Type)
	assert.Len(t, c.Data, 64)

	assert.Nil(t, produce(BoneTransforms, in))
	assert.Nil(t, produce(Outline, in))
	assert.Nil(t, produce(InstanceTransforms, in))
	assert.Nil(t, produce(Skybox, in))

	ecs.Add(e, &component.AnimState{Bones: make([]mgl32.Mat4, 3)})
	ecs.Add(e, &component.Outlined{Width: 2})
	c = produce(BoneTransforms, in)
	require.NotNil(t, c)
	assert.Len(t, c.Data, 3*64)
	c = produce(Outline, in)
	require.NotNil(t, c)
	assert.Equal(t, driver.TPushConstant, c.Type)
	assert.Len(t, c.Data, 32)

	g := &Input{Table: tab, Entity: e, Geometry: &Geometry{Entity: e, Mesh: mesh}}
	c = produce(AlbedoTexture, g)
	require.NotNil(t, c)
	assert.Equal(t, TextureKey(White), c.CacheKey)
	assert.Equal(t, driver.TSampler2D, c.Type)
	c = produce(Material, g)
	require.NotNil(t, c)
	assert.Len(t, c.Data, 48)
	assert.Nil(t, produce(HeightMap, g))
}
