// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Package component defines the components that the
// built-in resource binders and pipeline selectors read.
// Components are stored in entities by pointer, e.g.
//
//	ecs.Add(e, &component.Transform{World: mgl32.Ident4()})
//	t, ok := ecs.Get[*component.Transform](e)
package component

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gviegas/framegraph/asset"
)

// Transform is the world transform of an entity.
type Transform struct {
	World mgl32.Mat4
}

// Mesh attaches geometry to an entity.
type Mesh struct {
	Geometry *asset.MeshGeometry
}

// MaterialData describes the surface of one sub-mesh.
type MaterialData struct {
	BaseColor mgl32.Vec4
	Emissive  mgl32.Vec3
	Metallic  float32
	Roughness float32
	Albedo    *asset.Texture
}

// Material holds the materials of an entity.
// SubMeshGeometry.Material indexes into Materials.
type Material struct {
	Materials []MaterialData
}

// For returns the material of the i-th material slot,
// or a default material if i is out of range.
func (m *Material) For(i int) *MaterialData {
	if i >= 0 && i < len(m.Materials) {
		return &m.Materials[i]
	}
	return &defaultMaterial
}

var defaultMaterial = MaterialData{
	BaseColor: mgl32.Vec4{1, 1, 1, 1},
	Roughness: 1,
}

// Camera is a perspective camera.
// Only the first active camera of a scene is used.
type Camera struct {
	Active   bool
	Position mgl32.Vec3
	Target   mgl32.Vec3
	Up       mgl32.Vec3
	FovY     float32
	Aspect   float32
	Near     float32
	Far      float32
}

// View returns the view matrix of c.
func (c *Camera) View() mgl32.Mat4 {
	up := c.Up
	if up.Len() == 0 {
		up = mgl32.Vec3{0, 1, 0}
	}
	return mgl32.LookAtV(c.Position, c.Target, up)
}

// Projection returns the projection matrix of c.
func (c *Camera) Projection() mgl32.Mat4 {
	return mgl32.Perspective(c.FovY, c.Aspect, c.Near, c.Far)
}

// DirectionalLight is a light infinitely far away,
// emitted in the given Direction.
type DirectionalLight struct {
	Direction mgl32.Vec3
	Color     mgl32.Vec3
	Intensity float32
	// Whether the light casts shadows.
	Shadow bool
}

// PointLight is an omnidirectional light emitted from
// Position. Range of zero or less means infinite range.
type PointLight struct {
	Position  mgl32.Vec3
	Color     mgl32.Vec3
	Intensity float32
	Range     float32
}

// Skybox marks an entity as the sky. Its geometry is not
// uploaded; the sky pass draws the built-in cube instead.
type Skybox struct {
	CubeMap *asset.Texture
}

// AnimState holds the joint matrices of a skinned entity,
// as sampled by the animation system this frame.
type AnimState struct {
	Bones []mgl32.Mat4
}

// Outlined marks an entity to be drawn with an outline.
type Outlined struct {
	Color mgl32.Vec4
	Width float32
}

// Instanced draws an entity once more for each transform.
type Instanced struct {
	Transforms []mgl32.Mat4
}

// HeightMap attaches a height map texture to every
// sub-mesh of an entity.
type HeightMap struct {
	Texture *asset.Texture
	Scale   float32
}
