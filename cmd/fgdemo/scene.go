// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package main

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gviegas/framegraph/asset"
	"github.com/gviegas/framegraph/component"
	"github.com/gviegas/framegraph/driver"
	"github.com/gviegas/framegraph/ecs"
)

// demoScene returns the root entities of a scene with a
// camera, lights, a sky and a few models exercising every
// built-in binder.
func demoScene() []*ecs.Entity {
	cam := ecs.NewEntity("camera")
	ecs.Add(cam, &component.Camera{
		Active:   true,
		Position: mgl32.Vec3{0, 3, 8},
		FovY:     mgl32.DegToRad(60),
		Aspect:   16.0 / 9.0,
		Near:     0.1,
		Far:      200,
	})

	sun := ecs.NewEntity("sun")
	ecs.Add(sun, &component.DirectionalLight{
		Direction: mgl32.Vec3{-0.3, -1, -0.2},
		Color:     mgl32.Vec3{1, 0.95, 0.9},
		Intensity: 4,
		Shadow:    true,
	})
	lamp := ecs.NewEntity("lamp")
	ecs.Add(lamp, &component.PointLight{
		Position:  mgl32.Vec3{2, 1, 0},
		Color:     mgl32.Vec3{1, 0.5, 0.2},
		Intensity: 20,
		Range:     10,
	})

	sky := ecs.NewEntity("sky")
	ecs.Add(sky, &component.Skybox{CubeMap: solid("sky", 6, [4]byte{90, 140, 220, 255})})

	ground := model("ground", asset.Quad(), mgl32.Scale3D(20, 1, 20).Mul4(mgl32.HomogRotate3DX(mgl32.DegToRad(-90))))
	ecs.Add(ground, &component.Material{Materials: []component.MaterialData{{
		BaseColor: mgl32.Vec4{1, 1, 1, 1},
		Roughness: 0.9,
		Albedo:    solid("grass", 1, [4]byte{60, 140, 50, 255}),
	}}})
	ecs.Add(ground, &component.HeightMap{Texture: solid("ground.height", 1, [4]byte{128, 128, 128, 255}), Scale: 0.5})

	crate := model("crate", asset.Cube(), mgl32.Translate3D(-2, 0.5, 0))
	ecs.Add(crate, &component.Outlined{Color: mgl32.Vec4{1, 0.8, 0, 1}, Width: 0.03})
	crates := model("crates", asset.Cube(), mgl32.Translate3D(3, 0.5, -3))
	ecs.Add(crates, &component.Instanced{Transforms: []mgl32.Mat4{
		mgl32.Translate3D(1.5, 0, 0),
		mgl32.Translate3D(0, 0, 1.5),
	}})
	crate.AddChild(crates)

	walker := model("walker", asset.Cube(), mgl32.Translate3D(0, 1, 2))
	bones := make([]mgl32.Mat4, 8)
	for i := range bones {
		bones[i] = mgl32.Ident4()
	}
	ecs.Add(walker, &component.AnimState{Bones: bones})
	ecs.Add(walker, &component.Outlined{Color: mgl32.Vec4{0, 1, 1, 1}, Width: 0.03})

	return []*ecs.Entity{cam, sun, lamp, sky, ground, crate, walker}
}

func model(name string, mesh *asset.MeshGeometry, world mgl32.Mat4) *ecs.Entity {
	e := ecs.NewEntity(name)
	ecs.Add(e, &component.Mesh{Geometry: mesh})
	ecs.Add(e, &component.Transform{World: world})
	return e
}

func solid(name string, layers int, c [4]byte) *asset.Texture {
	data := make([]byte, 0, 4*layers)
	for range layers {
		data = append(data, c[:]...)
	}
	return &asset.Texture{Name: name, Width: 1, Height: 1, Format: driver.RGBA8un, Layers: layers, Data: data}
}
