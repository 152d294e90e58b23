// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package binder

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"honnef.co/go/safeish"

	"github.com/gviegas/framegraph/asset"
	"github.com/gviegas/framegraph/component"
	"github.com/gviegas/framegraph/driver"
	"github.com/gviegas/framegraph/ecs"
	"github.com/gviegas/framegraph/resource"
)

// Names of the built-in shader inputs.
const (
	Camera              = "Camera"
	LightingEnvironment = "LightingEnvironment"
	Skybox              = "Skybox"
	Model               = "Model"
	BoneTransforms      = "BoneTransforms"
	InstanceTransforms  = "InstanceTransforms"
	Outline             = "Outline"
	Material            = "Material"
	AlbedoTexture       = "AlbedoTexture"
	HeightMap           = "HeightMap"
)

// NewDefault creates a Binder with the built-in shader
// inputs registered.
func NewDefault() *Binder {
	b := New()
	for _, x := range [...]struct {
		name string
		freq Frequency
		fn   Producer
	}{
		{Camera, EachFrame, produceCamera},
		{LightingEnvironment, EachFrame, produceLighting},
		{Skybox, EachFrame, produceSkybox},
		{Model, EachEntity, produceModel},
		{BoneTransforms, EachEntity, produceBones},
		{InstanceTransforms, EachEntity, produceInstances},
		{Outline, EachEntity, produceOutline},
		{Material, EachGeometry, produceMaterial},
		{AlbedoTexture, EachGeometry, produceAlbedo},
	} {
		if _, err := b.Register(x.name, x.freq, x.fn); err != nil {
			panic(err)
		}
	}
	if _, err := b.RegisterLoadOnce(HeightMap, produceHeightMap); err != nil {
		panic(err)
	}
	return b
}

func bytesOf[T any](x T) []byte { return safeish.SliceCast[[]byte]([]T{x}) }

func produceCamera(in *Input) (*resource.Content, error) {
	blk, err := FormatCamera(in.Table)
	if err != nil {
		return nil, err
	}
	return &resource.Content{
		Type:   driver.TUniform,
		Stages: driver.SVertex | driver.SFragment,
		Data:   blk.Bytes(),
	}, nil
}

func produceLighting(in *Input) (*resource.Content, error) {
	env, err := FormatLightingEnvironment(in.Table)
	if err != nil {
		return nil, err
	}
	return &resource.Content{
		Type:   driver.TUniform,
		Stages: driver.SFragment,
		Data:   env.Bytes(),
	}, nil
}

func produceSkybox(in *Input) (*resource.Content, error) {
	sky := ecs.Query[*component.Skybox](in.Table)
	if len(sky) == 0 || sky[0].CubeMap == nil {
		return nil, nil
	}
	return textureContent(sky[0].CubeMap, driver.TCubeMap), nil
}

// TextureKey returns the key under which the image of t is
// shared. Distinct textures have distinct keys even when
// their names match.
func TextureKey(t *asset.Texture) string { return fmt.Sprintf("%s@%p", t.Name, t) }

func textureContent(t *asset.Texture, typ driver.ResourceType) *resource.Content {
	return &resource.Content{
		Type:     typ,
		Stages:   driver.SFragment,
		Data:     t.Data,
		Image:    t.Desc(),
		CacheKey: TextureKey(t),
	}
}

func produceModel(in *Input) (*resource.Content, error) {
	world := mgl32.Ident4()
	if t, ok := ecs.Get[*component.Transform](in.Entity); ok {
		world = t.World
	}
	return &resource.Content{
		Type:   driver.TPushConstant,
		Stages: driver.SVertex,
		Data:   bytesOf(world),
	}, nil
}

func produceBones(in *Input) (*resource.Content, error) {
	anim, ok := ecs.Get[*component.AnimState](in.Entity)
	if !ok || len(anim.Bones) == 0 {
		return nil, nil
	}
	return &resource.Content{
		Type:   driver.TUniform,
		Stages: driver.SVertex,
		Data:   safeish.SliceCast[[]byte](anim.Bones),
	}, nil
}

func produceInstances(in *Input) (*resource.Content, error) {
	inst, ok := ecs.Get[*component.Instanced](in.Entity)
	if !ok || len(inst.Transforms) == 0 {
		return nil, nil
	}
	return &resource.Content{
		Type:   driver.TUniform,
		Stages: driver.SVertex,
		Data:   safeish.SliceCast[[]byte](inst.Transforms),
	}, nil
}

type outlineBlock struct {
	color mgl32.Vec4
	width float32
	_     [3]float32
}

func produceOutline(in *Input) (*resource.Content, error) {
	o, ok := ecs.Get[*component.Outlined](in.Entity)
	if !ok {
		return nil, nil
	}
	return &resource.Content{
		Type:   driver.TPushConstant,
		Stages: driver.SVertex | driver.SFragment,
		Data:   bytesOf(outlineBlock{color: o.Color, width: o.Width}),
	}, nil
}

type materialBlock struct {
	baseColor mgl32.Vec4
	emissive  mgl32.Vec3
	metallic  float32
	roughness float32
	_         [3]float32
}

func materialOf(g *Geometry) *component.MaterialData {
	var m component.Material
	if x, ok := ecs.Get[*component.Material](g.Entity); ok {
		m = *x
	}
	return m.For(g.SubMesh().Material)
}

func produceMaterial(in *Input) (*resource.Content, error) {
	m := materialOf(in.Geometry)
	return &resource.Content{
		Type:   driver.TUniform,
		Stages: driver.SFragment,
		Data: bytesOf(materialBlock{
			baseColor: m.BaseColor,
			emissive:  m.Emissive,
			metallic:  m.Metallic,
			roughness: m.Roughness,
		}),
	}, nil
}

// White is the texture bound as AlbedoTexture to geometry
// whose material has no albedo texture.
var White = &asset.Texture{
	Name:   "builtin.white",
	Width:  1,
	Height: 1,
	Format: driver.RGBA8un,
	Layers: 1,
	Data:   []byte{255, 255, 255, 255},
}

func produceAlbedo(in *Input) (*resource.Content, error) {
	tex := materialOf(in.Geometry).Albedo
	if tex == nil {
		tex = White
	}
	return textureContent(tex, driver.TSampler2D), nil
}

func produceHeightMap(in *Input) (*resource.Content, error) {
	hm, ok := ecs.Get[*component.HeightMap](in.Geometry.Entity)
	if !ok || hm.Texture == nil {
		return nil, nil
	}
	return textureContent(hm.Texture, driver.TSampler2D), nil
}
