// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package binder

import (
	"errors"
	"log/slog"

	"github.com/go-gl/mathgl/mgl32"
	"honnef.co/go/safeish"

	"github.com/gviegas/framegraph/component"
	"github.com/gviegas/framegraph/ecs"
)

// ErrNoCamera means that the scene has no active camera.
var ErrNoCamera = errors.New(prefix + "no active camera")

// ActiveCamera returns the first active camera of tab, in
// table order.
func ActiveCamera(tab *ecs.Table) (*component.Camera, error) {
	for _, c := range ecs.Query[*component.Camera](tab) {
		if c.Active {
			return c, nil
		}
	}
	return nil, ErrNoCamera
}

// CameraBlock is the layout of the Camera input.
type CameraBlock struct {
	View     mgl32.Mat4
	Proj     mgl32.Mat4
	ViewProj mgl32.Mat4
	Eye      mgl32.Vec4
}

// Bytes returns the contents of b as a byte slice.
func (b *CameraBlock) Bytes() []byte {
	return safeish.SliceCast[[]byte]([]CameraBlock{*b})
}

// FormatCamera produces the Camera input from the first
// active camera of tab.
func FormatCamera(tab *ecs.Table) (*CameraBlock, error) {
	c, err := ActiveCamera(tab)
	if err != nil {
		return nil, err
	}
	v, p := c.View(), c.Projection()
	return &CameraBlock{
		View:     v,
		Proj:     p,
		ViewProj: p.Mul4(v),
		Eye:      c.Position.Vec4(1),
	}, nil
}

// Limits of the LightingEnvironment input.
const (
	MaxDirectionalLights = 4
	MaxPointLights       = 16
)

// DirectionalRecord is the layout of a directional light.
// The w component of Direction holds the intensity and
// the w component of Color is 1 if the light casts shadows.
type DirectionalRecord struct {
	Direction mgl32.Vec4
	Color     mgl32.Vec4
}

// PointRecord is the layout of a point light.
// The w component of Position holds the range and the w
// component of Color holds the intensity.
type PointRecord struct {
	Position mgl32.Vec4
	Color    mgl32.Vec4
}

// LightingBlock is the aggregated lighting of a
// scene. Lights appear in component table order.
type LightingBlock struct {
	Eye               mgl32.Vec4
	DirectionalLights []DirectionalRecord
	PointLights       []PointRecord
}

// DirectionalLightCount returns the number of directional
// lights in env.
func (env *LightingBlock) DirectionalLightCount() int { return len(env.DirectionalLights) }

// PointLightCount returns the number of point lights in env.
func (env *LightingBlock) PointLightCount() int { return len(env.PointLights) }

type lightingHeader struct {
	eye        mgl32.Vec4
	dirCount   uint32
	pointCount uint32
	_          [2]uint32
}

// Bytes returns the contents of env as a byte slice.
// The header (eye position and light counts) is followed
// by MaxDirectionalLights directional records and then by
// MaxPointLights point records, so the size is fixed.
func (env *LightingBlock) Bytes() []byte {
	hdr := []lightingHeader{{
		eye:        env.Eye,
		dirCount:   uint32(len(env.DirectionalLights)),
		pointCount: uint32(len(env.PointLights)),
	}}
	var dir [MaxDirectionalLights]DirectionalRecord
	copy(dir[:], env.DirectionalLights)
	var point [MaxPointLights]PointRecord
	copy(point[:], env.PointLights)

	b := append([]byte(nil), safeish.SliceCast[[]byte](hdr)...)
	b = append(b, safeish.SliceCast[[]byte](dir[:])...)
	return append(b, safeish.SliceCast[[]byte](point[:])...)
}

// FormatLightingEnvironment aggregates every light of tab.
// Lights beyond MaxDirectionalLights/MaxPointLights are
// ignored.
func FormatLightingEnvironment(tab *ecs.Table) (*LightingBlock, error) {
	c, err := ActiveCamera(tab)
	if err != nil {
		return nil, err
	}
	env := &LightingBlock{Eye: c.Position.Vec4(1)}
	for _, l := range ecs.Query[*component.DirectionalLight](tab) {
		if len(env.DirectionalLights) == MaxDirectionalLights {
			slog.Debug("too many directional lights", "max", MaxDirectionalLights)
			break
		}
		var shadow float32
		if l.Shadow {
			shadow = 1
		}
		env.DirectionalLights = append(env.DirectionalLights, DirectionalRecord{
			Direction: l.Direction.Normalize().Vec4(l.Intensity),
			Color:     l.Color.Vec4(shadow),
		})
	}
	for _, l := range ecs.Query[*component.PointLight](tab) {
		if len(env.PointLights) == MaxPointLights {
			slog.Debug("too many point lights", "max", MaxPointLights)
			break
		}
		env.PointLights = append(env.PointLights, PointRecord{
			Position: l.Position.Vec4(l.Range),
			Color:    l.Color.Vec4(l.Intensity),
		})
	}
	return env, nil
}
