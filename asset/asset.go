// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Package asset defines the geometry and texture data that
// the render graph uploads to the GPU.
// The data is opaque to the render graph: it is produced by
// an asset manager and never interpreted beyond its layout.
package asset

import (
	"errors"
	"fmt"

	"honnef.co/go/safeish"

	"github.com/gviegas/framegraph/driver"
)

const prefix = "asset: "

func newErr(reason string) error { return errors.New(prefix + reason) }

// MeshGeometry is a collection of sub-meshes.
// Each sub-mesh defines the data for a draw call.
type MeshGeometry struct {
	Name      string
	SubMeshes []SubMeshGeometry
}

// Len returns the number of sub-meshes in m.
func (m *MeshGeometry) Len() int { return len(m.SubMeshes) }

// Validate checks that every sub-mesh of m is well formed.
func (m *MeshGeometry) Validate() error {
	if len(m.SubMeshes) == 0 {
		return newErr(fmt.Sprintf("mesh %q has no sub-meshes", m.Name))
	}
	for i := range m.SubMeshes {
		if err := m.SubMeshes[i].Validate(); err != nil {
			return fmt.Errorf("%s[%d]: %w", m.Name, i, err)
		}
	}
	return nil
}

// SubMeshGeometry holds raw vertex data.
// Positions, Normals and TexCoords are tightly packed
// (3, 3 and 2 components per vertex, respectively).
// Joints and Weights are only present for skinned meshes
// (4 components per vertex).
// Indices is optional.
type SubMeshGeometry struct {
	Positions []float32
	Normals   []float32
	TexCoords []float32
	Joints    []uint16
	Weights   []float32
	Indices   []uint32
	// Index into the material list of the owning entity.
	Material int
}

// VertexCount returns the number of vertices in s.
func (s *SubMeshGeometry) VertexCount() int { return len(s.Positions) / 3 }

// IndexCount returns the number of indices in s.
func (s *SubMeshGeometry) IndexCount() int { return len(s.Indices) }

// Skinned returns whether s carries joints and weights.
func (s *SubMeshGeometry) Skinned() bool { return len(s.Joints) > 0 }

// Validate checks that the attribute arrays of s agree on
// the vertex count and that indices are in range.
func (s *SubMeshGeometry) Validate() error {
	n := s.VertexCount()
	switch {
	case n == 0 || len(s.Positions)%3 != 0:
		return newErr("invalid position data")
	case s.Normals != nil && len(s.Normals) != n*3:
		return newErr("normal count mismatch")
	case s.TexCoords != nil && len(s.TexCoords) != n*2:
		return newErr("texcoord count mismatch")
	case len(s.Joints) != len(s.Weights):
		return newErr("joints/weights count mismatch")
	case s.Joints != nil && len(s.Joints) != n*4:
		return newErr("joint count mismatch")
	}
	for _, i := range s.Indices {
		if int(i) >= n {
			return newErr(fmt.Sprintf("index %d out of range", i))
		}
	}
	return nil
}

// VertexBytes returns the vertex data of s as it is
// uploaded to the GPU: every attribute array, in field
// order, one after the other.
func (s *SubMeshGeometry) VertexBytes() []byte {
	var b []byte
	b = append(b, safeish.SliceCast[[]byte](s.Positions)...)
	b = append(b, safeish.SliceCast[[]byte](s.Normals)...)
	b = append(b, safeish.SliceCast[[]byte](s.TexCoords)...)
	b = append(b, safeish.SliceCast[[]byte](s.Joints)...)
	b = append(b, safeish.SliceCast[[]byte](s.Weights)...)
	return b
}

// IndexBytes returns the index data of s.
func (s *SubMeshGeometry) IndexBytes() []byte {
	return safeish.SliceCast[[]byte](s.Indices)
}

// Texture is a 2D or cube texture.
// Cube textures have six layers, stored one after the
// other in Data.
type Texture struct {
	Name   string
	Width  int
	Height int
	Format driver.PixelFmt
	Layers int
	Data   []byte
}

// IsCube returns whether t is a cube texture.
func (t *Texture) IsCube() bool { return t.Layers == 6 }

// Desc returns the driver.ImageDesc of t.
func (t *Texture) Desc() *driver.ImageDesc {
	layers := t.Layers
	if layers < 1 {
		layers = 1
	}
	return &driver.ImageDesc{
		Width:  t.Width,
		Height: t.Height,
		Format: t.Format,
		Layers: layers,
	}
}

// Validate checks that Data has the expected size.
func (t *Texture) Validate() error {
	if t.Width < 1 || t.Height < 1 {
		return newErr(fmt.Sprintf("texture %q has invalid size", t.Name))
	}
	layers := max(t.Layers, 1)
	if want := t.Width * t.Height * layers * t.Format.Size(); len(t.Data) != want {
		return newErr(fmt.Sprintf("texture %q: data size is %d, want %d", t.Name, len(t.Data), want))
	}
	return nil
}
