// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package asset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gviegas/framegraph/driver"
)

func TestPrimitives(t *testing.T) {
	for _, x := range [...]struct {
		mesh              *MeshGeometry
		vertices, indices int
	}{
		{Quad(), 4, 6},
		{OverSizedTriangle(), 3, 0},
		{Cube(), 24, 36},
	} {
		require.NoError(t, x.mesh.Validate(), x.mesh.Name)
		s := &x.mesh.SubMeshes[0]
		assert.Equal(t, x.vertices, s.VertexCount(), x.mesh.Name)
		assert.Equal(t, x.indices, s.IndexCount(), x.mesh.Name)
		assert.Len(t, s.IndexBytes(), x.indices*4, x.mesh.Name)
	}
}

func TestVertexBytes(t *testing.T) {
	s := SubMeshGeometry{
		Positions: []float32{0, 0, 0, 1, 0, 0, 0, 1, 0},
		TexCoords: []float32{0, 0, 1, 0, 0, 1},
		Joints:    make([]uint16, 12),
		Weights:   make([]float32, 12),
	}
	require.NoError(t, s.Validate())
	assert.True(t, s.Skinned())
	assert.Len(t, s.VertexBytes(), 9*4+6*4+12*2+12*4)
}

func TestValidate(t *testing.T) {
	bad := []SubMeshGeometry{
		{},
		{Positions: []float32{0, 0}},
		{Positions: []float32{0, 0, 0}, Normals: []float32{0, 0}},
		{Positions: []float32{0, 0, 0}, Indices: []uint32{1}},
		{Positions: []float32{0, 0, 0}, Joints: []uint16{0, 0, 0, 0}},
	}
	for i := range bad {
		assert.Error(t, bad[i].Validate(), "case %d", i)
	}
	assert.Error(t, (&MeshGeometry{Name: "empty"}).Validate())

	tex := Texture{Name: "t", Width: 2, Height: 2, Format: driver.RGBA8un, Data: make([]byte, 16)}
	assert.NoError(t, tex.Validate())
	assert.False(t, tex.IsCube())
	tex.Layers = 6
	assert.Error(t, tex.Validate())
	tex.Data = make([]byte, 96)
	assert.NoError(t, tex.Validate())
	assert.Equal(t, 6, tex.Desc().Layers)
}
