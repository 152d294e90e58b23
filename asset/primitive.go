// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package asset

// Quad returns a unit quad on the XY plane, centered at
// the origin and facing +Z.
func Quad() *MeshGeometry {
	return &MeshGeometry{
		Name: "quad",
		SubMeshes: []SubMeshGeometry{{
			Positions: []float32{
				-1, -1, 0,
				1, -1, 0,
				1, 1, 0,
				-1, 1, 0,
			},
			Normals: []float32{
				0, 0, 1,
				0, 0, 1,
				0, 0, 1,
				0, 0, 1,
			},
			TexCoords: []float32{
				0, 1,
				1, 1,
				1, 0,
				0, 0,
			},
			Indices: []uint32{0, 1, 2, 2, 3, 0},
		}},
	}
}

// OverSizedTriangle returns a single triangle that covers
// the whole clip space, used by full-screen passes.
func OverSizedTriangle() *MeshGeometry {
	return &MeshGeometry{
		Name: "oversized-triangle",
		SubMeshes: []SubMeshGeometry{{
			Positions: []float32{
				-1, -1, 0,
				3, -1, 0,
				-1, 3, 0,
			},
			TexCoords: []float32{
				0, 0,
				2, 0,
				0, 2,
			},
		}},
	}
}

// Cube returns a cube with side length 2, centered at the
// origin. Faces wind counter-clockwise seen from outside.
func Cube() *MeshGeometry {
	faces := [6]struct {
		n, u, v [3]float32
	}{
		{[3]float32{1, 0, 0}, [3]float32{0, 0, -1}, [3]float32{0, 1, 0}},
		{[3]float32{-1, 0, 0}, [3]float32{0, 0, 1}, [3]float32{0, 1, 0}},
		{[3]float32{0, 1, 0}, [3]float32{1, 0, 0}, [3]float32{0, 0, -1}},
		{[3]float32{0, -1, 0}, [3]float32{1, 0, 0}, [3]float32{0, 0, 1}},
		{[3]float32{0, 0, 1}, [3]float32{1, 0, 0}, [3]float32{0, 1, 0}},
		{[3]float32{0, 0, -1}, [3]float32{-1, 0, 0}, [3]float32{0, 1, 0}},
	}
	var s SubMeshGeometry
	corners := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
	for i, f := range faces {
		for _, c := range corners {
			for k := range 3 {
				s.Positions = append(s.Positions, f.n[k]+c[0]*f.u[k]+c[1]*f.v[k])
			}
			s.Normals = append(s.Normals, f.n[:]...)
			s.TexCoords = append(s.TexCoords, (c[0]+1)/2, (1-c[1])/2)
		}
		base := uint32(i * 4)
		s.Indices = append(s.Indices, base, base+1, base+2, base+2, base+3, base)
	}
	return &MeshGeometry{Name: "cube", SubMeshes: []SubMeshGeometry{s}}
}
