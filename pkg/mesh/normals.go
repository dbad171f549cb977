package mesh

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// RecomputeNormals rebuilds per-vertex normals by accumulating the
// unnormalized face normal of every incident triangle and normalizing
// the sum. The cross-product magnitude weights large faces more heavily,
// which is the behavior renderers expect from recomputed normals.
func RecomputeNormals(b *Buffer) {
	n := b.VertexCount()
	normals := make([]float32, n*3)

	for t := 0; t < b.TriangleCount(); t++ {
		i0 := b.VertexIndex(t, 0)
		i1 := b.VertexIndex(t, 1)
		i2 := b.VertexIndex(t, 2)

		a := b.Position(i0)
		p := r3.Sub(b.Position(i1), a)
		q := r3.Sub(b.Position(i2), a)
		fn := r3.Cross(p, q)

		for _, idx := range [3]int{i0, i1, i2} {
			normals[idx*3] += float32(fn.X)
			normals[idx*3+1] += float32(fn.Y)
			normals[idx*3+2] += float32(fn.Z)
		}
	}

	for i := 0; i < n; i++ {
		nx := float64(normals[i*3])
		ny := float64(normals[i*3+1])
		nz := float64(normals[i*3+2])
		length := math.Sqrt(nx*nx + ny*ny + nz*nz)
		if length > 1e-12 {
			normals[i*3] = float32(nx / length)
			normals[i*3+1] = float32(ny / length)
			normals[i*3+2] = float32(nz / length)
		}
	}

	b.Normals = normals
}
