package mesh

import "gonum.org/v1/gonum/spatial/r3"

// SignedVolume computes the enclosed volume via the divergence theorem:
// the sum of signed tetrahedron volumes between each triangle and the
// origin. Only meaningful for closed meshes; open meshes yield an
// origin-dependent value.
func SignedVolume(b *Buffer) float64 {
	var total float64
	for t := 0; t < b.TriangleCount(); t++ {
		a, c, d := b.Corners(t)
		total += r3.Dot(a, r3.Cross(c, d)) / 6.0
	}
	return total
}

// SurfaceArea sums the area of every triangle. Degenerate triangles
// contribute nothing.
func SurfaceArea(b *Buffer) float64 {
	var total float64
	for t := 0; t < b.TriangleCount(); t++ {
		a, c, d := b.Corners(t)
		total += 0.5 * r3.Norm(r3.Cross(r3.Sub(c, a), r3.Sub(d, a)))
	}
	return total
}
