package mesh

import (
	"fmt"
	"math"
)

// quantKey maps a position to a cell on a tolerance-sized lattice.
// Vertices landing in the same cell are treated as coincident.
func quantKey(x, y, z float32, tolerance float64) string {
	inv := 1.0 / tolerance
	return fmt.Sprintf("%d_%d_%d",
		int64(math.Round(float64(x)*inv)),
		int64(math.Round(float64(y)*inv)),
		int64(math.Round(float64(z)*inv)))
}

// Weld merges vertices closer together than tolerance and returns a new
// indexed buffer. Triangles whose corners collapse onto fewer than three
// distinct vertices are dropped. The input is never mutated.
//
// Welding is the precondition for edge-collapse simplification: triangle
// soup where every face owns private vertices has no shared edges to
// collapse.
func Weld(b *Buffer, tolerance float64) *Buffer {
	if b.IsEmpty() {
		return &Buffer{}
	}
	if tolerance <= 0 {
		tolerance = 1e-6
	}

	remap := make(map[string]uint32, b.VertexCount())
	out := &Buffer{}
	hasUV := len(b.UVs) > 0

	resolve := func(i int) uint32 {
		key := quantKey(b.Positions[i*3], b.Positions[i*3+1], b.Positions[i*3+2], tolerance)
		if idx, ok := remap[key]; ok {
			return idx
		}
		idx := uint32(out.VertexCount())
		out.Positions = append(out.Positions,
			b.Positions[i*3], b.Positions[i*3+1], b.Positions[i*3+2])
		if hasUV {
			out.UVs = append(out.UVs, b.UVs[i*2], b.UVs[i*2+1])
		}
		remap[key] = idx
		return idx
	}

	for t := 0; t < b.TriangleCount(); t++ {
		a := resolve(b.VertexIndex(t, 0))
		c := resolve(b.VertexIndex(t, 1))
		d := resolve(b.VertexIndex(t, 2))
		if a == c || c == d || a == d {
			continue // collapsed to a line or point
		}
		out.Indices = append(out.Indices, a, c, d)
	}

	RecomputeNormals(out)
	return out
}
