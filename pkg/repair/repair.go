// Package repair strips degenerate triangles from a mesh buffer and
// rebuilds its attribute arrays. Repair never fails: a mesh with nothing
// to fix comes back equivalent, with normals recomputed.
package repair

import (
	"github.com/chazu/burl/pkg/mesh"
	"github.com/chazu/burl/pkg/topology"
)

// Result describes what a repair pass did.
type Result struct {
	Mesh             *mesh.Buffer
	RemovedTriangles int
}

// Repair returns a new buffer without the input's degenerate triangles.
// The same degeneracy test as topology.Analyze is applied, so
// analyze(repair(m)) always reports zero degenerate triangles.
// Vertices no longer referenced by any surviving triangle are dropped
// and the index buffer is remapped. The input is untouched.
func Repair(b *mesh.Buffer) Result {
	out := &mesh.Buffer{}
	hasUV := len(b.UVs) > 0
	removed := 0

	remap := make(map[int]uint32, b.VertexCount())
	resolve := func(i int) uint32 {
		if idx, ok := remap[i]; ok {
			return idx
		}
		idx := uint32(out.VertexCount())
		out.Positions = append(out.Positions,
			b.Positions[i*3], b.Positions[i*3+1], b.Positions[i*3+2])
		if hasUV {
			out.UVs = append(out.UVs, b.UVs[i*2], b.UVs[i*2+1])
		}
		remap[i] = idx
		return idx
	}

	for t := 0; t < b.TriangleCount(); t++ {
		a, c, d := b.Corners(t)
		if topology.Degenerate(a, c, d) {
			removed++
			continue
		}
		out.Indices = append(out.Indices,
			resolve(b.VertexIndex(t, 0)),
			resolve(b.VertexIndex(t, 1)),
			resolve(b.VertexIndex(t, 2)))
	}

	mesh.RecomputeNormals(out)
	return Result{Mesh: out, RemovedTriangles: removed}
}
