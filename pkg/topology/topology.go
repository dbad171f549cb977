// Package topology computes manifoldness and defect statistics for a
// mesh buffer. Analysis is pure and runs in O(triangles); reports are
// computed fresh per call and never mutated.
package topology

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/burl/pkg/mesh"
)

// DegenerateEpsilon is the threshold on the squared cross-product
// magnitude below which a triangle counts as degenerate. Comparing
// squared magnitudes avoids a sqrt per triangle.
const DegenerateEpsilon = 1e-12

// Report is the immutable result of a topology analysis.
type Report struct {
	IsManifold              bool   `json:"isManifold"`
	TriangleCount           int    `json:"triangleCount"`
	VertexCount             int    `json:"vertexCount"`
	NonManifoldEdgeCount    int    `json:"nonManifoldEdgeCount"` // edges shared by >2 triangles
	BoundaryEdgeCount       int    `json:"boundaryEdgeCount"`    // edges shared by exactly 1
	DegenerateTriangleCount int    `json:"degenerateTriangleCount"`
	MinBound                r3.Vec `json:"minBound"`
	MaxBound                r3.Vec `json:"maxBound"`
}

// edgeKey is an order-independent vertex index pair.
type edgeKey struct {
	lo, hi uint32
}

func newEdgeKey(a, b int) edgeKey {
	if a < b {
		return edgeKey{uint32(a), uint32(b)}
	}
	return edgeKey{uint32(b), uint32(a)}
}

// Degenerate reports whether the triangle spanned by a, b, c has
// (near-)zero area.
func Degenerate(a, b, c r3.Vec) bool {
	cross := r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
	return r3.Norm2(cross) < DegenerateEpsilon
}

// Analyze inspects the buffer and returns a defect report. The buffer is
// not mutated.
func Analyze(b *mesh.Buffer) Report {
	report := Report{
		TriangleCount: b.TriangleCount(),
		VertexCount:   b.VertexCount(),
	}
	report.MinBound, report.MaxBound = b.Bounds()

	edgeUse := make(map[edgeKey]int, report.TriangleCount*3/2)

	for t := 0; t < report.TriangleCount; t++ {
		i0 := b.VertexIndex(t, 0)
		i1 := b.VertexIndex(t, 1)
		i2 := b.VertexIndex(t, 2)

		a, c, d := b.Position(i0), b.Position(i1), b.Position(i2)
		if Degenerate(a, c, d) {
			report.DegenerateTriangleCount++
		}

		edgeUse[newEdgeKey(i0, i1)]++
		edgeUse[newEdgeKey(i1, i2)]++
		edgeUse[newEdgeKey(i2, i0)]++
	}

	for _, uses := range edgeUse {
		switch {
		case uses == 1:
			report.BoundaryEdgeCount++ // hole in the surface
		case uses > 2:
			report.NonManifoldEdgeCount++ // duplicated or self-intersecting faces
		}
	}

	report.IsManifold = report.NonManifoldEdgeCount == 0 &&
		report.BoundaryEdgeCount == 0 &&
		report.DegenerateTriangleCount == 0
	return report
}
