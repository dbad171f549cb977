package decimate

import (
	"fmt"
	"math"
	"sort"

	"github.com/unixpickle/model3d/model3d"

	"github.com/chazu/burl/pkg/mesh"
)

// manifoldRounds caps the tolerance-doubling search.
const manifoldRounds = 10

// manifoldMaxCellFraction caps the marching-cubes cell size at this
// fraction of the largest bounding-box dimension.
const manifoldMaxCellFraction = 0.10

// ManifoldRemesh is the watertight fallback. Instead of collapsing edges
// it treats the input as a solid (ray-parity containment against a
// triangle collider) and re-extracts the surface with marching cubes,
// doubling the cell size each round until the result fits the budget.
// Output is guaranteed watertight at the cost of speed and feature
// fidelity.
type ManifoldRemesh struct {
	// StartCellFraction is the first cell size as a fraction of the
	// largest bounding-box dimension. Zero means 0.01.
	StartCellFraction float64
}

func (m *ManifoldRemesh) Name() string { return "manifold-remesh" }

func (m *ManifoldRemesh) Simplify(b *mesh.Buffer, targetTriangles int) StageResult {
	original := b.TriangleCount()
	fail := func(reason string) StageResult {
		return StageResult{
			Success:           false,
			OriginalTriangles: original,
			FinalTriangles:    original,
			Reason:            reason,
		}
	}

	tris := make([]*model3d.Triangle, 0, original)
	for t := 0; t < b.TriangleCount(); t++ {
		a, c, d := b.Corners(t)
		if !finiteVec(a.X, a.Y, a.Z) || !finiteVec(c.X, c.Y, c.Z) || !finiteVec(d.X, d.Y, d.Z) {
			continue
		}
		tris = append(tris, &model3d.Triangle{
			model3d.Coord3D{X: a.X, Y: a.Y, Z: a.Z},
			model3d.Coord3D{X: c.X, Y: c.Y, Z: c.Z},
			model3d.Coord3D{X: d.X, Y: d.Y, Z: d.Z},
		})
	}
	if len(tris) == 0 {
		return fail("no finite triangles to re-mesh")
	}

	collider := model3d.MeshToCollider(model3d.NewMeshTriangles(tris))
	solid := &paritySolid{Collider: collider}

	extent := b.MaxExtent()
	if !(extent > 0) {
		return fail("mesh has zero extent")
	}
	maxCell := extent * manifoldMaxCellFraction
	start := m.StartCellFraction
	if start <= 0 {
		start = 0.01
	}
	cell := extent * start

	var best *mesh.Buffer
	bestCount := math.MaxInt

	for round := 0; round < manifoldRounds && cell <= maxCell; round++ {
		remeshed := model3d.MarchingCubesSearch(solid, cell, 8)
		out := fromModel3D(remeshed)
		count := out.TriangleCount()
		if count > 0 && count < bestCount {
			best, bestCount = out, count
		}
		if count > 0 && count <= targetTriangles {
			break
		}
		cell *= 2
	}

	if best == nil {
		return fail("marching cubes produced no surface at any tolerance")
	}

	sr := StageResult{
		Success:           bestCount <= targetTriangles,
		Mesh:              best,
		OriginalTriangles: original,
		FinalTriangles:    bestCount,
		ReductionPercent:  100.0 * float64(original-bestCount) / float64(original),
	}
	if !sr.Success {
		sr.Reason = fmt.Sprintf("tolerance search exhausted at %d triangles (target %d)", bestCount, targetTriangles)
	}
	return sr
}

// paritySolid treats a (possibly non-manifold, duplicate-faced) triangle
// collider as a solid by ray parity. Several oblique directions are
// checked so a single grazing hit on a defective region cannot flip the
// answer; near-coincident surfaces along a ray count once.
type paritySolid struct {
	model3d.Collider
}

var parityDirections = []model3d.Coord3D{
	{X: -0.40475415, Y: 0.86174632, Z: -0.30588783},
	{X: -0.81025101, Y: 0.38452447, Z: -0.44230559},
	{X: -0.09226702, Y: -0.74875317, Z: -0.65639584},
	{X: -0.99668947, Y: 0.08087344, Z: 0.00834144},
	{X: 0.67074042, Y: -0.60098173, Z: 0.43465877},
}

func (p *paritySolid) Contains(c model3d.Coord3D) bool {
	if !model3d.InBounds(p, c) {
		return false
	}
	for _, d := range parityDirections {
		if p.uniqueIntersections(c, d)%2 == 0 {
			return false
		}
	}
	return true
}

// uniqueIntersections counts ray hits, merging hits whose distances fall
// within a bounds-relative epsilon so duplicated faces register once.
func (p *paritySolid) uniqueIntersections(origin, direction model3d.Coord3D) int {
	var scales []float64
	p.Collider.RayCollisions(&model3d.Ray{
		Origin:    origin,
		Direction: direction,
	}, func(rc model3d.RayCollision) {
		scales = append(scales, rc.Scale)
	})
	if len(scales) == 0 {
		return 0
	}
	sort.Float64s(scales)

	epsilon := p.Max().Sub(p.Min()).Norm() * 1e-8
	var last float64
	var unique int
	for i, s := range scales {
		if i == 0 || s-last > epsilon {
			unique++
		}
		last = s
	}
	return unique
}

// fromModel3D converts a model3d mesh into an indexed buffer.
func fromModel3D(m *model3d.Mesh) *mesh.Buffer {
	out := &mesh.Buffer{}
	remap := make(map[model3d.Coord3D]uint32)
	for _, tri := range m.TriangleSlice() {
		for _, c := range tri {
			idx, ok := remap[c]
			if !ok {
				idx = uint32(out.VertexCount())
				out.Positions = append(out.Positions,
					float32(c.X), float32(c.Y), float32(c.Z))
				remap[c] = idx
			}
			out.Indices = append(out.Indices, idx)
		}
	}
	mesh.RecomputeNormals(out)
	return out
}

func finiteVec(xs ...float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
