package decimate

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/burl/pkg/mesh"
)

// Clustering is the last-resort simplifier: vertices snap to the
// centroid of a uniform spatial grid cell and triangles whose corners
// land in fewer than three distinct cells are dropped. It cannot fail,
// only coarsen; it exists to guarantee termination within budget.
type Clustering struct{}

func (c *Clustering) Name() string { return "vertex-clustering" }

// Simplify clusters at a grid resolution derived from the budget and the
// mesh's surface-area-to-volume ratio, then halves the resolution until
// the budget is met. At one cell per axis everything collapses, so the
// search always terminates.
func (c *Clustering) Simplify(b *mesh.Buffer, targetTriangles int) StageResult {
	original := b.TriangleCount()
	cells := initialCells(b, targetTriangles)

	var out *mesh.Buffer
	for {
		out = clusterToGrid(b, cells)
		if out.TriangleCount() <= targetTriangles || cells <= 1 {
			break
		}
		cells /= 2
	}

	final := out.TriangleCount()
	sr := StageResult{
		Success:           final <= targetTriangles,
		Mesh:              out,
		OriginalTriangles: original,
		FinalTriangles:    final,
		ReductionPercent:  100.0 * float64(original-final) / float64(original),
	}
	if !sr.Success {
		sr.Reason = fmt.Sprintf("irreducible below %d triangles at minimum grid resolution", final)
	}
	return sr
}

// initialCells sizes the grid so cells^3 tracks the triangle budget,
// scaled by how sheet-like the mesh is: thin shells put all their
// triangles in a thin slab of cells and need a denser grid than compact
// solids.
func initialCells(b *mesh.Buffer, targetTriangles int) int {
	cells := math.Cbrt(float64(targetTriangles))

	area := mesh.SurfaceArea(b)
	volume := math.Abs(mesh.SignedVolume(b))
	if volume > 1e-12 && area > 1e-12 {
		extent := b.MaxExtent()
		// A cube of this extent has ratio 6/extent; normalize against it.
		ratio := (area / volume) / (6.0 / extent)
		cells *= clampRatio(math.Cbrt(ratio), 0.5, 4.0)
	}

	n := int(math.Ceil(cells))
	if n < 1 {
		n = 1
	}
	return n
}

// clusterToGrid performs one clustering pass at the given resolution.
func clusterToGrid(b *mesh.Buffer, cells int) *mesh.Buffer {
	min, max := b.Bounds()
	span := r3.Sub(max, min)
	inv := func(s float64) float64 {
		if s <= 0 {
			return 0
		}
		return float64(cells) / s
	}
	ix, iy, iz := inv(span.X), inv(span.Y), inv(span.Z)

	cellOf := func(p r3.Vec) int {
		cx := gridCoord(p.X-min.X, ix, cells)
		cy := gridCoord(p.Y-min.Y, iy, cells)
		cz := gridCoord(p.Z-min.Z, iz, cells)
		return (cx*cells+cy)*cells + cz
	}

	// Accumulate cell centroids.
	type cellAcc struct {
		sum   r3.Vec
		count int
		out   int // output vertex index, -1 until emitted
	}
	acc := make(map[int]*cellAcc)
	vertCell := make([]int, b.VertexCount())
	for i := 0; i < b.VertexCount(); i++ {
		p := b.Position(i)
		id := cellOf(p)
		vertCell[i] = id
		a, ok := acc[id]
		if !ok {
			a = &cellAcc{out: -1}
			acc[id] = a
		}
		a.sum = r3.Add(a.sum, p)
		a.count++
	}

	out := &mesh.Buffer{}
	emit := func(id int) uint32 {
		a := acc[id]
		if a.out < 0 {
			centroid := r3.Scale(1/float64(a.count), a.sum)
			a.out = out.VertexCount()
			out.Positions = append(out.Positions,
				float32(centroid.X), float32(centroid.Y), float32(centroid.Z))
		}
		return uint32(a.out)
	}

	for t := 0; t < b.TriangleCount(); t++ {
		c0 := vertCell[b.VertexIndex(t, 0)]
		c1 := vertCell[b.VertexIndex(t, 1)]
		c2 := vertCell[b.VertexIndex(t, 2)]
		if c0 == c1 || c1 == c2 || c0 == c2 {
			continue // collapsed within a cell
		}
		out.Indices = append(out.Indices, emit(c0), emit(c1), emit(c2))
	}

	mesh.RecomputeNormals(out)
	return out
}

func gridCoord(d, inv float64, cells int) int {
	c := int(d * inv)
	if c < 0 {
		c = 0
	}
	if c >= cells {
		c = cells - 1
	}
	return c
}
