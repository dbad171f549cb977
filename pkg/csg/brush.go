package csg

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/burl/pkg/mesh"
	"github.com/chazu/burl/pkg/topology"
)

// Transform is a rigid world transform applied to a brush at
// preparation time.
type Transform struct {
	Rotation    [3][3]float64
	Translation r3.Vec
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{Rotation: [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}}
}

// Translate returns a pure translation.
func Translate(x, y, z float64) Transform {
	t := Identity()
	t.Translation = r3.Vec{X: x, Y: y, Z: z}
	return t
}

// Apply transforms a point.
func (t Transform) Apply(v r3.Vec) r3.Vec {
	r := t.Rotation
	return r3.Add(r3.Vec{
		X: r[0][0]*v.X + r[0][1]*v.Y + r[0][2]*v.Z,
		Y: r[1][0]*v.X + r[1][1]*v.Y + r[1][2]*v.Z,
		Z: r[2][0]*v.X + r[2][1]*v.Y + r[2][2]*v.Z,
	}, t.Translation)
}

// Brush is a CSG-ready solid: source buffer, world transform, triangle
// list in world space, and a prepared BVH. Brushes are short-lived —
// created per boolean operation (or once per batch) and discarded after
// the result is extracted.
type Brush struct {
	Source    *mesh.Buffer
	Transform Transform
	Closed    bool // watertight per topology analysis

	tris   [][3]r3.Vec
	triUVs [][3][2]float32
	bvh    *bvh
	bounds aabb
}

// parityDirections are fixed oblique rays for inside/outside testing.
// Multiple directions keep one grazing hit on a defective region from
// flipping the verdict.
var parityDirections = []r3.Vec{
	{X: -0.40475415, Y: 0.86174632, Z: -0.30588783},
	{X: -0.81025101, Y: 0.38452447, Z: -0.44230559},
	{X: -0.09226702, Y: -0.74875317, Z: -0.65639584},
	{X: -0.99668947, Y: 0.08087344, Z: 0.00834144},
	{X: 0.67074042, Y: -0.60098173, Z: 0.43465877},
}

// Prepare builds a brush from a buffer and transform. The face
// classifier requires a UV attribute to exist on the source; one is
// synthesized as zeros when absent (the values are never read, only the
// presence matters downstream). Non-finite and degenerate triangles are
// excluded from the BVH so defective input degrades instead of crashing.
func Prepare(b *mesh.Buffer, tf Transform) *Brush {
	src := b.Clone()
	src.EnsureUV()

	report := topology.Analyze(src)
	br := &Brush{
		Source:    src,
		Transform: tf,
		Closed:    report.BoundaryEdgeCount == 0 && report.NonManifoldEdgeCount == 0,
		bounds:    emptyAABB(),
	}

	for t := 0; t < src.TriangleCount(); t++ {
		a, c, d := src.Corners(t)
		a, c, d = tf.Apply(a), tf.Apply(c), tf.Apply(d)
		if !finite(a) || !finite(c) || !finite(d) || topology.Degenerate(a, c, d) {
			continue
		}
		br.tris = append(br.tris, [3]r3.Vec{a, c, d})
		br.triUVs = append(br.triUVs, [3][2]float32{
			uvOf(src, src.VertexIndex(t, 0)),
			uvOf(src, src.VertexIndex(t, 1)),
			uvOf(src, src.VertexIndex(t, 2)),
		})
		for _, p := range [3]r3.Vec{a, c, d} {
			br.bounds = br.bounds.expand(p)
		}
	}

	br.bvh = buildBVH(br.tris)
	return br
}

func uvOf(b *mesh.Buffer, i int) [2]float32 {
	return [2]float32{b.UVs[i*2], b.UVs[i*2+1]}
}

func finite(v r3.Vec) bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) &&
		!math.IsNaN(v.Y) && !math.IsInf(v.Y, 0) &&
		!math.IsNaN(v.Z) && !math.IsInf(v.Z, 0)
}

// Empty reports whether the brush carries no usable triangles.
func (b *Brush) Empty() bool {
	return len(b.tris) == 0
}

// Contains classifies a point by ray parity: the point is inside only if
// every cast ray crosses the surface an odd number of times.
// Hits at near-identical distances merge so duplicated faces count once.
func (b *Brush) Contains(p r3.Vec) bool {
	if b.Empty() {
		return false
	}
	if p.X < b.bounds.min.X || p.X > b.bounds.max.X ||
		p.Y < b.bounds.min.Y || p.Y > b.bounds.max.Y ||
		p.Z < b.bounds.min.Z || p.Z > b.bounds.max.Z {
		return false
	}

	diag := r3.Sub(b.bounds.max, b.bounds.min)
	epsilon := r3.Norm(diag) * 1e-8

	var scratch []float64
	for _, dir := range parityDirections {
		scratch = b.bvh.rayHits(p, dir, scratch[:0])
		if uniqueCount(scratch, epsilon)%2 == 0 {
			return false
		}
	}
	return true
}

func uniqueCount(scales []float64, epsilon float64) int {
	if len(scales) == 0 {
		return 0
	}
	sort.Float64s(scales)
	count := 1
	last := scales[0]
	for _, s := range scales[1:] {
		if s-last > epsilon {
			count++
		}
		last = s
	}
	return count
}
