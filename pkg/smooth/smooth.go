// Package smooth implements iterative vertex-relaxation schemes (Taubin,
// HC-Laplacian, Gaussian, plain Laplacian) on the group adjacency graph
// of a mesh buffer.
// All schemes except Gaussian operate only in the two horizontal axes so
// vertical features survive smoothing untouched.
package smooth

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/burl/pkg/mesh"
)

// Method selects the smoothing scheme.
type Method int

const (
	// Taubin alternates a shrink pass (lambda) with an inflate pass
	// (mu, negative and larger in magnitude) to converge without the
	// volume loss of plain Laplacian smoothing.
	Taubin Method = iota
	// HC applies a correction after each Laplacian pass that pulls the
	// result back toward the original geometry.
	HC
	// Gaussian replaces the uniform neighbor average with distance
	// weights exp(-d^2 / 2 sigma^2) and smooths all three axes.
	Gaussian
	// Laplacian is the bare shrink pass the other schemes build on.
	// Exposed for callers that want maximum flattening and accept the
	// volume loss.
	Laplacian
)

func (m Method) String() string {
	switch m {
	case Taubin:
		return "taubin"
	case HC:
		return "hc"
	case Gaussian:
		return "gaussian"
	case Laplacian:
		return "laplacian"
	default:
		return "unknown"
	}
}

// VertexCeiling is the hard limit above which smoothing is skipped
// instead of building an adjacency map of unbounded size.
const VertexCeiling = 1_000_000

// Options are the per-method knobs. Zero values fall back to the
// defaults noted per field.
type Options struct {
	Method     Method
	Iterations int
	Lambda     float64 // Taubin shrink factor, default 0.5
	Mu         float64 // Taubin inflate factor, default -0.53
	Alpha      float64 // HC original-geometry blend, default 0.1
	Beta       float64 // HC correction blend, default 0.6
	Sigma      float64 // Gaussian falloff, default 1.0
}

func (o *Options) applyDefaults() {
	if o.Lambda == 0 {
		o.Lambda = 0.5
	}
	if o.Mu == 0 {
		o.Mu = -0.53
	}
	if o.Alpha == 0 {
		o.Alpha = 0.1
	}
	if o.Beta == 0 {
		o.Beta = 0.6
	}
	if o.Sigma == 0 {
		o.Sigma = 1.0
	}
}

// Result reports whether smoothing ran and why not if it was skipped.
type Result struct {
	Mesh    *mesh.Buffer
	Applied bool
	Reason  string
}

// Smooth returns a smoothed copy of b. Zero iterations is a no-op on
// positions. Oversized meshes are skipped, never attempted: the result
// carries the reason instead of risking unbounded adjacency memory.
func Smooth(b *mesh.Buffer, opts Options) Result {
	opts.applyDefaults()
	out := b.Clone()

	if opts.Iterations <= 0 {
		return Result{Mesh: out, Applied: false, Reason: "zero iterations requested"}
	}
	if n := b.VertexCount(); n > VertexCeiling {
		return Result{
			Mesh:    out,
			Applied: false,
			Reason:  fmt.Sprintf("vertex count %d exceeds smoothing ceiling %d", n, VertexCeiling),
		}
	}
	if b.TriangleCount() == 0 {
		return Result{Mesh: out, Applied: false, Reason: "no triangles to smooth"}
	}

	adj := mesh.BuildAdjacency(b)
	groupPos := make([]r3.Vec, len(adj.Groups))
	for g, grp := range adj.Groups {
		groupPos[g] = grp.Position
	}

	switch opts.Method {
	case Taubin:
		for i := 0; i < opts.Iterations; i++ {
			groupPos = laplacianPass(groupPos, adj, opts.Lambda, false)
			groupPos = laplacianPass(groupPos, adj, opts.Mu, false)
		}
	case HC:
		hcSmooth(groupPos, adj, opts)
	case Gaussian:
		for i := 0; i < opts.Iterations; i++ {
			groupPos = gaussianPass(groupPos, adj, opts.Sigma)
		}
	case Laplacian:
		for i := 0; i < opts.Iterations; i++ {
			groupPos = laplacianPass(groupPos, adj, opts.Lambda, false)
		}
	default:
		return Result{Mesh: out, Applied: false, Reason: fmt.Sprintf("unknown method %d", opts.Method)}
	}

	writeBack(out, adj, groupPos, opts.Method == Gaussian)
	mesh.RecomputeNormals(out)
	return Result{Mesh: out, Applied: true}
}

// laplacianPass is the primitive pass shared by the schemes: each group
// moves toward the unweighted centroid of its neighboring groups by
// factor. Group centroids, not raw vertices, so unevenly tessellated
// regions carry no extra pull. The vertical axis is never touched here.
func laplacianPass(pos []r3.Vec, adj *mesh.Adjacency, factor float64, allAxes bool) []r3.Vec {
	next := make([]r3.Vec, len(pos))
	copy(next, pos)
	for g := range pos {
		nbs := adj.Neighbors[g]
		if len(nbs) == 0 {
			continue
		}
		var centroid r3.Vec
		for _, n := range nbs {
			centroid = r3.Add(centroid, pos[n])
		}
		centroid = r3.Scale(1/float64(len(nbs)), centroid)
		delta := r3.Scale(factor, r3.Sub(centroid, pos[g]))
		next[g].X += delta.X
		next[g].Z += delta.Z
		if allAxes {
			next[g].Y += delta.Y
		}
	}
	return next
}

// hcSmooth runs Humphrey's Class smoothing in place on the group
// positions: Laplacian, then a neighbor-averaged correction vector
// blended by beta pulls each group back toward alpha-weighted original
// geometry.
func hcSmooth(pos []r3.Vec, adj *mesh.Adjacency, opts Options) {
	original := make([]r3.Vec, len(pos))
	copy(original, pos)

	for i := 0; i < opts.Iterations; i++ {
		previous := make([]r3.Vec, len(pos))
		copy(previous, pos)

		smoothed := laplacianPass(pos, adj, opts.Lambda, false)

		// Correction vector per group.
		b := make([]r3.Vec, len(pos))
		for g := range pos {
			anchor := r3.Add(r3.Scale(opts.Alpha, original[g]), r3.Scale(1-opts.Alpha, previous[g]))
			b[g] = r3.Sub(smoothed[g], anchor)
		}

		for g := range pos {
			nbs := adj.Neighbors[g]
			correction := r3.Scale(opts.Beta, b[g])
			if len(nbs) > 0 {
				var avg r3.Vec
				for _, n := range nbs {
					avg = r3.Add(avg, b[n])
				}
				avg = r3.Scale(1/float64(len(nbs)), avg)
				correction = r3.Add(correction, r3.Scale(1-opts.Beta, avg))
			}
			p := r3.Sub(smoothed[g], correction)
			pos[g].X = p.X
			pos[g].Z = p.Z
		}
	}
}

// gaussianPass moves every group to the distance-weighted average of
// itself and its neighbors. The self vertex always gets weight 1 before
// normalization. All three axes move.
func gaussianPass(pos []r3.Vec, adj *mesh.Adjacency, sigma float64) []r3.Vec {
	next := make([]r3.Vec, len(pos))
	twoSigmaSq := 2 * sigma * sigma
	for g := range pos {
		sum := pos[g] // self weight 1.0
		weight := 1.0
		for _, n := range adj.Neighbors[g] {
			d := r3.Sub(pos[n], pos[g])
			w := gaussWeight(r3.Norm2(d), twoSigmaSq)
			sum = r3.Add(sum, r3.Scale(w, pos[n]))
			weight += w
		}
		next[g] = r3.Scale(1/weight, sum)
	}
	return next
}

func gaussWeight(distSq, twoSigmaSq float64) float64 {
	if twoSigmaSq <= 0 {
		return 0
	}
	return math.Exp(-distSq / twoSigmaSq)
}

// writeBack expands group positions to every member vertex so co-located
// vertices move identically. Outside Gaussian mode each vertex keeps its
// exact original vertical coordinate.
func writeBack(b *mesh.Buffer, adj *mesh.Adjacency, groupPos []r3.Vec, allAxes bool) {
	for g, grp := range adj.Groups {
		p := groupPos[g]
		for _, v := range grp.Vertices {
			b.Positions[v*3] = float32(p.X)
			b.Positions[v*3+2] = float32(p.Z)
			if allAxes {
				b.Positions[v*3+1] = float32(p.Y)
			}
		}
	}
}
