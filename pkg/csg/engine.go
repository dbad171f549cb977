package csg

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/burl/pkg/mesh"
)

// ErrNoGeometry reports a boolean evaluation that produced an empty
// result. It is surfaced, never swallowed: an empty subtraction usually
// means a non-manifold input pair.
var ErrNoGeometry = errors.New("csg: boolean produced no geometry")

// unionWeldTolerance is the vertex-merge tolerance applied between
// progressive union iterations. Without the re-weld, repeatedly feeding
// non-indexed boolean output back in grows the vertex count
// exponentially across iterations.
const unionWeldTolerance = 1e-4

// subtractWeldTolerance indexes subtraction output without visibly
// moving vertices.
const subtractWeldTolerance = 1e-6

// Engine is a reusable boolean evaluator. It holds no per-operation
// state, so one engine may serve a whole batch; prepared brushes carry
// the expensive parts.
type Engine struct{}

// NewEngine returns a boolean evaluator.
func NewEngine() *Engine {
	return &Engine{}
}

// soupBuilder accumulates classified triangles into a triangle-soup
// buffer with UVs.
type soupBuilder struct {
	buf mesh.Buffer
}

func (s *soupBuilder) add(tri [3]r3.Vec, uv [3][2]float32, flip bool) {
	order := [3]int{0, 1, 2}
	if flip {
		order = [3]int{0, 2, 1}
	}
	for _, i := range order {
		p := tri[i]
		s.buf.Positions = append(s.buf.Positions,
			float32(p.X), float32(p.Y), float32(p.Z))
		s.buf.UVs = append(s.buf.UVs, uv[i][0], uv[i][1])
	}
}

// Subtract removes the cutter's volume from the support. When the
// cutter does not touch the support's bounding box the support comes
// back unchanged. An empty result is an error, not a nil success.
//
// Classification is per whole triangle: support faces whose centroid
// lies outside the cutter survive, and cutter faces whose centroid lies
// inside the support are kept with reversed winding to line the cavity.
func (e *Engine) Subtract(support, cutter *Brush) (*mesh.Buffer, error) {
	if support.Empty() {
		return nil, fmt.Errorf("subtract: support brush is empty: %w", ErrNoGeometry)
	}
	if cutter.Empty() || !support.bounds.overlaps(cutter.bounds) {
		return support.Source.Clone(), nil
	}

	var sb soupBuilder
	for i, tri := range support.tris {
		if !cutter.Contains(triangleCentroid(tri)) {
			sb.add(tri, support.triUVs[i], false)
		}
	}
	for i, tri := range cutter.tris {
		if support.Contains(triangleCentroid(tri)) {
			sb.add(tri, cutter.triUVs[i], true)
		}
	}

	if sb.buf.IsEmpty() {
		return nil, fmt.Errorf("subtract: support consumed entirely by cutter: %w", ErrNoGeometry)
	}
	return mesh.Weld(&sb.buf, subtractWeldTolerance), nil
}

// BatchItem is the per-support outcome of a batch subtraction.
type BatchItem struct {
	Index int
	Mesh  *mesh.Buffer
	Err   error
}

// SubtractBatch subtracts one cutter from each support in turn, reusing
// the evaluator and the prepared cutter brush across the whole batch.
// Failures are recorded per item so one bad input cannot poison the
// job. The loop is sequential by construction; nothing else may touch
// the shared cutter while it runs.
func (e *Engine) SubtractBatch(supports []*mesh.Buffer, cutter *Brush, progress func(current, total int)) []BatchItem {
	items := make([]BatchItem, len(supports))
	for i, s := range supports {
		if progress != nil {
			progress(i, len(supports))
		}
		items[i].Index = i
		if s == nil || s.IsEmpty() {
			items[i].Err = fmt.Errorf("subtract batch item %d: empty support: %w", i, ErrNoGeometry)
			continue
		}
		out, err := e.Subtract(Prepare(s, Identity()), cutter)
		items[i].Mesh = out
		items[i].Err = err
	}
	if progress != nil {
		progress(len(supports), len(supports))
	}
	return items
}

// union2 evaluates a pairwise boolean union as triangle soup: faces of
// each brush that are not interior to the other survive.
func (e *Engine) union2(a, b *Brush) *mesh.Buffer {
	var sb soupBuilder
	for i, tri := range a.tris {
		if !b.Contains(triangleCentroid(tri)) {
			sb.add(tri, a.triUVs[i], false)
		}
	}
	for i, tri := range b.tris {
		if !a.Contains(triangleCentroid(tri)) {
			sb.add(tri, b.triUVs[i], false)
		}
	}
	return &sb.buf
}

// Union merges the buffers into one solid, accumulating pairwise: each
// brush is unioned into a running result which is re-welded and
// re-prepared before the next round. A single-element union is a no-op
// returning the input unchanged.
//
// For a cheap concatenation that keeps internal faces, use
// mesh.Concatenate — that is a different operation with different
// topology semantics, not a fallback of this one.
func (e *Engine) Union(buffers []*mesh.Buffer) (*mesh.Buffer, error) {
	nonEmpty := make([]*mesh.Buffer, 0, len(buffers))
	for _, b := range buffers {
		if b != nil && !b.IsEmpty() {
			nonEmpty = append(nonEmpty, b)
		}
	}
	if len(nonEmpty) == 0 {
		return nil, fmt.Errorf("union: no input geometry: %w", ErrNoGeometry)
	}
	if len(nonEmpty) == 1 {
		return nonEmpty[0].Clone(), nil
	}

	acc := nonEmpty[0]
	accBrush := Prepare(acc, Identity())
	for _, next := range nonEmpty[1:] {
		merged := e.union2(accBrush, Prepare(next, Identity()))
		if merged.IsEmpty() {
			return nil, fmt.Errorf("union: accumulated result vanished: %w", ErrNoGeometry)
		}
		acc = mesh.Weld(merged, unionWeldTolerance)
		accBrush = Prepare(acc, Identity())
	}
	return acc, nil
}
