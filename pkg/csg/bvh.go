// Package csg evaluates boolean operations (subtraction, union) between
// closed triangle-mesh solids. Solids are prepared as Brushes: a world
// transform applied up front and a bounding-volume hierarchy built once,
// reused across repeated operations against the same brush.
package csg

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

// maxTrianglesPerLeaf is the split threshold for BVH nodes.
const maxTrianglesPerLeaf = 4

// rayEpsilon rejects self-intersections at a ray origin.
const rayEpsilon = 1e-9

type aabb struct {
	min, max r3.Vec
}

func (b aabb) expand(p r3.Vec) aabb {
	if b.min.X > b.max.X { // uninitialized
		return aabb{min: p, max: p}
	}
	return aabb{
		min: r3.Vec{X: math.Min(b.min.X, p.X), Y: math.Min(b.min.Y, p.Y), Z: math.Min(b.min.Z, p.Z)},
		max: r3.Vec{X: math.Max(b.max.X, p.X), Y: math.Max(b.max.Y, p.Y), Z: math.Max(b.max.Z, p.Z)},
	}
}

func emptyAABB() aabb {
	inf := math.Inf(1)
	return aabb{min: r3.Vec{X: inf, Y: inf, Z: inf}, max: r3.Vec{X: -inf, Y: -inf, Z: -inf}}
}

func (b aabb) overlaps(o aabb) bool {
	return b.min.X <= o.max.X && b.max.X >= o.min.X &&
		b.min.Y <= o.max.Y && b.max.Y >= o.min.Y &&
		b.min.Z <= o.max.Z && b.max.Z >= o.min.Z
}

// intersectsRay is the slab test against an unbounded ray.
func (b aabb) intersectsRay(origin, invDir r3.Vec) bool {
	t1 := (b.min.X - origin.X) * invDir.X
	t2 := (b.max.X - origin.X) * invDir.X
	tmin := math.Min(t1, t2)
	tmax := math.Max(t1, t2)

	t1 = (b.min.Y - origin.Y) * invDir.Y
	t2 = (b.max.Y - origin.Y) * invDir.Y
	tmin = math.Max(tmin, math.Min(t1, t2))
	tmax = math.Min(tmax, math.Max(t1, t2))

	t1 = (b.min.Z - origin.Z) * invDir.Z
	t2 = (b.max.Z - origin.Z) * invDir.Z
	tmin = math.Max(tmin, math.Min(t1, t2))
	tmax = math.Min(tmax, math.Max(t1, t2))

	return tmax >= math.Max(tmin, 0)
}

// bvhNode is either an internal node with two children or a leaf holding
// triangle indices.
type bvhNode struct {
	bounds      aabb
	left, right *bvhNode
	tris        []int
}

// bvh accelerates ray/triangle queries over a brush's triangle list.
type bvh struct {
	root *bvhNode
	tris [][3]r3.Vec
}

func buildBVH(tris [][3]r3.Vec) *bvh {
	if len(tris) == 0 {
		return &bvh{tris: tris}
	}
	indices := make([]int, len(tris))
	for i := range indices {
		indices[i] = i
	}
	return &bvh{root: buildBVHNode(tris, indices), tris: tris}
}

func triangleCentroid(t [3]r3.Vec) r3.Vec {
	return r3.Scale(1.0/3.0, r3.Add(t[0], r3.Add(t[1], t[2])))
}

func buildBVHNode(tris [][3]r3.Vec, indices []int) *bvhNode {
	node := &bvhNode{bounds: emptyAABB()}
	for _, i := range indices {
		for _, p := range tris[i] {
			node.bounds = node.bounds.expand(p)
		}
	}

	if len(indices) <= maxTrianglesPerLeaf {
		node.tris = indices
		return node
	}

	// Split along the longest axis at the centroid median.
	extent := r3.Sub(node.bounds.max, node.bounds.min)
	axis := 0
	if extent.Y > extent.X && extent.Y > extent.Z {
		axis = 1
	} else if extent.Z > extent.X && extent.Z > extent.Y {
		axis = 2
	}
	sort.Slice(indices, func(i, j int) bool {
		return axisCoord(triangleCentroid(tris[indices[i]]), axis) <
			axisCoord(triangleCentroid(tris[indices[j]]), axis)
	})

	mid := len(indices) / 2
	node.left = buildBVHNode(tris, indices[:mid])
	node.right = buildBVHNode(tris, indices[mid:])
	return node
}

func axisCoord(v r3.Vec, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// rayHits appends the distances of every ray/triangle intersection
// beyond rayEpsilon.
func (b *bvh) rayHits(origin, dir r3.Vec, out []float64) []float64 {
	if b.root == nil {
		return out
	}
	invDir := r3.Vec{X: 1 / dir.X, Y: 1 / dir.Y, Z: 1 / dir.Z}
	stack := []*bvhNode{b.root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !node.bounds.intersectsRay(origin, invDir) {
			continue
		}
		if node.left == nil {
			for _, ti := range node.tris {
				if t, hit := rayTriangle(origin, dir, b.tris[ti]); hit && t > rayEpsilon {
					out = append(out, t)
				}
			}
			continue
		}
		stack = append(stack, node.left, node.right)
	}
	return out
}

// rayTriangle is the Moller-Trumbore intersection test, returning the
// ray parameter of the hit.
func rayTriangle(origin, dir r3.Vec, tri [3]r3.Vec) (float64, bool) {
	e1 := r3.Sub(tri[1], tri[0])
	e2 := r3.Sub(tri[2], tri[0])
	p := r3.Cross(dir, e2)
	det := r3.Dot(e1, p)
	if math.Abs(det) < 1e-12 {
		return 0, false // parallel or degenerate
	}
	inv := 1 / det
	s := r3.Sub(origin, tri[0])
	u := r3.Dot(s, p) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	q := r3.Cross(s, e1)
	v := r3.Dot(dir, q) * inv
	if v < 0 || u+v > 1 {
		return 0, false
	}
	t := r3.Dot(e2, q) * inv
	if t <= 0 {
		return 0, false
	}
	return t, true
}
