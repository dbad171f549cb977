package decimate

import (
	"container/heap"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/burl/pkg/mesh"
)

// Quadric is the quality-aware simplifier: iterative edge collapse
// ordered by a quadric error metric. Each vertex accumulates the squared
// plane distances of its incident faces; collapsing the cheapest edge
// first removes geometry where the surface is flattest.
type Quadric struct{}

func (q *Quadric) Name() string { return "quadric-collapse" }

// Simplify welds the input (edge collapse needs shared vertices) and
// collapses edges until the triangle count reaches the clamped ratio
// target. Fails, with the best mesh achieved, when no collapsible edges
// remain before the budget is met.
func (q *Quadric) Simplify(b *mesh.Buffer, targetTriangles int) StageResult {
	original := b.TriangleCount()

	w := mesh.Weld(b, mesh.GroupTolerance)
	current := w.TriangleCount()
	if current == 0 {
		return StageResult{
			Success:           false,
			OriginalTriangles: original,
			FinalTriangles:    original,
			Reason:            "welding produced no usable triangles",
		}
	}

	ratio := clampRatio(float64(targetTriangles)/float64(current), 0.01, 0.99)
	goal := int(float64(current) * ratio)
	if goal < 1 {
		goal = 1
	}

	cs := newCollapseState(w)
	cs.run(goal)
	out := cs.rebuild()
	final := out.TriangleCount()

	sr := StageResult{
		Success:           final <= targetTriangles,
		Mesh:              out,
		OriginalTriangles: original,
		FinalTriangles:    final,
		ReductionPercent:  100.0 * float64(original-final) / float64(original),
	}
	if !sr.Success {
		sr.Reason = fmt.Sprintf("ran out of collapsible edges at %d triangles (target %d)", final, targetTriangles)
	}
	return sr
}

// qmat is a symmetric 4x4 error quadric stored as its 10 unique
// coefficients: [a2 ab ac ad b2 bc bd c2 cd d2] for the plane
// (a,b,c,d).
type qmat [10]float64

func (q *qmat) add(o *qmat) {
	for i := range q {
		q[i] += o[i]
	}
}

// eval computes v^T Q v for the homogeneous point (v, 1).
func (q *qmat) eval(v r3.Vec) float64 {
	x, y, z := v.X, v.Y, v.Z
	return q[0]*x*x + 2*q[1]*x*y + 2*q[2]*x*z + 2*q[3]*x +
		q[4]*y*y + 2*q[5]*y*z + 2*q[6]*y +
		q[7]*z*z + 2*q[8]*z + q[9]
}

// planeQuadric builds the quadric of the plane through a, b, c. Returns
// false for degenerate or non-finite triangles.
func planeQuadric(a, b, c r3.Vec) (qmat, bool) {
	n := r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
	l := r3.Norm(n)
	if !(l > 1e-12) { // catches NaN as well as zero area
		return qmat{}, false
	}
	n = r3.Scale(1/l, n)
	d := -r3.Dot(n, a)
	return qmat{
		n.X * n.X, n.X * n.Y, n.X * n.Z, n.X * d,
		n.Y * n.Y, n.Y * n.Z, n.Y * d,
		n.Z * n.Z, n.Z * d,
		d * d,
	}, true
}

// candidate is a potential edge collapse. stamp snapshots the endpoint
// generations at push time; a mismatch on pop means the entry is stale.
type candidate struct {
	cost  float64
	a, b  int
	pos   r3.Vec
	stamp uint64
}

type candHeap []candidate

func (h candHeap) Len() int            { return len(h) }
func (h candHeap) Less(i, j int) bool  { return h[i].cost < h[j].cost }
func (h candHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *candHeap) Push(x interface{}) { *h = append(*h, x.(candidate)) }
func (h *candHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// collapseState holds the mutable mesh connectivity during a collapse
// run. Vertices merge through a union-find; faces die when two of their
// corners resolve to the same root.
type collapseState struct {
	pos        []r3.Vec
	quadrics   []qmat
	parent     []int
	gen        []uint64
	faces      [][3]int
	faceAlive  []bool
	vertFaces  [][]int
	aliveFaces int
	heap       candHeap
}

func newCollapseState(b *mesh.Buffer) *collapseState {
	nv := b.VertexCount()
	nf := b.TriangleCount()
	cs := &collapseState{
		pos:        make([]r3.Vec, nv),
		quadrics:   make([]qmat, nv),
		parent:     make([]int, nv),
		gen:        make([]uint64, nv),
		faces:      make([][3]int, nf),
		faceAlive:  make([]bool, nf),
		vertFaces:  make([][]int, nv),
		aliveFaces: 0,
	}
	for i := 0; i < nv; i++ {
		cs.pos[i] = b.Position(i)
		cs.parent[i] = i
	}
	for t := 0; t < nf; t++ {
		f := [3]int{b.VertexIndex(t, 0), b.VertexIndex(t, 1), b.VertexIndex(t, 2)}
		cs.faces[t] = f
		if f[0] == f[1] || f[1] == f[2] || f[0] == f[2] {
			continue
		}
		cs.faceAlive[t] = true
		cs.aliveFaces++
		for _, v := range f {
			cs.vertFaces[v] = append(cs.vertFaces[v], t)
		}
		if pq, ok := planeQuadric(cs.pos[f[0]], cs.pos[f[1]], cs.pos[f[2]]); ok {
			for _, v := range f {
				cs.quadrics[v].add(&pq)
			}
		}
	}
	return cs
}

func (cs *collapseState) find(i int) int {
	for cs.parent[i] != i {
		cs.parent[i] = cs.parent[cs.parent[i]]
		i = cs.parent[i]
	}
	return i
}

// pushEdge queues a collapse candidate for the edge (a, b), placing the
// merged vertex at whichever of the endpoints or the midpoint minimizes
// the combined quadric error. Solving the full 3x3 system for the
// optimal point buys little at these budgets and is numerically touchy
// near flat regions.
func (cs *collapseState) pushEdge(a, b int) {
	combined := cs.quadrics[a]
	combined.add(&cs.quadrics[b])

	mid := r3.Scale(0.5, r3.Add(cs.pos[a], cs.pos[b]))
	best := cs.pos[a]
	bestCost := combined.eval(cs.pos[a])
	if c := combined.eval(cs.pos[b]); c < bestCost {
		best, bestCost = cs.pos[b], c
	}
	if c := combined.eval(mid); c < bestCost {
		best, bestCost = mid, c
	}
	if math.IsNaN(bestCost) {
		bestCost = math.Inf(1)
	}

	heap.Push(&cs.heap, candidate{
		cost:  bestCost,
		a:     a,
		b:     b,
		pos:   best,
		stamp: cs.gen[a] + cs.gen[b],
	})
}

// seedHeap queues every unique live edge.
func (cs *collapseState) seedHeap() {
	seen := make(map[[2]int]struct{}, cs.aliveFaces*3/2)
	for t, f := range cs.faces {
		if !cs.faceAlive[t] {
			continue
		}
		for e := 0; e < 3; e++ {
			a, b := f[e], f[(e+1)%3]
			if a > b {
				a, b = b, a
			}
			key := [2]int{a, b}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			cs.pushEdge(a, b)
		}
	}
}

func (cs *collapseState) run(goalFaces int) {
	cs.seedHeap()
	for cs.heap.Len() > 0 && cs.aliveFaces > goalFaces {
		c := heap.Pop(&cs.heap).(candidate)
		a, b := cs.find(c.a), cs.find(c.b)
		if a == b {
			continue
		}
		if c.stamp != cs.gen[a]+cs.gen[b] {
			continue // stale: an endpoint collapsed since this was pushed
		}
		cs.collapse(a, b, c.pos)
	}
}

// collapse merges b into a at position p, kills faces that lost an edge,
// and re-queues the edges around the survivor.
func (cs *collapseState) collapse(a, b int, p r3.Vec) {
	cs.parent[b] = a
	cs.pos[a] = p
	cs.quadrics[a].add(&cs.quadrics[b])
	cs.gen[a]++
	cs.gen[b]++

	for _, t := range cs.vertFaces[b] {
		if !cs.faceAlive[t] {
			continue
		}
		f := cs.faces[t]
		r0, r1, r2 := cs.find(f[0]), cs.find(f[1]), cs.find(f[2])
		if r0 == r1 || r1 == r2 || r0 == r2 {
			cs.faceAlive[t] = false
			cs.aliveFaces--
			continue
		}
		cs.vertFaces[a] = append(cs.vertFaces[a], t)
	}
	cs.vertFaces[b] = nil

	// Compact the survivor's face list and gather its live neighbors.
	live := cs.vertFaces[a][:0]
	neighbors := make(map[int]struct{})
	for _, t := range cs.vertFaces[a] {
		if !cs.faceAlive[t] {
			continue
		}
		f := cs.faces[t]
		r0, r1, r2 := cs.find(f[0]), cs.find(f[1]), cs.find(f[2])
		if r0 != a && r1 != a && r2 != a {
			continue // face migrated away entirely
		}
		live = append(live, t)
		for _, r := range [3]int{r0, r1, r2} {
			if r != a {
				neighbors[r] = struct{}{}
			}
		}
	}
	cs.vertFaces[a] = live

	for nb := range neighbors {
		cs.pushEdge(a, nb)
	}
}

// rebuild extracts the surviving triangles into a fresh indexed buffer.
func (cs *collapseState) rebuild() *mesh.Buffer {
	out := &mesh.Buffer{}
	remap := make(map[int]uint32)
	resolve := func(r int) uint32 {
		if idx, ok := remap[r]; ok {
			return idx
		}
		idx := uint32(out.VertexCount())
		p := cs.pos[r]
		out.Positions = append(out.Positions, float32(p.X), float32(p.Y), float32(p.Z))
		remap[r] = idx
		return idx
	}
	for t, f := range cs.faces {
		if !cs.faceAlive[t] {
			continue
		}
		r0, r1, r2 := cs.find(f[0]), cs.find(f[1]), cs.find(f[2])
		if r0 == r1 || r1 == r2 || r0 == r2 {
			continue
		}
		out.Indices = append(out.Indices, resolve(r0), resolve(r1), resolve(r2))
	}
	mesh.RecomputeNormals(out)
	return out
}
