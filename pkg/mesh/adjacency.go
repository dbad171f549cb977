package mesh

import (
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

// GroupTolerance is the quantization used to cluster co-located vertices
// into groups (6 decimal places). Imported meshes frequently arrive as
// triangle soup with duplicate vertices at shared positions; adjacency
// must be computed between position groups, not raw indices, or every
// seam becomes a fake boundary.
const GroupTolerance = 1e-6

// VertexGroup is a set of co-located vertex indices sharing one logical
// position.
type VertexGroup struct {
	Vertices []int
	Position r3.Vec
}

// Adjacency is the group-level adjacency graph of a buffer. It is built
// once per smoothing or decimation invocation and discarded afterwards.
type Adjacency struct {
	Groups    []VertexGroup
	GroupOf   []int   // vertex index -> group index
	Neighbors [][]int // group index -> sorted neighboring group indices
}

// BuildAdjacency groups vertices by quantized position and derives
// group-level adjacency from shared triangle edges.
func BuildAdjacency(b *Buffer) *Adjacency {
	n := b.VertexCount()
	adj := &Adjacency{GroupOf: make([]int, n)}

	byKey := make(map[string]int, n)
	for i := 0; i < n; i++ {
		key := quantKey(b.Positions[i*3], b.Positions[i*3+1], b.Positions[i*3+2], GroupTolerance)
		g, ok := byKey[key]
		if !ok {
			g = len(adj.Groups)
			byKey[key] = g
			adj.Groups = append(adj.Groups, VertexGroup{Position: b.Position(i)})
		}
		adj.GroupOf[i] = g
		adj.Groups[g].Vertices = append(adj.Groups[g].Vertices, i)
	}

	neighborSets := make([]map[int]struct{}, len(adj.Groups))
	link := func(a, c int) {
		if a == c {
			return
		}
		if neighborSets[a] == nil {
			neighborSets[a] = make(map[int]struct{})
		}
		neighborSets[a][c] = struct{}{}
	}

	for t := 0; t < b.TriangleCount(); t++ {
		g0 := adj.GroupOf[b.VertexIndex(t, 0)]
		g1 := adj.GroupOf[b.VertexIndex(t, 1)]
		g2 := adj.GroupOf[b.VertexIndex(t, 2)]
		link(g0, g1)
		link(g1, g0)
		link(g1, g2)
		link(g2, g1)
		link(g2, g0)
		link(g0, g2)
	}

	adj.Neighbors = make([][]int, len(adj.Groups))
	for g, set := range neighborSets {
		if len(set) == 0 {
			continue
		}
		list := make([]int, 0, len(set))
		for ng := range set {
			list = append(list, ng)
		}
		sort.Ints(list)
		adj.Neighbors[g] = list
	}

	return adj
}
