package topology

import (
	"testing"

	"github.com/chazu/burl/pkg/mesh"
)

// cube builds a closed, indexed 2x2x2 cube: 8 vertices, 12 triangles.
func cube() *mesh.Buffer {
	return &mesh.Buffer{
		Positions: []float32{
			-1, -1, -1,
			1, -1, -1,
			1, 1, -1,
			-1, 1, -1,
			-1, -1, 1,
			1, -1, 1,
			1, 1, 1,
			-1, 1, 1,
		},
		Indices: []uint32{
			0, 2, 1, 0, 3, 2,
			4, 5, 6, 4, 6, 7,
			0, 1, 5, 0, 5, 4,
			2, 3, 7, 2, 7, 6,
			1, 2, 6, 1, 6, 5,
			0, 4, 7, 0, 7, 3,
		},
	}
}

func TestAnalyzeClosedCube(t *testing.T) {
	report := Analyze(cube())

	if !report.IsManifold {
		t.Error("IsManifold = false for a closed cube, want true")
	}
	if report.TriangleCount != 12 {
		t.Errorf("TriangleCount = %d, want 12", report.TriangleCount)
	}
	if report.VertexCount != 8 {
		t.Errorf("VertexCount = %d, want 8", report.VertexCount)
	}
	if report.BoundaryEdgeCount != 0 {
		t.Errorf("BoundaryEdgeCount = %d, want 0", report.BoundaryEdgeCount)
	}
	if report.NonManifoldEdgeCount != 0 {
		t.Errorf("NonManifoldEdgeCount = %d, want 0", report.NonManifoldEdgeCount)
	}
	if report.DegenerateTriangleCount != 0 {
		t.Errorf("DegenerateTriangleCount = %d, want 0", report.DegenerateTriangleCount)
	}
}

func TestAnalyzeDanglingTriangle(t *testing.T) {
	b := &mesh.Buffer{
		Positions: []float32{0, 0, 0, 1, 0, 0, 0, 1, 0},
		Indices:   []uint32{0, 1, 2},
	}
	report := Analyze(b)

	if report.BoundaryEdgeCount != 3 {
		t.Errorf("BoundaryEdgeCount = %d, want 3 (every edge unshared)", report.BoundaryEdgeCount)
	}
	if report.IsManifold {
		t.Error("IsManifold = true for an open triangle, want false")
	}
}

func TestAnalyzeNonManifoldEdge(t *testing.T) {
	// Three triangles fanning off the same edge 0-1.
	b := &mesh.Buffer{
		Positions: []float32{
			0, 0, 0,
			1, 0, 0,
			0, 1, 0,
			0, 0, 1,
			0, -1, 0,
		},
		Indices: []uint32{0, 1, 2, 0, 1, 3, 0, 1, 4},
	}
	report := Analyze(b)

	if report.NonManifoldEdgeCount != 1 {
		t.Errorf("NonManifoldEdgeCount = %d, want 1", report.NonManifoldEdgeCount)
	}
	if report.IsManifold {
		t.Error("IsManifold = true with a triple-shared edge, want false")
	}
}

func TestAnalyzeDegenerateTriangles(t *testing.T) {
	tests := []struct {
		name      string
		positions []float32
		want      int
	}{
		{
			"zero area collinear",
			[]float32{0, 0, 0, 1, 0, 0, 2, 0, 0},
			1,
		},
		{
			"repeated vertex",
			[]float32{0, 0, 0, 0, 0, 0, 1, 1, 1},
			1,
		},
		{
			"healthy triangle",
			[]float32{0, 0, 0, 1, 0, 0, 0, 1, 0},
			0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &mesh.Buffer{Positions: tt.positions}
			report := Analyze(b)
			if report.DegenerateTriangleCount != tt.want {
				t.Errorf("DegenerateTriangleCount = %d, want %d",
					report.DegenerateTriangleCount, tt.want)
			}
		})
	}
}

func TestAnalyzeBoundingBox(t *testing.T) {
	report := Analyze(cube())
	if report.MinBound.X != -1 || report.MaxBound.Z != 1 {
		t.Errorf("bounds = %v..%v, want -1..1 per axis", report.MinBound, report.MaxBound)
	}
}
