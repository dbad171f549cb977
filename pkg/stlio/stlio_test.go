package stlio

import (
	"bytes"
	"encoding/binary"
	"math"
	"path/filepath"
	"testing"

	"github.com/chazu/burl/pkg/mesh"
)

func cube() *mesh.Buffer {
	return &mesh.Buffer{
		Positions: []float32{
			-1, -1, -1, 1, -1, -1, 1, 1, -1, -1, 1, -1,
			-1, -1, 1, 1, -1, 1, 1, 1, 1, -1, 1, 1,
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

func TestRoundTrip(t *testing.T) {
	src := cube()
	var buf bytes.Buffer
	if err := Write(&buf, src); err != nil {
		t.Fatalf("Write: %v", err)
	}

	wantSize := 80 + 4 + 50*src.TriangleCount()
	if buf.Len() != wantSize {
		t.Errorf("stream size = %d, want %d", buf.Len(), wantSize)
	}

	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.TriangleCount() != src.TriangleCount() {
		t.Fatalf("TriangleCount = %d, want %d", got.TriangleCount(), src.TriangleCount())
	}
	if got.Indexed() {
		t.Error("STL import should come back as triangle soup")
	}
	for tri := 0; tri < src.TriangleCount(); tri++ {
		sa, sc, sd := src.Corners(tri)
		ga, gc, gd := got.Corners(tri)
		for _, pair := range [][2][3]float64{
			{{sa.X, sa.Y, sa.Z}, {ga.X, ga.Y, ga.Z}},
			{{sc.X, sc.Y, sc.Z}, {gc.X, gc.Y, gc.Z}},
			{{sd.X, sd.Y, sd.Z}, {gd.X, gd.Y, gd.Z}},
		} {
			if pair[0] != pair[1] {
				t.Fatalf("triangle %d corner mismatch: %v != %v", tri, pair[0], pair[1])
			}
		}
	}
}

func TestWrittenNormalsAreUnitLength(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, cube()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	for v := 0; v < got.VertexCount(); v++ {
		nx := float64(got.Normals[v*3])
		ny := float64(got.Normals[v*3+1])
		nz := float64(got.Normals[v*3+2])
		l := math.Sqrt(nx*nx + ny*ny + nz*nz)
		if math.Abs(l-1) > 1e-5 {
			t.Fatalf("normal %d has length %v", v, l)
		}
	}
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cube.stl")
	if err := WriteFile(path, cube()); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got.TriangleCount() != 12 {
		t.Errorf("TriangleCount = %d, want 12", got.TriangleCount())
	}
}

func TestReadRejectsTruncatedHeader(t *testing.T) {
	if _, err := Read(bytes.NewReader(make([]byte, 10))); err == nil {
		t.Error("expected error for a truncated header")
	}
}

func TestReadRejectsImplausibleCount(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(make([]byte, 80))
	binary.Write(&buf, binary.LittleEndian, uint32(1<<30)) // ASCII "soli" would also land here
	if _, err := Read(&buf); err == nil {
		t.Error("expected error for an implausible triangle count")
	}
}

func TestReadCapsPreallocationForForgedCount(t *testing.T) {
	// A plausible-looking count on a near-empty stream must fail on the
	// missing facets without reserving gigabytes up front.
	var buf bytes.Buffer
	buf.Write(make([]byte, 80))
	binary.Write(&buf, binary.LittleEndian, uint32(1<<24))
	buf.Write(make([]byte, 50))
	if _, err := Read(&buf); err == nil {
		t.Error("expected error for a forged triangle count")
	}
}

func TestReadRejectsTruncatedFacet(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(make([]byte, 80))
	binary.Write(&buf, binary.LittleEndian, uint32(2))
	buf.Write(make([]byte, 50)) // only one of the two facets
	if _, err := Read(&buf); err == nil {
		t.Error("expected error for a truncated facet stream")
	}
}
