// Package stlio reads and writes binary STL. Imported files arrive as
// triangle soup (every facet owns its three vertices); downstream
// stages weld as needed.
package stlio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/burl/pkg/mesh"
)

const headerSize = 80

// stlFacet is the 50-byte on-disk facet record.
type stlFacet struct {
	Normal   [3]float32
	Vertices [3][3]float32
	Attr     uint16
}

// Read parses a binary STL stream into a triangle-soup buffer.
func Read(r io.Reader) (*mesh.Buffer, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("stlio: short header: %w", err)
	}
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("stlio: triangle count: %w", err)
	}
	if count > 1<<28 {
		return nil, fmt.Errorf("stlio: implausible triangle count %d (ASCII STL is not supported)", count)
	}

	// The header count is untrusted until the facets actually arrive;
	// cap the reservation and let append grow past it.
	alloc := int(count)
	if alloc > 1<<20 {
		alloc = 1 << 20
	}
	out := &mesh.Buffer{
		Positions: make([]float32, 0, alloc*9),
		Normals:   make([]float32, 0, alloc*9),
	}
	var facet stlFacet
	for i := uint32(0); i < count; i++ {
		if err := binary.Read(r, binary.LittleEndian, &facet); err != nil {
			return nil, fmt.Errorf("stlio: facet %d: %w", i, err)
		}
		for _, v := range facet.Vertices {
			out.Positions = append(out.Positions, v[0], v[1], v[2])
			out.Normals = append(out.Normals, facet.Normal[0], facet.Normal[1], facet.Normal[2])
		}
	}
	return out, nil
}

// ReadFile reads a binary STL file.
func ReadFile(path string) (*mesh.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("stlio: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Write emits the buffer as binary STL with per-facet normals computed
// from the triangle winding.
func Write(w io.Writer, b *mesh.Buffer) error {
	var header [headerSize]byte
	copy(header[:], "burl binary STL")
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("stlio: header: %w", err)
	}
	count := uint32(b.TriangleCount())
	if err := binary.Write(w, binary.LittleEndian, count); err != nil {
		return fmt.Errorf("stlio: triangle count: %w", err)
	}

	var facet stlFacet
	for t := 0; t < b.TriangleCount(); t++ {
		a, c, d := b.Corners(t)
		n := r3.Cross(r3.Sub(c, a), r3.Sub(d, a))
		if l := r3.Norm(n); l > 0 {
			n = r3.Scale(1/l, n)
		}
		facet.Normal = [3]float32{float32(n.X), float32(n.Y), float32(n.Z)}
		for corner := 0; corner < 3; corner++ {
			i := b.VertexIndex(t, corner)
			facet.Vertices[corner] = [3]float32{
				b.Positions[i*3], b.Positions[i*3+1], b.Positions[i*3+2],
			}
		}
		if err := binary.Write(w, binary.LittleEndian, &facet); err != nil {
			return fmt.Errorf("stlio: facet %d: %w", t, err)
		}
	}
	return nil
}

// WriteFile writes the buffer to path as binary STL.
func WriteFile(path string, b *mesh.Buffer) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("stlio: %w", err)
	}
	if err := Write(f, b); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
