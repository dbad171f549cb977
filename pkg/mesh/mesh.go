// Package mesh defines the triangle buffer representation shared by all
// processing stages. All arrays are flat: positions and normals carry 3
// floats per vertex, UVs carry 2, indices carry 3 uint32s per triangle.
// A buffer without indices is triangle soup: every 3 consecutive
// vertices form a triangle.
package mesh

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Buffer is a triangle mesh in flat-array form.
type Buffer struct {
	Positions []float32 `json:"positions"` // [x0,y0,z0, x1,y1,z1, ...]
	Normals   []float32 `json:"normals"`   // [nx0,ny0,nz0, ...], optional
	UVs       []float32 `json:"uvs"`       // [u0,v0, ...], optional
	Indices   []uint32  `json:"indices"`   // [i0,i1,i2, ...], optional
}

// VertexCount returns the number of vertices.
func (b *Buffer) VertexCount() int {
	return len(b.Positions) / 3
}

// TriangleCount returns the number of triangles, honoring the
// triangle-soup convention when no index buffer is present.
func (b *Buffer) TriangleCount() int {
	if len(b.Indices) > 0 {
		return len(b.Indices) / 3
	}
	return len(b.Positions) / 9
}

// IsEmpty returns true if the buffer has no geometry.
func (b *Buffer) IsEmpty() bool {
	return len(b.Positions) == 0
}

// Indexed returns true if the buffer carries an index array.
func (b *Buffer) Indexed() bool {
	return len(b.Indices) > 0
}

// VertexIndex resolves the vertex index for corner c (0..2) of triangle t,
// honoring the triangle-soup convention.
func (b *Buffer) VertexIndex(t, c int) int {
	if len(b.Indices) > 0 {
		return int(b.Indices[t*3+c])
	}
	return t*3 + c
}

// Position returns vertex i as a float64 vector.
func (b *Buffer) Position(i int) r3.Vec {
	return r3.Vec{
		X: float64(b.Positions[i*3]),
		Y: float64(b.Positions[i*3+1]),
		Z: float64(b.Positions[i*3+2]),
	}
}

// SetPosition stores v into vertex i.
func (b *Buffer) SetPosition(i int, v r3.Vec) {
	b.Positions[i*3] = float32(v.X)
	b.Positions[i*3+1] = float32(v.Y)
	b.Positions[i*3+2] = float32(v.Z)
}

// Corners returns the three corner positions of triangle t.
func (b *Buffer) Corners(t int) (a, c, d r3.Vec) {
	return b.Position(b.VertexIndex(t, 0)),
		b.Position(b.VertexIndex(t, 1)),
		b.Position(b.VertexIndex(t, 2))
}

// Clone returns a deep copy of the buffer.
func (b *Buffer) Clone() *Buffer {
	out := &Buffer{}
	if b.Positions != nil {
		out.Positions = append([]float32(nil), b.Positions...)
	}
	if b.Normals != nil {
		out.Normals = append([]float32(nil), b.Normals...)
	}
	if b.UVs != nil {
		out.UVs = append([]float32(nil), b.UVs...)
	}
	if b.Indices != nil {
		out.Indices = append([]uint32(nil), b.Indices...)
	}
	return out
}

// EnsureUV synthesizes a zero-filled UV attribute if none is present.
// Boolean evaluation requires the attribute to exist, not its values.
func (b *Buffer) EnsureUV() {
	if len(b.UVs) == 0 {
		b.UVs = make([]float32, b.VertexCount()*2)
	}
}

// Bounds returns the axis-aligned bounding box. For an empty buffer both
// corners are the zero vector.
func (b *Buffer) Bounds() (min, max r3.Vec) {
	if b.IsEmpty() {
		return r3.Vec{}, r3.Vec{}
	}
	min = r3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	max = r3.Vec{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
	for i := 0; i < b.VertexCount(); i++ {
		p := b.Position(i)
		// NaN coordinates are skipped so a single bad vertex cannot
		// poison every downstream bounding-box decision.
		if p.X != p.X || p.Y != p.Y || p.Z != p.Z {
			continue
		}
		min.X = math.Min(min.X, p.X)
		min.Y = math.Min(min.Y, p.Y)
		min.Z = math.Min(min.Z, p.Z)
		max.X = math.Max(max.X, p.X)
		max.Y = math.Max(max.Y, p.Y)
		max.Z = math.Max(max.Z, p.Z)
	}
	if math.IsInf(min.X, 1) {
		return r3.Vec{}, r3.Vec{}
	}
	return min, max
}

// MaxExtent returns the largest bounding-box dimension.
func (b *Buffer) MaxExtent() float64 {
	min, max := b.Bounds()
	d := r3.Sub(max, min)
	return math.Max(d.X, math.Max(d.Y, d.Z))
}

// Concatenate appends the geometry of all buffers into one indexed
// buffer. This is the fast non-boolean union: coincident surfaces are
// kept as-is, including internal faces at intersections.
func Concatenate(buffers ...*Buffer) *Buffer {
	out := &Buffer{}
	hasUV := false
	for _, b := range buffers {
		if b != nil && len(b.UVs) > 0 {
			hasUV = true
		}
	}
	for _, b := range buffers {
		if b == nil || b.IsEmpty() {
			continue
		}
		base := uint32(out.VertexCount())
		out.Positions = append(out.Positions, b.Positions...)
		if hasUV {
			if len(b.UVs) > 0 {
				out.UVs = append(out.UVs, b.UVs...)
			} else {
				out.UVs = append(out.UVs, make([]float32, b.VertexCount()*2)...)
			}
		}
		if b.Indexed() {
			for _, idx := range b.Indices {
				out.Indices = append(out.Indices, base+idx)
			}
		} else {
			for i := 0; i < b.VertexCount(); i++ {
				out.Indices = append(out.Indices, base+uint32(i))
			}
		}
	}
	RecomputeNormals(out)
	return out
}
