// Package solids generates support-solid geometry (bodies, fillets,
// caps) for the CSG stage. Shapes are a closed set of tagged variants —
// cylindrical, rectangular, conical, custom polygon — behind one Source
// interface, so geometry generation, CSG preparation, and callers never
// branch on a shape's concrete type.
//
// Solids are modeled as SDFs with the deadsy/sdfx library and
// tessellated to mesh buffers with marching cubes. All solids are
// centered at the origin; callers place them with a brush transform.
package solids

import (
	"fmt"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/burl/pkg/mesh"
)

// MeshCells controls marching cubes tessellation resolution.
const MeshCells = 96

// Kind tags the shape variants.
type Kind int

const (
	KindCylindrical Kind = iota
	KindRectangular
	KindConical
	KindCustom
)

func (k Kind) String() string {
	switch k {
	case KindCylindrical:
		return "cylindrical"
	case KindRectangular:
		return "rectangular"
	case KindConical:
		return "conical"
	case KindCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// Source generates the geometry pieces of one support solid.
type Source interface {
	Kind() Kind
	// BodyGeometry is the main solid, extruded/swept to height.
	BodyGeometry(height float64) (*mesh.Buffer, error)
	// FilletGeometry is the rounded skirt around the body's base.
	FilletGeometry(height, filletRadius float64) (*mesh.Buffer, error)
	// BottomCap and TopCap close the body at its ends.
	BottomCap(thickness float64) (*mesh.Buffer, error)
	TopCap(thickness float64) (*mesh.Buffer, error)
}

// ToMesh tessellates an SDF into an indexed mesh buffer using marching
// cubes. Marching cubes emits one closed triangle shell, so the result
// is always watertight.
func ToMesh(s sdf.SDF3) (*mesh.Buffer, error) {
	if s == nil {
		return nil, fmt.Errorf("solids: nil SDF")
	}
	renderer := render.NewMarchingCubesUniform(MeshCells)
	triangles := render.ToTriangles(s, renderer)
	if len(triangles) == 0 {
		return nil, fmt.Errorf("solids: tessellation produced no triangles")
	}

	soup := &mesh.Buffer{}
	for _, tri := range triangles {
		for j := 0; j < 3; j++ {
			v := tri[j]
			soup.Positions = append(soup.Positions,
				float32(v.X), float32(v.Y), float32(v.Z))
		}
	}
	return mesh.Weld(soup, 1e-6), nil
}

// fillet derives the base skirt shared by every variant: the body
// expanded by the fillet radius, minus the body itself, clipped to the
// lower quarter of the height.
func fillet(body sdf.SDF3, height, filletRadius float64) (sdf.SDF3, error) {
	if filletRadius <= 0 {
		return nil, fmt.Errorf("solids: fillet radius must be positive, got %g", filletRadius)
	}
	expanded := sdf.Offset3D(body, filletRadius)
	ring := sdf.Difference3D(expanded, body)
	// Solids extrude along +Z (sdfx convention); the skirt keeps only
	// the lower quarter of the height.
	clip, err := sdf.Box3D(v3.Vec{X: 1e9, Y: 1e9, Z: height / 2}, 0)
	if err != nil {
		return nil, fmt.Errorf("solids: fillet clip: %w", err)
	}
	clip = sdf.Transform3D(clip, sdf.Translate3d(v3.Vec{Z: -height / 2}))
	return sdf.Intersect3D(ring, clip), nil
}

// polygonProfile builds the 2D footprint for the Custom variant,
// rounding corners with an outward offset when requested.
func polygonProfile(points [][2]float64, cornerRadius float64) (sdf.SDF2, error) {
	if len(points) < 3 {
		return nil, fmt.Errorf("solids: custom polygon needs at least 3 points, got %d", len(points))
	}
	vs := make([]v2.Vec, len(points))
	for i, p := range points {
		vs[i] = v2.Vec{X: p[0], Y: p[1]}
	}
	profile, err := sdf.Polygon2D(vs)
	if err != nil {
		return nil, fmt.Errorf("solids: polygon: %w", err)
	}
	if cornerRadius > 0 {
		profile = sdf.Offset2D(profile, cornerRadius)
	}
	return profile, nil
}
