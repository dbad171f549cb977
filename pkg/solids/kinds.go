package solids

import (
	"fmt"

	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/burl/pkg/mesh"
)

// Compile-time interface checks.
var (
	_ Source = Cylindrical{}
	_ Source = Rectangular{}
	_ Source = Conical{}
	_ Source = Custom{}
)

// Cylindrical is a circular support solid.
type Cylindrical struct {
	Radius float64
}

func (c Cylindrical) Kind() Kind { return KindCylindrical }

func (c Cylindrical) body(height float64) (sdf.SDF3, error) {
	s, err := sdf.Cylinder3D(height, c.Radius, 0)
	if err != nil {
		return nil, fmt.Errorf("solids: cylinder body: %w", err)
	}
	return s, nil
}

func (c Cylindrical) BodyGeometry(height float64) (*mesh.Buffer, error) {
	s, err := c.body(height)
	if err != nil {
		return nil, err
	}
	return ToMesh(s)
}

func (c Cylindrical) FilletGeometry(height, filletRadius float64) (*mesh.Buffer, error) {
	body, err := c.body(height)
	if err != nil {
		return nil, err
	}
	ring, err := fillet(body, height, filletRadius)
	if err != nil {
		return nil, err
	}
	return ToMesh(ring)
}

func (c Cylindrical) BottomCap(thickness float64) (*mesh.Buffer, error) {
	return c.cap(thickness, -1)
}

func (c Cylindrical) TopCap(thickness float64) (*mesh.Buffer, error) {
	return c.cap(thickness, 1)
}

func (c Cylindrical) cap(thickness, sign float64) (*mesh.Buffer, error) {
	s, err := sdf.Cylinder3D(thickness, c.Radius, 0)
	if err != nil {
		return nil, fmt.Errorf("solids: cylinder cap: %w", err)
	}
	return ToMesh(sdf.Transform3D(s, sdf.Translate3d(v3.Vec{Z: sign * thickness / 2})))
}

// Rectangular is a box support solid with optionally rounded vertical
// corners.
type Rectangular struct {
	Width        float64
	Depth        float64
	CornerRadius float64
}

func (r Rectangular) Kind() Kind { return KindRectangular }

func (r Rectangular) body(height float64) (sdf.SDF3, error) {
	profile := sdf.Box2D(v2.Vec{X: r.Width, Y: r.Depth}, r.CornerRadius)
	return sdf.Extrude3D(profile, height), nil
}

func (r Rectangular) BodyGeometry(height float64) (*mesh.Buffer, error) {
	s, err := r.body(height)
	if err != nil {
		return nil, err
	}
	return ToMesh(s)
}

func (r Rectangular) FilletGeometry(height, filletRadius float64) (*mesh.Buffer, error) {
	body, err := r.body(height)
	if err != nil {
		return nil, err
	}
	ring, err := fillet(body, height, filletRadius)
	if err != nil {
		return nil, err
	}
	return ToMesh(ring)
}

func (r Rectangular) BottomCap(thickness float64) (*mesh.Buffer, error) {
	return r.cap(thickness, -1)
}

func (r Rectangular) TopCap(thickness float64) (*mesh.Buffer, error) {
	return r.cap(thickness, 1)
}

func (r Rectangular) cap(thickness, sign float64) (*mesh.Buffer, error) {
	s, err := r.body(thickness)
	if err != nil {
		return nil, err
	}
	return ToMesh(sdf.Transform3D(s, sdf.Translate3d(v3.Vec{Z: sign * thickness / 2})))
}

// Conical is a tapered circular support solid.
type Conical struct {
	BaseRadius float64
	TopRadius  float64
}

func (c Conical) Kind() Kind { return KindConical }

func (c Conical) body(height float64) (sdf.SDF3, error) {
	s, err := sdf.Cone3D(height, c.BaseRadius, c.TopRadius, 0)
	if err != nil {
		return nil, fmt.Errorf("solids: cone body: %w", err)
	}
	return s, nil
}

func (c Conical) BodyGeometry(height float64) (*mesh.Buffer, error) {
	s, err := c.body(height)
	if err != nil {
		return nil, err
	}
	return ToMesh(s)
}

func (c Conical) FilletGeometry(height, filletRadius float64) (*mesh.Buffer, error) {
	body, err := c.body(height)
	if err != nil {
		return nil, err
	}
	ring, err := fillet(body, height, filletRadius)
	if err != nil {
		return nil, err
	}
	return ToMesh(ring)
}

func (c Conical) BottomCap(thickness float64) (*mesh.Buffer, error) {
	return Cylindrical{Radius: c.BaseRadius}.BottomCap(thickness)
}

func (c Conical) TopCap(thickness float64) (*mesh.Buffer, error) {
	return Cylindrical{Radius: c.TopRadius}.TopCap(thickness)
}

// Custom is an arbitrary-polygon support solid.
type Custom struct {
	Polygon      [][2]float64 // footprint vertices, counterclockwise
	CornerRadius float64
}

func (c Custom) Kind() Kind { return KindCustom }

func (c Custom) body(height float64) (sdf.SDF3, error) {
	profile, err := polygonProfile(c.Polygon, c.CornerRadius)
	if err != nil {
		return nil, err
	}
	return sdf.Extrude3D(profile, height), nil
}

func (c Custom) BodyGeometry(height float64) (*mesh.Buffer, error) {
	s, err := c.body(height)
	if err != nil {
		return nil, err
	}
	return ToMesh(s)
}

func (c Custom) FilletGeometry(height, filletRadius float64) (*mesh.Buffer, error) {
	body, err := c.body(height)
	if err != nil {
		return nil, err
	}
	ring, err := fillet(body, height, filletRadius)
	if err != nil {
		return nil, err
	}
	return ToMesh(ring)
}

func (c Custom) BottomCap(thickness float64) (*mesh.Buffer, error) {
	return c.cap(thickness, -1)
}

func (c Custom) TopCap(thickness float64) (*mesh.Buffer, error) {
	return c.cap(thickness, 1)
}

func (c Custom) cap(thickness, sign float64) (*mesh.Buffer, error) {
	s, err := c.body(thickness)
	if err != nil {
		return nil, err
	}
	return ToMesh(sdf.Transform3D(s, sdf.Translate3d(v3.Vec{Z: sign * thickness / 2})))
}
