package solids

import (
	"math"
	"testing"

	"github.com/chazu/burl/pkg/mesh"
	"github.com/chazu/burl/pkg/topology"
)

func TestBodyGeometryAllKinds(t *testing.T) {
	tests := []struct {
		name   string
		source Source
		kind   Kind
		volume float64 // analytic, height 4
	}{
		{"cylindrical", Cylindrical{Radius: 2}, KindCylindrical, math.Pi * 4 * 4},
		{"rectangular", Rectangular{Width: 3, Depth: 2}, KindRectangular, 3 * 2 * 4},
		{"conical", Conical{BaseRadius: 2, TopRadius: 1}, KindConical, math.Pi * 4 / 3 * (4 + 2 + 1)},
		{"custom", Custom{Polygon: [][2]float64{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}}, KindCustom, 2 * 2 * 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.source.Kind() != tt.kind {
				t.Errorf("Kind() = %v, want %v", tt.source.Kind(), tt.kind)
			}
			b, err := tt.source.BodyGeometry(4)
			if err != nil {
				t.Fatalf("BodyGeometry: %v", err)
			}
			if b.IsEmpty() {
				t.Fatal("body mesh is empty")
			}
			got := mesh.SignedVolume(b)
			if math.Abs(got-tt.volume) > 0.15*tt.volume {
				t.Errorf("SignedVolume = %v, want %v within 15%%", got, tt.volume)
			}
		})
	}
}

func TestBodyGeometryIsWatertight(t *testing.T) {
	b, err := Cylindrical{Radius: 2}.BodyGeometry(4)
	if err != nil {
		t.Fatalf("BodyGeometry: %v", err)
	}
	report := topology.Analyze(b)
	if report.BoundaryEdgeCount != 0 {
		t.Errorf("BoundaryEdgeCount = %d, want 0", report.BoundaryEdgeCount)
	}
	if report.NonManifoldEdgeCount != 0 {
		t.Errorf("NonManifoldEdgeCount = %d, want 0", report.NonManifoldEdgeCount)
	}
}

func TestFilletGeometry(t *testing.T) {
	b, err := Cylindrical{Radius: 1}.FilletGeometry(4, 0.5)
	if err != nil {
		t.Fatalf("FilletGeometry: %v", err)
	}
	if b.IsEmpty() {
		t.Fatal("fillet mesh is empty")
	}
	// The skirt hugs the base: nothing above the lower quarter.
	_, max := b.Bounds()
	if max.Z > -4.0/4+0.1 {
		t.Errorf("fillet reaches z=%v, want clipped to the lower quarter", max.Z)
	}
	// And it is a ring around the body, wider than the body itself.
	if max.X < 1 {
		t.Errorf("fillet max x = %v, want > body radius 1", max.X)
	}
}

func TestFilletRadiusMustBePositive(t *testing.T) {
	if _, err := (Cylindrical{Radius: 1}).FilletGeometry(4, 0); err == nil {
		t.Error("expected error for zero fillet radius")
	}
	if _, err := (Rectangular{Width: 1, Depth: 1}).FilletGeometry(4, -0.5); err == nil {
		t.Error("expected error for negative fillet radius")
	}
}

func TestCapsSitAtTheEnds(t *testing.T) {
	src := Cylindrical{Radius: 1}

	bottom, err := src.BottomCap(0.5)
	if err != nil {
		t.Fatalf("BottomCap: %v", err)
	}
	min, max := bottom.Bounds()
	if max.Z > 0.05 || min.Z < -0.55 {
		t.Errorf("bottom cap spans z [%v, %v], want about [-0.5, 0]", min.Z, max.Z)
	}

	top, err := src.TopCap(0.5)
	if err != nil {
		t.Fatalf("TopCap: %v", err)
	}
	min, max = top.Bounds()
	if min.Z < -0.05 || max.Z > 0.55 {
		t.Errorf("top cap spans z [%v, %v], want about [0, 0.5]", min.Z, max.Z)
	}
}

func TestCustomPolygonTooFewPoints(t *testing.T) {
	c := Custom{Polygon: [][2]float64{{0, 0}, {1, 0}}}
	if _, err := c.BodyGeometry(4); err == nil {
		t.Error("expected error for a 2-point polygon")
	}
}

func TestKindString(t *testing.T) {
	tests := []struct {
		k    Kind
		want string
	}{
		{KindCylindrical, "cylindrical"},
		{KindRectangular, "rectangular"},
		{KindConical, "conical"},
		{KindCustom, "custom"},
		{Kind(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.k.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.k, got, tt.want)
		}
	}
}
