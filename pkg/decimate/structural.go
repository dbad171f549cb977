package decimate

import "github.com/chazu/burl/pkg/mesh"

// Structural is the fast, quality-agnostic pre-pass. It only runs on
// very large inputs (above HighWater) and aims at the high-water mark
// rather than the final budget: its job is to make huge triangle soup
// tractable for the quality-aware stages, not to look good. Welding is
// the important part — soup where every triangle owns private vertices
// has no shared edges for any edge-collapse stage to work with.
type Structural struct {
	HighWater     int
	WeldTolerance float64
}

func (s *Structural) Name() string { return "structural-prepass" }

func (s *Structural) Simplify(b *mesh.Buffer, targetTriangles int) StageResult {
	original := b.TriangleCount()
	if original <= s.HighWater {
		// Nothing for the pre-pass to do; hand through unchanged.
		return StageResult{
			Success:           true,
			Mesh:              nil,
			OriginalTriangles: original,
			FinalTriangles:    original,
		}
	}

	welded := mesh.Weld(b, s.WeldTolerance)
	out := welded
	if welded.TriangleCount() > s.HighWater {
		cluster := &Clustering{}
		sr := cluster.Simplify(welded, s.HighWater)
		if sr.Mesh != nil {
			out = sr.Mesh
		}
	}

	final := out.TriangleCount()
	return StageResult{
		Success:           true,
		Mesh:              out,
		OriginalTriangles: original,
		FinalTriangles:    final,
		ReductionPercent:  100.0 * float64(original-final) / float64(original),
	}
}
