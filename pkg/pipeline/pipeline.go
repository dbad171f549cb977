// Package pipeline drives a mesh through the full processing sequence:
// topology analysis, optional repair, budget-driven decimation, and
// smoothing. Every stage prefers returning a best effort with an
// explanation over failing; expected defects in the input never surface
// as errors.
package pipeline

import (
	"fmt"

	"github.com/chazu/burl/pkg/decimate"
	"github.com/chazu/burl/pkg/mesh"
	"github.com/chazu/burl/pkg/repair"
	"github.com/chazu/burl/pkg/smooth"
	"github.com/chazu/burl/pkg/topology"
)

// Options selects which stages run.
type Options struct {
	// Repair strips degenerate triangles when analysis finds any.
	Repair bool
	// TargetTriangles enables decimation when > 0 and the mesh is over
	// budget.
	TargetTriangles int
	// Smoothing enables the smoothing stage when non-nil.
	Smoothing *smooth.Options
	// Progress receives (current, total, stage) updates. May be nil.
	Progress decimate.ProgressFunc
}

// Result is the structured outcome returned to the caller: the
// reconstructed mesh, before/after counts, a human-readable action log,
// and an optional error string for degraded (not failed) runs.
type Result struct {
	Mesh            *mesh.Buffer    `json:"-"`
	Report          topology.Report `json:"report"`
	Success         bool            `json:"success"`
	TrianglesBefore int             `json:"trianglesBefore"`
	TrianglesAfter  int             `json:"trianglesAfter"`
	Actions         []string        `json:"actions"`
	Error           string          `json:"error,omitempty"`
}

// Process runs the configured stages in order. The input buffer is
// never mutated; callers get a fresh buffer back even when every stage
// is a no-op.
func Process(b *mesh.Buffer, opts Options) Result {
	result := Result{Success: true}
	if b == nil || b.IsEmpty() {
		result.Mesh = &mesh.Buffer{}
		result.Actions = append(result.Actions, "input empty, nothing to do")
		return result
	}

	current := b.Clone()
	result.TrianglesBefore = current.TriangleCount()

	// Analysis always runs; it is cheap and downstream decisions key
	// off the report.
	report := topology.Analyze(current)
	result.Report = report
	result.Actions = append(result.Actions, fmt.Sprintf(
		"analyzed: %d triangles, manifold=%t, %d boundary edges, %d non-manifold edges, %d degenerate",
		report.TriangleCount, report.IsManifold, report.BoundaryEdgeCount,
		report.NonManifoldEdgeCount, report.DegenerateTriangleCount))

	if opts.Repair && report.DegenerateTriangleCount > 0 {
		rr := repair.Repair(current)
		current = rr.Mesh
		result.Actions = append(result.Actions, fmt.Sprintf(
			"repaired: removed %d degenerate triangles", rr.RemovedTriangles))
	}

	if opts.TargetTriangles > 0 && current.TriangleCount() > opts.TargetTriangles {
		pipe := decimate.NewPipeline()
		pipe.Progress = opts.Progress
		dr := pipe.Decimate(current, opts.TargetTriangles)
		current = dr.Mesh
		result.Actions = append(result.Actions, fmt.Sprintf(
			"decimated: %d -> %d triangles (%.1f%%) via %v",
			dr.OriginalTriangles, dr.FinalTriangles, dr.ReductionPercent, dr.StagesRun))
		if dr.Error != "" {
			// Budget shortfall degrades the run but does not fail it.
			result.Error = dr.Error
		}
	}

	if opts.Smoothing != nil {
		sr := smooth.Smooth(current, *opts.Smoothing)
		current = sr.Mesh
		if sr.Applied {
			result.Actions = append(result.Actions, fmt.Sprintf(
				"smoothed: %s x%d", opts.Smoothing.Method, opts.Smoothing.Iterations))
		} else {
			result.Actions = append(result.Actions, "smoothing skipped: "+sr.Reason)
		}
	}

	if len(current.Normals) == 0 {
		mesh.RecomputeNormals(current)
	}

	result.Mesh = current
	result.TrianglesAfter = current.TriangleCount()
	return result
}
