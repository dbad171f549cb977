// Package decimate reduces triangle counts under strict budgets using an
// ordered chain of simplification strategies. Each strategy is tried in
// sequence; the chain advances on failure or insufficient reduction and
// always returns the best result achieved, flagging any shortfall in the
// result rather than failing hard.
package decimate

import (
	"fmt"

	"github.com/chazu/burl/pkg/mesh"
)

// HighWaterMark is the triangle count above which the structural
// pre-pass runs before any quality-aware simplifier.
const HighWaterMark = 500_000

// ProgressFunc receives (current, total, stage) updates while the chain
// runs. It may be nil.
type ProgressFunc func(current, total int, stage string)

// StageResult is the outcome of a single strategy attempt.
type StageResult struct {
	Success           bool
	Mesh              *mesh.Buffer
	OriginalTriangles int
	FinalTriangles    int
	ReductionPercent  float64
	Reason            string // set when Success is false
}

// Strategy is one simplification backend in the fallback chain. A
// strategy returns its result rather than panicking or erroring out, so
// the chain stays declarative and each stage is testable on its own.
type Strategy interface {
	Name() string
	Simplify(b *mesh.Buffer, targetTriangles int) StageResult
}

// Result is the outcome of a full pipeline run.
type Result struct {
	Mesh              *mesh.Buffer `json:"-"`
	OriginalTriangles int          `json:"originalTriangles"`
	FinalTriangles    int          `json:"finalTriangles"`
	ReductionPercent  float64      `json:"reductionPercent"`
	StagesRun         []string     `json:"stagesRun"`
	Error             string       `json:"error,omitempty"` // shortfall description, not a failure
}

// Pipeline runs an ordered list of strategies against a triangle budget.
type Pipeline struct {
	Strategies []Strategy
	Progress   ProgressFunc
}

// NewPipeline returns the default chain: structural pre-pass, quadric
// edge collapse, manifold re-mesh, vertex clustering.
func NewPipeline() *Pipeline {
	return &Pipeline{
		Strategies: []Strategy{
			&Structural{HighWater: HighWaterMark, WeldTolerance: 1e-4},
			&Quadric{},
			&ManifoldRemesh{},
			&Clustering{},
		},
	}
}

// Decimate runs the default chain. See Pipeline.Decimate.
func Decimate(b *mesh.Buffer, targetTriangles int) Result {
	return NewPipeline().Decimate(b, targetTriangles)
}

// Decimate reduces b to at most targetTriangles. If b is already at or
// under budget it is returned unchanged with 0% reduction. Otherwise the
// strategies run in order until one reaches budget; the best result seen
// is always returned, with Error describing any remaining shortfall.
func (p *Pipeline) Decimate(b *mesh.Buffer, targetTriangles int) Result {
	if targetTriangles < 1 {
		targetTriangles = 1
	}
	original := b.TriangleCount()
	result := Result{
		Mesh:              b,
		OriginalTriangles: original,
		FinalTriangles:    original,
	}
	if original <= targetTriangles || b.IsEmpty() {
		return result
	}

	current := b
	best := original
	total := len(p.Strategies)

	for i, s := range p.Strategies {
		p.report(i, total, s.Name())

		sr := s.Simplify(current, targetTriangles)
		if sr.Mesh != nil && sr.FinalTriangles < best {
			best = sr.FinalTriangles
			result.Mesh = sr.Mesh
			result.FinalTriangles = sr.FinalTriangles
			result.StagesRun = append(result.StagesRun, s.Name())
			// Feed the improved mesh to the next stage.
			current = sr.Mesh
		} else if !sr.Success {
			result.StagesRun = append(result.StagesRun, s.Name())
		}

		if best <= targetTriangles {
			break
		}
	}

	p.report(total, total, "done")

	result.ReductionPercent = 100.0 * float64(original-result.FinalTriangles) / float64(original)
	if result.FinalTriangles > targetTriangles {
		result.Error = fmt.Sprintf(
			"budget shortfall: %d triangles remain after all stages, target was %d",
			result.FinalTriangles, targetTriangles)
	}
	return result
}

func (p *Pipeline) report(current, total int, stage string) {
	if p.Progress != nil {
		p.Progress(current, total, stage)
	}
}

func clampRatio(ratio, lo, hi float64) float64 {
	if ratio < lo {
		return lo
	}
	if ratio > hi {
		return hi
	}
	return ratio
}
