package worker

import (
	"fmt"

	"github.com/chazu/burl/pkg/csg"
	"github.com/chazu/burl/pkg/decimate"
	"github.com/chazu/burl/pkg/mesh"
	"github.com/chazu/burl/pkg/smooth"
)

// Operation names accepted by the default op table.
const (
	OpDecimate      = "decimate"
	OpSmooth        = "smooth"
	OpSubtract      = "subtract"
	OpSubtractBatch = "subtract-batch"
	OpUnion         = "union"
)

// DecimatePayload carries a decimation request. The mesh buffer is
// transferred: the caller must not read or write it until the result
// arrives.
type DecimatePayload struct {
	Mesh   *mesh.Buffer
	Target int
}

// SmoothPayload carries a smoothing request.
type SmoothPayload struct {
	Mesh    *mesh.Buffer
	Options smooth.Options
}

// SubtractPayload carries a single boolean subtraction.
type SubtractPayload struct {
	Support         *mesh.Buffer
	Cutter          *mesh.Buffer
	CutterTransform csg.Transform
}

// SubtractBatchPayload carries N supports cut by one shared cutter.
type SubtractBatchPayload struct {
	Supports        []*mesh.Buffer
	Cutter          *mesh.Buffer
	CutterTransform csg.Transform
}

// UnionPayload carries a progressive union of several solids.
type UnionPayload struct {
	Meshes []*mesh.Buffer
}

// DefaultOps returns the standard geometry operation table shared by
// every worker family.
func DefaultOps() map[string]OpFunc {
	return map[string]OpFunc{
		OpDecimate:      opDecimate,
		OpSmooth:        opSmooth,
		OpSubtract:      opSubtract,
		OpSubtractBatch: opSubtractBatch,
		OpUnion:         opUnion,
	}
}

func opDecimate(payload any, report func(Progress)) (any, error) {
	p, ok := payload.(DecimatePayload)
	if !ok {
		return nil, fmt.Errorf("worker: decimate payload has type %T", payload)
	}
	pipe := decimate.NewPipeline()
	pipe.Progress = func(current, total int, stage string) {
		report(Progress{Current: current, Total: total, Stage: stage})
	}
	return pipe.Decimate(p.Mesh, p.Target), nil
}

func opSmooth(payload any, report func(Progress)) (any, error) {
	p, ok := payload.(SmoothPayload)
	if !ok {
		return nil, fmt.Errorf("worker: smooth payload has type %T", payload)
	}
	report(Progress{Current: 0, Total: 1, Stage: "smooth"})
	res := smooth.Smooth(p.Mesh, p.Options)
	report(Progress{Current: 1, Total: 1, Stage: "smooth"})
	return res, nil
}

func opSubtract(payload any, report func(Progress)) (any, error) {
	p, ok := payload.(SubtractPayload)
	if !ok {
		return nil, fmt.Errorf("worker: subtract payload has type %T", payload)
	}
	report(Progress{Current: 0, Total: 1, Stage: "subtract"})
	engine := csg.NewEngine()
	out, err := engine.Subtract(
		csg.Prepare(p.Support, csg.Identity()),
		csg.Prepare(p.Cutter, p.CutterTransform),
	)
	report(Progress{Current: 1, Total: 1, Stage: "subtract"})
	return out, err
}

func opSubtractBatch(payload any, report func(Progress)) (any, error) {
	p, ok := payload.(SubtractBatchPayload)
	if !ok {
		return nil, fmt.Errorf("worker: subtract-batch payload has type %T", payload)
	}
	engine := csg.NewEngine()
	cutter := csg.Prepare(p.Cutter, p.CutterTransform)
	items := engine.SubtractBatch(p.Supports, cutter, func(current, total int) {
		report(Progress{Current: current, Total: total, Stage: "subtract-batch"})
	})
	return items, nil
}

func opUnion(payload any, report func(Progress)) (any, error) {
	p, ok := payload.(UnionPayload)
	if !ok {
		return nil, fmt.Errorf("worker: union payload has type %T", payload)
	}
	report(Progress{Current: 0, Total: len(p.Meshes), Stage: "union"})
	engine := csg.NewEngine()
	out, err := engine.Union(p.Meshes)
	report(Progress{Current: len(p.Meshes), Total: len(p.Meshes), Stage: "union"})
	return out, err
}
