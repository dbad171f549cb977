// Command burl runs the mesh processing pipeline on an STL file:
// analysis, repair, budget-driven decimation, smoothing, and an optional
// boolean subtraction of a cutter solid, then writes the result back out
// as STL.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/unixpickle/essentials"
	"gopkg.in/yaml.v3"

	"github.com/chazu/burl/pkg/csg"
	"github.com/chazu/burl/pkg/mesh"
	"github.com/chazu/burl/pkg/pipeline"
	"github.com/chazu/burl/pkg/smooth"
	"github.com/chazu/burl/pkg/stlio"
	"github.com/chazu/burl/pkg/worker"
)

// jobConfig mirrors the optional YAML job file. Flags override it.
type jobConfig struct {
	TargetTriangles int  `yaml:"target_triangles"`
	Repair          bool `yaml:"repair"`
	Smoothing       struct {
		Method     string  `yaml:"method"` // taubin, hc, gaussian, laplacian
		Iterations int     `yaml:"iterations"`
		Lambda     float64 `yaml:"lambda"`
		Mu         float64 `yaml:"mu"`
		Alpha      float64 `yaml:"alpha"`
		Beta       float64 `yaml:"beta"`
		Sigma      float64 `yaml:"sigma"`
	} `yaml:"smoothing"`
	Cutter struct {
		Path   string     `yaml:"path"`
		Offset [3]float64 `yaml:"offset"`
	} `yaml:"cutter"`
}

func main() {
	var configPath string
	var target int
	var doRepair bool
	var smoothMethod string
	var smoothIterations int
	var cutterPath string

	flag.StringVar(&configPath, "config", "", "YAML job configuration")
	flag.IntVar(&target, "target", 0, "triangle budget (0 disables decimation)")
	flag.BoolVar(&doRepair, "repair", false, "strip degenerate triangles")
	flag.StringVar(&smoothMethod, "smooth", "", "smoothing method: taubin, hc, gaussian, laplacian")
	flag.IntVar(&smoothIterations, "iterations", 5, "smoothing iterations")
	flag.StringVar(&cutterPath, "cutter", "", "STL solid to subtract from the input")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage:", os.Args[0], "[flags] <input.stl> <output.stl>")
		flag.PrintDefaults()
		os.Exit(1)
	}
	flag.Parse()
	if len(flag.Args()) != 2 {
		flag.Usage()
	}

	cfg := jobConfig{}
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		essentials.Must(err)
		essentials.Must(yaml.Unmarshal(data, &cfg))
	}
	if target != 0 {
		cfg.TargetTriangles = target
	}
	if doRepair {
		cfg.Repair = true
	}
	if smoothMethod != "" {
		cfg.Smoothing.Method = smoothMethod
		cfg.Smoothing.Iterations = smoothIterations
	}
	if cutterPath != "" {
		cfg.Cutter.Path = cutterPath
	}

	input, err := stlio.ReadFile(flag.Args()[0])
	essentials.Must(err)
	log.Printf("loaded %s: %d triangles", flag.Args()[0], input.TriangleCount())

	opts := pipeline.Options{
		Repair:          cfg.Repair,
		TargetTriangles: cfg.TargetTriangles,
	}
	if cfg.Smoothing.Method != "" {
		so, err := smoothOptions(cfg)
		essentials.Must(err)
		opts.Smoothing = &so
	}

	var bar *progressbar.ProgressBar
	opts.Progress = func(current, total int, stage string) {
		if bar == nil {
			bar = progressbar.Default(int64(total), "decimate")
		}
		bar.Set(current)
	}

	result := pipeline.Process(input, opts)
	for _, action := range result.Actions {
		log.Println(action)
	}
	if result.Error != "" {
		log.Printf("degraded: %s", result.Error)
	}

	out := result.Mesh
	if cfg.Cutter.Path != "" {
		out, err = subtractCutter(out, cfg)
		essentials.Must(err)
	}

	essentials.Must(stlio.WriteFile(flag.Args()[1], out))
	log.Printf("wrote %s: %d triangles", flag.Args()[1], out.TriangleCount())
}

func smoothOptions(cfg jobConfig) (smooth.Options, error) {
	so := smooth.Options{
		Iterations: cfg.Smoothing.Iterations,
		Lambda:     cfg.Smoothing.Lambda,
		Mu:         cfg.Smoothing.Mu,
		Alpha:      cfg.Smoothing.Alpha,
		Beta:       cfg.Smoothing.Beta,
		Sigma:      cfg.Smoothing.Sigma,
	}
	switch cfg.Smoothing.Method {
	case "taubin":
		so.Method = smooth.Taubin
	case "hc":
		so.Method = smooth.HC
	case "gaussian":
		so.Method = smooth.Gaussian
	case "laplacian":
		so.Method = smooth.Laplacian
	default:
		return so, fmt.Errorf("unknown smoothing method %q", cfg.Smoothing.Method)
	}
	return so, nil
}

// subtractCutter runs the boolean through a worker context so the flow
// matches how an interactive host would call it, progress included.
func subtractCutter(support *mesh.Buffer, cfg jobConfig) (*mesh.Buffer, error) {
	cutter, err := stlio.ReadFile(cfg.Cutter.Path)
	if err != nil {
		return nil, err
	}

	pool := worker.NewPool()
	defer pool.Shutdown()
	exec := pool.Executor(worker.FamilyCSG)

	handle, err := exec.Dispatch(worker.OpSubtract, worker.SubtractPayload{
		Support: support,
		Cutter:  cutter,
		CutterTransform: csg.Translate(
			cfg.Cutter.Offset[0], cfg.Cutter.Offset[1], cfg.Cutter.Offset[2]),
	})
	if err != nil {
		return nil, err
	}

	go func() {
		for p := range handle.Progress() {
			log.Printf("subtract: %d/%d %s", p.Current, p.Total, p.Stage)
		}
	}()

	value, err := handle.Await(context.Background())
	if err != nil {
		return nil, err
	}
	return value.(*mesh.Buffer), nil
}
