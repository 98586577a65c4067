// Command xylem-probe meshes a configured part, builds a signed
// distance field over it and probes a padded grid around the part,
// reporting inside/outside statistics and optionally the raw samples.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"go.uber.org/zap"

	"github.com/chazu/xylem/internal/config"
	"github.com/chazu/xylem/internal/logger"
	"github.com/chazu/xylem/pkg/field"
	"github.com/chazu/xylem/pkg/mesh"
)

func main() {
	configPath := flag.String("config", "", "path to a config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := logger.InitWithFileConfig(cfg.Log.Level, logger.FileConfig{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	}, true); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Error("probe failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	solid, err := buildPart(cfg.Part)
	if err != nil {
		return err
	}

	m, err := mesh.FromSDF(solid, cfg.Part.Cells, 0)
	if err != nil {
		return fmt.Errorf("meshing part: %w", err)
	}
	logger.Info("meshed part",
		zap.String("shape", cfg.Part.Shape),
		zap.Int("triangles", m.TriangleCount()),
		zap.Int("vertices", m.VertexCount()),
		zap.Float64("weld_tolerance", m.Tolerance()),
	)
	for _, finding := range mesh.Validate(m) {
		logger.Warn("mesh diagnostic", zap.String("finding", finding.Error()))
	}

	f := field.New()
	if cfg.Field.Tolerance > 0 {
		f.Tolerance = cfg.Field.Tolerance
	}
	f.SetMesh(m)

	samples := probeGrid(f, cfg.Probe)
	report(samples)

	if cfg.Probe.Output != "" {
		if err := writeSamples(cfg.Probe.Output, samples); err != nil {
			return fmt.Errorf("writing samples: %w", err)
		}
		logger.Info("wrote samples",
			zap.String("path", cfg.Probe.Output),
			zap.Int("count", len(samples)),
		)
	}
	return nil
}

// buildPart constructs the configured solid. The default plate is a
// thin slab with a bolt hole near each corner, enough geometry to give
// the field edges, corners and interior walls to resolve.
func buildPart(pc config.PartConfig) (sdf.SDF3, error) {
	size := pc.Size
	if size <= 0 {
		size = 40
	}
	switch pc.Shape {
	case "", "plate":
		plate, err := sdf.Box3D(v3.Vec{X: size, Y: size * 0.6, Z: size * 0.1}, 0)
		if err != nil {
			return nil, err
		}
		hole, err := sdf.Cylinder3D(size*0.2, size*0.08, 0)
		if err != nil {
			return nil, err
		}
		var holes []sdf.SDF3
		for _, sx := range []float64{-1, 1} {
			for _, sy := range []float64{-1, 1} {
				holes = append(holes, sdf.Transform3D(hole,
					sdf.Translate3d(v3.Vec{X: sx * size * 0.35, Y: sy * size * 0.18})))
			}
		}
		return sdf.Difference3D(plate, sdf.Union3D(holes...)), nil
	case "box":
		return sdf.Box3D(v3.Vec{X: size, Y: size, Z: size}, 0)
	case "sphere":
		return sdf.Sphere3D(size / 2)
	case "cylinder":
		return sdf.Cylinder3D(size, size/4, 0)
	default:
		return nil, fmt.Errorf("unknown part shape %q", pc.Shape)
	}
}

type sample struct {
	Point  v3.Vec       `json:"point"`
	Result field.Result `json:"result"`
}

// probeGrid samples the field on a regular grid over the padded part
// bounds.
func probeGrid(f *field.Field, pc config.ProbeConfig) []sample {
	grid := pc.Grid
	if grid < 2 {
		grid = 16
	}
	bb := f.BoundingBox()
	pad := bb.Max.Sub(bb.Min).MulScalar(pc.Padding)
	lo := bb.Min.Sub(pad)
	step := bb.Max.Add(pad).Sub(lo).DivScalar(float64(grid - 1))

	samples := make([]sample, 0, grid*grid*grid)
	for i := 0; i < grid; i++ {
		for j := 0; j < grid; j++ {
			for k := 0; k < grid; k++ {
				p := v3.Vec{
					X: lo.X + step.X*float64(i),
					Y: lo.Y + step.Y*float64(j),
					Z: lo.Z + step.Z*float64(k),
				}
				samples = append(samples, sample{Point: p, Result: f.Query(p)})
			}
		}
	}
	return samples
}

// report logs a summary of the sampled field.
func report(samples []sample) {
	inside, outside, surface := 0, 0, 0
	minD, maxD := math.Inf(1), math.Inf(-1)
	for _, s := range samples {
		d := s.Result.Distance
		switch {
		case d < 0:
			inside++
		case d > 0:
			outside++
		default:
			surface++
		}
		minD = math.Min(minD, d)
		maxD = math.Max(maxD, d)
	}
	logger.Info("probed field",
		zap.Int("samples", len(samples)),
		zap.Int("inside", inside),
		zap.Int("outside", outside),
		zap.Int("surface", surface),
		zap.Float64("min", minD),
		zap.Float64("max", maxD),
	)
}

func writeSamples(path string, samples []sample) error {
	data, err := json.MarshalIndent(samples, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
