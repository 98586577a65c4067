// Package field evaluates signed distance to a triangle mesh: negative
// inside, positive outside, zero within a small band around the
// surface. The sign comes from angle weighted pseudonormals rather than
// ray casting, so evaluation stays robust near edges and vertices.
package field

import (
	"math"
	"sync"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/xylem/pkg/locator"
	"github.com/chazu/xylem/pkg/mesh"
)

// Compile-time interface check.
var _ sdf.SDF3 = (*Field)(nil)

// DefaultTolerance is the half width of the zero band around the
// surface.
const DefaultTolerance = 1e-12

// Field evaluates signed distance to a mesh. The zero value is usable
// but reports fallbacks until a mesh is set; New fills in the usual
// defaults. One goroutine reconfigures the field or its mesh, any
// number may query concurrently.
type Field struct {
	// NoValue, NoGradient and NoClosestPoint are reported when no mesh
	// is set or the mesh has no triangles.
	NoValue        float64
	NoGradient     v3.Vec
	NoClosestPoint v3.Vec

	// Tolerance is the distance below which a point counts as on the
	// surface and reports exactly zero.
	Tolerance float64

	// NewLocator builds the spatial index on rebuild. Nil picks the BVH.
	NewLocator func(*mesh.Mesh) locator.Locator

	mu   sync.Mutex
	src  *mesh.Mesh
	snap *snapshot
	gen  uint64
}

// Result carries everything one query learns about a point. Face is -1
// when the field had no mesh to evaluate against.
type Result struct {
	Distance     float64     `json:"distance"`
	Gradient     v3.Vec      `json:"gradient"`
	ClosestPoint v3.Vec      `json:"closestPoint"`
	Face         int         `json:"face"`
	Region       mesh.Region `json:"region"`
}

// New returns a field with no mesh and the default fallbacks: distance
// 0, gradient +z, closest point at the origin.
func New() *Field {
	return &Field{
		NoGradient: v3.Vec{Z: 1},
		Tolerance:  DefaultTolerance,
		NewLocator: defaultLocator,
	}
}

func defaultLocator(m *mesh.Mesh) locator.Locator {
	return locator.NewBVH(m)
}

// SetMesh replaces the evaluated mesh. Derived tables rebuild lazily on
// the next query. Version stays monotonic across the swap even when the
// new mesh carries a lower stamp than the old one.
func (f *Field) SetMesh(m *mesh.Mesh) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.src != nil {
		f.gen += f.src.Version()
	}
	f.gen++
	f.src = m
	f.snap = nil
}

// Mesh returns the current source mesh, nil when unset.
func (f *Field) Mesh() *mesh.Mesh {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.src
}

// Version increases whenever the field or its mesh changes.
func (f *Field) Version() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := f.gen
	if f.src != nil {
		v += f.src.Version()
	}
	return v
}

// ensure rebuilds the snapshot when the mesh version moved. A query in
// flight keeps the snapshot it started with.
func (f *Field) ensure() *snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.src == nil {
		return nil
	}
	if f.snap == nil || f.snap.version != f.src.Version() {
		newLoc := f.NewLocator
		if newLoc == nil {
			newLoc = defaultLocator
		}
		f.snap = buildSnapshot(f.src, newLoc)
	}
	return f.snap
}

// Query evaluates the signed distance at p together with its gradient
// and closest surface point. The gradient is the unit outward feature
// pseudonormal on both sides of the surface. When several triangles tie
// for nearest, the first in locator order wins.
func (f *Field) Query(p v3.Vec) Result {
	s := f.ensure()
	if s == nil || s.empty {
		return Result{
			Distance:     f.NoValue,
			Gradient:     f.NoGradient,
			ClosestPoint: f.NoClosestPoint,
			Face:         -1,
		}
	}

	best2 := math.Inf(1)
	var bestQ v3.Vec
	bestFace := -1
	bestRegion := mesh.RegionInterior
	s.loc.Search(p, func(face int, bound2 float64) bool {
		if bound2 >= best2 {
			return false
		}
		if s.dead[face] {
			return true
		}
		q, d2, region := s.src.Triangle(face).Closest(p)
		if d2 < best2 {
			best2 = d2
			bestQ = q
			bestFace = face
			bestRegion = region
		}
		return true
	})

	dist, pn := s.resolve(p, bestQ, bestFace, bestRegion, best2, f.Tolerance)
	return Result{
		Distance:     dist,
		Gradient:     pn,
		ClosestPoint: bestQ,
		Face:         bestFace,
		Region:       bestRegion,
	}
}

// Evaluate implements sdf.SDF3.
func (f *Field) Evaluate(p v3.Vec) float64 {
	return f.Query(p).Distance
}

// Gradient returns the unit outward pseudonormal of the feature closest
// to p.
func (f *Field) Gradient(p v3.Vec) v3.Vec {
	return f.Query(p).Gradient
}

// ClosestPoint returns the nearest surface point to p.
func (f *Field) ClosestPoint(p v3.Vec) v3.Vec {
	return f.Query(p).ClosestPoint
}

// BoundingBox implements sdf.SDF3.
func (f *Field) BoundingBox() sdf.Box3 {
	s := f.ensure()
	if s == nil {
		return sdf.Box3{}
	}
	return s.bounds
}
