// Package locator provides spatial indexes over mesh triangles for
// nearest-triangle queries.
package locator

import (
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/xylem/pkg/mesh"
)

// Locator enumerates candidate triangles for a nearest-triangle query.
type Locator interface {
	// Search visits triangles in order of non-decreasing bound2, a lower
	// bound on the squared distance from p to the triangle. Every
	// unvisited triangle is at least bound2 away when visit runs, so a
	// caller holding a result closer than bound2 can stop by returning
	// false.
	Search(p v3.Vec, visit func(face int, bound2 float64) bool)

	// Len reports the number of indexed triangles.
	Len() int

	// Bounds reports the bounding box of the indexed triangles.
	Bounds() sdf.Box3
}

// Compile-time interface checks.
var (
	_ Locator = (*Exhaustive)(nil)
	_ Locator = (*BVH)(nil)
)

// Exhaustive visits every triangle on every search. It is the baseline
// the tree locators are checked against and a sane choice for tiny
// meshes.
type Exhaustive struct {
	m *mesh.Mesh
}

// NewExhaustive returns a locator that scans all triangles of m.
func NewExhaustive(m *mesh.Mesh) *Exhaustive {
	return &Exhaustive{m: m}
}

func (e *Exhaustive) Search(p v3.Vec, visit func(face int, bound2 float64) bool) {
	for i := 0; i < e.m.TriangleCount(); i++ {
		if !visit(i, 0) {
			return
		}
	}
}

func (e *Exhaustive) Len() int {
	return e.m.TriangleCount()
}

func (e *Exhaustive) Bounds() sdf.Box3 {
	return e.m.Bounds()
}
