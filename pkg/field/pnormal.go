package field

import (
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/xylem/pkg/locator"
	"github.com/chazu/xylem/pkg/mesh"
)

// snapshot is an immutable view of one mesh version together with the
// derived tables a query needs. Built once under the field mutex, then
// read without locking.
type snapshot struct {
	version uint64
	src     *mesh.Mesh
	loc     locator.Locator
	vertN   []v3.Vec
	edgeN   map[[2]int]v3.Vec
	dead    []bool // faces degenerate at the current positions
	bounds  sdf.Box3
	empty   bool
}

// buildSnapshot computes the angle weighted pseudonormals of Baerentzen
// and Aanaes, "Signed distance computation using the angle weighted
// pseudonormal" (2005). A vertex normal sums incident face normals
// weighted by the corner opening angle; an edge normal sums the one or
// two adjacent face normals. Construction welds degenerate triangles
// away, but in-place vertex edits can collapse a face afterwards; such
// faces carry no usable normal, so they contribute no weight here and
// queries skip them. A mesh with no intact faces left is empty.
func buildSnapshot(m *mesh.Mesh, newLoc func(*mesh.Mesh) locator.Locator) *snapshot {
	s := &snapshot{version: m.Version(), src: m}
	if m.IsEmpty() {
		s.empty = true
		return s
	}
	s.vertN = make([]v3.Vec, m.VertexCount())
	s.edgeN = make(map[[2]int]v3.Vec)
	s.dead = make([]bool, m.TriangleCount())
	live := 0
	for i := 0; i < m.TriangleCount(); i++ {
		tri := m.Triangle(i)
		if tri.Degenerate(m.Tolerance()) {
			s.dead[i] = true
			continue
		}
		live++
		n := m.Normal(i)
		f := m.Faces[i]
		for j := 0; j < 3; j++ {
			s1 := tri[(j+1)%3].Sub(tri[j])
			s2 := tri[(j+2)%3].Sub(tri[j])
			cos := s1.Dot(s2) / (s1.Length() * s2.Length())
			cos = math.Max(-1, math.Min(1, cos))
			s.vertN[f[j]] = s.vertN[f[j]].Add(n.MulScalar(math.Acos(cos)))

			k := edgeKey(f[j], f[(j+1)%3])
			s.edgeN[k] = s.edgeN[k].Add(n)
		}
	}
	if live == 0 {
		s.empty = true
		return s
	}
	for i, n := range s.vertN {
		if l := n.Length(); l > 0 {
			s.vertN[i] = n.DivScalar(l)
		}
	}
	for k, n := range s.edgeN {
		if l := n.Length(); l > 0 {
			s.edgeN[k] = n.DivScalar(l)
		}
	}
	s.loc = newLoc(m)
	s.bounds = s.loc.Bounds()
	return s
}

func edgeKey(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}

// pseudonormal picks the feature normal for a closest point region.
func (s *snapshot) pseudonormal(face int, region mesh.Region) v3.Vec {
	switch {
	case region.IsVertex():
		return s.vertN[s.src.Faces[face][region.Corner()]]
	case region.IsEdge():
		a, b := region.EdgeCorners()
		f := s.src.Faces[face]
		return s.edgeN[edgeKey(f[a], f[b])]
	default:
		return s.src.Normal(face)
	}
}

// resolve signs the unsigned distance: negative when the offset from the
// closest point runs against the feature pseudonormal. Points within tol
// of the surface report zero distance and keep the outward normal.
func (s *snapshot) resolve(p, q v3.Vec, face int, region mesh.Region, dist2, tol float64) (float64, v3.Vec) {
	pn := s.pseudonormal(face, region)
	dist := math.Sqrt(dist2)
	if dist <= tol {
		return 0, pn
	}
	if p.Sub(q).Dot(pn) < 0 {
		dist = -dist
	}
	return dist, pn
}
