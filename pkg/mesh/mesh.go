// Package mesh provides the triangle mesh model for distance field
// evaluation: welded vertices, triangle connectivity, per-face normals and
// an explicit version stamp, plus adapters from triangle soup, indexed
// arrays and sdfx solids.
package mesh

import (
	"errors"
	"fmt"
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Mesh is a welded, indexed triangle surface. Vertices shared by several
// triangles appear once, so edge and vertex adjacency is well defined.
// Fields are exported for read access; after mutating them in place, call
// Touch so evaluators know to rebuild their caches.
type Mesh struct {
	Vertices []v3.Vec
	Faces    [][3]int
	Normals  []v3.Vec // per-face unit normals

	tol     float64
	version uint64
}

// New builds a mesh from triangle soup, welding together corners that
// quantize to the same tol-sized grid cell. A tol of zero picks a tolerance
// from the smallest triangle side. Triangles welded shut or thinner than
// the tolerance are dropped, together with any vertices only they
// referenced, so an unusable soup yields an empty mesh, not an error.
func New(tris []Triangle, tol float64) (*Mesh, error) {
	m := &Mesh{tol: tol}
	if len(tris) == 0 {
		return m, nil
	}

	bbMin := tris[0][0]
	bbMax := tris[0][0]
	minSide2 := math.MaxFloat64
	maxSide2 := 0.0
	for i := range tris {
		for j, vert := range tris[i] {
			bbMin = bbMin.Min(vert)
			bbMax = bbMax.Max(vert)
			side2 := tris[i][(j+1)%3].Sub(vert).Length2()
			if side2 > 0 && side2 < minSide2 {
				minSide2 = side2
			}
			if side2 > maxSide2 {
				maxSide2 = side2
			}
		}
	}
	if maxSide2 == 0 {
		// Every corner of every triangle coincides.
		return m, nil
	}
	suggested := math.Sqrt(minSide2) / 256
	if tol == 0 {
		tol = suggested
	}
	if tol > math.Sqrt(maxSide2)/2 {
		return nil, fmt.Errorf("vertex tolerance %g too large for the mesh, suggested %g", tol, suggested)
	}
	size := bbMax.Sub(bbMin)
	maxDim := math.Max(size.X, math.Max(size.Y, size.Z))
	if maxDim/tol > math.MaxInt64/4 {
		return nil, errors.New("vertex tolerance too small, weld grid overflows")
	}
	m.tol = tol

	// Weld on an integer grid keyed relative to the bounding box corner so
	// precision does not depend on the mesh's absolute position.
	scale := 1 / tol
	cache := make(map[[3]int64]int, len(tris))
	dropped := false
	for _, tri := range tris {
		var ids [3]int
		for j, vert := range tri {
			rel := vert.Sub(bbMin).MulScalar(scale)
			key := [3]int64{int64(rel.X), int64(rel.Y), int64(rel.Z)}
			id, ok := cache[key]
			if !ok {
				id = len(m.Vertices)
				cache[key] = id
				m.Vertices = append(m.Vertices, vert)
			}
			ids[j] = id
		}
		if ids[0] == ids[1] || ids[1] == ids[2] || ids[2] == ids[0] {
			dropped = true
			continue // welded shut
		}
		t := Triangle{m.Vertices[ids[0]], m.Vertices[ids[1]], m.Vertices[ids[2]]}
		if t.Degenerate(tol) {
			dropped = true
			continue
		}
		m.Faces = append(m.Faces, ids)
		m.Normals = append(m.Normals, t.Normal())
	}
	if dropped {
		m.compact()
	}
	return m, nil
}

// compact removes vertices no face references, keeping the survivors in
// first appearance order, and remaps the face indices.
func (m *Mesh) compact() {
	used := make([]bool, len(m.Vertices))
	for _, f := range m.Faces {
		used[f[0]] = true
		used[f[1]] = true
		used[f[2]] = true
	}
	remap := make([]int, len(m.Vertices))
	n := 0
	for i, v := range m.Vertices {
		if used[i] {
			remap[i] = n
			m.Vertices[n] = v
			n++
		}
	}
	m.Vertices = m.Vertices[:n]
	for i := range m.Faces {
		m.Faces[i][0] = remap[m.Faces[i][0]]
		m.Faces[i][1] = remap[m.Faces[i][1]]
		m.Faces[i][2] = remap[m.Faces[i][2]]
	}
}

// FromArrays builds a mesh from flat xyz positions and triangle indices,
// the exchange form mesh kernels produce. Indices are validated, positions
// welded by tol (zero picks one automatically) and degenerate triangles
// dropped.
func FromArrays(positions []float64, indices []int, tol float64) (*Mesh, error) {
	if len(positions)%3 != 0 {
		return nil, fmt.Errorf("positions length %d is not a multiple of 3", len(positions))
	}
	if len(indices)%3 != 0 {
		return nil, fmt.Errorf("indices length %d is not a multiple of 3", len(indices))
	}
	nv := len(positions) / 3
	at := func(i int) v3.Vec {
		return v3.Vec{X: positions[3*i], Y: positions[3*i+1], Z: positions[3*i+2]}
	}
	tris := make([]Triangle, 0, len(indices)/3)
	for i := 0; i+2 < len(indices); i += 3 {
		for k := 0; k < 3; k++ {
			if idx := indices[i+k]; idx < 0 || idx >= nv {
				return nil, fmt.Errorf("triangle %d references vertex %d of %d", i/3, idx, nv)
			}
		}
		tris = append(tris, Triangle{at(indices[i]), at(indices[i+1]), at(indices[i+2])})
	}
	return New(tris, tol)
}

// Triangle returns face i as a value triangle over the welded positions.
func (m *Mesh) Triangle(i int) Triangle {
	f := m.Faces[i]
	return Triangle{m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]}
}

// Normal returns the unit normal of face i.
func (m *Mesh) Normal(i int) v3.Vec {
	return m.Normals[i]
}

// VertexCount returns the number of welded vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices)
}

// TriangleCount returns the number of faces.
func (m *Mesh) TriangleCount() int {
	return len(m.Faces)
}

// IsEmpty reports whether the mesh has no faces.
func (m *Mesh) IsEmpty() bool {
	return len(m.Faces) == 0
}

// Tolerance returns the welding tolerance the mesh was built with.
func (m *Mesh) Tolerance() float64 {
	return m.tol
}

// Version returns the mesh's modification stamp.
func (m *Mesh) Version() uint64 {
	return m.version
}

// Touch recomputes the face normals from the current vertex positions and
// advances the version stamp. Call it after mutating Vertices or Faces in
// place; evaluators compare the stamp at query entry and rebuild. A face
// the edit collapsed below the weld tolerance gets a zero normal and no
// longer takes part in evaluation.
func (m *Mesh) Touch() {
	if len(m.Normals) != len(m.Faces) {
		m.Normals = make([]v3.Vec, len(m.Faces))
	}
	for i := range m.Faces {
		tri := m.Triangle(i)
		if tri.Degenerate(m.tol) {
			m.Normals[i] = v3.Vec{}
			continue
		}
		m.Normals[i] = tri.Normal()
	}
	m.version++
}

// SetNormals overrides the computed face normals, one unit normal per face,
// and advances the version stamp. Touch recomputes from geometry and
// discards the override.
func (m *Mesh) SetNormals(normals []v3.Vec) error {
	if len(normals) != len(m.Faces) {
		return fmt.Errorf("got %d normals for %d faces", len(normals), len(m.Faces))
	}
	m.Normals = append([]v3.Vec(nil), normals...)
	m.version++
	return nil
}

// Bounds returns the axis-aligned bounding box of all vertices, the zero
// box for an empty mesh.
func (m *Mesh) Bounds() sdf.Box3 {
	if len(m.Vertices) == 0 {
		return sdf.Box3{}
	}
	bb := sdf.Box3{Min: m.Vertices[0], Max: m.Vertices[0]}
	for _, v := range m.Vertices[1:] {
		bb.Min = bb.Min.Min(v)
		bb.Max = bb.Max.Max(v)
	}
	return bb
}
