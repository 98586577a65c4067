package mesh

import (
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
)

// defaultCells controls marching cubes tessellation resolution.
const defaultCells = 200

// FromSDF tessellates an sdfx solid with marching cubes and imports the
// triangles. cells sets the resolution along the longest axis (0 uses the
// default) and tol the welding tolerance (0 picks one automatically).
func FromSDF(s sdf.SDF3, cells int, tol float64) (*Mesh, error) {
	if cells <= 0 {
		cells = defaultCells
	}
	renderer := render.NewMarchingCubesUniform(cells)
	soup := render.ToTriangles(s, renderer)

	tris := make([]Triangle, len(soup))
	for i, tri := range soup {
		tris[i] = Triangle{tri[0], tri[1], tri[2]}
	}
	return New(tris, tol)
}
