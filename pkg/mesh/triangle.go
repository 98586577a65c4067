package mesh

import (
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Region classifies where on a triangle a closest point lies.
type Region int

// Edge regions are named after the two corners they join, in winding
// order.
const (
	RegionInterior Region = iota
	RegionEdge01
	RegionEdge12
	RegionEdge20
	RegionVertex0
	RegionVertex1
	RegionVertex2
)

// String returns a short name for the region.
func (r Region) String() string {
	switch r {
	case RegionInterior:
		return "interior"
	case RegionEdge01:
		return "edge01"
	case RegionEdge12:
		return "edge12"
	case RegionEdge20:
		return "edge20"
	case RegionVertex0:
		return "vertex0"
	case RegionVertex1:
		return "vertex1"
	case RegionVertex2:
		return "vertex2"
	}
	return "unknown"
}

// IsEdge reports whether the region is one of the three edges.
func (r Region) IsEdge() bool {
	return r >= RegionEdge01 && r <= RegionEdge20
}

// IsVertex reports whether the region is one of the three corners.
func (r Region) IsVertex() bool {
	return r >= RegionVertex0 && r <= RegionVertex2
}

// Corner returns the corner index for a vertex region, -1 otherwise.
func (r Region) Corner() int {
	switch r {
	case RegionVertex0:
		return 0
	case RegionVertex1:
		return 1
	case RegionVertex2:
		return 2
	}
	return -1
}

// EdgeCorners returns the two corner indices bounding an edge region,
// (-1, -1) otherwise.
func (r Region) EdgeCorners() (int, int) {
	switch r {
	case RegionEdge01:
		return 0, 1
	case RegionEdge12:
		return 1, 2
	case RegionEdge20:
		return 2, 0
	}
	return -1, -1
}

// Triangle is a triangle in 3D space, stored as its three corner positions.
type Triangle [3]v3.Vec

// Normal returns the unit normal implied by the corner winding,
// counter-clockwise seen from the outside.
func (t Triangle) Normal() v3.Vec {
	return t[1].Sub(t[0]).Cross(t[2].Sub(t[0])).Normalize()
}

// Area returns the triangle's area.
func (t Triangle) Area() float64 {
	return 0.5 * t[1].Sub(t[0]).Cross(t[2].Sub(t[0])).Length()
}

// Degenerate reports whether the triangle is too thin to carry a reliable
// normal, using tol in the mesh's length units.
func (t Triangle) Degenerate(tol float64) bool {
	n := t[1].Sub(t[0]).Cross(t[2].Sub(t[0]))
	return n.Length() <= tol*tol
}

// Closest returns the point on the triangle nearest to p, the squared
// distance between them, and the region that point lies in. The projection
// is clamped into the triangle's barycentric domain; all arithmetic runs on
// corner-relative vectors, so precision holds for meshes far from the
// origin. Degenerate triangles must be filtered by the caller.
func (t Triangle) Closest(p v3.Vec) (q v3.Vec, dist2 float64, region Region) {
	a, b, c := t[0], t[1], t[2]
	ab := b.Sub(a)
	ac := c.Sub(a)

	// Outside corner a?
	ap := p.Sub(a)
	d1 := ab.Dot(ap)
	d2 := ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		return a, ap.Length2(), RegionVertex0
	}

	// Outside corner b?
	bp := p.Sub(b)
	d3 := ab.Dot(bp)
	d4 := ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		return b, bp.Length2(), RegionVertex1
	}

	// Outside edge ab?
	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		v := d1 / (d1 - d3)
		q = a.Add(ab.MulScalar(v))
		return q, p.Sub(q).Length2(), RegionEdge01
	}

	// Outside corner c?
	cp := p.Sub(c)
	d5 := ab.Dot(cp)
	d6 := ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		return c, cp.Length2(), RegionVertex2
	}

	// Outside edge ca?
	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		w := d2 / (d2 - d6)
		q = a.Add(ac.MulScalar(w))
		return q, p.Sub(q).Length2(), RegionEdge20
	}

	// Outside edge bc?
	va := d3*d6 - d5*d4
	if va <= 0 && d4-d3 >= 0 && d5-d6 >= 0 {
		w := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		q = b.Add(c.Sub(b).MulScalar(w))
		return q, p.Sub(q).Length2(), RegionEdge12
	}

	// Interior projection.
	den := 1 / (va + vb + vc)
	v := vb * den
	w := vc * den
	q = a.Add(ab.MulScalar(v)).Add(ac.MulScalar(w))
	return q, p.Sub(q).Length2(), RegionInterior
}
