package locator

import (
	"container/heap"
	"sort"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/xylem/pkg/mesh"
)

// leafSize is the maximum number of triangles held by a leaf node.
const leafSize = 4

// BVH is a bounding volume hierarchy over mesh triangles. Search walks
// the tree best-first, so candidates come out in order of increasing
// distance bound and far subtrees are never opened.
type BVH struct {
	m     *mesh.Mesh
	root  *bvhNode
	boxes []sdf.Box3
}

type bvhNode struct {
	box   sdf.Box3
	left  *bvhNode
	right *bvhNode
	faces []int // non-nil only on leaves
}

// NewBVH builds a hierarchy over the triangles of m. Interior nodes
// split the longest box axis at the median centroid.
func NewBVH(m *mesh.Mesh) *BVH {
	b := &BVH{m: m}
	n := m.TriangleCount()
	if n == 0 {
		return b
	}
	b.boxes = make([]sdf.Box3, n)
	centers := make([]v3.Vec, n)
	faces := make([]int, n)
	for i := 0; i < n; i++ {
		t := m.Triangle(i)
		b.boxes[i] = triBox(t)
		centers[i] = t[0].Add(t[1]).Add(t[2]).DivScalar(3)
		faces[i] = i
	}
	b.root = b.build(faces, centers)
	return b
}

func (b *BVH) build(faces []int, centers []v3.Vec) *bvhNode {
	box := b.boxes[faces[0]]
	for _, f := range faces[1:] {
		box = boxExtend(box, b.boxes[f])
	}
	if len(faces) <= leafSize {
		return &bvhNode{box: box, faces: faces}
	}
	axis := longestAxis(box)
	// Ties broken on face id so the tree shape does not depend on the
	// sort implementation.
	sort.Slice(faces, func(i, j int) bool {
		ci := axisOf(centers[faces[i]], axis)
		cj := axisOf(centers[faces[j]], axis)
		if ci != cj {
			return ci < cj
		}
		return faces[i] < faces[j]
	})
	mid := len(faces) / 2
	return &bvhNode{
		box:   box,
		left:  b.build(faces[:mid], centers),
		right: b.build(faces[mid:], centers),
	}
}

// Search pushes nodes and triangles through a priority queue keyed on
// squared box distance. A child box is contained in its parent box, so
// bounds only grow along any root-to-leaf path and the pop order is a
// valid candidate order.
func (b *BVH) Search(p v3.Vec, visit func(face int, bound2 float64) bool) {
	if b.root == nil {
		return
	}
	fr := make(frontier, 0, 64)
	order := 0
	push := func(it frontierItem) {
		it.order = order
		order++
		heap.Push(&fr, it)
	}
	push(frontierItem{node: b.root, bound2: boxDist2(p, b.root.box)})
	for fr.Len() > 0 {
		it := heap.Pop(&fr).(frontierItem)
		switch {
		case it.node == nil:
			if !visit(it.face, it.bound2) {
				return
			}
		case it.node.faces != nil:
			for _, f := range it.node.faces {
				push(frontierItem{face: f, bound2: boxDist2(p, b.boxes[f])})
			}
		default:
			push(frontierItem{node: it.node.left, bound2: boxDist2(p, it.node.left.box)})
			push(frontierItem{node: it.node.right, bound2: boxDist2(p, it.node.right.box)})
		}
	}
}

func (b *BVH) Len() int {
	return b.m.TriangleCount()
}

func (b *BVH) Bounds() sdf.Box3 {
	if b.root == nil {
		return sdf.Box3{}
	}
	return b.root.box
}

// frontierItem is either a tree node or a single triangle, with a lower
// bound on its squared distance to the query point. Equal bounds pop in
// insertion order to keep traversal deterministic.
type frontierItem struct {
	node   *bvhNode // nil for a triangle entry
	face   int
	bound2 float64
	order  int
}

type frontier []frontierItem

func (f frontier) Len() int { return len(f) }

func (f frontier) Less(i, j int) bool {
	if f[i].bound2 != f[j].bound2 {
		return f[i].bound2 < f[j].bound2
	}
	return f[i].order < f[j].order
}

func (f frontier) Swap(i, j int) { f[i], f[j] = f[j], f[i] }

func (f *frontier) Push(x any) { *f = append(*f, x.(frontierItem)) }

func (f *frontier) Pop() any {
	old := *f
	n := len(old)
	it := old[n-1]
	*f = old[:n-1]
	return it
}

func triBox(t mesh.Triangle) sdf.Box3 {
	return sdf.Box3{
		Min: t[0].Min(t[1]).Min(t[2]),
		Max: t[0].Max(t[1]).Max(t[2]),
	}
}

func boxExtend(a, b sdf.Box3) sdf.Box3 {
	return sdf.Box3{Min: a.Min.Min(b.Min), Max: a.Max.Max(b.Max)}
}

func longestAxis(b sdf.Box3) int {
	size := b.Max.Sub(b.Min)
	axis := 0
	if size.Y > size.X {
		axis = 1
	}
	if size.Z > axisOf(size, axis) {
		axis = 2
	}
	return axis
}

func axisOf(v v3.Vec, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// boxDist2 is the squared distance from p to the closest point of b,
// zero when p is inside.
func boxDist2(p v3.Vec, b sdf.Box3) float64 {
	return axisGap2(p.X, b.Min.X, b.Max.X) +
		axisGap2(p.Y, b.Min.Y, b.Max.Y) +
		axisGap2(p.Z, b.Min.Z, b.Max.Z)
}

func axisGap2(x, lo, hi float64) float64 {
	if x < lo {
		d := lo - x
		return d * d
	}
	if x > hi {
		d := x - hi
		return d * d
	}
	return 0
}
