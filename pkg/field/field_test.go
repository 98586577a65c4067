package field_test

import (
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/xylem/pkg/field"
	"github.com/chazu/xylem/pkg/locator"
	"github.com/chazu/xylem/pkg/mesh"
)

func makeCube(t *testing.T, lo, hi float64) *mesh.Mesh {
	t.Helper()
	positions := []float64{
		lo, lo, lo, hi, lo, lo, hi, hi, lo, lo, hi, lo,
		lo, lo, hi, hi, lo, hi, hi, hi, hi, lo, hi, hi,
	}
	indices := []int{
		0, 2, 1, 0, 3, 2,
		4, 5, 6, 4, 6, 7,
		0, 1, 5, 0, 5, 4,
		3, 6, 2, 3, 7, 6,
		0, 4, 7, 0, 7, 3,
		1, 2, 6, 1, 6, 5,
	}
	m, err := mesh.FromArrays(positions, indices, 0)
	if err != nil {
		t.Fatalf("FromArrays: %v", err)
	}
	return m
}

func makeTetrahedron(t *testing.T) *mesh.Mesh {
	t.Helper()
	a := v3.Vec{X: 1, Y: 1, Z: 1}
	b := v3.Vec{X: 1, Y: -1, Z: -1}
	c := v3.Vec{X: -1, Y: 1, Z: -1}
	d := v3.Vec{X: -1, Y: -1, Z: 1}
	m, err := mesh.New([]mesh.Triangle{
		{b, d, c}, {a, c, d}, {a, d, b}, {a, b, c},
	}, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func cubeField(t *testing.T) *field.Field {
	t.Helper()
	f := field.New()
	f.SetMesh(makeCube(t, 0, 1))
	return f
}

// bruteAbs is the unsigned distance by scanning every triangle.
func bruteAbs(m *mesh.Mesh, p v3.Vec) float64 {
	best2 := math.Inf(1)
	for i := 0; i < m.TriangleCount(); i++ {
		if _, d2, _ := m.Triangle(i).Closest(p); d2 < best2 {
			best2 = d2
		}
	}
	return math.Sqrt(best2)
}

func near(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func nearVec(a, b v3.Vec, eps float64) bool {
	return near(a.X, b.X, eps) && near(a.Y, b.Y, eps) && near(a.Z, b.Z, eps)
}

func TestCubeSigns(t *testing.T) {
	f := cubeField(t)
	tests := []struct {
		name string
		p    v3.Vec
		want float64
	}{
		{"inside", v3.Vec{X: 0.5, Y: 0.5, Z: 0.5}, -0.5},
		{"outside", v3.Vec{X: 0.5, Y: 0.5, Z: 2}, 1},
		{"on surface", v3.Vec{X: 0.5, Y: 0.5, Z: 0}, 0},
		{"outside near corner", v3.Vec{X: 2, Y: 2, Z: 2}, math.Sqrt(3)},
		{"inside near face", v3.Vec{X: 0.9, Y: 0.5, Z: 0.5}, -0.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := f.Evaluate(tt.p)
			if !near(got, tt.want, 1e-12) {
				t.Errorf("Evaluate(%v) = %g, want %g", tt.p, got, tt.want)
			}
		})
	}
}

func TestDistanceMatchesBruteForce(t *testing.T) {
	m := makeCube(t, 0, 1)
	f := field.New()
	f.SetMesh(m)
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		p := v3.Vec{
			X: rng.Float64()*3 - 1,
			Y: rng.Float64()*3 - 1,
			Z: rng.Float64()*3 - 1,
		}
		got := math.Abs(f.Evaluate(p))
		want := bruteAbs(m, p)
		if !near(got, want, 1e-12) {
			t.Fatalf("point %v: |distance| = %g, brute = %g", p, got, want)
		}
	}
}

func TestInteriorGradientIsFaceNormal(t *testing.T) {
	f := cubeField(t)
	r := f.Query(v3.Vec{X: 0.5, Y: 0.5, Z: 2})
	if r.Region != mesh.RegionInterior {
		t.Fatalf("region = %v, want interior", r.Region)
	}
	// Axis aligned face normals come out of the cross product exactly,
	// and an interior hit must hand the face normal through untouched.
	if r.Gradient != (v3.Vec{Z: 1}) {
		t.Errorf("gradient = %v, want exactly +z", r.Gradient)
	}
	if !nearVec(r.ClosestPoint, v3.Vec{X: 0.5, Y: 0.5, Z: 1}, 1e-12) {
		t.Errorf("closest point = %v, want (0.5,0.5,1)", r.ClosestPoint)
	}
}

func TestVertexGradientTetrahedron(t *testing.T) {
	f := field.New()
	f.SetMesh(makeTetrahedron(t))

	p := v3.Vec{X: 3, Y: 3, Z: 3}
	r := f.Query(p)
	if !r.Region.IsVertex() {
		t.Fatalf("region = %v, want a vertex region", r.Region)
	}
	if !nearVec(r.ClosestPoint, v3.Vec{X: 1, Y: 1, Z: 1}, 1e-12) {
		t.Errorf("closest point = %v, want (1,1,1)", r.ClosestPoint)
	}
	if !near(r.Distance, 2*math.Sqrt(3), 1e-12) {
		t.Errorf("distance = %g, want %g", r.Distance, 2*math.Sqrt(3))
	}
	// The three faces meeting at the corner weigh in equally, so the
	// pseudonormal points along the space diagonal.
	inv3 := 1 / math.Sqrt(3)
	if want := (v3.Vec{X: inv3, Y: inv3, Z: inv3}); !nearVec(r.Gradient, want, 1e-12) {
		t.Errorf("gradient = %v, want %v", r.Gradient, want)
	}
}

func TestEdgeGradientCube(t *testing.T) {
	f := cubeField(t)
	p := v3.Vec{X: 0.5, Y: -1, Z: -1}
	r := f.Query(p)
	if !r.Region.IsEdge() {
		t.Fatalf("region = %v, want an edge region", r.Region)
	}
	if !nearVec(r.ClosestPoint, v3.Vec{X: 0.5}, 1e-12) {
		t.Errorf("closest point = %v, want (0.5,0,0)", r.ClosestPoint)
	}
	if !near(r.Distance, math.Sqrt2, 1e-12) {
		t.Errorf("distance = %g, want sqrt(2)", r.Distance)
	}
	inv2 := 1 / math.Sqrt2
	if want := (v3.Vec{Y: -inv2, Z: -inv2}); !nearVec(r.Gradient, want, 1e-12) {
		t.Errorf("gradient = %v, want %v", r.Gradient, want)
	}
}

func TestSingleTriangleQuery(t *testing.T) {
	m, err := mesh.New([]mesh.Triangle{{
		v3.Vec{}, v3.Vec{X: 1}, v3.Vec{Y: 1},
	}}, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f := field.New()
	f.SetMesh(m)

	r := f.Query(v3.Vec{Z: 1})
	if r.ClosestPoint != (v3.Vec{}) {
		t.Errorf("closest point = %v, want origin", r.ClosestPoint)
	}
	if r.Distance != 1 {
		t.Errorf("distance = %g, want 1", r.Distance)
	}
	if !nearVec(r.Gradient, v3.Vec{Z: 1}, 1e-12) {
		t.Errorf("gradient = %v, want +z", r.Gradient)
	}
	if !r.Region.IsVertex() {
		t.Errorf("region = %v, want a vertex region", r.Region)
	}
}

func TestQueryIdempotent(t *testing.T) {
	f := cubeField(t)
	points := []v3.Vec{
		{X: 0.5, Y: 0.5, Z: 0.5},
		{X: 2, Y: 2, Z: 2},
		{X: 0.5, Y: 0.5, Z: 0.5001},
		{X: -3, Y: 0.2, Z: 0.9},
	}
	for _, p := range points {
		first := f.Query(p)
		second := f.Query(p)
		if first != second {
			t.Errorf("point %v: results differ:\n%+v\n%+v", p, first, second)
		}
	}
}

func TestRebuildOnSetMesh(t *testing.T) {
	f := cubeField(t)
	p := v3.Vec{X: 0.5, Y: 0.5, Z: 0.5}
	if got := f.Evaluate(p); !near(got, -0.5, 1e-12) {
		t.Fatalf("before swap: %g, want -0.5", got)
	}

	f.SetMesh(makeCube(t, 10, 11))
	want := 9.5 * math.Sqrt(3)
	if got := f.Evaluate(p); !near(got, want, 1e-12) {
		t.Errorf("after swap: %g, want %g", got, want)
	}
}

func TestRebuildOnTouch(t *testing.T) {
	m := makeCube(t, 0, 1)
	f := field.New()
	f.SetMesh(m)
	p := v3.Vec{X: 0.5, Y: 0.5, Z: 0.5}
	if got := f.Evaluate(p); !near(got, -0.5, 1e-12) {
		t.Fatalf("before edit: %g, want -0.5", got)
	}

	for i := range m.Vertices {
		m.Vertices[i] = m.Vertices[i].Add(v3.Vec{X: 10})
	}
	m.Touch()
	if got := f.Evaluate(p); !near(got, 9.5, 1e-12) {
		t.Errorf("after edit: %g, want 9.5", got)
	}
}

func TestCollapsedFaceAfterTouch(t *testing.T) {
	// Collapse one face through the documented edit workflow: move a
	// shared vertex, then Touch. Queries near the collapse must keep
	// unit gradients and correct signs.
	f := cubeField(t)
	m := f.Mesh()
	face := m.Faces[0]
	m.Vertices[face[1]] = m.Vertices[face[0]]
	m.Touch()

	corner := m.Vertices[face[2]]
	r := f.Query(corner.Add(v3.Vec{X: 0.25}))
	if !near(r.Distance, 0.25, 1e-12) {
		t.Errorf("distance = %g, want 0.25", r.Distance)
	}
	if !near(r.Gradient.Length(), 1, 1e-12) {
		t.Errorf("gradient = %v, want a unit vector", r.Gradient)
	}
	if !r.Region.IsVertex() {
		t.Errorf("region = %v, want a vertex region", r.Region)
	}
	if r.ClosestPoint != corner {
		t.Errorf("closest point = %v, want %v", r.ClosestPoint, corner)
	}

	// An interior point whose nearest face survived keeps its sign.
	inside := v3.Vec{X: 0.5, Y: 0.5, Z: 0.9}
	if got := f.Evaluate(inside); !near(got, -0.1, 1e-12) {
		t.Errorf("Evaluate(%v) = %g, want -0.1", inside, got)
	}
}

func TestAllFacesCollapsedFallsBack(t *testing.T) {
	m, err := mesh.New([]mesh.Triangle{{
		v3.Vec{}, v3.Vec{X: 1}, v3.Vec{Y: 1},
	}}, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f := field.New()
	f.SetMesh(m)
	if got := f.Evaluate(v3.Vec{Z: 1}); !near(got, 1, 1e-12) {
		t.Fatalf("before collapse: %g, want 1", got)
	}

	for i := range m.Vertices {
		m.Vertices[i] = v3.Vec{}
	}
	m.Touch()
	r := f.Query(v3.Vec{Z: 1})
	if r.Distance != 0 || r.Face != -1 {
		t.Errorf("collapsed mesh did not fall back: %+v", r)
	}
}

func TestFallbacks(t *testing.T) {
	f := field.New()
	r := f.Query(v3.Vec{X: 5, Y: 5, Z: 5})
	if r.Distance != 0 || r.Gradient != (v3.Vec{Z: 1}) || r.ClosestPoint != (v3.Vec{}) {
		t.Errorf("default fallbacks not reported: %+v", r)
	}
	if r.Face != -1 {
		t.Errorf("fallback face = %d, want -1", r.Face)
	}
	if f.BoundingBox() != (sdf.Box3{}) {
		t.Errorf("BoundingBox = %v, want zero box", f.BoundingBox())
	}

	f.NoValue = -7
	f.NoGradient = v3.Vec{X: 1}
	f.NoClosestPoint = v3.Vec{X: 9}
	empty, err := mesh.New(nil, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.SetMesh(empty)
	r = f.Query(v3.Vec{})
	if r.Distance != -7 || r.Gradient != (v3.Vec{X: 1}) || r.ClosestPoint != (v3.Vec{X: 9}) {
		t.Errorf("custom fallbacks not reported: %+v", r)
	}
}

func TestVersionMonotonic(t *testing.T) {
	f := field.New()
	var seen []uint64
	record := func() {
		v := f.Version()
		if n := len(seen); n > 0 && v <= seen[n-1] {
			t.Fatalf("version %d did not advance past %d", v, seen[n-1])
		}
		seen = append(seen, v)
	}

	record()
	m1 := makeCube(t, 0, 1)
	f.SetMesh(m1)
	record()
	m1.Touch()
	record()
	m1.Touch()
	record()

	// A freshly built mesh restarts its own stamp at zero. The field
	// version must keep climbing anyway.
	f.SetMesh(makeCube(t, 0, 1))
	record()
	f.SetMesh(m1)
	record()
}

func TestNearestTieStable(t *testing.T) {
	// Two triangles straddle the origin at the same distance. Whichever
	// wins must keep winning on every call.
	m, err := mesh.New([]mesh.Triangle{
		{v3.Vec{Z: 1}, v3.Vec{X: 1, Z: 1}, v3.Vec{Y: 1, Z: 1}},
		{v3.Vec{Z: -1}, v3.Vec{X: 1, Z: -1}, v3.Vec{Y: 1, Z: -1}},
	}, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f := field.New()
	f.SetMesh(m)

	first := f.Query(v3.Vec{})
	if math.Abs(math.Abs(first.Distance)-1) > 1e-12 {
		t.Fatalf("|distance| = %g, want 1", math.Abs(first.Distance))
	}
	for i := 0; i < 10; i++ {
		r := f.Query(v3.Vec{})
		if r.Face != first.Face {
			t.Fatalf("call %d picked face %d, first call picked %d", i, r.Face, first.Face)
		}
		if r != first {
			t.Fatalf("call %d result %+v differs from first %+v", i, r, first)
		}
	}
}

func TestConcurrentQueries(t *testing.T) {
	m := makeCube(t, 0, 1)
	rng := rand.New(rand.NewSource(3))
	points := make([]v3.Vec, 50)
	for i := range points {
		points[i] = v3.Vec{
			X: rng.Float64()*3 - 1,
			Y: rng.Float64()*3 - 1,
			Z: rng.Float64()*3 - 1,
		}
	}

	serial := field.New()
	serial.SetMesh(m)
	want := make([]field.Result, len(points))
	for i, p := range points {
		want[i] = serial.Query(p)
	}

	// Fresh field so the goroutines race through the lazy build.
	f := field.New()
	f.SetMesh(m)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i, p := range points {
				if got := f.Query(p); got != want[i] {
					t.Errorf("point %v: concurrent %+v, serial %+v", p, got, want[i])
				}
			}
		}()
	}
	wg.Wait()
}

func TestFieldAsSDF3(t *testing.T) {
	// A field slots into sdfx combinators like any other solid.
	f := cubeField(t)
	ball, err := sdf.Sphere3D(0.25)
	if err != nil {
		t.Fatalf("Sphere3D: %v", err)
	}
	moved := sdf.Transform3D(ball, sdf.Translate3d(v3.Vec{X: 3}))
	u := sdf.Union3D(f, moved)

	if got := u.Evaluate(v3.Vec{X: 0.5, Y: 0.5, Z: 2}); !near(got, 1, 1e-9) {
		t.Errorf("union near cube = %g, want 1", got)
	}
	if got := u.Evaluate(v3.Vec{X: 3}); !near(got, -0.25, 1e-9) {
		t.Errorf("union inside ball = %g, want -0.25", got)
	}

	bb := u.BoundingBox()
	if bb.Min.X > 0 || bb.Max.X < 3.2 || bb.Min.Z > 0 || bb.Max.Z < 1 {
		t.Errorf("union bounds %v do not cover both solids", bb)
	}
}

func TestRemeshRoundTrip(t *testing.T) {
	// A field is an sdf.SDF3, so it can be meshed right back through
	// marching cubes.
	f := cubeField(t)
	m2, err := mesh.FromSDF(f, 16, 0)
	if err != nil {
		t.Fatalf("FromSDF: %v", err)
	}
	if m2.IsEmpty() {
		t.Fatal("re-meshed field is empty")
	}
	const slack = 0.3
	bb := m2.Bounds()
	if bb.Min.X < -slack || bb.Min.X > slack || bb.Max.Z < 1-slack || bb.Max.Z > 1+slack {
		t.Errorf("re-meshed bounds %v stray from the unit cube", bb)
	}
}

func TestExhaustiveLocatorAgrees(t *testing.T) {
	m := makeCube(t, 0, 1)
	bvh := field.New()
	bvh.SetMesh(m)
	scan := field.New()
	scan.NewLocator = func(m *mesh.Mesh) locator.Locator { return locator.NewExhaustive(m) }
	scan.SetMesh(m)

	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 50; i++ {
		p := v3.Vec{
			X: rng.Float64()*3 - 1,
			Y: rng.Float64()*3 - 1,
			Z: rng.Float64()*3 - 1,
		}
		a := bvh.Evaluate(p)
		b := scan.Evaluate(p)
		if !near(a, b, 1e-12) {
			t.Fatalf("point %v: bvh %g, exhaustive %g", p, a, b)
		}
	}
}

func TestConvenienceAccessors(t *testing.T) {
	f := cubeField(t)
	p := v3.Vec{X: 0.5, Y: 0.5, Z: 2}
	r := f.Query(p)
	if got := f.Evaluate(p); got != r.Distance {
		t.Errorf("Evaluate = %g, Query distance %g", got, r.Distance)
	}
	if got := f.Gradient(p); got != r.Gradient {
		t.Errorf("Gradient = %v, Query gradient %v", got, r.Gradient)
	}
	if got := f.ClosestPoint(p); got != r.ClosestPoint {
		t.Errorf("ClosestPoint = %v, Query closest %v", got, r.ClosestPoint)
	}
}
