package mesh

import "fmt"

// ValidationSeverity indicates whether a finding makes signed distance
// queries unreliable or is merely advisory.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // sign resolution unreliable
	SeverityWarning                           // advisory
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	Message  string
	Severity ValidationSeverity
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
}

// Validate checks the structural assumptions sign resolution rests on: a
// closed, consistently wound, two-manifold surface. An empty slice means
// the mesh qualifies. Open surfaces still answer queries, with the sign
// only locally meaningful, so a missing closure is a warning rather than
// an error. This function is read-only and never mutates the mesh.
func Validate(m *Mesh) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateFaces(m)...)
	errs = append(errs, validateEdges(m)...)
	errs = append(errs, validateVertices(m)...)
	return errs
}

// validateFaces checks that the mesh has any triangles at all.
func validateFaces(m *Mesh) []ValidationError {
	if m.IsEmpty() {
		return []ValidationError{{
			Message:  "mesh has no triangles",
			Severity: SeverityError,
		}}
	}
	return nil
}

// validateEdges tallies every directed edge. A closed two-manifold surface
// traverses each undirected edge exactly twice, once per direction; any
// other pattern is a boundary, a non-manifold fan, or a winding flip.
func validateEdges(m *Mesh) []ValidationError {
	if m.IsEmpty() {
		return nil
	}

	type tally struct{ count, dir int }
	edges := make(map[[2]int]tally, len(m.Faces)*3/2)
	for _, f := range m.Faces {
		for j := 0; j < 3; j++ {
			u, v := f[j], f[(j+1)%3]
			key := [2]int{u, v}
			d := 1
			if u > v {
				key = [2]int{v, u}
				d = -1
			}
			t := edges[key]
			t.count++
			t.dir += d
			edges[key] = t
		}
	}

	boundary, nonManifold, misWound := 0, 0, 0
	for _, t := range edges {
		switch {
		case t.count == 1:
			boundary++
		case t.count > 2:
			nonManifold++
		case t.dir != 0:
			misWound++
		}
	}

	var errs []ValidationError
	if boundary > 0 {
		errs = append(errs, ValidationError{
			Message:  fmt.Sprintf("%d boundary edges, surface is not closed", boundary),
			Severity: SeverityWarning,
		})
	}
	if nonManifold > 0 {
		errs = append(errs, ValidationError{
			Message:  fmt.Sprintf("%d edges shared by more than two triangles", nonManifold),
			Severity: SeverityError,
		})
	}
	if misWound > 0 {
		errs = append(errs, ValidationError{
			Message:  fmt.Sprintf("%d edges with inconsistent winding", misWound),
			Severity: SeverityError,
		})
	}
	return errs
}

// validateVertices warns about vertices no face references, typically left
// behind by dropped degenerate triangles.
func validateVertices(m *Mesh) []ValidationError {
	if m.IsEmpty() {
		return nil
	}
	used := make([]bool, len(m.Vertices))
	for _, f := range m.Faces {
		used[f[0]], used[f[1]], used[f[2]] = true, true, true
	}
	unused := 0
	for _, u := range used {
		if !u {
			unused++
		}
	}
	if unused > 0 {
		return []ValidationError{{
			Message:  fmt.Sprintf("%d vertices not referenced by any triangle", unused),
			Severity: SeverityWarning,
		}}
	}
	return nil
}
