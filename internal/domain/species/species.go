// Package species provides the molecular entities the search engine operates
// on: atoms with mutable Cartesian coordinates, species owning an ordered
// atom sequence together with lazily computed electronic properties, and
// multi-fragment complexes.  Energies and Hessians are derived data: any
// coordinate mutation invalidates them, and they must be recomputed through
// the calculation oracle.
package species

import (
	"math"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/molkinetics/tsfinder/pkg/errors"
)

// Atom is an element label at a point in 3-D space.  Atoms are owned by a
// Species and mutated in place by geometry operations.
type Atom struct {
	Label string
	Coord [3]float64
}

// Species is an ordered sequence of atoms with net charge and spin
// multiplicity.  The connectivity graph, energy, Hessian and imaginary
// frequencies are optional derived properties.
type Species struct {
	ID     string
	Name   string
	Charge int
	Mult   int
	Atoms  []Atom

	energy    *float64
	hessian   *mat.Dense // 3N×3N Cartesian second derivatives, Ha Å⁻²
	imagFreqs []float64  // cm⁻¹, most negative first
}

// New constructs a Species from a copy of the supplied atoms.
func New(name string, charge, mult int, atoms []Atom) *Species {
	cp := make([]Atom, len(atoms))
	copy(cp, atoms)
	return &Species{
		ID:     uuid.NewString(),
		Name:   name,
		Charge: charge,
		Mult:   mult,
		Atoms:  cp,
	}
}

// NAtoms returns the number of atoms.
func (s *Species) NAtoms() int { return len(s.Atoms) }

// Distance returns the Euclidean distance in Å between atoms i and j.
func (s *Species) Distance(i, j int) float64 {
	a, b := s.Atoms[i].Coord, s.Atoms[j].Coord
	dx, dy, dz := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Coordinates returns a copy of the atomic coordinates.
func (s *Species) Coordinates() [][3]float64 {
	out := make([][3]float64, len(s.Atoms))
	for i, a := range s.Atoms {
		out[i] = a.Coord
	}
	return out
}

// SetCoordinates replaces all atomic coordinates and invalidates every
// derived electronic property.
func (s *Species) SetCoordinates(coords [][3]float64) error {
	if len(coords) != len(s.Atoms) {
		return errors.Precondition("coordinate count does not match atom count")
	}
	for i := range s.Atoms {
		s.Atoms[i].Coord = coords[i]
	}
	s.invalidateDerived()
	return nil
}

// Labels returns the element labels in atom order.
func (s *Species) Labels() []string {
	out := make([]string, len(s.Atoms))
	for i, a := range s.Atoms {
		out[i] = a.Label
	}
	return out
}

// Energy returns the last computed electronic energy (Ha) and whether one is
// present.
func (s *Species) Energy() (float64, bool) {
	if s.energy == nil {
		return 0, false
	}
	return *s.energy, true
}

// SetEnergy records a computed electronic energy for the current geometry.
func (s *Species) SetEnergy(e float64) { s.energy = &e }

// Hessian returns the Cartesian Hessian, or nil when not computed.
func (s *Species) Hessian() *mat.Dense { return s.hessian }

// SetHessian records a computed Hessian for the current geometry.
func (s *Species) SetHessian(h *mat.Dense) { s.hessian = h }

// ImagFreqs returns the imaginary frequencies (cm⁻¹, most negative first),
// or nil when no mode analysis has been run.
func (s *Species) ImagFreqs() []float64 { return s.imagFreqs }

// SetImagFreqs records the imaginary frequencies for the current Hessian.
func (s *Species) SetImagFreqs(fs []float64) { s.imagFreqs = fs }

// invalidateDerived clears every property tied to the previous geometry.
func (s *Species) invalidateDerived() {
	s.energy = nil
	s.hessian = nil
	s.imagFreqs = nil
}

// Copy returns a deep copy with a fresh ID.  Derived properties are carried
// over since the geometry is identical.
func (s *Species) Copy() *Species {
	cp := New(s.Name, s.Charge, s.Mult, s.Atoms)
	if s.energy != nil {
		e := *s.energy
		cp.energy = &e
	}
	if s.hessian != nil {
		cp.hessian = mat.DenseCopyOf(s.hessian)
	}
	if s.imagFreqs != nil {
		cp.imagFreqs = append([]float64(nil), s.imagFreqs...)
	}
	return cp
}

// Translate shifts the listed atoms by vec.  Passing nil moves every atom.
// Derived properties are invalidated.
func (s *Species) Translate(indexes []int, vec [3]float64) {
	if indexes == nil {
		indexes = allIndexes(len(s.Atoms))
	}
	for _, i := range indexes {
		for k := 0; k < 3; k++ {
			s.Atoms[i].Coord[k] += vec[k]
		}
	}
	s.invalidateDerived()
}

// Rotate rotates the listed atoms by theta radians about the axis through
// origin, using the Rodrigues rotation formula.  A zero axis is a no-op.
// Passing nil indexes rotates every atom.  Derived properties are
// invalidated.
func (s *Species) Rotate(indexes []int, axis [3]float64, theta float64, origin [3]float64) {
	n := math.Sqrt(axis[0]*axis[0] + axis[1]*axis[1] + axis[2]*axis[2])
	if n < 1e-12 {
		return
	}
	ux, uy, uz := axis[0]/n, axis[1]/n, axis[2]/n
	cosT, sinT := math.Cos(theta), math.Sin(theta)

	if indexes == nil {
		indexes = allIndexes(len(s.Atoms))
	}
	for _, i := range indexes {
		p := s.Atoms[i].Coord
		vx, vy, vz := p[0]-origin[0], p[1]-origin[1], p[2]-origin[2]

		dot := ux*vx + uy*vy + uz*vz
		cx, cy, cz := uy*vz-uz*vy, uz*vx-ux*vz, ux*vy-uy*vx

		s.Atoms[i].Coord = [3]float64{
			origin[0] + vx*cosT + cx*sinT + ux*dot*(1-cosT),
			origin[1] + vy*cosT + cy*sinT + uy*dot*(1-cosT),
			origin[2] + vz*cosT + cz*sinT + uz*dot*(1-cosT),
		}
	}
	s.invalidateDerived()
}

// Centroid returns the unweighted geometric centre of the listed atoms, or
// of the whole species when indexes is nil.
func (s *Species) Centroid(indexes []int) [3]float64 {
	if indexes == nil {
		indexes = allIndexes(len(s.Atoms))
	}
	var c [3]float64
	if len(indexes) == 0 {
		return c
	}
	for _, i := range indexes {
		for k := 0; k < 3; k++ {
			c[k] += s.Atoms[i].Coord[k]
		}
	}
	for k := 0; k < 3; k++ {
		c[k] /= float64(len(indexes))
	}
	return c
}

func allIndexes(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
