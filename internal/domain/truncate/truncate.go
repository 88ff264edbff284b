// Package truncate builds chemically truncated stand-ins for large reactant
// complexes: the reactive core (active atoms and their bonded neighbours) is
// kept, the periphery is cut away and open valences are capped with
// hydrogens.  Scans on the small system are far cheaper; the index map
// carries results back onto the full complex.
package truncate

import (
	"sort"

	"github.com/molkinetics/tsfinder/internal/domain/molgraph"
	"github.com/molkinetics/tsfinder/internal/domain/rearrange"
	"github.com/molkinetics/tsfinder/internal/domain/species"
	"github.com/molkinetics/tsfinder/pkg/errors"
	"github.com/molkinetics/tsfinder/pkg/types/chem"
)

// minAtomSaving is the smallest atom-count reduction that makes the extra
// bookkeeping of a truncated search worthwhile.
const minAtomSaving = 10

// Truncated is a cut-down complex together with the mapping back to the
// original atom indexes.  Capping hydrogens map to -1.
type Truncated struct {
	Species    *species.Species
	ToOriginal []int
	// Rearrangement is the input rearrangement re-expressed in truncated
	// atom indexes.
	Rearrangement *rearrange.Rearrangement
}

// FromOriginal returns the truncated index of an original atom, or -1 when
// the atom was cut away.
func (t *Truncated) FromOriginal(orig int) int {
	for ti, oi := range t.ToOriginal {
		if oi == orig {
			return ti
		}
	}
	return -1
}

// CoreAtoms returns the atoms that must survive truncation: every active
// atom of the rearrangement plus its directly bonded neighbours, sorted
// ascending.
func CoreAtoms(g *molgraph.Graph, r *rearrange.Rearrangement) []int {
	set := map[int]struct{}{}
	for _, a := range r.ActiveAtoms() {
		set[a] = struct{}{}
		for _, n := range g.Neighbors(a) {
			set[n] = struct{}{}
		}
	}
	out := make([]int, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	sort.Ints(out)
	return out
}

// WorthTruncating reports whether a truncated search pays off: the complex
// must exceed the configured size threshold and truncation must remove at
// least minAtomSaving atoms.
func WorthTruncating(s *species.Species, g *molgraph.Graph, r *rearrange.Rearrangement, sizeThreshold int) bool {
	if s.NAtoms() <= sizeThreshold {
		return false
	}
	return s.NAtoms()-len(CoreAtoms(g, r)) >= minAtomSaving
}

// Truncate cuts the complex down to its reactive core.  Bonds from a core
// atom into the removed periphery are capped with a hydrogen placed along
// the original bond vector at the tabulated X-H distance.
func Truncate(s *species.Species, g *molgraph.Graph, r *rearrange.Rearrangement) (*Truncated, error) {
	if g == nil {
		return nil, errors.Precondition("a connectivity graph is required for truncation")
	}
	if g.NAtoms() != s.NAtoms() {
		return nil, errors.New(errors.ErrCodeGraphMalformed, "graph and species atom counts differ")
	}

	core := CoreAtoms(g, r)
	if len(core) == s.NAtoms() {
		return nil, errors.New(errors.ErrCodeTruncationImpossible, "every atom is part of the reactive core").
			WithDetail(s.Name)
	}

	inCore := map[int]bool{}
	for _, a := range core {
		inCore[a] = true
	}

	origToTrunc := map[int]int{}
	var atoms []species.Atom
	var toOriginal []int
	for _, a := range core {
		origToTrunc[a] = len(atoms)
		atoms = append(atoms, s.Atoms[a])
		toOriginal = append(toOriginal, a)
	}

	// Cap each severed bond with a hydrogen along the old bond direction.
	for _, a := range core {
		for _, n := range g.Neighbors(a) {
			if inCore[n] {
				continue
			}
			atoms = append(atoms, species.Atom{
				Label: "H",
				Coord: capPosition(s, a, n),
			})
			toOriginal = append(toOriginal, -1)
		}
	}

	var fb, bb []molgraph.Bond
	for _, b := range r.FBonds {
		fb = append(fb, molgraph.NewBond(origToTrunc[b[0]], origToTrunc[b[1]]))
	}
	for _, b := range r.BBonds {
		bb = append(bb, molgraph.NewBond(origToTrunc[b[0]], origToTrunc[b[1]]))
	}

	return &Truncated{
		Species:       species.New(s.Name+"_truncated", s.Charge, s.Mult, atoms),
		ToOriginal:    toOriginal,
		Rearrangement: rearrange.New(fb, bb),
	}, nil
}

// capPosition places the capping hydrogen on the a→n bond vector at the
// tabulated a-H bond length.
func capPosition(s *species.Species, a, n int) [3]float64 {
	pa, pn := s.Atoms[a].Coord, s.Atoms[n].Coord
	d := s.Distance(a, n)
	if d < 1e-9 {
		return pa
	}
	scale := chem.AvgBondLength(s.Atoms[a].Label, "H") / d
	return [3]float64{
		pa[0] + (pn[0]-pa[0])*scale,
		pa[1] + (pn[1]-pa[1])*scale,
		pa[2] + (pn[2]-pa[2])*scale,
	}
}
