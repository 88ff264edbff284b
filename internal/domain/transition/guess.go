package transition

import (
	"github.com/molkinetics/tsfinder/internal/domain/rearrange"
	"github.com/molkinetics/tsfinder/internal/domain/species"
)

// TSGuess is an unvalidated candidate transition-state geometry together
// with the rearrangement it was generated for and the strategy that
// produced it.  Guesses are transient: they are either promoted to a
// TransitionState or discarded.
type TSGuess struct {
	Species       *species.Species
	Rearrangement *rearrange.Rearrangement
	Origin        string
}

// NewTSGuess snapshots the candidate geometry.
func NewTSGuess(s *species.Species, r *rearrange.Rearrangement, origin string) *TSGuess {
	return &TSGuess{Species: s.Copy(), Rearrangement: r, Origin: origin}
}

// TransitionState is a guess that has survived full optimisation and
// imaginary-mode validation.  Immutable after construction; the reactant
// and product references record what the mode was validated against.
type TransitionState struct {
	Species       *species.Species
	Rearrangement *rearrange.Rearrangement
	Origin        string
	ImagFreqs     []float64 // cm⁻¹, most negative first
	Reactant      *species.Species
	Product       *species.Species
}

// Energy returns the electronic energy of the optimised saddle point.
func (ts *TransitionState) Energy() (float64, bool) { return ts.Species.Energy() }
