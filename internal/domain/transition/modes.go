// Package transition turns validated candidate geometries into transition
// states: normal-mode analysis of oracle Hessians, the ordered guess
// pipeline, imaginary-mode validation and template persistence.
package transition

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/molkinetics/tsfinder/internal/domain/species"
	"github.com/molkinetics/tsfinder/pkg/errors"
	"github.com/molkinetics/tsfinder/pkg/types/chem"
)

// freqConversion converts sqrt eigenvalues of a mass-weighted Hessian in
// Ha Å⁻² amu⁻¹ into wavenumbers (cm⁻¹).
const freqConversion = 2720.43

// Mode is one vibrational normal mode.  A negative Freq denotes an
// imaginary mode, reported as -|ν|.
type Mode struct {
	Freq         float64      // cm⁻¹
	Displacement [][3]float64 // unit Cartesian displacement per atom
}

// NormalModes diagonalises the mass-weighted Hessian of s and returns every
// mode sorted by frequency ascending, so imaginary modes come first with
// the dominant one at index 0.  Rotations and translations appear as
// near-zero modes and are not projected out; callers filter by magnitude.
func NormalModes(s *species.Species) ([]Mode, error) {
	h := s.Hessian()
	if h == nil {
		return nil, errors.Precondition("species has no hessian")
	}
	n := s.NAtoms()
	dim := 3 * n
	if r, c := h.Dims(); r != dim || c != dim {
		return nil, errors.New(errors.ErrCodeCalcNoHessian, "hessian dimensions do not match atom count")
	}

	invSqrtMass := make([]float64, dim)
	for i := 0; i < n; i++ {
		m, ok := chem.AtomicMass(s.Atoms[i].Label)
		if !ok || m <= 0 {
			return nil, errors.InvalidParam("no atomic mass for element " + s.Atoms[i].Label)
		}
		w := 1 / math.Sqrt(m)
		invSqrtMass[3*i] = w
		invSqrtMass[3*i+1] = w
		invSqrtMass[3*i+2] = w
	}

	// Symmetrise and mass-weight: numerical Hessians are only symmetric to
	// the oracle's finite-difference accuracy.
	mw := mat.NewSymDense(dim, nil)
	for i := 0; i < dim; i++ {
		for j := i; j < dim; j++ {
			v := 0.5 * (h.At(i, j) + h.At(j, i))
			mw.SetSym(i, j, v*invSqrtMass[i]*invSqrtMass[j])
		}
	}

	var eig mat.EigenSym
	if !eig.Factorize(mw, true) {
		return nil, errors.New(errors.ErrCodeCalcNoHessian, "hessian eigendecomposition failed")
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	modes := make([]Mode, dim)
	for k := 0; k < dim; k++ {
		freq := freqConversion * math.Sqrt(math.Abs(vals[k]))
		if vals[k] < 0 {
			freq = -freq
		}

		disp := make([][3]float64, n)
		norm := 0.0
		for i := 0; i < n; i++ {
			for c := 0; c < 3; c++ {
				v := vecs.At(3*i+c, k) * invSqrtMass[3*i+c]
				disp[i][c] = v
				norm += v * v
			}
		}
		norm = math.Sqrt(norm)
		if norm > 1e-12 {
			for i := range disp {
				for c := 0; c < 3; c++ {
					disp[i][c] /= norm
				}
			}
		}
		modes[k] = Mode{Freq: freq, Displacement: disp}
	}

	sort.SliceStable(modes, func(i, j int) bool { return modes[i].Freq < modes[j].Freq })
	return modes, nil
}

// ImagFreqs extracts the imaginary frequencies below the noise threshold,
// most negative first.
func ImagFreqs(modes []Mode, noiseCutoff float64) []float64 {
	var out []float64
	for _, m := range modes {
		if m.Freq < -noiseCutoff {
			out = append(out, m.Freq)
		}
	}
	return out
}

// shrinkSteps bounds the displacement-scale reduction loop.
const shrinkSteps = 20

// DisplacedSpecies returns a copy of s displaced along the mode by
// magnitude (sign selects the direction).  The scale is reduced in fixed
// decrements until no single atom moves further than maxAtomDisp; if even
// the smallest scale overshoots, the displacement is rescaled exactly to
// the cap, so the bound always holds.
func DisplacedSpecies(s *species.Species, mode Mode, magnitude, maxAtomDisp float64) *species.Species {
	factor := magnitude
	step := math.Abs(magnitude) / shrinkSteps

	var out *species.Species
	for i := 0; i < shrinkSteps; i++ {
		out = displace(s, mode, factor)
		if maxDisplacement(s, out) <= maxAtomDisp {
			return out
		}
		if factor > 0 {
			factor -= step
		} else {
			factor += step
		}
	}

	worst := maxDisplacement(s, out)
	if worst > maxAtomDisp && worst > 1e-12 {
		out = displace(s, mode, factor*maxAtomDisp/worst)
	}
	return out
}

func displace(s *species.Species, mode Mode, factor float64) *species.Species {
	out := s.Copy()
	coords := out.Coordinates()
	for i := range coords {
		for c := 0; c < 3; c++ {
			coords[i][c] += factor * mode.Displacement[i][c]
		}
	}
	_ = out.SetCoordinates(coords)
	return out
}

func maxDisplacement(a, b *species.Species) float64 {
	worst := 0.0
	for i := range a.Atoms {
		d := 0.0
		for c := 0; c < 3; c++ {
			diff := a.Atoms[i].Coord[c] - b.Atoms[i].Coord[c]
			d += diff * diff
		}
		if d = math.Sqrt(d); d > worst {
			worst = d
		}
	}
	return worst
}
