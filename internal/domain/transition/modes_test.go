package transition

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/molkinetics/tsfinder/internal/domain/species"
)

// diatomicHessian builds the 6×6 Cartesian Hessian of a diatomic stretched
// along x with force constant k (negative k gives an imaginary stretch).
func diatomicHessian(k float64) *mat.Dense {
	h := mat.NewDense(6, 6, nil)
	h.Set(0, 0, k)
	h.Set(3, 3, k)
	h.Set(0, 3, -k)
	h.Set(3, 0, -k)
	return h
}

func hydrogenMolecule() *species.Species {
	return species.New("h2", 0, 1, []species.Atom{
		{Label: "H", Coord: [3]float64{0, 0, 0}},
		{Label: "H", Coord: [3]float64{0.74, 0, 0}},
	})
}

func TestNormalModesDiatomicStretch(t *testing.T) {
	s := hydrogenMolecule()
	s.SetHessian(diatomicHessian(1.0))

	modes, err := NormalModes(s)
	require.NoError(t, err)
	require.Len(t, modes, 6)

	// Highest mode is the stretch: ν = conv·sqrt(2k/m).
	want := freqConversion * math.Sqrt(2.0/1.008)
	assert.InDelta(t, want, modes[5].Freq, 1e-6)

	// The stretch moves the atoms oppositely along x.
	d := modes[5].Displacement
	assert.InDelta(t, -d[1][0], d[0][0], 1e-9)
	assert.InDelta(t, 0, d[0][1], 1e-9)
}

func TestNormalModesImaginaryFirst(t *testing.T) {
	s := hydrogenMolecule()
	s.SetHessian(diatomicHessian(-1.0))

	modes, err := NormalModes(s)
	require.NoError(t, err)

	want := -freqConversion * math.Sqrt(2.0/1.008)
	assert.InDelta(t, want, modes[0].Freq, 1e-6)
	assert.Negative(t, modes[0].Freq)
}

func TestNormalModesRequiresHessian(t *testing.T) {
	_, err := NormalModes(hydrogenMolecule())
	assert.Error(t, err)
}

func TestNormalModesDimensionMismatch(t *testing.T) {
	s := hydrogenMolecule()
	s.SetHessian(mat.NewDense(3, 3, nil))
	_, err := NormalModes(s)
	assert.Error(t, err)
}

func TestImagFreqsFilter(t *testing.T) {
	modes := []Mode{{Freq: -500}, {Freq: -20}, {Freq: 0}, {Freq: 1500}}
	assert.Equal(t, []float64{-500, -20}, ImagFreqs(modes, 0))
	assert.Equal(t, []float64{-500}, ImagFreqs(modes, 50))
	assert.Empty(t, ImagFreqs([]Mode{{Freq: 900}}, 0))
}

func TestDisplacedSpeciesMovesAlongMode(t *testing.T) {
	s := hydrogenMolecule()
	mode := Mode{Displacement: [][3]float64{
		{-math.Sqrt2 / 2, 0, 0},
		{math.Sqrt2 / 2, 0, 0},
	}}

	fwd := DisplacedSpecies(s, mode, 0.2, 1.0)
	assert.Greater(t, fwd.Distance(0, 1), s.Distance(0, 1))

	bwd := DisplacedSpecies(s, mode, -0.2, 1.0)
	assert.Less(t, bwd.Distance(0, 1), s.Distance(0, 1))

	// Source untouched.
	assert.InDelta(t, 0.74, s.Distance(0, 1), 1e-12)
}

// Displacement bounding: no atom ever moves further than the cap, whatever
// the requested magnitude.
func TestDisplacedSpeciesBounded(t *testing.T) {
	s := hydrogenMolecule()
	mode := Mode{Displacement: [][3]float64{{1, 0, 0}, {0, 0, 0}}}

	for _, magnitude := range []float64{0.1, 1.0, 5.0, 100.0, -7.5} {
		for _, cap := range []float64{0.05, 0.2, 0.5} {
			d := DisplacedSpecies(s, mode, magnitude, cap)
			assert.LessOrEqual(t, maxDisplacement(s, d), cap+1e-9,
				"magnitude %v cap %v", magnitude, cap)
		}
	}
}

func TestDisplacedSpeciesWithinCapUnscaled(t *testing.T) {
	s := hydrogenMolecule()
	mode := Mode{Displacement: [][3]float64{{1, 0, 0}, {0, 0, 0}}}

	d := DisplacedSpecies(s, mode, 0.1, 0.5)
	assert.InDelta(t, 0.1, maxDisplacement(s, d), 1e-12)
}
