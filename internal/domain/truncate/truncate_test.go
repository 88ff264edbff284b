package truncate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/molkinetics/tsfinder/internal/domain/molgraph"
	"github.com/molkinetics/tsfinder/internal/domain/rearrange"
	"github.com/molkinetics/tsfinder/internal/domain/species"
)

// alkylChloride builds a linear alkyl chain C0-C1-...-C(n-1)-Cl with the
// chloride as the last atom and 1.5 Å spacing, plus a distant fluoride to
// attack the terminal carbon.
func alkylChloride(nCarbons int) (*species.Species, *molgraph.Graph, *rearrange.Rearrangement) {
	var atoms []species.Atom
	labels := make([]string, 0, nCarbons+2)
	for i := 0; i < nCarbons; i++ {
		atoms = append(atoms, species.Atom{Label: "C", Coord: [3]float64{float64(i) * 1.5, 0, 0}})
		labels = append(labels, "C")
	}
	cl := nCarbons
	atoms = append(atoms, species.Atom{Label: "Cl", Coord: [3]float64{float64(nCarbons) * 1.5, 0, 0}})
	labels = append(labels, "Cl")
	f := nCarbons + 1
	atoms = append(atoms, species.Atom{Label: "F", Coord: [3]float64{float64(nCarbons)*1.5 - 1.5, 3, 0}})
	labels = append(labels, "F")

	g := molgraph.NewGraph(labels)
	for i := 0; i < nCarbons-1; i++ {
		_ = g.AddBond(i, i+1)
	}
	_ = g.AddBond(nCarbons-1, cl)

	r := rearrange.New(
		[]molgraph.Bond{molgraph.NewBond(nCarbons-1, f)},
		[]molgraph.Bond{molgraph.NewBond(nCarbons-1, cl)},
	)
	return species.New("alkyl", -1, 1, atoms), g, r
}

func TestCoreAtoms(t *testing.T) {
	_, g, r := alkylChloride(6)

	// Active atoms: C5, Cl(6), F(7).  Neighbours of C5: C4 and Cl.
	assert.Equal(t, []int{4, 5, 6, 7}, CoreAtoms(g, r))
}

func TestWorthTruncating(t *testing.T) {
	big, g, r := alkylChloride(20)
	assert.True(t, WorthTruncating(big, g, r, 15))

	// Below the size threshold.
	assert.False(t, WorthTruncating(big, g, r, 50))

	// Too few atoms saved.
	small, gs, rs := alkylChloride(6)
	assert.False(t, WorthTruncating(small, gs, rs, 3))
}

func TestTruncateKeepsCoreAndCaps(t *testing.T) {
	s, g, r := alkylChloride(10)

	tr, err := Truncate(s, g, r)
	require.NoError(t, err)

	// Core C8(idx 8? no: atoms 9=C last, 10=Cl, 11=F): active = {9, 10, 11},
	// neighbours of C9 add C8.  One severed bond C8-C7 gains a cap.
	assert.Equal(t, []int{8, 9, 10, 11, -1}, tr.ToOriginal)
	assert.Equal(t, 5, tr.Species.NAtoms())
	assert.Equal(t, "H", tr.Species.Atoms[4].Label)

	// Charge and multiplicity carry over.
	assert.Equal(t, s.Charge, tr.Species.Charge)
	assert.Equal(t, s.Mult, tr.Species.Mult)
}

func TestTruncateRemapsRearrangement(t *testing.T) {
	s, g, r := alkylChloride(10)
	tr, err := Truncate(s, g, r)
	require.NoError(t, err)

	// Original active atoms 9, 10, 11 become 1, 2, 3.
	assert.Equal(t, []molgraph.Bond{{1, 3}}, tr.Rearrangement.FBonds)
	assert.Equal(t, []molgraph.Bond{{1, 2}}, tr.Rearrangement.BBonds)
}

// Round trip: every non-cap truncated atom maps to a distinct original atom
// and every original active atom survives.
func TestTruncateRoundTrip(t *testing.T) {
	s, g, r := alkylChloride(12)
	tr, err := Truncate(s, g, r)
	require.NoError(t, err)

	seen := map[int]bool{}
	for ti, oi := range tr.ToOriginal {
		if oi < 0 {
			continue
		}
		assert.False(t, seen[oi])
		seen[oi] = true
		require.Less(t, oi, s.NAtoms())
		assert.Equal(t, s.Atoms[oi].Label, tr.Species.Atoms[ti].Label)
		assert.Equal(t, s.Atoms[oi].Coord, tr.Species.Atoms[ti].Coord)
	}
	for _, a := range r.ActiveAtoms() {
		assert.GreaterOrEqual(t, tr.FromOriginal(a), 0)
	}
	assert.Less(t, tr.Species.NAtoms(), s.NAtoms())
}

func TestTruncateCapGeometry(t *testing.T) {
	s, g, r := alkylChloride(10)
	tr, err := Truncate(s, g, r)
	require.NoError(t, err)

	// Cap sits along the severed C8→C7 direction at the C-H distance.
	capIdx := 4
	coreC := 0 // truncated index of original atom 8
	d := tr.Species.Distance(coreC, capIdx)
	assert.InDelta(t, 1.09, d, 1e-9)
}

func TestTruncateEveryAtomCore(t *testing.T) {
	s, g, r := alkylChloride(2) // all four atoms end up in the core
	_, err := Truncate(s, g, r)
	assert.Error(t, err)
}

func TestTruncateNilGraph(t *testing.T) {
	s, _, r := alkylChloride(6)
	_, err := Truncate(s, nil, r)
	assert.Error(t, err)
}
