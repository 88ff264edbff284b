package reaction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/molkinetics/tsfinder/internal/config"
	"github.com/molkinetics/tsfinder/internal/domain/calc"
	"github.com/molkinetics/tsfinder/internal/domain/species"
	"github.com/molkinetics/tsfinder/internal/testutil"
	"github.com/molkinetics/tsfinder/pkg/errors"
	"github.com/molkinetics/tsfinder/pkg/types/chem"
)

func searchConfig() config.Config {
	cfg := config.Config{}
	config.ApplyDefaults(&cfg)
	cfg.Search.OrientationSeed = 11
	return cfg
}

// sn2Molecules builds Cl⁻ + CH3Br → CH3Cl + Br⁻ with product atom order
// chosen so that complex indexing matches the reactant side: 0=Cl, 1=C,
// 2..4=H, 5=Br on both.
func sn2Molecules() (reactants, products []*species.Species) {
	chloride := species.New("chloride", -1, 1, []species.Atom{
		{Label: "Cl", Coord: [3]float64{-6, 1, 1}},
	})
	bromomethane := species.New("bromomethane", 0, 1, []species.Atom{
		{Label: "C", Coord: [3]float64{0, 0, 0}},
		{Label: "H", Coord: [3]float64{-0.36, 1.03, 0}},
		{Label: "H", Coord: [3]float64{-0.36, -0.51, 0.89}},
		{Label: "H", Coord: [3]float64{-0.36, -0.51, -0.89}},
		{Label: "Br", Coord: [3]float64{1.93, 0, 0}},
	})
	chloromethane := species.New("chloromethane", 0, 1, []species.Atom{
		{Label: "Cl", Coord: [3]float64{-1.77, 0, 0}},
		{Label: "C", Coord: [3]float64{0, 0, 0}},
		{Label: "H", Coord: [3]float64{0.36, 1.03, 0}},
		{Label: "H", Coord: [3]float64{0.36, -0.51, 0.89}},
		{Label: "H", Coord: [3]float64{0.36, -0.51, -0.89}},
	})
	bromide := species.New("bromide", -1, 1, []species.Atom{
		{Label: "Br", Coord: [3]float64{5, 5, 5}},
	})
	return []*species.Species{chloride, bromomethane},
		[]*species.Species{chloromethane, bromide}
}

// methylModeHessian carries one imaginary mode that moves the carbon and
// its three hydrogens together along x, leaving the C-H distances intact.
// Atom order: Cl, C, H, H, H, Br.
func methylModeHessian() *mat.Dense {
	mC, _ := chem.AtomicMass("C")
	mH, _ := chem.AtomicMass("H")
	u := make([]float64, 18)
	u[3] = mC
	u[6], u[9], u[12] = mH, mH, mH

	h := mat.NewDense(18, 18, nil)
	for i := range u {
		for j := range u {
			h.Set(i, j, -0.01*u[i]*u[j])
		}
	}
	return h
}

func tsCoords(dA, dB float64) [][3]float64 {
	return [][3]float64{
		{-dA, 0, 0},
		{0, 0, 0},
		{0, 1.09, 0},
		{0, -0.545, 0.944},
		{0, -0.545, -0.944},
		{dB, 0, 0},
	}
}

// sn2Oracle scripts the search: 2-D scan points get a barrier along the
// forming/breaking distance difference, Hessians carry the methyl mode and
// saddle refinements converge in place.
func sn2Oracle() calc.Oracle {
	return calc.OracleFunc(func(_ context.Context, req *calc.Request) (*calc.Result, error) {
		switch {
		case req.Task == calc.TaskHessian:
			e := -99.5
			return &calc.Result{TerminatedNormally: true, Energy: &e, Hessian: methylModeHessian()}, nil

		case req.Task == calc.TaskOptTS:
			e := -99.9
			return &calc.Result{TerminatedNormally: true, Energy: &e, Coords: req.Coords}, nil

		case len(req.DistanceConstraints) == 2:
			dA := req.DistanceConstraints[0].Distance
			dB := req.DistanceConstraints[1].Distance
			e := -(dA - dB) * (dA - dB)
			return &calc.Result{TerminatedNormally: true, Energy: &e, Coords: tsCoords(dA, dB)}, nil

		default:
			return &calc.Result{TerminatedNormally: false}, nil
		}
	})
}

// failingOracle never converges, exhausting every strategy.
func failingOracle() *testutil.ScriptedOracle {
	return testutil.NewScriptedOracle()
}

func TestLocateSN2(t *testing.T) {
	reactants, products := sn2Molecules()
	r, err := New("sn2", reactants, products)
	require.NoError(t, err)
	assert.Equal(t, chem.ClassSubstitution, r.Class)

	loc := NewLocator(sn2Oracle(), nil, searchConfig(), nil)
	found, err := loc.Locate(context.Background(), r)
	require.NoError(t, err)
	require.Len(t, found, 1)

	ts := found[0]
	assert.Equal(t, "ll_2d", ts.Origin, "a 1fb/1bb substitution must be solved by the cheap 2-D scan")
	assert.Equal(t, "f:0-1|b:1-5", ts.Rearrangement.Signature())
	require.NotEmpty(t, ts.ImagFreqs)
	assert.Negative(t, ts.ImagFreqs[0])

	e, ok := ts.Energy()
	require.True(t, ok)
	assert.InDelta(t, -99.5, e, 1e-9)

	assert.Equal(t, found, r.TSs)
	assert.Same(t, ts, r.LowestEnergyTS())
}

// menshutkinMolecules builds CH3Br + NH3 → CH3NH3⁺ + Br⁻: every reactant
// is neutral and charge only separates on the product side.  Complex atom
// order on both sides: 0=N, 1..3=H, 4=C, 5..7=H, 8=Br.
func menshutkinMolecules() (reactants, products []*species.Species) {
	ammonia := species.New("ammonia", 0, 1, []species.Atom{
		{Label: "N", Coord: [3]float64{-5, 0, 0}},
		{Label: "H", Coord: [3]float64{-5.36, 1.03, 0}},
		{Label: "H", Coord: [3]float64{-5.36, -0.51, 0.89}},
		{Label: "H", Coord: [3]float64{-5.36, -0.51, -0.89}},
	})
	bromomethane := species.New("bromomethane", 0, 1, []species.Atom{
		{Label: "C", Coord: [3]float64{0, 0, 0}},
		{Label: "H", Coord: [3]float64{-0.36, 1.03, 0}},
		{Label: "H", Coord: [3]float64{-0.36, -0.51, 0.89}},
		{Label: "H", Coord: [3]float64{-0.36, -0.51, -0.89}},
		{Label: "Br", Coord: [3]float64{1.93, 0, 0}},
	})
	methylammonium := species.New("methylammonium", 1, 1, []species.Atom{
		{Label: "N", Coord: [3]float64{0, 0, 0}},
		{Label: "H", Coord: [3]float64{-0.36, 1.03, 0}},
		{Label: "H", Coord: [3]float64{-0.36, -0.51, 0.89}},
		{Label: "H", Coord: [3]float64{-0.36, -0.51, -0.89}},
		{Label: "C", Coord: [3]float64{1.47, 0, 0}},
		{Label: "H", Coord: [3]float64{1.83, 1.03, 0}},
		{Label: "H", Coord: [3]float64{1.83, -0.51, 0.89}},
		{Label: "H", Coord: [3]float64{1.83, -0.51, -0.89}},
	})
	bromide := species.New("bromide", -1, 1, []species.Atom{
		{Label: "Br", Coord: [3]float64{6, 6, 6}},
	})
	return []*species.Species{ammonia, bromomethane},
		[]*species.Species{methylammonium, bromide}
}

// A Menshutkin substitution forms an ion pair from neutral reactants, so
// the scans must stretch the breaking C-Br bond by the long charged shift
// even though the reactant complex carries no net charge.
func TestLocateMenshutkinUsesChargedBreakingShift(t *testing.T) {
	reactants, products := menshutkinMolecules()
	r, err := New("menshutkin", reactants, products)
	require.NoError(t, err)
	assert.Equal(t, chem.ClassSubstitution, r.Class)

	cfg := searchConfig()
	orc := testutil.NewScriptedOracle()
	loc := NewLocator(orc, nil, cfg, nil)

	// Nothing converges; the scans still reach the oracle in full.
	_, err = loc.Locate(context.Background(), r)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNoTransitionState, errors.GetCode(err))

	startCBr := 1.93
	maxCBr := 0.0
	for _, req := range orc.Requests() {
		for _, c := range req.DistanceConstraints {
			if c.I == 4 && c.J == 8 && c.Distance > maxCBr {
				maxCBr = c.Distance
			}
		}
	}
	require.Greater(t, maxCBr, 0.0, "no scan constrained the breaking bond")
	assert.InDelta(t, startCBr+cfg.Search.BreakingBondShiftCharged, maxCBr, 1e-9)
}

func TestLocateExhaustion(t *testing.T) {
	reactants, products := sn2Molecules()
	r, err := New("sn2", reactants, products)
	require.NoError(t, err)

	orc := failingOracle()
	log := testutil.NewCaptureLogger()
	loc := NewLocator(orc, nil, searchConfig(), log)
	found, err := loc.Locate(context.Background(), r)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNoTransitionState, errors.GetCode(err))
	assert.Empty(t, found)
	assert.Empty(t, r.TSs)
	assert.NotEmpty(t, orc.Requests(), "every strategy should have reached the oracle")
	assert.Contains(t, log.Messages("info"), "enumerated bond rearrangements")
}

func TestLocateNoRearrangement(t *testing.T) {
	water := func(name string) *species.Species {
		return species.New(name, 0, 1, []species.Atom{
			{Label: "O", Coord: [3]float64{0, 0, 0}},
			{Label: "H", Coord: [3]float64{0.96, 0, 0}},
			{Label: "H", Coord: [3]float64{-0.24, 0.93, 0}},
		})
	}
	r, err := New("identity", []*species.Species{water("a")}, []*species.Species{water("b")})
	require.NoError(t, err)

	loc := NewLocator(failingOracle(), nil, searchConfig(), nil)
	_, err = loc.Locate(context.Background(), r)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNoRearrangement, errors.GetCode(err))
}

// A 1→1 reaction whose product has more bonds is an intramolecular
// addition and is searched in reverse.
func TestLocateReversesIntramolecularAddition(t *testing.T) {
	open := species.New("open", 0, 1, []species.Atom{
		{Label: "C", Coord: [3]float64{0, 0, 0}},
		{Label: "O", Coord: [3]float64{5, 0, 0}},
	})
	closed := species.New("closed", 0, 1, []species.Atom{
		{Label: "C", Coord: [3]float64{0, 0, 0}},
		{Label: "O", Coord: [3]float64{1.43, 0, 0}},
	})
	r, err := New("cyclisation", []*species.Species{open}, []*species.Species{closed})
	require.NoError(t, err)
	assert.Equal(t, chem.ClassRearrangement, r.Class)

	loc := NewLocator(failingOracle(), nil, searchConfig(), nil)
	_, err = loc.Locate(context.Background(), r)

	assert.True(t, r.Switched)
	assert.Equal(t, "closed", r.Reactants[0].Name)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNoTransitionState, errors.GetCode(err))
}
