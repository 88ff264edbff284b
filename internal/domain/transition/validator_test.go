package transition

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/molkinetics/tsfinder/internal/config"
	"github.com/molkinetics/tsfinder/internal/domain/calc"
	"github.com/molkinetics/tsfinder/internal/domain/molgraph"
	"github.com/molkinetics/tsfinder/internal/domain/rearrange"
	"github.com/molkinetics/tsfinder/internal/domain/species"
)

func searchDefaults() config.SearchConfig {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return cfg.Search
}

// sn2Candidate is a collinear Cl···C···Br geometry whose Hessian carries a
// single mode moving the carbon along x, exactly the substitution
// coordinate.  hVal scales the curvature: large negative values give a
// strong imaginary mode.
func sn2Candidate(hVal float64) *TSGuess {
	s := species.New("sn2_ts", -1, 1, []species.Atom{
		{Label: "Cl", Coord: [3]float64{-2.25, 0, 0}},
		{Label: "C", Coord: [3]float64{0, 0, 0}},
		{Label: "Br", Coord: [3]float64{2.25, 0, 0}},
	})
	h := mat.NewDense(9, 9, nil)
	h.Set(3, 3, hVal) // carbon x coordinate
	s.SetHessian(h)

	r := rearrange.New(
		[]molgraph.Bond{molgraph.NewBond(0, 1)},
		[]molgraph.Bond{molgraph.NewBond(1, 2)},
	)
	return &TSGuess{Species: s, Rearrangement: r, Origin: "test"}
}

// unusedOracle fails the test if the validator calls it.
func unusedOracle(t *testing.T) calc.Oracle {
	return calc.OracleFunc(func(context.Context, *calc.Request) (*calc.Result, error) {
		t.Fatal("oracle must not be called")
		return nil, nil
	})
}

func newValidator(t *testing.T, oracle calc.Oracle) *Validator {
	if oracle == nil {
		oracle = unusedOracle(t)
	}
	return NewValidator(oracle,
		molgraph.NewGeometricBuilder(0.25),
		molgraph.NewLabelledIsomorphism(),
		searchDefaults(), nil)
}

func TestCouldHaveCorrectModeValid(t *testing.T) {
	v := newValidator(t, nil)
	stage, err := v.CouldHaveCorrectMode(context.Background(), sn2Candidate(-144))
	require.NoError(t, err)
	assert.Equal(t, StageValid, stage)
}

func TestCouldHaveCorrectModeNoImaginary(t *testing.T) {
	v := newValidator(t, nil)
	stage, err := v.CouldHaveCorrectMode(context.Background(), sn2Candidate(+144))
	require.NoError(t, err)
	assert.Equal(t, StageNoImagMode, stage)
}

// An imaginary frequency below the threshold stops validation before any
// displacement work: the unused oracle proves no further calculation runs.
func TestCouldHaveCorrectModeBelowThreshold(t *testing.T) {
	v := newValidator(t, nil)
	stage, err := v.CouldHaveCorrectMode(context.Background(), sn2Candidate(-1e-6))
	require.NoError(t, err)
	assert.Equal(t, StageModeTooSmall, stage)
}

// A mode moving an atom unrelated to the rearrangement fails plausibility.
func TestCouldHaveCorrectModeWrongAtom(t *testing.T) {
	g := sn2Candidate(0)
	h := mat.NewDense(9, 9, nil)
	h.Set(1, 1, -144) // chlorine y: orthogonal to every active bond
	g.Species.SetHessian(h)

	v := newValidator(t, nil)
	stage, err := v.CouldHaveCorrectMode(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, StageImplausible, stage)
}

func TestCouldHaveCorrectModeComputesHessianWhenAbsent(t *testing.T) {
	g := sn2Candidate(-144)
	wantHessian := g.Species.Hessian()
	g.Species.SetHessian(nil)

	calls := 0
	oracle := calc.OracleFunc(func(_ context.Context, req *calc.Request) (*calc.Result, error) {
		calls++
		assert.Equal(t, calc.TaskHessian, req.Task)
		return &calc.Result{TerminatedNormally: true, Hessian: wantHessian}, nil
	})

	v := newValidator(t, oracle)
	stage, err := v.CouldHaveCorrectMode(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, StageValid, stage)
	assert.Equal(t, 1, calls)
}

func TestHasCorrectModeStrictDisplacement(t *testing.T) {
	g := sn2Candidate(-144)
	reactant := g.Species.Copy()
	product := g.Species.Copy()

	v := newValidator(t, nil)
	stage, err := v.HasCorrectMode(context.Background(), g, reactant, product)
	require.NoError(t, err)
	assert.Equal(t, StageValid, stage)
}

func TestHasCorrectModeMissingEndpointsFailsFast(t *testing.T) {
	v := newValidator(t, nil)
	_, err := v.HasCorrectMode(context.Background(), sn2Candidate(-144), nil, nil)
	assert.Error(t, err)
}

// Validation is deterministic: repeating the full check on an accepted
// candidate with the same Hessian accepts it again.
func TestHasCorrectModeIdempotent(t *testing.T) {
	g := sn2Candidate(-144)
	reactant := g.Species.Copy()
	product := g.Species.Copy()
	v := newValidator(t, nil)

	for i := 0; i < 2; i++ {
		stage, err := v.HasCorrectMode(context.Background(), g, reactant, product)
		require.NoError(t, err)
		assert.Equal(t, StageValid, stage)
	}
}
