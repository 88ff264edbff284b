package scan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/molkinetics/tsfinder/internal/domain/calc"
	"github.com/molkinetics/tsfinder/internal/domain/molgraph"
	"github.com/molkinetics/tsfinder/internal/domain/species"
	"github.com/molkinetics/tsfinder/pkg/errors"
)

// pair is two atoms 2.0 Å apart along x.
func pair() *species.Species {
	return species.New("pair", 0, 1, []species.Atom{
		{Label: "C", Coord: [3]float64{0, 0, 0}},
		{Label: "O", Coord: [3]float64{2, 0, 0}},
	})
}

// profileOracle reports an energy computed from the first distance
// constraint and returns a geometry realising it.
func profileOracle(energyAt func(d float64) float64) calc.Oracle {
	return calc.OracleFunc(func(_ context.Context, req *calc.Request) (*calc.Result, error) {
		d := req.DistanceConstraints[0].Distance
		coords := make([][3]float64, len(req.Coords))
		copy(coords, req.Coords)
		coords[1] = [3]float64{d, 0, 0}
		e := energyAt(d)
		return &calc.Result{TerminatedNormally: true, Energy: &e, Coords: coords}, nil
	})
}

func TestScan1DFindsInteriorMaximum(t *testing.T) {
	// Barrier peaked at d = 1.5 on the way from 2.0 to 1.0.
	oracle := profileOracle(func(d float64) float64 { return -(d - 1.5) * (d - 1.5) })
	sc := NewScanner(oracle, nil)

	out, err := sc.Scan1D(context.Background(), pair(),
		Request{Bond: molgraph.NewBond(0, 1), Final: 1.0}, 5, calc.TaskLowOpt, calc.LevelLow)
	require.NoError(t, err)

	assert.InDelta(t, 0, out.Energy, 1e-12)
	assert.InDelta(t, 1.5, out.Peak.Distance(0, 1), 1e-12)
	assert.Len(t, out.Points, 5)
}

func TestScan1DMonotonicProfile(t *testing.T) {
	oracle := profileOracle(func(d float64) float64 { return -d })
	sc := NewScanner(oracle, nil)

	_, err := sc.Scan1D(context.Background(), pair(),
		Request{Bond: molgraph.NewBond(0, 1), Final: 1.0}, 5, calc.TaskLowOpt, calc.LevelLow)

	assert.True(t, errors.IsCode(err, errors.ErrCodeScanMonotonic))
	assert.True(t, errors.IsPerAttempt(err))
}

func TestScan1DSkipsFailedPoints(t *testing.T) {
	inner := profileOracle(func(d float64) float64 { return -(d - 1.5) * (d - 1.5) })
	call := 0
	oracle := calc.OracleFunc(func(ctx context.Context, req *calc.Request) (*calc.Result, error) {
		call++
		if call == 2 { // second point does not converge
			return &calc.Result{TerminatedNormally: false}, nil
		}
		return inner.Run(ctx, req)
	})
	sc := NewScanner(oracle, nil)

	out, err := sc.Scan1D(context.Background(), pair(),
		Request{Bond: molgraph.NewBond(0, 1), Final: 1.0}, 5, calc.TaskLowOpt, calc.LevelLow)
	require.NoError(t, err)

	assert.Len(t, out.Points, 4)
	assert.InDelta(t, 1.5, out.Peak.Distance(0, 1), 1e-12)
}

func TestScan1DAllPointsFailed(t *testing.T) {
	oracle := calc.OracleFunc(func(context.Context, *calc.Request) (*calc.Result, error) {
		return &calc.Result{TerminatedNormally: false}, nil
	})
	sc := NewScanner(oracle, nil)

	_, err := sc.Scan1D(context.Background(), pair(),
		Request{Bond: molgraph.NewBond(0, 1), Final: 1.0}, 5, calc.TaskLowOpt, calc.LevelLow)
	assert.True(t, errors.IsCode(err, errors.ErrCodeScanAllPointsFailed))
}

func TestScan1DFatalErrorAborts(t *testing.T) {
	oracle := calc.OracleFunc(func(context.Context, *calc.Request) (*calc.Result, error) {
		return nil, errors.Precondition("broken wiring")
	})
	sc := NewScanner(oracle, nil)

	_, err := sc.Scan1D(context.Background(), pair(),
		Request{Bond: molgraph.NewBond(0, 1), Final: 1.0}, 5, calc.TaskLowOpt, calc.LevelLow)
	assert.True(t, errors.IsCode(err, errors.ErrCodePrecondition))
}

func TestScan1DTooFewPoints(t *testing.T) {
	sc := NewScanner(profileOracle(func(float64) float64 { return 0 }), nil)
	_, err := sc.Scan1D(context.Background(), pair(),
		Request{Bond: molgraph.NewBond(0, 1), Final: 1.0}, 2, calc.TaskLowOpt, calc.LevelLow)
	assert.Error(t, err)
}

// chain is three collinear atoms: forming bond 0-1 at 3.0 Å, breaking bond
// 1-2 at 1.5 Å.
func chain() *species.Species {
	return species.New("chain", 0, 1, []species.Atom{
		{Label: "Cl", Coord: [3]float64{-3, 0, 0}},
		{Label: "C", Coord: [3]float64{0, 0, 0}},
		{Label: "Br", Coord: [3]float64{1.5, 0, 0}},
	})
}

// surfaceOracle evaluates an energy from both distance constraints.
func surfaceOracle(energyAt func(dA, dB float64) float64) calc.Oracle {
	return calc.OracleFunc(func(_ context.Context, req *calc.Request) (*calc.Result, error) {
		dA := req.DistanceConstraints[0].Distance
		dB := req.DistanceConstraints[1].Distance
		coords := make([][3]float64, len(req.Coords))
		copy(coords, req.Coords)
		coords[0] = [3]float64{-dA, 0, 0}
		coords[2] = [3]float64{dB, 0, 0}
		e := energyAt(dA, dB)
		return &calc.Result{TerminatedNormally: true, Energy: &e, Coords: coords}, nil
	})
}

func TestScan2DFindsSaddle(t *testing.T) {
	// u = dA-dB follows the scanned diagonal, v = dA+dB the crossing one:
	// -u² + (v-4.5)² is an exact saddle at dA = dB = 2.25.
	oracle := surfaceOracle(func(dA, dB float64) float64 {
		u, v := dA-dB, dA+dB
		return -u*u + (v-4.5)*(v-4.5)
	})
	sc := NewScanner(oracle, nil)

	out, err := sc.Scan2D(context.Background(), chain(),
		Request{Bond: molgraph.NewBond(0, 1), Final: 1.5},
		Request{Bond: molgraph.NewBond(1, 2), Final: 3.0},
		5, 5, calc.TaskLowOpt, calc.LevelLow)
	require.NoError(t, err)

	assert.InDelta(t, 0, out.Energy, 1e-12)
	assert.InDelta(t, 2.25, out.Peak.Distance(0, 1), 1e-12)
	assert.InDelta(t, 2.25, out.Peak.Distance(1, 2), 1e-12)
}

func TestScan2DFallsBackToDiagonalRidge(t *testing.T) {
	// A pure barrier along the diagonal with no curvature across it: the
	// strict saddle test fails, the diagonal fallback still yields the
	// highest interior diagonal point.
	oracle := surfaceOracle(func(dA, dB float64) float64 {
		u := dA - dB
		return -u * u
	})
	sc := NewScanner(oracle, nil)

	out, err := sc.Scan2D(context.Background(), chain(),
		Request{Bond: molgraph.NewBond(0, 1), Final: 1.5},
		Request{Bond: molgraph.NewBond(1, 2), Final: 3.0},
		5, 5, calc.TaskLowOpt, calc.LevelLow)
	require.NoError(t, err)
	assert.InDelta(t, 0, out.Energy, 1e-12)
}

func TestScan2DAllPointsFailed(t *testing.T) {
	oracle := calc.OracleFunc(func(context.Context, *calc.Request) (*calc.Result, error) {
		return &calc.Result{TerminatedNormally: false}, nil
	})
	sc := NewScanner(oracle, nil)

	_, err := sc.Scan2D(context.Background(), chain(),
		Request{Bond: molgraph.NewBond(0, 1), Final: 1.5},
		Request{Bond: molgraph.NewBond(1, 2), Final: 3.0},
		4, 4, calc.TaskLowOpt, calc.LevelLow)
	assert.True(t, errors.IsCode(err, errors.ErrCodeScanAllPointsFailed))
}

func TestLinspace(t *testing.T) {
	got := linspace(2.0, 1.0, 5)
	want := []float64{2.0, 1.75, 1.5, 1.25, 1.0}
	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-12)
	}
}
