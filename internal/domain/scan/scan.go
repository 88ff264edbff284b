// Package scan drives constrained-optimisation scans along one or two bond
// distances.  Each point's optimised geometry seeds the next point, so a
// scan is a continuation walk across the energy surface; the extremal point
// becomes the candidate transition-state geometry.
package scan

import (
	"context"
	"fmt"
	"math"

	"github.com/molkinetics/tsfinder/internal/domain/calc"
	"github.com/molkinetics/tsfinder/internal/domain/molgraph"
	"github.com/molkinetics/tsfinder/internal/domain/species"
	"github.com/molkinetics/tsfinder/internal/infrastructure/monitoring/logging"
	"github.com/molkinetics/tsfinder/pkg/errors"
)

// Point is one converged scan point.
type Point struct {
	Distances []float64 // constrained bond distances at this point
	Energy    float64
	Geometry  *species.Species
}

// Outcome is a completed scan: the full profile plus the extremal geometry
// selected as the candidate.
type Outcome struct {
	Peak   *species.Species
	Energy float64
	Points []Point
}

// Scanner runs scans through a calculation oracle.
type Scanner struct {
	oracle calc.Oracle
	log    logging.Logger
}

// NewScanner wires a scanner to its oracle.
func NewScanner(oracle calc.Oracle, log logging.Logger) *Scanner {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Scanner{oracle: oracle, log: log}
}

// Request describes one scan axis: the constrained bond and its final
// distance.  The start distance is taken from the input geometry.
type Request struct {
	Bond  molgraph.Bond
	Final float64 // Å
}

// Scan1D steps the bond distance from its current value to the requested
// final value over nPoints constrained optimisations.  Failed points are
// skipped; a profile whose maximum sits at either end has no interior
// barrier and yields a SCAN_001 error.
func (sc *Scanner) Scan1D(ctx context.Context, s *species.Species, req Request, nPoints int, task calc.Task, level calc.Level) (*Outcome, error) {
	if nPoints < 3 {
		return nil, errors.InvalidParam("a 1-D scan needs at least three points")
	}
	start := s.Distance(req.Bond[0], req.Bond[1])
	distances := linspace(start, req.Final, nPoints)

	geom := s.Copy()
	var points []Point
	for i, d := range distances {
		cr := calc.NewRequest(geom, task, level)
		cr.Name = fmt.Sprintf("%s_scan_%d", s.Name, i)
		cr.DistanceConstraints = []calc.DistanceConstraint{{I: req.Bond[0], J: req.Bond[1], Distance: d}}
		cr.ActiveBonds = []molgraph.Bond{req.Bond}

		if err := calc.Optimise(ctx, sc.oracle, geom, cr); err != nil {
			if errors.IsPerAttempt(err) {
				sc.log.Warn("scan point failed, skipping",
					logging.Int("point", i),
					logging.Float64("distance", d),
					logging.Err(err))
				continue
			}
			return nil, err
		}
		e, _ := geom.Energy()
		points = append(points, Point{Distances: []float64{d}, Energy: e, Geometry: geom.Copy()})
	}

	if len(points) == 0 {
		return nil, errors.New(errors.ErrCodeScanAllPointsFailed, "every scan point failed").
			WithDetail(s.Name)
	}

	peak := 0
	for i, p := range points {
		if p.Energy > points[peak].Energy {
			peak = i
		}
	}
	if peak == 0 || peak == len(points)-1 {
		return nil, errors.New(errors.ErrCodeScanMonotonic, "energy profile has no interior maximum").
			WithDetail(s.Name)
	}
	return &Outcome{Peak: points[peak].Geometry, Energy: points[peak].Energy, Points: points}, nil
}

// Scan2D walks an nA×nB grid over two bond distances.  Within a row the
// previous point seeds the next; the first point of a row is seeded by the
// first point of the previous row.  The candidate is the saddle-shaped grid
// point: an interior point that is a maximum along the scanned diagonal and
// a minimum along the crossing one.
func (sc *Scanner) Scan2D(ctx context.Context, s *species.Species, reqA, reqB Request, nA, nB int, task calc.Task, level calc.Level) (*Outcome, error) {
	if nA < 3 || nB < 3 {
		return nil, errors.InvalidParam("a 2-D scan needs at least three points per axis")
	}
	distA := linspace(s.Distance(reqA.Bond[0], reqA.Bond[1]), reqA.Final, nA)
	distB := linspace(s.Distance(reqB.Bond[0], reqB.Bond[1]), reqB.Final, nB)

	energies := make([][]float64, nA)
	geoms := make([][]*species.Species, nA)
	for i := range energies {
		energies[i] = make([]float64, nB)
		geoms[i] = make([]*species.Species, nB)
		for j := range energies[i] {
			energies[i][j] = math.NaN()
		}
	}

	var points []Point
	rowSeed := s.Copy()
	for i := 0; i < nA; i++ {
		geom := rowSeed.Copy()
		for j := 0; j < nB; j++ {
			cr := calc.NewRequest(geom, task, level)
			cr.Name = fmt.Sprintf("%s_scan_%d_%d", s.Name, i, j)
			cr.DistanceConstraints = []calc.DistanceConstraint{
				{I: reqA.Bond[0], J: reqA.Bond[1], Distance: distA[i]},
				{I: reqB.Bond[0], J: reqB.Bond[1], Distance: distB[j]},
			}
			cr.ActiveBonds = []molgraph.Bond{reqA.Bond, reqB.Bond}

			if err := calc.Optimise(ctx, sc.oracle, geom, cr); err != nil {
				if errors.IsPerAttempt(err) {
					sc.log.Warn("scan point failed, skipping",
						logging.Int("row", i), logging.Int("col", j),
						logging.Err(err))
					continue
				}
				return nil, err
			}
			e, _ := geom.Energy()
			energies[i][j] = e
			geoms[i][j] = geom.Copy()
			points = append(points, Point{Distances: []float64{distA[i], distB[j]}, Energy: e, Geometry: geoms[i][j]})
			if j == 0 {
				rowSeed = geom.Copy()
			}
		}
	}

	if len(points) == 0 {
		return nil, errors.New(errors.ErrCodeScanAllPointsFailed, "every scan point failed").
			WithDetail(s.Name)
	}

	i, j, ok := saddlePoint(energies)
	if !ok {
		return nil, errors.New(errors.ErrCodeScanNoSaddle, "surface has no saddle-shaped point").
			WithDetail(s.Name)
	}
	return &Outcome{Peak: geoms[i][j], Energy: energies[i][j], Points: points}, nil
}

// saddlePoint searches the interior of the grid for a point that is a local
// maximum along the main diagonal direction and a local minimum along the
// crossing direction.  When no point qualifies it falls back to the highest
// interior point of the main diagonal, which on a reaction surface tracks
// the ridge between reactant and product basins.
func saddlePoint(e [][]float64) (int, int, bool) {
	nA, nB := len(e), len(e[0])
	for i := 1; i < nA-1; i++ {
		for j := 1; j < nB-1; j++ {
			c := e[i][j]
			along := []float64{e[i-1][j-1], e[i+1][j+1]}
			across := []float64{e[i-1][j+1], e[i+1][j-1]}
			if anyNaN(c, along[0], along[1], across[0], across[1]) {
				continue
			}
			if c > along[0] && c > along[1] && c < across[0] && c < across[1] {
				return i, j, true
			}
		}
	}

	bi, bj, best := -1, -1, math.Inf(-1)
	n := nA
	if nB < n {
		n = nB
	}
	for k := 1; k < n-1; k++ {
		i := k * (nA - 1) / (n - 1)
		j := k * (nB - 1) / (n - 1)
		if !math.IsNaN(e[i][j]) && e[i][j] > best {
			bi, bj, best = i, j, e[i][j]
		}
	}
	if bi < 0 {
		return 0, 0, false
	}
	return bi, bj, true
}

func anyNaN(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

// linspace returns n points from a to b inclusive.
func linspace(a, b float64, n int) []float64 {
	out := make([]float64, n)
	step := (b - a) / float64(n-1)
	for i := range out {
		out[i] = a + float64(i)*step
	}
	out[n-1] = b
	return out
}
