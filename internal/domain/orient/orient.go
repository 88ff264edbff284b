// Package orient pre-orients multi-fragment reactant complexes into reactive
// poses.  The attacking fragment is rigidly rotated and translated so that
// forming-bond partners approach along a sensible vector before any
// constrained scan runs.  No bonds exist between fragments at this stage,
// the placement is purely geometric.
package orient

import (
	"context"
	"math"
	"math/rand"
	"sync"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/optimize"

	"github.com/molkinetics/tsfinder/internal/domain/rearrange"
	"github.com/molkinetics/tsfinder/internal/domain/species"
	"github.com/molkinetics/tsfinder/internal/infrastructure/monitoring/logging"
	"github.com/molkinetics/tsfinder/pkg/errors"
	"github.com/molkinetics/tsfinder/pkg/types/chem"
)

// Centre is a substitution centre derived from the rearrangement: atom A
// attacks atom C while atom L leaves.  L is -1 for pure additions with no
// breaking counterpart.
type Centre struct {
	A, C, L int
}

// FindCentres derives the substitution centres of a rearrangement on a
// complex.  A forming bond spanning two fragments defines an (A, C) pair;
// when a breaking bond shares atom C the leaving atom completes the centre.
func FindCentres(c *species.Complex, r *rearrange.Rearrangement) []Centre {
	var out []Centre
	for _, fb := range r.FBonds {
		fa, fc := fb[0], fb[1]
		if c.FragmentOf(fa) == c.FragmentOf(fc) {
			continue
		}
		// The attacked atom is the endpoint that also loses a bond, when
		// one does; otherwise the forming-bond order stands.
		chosen := Centre{A: fa, C: fc, L: -1}
		for _, pair := range [][2]int{{fa, fc}, {fc, fa}} {
			a, centre := pair[0], pair[1]
			for _, bb := range r.BBonds {
				if bb.Contains(centre) && !bb.Contains(a) {
					chosen = Centre{A: a, C: centre, L: bb.Other(centre)}
					break
				}
			}
			if chosen.L >= 0 {
				break
			}
		}
		out = append(out, chosen)
	}
	return out
}

// nParams is the pose parameterisation size: rotation axis (3) + angle (1) +
// translation (3) + second rotation axis (3) + angle (1).
const nParams = 11

// Optimizer finds a low-cost rigid-body pose for the attacking fragment by
// random-restart local minimisation.  With a fixed Seed the result is
// deterministic; restarts run concurrently and the globally lowest cost
// wins, with the restart index as tie-break so concurrency cannot change
// the outcome.
type Optimizer struct {
	Restarts int
	Seed     int64
	log      logging.Logger
}

// NewOptimizer builds an Optimizer with the given restart budget.
func NewOptimizer(restarts int, seed int64, log logging.Logger) *Optimizer {
	if restarts <= 0 {
		restarts = 10
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Optimizer{Restarts: restarts, Seed: seed, log: log}
}

// Orient mutates the complex in place so the attacking fragment sits in the
// lowest-cost pose found.  Complexes with fewer than two fragments, or
// rearrangements with no cross-fragment forming bond, are left untouched.
func (o *Optimizer) Orient(ctx context.Context, c *species.Complex, r *rearrange.Rearrangement) error {
	if c.NFragments() < 2 {
		return nil
	}
	centres := FindCentres(c, r)
	if len(centres) == 0 {
		return nil
	}

	moving := c.FragmentOf(centres[0].A)
	shift := attackDistanceFactor(c)

	type restartResult struct {
		cost   float64
		params []float64
	}

	var (
		mu      sync.Mutex
		best    *restartResult
		bestIdx int
	)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < o.Restarts; i++ {
		i := i
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			rng := rand.New(rand.NewSource(o.Seed + int64(i)))
			x0 := randomPose(rng)

			trial := c.Copy()
			problem := optimize.Problem{
				Func: func(x []float64) float64 {
					return poseCost(trial, moving, centres, shift, x)
				},
			}
			res, err := optimize.Minimize(problem, x0, nil, &optimize.NelderMead{})
			if err != nil {
				o.log.Debug("pose restart failed", logging.Int("restart", i), logging.Err(err))
				return nil
			}

			mu.Lock()
			if best == nil || res.F < best.cost || (res.F == best.cost && i < bestIdx) {
				best = &restartResult{cost: res.F, params: res.X}
				bestIdx = i
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if best == nil {
		return errors.New(errors.ErrCodeOrientationDiverged, "pose minimisation failed on every restart")
	}

	o.log.Debug("reactive pose selected",
		logging.Float64("cost", best.cost),
		logging.Int("restart", bestIdx),
		logging.Int("fragment", moving))
	applyPose(c, moving, best.params)
	return nil
}

// attackDistanceFactor stretches the target approach distance when any
// fragment carries a net charge, where long-range attraction holds the
// fragments further apart.  The per-fragment charges decide, not the total:
// an ion pair sums to neutral.
func attackDistanceFactor(c *species.Complex) float64 {
	if c.AnyFragmentCharged() {
		return 3.0
	}
	return 1.5
}

func randomPose(rng *rand.Rand) []float64 {
	x := make([]float64, nParams)
	for i := range x {
		x[i] = rng.Float64()
	}
	// Spread angles over a full turn and translations over a few Å.
	x[3] *= 2 * math.Pi
	x[10] *= 2 * math.Pi
	for k := 4; k <= 6; k++ {
		x[k] = (x[k] - 0.5) * 6
	}
	return x
}

// applyPose applies the 11-parameter rigid transform to fragment idx:
// rotate about the fragment centroid, translate, rotate again.
func applyPose(c *species.Complex, idx int, p []float64) {
	c.RotateFragment(idx, [3]float64{p[0], p[1], p[2]}, p[3])
	c.TranslateFragment(idx, [3]float64{p[4], p[5], p[6]})
	c.RotateFragment(idx, [3]float64{p[7], p[8], p[9]}, p[10])
}

// poseCost scores a candidate pose.  Lower is better: attacking atoms at the
// stretched ideal bond distance, attack collinear with the leaving direction
// and no steric clashes between fragments.
func poseCost(base *species.Complex, moving int, centres []Centre, shift float64, params []float64) float64 {
	trial := base.Copy()
	applyPose(trial, moving, params)

	cost := 0.0
	for _, ct := range centres {
		ideal := shift * chem.AvgBondLength(trial.Atoms[ct.A].Label, trial.Atoms[ct.C].Label)
		d := trial.Distance(ct.A, ct.C) - ideal
		cost += d * d

		if ct.L >= 0 {
			// Attack antiperiplanar to the leaving group: penalty vanishes
			// when A-C-L is linear.
			cost += 1 + cosAngle(trial, ct.A, ct.C, ct.L)
		}
	}

	// Pairwise steric repulsion between the moving fragment and the rest.
	movingSet := map[int]bool{}
	for _, i := range trial.FragmentIndexes(moving) {
		movingSet[i] = true
	}
	for i := 0; i < trial.NAtoms(); i++ {
		if !movingSet[i] {
			continue
		}
		for j := 0; j < trial.NAtoms(); j++ {
			if movingSet[j] {
				continue
			}
			d := trial.Distance(i, j)
			if d < 1e-6 {
				d = 1e-6
			}
			cost += 1.0 / (d * d)
		}
	}
	return cost
}

// cosAngle returns cos of the angle a-c-l at vertex c.
func cosAngle(s *species.Complex, a, c, l int) float64 {
	va := sub(s.Atoms[a].Coord, s.Atoms[c].Coord)
	vl := sub(s.Atoms[l].Coord, s.Atoms[c].Coord)
	na, nl := norm(va), norm(vl)
	if na < 1e-12 || nl < 1e-12 {
		return 1
	}
	return (va[0]*vl[0] + va[1]*vl[1] + va[2]*vl[2]) / (na * nl)
}

func sub(a, b [3]float64) [3]float64 {
	return [3]float64{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

func norm(v [3]float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}
