package transition

import (
	"context"
	"fmt"

	"github.com/molkinetics/tsfinder/internal/domain/calc"
	"github.com/molkinetics/tsfinder/internal/domain/molgraph"
	"github.com/molkinetics/tsfinder/internal/domain/rearrange"
	"github.com/molkinetics/tsfinder/internal/domain/scan"
	"github.com/molkinetics/tsfinder/internal/domain/species"
	"github.com/molkinetics/tsfinder/pkg/errors"
	"github.com/molkinetics/tsfinder/pkg/types/chem"
)

// scanPoints1D is the point count for single-coordinate scans.
const scanPoints1D = 10

// Strategy is one guess-generation attempt.  Attempt returns a nil guess
// when the strategy produced nothing usable; per-attempt errors are
// absorbed by the pipeline, anything else aborts the search.
type Strategy struct {
	Name    string
	Attempt func(ctx context.Context) (*TSGuess, error)
}

// Input is everything the pipeline needs for one rearrangement of one
// reaction.  The reactant complex is expected to be pre-oriented.
type Input struct {
	Name          string
	Reactant      *species.Species
	Product       *species.Species
	ReactantGraph *molgraph.Graph
	Rearrangement *rearrange.Rearrangement
	Class         chem.ReactionClass
	// ChargedProducts reports whether any product molecule carries a net
	// charge; developing charge separation needs longer breaking-bond
	// stretches.
	ChargedProducts bool
}

// buildStrategies assembles the ordered strategy list for an input,
// cheapest and most likely to succeed first.  The relative order encodes
// cost/success heuristics and must not be reshuffled.
func (p *Pipeline) buildStrategies(in Input) []Strategy {
	r := in.Rearrangement
	var out []Strategy

	if !p.cfg.Search.DisableTemplateUse && p.store != nil {
		out = append(out, Strategy{
			Name:    "template",
			Attempt: func(ctx context.Context) (*TSGuess, error) { return p.attemptTemplate(ctx, in) },
		})
	}

	// Substitutions and eliminations with one forming and one breaking bond
	// respond best to a cheap simultaneous 2-D scan.
	if len(r.FBonds) == 1 && len(r.BBonds) == 1 &&
		(in.Class == chem.ClassSubstitution || in.Class == chem.ClassElimination) {
		fb, bb := r.FBonds[0], r.BBonds[0]
		out = append(out, Strategy{
			Name: "ll_2d",
			Attempt: func(ctx context.Context) (*TSGuess, error) {
				return p.attempt2D(ctx, in, "ll_2d", fb, true, bb, false,
					p.cfg.Search.ScanPointsLow, calc.LevelLow)
			},
		})
	}

	// Single-coordinate scans only help when the bond of that kind is
	// unique; paired breaking or forming bonds move together and go
	// straight to a 2-D scan.
	if len(r.BBonds) == 1 {
		bb := r.BBonds[0]
		out = append(out,
			Strategy{
				Name: "hl_1d_bbond_low",
				Attempt: func(ctx context.Context) (*TSGuess, error) {
					return p.attempt1D(ctx, in, "hl_1d_bbond_low", bb, false, calc.TaskLowOpt)
				},
			},
			Strategy{
				Name: "hl_1d_bbond_opt",
				Attempt: func(ctx context.Context) (*TSGuess, error) {
					return p.attempt1D(ctx, in, "hl_1d_bbond_opt", bb, false, calc.TaskOpt)
				},
			},
		)
	}

	if len(r.FBonds) == 1 {
		fb := r.FBonds[0]
		out = append(out,
			Strategy{
				Name: "hl_1d_fbond_low",
				Attempt: func(ctx context.Context) (*TSGuess, error) {
					return p.attempt1D(ctx, in, "hl_1d_fbond_low", fb, true, calc.TaskLowOpt)
				},
			},
			Strategy{
				Name: "hl_1d_fbond_opt",
				Attempt: func(ctx context.Context) (*TSGuess, error) {
					return p.attempt1D(ctx, in, "hl_1d_fbond_opt", fb, true, calc.TaskOpt)
				},
			},
		)
	}

	// Mixed forming/breaking pairs get a 2-D scan at both levels.
	if len(r.FBonds) >= 1 && len(r.BBonds) >= 1 {
		for _, fb := range r.FBonds {
			for _, bb := range r.BBonds {
				fb, bb := fb, bb
				out = append(out,
					Strategy{
						Name: "fb_2d_ll",
						Attempt: func(ctx context.Context) (*TSGuess, error) {
							return p.attempt2D(ctx, in, "fb_2d_ll", fb, true, bb, false,
								p.cfg.Search.ScanPointsLow, calc.LevelLow)
						},
					},
					Strategy{
						Name: "fb_2d_hl",
						Attempt: func(ctx context.Context) (*TSGuess, error) {
							return p.attempt2D(ctx, in, "fb_2d_hl", fb, true, bb, false,
								p.cfg.Search.ScanPointsHigh, calc.LevelHigh)
						},
					},
				)
			}
		}
	}

	if len(r.FBonds) == 2 && len(r.BBonds) == 0 {
		fa, fb := r.FBonds[0], r.FBonds[1]
		out = append(out, Strategy{
			Name: "two_fbond_2d",
			Attempt: func(ctx context.Context) (*TSGuess, error) {
				return p.attempt2D(ctx, in, "two_fbond_2d", fa, true, fb, true,
					p.cfg.Search.ScanPointsHigh, calc.LevelHigh)
			},
		})
	}

	if len(r.FBonds) == 0 && len(r.BBonds) == 2 {
		ba, bb := r.BBonds[0], r.BBonds[1]
		out = append(out, Strategy{
			Name: "two_bbond_2d",
			Attempt: func(ctx context.Context) (*TSGuess, error) {
				return p.attempt2D(ctx, in, "two_bbond_2d", ba, false, bb, false,
					p.cfg.Search.ScanPointsHigh, calc.LevelHigh)
			},
		})
	}

	return out
}

// finalDistance is the scan target for an active bond: forming bonds close
// to the tabulated equilibrium length, breaking bonds stretch by an
// empirical shift that grows when charge separation develops.  Whether any
// product molecule is charged decides the shift, not the complex's net
// charge: heterolysis products sum to neutral.
func (p *Pipeline) finalDistance(in Input, s *species.Species, b molgraph.Bond, forming bool) float64 {
	if forming {
		return chem.AvgBondLength(s.Atoms[b[0]].Label, s.Atoms[b[1]].Label)
	}
	shift := p.cfg.Search.BreakingBondShift
	if in.ChargedProducts {
		shift = p.cfg.Search.BreakingBondShiftCharged
	}
	return s.Distance(b[0], b[1]) + shift
}

func (p *Pipeline) attempt1D(ctx context.Context, in Input, origin string, b molgraph.Bond, forming bool, task calc.Task) (*TSGuess, error) {
	geom := in.Reactant.Copy()
	geom.Name = fmt.Sprintf("%s_%s", in.Name, origin)
	out, err := p.scanner.Scan1D(ctx, geom,
		scan.Request{Bond: b, Final: p.finalDistance(in, geom, b, forming)},
		scanPoints1D, task, calc.LevelHigh)
	if err != nil {
		return nil, err
	}
	return NewTSGuess(out.Peak, in.Rearrangement, origin), nil
}

func (p *Pipeline) attempt2D(ctx context.Context, in Input, origin string, a molgraph.Bond, aForming bool, b molgraph.Bond, bForming bool, points int, level calc.Level) (*TSGuess, error) {
	geom := in.Reactant.Copy()
	geom.Name = fmt.Sprintf("%s_%s", in.Name, origin)

	// The expensive axis is scanned coarser to bound the grid cost.
	pointsB := points
	if level == calc.LevelHigh && pointsB > 3 {
		pointsB = points/coarseAxisFactor + 2
	}

	out, err := p.scanner.Scan2D(ctx, geom,
		scan.Request{Bond: a, Final: p.finalDistance(in, geom, a, aForming)},
		scan.Request{Bond: b, Final: p.finalDistance(in, geom, b, bForming)},
		points, pointsB, calc.TaskLowOpt, level)
	if err != nil {
		return nil, err
	}
	return NewTSGuess(out.Peak, in.Rearrangement, origin), nil
}

// coarseAxisFactor thins the second axis of high-level 2-D scans.
const coarseAxisFactor = 3

// attemptTemplate reuses a stored template: one constrained optimisation at
// the remembered active-bond distances.
func (p *Pipeline) attemptTemplate(ctx context.Context, in Input) (*TSGuess, error) {
	tmpl, err := p.store.Load(ctx, in.Rearrangement.Signature())
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	distances, ok := tmpl.MatchDistances(in.Reactant, in.Rearrangement)
	if !ok {
		return nil, nil
	}

	geom := in.Reactant.Copy()
	geom.Name = in.Name + "_template"
	req := calc.NewRequest(geom, calc.TaskOpt, calc.LevelHigh)
	req.ActiveBonds = in.Rearrangement.AllBonds()
	for b, d := range distances {
		req.DistanceConstraints = append(req.DistanceConstraints,
			calc.DistanceConstraint{I: b[0], J: b[1], Distance: d})
	}
	if err := calc.Optimise(ctx, p.oracle, geom, req); err != nil {
		return nil, err
	}
	return NewTSGuess(geom, in.Rearrangement, "template"), nil
}
