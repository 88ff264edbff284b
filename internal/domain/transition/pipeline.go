package transition

import (
	"context"

	"github.com/molkinetics/tsfinder/internal/config"
	"github.com/molkinetics/tsfinder/internal/domain/calc"
	"github.com/molkinetics/tsfinder/internal/domain/molgraph"
	"github.com/molkinetics/tsfinder/internal/domain/scan"
	"github.com/molkinetics/tsfinder/internal/domain/truncate"
	"github.com/molkinetics/tsfinder/internal/infrastructure/monitoring/logging"
	"github.com/molkinetics/tsfinder/pkg/errors"
)

// Pipeline orchestrates, for one bond rearrangement, the ordered sequence
// of guess strategies followed by validation, full saddle-point
// optimisation and final validation.  The first strategy whose candidate
// survives everything wins.
type Pipeline struct {
	oracle    calc.Oracle
	scanner   *scan.Scanner
	builder   molgraph.Builder
	iso       molgraph.Isomorphism
	validator *Validator
	store     TemplateStore
	cfg       config.Config
	log       logging.Logger
}

// NewPipeline wires the pipeline.  store may be nil to disable template
// reuse regardless of configuration.
func NewPipeline(oracle calc.Oracle, builder molgraph.Builder, iso molgraph.Isomorphism, store TemplateStore, cfg config.Config, log logging.Logger) *Pipeline {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Pipeline{
		oracle:    oracle,
		scanner:   scan.NewScanner(oracle, log.Named("scan")),
		builder:   builder,
		iso:       iso,
		validator: NewValidator(oracle, builder, iso, cfg.Search, log.Named("validator")),
		store:     store,
		cfg:       cfg,
		log:       log,
	}
}

// FindTS runs the full pipeline for one rearrangement.  A nil, nil return
// means every strategy was exhausted without a validated transition state,
// which is a reportable outcome rather than an error.
func (p *Pipeline) FindTS(ctx context.Context, in Input) (*TransitionState, error) {
	strategies := p.buildStrategies(in)

	// A worthwhile truncation runs first: a saddle point found on the small
	// system seeds a single constrained optimisation on the full one.
	if seed := p.truncationSeed(ctx, in); seed != nil {
		strategies = append([]Strategy{*seed}, strategies...)
	}

	for _, strat := range strategies {
		ts, err := p.runStrategy(ctx, in, strat)
		if err != nil {
			return nil, err
		}
		if ts != nil {
			if !p.cfg.Search.DisableTemplateSave && p.store != nil {
				if err := p.store.Save(ctx, NewTemplate(ts)); err != nil {
					p.log.Warn("failed to save transition-state template", logging.Err(err))
				}
			}
			return ts, nil
		}
	}

	p.log.Info("no transition state for rearrangement",
		logging.String("rearrangement", in.Rearrangement.Signature()),
		logging.String("reaction", in.Name))
	return nil, nil
}

// runStrategy takes one strategy through guess, plausibility check, TS
// optimisation and full validation.  A nil, nil return sends the pipeline
// to the next strategy.
func (p *Pipeline) runStrategy(ctx context.Context, in Input, strat Strategy) (*TransitionState, error) {
	guess, err := strat.Attempt(ctx)
	if err != nil {
		if errors.IsPerAttempt(err) {
			p.log.Debug("strategy produced no guess",
				logging.String("strategy", strat.Name), logging.Err(err))
			return nil, nil
		}
		return nil, err
	}
	if guess == nil {
		return nil, nil
	}

	stage, err := p.validator.CouldHaveCorrectMode(ctx, guess)
	if err != nil {
		if errors.IsPerAttempt(err) {
			return nil, nil
		}
		return nil, err
	}
	if stage != StageValid {
		p.log.Debug("guess failed plausibility check",
			logging.String("strategy", strat.Name), logging.String("stage", string(stage)))
		return nil, nil
	}

	if err := p.optimiseSaddle(ctx, guess); err != nil {
		if errors.IsPerAttempt(err) {
			p.log.Debug("saddle-point optimisation failed",
				logging.String("strategy", strat.Name), logging.Err(err))
			return nil, nil
		}
		return nil, err
	}

	stage, err = p.validator.HasCorrectMode(ctx, guess, in.Reactant, in.Product)
	if err != nil {
		if errors.IsPerAttempt(err) {
			return nil, nil
		}
		return nil, err
	}
	if stage != StageValid {
		p.log.Debug("optimised candidate failed full validation",
			logging.String("strategy", strat.Name), logging.String("stage", string(stage)))
		return nil, nil
	}

	p.log.Info("transition state found",
		logging.String("strategy", strat.Name),
		logging.String("rearrangement", in.Rearrangement.Signature()))
	return &TransitionState{
		Species:       guess.Species,
		Rearrangement: guess.Rearrangement,
		Origin:        guess.Origin,
		ImagFreqs:     guess.Species.ImagFreqs(),
		Reactant:      in.Reactant,
		Product:       in.Product,
	}, nil
}

// optimiseSaddle refines the guess to a first-order saddle point and
// recomputes the Hessian there.
func (p *Pipeline) optimiseSaddle(ctx context.Context, g *TSGuess) error {
	req := calc.NewRequest(g.Species, calc.TaskOptTS, calc.LevelHigh)
	req.Keywords = p.cfg.Methods.High.OptTSKeys
	req.ActiveBonds = g.Rearrangement.AllBonds()
	req.NCores = p.cfg.Methods.NCores
	req.MaxCoreMB = p.cfg.Methods.MaxCoreMB
	if err := calc.Optimise(ctx, p.oracle, g.Species, req); err != nil {
		return err
	}

	hreq := calc.NewRequest(g.Species, calc.TaskHessian, calc.LevelHigh)
	hreq.Keywords = p.cfg.Methods.High.HessKeys
	hreq.NCores = p.cfg.Methods.NCores
	hreq.MaxCoreMB = p.cfg.Methods.MaxCoreMB
	return calc.Hessian(ctx, p.oracle, g.Species, hreq)
}

// truncationSeed runs the guess search on a truncated stand-in of a large
// complex and, on success, returns a strategy that transfers the truncated
// saddle geometry onto the full system through its template.  Any failure
// along the way just disables the seed.
func (p *Pipeline) truncationSeed(ctx context.Context, in Input) *Strategy {
	if !truncate.WorthTruncating(in.Reactant, in.ReactantGraph, in.Rearrangement, p.cfg.Search.TruncationThreshold) {
		return nil
	}
	tr, err := truncate.Truncate(in.Reactant, in.ReactantGraph, in.Rearrangement)
	if err != nil {
		p.log.Warn("truncation failed, scanning the full complex", logging.Err(err))
		return nil
	}
	p.log.Info("searching on truncated complex",
		logging.Int("atoms", tr.Species.NAtoms()),
		logging.Int("full_atoms", in.Reactant.NAtoms()))

	truncIn := Input{
		Name:            in.Name + "_truncated",
		Reactant:        tr.Species,
		Product:         nil, // full linking runs only on the full system
		ReactantGraph:   nil,
		Rearrangement:   tr.Rearrangement,
		Class:           in.Class,
		ChargedProducts: in.ChargedProducts,
	}

	var tmpl *Template
	for _, strat := range p.buildStrategies(truncIn) {
		guess, err := strat.Attempt(ctx)
		if err != nil || guess == nil {
			continue
		}
		stage, err := p.validator.CouldHaveCorrectMode(ctx, guess)
		if err != nil || stage != StageValid {
			continue
		}
		if err := p.optimiseSaddle(ctx, guess); err != nil {
			continue
		}
		tmpl = NewTemplate(&TransitionState{
			Species:       guess.Species,
			Rearrangement: guess.Rearrangement,
			Origin:        guess.Origin,
		})
		break
	}
	if tmpl == nil {
		return nil
	}

	return &Strategy{
		Name: "truncated_template",
		Attempt: func(ctx context.Context) (*TSGuess, error) {
			distances, ok := tmpl.MatchDistances(in.Reactant, in.Rearrangement)
			if !ok {
				return nil, nil
			}
			geom := in.Reactant.Copy()
			geom.Name = in.Name + "_from_truncated"
			req := calc.NewRequest(geom, calc.TaskOpt, calc.LevelHigh)
			req.ActiveBonds = in.Rearrangement.AllBonds()
			for b, d := range distances {
				req.DistanceConstraints = append(req.DistanceConstraints,
					calc.DistanceConstraint{I: b[0], J: b[1], Distance: d})
			}
			if err := calc.Optimise(ctx, p.oracle, geom, req); err != nil {
				return nil, err
			}
			return NewTSGuess(geom, in.Rearrangement, "truncated_template"), nil
		},
	}
}
