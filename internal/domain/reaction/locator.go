package reaction

import (
	"context"
	"fmt"

	"github.com/molkinetics/tsfinder/internal/config"
	"github.com/molkinetics/tsfinder/internal/domain/calc"
	"github.com/molkinetics/tsfinder/internal/domain/molgraph"
	"github.com/molkinetics/tsfinder/internal/domain/orient"
	"github.com/molkinetics/tsfinder/internal/domain/rearrange"
	"github.com/molkinetics/tsfinder/internal/domain/species"
	"github.com/molkinetics/tsfinder/internal/domain/transition"
	"github.com/molkinetics/tsfinder/internal/infrastructure/monitoring/logging"
	"github.com/molkinetics/tsfinder/pkg/errors"
	"github.com/molkinetics/tsfinder/pkg/types/chem"
)

// Locator drives the full transition-state search for a reaction:
// complex assembly, bond-rearrangement enumeration, reactive orientation
// and one guess pipeline run per rearrangement.
type Locator struct {
	oracle   calc.Oracle
	builder  molgraph.Builder
	iso      molgraph.Isomorphism
	enum     *rearrange.Enumerator
	orienter *orient.Optimizer
	pipeline *transition.Pipeline
	cfg      config.Config
	log      logging.Logger
}

// NewLocator wires the search stack from configuration.  store may be nil
// to run without template persistence.
func NewLocator(oracle calc.Oracle, store transition.TemplateStore, cfg config.Config, log logging.Logger) *Locator {
	if log == nil {
		log = logging.NewNopLogger()
	}
	builder := molgraph.NewGeometricBuilder(cfg.Search.GraphTolerance)
	iso := molgraph.NewLabelledIsomorphism()
	return &Locator{
		oracle:   oracle,
		builder:  builder,
		iso:      iso,
		enum:     rearrange.NewEnumerator(iso),
		orienter: orient.NewOptimizer(cfg.Search.OrientationRestarts, cfg.Search.OrientationSeed, log.Named("orient")),
		pipeline: transition.NewPipeline(oracle, builder, iso, store, cfg, log.Named("pipeline")),
		cfg:      cfg,
		log:      log,
	}
}

// Locate searches every enumerated bond rearrangement of the reaction and
// returns the validated transition states in enumeration order, recording
// them on the reaction.  Exhaustion is reported as ErrCodeNoTransitionState
// and an empty enumeration as ErrCodeNoRearrangement; neither is a crash.
func (l *Locator) Locate(ctx context.Context, r *Reaction) ([]*transition.TransitionState, error) {
	reacComplex := species.NewComplex(r.Name+"_reactants", r.Reactants...)
	prodComplex := species.NewComplex(r.Name+"_products", r.Products...)

	reacGraph, err := l.complexGraph(r.Reactants)
	if err != nil {
		return nil, err
	}
	prodGraph, err := l.complexGraph(r.Products)
	if err != nil {
		return nil, err
	}

	// An intramolecular addition forms bonds overall and is searched in
	// reverse, like a bimolecular one.
	if r.Class == chem.ClassRearrangement && prodGraph.NBonds() > reacGraph.NBonds() {
		l.log.Info("products have more bonds than reactants, searching in reverse",
			logging.String("reaction", r.Name))
		r.swapSides()
		reacComplex, prodComplex = prodComplex, reacComplex
		reacGraph, prodGraph = prodGraph, reacGraph
	}

	rearrangements, err := l.enum.Enumerate(reacGraph, prodGraph)
	if err != nil {
		return nil, err
	}
	if len(rearrangements) == 0 {
		return nil, errors.New(errors.ErrCodeNoRearrangement,
			fmt.Sprintf("no bond rearrangement converts the reactants of %q into the products", r.Name))
	}
	l.log.Info("enumerated bond rearrangements",
		logging.String("reaction", r.Name), logging.Int("count", len(rearrangements)))

	var found []*transition.TransitionState
	for i, rr := range rearrangements {
		ts, err := l.locateOne(ctx, r, reacComplex, prodComplex, reacGraph, rr, i)
		if err != nil {
			return nil, err
		}
		if ts != nil {
			found = append(found, ts)
		}
	}

	r.TSs = found
	if len(found) == 0 {
		return nil, errors.New(errors.ErrCodeNoTransitionState,
			fmt.Sprintf("no transition state found for %q across %d rearrangements", r.Name, len(rearrangements)))
	}
	return found, nil
}

// locateOne orients a fresh copy of the reactant complex for one
// rearrangement and runs the guess pipeline on it.  Per-attempt failures
// disable this rearrangement only.
func (l *Locator) locateOne(ctx context.Context, r *Reaction, reacComplex, prodComplex *species.Complex,
	reacGraph *molgraph.Graph, rr *rearrange.Rearrangement, idx int) (*transition.TransitionState, error) {

	rc := reacComplex.Copy()
	rc.Name = fmt.Sprintf("%s_rr%d", r.Name, idx)

	if err := l.orienter.Orient(ctx, rc, rr); err != nil {
		if errors.IsPerAttempt(err) {
			l.log.Warn("could not orient reactant complex, skipping rearrangement",
				logging.String("rearrangement", rr.Signature()), logging.Err(err))
			return nil, nil
		}
		return nil, err
	}

	return l.pipeline.FindTS(ctx, transition.Input{
		Name:            rc.Name,
		Reactant:        rc.Species,
		Product:         prodComplex.Species,
		ReactantGraph:   reacGraph,
		Rearrangement:   rr,
		Class:           r.Class,
		ChargedProducts: anyCharged(r.Products),
	})
}

// complexGraph builds the disjoint union of the molecular graphs, offset
// into complex atom indexing.  Building the molecules separately keeps
// arbitrary inter-fragment placement from introducing spurious bonds.
func (l *Locator) complexGraph(mols []*species.Species) (*molgraph.Graph, error) {
	var labels []string
	for _, m := range mols {
		labels = append(labels, m.Labels()...)
	}
	g := molgraph.NewGraph(labels)

	offset := 0
	for _, m := range mols {
		mg, err := l.builder.FromGeometry(m.Labels(), m.Coordinates())
		if err != nil {
			return nil, err
		}
		for _, b := range mg.Bonds() {
			if err := g.AddBond(b[0]+offset, b[1]+offset); err != nil {
				return nil, err
			}
		}
		offset += m.NAtoms()
	}
	return g, nil
}
