package transition

import (
	"context"
	"math"

	"github.com/molkinetics/tsfinder/internal/config"
	"github.com/molkinetics/tsfinder/internal/domain/calc"
	"github.com/molkinetics/tsfinder/internal/domain/molgraph"
	"github.com/molkinetics/tsfinder/internal/domain/species"
	"github.com/molkinetics/tsfinder/internal/infrastructure/monitoring/logging"
	"github.com/molkinetics/tsfinder/pkg/errors"
	"github.com/molkinetics/tsfinder/pkg/types/chem"
)

// Stage labels the state the validator reached for a candidate, primarily
// for diagnostics.
type Stage string

const (
	StageNoImagMode   Stage = "no_imaginary_mode"
	StageModeTooSmall Stage = "mode_too_small"
	StageImplausible  Stage = "displacement_implausible"
	StageNoLink       Stage = "no_reactant_product_link"
	StageValid        Stage = "valid"
)

// Validator decides whether a candidate's dominant imaginary mode really
// drives the claimed bond rearrangement.
type Validator struct {
	oracle  calc.Oracle
	builder molgraph.Builder
	iso     molgraph.Isomorphism
	cfg     config.SearchConfig
	log     logging.Logger
}

// NewValidator wires the validator to its collaborators.
func NewValidator(oracle calc.Oracle, builder molgraph.Builder, iso molgraph.Isomorphism, cfg config.SearchConfig, log logging.Logger) *Validator {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Validator{oracle: oracle, builder: builder, iso: iso, cfg: cfg, log: log}
}

// ensureModes computes the Hessian through the oracle when absent and
// returns the normal modes.
func (v *Validator) ensureModes(ctx context.Context, s *species.Species) ([]Mode, error) {
	if s.Hessian() == nil {
		req := calc.NewRequest(s, calc.TaskHessian, calc.LevelHigh)
		if err := calc.Hessian(ctx, v.oracle, s, req); err != nil {
			return nil, err
		}
	}
	return NormalModes(s)
}

// CouldHaveCorrectMode is the fast plausibility filter: the candidate must
// have a sufficiently large imaginary mode whose displacement loosely moves
// the declared active bonds the right way without rearranging anything
// else.  Returns the stage reached; only stages before StageNoLink occur
// here.
func (v *Validator) CouldHaveCorrectMode(ctx context.Context, g *TSGuess) (Stage, error) {
	modes, err := v.ensureModes(ctx, g.Species)
	if err != nil {
		return StageNoImagMode, err
	}
	imag := ImagFreqs(modes, 0)
	g.Species.SetImagFreqs(imag)
	if len(imag) == 0 {
		return StageNoImagMode, nil
	}
	if math.Abs(imag[0]) < v.cfg.MinImagFreq {
		v.log.Debug("imaginary mode below threshold",
			logging.Float64("freq", imag[0]),
			logging.Float64("min", v.cfg.MinImagFreq))
		return StageModeTooSmall, nil
	}

	ok, err := v.displacementCorrect(g, modes[0], v.cfg.DeltaLoose, false)
	if err != nil {
		return StageImplausible, err
	}
	if !ok {
		return StageImplausible, nil
	}
	return StageValid, nil
}

// HasCorrectMode is the full check run after TS optimisation: the stricter
// all-bonds displacement test, falling back to quick reaction-coordinate
// optimisation that must link the candidate to both reactant and product.
func (v *Validator) HasCorrectMode(ctx context.Context, g *TSGuess, reactant, product *species.Species) (Stage, error) {
	if reactant == nil || product == nil {
		return StageNoLink, errors.Precondition("reactant and product are required for mode linking")
	}
	modes, err := v.ensureModes(ctx, g.Species)
	if err != nil {
		return StageNoImagMode, err
	}
	imag := ImagFreqs(modes, 0)
	g.Species.SetImagFreqs(imag)
	if len(imag) == 0 {
		return StageNoImagMode, nil
	}
	if math.Abs(imag[0]) < v.cfg.MinImagFreq {
		return StageModeTooSmall, nil
	}

	strict, err := v.displacementCorrect(g, modes[0], v.cfg.DeltaStrict, true)
	if err != nil {
		return StageImplausible, err
	}
	if strict {
		return StageValid, nil
	}

	linked, err := v.linksReactantProduct(ctx, g, modes[0], reactant, product)
	if err != nil {
		return StageNoLink, err
	}
	if !linked {
		return StageNoLink, nil
	}
	return StageValid, nil
}

// displacementCorrect displaces the candidate ± along the mode and checks
// the active bonds respond correctly: forming bonds contract and breaking
// bonds stretch by at least delta, for any active bond (reqAll false) or
// all of them (reqAll true).  Both mode sign conventions are tried.  Bond
// changes outside the active set reject the candidate outright.
func (v *Validator) displacementCorrect(g *TSGuess, mode Mode, delta float64, reqAll bool) (bool, error) {
	fwd := DisplacedSpecies(g.Species, mode, v.cfg.DispMagnitude, v.cfg.MaxAtomDispPlausible)
	bwd := DisplacedSpecies(g.Species, mode, -v.cfg.DispMagnitude, v.cfg.MaxAtomDispPlausible)

	other, err := v.generatesOtherBonds(g, fwd, bwd)
	if err != nil {
		return false, err
	}
	if other {
		v.log.Debug("mode rearranges bonds outside the active set", logging.String("origin", g.Origin))
		return false, nil
	}

	check := func(a, b *species.Species) bool {
		okAny, okAll := false, true
		for _, bond := range g.Rearrangement.FBonds {
			d := a.Distance(bond[0], bond[1]) - b.Distance(bond[0], bond[1])
			if d > delta {
				okAny = true
			} else {
				okAll = false
			}
		}
		for _, bond := range g.Rearrangement.BBonds {
			d := b.Distance(bond[0], bond[1]) - a.Distance(bond[0], bond[1])
			if d > delta {
				okAny = true
			} else {
				okAll = false
			}
		}
		if reqAll {
			return okAll && okAny
		}
		return okAny
	}

	// The eigenvector sign is arbitrary, so forward/backward may be swapped.
	return check(bwd, fwd) || check(fwd, bwd), nil
}

// generatesOtherBonds reports whether displacement changes connectivity at
// atoms outside the active set.  Bonds involving a metal are excluded: the
// geometric bond inference is too coarse for dative bonds.
func (v *Validator) generatesOtherBonds(g *TSGuess, fwd, bwd *species.Species) (bool, error) {
	active := map[int]bool{}
	for _, a := range g.Rearrangement.ActiveAtoms() {
		active[a] = true
	}

	baseGraph, err := v.builder.FromGeometry(g.Species.Labels(), g.Species.Coordinates())
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeGraphBuildFailed, "build candidate graph")
	}
	for _, d := range []*species.Species{fwd, bwd} {
		dg, err := v.builder.FromGeometry(d.Labels(), d.Coordinates())
		if err != nil {
			return false, errors.Wrap(err, errors.ErrCodeGraphBuildFailed, "build displaced graph")
		}
		for _, b := range symmetricBondDiff(baseGraph, dg) {
			if active[b[0]] && active[b[1]] {
				continue
			}
			if chem.IsMetal(g.Species.Atoms[b[0]].Label) || chem.IsMetal(g.Species.Atoms[b[1]].Label) {
				continue
			}
			return true, nil
		}
	}
	return false, nil
}

// linksReactantProduct optimises the two displaced geometries and accepts
// the candidate when one relaxes into the reactant and the other into the
// product.  Optimisation failures mean "no link", not a fatal error.
func (v *Validator) linksReactantProduct(ctx context.Context, g *TSGuess, mode Mode, reactant, product *species.Species) (bool, error) {
	relax := func(dir float64) *molgraph.Graph {
		d := DisplacedSpecies(g.Species, mode, dir*v.cfg.DispMagnitude, v.cfg.MaxAtomDispLink)
		req := calc.NewRequest(d, calc.TaskOpt, calc.LevelLow)
		req.Name = g.Species.Name + "_qrc"
		if err := calc.Optimise(ctx, v.oracle, d, req); err != nil {
			if errors.IsPerAttempt(err) {
				v.log.Debug("quick reaction coordinate optimisation failed", logging.Err(err))
				return nil
			}
			return nil
		}
		dg, err := v.builder.FromGeometry(d.Labels(), d.Coordinates())
		if err != nil {
			return nil
		}
		return dg
	}

	fwd, bwd := relax(+1), relax(-1)
	if fwd == nil || bwd == nil {
		return false, nil
	}
	rg, err := v.builder.FromGeometry(reactant.Labels(), reactant.Coordinates())
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeGraphBuildFailed, "build reactant graph")
	}
	pg, err := v.builder.FromGeometry(product.Labels(), product.Coordinates())
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeGraphBuildFailed, "build product graph")
	}

	if v.iso.Isomorphic(fwd, pg) && v.iso.Isomorphic(bwd, rg) {
		return true, nil
	}
	if v.iso.Isomorphic(fwd, rg) && v.iso.Isomorphic(bwd, pg) {
		return true, nil
	}
	return false, nil
}

// symmetricBondDiff returns the bonds present in exactly one of the graphs.
func symmetricBondDiff(a, b *molgraph.Graph) []molgraph.Bond {
	var out []molgraph.Bond
	for _, bond := range a.Bonds() {
		if !b.HasBond(bond[0], bond[1]) {
			out = append(out, bond)
		}
	}
	for _, bond := range b.Bonds() {
		if !a.HasBond(bond[0], bond[1]) {
			out = append(out, bond)
		}
	}
	return out
}
