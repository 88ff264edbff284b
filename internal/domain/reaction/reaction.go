// Package reaction holds the reaction aggregate and the top-level locator
// that turns a balanced reactant/product pair into validated transition
// states.
package reaction

import (
	"fmt"

	"github.com/molkinetics/tsfinder/internal/domain/species"
	"github.com/molkinetics/tsfinder/internal/domain/transition"
	"github.com/molkinetics/tsfinder/pkg/errors"
	"github.com/molkinetics/tsfinder/pkg/types/chem"
)

// Reaction owns the reactant and product molecules of one elementary step
// and, after a search, the transition states discovered for it.
type Reaction struct {
	Name      string
	Reactants []*species.Species
	Products  []*species.Species
	Class     chem.ReactionClass

	// Switched records that reactants and products were swapped before the
	// search, so callers can re-reverse discovered states.
	Switched bool

	// TSs is populated by Locator.Locate in rearrangement enumeration order.
	TSs []*transition.TransitionState
}

// New builds a reaction, classifies it by molecularity and verifies that
// atom and charge counts balance.  Addition reactions are searched in
// reverse as dissociations, so reactants and products are swapped up front.
func New(name string, reactants, products []*species.Species) (*Reaction, error) {
	if len(reactants) == 0 || len(products) == 0 {
		return nil, errors.Precondition("a reaction needs at least one reactant and one product")
	}
	r := &Reaction{
		Name:      name,
		Reactants: reactants,
		Products:  products,
		Class:     classify(len(reactants), len(products)),
	}
	if err := r.checkBalance(); err != nil {
		return nil, err
	}
	if r.Class == chem.ClassAddition {
		r.switchAddition()
	}
	return r, nil
}

// classify maps reactant/product molecularity onto a reaction class.
func classify(nReacs, nProds int) chem.ReactionClass {
	switch {
	case nReacs >= 2 && nProds == 1:
		return chem.ClassAddition
	case nReacs == 1 && nProds >= 2:
		return chem.ClassDissociation
	case nReacs == 2 && nProds == 2:
		return chem.ClassSubstitution
	case nReacs == 2 && nProds == 3:
		return chem.ClassElimination
	case nReacs == 1 && nProds == 1:
		return chem.ClassRearrangement
	default:
		return chem.ClassUnknown
	}
}

func (r *Reaction) checkBalance() error {
	var reacAtoms, prodAtoms, reacCharge, prodCharge int
	for _, m := range r.Reactants {
		reacAtoms += m.NAtoms()
		reacCharge += m.Charge
	}
	for _, m := range r.Products {
		prodAtoms += m.NAtoms()
		prodCharge += m.Charge
	}
	if reacAtoms != prodAtoms {
		return errors.New(errors.ErrCodeUnbalanced,
			fmt.Sprintf("atom count does not balance: %d reactant vs %d product atoms", reacAtoms, prodAtoms))
	}
	if reacCharge != prodCharge {
		return errors.New(errors.ErrCodeUnbalanced,
			fmt.Sprintf("charge does not balance: %+d reactant vs %+d product", reacCharge, prodCharge))
	}
	return nil
}

// switchAddition swaps sides and reclassifies as a dissociation.  Additions
// have early, reactant-like transition states that are far easier to locate
// from the associated single product.
func (r *Reaction) switchAddition() {
	r.swapSides()
	r.Class = chem.ClassDissociation
}

func (r *Reaction) swapSides() {
	r.Reactants, r.Products = r.Products, r.Reactants
	r.Switched = !r.Switched
}

// anyCharged reports whether any molecule in the set carries a net charge.
// Distinct from a nonzero total: an ion pair sums to neutral.
func anyCharged(mols []*species.Species) bool {
	for _, m := range mols {
		if m.Charge != 0 {
			return true
		}
	}
	return false
}

// Charge returns the total charge, identical on both sides after a
// successful balance check.
func (r *Reaction) Charge() int {
	var q int
	for _, m := range r.Reactants {
		q += m.Charge
	}
	return q
}

// DeltaE returns E(products) - E(reactants) in Hartree.  The second return
// is false when any molecule is missing an energy.
func (r *Reaction) DeltaE() (float64, bool) {
	re, ok := sumEnergies(r.Reactants)
	if !ok {
		return 0, false
	}
	pe, ok := sumEnergies(r.Products)
	if !ok {
		return 0, false
	}
	return pe - re, true
}

// DeltaEDagger returns E(ts) - E(reactants) in Hartree for the lowest
// energy transition state found so far.
func (r *Reaction) DeltaEDagger() (float64, bool) {
	ts := r.LowestEnergyTS()
	if ts == nil {
		return 0, false
	}
	tse, ok := ts.Energy()
	if !ok {
		return 0, false
	}
	re, ok := sumEnergies(r.Reactants)
	if !ok {
		return 0, false
	}
	return tse - re, true
}

// LowestEnergyTS picks the lowest energy state from TSs, preferring earlier
// rearrangements on ties and states without an energy last.
func (r *Reaction) LowestEnergyTS() *transition.TransitionState {
	var best *transition.TransitionState
	bestE := 0.0
	for _, ts := range r.TSs {
		e, ok := ts.Energy()
		if !ok {
			continue
		}
		if best == nil || e < bestE {
			best, bestE = ts, e
		}
	}
	if best == nil && len(r.TSs) > 0 {
		return r.TSs[0]
	}
	return best
}

func sumEnergies(mols []*species.Species) (float64, bool) {
	var total float64
	for _, m := range mols {
		e, ok := m.Energy()
		if !ok {
			return 0, false
		}
		total += e
	}
	return total, true
}
