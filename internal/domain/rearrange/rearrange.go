// Package rearrange enumerates bond rearrangements: minimal sets of forming
// and breaking bonds that convert the reactant connectivity into the product
// connectivity.  Rearrangements are immutable once constructed and are the
// unit of work for the transition-state search.
package rearrange

import (
	"fmt"
	"sort"
	"strings"

	"github.com/molkinetics/tsfinder/internal/domain/molgraph"
	"github.com/molkinetics/tsfinder/pkg/errors"
)

// Rearrangement is a set of forming bonds (absent in the reactant, present
// in the product) and breaking bonds (the reverse).  Bond slices are sorted
// and must not be mutated after construction.
type Rearrangement struct {
	FBonds []molgraph.Bond
	BBonds []molgraph.Bond
}

// New sorts and stores the bond sets.
func New(fbonds, bbonds []molgraph.Bond) *Rearrangement {
	r := &Rearrangement{
		FBonds: append([]molgraph.Bond(nil), fbonds...),
		BBonds: append([]molgraph.Bond(nil), bbonds...),
	}
	sortBonds(r.FBonds)
	sortBonds(r.BBonds)
	return r
}

// ActiveAtoms returns every atom index touched by a forming or breaking
// bond, sorted ascending.
func (r *Rearrangement) ActiveAtoms() []int {
	set := map[int]struct{}{}
	for _, b := range r.AllBonds() {
		set[b[0]] = struct{}{}
		set[b[1]] = struct{}{}
	}
	out := make([]int, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	sort.Ints(out)
	return out
}

// AllBonds returns the forming bonds followed by the breaking bonds.
func (r *Rearrangement) AllBonds() []molgraph.Bond {
	out := make([]molgraph.Bond, 0, len(r.FBonds)+len(r.BBonds))
	out = append(out, r.FBonds...)
	return append(out, r.BBonds...)
}

// Signature is a canonical string identity for the rearrangement, stable
// under the order bonds were supplied in.  It doubles as the template-store
// key for structurally identical rearrangements.
func (r *Rearrangement) Signature() string {
	var sb strings.Builder
	sb.WriteString("f:")
	writeBonds(&sb, r.FBonds)
	sb.WriteString("|b:")
	writeBonds(&sb, r.BBonds)
	return sb.String()
}

func (r *Rearrangement) String() string { return r.Signature() }

func writeBonds(sb *strings.Builder, bonds []molgraph.Bond) {
	for i, b := range bonds {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(sb, "%d-%d", b[0], b[1])
	}
}

func sortBonds(bonds []molgraph.Bond) {
	sort.Slice(bonds, func(i, j int) bool {
		if bonds[i][0] != bonds[j][0] {
			return bonds[i][0] < bonds[j][0]
		}
		return bonds[i][1] < bonds[j][1]
	})
}

// maxBondsPerKind bounds the exhaustive search: rearrangements with more
// than two forming or two breaking bonds are out of scope.
const maxBondsPerKind = 2

// Enumerator searches the candidate bond pools for valid rearrangements.
type Enumerator struct {
	iso molgraph.Isomorphism
}

// NewEnumerator uses the given isomorphism checker for validity tests.
func NewEnumerator(iso molgraph.Isomorphism) *Enumerator {
	return &Enumerator{iso: iso}
}

// Enumerate returns every minimal valid rearrangement converting reactant
// into product connectivity.  The candidate pools are the edge symmetric
// difference of the two graphs; combinations are explored in ascending total
// bond-change count and the search stops at the first count that yields any
// valid rearrangement, so only minimal rearrangements are returned.  The
// result is deduplicated by signature and sorted, making it independent of
// enumeration order.  An empty result is not an error: the reaction simply
// has no discoverable rearrangement within the search bounds.
func (e *Enumerator) Enumerate(reactant, product *molgraph.Graph) ([]*Rearrangement, error) {
	if reactant == nil || product == nil {
		return nil, errors.Precondition("both reactant and product graphs are required")
	}
	if reactant.NAtoms() != product.NAtoms() {
		return nil, errors.New(errors.ErrCodeUnbalanced, "reactant and product atom counts differ").
			WithDetail(fmt.Sprintf("%d vs %d", reactant.NAtoms(), product.NAtoms()))
	}

	fpool := bondDifference(product, reactant)  // in product, not in reactant
	bpool := bondDifference(reactant, product)  // in reactant, not in product

	for total := 1; total <= 2*maxBondsPerKind; total++ {
		var found []*Rearrangement
		seen := map[string]struct{}{}

		for nf := 0; nf <= maxBondsPerKind && nf <= total; nf++ {
			nb := total - nf
			if nb > maxBondsPerKind || nf > len(fpool) || nb > len(bpool) {
				continue
			}
			for _, fb := range combinations(fpool, nf) {
				for _, bb := range combinations(bpool, nb) {
					r := New(fb, bb)
					if _, dup := seen[r.Signature()]; dup {
						continue
					}
					edited, err := reactant.ApplyRearrangement(r.FBonds, r.BBonds)
					if err != nil {
						return nil, errors.Wrap(err, errors.ErrCodeGraphMalformed, "apply candidate rearrangement")
					}
					if e.iso.Isomorphic(edited, product) {
						seen[r.Signature()] = struct{}{}
						found = append(found, r)
					}
				}
			}
		}

		if len(found) > 0 {
			sort.Slice(found, func(i, j int) bool {
				return found[i].Signature() < found[j].Signature()
			})
			return found, nil
		}
	}
	return nil, nil
}

// bondDifference returns the bonds of a that are absent in b.
func bondDifference(a, b *molgraph.Graph) []molgraph.Bond {
	var out []molgraph.Bond
	for _, bond := range a.Bonds() {
		if !b.HasBond(bond[0], bond[1]) {
			out = append(out, bond)
		}
	}
	return out
}

// combinations returns every k-subset of pool in lexicographic order.
// combinations(pool, 0) is a single empty choice.
func combinations(pool []molgraph.Bond, k int) [][]molgraph.Bond {
	if k == 0 {
		return [][]molgraph.Bond{nil}
	}
	if k > len(pool) {
		return nil
	}
	var out [][]molgraph.Bond
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		pick := make([]molgraph.Bond, k)
		for i, j := range idx {
			pick[i] = pool[j]
		}
		out = append(out, pick)

		i := k - 1
		for i >= 0 && idx[i] == len(pool)-k+i {
			i--
		}
		if i < 0 {
			return out
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}
