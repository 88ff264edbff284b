package species

// Complex is a species assembled from one or more molecular fragments.  The
// fragment partition is retained so that rigid-body pose operations can move
// one fragment relative to the others.
type Complex struct {
	*Species
	fragments   [][]int // atom indexes per fragment, in assembly order
	fragCharges []int   // net charge per fragment, same order
}

// NewComplex concatenates the fragments into a single species.  The net
// charge is the sum of fragment charges and the multiplicity follows the
// usual spin-summation rule for non-interacting fragments.
func NewComplex(name string, fragments ...*Species) *Complex {
	var atoms []Atom
	var idx [][]int
	var charges []int
	charge := 0
	mult := 1
	for _, f := range fragments {
		fi := make([]int, f.NAtoms())
		for i := range fi {
			fi[i] = len(atoms) + i
		}
		idx = append(idx, fi)
		atoms = append(atoms, f.Atoms...)
		charges = append(charges, f.Charge)
		charge += f.Charge
		mult += f.Mult - 1
	}
	return &Complex{
		Species:     New(name, charge, mult, atoms),
		fragments:   idx,
		fragCharges: charges,
	}
}

// AnyFragmentCharged reports whether any single fragment carries a net
// charge.  An ion pair sums to zero overall, so the total charge cannot
// answer this.
func (c *Complex) AnyFragmentCharged() bool {
	for _, q := range c.fragCharges {
		if q != 0 {
			return true
		}
	}
	return false
}

// NFragments returns the number of fragments in the complex.
func (c *Complex) NFragments() int { return len(c.fragments) }

// FragmentIndexes returns the atom indexes belonging to fragment i.  The
// returned slice must not be mutated.
func (c *Complex) FragmentIndexes(i int) []int { return c.fragments[i] }

// TranslateFragment rigidly shifts fragment i by vec.
func (c *Complex) TranslateFragment(i int, vec [3]float64) {
	c.Translate(c.fragments[i], vec)
}

// RotateFragment rigidly rotates fragment i by theta radians about the axis
// through the fragment centroid.
func (c *Complex) RotateFragment(i int, axis [3]float64, theta float64) {
	c.Rotate(c.fragments[i], axis, theta, c.Centroid(c.fragments[i]))
}

// FragmentOf returns the index of the fragment containing atom a, or -1.
func (c *Complex) FragmentOf(a int) int {
	for fi, idx := range c.fragments {
		for _, j := range idx {
			if j == a {
				return fi
			}
		}
	}
	return -1
}

// Copy deep-copies the complex including its fragment partition.
func (c *Complex) Copy() *Complex {
	frags := make([][]int, len(c.fragments))
	for i, f := range c.fragments {
		frags[i] = append([]int(nil), f...)
	}
	return &Complex{
		Species:     c.Species.Copy(),
		fragments:   frags,
		fragCharges: append([]int(nil), c.fragCharges...),
	}
}
