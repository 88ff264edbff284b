// Package chem holds the element data tables and shared chemical value types
// consumed across the engine: covalent radii for bond inference, atomic
// masses for mass-weighting Hessians, tabulated average bond lengths used as
// forming-bond scan targets, and the reaction classification enum.
package chem

import "strings"

// ReactionClass categorises the overall bond-change pattern of a reaction.
type ReactionClass string

const (
	ClassAddition      ReactionClass = "addition"
	ClassDissociation  ReactionClass = "dissociation"
	ClassSubstitution  ReactionClass = "substitution"
	ClassElimination   ReactionClass = "elimination"
	ClassRearrangement ReactionClass = "rearrangement"
	ClassUnknown       ReactionClass = "unknown"
)

// String returns the string representation of the reaction class.
func (c ReactionClass) String() string { return string(c) }

// covalentRadii holds single-bond covalent radii in ångströms (Cordero 2008
// values for the elements the engine commonly encounters).
var covalentRadii = map[string]float64{
	"H": 0.31, "He": 0.28,
	"Li": 1.28, "Be": 0.96, "B": 0.84, "C": 0.76, "N": 0.71, "O": 0.66, "F": 0.57, "Ne": 0.58,
	"Na": 1.66, "Mg": 1.41, "Al": 1.21, "Si": 1.11, "P": 1.07, "S": 1.05, "Cl": 1.02, "Ar": 1.06,
	"K": 2.03, "Ca": 1.76, "Sc": 1.70, "Ti": 1.60, "V": 1.53, "Cr": 1.39, "Mn": 1.39,
	"Fe": 1.32, "Co": 1.26, "Ni": 1.24, "Cu": 1.32, "Zn": 1.22, "Ga": 1.22, "Ge": 1.20,
	"As": 1.19, "Se": 1.20, "Br": 1.20, "Kr": 1.16,
	"Rb": 2.20, "Sr": 1.95, "Pd": 1.39, "Ag": 1.45, "Cd": 1.44, "Sn": 1.39, "Sb": 1.39,
	"Te": 1.38, "I": 1.39, "Xe": 1.40,
	"Cs": 2.44, "Ba": 2.15, "Pt": 1.36, "Au": 1.36, "Hg": 1.32, "Pb": 1.46,
	"Rh": 1.42, "Ru": 1.46, "Ir": 1.41,
}

// atomicMasses holds standard atomic weights in amu.
var atomicMasses = map[string]float64{
	"H": 1.008, "He": 4.003,
	"Li": 6.94, "Be": 9.012, "B": 10.81, "C": 12.011, "N": 14.007, "O": 15.999,
	"F": 18.998, "Ne": 20.180,
	"Na": 22.990, "Mg": 24.305, "Al": 26.982, "Si": 28.085, "P": 30.974, "S": 32.06,
	"Cl": 35.45, "Ar": 39.948,
	"K": 39.098, "Ca": 40.078, "Fe": 55.845, "Ni": 58.693, "Cu": 63.546, "Zn": 65.38,
	"Br": 79.904, "Pd": 106.42, "Ag": 107.87, "I": 126.90, "Pt": 195.08, "Au": 196.97,
	"Rh": 102.91, "Ru": 101.07, "Ir": 192.22,
}

// metals is the set of element labels treated as metals for the conservative
// metal–ligand bond allowance in imaginary-mode displacement checks.
var metals = map[string]bool{
	"Li": true, "Be": true, "Na": true, "Mg": true, "Al": true,
	"K": true, "Ca": true, "Sc": true, "Ti": true, "V": true, "Cr": true,
	"Mn": true, "Fe": true, "Co": true, "Ni": true, "Cu": true, "Zn": true,
	"Rb": true, "Sr": true, "Y": true, "Zr": true, "Nb": true, "Mo": true,
	"Tc": true, "Ru": true, "Rh": true, "Pd": true, "Ag": true, "Cd": true,
	"Cs": true, "Ba": true, "La": true, "Hf": true, "Ta": true, "W": true,
	"Re": true, "Os": true, "Ir": true, "Pt": true, "Au": true, "Hg": true,
	"Sn": true, "Pb": true, "Bi": true,
}

// avgBondLengths tabulates mean equilibrium single-bond lengths (Å) for the
// most common heavy-atom pairs, keyed by the two element labels joined in
// lexicographic order.  Pairs absent from the table fall back to the sum of
// covalent radii.
var avgBondLengths = map[string]float64{
	"C|C": 1.54, "C|H": 1.09, "C|N": 1.47, "C|O": 1.43, "C|F": 1.35,
	"C|Cl": 1.77, "C|Br": 1.94, "C|I": 2.14, "C|S": 1.82, "C|P": 1.84,
	"C|Si": 1.85, "C|B": 1.56,
	"H|H": 0.74, "H|N": 1.01, "H|O": 0.96, "H|F": 0.92, "H|Cl": 1.27,
	"H|Br": 1.41, "H|I": 1.61, "H|S": 1.34, "H|P": 1.42,
	"N|N": 1.45, "N|O": 1.40, "O|O": 1.48, "O|P": 1.63, "O|S": 1.58,
	"F|Si": 1.60, "Cl|Si": 2.02,
}

// CovalentRadius returns the single-bond covalent radius for the element in
// ångströms.  Unknown labels fall back to 1.5 Å, which keeps bond inference
// permissive rather than silently dropping connectivity.
func CovalentRadius(label string) float64 {
	if r, ok := covalentRadii[normalise(label)]; ok {
		return r
	}
	return 1.5
}

// AtomicMass returns the standard atomic weight in amu, or 0 together with
// false when the element is not tabulated.
func AtomicMass(label string) (float64, bool) {
	m, ok := atomicMasses[normalise(label)]
	return m, ok
}

// IsMetal reports whether the element label is treated as a metal.
func IsMetal(label string) bool {
	return metals[normalise(label)]
}

// AvgBondLength returns the mean equilibrium bond length between two element
// labels in ångströms, falling back to the sum of covalent radii for pairs
// outside the table.
func AvgBondLength(a, b string) float64 {
	a, b = normalise(a), normalise(b)
	key := a + "|" + b
	if b < a {
		key = b + "|" + a
	}
	if d, ok := avgBondLengths[key]; ok {
		return d
	}
	return CovalentRadius(a) + CovalentRadius(b)
}

// normalise canonicalises an element label ("cl", "CL" → "Cl").
func normalise(label string) string {
	if label == "" {
		return label
	}
	label = strings.ToLower(label)
	return strings.ToUpper(label[:1]) + label[1:]
}
