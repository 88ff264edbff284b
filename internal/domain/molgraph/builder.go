package molgraph

import (
	"math"

	"github.com/molkinetics/tsfinder/pkg/errors"
	"github.com/molkinetics/tsfinder/pkg/types/chem"
)

// GeometricBuilder bonds two atoms when their separation is within a
// relative tolerance of the sum of their covalent radii.
type GeometricBuilder struct {
	// Tolerance is the relative slack on the covalent radii sum, e.g. 0.25
	// bonds atoms up to 1.25 times the nominal bond length apart.
	Tolerance float64
}

// NewGeometricBuilder uses the given relative tolerance.
func NewGeometricBuilder(tolerance float64) *GeometricBuilder {
	return &GeometricBuilder{Tolerance: tolerance}
}

// FromGeometry derives the connectivity of a geometry.  Labels and
// coordinates are indexed identically.
func (b *GeometricBuilder) FromGeometry(labels []string, coords [][3]float64) (*Graph, error) {
	if len(labels) != len(coords) {
		return nil, errors.InvalidParam("label and coordinate counts differ")
	}
	g := NewGraph(labels)
	for i := 0; i < len(labels); i++ {
		for j := i + 1; j < len(labels); j++ {
			maxDist := (chem.CovalentRadius(labels[i]) + chem.CovalentRadius(labels[j])) * (1 + b.Tolerance)
			if dist(coords[i], coords[j]) < maxDist {
				if err := g.AddBond(i, j); err != nil {
					return nil, err
				}
			}
		}
	}
	return g, nil
}

func dist(a, b [3]float64) float64 {
	dx, dy, dz := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
