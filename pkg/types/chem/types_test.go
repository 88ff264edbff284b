package chem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCovalentRadius(t *testing.T) {
	assert.InDelta(t, 0.76, CovalentRadius("C"), 1e-12)
	assert.InDelta(t, 0.31, CovalentRadius("H"), 1e-12)
	// Label normalisation.
	assert.InDelta(t, 1.02, CovalentRadius("cl"), 1e-12)
	assert.InDelta(t, 1.02, CovalentRadius("CL"), 1e-12)
	// Unknown element: permissive fallback.
	assert.InDelta(t, 1.5, CovalentRadius("Xx"), 1e-12)
}

func TestAtomicMass(t *testing.T) {
	m, ok := AtomicMass("O")
	require.True(t, ok)
	assert.InDelta(t, 15.999, m, 1e-12)

	_, ok = AtomicMass("Xx")
	assert.False(t, ok)
}

func TestIsMetal(t *testing.T) {
	assert.True(t, IsMetal("Pd"))
	assert.True(t, IsMetal("fe"))
	assert.False(t, IsMetal("C"))
	assert.False(t, IsMetal("H"))
	assert.False(t, IsMetal(""))
}

func TestAvgBondLength(t *testing.T) {
	// Tabulated pair, queried both ways round.
	assert.InDelta(t, 1.09, AvgBondLength("C", "H"), 1e-12)
	assert.InDelta(t, 1.09, AvgBondLength("H", "C"), 1e-12)
	assert.InDelta(t, 1.77, AvgBondLength("Cl", "C"), 1e-12)

	// Untabulated pair falls back to the radii sum.
	assert.InDelta(t, CovalentRadius("Pd")+CovalentRadius("P"), AvgBondLength("Pd", "P"), 1e-12)
}

func TestReactionClassString(t *testing.T) {
	assert.Equal(t, "substitution", ClassSubstitution.String())
	assert.Equal(t, "unknown", ClassUnknown.String())
}
