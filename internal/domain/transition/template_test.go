package transition

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/molkinetics/tsfinder/internal/domain/molgraph"
	"github.com/molkinetics/tsfinder/internal/domain/rearrange"
	"github.com/molkinetics/tsfinder/internal/domain/species"
	"github.com/molkinetics/tsfinder/pkg/errors"
)

func sampleTS() *TransitionState {
	s := species.New("ts", -1, 1, []species.Atom{
		{Label: "Cl", Coord: [3]float64{-2.1, 0, 0}},
		{Label: "C", Coord: [3]float64{0, 0, 0}},
		{Label: "Br", Coord: [3]float64{2.4, 0, 0}},
	})
	r := rearrange.New(
		[]molgraph.Bond{molgraph.NewBond(0, 1)},
		[]molgraph.Bond{molgraph.NewBond(1, 2)},
	)
	return &TransitionState{Species: s, Rearrangement: r, Origin: "test"}
}

func TestNewTemplate(t *testing.T) {
	tmpl := NewTemplate(sampleTS())

	assert.Equal(t, "f:0-1|b:1-2", tmpl.Signature)
	assert.Equal(t, -1, tmpl.Charge)
	require.Len(t, tmpl.Distances, 2)

	assert.True(t, tmpl.Distances[0].Forming)
	assert.InDelta(t, 2.1, tmpl.Distances[0].Distance, 1e-12)
	assert.False(t, tmpl.Distances[1].Forming)
	assert.InDelta(t, 2.4, tmpl.Distances[1].Distance, 1e-12)
	assert.NotEmpty(t, tmpl.ID)
}

func TestMatchDistances(t *testing.T) {
	ts := sampleTS()
	tmpl := NewTemplate(ts)

	// Same reactive centre, different indexing: Br C Cl.
	other := species.New("other", -1, 1, []species.Atom{
		{Label: "Br", Coord: [3]float64{3, 0, 0}},
		{Label: "C", Coord: [3]float64{0, 0, 0}},
		{Label: "Cl", Coord: [3]float64{-4, 0, 0}},
	})
	r := rearrange.New(
		[]molgraph.Bond{molgraph.NewBond(1, 2)}, // forming C-Cl
		[]molgraph.Bond{molgraph.NewBond(0, 1)}, // breaking Br-C
	)

	dists, ok := tmpl.MatchDistances(other, r)
	require.True(t, ok)
	assert.InDelta(t, 2.1, dists[molgraph.NewBond(1, 2)], 1e-12)
	assert.InDelta(t, 2.4, dists[molgraph.NewBond(0, 1)], 1e-12)
}

func TestMatchDistancesLabelMismatch(t *testing.T) {
	tmpl := NewTemplate(sampleTS())

	other := species.New("other", 0, 1, []species.Atom{
		{Label: "F", Coord: [3]float64{-3, 0, 0}},
		{Label: "C", Coord: [3]float64{0, 0, 0}},
		{Label: "Br", Coord: [3]float64{2, 0, 0}},
	})
	r := rearrange.New(
		[]molgraph.Bond{molgraph.NewBond(0, 1)},
		[]molgraph.Bond{molgraph.NewBond(1, 2)},
	)

	_, ok := tmpl.MatchDistances(other, r)
	assert.False(t, ok)
}

func TestMemoryTemplateStoreRoundTrip(t *testing.T) {
	store := NewMemoryTemplateStore()
	ctx := context.Background()
	tmpl := NewTemplate(sampleTS())

	require.NoError(t, store.Save(ctx, tmpl))

	got, err := store.Load(ctx, tmpl.Signature)
	require.NoError(t, err)
	assert.Equal(t, tmpl.ID, got.ID)
}

func TestMemoryTemplateStoreMiss(t *testing.T) {
	_, err := NewMemoryTemplateStore().Load(context.Background(), "f:0-1|b:")
	assert.True(t, errors.IsNotFound(err))
}

func TestMemoryTemplateStoreRejectsEmptySignature(t *testing.T) {
	err := NewMemoryTemplateStore().Save(context.Background(), &Template{})
	assert.True(t, errors.IsCode(err, errors.ErrCodeTemplateInvalid))
}
