package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/molkinetics/tsfinder/internal/domain/molgraph"
	"github.com/molkinetics/tsfinder/internal/domain/reaction"
	"github.com/molkinetics/tsfinder/internal/domain/rearrange"
	"github.com/molkinetics/tsfinder/internal/domain/species"
	"github.com/molkinetics/tsfinder/internal/domain/transition"
	"github.com/molkinetics/tsfinder/pkg/types/chem"
)

func writeReactionFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reaction.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadReaction(t *testing.T) {
	path := writeReactionFile(t, `{
		"name": "isomerisation",
		"reactants": [{"name": "open", "atoms": [
			{"label": "C", "x": 0, "y": 0, "z": 0},
			{"label": "O", "x": 5, "y": 0, "z": 0}
		]}],
		"products": [{"name": "closed", "atoms": [
			{"label": "C", "x": 0, "y": 0, "z": 0},
			{"label": "O", "x": 1.43, "y": 0, "z": 0}
		]}]
	}`)

	r, err := loadReaction(path)
	require.NoError(t, err)
	assert.Equal(t, "isomerisation", r.Name)
	assert.Equal(t, chem.ClassRearrangement, r.Class)
	require.Len(t, r.Reactants, 1)
	// Unset multiplicity defaults to singlet.
	assert.Equal(t, 1, r.Reactants[0].Mult)
}

func TestLoadReactionMissingFile(t *testing.T) {
	_, err := loadReaction(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read")
}

func TestLoadReactionBadJSON(t *testing.T) {
	path := writeReactionFile(t, `{"name": `)
	_, err := loadReaction(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}

func TestLoadReactionUnbalanced(t *testing.T) {
	path := writeReactionFile(t, `{
		"name": "bad",
		"reactants": [{"name": "a", "atoms": [{"label": "H", "x": 0, "y": 0, "z": 0}]}],
		"products": [{"name": "b", "atoms": [{"label": "O", "x": 0, "y": 0, "z": 0}]}]
	}`)
	_, err := loadReaction(path)
	require.Error(t, err)
}

func sampleResults(t *testing.T) (*reaction.Reaction, []*transition.TransitionState) {
	t.Helper()
	open := species.New("open", 0, 1, []species.Atom{
		{Label: "C", Coord: [3]float64{0, 0, 0}},
		{Label: "O", Coord: [3]float64{5, 0, 0}},
	})
	closed := species.New("closed", 0, 1, []species.Atom{
		{Label: "C", Coord: [3]float64{0, 0, 0}},
		{Label: "O", Coord: [3]float64{1.43, 0, 0}},
	})
	r, err := reaction.New("isomerisation", []*species.Species{open}, []*species.Species{closed})
	require.NoError(t, err)

	tsSpecies := species.New("isomerisation_rr0", 0, 1, []species.Atom{
		{Label: "C", Coord: [3]float64{0, 0, 0}},
		{Label: "O", Coord: [3]float64{2.1, 0, 0}},
	})
	tsSpecies.SetEnergy(-113.2)
	ts := &transition.TransitionState{
		Species:       tsSpecies,
		Rearrangement: rearrange.New([]molgraph.Bond{{0, 1}}, nil),
		Origin:        "ll_2d",
		ImagFreqs:     []float64{-412.7},
	}
	r.TSs = []*transition.TransitionState{ts}
	return r, r.TSs
}

func newOutCmd() (*cobra.Command, *bytes.Buffer) {
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)
	return cmd, &out
}

func TestPrintResultsText(t *testing.T) {
	r, found := sampleResults(t)
	cmd, out := newOutCmd()

	require.NoError(t, printResults(cmd, r, found, "text"))
	s := out.String()
	assert.Contains(t, s, "reaction isomerisation (rearrangement): 1 transition state(s)")
	assert.Contains(t, s, "origin=ll_2d")
	assert.Contains(t, s, "signature=f:0-1|b:")
	assert.Contains(t, s, "energy=-113.200000 Ha")
	assert.Contains(t, s, "imag=-412.7 cm-1")
	assert.Contains(t, s, "(lowest)")
}

func TestPrintResultsJSON(t *testing.T) {
	r, found := sampleResults(t)
	cmd, out := newOutCmd()

	require.NoError(t, printResults(cmd, r, found, "json"))

	var doc struct {
		Reaction string `json:"reaction"`
		Class    string `json:"class"`
		TSs      []struct {
			Origin   string   `json:"origin"`
			Energy   *float64 `json:"energy"`
			ImagFreq *float64 `json:"imag_freq"`
			Lowest   bool     `json:"lowest"`
		} `json:"transition_states"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
	assert.Equal(t, "isomerisation", doc.Reaction)
	assert.Equal(t, "rearrangement", doc.Class)
	require.Len(t, doc.TSs, 1)
	assert.Equal(t, "ll_2d", doc.TSs[0].Origin)
	require.NotNil(t, doc.TSs[0].Energy)
	assert.InDelta(t, -113.2, *doc.TSs[0].Energy, 1e-9)
	assert.True(t, doc.TSs[0].Lowest)
}
