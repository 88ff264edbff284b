package molgraph

import "sort"

// LabelledIsomorphism is a backtracking isomorphism check using element
// labels and vertex degrees as invariants.  Molecular graphs are small and
// sparse, so the search terminates quickly in practice.
type LabelledIsomorphism struct{}

// NewLabelledIsomorphism returns the default isomorphism checker.
func NewLabelledIsomorphism() *LabelledIsomorphism { return &LabelledIsomorphism{} }

// Isomorphic reports whether a and b describe the same molecule up to a
// relabelling of atom indexes that preserves element labels.
func (LabelledIsomorphism) Isomorphic(a, b *Graph) bool {
	if a.NAtoms() != b.NAtoms() {
		return false
	}
	if a.NBonds() != b.NBonds() {
		return false
	}
	if !sameComposition(a.labels, b.labels) {
		return false
	}
	if !sameDegreeSequence(a, b) {
		return false
	}

	m := &matcher{
		a:       a,
		b:       b,
		aAdj:    adjacency(a),
		bAdj:    adjacency(b),
		mapping: make([]int, a.NAtoms()),
		used:    make([]bool, b.NAtoms()),
	}
	for i := range m.mapping {
		m.mapping[i] = -1
	}
	return m.match(0)
}

type matcher struct {
	a, b       *Graph
	aAdj, bAdj []map[int]struct{}
	mapping    []int // a-index → b-index, -1 unmapped
	used       []bool
}

// match extends a partial mapping for a-vertices [0, v) to vertex v.
func (m *matcher) match(v int) bool {
	if v == len(m.mapping) {
		return true
	}
	for w := 0; w < len(m.used); w++ {
		if m.used[w] || !m.feasible(v, w) {
			continue
		}
		m.mapping[v] = w
		m.used[w] = true
		if m.match(v + 1) {
			return true
		}
		m.mapping[v] = -1
		m.used[w] = false
	}
	return false
}

// feasible checks label, degree and edge consistency of mapping v→w against
// the already mapped vertices.
func (m *matcher) feasible(v, w int) bool {
	if m.a.labels[v] != m.b.labels[w] {
		return false
	}
	if len(m.aAdj[v]) != len(m.bAdj[w]) {
		return false
	}
	for u := 0; u < v; u++ {
		_, aEdge := m.aAdj[v][u]
		_, bEdge := m.bAdj[w][m.mapping[u]]
		if aEdge != bEdge {
			return false
		}
	}
	return true
}

func adjacency(g *Graph) []map[int]struct{} {
	out := make([]map[int]struct{}, g.NAtoms())
	for i := range out {
		out[i] = make(map[int]struct{})
	}
	for _, b := range g.Bonds() {
		out[b[0]][b[1]] = struct{}{}
		out[b[1]][b[0]] = struct{}{}
	}
	return out
}

func sameComposition(a, b []string) bool {
	counts := make(map[string]int, len(a))
	for _, l := range a {
		counts[l]++
	}
	for _, l := range b {
		counts[l]--
	}
	for _, c := range counts {
		if c != 0 {
			return false
		}
	}
	return true
}

func sameDegreeSequence(a, b *Graph) bool {
	da := make([]int, a.NAtoms())
	db := make([]int, b.NAtoms())
	for i := range da {
		da[i] = a.Degree(i)
		db[i] = b.Degree(i)
	}
	sort.Ints(da)
	sort.Ints(db)
	for i := range da {
		if da[i] != db[i] {
			return false
		}
	}
	return true
}
