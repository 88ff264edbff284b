// Package molgraph represents molecular connectivity as undirected graphs
// over atom indexes and provides geometry-based construction, bond
// rearrangement application and isomorphism checks with element labels as
// vertex invariants.
package molgraph

import (
	"sort"

	"github.com/dominikbraun/graph"

	"github.com/molkinetics/tsfinder/pkg/errors"
)

// Bond is an undirected edge between two atom indexes, stored with the
// smaller index first so bonds compare by value.
type Bond [2]int

// NewBond normalises the index order.
func NewBond(i, j int) Bond {
	if j < i {
		i, j = j, i
	}
	return Bond{i, j}
}

// Contains reports whether atom a is an endpoint of the bond.
func (b Bond) Contains(a int) bool { return b[0] == a || b[1] == a }

// Other returns the bond endpoint that is not a.  Calling it with a
// non-endpoint returns -1.
func (b Bond) Other(a int) int {
	switch a {
	case b[0]:
		return b[1]
	case b[1]:
		return b[0]
	}
	return -1
}

// Graph is the connectivity of a species: vertices are atom indexes carrying
// element labels, edges are covalent bonds.
type Graph struct {
	g      graph.Graph[int, int]
	labels []string
}

// NewGraph builds a bondless graph with one vertex per element label.
func NewGraph(labels []string) *Graph {
	g := graph.New(graph.IntHash)
	for i := range labels {
		_ = g.AddVertex(i)
	}
	return &Graph{g: g, labels: append([]string(nil), labels...)}
}

// NAtoms returns the number of vertices.
func (g *Graph) NAtoms() int { return len(g.labels) }

// Label returns the element label of atom i.
func (g *Graph) Label(i int) string { return g.labels[i] }

// Labels returns the element labels in atom order.  The returned slice must
// not be mutated.
func (g *Graph) Labels() []string { return g.labels }

// AddBond inserts an undirected bond.  Adding an existing bond is a no-op.
func (g *Graph) AddBond(i, j int) error {
	if i == j {
		return errors.InvalidParam("bond endpoints must differ")
	}
	if i < 0 || j < 0 || i >= len(g.labels) || j >= len(g.labels) {
		return errors.InvalidParam("bond endpoint out of range")
	}
	if err := g.g.AddEdge(i, j); err != nil && err != graph.ErrEdgeAlreadyExists {
		return errors.Wrap(err, errors.ErrCodeGraphMalformed, "add bond")
	}
	return nil
}

// RemoveBond deletes a bond.  Removing an absent bond is an error.
func (g *Graph) RemoveBond(i, j int) error {
	if err := g.g.RemoveEdge(i, j); err != nil {
		return errors.Wrap(err, errors.ErrCodeGraphMalformed, "remove bond")
	}
	return nil
}

// HasBond reports whether atoms i and j are bonded.
func (g *Graph) HasBond(i, j int) bool {
	_, err := g.g.Edge(i, j)
	return err == nil
}

// Bonds returns every bond sorted by (first, second) endpoint.
func (g *Graph) Bonds() []Bond {
	adj, err := g.g.AdjacencyMap()
	if err != nil {
		return nil
	}
	seen := map[Bond]struct{}{}
	var out []Bond
	for i, nbrs := range adj {
		for j := range nbrs {
			b := NewBond(i, j)
			if _, ok := seen[b]; ok {
				continue
			}
			seen[b] = struct{}{}
			out = append(out, b)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a][0] != out[b][0] {
			return out[a][0] < out[b][0]
		}
		return out[a][1] < out[b][1]
	})
	return out
}

// Neighbors returns the atoms bonded to i, sorted ascending.
func (g *Graph) Neighbors(i int) []int {
	adj, err := g.g.AdjacencyMap()
	if err != nil {
		return nil
	}
	var out []int
	for j := range adj[i] {
		out = append(out, j)
	}
	sort.Ints(out)
	return out
}

// Degree returns the number of bonds at atom i.
func (g *Graph) Degree(i int) int {
	adj, err := g.g.AdjacencyMap()
	if err != nil {
		return 0
	}
	return len(adj[i])
}

// NBonds returns the total bond count.
func (g *Graph) NBonds() int { return len(g.Bonds()) }

// Clone returns an independent copy.
func (g *Graph) Clone() *Graph {
	cp := NewGraph(g.labels)
	for _, b := range g.Bonds() {
		_ = cp.AddBond(b[0], b[1])
	}
	return cp
}

// ApplyRearrangement returns a copy with the forming bonds added and the
// breaking bonds removed.  The receiver is left untouched.
func (g *Graph) ApplyRearrangement(fbonds, bbonds []Bond) (*Graph, error) {
	cp := g.Clone()
	for _, b := range fbonds {
		if err := cp.AddBond(b[0], b[1]); err != nil {
			return nil, err
		}
	}
	for _, b := range bbonds {
		if err := cp.RemoveBond(b[0], b[1]); err != nil {
			return nil, err
		}
	}
	return cp, nil
}

// ConnectedComponents returns the vertex sets of the connected components,
// each sorted ascending, ordered by their smallest member.
func (g *Graph) ConnectedComponents() [][]int {
	n := len(g.labels)
	visited := make([]bool, n)
	var comps [][]int
	for start := 0; start < n; start++ {
		if visited[start] {
			continue
		}
		var comp []int
		stack := []int{start}
		visited[start] = true
		for len(stack) > 0 {
			v := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			comp = append(comp, v)
			for _, w := range g.Neighbors(v) {
				if !visited[w] {
					visited[w] = true
					stack = append(stack, w)
				}
			}
		}
		sort.Ints(comp)
		comps = append(comps, comp)
	}
	sort.Slice(comps, func(a, b int) bool { return comps[a][0] < comps[b][0] })
	return comps
}

// Builder constructs connectivity graphs from Cartesian geometries.
type Builder interface {
	FromGeometry(labels []string, coords [][3]float64) (*Graph, error)
}

// Isomorphism decides whether two connectivity graphs describe the same
// molecule up to atom reindexing.
type Isomorphism interface {
	Isomorphic(a, b *Graph) bool
}
