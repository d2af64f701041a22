package cycles

import (
	"slices"

	"gonum.org/v1/gonum/graph"
)

// TarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes and successors are visited in ascending id order so the result is
// stable across runs.
type TarjanSCC struct {
	graph   graph.Directed
	index   int
	stack   []int64
	onStack map[int64]bool
	indices map[int64]int
	lowLink map[int64]int
	sccs    [][]int64
}

// NewTarjanSCC creates a new Tarjan SCC finder
func NewTarjanSCC(g graph.Directed) *TarjanSCC {
	return &TarjanSCC{
		graph:   g,
		onStack: make(map[int64]bool),
		indices: make(map[int64]int),
		lowLink: make(map[int64]int),
	}
}

// FindSCCs returns every component with more than one member. Members of
// each component are sorted by id.
func (t *TarjanSCC) FindSCCs() [][]int64 {
	for _, id := range sortedIDs(t.graph.Nodes()) {
		if _, visited := t.indices[id]; !visited {
			t.strongConnect(id)
		}
	}
	return t.sccs
}

func (t *TarjanSCC) strongConnect(id int64) {
	t.indices[id] = t.index
	t.lowLink[id] = t.index
	t.index++

	t.stack = append(t.stack, id)
	t.onStack[id] = true

	for _, next := range sortedIDs(t.graph.From(id)) {
		if _, visited := t.indices[next]; !visited {
			t.strongConnect(next)
			t.lowLink[id] = min(t.lowLink[id], t.lowLink[next])
		} else if t.onStack[next] {
			t.lowLink[id] = min(t.lowLink[id], t.indices[next])
		}
	}

	if t.lowLink[id] != t.indices[id] {
		return
	}

	// id is the root of a component
	var scc []int64
	for {
		w := t.stack[len(t.stack)-1]
		t.stack = t.stack[:len(t.stack)-1]
		t.onStack[w] = false
		scc = append(scc, w)
		if w == id {
			break
		}
	}
	if len(scc) > 1 {
		slices.Sort(scc)
		t.sccs = append(t.sccs, scc)
	}
}

func sortedIDs(nodes graph.Nodes) []int64 {
	ids := make([]int64, 0, nodes.Len())
	for nodes.Next() {
		ids = append(ids, nodes.Node().ID())
	}
	slices.Sort(ids)
	return ids
}
