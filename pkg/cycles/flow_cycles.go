package cycles

import (
	"slices"
	"strings"

	"github.com/ritzau/flowc/pkg/graph"
)

// FlowCycle is a group of nodes that feed each other
type FlowCycle struct {
	NodeIDs []string // in flow order
}

func (c FlowCycle) String() string {
	return strings.Join(c.NodeIDs, " -> ")
}

// FindFlowCycles finds every circular dependency between the nodes of a
// flow, including nodes wired to themselves. Cycles are ordered by the flow
// position of their first member.
func FindFlowCycles(fg *graph.FlowGraph) []FlowCycle {
	type found struct {
		first int64
		cycle FlowCycle
	}
	var all []found
	inSCC := make(map[string]bool)

	for _, scc := range NewTarjanSCC(fg.Graph()).FindSCCs() {
		ids := make([]string, 0, len(scc))
		for _, gid := range scc {
			if n := fg.GetNodeByID(gid); n != nil {
				ids = append(ids, n.ID)
				inSCC[n.ID] = true
			}
		}
		all = append(all, found{first: scc[0], cycle: FlowCycle{NodeIDs: ids}})
	}

	// a self-loop inside a larger component is already reported
	for _, id := range fg.SelfLoops() {
		if !inSCC[id] {
			all = append(all, found{first: fg.GraphID(id), cycle: FlowCycle{NodeIDs: []string{id}}})
		}
	}

	slices.SortFunc(all, func(a, b found) int {
		return int(a.first - b.first)
	})

	cycles := make([]FlowCycle, 0, len(all))
	for _, f := range all {
		cycles = append(cycles, f.cycle)
	}
	return cycles
}
