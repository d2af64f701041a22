package graph

import (
	"sort"

	"github.com/ritzau/flowc/pkg/model"
	"gonum.org/v1/gonum/graph/simple"
)

// FlowGraph is the node-level dependency graph of a flow.
//
// The gonum graph records which nodes depend on which and is what the cycle
// finder walks. gonum stores at most one edge per pair and no self-loops, so
// the graph also keeps an ordered successor list with one entry per
// connection, which makes ordering deterministic.
type FlowGraph struct {
	graph     *simple.DirectedGraph
	nodes     []*model.Node    // flow order, nil entries skipped
	ids       map[string]int64 // node id -> graph id (first occurrence)
	succ      map[int64][]int64
	inDegree  map[int64]int
	selfLoops map[int64]bool
	dangling  []*model.Connection
}

// NewFlowGraph creates an empty flow graph
func NewFlowGraph() *FlowGraph {
	return &FlowGraph{
		graph:     simple.NewDirectedGraph(),
		ids:       make(map[string]int64),
		succ:      make(map[int64][]int64),
		inDegree:  make(map[int64]int),
		selfLoops: make(map[int64]bool),
	}
}

// AddNode adds a node to the graph. A node whose id is already present is
// still kept for emission but receives no edges.
func (fg *FlowGraph) AddNode(n *model.Node) {
	if n == nil {
		return
	}
	id := int64(len(fg.nodes))
	fg.nodes = append(fg.nodes, n)
	fg.graph.AddNode(simple.Node(id))
	if _, exists := fg.ids[n.ID]; !exists {
		fg.ids[n.ID] = id
	}
}

// AddConnection records the dependency of the target node on the source
// node. It returns false when either endpoint is unknown; such connections
// are remembered as dangling.
func (fg *FlowGraph) AddConnection(c *model.Connection) bool {
	if c == nil {
		return false
	}
	from, okFrom := fg.ids[c.SourceNodeID]
	to, okTo := fg.ids[c.TargetNodeID]
	if !okFrom || !okTo {
		fg.dangling = append(fg.dangling, c)
		return false
	}

	fg.succ[from] = append(fg.succ[from], to)
	fg.inDegree[to]++

	if from == to {
		fg.selfLoops[from] = true
		return true
	}
	if !fg.graph.HasEdgeFromTo(from, to) {
		fg.graph.SetEdge(fg.graph.NewEdge(fg.graph.Node(from), fg.graph.Node(to)))
	}
	return true
}

// Graph returns the underlying directed graph (self-loops excluded)
func (fg *FlowGraph) Graph() *simple.DirectedGraph {
	return fg.graph
}

// Nodes returns the nodes in flow order
func (fg *FlowGraph) Nodes() []*model.Node {
	return append([]*model.Node(nil), fg.nodes...)
}

// GetNode returns a node by its flow id
func (fg *FlowGraph) GetNode(id string) (*model.Node, bool) {
	gid, ok := fg.ids[id]
	if !ok {
		return nil, false
	}
	return fg.nodes[gid], true
}

// GraphID returns the graph id of a node, or -1 when it is unknown
func (fg *FlowGraph) GraphID(id string) int64 {
	gid, ok := fg.ids[id]
	if !ok {
		return -1
	}
	return gid
}

// GetNodeByID returns a node by its graph id
func (fg *FlowGraph) GetNodeByID(id int64) *model.Node {
	if id < 0 || id >= int64(len(fg.nodes)) {
		return nil
	}
	return fg.nodes[id]
}

// SelfLoops returns the ids of nodes connected to themselves, in flow order
func (fg *FlowGraph) SelfLoops() []string {
	var ids []int64
	for id := range fg.selfLoops {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, fg.nodes[id].ID)
	}
	return out
}

// Dangling returns connections that reference a missing node
func (fg *FlowGraph) Dangling() []*model.Connection {
	return fg.dangling
}

// GetDependencies returns the ids of the nodes the given node reads from,
// without duplicates, in flow order
func (fg *FlowGraph) GetDependencies(nodeID string) []string {
	gid, ok := fg.ids[nodeID]
	if !ok {
		return nil
	}

	var deps []string
	for from := range fg.nodes {
		for _, to := range fg.succ[int64(from)] {
			if to == gid {
				deps = append(deps, fg.nodes[from].ID)
				break
			}
		}
	}
	return deps
}

// TopologicalOrder sorts the nodes with Kahn's algorithm. Nodes with no
// incoming connections are seeded in flow order and processed first in,
// first out. The second result is false when some nodes could not be
// placed because they sit on or behind a cycle; the returned slice then
// holds only the nodes that were placed.
func (fg *FlowGraph) TopologicalOrder() ([]*model.Node, bool) {
	inDegree := make(map[int64]int, len(fg.inDegree))
	for id, d := range fg.inDegree {
		inDegree[id] = d
	}

	queue := make([]int64, 0, len(fg.nodes))
	for id := range fg.nodes {
		if inDegree[int64(id)] == 0 {
			queue = append(queue, int64(id))
		}
	}

	order := make([]*model.Node, 0, len(fg.nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, fg.nodes[id])

		for _, next := range fg.succ[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	return order, len(order) == len(fg.nodes)
}

// PositionOrder returns every node sorted by canvas position, top to
// bottom then left to right. Ties keep flow order.
func (fg *FlowGraph) PositionOrder() []*model.Node {
	nodes := fg.Nodes()
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i].Position, nodes[j].Position
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})
	return nodes
}

// BuildFlowGraph builds the dependency graph of a flow
func BuildFlowGraph(flow *model.Flow) *FlowGraph {
	fg := NewFlowGraph()
	if flow == nil {
		return fg
	}

	for _, n := range flow.Nodes {
		fg.AddNode(n)
	}
	for _, c := range flow.Connections {
		fg.AddConnection(c)
	}

	return fg
}
