package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/ritzau/flowc/pkg/pyparse"
)

var (
	ErrUnknownNode   = errors.New("unknown node")
	ErrUnknownPort   = errors.New("unknown port")
	ErrInputOccupied = errors.New("input port already connected")
	ErrNotFunction   = errors.New("node is not a python function")
)

// DefaultFunctionCode is the body given to new function nodes
const DefaultFunctionCode = "def main(param1):\n  # Your Python Code here\n  return output1"

// NewFlow creates an empty flow
func NewFlow(name string) *Flow {
	return &Flow{
		ID:          NewID("flow"),
		Name:        name,
		Nodes:       []*Node{},
		Connections: []*Connection{},
		Viewport:    Viewport{X: 50, Y: 50, Zoom: 1},
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
	}
}

// NodeOptions customises AddNode
type NodeOptions struct {
	Code        string // python-function source; DefaultFunctionCode when empty
	TemplateID  string
	SubFlowID   string
	Description string
}

// AddNode returns a copy of the flow with a new node of the given kind.
// Ports are created from the kind's structural defaults, or from the code
// for function nodes.
func (f *Flow) AddNode(kind NodeKind, name string, pos Position, opts NodeOptions) (*Flow, *Node, error) {
	node, err := NewNode(kind, name, pos, opts)
	if err != nil {
		return nil, nil, err
	}
	next := f.Clone()
	next.Nodes = append(next.Nodes, node)
	return next, node, nil
}

// NewNode builds a detached node of the given kind
func NewNode(kind NodeKind, name string, pos Position, opts NodeOptions) (*Node, error) {
	id := NewID("node")
	node := &Node{
		ID:       id,
		Kind:     kind,
		Name:     name,
		Position: pos,
		Inputs:   []*Port{},
		Outputs:  []*Port{},
	}

	switch kind {
	case KindFunction:
		code := opts.Code
		if code == "" {
			code = DefaultFunctionCode
		}
		sig := pyparse.ParseFunction(code)
		node.Inputs = portsFromNames(id, DirectionInput, sig.Inputs)
		node.Outputs = portsFromNames(id, DirectionOutput, sig.Outputs)
		node.Data = &FunctionData{
			Code:        code,
			TemplateID:  opts.TemplateID,
			Description: opts.Description,
		}
	case KindCSVInput, KindExcelInput:
		node.Outputs = portsFromNames(id, DirectionOutput, []string{"data"})
		node.Data = &FileInputData{Description: opts.Description}
	case KindSubFlow:
		node.Inputs = portsFromNames(id, DirectionInput, []string{"input"})
		node.Outputs = portsFromNames(id, DirectionOutput, []string{"output"})
		node.Data = &SubFlowData{SubFlowID: opts.SubFlowID, Description: opts.Description}
	case KindOutput:
		node.Inputs = portsFromNames(id, DirectionInput, []string{"result"})
		node.Data = &OutputData{ValueKind: OutputValueJSON, Description: opts.Description}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownNodeKind, kind)
	}

	return node, nil
}

// UpdateFunctionCode replaces a function node's code, re-derives its ports
// and drops connections attached to ports that no longer exist
func (f *Flow) UpdateFunctionCode(nodeID, code string) (*Flow, error) {
	next := f.Clone()
	node := next.Node(nodeID)
	if node == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNode, nodeID)
	}
	data, ok := node.Function()
	if !ok || node.Kind != KindFunction {
		return nil, fmt.Errorf("%w: %q", ErrNotFunction, nodeID)
	}

	sig := pyparse.ParseFunction(code)
	node.Inputs = ReconcilePorts(node.Inputs, sig.Inputs, DirectionInput, node.ID)
	node.Outputs = ReconcilePorts(node.Outputs, sig.Outputs, DirectionOutput, node.ID)
	data.Code = code

	next.pruneConnections(node)
	return next, nil
}

// RenamePort changes a port's display name; its original name is kept
func (f *Flow) RenamePort(nodeID, portID, name string) (*Flow, error) {
	next := f.Clone()
	node := next.Node(nodeID)
	if node == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNode, nodeID)
	}
	port := node.Port(portID)
	if port == nil {
		return nil, fmt.Errorf("%w: %q on node %q", ErrUnknownPort, portID, nodeID)
	}
	if port.OriginalName == "" {
		port.OriginalName = port.Name
	}
	port.Name = name
	return next, nil
}

// MoveNode changes a node's canvas position
func (f *Flow) MoveNode(nodeID string, pos Position) (*Flow, error) {
	next := f.Clone()
	node := next.Node(nodeID)
	if node == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNode, nodeID)
	}
	node.Position = pos
	return next, nil
}

// DeleteNode removes a node and every connection touching it
func (f *Flow) DeleteNode(nodeID string) (*Flow, error) {
	if !f.HasNode(nodeID) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNode, nodeID)
	}
	next := f.Clone()

	nodes := next.Nodes[:0]
	for _, n := range next.Nodes {
		if n.ID != nodeID {
			nodes = append(nodes, n)
		}
	}
	next.Nodes = nodes

	conns := next.Connections[:0]
	for _, c := range next.Connections {
		if c.SourceNodeID != nodeID && c.TargetNodeID != nodeID {
			conns = append(conns, c)
		}
	}
	next.Connections = conns
	return next, nil
}

// AddConnection links an output port to an input port. An input port
// accepts at most one incoming connection.
func (f *Flow) AddConnection(conn Connection) (*Flow, *Connection, error) {
	source := f.Node(conn.SourceNodeID)
	if source == nil {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownNode, conn.SourceNodeID)
	}
	target := f.Node(conn.TargetNodeID)
	if target == nil {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownNode, conn.TargetNodeID)
	}
	if findPort(source.Outputs, conn.SourceOutputID) == nil {
		return nil, nil, fmt.Errorf("%w: output %q on node %q", ErrUnknownPort, conn.SourceOutputID, source.ID)
	}
	if findPort(target.Inputs, conn.TargetInputID) == nil {
		return nil, nil, fmt.Errorf("%w: input %q on node %q", ErrUnknownPort, conn.TargetInputID, target.ID)
	}
	if existing := f.IncomingTo(conn.TargetNodeID, conn.TargetInputID); existing != nil {
		return nil, nil, fmt.Errorf("%w: %q on node %q (connection %q)", ErrInputOccupied, conn.TargetInputID, target.ID, existing.ID)
	}

	next := f.Clone()
	c := conn
	if c.ID == "" {
		c.ID = NewID("conn")
	}
	next.Connections = append(next.Connections, &c)
	return next, &c, nil
}

// DeleteConnection removes a connection by id
func (f *Flow) DeleteConnection(connID string) *Flow {
	next := f.Clone()
	conns := next.Connections[:0]
	for _, c := range next.Connections {
		if c.ID != connID {
			conns = append(conns, c)
		}
	}
	next.Connections = conns
	return next
}

// pruneConnections drops connections into or out of ports the node no longer has
func (f *Flow) pruneConnections(node *Node) {
	conns := f.Connections[:0]
	for _, c := range f.Connections {
		if c.TargetNodeID == node.ID && findPort(node.Inputs, c.TargetInputID) == nil {
			continue
		}
		if c.SourceNodeID == node.ID && findPort(node.Outputs, c.SourceOutputID) == nil {
			continue
		}
		conns = append(conns, c)
	}
	f.Connections = conns
}
