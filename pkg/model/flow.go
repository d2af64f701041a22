package model

// Flow is the whole compilable unit: nodes, connections and metadata.
// The compiler treats a Flow as an immutable snapshot.
type Flow struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Nodes       []*Node       `json:"nodes"`
	Connections []*Connection `json:"connections"`
	Viewport    Viewport      `json:"viewport"`
	CreatedAt   string        `json:"createdAt,omitempty"`
}

// Node returns the first node with the given id, or nil
func (f *Flow) Node(id string) *Node {
	for _, n := range f.Nodes {
		if n != nil && n.ID == id {
			return n
		}
	}
	return nil
}

// HasNode reports whether a node with the given id exists
func (f *Flow) HasNode(id string) bool {
	return f.Node(id) != nil
}

// IncomingTo returns the connection feeding the given input port, or nil
func (f *Flow) IncomingTo(nodeID, portID string) *Connection {
	for _, c := range f.Connections {
		if c != nil && c.TargetNodeID == nodeID && c.TargetInputID == portID {
			return c
		}
	}
	return nil
}

// Clone returns a deep copy of the flow
func (f *Flow) Clone() *Flow {
	c := *f
	c.Nodes = make([]*Node, 0, len(f.Nodes))
	for _, n := range f.Nodes {
		if n != nil {
			c.Nodes = append(c.Nodes, n.Clone())
		}
	}
	c.Connections = make([]*Connection, 0, len(f.Connections))
	for _, conn := range f.Connections {
		if conn != nil {
			cc := *conn
			c.Connections = append(c.Connections, &cc)
		}
	}
	return &c
}
