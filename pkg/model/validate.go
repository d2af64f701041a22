package model

import "fmt"

// IssueKind classifies a structural problem in a flow
type IssueKind string

const (
	IssueDuplicateNode    IssueKind = "duplicate_node"
	IssueDuplicatePort    IssueKind = "duplicate_port"
	IssueDanglingNode     IssueKind = "dangling_node"
	IssueDanglingPort     IssueKind = "dangling_port"
	IssueNotInputPort     IssueKind = "not_input_port"
	IssueNotOutputPort    IssueKind = "not_output_port"
	IssueInputOvercommit  IssueKind = "input_overcommitted"
	IssueUnknownKind      IssueKind = "unknown_kind"
	IssueDataKindMismatch IssueKind = "data_kind_mismatch"
)

// Issue describes a structural problem found by Validate.
// Issues are never fatal; the compiler degrades around them.
type Issue struct {
	Kind         IssueKind `json:"kind"`
	NodeID       string    `json:"nodeId,omitempty"`
	PortID       string    `json:"portId,omitempty"`
	ConnectionID string    `json:"connectionId,omitempty"`
	Message      string    `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Kind, i.Message)
}

// Validate checks the flow's structural invariants without modifying it
func (f *Flow) Validate() []Issue {
	var issues []Issue

	nodes := make(map[string]*Node)
	ports := make(map[string]*Port)
	for _, n := range f.Nodes {
		if n == nil {
			continue
		}
		if _, exists := nodes[n.ID]; exists {
			issues = append(issues, Issue{
				Kind:    IssueDuplicateNode,
				NodeID:  n.ID,
				Message: fmt.Sprintf("node id %q is used more than once", n.ID),
			})
		} else {
			nodes[n.ID] = n
		}

		if !n.Kind.Valid() {
			issues = append(issues, Issue{
				Kind:    IssueUnknownKind,
				NodeID:  n.ID,
				Message: fmt.Sprintf("node %q has unknown type %q", n.ID, n.Kind),
			})
		} else if !dataMatchesKind(n) {
			issues = append(issues, Issue{
				Kind:    IssueDataKindMismatch,
				NodeID:  n.ID,
				Message: fmt.Sprintf("node %q of type %s carries %T data", n.ID, n.Kind, n.Data),
			})
		}

		for _, p := range append(append([]*Port{}, n.Inputs...), n.Outputs...) {
			if p == nil {
				continue
			}
			if _, exists := ports[p.ID]; exists {
				issues = append(issues, Issue{
					Kind:    IssueDuplicatePort,
					NodeID:  n.ID,
					PortID:  p.ID,
					Message: fmt.Sprintf("port id %q is used more than once", p.ID),
				})
				continue
			}
			ports[p.ID] = p
		}
	}

	occupied := make(map[string]string) // node/port -> connection id
	for _, c := range f.Connections {
		if c == nil {
			continue
		}
		source, sourceOK := nodes[c.SourceNodeID]
		target, targetOK := nodes[c.TargetNodeID]
		if !sourceOK || !targetOK {
			issues = append(issues, Issue{
				Kind:         IssueDanglingNode,
				ConnectionID: c.ID,
				Message:      fmt.Sprintf("connection %q references missing node(s) %q -> %q", c.ID, c.SourceNodeID, c.TargetNodeID),
			})
			continue
		}

		if p := findPort(source.Outputs, c.SourceOutputID); p == nil {
			kind := IssueDanglingPort
			if findPort(source.Inputs, c.SourceOutputID) != nil {
				kind = IssueNotOutputPort
			}
			issues = append(issues, Issue{
				Kind:         kind,
				NodeID:       source.ID,
				PortID:       c.SourceOutputID,
				ConnectionID: c.ID,
				Message:      fmt.Sprintf("connection %q source %q is not an output port of %q", c.ID, c.SourceOutputID, source.ID),
			})
		}

		if p := findPort(target.Inputs, c.TargetInputID); p == nil {
			kind := IssueDanglingPort
			if findPort(target.Outputs, c.TargetInputID) != nil {
				kind = IssueNotInputPort
			}
			issues = append(issues, Issue{
				Kind:         kind,
				NodeID:       target.ID,
				PortID:       c.TargetInputID,
				ConnectionID: c.ID,
				Message:      fmt.Sprintf("connection %q target %q is not an input port of %q", c.ID, c.TargetInputID, target.ID),
			})
			continue
		}

		key := c.TargetNodeID + "/" + c.TargetInputID
		if first, exists := occupied[key]; exists {
			issues = append(issues, Issue{
				Kind:         IssueInputOvercommit,
				NodeID:       target.ID,
				PortID:       c.TargetInputID,
				ConnectionID: c.ID,
				Message:      fmt.Sprintf("input %q already fed by connection %q", c.TargetInputID, first),
			})
			continue
		}
		occupied[key] = c.ID
	}

	return issues
}

func findPort(ports []*Port, id string) *Port {
	for _, p := range ports {
		if p != nil && p.ID == id {
			return p
		}
	}
	return nil
}

func dataMatchesKind(n *Node) bool {
	if n.Data == nil {
		return true
	}
	switch n.Kind {
	case KindFunction:
		_, ok := n.Function()
		return ok
	case KindCSVInput, KindExcelInput:
		_, ok := n.FileInput()
		return ok
	case KindSubFlow:
		_, ok := n.SubFlow()
		return ok
	case KindOutput:
		_, ok := n.Output()
		return ok
	}
	return false
}
