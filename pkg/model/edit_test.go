package model

import (
	"errors"
	"testing"
)

func mustAddNode(t *testing.T, f *Flow, kind NodeKind, name string, opts NodeOptions) (*Flow, *Node) {
	t.Helper()
	next, node, err := f.AddNode(kind, name, Position{}, opts)
	if err != nil {
		t.Fatalf("AddNode(%s) error = %v", kind, err)
	}
	return next, node
}

func TestAddNodeDefaults(t *testing.T) {
	tests := []struct {
		kind        NodeKind
		wantInputs  []string
		wantOutputs []string
	}{
		{KindFunction, []string{"param1"}, []string{"output1"}},
		{KindCSVInput, nil, []string{"data"}},
		{KindExcelInput, nil, []string{"data"}},
		{KindSubFlow, []string{"input"}, []string{"output"}},
		{KindOutput, []string{"result"}, nil},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			flow := NewFlow("test")
			next, node := mustAddNode(t, flow, tt.kind, "n", NodeOptions{})

			if len(flow.Nodes) != 0 {
				t.Error("AddNode modified the original flow")
			}
			if len(next.Nodes) != 1 {
				t.Fatalf("Expected 1 node, got %d", len(next.Nodes))
			}

			assertPortNames(t, node.Inputs, tt.wantInputs, DirectionInput)
			assertPortNames(t, node.Outputs, tt.wantOutputs, DirectionOutput)
		})
	}
}

func assertPortNames(t *testing.T, ports []*Port, want []string, dir Direction) {
	t.Helper()
	if len(ports) != len(want) {
		t.Fatalf("Expected %d %s ports, got %d", len(want), dir, len(ports))
	}
	for i, p := range ports {
		if p.OriginalName != want[i] || p.Name != want[i] {
			t.Errorf("Port %d: expected name %q, got name=%q original=%q", i, want[i], p.Name, p.OriginalName)
		}
		if p.Direction != dir {
			t.Errorf("Port %d: expected direction %s, got %s", i, dir, p.Direction)
		}
	}
}

func TestAddNodeUnknownKind(t *testing.T) {
	_, _, err := NewFlow("x").AddNode("teleporter", "n", Position{}, NodeOptions{})
	if !errors.Is(err, ErrUnknownNodeKind) {
		t.Errorf("Expected ErrUnknownNodeKind, got %v", err)
	}
}

func TestAddConnectionRejectsOccupiedInput(t *testing.T) {
	flow := NewFlow("test")
	flow, a := mustAddNode(t, flow, KindCSVInput, "a", NodeOptions{})
	flow, b := mustAddNode(t, flow, KindCSVInput, "b", NodeOptions{})
	flow, out := mustAddNode(t, flow, KindOutput, "out", NodeOptions{})

	flow, _, err := flow.AddConnection(Connection{
		SourceNodeID: a.ID, SourceOutputID: a.Outputs[0].ID,
		TargetNodeID: out.ID, TargetInputID: out.Inputs[0].ID,
	})
	if err != nil {
		t.Fatalf("AddConnection() error = %v", err)
	}

	_, _, err = flow.AddConnection(Connection{
		SourceNodeID: b.ID, SourceOutputID: b.Outputs[0].ID,
		TargetNodeID: out.ID, TargetInputID: out.Inputs[0].ID,
	})
	if !errors.Is(err, ErrInputOccupied) {
		t.Errorf("Expected ErrInputOccupied, got %v", err)
	}

	// output ports fan out
	flow, out2 := mustAddNode(t, flow, KindOutput, "out2", NodeOptions{})
	_, _, err = flow.AddConnection(Connection{
		SourceNodeID: a.ID, SourceOutputID: a.Outputs[0].ID,
		TargetNodeID: out2.ID, TargetInputID: out2.Inputs[0].ID,
	})
	if err != nil {
		t.Errorf("Expected fan-out to succeed, got %v", err)
	}
}

func TestAddConnectionUnknownEndpoints(t *testing.T) {
	flow := NewFlow("test")
	flow, a := mustAddNode(t, flow, KindCSVInput, "a", NodeOptions{})

	tests := []struct {
		name string
		conn Connection
		want error
	}{
		{"missing node", Connection{SourceNodeID: "nope", TargetNodeID: a.ID}, ErrUnknownNode},
		{"output used as input", Connection{SourceNodeID: a.ID, SourceOutputID: a.Outputs[0].ID, TargetNodeID: a.ID, TargetInputID: a.Outputs[0].ID}, ErrUnknownPort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := flow.AddConnection(tt.conn)
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestUpdateFunctionCodeReconcilesPorts(t *testing.T) {
	flow := NewFlow("test")
	flow, src := mustAddNode(t, flow, KindCSVInput, "src", NodeOptions{})
	flow, fn := mustAddNode(t, flow, KindFunction, "fn", NodeOptions{Code: "def f(a, b):\n    return a"})

	flow, _, err := flow.AddConnection(Connection{
		SourceNodeID: src.ID, SourceOutputID: src.Outputs[0].ID,
		TargetNodeID: fn.ID, TargetInputID: fn.Inputs[1].ID,
	})
	if err != nil {
		t.Fatalf("AddConnection() error = %v", err)
	}

	flow, err = flow.RenamePort(fn.ID, fn.Inputs[1].ID, "Second")
	if err != nil {
		t.Fatalf("RenamePort() error = %v", err)
	}

	// a is removed, b survives with its rename and connection, c is new
	flow, err = flow.UpdateFunctionCode(fn.ID, "def f(b, c):\n    return b, c")
	if err != nil {
		t.Fatalf("UpdateFunctionCode() error = %v", err)
	}

	updated := flow.Node(fn.ID)
	if len(updated.Inputs) != 2 {
		t.Fatalf("Expected 2 inputs, got %d", len(updated.Inputs))
	}
	if updated.Inputs[0].ID != fn.Inputs[1].ID {
		t.Errorf("Expected port b to keep id %s, got %s", fn.Inputs[1].ID, updated.Inputs[0].ID)
	}
	if updated.Inputs[0].Name != "Second" || updated.Inputs[0].OriginalName != "b" {
		t.Errorf("Expected renamed port b, got %+v", updated.Inputs[0])
	}
	if updated.Inputs[1].OriginalName != "c" {
		t.Errorf("Expected new port c, got %+v", updated.Inputs[1])
	}
	if len(updated.Outputs) != 2 {
		t.Errorf("Expected 2 outputs, got %d", len(updated.Outputs))
	}
	if len(flow.Connections) != 1 {
		t.Errorf("Expected connection into b to survive, got %d connections", len(flow.Connections))
	}

	flow, err = flow.UpdateFunctionCode(fn.ID, "def f(c):\n    return c")
	if err != nil {
		t.Fatalf("UpdateFunctionCode() error = %v", err)
	}
	if len(flow.Connections) != 0 {
		t.Errorf("Expected connection into removed port to be dropped, got %d", len(flow.Connections))
	}
}

func TestUpdateFunctionCodeRejectsOtherKinds(t *testing.T) {
	flow := NewFlow("test")
	flow, src := mustAddNode(t, flow, KindCSVInput, "src", NodeOptions{})

	if _, err := flow.UpdateFunctionCode(src.ID, "def f(): pass"); !errors.Is(err, ErrNotFunction) {
		t.Errorf("Expected ErrNotFunction, got %v", err)
	}
	if _, err := flow.UpdateFunctionCode("missing", ""); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("Expected ErrUnknownNode, got %v", err)
	}
}

func TestDeleteNodeRemovesConnections(t *testing.T) {
	flow := NewFlow("test")
	flow, a := mustAddNode(t, flow, KindCSVInput, "a", NodeOptions{})
	flow, out := mustAddNode(t, flow, KindOutput, "out", NodeOptions{})
	flow, conn, err := flow.AddConnection(Connection{
		SourceNodeID: a.ID, SourceOutputID: a.Outputs[0].ID,
		TargetNodeID: out.ID, TargetInputID: out.Inputs[0].ID,
	})
	if err != nil {
		t.Fatalf("AddConnection() error = %v", err)
	}
	if conn.ID == "" {
		t.Error("Expected generated connection id")
	}

	next, err := flow.DeleteNode(a.ID)
	if err != nil {
		t.Fatalf("DeleteNode() error = %v", err)
	}
	if len(next.Nodes) != 1 || len(next.Connections) != 0 {
		t.Errorf("Expected 1 node and 0 connections, got %d and %d", len(next.Nodes), len(next.Connections))
	}
	if len(flow.Nodes) != 2 || len(flow.Connections) != 1 {
		t.Error("DeleteNode modified the original flow")
	}

	if _, err := next.DeleteNode(a.ID); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("Expected ErrUnknownNode for second delete, got %v", err)
	}
}

func TestMoveNodeAndDeleteConnection(t *testing.T) {
	flow := NewFlow("test")
	flow, a := mustAddNode(t, flow, KindCSVInput, "a", NodeOptions{})
	flow, out := mustAddNode(t, flow, KindOutput, "out", NodeOptions{})
	flow, conn, err := flow.AddConnection(Connection{
		SourceNodeID: a.ID, SourceOutputID: a.Outputs[0].ID,
		TargetNodeID: out.ID, TargetInputID: out.Inputs[0].ID,
	})
	if err != nil {
		t.Fatalf("AddConnection() error = %v", err)
	}

	moved, err := flow.MoveNode(a.ID, Position{X: 5, Y: 7})
	if err != nil {
		t.Fatalf("MoveNode() error = %v", err)
	}
	if got := moved.Node(a.ID).Position; got.X != 5 || got.Y != 7 {
		t.Errorf("Expected position (5,7), got %+v", got)
	}

	if got := flow.DeleteConnection(conn.ID); len(got.Connections) != 0 {
		t.Errorf("Expected no connections, got %d", len(got.Connections))
	}
}
