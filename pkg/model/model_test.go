package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

const editorExport = `{
  "id": "flow_abc",
  "name": "Demo",
  "nodes": [
    {
      "id": "node_csv",
      "type": "csv-input",
      "name": "Prices",
      "position": {"x": 10, "y": 20},
      "inputs": [],
      "outputs": [{"id": "port_out_csv", "name": "data", "originalName": "data", "nodeId": "node_csv", "type": "output"}],
      "data": {"fileName": "prices.csv", "filePreview": {"headers": ["a"], "firstRow": ["1"], "rowCount": 2, "jsonData": [{"a": 1}, {"a": 2}]}}
    },
    {
      "id": "node_fn",
      "type": "python-function",
      "name": "Double",
      "position": {"x": 10, "y": 120},
      "inputs": [{"id": "port_in_fn", "name": "frame", "originalName": "df", "nodeId": "node_fn", "type": "input"}],
      "outputs": [],
      "data": {"code": "def double(df):\n    return df * 2"}
    },
    {
      "id": "node_sub",
      "type": "sub-flow",
      "name": "Nested",
      "position": {"x": 0, "y": 0},
      "inputs": [],
      "outputs": [],
      "data": {"subFlowId": "flow_other"}
    },
    {
      "id": "node_out",
      "type": "output-node",
      "name": "Result",
      "position": {"x": 0, "y": 0},
      "inputs": [],
      "outputs": [],
      "data": {"outputValue": null, "outputType": "json"}
    }
  ],
  "connections": [],
  "viewport": {"x": 50, "y": 50, "zoom": 1}
}`

func TestDecodeEditorExport(t *testing.T) {
	var flow Flow
	if err := json.Unmarshal([]byte(editorExport), &flow); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if len(flow.Nodes) != 4 {
		t.Fatalf("Expected 4 nodes, got %d", len(flow.Nodes))
	}

	file, ok := flow.Node("node_csv").FileInput()
	if !ok {
		t.Fatalf("Expected csv node to carry FileInputData, got %T", flow.Node("node_csv").Data)
	}
	if file.FileName != "prices.csv" {
		t.Errorf("Expected file name prices.csv, got %q", file.FileName)
	}
	if !file.Preview.HasJSON() {
		t.Error("Expected preview to carry JSON data")
	}

	fn, ok := flow.Node("node_fn").Function()
	if !ok || !strings.HasPrefix(fn.Code, "def double") {
		t.Errorf("Expected function code, got %+v", flow.Node("node_fn").Data)
	}
	if got := flow.Node("node_fn").Inputs[0]; got.Name != "frame" || got.OriginalName != "df" || got.Direction != DirectionInput {
		t.Errorf("Unexpected input port %+v", got)
	}

	if sub, ok := flow.Node("node_sub").SubFlow(); !ok || sub.SubFlowID != "flow_other" {
		t.Errorf("Expected sub-flow reference flow_other, got %+v", flow.Node("node_sub").Data)
	}

	if out, ok := flow.Node("node_out").Output(); !ok || out.ValueKind != OutputValueJSON {
		t.Errorf("Expected json output node, got %+v", flow.Node("node_out").Data)
	}
}

func TestDecodeUnknownKind(t *testing.T) {
	var n Node
	err := json.Unmarshal([]byte(`{"id":"x","type":"teleporter","data":{}}`), &n)
	if !errors.Is(err, ErrUnknownNodeKind) {
		t.Fatalf("Expected ErrUnknownNodeKind, got %v", err)
	}
}

func TestEncodeKeepsEditorShape(t *testing.T) {
	node := &Node{
		ID:   "node_1",
		Kind: KindSubFlow,
		Name: "Sub",
		Data: &SubFlowData{SubFlowID: "flow_2"},
	}

	b, err := json.Marshal(node)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var generic map[string]any
	if err := json.Unmarshal(b, &generic); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if generic["type"] != "sub-flow" {
		t.Errorf("Expected type sub-flow, got %v", generic["type"])
	}
	data, _ := generic["data"].(map[string]any)
	if data["subFlowId"] != "flow_2" {
		t.Errorf("Expected data.subFlowId flow_2, got %v", data)
	}
	if inputs, ok := generic["inputs"].([]any); !ok || len(inputs) != 0 {
		t.Errorf("Expected empty inputs array, got %v", generic["inputs"])
	}
}

func TestCloneIsDeep(t *testing.T) {
	var flow Flow
	if err := json.Unmarshal([]byte(editorExport), &flow); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	clone := flow.Clone()
	clone.Node("node_fn").Inputs[0].Name = "changed"
	fn, _ := clone.Node("node_fn").Function()
	fn.Code = "changed"

	if flow.Node("node_fn").Inputs[0].Name != "frame" {
		t.Error("Clone shares ports with the original")
	}
	if orig, _ := flow.Node("node_fn").Function(); orig.Code == "changed" {
		t.Error("Clone shares data with the original")
	}
}
