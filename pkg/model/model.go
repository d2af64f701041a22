package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// NodeKind represents the type of a flow node
type NodeKind string

const (
	KindFunction   NodeKind = "python-function"
	KindCSVInput   NodeKind = "csv-input"
	KindExcelInput NodeKind = "excel-input"
	KindSubFlow    NodeKind = "sub-flow"
	KindOutput     NodeKind = "output-node"
)

// ErrUnknownNodeKind is returned when decoding a node with an unsupported type
var ErrUnknownNodeKind = errors.New("unknown node kind")

// Valid reports whether k is one of the supported node kinds
func (k NodeKind) Valid() bool {
	switch k {
	case KindFunction, KindCSVInput, KindExcelInput, KindSubFlow, KindOutput:
		return true
	}
	return false
}

// IsTabularInput returns true for the delimited-text and spreadsheet input kinds
func (k NodeKind) IsTabularInput() bool {
	return k == KindCSVInput || k == KindExcelInput
}

// Direction is the direction of a port
type Direction string

const (
	DirectionInput  Direction = "input"
	DirectionOutput Direction = "output"
)

// OutputValueKind is the declared kind of an output node's literal value
type OutputValueKind string

const (
	OutputValueJSON OutputValueKind = "json"
)

// Position is a node's location on the canvas
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Viewport is presentation-only state and is ignored by the compiler
type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// Port is a typed connection point on a node.
// Name is the editable display name; OriginalName is the name derived from
// code (or a structural default) and survives renames.
type Port struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	OriginalName string    `json:"originalName"`
	NodeID       string    `json:"nodeId"`
	Direction    Direction `json:"type"`
}

// Connection is a directed edge from an output port to an input port
type Connection struct {
	ID             string `json:"id"`
	SourceNodeID   string `json:"sourceNodeId"`
	SourceOutputID string `json:"sourceOutputId"`
	TargetNodeID   string `json:"targetNodeId"`
	TargetInputID  string `json:"targetInputId"`
}

// NodeData is the variant-specific payload of a node. The set of
// implementations is closed: FunctionData, FileInputData, SubFlowData and
// OutputData.
type NodeData interface {
	cloneData() NodeData
}

// FunctionData holds the source of a python-function node
type FunctionData struct {
	Code        string `json:"code"`
	TemplateID  string `json:"templateId,omitempty"`
	Description string `json:"description,omitempty"`
}

// FilePreview is the parsed preview supplied by the file-preview collaborator
type FilePreview struct {
	Headers  []string        `json:"headers"`
	FirstRow []string        `json:"firstRow"`
	LastRow  []string        `json:"lastRow,omitempty"`
	RowCount int             `json:"rowCount"`
	Error    string          `json:"error,omitempty"`
	JSONData json.RawMessage `json:"jsonData,omitempty"` // nil when the file was not fully parsed
}

// HasJSON reports whether the preview carries structured row data
func (p *FilePreview) HasJSON() bool {
	if p == nil || len(p.JSONData) == 0 {
		return false
	}
	return string(p.JSONData) != "null"
}

// FileInputData holds file metadata for csv-input and excel-input nodes
type FileInputData struct {
	FileName    string       `json:"fileName,omitempty"`
	FileSize    int64        `json:"fileSize,omitempty"`
	Preview     *FilePreview `json:"filePreview,omitempty"`
	Description string       `json:"description,omitempty"`
}

// SubFlowData references another flow by id
type SubFlowData struct {
	SubFlowID   string `json:"subFlowId,omitempty"`
	Description string `json:"description,omitempty"`
}

// OutputData holds the literal value and declared kind of an output node
type OutputData struct {
	Value       any             `json:"outputValue"`
	ValueKind   OutputValueKind `json:"outputType,omitempty"`
	Description string          `json:"description,omitempty"`
}

func (d *FunctionData) cloneData() NodeData {
	c := *d
	return &c
}

func (d *FileInputData) cloneData() NodeData {
	c := *d
	if d.Preview != nil {
		p := *d.Preview
		p.Headers = append([]string(nil), d.Preview.Headers...)
		p.FirstRow = append([]string(nil), d.Preview.FirstRow...)
		p.LastRow = append([]string(nil), d.Preview.LastRow...)
		p.JSONData = append(json.RawMessage(nil), d.Preview.JSONData...)
		c.Preview = &p
	}
	return &c
}

func (d *SubFlowData) cloneData() NodeData {
	c := *d
	return &c
}

func (d *OutputData) cloneData() NodeData {
	c := *d
	return &c
}

// Node is a unit of computation or I/O in the flow graph
type Node struct {
	ID       string   `json:"id"`
	Kind     NodeKind `json:"type"`
	Name     string   `json:"name"`
	Position Position `json:"position"`
	Inputs   []*Port  `json:"inputs"`
	Outputs  []*Port  `json:"outputs"`
	Data     NodeData `json:"data"`
}

// Function returns the function payload, if the node carries one
func (n *Node) Function() (*FunctionData, bool) {
	d, ok := n.Data.(*FunctionData)
	return d, ok && d != nil
}

// FileInput returns the file input payload, if the node carries one
func (n *Node) FileInput() (*FileInputData, bool) {
	d, ok := n.Data.(*FileInputData)
	return d, ok && d != nil
}

// SubFlow returns the sub-flow payload, if the node carries one
func (n *Node) SubFlow() (*SubFlowData, bool) {
	d, ok := n.Data.(*SubFlowData)
	return d, ok && d != nil
}

// Output returns the output payload, if the node carries one
func (n *Node) Output() (*OutputData, bool) {
	d, ok := n.Data.(*OutputData)
	return d, ok && d != nil
}

// Port looks up one of the node's ports by id
func (n *Node) Port(id string) *Port {
	for _, p := range n.Inputs {
		if p != nil && p.ID == id {
			return p
		}
	}
	for _, p := range n.Outputs {
		if p != nil && p.ID == id {
			return p
		}
	}
	return nil
}

// Clone returns a deep copy of the node
func (n *Node) Clone() *Node {
	c := *n
	c.Inputs = clonePorts(n.Inputs)
	c.Outputs = clonePorts(n.Outputs)
	if n.Data != nil {
		c.Data = n.Data.cloneData()
	}
	return &c
}

func clonePorts(ports []*Port) []*Port {
	if ports == nil {
		return nil
	}
	out := make([]*Port, 0, len(ports))
	for _, p := range ports {
		if p == nil {
			continue
		}
		c := *p
		out = append(out, &c)
	}
	return out
}

type nodeJSON struct {
	ID       string          `json:"id"`
	Kind     NodeKind        `json:"type"`
	Name     string          `json:"name"`
	Position Position        `json:"position"`
	Inputs   []*Port         `json:"inputs"`
	Outputs  []*Port         `json:"outputs"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// UnmarshalJSON decodes the data payload into the variant selected by the node type
func (n *Node) UnmarshalJSON(b []byte) error {
	var raw nodeJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	var data NodeData
	switch raw.Kind {
	case KindFunction:
		data = &FunctionData{}
	case KindCSVInput, KindExcelInput:
		data = &FileInputData{}
	case KindSubFlow:
		data = &SubFlowData{}
	case KindOutput:
		data = &OutputData{}
	default:
		return fmt.Errorf("node %q: %w: %q", raw.ID, ErrUnknownNodeKind, raw.Kind)
	}

	if len(raw.Data) > 0 && string(raw.Data) != "null" {
		if err := json.Unmarshal(raw.Data, data); err != nil {
			return fmt.Errorf("node %q: decoding %s data: %w", raw.ID, raw.Kind, err)
		}
	}

	*n = Node{
		ID:       raw.ID,
		Kind:     raw.Kind,
		Name:     raw.Name,
		Position: raw.Position,
		Inputs:   raw.Inputs,
		Outputs:  raw.Outputs,
		Data:     data,
	}
	return nil
}

// MarshalJSON encodes the node in the editor's flow file shape
func (n *Node) MarshalJSON() ([]byte, error) {
	raw := nodeJSON{
		ID:       n.ID,
		Kind:     n.Kind,
		Name:     n.Name,
		Position: n.Position,
		Inputs:   n.Inputs,
		Outputs:  n.Outputs,
	}
	if raw.Inputs == nil {
		raw.Inputs = []*Port{}
	}
	if raw.Outputs == nil {
		raw.Outputs = []*Port{}
	}
	if n.Data != nil {
		data, err := json.Marshal(n.Data)
		if err != nil {
			return nil, fmt.Errorf("node %q: encoding data: %w", n.ID, err)
		}
		raw.Data = data
	}
	return json.Marshal(raw)
}
