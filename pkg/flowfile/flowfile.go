// Package flowfile reads and writes flows stored on disk as the editor's
// JSON export or as YAML with the same shape.
package flowfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ritzau/flowc/pkg/model"
)

// ErrUnsupportedFormat is returned for files that are neither JSON nor YAML
var ErrUnsupportedFormat = errors.New("unsupported flow file format")

// Format is the encoding of a flow file
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatOf returns the format implied by a file extension
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}

// Load reads a flow file
func Load(path string) (*model.Flow, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading flow: %w", err)
	}
	flow, err := Decode(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return flow, nil
}

// Decode parses a flow in the given format
func Decode(data []byte, format Format) (*model.Flow, error) {
	if format == FormatYAML {
		converted, err := yamlToJSON(data)
		if err != nil {
			return nil, err
		}
		data = converted
	}

	var flow model.Flow
	if err := json.Unmarshal(data, &flow); err != nil {
		return nil, fmt.Errorf("decoding flow: %w", err)
	}
	if flow.Nodes == nil {
		flow.Nodes = []*model.Node{}
	}
	if flow.Connections == nil {
		flow.Connections = []*model.Connection{}
	}
	return &flow, nil
}

// Encode renders a flow in the given format
func Encode(flow *model.Flow, format Format) ([]byte, error) {
	data, err := json.MarshalIndent(flow, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding flow: %w", err)
	}
	if format == FormatJSON {
		return append(data, '\n'), nil
	}

	// go through the JSON shape so YAML keys match the editor's names
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("encoding flow: %w", err)
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encoding flow: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding flow: %w", err)
	}
	return buf.Bytes(), nil
}

// Save writes a flow in the format implied by the path
func Save(path string, flow *model.Flow) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	data, err := Encode(flow, format)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("converting yaml: %w", err)
	}
	return out, nil
}
