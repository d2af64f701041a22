package flowfile

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ritzau/flowc/pkg/compiler"
	"github.com/ritzau/flowc/pkg/model"
)

func TestLoadJSON(t *testing.T) {
	flow, err := Load(filepath.Join("testdata", "pipeline.json"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if flow.Name != "Pipeline" {
		t.Errorf("Expected name Pipeline, got %s", flow.Name)
	}
	if len(flow.Nodes) != 3 || len(flow.Connections) != 2 {
		t.Fatalf("Expected 3 nodes and 2 connections, got %d and %d", len(flow.Nodes), len(flow.Connections))
	}
	data, ok := flow.Nodes[1].Function()
	if !ok || data.Code != "def double(x):\n    return x * 2" {
		t.Errorf("Unexpected function data: %+v", flow.Nodes[1].Data)
	}
	if issues := flow.Validate(); len(issues) != 0 {
		t.Errorf("Expected a valid flow, got %v", issues)
	}
}

func TestLoadYAMLMatchesJSON(t *testing.T) {
	fromJSON, err := Load(filepath.Join("testdata", "pipeline.json"))
	if err != nil {
		t.Fatalf("Load json failed: %v", err)
	}
	fromYAML, err := Load(filepath.Join("testdata", "nested", "pipeline.yaml"))
	if err != nil {
		t.Fatalf("Load yaml failed: %v", err)
	}

	if !reflect.DeepEqual(fromJSON, fromYAML) {
		t.Error("Expected the YAML and JSON flows to decode identically")
	}

	a := compiler.Compile(fromJSON).Normalized()
	b := compiler.Compile(fromYAML).Normalized()
	if a.Script != b.Script {
		t.Errorf("Expected identical scripts, got:\n%s\n---\n%s", a.Script, b.Script)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"nodes": [{"id": "x", "type": "teleporter"}]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(bad); !errors.Is(err, model.ErrUnknownNodeKind) {
		t.Errorf("Expected ErrUnknownNodeKind, got %v", err)
	}
	if _, err := Load(filepath.Join("testdata", "notes.txt")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Expected an error for a missing file")
	}
}

func TestDecodeEmpty(t *testing.T) {
	flow, err := Decode([]byte(`name: Empty`), FormatYAML)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if flow.Nodes == nil || flow.Connections == nil {
		t.Error("Expected empty, non-nil node and connection lists")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	flow, err := Load(filepath.Join("testdata", "pipeline.json"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	dir := t.TempDir()
	for _, name := range []string{"copy.json", "copy.yml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := Save(path, flow); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			loaded, err := Load(path)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if !reflect.DeepEqual(flow, loaded) {
				t.Error("Expected the saved flow to load back unchanged")
			}
		})
	}
}

func TestFind(t *testing.T) {
	files, err := Find("testdata")
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}

	expected := []string{
		filepath.Join("testdata", "nested", "pipeline.yaml"),
		filepath.Join("testdata", "pipeline.json"),
	}
	if !reflect.DeepEqual(files, expected) {
		t.Errorf("Expected %v, got %v", expected, files)
	}
}
